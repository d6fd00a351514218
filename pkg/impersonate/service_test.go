package impersonate

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accredia/compliance-core/pkg/authz"
	pkgerrors "github.com/accredia/compliance-core/pkg/errors"
	"github.com/accredia/compliance-core/pkg/rbac"
)

type stubAuthorizer struct {
	verdict authz.AccessVerdict
	calls   int
}

func (a *stubAuthorizer) CanImpersonate(ctx context.Context, impersonator authz.Principal, targetUserID uuid.UUID) (authz.AccessVerdict, error) {
	a.calls++
	return a.verdict, nil
}

// testClock drives the service's Now func so both timeout clocks can be
// moved deterministically.
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func setupSessionService(t *testing.T, verdict authz.AccessVerdict) (*Service, *InMemRepository, *testClock) {
	t.Helper()
	repo := NewInMemRepository()
	clock := &testClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	svc := NewServiceWithOptions(repo, &stubAuthorizer{verdict: verdict}, ServiceOptions{
		AbsoluteTTL:       time.Hour,
		InactivityTTL:     15 * time.Minute,
		MaxActiveSessions: 5,
		Now:               clock.Now,
	})
	return svc, repo, clock
}

func adminPrincipal() authz.Principal {
	return authz.Principal{ID: uuid.New(), Role: rbac.RolePlatformAdmin}
}

func TestCreateSession_Succeeds(t *testing.T) {
	svc, _, clock := setupSessionService(t, authz.Allow(authz.ScopeGlobal))
	impersonator := adminPrincipal()
	target := uuid.New()

	session, err := svc.CreateSession(context.Background(), impersonator, target, "10.0.0.1", "go-test")
	require.NoError(t, err)

	assert.Equal(t, StatusActive, session.Status)
	assert.Equal(t, impersonator.ID, session.ImpersonatorID)
	assert.Equal(t, target, session.TargetUserID)
	assert.Equal(t, clock.now.Add(time.Hour), session.ExpiresAt)
	assert.Equal(t, clock.now, session.LastActivityAt)
	// 32 bytes of entropy, base64url without padding
	assert.Len(t, session.Token, 43)
}

func TestCreateSession_SelfImpersonationRejected(t *testing.T) {
	svc, _, _ := setupSessionService(t, authz.Allow(authz.ScopeGlobal))
	impersonator := adminPrincipal()

	_, err := svc.CreateSession(context.Background(), impersonator, impersonator.ID, "", "")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeValidationFailed))
}

func TestCreateSession_AuthorizerDenied(t *testing.T) {
	svc, _, _ := setupSessionService(t, authz.Deny(authz.ReasonRoleNotPermitted))

	_, err := svc.CreateSession(context.Background(), adminPrincipal(), uuid.New(), "", "")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeForbidden))
	assert.Equal(t, string(authz.ReasonRoleNotPermitted), pkgerrors.GetDetails(err)["reason"])
}

func TestCreateSession_ConcurrencyCap(t *testing.T) {
	svc, _, _ := setupSessionService(t, authz.Allow(authz.ScopeGlobal))
	impersonator := adminPrincipal()

	var last *Session
	for i := 0; i < 5; i++ {
		session, err := svc.CreateSession(context.Background(), impersonator, uuid.New(), "", "")
		require.NoError(t, err)
		last = session
	}

	_, err := svc.CreateSession(context.Background(), impersonator, uuid.New(), "", "")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeValidationFailed))
	assert.Contains(t, err.Error(), "maximum of 5 concurrent impersonation sessions")

	// ending one frees a slot
	require.NoError(t, svc.Revoke(context.Background(), last.ID, impersonator))
	_, err = svc.CreateSession(context.Background(), impersonator, uuid.New(), "", "")
	assert.NoError(t, err)
}

func TestCreateSession_CapIsPerImpersonator(t *testing.T) {
	svc, _, _ := setupSessionService(t, authz.Allow(authz.ScopeGlobal))
	first := adminPrincipal()

	for i := 0; i < 5; i++ {
		_, err := svc.CreateSession(context.Background(), first, uuid.New(), "", "")
		require.NoError(t, err)
	}

	_, err := svc.CreateSession(context.Background(), adminPrincipal(), uuid.New(), "", "")
	assert.NoError(t, err)
}

func TestCreateSession_TokensAreUnique(t *testing.T) {
	svc, _, _ := setupSessionService(t, authz.Allow(authz.ScopeGlobal))
	impersonator := adminPrincipal()

	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		session, err := svc.CreateSession(context.Background(), impersonator, uuid.New(), "", "")
		require.NoError(t, err)
		assert.False(t, seen[session.Token])
		seen[session.Token] = true
	}
}

func TestValidateToken_Active(t *testing.T) {
	svc, _, _ := setupSessionService(t, authz.Allow(authz.ScopeGlobal))
	created, err := svc.CreateSession(context.Background(), adminPrincipal(), uuid.New(), "", "")
	require.NoError(t, err)

	session, err := svc.ValidateToken(context.Background(), created.Token)
	require.NoError(t, err)
	assert.Equal(t, created.ID, session.ID)
}

func TestValidateToken_Unknown(t *testing.T) {
	svc, _, _ := setupSessionService(t, authz.Allow(authz.ScopeGlobal))

	_, err := svc.ValidateToken(context.Background(), "no-such-token")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeNotFound))
}

func TestValidateToken_AbsoluteExpiryIgnoresActivity(t *testing.T) {
	svc, repo, clock := setupSessionService(t, authz.Allow(authz.ScopeGlobal))
	created, err := svc.CreateSession(context.Background(), adminPrincipal(), uuid.New(), "", "")
	require.NoError(t, err)

	// keep the session busy right up to the absolute limit
	for i := 0; i < 6; i++ {
		clock.Advance(10 * time.Minute)
		require.NoError(t, svc.Touch(context.Background(), created.Token))
	}
	clock.Advance(time.Minute)

	_, err = svc.ValidateToken(context.Background(), created.Token)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeSessionExpired))
	assert.NotContains(t, err.Error(), "inactivity")

	stored, err := repo.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, stored.Status)
}

func TestValidateToken_InactivityExpiry(t *testing.T) {
	svc, repo, clock := setupSessionService(t, authz.Allow(authz.ScopeGlobal))
	created, err := svc.CreateSession(context.Background(), adminPrincipal(), uuid.New(), "", "")
	require.NoError(t, err)

	clock.Advance(16 * time.Minute)

	_, err = svc.ValidateToken(context.Background(), created.Token)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeSessionExpired))
	assert.Contains(t, err.Error(), "due to inactivity")

	stored, err := repo.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, stored.Status)
}

func TestTouch_ResetsInactivityWindow(t *testing.T) {
	svc, _, clock := setupSessionService(t, authz.Allow(authz.ScopeGlobal))
	created, err := svc.CreateSession(context.Background(), adminPrincipal(), uuid.New(), "", "")
	require.NoError(t, err)

	clock.Advance(14 * time.Minute)
	require.NoError(t, svc.Touch(context.Background(), created.Token))
	clock.Advance(14 * time.Minute)

	_, err = svc.ValidateToken(context.Background(), created.Token)
	assert.NoError(t, err)
}

func TestValidateToken_RevokedAndCompleted(t *testing.T) {
	svc, _, _ := setupSessionService(t, authz.Allow(authz.ScopeGlobal))
	impersonator := adminPrincipal()

	revoked, err := svc.CreateSession(context.Background(), impersonator, uuid.New(), "", "")
	require.NoError(t, err)
	require.NoError(t, svc.Revoke(context.Background(), revoked.ID, impersonator))

	_, err = svc.ValidateToken(context.Background(), revoked.Token)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeSessionRevoked))

	completed, err := svc.CreateSession(context.Background(), impersonator, uuid.New(), "", "")
	require.NoError(t, err)
	require.NoError(t, svc.Complete(context.Background(), completed.ID, impersonator))

	_, err = svc.ValidateToken(context.Background(), completed.Token)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeSessionCompleted))
}

func TestRevoke_RequiresImpersonatorOrGlobalOverride(t *testing.T) {
	svc, _, _ := setupSessionService(t, authz.Allow(authz.ScopeGlobal))
	impersonator := authz.Principal{ID: uuid.New(), Role: rbac.RoleQCTOAdmin}

	created, err := svc.CreateSession(context.Background(), impersonator, uuid.New(), "", "")
	require.NoError(t, err)

	bystander := authz.Principal{ID: uuid.New(), Role: rbac.RoleQCTOAdmin}
	err = svc.Revoke(context.Background(), created.ID, bystander)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeForbidden))

	// a platform admin can force-end anyone's session
	err = svc.Revoke(context.Background(), created.ID, adminPrincipal())
	assert.NoError(t, err)
}

func TestTerminate_AlreadyEndedConflicts(t *testing.T) {
	svc, _, _ := setupSessionService(t, authz.Allow(authz.ScopeGlobal))
	impersonator := adminPrincipal()

	created, err := svc.CreateSession(context.Background(), impersonator, uuid.New(), "", "")
	require.NoError(t, err)
	require.NoError(t, svc.Complete(context.Background(), created.ID, impersonator))

	err = svc.Revoke(context.Background(), created.ID, impersonator)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeConflict))
	assert.Contains(t, err.Error(), "already completed")
}

func TestRevoke_UnknownSession(t *testing.T) {
	svc, _, _ := setupSessionService(t, authz.Allow(authz.ScopeGlobal))

	err := svc.Revoke(context.Background(), uuid.New(), adminPrincipal())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeNotFound))
}
