package impersonate

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accredia/compliance-core/pkg/impersonate"
)

func testSession(createdAt time.Time, absoluteTTL time.Duration) *impersonate.Session {
	return &impersonate.Session{
		ID:             uuid.New(),
		Token:          "opaque-session-token",
		ImpersonatorID: uuid.New(),
		TargetUserID:   uuid.New(),
		Status:         impersonate.StatusActive,
		CreatedAt:      createdAt,
		ExpiresAt:      createdAt.Add(absoluteTTL),
		LastActivityAt: createdAt,
	}
}

func parseClaims(t *testing.T, tokenString string, secret []byte) jwt.MapClaims {
	t.Helper()
	parsed, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	require.NoError(t, err)
	claims, ok := parsed.Claims.(jwt.MapClaims)
	require.True(t, ok)
	return claims
}

func TestIssueClaims_ExpiryBoundedByTokenTTL(t *testing.T) {
	secret := []byte("a-long-enough-signing-secret")
	h := NewHandle(nil, secret, 5*time.Minute)

	createdAt := time.Now().UTC().Truncate(time.Second)
	session := testSession(createdAt, time.Hour)

	tokenString, err := h.issueClaims(session)
	require.NoError(t, err)

	claims := parseClaims(t, tokenString, secret)
	assert.Equal(t, session.TargetUserID.String(), claims["sub"])
	assert.Equal(t, session.ImpersonatorID.String(), claims["impersonator"])
	assert.Equal(t, session.Token, claims["impersonation_token"])
	assert.Equal(t, float64(createdAt.Add(5*time.Minute).Unix()), claims["exp"])
}

func TestIssueClaims_ExpiryNeverOutlivesSession(t *testing.T) {
	secret := []byte("a-long-enough-signing-secret")
	h := NewHandle(nil, secret, 2*time.Hour)

	createdAt := time.Now().UTC().Truncate(time.Second)
	session := testSession(createdAt, time.Hour)

	tokenString, err := h.issueClaims(session)
	require.NoError(t, err)

	claims := parseClaims(t, tokenString, secret)
	assert.Equal(t, float64(session.ExpiresAt.Unix()), claims["exp"])
}
