package impersonate

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	goerrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/accredia/compliance-core/pkg/authz"
	pkgerrors "github.com/accredia/compliance-core/pkg/errors"
	"github.com/accredia/compliance-core/pkg/rbac"
)

// tokenBytes gives 256 bits of entropy per session token.
const tokenBytes = 32

// Authorizer decides whether one principal may impersonate another. The
// access decision engine (pkg/authz) satisfies this.
type Authorizer interface {
	CanImpersonate(ctx context.Context, impersonator authz.Principal, targetUserID uuid.UUID) (authz.AccessVerdict, error)
}

// ServiceOptions configures session lifetimes and the clock.
type ServiceOptions struct {
	// AbsoluteTTL bounds the session regardless of activity.
	AbsoluteTTL time.Duration

	// InactivityTTL expires the session after a quiet period. Independent
	// of AbsoluteTTL; either clock can fire first.
	InactivityTTL time.Duration

	// MaxActiveSessions caps concurrent ACTIVE sessions per impersonator.
	MaxActiveSessions int

	// Now supplies the current time. Injectable for deterministic tests.
	Now func() time.Time
}

// DefaultServiceOptions returns the production defaults: one hour absolute,
// fifteen minutes of inactivity, five concurrent sessions.
func DefaultServiceOptions() ServiceOptions {
	return ServiceOptions{
		AbsoluteTTL:       time.Hour,
		InactivityTTL:     15 * time.Minute,
		MaxActiveSessions: 5,
		Now:               time.Now,
	}
}

// Service manages the impersonation session lifecycle.
type Service struct {
	repo       Repository
	authorizer Authorizer
	opts       ServiceOptions
}

// NewService creates a session service with default options.
func NewService(repo Repository, authorizer Authorizer) *Service {
	return NewServiceWithOptions(repo, authorizer, DefaultServiceOptions())
}

// NewServiceWithOptions creates a session service with explicit options.
func NewServiceWithOptions(repo Repository, authorizer Authorizer, opts ServiceOptions) *Service {
	defaults := DefaultServiceOptions()
	if opts.AbsoluteTTL <= 0 {
		opts.AbsoluteTTL = defaults.AbsoluteTTL
	}
	if opts.InactivityTTL <= 0 {
		opts.InactivityTTL = defaults.InactivityTTL
	}
	if opts.MaxActiveSessions <= 0 {
		opts.MaxActiveSessions = defaults.MaxActiveSessions
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		repo:       repo,
		authorizer: authorizer,
		opts:       opts,
	}
}

// CreateSession opens a new impersonation session for the impersonator to
// act as the target user.
func (s *Service) CreateSession(ctx context.Context, impersonator authz.Principal, targetUserID uuid.UUID, ipAddress, userAgent string) (*Session, error) {
	if impersonator.ID == targetUserID {
		return nil, pkgerrors.New(pkgerrors.ErrCodeValidationFailed, "cannot impersonate yourself")
	}

	verdict, err := s.authorizer.CanImpersonate(ctx, impersonator, targetUserID)
	if err != nil {
		return nil, err
	}
	if !verdict.Allowed {
		slog.Warn("impersonation denied",
			"impersonator", impersonator,
			"target", targetUserID,
			"reason", verdict.Reason)
		return nil, pkgerrors.Forbidden("impersonation not permitted").
			WithDetail("reason", string(verdict.Reason))
	}

	now := s.opts.Now()
	active, err := s.repo.CountActive(ctx, impersonator.ID, now)
	if err != nil {
		return nil, pkgerrors.InternalWrap(err, "counting active sessions")
	}
	if active >= s.opts.MaxActiveSessions {
		return nil, pkgerrors.Newf(pkgerrors.ErrCodeValidationFailed,
			"maximum of %d concurrent impersonation sessions reached", s.opts.MaxActiveSessions)
	}

	token, err := generateToken()
	if err != nil {
		return nil, pkgerrors.InternalWrap(err, "generating session token")
	}

	session, err := s.repo.Create(ctx, CreateSessionRequest{
		Token:          token,
		ImpersonatorID: impersonator.ID,
		TargetUserID:   targetUserID,
		ExpiresAt:      now.Add(s.opts.AbsoluteTTL),
		LastActivityAt: now,
		IPAddress:      ipAddress,
		UserAgent:      userAgent,
	})
	if err != nil {
		return nil, pkgerrors.InternalWrap(err, "persisting session")
	}

	slog.Info("impersonation session created",
		"session", session.ID,
		"impersonator", impersonator,
		"target", targetUserID,
		"expiresAt", session.ExpiresAt)
	return session, nil
}

// ValidateToken checks a session token and returns the session when it is
// still usable. Absolute expiry and inactivity expiry are independent; the
// first to fire retires the session with a message naming which clock it
// was.
func (s *Service) ValidateToken(ctx context.Context, token string) (*Session, error) {
	session, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		if goerrors.Is(err, ErrSessionNotFound) {
			return nil, pkgerrors.New(pkgerrors.ErrCodeNotFound, "impersonation session not found")
		}
		return nil, pkgerrors.InternalWrap(err, "loading session")
	}

	now := s.opts.Now()
	if now.After(session.ExpiresAt) {
		s.expire(ctx, session)
		return nil, pkgerrors.New(pkgerrors.ErrCodeSessionExpired, "impersonation session expired")
	}
	if session.Status != StatusActive {
		return nil, statusError(session.Status)
	}
	if now.Sub(session.LastActivityAt) > s.opts.InactivityTTL {
		s.expire(ctx, session)
		return nil, pkgerrors.New(pkgerrors.ErrCodeSessionExpired, "impersonation session expired due to inactivity")
	}
	return session, nil
}

// Touch refreshes the session's activity clock. It is deliberately the
// only mutation without re-authorization; it is best-effort and
// last-write-wins under concurrent requests.
func (s *Service) Touch(ctx context.Context, token string) error {
	session, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		if goerrors.Is(err, ErrSessionNotFound) {
			return pkgerrors.New(pkgerrors.ErrCodeNotFound, "impersonation session not found")
		}
		return pkgerrors.InternalWrap(err, "loading session")
	}
	if err := s.repo.UpdateActivity(ctx, session.ID, s.opts.Now()); err != nil {
		return pkgerrors.InternalWrap(err, "refreshing session activity")
	}
	return nil
}

// Revoke force-ends a session. Only the original impersonator or a global
// override principal may revoke.
func (s *Service) Revoke(ctx context.Context, sessionID uuid.UUID, requester authz.Principal) error {
	return s.terminate(ctx, sessionID, requester, StatusRevoked)
}

// Complete ends a session normally ("stop viewing as"), distinct from a
// forced revoke and from passive expiry.
func (s *Service) Complete(ctx context.Context, sessionID uuid.UUID, requester authz.Principal) error {
	return s.terminate(ctx, sessionID, requester, StatusCompleted)
}

func (s *Service) terminate(ctx context.Context, sessionID uuid.UUID, requester authz.Principal, to Status) error {
	session, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		if goerrors.Is(err, ErrSessionNotFound) {
			return pkgerrors.New(pkgerrors.ErrCodeNotFound, "impersonation session not found")
		}
		return pkgerrors.InternalWrap(err, "loading session")
	}

	if requester.ID != session.ImpersonatorID && !rbac.IsGlobalOverride(requester.Role) {
		return pkgerrors.Forbidden("not allowed to end this impersonation session")
	}

	if err := s.repo.TransitionStatus(ctx, sessionID, to); err != nil {
		if goerrors.Is(err, ErrNotActive) {
			return pkgerrors.Newf(pkgerrors.ErrCodeConflict,
				"impersonation session is already %s", session.Status)
		}
		return pkgerrors.InternalWrap(err, "ending session")
	}

	slog.Info("impersonation session ended",
		"session", sessionID,
		"status", to,
		"requester", requester)
	return nil
}

// expire flips a session to EXPIRED. Losing the flip race is fine: some
// other request already retired the session.
func (s *Service) expire(ctx context.Context, session *Session) {
	if session.Status != StatusActive {
		return
	}
	if err := s.repo.TransitionStatus(ctx, session.ID, StatusExpired); err != nil && !goerrors.Is(err, ErrNotActive) {
		slog.Error("failed to expire impersonation session", "session", session.ID, "err", err)
	}
}

func statusError(status Status) *pkgerrors.Error {
	switch status {
	case StatusExpired:
		return pkgerrors.New(pkgerrors.ErrCodeSessionExpired, "impersonation session expired")
	case StatusRevoked:
		return pkgerrors.New(pkgerrors.ErrCodeSessionRevoked, "impersonation session was revoked")
	case StatusCompleted:
		return pkgerrors.New(pkgerrors.ErrCodeSessionCompleted, "impersonation session was completed")
	default:
		return pkgerrors.Newf(pkgerrors.ErrCodeTokenInvalid, "impersonation session in unexpected state %q", status)
	}
}

func generateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
