package impersonate

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrSessionNotFound is returned when no session matches the lookup.
	ErrSessionNotFound = errors.New("impersonation session not found")

	// ErrNotActive is returned by TransitionStatus when the session has
	// already left the ACTIVE state; the losing side of a status race sees
	// this instead of silently resurrecting the session.
	ErrNotActive = errors.New("impersonation session is not active")
)

// Repository defines the interface for impersonation session persistence.
type Repository interface {
	// Create persists a new ACTIVE session.
	Create(ctx context.Context, req CreateSessionRequest) (*Session, error)

	// GetByID returns a session by its id.
	GetByID(ctx context.Context, id uuid.UUID) (*Session, error)

	// GetByToken returns a session by its opaque token.
	GetByToken(ctx context.Context, token string) (*Session, error)

	// CountActive counts the impersonator's ACTIVE sessions whose absolute
	// expiry is after now.
	CountActive(ctx context.Context, impersonatorID uuid.UUID, now time.Time) (int, error)

	// UpdateActivity sets last_activity_at. Best-effort, last-write-wins.
	UpdateActivity(ctx context.Context, id uuid.UUID, at time.Time) error

	// TransitionStatus flips an ACTIVE session to a terminal status.
	// Compare-and-swap semantics: if the session is no longer ACTIVE the
	// transition fails with ErrNotActive and the stored status is kept.
	TransitionStatus(ctx context.Context, id uuid.UUID, to Status) error
}
