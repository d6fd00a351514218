package impersonate

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an impersonation session. ACTIVE is the
// only non-terminal state; a terminal session is never resurrected.
type Status string

const (
	StatusActive    Status = "active"
	StatusExpired   Status = "expired"
	StatusRevoked   Status = "revoked"
	StatusCompleted Status = "completed"
)

// Terminal reports whether the status is an end state.
func (s Status) Terminal() bool {
	return s != StatusActive
}

// Session is a bounded-lifetime delegation letting the impersonator act
// with the target user's identity. Rows are historical evidence: sessions
// are retired by status flips, never deleted.
type Session struct {
	ID             uuid.UUID
	Token          string
	ImpersonatorID uuid.UUID
	TargetUserID   uuid.UUID
	Status         Status
	CreatedAt      time.Time
	ExpiresAt      time.Time
	LastActivityAt time.Time
	IPAddress      string
	UserAgent      string
}

// CreateSessionRequest carries the persistence inputs for a new session.
type CreateSessionRequest struct {
	Token          string
	ImpersonatorID uuid.UUID
	TargetUserID   uuid.UUID
	ExpiresAt      time.Time
	LastActivityAt time.Time
	IPAddress      string
	UserAgent      string
}
