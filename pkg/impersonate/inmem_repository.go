package impersonate

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemRepository is an in-memory Repository for tests and demos.
type InMemRepository struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*Session
	byToken map[string]uuid.UUID
}

// NewInMemRepository creates an empty in-memory session repository.
func NewInMemRepository() *InMemRepository {
	return &InMemRepository{
		byID:    make(map[uuid.UUID]*Session),
		byToken: make(map[string]uuid.UUID),
	}
}

func (r *InMemRepository) Create(ctx context.Context, req CreateSessionRequest) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session := &Session{
		ID:             uuid.New(),
		Token:          req.Token,
		ImpersonatorID: req.ImpersonatorID,
		TargetUserID:   req.TargetUserID,
		Status:         StatusActive,
		CreatedAt:      req.LastActivityAt,
		ExpiresAt:      req.ExpiresAt,
		LastActivityAt: req.LastActivityAt,
		IPAddress:      req.IPAddress,
		UserAgent:      req.UserAgent,
	}
	r.byID[session.ID] = session
	r.byToken[session.Token] = session.ID
	copied := *session
	return &copied, nil
}

func (r *InMemRepository) GetByID(ctx context.Context, id uuid.UUID) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.byID[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	copied := *session
	return &copied, nil
}

func (r *InMemRepository) GetByToken(ctx context.Context, token string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byToken[token]
	if !ok {
		return nil, ErrSessionNotFound
	}
	copied := *r.byID[id]
	return &copied, nil
}

func (r *InMemRepository) CountActive(ctx context.Context, impersonatorID uuid.UUID, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, s := range r.byID {
		if s.ImpersonatorID == impersonatorID && s.Status == StatusActive && s.ExpiresAt.After(now) {
			count++
		}
	}
	return count, nil
}

func (r *InMemRepository) UpdateActivity(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.byID[id]
	if !ok {
		return ErrSessionNotFound
	}
	session.LastActivityAt = at
	return nil
}

func (r *InMemRepository) TransitionStatus(ctx context.Context, id uuid.UUID, to Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.byID[id]
	if !ok {
		return ErrSessionNotFound
	}
	if session.Status != StatusActive {
		return ErrNotActive
	}
	session.Status = to
	return nil
}
