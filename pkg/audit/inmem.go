package audit

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/accredia/compliance-core/pkg/authz"
)

// InMemTx is the in-memory transaction handle. Mutation callbacks stage
// state writes with Put; nothing becomes visible until the transaction
// commits.
type InMemTx struct {
	manager *InMemTxManager
	staged  map[string]interface{}
	records []Record
	locked  []authz.ResourceRef
}

// Put stages a state write under an arbitrary key.
func (t *InMemTx) Put(key string, value interface{}) {
	t.staged[key] = value
}

func (t *InMemTx) LockEntity(ctx context.Context, entityType authz.ResourceType, id uuid.UUID) error {
	t.locked = append(t.locked, authz.ResourceRef{Type: entityType, ID: id})
	return nil
}

// InMemTxManager is an in-memory TxManager for tests. Committed state and
// records are visible through State and Records; a transaction whose
// function returns an error leaves both untouched.
type InMemTxManager struct {
	mu      sync.Mutex
	state   map[string]interface{}
	records []Record

	// Commits and Rollbacks count transaction outcomes for assertions.
	Commits   int
	Rollbacks int
}

// NewInMemTxManager creates an empty in-memory transaction manager.
func NewInMemTxManager() *InMemTxManager {
	return &InMemTxManager{
		state: make(map[string]interface{}),
	}
}

func (m *InMemTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx := &InMemTx{
		manager: m,
		staged:  make(map[string]interface{}),
	}
	if err := fn(ctx, tx); err != nil {
		m.mu.Lock()
		m.Rollbacks++
		m.mu.Unlock()
		return err
	}
	if err := ctx.Err(); err != nil {
		// Cancellation before commit rolls back.
		m.mu.Lock()
		m.Rollbacks++
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range tx.staged {
		m.state[k] = v
	}
	m.records = append(m.records, tx.records...)
	m.Commits++
	return nil
}

// State returns the committed value for a key.
func (m *InMemTxManager) State(key string) (interface{}, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.state[key]
	return v, ok
}

// Records returns a copy of all committed audit records.
func (m *InMemTxManager) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, len(m.records))
	copy(out, m.records)
	return out
}

// InMemStore appends audit records into the in-memory transaction; they are
// committed by the InMemTxManager alongside staged state.
type InMemStore struct{}

// NewInMemStore creates the in-memory audit store.
func NewInMemStore() *InMemStore {
	return &InMemStore{}
}

func (s *InMemStore) Append(ctx context.Context, tx Tx, records []Record) error {
	memTx, ok := tx.(*InMemTx)
	if !ok {
		return fmt.Errorf("in-memory audit store requires an in-memory transaction, got %T", tx)
	}
	memTx.records = append(memTx.records, records...)
	return nil
}
