package audit

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/accredia/compliance-core/pkg/authz"
)

// entityTables maps each resource type to the table holding its rows, used
// for row-level locking.
var entityTables = map[authz.ResourceType]string{
	authz.ResourceReadiness:   "readiness_records",
	authz.ResourceLearner:     "learners",
	authz.ResourceEnrolment:   "enrolments",
	authz.ResourceDocument:    "documents",
	authz.ResourceInstitution: "institutions",
	authz.ResourceFacilitator: "facilitators",
	authz.ResourceRequest:     "requests",
	authz.ResourceSubmission:  "submissions",
}

// PgxTx wraps a pgx transaction as the executor's Tx. Mutation callbacks
// that need SQL access unwrap it with Pgx().
type PgxTx struct {
	tx pgx.Tx
}

// Pgx returns the underlying pgx transaction for use by mutation callbacks.
func (t *PgxTx) Pgx() pgx.Tx {
	return t.tx
}

// LockEntity takes a FOR UPDATE row lock on the mutated entity. A missing
// row is reported as authz.ErrNotFound.
func (t *PgxTx) LockEntity(ctx context.Context, entityType authz.ResourceType, id uuid.UUID) error {
	table, ok := entityTables[entityType]
	if !ok {
		return fmt.Errorf("no table mapping for entity type %q", entityType)
	}
	var locked uuid.UUID
	err := t.tx.QueryRow(ctx, fmt.Sprintf(`SELECT id FROM %s WHERE id = $1 FOR UPDATE`, table), id).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return authz.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("locking %s row: %w", table, err)
	}
	return nil
}

// PgxTxManager runs executor transactions on a pgx pool at read-committed
// isolation. Context cancellation before commit rolls the transaction back.
type PgxTxManager struct {
	pool *pgxpool.Pool
}

// NewPgxTxManager creates a transaction manager on the given pool.
func NewPgxTxManager(pool *pgxpool.Pool) *PgxTxManager {
	return &PgxTxManager{
		pool: pool,
	}
}

func (m *PgxTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := m.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &PgxTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// PostgresStore appends audit records through the owning transaction.
type PostgresStore struct{}

// NewPostgresStore creates the Postgres audit store.
func NewPostgresStore() *PostgresStore {
	return &PostgresStore{}
}

func (s *PostgresStore) Append(ctx context.Context, tx Tx, records []Record) error {
	pgxTx, ok := tx.(*PgxTx)
	if !ok {
		return fmt.Errorf("audit store requires a pgx transaction, got %T", tx)
	}

	const query = `
		INSERT INTO audit_records (
			id, entity_type, entity_id, field_name, old_value, new_value,
			changed_by, role_at_time, change_type, institution_id, reason, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	for _, r := range records {
		_, err := pgxTx.tx.Exec(ctx, query,
			r.ID,
			r.EntityType,
			r.EntityID,
			r.FieldName,
			r.OldValue,
			r.NewValue,
			r.ChangedBy,
			string(r.RoleAtTime),
			string(r.ChangeType),
			r.InstitutionID,
			r.Reason,
			r.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("inserting audit record: %w", err)
		}
	}
	return nil
}
