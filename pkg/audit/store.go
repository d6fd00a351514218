package audit

import (
	"context"

	"github.com/google/uuid"

	"github.com/accredia/compliance-core/pkg/authz"
)

// Tx is an open mutation transaction. Mutation callbacks receive the same
// Tx the executor uses for audit writes, so the state change and its audit
// trail commit or roll back as one unit. Implementations expose their
// native transaction handle (for example *pgx.Tx) for callbacks that need
// to run SQL.
type Tx interface {
	// LockEntity acquires a row-level lock on the entity being mutated,
	// preventing lost updates under concurrent edits to the same resource.
	LockEntity(ctx context.Context, entityType authz.ResourceType, id uuid.UUID) error
}

// TxManager opens the transaction boundary the executor runs inside. The
// function's error rolls everything back; a nil return commits.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Store is the append-only write target for audit records. Append must
// write through the supplied transaction; records become visible only when
// the owning transaction commits.
type Store interface {
	Append(ctx context.Context, tx Tx, records []Record) error
}
