package audit

import (
	"context"
	goerrors "errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/accredia/compliance-core/pkg/authz"
	pkgerrors "github.com/accredia/compliance-core/pkg/errors"
)

// MutationSpec describes one audited mutation: the entity it touches, how
// to authorize it, the state change itself, and the audit metadata.
type MutationSpec struct {
	// Entity identifies the record being mutated. For CREATE the ID may be
	// the pre-generated id of the new record.
	Entity authz.ResourceRef

	// ChangeType classifies the mutation for the audit trail.
	ChangeType ChangeType

	// Authorize is re-evaluated inside the transaction, after the entity
	// row is locked. Returning a deny verdict aborts before Apply runs.
	Authorize func(ctx context.Context) (authz.AccessVerdict, error)

	// Apply performs the state change through the open transaction.
	Apply func(ctx context.Context, tx Tx) error

	// Changes lists the mutated fields with old and new values. For UPDATE
	// only fields whose normalized values differ produce audit records.
	Changes []FieldChange

	// InstitutionID scopes the audit records when known.
	InstitutionID *uuid.UUID

	// Reason is optional free-text recorded alongside every record.
	Reason string
}

func (s MutationSpec) validate() error {
	if s.Entity.Type == "" || s.Entity.ID == uuid.Nil {
		return pkgerrors.New(pkgerrors.ErrCodeValidationFailed, "mutation spec missing entity identity")
	}
	if s.Authorize == nil {
		return pkgerrors.New(pkgerrors.ErrCodeValidationFailed, "mutation spec missing authorization predicate")
	}
	if s.Apply == nil {
		return pkgerrors.New(pkgerrors.ErrCodeValidationFailed, "mutation spec missing apply callback")
	}
	switch s.ChangeType {
	case ChangeCreate, ChangeUpdate, ChangeDelete, ChangeStatusChange:
	default:
		return pkgerrors.Newf(pkgerrors.ErrCodeValidationFailed, "unknown change type %q", s.ChangeType)
	}
	return nil
}

// ExecutorOptions configures the executor.
type ExecutorOptions struct {
	// Now supplies timestamps for audit records. Injectable for
	// deterministic tests.
	Now func() time.Time
}

// DefaultExecutorOptions returns options using the wall clock.
func DefaultExecutorOptions() ExecutorOptions {
	return ExecutorOptions{
		Now: time.Now,
	}
}

// Executor runs state-changing operations atomically paired with their
// audit records. Within one execution the order is fixed: row lock,
// authorization re-check, mutation callback, audit writes. Any failure at
// any step rolls back the whole transaction, so a mutation is never
// observably applied without its audit trail and no audit record ever
// survives a failed mutation.
type Executor struct {
	txm   TxManager
	store Store
	nowFn func() time.Time
}

// NewExecutor creates an executor with default options.
func NewExecutor(txm TxManager, store Store) *Executor {
	return NewExecutorWithOptions(txm, store, DefaultExecutorOptions())
}

// NewExecutorWithOptions creates an executor with explicit options.
func NewExecutorWithOptions(txm TxManager, store Store, opts ExecutorOptions) *Executor {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Executor{
		txm:   txm,
		store: store,
		nowFn: opts.Now,
	}
}

// Execute runs the mutation spec on behalf of the principal. Errors carry
// the shared taxonomy: FORBIDDEN for authorization failure,
// VALIDATION_FAILED for a malformed spec, and INTERNAL_ERROR for
// infrastructure failures (always rolled back, never retried here).
func (e *Executor) Execute(ctx context.Context, principal authz.Principal, spec MutationSpec) error {
	if err := spec.validate(); err != nil {
		return err
	}

	err := e.txm.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		// CREATE has no row to lock yet.
		if spec.ChangeType != ChangeCreate {
			if err := tx.LockEntity(ctx, spec.Entity.Type, spec.Entity.ID); err != nil {
				return pkgerrors.InternalWrap(err, "locking entity")
			}
		}

		// Authorization is re-checked here, inside the transaction and
		// under the row lock, to close stale-permission races between the
		// caller's initial check and execution.
		verdict, err := spec.Authorize(ctx)
		if err != nil {
			return pkgerrors.InternalWrap(err, "re-validating authorization")
		}
		if !verdict.Allowed {
			slog.Warn("audited mutation denied",
				"principal", principal,
				"entity", spec.Entity,
				"reason", verdict.Reason)
			return pkgerrors.Forbidden("access denied").
				WithDetail("reason", string(verdict.Reason)).
				WithDetail("entity", spec.Entity.String())
		}

		if err := spec.Apply(ctx, tx); err != nil {
			var coded *pkgerrors.Error
			if goerrors.As(err, &coded) {
				return err
			}
			return pkgerrors.InternalWrap(err, "applying mutation")
		}

		records := e.buildRecords(principal, spec)
		if len(records) == 0 {
			// Nothing tracked actually changed; commit without noise.
			return nil
		}
		if err := e.store.Append(ctx, tx, records); err != nil {
			return pkgerrors.InternalWrap(err, "writing audit records")
		}
		return nil
	})
	if err != nil {
		var coded *pkgerrors.Error
		if goerrors.As(err, &coded) {
			return err
		}
		return pkgerrors.InternalWrap(err, "mutation transaction failed")
	}
	return nil
}

// buildRecords derives the audit records for the mutation. UPDATE produces
// one record per genuinely changed field; CREATE and DELETE always produce
// at least one record even when no field list was supplied.
func (e *Executor) buildRecords(principal authz.Principal, spec MutationSpec) []Record {
	now := e.nowFn()
	var reason *string
	if spec.Reason != "" {
		r := spec.Reason
		reason = &r
	}

	base := Record{
		EntityType:    string(spec.Entity.Type),
		EntityID:      spec.Entity.ID,
		ChangedBy:     principal.ID,
		RoleAtTime:    principal.Role,
		ChangeType:    spec.ChangeType,
		InstitutionID: spec.InstitutionID,
		Reason:        reason,
		Timestamp:     now,
	}

	changed := DiffFields(spec.Changes)
	if len(changed) == 0 {
		if spec.ChangeType == ChangeUpdate {
			return nil
		}
		record := base
		record.ID = uuid.New()
		return []Record{record}
	}

	records := make([]Record, 0, len(changed))
	for _, c := range changed {
		record := base
		record.ID = uuid.New()
		name := c.Name
		record.FieldName = &name
		record.OldValue = storedValue(c.Old)
		record.NewValue = storedValue(c.New)
		records = append(records, record)
	}
	return records
}
