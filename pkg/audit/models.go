package audit

import (
	"time"

	"github.com/google/uuid"

	"github.com/accredia/compliance-core/pkg/rbac"
)

// ChangeType classifies what a mutation did to the entity.
type ChangeType string

const (
	ChangeCreate       ChangeType = "CREATE"
	ChangeUpdate       ChangeType = "UPDATE"
	ChangeDelete       ChangeType = "DELETE"
	ChangeStatusChange ChangeType = "STATUS_CHANGE"
)

// Record is one immutable audit entry. Records are append-only: they are
// written exactly once, inside the transaction of the mutation they
// describe, and never updated or deleted afterwards.
type Record struct {
	ID            uuid.UUID
	EntityType    string
	EntityID      uuid.UUID
	FieldName     *string
	OldValue      *string
	NewValue      *string
	ChangedBy     uuid.UUID
	RoleAtTime    rbac.Role
	ChangeType    ChangeType
	InstitutionID *uuid.UUID
	Reason        *string
	Timestamp     time.Time
}
