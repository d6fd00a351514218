package authz

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/accredia/compliance-core/pkg/rbac"
)

// ErrNotFound is returned by ResourceStore lookups when the referenced
// record does not exist. Any other error is treated as an infrastructure
// failure and denies by policy.
var ErrNotFound = errors.New("record not found")

// OwnerInfo is the result of resolving a resource to its owning
// institution. Resolution is transitive: a facilitator record resolves
// through its readiness record to the institution that owns it.
type OwnerInfo struct {
	InstitutionID uuid.UUID
	Deletion      Deletion
}

// UserScope is the authorization-relevant slice of a stored user, used when
// one principal acts on another (impersonation, province delegation).
type UserScope struct {
	UserID            uuid.UUID
	Role              rbac.Role
	InstitutionID     *uuid.UUID
	AssignedProvinces []string
	Deletion          Deletion
}

// LinkStatus is the review status of a submission or request.
type LinkStatus string

const (
	StatusDraft     LinkStatus = "DRAFT"
	StatusSubmitted LinkStatus = "SUBMITTED"
	StatusApproved  LinkStatus = "APPROVED"
	StatusRejected  LinkStatus = "REJECTED"
)

// LinkQuery is a typed specification for approval-link lookups. Each filter
// dimension is explicit; there is no generic filter map.
type LinkQuery struct {
	ResourceType   ResourceType
	ResourceID     uuid.UUID
	Statuses       []LinkStatus
	IncludeDeleted bool
}

// ApprovedLink builds the query used by the access decision engine: links
// with APPROVED status on non-deleted parents.
func ApprovedLink(ref ResourceRef) LinkQuery {
	return LinkQuery{
		ResourceType: ref.Type,
		ResourceID:   ref.ID,
		Statuses:     []LinkStatus{StatusApproved},
	}
}

// WithStatuses returns a copy of the query filtered to the given statuses.
func (q LinkQuery) WithStatuses(statuses ...LinkStatus) LinkQuery {
	q.Statuses = statuses
	return q
}

// ResourceStore is the read-only lookup port the decision engine depends
// on. Implementations must return ErrNotFound for missing records and keep
// ResolveOwner total: every valid id resolves to exactly one institution or
// fails explicitly.
type ResourceStore interface {
	// ResolveOwner resolves a resource reference to its owning institution,
	// following multi-hop ownership where needed.
	ResolveOwner(ctx context.Context, ref ResourceRef) (OwnerInfo, error)

	// HasSubmissionLink reports whether any submission matching the query
	// links the resource.
	HasSubmissionLink(ctx context.Context, q LinkQuery) (bool, error)

	// HasRequestLink reports whether any request matching the query links
	// the resource.
	HasRequestLink(ctx context.Context, q LinkQuery) (bool, error)

	// GetUserScope returns the authorization scope of a stored user.
	GetUserScope(ctx context.Context, userID uuid.UUID) (UserScope, error)
}
