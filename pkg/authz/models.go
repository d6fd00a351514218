package authz

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/accredia/compliance-core/pkg/rbac"
)

// Principal is the authenticated actor attempting an operation. It is
// constructed per request from upstream identity data and never persisted
// by this module.
type Principal struct {
	ID                uuid.UUID
	Role              rbac.Role
	InstitutionID     *uuid.UUID
	QCTOID            *uuid.UUID
	AssignedProvinces []string
}

func (p Principal) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", p.ID.String()),
		slog.String("role", string(p.Role)),
	)
}

// ResourceType is the closed enumeration of resource kinds the engine can
// authorize. Adding a type requires extending the owner resolution switch in
// every ResourceStore implementation; the compiler and tests keep the switch
// exhaustive.
type ResourceType string

const (
	ResourceReadiness   ResourceType = "READINESS"
	ResourceLearner     ResourceType = "LEARNER"
	ResourceEnrolment   ResourceType = "ENROLMENT"
	ResourceDocument    ResourceType = "DOCUMENT"
	ResourceInstitution ResourceType = "INSTITUTION"
	ResourceFacilitator ResourceType = "FACILITATOR"
	ResourceRequest     ResourceType = "REQUEST"
	ResourceSubmission  ResourceType = "SUBMISSION"
)

// AllResourceTypes lists every resource type the engine knows about.
var AllResourceTypes = []ResourceType{
	ResourceReadiness,
	ResourceLearner,
	ResourceEnrolment,
	ResourceDocument,
	ResourceInstitution,
	ResourceFacilitator,
	ResourceRequest,
	ResourceSubmission,
}

// ParseResourceType validates a raw string against the closed enumeration.
func ParseResourceType(s string) (ResourceType, error) {
	for _, t := range AllResourceTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown resource type: %q", s)
}

// ResourceRef identifies a single resource instance.
type ResourceRef struct {
	Type ResourceType
	ID   uuid.UUID
}

func (r ResourceRef) String() string {
	return fmt.Sprintf("%s/%s", r.Type, r.ID)
}

// Action is the operation a principal attempts on a resource.
type Action string

const (
	ActionRead   Action = "READ"
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

// ReasonCode explains an access verdict. Denials always carry one; callers
// log it internally but surface only a generic message to end users.
type ReasonCode string

const (
	ReasonOK               ReasonCode = "OK"
	ReasonNotFound         ReasonCode = "NOT_FOUND"
	ReasonWrongInstitution ReasonCode = "WRONG_INSTITUTION"
	ReasonNoApprovedLink   ReasonCode = "NO_APPROVED_LINK"
	ReasonRoleNotPermitted ReasonCode = "ROLE_NOT_PERMITTED"
	ReasonScopeEmpty       ReasonCode = "SCOPE_EMPTY"
)

// Scope names the boundary within which an allow verdict holds.
type Scope string

const (
	ScopeGlobal      Scope = "global"
	ScopeInstitution Scope = "institution"
	ScopeProvince    Scope = "province"
	ScopeApproval    Scope = "approval"
)

// AccessVerdict is the engine's answer for one (principal, resource,
// action) triple. It is a pure function of its inputs and the store
// snapshot; it is never cached across logical operations.
type AccessVerdict struct {
	Allowed bool
	Reason  ReasonCode
	Scope   Scope
}

// Allow builds an allow verdict with the scope that was applied.
func Allow(scope Scope) AccessVerdict {
	return AccessVerdict{Allowed: true, Reason: ReasonOK, Scope: scope}
}

// Deny builds a deny verdict with the given reason.
func Deny(reason ReasonCode) AccessVerdict {
	return AccessVerdict{Allowed: false, Reason: reason}
}

// Deletion models a record's soft-delete state at the domain boundary. The
// nullable-timestamp storage convention is translated to this value in the
// store adapters only.
type Deletion struct {
	at *time.Time
}

// ActiveRecord returns a Deletion for a live record.
func ActiveRecord() Deletion {
	return Deletion{}
}

// DeletedRecordAt returns a Deletion for a record soft-deleted at t.
func DeletedRecordAt(t time.Time) Deletion {
	return Deletion{at: &t}
}

// DeletionFromNullTime translates the nullable deleted_at column.
func DeletionFromNullTime(t sql.NullTime) Deletion {
	if t.Valid {
		return DeletedRecordAt(t.Time)
	}
	return ActiveRecord()
}

// Deleted reports whether the record is soft-deleted.
func (d Deletion) Deleted() bool {
	return d.at != nil
}

// At returns the deletion timestamp when the record is soft-deleted.
func (d Deletion) At() (time.Time, bool) {
	if d.at == nil {
		return time.Time{}, false
	}
	return *d.at, true
}
