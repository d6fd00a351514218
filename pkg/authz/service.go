package authz

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/exp/slices"

	pkgerrors "github.com/accredia/compliance-core/pkg/errors"
	"github.com/accredia/compliance-core/pkg/rbac"
)

// Service is the access decision engine. It is stateless apart from the
// injected store and safe for concurrent use.
type Service struct {
	store ResourceStore
}

// NewService creates a new access decision service.
func NewService(store ResourceStore) *Service {
	return &Service{
		store: store,
	}
}

// CheckAccess answers whether the principal may perform the action on the
// resource. It never returns an error for "not authorized"; denials come
// back as a structured verdict with a reason code. A non-nil error means an
// infrastructure failure and the accompanying verdict is always a deny, so
// callers that ignore the error still fail closed.
func (s *Service) CheckAccess(ctx context.Context, principal Principal, ref ResourceRef, action Action) (AccessVerdict, error) {
	// Global override bypasses every scope check, including soft-delete and
	// approval gating.
	if rbac.IsGlobalOverride(principal.Role) {
		return Allow(ScopeGlobal), nil
	}

	// Fail fast for roles with no access rule of their own. No store
	// lookups are performed on this path.
	if !rbac.IsInstitutionRole(principal.Role) && !rbac.IsRegulatorRole(principal.Role) {
		return Deny(ReasonRoleNotPermitted), nil
	}

	owner, err := s.store.ResolveOwner(ctx, ref)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Deny(ReasonNotFound), nil
		}
		slog.Error("owner resolution failed", "resource", ref, "err", err)
		return Deny(ReasonNotFound), pkgerrors.InternalWrap(err, "resolving resource owner")
	}
	if owner.Deletion.Deleted() {
		return Deny(ReasonNotFound), nil
	}

	if rbac.IsInstitutionRole(principal.Role) {
		if principal.InstitutionID == nil || *principal.InstitutionID != owner.InstitutionID {
			return Deny(ReasonWrongInstitution), nil
		}
		return Allow(ScopeInstitution), nil
	}

	// Approval gating is a read grant only. A regulator never mutates
	// institution data, linked or not.
	if action != ActionRead {
		return Deny(ReasonRoleNotPermitted), nil
	}

	// Regulator roles read through approval-gated links: an APPROVED
	// submission grants access and short-circuits; only on a miss is the
	// request table consulted.
	return s.checkApprovedLink(ctx, ref)
}

func (s *Service) checkApprovedLink(ctx context.Context, ref ResourceRef) (AccessVerdict, error) {
	query := ApprovedLink(ref)

	linked, err := s.store.HasSubmissionLink(ctx, query)
	if err != nil {
		return Deny(ReasonNoApprovedLink), pkgerrors.InternalWrap(err, "querying submission links")
	}
	if linked {
		return Allow(ScopeApproval), nil
	}

	linked, err = s.store.HasRequestLink(ctx, query)
	if err != nil {
		return Deny(ReasonNoApprovedLink), pkgerrors.InternalWrap(err, "querying request links")
	}
	if linked {
		return Allow(ScopeApproval), nil
	}
	return Deny(ReasonNoApprovedLink), nil
}

// AssertAccess is CheckAccess for callers that want an error instead of a
// verdict. Denials become a FORBIDDEN error with the reason in the details;
// the message stays generic so it can be surfaced to end users as-is.
func (s *Service) AssertAccess(ctx context.Context, principal Principal, ref ResourceRef, action Action) error {
	verdict, err := s.CheckAccess(ctx, principal, ref, action)
	if err != nil {
		return err
	}
	if !verdict.Allowed {
		return pkgerrors.Forbidden("access denied").
			WithDetail("reason", string(verdict.Reason)).
			WithDetail("resource", ref.String()).
			WithDetail("action", string(action))
	}
	return nil
}

// CanImpersonate decides whether the impersonator may open an impersonation
// session targeting the given user. The rule family mirrors province-scoped
// delegation:
//
//   - global override roles may impersonate anyone
//   - the top-level regulator admin may impersonate any regulator role
//   - a scoped regulator admin may impersonate regulator roles sharing at
//     least one assigned province, excluding the top-level role
//   - an institution admin may impersonate staff and students of the same
//     institution
//
// Everything else is denied.
func (s *Service) CanImpersonate(ctx context.Context, impersonator Principal, targetUserID uuid.UUID) (AccessVerdict, error) {
	target, err := s.store.GetUserScope(ctx, targetUserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Deny(ReasonNotFound), nil
		}
		return Deny(ReasonNotFound), pkgerrors.InternalWrap(err, "resolving impersonation target")
	}
	if target.Deletion.Deleted() {
		return Deny(ReasonNotFound), nil
	}

	// The top-level regulator admin is global for resource access but may
	// only step into regulator identities.
	if impersonator.Role == rbac.RoleQCTOSuperAdmin {
		if !rbac.IsRegulatorRole(target.Role) {
			return Deny(ReasonRoleNotPermitted), nil
		}
		return Allow(ScopeGlobal), nil
	}
	if rbac.IsGlobalOverride(impersonator.Role) {
		return Allow(ScopeGlobal), nil
	}

	switch impersonator.Role {
	case rbac.RoleQCTOAdmin:
		if !rbac.IsRegulatorRole(target.Role) || target.Role == rbac.RoleQCTOSuperAdmin {
			return Deny(ReasonRoleNotPermitted), nil
		}
		// A scope-less admin matches nothing, never everything.
		if len(impersonator.AssignedProvinces) == 0 {
			return Deny(ReasonScopeEmpty), nil
		}
		if !sharesProvince(impersonator.AssignedProvinces, target.AssignedProvinces) {
			return Deny(ReasonScopeEmpty), nil
		}
		return Allow(ScopeProvince), nil

	case rbac.RoleInstitutionAdmin:
		switch target.Role {
		case rbac.RoleInstitutionStaff, rbac.RoleStudent:
		default:
			return Deny(ReasonRoleNotPermitted), nil
		}
		if impersonator.InstitutionID == nil || target.InstitutionID == nil ||
			*impersonator.InstitutionID != *target.InstitutionID {
			return Deny(ReasonWrongInstitution), nil
		}
		return Allow(ScopeInstitution), nil
	}

	return Deny(ReasonRoleNotPermitted), nil
}

func sharesProvince(a, b []string) bool {
	for _, province := range a {
		if slices.Contains(b, province) {
			return true
		}
	}
	return false
}
