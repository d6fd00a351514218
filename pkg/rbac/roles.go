package rbac

import "fmt"

// Role identifies one of the closed set of platform roles. Roles are
// assigned by the upstream identity layer and are immutable for the
// lifetime of a request.
type Role string

const (
	RolePlatformAdmin    Role = "platform_admin"
	RoleInstitutionAdmin Role = "institution_admin"
	RoleInstitutionStaff Role = "institution_staff"
	RoleStudent          Role = "student"
	RoleAdvisor          Role = "advisor"
	RoleQCTOSuperAdmin   Role = "qcto_super_admin"
	RoleQCTOAdmin        Role = "qcto_admin"
	RoleQCTOUser         Role = "qcto_user"
	RoleQCTOReviewer     Role = "qcto_reviewer"
	RoleQCTOAuditor      Role = "qcto_auditor"
	RoleQCTOViewer       Role = "qcto_viewer"
)

// AllRoles lists every role known to the platform. The capability table is
// keyed by this set; a role missing from it is a programming error caught
// by tests.
var AllRoles = []Role{
	RolePlatformAdmin,
	RoleInstitutionAdmin,
	RoleInstitutionStaff,
	RoleStudent,
	RoleAdvisor,
	RoleQCTOSuperAdmin,
	RoleQCTOAdmin,
	RoleQCTOUser,
	RoleQCTOReviewer,
	RoleQCTOAuditor,
	RoleQCTOViewer,
}

// ParseRole validates a raw role string against the closed enumeration.
func ParseRole(s string) (Role, error) {
	for _, r := range AllRoles {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role: %q", s)
}

// IsRegulatorRole reports whether the role belongs to the regulator (QCTO)
// family.
func IsRegulatorRole(role Role) bool {
	switch role {
	case RoleQCTOSuperAdmin, RoleQCTOAdmin, RoleQCTOUser, RoleQCTOReviewer, RoleQCTOAuditor, RoleQCTOViewer:
		return true
	}
	return false
}

// IsInstitutionRole reports whether the role is scoped to a single
// institution. Students and advisors act within their institution's
// boundary just like staff.
func IsInstitutionRole(role Role) bool {
	switch role {
	case RoleInstitutionAdmin, RoleInstitutionStaff, RoleStudent, RoleAdvisor:
		return true
	}
	return false
}

// IsGlobalOverride reports whether the role carries the global override
// capability and therefore bypasses all scope checks.
func IsGlobalOverride(role Role) bool {
	return HasCapability(role, CapabilityGlobalOverride)
}
