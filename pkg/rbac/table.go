package rbac

import "sort"

// capabilitySet is an unordered set of capabilities.
type capabilitySet map[Capability]struct{}

func caps(cs ...Capability) capabilitySet {
	set := make(capabilitySet, len(cs))
	for _, c := range cs {
		set[c] = struct{}{}
	}
	return set
}

// capabilityTable is the single authoritative role-to-capability mapping.
// Every role maps to a non-nil (possibly empty) set. Granting a new
// capability means editing this table; no code path may bypass it.
//
// The table is read-only after package initialization and safe for
// unsynchronized concurrent reads.
var capabilityTable = map[Role]capabilitySet{
	RolePlatformAdmin: caps(
		CapabilityGlobalOverride,
		CapabilityAuditView,
		CapabilityImpersonate,
		CapabilityStaffInvite,
		CapabilityInstitutionManage,
		CapabilityLearnerView,
		CapabilityLearnerEdit,
		CapabilityEnrolmentManage,
		CapabilityReadinessView,
		CapabilityReadinessEdit,
		CapabilityEvidenceView,
		CapabilityDocumentView,
		CapabilityDocumentUpload,
		CapabilitySubmissionReview,
		CapabilityRequestApprove,
	),
	RoleInstitutionAdmin: caps(
		CapabilityImpersonate,
		CapabilityStaffInvite,
		CapabilityInstitutionManage,
		CapabilityLearnerView,
		CapabilityLearnerEdit,
		CapabilityEnrolmentManage,
		CapabilityReadinessView,
		CapabilityReadinessEdit,
		CapabilityDocumentView,
		CapabilityDocumentUpload,
	),
	RoleInstitutionStaff: caps(
		CapabilityLearnerView,
		CapabilityLearnerEdit,
		CapabilityEnrolmentManage,
		CapabilityReadinessView,
		CapabilityReadinessEdit,
		CapabilityDocumentView,
		CapabilityDocumentUpload,
	),
	RoleStudent: caps(
		CapabilityDocumentView,
		CapabilityDocumentUpload,
	),
	RoleAdvisor: caps(
		CapabilityLearnerView,
		CapabilityReadinessView,
		CapabilityDocumentView,
	),
	RoleQCTOSuperAdmin: caps(
		CapabilityGlobalOverride,
		CapabilityAuditView,
		CapabilityImpersonate,
		CapabilityLearnerView,
		CapabilityReadinessView,
		CapabilityEvidenceView,
		CapabilityDocumentView,
		CapabilitySubmissionReview,
		CapabilityRequestApprove,
	),
	RoleQCTOAdmin: caps(
		CapabilityAuditView,
		CapabilityImpersonate,
		CapabilityLearnerView,
		CapabilityReadinessView,
		CapabilityEvidenceView,
		CapabilityDocumentView,
		CapabilitySubmissionReview,
		CapabilityRequestApprove,
	),
	RoleQCTOUser: caps(
		CapabilityLearnerView,
		CapabilityReadinessView,
		CapabilityEvidenceView,
		CapabilityDocumentView,
	),
	RoleQCTOReviewer: caps(
		CapabilityLearnerView,
		CapabilityReadinessView,
		CapabilityEvidenceView,
		CapabilityDocumentView,
		CapabilitySubmissionReview,
	),
	RoleQCTOAuditor: caps(
		CapabilityAuditView,
		CapabilityLearnerView,
		CapabilityReadinessView,
		CapabilityEvidenceView,
		CapabilityDocumentView,
	),
	RoleQCTOViewer: caps(
		CapabilityLearnerView,
		CapabilityReadinessView,
		CapabilityDocumentView,
	),
}

// HasCapability reports whether the role is granted the capability.
// Unknown roles and unknown capabilities return false so that call sites
// fail closed.
func HasCapability(role Role, capability Capability) bool {
	set, ok := capabilityTable[role]
	if !ok {
		return false
	}
	_, ok = set[capability]
	return ok
}

// CapabilitiesForRole returns the capabilities granted to a role, sorted
// for stable iteration. Unknown roles return an empty slice.
func CapabilitiesForRole(role Role) []Capability {
	set := capabilityTable[role]
	out := make([]Capability, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
