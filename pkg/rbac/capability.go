package rbac

// Capability is an opaque named permission grantable to a role. Call sites
// check capabilities through HasCapability only; nothing else may grant
// access.
type Capability string

const (
	// Cross-cutting
	CapabilityGlobalOverride Capability = "GLOBAL_OVERRIDE"
	CapabilityAuditView      Capability = "AUDIT_VIEW"
	CapabilityImpersonate    Capability = "IMPERSONATE"

	// Institution administration
	CapabilityStaffInvite       Capability = "STAFF_INVITE"
	CapabilityInstitutionManage Capability = "INSTITUTION_MANAGE"

	// Learner and enrolment management
	CapabilityLearnerView     Capability = "LEARNER_VIEW"
	CapabilityLearnerEdit     Capability = "LEARNER_EDIT"
	CapabilityEnrolmentManage Capability = "ENROLMENT_MANAGE"

	// Readiness and evidence
	CapabilityReadinessView Capability = "READINESS_VIEW"
	CapabilityReadinessEdit Capability = "READINESS_EDIT"
	CapabilityEvidenceView  Capability = "EVIDENCE_VIEW"

	// Documents
	CapabilityDocumentView   Capability = "DOCUMENT_VIEW"
	CapabilityDocumentUpload Capability = "DOCUMENT_UPLOAD"

	// Regulator review workflow
	CapabilitySubmissionReview Capability = "SUBMISSION_REVIEW"
	CapabilityRequestApprove   Capability = "REQUEST_APPROVE"
)
