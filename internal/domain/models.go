package domain

import (
	"time"
)

// Core Enums and Types

// CaseState represents the position of a case in the review workflow.
type CaseState string

const (
	DRAFTED           CaseState = "DRAFTED"
	UNDER_REVIEW      CaseState = "UNDER_REVIEW"
	APPROVED          CaseState = "APPROVED"
	AWAITING_REVISION CaseState = "AWAITING_REVISION"
	CLOSED_REJECTED   CaseState = "CLOSED_REJECTED"
)

// Terminal reports whether the state accepts no further review submissions.
// AWAITING_REVISION is not terminal: a superseding draft re-enters the loop.
func (s CaseState) Terminal() bool {
	return s == APPROVED || s == CLOSED_REJECTED
}

// DecisionStatus represents the reviewer's decision on a draft report.
type DecisionStatus string

const (
	APPROVE DecisionStatus = "APPROVE"
	REVISE  DecisionStatus = "REVISE"
	REJECT  DecisionStatus = "REJECT"
)

// Valid reports whether the status is one of the three enumerated decisions.
func (d DecisionStatus) Valid() bool {
	return d == APPROVE || d == REVISE || d == REJECT
}

// ValidationStatus represents a reviewer's verdict on a single finding.
type ValidationStatus string

const (
	CONFIRMED ValidationStatus = "CONFIRMED"
	DISPUTED  ValidationStatus = "DISPUTED"
	UNCERTAIN ValidationStatus = "UNCERTAIN"
)

// Valid reports whether the status is one of the enumerated values.
func (v ValidationStatus) Valid() bool {
	return v == CONFIRMED || v == DISPUTED || v == UNCERTAIN
}

// Severity grades a quality check outcome.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Report statuses carried in report_metadata.status.
const (
	StatusPendingReview      = "pending_review"
	StatusClinicallyApproved = "clinically_approved"
)

// Fixed quality check names. The set is closed; checks_detail always carries
// exactly these four keys.
const (
	CheckSampleSizeAdequate    = "sample_size_adequate"
	CheckFDRThresholdsMet      = "fdr_thresholds_met"
	CheckDataCompleteness      = "data_completeness"
	CheckConsistencyCrossModal = "consistency_cross_modal"
)

// CheckNames lists the fixed checks in evaluation order.
var CheckNames = []string{
	CheckSampleSizeAdequate,
	CheckFDRThresholdsMet,
	CheckDataCompleteness,
	CheckConsistencyCrossModal,
}

// Case Models

// Case tracks one patient/report unit through the workflow.
type Case struct {
	CaseID        string    `json:"case_id"`
	State         CaseState `json:"state"`
	RevisionCount int       `json:"revision_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Draft Report Models

// ReportMetadata identifies a report and its lifecycle status.
type ReportMetadata struct {
	PatientID    string     `json:"patient_id"`
	ReportDate   time.Time  `json:"report_date"`
	Status       string     `json:"status"`
	Reviewer     string     `json:"reviewer,omitempty"`
	ApprovalDate *time.Time `json:"approval_date,omitempty"`
}

// MolecularFinding represents one key finding from the analysis pipeline.
type MolecularFinding struct {
	FindingID            string  `json:"finding_id"`
	Gene                 string  `json:"gene"`
	Log2FoldChange       float64 `json:"log2_fold_change"`
	FDR                  float64 `json:"fdr"`
	Confidence           string  `json:"confidence"`
	ClinicalSignificance string  `json:"clinical_significance"`
}

// TreatmentRecommendation represents a candidate therapy recommendation.
type TreatmentRecommendation struct {
	Therapy       string   `json:"therapy"`
	Rationale     string   `json:"rationale"`
	EvidenceLevel string   `json:"evidence_level,omitempty"`
	Targets       []string `json:"targets,omitempty"`
}

// CheckOutcome is the per-check result of one quality check.
type CheckOutcome struct {
	Passed         bool     `json:"passed"`
	Severity       Severity `json:"severity"`
	Message        string   `json:"message"`
	Recommendation string   `json:"recommendation"`
}

// QualityFlag surfaces a failed check to the reviewer.
type QualityFlag struct {
	Check          string   `json:"check"`
	Severity       Severity `json:"severity"`
	Message        string   `json:"message"`
	Recommendation string   `json:"recommendation"`
}

// QualityCheckResult aggregates the four fixed checks.
// Invariant: AllChecksPassed is true iff every outcome in ChecksDetail passed.
type QualityCheckResult struct {
	AllChecksPassed bool                    `json:"all_checks_passed"`
	Flags           []QualityFlag           `json:"flags"`
	ChecksDetail    map[string]CheckOutcome `json:"checks_detail"`
}

// DraftReport is the unreviewed, quality-annotated candidate report.
// It is immutable once created; a superseding draft replaces it wholesale.
type DraftReport struct {
	ReportMetadata           ReportMetadata            `json:"report_metadata"`
	QualityChecks            QualityCheckResult        `json:"quality_checks"`
	KeyMolecularFindings     []MolecularFinding        `json:"key_molecular_findings"`
	TreatmentRecommendations []TreatmentRecommendation `json:"treatment_recommendations"`
}

// Review Models

// Reviewer identifies the credentialed human reviewer.
type Reviewer struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Credentials string `json:"credentials"`
	Role        string `json:"role"`
}

// Decision carries the reviewer's outcome and rationale.
type Decision struct {
	Status    DecisionStatus `json:"status"`
	Rationale string         `json:"rationale"`
}

// FindingValidation is the reviewer's verdict on one finding.
type FindingValidation struct {
	FindingID        string           `json:"finding_id"`
	Gene             string           `json:"gene,omitempty"`
	ValidationStatus ValidationStatus `json:"validation_status"`
	Comments         string           `json:"comments,omitempty"`
}

// GuidelineCompliance records alignment with clinical guidelines.
type GuidelineCompliance struct {
	NCCNAligned          string `json:"nccn_aligned"`
	InstitutionalAligned string `json:"institutional_aligned"`
}

// Attestation is the reviewer's block of four affirmations. SignatureHash is
// populated only on a signed review.
type Attestation struct {
	ReviewedAllFindings         bool   `json:"reviewed_all_findings"`
	AssessedCompliance          bool   `json:"assessed_compliance"`
	ClinicalJudgment            bool   `json:"clinical_judgment"`
	MedicalRecordAcknowledgment bool   `json:"medical_record_acknowledgment"`
	SignatureHash               string `json:"signature_hash,omitempty"`
}

// Complete reports whether all four affirmations are true.
func (a Attestation) Complete() bool {
	return a.ReviewedAllFindings && a.AssessedCompliance &&
		a.ClinicalJudgment && a.MedicalRecordAcknowledgment
}

// RevisionInstructions accompanies a REVISE or REJECT decision.
type RevisionInstructions struct {
	IssuesToAddress      []string               `json:"issues_to_address"`
	ReanalysisParameters map[string]interface{} `json:"reanalysis_parameters,omitempty"`
	ResubmissionDate     string                 `json:"resubmission_date,omitempty"`
}

// ReviewDocument is the externally authored review of a draft report.
// RevisionInstructions is mandatory when Decision.Status is REVISE or REJECT;
// the invariant is enforced by review.Validate before signing.
type ReviewDocument struct {
	PatientID                      string                `json:"patient_id"`
	ReportDate                     string                `json:"report_date"`
	Reviewer                       Reviewer              `json:"reviewer"`
	ReviewDate                     string                `json:"review_date"`
	Decision                       Decision              `json:"decision"`
	PerFindingValidation           []FindingValidation   `json:"per_finding_validation"`
	GuidelineCompliance            GuidelineCompliance   `json:"guideline_compliance"`
	QualityFlagsAssessment         []string              `json:"quality_flags_assessment"`
	TreatmentRecommendationsReview []string              `json:"treatment_recommendations_review"`
	Attestation                    Attestation           `json:"attestation"`
	RevisionInstructions           *RevisionInstructions `json:"revision_instructions,omitempty"`
	RevisionCount                  int                   `json:"revision_count"`
}

// SignedReview is a validated ReviewDocument whose attestation carries the
// canonical SHA-256 signature hash. Created once; never mutated.
type SignedReview struct {
	ReviewDocument
	SignedAt time.Time `json:"signed_at"`
}

// Final Report Models

// FinalReport is the case's terminal artifact, created only on APPROVE.
// All content is copied from the draft report and signed review.
type FinalReport struct {
	ReportMetadata           ReportMetadata            `json:"report_metadata"`
	QualityChecks            QualityCheckResult        `json:"quality_checks"`
	KeyMolecularFindings     []MolecularFinding        `json:"key_molecular_findings"`
	TreatmentRecommendations []TreatmentRecommendation `json:"treatment_recommendations"`
	ClinicalAttestation      Attestation               `json:"clinical_attestation"`
}

// Audit Models

// AuditEntry is one append-only record of a workflow event.
type AuditEntry struct {
	ID        string    `json:"id"`
	CaseID    string    `json:"case_id"`
	Event     string    `json:"event"`
	Actor     string    `json:"actor,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Audit event names.
const (
	EventDraftGenerated      = "draft_generated"
	EventReviewSubmitted     = "review_submitted"
	EventReportApproved      = "report_approved"
	EventRevisionRequested   = "revision_requested"
	EventCaseRejected        = "case_rejected"
	EventReanalysisRequested = "reanalysis_requested"
)
