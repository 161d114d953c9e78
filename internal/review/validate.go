package review

import (
	"github.com/citl-review-server/internal/domain"
)

// Validate checks a review document against the fixed schema. It collects
// every violation so the reviewer can correct the document in one pass.
// A document is valid only if all required fields are present, the decision
// is one of the three enumerated values, all four attestation booleans are
// true, and a non-APPROVE decision carries revision instructions with a
// non-empty issue list.
func Validate(doc *domain.ReviewDocument) error {
	var errs domain.ValidationErrors

	if doc.PatientID == "" {
		errs = append(errs, domain.NewValidationError("patient_id", "is required", nil))
	}
	if doc.ReportDate == "" {
		errs = append(errs, domain.NewValidationError("report_date", "is required", nil))
	}
	if doc.ReviewDate == "" {
		errs = append(errs, domain.NewValidationError("review_date", "is required", nil))
	}
	if doc.Reviewer.Name == "" {
		errs = append(errs, domain.NewValidationError("reviewer.name", "is required", nil))
	}
	if doc.Reviewer.Credentials == "" {
		errs = append(errs, domain.NewValidationError("reviewer.credentials", "is required", nil))
	}

	if !doc.Decision.Status.Valid() {
		errs = append(errs, domain.NewValidationError("decision.status",
			"must be one of APPROVE, REVISE, REJECT", string(doc.Decision.Status)))
	}
	if doc.Decision.Rationale == "" {
		errs = append(errs, domain.NewValidationError("decision.rationale", "is required", nil))
	}

	errs = append(errs, validateAttestation(doc.Attestation)...)
	errs = append(errs, validateFindingValidations(doc.PerFindingValidation)...)

	// REVISE and REJECT must say what to fix; the decision is unactionable
	// without a concrete issue list.
	if doc.Decision.Status.Valid() && doc.Decision.Status != domain.APPROVE {
		switch {
		case doc.RevisionInstructions == nil:
			errs = append(errs, domain.NewValidationError("revision_instructions",
				"required when decision is REVISE or REJECT", nil))
		case len(doc.RevisionInstructions.IssuesToAddress) == 0:
			errs = append(errs, domain.NewValidationError("revision_instructions.issues_to_address",
				"must not be empty", nil))
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateAttestation(a domain.Attestation) domain.ValidationErrors {
	var errs domain.ValidationErrors
	if !a.ReviewedAllFindings {
		errs = append(errs, domain.NewValidationError("attestation.reviewed_all_findings",
			"must be affirmed", a.ReviewedAllFindings))
	}
	if !a.AssessedCompliance {
		errs = append(errs, domain.NewValidationError("attestation.assessed_compliance",
			"must be affirmed", a.AssessedCompliance))
	}
	if !a.ClinicalJudgment {
		errs = append(errs, domain.NewValidationError("attestation.clinical_judgment",
			"must be affirmed", a.ClinicalJudgment))
	}
	if !a.MedicalRecordAcknowledgment {
		errs = append(errs, domain.NewValidationError("attestation.medical_record_acknowledgment",
			"must be affirmed", a.MedicalRecordAcknowledgment))
	}
	return errs
}

func validateFindingValidations(validations []domain.FindingValidation) domain.ValidationErrors {
	var errs domain.ValidationErrors
	for i, v := range validations {
		if v.FindingID == "" {
			errs = append(errs, domain.NewValidationError("per_finding_validation.finding_id",
				"is required", i))
		}
		if !v.ValidationStatus.Valid() {
			errs = append(errs, domain.NewValidationError("per_finding_validation.validation_status",
				"must be one of CONFIRMED, DISPUTED, UNCERTAIN", string(v.ValidationStatus)))
		}
	}
	return errs
}
