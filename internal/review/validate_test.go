package review

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citl-review-server/internal/domain"
)

func fieldNames(err error) []string {
	errs, ok := err.(domain.ValidationErrors)
	if !ok {
		return nil
	}
	names := make([]string, 0, len(errs))
	for _, e := range errs {
		names = append(names, e.Field)
	}
	return names
}

func TestValidate_ValidApproval(t *testing.T) {
	assert.NoError(t, Validate(sampleDocument()))
}

func TestValidate_MissingRequiredFields(t *testing.T) {
	doc := sampleDocument()
	doc.PatientID = ""
	doc.Reviewer.Name = ""
	doc.Decision.Rationale = ""

	err := Validate(doc)
	require.Error(t, err)

	fields := fieldNames(err)
	assert.Contains(t, fields, "patient_id")
	assert.Contains(t, fields, "reviewer.name")
	assert.Contains(t, fields, "decision.rationale")
}

func TestValidate_InvalidDecisionStatus(t *testing.T) {
	doc := sampleDocument()
	doc.Decision.Status = "MAYBE"

	err := Validate(doc)
	require.Error(t, err)
	assert.Contains(t, fieldNames(err), "decision.status")
}

func TestValidate_IncompleteAttestation(t *testing.T) {
	doc := sampleDocument()
	doc.Attestation.ClinicalJudgment = false

	err := Validate(doc)
	require.Error(t, err)
	assert.Contains(t, fieldNames(err), "attestation.clinical_judgment")
}

func TestValidate_ReviseRequiresInstructions(t *testing.T) {
	doc := sampleDocument()
	doc.Decision.Status = domain.REVISE
	doc.RevisionInstructions = nil

	err := Validate(doc)
	require.Error(t, err)
	assert.Contains(t, fieldNames(err), "revision_instructions")
}

func TestValidate_RejectRequiresNonEmptyIssues(t *testing.T) {
	doc := sampleDocument()
	doc.Decision.Status = domain.REJECT
	doc.RevisionInstructions = &domain.RevisionInstructions{}

	err := Validate(doc)
	require.Error(t, err)
	assert.Contains(t, fieldNames(err), "revision_instructions.issues_to_address")
}

func TestValidate_ReviseWithIssuesIsValid(t *testing.T) {
	doc := sampleDocument()
	doc.Decision.Status = domain.REVISE
	doc.RevisionInstructions = &domain.RevisionInstructions{
		IssuesToAddress: []string{"confirm ERBB2 amplification with FISH"},
	}

	assert.NoError(t, Validate(doc))
}

func TestValidate_ApproveDoesNotRequireInstructions(t *testing.T) {
	doc := sampleDocument()
	doc.RevisionInstructions = nil

	assert.NoError(t, Validate(doc))
}

func TestValidate_InvalidFindingValidation(t *testing.T) {
	doc := sampleDocument()
	doc.PerFindingValidation = append(doc.PerFindingValidation, domain.FindingValidation{
		FindingID:        "",
		ValidationStatus: "PROBABLY",
	})

	err := Validate(doc)
	require.Error(t, err)

	fields := fieldNames(err)
	assert.Contains(t, fields, "per_finding_validation.finding_id")
	assert.Contains(t, fields, "per_finding_validation.validation_status")
}

func TestValidate_CollectsAllViolations(t *testing.T) {
	doc := &domain.ReviewDocument{}

	err := Validate(doc)
	require.Error(t, err)

	errs, ok := err.(domain.ValidationErrors)
	require.True(t, ok)
	// Every missing field reported in a single pass, not just the first.
	assert.GreaterOrEqual(t, len(errs), 8)
}
