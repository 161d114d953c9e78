package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCaseStateTerminal(t *testing.T) {
	assert.True(t, APPROVED.Terminal())
	assert.True(t, CLOSED_REJECTED.Terminal())
	assert.False(t, DRAFTED.Terminal())
	assert.False(t, UNDER_REVIEW.Terminal())
	assert.False(t, AWAITING_REVISION.Terminal())
}

func TestDecisionStatusValid(t *testing.T) {
	assert.True(t, APPROVE.Valid())
	assert.True(t, REVISE.Valid())
	assert.True(t, REJECT.Valid())
	assert.False(t, DecisionStatus("").Valid())
	assert.False(t, DecisionStatus("ESCALATE").Valid())
}

func TestAttestationComplete(t *testing.T) {
	full := Attestation{
		ReviewedAllFindings:         true,
		AssessedCompliance:          true,
		ClinicalJudgment:            true,
		MedicalRecordAcknowledgment: true,
	}
	assert.True(t, full.Complete())

	partial := full
	partial.MedicalRecordAcknowledgment = false
	assert.False(t, partial.Complete())

	assert.False(t, Attestation{}.Complete())
}
