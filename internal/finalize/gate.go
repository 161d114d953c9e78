// Package finalize implements the finalization state machine. The gate is a
// pure decision over already-materialized artifacts: it either emits the
// final, clinically approved report or names the precondition that blocks
// finalization. It invents no content; everything in the final report is
// copied from the draft report and the signed review.
package finalize

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/citl-review-server/internal/domain"
)

// Artifact names used in precondition errors.
const (
	ArtifactDraftReport  = "draft_report"
	ArtifactSignedReview = "signed_review"
)

// Outcome is the result of a legal finalization decision. Exactly one of the
// three decision branches applies: APPROVE carries the final report, REVISE
// carries the revision instructions, REJECT carries neither.
type Outcome struct {
	CaseID               string                       `json:"case_id"`
	State                domain.CaseState             `json:"state"`
	Decision             domain.DecisionStatus        `json:"decision"`
	FinalReport          *domain.FinalReport          `json:"final_report,omitempty"`
	RevisionInstructions *domain.RevisionInstructions `json:"revision_instructions,omitempty"`
}

// Gate applies the finalization legality rules.
type Gate struct {
	logger *logrus.Logger
	now    func() time.Time
}

// NewGate creates a finalization gate.
func NewGate(logger *logrus.Logger) *Gate {
	return &Gate{logger: logger, now: time.Now}
}

// Decide evaluates finalization for one case. Preconditions: the draft report
// and signed review must both exist, and no final report may exist yet;
// re-running finalization against an approved case is an explicit error,
// never a silent re-emit.
func (g *Gate) Decide(caseID string, draft *domain.DraftReport, signed *domain.SignedReview, existing *domain.FinalReport) (*Outcome, error) {
	if existing != nil {
		return nil, domain.NewPreconditionError(caseID, "report already finalized")
	}
	if draft == nil {
		return nil, domain.NewMissingArtifactError(caseID, ArtifactDraftReport)
	}
	if signed == nil {
		return nil, domain.NewMissingArtifactError(caseID, ArtifactSignedReview)
	}

	decision := signed.Decision.Status
	g.logger.WithFields(logrus.Fields{
		"case_id":  caseID,
		"decision": decision,
		"reviewer": signed.Reviewer.Name,
	}).Info("Evaluating finalization")

	switch decision {
	case domain.APPROVE:
		return &Outcome{
			CaseID:      caseID,
			State:       domain.APPROVED,
			Decision:    decision,
			FinalReport: g.stampFinalReport(draft, signed),
		}, nil

	case domain.REVISE:
		return &Outcome{
			CaseID:               caseID,
			State:                domain.AWAITING_REVISION,
			Decision:             decision,
			RevisionInstructions: signed.RevisionInstructions,
		}, nil

	case domain.REJECT:
		return &Outcome{
			CaseID:   caseID,
			State:    domain.CLOSED_REJECTED,
			Decision: decision,
		}, nil

	default:
		// A signed review always carries a validated decision; reaching this
		// branch means the stored artifact was tampered with.
		return nil, domain.NewPreconditionError(caseID, "signed review carries an unknown decision")
	}
}

// stampFinalReport copies the draft content and stamps approval metadata and
// the clinical attestation from the signed review.
func (g *Gate) stampFinalReport(draft *domain.DraftReport, signed *domain.SignedReview) *domain.FinalReport {
	approvedAt := g.now().UTC()

	metadata := draft.ReportMetadata
	metadata.Status = domain.StatusClinicallyApproved
	metadata.Reviewer = signed.Reviewer.Name
	metadata.ApprovalDate = &approvedAt

	return &domain.FinalReport{
		ReportMetadata:           metadata,
		QualityChecks:            draft.QualityChecks,
		KeyMolecularFindings:     draft.KeyMolecularFindings,
		TreatmentRecommendations: draft.TreatmentRecommendations,
		ClinicalAttestation:      signed.Attestation,
	}
}
