// Package workflow orchestrates the clinical review lifecycle: draft
// generation through the quality gate, review submission and signing,
// finalization, and the revision loop. The service owns case state
// transitions and serializes mutating operations per case.
package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/citl-review-server/internal/audit"
	"github.com/citl-review-server/internal/domain"
	"github.com/citl-review-server/internal/finalize"
	"github.com/citl-review-server/internal/pipeline"
	"github.com/citl-review-server/internal/quality"
	"github.com/citl-review-server/internal/review"
	"github.com/citl-review-server/internal/store"
)

// Service coordinates the review workflow for all cases.
type Service struct {
	store    store.Store
	source   pipeline.AnalysisSource
	gate     *quality.Gate
	protocol *review.Protocol
	final    *finalize.Gate
	recorder *audit.Recorder
	logger   *logrus.Logger
	locks    *caseLocks
	now      func() time.Time
}

// NewService creates the workflow service.
func NewService(
	st store.Store,
	source pipeline.AnalysisSource,
	gate *quality.Gate,
	protocol *review.Protocol,
	final *finalize.Gate,
	recorder *audit.Recorder,
	logger *logrus.Logger,
) *Service {
	return &Service{
		store:    st,
		source:   source,
		gate:     gate,
		protocol: protocol,
		final:    final,
		recorder: recorder,
		logger:   logger,
		locks:    newCaseLocks(),
		now:      time.Now,
	}
}

// GenerateDraft fetches the case's analysis output, runs the quality gate,
// and stores the resulting draft report. The case enters DRAFTED (or returns
// there from AWAITING_REVISION when a superseding draft arrives). Degraded
// quality never blocks drafting; the flags travel with the draft.
func (s *Service) GenerateDraft(ctx context.Context, caseID string) (*domain.DraftReport, error) {
	unlock := s.locks.acquire(caseID)
	defer unlock()

	c, err := s.store.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if c != nil && c.State.Terminal() {
		return nil, domain.NewPreconditionError(caseID, fmt.Sprintf("case is %s and accepts no new drafts", c.State))
	}

	data, err := s.source.FetchCaseData(ctx, caseID)
	if err != nil {
		return nil, err
	}

	checks := s.gate.Run(quality.Inputs{
		RegionCounts: data.RegionCounts,
		Findings:     data.Findings,
		Expression:   data.Expression,
		Concordance:  data.Concordance,
	})

	draft := &domain.DraftReport{
		ReportMetadata: domain.ReportMetadata{
			PatientID:  data.PatientID,
			ReportDate: s.now().UTC(),
			Status:     domain.StatusPendingReview,
		},
		QualityChecks:            checks,
		KeyMolecularFindings:     data.Findings,
		TreatmentRecommendations: data.TreatmentRecommendations,
	}

	if err := s.store.PutDraft(ctx, caseID, draft); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if c == nil {
		c = &domain.Case{CaseID: caseID, CreatedAt: now}
	}
	c.State = domain.DRAFTED
	c.UpdatedAt = now
	if err := s.store.PutCase(ctx, c); err != nil {
		return nil, err
	}

	detail := fmt.Sprintf("all_checks_passed=%t flags=%d", checks.AllChecksPassed, len(checks.Flags))
	if err := s.recorder.Record(ctx, caseID, domain.EventDraftGenerated, "", detail); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"case_id":           caseID,
		"patient_id":        data.PatientID,
		"all_checks_passed": checks.AllChecksPassed,
		"findings":          len(data.Findings),
	}).Info("Draft report generated")

	return draft, nil
}

// GetDraft returns the active draft for a case. The case transitions to
// UNDER_REVIEW on first retrieval: handing the draft to a reviewer is what
// opens the review.
func (s *Service) GetDraft(ctx context.Context, caseID string) (*domain.DraftReport, error) {
	unlock := s.locks.acquire(caseID)
	defer unlock()

	draft, err := s.store.GetDraft(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if draft == nil {
		return nil, domain.NewMissingArtifactError(caseID, finalize.ArtifactDraftReport)
	}

	c, err := s.store.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if c != nil && c.State == domain.DRAFTED {
		c.State = domain.UNDER_REVIEW
		c.UpdatedAt = s.now().UTC()
		if err := s.store.PutCase(ctx, c); err != nil {
			return nil, err
		}
	}

	return draft, nil
}

// SubmitReview validates and signs an externally authored review document and
// stores the signed form. Submission requires an active draft and a
// non-terminal case.
func (s *Service) SubmitReview(ctx context.Context, caseID string, doc *domain.ReviewDocument) (*domain.SignedReview, error) {
	unlock := s.locks.acquire(caseID)
	defer unlock()

	c, err := s.store.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if c != nil && c.State.Terminal() {
		return nil, domain.NewPreconditionError(caseID, fmt.Sprintf("case is %s and accepts no further reviews", c.State))
	}

	draft, err := s.store.GetDraft(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if draft == nil {
		return nil, domain.NewMissingArtifactError(caseID, finalize.ArtifactDraftReport)
	}

	if c != nil {
		doc.RevisionCount = c.RevisionCount
	}

	signed, err := s.protocol.Process(doc)
	if err != nil {
		return nil, err
	}

	if err := s.store.PutSignedReview(ctx, caseID, signed); err != nil {
		return nil, err
	}

	if c != nil && c.State == domain.DRAFTED {
		c.State = domain.UNDER_REVIEW
		c.UpdatedAt = s.now().UTC()
		if err := s.store.PutCase(ctx, c); err != nil {
			return nil, err
		}
	}

	detail := fmt.Sprintf("decision=%s", signed.Decision.Status)
	if err := s.recorder.Record(ctx, caseID, domain.EventReviewSubmitted, signed.Reviewer.Name, detail); err != nil {
		return nil, err
	}

	return signed, nil
}

// Finalize applies the finalization gate to the case's stored artifacts and
// commits the resulting state transition. On APPROVE the final report is
// written exactly once; on REVISE the case awaits a superseding draft; on
// REJECT the case closes.
func (s *Service) Finalize(ctx context.Context, caseID string) (*finalize.Outcome, error) {
	unlock := s.locks.acquire(caseID)
	defer unlock()

	draft, err := s.store.GetDraft(ctx, caseID)
	if err != nil {
		return nil, err
	}
	signed, err := s.store.GetSignedReview(ctx, caseID)
	if err != nil {
		return nil, err
	}
	existing, err := s.store.GetFinalReport(ctx, caseID)
	if err != nil {
		return nil, err
	}

	outcome, err := s.final.Decide(caseID, draft, signed, existing)
	if err != nil {
		return nil, err
	}

	c, err := s.store.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if c == nil {
		c = &domain.Case{CaseID: caseID, CreatedAt: now}
	}

	var event string
	switch outcome.State {
	case domain.APPROVED:
		if err := s.store.PutFinalReport(ctx, caseID, outcome.FinalReport); err != nil {
			return nil, err
		}
		event = domain.EventReportApproved
	case domain.AWAITING_REVISION:
		c.RevisionCount++
		event = domain.EventRevisionRequested
	case domain.CLOSED_REJECTED:
		event = domain.EventCaseRejected
	}

	c.State = outcome.State
	c.UpdatedAt = now
	if err := s.store.PutCase(ctx, c); err != nil {
		return nil, err
	}

	detail := fmt.Sprintf("decision=%s state=%s", outcome.Decision, outcome.State)
	if err := s.recorder.Record(ctx, caseID, event, signed.Reviewer.Name, detail); err != nil {
		return nil, err
	}

	return outcome, nil
}

// RequestReanalysis forwards revision parameters to the analysis pipeline.
// Only a case awaiting revision can be reanalyzed; the instructions come from
// the signed review, never from the caller.
func (s *Service) RequestReanalysis(ctx context.Context, caseID string) error {
	unlock := s.locks.acquire(caseID)
	defer unlock()

	c, err := s.store.GetCase(ctx, caseID)
	if err != nil {
		return err
	}
	if c == nil || c.State != domain.AWAITING_REVISION {
		return domain.NewPreconditionError(caseID, "case is not awaiting revision")
	}

	signed, err := s.store.GetSignedReview(ctx, caseID)
	if err != nil {
		return err
	}
	if signed == nil {
		return domain.NewMissingArtifactError(caseID, finalize.ArtifactSignedReview)
	}

	var params map[string]interface{}
	if signed.RevisionInstructions != nil {
		params = signed.RevisionInstructions.ReanalysisParameters
	}

	if err := s.source.RequestReanalysis(ctx, caseID, params); err != nil {
		return err
	}

	return s.recorder.Record(ctx, caseID, domain.EventReanalysisRequested, signed.Reviewer.Name, "")
}

// GetFinalReport returns the approved final report for a case.
func (s *Service) GetFinalReport(ctx context.Context, caseID string) (*domain.FinalReport, error) {
	report, err := s.store.GetFinalReport(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, domain.NewPreconditionError(caseID, "no final report exists")
	}
	return report, nil
}

// CaseState returns the case record, or a precondition error for an unknown
// case.
func (s *Service) CaseState(ctx context.Context, caseID string) (*domain.Case, error) {
	c, err := s.store.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, domain.NewPreconditionError(caseID, "unknown case")
	}
	return c, nil
}

// ListCases returns case records ordered by last update, newest first.
func (s *Service) ListCases(ctx context.Context, limit, offset int) ([]*domain.Case, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.ListCases(ctx, limit, offset)
}

// AuditTrail returns the case's audit entries in insertion order.
func (s *Service) AuditTrail(ctx context.Context, caseID string) ([]*domain.AuditEntry, error) {
	return s.store.ListAudit(ctx, caseID)
}
