// Package store provides persistence for case artifacts: draft reports,
// signed reviews, final reports, case state, and the audit trail, all keyed
// by case identifier. Get methods return (nil, nil) when the artifact does
// not exist; absence is a workflow condition, not a storage error.
package store

import (
	"context"

	"github.com/citl-review-server/internal/domain"
)

// Store defines artifact storage operations for the review workflow.
type Store interface {
	// GetCase retrieves a case record, or nil if the case is unknown.
	GetCase(ctx context.Context, caseID string) (*domain.Case, error)

	// PutCase inserts or updates a case record.
	PutCase(ctx context.Context, c *domain.Case) error

	// ListCases returns case records ordered by last update, newest first.
	ListCases(ctx context.Context, limit, offset int) ([]*domain.Case, error)

	// GetDraft retrieves the active draft report for a case.
	GetDraft(ctx context.Context, caseID string) (*domain.DraftReport, error)

	// PutDraft stores the draft report, replacing a superseded draft.
	PutDraft(ctx context.Context, caseID string, draft *domain.DraftReport) error

	// GetSignedReview retrieves the signed review for a case.
	GetSignedReview(ctx context.Context, caseID string) (*domain.SignedReview, error)

	// PutSignedReview stores a signed review. A resubmission replaces the
	// previous signed review as a whole; signed reviews are never edited.
	PutSignedReview(ctx context.Context, caseID string, signed *domain.SignedReview) error

	// GetFinalReport retrieves the final report for a case.
	GetFinalReport(ctx context.Context, caseID string) (*domain.FinalReport, error)

	// PutFinalReport stores the final report. It fails if one already exists;
	// a final report is written at most once and never overwritten.
	PutFinalReport(ctx context.Context, caseID string, report *domain.FinalReport) error

	// AppendAudit appends one entry to the case's audit trail.
	AppendAudit(ctx context.Context, entry *domain.AuditEntry) error

	// ListAudit returns the audit trail for a case in insertion order.
	ListAudit(ctx context.Context, caseID string) ([]*domain.AuditEntry, error)

	// Close releases storage resources.
	Close() error
}
