// Package audit records workflow events to the append-only audit trail and
// mirrors them to the structured log.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/citl-review-server/internal/domain"
)

// Sink persists audit entries.
type Sink interface {
	AppendAudit(ctx context.Context, entry *domain.AuditEntry) error
}

// Recorder writes audit entries to a sink.
type Recorder struct {
	sink   Sink
	logger *logrus.Logger
	now    func() time.Time
}

// NewRecorder creates an audit recorder.
func NewRecorder(sink Sink, logger *logrus.Logger) *Recorder {
	return &Recorder{sink: sink, logger: logger, now: time.Now}
}

// Record appends one event to the case's audit trail. A failed append is
// logged and returned; it never silently drops the event.
func (r *Recorder) Record(ctx context.Context, caseID, event, actor, detail string) error {
	entry := &domain.AuditEntry{
		ID:        uuid.New().String(),
		CaseID:    caseID,
		Event:     event,
		Actor:     actor,
		Detail:    detail,
		CreatedAt: r.now().UTC(),
	}

	if err := r.sink.AppendAudit(ctx, entry); err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"case_id": caseID,
			"event":   event,
		}).Error("Failed to append audit entry")
		return err
	}

	r.logger.WithFields(logrus.Fields{
		"case_id": caseID,
		"event":   event,
		"actor":   actor,
	}).Info("Audit event recorded")
	return nil
}
