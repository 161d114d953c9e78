// Package review implements the review-submission protocol: schema validation
// of an externally authored review document and deterministic digital
// signature generation over its canonical serialization. Signing cannot fail
// for a document that already passed validation.
package review

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/citl-review-server/internal/domain"
)

// Protocol validates and signs review documents.
type Protocol struct {
	logger *logrus.Logger
	now    func() time.Time
}

// NewProtocol creates a review protocol.
func NewProtocol(logger *logrus.Logger) *Protocol {
	return &Protocol{logger: logger, now: time.Now}
}

// Process validates the document and, if valid, produces the signed review.
// The unsigned document is not retained; only the signed form is
// authoritative. Validation failures are returned as structured errors and
// never coerced.
func (p *Protocol) Process(doc *domain.ReviewDocument) (*domain.SignedReview, error) {
	if err := Validate(doc); err != nil {
		p.logger.WithFields(logrus.Fields{
			"patient_id": doc.PatientID,
			"decision":   doc.Decision.Status,
		}).Warn("Review document failed schema validation")
		return nil, err
	}

	hash, err := SignatureHash(doc)
	if err != nil {
		return nil, fmt.Errorf("signing review document: %w", err)
	}

	signed := &domain.SignedReview{
		ReviewDocument: *doc,
		SignedAt:       p.now().UTC(),
	}
	signed.Attestation.SignatureHash = hash

	p.logger.WithFields(logrus.Fields{
		"patient_id":     doc.PatientID,
		"decision":       doc.Decision.Status,
		"reviewer":       doc.Reviewer.Name,
		"signature_hash": hash,
	}).Info("Review document validated and signed")

	return signed, nil
}

// VerifySignature recomputes the digest of a signed review and reports
// whether it matches the stored signature hash.
func VerifySignature(signed *domain.SignedReview) (bool, error) {
	doc := signed.ReviewDocument
	expected := doc.Attestation.SignatureHash
	if expected == "" {
		return false, nil
	}
	actual, err := SignatureHash(&doc)
	if err != nil {
		return false, err
	}
	return actual == expected, nil
}
