package store

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/citl-review-server/internal/domain"
)

// CachedStore wraps a Store with an in-memory LRU over the per-case read
// paths. Writes go straight through and invalidate the case's cached
// artifacts, so a read after a write always sees the stored value.
type CachedStore struct {
	inner   Store
	drafts  *lru.Cache[string, *domain.DraftReport]
	reviews *lru.Cache[string, *domain.SignedReview]
	finals  *lru.Cache[string, *domain.FinalReport]
}

// NewCachedStore wraps inner with LRU caches of the given size per artifact
// kind.
func NewCachedStore(inner Store, size int) (*CachedStore, error) {
	drafts, err := lru.New[string, *domain.DraftReport](size)
	if err != nil {
		return nil, err
	}
	reviews, err := lru.New[string, *domain.SignedReview](size)
	if err != nil {
		return nil, err
	}
	finals, err := lru.New[string, *domain.FinalReport](size)
	if err != nil {
		return nil, err
	}
	return &CachedStore{
		inner:   inner,
		drafts:  drafts,
		reviews: reviews,
		finals:  finals,
	}, nil
}

// GetCase passes through; case state changes on most writes, so it is not
// worth caching.
func (c *CachedStore) GetCase(ctx context.Context, caseID string) (*domain.Case, error) {
	return c.inner.GetCase(ctx, caseID)
}

// PutCase passes through.
func (c *CachedStore) PutCase(ctx context.Context, cs *domain.Case) error {
	return c.inner.PutCase(ctx, cs)
}

// ListCases passes through.
func (c *CachedStore) ListCases(ctx context.Context, limit, offset int) ([]*domain.Case, error) {
	return c.inner.ListCases(ctx, limit, offset)
}

// GetDraft retrieves the draft report, serving from cache when present.
func (c *CachedStore) GetDraft(ctx context.Context, caseID string) (*domain.DraftReport, error) {
	if draft, ok := c.drafts.Get(caseID); ok {
		return draft, nil
	}
	draft, err := c.inner.GetDraft(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if draft != nil {
		c.drafts.Add(caseID, draft)
	}
	return draft, nil
}

// PutDraft stores the draft and drops any cached copy.
func (c *CachedStore) PutDraft(ctx context.Context, caseID string, draft *domain.DraftReport) error {
	if err := c.inner.PutDraft(ctx, caseID, draft); err != nil {
		return err
	}
	c.drafts.Remove(caseID)
	return nil
}

// GetSignedReview retrieves the signed review, serving from cache when
// present.
func (c *CachedStore) GetSignedReview(ctx context.Context, caseID string) (*domain.SignedReview, error) {
	if signed, ok := c.reviews.Get(caseID); ok {
		return signed, nil
	}
	signed, err := c.inner.GetSignedReview(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if signed != nil {
		c.reviews.Add(caseID, signed)
	}
	return signed, nil
}

// PutSignedReview stores the signed review and drops any cached copy.
func (c *CachedStore) PutSignedReview(ctx context.Context, caseID string, signed *domain.SignedReview) error {
	if err := c.inner.PutSignedReview(ctx, caseID, signed); err != nil {
		return err
	}
	c.reviews.Remove(caseID)
	return nil
}

// GetFinalReport retrieves the final report, serving from cache when present.
func (c *CachedStore) GetFinalReport(ctx context.Context, caseID string) (*domain.FinalReport, error) {
	if report, ok := c.finals.Get(caseID); ok {
		return report, nil
	}
	report, err := c.inner.GetFinalReport(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if report != nil {
		c.finals.Add(caseID, report)
	}
	return report, nil
}

// PutFinalReport stores the final report and drops any cached copy.
func (c *CachedStore) PutFinalReport(ctx context.Context, caseID string, report *domain.FinalReport) error {
	if err := c.inner.PutFinalReport(ctx, caseID, report); err != nil {
		return err
	}
	c.finals.Remove(caseID)
	return nil
}

// AppendAudit passes through.
func (c *CachedStore) AppendAudit(ctx context.Context, entry *domain.AuditEntry) error {
	return c.inner.AppendAudit(ctx, entry)
}

// ListAudit passes through.
func (c *CachedStore) ListAudit(ctx context.Context, caseID string) ([]*domain.AuditEntry, error) {
	return c.inner.ListAudit(ctx, caseID)
}

// Close closes the underlying store.
func (c *CachedStore) Close() error {
	c.drafts.Purge()
	c.reviews.Purge()
	c.finals.Purge()
	return c.inner.Close()
}
