package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/citl-review-server/internal/domain"
)

// PostgresStore implements the Store interface using PostgreSQL. It expects
// the schema to already exist (created via migrations).
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL artifact store.
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL creates a new PostgreSQL artifact store from a
// connection URL and configures the connection pool.
func NewPostgresStoreFromURL(databaseURL string, cfg domain.StorageConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen == 0 {
		maxOpen = 25
	}
	maxIdle := cfg.MaxIdleConns
	if maxIdle == 0 {
		maxIdle = 5
	}
	maxLife := cfg.ConnMaxLife
	if maxLife == 0 {
		maxLife = 5 * time.Minute
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(maxLife)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// GetCase retrieves a case record, or nil if the case is unknown.
func (s *PostgresStore) GetCase(ctx context.Context, caseID string) (*domain.Case, error) {
	c := &domain.Case{}
	err := s.db.QueryRowContext(ctx,
		"SELECT case_id, state, revision_count, created_at, updated_at FROM cases WHERE case_id = $1",
		caseID,
	).Scan(&c.CaseID, &c.State, &c.RevisionCount, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan case: %w", err)
	}
	return c, nil
}

// PutCase inserts or updates a case record.
func (s *PostgresStore) PutCase(ctx context.Context, c *domain.Case) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cases (case_id, state, revision_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (case_id) DO UPDATE SET
			state = EXCLUDED.state,
			revision_count = EXCLUDED.revision_count,
			updated_at = EXCLUDED.updated_at
	`, c.CaseID, string(c.State), c.RevisionCount, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert case: %w", err)
	}
	return nil
}

// ListCases returns case records ordered by last update, newest first.
func (s *PostgresStore) ListCases(ctx context.Context, limit, offset int) ([]*domain.Case, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT case_id, state, revision_count, created_at, updated_at
		FROM cases
		ORDER BY updated_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query cases: %w", err)
	}
	defer rows.Close()

	var result []*domain.Case
	for rows.Next() {
		c := &domain.Case{}
		if err := rows.Scan(&c.CaseID, &c.State, &c.RevisionCount, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// GetDraft retrieves the active draft report for a case.
func (s *PostgresStore) GetDraft(ctx context.Context, caseID string) (*domain.DraftReport, error) {
	draft := &domain.DraftReport{}
	if ok, err := s.getDocument(ctx, "draft_reports", caseID, draft); err != nil || !ok {
		return nil, err
	}
	return draft, nil
}

// PutDraft stores the draft report, replacing a superseded draft.
func (s *PostgresStore) PutDraft(ctx context.Context, caseID string, draft *domain.DraftReport) error {
	doc, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("failed to marshal draft report: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO draft_reports (case_id, document, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (case_id) DO UPDATE SET
			document = EXCLUDED.document,
			updated_at = EXCLUDED.updated_at
	`, caseID, string(doc), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert draft report: %w", err)
	}
	return nil
}

// GetSignedReview retrieves the signed review for a case.
func (s *PostgresStore) GetSignedReview(ctx context.Context, caseID string) (*domain.SignedReview, error) {
	signed := &domain.SignedReview{}
	if ok, err := s.getDocument(ctx, "signed_reviews", caseID, signed); err != nil || !ok {
		return nil, err
	}
	return signed, nil
}

// PutSignedReview stores a signed review.
func (s *PostgresStore) PutSignedReview(ctx context.Context, caseID string, signed *domain.SignedReview) error {
	doc, err := json.Marshal(signed)
	if err != nil {
		return fmt.Errorf("failed to marshal signed review: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO signed_reviews (case_id, document, signed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (case_id) DO UPDATE SET
			document = EXCLUDED.document,
			signed_at = EXCLUDED.signed_at
	`, caseID, string(doc), signed.SignedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert signed review: %w", err)
	}
	return nil
}

// GetFinalReport retrieves the final report for a case.
func (s *PostgresStore) GetFinalReport(ctx context.Context, caseID string) (*domain.FinalReport, error) {
	report := &domain.FinalReport{}
	if ok, err := s.getDocument(ctx, "final_reports", caseID, report); err != nil || !ok {
		return nil, err
	}
	return report, nil
}

// PutFinalReport stores the final report; the plain INSERT fails on a second
// write for the same case.
func (s *PostgresStore) PutFinalReport(ctx context.Context, caseID string, report *domain.FinalReport) error {
	doc, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal final report: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO final_reports (case_id, document, approved_at) VALUES ($1, $2, $3)",
		caseID, string(doc), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert final report: %w", err)
	}
	return nil
}

// AppendAudit appends one entry to the case's audit trail.
func (s *PostgresStore) AppendAudit(ctx context.Context, entry *domain.AuditEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, case_id, event, actor, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.ID, entry.CaseID, entry.Event, entry.Actor, entry.Detail, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// ListAudit returns the audit trail for a case in insertion order.
func (s *PostgresStore) ListAudit(ctx context.Context, caseID string) ([]*domain.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, case_id, event, actor, detail, created_at
		FROM audit_log
		WHERE case_id = $1
		ORDER BY created_at ASC
	`, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var result []*domain.AuditEntry
	for rows.Next() {
		entry := &domain.AuditEntry{}
		if err := rows.Scan(&entry.ID, &entry.CaseID, &entry.Event, &entry.Actor, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

func (s *PostgresStore) getDocument(ctx context.Context, table, caseID string, dest interface{}) (bool, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT document FROM %s WHERE case_id = $1", table), caseID,
	).Scan(&doc)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to scan document: %w", err)
	}
	if err := json.Unmarshal([]byte(doc), dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	return true, nil
}

// Close closes the store and releases resources.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
