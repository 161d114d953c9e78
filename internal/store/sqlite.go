package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/citl-review-server/internal/domain"
)

// SQLiteStore implements the Store interface using SQLite. It is the default
// backend for single-node deployments.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite artifact store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

// createSchema creates the database tables and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS cases (
		case_id TEXT PRIMARY KEY,
		state TEXT NOT NULL,
		revision_count INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS draft_reports (
		case_id TEXT PRIMARY KEY,
		document TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS signed_reviews (
		case_id TEXT PRIMARY KEY,
		document TEXT NOT NULL,
		signed_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS final_reports (
		case_id TEXT PRIMARY KEY,
		document TEXT NOT NULL,
		approved_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		case_id TEXT NOT NULL,
		event TEXT NOT NULL,
		actor TEXT DEFAULT '',
		detail TEXT DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_case_id ON audit_log(case_id);
	CREATE INDEX IF NOT EXISTS idx_cases_updated_at ON cases(updated_at);
	`

	_, err := db.Exec(schema)
	return err
}

// GetCase retrieves a case record, or nil if the case is unknown.
func (s *SQLiteStore) GetCase(ctx context.Context, caseID string) (*domain.Case, error) {
	c := &domain.Case{}
	err := s.db.QueryRowContext(ctx,
		"SELECT case_id, state, revision_count, created_at, updated_at FROM cases WHERE case_id = ?",
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
func (s *SQLiteStore) PutCase(ctx context.Context, c *domain.Case) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cases (case_id, state, revision_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(case_id) DO UPDATE SET
			state = excluded.state,
			revision_count = excluded.revision_count,
			updated_at = excluded.updated_at
	`, c.CaseID, string(c.State), c.RevisionCount, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert case: %w", err)
	}
	return nil
}

// ListCases returns case records ordered by last update, newest first.
func (s *SQLiteStore) ListCases(ctx context.Context, limit, offset int) ([]*domain.Case, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT case_id, state, revision_count, created_at, updated_at
		FROM cases
		ORDER BY updated_at DESC
		LIMIT ? OFFSET ?
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
func (s *SQLiteStore) GetDraft(ctx context.Context, caseID string) (*domain.DraftReport, error) {
	draft := &domain.DraftReport{}
	if ok, err := s.getDocument(ctx, "draft_reports", caseID, draft); err != nil || !ok {
		return nil, err
	}
	return draft, nil
}

// PutDraft stores the draft report, replacing a superseded draft.
func (s *SQLiteStore) PutDraft(ctx context.Context, caseID string, draft *domain.DraftReport) error {
	doc, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("failed to marshal draft report: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO draft_reports (case_id, document, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(case_id) DO UPDATE SET
			document = excluded.document,
			updated_at = excluded.updated_at
	`, caseID, string(doc), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert draft report: %w", err)
	}
	return nil
}

// GetSignedReview retrieves the signed review for a case.
func (s *SQLiteStore) GetSignedReview(ctx context.Context, caseID string) (*domain.SignedReview, error) {
	signed := &domain.SignedReview{}
	if ok, err := s.getDocument(ctx, "signed_reviews", caseID, signed); err != nil || !ok {
		return nil, err
	}
	return signed, nil
}

// PutSignedReview stores a signed review.
func (s *SQLiteStore) PutSignedReview(ctx context.Context, caseID string, signed *domain.SignedReview) error {
	doc, err := json.Marshal(signed)
	if err != nil {
		return fmt.Errorf("failed to marshal signed review: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO signed_reviews (case_id, document, signed_at)
		VALUES (?, ?, ?)
		ON CONFLICT(case_id) DO UPDATE SET
			document = excluded.document,
			signed_at = excluded.signed_at
	`, caseID, string(doc), signed.SignedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert signed review: %w", err)
	}
	return nil
}

// GetFinalReport retrieves the final report for a case.
func (s *SQLiteStore) GetFinalReport(ctx context.Context, caseID string) (*domain.FinalReport, error) {
	report := &domain.FinalReport{}
	if ok, err := s.getDocument(ctx, "final_reports", caseID, report); err != nil || !ok {
		return nil, err
	}
	return report, nil
}

// PutFinalReport stores the final report. The plain INSERT makes the
// at-most-once property hold at the storage layer too: a second write for the
// same case violates the primary key and fails.
func (s *SQLiteStore) PutFinalReport(ctx context.Context, caseID string, report *domain.FinalReport) error {
	doc, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal final report: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO final_reports (case_id, document, approved_at) VALUES (?, ?, ?)",
		caseID, string(doc), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert final report: %w", err)
	}
	return nil
}

// AppendAudit appends one entry to the case's audit trail.
func (s *SQLiteStore) AppendAudit(ctx context.Context, entry *domain.AuditEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, case_id, event, actor, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.CaseID, entry.Event, entry.Actor, entry.Detail, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// ListAudit returns the audit trail for a case in insertion order.
func (s *SQLiteStore) ListAudit(ctx context.Context, caseID string) ([]*domain.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, case_id, event, actor, detail, created_at
		FROM audit_log
		WHERE case_id = ?
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

// getDocument loads a JSON document column into dest. Returns false when no
// row exists for the case.
func (s *SQLiteStore) getDocument(ctx context.Context, table, caseID string, dest interface{}) (bool, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT document FROM %s WHERE case_id = ?", table), caseID,
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
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
