package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citl-review-server/internal/domain"
)

func setupMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return &PostgresStore{db: db}, mock, db
}

func TestPostgresGetCase_Missing(t *testing.T) {
	store, mock, db := setupMockStore(t)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM cases WHERE case_id").
		WithArgs("CASE-404").
		WillReturnError(sql.ErrNoRows)

	c, err := store.GetCase(context.Background(), "CASE-404")
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetCase_Found(t *testing.T) {
	store, mock, db := setupMockStore(t)
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"case_id", "state", "revision_count", "created_at", "updated_at"}).
		AddRow("CASE-001", "UNDER_REVIEW", 1, now, now)

	mock.ExpectQuery("SELECT (.+) FROM cases WHERE case_id").
		WithArgs("CASE-001").
		WillReturnRows(rows)

	c, err := store.GetCase(context.Background(), "CASE-001")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, domain.UNDER_REVIEW, c.State)
	assert.Equal(t, 1, c.RevisionCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresPutCase_Upsert(t *testing.T) {
	store, mock, db := setupMockStore(t)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectExec("INSERT INTO cases").
		WithArgs("CASE-001", "DRAFTED", 0, now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.PutCase(context.Background(), &domain.Case{
		CaseID:    "CASE-001",
		State:     domain.DRAFTED,
		CreatedAt: now,
		UpdatedAt: now,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetDraft_DecodesDocument(t *testing.T) {
	store, mock, db := setupMockStore(t)
	defer db.Close()

	draft := &domain.DraftReport{
		ReportMetadata: domain.ReportMetadata{
			PatientID: "PT-2024-0042",
			Status:    domain.StatusPendingReview,
		},
	}
	doc, err := json.Marshal(draft)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT document FROM draft_reports WHERE case_id").
		WithArgs("CASE-001").
		WillReturnRows(sqlmock.NewRows([]string{"document"}).AddRow(string(doc)))

	got, err := store.GetDraft(context.Background(), "CASE-001")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "PT-2024-0042", got.ReportMetadata.PatientID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetDraft_Missing(t *testing.T) {
	store, mock, db := setupMockStore(t)
	defer db.Close()

	mock.ExpectQuery("SELECT document FROM draft_reports WHERE case_id").
		WithArgs("CASE-404").
		WillReturnError(sql.ErrNoRows)

	got, err := store.GetDraft(context.Background(), "CASE-404")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresPutFinalReport_SecondInsertFails(t *testing.T) {
	store, mock, db := setupMockStore(t)
	defer db.Close()

	mock.ExpectExec("INSERT INTO final_reports").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO final_reports").
		WillReturnError(sql.ErrConnDone)

	ctx := context.Background()
	report := &domain.FinalReport{}
	require.NoError(t, store.PutFinalReport(ctx, "CASE-001", report))
	assert.Error(t, store.PutFinalReport(ctx, "CASE-001", report))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListAudit(t *testing.T) {
	store, mock, db := setupMockStore(t)
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "case_id", "event", "actor", "detail", "created_at"}).
		AddRow("a1", "CASE-001", domain.EventDraftGenerated, "", "", now).
		AddRow("a2", "CASE-001", domain.EventReviewSubmitted, "Dr. Sarah Chen", "decision=APPROVE", now)

	mock.ExpectQuery("SELECT (.+) FROM audit_log").
		WithArgs("CASE-001").
		WillReturnRows(rows)

	entries, err := store.ListAudit(context.Background(), "CASE-001")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.EventDraftGenerated, entries[0].Event)
	assert.Equal(t, "Dr. Sarah Chen", entries[1].Actor)
	assert.NoError(t, mock.ExpectationsWereMet())
}
