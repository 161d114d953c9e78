package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citl-review-server/internal/audit"
	"github.com/citl-review-server/internal/domain"
	"github.com/citl-review-server/internal/finalize"
	"github.com/citl-review-server/internal/pipeline"
	"github.com/citl-review-server/internal/quality"
	"github.com/citl-review-server/internal/review"
	"github.com/citl-review-server/internal/store"
	"github.com/citl-review-server/internal/workflow"
)

type stubSource struct {
	data map[string]*pipeline.CaseData
}

func (s *stubSource) FetchCaseData(_ context.Context, caseID string) (*pipeline.CaseData, error) {
	data, ok := s.data[caseID]
	if !ok {
		return nil, pipeline.ErrCaseNotFound
	}
	return data, nil
}

func (s *stubSource) RequestReanalysis(_ context.Context, _ string, _ map[string]interface{}) error {
	return nil
}

func newTestServer(t *testing.T) *Server {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "api_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	source := &stubSource{data: map[string]*pipeline.CaseData{
		"CASE-001": {
			CaseID:    "CASE-001",
			PatientID: "PT-2024-0042",
			Findings: []domain.MolecularFinding{
				{FindingID: "F1", Gene: "ERBB2", Log2FoldChange: 2.4, FDR: 0.001},
			},
			RegionCounts: map[string]int{"tumor_core": 100},
		},
	}}

	service := workflow.NewService(
		st,
		source,
		quality.NewGate(logger, quality.DefaultConfig()),
		review.NewProtocol(logger),
		finalize.NewGate(logger),
		audit.NewRecorder(st, logger),
		logger,
	)

	return NewServer(domain.ServerConfig{Host: "127.0.0.1", Port: 0}, "error", service, logger)
}

func doRequest(t *testing.T, server *Server, method, path string, payload interface{}) *httptest.ResponseRecorder {
	var body *bytes.Buffer
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewBuffer(raw)
	} else {
		body = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	return rec
}

func validReview() *domain.ReviewDocument {
	return &domain.ReviewDocument{
		PatientID:  "PT-2024-0042",
		ReportDate: "2024-03-15",
		Reviewer: domain.Reviewer{
			Name:        "Dr. Sarah Chen",
			Credentials: "MD, PhD",
		},
		ReviewDate: "2024-03-18",
		Decision: domain.Decision{
			Status:    domain.APPROVE,
			Rationale: "Findings well supported",
		},
		Attestation: domain.Attestation{
			ReviewedAllFindings:         true,
			AssessedCompliance:          true,
			ClinicalJudgment:            true,
			MedicalRecordAcknowledgment: true,
		},
	}
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(t)

	rec := doRequest(t, server, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestDraftEndpoints(t *testing.T) {
	server := newTestServer(t)

	rec := doRequest(t, server, http.MethodPost, "/api/v1/cases/CASE-001/draft", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	draft := &domain.DraftReport{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), draft))
	assert.Equal(t, "PT-2024-0042", draft.ReportMetadata.PatientID)
	assert.Equal(t, domain.StatusPendingReview, draft.ReportMetadata.Status)

	rec = doRequest(t, server, http.MethodGet, "/api/v1/cases/CASE-001/draft", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, server, http.MethodGet, "/api/v1/cases/CASE-001/state", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), string(domain.UNDER_REVIEW))
}

func TestDraftUnknownCaseReturns404(t *testing.T) {
	server := newTestServer(t)

	rec := doRequest(t, server, http.MethodPost, "/api/v1/cases/CASE-404/draft", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), domain.ErrPipeline)
}

func TestFullApprovalFlowOverHTTP(t *testing.T) {
	server := newTestServer(t)

	rec := doRequest(t, server, http.MethodPost, "/api/v1/cases/CASE-001/draft", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, server, http.MethodPost, "/api/v1/cases/CASE-001/review", validReview())
	require.Equal(t, http.StatusCreated, rec.Code)

	signed := &domain.SignedReview{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), signed))
	assert.Len(t, signed.Attestation.SignatureHash, 64)

	rec = doRequest(t, server, http.MethodPost, "/api/v1/cases/CASE-001/finalize", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, server, http.MethodGet, "/api/v1/cases/CASE-001/report", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), domain.StatusClinicallyApproved)

	rec = doRequest(t, server, http.MethodGet, "/api/v1/cases/CASE-001/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "CLINICAL REPORT SUMMARY")

	rec = doRequest(t, server, http.MethodGet, "/api/v1/cases/CASE-001/audit", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), domain.EventReportApproved)
}

func TestInvalidReviewReturns422WithViolations(t *testing.T) {
	server := newTestServer(t)

	rec := doRequest(t, server, http.MethodPost, "/api/v1/cases/CASE-001/draft", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	doc := validReview()
	doc.Attestation.ClinicalJudgment = false
	doc.Decision.Rationale = ""

	rec = doRequest(t, server, http.MethodPost, "/api/v1/cases/CASE-001/review", doc)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp struct {
		Code   string                   `json:"code"`
		Errors []map[string]interface{} `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, domain.ErrValidation, resp.Code)
	assert.Len(t, resp.Errors, 2)
}

func TestMalformedReviewReturns400(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cases/CASE-001/review",
		bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDoubleFinalizeReturns409(t *testing.T) {
	server := newTestServer(t)

	doRequest(t, server, http.MethodPost, "/api/v1/cases/CASE-001/draft", nil)
	doRequest(t, server, http.MethodPost, "/api/v1/cases/CASE-001/review", validReview())
	rec := doRequest(t, server, http.MethodPost, "/api/v1/cases/CASE-001/finalize", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, server, http.MethodPost, "/api/v1/cases/CASE-001/finalize", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), domain.ErrPrecondition)
}

func TestFinalizeWithoutArtifactsReturns409(t *testing.T) {
	server := newTestServer(t)

	rec := doRequest(t, server, http.MethodPost, "/api/v1/cases/CASE-001/finalize", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "draft_report")
}

func TestListCasesEndpoint(t *testing.T) {
	server := newTestServer(t)

	doRequest(t, server, http.MethodPost, "/api/v1/cases/CASE-001/draft", nil)

	rec := doRequest(t, server, http.MethodGet, "/api/v1/cases", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "CASE-001")
}

func TestRequestIDHeader(t *testing.T) {
	server := newTestServer(t)

	rec := doRequest(t, server, http.MethodGet, "/health", nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRateLimitMiddleware(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "rl_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	service := workflow.NewService(
		st,
		&stubSource{},
		quality.NewGate(logger, quality.DefaultConfig()),
		review.NewProtocol(logger),
		finalize.NewGate(logger),
		audit.NewRecorder(st, logger),
		logger,
	)
	server := NewServer(domain.ServerConfig{
		Host:              "127.0.0.1",
		RequestsPerSecond: 1,
		RequestBurst:      2,
	}, "error", service, logger)

	codes := map[int]int{}
	for i := 0; i < 5; i++ {
		rec := doRequest(t, server, http.MethodGet, "/health", nil)
		codes[rec.Code]++
	}

	assert.Equal(t, 2, codes[http.StatusOK])
	assert.Equal(t, 3, codes[http.StatusTooManyRequests])
}
