// Package pipeline provides the client for the upstream analysis pipeline,
// the collaborator that produces molecular findings and sample statistics for
// a case. The client wraps HTTP access with a circuit breaker, a rate
// limiter, and capped exponential retry.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/citl-review-server/internal/domain"
)

// ErrCaseNotFound indicates the pipeline has no analysis for the case.
var ErrCaseNotFound = errors.New("case not found in analysis pipeline")

// CaseData is the analysis output for one case: the report inputs plus the
// sample statistics the quality gate evaluates.
type CaseData struct {
	CaseID                   string                           `json:"case_id"`
	PatientID                string                           `json:"patient_id"`
	Findings                 []domain.MolecularFinding        `json:"findings"`
	TreatmentRecommendations []domain.TreatmentRecommendation `json:"treatment_recommendations"`
	RegionCounts             map[string]int                   `json:"region_counts"`
	Expression               [][]float64                      `json:"expression"`
	Concordance              map[string]float64               `json:"concordance"`
}

// AnalysisSource fetches case analysis data and requests reanalysis.
type AnalysisSource interface {
	// FetchCaseData retrieves the analysis output for a case. Returns
	// ErrCaseNotFound when the pipeline has no analysis for it.
	FetchCaseData(ctx context.Context, caseID string) (*CaseData, error)

	// RequestReanalysis asks the pipeline to rerun analysis with adjusted
	// parameters.
	RequestReanalysis(ctx context.Context, caseID string, parameters map[string]interface{}) error
}

// Client is the HTTP implementation of AnalysisSource.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	limiter    *rate.Limiter
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	logger     *logrus.Logger
}

// NewClient creates a pipeline client from configuration.
func NewClient(cfg domain.PipelineConfig, logger *logrus.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}
	baseDelay := cfg.RetryBaseDelay
	if baseDelay == 0 {
		baseDelay = 500 * time.Millisecond
	}
	maxDelay := cfg.RetryMaxDelay
	if maxDelay == 0 {
		maxDelay = 10 * time.Second
	}
	rateLimit := cfg.RateLimit
	if rateLimit == 0 {
		rateLimit = 10
	}
	burst := cfg.RateBurst
	if burst == 0 {
		burst = 5
	}
	interval := cfg.BreakerInterval
	if interval == 0 {
		interval = 30 * time.Second
	}
	breakerTimeout := cfg.BreakerTimeout
	if breakerTimeout == 0 {
		breakerTimeout = 60 * time.Second
	}
	minCalls := cfg.BreakerMinCalls
	if minCalls == 0 {
		minCalls = 3
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "AnalysisPipeline",
		MaxRequests: 5,
		Interval:    interval,
		Timeout:     breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= minCalls && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    breaker,
		limiter:    rate.NewLimiter(rate.Limit(rateLimit), burst),
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		maxDelay:   maxDelay,
		logger:     logger,
	}
}

// FetchCaseData retrieves the analysis output for a case.
func (c *Client) FetchCaseData(ctx context.Context, caseID string) (*CaseData, error) {
	url := fmt.Sprintf("%s/cases/%s/analysis", c.baseURL, caseID)

	body, err := c.doWithRetry(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	data := &CaseData{}
	if err := json.Unmarshal(body, data); err != nil {
		return nil, fmt.Errorf("decoding case analysis: %w", err)
	}
	return data, nil
}

// RequestReanalysis asks the pipeline to rerun analysis for a case.
func (c *Client) RequestReanalysis(ctx context.Context, caseID string, parameters map[string]interface{}) error {
	url := fmt.Sprintf("%s/cases/%s/reanalyze", c.baseURL, caseID)

	payload, err := json.Marshal(map[string]interface{}{
		"parameters": parameters,
	})
	if err != nil {
		return fmt.Errorf("encoding reanalysis request: %w", err)
	}

	if _, err := c.doWithRetry(ctx, http.MethodPost, url, payload); err != nil {
		return err
	}
	return nil
}

// doWithRetry performs the request through the rate limiter and circuit
// breaker, retrying transient failures with capped exponential backoff.
// Not-found and other 4xx responses are returned without retry.
func (c *Client) doWithRetry(ctx context.Context, method, url string, payload []byte) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoff(attempt)
			c.logger.WithFields(logrus.Fields{
				"url":     url,
				"attempt": attempt,
				"delay":   delay,
			}).Debug("Retrying pipeline request")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		result, err := c.breaker.Execute(func() (interface{}, error) {
			return c.do(ctx, method, url, payload)
		})
		if err == nil {
			return result.([]byte), nil
		}
		if err == gobreaker.ErrOpenState {
			return nil, fmt.Errorf("analysis pipeline unavailable (circuit breaker open)")
		}
		if !retryable(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("pipeline request failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

func (c *Client) do(ctx context.Context, method, url string, payload []byte) ([]byte, error) {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("building pipeline request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &transientError{err: fmt.Errorf("pipeline request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &transientError{err: fmt.Errorf("reading pipeline response: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrCaseNotFound
	case resp.StatusCode >= 500:
		return nil, &transientError{err: fmt.Errorf("pipeline returned status %d", resp.StatusCode)}
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("pipeline returned status %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// backoff returns the capped exponential delay for the given attempt.
func (c *Client) backoff(attempt int) time.Duration {
	delay := c.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.maxDelay {
			return c.maxDelay
		}
	}
	if delay > c.maxDelay {
		return c.maxDelay
	}
	return delay
}

// transientError marks failures worth retrying.
type transientError struct {
	err error
}

func (t *transientError) Error() string { return t.err.Error() }
func (t *transientError) Unwrap() error { return t.err }

func retryable(err error) bool {
	var t *transientError
	return errors.As(err, &t)
}
