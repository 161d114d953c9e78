// Package api exposes the review workflow over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/citl-review-server/internal/domain"
	"github.com/citl-review-server/internal/pipeline"
	"github.com/citl-review-server/internal/workflow"
)

// Server represents the HTTP server.
type Server struct {
	cfg     domain.ServerConfig
	service *workflow.Service
	logger  *logrus.Logger
	router  *gin.Engine
	server  *http.Server
}

// NewServer creates a new HTTP server instance.
func NewServer(cfg domain.ServerConfig, logLevel string, service *workflow.Service, logger *logrus.Logger) *Server {
	if logLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestIDMiddleware())
	if cfg.RequestsPerSecond > 0 {
		router.Use(rateLimitMiddleware(cfg.RequestsPerSecond, cfg.RequestBurst))
	}

	s := &Server{
		cfg:     cfg,
		service: service,
		logger:  logger,
		router:  router,
	}
	s.setupRoutes()
	return s
}

// Router exposes the underlying handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until the context is canceled.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes.
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/cases", s.handleListCases)
		v1.POST("/cases/:id/draft", s.handleGenerateDraft)
		v1.GET("/cases/:id/draft", s.handleGetDraft)
		v1.POST("/cases/:id/review", s.handleSubmitReview)
		v1.POST("/cases/:id/finalize", s.handleFinalize)
		v1.POST("/cases/:id/reanalysis", s.handleRequestReanalysis)
		v1.GET("/cases/:id/report", s.handleGetFinalReport)
		v1.GET("/cases/:id/summary", s.handleGetSummary)
		v1.GET("/cases/:id/state", s.handleCaseState)
		v1.GET("/cases/:id/audit", s.handleAuditTrail)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleListCases(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	cases, err := s.service.ListCases(c.Request.Context(), limit, offset)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cases": cases})
}

func (s *Server) handleGenerateDraft(c *gin.Context) {
	draft, err := s.service.GenerateDraft(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, draft)
}

func (s *Server) handleGetDraft(c *gin.Context) {
	draft, err := s.service.GetDraft(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, draft)
}

func (s *Server) handleSubmitReview(c *gin.Context) {
	doc := &domain.ReviewDocument{}
	if err := c.ShouldBindJSON(doc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  domain.ErrValidation,
			"error": fmt.Sprintf("malformed review document: %v", err),
		})
		return
	}

	signed, err := s.service.SubmitReview(c.Request.Context(), c.Param("id"), doc)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, signed)
}

func (s *Server) handleFinalize(c *gin.Context) {
	outcome, err := s.service.Finalize(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

func (s *Server) handleRequestReanalysis(c *gin.Context) {
	if err := s.service.RequestReanalysis(c.Request.Context(), c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "reanalysis requested"})
}

func (s *Server) handleGetFinalReport(c *gin.Context) {
	report, err := s.service.GetFinalReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleGetSummary(c *gin.Context) {
	report, err := s.service.GetFinalReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.String(http.StatusOK, workflow.RenderClinicalSummary(report))
}

func (s *Server) handleCaseState(c *gin.Context) {
	cs, err := s.service.CaseState(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cs)
}

func (s *Server) handleAuditTrail(c *gin.Context) {
	entries, err := s.service.AuditTrail(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// writeError maps workflow errors to HTTP responses. Validation failures list
// every violation; precondition failures name the blocking condition.
func (s *Server) writeError(c *gin.Context, err error) {
	var verrs domain.ValidationErrors
	if errors.As(err, &verrs) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"code":   domain.ErrValidation,
			"error":  "review document failed validation",
			"errors": verrs,
		})
		return
	}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"code":   domain.ErrValidation,
			"error":  "review document failed validation",
			"errors": domain.ValidationErrors{verr},
		})
		return
	}
	var perr *domain.PreconditionError
	if errors.As(err, &perr) {
		c.JSON(http.StatusConflict, gin.H{
			"code":  domain.ErrPrecondition,
			"error": perr.Error(),
		})
		return
	}
	if errors.Is(err, pipeline.ErrCaseNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"code":  domain.ErrPipeline,
			"error": err.Error(),
		})
		return
	}

	s.logger.WithError(err).Error("Request failed")
	c.JSON(http.StatusInternalServerError, gin.H{
		"code":  domain.ErrInternal,
		"error": "internal server error",
	})
}

// corsMiddleware adds CORS headers to responses.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization")
		c.Header("Access-Control-Expose-Headers", "Content-Length")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestIDMiddleware adds a unique request ID to each request.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)
		c.Next()
	}
}

// rateLimitMiddleware applies a per-client-IP token bucket.
func rateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	if burst <= 0 {
		burst = int(rps)
	}
	var mu sync.Mutex
	limiters := make(map[string]*rate.Limiter)

	return func(c *gin.Context) {
		ip := c.ClientIP()
		mu.Lock()
		limiter, ok := limiters[ip]
		if !ok {
			limiter = rate.NewLimiter(rate.Limit(rps), burst)
			limiters[ip] = limiter
		}
		mu.Unlock()

		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
