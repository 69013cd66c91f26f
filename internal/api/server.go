// Package api exposes the pipeline over HTTP: run submission, status and
// state inspection, report retrieval, and run listing. Accepted runs
// execute on background goroutines; the handlers never block on pipeline
// work.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/drug-repurposing-server/internal/domain"
)

const defaultListLimit = 50

// RunStore is the persistence surface the handlers need
type RunStore interface {
	CreateRun(req domain.RunRequest) (*domain.RunMetadata, error)
	GetMetadata(runID string) (*domain.RunMetadata, error)
	SaveState(state *domain.RouteAState) error
	LoadState(runID string) (*domain.RouteAState, error)
	ReadReport(runID string) (string, error)
	ListRuns(limit int) ([]domain.RunMetadata, error)
}

// Executor runs an accepted pipeline run to completion
type Executor interface {
	Execute(ctx context.Context, runID string) error
}

// Server represents the HTTP server
type Server struct {
	logger *logrus.Logger
	config domain.ServerConfig
	store  RunStore
	runner *Runner
	router *gin.Engine
	server *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(logger *logrus.Logger, cfg domain.Config, store RunStore, exec Executor) *Server {
	// Set Gin mode based on environment
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Add middleware
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestIDMiddleware())

	server := &Server{
		logger: logger,
		config: cfg.Server,
		store:  store,
		runner: NewRunner(logger, exec),
		router: router,
	}

	// Setup routes
	server.setupRoutes()

	return server
}

// Handler exposes the router, used by tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until the context is cancelled.
// Shutdown drains in-flight requests, then waits for background runs.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.logger.WithField("addr", addr).Info("HTTP server listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.runner.Wait()
	return nil
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	s.router.POST("/run", s.handleSubmitRun)
	s.router.GET("/runs", s.handleListRuns)

	run := s.router.Group("/run")
	{
		run.GET("/:id", s.handleGetRun)
		run.GET("/:id/report", s.handleGetReport)
		run.GET("/:id/state", s.handleGetState)
	}
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

// handleSubmitRun validates a run request, persists it, and launches the
// pipeline in the background.
func (s *Server) handleSubmitRun(c *gin.Context) {
	var req domain.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	if err := validateRunRequest(req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	meta, err := s.store.CreateRun(req)
	if err != nil {
		s.logger.WithError(err).Error("Failed to create run")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create run"})
		return
	}
	if err := s.store.SaveState(domain.NewRouteAState(meta.RunID, req)); err != nil {
		s.logger.WithError(err).WithField("run_id", meta.RunID).Error("Failed to seed run state")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create run"})
		return
	}

	s.runner.Launch(meta.RunID)

	c.JSON(http.StatusAccepted, gin.H{
		"run_id":     meta.RunID,
		"status":     meta.Status,
		"created_at": meta.CreatedAt,
		"message":    fmt.Sprintf("analysis started for %q", meta.Indication),
	})
}

// handleGetRun returns the run metadata view
func (s *Server) handleGetRun(c *gin.Context) {
	meta, err := s.store.GetMetadata(c.Param("id"))
	if err != nil {
		s.writeStoreError(c, err)
		return
	}

	view := gin.H{
		"run_id":           meta.RunID,
		"indication":       meta.Indication,
		"geography":        meta.Geography,
		"status":           meta.Status,
		"created_at":       meta.CreatedAt,
		"started_at":       meta.StartedAt,
		"completed_at":     meta.CompletedAt,
		"candidates_found": meta.CandidatesFound,
		"trials_count":     meta.TrialsCount,
	}
	if meta.ErrorMessage != "" {
		view["error_message"] = meta.ErrorMessage
	}
	if meta.ReportPath != "" {
		view["report_url"] = fmt.Sprintf("/run/%s/report", meta.RunID)
	}
	c.JSON(http.StatusOK, view)
}

// handleGetReport returns the rendered Markdown report; 404 until rendered
func (s *Server) handleGetReport(c *gin.Context) {
	report, err := s.store.ReadReport(c.Param("id"))
	if err != nil {
		s.writeStoreError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(report))
}

// handleGetState returns the latest pipeline state snapshot
func (s *Server) handleGetState(c *gin.Context) {
	state, err := s.store.LoadState(c.Param("id"))
	if err != nil {
		s.writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// handleListRuns returns recent runs, newest first
func (s *Server) handleListRuns(c *gin.Context) {
	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	runs, err := s.store.ListRuns(limit)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list runs")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list runs"})
		return
	}
	if runs == nil {
		runs = []domain.RunMetadata{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}

func (s *Server) writeStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrRunNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
	case errors.Is(err, domain.ErrReportNotReady):
		c.JSON(http.StatusNotFound, gin.H{"error": "report not ready"})
	default:
		s.logger.WithError(err).Error("Run store read failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// validateRunRequest enforces the submission contract. MinPhase 0 means
// unset and defaults later; explicit values must be clinical phases.
func validateRunRequest(req domain.RunRequest) error {
	if req.Indication == "" {
		return fmt.Errorf("%w: indication is required", domain.ErrValidation)
	}
	if req.Geography == "" {
		return fmt.Errorf("%w: geography is required", domain.ErrValidation)
	}
	if req.MinPhase != 0 && (req.MinPhase < 1 || req.MinPhase > 4) {
		return fmt.Errorf("%w: min_phase must be between 1 and 4", domain.ErrValidation)
	}
	return nil
}

// corsMiddleware adds CORS headers to responses
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, X-API-Key")
		c.Header("Access-Control-Expose-Headers", "Content-Length")
		c.Header("Access-Control-Allow-Credentials", "true")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestIDMiddleware adds a unique request ID to each request
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = fmt.Sprintf("%d", time.Now().UnixNano())
		}
		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)
		c.Next()
	}
}
