// Package api exposes phenotype evaluation over HTTP: submit predicted and
// ground-truth label sets, get back a persisted accuracy report.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/VarenyaJ/P5/internal/config"
	"github.com/VarenyaJ/P5/internal/database"
	"github.com/VarenyaJ/P5/internal/evaluation"
	"github.com/VarenyaJ/P5/internal/report"
	"github.com/VarenyaJ/P5/internal/storage"
)

const serverVersion = "1.0.0"

// Server is the HTTP evaluation service.
type Server struct {
	cfg    *config.Config
	log    *logrus.Logger
	store  storage.Store
	db     *database.DB // nil unless the postgres backend is active
	router *gin.Engine
	server *http.Server
}

// NewServer wires the router, middleware and handlers. db may be nil; the
// health endpoint then reports on the store alone.
func NewServer(cfg *config.Config, logger *logrus.Logger, store storage.Store, db *database.DB) *Server {
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestIDMiddleware())
	router.Use(securityHeadersMiddleware())

	rps := cfg.Server.RateLimitRPS
	if rps <= 0 {
		rps = 50
	}
	burst := cfg.Server.RateLimitBurst
	if burst <= 0 {
		burst = 100
	}
	router.Use(rateLimitMiddleware(rate.NewLimiter(rate.Limit(rps), burst)))

	s := &Server{
		cfg:    cfg,
		log:    logger,
		store:  store,
		db:     db,
		router: router,
	}
	s.setupRoutes()
	return s
}

// Start runs the server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	s.log.WithField("addr", addr).Info("evaluation API listening")

	select {
	case err := <-errCh:
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/evaluate", s.handleEvaluate)
		v1.GET("/reports", s.handleListReports)
		v1.GET("/reports/:id", s.handleGetReport)
		v1.GET("/reports/:id/summary", s.handleReportSummary)
		v1.DELETE("/reports/:id", s.handleDeleteReport)
		v1.GET("/export", s.handleExport)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	status := http.StatusOK
	resp := gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   serverVersion,
	}

	if s.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Health(ctx); err != nil {
			status = http.StatusServiceUnavailable
			resp["status"] = "degraded"
			resp["database"] = "unavailable"
		} else {
			resp["database"] = "ok"
		}
	}
	if _, err := s.store.Count(c.Request.Context()); err != nil {
		status = http.StatusServiceUnavailable
		resp["status"] = "degraded"
		resp["storage"] = "unavailable"
	} else {
		resp["storage"] = "ok"
	}

	c.JSON(status, resp)
}

// evaluateSample is one predicted/ground-truth label-set pair.
type evaluateSample struct {
	Predicted   []string `json:"predicted"`
	GroundTruth []string `json:"ground_truth"`
}

// evaluateRequest is the POST /api/v1/evaluate body.
type evaluateRequest struct {
	Creator    string            `json:"creator" binding:"required"`
	Experiment string            `json:"experiment" binding:"required"`
	Model      string            `json:"model" binding:"required"`
	Notes      string            `json:"notes"`
	Extra      map[string]string `json:"extra"`
	Samples    []evaluateSample  `json:"samples" binding:"required"`
}

func (s *Server) handleEvaluate(c *gin.Context) {
	var req evaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ev := evaluation.New()
	for _, sample := range req.Samples {
		ev.CheckPhenotypes(sample.Predicted, sample.GroundTruth)
	}

	rep, err := ev.Report(report.Metadata{
		Creator:    req.Creator,
		Experiment: req.Experiment,
		Model:      req.Model,
		Notes:      req.Notes,
		Extra:      req.Extra,
	})
	if err != nil {
		s.log.WithError(err).Error("building report")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build report"})
		return
	}

	if err := s.store.Save(c.Request.Context(), rep); err != nil {
		s.log.WithError(err).Error("saving report")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save report"})
		return
	}

	s.log.WithFields(logrus.Fields{
		"report_id":  rep.ID(),
		"experiment": req.Experiment,
		"samples":    len(req.Samples),
	}).Info("evaluation stored")

	c.JSON(http.StatusCreated, rep)
}

func (s *Server) handleListReports(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
		return
	}

	reports, err := s.store.List(c.Request.Context(), limit, offset)
	if err != nil {
		s.log.WithError(err).Error("listing reports")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list reports"})
		return
	}
	total, err := s.store.Count(c.Request.Context())
	if err != nil {
		s.log.WithError(err).Error("counting reports")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count reports"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":   total,
		"reports": reports,
	})
}

func (s *Server) handleGetReport(c *gin.Context) {
	rep, ok := s.findReport(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (s *Server) handleReportSummary(c *gin.Context) {
	rep, ok := s.findReport(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":      rep.ID(),
		"summary": rep.Summary(),
		"metrics": rep.Metrics(),
	})
}

func (s *Server) handleDeleteReport(c *gin.Context) {
	if err := s.store.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.log.WithError(err).Error("deleting report")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete report"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleExport(c *gin.Context) {
	c.Header("Content-Type", "application/json")
	if err := s.store.ExportJSON(c.Request.Context(), c.Writer); err != nil {
		s.log.WithError(err).Error("exporting reports")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to export reports"})
	}
}

func (s *Server) findReport(c *gin.Context) (*report.Report, bool) {
	rep, err := s.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.log.WithError(err).Error("fetching report")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch report"})
		return nil, false
	}
	if rep == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
		return nil, false
	}
	return rep, true
}
