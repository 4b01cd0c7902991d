// Package api exposes the scrape trigger and the stored postings over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/spigell/job-radar/internal/jobs"
	"github.com/spigell/job-radar/internal/listing"
	"github.com/spigell/job-radar/internal/logger"
	"github.com/spigell/job-radar/internal/scrape"
	"github.com/spigell/job-radar/internal/storage"
)

// RequesterHeader identifies who triggers a scrape.
const RequesterHeader = "X-Requester"

const defaultRunsLimit = 20

type Triggerer interface {
	Trigger(ctx context.Context, req scrape.TriggerRequest, requester string) (*scrape.TriggerResponse, error)
}

type Lister interface {
	List(ctx context.Context, q storage.Query, resume *jobs.ParsedResume) (*listing.Result, error)
}

type RunReader interface {
	Runs(ctx context.Context, limit int) ([]*jobs.Run, error)
	RunLogs(ctx context.Context, runID string) ([]*jobs.Log, error)
}

type Deps struct {
	Trigger Triggerer
	Lister  Lister
	Runs    RunReader
	// Resume annotates listings requested with match=true.
	Resume *jobs.ParsedResume
	Logger *zap.Logger
}

type Server struct {
	deps   Deps
	engine *gin.Engine
	logger *zap.Logger
}

func New(deps Deps) *Server {
	s := &Server{deps: deps, engine: gin.New(), logger: logger.OrNop(deps.Logger)}
	s.engine.Use(gin.Recovery(), requestLogger(s.logger))

	s.engine.GET("/health", s.health)
	v1 := s.engine.Group("/api/v1")
	{
		v1.POST("/scrapes", s.triggerScrape)
		v1.GET("/jobs", s.listJobs)
		v1.GET("/runs", s.listRuns)
		v1.GET("/runs/:id/logs", s.runLogs)
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		s.logger.Info("shutting down http server")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) triggerScrape(c *gin.Context) {
	var req scrape.TriggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	requester := strings.TrimSpace(c.GetHeader(RequesterHeader))
	if requester == "" {
		requester = "anonymous"
	}

	resp, err := s.deps.Trigger.Trigger(c.Request.Context(), req, requester)
	switch {
	case errors.Is(err, scrape.ErrNoSources), errors.Is(err, scrape.ErrInvalidOptions):
		details := []string{}
		if resp != nil {
			details = resp.Errors
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "errors": details})
		return
	case err != nil:
		s.logger.Error("scrape trigger failed", zap.String(logger.FieldRequester, requester), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) listJobs(c *gin.Context) {
	var q storage.Query
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query: " + err.Error()})
		return
	}

	var resume *jobs.ParsedResume
	if match, _ := strconv.ParseBool(c.Query("match")); match {
		if s.deps.Resume == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no resume is configured for matching"})
			return
		}
		resume = s.deps.Resume
	}

	result, err := s.deps.Lister.List(c.Request.Context(), q, resume)
	switch {
	case errors.Is(err, storage.ErrInvalidQuery), errors.Is(err, listing.ErrResumeRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		s.logger.Error("listing postings", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) listRuns(c *gin.Context) {
	limit := defaultRunsLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	runs, err := s.deps.Runs.Runs(c.Request.Context(), limit)
	if err != nil {
		s.logger.Error("listing runs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if runs == nil {
		runs = []*jobs.Run{}
	}
	c.JSON(http.StatusOK, gin.H{"items": runs})
}

func (s *Server) runLogs(c *gin.Context) {
	logs, err := s.deps.Runs.RunLogs(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	case err != nil:
		s.logger.Error("listing run logs", zap.String(logger.FieldRunID, c.Param("id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": logs})
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		log.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(started)),
		)
	}
}
