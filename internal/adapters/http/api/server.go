// Package api declares the HTTP surface: event ingestion, report queries,
// snapshot introspection, health, and metrics.
package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/studylake/studylake/internal/adapters/mq/queue"
	"github.com/studylake/studylake/internal/domain/lake"
	"github.com/studylake/studylake/pkg/logger"
	"github.com/studylake/studylake/pkg/metrics"
)

// SnapshotProvider exposes the current lake snapshot.
type SnapshotProvider interface {
	Current() (*lake.Snapshot, error)
}

// ProgressProvider fetches per-student course completion for a teacher.
type ProgressProvider interface {
	Progress(ctx context.Context, teacherID string) (map[string]float64, error)
}

// Enqueuer pushes an event for async persistence. Returns false on
// backpressure.
type Enqueuer interface {
	Enqueue(ctx context.Context, e queue.Event) bool
}

// Server wires HTTP routes for the business API.
type Server struct {
	snapshots SnapshotProvider
	progress  ProgressProvider
	ingest    Enqueuer
	logger    logger.Logger
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithLogger sets a custom logger for the server.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates the API server over its dependencies.
func NewServer(snapshots SnapshotProvider, progress ProgressProvider, ingest Enqueuer, opts ...Option) *Server {
	s := &Server{
		snapshots: snapshots,
		progress:  progress,
		ingest:    ingest,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("api")
	}
	return s
}

// Register attaches all routes to the engine.
func (s *Server) Register(r *gin.Engine) {
	r.Use(MetricsMiddleware())

	r.POST("/events", s.handlePostEvent)
	r.GET("/reports/users/:id", s.handleUserReport)
	r.GET("/reports/teachers/:id", s.handleTeacherReport)
	r.GET("/snapshot", s.handleSnapshot)
	r.GET("/healthz", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(c *gin.Context, status int, code string, err error) {
	msg := code
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, errorResponse{Code: code, Message: msg})
}
