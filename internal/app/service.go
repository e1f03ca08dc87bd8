// Package app assembles the service: event store, reference client, lake
// builder, refresher, and the ingest pipeline. It implements the dependency
// interfaces the HTTP API consumes.
package app

import (
	"context"
	"runtime"
	"sync"
	"time"

	eventqueue "github.com/studylake/studylake/internal/adapters/mq/queue"
	writerpool "github.com/studylake/studylake/internal/adapters/mq/worker"
	"github.com/studylake/studylake/internal/adapters/refapi"
	"github.com/studylake/studylake/internal/adapters/refresher"
	"github.com/studylake/studylake/internal/adapters/repository"
	"github.com/studylake/studylake/internal/domain/lake"
	"github.com/studylake/studylake/pkg/logger"
)

// Service owns the component lifecycle and exposes the API dependencies.
type Service struct {
	mu sync.Mutex

	store     *repository.Store
	refClient *refapi.Client
	refresh   *refresher.Refresher
	queue     *eventqueue.InMemoryQueue
	writers   *writerpool.Pool

	postgresDSN      string
	refAPIBaseURL    string
	refAPIToken      string
	refreshInterval  time.Duration
	referenceTimeout time.Duration
	queueSize        int
	writerCount      int

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithPostgresDSN points the service at the event store.
func WithPostgresDSN(dsn string) Option {
	return func(s *Service) {
		if dsn != "" {
			s.postgresDSN = dsn
		}
	}
}

// WithReferenceAPI sets the reference API base URL and bearer token.
func WithReferenceAPI(baseURL, token string) Option {
	return func(s *Service) {
		if baseURL != "" {
			s.refAPIBaseURL = baseURL
		}
		s.refAPIToken = token
	}
}

// WithRefreshInterval sets the lake rebuild period.
func WithRefreshInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.refreshInterval = d
		}
	}
}

// WithReferenceTimeout bounds reference fetches during builds.
func WithReferenceTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.referenceTimeout = d
		}
	}
}

// WithQueueSize bounds the ingest queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithWriterCount sets the number of ingest writer goroutines.
func WithWriterCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.writerCount = count
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		refreshInterval:  600 * time.Second,
		referenceTimeout: 15 * time.Second,
		queueSize:        10_000,
		writerCount:      runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("app")
	}
	return s
}

// Start connects the store, builds the first snapshot, and launches the
// refresh loop and the ingest writers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting telemetry service")

	store, err := repository.New(ctx, s.postgresDSN)
	if err != nil {
		return err
	}
	s.store = store

	s.refClient = refapi.New(s.refAPIBaseURL, s.refAPIToken,
		refapi.WithTimeout(s.referenceTimeout),
	)

	builder := lake.NewBuilder(s.store, s.refClient,
		lake.WithReferenceTimeout(s.referenceTimeout),
	)
	s.refresh = refresher.New(builder,
		refresher.WithInterval(s.refreshInterval),
	)
	s.refresh.Start(ctx)

	s.queue = eventqueue.NewInMemoryQueue(
		eventqueue.WithCapacity(s.queueSize),
	)
	s.writers = writerpool.NewPool(s.writerCount, s.queue, s.store)
	// Writers run on a context detached from the signal context: they must
	// outlive SIGTERM so Stop can drain buffered events before exit.
	s.writers.Start(context.WithoutCancel(ctx))

	s.started = true
	s.logger.Info(ctx, "telemetry service started",
		logger.Int("writers", s.writerCount),
		logger.Int("queueSize", s.queueSize),
		logger.String("refreshInterval", s.refreshInterval.String()),
	)
	return nil
}

// Stop drains the ingest pipeline and shuts everything down.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(ctx, "stopping telemetry service")

	// Pool.Shutdown closes the queue and waits for the writers to drain it.
	if s.writers != nil {
		_ = s.writers.Shutdown(ctx)
	}
	if s.refresh != nil {
		s.refresh.Close()
	}
	if s.store != nil {
		s.store.Close()
	}

	s.started = false
	s.logger.Info(ctx, "telemetry service stopped")
}

// Current returns the published lake snapshot.
func (s *Service) Current() (*lake.Snapshot, error) {
	return s.refresh.Current()
}

// Refresh forces one immediate snapshot rebuild.
func (s *Service) Refresh(ctx context.Context) error {
	return s.refresh.Refresh(ctx)
}

// Progress fetches per-student course completion for a teacher.
func (s *Service) Progress(ctx context.Context, teacherID string) (map[string]float64, error) {
	return s.refClient.Progress(ctx, teacherID)
}

// Enqueue submits an event for asynchronous persistence.
func (s *Service) Enqueue(ctx context.Context, e eventqueue.Event) bool {
	return s.queue.Enqueue(ctx, e)
}
