// Package refresher periodically rebuilds the lake snapshot and publishes it
// atomically. Readers always see either the previous complete snapshot or the
// new complete snapshot, never a partial build.
package refresher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/studylake/studylake/internal/domain/lake"
	"github.com/studylake/studylake/pkg/logger"
	"github.com/studylake/studylake/pkg/metrics"
)

// ErrNotReady means no snapshot has been built successfully yet.
var ErrNotReady = errors.New("snapshot not ready")

const defaultInterval = 600 * time.Second

// SnapshotBuilder produces one complete snapshot per call.
type SnapshotBuilder interface {
	Build(ctx context.Context) (*lake.Snapshot, error)
}

// Refresher owns the rebuild loop. A single goroutine drives it, so builds
// never overlap: a build that outlives the tick delays the next one rather
// than racing it.
type Refresher struct {
	builder  SnapshotBuilder
	interval time.Duration
	logger   logger.Logger

	current  atomic.Pointer[lake.Snapshot]
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Option applies a configuration option to the Refresher.
type Option func(*Refresher)

// WithInterval sets the rebuild period.
func WithInterval(d time.Duration) Option {
	return func(r *Refresher) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithLogger sets a custom logger for the refresher.
func WithLogger(l logger.Logger) Option {
	return func(r *Refresher) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a Refresher over the given builder.
func New(builder SnapshotBuilder, opts ...Option) *Refresher {
	r := &Refresher{
		builder:  builder,
		interval: defaultInterval,
		stopChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logger.Get().Named("refresher")
	}
	return r
}

// Current returns the latest snapshot, or ErrNotReady before the first
// successful build.
func (r *Refresher) Current() (*lake.Snapshot, error) {
	snap := r.current.Load()
	if snap == nil {
		return nil, ErrNotReady
	}
	return snap, nil
}

// Refresh runs one build and publishes the result. On failure the previous
// snapshot stays published: stale data beats no data.
func (r *Refresher) Refresh(ctx context.Context) error {
	start := time.Now()
	snap, err := r.builder.Build(ctx)
	metrics.RecordLakeBuildDuration(time.Since(start).Seconds())
	if err != nil {
		// Cancellation means shutdown, not a failed refresh.
		if errors.Is(err, context.Canceled) {
			r.logger.Debug(ctx, "snapshot build cancelled")
			return err
		}
		metrics.RecordLakeBuildError()
		r.logger.Error(ctx, "snapshot build failed; keeping previous snapshot", logger.Error(err))
		return err
	}

	r.current.Store(snap)
	metrics.IncrementSnapshotCount()
	metrics.UpdateSnapshotLastUnix(float64(snap.BuiltAt().Unix()))
	metrics.UpdateLakeRows(snap.Len())
	r.logger.Info(ctx, "snapshot published",
		logger.Int("rows", snap.Len()),
		logger.String("took", time.Since(start).String()),
	)
	return nil
}

// Start runs an initial build synchronously, then launches the periodic loop.
// A failed initial build is tolerated: the service comes up not-ready and the
// loop keeps retrying on the regular interval.
func (r *Refresher) Start(ctx context.Context) {
	if err := r.Refresh(ctx); err != nil {
		r.logger.Warn(ctx, "initial snapshot build failed; serving not-ready until next attempt",
			logger.Error(err))
	}

	r.wg.Add(1)
	go r.loop(ctx)
}

func (r *Refresher) loop(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = r.Refresh(ctx)
		case <-r.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Close stops the rebuild loop and waits for an in-flight build to finish.
// Safe to call more than once.
func (r *Refresher) Close() {
	r.stopOnce.Do(func() { close(r.stopChan) })
	r.wg.Wait()
}
