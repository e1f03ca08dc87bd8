package lake

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/studylake/studylake/internal/domain/event"
	"github.com/studylake/studylake/pkg/logger"
	"github.com/studylake/studylake/pkg/metrics"
)

// Sentinel kinds for build errors.
var (
	// ErrEventFetch means the event store itself was unavailable; unlike a
	// reference-source failure this fails the whole build.
	ErrEventFetch = errors.New("event fetch failed")
)

const defaultReferenceTimeout = 15 * time.Second

// EventSource provides the raw event table.
type EventSource interface {
	Events(ctx context.Context) ([]event.Raw, error)
}

// ReferenceSource provides the user and course reference tables.
type ReferenceSource interface {
	Users(ctx context.Context) ([]User, error)
	Courses(ctx context.Context) ([]Course, error)
}

// Builder assembles lake snapshots from the event store and reference API.
type Builder struct {
	events           EventSource
	refs             ReferenceSource
	referenceTimeout time.Duration
	logger           logger.Logger
}

// BuilderOption applies a configuration option to the Builder.
type BuilderOption func(*Builder)

// WithReferenceTimeout bounds each reference-data fetch during a build.
func WithReferenceTimeout(d time.Duration) BuilderOption {
	return func(b *Builder) {
		if d > 0 {
			b.referenceTimeout = d
		}
	}
}

// WithLogger sets a custom logger for the builder.
func WithLogger(l logger.Logger) BuilderOption {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBuilder creates a Builder over the given sources.
func NewBuilder(events EventSource, refs ReferenceSource, opts ...BuilderOption) *Builder {
	b := &Builder{
		events:           events,
		refs:             refs,
		referenceTimeout: defaultReferenceTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = logger.Get().Named("lake")
	}
	return b
}

// Build produces one snapshot: fetch references and events, normalize every
// payload, join reference attributes, and drop metric-tuple duplicates.
//
// A reference source that fails degrades to an empty table; every event
// still survives the join, just without names or titles. Only an event-store
// failure aborts the build. Given identical inputs the output row set is
// identical: events are walked in store order and dedup keeps the first
// occurrence.
func (b *Builder) Build(ctx context.Context) (*Snapshot, error) {
	users, courses := b.fetchReferences(ctx)

	raws, err := b.events.Events(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEventFetch, err)
	}

	rows := make([]Row, 0, len(raws))
	dedup := newDedupSet()
	malformed := 0

	for _, raw := range raws {
		m, err := event.Normalize(raw.Type, raw.Payload)
		if err != nil {
			// A corrupted payload drops the single event, never the build.
			malformed++
			metrics.RecordMalformedEvent()
			b.logger.Warn(ctx, "dropping malformed event",
				logger.String("eventID", raw.ID),
				logger.String("type", string(raw.Type)),
				logger.Error(err),
			)
			continue
		}

		if dedup.seenAndRecord(m.DedupKey()) {
			metrics.RecordDuplicateRowDropped()
			continue
		}

		row := Row{
			UserID:    raw.UserID,
			SessionID: raw.SessionID,
			CourseID:  raw.CourseID,
			Type:      raw.Type,
			AddedAt:   raw.AddedAt,
			Metrics:   m,
		}
		if u, ok := users[raw.UserID]; ok {
			row.UserName = u.Name
			row.UserLastName = u.LastName
		}
		if c, ok := courses[raw.CourseID]; ok {
			row.CourseTitle = c.Title
			row.TeacherID = c.TeacherID
		}
		rows = append(rows, row)
	}

	if malformed > 0 {
		b.logger.Warn(ctx, "build dropped malformed events", logger.Int("count", malformed))
	}

	return NewSnapshot(rows, time.Now()), nil
}

// fetchReferences loads both reference tables concurrently under a bounded
// timeout. Each source degrades independently: partial reference data is more
// useful than no snapshot at all.
func (b *Builder) fetchReferences(ctx context.Context) (map[string]User, map[int64]Course) {
	fetchCtx, cancel := context.WithTimeout(ctx, b.referenceTimeout)
	defer cancel()

	users := make(map[string]User)
	courses := make(map[int64]Course)

	g, gctx := errgroup.WithContext(fetchCtx)
	var userList []User
	var courseList []Course
	var userErr, courseErr error

	g.Go(func() error {
		userList, userErr = b.refs.Users(gctx)
		return nil // degradation is handled per source, not via group error
	})
	g.Go(func() error {
		courseList, courseErr = b.refs.Courses(gctx)
		return nil
	})
	_ = g.Wait()

	if userErr != nil {
		metrics.RecordReferenceFetchFailure("users")
		b.logger.Warn(ctx, "user reference fetch failed; building with empty user table",
			logger.Error(userErr))
	}
	if courseErr != nil {
		metrics.RecordReferenceFetchFailure("courses")
		b.logger.Warn(ctx, "course reference fetch failed; building with empty course table",
			logger.Error(courseErr))
	}

	for _, u := range userList {
		users[u.ID] = u
	}
	for _, c := range courseList {
		courses[c.ID] = c
	}
	return users, courses
}
