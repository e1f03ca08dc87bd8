// Package repository is the Postgres event store. Raw events land here from
// the ingest pipeline and are read back whole-table by the lake builder.
package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/studylake/studylake/internal/domain/event"
)

const (
	selectEvents = `
		SELECT id, user_id, session_id, course_id, device, event_type, added_at, payload
		FROM telemetry_events
		ORDER BY added_at, id`

	selectEventsForUser = `
		SELECT id, user_id, session_id, course_id, device, event_type, added_at, payload
		FROM telemetry_events
		WHERE user_id = $1
		ORDER BY added_at, id`

	insertEvent = `
		INSERT INTO telemetry_events (id, user_id, session_id, course_id, device, event_type, added_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`
)

// Store reads and writes telemetry events in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// New connects a Store to the database and verifies the connection.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnect, err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnect, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnect, err)
	}
	return &Store{pool: pool}, nil
}

// Events returns the whole event table in stable order.
func (s *Store) Events(ctx context.Context) ([]event.Raw, error) {
	return s.query(ctx, selectEvents)
}

// EventsForUser returns one user's events in stable order.
func (s *Store) EventsForUser(ctx context.Context, userID string) ([]event.Raw, error) {
	return s.query(ctx, selectEventsForUser, userID)
}

func (s *Store) query(ctx context.Context, sql string, args ...any) ([]event.Raw, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQuery, err)
	}
	defer rows.Close()

	var out []event.Raw
	for rows.Next() {
		var e event.Raw
		var typ string
		if err := rows.Scan(&e.ID, &e.UserID, &e.SessionID, &e.CourseID, &e.Device, &typ, &e.AddedAt, &e.Payload); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrQuery, err)
		}
		e.Type = event.Type(typ)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQuery, err)
	}
	return out, nil
}

// Insert persists one raw event. Replays of an already-stored id are ignored
// so retried deliveries do not duplicate rows.
func (s *Store) Insert(ctx context.Context, e event.Raw) error {
	_, err := s.pool.Exec(ctx, insertEvent,
		e.ID, e.UserID, e.SessionID, e.CourseID, e.Device, string(e.Type), e.AddedAt, e.Payload)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInsert, err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}
