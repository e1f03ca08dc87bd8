// Package lake materializes the joined, deduplicated telemetry table that all
// report computations read from.
package lake

import (
	"time"

	"github.com/studylake/studylake/internal/domain/event"
)

// User is a reference record from the identity API.
type User struct {
	ID       string
	Name     string
	LastName string
}

// Course is a reference record from the identity API.
type Course struct {
	ID        int64
	Title     string
	TeacherID string
}

// Row is one normalized event joined with user and course reference
// attributes. The opaque payload is gone; only typed metrics remain.
type Row struct {
	UserID    string
	SessionID string
	CourseID  int64
	Type      event.Type
	AddedAt   time.Time

	UserName     string
	UserLastName string
	CourseTitle  string
	TeacherID    string

	Metrics event.Metrics
}

// Snapshot is a fully built, immutable lake table. It is published atomically
// by the refresher and never mutated afterwards; a request holding a
// reference may keep reading it while the next build is in progress.
type Snapshot struct {
	rows    []Row
	builtAt time.Time
}

// NewSnapshot wraps rows into an immutable snapshot.
func NewSnapshot(rows []Row, builtAt time.Time) *Snapshot {
	return &Snapshot{rows: rows, builtAt: builtAt}
}

// Rows returns the full row table. Callers must not modify it.
func (s *Snapshot) Rows() []Row { return s.rows }

// Len returns the row count.
func (s *Snapshot) Len() int { return len(s.rows) }

// BuiltAt returns when the snapshot build completed.
func (s *Snapshot) BuiltAt() time.Time { return s.builtAt }

// ForUser returns every row of one user, in table order.
func (s *Snapshot) ForUser(userID string) []Row {
	var out []Row
	for _, r := range s.rows {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out
}

// ForUserBetween returns one user's rows with start <= AddedAt < end.
func (s *Snapshot) ForUserBetween(userID string, start, end time.Time) []Row {
	var out []Row
	for _, r := range s.rows {
		if r.UserID == userID && inWindow(r.AddedAt, start, end) {
			out = append(out, r)
		}
	}
	return out
}

// ForTeacherBetween returns rows of every course taught by the teacher with
// start <= AddedAt < end.
func (s *Snapshot) ForTeacherBetween(teacherID string, start, end time.Time) []Row {
	var out []Row
	for _, r := range s.rows {
		if r.TeacherID == teacherID && inWindow(r.AddedAt, start, end) {
			out = append(out, r)
		}
	}
	return out
}

func inWindow(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}

// Session is the implicit entity formed by grouping rows on session id.
type Session struct {
	ID   string
	Rows []Row
}

// GroupSessions splits rows into sessions in first-encounter order. Row order
// within a session follows table order; callers that need chronology sort on
// AddedAt themselves.
func GroupSessions(rows []Row) []Session {
	index := make(map[string]int)
	var sessions []Session
	for _, r := range rows {
		i, ok := index[r.SessionID]
		if !ok {
			i = len(sessions)
			index[r.SessionID] = i
			sessions = append(sessions, Session{ID: r.SessionID})
		}
		sessions[i].Rows = append(sessions[i].Rows, r)
	}
	return sessions
}

// Bounds returns the min and max AddedAt of the session's rows.
func (s Session) Bounds() (start, end time.Time) {
	for i, r := range s.Rows {
		if i == 0 || r.AddedAt.Before(start) {
			start = r.AddedAt
		}
		if i == 0 || r.AddedAt.After(end) {
			end = r.AddedAt
		}
	}
	return start, end
}

// Duration returns the session's wall-clock length.
func (s Session) Duration() time.Duration {
	start, end := s.Bounds()
	return end.Sub(start)
}
