package lake_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/studylake/studylake/internal/domain/event"
	"github.com/studylake/studylake/internal/domain/lake"
	"github.com/studylake/studylake/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type fakeEvents struct {
	events []event.Raw
	err    error
}

func (f *fakeEvents) Events(ctx context.Context) ([]event.Raw, error) {
	return f.events, f.err
}

type fakeRefs struct {
	users      []lake.User
	courses    []lake.Course
	usersErr   error
	coursesErr error
}

func (f *fakeRefs) Users(ctx context.Context) ([]lake.User, error) {
	return f.users, f.usersErr
}

func (f *fakeRefs) Courses(ctx context.Context) ([]lake.Course, error) {
	return f.courses, f.coursesErr
}

func scrollEvent(id, userID, sessionID string, courseID int64, distance float64, at time.Time) event.Raw {
	return event.Raw{
		ID:        id,
		UserID:    userID,
		SessionID: sessionID,
		CourseID:  courseID,
		Type:      event.TypeTextScroll,
		AddedAt:   at,
		Payload: map[string]any{
			"scroll_direction":        "down",
			"scroll_distance":         distance,
			"current_scroll_position": 100.0,
			"timestamp":               at.UnixMilli(),
		},
	}
}

func TestBuilder(t *testing.T) {
	Convey("Given a builder over fake sources", t, func() {
		at := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
		users := []lake.User{{ID: "u1", Name: "Ana", LastName: "Torres"}}
		courses := []lake.Course{{ID: 7, Title: "Calculus", TeacherID: "t1"}}

		Convey("When building from well-formed events", func() {
			events := &fakeEvents{events: []event.Raw{
				scrollEvent("e1", "u1", "s1", 7, 250, at),
				scrollEvent("e2", "u2", "s2", 99, 300, at.Add(time.Minute)),
			}}
			b := lake.NewBuilder(events, &fakeRefs{users: users, courses: courses})
			snap, err := b.Build(context.Background())

			Convey("Then every event should survive with reference attributes joined", func() {
				So(err, ShouldBeNil)
				So(snap.Len(), ShouldEqual, 2)

				rows := snap.Rows()
				So(rows[0].UserName, ShouldEqual, "Ana")
				So(rows[0].CourseTitle, ShouldEqual, "Calculus")
				So(rows[0].TeacherID, ShouldEqual, "t1")
			})

			Convey("Then an event with no matching references should keep empty attributes", func() {
				So(err, ShouldBeNil)
				rows := snap.Rows()
				So(rows[1].UserID, ShouldEqual, "u2")
				So(rows[1].UserName, ShouldBeEmpty)
				So(rows[1].CourseTitle, ShouldBeEmpty)
			})
		})

		Convey("When both reference sources fail", func() {
			events := &fakeEvents{events: []event.Raw{
				scrollEvent("e1", "u1", "s1", 7, 250, at),
			}}
			refs := &fakeRefs{
				usersErr:   errors.New("identity api down"),
				coursesErr: errors.New("catalog api down"),
			}
			snap, err := b(events, refs).Build(context.Background())

			Convey("Then the build should still succeed with bare rows", func() {
				So(err, ShouldBeNil)
				So(snap.Len(), ShouldEqual, 1)
				So(snap.Rows()[0].UserName, ShouldBeEmpty)
			})
		})

		Convey("When the event store itself fails", func() {
			events := &fakeEvents{err: errors.New("connection refused")}
			_, err := b(events, &fakeRefs{}).Build(context.Background())

			Convey("Then the build should abort with the fetch sentinel", func() {
				So(err, ShouldNotBeNil)
				So(errors.Is(err, lake.ErrEventFetch), ShouldBeTrue)
			})
		})

		Convey("When the same metric tuple is delivered twice", func() {
			dup := scrollEvent("e1", "u1", "s1", 7, 250, at)
			redelivered := dup
			redelivered.ID = "e1-retry" // at-least-once delivery mints a fresh id

			events := &fakeEvents{events: []event.Raw{dup, redelivered}}
			snap, err := b(events, &fakeRefs{users: users, courses: courses}).Build(context.Background())

			Convey("Then only the first occurrence should survive", func() {
				So(err, ShouldBeNil)
				So(snap.Len(), ShouldEqual, 1)
			})
		})

		Convey("When a payload is malformed", func() {
			bad := event.Raw{
				ID: "bad", UserID: "u1", SessionID: "s1", CourseID: 7,
				Type: event.TypeTextScroll, AddedAt: at,
				Payload: map[string]any{"scroll_direction": "down"},
			}
			events := &fakeEvents{events: []event.Raw{
				bad,
				scrollEvent("e2", "u1", "s1", 7, 250, at),
			}}
			snap, err := b(events, &fakeRefs{users: users, courses: courses}).Build(context.Background())

			Convey("Then only the corrupted event should be dropped", func() {
				So(err, ShouldBeNil)
				So(snap.Len(), ShouldEqual, 1)
				So(snap.Rows()[0].Metrics.TextScroll, ShouldNotBeNil)
			})
		})

		Convey("When building twice from unchanged inputs", func() {
			events := &fakeEvents{events: []event.Raw{
				scrollEvent("e1", "u1", "s1", 7, 250, at),
				scrollEvent("e2", "u1", "s1", 7, 300, at.Add(time.Minute)),
				scrollEvent("e3", "u1", "s1", 7, 250, at), // duplicate tuple of e1
			}}
			builder := b(events, &fakeRefs{users: users, courses: courses})

			first, err1 := builder.Build(context.Background())
			second, err2 := builder.Build(context.Background())

			Convey("Then the row sets should be identical", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(second.Len(), ShouldEqual, first.Len())
				for i := range first.Rows() {
					So(second.Rows()[i].Metrics.DedupKey(), ShouldEqual, first.Rows()[i].Metrics.DedupKey())
				}
			})
		})
	})
}

func b(events lake.EventSource, refs lake.ReferenceSource) *lake.Builder {
	return lake.NewBuilder(events, refs, lake.WithReferenceTimeout(time.Second))
}

func TestSnapshotQueries(t *testing.T) {
	Convey("Given a built snapshot", t, func() {
		base := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
		rows := []lake.Row{
			{UserID: "u1", SessionID: "s1", TeacherID: "t1", AddedAt: base},
			{UserID: "u1", SessionID: "s2", TeacherID: "t1", AddedAt: base.Add(48 * time.Hour)},
			{UserID: "u2", SessionID: "s3", TeacherID: "t2", AddedAt: base.Add(time.Hour)},
		}
		snap := lake.NewSnapshot(rows, base)

		Convey("ForUser should return every row of that user", func() {
			So(len(snap.ForUser("u1")), ShouldEqual, 2)
			So(len(snap.ForUser("nobody")), ShouldEqual, 0)
		})

		Convey("ForUserBetween should apply the half-open window", func() {
			got := snap.ForUserBetween("u1", base, base.Add(24*time.Hour))
			So(len(got), ShouldEqual, 1)
			So(got[0].SessionID, ShouldEqual, "s1")

			Convey("And the window start should be inclusive, the end exclusive", func() {
				So(len(snap.ForUserBetween("u1", base, base)), ShouldEqual, 0)
			})
		})

		Convey("ForTeacherBetween should select by teacher across users", func() {
			got := snap.ForTeacherBetween("t1", base, base.Add(72*time.Hour))
			So(len(got), ShouldEqual, 2)
		})
	})
}

func TestGroupSessions(t *testing.T) {
	Convey("Given rows spanning several sessions", t, func() {
		rows := []lake.Row{
			{SessionID: "s2", AddedAt: time.UnixMilli(30)},
			{SessionID: "s1", AddedAt: time.UnixMilli(10)},
			{SessionID: "s2", AddedAt: time.UnixMilli(20)},
		}

		Convey("When grouping", func() {
			sessions := lake.GroupSessions(rows)

			Convey("Then sessions should come out in first-encounter order", func() {
				So(len(sessions), ShouldEqual, 2)
				So(sessions[0].ID, ShouldEqual, "s2")
				So(sessions[1].ID, ShouldEqual, "s1")
				So(len(sessions[0].Rows), ShouldEqual, 2)
			})

			Convey("Then Bounds should span min to max regardless of row order", func() {
				start, end := sessions[0].Bounds()
				So(start.UnixMilli(), ShouldEqual, int64(20))
				So(end.UnixMilli(), ShouldEqual, int64(30))
			})
		})
	})
}
