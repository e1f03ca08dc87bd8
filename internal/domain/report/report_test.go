package report_test

import (
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/studylake/studylake/internal/domain/event"
	"github.com/studylake/studylake/internal/domain/lake"
	"github.com/studylake/studylake/internal/domain/narrative"
	"github.com/studylake/studylake/internal/domain/report"
)

var t0 = time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

func scrollRow(userID, sessionID string, offset time.Duration) lake.Row {
	return lake.Row{
		UserID:    userID,
		UserName:  "Ana",
		SessionID: sessionID,
		AddedAt:   t0.Add(offset),
		Metrics: event.Metrics{TextScroll: &event.TextScrollMetrics{
			Direction: "down", Distance: 400, At: t0.Add(offset),
		}},
	}
}

func teacherRow(userID, sessionID string, courseID int64, offset time.Duration) lake.Row {
	r := scrollRow(userID, sessionID, offset)
	r.TeacherID = "t1"
	r.CourseID = courseID
	r.CourseTitle = "Calculus"
	return r
}

func TestBuildUserReport(t *testing.T) {
	Convey("Given a snapshot with two sessions for one user", t, func() {
		rows := []lake.Row{
			scrollRow("u1", "s1", 0),
			scrollRow("u1", "s1", 100*time.Second),
			scrollRow("u1", "s2", time.Hour),
			scrollRow("u1", "s2", time.Hour+200*time.Second),
			scrollRow("u2", "s3", 0),
		}
		snap := lake.NewSnapshot(rows, t0)
		window := 24 * time.Hour

		Convey("When building the user report", func() {
			rep, err := report.BuildUserReport(snap, "u1", t0, t0.Add(window))

			Convey("Then session count and average duration reflect the window", func() {
				So(err, ShouldBeNil)
				So(rep.SessionCount, ShouldEqual, 2)
				So(rep.AverageSessionSeconds, ShouldAlmostEqual, 150.0, 1e-9)
			})

			Convey("Then the score sections carry per-session detail", func() {
				So(err, ShouldBeNil)
				So(len(rep.Focus.Sessions), ShouldEqual, 2)
				So(len(rep.Stress.Sessions), ShouldEqual, 2)
				So(rep.Focus.Score, ShouldBeBetween, 0.0, 1.0)
			})

			Convey("Then the narrative brackets every session", func() {
				So(err, ShouldBeNil)
				starts := 0
				for _, e := range rep.Log {
					if e.Type == narrative.SessionStart {
						starts++
					}
				}
				So(starts, ShouldEqual, 2)
			})
		})

		Convey("When the window excludes all of the user's rows", func() {
			_, err := report.BuildUserReport(snap, "u1", t0.Add(-window), t0)

			Convey("Then it should report no data, not an empty success", func() {
				So(errors.Is(err, report.ErrNoData), ShouldBeTrue)
			})
		})

		Convey("When the user does not exist at all", func() {
			_, err := report.BuildUserReport(snap, "ghost", t0, t0.Add(window))

			So(errors.Is(err, report.ErrNoData), ShouldBeTrue)
		})
	})
}

func TestBuildTeacherReport(t *testing.T) {
	Convey("Given a snapshot with activity across a teacher's courses", t, func() {
		rows := []lake.Row{
			teacherRow("u1", "s1", 7, 0),
			teacherRow("u1", "s1", 7, 100*time.Second),
			teacherRow("u2", "s2", 7, time.Hour),
			teacherRow("u2", "s2", 7, time.Hour+300*time.Second),
		}
		snap := lake.NewSnapshot(rows, t0)
		window := 24 * time.Hour

		Convey("When building with progress data", func() {
			progress := map[string]float64{"u1": 80, "u3": 40}
			rep := report.BuildTeacherReport(snap, "t1", t0, t0.Add(window), progress)

			Convey("Then the students table is the union of activity and progress", func() {
				So(len(rep.Students), ShouldEqual, 3)
				So(rep.Students[0].UserID, ShouldEqual, "u1")
				So(rep.Students[1].UserID, ShouldEqual, "u2")
				So(rep.Students[2].UserID, ShouldEqual, "u3")
			})

			Convey("Then completion percentages land on a 0-1 scale", func() {
				So(rep.Students[0].CompletionPercentage, ShouldAlmostEqual, 0.8, 1e-9)
				So(rep.Students[1].CompletionPercentage, ShouldEqual, 0.0)
				So(rep.CompletedCourse, ShouldAlmostEqual, (0.8+0.0+0.4)/3, 1e-9)
			})

			Convey("Then a progress-only student has zero scores but a row", func() {
				So(rep.Students[2].Concentration, ShouldEqual, 0.0)
				So(rep.Students[2].Stress, ShouldEqual, 0.0)
				So(rep.Students[2].FullName, ShouldBeEmpty)
			})

			Convey("Then session totals and per-course time aggregate", func() {
				So(rep.TotalSessions, ShouldEqual, 2)
				// One course: (100 + 300) seconds of session time.
				So(rep.AvgTimeCourseSeconds, ShouldAlmostEqual, 400.0, 1e-9)
			})

			Convey("Then daily concentration cells carry the course title", func() {
				So(len(rep.Daily), ShouldEqual, 1)
				So(rep.Daily[0].Date, ShouldEqual, "10-03-2026")
				So(rep.Daily[0].CourseID, ShouldEqual, int64(7))
				So(rep.Daily[0].CourseTitle, ShouldEqual, "Calculus")
				So(rep.Daily[0].Score, ShouldBeBetween, 0.0, 1.0)
			})
		})

		Convey("When the window holds nothing for the teacher", func() {
			rep := report.BuildTeacherReport(snap, "t1", t0.Add(-window), t0, nil)

			Convey("Then an empty report comes back, not an error", func() {
				So(rep.TotalSessions, ShouldEqual, 0)
				So(rep.Students, ShouldBeEmpty)
				So(rep.Daily, ShouldBeEmpty)
				So(rep.AvgTimeCourseSeconds, ShouldEqual, 0.0)
			})
		})

		Convey("When the progress fetch degraded to nil", func() {
			rep := report.BuildTeacherReport(snap, "t1", t0, t0.Add(window), nil)

			Convey("Then students still appear with zero completion", func() {
				So(len(rep.Students), ShouldEqual, 2)
				So(rep.Students[0].CompletionPercentage, ShouldEqual, 0.0)
			})
		})
	})
}
