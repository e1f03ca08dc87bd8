// Package report assembles the user and teacher report payloads from a lake
// snapshot. All computation is pure: the snapshot and any reference inputs
// come in as arguments, nothing is fetched here.
package report

import (
	"sort"
	"time"

	"github.com/studylake/studylake/internal/domain/lake"
	"github.com/studylake/studylake/internal/domain/narrative"
	"github.com/studylake/studylake/internal/domain/scoring"
)

// UserReport is the per-learner analytics payload for one date window.
type UserReport struct {
	UserID                string                      `json:"user_id"`
	SessionCount          int                         `json:"session_count"`
	AverageSessionSeconds float64                     `json:"average_session_seconds"`
	Focus                 scoring.ConcentrationResult `json:"focus"`
	Stress                scoring.StressResult        `json:"stress"`
	Log                   []narrative.Entry           `json:"log"`
}

// StudentRow is one line of the teacher report's students table.
type StudentRow struct {
	UserID               string  `json:"user_id"`
	FullName             string  `json:"fullname"`
	CompletionPercentage float64 `json:"completion_percentage"`
	Concentration        float64 `json:"concentration_score"`
	Stress               float64 `json:"stress_score"`
}

// DailyConcentration is one (day, course) cell of the teacher report.
type DailyConcentration struct {
	Date        string  `json:"date"`
	CourseID    int64   `json:"courseId"`
	CourseTitle string  `json:"course_title"`
	Score       float64 `json:"concentration_score"`
}

// TeacherReport aggregates activity across every course the teacher owns.
type TeacherReport struct {
	AvgTimeCourseSeconds float64              `json:"avg_time_course"`
	Students             []StudentRow         `json:"students_table"`
	CompletedCourse      float64              `json:"completed_course"`
	TotalSessions        int                  `json:"total_sessions"`
	Daily                []DailyConcentration `json:"concentration_per_course_and_day"`
}

const dailyDateLayout = "02-01-2006"

// BuildUserReport computes one user's report over [start, end). The
// concentration baseline reads the user's entire history in the snapshot, not
// just the window, so an established viewing habit carries across windows.
// Returns ErrNoData when the window holds no rows for the user.
func BuildUserReport(snap *lake.Snapshot, userID string, start, end time.Time) (UserReport, error) {
	period := snap.ForUserBetween(userID, start, end)
	if len(period) == 0 {
		return UserReport{}, ErrNoData
	}
	history := snap.ForUser(userID)

	sessions := lake.GroupSessions(period)
	var totalSecs float64
	for _, s := range sessions {
		totalSecs += s.Duration().Seconds()
	}

	focus, _ := scoring.Concentration(period, history)
	stress, _ := scoring.Stress(period)

	return UserReport{
		UserID:                userID,
		SessionCount:          len(sessions),
		AverageSessionSeconds: totalSecs / float64(len(sessions)),
		Focus:                 focus,
		Stress:                stress,
		Log:                   narrative.ForUser(period),
	}, nil
}

// BuildTeacherReport computes the cross-course report over [start, end).
// progress maps user id to mean course completion percentage (0-100 as
// delivered by the progress view); students appearing only in progress still
// get a table row with zero scores. An empty window yields an empty report,
// not an error, so a teacher with no recent activity sees zeros.
func BuildTeacherReport(snap *lake.Snapshot, teacherID string, start, end time.Time, progress map[string]float64) TeacherReport {
	rows := snap.ForTeacherBetween(teacherID, start, end)
	if len(rows) == 0 {
		return TeacherReport{
			Students: []StudentRow{},
			Daily:    []DailyConcentration{},
		}
	}

	return TeacherReport{
		AvgTimeCourseSeconds: avgTimePerCourse(rows),
		Students:             studentsTable(rows, progress),
		CompletedCourse:      meanCompletion(rows, progress),
		TotalSessions:        countSessions(rows),
		Daily:                dailyConcentration(rows),
	}
}

// studentsTable scores each student over their own rows, using those same
// rows as the jump baseline, and joins the completion percentage. The row set
// is the union of students with events and students in the progress view.
func studentsTable(rows []lake.Row, progress map[string]float64) []StudentRow {
	byUser := make(map[string][]lake.Row)
	names := make(map[string]string)
	for _, r := range rows {
		byUser[r.UserID] = append(byUser[r.UserID], r)
		if _, ok := names[r.UserID]; !ok {
			names[r.UserID] = fullName(r)
		}
	}

	ids := make(map[string]struct{}, len(byUser))
	for id := range byUser {
		ids[id] = struct{}{}
	}
	for id := range progress {
		ids[id] = struct{}{}
	}

	table := make([]StudentRow, 0, len(ids))
	for id := range ids {
		row := StudentRow{
			UserID:               id,
			FullName:             names[id],
			CompletionPercentage: progress[id] / 100,
		}
		if g := byUser[id]; len(g) > 0 {
			if c, ok := scoring.Concentration(g, g); ok {
				row.Concentration = c.Score
			}
			if s, ok := scoring.Stress(g); ok {
				row.Stress = s.Score
			}
		}
		table = append(table, row)
	}
	sort.Slice(table, func(i, j int) bool { return table[i].UserID < table[j].UserID })
	return table
}

func meanCompletion(rows []lake.Row, progress map[string]float64) float64 {
	table := studentsTable(rows, progress)
	if len(table) == 0 {
		return 0
	}
	var sum float64
	for _, s := range table {
		sum += s.CompletionPercentage
	}
	return sum / float64(len(table))
}

func countSessions(rows []lake.Row) int {
	seen := make(map[string]struct{})
	for _, r := range rows {
		seen[r.SessionID] = struct{}{}
	}
	return len(seen)
}

// avgTimePerCourse sums session durations per course and averages the totals
// over courses.
func avgTimePerCourse(rows []lake.Row) float64 {
	type key struct {
		session string
		course  int64
	}
	bounds := make(map[key][2]time.Time)
	for _, r := range rows {
		k := key{r.SessionID, r.CourseID}
		b, ok := bounds[k]
		if !ok {
			bounds[k] = [2]time.Time{r.AddedAt, r.AddedAt}
			continue
		}
		if r.AddedAt.Before(b[0]) {
			b[0] = r.AddedAt
		}
		if r.AddedAt.After(b[1]) {
			b[1] = r.AddedAt
		}
		bounds[k] = b
	}
	if len(bounds) == 0 {
		return 0
	}

	perCourse := make(map[int64]float64)
	for k, b := range bounds {
		perCourse[k.course] += b[1].Sub(b[0]).Seconds()
	}
	var sum float64
	for _, secs := range perCourse {
		sum += secs
	}
	return sum / float64(len(perCourse))
}

// dailyConcentration scores each (calendar day, course) group independently,
// the group serving as its own jump baseline.
func dailyConcentration(rows []lake.Row) []DailyConcentration {
	type key struct {
		date   string
		course int64
	}
	groups := make(map[key][]lake.Row)
	titles := make(map[int64]string)
	for _, r := range rows {
		k := key{r.AddedAt.Format(dailyDateLayout), r.CourseID}
		groups[k] = append(groups[k], r)
		if r.CourseTitle != "" {
			titles[r.CourseID] = r.CourseTitle
		}
	}

	out := make([]DailyConcentration, 0, len(groups))
	for k, g := range groups {
		cell := DailyConcentration{
			Date:        k.date,
			CourseID:    k.course,
			CourseTitle: titles[k.course],
		}
		if c, ok := scoring.Concentration(g, g); ok {
			cell.Score = c.Score
		}
		out = append(out, cell)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].CourseID < out[j].CourseID
	})
	return out
}

func fullName(r lake.Row) string {
	switch {
	case r.UserName == "":
		return r.UserLastName
	case r.UserLastName == "":
		return r.UserName
	default:
		return r.UserName + " " + r.UserLastName
	}
}
