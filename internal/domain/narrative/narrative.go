// Package narrative turns a session's raw telemetry into a human-readable
// activity log: a chronological list of notable moments bracketed by
// synthetic session-start and session-end markers.
package narrative

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/studylake/studylake/internal/domain/lake"
)

// EntryType labels one narrative log entry.
type EntryType string

const (
	SessionStart      EntryType = "SESSION_START"
	SessionEnd        EntryType = "SESSION_END"
	FocusLost         EntryType = "FOCUS_LOST"
	FocusGained       EntryType = "FOCUS_GAINED"
	VideoPaused       EntryType = "VIDEO_PAUSED"
	VideoSpeedChanged EntryType = "VIDEO_SPEED_CHANGED"
	ScreenUnpinned    EntryType = "SCREEN_UNPINNED"
	WatchRemoved      EntryType = "WATCH_REMOVED"
	WeakSignal        EntryType = "WEAK_SIGNAL"
	StressIncreased   EntryType = "STRESS_INCREASED"
	StressDecreased   EntryType = "STRESS_DECREASED"
	BecameActive      EntryType = "BECAME_ACTIVE"
	BecameSedentary   EntryType = "BECAME_SEDENTARY"
)

// Entry is one line of the session narrative. TimestampMS is epoch
// milliseconds so web clients consume it without date parsing.
type Entry struct {
	SessionID   string    `json:"session_id"`
	UserName    string    `json:"user_name"`
	Type        EntryType `json:"event_type"`
	Description string    `json:"event_description"`
	TimestampMS int64     `json:"timestamp"`
}

// Thresholds for the aggregated state transitions.
const (
	stressHRThreshold      = 100.0 // bpm above which the user counts as stressed
	calmHRThreshold        = 80.0  // bpm below which stress clears again
	activitySpeedThreshold = 1.0   // m/s above which the user counts as active
	pauseNarrationSecs     = 10.0
)

// stateMachine folds noisy samples into edge-triggered transitions. Repeated
// elevated heart-rate readings produce a single STRESS_INCREASED; the
// hysteresis band between the two thresholds suppresses flapping.
type stateMachine struct {
	stressed bool
	active   bool
}

func (m *stateMachine) heartRate(bpm float64) (EntryType, string, bool) {
	switch {
	case bpm > stressHRThreshold && !m.stressed:
		m.stressed = true
		return StressIncreased, "Detected an elevated heart rate, indicating a rise in stress.", true
	case bpm < calmHRThreshold && m.stressed:
		m.stressed = false
		return StressDecreased, "Heart rate has returned to a normal level.", true
	}
	return "", "", false
}

func (m *stateMachine) physical(speed float64, userName string) (EntryType, string, bool) {
	switch {
	case speed > activitySpeedThreshold && !m.active:
		m.active = true
		return BecameActive, fmt.Sprintf("%s became physically active (e.g., got up or started walking).", userName), true
	case speed < activitySpeedThreshold && m.active:
		m.active = false
		return BecameSedentary, fmt.Sprintf("%s is no longer physically active.", userName), true
	}
	return "", "", false
}

// Generate narrates one session. Rows are sorted chronologically first; the
// result always opens with SESSION_START and closes with SESSION_END, at the
// earliest and latest row times. Empty sessions narrate to nothing.
func Generate(s lake.Session) []Entry {
	if len(s.Rows) == 0 {
		return nil
	}

	rows := make([]lake.Row, len(s.Rows))
	copy(rows, s.Rows)
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].AddedAt.Before(rows[j].AddedAt)
	})

	userName := rows[0].UserName
	start, end := s.Bounds()

	entries := []Entry{{
		SessionID:   s.ID,
		UserName:    userName,
		Type:        SessionStart,
		Description: fmt.Sprintf("%s started a study session.", userName),
		TimestampMS: start.UnixMilli(),
	}}

	var machine stateMachine
	for _, r := range rows {
		ts := r.AddedAt.UnixMilli()
		m := r.Metrics
		switch {
		case m.FocusLost != nil:
			entries = append(entries, entry(s.ID, userName, FocusLost,
				fmt.Sprintf("%s lost focus on the page.", userName), ts))
		case m.FocusGain != nil:
			entries = append(entries, entry(s.ID, userName, FocusGained,
				fmt.Sprintf("%s returned to the page.", userName), ts))
		case m.VideoPaused != nil:
			// Short pauses are normal viewing behavior, not a moment.
			if m.VideoPaused.DurationSeconds > pauseNarrationSecs {
				entries = append(entries, entry(s.ID, userName, VideoPaused,
					fmt.Sprintf("Paused the video for %d seconds.", int(m.VideoPaused.DurationSeconds)), ts))
			}
		case m.VideoSpeed != nil:
			entries = append(entries, entry(s.ID, userName, VideoSpeedChanged,
				fmt.Sprintf("Changed video speed to %sx.", strconv.FormatFloat(m.VideoSpeed.Speed, 'g', -1, 64)), ts))
		case m.UnpinScreen != nil:
			entries = append(entries, entry(s.ID, userName, ScreenUnpinned,
				fmt.Sprintf("%s unpinned the screen on their phone.", userName), ts))
		case m.WearableOff != nil:
			entries = append(entries, entry(s.ID, userName, WatchRemoved,
				fmt.Sprintf("%s took off the smart watch.", userName), ts))
		case m.WeakSignal != nil:
			entries = append(entries, entry(s.ID, userName, WeakSignal,
				"A weak signal was detected, which may cause interruptions.", ts))
		case m.HeartRate != nil:
			if t, desc, ok := machine.heartRate(m.HeartRate.Mean); ok {
				entries = append(entries, entry(s.ID, userName, t, desc, ts))
			}
		case m.Physical != nil:
			if t, desc, ok := machine.physical(m.Physical.Speed, userName); ok {
				entries = append(entries, entry(s.ID, userName, t, desc, ts))
			}
		}
	}

	entries = append(entries, entry(s.ID, userName, SessionEnd,
		fmt.Sprintf("%s ended the study session.", userName), end.UnixMilli()))
	return entries
}

// ForUser narrates every session found in rows, concatenated in the order
// sessions are first encountered. Sessions are narrated independently; the
// combined log is not re-sorted across session boundaries.
func ForUser(rows []lake.Row) []Entry {
	var out []Entry
	for _, s := range lake.GroupSessions(rows) {
		out = append(out, Generate(s)...)
	}
	return out
}

func entry(sessionID, userName string, t EntryType, desc string, ts int64) Entry {
	return Entry{
		SessionID:   sessionID,
		UserName:    userName,
		Type:        t,
		Description: desc,
		TimestampMS: ts,
	}
}
