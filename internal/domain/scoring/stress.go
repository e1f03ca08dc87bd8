package scoring

import (
	"math"

	"github.com/studylake/studylake/internal/domain/lake"
)

// Stress sub-score names.
const (
	StressHeartRate = "heartrate"
	StressActivity  = "activity"
	StressScrolling = "scrolling"
	StressJumping   = "jumping"
	StressFocusLoss = "focus_loss"
)

// StressWeights sum to 1.0.
var StressWeights = map[string]float64{
	StressHeartRate: 0.40,
	StressActivity:  0.15,
	StressScrolling: 0.15,
	StressJumping:   0.10,
	StressFocusLoss: 0.20,
}

// Tuning constants for the stress heuristics.
const (
	restingHeartRate    = 75.0
	heartRateSpan       = 35.0
	activeSpeedMS       = 1.0
	scrollCVNorm        = 1.5
	jumpsPerMinuteNorm  = 1.5
	lossesPerMinuteNorm = 1.0
)

// StressResult is the window-average aggregate plus per-session detail.
type StressResult struct {
	Score    float64
	Sessions []SessionScore
}

// Stress scores every session in the period rows. Higher is more stressed.
// Returns ok=false when the period holds no sessions; an individual session
// with no samples for a given signal contributes 0 for that signal rather
// than failing.
func Stress(period []lake.Row) (StressResult, bool) {
	sessions := lake.GroupSessions(period)

	var result StressResult
	for _, s := range sessions {
		if len(s.Rows) == 0 {
			continue
		}
		minutes := s.Duration().Minutes()
		sub := map[string]float64{
			StressHeartRate: heartRateStress(s.Rows),
			StressActivity:  activityStress(s.Rows),
			StressScrolling: scrollingStress(s.Rows),
			StressJumping:   rateStress(countJumps(s.Rows), minutes, jumpsPerMinuteNorm),
			StressFocusLoss: rateStress(countFocusLosses(s.Rows), minutes, lossesPerMinuteNorm),
		}
		var weighted float64
		for name, w := range StressWeights {
			weighted += sub[name] * w
		}
		result.Sessions = append(result.Sessions, SessionScore{
			SessionID: s.ID,
			Sub:       sub,
			Score:     weighted,
		})
	}

	if len(result.Sessions) == 0 {
		return StressResult{}, false
	}

	var sum float64
	for _, s := range result.Sessions {
		sum += s.Score
	}
	result.Score = sum / float64(len(result.Sessions))
	return result, true
}

// heartRateStress maps the session's mean heart rate onto [0,1] between the
// resting baseline (75bpm) and 110bpm.
func heartRateStress(rows []lake.Row) float64 {
	var sum float64
	n := 0
	for _, r := range rows {
		if hr := r.Metrics.HeartRate; hr != nil {
			sum += hr.Mean
			n++
		}
	}
	if n == 0 {
		return 0.0
	}
	return clamp((sum/float64(n) - restingHeartRate) / heartRateSpan)
}

// activityStress is the fraction of activity samples above walking speed.
func activityStress(rows []lake.Row) float64 {
	active, total := 0, 0
	for _, r := range rows {
		p := r.Metrics.Physical
		if p == nil {
			continue
		}
		total++
		if p.Speed > activeSpeedMS {
			active++
		}
	}
	if total == 0 {
		return 0.0
	}
	return float64(active) / float64(total)
}

// scrollingStress treats erratic scroll distances as agitation: the
// coefficient of variation normalized by 1.5 and clamped. Fewer than two
// samples gives no variation signal.
func scrollingStress(rows []lake.Row) float64 {
	var distances []float64
	for _, r := range rows {
		if ts := r.Metrics.TextScroll; ts != nil {
			distances = append(distances, ts.Distance)
		}
	}
	if len(distances) < 2 {
		return 0.0
	}
	m := mean(distances)
	if m == 0 {
		return 0.0
	}
	cv := sampleStd(distances) / m
	return clamp(cv / scrollCVNorm)
}

// rateStress normalizes an events-per-minute rate and clamps. A zero-length
// session has no meaningful rate.
func rateStress(count int, minutes, perMinuteNorm float64) float64 {
	if minutes <= 0 {
		return 0.0
	}
	return math.Min(1, (float64(count)/minutes)/perMinuteNorm)
}

func countJumps(rows []lake.Row) int {
	n := 0
	for _, r := range rows {
		if r.Metrics.VideoJump != nil {
			n++
		}
	}
	return n
}

func countFocusLosses(rows []lake.Row) int {
	n := 0
	for _, r := range rows {
		if r.Metrics.FocusLost != nil {
			n++
		}
	}
	return n
}
