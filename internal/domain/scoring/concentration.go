// Package scoring computes per-session concentration and stress scores from
// lake rows. All sub-scores and aggregates are in [0,1]; missing metrics map
// to each metric's defined neutral value and never fail.
package scoring

import (
	"math"
	"sort"

	"github.com/studylake/studylake/internal/domain/lake"
)

// Concentration sub-score names.
const (
	MetricTextScroll       = "TEXT_SCROLL"
	MetricVideoJump        = "VIDEO_JUMP"
	MetricVideoPause       = "VIDEO_PAUSE"
	MetricVideoSpeed       = "VIDEO_SPEED"
	MetricTabFocus         = "TAB_FOCUS"
	MetricPhysicalActivity = "PHYSICAL_ACTIVITY"
	MetricWeakSignal       = "WEAK_SIGNAL"
	MetricWatchOff         = "WATCH_OFF"
)

// ConcentrationWeights sum to 1.0.
var ConcentrationWeights = map[string]float64{
	MetricTextScroll:       0.15,
	MetricVideoJump:        0.15,
	MetricVideoPause:       0.10,
	MetricVideoSpeed:       0.10,
	MetricTabFocus:         0.15,
	MetricPhysicalActivity: 0.10,
	MetricWeakSignal:       0.15,
	MetricWatchOff:         0.10,
}

// Tuning constants for the concentration heuristics.
const (
	scrollRefDownPx     = 500.0
	scrollRefUpPx       = 100.0
	scrollUpPenalty     = 0.8
	scrollBlendQuality  = 0.85
	scrollBlendConsist  = 0.15
	pauseThresholdSecs  = 60.0
	pauseCapSecs        = 300.0
	sedentarySpeedMS    = 1.0
	speedFreeThreshold  = 1.25
	speedZeroThreshold  = 2.0
	rssiFloor           = -90.0
	rssiCeil            = -70.0
	defaultJumpBaseline = 5.0
)

// SessionScore carries one session's sub-scores and weighted aggregate.
type SessionScore struct {
	SessionID string
	Sub       map[string]float64
	Score     float64
}

// ConcentrationResult is the window-average aggregate plus per-session detail.
type ConcentrationResult struct {
	Score    float64
	Sessions []SessionScore
}

// Concentration scores every session in the period rows. The history rows,
// typically the user's entire event history, feed the video-jump baseline
// only. Returns ok=false when the period holds no qualifying sessions, which
// is "no data", not a zero score.
func Concentration(period, history []lake.Row) (ConcentrationResult, bool) {
	sessions := lake.GroupSessions(period)

	var result ConcentrationResult
	for _, s := range sessions {
		if len(s.Rows) == 0 {
			continue
		}
		sub := map[string]float64{
			MetricTextScroll:       textScrollScore(s.Rows),
			MetricVideoJump:        videoJumpScore(s.Rows, history),
			MetricVideoPause:       videoPauseScore(s.Rows),
			MetricVideoSpeed:       videoSpeedScore(s.Rows),
			MetricTabFocus:         tabFocusScore(s),
			MetricPhysicalActivity: physicalActivityScore(s.Rows),
			MetricWeakSignal:       weakSignalScore(s.Rows),
			MetricWatchOff:         watchOffScore(s.Rows),
		}
		var weighted float64
		for name, w := range ConcentrationWeights {
			weighted += sub[name] * w
		}
		result.Sessions = append(result.Sessions, SessionScore{
			SessionID: s.ID,
			Sub:       sub,
			Score:     weighted,
		})
	}

	if len(result.Sessions) == 0 {
		return ConcentrationResult{}, false
	}

	var sum float64
	for _, s := range result.Sessions {
		sum += s.Score
	}
	result.Score = sum / float64(len(result.Sessions))
	return result, true
}

// textScrollScore blends a consistency term (exponential decay of the
// coefficient of variation of scroll distances) with a direction/magnitude
// quality term. No scroll events is a perfect 1.0. A single sample leaves CV
// undefined and takes the neutral consistency of 1.0; a zero mean pins CV at
// 1.0 to dodge the division.
func textScrollScore(rows []lake.Row) float64 {
	var distances []float64
	var quality float64
	for _, r := range rows {
		ts := r.Metrics.TextScroll
		if ts == nil {
			continue
		}
		distances = append(distances, ts.Distance)
		ref := scrollRefDownPx
		factor := 1.0
		if ts.Direction == "up" {
			ref = scrollRefUpPx
			factor = scrollUpPenalty
		}
		quality += factor * math.Min(1, ts.Distance/ref)
	}
	if len(distances) == 0 {
		return 1.0
	}
	quality /= float64(len(distances))

	consistency := 1.0
	if len(distances) >= 2 {
		m := mean(distances)
		cv := 1.0
		if m != 0 {
			cv = sampleStd(distances) / m
		}
		consistency = math.Exp(-cv)
	}

	return scrollBlendConsist*consistency + scrollBlendQuality*quality
}

// videoJumpScore compares the session's jump count against the user's
// historical per-session average. New users without history default to a
// baseline of 5 so they are not penalized.
func videoJumpScore(rows, history []lake.Row) float64 {
	perSession := make(map[string]int)
	for _, r := range history {
		if r.Metrics.VideoJump != nil {
			perSession[r.SessionID]++
		}
	}
	baseline := defaultJumpBaseline
	if len(perSession) > 0 {
		total := 0
		for _, n := range perSession {
			total += n
		}
		baseline = float64(total) / float64(len(perSession))
	}

	jumps := 0
	for _, r := range rows {
		if r.Metrics.VideoJump != nil {
			jumps++
		}
	}

	if baseline == 0 {
		if jumps > 0 {
			return 0.0
		}
		return 1.0
	}
	return math.Max(0, 1-math.Abs(float64(jumps)-baseline)/baseline)
}

// videoPauseScore multiplies a penalty per pause longer than the threshold.
// Multiple long pauses compound; a pause at or past the cap zeroes the score.
func videoPauseScore(rows []lake.Row) float64 {
	score := 1.0
	for _, r := range rows {
		vp := r.Metrics.VideoPaused
		if vp == nil || vp.DurationSeconds <= pauseThresholdSecs {
			continue
		}
		score *= 1 - math.Min(vp.DurationSeconds, pauseCapSecs)/pauseCapSecs
	}
	return score
}

// videoSpeedScore averages a per-event score: 1.0 up to 1.25x, linearly down
// to 0 at 2.0x, 0 beyond.
func videoSpeedScore(rows []lake.Row) float64 {
	var sum float64
	n := 0
	for _, r := range rows {
		vs := r.Metrics.VideoSpeed
		if vs == nil {
			continue
		}
		n++
		switch {
		case vs.Speed <= speedFreeThreshold:
			sum += 1.0
		case vs.Speed <= speedZeroThreshold:
			sum += 1 - (vs.Speed-speedFreeThreshold)/(speedZeroThreshold-speedFreeThreshold)
		}
	}
	if n == 0 {
		return 1.0
	}
	return sum / float64(n)
}

// tabFocusScore is the fraction of session wall-clock time the tab was not in
// a lost-focus interval. Each lost event pairs with the first later gain
// event, or extends to session end if none follows.
func tabFocusScore(s lake.Session) float64 {
	start, end := s.Bounds()
	total := end.Sub(start).Seconds()
	if total == 0 {
		return 1.0
	}

	var losses, gains []float64 // seconds since epoch
	for _, r := range s.Rows {
		if fl := r.Metrics.FocusLost; fl != nil {
			losses = append(losses, float64(fl.At.UnixMilli())/1000)
		}
		if fg := r.Metrics.FocusGain; fg != nil {
			gains = append(gains, float64(fg.At.UnixMilli())/1000)
		}
	}
	sort.Float64s(losses)
	sort.Float64s(gains)

	sessionEnd := float64(end.UnixMilli()) / 1000
	var distraction float64
	for _, lost := range losses {
		matched := false
		for _, gain := range gains {
			if gain > lost {
				distraction += gain - lost
				matched = true
				break
			}
		}
		if !matched {
			distraction += sessionEnd - lost
		}
	}

	return math.Max(0, total-distraction) / total
}

// physicalActivityScore is the fraction of activity samples at or below the
// sedentary speed threshold.
func physicalActivityScore(rows []lake.Row) float64 {
	sedentary, total := 0, 0
	for _, r := range rows {
		p := r.Metrics.Physical
		if p == nil {
			continue
		}
		total++
		if p.Speed <= sedentarySpeedMS {
			sedentary++
		}
	}
	if total == 0 {
		return 1.0
	}
	return float64(sedentary) / float64(total)
}

// weakSignalScore linearly maps RSSI from -90dBm (0) to -70dBm (1), clamped,
// and averages over samples.
func weakSignalScore(rows []lake.Row) float64 {
	var sum float64
	n := 0
	for _, r := range rows {
		ws := r.Metrics.WeakSignal
		if ws == nil {
			continue
		}
		n++
		sum += clamp((ws.RSSI - rssiFloor) / (rssiCeil - rssiFloor))
	}
	if n == 0 {
		return 1.0
	}
	return sum / float64(n)
}

// watchOffScore loses half a point per wearable removal.
func watchOffScore(rows []lake.Row) float64 {
	n := 0
	for _, r := range rows {
		if r.Metrics.WearableOff != nil {
			n++
		}
	}
	return math.Max(0, 1-0.5*float64(n))
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// sampleStd is the n-1 standard deviation; callers guarantee len >= 2.
func sampleStd(xs []float64) float64 {
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

func clamp(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}
