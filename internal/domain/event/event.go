// Package event contains the raw telemetry event model and the normalizer
// that decodes opaque payloads into typed metric fields.
package event

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Type identifies the kind of telemetry event as reported by clients.
type Type string

// Known event types.
const (
	TypeHeartRate        Type = "USER_HEARTRATE"
	TypePhysicalActivity Type = "USER_PHYSICAL_ACTIVITY"
	TypeWeakRSSI         Type = "WEAK_RSSI"
	TypeWearableOff      Type = "WEARABLE_OFF"
	TypeTextScroll       Type = "TEXT_SCROLL"
	TypeTabFocusGain     Type = "TAB_FOCUS_GAIN"
	TypeTabFocusLost     Type = "TAB_FOCUS_LOST"
	TypeUnpinScreen      Type = "UNPIN_SCREEN"
	TypeVideoPaused      Type = "VIDEO_PAUSED"
	TypeVideoJump        Type = "VIDEO_JUMP"
	TypeVideoSpeed       Type = "VIDEO_SPEED_CHANGED"
	TypeVideoPercentage  Type = "VIDEO_PERCENTAGE"
)

// Raw is one telemetry event as stored by the ingestion path. Immutable once
// stored; the payload stays opaque until normalization.
type Raw struct {
	ID        string
	UserID    string
	SessionID string
	CourseID  int64
	Device    string
	Type      Type
	AddedAt   time.Time
	Payload   map[string]any
}

// HeartRateMetrics carries the fields of a USER_HEARTRATE event.
type HeartRateMetrics struct {
	Value float64
	Count float64
	Mean  float64
}

// PhysicalMetrics carries the fields of a USER_PHYSICAL_ACTIVITY event.
type PhysicalMetrics struct {
	DetectedAt time.Time
	Speed      float64
}

// WeakSignalMetrics carries the fields of a WEAK_RSSI event.
type WeakSignalMetrics struct {
	RSSI float64
}

// WearableOffMetrics carries the fields of a WEARABLE_OFF event.
type WearableOffMetrics struct {
	At time.Time
}

// TextScrollMetrics carries the fields of a TEXT_SCROLL event.
type TextScrollMetrics struct {
	Direction string
	Distance  float64
	Position  float64
	At        time.Time
}

// FocusGainMetrics carries the fields of a TAB_FOCUS_GAIN event.
type FocusGainMetrics struct {
	At time.Time
}

// FocusLostMetrics carries the fields of a TAB_FOCUS_LOST event.
type FocusLostMetrics struct {
	At time.Time
}

// UnpinScreenMetrics carries the fields of an UNPIN_SCREEN event.
type UnpinScreenMetrics struct {
	At time.Time
}

// VideoPausedMetrics carries the fields of a VIDEO_PAUSED event.
type VideoPausedMetrics struct {
	At              time.Time
	DurationSeconds float64
}

// VideoJumpMetrics carries the fields of a VIDEO_JUMP event.
type VideoJumpMetrics struct {
	At        time.Time
	To        float64
	Direction string
}

// VideoSpeedMetrics carries the fields of a VIDEO_SPEED_CHANGED event.
type VideoSpeedMetrics struct {
	At    time.Time
	Speed float64
}

// VideoPercentageMetrics carries the fields of a VIDEO_PERCENTAGE event.
type VideoPercentageMetrics struct {
	At         time.Time
	Percentage float64
}

// Metrics is the closed variant set produced by normalization. Exactly one of
// the pointer fields is set for a recognized event type; Other holds the raw
// type tag for unrecognized kinds.
type Metrics struct {
	HeartRate       *HeartRateMetrics
	Physical        *PhysicalMetrics
	WeakSignal      *WeakSignalMetrics
	WearableOff     *WearableOffMetrics
	TextScroll      *TextScrollMetrics
	FocusGain       *FocusGainMetrics
	FocusLost       *FocusLostMetrics
	UnpinScreen     *UnpinScreenMetrics
	VideoPaused     *VideoPausedMetrics
	VideoJump       *VideoJumpMetrics
	VideoSpeed      *VideoSpeedMetrics
	VideoPercentage *VideoPercentageMetrics
	Other           string
}

// DedupKey returns a stable key over the populated variant and its field
// values. The lake drops rows whose keys collide, which collapses duplicate
// deliveries of the same event. The key deliberately excludes event identity
// and arrival time: redelivered events arrive with fresh ids and timestamps.
func (m Metrics) DedupKey() string {
	var b strings.Builder
	switch {
	case m.HeartRate != nil:
		b.WriteString("hr|")
		writeFloat(&b, m.HeartRate.Value)
		writeFloat(&b, m.HeartRate.Count)
		writeFloat(&b, m.HeartRate.Mean)
	case m.Physical != nil:
		b.WriteString("phys|")
		writeTime(&b, m.Physical.DetectedAt)
		writeFloat(&b, m.Physical.Speed)
	case m.WeakSignal != nil:
		b.WriteString("rssi|")
		writeFloat(&b, m.WeakSignal.RSSI)
	case m.WearableOff != nil:
		b.WriteString("woff|")
		writeTime(&b, m.WearableOff.At)
	case m.TextScroll != nil:
		b.WriteString("scroll|")
		b.WriteString(m.TextScroll.Direction)
		b.WriteByte('|')
		writeFloat(&b, m.TextScroll.Distance)
		writeFloat(&b, m.TextScroll.Position)
		writeTime(&b, m.TextScroll.At)
	case m.FocusGain != nil:
		b.WriteString("fgain|")
		writeTime(&b, m.FocusGain.At)
	case m.FocusLost != nil:
		b.WriteString("flost|")
		writeTime(&b, m.FocusLost.At)
	case m.UnpinScreen != nil:
		b.WriteString("unpin|")
		writeTime(&b, m.UnpinScreen.At)
	case m.VideoPaused != nil:
		b.WriteString("vpause|")
		writeTime(&b, m.VideoPaused.At)
		writeFloat(&b, m.VideoPaused.DurationSeconds)
	case m.VideoJump != nil:
		b.WriteString("vjump|")
		writeTime(&b, m.VideoJump.At)
		writeFloat(&b, m.VideoJump.To)
		b.WriteString(m.VideoJump.Direction)
	case m.VideoSpeed != nil:
		b.WriteString("vspeed|")
		writeTime(&b, m.VideoSpeed.At)
		writeFloat(&b, m.VideoSpeed.Speed)
	case m.VideoPercentage != nil:
		b.WriteString("vpct|")
		writeTime(&b, m.VideoPercentage.At)
		writeFloat(&b, m.VideoPercentage.Percentage)
	default:
		b.WriteString("other|")
		b.WriteString(m.Other)
	}
	return b.String()
}

func writeFloat(b *strings.Builder, f float64) {
	b.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	b.WriteByte('|')
}

func writeTime(b *strings.Builder, t time.Time) {
	b.WriteString(strconv.FormatInt(t.UnixMilli(), 10))
	b.WriteByte('|')
}

// MalformedEventError reports a payload missing or mistyping a field required
// by its declared event type.
type MalformedEventError struct {
	Type  Type
	Field string
}

func (e *MalformedEventError) Error() string {
	return fmt.Sprintf("malformed %s event: field %q missing or invalid", e.Type, e.Field)
}
