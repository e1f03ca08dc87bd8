package event

import (
	"time"

	"github.com/studylake/studylake/pkg/dateparse"
)

// Normalize decodes a raw payload into the typed field set for the given
// event type. Unknown or empty types map to the Other marker and never fail;
// a recognized type with a missing or mistyped field returns a
// *MalformedEventError so corrupted metrics are not silently folded into
// statistics as zeros.
func Normalize(t Type, payload map[string]any) (Metrics, error) {
	switch t {
	case TypeHeartRate:
		return normalizeHeartRate(payload)
	case TypePhysicalActivity:
		return normalizePhysical(payload)
	case TypeWeakRSSI:
		return normalizeWeakSignal(payload)
	case TypeWearableOff:
		return normalizeWearableOff(payload)
	case TypeTextScroll:
		return normalizeTextScroll(payload)
	case TypeTabFocusGain:
		at, err := timeField(t, payload, "timestamp")
		if err != nil {
			return Metrics{}, err
		}
		return Metrics{FocusGain: &FocusGainMetrics{At: at}}, nil
	case TypeTabFocusLost:
		at, err := timeField(t, payload, "timestamp")
		if err != nil {
			return Metrics{}, err
		}
		return Metrics{FocusLost: &FocusLostMetrics{At: at}}, nil
	case TypeUnpinScreen:
		at, err := timeField(t, payload, "removed_at")
		if err != nil {
			return Metrics{}, err
		}
		return Metrics{UnpinScreen: &UnpinScreenMetrics{At: at}}, nil
	case TypeVideoPaused:
		return normalizeVideoPaused(payload)
	case TypeVideoJump:
		return normalizeVideoJump(payload)
	case TypeVideoSpeed:
		return normalizeVideoSpeed(payload)
	case TypeVideoPercentage:
		return normalizeVideoPercentage(payload)
	default:
		return Metrics{Other: string(t)}, nil
	}
}

func normalizeHeartRate(payload map[string]any) (Metrics, error) {
	inner, ok := payload["heartrate_change"].(map[string]any)
	if !ok {
		return Metrics{}, &MalformedEventError{Type: TypeHeartRate, Field: "heartrate_change"}
	}
	value, err := floatField(TypeHeartRate, inner, "value")
	if err != nil {
		return Metrics{}, err
	}
	count, err := floatField(TypeHeartRate, inner, "count")
	if err != nil {
		return Metrics{}, err
	}
	mean, err := floatField(TypeHeartRate, inner, "mean")
	if err != nil {
		return Metrics{}, err
	}
	return Metrics{HeartRate: &HeartRateMetrics{Value: value, Count: count, Mean: mean}}, nil
}

func normalizePhysical(payload map[string]any) (Metrics, error) {
	at, err := timeField(TypePhysicalActivity, payload, "detected_at")
	if err != nil {
		return Metrics{}, err
	}
	speed, err := floatField(TypePhysicalActivity, payload, "speed")
	if err != nil {
		return Metrics{}, err
	}
	return Metrics{Physical: &PhysicalMetrics{DetectedAt: at, Speed: speed}}, nil
}

func normalizeWeakSignal(payload map[string]any) (Metrics, error) {
	rssi, err := floatField(TypeWeakRSSI, payload, "rssi")
	if err != nil {
		return Metrics{}, err
	}
	return Metrics{WeakSignal: &WeakSignalMetrics{RSSI: rssi}}, nil
}

func normalizeWearableOff(payload map[string]any) (Metrics, error) {
	at, err := timeField(TypeWearableOff, payload, "time")
	if err != nil {
		return Metrics{}, err
	}
	return Metrics{WearableOff: &WearableOffMetrics{At: at}}, nil
}

func normalizeTextScroll(payload map[string]any) (Metrics, error) {
	direction, err := stringField(TypeTextScroll, payload, "scroll_direction")
	if err != nil {
		return Metrics{}, err
	}
	distance, err := floatField(TypeTextScroll, payload, "scroll_distance")
	if err != nil {
		return Metrics{}, err
	}
	position, err := floatField(TypeTextScroll, payload, "current_scroll_position")
	if err != nil {
		return Metrics{}, err
	}
	at, err := timeField(TypeTextScroll, payload, "timestamp")
	if err != nil {
		return Metrics{}, err
	}
	return Metrics{TextScroll: &TextScrollMetrics{
		Direction: direction,
		Distance:  distance,
		Position:  position,
		At:        at,
	}}, nil
}

func normalizeVideoPaused(payload map[string]any) (Metrics, error) {
	at, err := timeField(TypeVideoPaused, payload, "timestamp")
	if err != nil {
		return Metrics{}, err
	}
	duration, err := floatField(TypeVideoPaused, payload, "duration")
	if err != nil {
		return Metrics{}, err
	}
	return Metrics{VideoPaused: &VideoPausedMetrics{At: at, DurationSeconds: duration}}, nil
}

func normalizeVideoJump(payload map[string]any) (Metrics, error) {
	at, err := timeField(TypeVideoJump, payload, "timestamp")
	if err != nil {
		return Metrics{}, err
	}
	to, err := floatField(TypeVideoJump, payload, "jump_to")
	if err != nil {
		return Metrics{}, err
	}
	direction, err := stringField(TypeVideoJump, payload, "direction")
	if err != nil {
		return Metrics{}, err
	}
	return Metrics{VideoJump: &VideoJumpMetrics{At: at, To: to, Direction: direction}}, nil
}

func normalizeVideoSpeed(payload map[string]any) (Metrics, error) {
	at, err := timeField(TypeVideoSpeed, payload, "timestamp")
	if err != nil {
		return Metrics{}, err
	}
	speed, err := floatField(TypeVideoSpeed, payload, "speed")
	if err != nil {
		return Metrics{}, err
	}
	return Metrics{VideoSpeed: &VideoSpeedMetrics{At: at, Speed: speed}}, nil
}

func normalizeVideoPercentage(payload map[string]any) (Metrics, error) {
	at, err := timeField(TypeVideoPercentage, payload, "timestamp")
	if err != nil {
		return Metrics{}, err
	}
	pct, err := floatField(TypeVideoPercentage, payload, "percentage")
	if err != nil {
		return Metrics{}, err
	}
	return Metrics{VideoPercentage: &VideoPercentageMetrics{At: at, Percentage: pct}}, nil
}

// floatField reads a numeric payload field. JSON decoding may deliver float64
// or json.Number-free ints depending on the source, so both are accepted.
func floatField(t Type, payload map[string]any, key string) (float64, error) {
	v, ok := payload[key]
	if !ok {
		return 0, &MalformedEventError{Type: t, Field: key}
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, &MalformedEventError{Type: t, Field: key}
	}
}

func stringField(t Type, payload map[string]any, key string) (string, error) {
	v, ok := payload[key].(string)
	if !ok {
		return "", &MalformedEventError{Type: t, Field: key}
	}
	return v, nil
}

// timeField reads a timestamp sub-field through the shared date parser, so
// payloads may carry either ISO-8601 strings or epoch milliseconds.
func timeField(t Type, payload map[string]any, key string) (time.Time, error) {
	v, ok := payload[key]
	if !ok {
		return time.Time{}, &MalformedEventError{Type: t, Field: key}
	}
	parsed, err := dateparse.Parse(v)
	if err != nil {
		return time.Time{}, &MalformedEventError{Type: t, Field: key}
	}
	return parsed, nil
}
