// Package dateparse provides the shared date parser used for report window
// filtering and for timestamp sub-fields inside event payloads.
//
// Two input shapes are accepted: an ISO-8601 string (a bare calendar date or a
// full RFC3339 instant) and an integer epoch-millisecond timestamp. Calendar
// dates are interpreted in the America/Bogota offset so that "2025-06-01"
// means local midnight for the learners producing the telemetry.
package dateparse

import (
	"errors"
	"fmt"
	"time"
)

// Bogota is the fixed UTC-5 offset used for all calendar-date interpretation.
// A fixed zone keeps parsing independent of the host tz database; the region
// has no daylight saving.
var Bogota = time.FixedZone("America/Bogota", -5*60*60)

// ErrUnsupportedDate indicates the input was neither a recognized string form
// nor an integer timestamp.
var ErrUnsupportedDate = errors.New("date must be an ISO-8601 string or epoch milliseconds")

const day = 24 * time.Hour

// Parse converts a date value into a timezone-aware instant in the Bogota
// offset. Strings may be a bare date ("2006-01-02") or a full RFC3339
// timestamp; numeric values are epoch milliseconds. Any other type fails.
func Parse(v any) (time.Time, error) {
	switch d := v.(type) {
	case string:
		return parseString(d)
	case int:
		return FromMillis(int64(d)), nil
	case int64:
		return FromMillis(d), nil
	case float64:
		// JSON numbers decode as float64.
		return FromMillis(int64(d)), nil
	case time.Time:
		return d.In(Bogota), nil
	default:
		return time.Time{}, fmt.Errorf("%w: got %T", ErrUnsupportedDate, v)
	}
}

func parseString(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(Bogota), nil
	}
	if t, err := time.ParseInLocation("2006-01-02", s, Bogota); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrUnsupportedDate, s)
}

// FromMillis converts epoch milliseconds to an instant in the Bogota offset.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).In(Bogota)
}

// ToMillis converts an instant to epoch milliseconds.
func ToMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// RangeEnd returns the exclusive upper bound for an inclusive end date: the
// start of the following day. Report windows filter with
// addedAt >= start && addedAt < RangeEnd(end).
func RangeEnd(end time.Time) time.Time {
	return end.Add(day)
}
