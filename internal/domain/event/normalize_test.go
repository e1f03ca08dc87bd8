package event_test

import (
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/studylake/studylake/internal/domain/event"
)

func TestNormalize(t *testing.T) {
	Convey("Given the event normalizer", t, func() {
		Convey("When normalizing a heart-rate payload", func() {
			m, err := event.Normalize(event.TypeHeartRate, map[string]any{
				"heartrate_change": map[string]any{
					"value": 88.0,
					"count": 4.0,
					"mean":  92.5,
				},
			})

			Convey("Then it should populate the heart-rate variant", func() {
				So(err, ShouldBeNil)
				So(m.HeartRate, ShouldNotBeNil)
				So(m.HeartRate.Mean, ShouldEqual, 92.5)
				So(m.HeartRate.Count, ShouldEqual, 4.0)
			})
		})

		Convey("When a heart-rate payload is missing the nested object", func() {
			_, err := event.Normalize(event.TypeHeartRate, map[string]any{"value": 88.0})

			Convey("Then it should fail loud with a malformed-event error", func() {
				var malformed *event.MalformedEventError
				So(err, ShouldNotBeNil)
				So(errors.As(err, &malformed), ShouldBeTrue)
				So(malformed.Field, ShouldEqual, "heartrate_change")
			})
		})

		Convey("When normalizing a text-scroll payload", func() {
			m, err := event.Normalize(event.TypeTextScroll, map[string]any{
				"scroll_direction":        "down",
				"scroll_distance":         250.0,
				"current_scroll_position": 1200.0,
				"timestamp":               int64(1767225600000),
			})

			Convey("Then all four fields should decode", func() {
				So(err, ShouldBeNil)
				So(m.TextScroll, ShouldNotBeNil)
				So(m.TextScroll.Direction, ShouldEqual, "down")
				So(m.TextScroll.Distance, ShouldEqual, 250.0)
				So(m.TextScroll.At.UnixMilli(), ShouldEqual, int64(1767225600000))
			})
		})

		Convey("When a scroll field is mistyped", func() {
			_, err := event.Normalize(event.TypeTextScroll, map[string]any{
				"scroll_direction":        "down",
				"scroll_distance":         "far", // not a number
				"current_scroll_position": 1200.0,
				"timestamp":               int64(1767225600000),
			})

			Convey("Then it should name the offending field", func() {
				var malformed *event.MalformedEventError
				So(errors.As(err, &malformed), ShouldBeTrue)
				So(malformed.Field, ShouldEqual, "scroll_distance")
			})
		})

		Convey("When normalizing a video-pause payload with an ISO timestamp", func() {
			m, err := event.Normalize(event.TypeVideoPaused, map[string]any{
				"timestamp": "2026-03-10T14:30:00Z",
				"duration":  95.0,
			})

			Convey("Then both formats should be accepted", func() {
				So(err, ShouldBeNil)
				So(m.VideoPaused, ShouldNotBeNil)
				So(m.VideoPaused.DurationSeconds, ShouldEqual, 95.0)
			})
		})

		Convey("When the event type is unknown", func() {
			m, err := event.Normalize(event.Type("SOMETHING_NEW"), map[string]any{"whatever": 1})

			Convey("Then it should map to the marker variant and never fail", func() {
				So(err, ShouldBeNil)
				So(m.Other, ShouldEqual, "SOMETHING_NEW")
				So(m.HeartRate, ShouldBeNil)
			})
		})

		Convey("When the event type is empty", func() {
			m, err := event.Normalize(event.Type(""), nil)

			So(err, ShouldBeNil)
			So(m.Other, ShouldEqual, "")
		})
	})
}

func TestDedupKey(t *testing.T) {
	Convey("Given normalized metrics", t, func() {
		at := time.UnixMilli(1767225600000)
		scroll := event.Metrics{TextScroll: &event.TextScrollMetrics{
			Direction: "down", Distance: 250, Position: 1200, At: at,
		}}

		Convey("When the same metric tuple appears twice", func() {
			other := event.Metrics{TextScroll: &event.TextScrollMetrics{
				Direction: "down", Distance: 250, Position: 1200, At: at,
			}}

			Convey("Then the keys should collide", func() {
				So(scroll.DedupKey(), ShouldEqual, other.DedupKey())
			})
		})

		Convey("When a single field differs", func() {
			other := event.Metrics{TextScroll: &event.TextScrollMetrics{
				Direction: "up", Distance: 250, Position: 1200, At: at,
			}}

			So(scroll.DedupKey(), ShouldNotEqual, other.DedupKey())
		})

		Convey("When different variants carry coincidentally equal numbers", func() {
			rssi := event.Metrics{WeakSignal: &event.WeakSignalMetrics{RSSI: 250}}

			Convey("Then the variant prefix should keep them apart", func() {
				So(scroll.DedupKey(), ShouldNotEqual, rssi.DedupKey())
			})
		})

		Convey("When the key is computed twice", func() {
			Convey("Then it should be stable", func() {
				So(scroll.DedupKey(), ShouldEqual, scroll.DedupKey())
			})
		})
	})
}
