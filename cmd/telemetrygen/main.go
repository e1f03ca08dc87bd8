// telemetrygen posts synthetic telemetry at a running service: a handful of
// users, a few sessions each, with realistic event mixes. Useful for smoke
// testing the ingest pipeline and giving the lake something to chew on.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
)

const defaultTimeout = 10 * time.Second

var eventTypes = []string{
	"USER_HEARTRATE",
	"USER_PHYSICAL_ACTIVITY",
	"WEAK_RSSI",
	"TEXT_SCROLL",
	"TAB_FOCUS_LOST",
	"TAB_FOCUS_GAIN",
	"VIDEO_PAUSED",
	"VIDEO_JUMP",
	"VIDEO_SPEED_CHANGED",
	"VIDEO_PERCENTAGE",
}

func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:8080", "Base URL of the service")
		users    = flag.Int("users", 5, "Number of synthetic users")
		sessions = flag.Int("sessions", 3, "Sessions per user")
		events   = flag.Int("events", 40, "Events per session")
		courseID = flag.Int64("course", 101, "Course id to attribute events to")
		seed     = flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	)
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))
	client := &http.Client{Timeout: defaultTimeout}
	ctx := context.Background()

	sent, failed := 0, 0
	for u := 0; u < *users; u++ {
		userID := fmt.Sprintf("user-%03d", u+1)
		for s := 0; s < *sessions; s++ {
			sessionID := uuid.NewString()
			start := time.Now().Add(-time.Duration(rng.Intn(72)) * time.Hour)
			for i := 0; i < *events; i++ {
				at := start.Add(time.Duration(i) * 30 * time.Second)
				typ := eventTypes[rng.Intn(len(eventTypes))]
				body := map[string]any{
					"event_id":   uuid.NewString(),
					"user_id":    userID,
					"session_id": sessionID,
					"course_id":  *courseID,
					"device":     "telemetrygen",
					"type":       typ,
					"added_at":   at.UnixMilli(),
					"payload":    payloadFor(rng, typ, at),
				}
				if err := post(ctx, client, *baseURL+"/events", body); err != nil {
					failed++
					os.Stderr.WriteString("post failed: " + err.Error() + "\n")
					continue
				}
				sent++
			}
		}
	}
	fmt.Printf("sent %d events, %d failures\n", sent, failed)
}

func payloadFor(rng *rand.Rand, typ string, at time.Time) map[string]any {
	ms := at.UnixMilli()
	switch typ {
	case "USER_HEARTRATE":
		mean := 65 + rng.Float64()*50
		return map[string]any{"heartrate_change": map[string]any{
			"value": mean + rng.Float64()*10 - 5,
			"count": float64(1 + rng.Intn(10)),
			"mean":  mean,
		}}
	case "USER_PHYSICAL_ACTIVITY":
		return map[string]any{"detected_at": ms, "speed": rng.Float64() * 2.5}
	case "WEAK_RSSI":
		return map[string]any{"rssi": -60 - rng.Float64()*35}
	case "TEXT_SCROLL":
		direction := "down"
		if rng.Intn(4) == 0 {
			direction = "up"
		}
		return map[string]any{
			"scroll_direction":        direction,
			"scroll_distance":         rng.Float64() * 800,
			"current_scroll_position": rng.Float64() * 5000,
			"timestamp":               ms,
		}
	case "TAB_FOCUS_LOST", "TAB_FOCUS_GAIN":
		return map[string]any{"timestamp": ms}
	case "VIDEO_PAUSED":
		return map[string]any{"timestamp": ms, "duration": rng.Float64() * 200}
	case "VIDEO_JUMP":
		direction := "forward"
		if rng.Intn(3) == 0 {
			direction = "backward"
		}
		return map[string]any{"timestamp": ms, "jump_to": rng.Float64() * 600, "direction": direction}
	case "VIDEO_SPEED_CHANGED":
		speeds := []float64{0.75, 1.0, 1.25, 1.5, 2.0}
		return map[string]any{"timestamp": ms, "speed": speeds[rng.Intn(len(speeds))]}
	case "VIDEO_PERCENTAGE":
		return map[string]any{"timestamp": ms, "percentage": rng.Float64() * 100}
	default:
		return map[string]any{"timestamp": ms}
	}
}

func post(ctx context.Context, client *http.Client, url string, body map[string]any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return nil
}
