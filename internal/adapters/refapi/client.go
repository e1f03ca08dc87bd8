// Package refapi is the HTTP client for the reference API: user identities,
// course catalog, and course progress. The upstream speaks PostgREST
// conventions, so filters travel as `column=eq.value` query parameters.
package refapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/studylake/studylake/internal/domain/lake"
)

// Sentinel errors for reference fetches.
var (
	ErrRequest = errors.New("reference api request failed")
	ErrStatus  = errors.New("reference api returned non-200 status")
	ErrDecode  = errors.New("reference api response decode failed")
)

const defaultTimeout = 15 * time.Second

// CourseProgress is one row of the student progress view.
type CourseProgress struct {
	UserID               string  `json:"user_id"`
	CompletionPercentage float64 `json:"completion_percentage"`
}

// Client calls the reference API with bearer-token auth.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithTimeout bounds each reference API call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client, mainly for tests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// New creates a Client for the given base URL and bearer token.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Users fetches the full user reference table.
func (c *Client) Users(ctx context.Context) ([]lake.User, error) {
	var raw []struct {
		ID       string `json:"user_id"`
		Name     string `json:"name"`
		LastName string `json:"lastname"`
	}
	if err := c.get(ctx, "/user", nil, &raw); err != nil {
		return nil, err
	}
	users := make([]lake.User, 0, len(raw))
	for _, u := range raw {
		users = append(users, lake.User{ID: u.ID, Name: u.Name, LastName: u.LastName})
	}
	return users, nil
}

// Courses fetches the full course reference table.
func (c *Client) Courses(ctx context.Context) ([]lake.Course, error) {
	var raw []struct {
		ID        int64  `json:"course_id"`
		Title     string `json:"title"`
		TeacherID string `json:"teacher_id"`
	}
	if err := c.get(ctx, "/course", nil, &raw); err != nil {
		return nil, err
	}
	courses := make([]lake.Course, 0, len(raw))
	for _, cr := range raw {
		courses = append(courses, lake.Course{ID: cr.ID, Title: cr.Title, TeacherID: cr.TeacherID})
	}
	return courses, nil
}

// Progress fetches course completion rows for one teacher's students and
// averages them per student. Percentages arrive on a 0-100 scale.
func (c *Client) Progress(ctx context.Context, teacherID string) (map[string]float64, error) {
	var raw []CourseProgress
	query := url.Values{"teacher_id": {"eq." + teacherID}}
	if err := c.get(ctx, "/student_course_progress_view", query, &raw); err != nil {
		return nil, err
	}

	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, p := range raw {
		sums[p.UserID] += p.CompletionPercentage
		counts[p.UserID]++
	}
	out := make(map[string]float64, len(sums))
	for id, sum := range sums {
		out[id] = sum / float64(counts[id])
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, dst any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRequest, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s from %s", ErrStatus, resp.Status, path)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return nil
}
