// Package syncer talks to the remote transcript server: delivery,
// liveness probing and the onboarding roster.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"lectern/internal/domain"
)

// Client is a thin resty wrapper over the configured server URL.
// The base URL may be replaced after onboarding saves a new server.
type Client struct {
	http *resty.Client

	mu      sync.RWMutex
	baseURL string
}

// NewClient builds a client for the given server URL.
func NewClient(serverURL string, probeTimeout time.Duration) *Client {
	if probeTimeout <= 0 {
		probeTimeout = 5 * time.Second
	}
	return &Client{
		http:    resty.New().SetTimeout(probeTimeout),
		baseURL: strings.TrimRight(strings.TrimSpace(serverURL), "/"),
	}
}

// SetServerURL swaps the server base URL.
func (c *Client) SetServerURL(serverURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseURL = strings.TrimRight(strings.TrimSpace(serverURL), "/")
}

func (c *Client) url(path string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL + path
}

// CheckConnection probes server liveness. Advisory only: every failure
// mode reads as "not connected", never as an error.
func (c *Client) CheckConnection(ctx context.Context) bool {
	resp, err := c.http.R().SetContext(ctx).Get(c.url("/api/health"))
	return err == nil && resp.IsSuccess()
}

type submitPayload struct {
	StudentID            string  `json:"student_id"`
	DeviceType           string  `json:"device_type"`
	AudioDurationSeconds float64 `json:"audio_duration_seconds"`
	Transcript           string  `json:"transcript"`
	RecordedAt           string  `json:"recorded_at"`
	ClientID             string  `json:"client_id"`
}

type submitResponse struct {
	Success bool   `json:"success"`
	ID      *int64 `json:"id"`
	Error   string `json:"error"`
}

// SubmitTranscript delivers one recording's transcript to the server.
func (c *Client) SubmitTranscript(ctx context.Context, rec domain.Recording) error {
	if rec.Transcript == nil {
		return errors.New("recording has no transcript to submit")
	}

	payload := submitPayload{
		StudentID:            rec.StudentID,
		DeviceType:           "desktop",
		AudioDurationSeconds: rec.DurationSeconds,
		Transcript:           *rec.Transcript,
		RecordedAt:           rec.RecordedAt.UTC().Format(time.RFC3339),
		ClientID:             rec.ID,
	}

	var result submitResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&result).
		Post(c.url("/api/transcripts"))
	if err != nil {
		return fmt.Errorf("submit transcript: %w", err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("submit transcript: server returned %s", resp.Status())
	}
	if !result.Success {
		message := result.Error
		if message == "" {
			message = "unknown server error"
		}
		return fmt.Errorf("submit transcript: %s", message)
	}
	return nil
}

// Students fetches the student roster. A non-2xx response is an error the
// caller treats as "roster unavailable".
func (c *Client) Students(ctx context.Context) ([]domain.Student, error) {
	var students []domain.Student
	resp, err := c.http.R().SetContext(ctx).SetResult(&students).Get(c.url("/api/students"))
	if err != nil {
		return nil, fmt.Errorf("fetch students: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("fetch students: server returned %s", resp.Status())
	}
	return students, nil
}

// Teachers fetches the teacher roster.
func (c *Client) Teachers(ctx context.Context) ([]domain.Teacher, error) {
	var teachers []domain.Teacher
	resp, err := c.http.R().SetContext(ctx).SetResult(&teachers).Get(c.url("/api/teachers"))
	if err != nil {
		return nil, fmt.Errorf("fetch teachers: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("fetch teachers: server returned %s", resp.Status())
	}
	return teachers, nil
}
