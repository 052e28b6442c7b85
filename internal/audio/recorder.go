// Package audio captures microphone input to WAV files using ffmpeg.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"lectern/internal/ports"
)

// Config describes how the microphone should be captured.
type Config struct {
	Command     string
	InputFormat string
	InputDevice string
	SampleRate  int
	Channels    int
}

// FFMPEGRecorder records the microphone to a WAV file via ffmpeg.
// At most one capture is open at a time.
type FFMPEGRecorder struct {
	cfg Config

	mu      sync.Mutex
	current *capture
}

type capture struct {
	path      string
	startedAt time.Time
	process   *os.Process
	stderr    *bytes.Buffer
	waitErr   <-chan error
}

func NewFFMPEGRecorder(cfg Config) *FFMPEGRecorder {
	if cfg.Command == "" {
		cfg.Command = "ffmpeg"
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	return &FFMPEGRecorder{cfg: cfg}
}

// Start begins capturing to path. Fails when a capture is already open or
// when ffmpeg exits before capture settles.
func (r *FFMPEGRecorder) Start(ctx context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current != nil {
		return errors.New("capture already in progress")
	}

	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", r.cfg.InputFormat,
		"-i", r.cfg.InputDevice,
		"-ac", strconv.Itoa(r.cfg.Channels),
		"-ar", strconv.Itoa(r.cfg.SampleRate),
		"-y", path,
	}

	cmd := exec.CommandContext(ctx, r.cfg.Command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	select {
	case err := <-waitErr:
		if err != nil {
			return fmt.Errorf("ffmpeg exited before capture started: %w: %s", err, trimmed(stderr.String()))
		}
		return errors.New("ffmpeg exited before capture started")
	case <-time.After(250 * time.Millisecond):
	}

	r.current = &capture{
		path:      path,
		startedAt: time.Now(),
		process:   cmd.Process,
		stderr:    &stderr,
		waitErr:   waitErr,
	}
	return nil
}

// Stop interrupts ffmpeg, waits for the WAV to be finalized, and reports
// the finished artifact.
func (r *FFMPEGRecorder) Stop() (ports.Capture, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current == nil {
		return ports.Capture{}, errors.New("no capture in progress")
	}
	active := r.current
	r.current = nil

	if active.process != nil {
		_ = active.process.Signal(os.Interrupt)
	}

	var stopErr error
	select {
	case err, ok := <-active.waitErr:
		if ok {
			stopErr = normalizeStopErr(err)
		}
	case <-time.After(1200 * time.Millisecond):
		if active.process != nil {
			_ = active.process.Kill()
		}
		err, ok := <-active.waitErr
		if ok {
			stopErr = normalizeStopErr(err)
		}
	}

	if stopErr != nil && active.stderr.Len() > 0 {
		stopErr = fmt.Errorf("%w: %s", stopErr, trimmed(active.stderr.String()))
	}
	if stopErr != nil {
		return ports.Capture{}, stopErr
	}

	return ports.Capture{
		Path:            active.path,
		DurationSeconds: time.Since(active.startedAt).Seconds(),
	}, nil
}

// Recording reports whether a capture is open.
func (r *FFMPEGRecorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current != nil
}

func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	// ffmpeg exits non-zero when interrupted; that is a clean stop.
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

func trimmed(input string) string {
	return string(bytes.TrimSpace([]byte(input)))
}
