package audio

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// fakeFFMPEG drops an executable script standing in for ffmpeg. The body
// runs with the positional arguments ffmpeg would receive.
func fakeFFMPEG(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffmpeg")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

// longRunningFFMPEG writes its output file then sleeps until interrupted,
// like the real capture process.
func longRunningFFMPEG(t *testing.T) string {
	return fakeFFMPEG(t, `
out=""
for arg in "$@"; do out="$arg"; done
echo "RIFF" > "$out"
trap 'exit 255' INT TERM
while true; do sleep 0.05; done`)
}

func TestStartStopRoundTrip(t *testing.T) {
	t.Parallel()

	r := NewFFMPEGRecorder(Config{Command: longRunningFFMPEG(t)})
	path := filepath.Join(t.TempDir(), "take.wav")

	if r.Recording() {
		t.Fatalf("fresh recorder must not be recording")
	}
	if err := r.Start(context.Background(), path); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if !r.Recording() {
		t.Fatalf("expected recorder to be recording")
	}

	capture, err := r.Stop()
	if err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if capture.Path != path {
		t.Fatalf("unexpected capture path %q", capture.Path)
	}
	if capture.DurationSeconds <= 0 {
		t.Fatalf("expected a positive duration, got %v", capture.DurationSeconds)
	}
	if r.Recording() {
		t.Fatalf("recorder must be idle after stop")
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected artifact on disk: %v", err)
	}
}

func TestStartTwiceFails(t *testing.T) {
	t.Parallel()

	r := NewFFMPEGRecorder(Config{Command: longRunningFFMPEG(t)})
	dir := t.TempDir()

	if err := r.Start(context.Background(), filepath.Join(dir, "a.wav")); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer r.Stop()

	if err := r.Start(context.Background(), filepath.Join(dir, "b.wav")); err == nil {
		t.Fatalf("second start must fail while capturing")
	}
}

func TestStartFailsWhenProcessDiesImmediately(t *testing.T) {
	t.Parallel()

	script := fakeFFMPEG(t, `echo 'no such audio device' >&2; exit 1`)
	r := NewFFMPEGRecorder(Config{Command: script})

	err := r.Start(context.Background(), filepath.Join(t.TempDir(), "take.wav"))
	if err == nil {
		t.Fatalf("expected start to fail")
	}
	if !strings.Contains(err.Error(), "no such audio device") {
		t.Fatalf("expected device detail, got %v", err)
	}
	if r.Recording() {
		t.Fatalf("failed start must not leave a capture open")
	}
}

func TestStartFailsWhenCommandMissing(t *testing.T) {
	t.Parallel()

	r := NewFFMPEGRecorder(Config{Command: filepath.Join(t.TempDir(), "missing-ffmpeg")})
	if err := r.Start(context.Background(), filepath.Join(t.TempDir(), "take.wav")); err == nil {
		t.Fatalf("expected start to fail for a missing binary")
	}
}

func TestStopWithoutStartFails(t *testing.T) {
	t.Parallel()

	r := NewFFMPEGRecorder(Config{Command: "ffmpeg"})
	if _, err := r.Stop(); err == nil {
		t.Fatalf("expected stop without a capture to fail")
	}
}

func TestStopTreatsInterruptExitAsClean(t *testing.T) {
	t.Parallel()

	// The script exits non-zero on interrupt, as ffmpeg does.
	r := NewFFMPEGRecorder(Config{Command: longRunningFFMPEG(t)})
	path := filepath.Join(t.TempDir(), "take.wav")
	if err := r.Start(context.Background(), path); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := r.Stop(); err != nil {
		t.Fatalf("interrupted exit must read as a clean stop: %v", err)
	}
}

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	r := NewFFMPEGRecorder(Config{})
	if r.cfg.Command != "ffmpeg" || r.cfg.InputFormat != "pulse" || r.cfg.InputDevice != "default" {
		t.Fatalf("unexpected defaults %+v", r.cfg)
	}
	if r.cfg.SampleRate != 16000 || r.cfg.Channels != 1 {
		t.Fatalf("unexpected audio defaults %+v", r.cfg)
	}
}
