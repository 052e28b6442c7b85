// Package whisper runs local speech-to-text through the whisper.cpp CLI
// and manages acquisition of its model file.
package whisper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// Engine transcribes saved WAV artifacts by shelling out to whisper-cli.
type Engine struct {
	command string
	models  *ModelManager
	logger  *zap.Logger
}

func NewEngine(command string, models *ModelManager, logger *zap.Logger) *Engine {
	if command == "" {
		command = "whisper-cli"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{command: command, models: models, logger: logger}
}

// Transcribe runs the CLI on audioPath and returns the transcript text.
// An empty transcript is a valid result: silence is not an error.
func (e *Engine) Transcribe(ctx context.Context, audioPath string) (string, error) {
	if !e.models.Loaded() {
		return "", errors.New("model is not loaded")
	}

	cmd := exec.CommandContext(ctx, e.command,
		"-m", e.models.ModelPath(),
		"-f", audioPath,
		"--no-prints",
		"--no-timestamps",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		e.logger.Warn("transcription failed", zap.String("audio", audioPath), zap.String("detail", detail))
		return "", fmt.Errorf("transcription failed: %s", detail)
	}

	return strings.TrimSpace(stdout.String()), nil
}
