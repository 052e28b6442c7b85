package whisper

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// ModelProgress receives human-readable download progress messages.
type ModelProgress func(message string)

// ModelManager owns the model file on disk and engine readiness.
type ModelManager struct {
	dir         string
	fileName    string
	downloadURL string
	command     string
	http        *resty.Client
	progress    ModelProgress
	logger      *zap.Logger

	mu     sync.Mutex
	loaded bool
}

// ModelConfig configures acquisition of the whisper model.
type ModelConfig struct {
	Dir         string
	FileName    string
	DownloadURL string
	Command     string
}

func NewModelManager(cfg ModelConfig, progress ModelProgress, logger *zap.Logger) *ModelManager {
	if cfg.FileName == "" {
		cfg.FileName = "ggml-base.en.bin"
	}
	if cfg.Command == "" {
		cfg.Command = "whisper-cli"
	}
	if progress == nil {
		progress = func(string) {}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModelManager{
		dir:         cfg.Dir,
		fileName:    cfg.FileName,
		downloadURL: cfg.DownloadURL,
		command:     cfg.Command,
		http:        resty.New().SetTimeout(10 * time.Minute),
		progress:    progress,
		logger:      logger,
	}
}

// ModelPath returns where the model file lives on disk.
func (m *ModelManager) ModelPath() string {
	return filepath.Join(m.dir, m.fileName)
}

// CheckModelExists reports whether the model file is already on disk.
func (m *ModelManager) CheckModelExists() bool {
	info, err := os.Stat(m.ModelPath())
	return err == nil && info.Size() > 0
}

// DownloadModel fetches the model file if absent. The file lands under a
// temporary name and is renamed only after a complete download, so a
// partial fetch never passes CheckModelExists.
func (m *ModelManager) DownloadModel(ctx context.Context) error {
	if m.CheckModelExists() {
		return nil
	}

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}

	m.progress("Starting download...")
	tempPath := m.ModelPath() + ".partial"

	resp, err := m.http.R().
		SetContext(ctx).
		SetOutput(tempPath).
		Get(m.downloadURL)
	if err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("download model: %w", err)
	}
	if !resp.IsSuccess() {
		_ = os.Remove(tempPath)
		return fmt.Errorf("download model: server returned %s", resp.Status())
	}

	m.progress("Saving model...")
	if err := os.Rename(tempPath, m.ModelPath()); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("save model: %w", err)
	}

	m.progress("Done!")
	m.logger.Info("model downloaded", zap.String("path", m.ModelPath()))
	return nil
}

// LoadModel verifies the model file and the CLI binary, then marks the
// engine ready.
func (m *ModelManager) LoadModel(_ context.Context) error {
	if !m.CheckModelExists() {
		return fmt.Errorf("model not found at %s", m.ModelPath())
	}
	if _, err := exec.LookPath(m.command); err != nil {
		return fmt.Errorf("whisper binary %q not found: %w", m.command, err)
	}

	m.mu.Lock()
	m.loaded = true
	m.mu.Unlock()

	m.logger.Info("model loaded", zap.String("path", m.ModelPath()))
	return nil
}

// Loaded reports engine readiness.
func (m *ModelManager) Loaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loaded
}
