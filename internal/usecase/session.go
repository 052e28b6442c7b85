package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lectern/internal/domain"
	"lectern/internal/ports"
)

var (
	ErrModelNotReady    = errors.New("transcription model is not loaded")
	ErrAlreadyRecording = errors.New("a recording session is already open")
	ErrNotRecording     = errors.New("no recording session to stop")
)

// SessionConfig controls capture session behavior.
type SessionConfig struct {
	AudioDir     string
	TickInterval time.Duration
}

// SessionController owns the start/stop boundary of one audio capture.
// Stopping hands the finished artifact to the processing pipeline and
// returns immediately; the pipeline then runs independently.
type SessionController struct {
	recorder ports.AudioRecorder
	backend  ports.ProcessingBackend
	models   ports.ModelManager
	store    ports.Store
	pipeline *Pipeline
	sink     ports.EventSink
	logger   *zap.Logger
	cfg      SessionConfig

	mu      sync.Mutex
	current *openSession
}

type openSession struct {
	id        string
	path      string
	startedAt time.Time
	stopTick  chan struct{}
}

func NewSessionController(
	recorder ports.AudioRecorder,
	backend ports.ProcessingBackend,
	models ports.ModelManager,
	store ports.Store,
	pipeline *Pipeline,
	sink ports.EventSink,
	logger *zap.Logger,
	cfg SessionConfig,
) *SessionController {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionController{
		recorder: recorder,
		backend:  backend,
		models:   models,
		store:    store,
		pipeline: pipeline,
		sink:     sink,
		logger:   logger,
		cfg:      cfg,
	}
}

// Start opens a capture session. The caller is expected to have confirmed
// model readiness beforehand; this check is a precondition, not a race.
func (c *SessionController) Start(ctx context.Context) error {
	if !c.models.Loaded() {
		return ErrModelNotReady
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		return ErrAlreadyRecording
	}

	if err := os.MkdirAll(c.cfg.AudioDir, 0o755); err != nil {
		return fmt.Errorf("create audio dir: %w", err)
	}

	id := uuid.NewString()
	path := filepath.Join(c.cfg.AudioDir, id+".wav")
	if err := c.recorder.Start(ctx, path); err != nil {
		return fmt.Errorf("start capture: %w", err)
	}

	session := &openSession{
		id:        id,
		path:      path,
		startedAt: time.Now(),
		stopTick:  make(chan struct{}),
	}
	c.current = session
	go c.tickDuration(session)

	c.logger.Info("recording started", zap.String("recording", id))
	return nil
}

// Stop closes the session, creates the Recording, and launches a pipeline
// run for it. Stopping without an open session is a distinguishable no-op
// returning ErrNotRecording.
func (c *SessionController) Stop(ctx context.Context) (domain.CaptureResult, error) {
	c.mu.Lock()
	session := c.current
	c.current = nil
	c.mu.Unlock()

	if session == nil {
		return domain.CaptureResult{}, ErrNotRecording
	}
	close(session.stopTick)

	capture, err := c.recorder.Stop()
	if err != nil {
		return domain.CaptureResult{}, fmt.Errorf("stop capture: %w", err)
	}

	identity, err := c.store.Identity()
	if err != nil {
		c.logger.Error("failed to read identity", zap.Error(err))
	}
	studentID := identity.StudentID
	if studentID == "" {
		studentID = "unknown"
	}

	rec := domain.Recording{
		ID:              session.id,
		StudentID:       studentID,
		AudioPath:       capture.Path,
		DurationSeconds: capture.DurationSeconds,
		RecordedAt:      time.Now().UTC(),
		Synced:          false,
	}
	if err := c.store.SaveRecording(rec); err != nil {
		return domain.CaptureResult{}, fmt.Errorf("save recording: %w", err)
	}
	if count, err := c.store.UnsyncedCount(); err == nil {
		c.sink.UnsyncedCountChanged(count)
	}

	stream := c.backend.Process(ctx, rec)
	if _, err := c.pipeline.Run(rec, stream); err != nil {
		return domain.CaptureResult{}, err
	}

	c.logger.Info("recording stopped", zap.String("recording", rec.ID),
		zap.Float64("duration", rec.DurationSeconds))
	return domain.CaptureResult{ID: rec.ID, DurationSeconds: rec.DurationSeconds}, nil
}

// Recording reports whether a capture session is open.
func (c *SessionController) Recording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}

// tickDuration emits elapsed capture time once per interval until the
// session stops. Independent timer task; never blocks the pipeline.
func (c *SessionController) tickDuration(session *openSession) {
	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sink.RecordingTick(time.Since(session.startedAt).Seconds())
		case <-session.stopTick:
			return
		}
	}
}
