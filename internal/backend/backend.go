// Package backend runs the saving/transcribing/syncing stages for one
// recording and reports progress as an ordered event stream.
package backend

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"lectern/internal/domain"
	"lectern/internal/ports"
)

// Local drives the local whisper engine plus remote delivery. Events for
// one recording arrive in stage order and terminate in done or error; a
// delivery failure is non-fatal and still terminates in done with
// Synced=false, because the transcript is already safe locally.
type Local struct {
	transcriber ports.Transcriber
	delivery    ports.SyncClient
	logger      *zap.Logger
}

func NewLocal(transcriber ports.Transcriber, delivery ports.SyncClient, logger *zap.Logger) *Local {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Local{transcriber: transcriber, delivery: delivery, logger: logger}
}

// Process emits the event stream for rec. The channel is closed after the
// terminal event.
func (b *Local) Process(ctx context.Context, rec domain.Recording) <-chan domain.ProcessingEvent {
	events := make(chan domain.ProcessingEvent, 8)
	go func() {
		defer close(events)
		b.run(ctx, rec, events)
	}()
	return events
}

func (b *Local) run(ctx context.Context, rec domain.Recording, events chan<- domain.ProcessingEvent) {
	events <- domain.ProcessingEvent{
		Stage:       domain.StageSaving,
		Message:     "Saving audio...",
		RecordingID: rec.ID,
	}

	if err := artifactWritten(rec.AudioPath); err != nil {
		b.logger.Error("audio artifact missing", zap.String("recording", rec.ID), zap.Error(err))
		events <- domain.ProcessingEvent{
			Stage:       domain.StageError,
			Message:     "Recording failed: disk/save failure",
			RecordingID: rec.ID,
		}
		return
	}

	events <- domain.ProcessingEvent{
		Stage:       domain.StageTranscribing,
		Message:     "Transcribing audio...",
		RecordingID: rec.ID,
	}

	transcript, err := b.transcriber.Transcribe(ctx, rec.AudioPath)
	if err != nil {
		b.logger.Warn("transcription failed", zap.String("recording", rec.ID), zap.Error(err))
		events <- domain.ProcessingEvent{
			Stage:       domain.StageError,
			Message:     fmt.Sprintf("Transcription failed: %v", err),
			RecordingID: rec.ID,
		}
		return
	}

	// Empty speech is a legitimate outcome; the transcript is still bound.
	events <- domain.ProcessingEvent{
		Stage:       domain.StageSyncing,
		Message:     "Syncing to server...",
		RecordingID: rec.ID,
		Transcript:  &transcript,
	}

	delivered := rec
	delivered.Transcript = &transcript

	synced := true
	message := "Done! Transcript synced to server."
	if err := b.delivery.SubmitTranscript(ctx, delivered); err != nil {
		b.logger.Info("delivery failed, transcript kept locally",
			zap.String("recording", rec.ID), zap.Error(err))
		synced = false
		message = "Done! Transcript saved locally (sync pending)."
	}

	events <- domain.ProcessingEvent{
		Stage:       domain.StageDone,
		Message:     message,
		RecordingID: rec.ID,
		Transcript:  &transcript,
		Synced:      synced,
	}
}

func artifactWritten(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return fmt.Errorf("artifact %s is empty", path)
	}
	return nil
}
