package ports

import (
	"context"

	"lectern/internal/domain"
)

// Capture is a finished audio artifact reported by the recorder.
type Capture struct {
	Path            string
	DurationSeconds float64
}

// AudioRecorder owns the start/stop boundary of one microphone capture.
// Exactly one capture may be open at a time.
type AudioRecorder interface {
	Start(ctx context.Context, path string) error
	Stop() (Capture, error)
	Recording() bool
}

// Transcriber converts a saved audio artifact into text. An empty
// transcript is a valid success.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// ModelManager owns acquisition and readiness of the transcription model.
type ModelManager interface {
	CheckModelExists() bool
	DownloadModel(ctx context.Context) error
	LoadModel(ctx context.Context) error
	Loaded() bool
}

// SyncClient talks to the remote transcript server.
type SyncClient interface {
	CheckConnection(ctx context.Context) bool
	SubmitTranscript(ctx context.Context, rec domain.Recording) error
}

// Directory fetches the onboarding roster. Errors mean "roster
// unavailable", never a hard failure for the caller.
type Directory interface {
	Students(ctx context.Context) ([]domain.Student, error)
	Teachers(ctx context.Context) ([]domain.Teacher, error)
}

// ProcessingBackend runs saving, transcription and sync delivery for one
// recording, emitting an ordered event stream that terminates in done or
// error. The channel is closed after the terminal event.
type ProcessingBackend interface {
	Process(ctx context.Context, rec domain.Recording) <-chan domain.ProcessingEvent
}

// Store persists the Recording set and the Identity across restarts.
// Implementations apply one mutation at a time.
type Store interface {
	SaveRecording(rec domain.Recording) error
	Recordings() ([]domain.Recording, error)
	Recording(id string) (*domain.Recording, error)
	SetTranscript(id string, transcript string) error
	MarkSynced(id string) error
	DeleteRecording(id string) error
	UnsyncedRecordings() ([]domain.Recording, error)
	UnsyncedCount() (int, error)

	Identity() (domain.Identity, error)
	SaveIdentity(identity domain.Identity) error
	MarkSetupComplete() error
}

// EventSink emits backend state and progress to the UI layer.
type EventSink interface {
	ProcessingStatus(event domain.ProcessingEvent)
	RecordingTick(elapsedSeconds float64)
	UnsyncedCountChanged(count int)
	ConnectivityChanged(online bool)
	ModelDownloadProgress(message string)
	BackendError(code domain.ErrorCode, detail string)
}
