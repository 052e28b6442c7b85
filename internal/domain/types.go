package domain

import "time"

// Stage models the processing lifecycle of one recording.
type Stage string

const (
	StageIdle         Stage = "idle"
	StageSaving       Stage = "saving"
	StageTranscribing Stage = "transcribing"
	StageSyncing      Stage = "syncing"
	StageDone         Stage = "done"
	StageError        Stage = "error"
)

// Terminal reports whether no further stage transitions occur after s.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageError
}

// Rank orders stages so stale or regressing events can be detected.
// Done and error share the top rank; error may be reached from any stage.
func (s Stage) Rank() int {
	switch s {
	case StageSaving:
		return 1
	case StageTranscribing:
		return 2
	case StageSyncing:
		return 3
	case StageDone, StageError:
		return 4
	default:
		return 0
	}
}

// ProcessingEvent is one progress update emitted by the processing backend
// for a single recording. Events arrive in stage order per recording.
type ProcessingEvent struct {
	Stage       Stage   `json:"stage"`
	Message     string  `json:"message"`
	RecordingID string  `json:"recordingId,omitempty"`
	Transcript  *string `json:"transcript,omitempty"`
	Synced      bool    `json:"synced"`
}

// Recording is one captured audio artifact and its processing outcome.
// Synced is only ever true once a non-nil transcript has been stored.
type Recording struct {
	ID              string    `json:"id"`
	StudentID       string    `json:"studentId"`
	AudioPath       string    `json:"audioPath"`
	Transcript      *string   `json:"transcript"`
	DurationSeconds float64   `json:"durationSeconds"`
	RecordedAt      time.Time `json:"recordedAt"`
	Synced          bool      `json:"synced"`
}

// Identity is the locally bound student identity produced by onboarding.
type Identity struct {
	StudentID     string `json:"studentId"`
	StudentName   string `json:"studentName"`
	TeacherName   string `json:"teacherName"`
	ServerURL     string `json:"serverUrl"`
	ModelLoaded   bool   `json:"modelLoaded"`
	SetupComplete bool   `json:"setupComplete"`
}

// Student is a roster entry from the directory service.
type Student struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Teacher is a roster entry from the directory service.
type Teacher struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Nickname string `json:"nickname,omitempty"`
}

// Roster is the directory snapshot used during onboarding. Available is
// false when the server was unreachable or returned no entries; callers
// fall back to free-text entry.
type Roster struct {
	Students  []Student `json:"students"`
	Teachers  []Teacher `json:"teachers"`
	Available bool      `json:"available"`
}

// CaptureResult is returned when a recording session is stopped.
type CaptureResult struct {
	ID              string  `json:"id"`
	DurationSeconds float64 `json:"durationSeconds"`
}

// SyncOutcome summarizes one sync sweep. Partial failure is expected;
// each recording is attempted independently.
type SyncOutcome struct {
	SyncedCount int      `json:"syncedCount"`
	FailedCount int      `json:"failedCount"`
	Errors      []string `json:"errors,omitempty"`
}

// ErrorCode identifies backend error classes surfaced to the UI.
type ErrorCode string

const (
	ErrorCodeStartup    ErrorCode = "startup"
	ErrorCodeRecording  ErrorCode = "recording"
	ErrorCodeProcessing ErrorCode = "processing"
	ErrorCodeStorage    ErrorCode = "storage"
	ErrorCodeModel      ErrorCode = "model"
	ErrorCodeSync       ErrorCode = "sync"
	ErrorCodeSetup      ErrorCode = "setup"
)
