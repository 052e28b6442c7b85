package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"lectern/internal/domain"
	"lectern/internal/ports"
)

type fakeStore struct {
	mu         sync.Mutex
	recordings map[string]domain.Recording
	order      []string
	identity   domain.Identity
	complete   bool

	saveErr error
	syncErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{recordings: make(map[string]domain.Recording)}
}

func (f *fakeStore) SaveRecording(rec domain.Recording) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	if _, ok := f.recordings[rec.ID]; !ok {
		f.order = append(f.order, rec.ID)
	}
	f.recordings[rec.ID] = rec
	return nil
}

func (f *fakeStore) Recordings() ([]domain.Recording, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Recording, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.recordings[id])
	}
	return out, nil
}

func (f *fakeStore) Recording(id string) (*domain.Recording, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.recordings[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (f *fakeStore) SetTranscript(id string, transcript string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.recordings[id]
	if !ok {
		return fmt.Errorf("unknown recording %s", id)
	}
	rec.Transcript = &transcript
	f.recordings[id] = rec
	return nil
}

func (f *fakeStore) MarkSynced(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.syncErr != nil {
		return f.syncErr
	}
	rec, ok := f.recordings[id]
	if !ok {
		return fmt.Errorf("unknown recording %s", id)
	}
	if rec.Transcript == nil {
		return fmt.Errorf("recording %s has no transcript", id)
	}
	rec.Synced = true
	f.recordings[id] = rec
	return nil
}

func (f *fakeStore) DeleteRecording(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.recordings, id)
	for i, existing := range f.order {
		if existing == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeStore) UnsyncedRecordings() ([]domain.Recording, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Recording
	for _, id := range f.order {
		rec := f.recordings[id]
		if !rec.Synced && rec.Transcript != nil {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeStore) UnsyncedCount() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, rec := range f.recordings {
		if !rec.Synced {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) Identity() (domain.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	identity := f.identity
	identity.SetupComplete = f.complete
	return identity, nil
}

func (f *fakeStore) SaveIdentity(identity domain.Identity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	identity.SetupComplete = f.complete
	f.identity = identity
	return nil
}

func (f *fakeStore) MarkSetupComplete() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.complete = true
	return nil
}

func (f *fakeStore) get(id string) domain.Recording {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recordings[id]
}

type fakeSink struct {
	mu sync.Mutex

	statuses []domain.ProcessingEvent
	ticks    []float64
	counts   []int
	online   []bool
	progress []string
	errors   []sinkError
}

type sinkError struct {
	code   domain.ErrorCode
	detail string
}

func (f *fakeSink) ProcessingStatus(event domain.ProcessingEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, event)
}

func (f *fakeSink) RecordingTick(elapsed float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ticks = append(f.ticks, elapsed)
}

func (f *fakeSink) UnsyncedCountChanged(count int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts = append(f.counts, count)
}

func (f *fakeSink) ConnectivityChanged(on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.online = append(f.online, on)
}

func (f *fakeSink) ModelDownloadProgress(message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progress = append(f.progress, message)
}

func (f *fakeSink) BackendError(code domain.ErrorCode, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, sinkError{code: code, detail: detail})
}

func (f *fakeSink) snapshotStatuses() []domain.ProcessingEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.ProcessingEvent, len(f.statuses))
	copy(out, f.statuses)
	return out
}

func (f *fakeSink) snapshotOnline() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]bool, len(f.online))
	copy(out, f.online)
	return out
}

type fakeRecorder struct {
	mu        sync.Mutex
	recording bool
	path      string
	duration  float64
	startErr  error
	stopErr   error
	stopCalls int
}

func (f *fakeRecorder) Start(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	if f.recording {
		return errors.New("capture already in progress")
	}
	f.recording = true
	f.path = path
	return nil
}

func (f *fakeRecorder) Stop() (ports.Capture, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	if f.stopErr != nil {
		return ports.Capture{}, f.stopErr
	}
	f.recording = false
	return ports.Capture{Path: f.path, DurationSeconds: f.duration}, nil
}

func (f *fakeRecorder) Recording() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recording
}

type fakeModels struct {
	mu          sync.Mutex
	loaded      bool
	exists      bool
	downloadErr error
	loadErr     error
	downloads   int
	loads       int
}

func (f *fakeModels) CheckModelExists() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exists
}

func (f *fakeModels) DownloadModel(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloads++
	if f.downloadErr != nil {
		return f.downloadErr
	}
	f.exists = true
	return nil
}

func (f *fakeModels) LoadModel(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	if f.loadErr != nil {
		return f.loadErr
	}
	f.loaded = true
	return nil
}

func (f *fakeModels) Loaded() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loaded
}

// fakeBackend replays a scripted event stream per Process call.
type fakeBackend struct {
	mu      sync.Mutex
	scripts [][]domain.ProcessingEvent
	calls   int
}

func (f *fakeBackend) Process(_ context.Context, rec domain.Recording) <-chan domain.ProcessingEvent {
	f.mu.Lock()
	var script []domain.ProcessingEvent
	if f.calls < len(f.scripts) {
		script = f.scripts[f.calls]
	}
	f.calls++
	f.mu.Unlock()

	events := make(chan domain.ProcessingEvent, len(script)+1)
	for _, event := range script {
		if event.RecordingID == "" {
			event.RecordingID = rec.ID
		}
		events <- event
	}
	close(events)
	return events
}

type fakeSyncClient struct {
	mu        sync.Mutex
	connected bool
	failIDs   map[string]error
	submitted []string
}

func (f *fakeSyncClient) CheckConnection(_ context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeSyncClient) SubmitTranscript(_ context.Context, rec domain.Recording) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failIDs[rec.ID]; ok {
		return err
	}
	f.submitted = append(f.submitted, rec.ID)
	return nil
}

func (f *fakeSyncClient) snapshotSubmitted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.submitted))
	copy(out, f.submitted)
	return out
}

type fakeDirectory struct {
	students []domain.Student
	teachers []domain.Teacher
	err      error
}

func (f *fakeDirectory) Students(_ context.Context) ([]domain.Student, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.students, nil
}

func (f *fakeDirectory) Teachers(_ context.Context) ([]domain.Teacher, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.teachers, nil
}

func strPtr(s string) *string { return &s }
