package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"lectern/internal/bootstrap"
	"lectern/internal/domain"
	"lectern/internal/usecase"
)

const (
	eventProcessing    = "lectern:processing-status"
	eventTick          = "lectern:recording-tick"
	eventUnsynced      = "lectern:unsynced-count"
	eventConnectivity  = "lectern:connectivity"
	eventModelProgress = "lectern:model-download-progress"
	eventError         = "lectern:error"
)

// App is the Wails application root.
type App struct {
	ctx context.Context

	services bootstrap.Services
	bootErr  error
}

func NewApp() *App {
	return &App{}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a)
	if err != nil {
		a.bootErr = err
		a.BackendError(domain.ErrorCodeStartup, err.Error())
		return
	}
	a.services = services

	// Quietly restore engine readiness across restarts.
	if services.Models.CheckModelExists() {
		if err := services.Models.LoadModel(ctx); err != nil {
			services.Logger.Warn("model auto-load failed: " + err.Error())
		}
	}

	services.Monitor.Start(ctx)
}

func (a *App) shutdown(_ context.Context) {
	if a.bootErr != nil {
		return
	}
	a.services.Monitor.Stop()
	_ = a.services.Store.Close()
	_ = a.services.Logger.Sync()
}

// ========== Settings ==========

// GetSettings returns the persisted identity plus live model readiness.
func (a *App) GetSettings() (domain.Identity, error) {
	if err := a.requireReady(); err != nil {
		return domain.Identity{}, err
	}
	identity, err := a.services.Store.Identity()
	if err != nil {
		return domain.Identity{}, err
	}
	if identity.ServerURL == "" {
		identity.ServerURL = a.services.Config.Server.DefaultURL
	}
	identity.ModelLoaded = a.services.Models.Loaded()
	return identity, nil
}

// SaveSettings replaces the mutable identity fields.
func (a *App) SaveSettings(identity domain.Identity) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	if err := a.services.Store.SaveIdentity(identity); err != nil {
		return err
	}
	if identity.ServerURL != "" {
		a.services.SyncClient.SetServerURL(identity.ServerURL)
	}
	return nil
}

// GetRoster fetches the onboarding roster; unavailable rosters come back
// empty with Available=false so the UI falls back to free-text entry.
func (a *App) GetRoster() domain.Roster {
	if err := a.requireReady(); err != nil {
		return domain.Roster{}
	}
	return a.services.Onboarding.Roster(a.ctx)
}

// CompleteSetup finishes onboarding and auto-starts the first session.
func (a *App) CompleteSetup(studentName, teacherName, serverURL string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	if err := a.services.Onboarding.Complete(a.ctx, studentName, teacherName, serverURL); err != nil {
		return err
	}
	if identity, err := a.services.Store.Identity(); err == nil && identity.ServerURL != "" {
		a.services.SyncClient.SetServerURL(identity.ServerURL)
	}
	return nil
}

// ========== Recording ==========

// StartRecording opens a capture session.
func (a *App) StartRecording() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	if err := a.services.Session.Start(a.ctx); err != nil {
		a.BackendError(domain.ErrorCodeRecording, err.Error())
		return err
	}
	return nil
}

// StopRecording closes the session and hands the artifact to the
// processing pipeline; progress arrives as processing-status events.
func (a *App) StopRecording() (domain.CaptureResult, error) {
	if err := a.requireReady(); err != nil {
		return domain.CaptureResult{}, err
	}
	result, err := a.services.Session.Stop(a.ctx)
	if err != nil {
		if !errors.Is(err, usecase.ErrNotRecording) {
			a.BackendError(domain.ErrorCodeRecording, err.Error())
		}
		return domain.CaptureResult{}, err
	}
	return result, nil
}

// IsRecording reports whether a capture session is open.
func (a *App) IsRecording() bool {
	if a.requireReady() != nil {
		return false
	}
	return a.services.Session.Recording()
}

// ========== Model ==========

func (a *App) CheckModelExists() bool {
	return a.requireReady() == nil && a.services.Models.CheckModelExists()
}

func (a *App) GetModelPath() string {
	if a.requireReady() != nil {
		return ""
	}
	return a.services.Models.ModelPath()
}

func (a *App) DownloadModel() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	if err := a.services.Models.DownloadModel(a.ctx); err != nil {
		a.BackendError(domain.ErrorCodeModel, err.Error())
		return err
	}
	return a.LoadModel()
}

func (a *App) LoadModel() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	if err := a.services.Models.LoadModel(a.ctx); err != nil {
		a.BackendError(domain.ErrorCodeModel, err.Error())
		return err
	}
	return nil
}

// ========== History ==========

func (a *App) GetRecordings() ([]domain.Recording, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	return a.services.Store.Recordings()
}

func (a *App) DeleteRecording(id string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.services.Tracker.Delete(id)
}

// ========== Sync ==========

func (a *App) CheckServerConnection() bool {
	return a.requireReady() == nil && a.services.SyncClient.CheckConnection(a.ctx)
}

func (a *App) GetUnsyncedCount() (int, error) {
	if err := a.requireReady(); err != nil {
		return 0, err
	}
	return a.services.Tracker.Count()
}

// SyncTranscripts runs a manual sync sweep. A sweep already in flight is
// reported as such, not silently merged.
func (a *App) SyncTranscripts() (domain.SyncOutcome, error) {
	if err := a.requireReady(); err != nil {
		return domain.SyncOutcome{}, err
	}
	return a.services.Tracker.SyncPending(a.ctx)
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.services.Session == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// ========== Event sink ==========

// ProcessingStatus emits pipeline progress to the frontend.
func (a *App) ProcessingStatus(event domain.ProcessingEvent) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventProcessing, event)
}

// RecordingTick emits elapsed capture time once per second.
func (a *App) RecordingTick(elapsedSeconds float64) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventTick, elapsedSeconds)
}

// UnsyncedCountChanged emits the recomputed pending badge count.
func (a *App) UnsyncedCountChanged(count int) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventUnsynced, count)
}

// ConnectivityChanged emits advisory server liveness.
func (a *App) ConnectivityChanged(online bool) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventConnectivity, online)
}

// ModelDownloadProgress emits human-readable download progress.
func (a *App) ModelDownloadProgress(message string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventModelProgress, message)
}

// BackendError emits backend errors to the UI.
func (a *App) BackendError(code domain.ErrorCode, detail string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeRecording:
		return "Recording issue"
	case domain.ErrorCodeProcessing:
		return "Processing error"
	case domain.ErrorCodeStorage:
		return "Local storage error"
	case domain.ErrorCodeModel:
		return "Model setup failed"
	case domain.ErrorCodeSync:
		return "Sync failed"
	case domain.ErrorCodeSetup:
		return "Setup incomplete"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
