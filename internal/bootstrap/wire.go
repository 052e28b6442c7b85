// Package bootstrap assembles the runtime graph.
package bootstrap

import (
	"context"
	"os"

	"go.uber.org/zap"

	"lectern/internal/audio"
	"lectern/internal/backend"
	"lectern/internal/config"
	"lectern/internal/ports"
	"lectern/internal/store"
	"lectern/internal/syncer"
	"lectern/internal/usecase"
	"lectern/internal/whisper"
)

// Services is the assembled runtime graph.
type Services struct {
	Config     config.Config
	Logger     *zap.Logger
	Store      *store.Store
	SyncClient *syncer.Client
	Models     *whisper.ModelManager
	Session    *usecase.SessionController
	Pipeline   *usecase.Pipeline
	Tracker    *usecase.Tracker
	Onboarding *usecase.Reconciler
	Monitor    *usecase.Monitor
}

// Build wires all backend dependencies for the current runtime.
func Build(sink ports.EventSink) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}

	logger, err := newLogger()
	if err != nil {
		return Services{}, err
	}

	db, err := store.Open(cfg.Session.DataDir)
	if err != nil {
		return Services{}, err
	}

	identity, err := db.Identity()
	if err != nil {
		db.Close()
		return Services{}, err
	}
	serverURL := identity.ServerURL
	if serverURL == "" {
		serverURL = cfg.Server.DefaultURL
	}
	client := syncer.NewClient(serverURL, cfg.Sync.ProbeTimeout)

	models := whisper.NewModelManager(whisper.ModelConfig{
		Dir:         cfg.Model.Dir,
		FileName:    cfg.Model.FileName,
		DownloadURL: cfg.Model.DownloadURL,
		Command:     cfg.Model.Command,
	}, sink.ModelDownloadProgress, logger)

	engine := whisper.NewEngine(cfg.Model.Command, models, logger)
	recorder := audio.NewFFMPEGRecorder(audio.Config{
		Command:     cfg.Audio.RecorderCommand,
		InputFormat: cfg.Audio.InputFormat,
		InputDevice: cfg.Audio.InputDevice,
		SampleRate:  cfg.Audio.SampleRate,
		Channels:    cfg.Audio.Channels,
	})

	pipeline := usecase.NewPipeline(db, sink, logger, cfg.Session.SettleDone, cfg.Session.SettleError)
	processing := backend.NewLocal(engine, client, logger)
	session := usecase.NewSessionController(recorder, processing, models, db, pipeline, sink, logger, usecase.SessionConfig{
		AudioDir: cfg.Session.AudioDir,
	})
	tracker := usecase.NewTracker(db, client, pipeline, sink, logger)
	onboarding := usecase.NewReconciler(client, db, models, session, sink, logger)
	monitor := usecase.NewMonitor(client, sink, logger, cfg.Sync.ProbeInterval, func() {
		go func() {
			// Best effort retry sweep; ErrSweepInFlight just means one is
			// already running.
			_, _ = tracker.SyncPending(context.Background())
		}()
	})

	return Services{
		Config:     cfg,
		Logger:     logger,
		Store:      db,
		SyncClient: client,
		Models:     models,
		Session:    session,
		Pipeline:   pipeline,
		Tracker:    tracker,
		Onboarding: onboarding,
		Monitor:    monitor,
	}, nil
}

func newLogger() (*zap.Logger, error) {
	if os.Getenv("LECTERN_DEBUG") != "" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
