package usecase

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"lectern/internal/domain"
	"lectern/internal/ports"
)

var ErrPipelineActive = errors.New("a pipeline run is already active for this recording")

// Pipeline reacts to the processing event stream of a recording run. It
// performs no polling: it consumes events in stage order, persists the
// transcript and sync outcome, and holds the terminal status visible for
// a short settle window before clearing it.
//
// All state is keyed by recording id so concurrent runs for distinct
// recordings cannot corrupt each other, even though the current product
// drives at most one run at a time.
type Pipeline struct {
	store  ports.Store
	sink   ports.EventSink
	logger *zap.Logger

	settleDone  time.Duration
	settleError time.Duration

	mu          sync.Mutex
	active      map[string]struct{}
	settleTimer *time.Timer
	settleRun   string
}

func NewPipeline(store ports.Store, sink ports.EventSink, logger *zap.Logger, settleDone, settleError time.Duration) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		store:       store,
		sink:        sink,
		logger:      logger,
		settleDone:  settleDone,
		settleError: settleError,
		active:      make(map[string]struct{}),
	}
}

// Run registers a pipeline run for rec and consumes its event stream on a
// dedicated goroutine. The returned channel closes once the run reached a
// terminal stage and its effects are persisted. Starting a second run for
// the same recording fails with ErrPipelineActive.
func (p *Pipeline) Run(rec domain.Recording, stream <-chan domain.ProcessingEvent) (<-chan struct{}, error) {
	p.mu.Lock()
	if _, busy := p.active[rec.ID]; busy {
		p.mu.Unlock()
		return nil, ErrPipelineActive
	}
	p.active[rec.ID] = struct{}{}

	// A new run supersedes any pending settle clear; letting the stale
	// timer fire would wipe this run's status mid-flight.
	if p.settleTimer != nil {
		p.settleTimer.Stop()
		p.settleTimer = nil
	}
	p.settleRun = ""
	p.mu.Unlock()

	done := make(chan struct{})
	go p.consume(rec.ID, stream, done)
	return done, nil
}

// Active reports whether a run for the given recording id is in flight.
func (p *Pipeline) Active(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, busy := p.active[id]
	return busy
}

func (p *Pipeline) consume(id string, stream <-chan domain.ProcessingEvent, done chan struct{}) {
	defer close(done)

	lastRank := 0
	transcriptStored := false
	terminalSeen := false

	for event := range stream {
		if event.RecordingID == "" {
			event.RecordingID = id
		}
		if event.RecordingID != id {
			p.logger.Warn("dropping event for foreign recording",
				zap.String("run", id), zap.String("event", event.RecordingID))
			continue
		}
		if event.Stage.Rank() < lastRank {
			p.logger.Warn("dropping stale out-of-order event",
				zap.String("run", id), zap.String("stage", string(event.Stage)))
			continue
		}
		lastRank = event.Stage.Rank()

		if event.Transcript != nil && !transcriptStored {
			if err := p.store.SetTranscript(id, *event.Transcript); err != nil {
				p.logger.Error("failed to store transcript", zap.String("run", id), zap.Error(err))
				p.sink.BackendError(domain.ErrorCodeStorage, err.Error())
			} else {
				transcriptStored = true
			}
		}

		if event.Stage.Terminal() {
			terminalSeen = true
			p.finish(id, event, transcriptStored)
			break
		}
		p.sink.ProcessingStatus(event)
	}

	if !terminalSeen {
		// The backend contract promises a terminal event; a closed stream
		// without one is an unrecoverable processing failure.
		p.finish(id, domain.ProcessingEvent{
			Stage:       domain.StageError,
			Message:     "Processing ended unexpectedly",
			RecordingID: id,
		}, transcriptStored)
	}
}

func (p *Pipeline) finish(id string, event domain.ProcessingEvent, transcriptStored bool) {
	if event.Stage == domain.StageDone && event.Synced {
		if !transcriptStored {
			p.logger.Error("refusing to mark synced without a stored transcript", zap.String("run", id))
			event.Synced = false
		} else if err := p.store.MarkSynced(id); err != nil {
			p.logger.Error("failed to mark recording synced", zap.String("run", id), zap.Error(err))
			p.sink.BackendError(domain.ErrorCodeStorage, err.Error())
			event.Synced = false
			event.Message = "Done! Transcript saved locally (sync pending)."
		}
	}

	p.mu.Lock()
	delete(p.active, id)
	p.mu.Unlock()

	p.sink.ProcessingStatus(event)

	if count, err := p.store.UnsyncedCount(); err == nil {
		p.sink.UnsyncedCountChanged(count)
	} else {
		p.logger.Error("failed to recompute unsynced count", zap.Error(err))
	}

	p.scheduleSettle(id, event.Stage)
}

// scheduleSettle holds the terminal status visible for a grace window,
// then emits an idle status to clear it. Error statuses get a longer
// window since they need more reading time.
func (p *Pipeline) scheduleSettle(id string, stage domain.Stage) {
	delay := p.settleDone
	if stage == domain.StageError {
		delay = p.settleError
	}
	if delay < 0 {
		delay = 0
	}

	p.mu.Lock()
	if p.settleTimer != nil {
		p.settleTimer.Stop()
	}
	p.settleRun = id
	p.settleTimer = time.AfterFunc(delay, func() {
		p.mu.Lock()
		if p.settleRun != id {
			p.mu.Unlock()
			return
		}
		p.settleRun = ""
		p.settleTimer = nil
		p.mu.Unlock()

		p.sink.ProcessingStatus(domain.ProcessingEvent{Stage: domain.StageIdle})
	})
	p.mu.Unlock()
}
