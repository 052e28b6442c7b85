package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"lectern/internal/domain"
	"lectern/internal/ports"
)

var (
	ErrSweepInFlight  = errors.New("a sync sweep is already in flight")
	ErrDeleteInFlight = errors.New("recording is busy and cannot be deleted")
)

// Tracker watches recordings whose transcript has not been confirmed
// delivered. It drives the manual "sync pending" action and the badge
// count surfaced to the user.
type Tracker struct {
	store    ports.Store
	delivery ports.SyncClient
	pipeline *Pipeline
	sink     ports.EventSink
	logger   *zap.Logger

	mu       sync.Mutex
	sweeping bool
}

func NewTracker(store ports.Store, delivery ports.SyncClient, pipeline *Pipeline, sink ports.EventSink, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		store:    store,
		delivery: delivery,
		pipeline: pipeline,
		sink:     sink,
		logger:   logger,
	}
}

// Count recomputes the unsynced recording count from the store. Never
// cached beyond this call.
func (t *Tracker) Count() (int, error) {
	return t.store.UnsyncedCount()
}

// SyncPending attempts delivery for every unsynced recording that already
// has a transcript. Each recording is attempted independently; one failure
// does not abort the batch. At most one sweep runs at a time: a concurrent
// call fails fast with ErrSweepInFlight so the same transcript can never
// be delivered twice.
func (t *Tracker) SyncPending(ctx context.Context) (domain.SyncOutcome, error) {
	t.mu.Lock()
	if t.sweeping {
		t.mu.Unlock()
		return domain.SyncOutcome{}, ErrSweepInFlight
	}
	t.sweeping = true
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.sweeping = false
		t.mu.Unlock()
	}()

	pending, err := t.store.UnsyncedRecordings()
	if err != nil {
		return domain.SyncOutcome{}, fmt.Errorf("gather pending recordings: %w", err)
	}

	outcome := domain.SyncOutcome{}
	for _, rec := range pending {
		if err := t.delivery.SubmitTranscript(ctx, rec); err != nil {
			outcome.FailedCount++
			outcome.Errors = append(outcome.Errors, fmt.Sprintf("recording %s: %v", rec.ID, err))
			continue
		}
		if err := t.store.MarkSynced(rec.ID); err != nil {
			// Delivered but not recorded as such; the next sweep will
			// retry and the server dedupes on client_id.
			t.logger.Error("delivered but failed to mark synced",
				zap.String("recording", rec.ID), zap.Error(err))
			outcome.FailedCount++
			outcome.Errors = append(outcome.Errors, fmt.Sprintf("recording %s: %v", rec.ID, err))
			continue
		}
		outcome.SyncedCount++
	}

	if count, err := t.store.UnsyncedCount(); err == nil {
		t.sink.UnsyncedCountChanged(count)
	}

	t.logger.Info("sync sweep finished",
		zap.Int("synced", outcome.SyncedCount), zap.Int("failed", outcome.FailedCount))
	return outcome, nil
}

// Delete removes a recording. Refused while a pipeline run or a sync
// sweep is in flight for it: a syncing attempt must never race a delete.
func (t *Tracker) Delete(id string) error {
	if t.pipeline != nil && t.pipeline.Active(id) {
		return ErrDeleteInFlight
	}

	t.mu.Lock()
	sweeping := t.sweeping
	t.mu.Unlock()
	if sweeping {
		return ErrDeleteInFlight
	}

	if err := t.store.DeleteRecording(id); err != nil {
		return err
	}
	if count, err := t.store.UnsyncedCount(); err == nil {
		t.sink.UnsyncedCountChanged(count)
	}
	return nil
}
