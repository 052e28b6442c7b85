package usecase

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"lectern/internal/ports"
)

// Monitor periodically probes server reachability. Connectivity is
// advisory state: probe failures read as offline and are never surfaced
// as errors. An offline-to-online transition fires the optional callback,
// wired to a sync sweep so pending transcripts retry as soon as the
// server is back.
type Monitor struct {
	probe    ports.SyncClient
	sink     ports.EventSink
	logger   *zap.Logger
	interval time.Duration
	onOnline func()

	mu     sync.Mutex
	online bool
	stop   chan struct{}
	done   chan struct{}
}

func NewMonitor(probe ports.SyncClient, sink ports.EventSink, logger *zap.Logger, interval time.Duration, onOnline func()) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		probe:    probe,
		sink:     sink,
		logger:   logger,
		interval: interval,
		onOnline: onOnline,
	}
}

// Start launches the probe loop. The first probe fires immediately so the
// UI is not blank for a whole interval after startup.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.stop != nil {
		m.mu.Unlock()
		return
	}
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	stop, done := m.stop, m.done
	m.mu.Unlock()

	go func() {
		defer close(done)

		m.probeOnce(ctx)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.probeOnce(ctx)
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the probe loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	stop, done := m.stop, m.done
	m.stop = nil
	m.done = nil
	m.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// Online reports the last observed liveness.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

func (m *Monitor) probeOnce(ctx context.Context) {
	online := m.probe.CheckConnection(ctx)

	m.mu.Lock()
	wasOnline := m.online
	m.online = online
	m.mu.Unlock()

	m.sink.ConnectivityChanged(online)

	if online && !wasOnline {
		m.logger.Info("server reachable, triggering retry sweep")
		if m.onOnline != nil {
			m.onOnline()
		}
	}
}
