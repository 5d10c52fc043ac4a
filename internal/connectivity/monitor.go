// Package connectivity turns health probes of the remote endpoint into
// online/offline transitions.
package connectivity

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fruitsalade/projectfs/internal/logging"
)

// Pinger checks reachability of the remote endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Monitor probes a Pinger periodically and reports transitions.
type Monitor struct {
	pinger   Pinger
	interval time.Duration
	onChange func(ctx context.Context, online bool)
	log      *zap.Logger

	mu     sync.Mutex
	online bool
	known  bool
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a monitor. onChange runs on the probing goroutine, for the
// first probe and for every change after that.
func New(p Pinger, interval time.Duration, onChange func(ctx context.Context, online bool)) *Monitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Monitor{
		pinger:   p,
		interval: interval,
		onChange: onChange,
		log:      logging.Named("connectivity"),
	}
}

// Online returns the last probe result.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Check probes once and reports a transition if there was one.
func (m *Monitor) Check(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, m.interval)
	err := m.pinger.Ping(probeCtx)
	cancel()
	up := err == nil

	m.mu.Lock()
	changed := !m.known || m.online != up
	m.online = up
	m.known = true
	m.mu.Unlock()

	if changed {
		if up {
			m.log.Info("remote reachable")
		} else {
			m.log.Warn("remote unreachable", zap.Error(err))
		}
		if m.onChange != nil {
			m.onChange(ctx, up)
		}
	}
	return up
}

// Start probes immediately and then every interval until Stop or ctx ends.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	done := m.done
	m.mu.Unlock()

	go func() {
		defer close(done)
		m.Check(loopCtx)

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.Check(loopCtx)
			case <-loopCtx.Done():
				return
			}
		}
	}()

	m.log.Info("health check enabled", zap.Duration("interval", m.interval))
}

// Stop ends the probe loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}
