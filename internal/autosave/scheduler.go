// Package autosave drives periodic persistence and sync of the active project.
//
// Two timers run independently: the autosave timer (foreground only) saves
// unsaved changes and syncs when online; the sync timer syncs regardless of
// local state to retry earlier failures. Touch coalesces bursts of edits into
// one debounced autosave.
package autosave

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/fruitsalade/projectfs/internal/logging"
	"github.com/fruitsalade/projectfs/internal/metrics"
	"github.com/fruitsalade/projectfs/pkg/models"
)

// Engine is the part of the sync engine the scheduler drives.
type Engine interface {
	HasProject() bool
	Save() error
	Sync(ctx context.Context) error
	Status() models.SyncStatus
	RecordError(err error)
}

// Options configures a Scheduler.
type Options struct {
	Enabled          bool
	AutosaveInterval time.Duration
	SyncInterval     time.Duration
	Debounce         time.Duration
}

// DefaultOptions returns the standard timings.
func DefaultOptions() Options {
	return Options{
		Enabled:          true,
		AutosaveInterval: 30 * time.Second,
		SyncInterval:     60 * time.Second,
		Debounce:         time.Second,
	}
}

// Scheduler owns the autosave and sync timers.
type Scheduler struct {
	engine Engine
	opts   Options
	log    *zap.Logger

	unsaved atomic.Bool
	touchCh chan struct{}
	fgCh    chan struct{}

	mu         sync.Mutex
	foreground bool
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// New creates a stopped scheduler. Zero durations select the defaults.
func New(engine Engine, opts Options) *Scheduler {
	def := DefaultOptions()
	if opts.AutosaveInterval <= 0 {
		opts.AutosaveInterval = def.AutosaveInterval
	}
	if opts.SyncInterval <= 0 {
		opts.SyncInterval = def.SyncInterval
	}
	if opts.Debounce < 0 {
		opts.Debounce = 0
	}
	return &Scheduler{
		engine:     engine,
		opts:       opts,
		log:        logging.Named("autosave"),
		touchCh:    make(chan struct{}, 1),
		fgCh:       make(chan struct{}, 1),
		foreground: true,
	}
}

// Start launches the timers. They stop on Stop, Shutdown or when ctx ends.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(2)
	go s.autosaveLoop(loopCtx)
	go s.syncLoop(loopCtx)

	s.log.Info("scheduler started",
		zap.Bool("autosave", s.opts.Enabled),
		zap.Duration("autosave_interval", s.opts.AutosaveInterval),
		zap.Duration("sync_interval", s.opts.SyncInterval),
		zap.Duration("debounce", s.opts.Debounce),
	)
}

// Stop halts the timers and waits for a running autosave to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		s.wg.Wait()
	}
}

// Shutdown stops the timers and makes a final best-effort save.
func (s *Scheduler) Shutdown() error {
	s.Stop()
	if !s.engine.HasProject() || !s.unsaved.Swap(false) {
		return nil
	}
	metrics.RecordAutosave("shutdown")
	if err := s.engine.Save(); err != nil {
		s.unsaved.Store(true)
		s.log.Error("final save failed", zap.Error(err))
		return err
	}
	return nil
}

// Flush saves unsaved changes now and returns the persistence error, if any.
func (s *Scheduler) Flush() error {
	if !s.engine.HasProject() {
		return nil
	}
	s.unsaved.Store(false)
	if err := s.engine.Save(); err != nil {
		s.unsaved.Store(true)
		return err
	}
	return nil
}

// Touch records a local mutation and schedules a debounced autosave.
func (s *Scheduler) Touch() {
	s.unsaved.Store(true)
	select {
	case s.touchCh <- struct{}{}:
	default:
	}
}

// Unsaved reports whether changes are waiting for the next save.
func (s *Scheduler) Unsaved() bool { return s.unsaved.Load() }

// SetForeground pauses (false) or resumes (true) the autosave timer.
func (s *Scheduler) SetForeground(fg bool) {
	s.mu.Lock()
	changed := s.foreground != fg
	s.foreground = fg
	s.mu.Unlock()

	if changed {
		s.log.Debug("foreground changed", zap.Bool("foreground", fg))
		select {
		case s.fgCh <- struct{}{}:
		default:
		}
	}
}

func (s *Scheduler) isForeground() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.foreground
}

func (s *Scheduler) autosaveLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.opts.AutosaveInterval)
	defer ticker.Stop()
	if !s.isForeground() {
		ticker.Stop()
	}

	var debounce *time.Timer
	var debounceC <-chan time.Time
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case <-s.touchCh:
			if !s.opts.Enabled {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(s.opts.Debounce)
			} else {
				debounce.Reset(s.opts.Debounce)
			}
			debounceC = debounce.C

		case <-debounceC:
			debounceC = nil
			s.autosave(ctx, "debounce")

		case <-s.fgCh:
			if s.isForeground() {
				ticker.Reset(s.opts.AutosaveInterval)
			} else {
				ticker.Stop()
			}

		case <-ticker.C:
			if s.opts.Enabled {
				s.autosave(ctx, "interval")
			}
		}
	}
}

func (s *Scheduler) syncLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.opts.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.engine.HasProject() {
				continue
			}
			metrics.RecordAutosave("sync")
			s.engine.Sync(ctx)
		}
	}
}

// autosave persists unsaved changes, then syncs if online. Persistence
// failures are recorded on the engine, never returned.
func (s *Scheduler) autosave(ctx context.Context, trigger string) {
	if !s.engine.HasProject() {
		return
	}
	metrics.RecordAutosave(trigger)

	if s.unsaved.Swap(false) {
		if err := s.engine.Save(); err != nil {
			s.unsaved.Store(true)
			s.engine.RecordError(err)
			s.log.Warn("autosave failed", zap.String("trigger", trigger), zap.Error(err))
		} else {
			s.log.Debug("autosaved", zap.String("trigger", trigger))
		}
	}

	if s.engine.Status().IsOnline {
		s.engine.Sync(ctx)
	}
}
