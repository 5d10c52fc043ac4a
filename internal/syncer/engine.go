// Package syncer reconciles the local project tree with the remote endpoint.
//
// The Engine owns the active project and is the single authority over its
// SyncStatus. At most one push is in flight per engine; network failures are
// recorded in the status and never returned to callers.
package syncer

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/jmgilman/go/errors"
	"go.uber.org/zap"

	"github.com/fruitsalade/projectfs/internal/events"
	"github.com/fruitsalade/projectfs/internal/logging"
	"github.com/fruitsalade/projectfs/internal/metrics"
	"github.com/fruitsalade/projectfs/pkg/models"
	"github.com/fruitsalade/projectfs/pkg/protocol"
	"github.com/fruitsalade/projectfs/pkg/tree"
)

// Remote pushes a full tree to the sync endpoint.
type Remote interface {
	Push(ctx context.Context, req *protocol.SyncRequest) (*protocol.SyncResponse, error)
}

// Persister durably stores a project.
type Persister interface {
	Save(p *models.ProjectFolder) error
}

// ErrNoProject is returned by operations that need an active project.
var ErrNoProject = errors.New(errors.CodeInvalidInput, "no active project")

// Options configures an Engine.
type Options struct {
	// Remote may be nil: the engine then stays offline.
	Remote      Remote
	Store       Persister
	Broadcaster *events.Broadcaster
	// Online is the initial connectivity.
	Online bool
	Now    func() time.Time
}

// Engine is the sync engine for one active project at a time.
type Engine struct {
	remote Remote
	store  Persister
	bus    *events.Broadcaster
	now    func() time.Time
	log    *zap.Logger

	mu      sync.Mutex
	project *models.ProjectFolder
	status  models.SyncStatus
	idle    chan struct{} // closed while no sync is in flight
	seq     uint64        // transitions so far

	// Delivery state. One goroutine at a time delivers queued transitions.
	pubMu      sync.Mutex
	queue      []update
	delivering bool
	delivered  uint64
}

// update is a status snapshot tagged with its position in transition order.
type update struct {
	seq    uint64
	status models.SyncStatus
}

// New creates an engine with no active project.
func New(opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Broadcaster == nil {
		opts.Broadcaster = events.NewBroadcaster()
	}
	online := opts.Online && opts.Remote != nil

	idle := make(chan struct{})
	close(idle)

	e := &Engine{
		remote: opts.Remote,
		store:  opts.Store,
		bus:    opts.Broadcaster,
		now:    opts.Now,
		log:    logging.Named("syncer"),
		idle:   idle,
		status: models.SyncStatus{IsOnline: online, State: models.SyncSynced},
	}
	if !online {
		e.status.State = models.SyncOffline
	}
	metrics.SetOnline(online)
	return e
}

// Broadcaster returns the status broadcaster.
func (e *Engine) Broadcaster() *events.Broadcaster { return e.bus }

// Subscribe registers fn for status transitions.
func (e *Engine) Subscribe(fn events.Handler) func() { return e.bus.Subscribe(fn) }

// Status returns a snapshot of the current status.
func (e *Engine) Status() models.SyncStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() models.SyncStatus {
	st := e.status
	if st.LastSync != nil {
		t := *st.LastSync
		st.LastSync = &t
	}
	return st
}

// setStateLocked mirrors the state onto the project.
func (e *Engine) setStateLocked(s models.SyncState) {
	e.status.State = s
	if e.project != nil {
		e.project.SyncStatus = s
		e.project.IsOnline = e.status.IsOnline
	}
}

// transitionLocked numbers the current status for publishing.
func (e *Engine) transitionLocked() update {
	e.seq++
	return update{seq: e.seq, status: e.snapshotLocked()}
}

// publish delivers u to subscribers in transition order. When another
// goroutine is already delivering, u is queued for it and publish returns at
// once; snapshots older than one already delivered are dropped, so observers
// always finish on the latest status.
func (e *Engine) publish(u update) {
	e.pubMu.Lock()
	e.queue = append(e.queue, u)
	if e.delivering {
		e.pubMu.Unlock()
		return
	}
	e.delivering = true
	for len(e.queue) > 0 {
		batch := e.queue
		e.queue = nil
		e.pubMu.Unlock()

		slices.SortFunc(batch, func(a, b update) int { return cmp.Compare(a.seq, b.seq) })
		for _, next := range batch {
			if next.seq <= e.delivered {
				continue
			}
			e.delivered = next.seq
			metrics.SetPendingChanges(next.status.PendingChanges)
			e.bus.Publish(next.status)
		}

		e.pubMu.Lock()
	}
	e.delivering = false
	e.pubMu.Unlock()
}

// SetProject makes p the active project. It does not wait for a push of the
// previous project; use SwitchProject when one may be in flight.
func (e *Engine) SetProject(p *models.ProjectFolder) {
	e.mu.Lock()
	e.setProjectLocked(p)
	u := e.transitionLocked()
	e.mu.Unlock()

	e.publish(u)
}

// SwitchProject makes p the active project once no sync is in flight. The
// check and the swap happen under one lock, and the outgoing project is
// persisted before it is released.
func (e *Engine) SwitchProject(ctx context.Context, p *models.ProjectFolder) error {
	for {
		e.mu.Lock()
		if !e.status.SyncInProgress {
			break
		}
		idle := e.idle
		e.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if e.project != nil && e.store != nil {
		if err := e.store.Save(e.project); err != nil {
			e.mu.Unlock()
			return err
		}
	}
	e.setProjectLocked(p)
	u := e.transitionLocked()
	e.mu.Unlock()

	e.publish(u)
	return nil
}

func (e *Engine) setProjectLocked(p *models.ProjectFolder) {
	e.project = p
	e.status.Error = ""
	if p == nil {
		e.status.PendingChanges = 0
		e.status.LastSync = nil
		return
	}
	e.status.PendingChanges = len(tree.DirtyFiles(p.Files))
	e.status.LastSync = p.LastSync
	switch {
	case !e.status.IsOnline:
		e.setStateLocked(models.SyncOffline)
	case e.status.PendingChanges > 0:
		e.setStateLocked(models.SyncPending)
	default:
		e.setStateLocked(models.SyncSynced)
	}
}

// HasProject reports whether a project is active.
func (e *Engine) HasProject() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.project != nil
}

// Project returns a deep copy of the active project.
func (e *Engine) Project() (*models.ProjectFolder, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.project == nil {
		return nil, false
	}
	return e.project.Clone(), true
}

// View runs fn with the active project under the engine lock. fn must not
// modify the project or call back into the engine.
func (e *Engine) View(fn func(p *models.ProjectFolder) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.project == nil {
		return ErrNoProject
	}
	return fn(e.project)
}

// Mutate runs fn against the active project under the engine lock. When fn
// succeeds the change is counted as pending and subscribers are notified.
func (e *Engine) Mutate(fn func(p *models.ProjectFolder) error) error {
	e.mu.Lock()
	if e.project == nil {
		e.mu.Unlock()
		return ErrNoProject
	}
	if err := fn(e.project); err != nil {
		e.mu.Unlock()
		return err
	}
	e.status.PendingChanges++
	// error and offline persist until the next successful sync or reconnect.
	if e.status.State == models.SyncSynced {
		e.setStateLocked(models.SyncPending)
	}
	u := e.transitionLocked()
	e.mu.Unlock()

	e.publish(u)
	return nil
}

// Save persists the active project.
func (e *Engine) Save() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.project == nil {
		return ErrNoProject
	}
	if e.store == nil {
		return nil
	}
	return e.store.Save(e.project)
}

// RecordError stores err as the status error message without changing the
// state. Used for failures on background paths (autosave persistence).
func (e *Engine) RecordError(err error) {
	if err == nil {
		return
	}
	e.mu.Lock()
	e.status.Error = err.Error()
	u := e.transitionLocked()
	e.mu.Unlock()

	e.log.Warn("background error recorded", zap.Error(err))
	e.publish(u)
}

// Sync pushes the active project. It is a no-op while another sync is in
// flight or while offline. Network failures are recorded in the status; the
// only error returned is ErrNoProject.
func (e *Engine) Sync(ctx context.Context) error {
	e.mu.Lock()
	if e.project == nil {
		e.mu.Unlock()
		return ErrNoProject
	}
	if e.status.SyncInProgress || !e.status.IsOnline {
		e.mu.Unlock()
		metrics.RecordSync("skipped", 0)
		return nil
	}

	e.status.SyncInProgress = true
	e.status.Error = ""
	e.idle = make(chan struct{})
	idle := e.idle
	target := e.project
	snapshot := e.project.Clone()
	pendingAtStart := e.status.PendingChanges
	u := e.transitionLocked()
	e.mu.Unlock()

	e.publish(u)
	e.log.Debug("sync started",
		logging.ProjectID(snapshot.ID),
		zap.Int("pending", pendingAtStart),
	)

	start := time.Now()
	_, err := e.remote.Push(ctx, &protocol.SyncRequest{
		ProjectID:   snapshot.ID,
		ProjectName: snapshot.Name,
		Files:       snapshot.Files,
		LastSync:    snapshot.LastSync,
	})
	elapsed := time.Since(start)

	e.mu.Lock()
	e.status.SyncInProgress = false
	close(idle)

	switch {
	case e.project != target:
		// The active project changed underneath the push; its outcome no
		// longer describes the current project.
		e.log.Warn("discarding sync outcome for inactive project", logging.ProjectID(snapshot.ID))
	case err != nil:
		e.status.Error = err.Error()
		if e.status.IsOnline {
			e.setStateLocked(models.SyncError)
		} else {
			e.setStateLocked(models.SyncOffline)
		}
		e.log.Warn("sync failed",
			logging.ProjectID(snapshot.ID),
			zap.Int("pending", e.status.PendingChanges),
			zap.Error(err),
		)
	default:
		e.applySuccessLocked(snapshot, pendingAtStart)
	}
	u = e.transitionLocked()
	e.mu.Unlock()

	if err != nil {
		metrics.RecordSync("failure", elapsed)
	} else {
		metrics.RecordSync("success", elapsed)
	}
	e.publish(u)
	return nil
}

func (e *Engine) applySuccessLocked(snapshot *models.ProjectFolder, pendingAtStart int) {
	now := e.now()
	e.status.LastSync = &now
	e.project.LastSync = &now

	e.status.PendingChanges -= pendingAtStart
	if e.status.PendingChanges < 0 {
		e.status.PendingChanges = 0
	}

	// Files edited while the push was in flight stay dirty.
	sent := tree.Flatten(snapshot.Files)
	tree.Walk(e.project.Files, func(n *models.FileNode) {
		if !n.IsFile() || !n.IsDirty {
			return
		}
		if s, ok := sent[n.ID]; ok && s.Content == n.Content && s.LastModified.Equal(n.LastModified) {
			n.IsDirty = false
		}
	})

	switch {
	case !e.status.IsOnline:
		e.setStateLocked(models.SyncOffline)
	case e.status.PendingChanges > 0:
		e.setStateLocked(models.SyncPending)
	default:
		e.setStateLocked(models.SyncSynced)
	}

	if e.store != nil {
		if err := e.store.Save(e.project); err != nil {
			e.status.Error = err.Error()
			e.log.Error("persist after sync failed", logging.ProjectID(e.project.ID), zap.Error(err))
		}
	}
	e.log.Info("sync succeeded",
		logging.ProjectID(e.project.ID),
		zap.Time("last_sync", now),
		zap.Int("pending", e.status.PendingChanges),
	)
}

// SetOnline records a connectivity change. Going offline stops new syncs
// (an in-flight push is left to finish); coming back online syncs at once.
func (e *Engine) SetOnline(ctx context.Context, online bool) {
	e.mu.Lock()
	if online && e.remote == nil {
		e.mu.Unlock()
		e.log.Debug("ignoring online signal: no remote configured")
		return
	}
	if e.status.IsOnline == online {
		e.mu.Unlock()
		return
	}
	e.status.IsOnline = online
	if online {
		e.setStateLocked(models.SyncPending)
	} else {
		e.setStateLocked(models.SyncOffline)
	}
	hasProject := e.project != nil
	u := e.transitionLocked()
	e.mu.Unlock()

	metrics.SetOnline(online)
	e.log.Info("connectivity changed", zap.Bool("online", online))
	e.publish(u)

	if online && hasProject {
		e.Sync(ctx)
	}
}

// WaitIdle blocks until no sync is in flight.
func (e *Engine) WaitIdle(ctx context.Context) error {
	e.mu.Lock()
	idle := e.idle
	e.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
