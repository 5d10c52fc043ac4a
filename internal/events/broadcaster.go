// Package events broadcasts sync status transitions to observers.
//
// Callbacks registered with Subscribe run synchronously on the publishing
// goroutine, in registration order. Channels returned by Watch receive the
// same snapshots without blocking the publisher.
package events

import (
	"sync"

	"github.com/fruitsalade/projectfs/internal/metrics"
	"github.com/fruitsalade/projectfs/pkg/models"
)

// Handler receives a status snapshot.
type Handler func(models.SyncStatus)

type subscriber struct {
	id uint64
	fn Handler
}

// Broadcaster is an in-memory observer registry. Nothing survives a crash.
type Broadcaster struct {
	mu       sync.RWMutex
	nextID   uint64
	subs     []subscriber
	watchers map[chan models.SyncStatus]struct{}
	closed   bool
}

// NewBroadcaster creates a new status broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		watchers: make(map[chan models.SyncStatus]struct{}),
	}
}

// Subscribe registers fn and returns a function that removes it. Calling the
// returned function more than once is harmless.
func (b *Broadcaster) Subscribe(fn Handler) func() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return func() {}
	}
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscriber{id: id, fn: fn})
	b.mu.Unlock()
	metrics.SetStatusSubscribers(b.Count())

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Broadcaster) remove(id uint64) {
	b.mu.Lock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			break
		}
	}
	b.mu.Unlock()
	metrics.SetStatusSubscribers(b.Count())
}

// Watch returns a channel receiving every published status and a cancel
// function that closes it. Statuses are dropped when the buffer is full.
func (b *Broadcaster) Watch(buffer int) (<-chan models.SyncStatus, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan models.SyncStatus, buffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	b.watchers[ch] = struct{}{}
	b.mu.Unlock()
	metrics.SetStatusSubscribers(b.Count())

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			if _, ok := b.watchers[ch]; ok {
				delete(b.watchers, ch)
				close(ch)
			}
			b.mu.Unlock()
			metrics.SetStatusSubscribers(b.Count())
		})
	}
}

// Publish delivers st to every subscriber. Callbacks may subscribe or
// unsubscribe while being called; such changes apply from the next Publish.
func (b *Broadcaster) Publish(st models.SyncStatus) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	subs := make([]subscriber, len(b.subs))
	copy(subs, b.subs)
	for ch := range b.watchers {
		select {
		case ch <- st:
		default:
			// Drop for slow consumer
		}
	}
	b.mu.RUnlock()

	for _, s := range subs {
		s.fn(st)
	}
}

// Count returns the number of callbacks and watchers.
func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs) + len(b.watchers)
}

// Close drops all subscribers and closes watcher channels.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.subs = nil
	for ch := range b.watchers {
		close(ch)
	}
	b.watchers = make(map[chan models.SyncStatus]struct{})
	b.mu.Unlock()
	metrics.SetStatusSubscribers(0)
}
