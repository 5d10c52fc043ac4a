package autosave

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fruitsalade/projectfs/pkg/models"
)

type fakeEngine struct {
	saves   atomic.Int32
	syncs   atomic.Int32
	online  atomic.Bool
	saveErr atomic.Value // error

	mu       sync.Mutex
	recorded []error
}

func (f *fakeEngine) HasProject() bool { return true }

func (f *fakeEngine) Save() error {
	f.saves.Add(1)
	if err, ok := f.saveErr.Load().(error); ok && err != nil {
		return err
	}
	return nil
}

func (f *fakeEngine) Sync(context.Context) error {
	f.syncs.Add(1)
	return nil
}

func (f *fakeEngine) Status() models.SyncStatus {
	return models.SyncStatus{IsOnline: f.online.Load()}
}

func (f *fakeEngine) RecordError(err error) {
	f.mu.Lock()
	f.recorded = append(f.recorded, err)
	f.mu.Unlock()
}

func (f *fakeEngine) errors() []error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]error(nil), f.recorded...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestDebounceCoalescesTouches(t *testing.T) {
	eng := &fakeEngine{}
	s := New(eng, Options{
		Enabled:          true,
		AutosaveInterval: time.Hour,
		SyncInterval:     time.Hour,
		Debounce:         30 * time.Millisecond,
	})
	s.Start(context.Background())
	defer s.Stop()

	for i := 0; i < 10; i++ {
		s.Touch()
		time.Sleep(time.Millisecond)
	}
	waitFor(t, "debounced save", func() bool { return eng.saves.Load() >= 1 })
	time.Sleep(60 * time.Millisecond)

	if n := eng.saves.Load(); n != 1 {
		t.Errorf("saves = %d, want 1 for a burst of touches", n)
	}
	if s.Unsaved() {
		t.Error("changes should be saved")
	}
}

func TestAutosaveIntervalSavesAndSyncsWhenOnline(t *testing.T) {
	eng := &fakeEngine{}
	eng.online.Store(true)
	s := New(eng, Options{
		Enabled:          true,
		AutosaveInterval: 10 * time.Millisecond,
		SyncInterval:     time.Hour,
		Debounce:         time.Hour,
	})
	s.unsaved.Store(true)
	s.Start(context.Background())
	defer s.Stop()

	waitFor(t, "interval autosave", func() bool { return eng.saves.Load() >= 1 && eng.syncs.Load() >= 1 })

	// Nothing new to save: further ticks only sync.
	saves := eng.saves.Load()
	syncs := eng.syncs.Load()
	waitFor(t, "more syncs", func() bool { return eng.syncs.Load() > syncs+1 })
	if eng.saves.Load() != saves {
		t.Errorf("saved again without changes")
	}
}

func TestAutosaveSkipsSyncWhenOffline(t *testing.T) {
	eng := &fakeEngine{}
	s := New(eng, Options{
		Enabled:          true,
		AutosaveInterval: 5 * time.Millisecond,
		SyncInterval:     time.Hour,
		Debounce:         time.Hour,
	})
	s.Touch()
	s.Start(context.Background())
	waitFor(t, "save", func() bool { return eng.saves.Load() >= 1 })
	time.Sleep(20 * time.Millisecond)
	s.Stop()

	if n := eng.syncs.Load(); n != 0 {
		t.Errorf("syncs while offline = %d", n)
	}
}

func TestBackgroundPausesAutosave(t *testing.T) {
	eng := &fakeEngine{}
	eng.online.Store(true)
	s := New(eng, Options{
		Enabled:          true,
		AutosaveInterval: 5 * time.Millisecond,
		SyncInterval:     time.Hour,
		Debounce:         time.Hour,
	})
	s.SetForeground(false)
	s.Start(context.Background())
	defer s.Stop()

	time.Sleep(40 * time.Millisecond)
	if n := eng.syncs.Load(); n != 0 {
		t.Fatalf("autosave ran %d times in background", n)
	}

	s.SetForeground(true)
	waitFor(t, "autosave after resume", func() bool { return eng.syncs.Load() >= 1 })
}

func TestSyncTimerRunsRegardless(t *testing.T) {
	eng := &fakeEngine{}
	s := New(eng, Options{
		Enabled:          false,
		AutosaveInterval: time.Hour,
		SyncInterval:     5 * time.Millisecond,
	})
	s.SetForeground(false)
	s.Start(context.Background())
	defer s.Stop()

	waitFor(t, "sync ticks", func() bool { return eng.syncs.Load() >= 2 })
	if eng.saves.Load() != 0 {
		t.Error("sync timer must not save")
	}
}

func TestAutosaveErrorIsRecorded(t *testing.T) {
	eng := &fakeEngine{}
	eng.saveErr.Store(errors.New("quota exceeded"))
	s := New(eng, Options{
		Enabled:          true,
		AutosaveInterval: time.Hour,
		SyncInterval:     time.Hour,
		Debounce:         time.Millisecond,
	})
	s.Start(context.Background())
	defer s.Stop()

	s.Touch()
	waitFor(t, "recorded error", func() bool { return len(eng.errors()) >= 1 })
	if !s.Unsaved() {
		t.Error("failed save must leave changes unsaved")
	}
}

func TestShutdownFinalSave(t *testing.T) {
	eng := &fakeEngine{}
	s := New(eng, Options{Enabled: true, Debounce: time.Hour})
	s.Start(context.Background())
	s.Touch()

	if err := s.Shutdown(); err != nil {
		t.Fatal(err)
	}
	if n := eng.saves.Load(); n != 1 {
		t.Errorf("saves = %d, want 1", n)
	}

	// Nothing unsaved: no extra write.
	if err := s.Shutdown(); err != nil {
		t.Fatal(err)
	}
	if n := eng.saves.Load(); n != 1 {
		t.Errorf("saves = %d after second shutdown", n)
	}
}

func TestFlushReturnsError(t *testing.T) {
	eng := &fakeEngine{}
	s := New(eng, DefaultOptions())
	want := errors.New("disk full")
	eng.saveErr.Store(want)

	s.Touch()
	if err := s.Flush(); err != want {
		t.Errorf("Flush = %v, want %v", err, want)
	}
	if !s.Unsaved() {
		t.Error("expected unsaved after failed flush")
	}
}
