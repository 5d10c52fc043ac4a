package connectivity

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakePinger struct {
	up atomic.Bool
}

func (f *fakePinger) Ping(context.Context) error {
	if f.up.Load() {
		return nil
	}
	return errors.New("connection refused")
}

type recorder struct {
	mu  sync.Mutex
	got []bool
}

func (r *recorder) record(_ context.Context, online bool) {
	r.mu.Lock()
	r.got = append(r.got, online)
	r.mu.Unlock()
}

func (r *recorder) transitions() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.got...)
}

func TestCheckReportsTransitionsOnly(t *testing.T) {
	p := &fakePinger{}
	p.up.Store(true)
	rec := &recorder{}
	m := New(p, time.Second, rec.record)
	ctx := context.Background()

	m.Check(ctx) // first probe always reports
	m.Check(ctx)
	p.up.Store(false)
	m.Check(ctx)
	m.Check(ctx)
	p.up.Store(true)
	m.Check(ctx)

	got := rec.transitions()
	want := []bool{true, false, true}
	if len(got) != len(want) {
		t.Fatalf("transitions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("transitions = %v, want %v", got, want)
		}
	}
	if !m.Online() {
		t.Error("expected online")
	}
}

func TestStartStop(t *testing.T) {
	p := &fakePinger{}
	rec := &recorder{}
	m := New(p, 5*time.Millisecond, rec.record)

	m.Start(context.Background())
	deadline := time.Now().Add(time.Second)
	for len(rec.transitions()) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	p.up.Store(true)
	for len(rec.transitions()) < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	m.Stop()
	m.Stop()

	got := rec.transitions()
	if len(got) < 2 || got[0] != false || got[1] != true {
		t.Fatalf("transitions = %v, want [false true]", got)
	}

	n := len(rec.transitions())
	p.up.Store(false)
	time.Sleep(20 * time.Millisecond)
	if len(rec.transitions()) != n {
		t.Error("probes continued after Stop")
	}
}
