//go:build !windows

package cmd

import (
	"context"
	"syscall"
	"testing"
	"time"
)

func TestForegroundSignals(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes := foregroundChanges(ctx)

	for _, tt := range []struct {
		sig  syscall.Signal
		want bool
	}{
		{syscall.SIGUSR1, false},
		{syscall.SIGUSR2, true},
	} {
		if err := syscall.Kill(syscall.Getpid(), tt.sig); err != nil {
			t.Fatal(err)
		}
		select {
		case fg := <-changes:
			if fg != tt.want {
				t.Errorf("%v: foreground = %t, want %t", tt.sig, fg, tt.want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("%v not reported", tt.sig)
		}
	}

	cancel()
	select {
	case _, ok := <-changes:
		if ok {
			t.Error("unexpected change after cancel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}
