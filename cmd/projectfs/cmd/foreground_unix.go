//go:build !windows

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// foregroundChanges reports SIGUSR1 as going to the background and SIGUSR2
// as returning to the foreground.
func foregroundChanges(ctx context.Context) <-chan bool {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGUSR1, syscall.SIGUSR2)

	out := make(chan bool)
	go func() {
		defer close(out)
		defer signal.Stop(sig)
		for {
			select {
			case <-ctx.Done():
				return
			case s := <-sig:
				select {
				case out <- s == syscall.SIGUSR2:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
