//go:build windows

package cmd

import "context"

// foregroundChanges never reports on Windows, which has no user signals.
func foregroundChanges(ctx context.Context) <-chan bool {
	return nil
}
