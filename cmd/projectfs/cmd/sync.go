package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fruitsalade/projectfs/internal/logging"
	"github.com/fruitsalade/projectfs/pkg/models"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push the current project if the endpoint is reachable",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withApp(ctx, true, func(a *app) error {
			if a.remote == nil {
				fmt.Println("No sync endpoint configured; changes stay local.")
				return nil
			}
			// Coming online syncs at once.
			if !a.probe(ctx) {
				fmt.Printf("Offline: %s is unreachable.\n", a.remote.BaseURL())
			}
			printStatus(os.Stdout, a.svc.Status())
			return nil
		})
	},
}

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the sync status of the current project",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), true, func(a *app) error {
			st := a.svc.Status()
			if statusJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}
			printStatus(os.Stdout, st)
			return nil
		})
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run autosave, periodic sync and the connectivity monitor until interrupted",
	Long: `Run autosave, periodic sync and the connectivity monitor until SIGINT or
SIGTERM, then save a final time.

SIGUSR1 moves the session to the background, which pauses interval autosave;
SIGUSR2 brings it back to the foreground.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return withApp(context.WithoutCancel(ctx), true, func(a *app) error {
			updates, cancel := a.engine.Broadcaster().Watch(0)
			defer cancel()

			a.sched.Start(ctx)
			go followForeground(ctx, foregroundChanges(ctx), func(fg bool) {
				a.sched.SetForeground(fg)
				logging.Info("foreground changed", zap.Bool("foreground", fg))
			})
			if a.monitor != nil {
				a.monitor.Start(ctx)
				defer a.monitor.Stop()
			}
			logging.Info("watching", logging.ProjectID(projectID(a)))

			for {
				select {
				case <-ctx.Done():
					logging.Info("shutting down...")
					return nil
				case st, ok := <-updates:
					if !ok {
						return nil
					}
					printTransition(st)
				}
			}
		})
	},
}

// followForeground applies foreground changes until ctx ends or changes closes.
func followForeground(ctx context.Context, changes <-chan bool, set func(bool)) {
	for {
		select {
		case <-ctx.Done():
			return
		case fg, ok := <-changes:
			if !ok {
				return
			}
			set(fg)
		}
	}
}

func projectID(a *app) string {
	if p, err := a.svc.Project(); err == nil {
		return p.ID
	}
	return ""
}

func printTransition(st models.SyncStatus) {
	line := fmt.Sprintf("[%s] pending=%d online=%t", st.State, st.PendingChanges, st.IsOnline)
	if st.SyncInProgress {
		line += " syncing"
	}
	if st.Error != "" {
		line += " error=" + st.Error
	}
	fmt.Println(line)
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print the status as JSON")
	rootCmd.AddCommand(syncCmd, statusCmd, watchCmd)
}
