package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fruitsalade/projectfs/internal/config"
	"github.com/fruitsalade/projectfs/internal/logging"
)

var (
	configPath string
	verbose    bool
	cfg        *config.Client
)

var rootCmd = &cobra.Command{
	Use:   "projectfs",
	Short: "Offline-first project file store",
	Long: `projectfs keeps code projects in a local store and syncs whole project
trees to a remote endpoint when it is reachable.

Edits always succeed locally; pending changes are pushed by "projectfs sync"
or continuously by "projectfs watch".`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		loaded, err := config.LoadClient(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		if err := logging.Init(logging.Config{
			Level:      cfg.LogLevel,
			Format:     cfg.LogFormat,
			OutputPath: "stderr",
		}); err != nil {
			return err
		}
		if verbose {
			logging.SetLevel("debug")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file (default $PROJECTFS_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
}
