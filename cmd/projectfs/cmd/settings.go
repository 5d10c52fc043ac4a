package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/fruitsalade/projectfs/internal/templates"
	"github.com/fruitsalade/projectfs/pkg/models"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change editor settings",
	Long: `Show the stored editor settings. Flags change the named settings.

Examples:
  projectfs settings
  projectfs settings --theme light --tab-size 2`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		return withApp(cmd.Context(), false, func(a *app) error {
			settings := a.svc.Settings()
			if anyChanged(cmd, settingNames...) {
				var err error
				settings, err = a.svc.UpdateSettings(func(s *models.EditorSettings) {
					if flags.Changed("theme") {
						s.Theme, _ = flags.GetString("theme")
					}
					if flags.Changed("font-size") {
						s.FontSize, _ = flags.GetInt("font-size")
					}
					if flags.Changed("tab-size") {
						s.TabSize, _ = flags.GetInt("tab-size")
					}
					if flags.Changed("word-wrap") {
						s.WordWrap, _ = flags.GetBool("word-wrap")
					}
					if flags.Changed("autosave") {
						s.AutoSave, _ = flags.GetBool("autosave")
					}
					if flags.Changed("autosave-interval") {
						s.AutoSaveInterval, _ = flags.GetDuration("autosave-interval")
					}
				})
				if err != nil {
					return err
				}
			}
			printSettings(settings)
			return nil
		})
	},
}

var languagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "List the languages new files can be seeded for",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "LANGUAGE\tEXTENSIONS")
		for _, name := range templates.Names() {
			l, _ := templates.Lookup(name)
			fmt.Fprintf(w, "%s\t%s\n", l.Name, strings.Join(l.Extensions, " "))
		}
		return w.Flush()
	},
}

var settingNames = []string{"theme", "font-size", "tab-size", "word-wrap", "autosave", "autosave-interval"}

func anyChanged(cmd *cobra.Command, names ...string) bool {
	for _, n := range names {
		if cmd.Flags().Changed(n) {
			return true
		}
	}
	return false
}

func printSettings(s models.EditorSettings) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "theme\t%s\n", s.Theme)
	fmt.Fprintf(w, "font-size\t%d\n", s.FontSize)
	fmt.Fprintf(w, "tab-size\t%d\n", s.TabSize)
	fmt.Fprintf(w, "word-wrap\t%t\n", s.WordWrap)
	fmt.Fprintf(w, "autosave\t%t\n", s.AutoSave)
	fmt.Fprintf(w, "autosave-interval\t%s\n", s.AutoSaveInterval)
	fmt.Fprintf(w, "recent\t%d project(s)\n", len(s.RecentProjects))
	w.Flush()
}

func init() {
	f := settingsCmd.Flags()
	f.String("theme", "", "editor theme")
	f.Int("font-size", 0, "font size")
	f.Int("tab-size", 0, "tab size")
	f.Bool("word-wrap", false, "wrap long lines")
	f.Bool("autosave", false, "save automatically")
	f.Duration("autosave-interval", 30*time.Second, "autosave interval")
	rootCmd.AddCommand(settingsCmd, languagesCmd)
}
