package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/jmgilman/go/errors"
	"github.com/spf13/cobra"
)

var newCmd = &cobra.Command{
	Use:   "new <name>",
	Short: "Create a project and make it current",
	Long: `Create a project seeded with README.md and main.py and make it the
current project.

Examples:
  projectfs new Demo`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withApp(ctx, false, func(a *app) error {
			p, err := a.svc.NewProject(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Created project %s (%s)\n", p.Name, p.ID)
			return nil
		})
	},
}

var openCmd = &cobra.Command{
	Use:   "open <id-or-name>",
	Short: "Make a stored project current",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withApp(ctx, false, func(a *app) error {
			id := args[0]
			list, err := a.svc.ListProjects()
			if err != nil {
				return err
			}
			var matches []string
			for _, s := range list {
				if s.ID == id {
					matches = []string{s.ID}
					break
				}
				if s.Name == id {
					matches = append(matches, s.ID)
				}
			}
			switch len(matches) {
			case 0:
				return errors.Newf(errors.CodeNotFound, "project %q not found", id)
			case 1:
			default:
				return errors.Newf(errors.CodeConflict, "%d projects are named %q; open by id", len(matches), id)
			}

			p, err := a.svc.OpenProject(ctx, matches[0])
			if err != nil {
				return err
			}
			fmt.Printf("Opened project %s (%s)\n", p.Name, p.ID)
			return nil
		})
	},
}

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List stored projects",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), false, func(a *app) error {
			list, err := a.svc.ListProjects()
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Println("No projects.")
				return nil
			}
			current, _ := a.store.GetCurrent()

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "\tID\tNAME\tFILES\tLAST SYNC")
			for _, s := range list {
				mark := ""
				if s.ID == current {
					mark = "*"
				}
				last := "never"
				if s.LastSync != nil {
					last = s.LastSync.Format(time.RFC3339)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", mark, s.ID, s.Name, s.FileCount, last)
			}
			return w.Flush()
		})
	},
}

var rmProjectCmd = &cobra.Command{
	Use:   "rm-project <id>",
	Short: "Delete a stored project that is not current",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), false, func(a *app) error {
			if current, ok := a.store.GetCurrent(); ok && current == args[0] {
				return errors.New(errors.CodeConflict, "cannot delete the current project")
			}
			if err := a.svc.DeleteProject(args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted project %s\n", args[0])
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(newCmd, openCmd, projectsCmd, rmProjectCmd)
}
