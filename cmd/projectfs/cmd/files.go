package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/fruitsalade/projectfs/internal/workspace"
)

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Print the current project tree (* marks unsynced files)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), true, func(a *app) error {
			p, err := a.svc.Project()
			if err != nil {
				return err
			}
			fmt.Printf("%s (%s)\n", p.Name, p.ID)
			printTree(os.Stdout, p.Files, "")
			return nil
		})
	},
}

var catCmd = &cobra.Command{
	Use:   "cat <path>",
	Short: "Print a file's content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), true, func(a *app) error {
			n, err := a.svc.Lookup(args[0])
			if err != nil {
				return err
			}
			content, err := a.svc.ReadFile(n.ID)
			if err != nil {
				return err
			}
			fmt.Print(content)
			return nil
		})
	},
}

var writeContent string

var writeCmd = &cobra.Command{
	Use:   "write <path>",
	Short: "Replace a file's content (from --content or stdin)",
	Long: `Replace a file's content. Without --content the new content is read
from stdin.

Examples:
  projectfs write main.py --content 'print("hi")'
  cat local.py | projectfs write src/app.py`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content := writeContent
		if !cmd.Flags().Changed("content") {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return err
			}
			content = string(data)
		}
		return withApp(cmd.Context(), true, func(a *app) error {
			n, err := a.svc.Lookup(args[0])
			if err != nil {
				return err
			}
			return a.svc.SaveFile(n.ID, content)
		})
	},
}

var touchLanguage string

var touchCmd = &cobra.Command{
	Use:   "touch <path>",
	Short: "Create a file with language boilerplate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), true, func(a *app) error {
			dir, name := splitPath(args[0])
			parent, err := parentID(a.svc, dir)
			if err != nil {
				return err
			}
			n, err := a.svc.CreateFile(parent, name, touchLanguage)
			if err != nil {
				return err
			}
			fmt.Printf("Created %s (%s)\n", n.Path, n.Language)
			return nil
		})
	},
}

var mkdirCmd = &cobra.Command{
	Use:   "mkdir <path>",
	Short: "Create a folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), true, func(a *app) error {
			dir, name := splitPath(args[0])
			parent, err := parentID(a.svc, dir)
			if err != nil {
				return err
			}
			n, err := a.svc.CreateFolder(parent, name)
			if err != nil {
				return err
			}
			fmt.Printf("Created %s/\n", n.Path)
			return nil
		})
	},
}

var mvCmd = &cobra.Command{
	Use:   "mv <path> <new-name>",
	Short: "Rename a file or folder",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), true, func(a *app) error {
			n, err := a.svc.Lookup(args[0])
			if err != nil {
				return err
			}
			return a.svc.Rename(n.ID, args[1])
		})
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm <path>",
	Short: "Delete a file or folder (recursively)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), true, func(a *app) error {
			n, err := a.svc.Lookup(args[0])
			if err != nil {
				return err
			}
			return a.svc.Delete(n.ID)
		})
	},
}

func historyCommand(use, short string, step func(svc *workspace.Service, id string) (string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <path>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), true, func(a *app) error {
				n, err := a.svc.Lookup(args[0])
				if err != nil {
					return err
				}
				content, err := step(a.svc, n.ID)
				if err != nil {
					return err
				}
				fmt.Print(content)
				if undo, redo, err := a.svc.HistoryAvailable(n.ID); err == nil {
					fmt.Fprintf(os.Stderr, "undo available: %t, redo available: %t\n", undo, redo)
				}
				return nil
			})
		},
	}
}

func init() {
	writeCmd.Flags().StringVar(&writeContent, "content", "", "new file content")
	touchCmd.Flags().StringVarP(&touchLanguage, "language", "l", "", "language (detected from the extension when empty)")

	rootCmd.AddCommand(treeCmd, catCmd, writeCmd, touchCmd, mkdirCmd, mvCmd, rmCmd,
		historyCommand("undo", "Restore a file's previous content", (*workspace.Service).Undo),
		historyCommand("redo", "Re-apply the last undone change", (*workspace.Service).Redo),
	)
}
