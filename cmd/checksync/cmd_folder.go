package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/NordCoder/checksync/internal/folder"
)

func newFolderCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "folder",
		Short: "Rename, delete, create and list folders",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "mv FROM TO",
			Short: "Rename a folder and everything below it",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withSession(cmd, func(s *session) error {
					return s.engine().RenameFolder(cmd.Context(), args[0], args[1])
				})
			},
		},
		&cobra.Command{
			Use:   "rm PATH",
			Short: "Delete a folder; its checks move to the parent",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withSession(cmd, func(s *session) error {
					return s.engine().DeleteFolder(cmd.Context(), args[0])
				})
			},
		},
		&cobra.Command{
			Use:   "mkdir PATH",
			Short: "Declare an empty folder",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withSession(cmd, func(s *session) error {
					return s.engine().CreateFolder(cmd.Context(), args[0])
				})
			},
		},
		&cobra.Command{
			Use:   "ls",
			Short: "Show the folder tree with check counts",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.withSession(cmd, func(s *session) error {
					t := s.engine().FolderTree()
					return a.emit(cmd.OutOrStdout(), t.Nodes, func(w io.Writer) error { return printTree(w, t) })
				})
			},
		},
	)
	return cmd
}

func printTree(w io.Writer, t *folder.Tree) error {
	var walk func(i int) error
	walk = func(i int) error {
		n := t.Nodes[i]
		if i != 0 {
			mark := ""
			if n.Declared && n.Total == 0 {
				mark = " (empty)"
			}
			if _, err := fmt.Fprintf(w, "%s%s/ %d/%d%s\n",
				strings.Repeat("  ", n.Depth-1), n.Name, n.Direct, n.Total, mark); err != nil {
				return err
			}
		}
		for _, c := range n.Children {
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(0); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "unfiled %d\n", t.Nodes[0].Direct)
	return err
}
