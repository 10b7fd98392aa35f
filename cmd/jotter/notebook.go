package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/jotter/pkg/notebooks"
)

var notebookCmd = &cobra.Command{
	Use:     "notebook",
	Aliases: []string{"nb"},
	Short:   "Manage notebooks",
}

var notebookListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notebooks with their note counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openNotes(cmd.Context())
		if err != nil {
			return err
		}
		for _, nb := range notebooks.New(m).List() {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", nb.Name, nb.Tag.Popularity())
		}
		return nil
	},
}

var notebookShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "List the notes of a notebook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openNotes(cmd.Context())
		if err != nil {
			return err
		}
		books := notebooks.New(m)
		nb, err := books.Get(args[0])
		if err != nil {
			return err
		}
		for _, n := range books.NotesIn(nb) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", n.ID(), n.Title())
		}
		return nil
	},
}

var notebookCreateCmd = &cobra.Command{
	Use:   "create <name> [note]...",
	Short: "Create a notebook, filing the given notes under it",
	Long: `Create a notebook. Notebooks are stored as tags on their notes, so a
notebook only persists once it holds a note.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		m, err := openNotes(ctx)
		if err != nil {
			return err
		}
		books := notebooks.New(m)
		nb, err := books.Create(args[0])
		if err != nil {
			return err
		}
		for _, ref := range args[1:] {
			n, err := resolveNote(m, ref)
			if err != nil {
				return err
			}
			if err := books.Move(n, nb.Name); err != nil {
				return err
			}
		}
		return m.SaveAll(ctx)
	},
}

var notebookMoveCmd = &cobra.Command{
	Use:   "move <note> [name]",
	Short: "File a note under a notebook, or unfile it when no name is given",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		m, err := openNotes(ctx)
		if err != nil {
			return err
		}
		n, err := resolveNote(m, args[0])
		if err != nil {
			return err
		}
		name := ""
		if len(args) == 2 {
			name = args[1]
		}
		if err := notebooks.New(m).Move(n, name); err != nil {
			return err
		}
		return m.SaveAll(ctx)
	},
}

var notebookDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a notebook, keeping its notes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		m, err := openNotes(ctx)
		if err != nil {
			return err
		}
		if err := notebooks.New(m).Delete(ctx, args[0]); err != nil {
			return err
		}
		return m.SaveAll(ctx)
	},
}

func init() {
	rootCmd.AddCommand(notebookCmd)
	notebookCmd.AddCommand(notebookListCmd, notebookShowCmd, notebookCreateCmd, notebookMoveCmd, notebookDeleteCmd)
}
