package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var tagAll bool

var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Manage tags",
}

var tagListCmd = &cobra.Command{
	Use:   "list [note]",
	Short: "List the tags of a note, or every tag with its note count",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openNotes(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(args) == 1 {
			n, err := resolveNote(m, args[0])
			if err != nil {
				return err
			}
			for _, name := range tagNames(n) {
				fmt.Fprintln(out, name)
			}
			return nil
		}

		for _, t := range m.Tags().AllTags() {
			if t.IsSystem() && !tagAll {
				continue
			}
			fmt.Fprintf(out, "%s\t%d\n", t.Name(), t.Popularity())
		}
		return nil
	},
}

var tagAddCmd = &cobra.Command{
	Use:   "add <note> <tag>",
	Short: "Add a tag to a note",
	Args:  cobra.ExactArgs(2),
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
		tag := m.Tags().GetOrCreateTag(args[1])
		if tag == nil {
			return fmt.Errorf("tag name is empty")
		}
		n.AddTag(tag)
		return m.SaveAll(ctx)
	},
}

var tagRemoveCmd = &cobra.Command{
	Use:   "remove <note> <tag>",
	Short: "Remove a tag from a note",
	Args:  cobra.ExactArgs(2),
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
		n.RemoveTag(m.Tags().GetTag(args[1]))
		return m.SaveAll(ctx)
	},
}

func init() {
	rootCmd.AddCommand(tagCmd)
	tagCmd.AddCommand(tagListCmd, tagAddCmd, tagRemoveCmd)
	tagListCmd.Flags().BoolVar(&tagAll, "all", false, "Include system tags")
}
