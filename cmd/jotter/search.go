package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/jotter/pkg/search"
)

var searchCaseSensitive bool

var searchCmd = &cobra.Command{
	Use:   "search <query>...",
	Short: "Find notes containing every word of the query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openNotes(cmd.Context())
		if err != nil {
			return err
		}

		results := search.Notes(m.Notes(), strings.Join(args, " "), searchCaseSensitive)
		out := cmd.OutOrStdout()
		for _, r := range results {
			fmt.Fprintf(out, "%3d  %s  %s\n", r.Score, r.Note.ID(), r.Note.Title())
		}
		if len(results) == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "No matches.")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().BoolVarP(&searchCaseSensitive, "case-sensitive", "s", false, "Match case")
}
