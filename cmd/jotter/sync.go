package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/aretw0/jotter"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronize the notes history with its git remote",
	Long: `Pull remote changes (rebasing local commits on top) and push local
ones. The notes directory must have history enabled (JOTTER_HISTORY=true).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Syncing...")
		if err := jotter.Sync(cmd.Context(), cfg.NotesDir, jotter.WithLogger(slog.Default())); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "Tip: Ensure you have a remote configured ('git remote add origin <url>') and you are online.")
			return fmt.Errorf("sync failed: %w", err)
		}
		fmt.Fprintln(out, "Sync completed successfully.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
