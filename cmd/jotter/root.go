package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aretw0/jotter"
)

var (
	verbose    bool
	notesDir   string
	configPath string

	cfg jotter.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "jotter",
	Short: "A note store keeping one XML file per note",
	Long: `Jotter manages a directory of notes, one XML file per note.
It debounces saves, keeps links between notes in step when a note is
renamed, and can serve the notes over HTTP and MCP.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)

		loaded, err := jotter.LoadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		if cmd.Flags().Changed("dir") {
			cfg.NotesDir = notesDir
		} else if os.Getenv("JOTTER_NOTES_DIR") == "" && cfg.File == "" {
			if wd, err := os.Getwd(); err == nil {
				if root, err := jotter.FindNotesRoot(wd); err == nil {
					cfg.NotesDir = root
				}
			}
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&notesDir, "dir", "d", "", "Notes directory (default $XDG_DATA_HOME/jotter)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (.yaml or .toml)")
}
