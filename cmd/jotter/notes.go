package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/jotter"
	"github.com/aretw0/jotter/pkg/core"
)

// openNotes opens the configured notes directory. Extra options are
// applied after the configuration.
func openNotes(ctx context.Context, extra ...jotter.Option) (*core.Manager, error) {
	opts := append(jotter.FromConfig(cfg), jotter.WithLogger(slog.Default()))
	opts = append(opts, extra...)
	m, err := jotter.Open(ctx, cfg.NotesDir, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open notes: %w", err)
	}
	return m, nil
}

// resolveNote accepts a note URI, a bare guid, or a title.
func resolveNote(m *core.Manager, ref string) (*core.Note, error) {
	if n := m.FindByURI(ref); n != nil {
		return n, nil
	}
	if n := m.FindByURI(core.URIScheme + ref); n != nil {
		return n, nil
	}
	if n := m.Find(ref); n != nil {
		return n, nil
	}
	return nil, fmt.Errorf("%w: %s", core.ErrNoteNotFound, ref)
}

// readInput returns the value of a text flag, reading stdin when it is "-".
func readInput(cmd *cobra.Command, value string) (string, error) {
	if value != "-" {
		return value, nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return string(data), nil
}

func tagNames(n *core.Note) []string {
	names := []string{}
	for _, t := range n.Tags() {
		names = append(names, t.Name())
	}
	return names
}

func readFileOrStdin(cmd *cobra.Command, path string) (string, error) {
	if path == "-" {
		return readInput(cmd, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return strings.TrimSuffix(string(data), "\n"), nil
}
