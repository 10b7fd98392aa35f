package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/aretw0/jotter"
	jlifecycle "github.com/aretw0/jotter/pkg/adapters/lifecycle"
	"github.com/aretw0/jotter/pkg/core"
	"github.com/aretw0/jotter/pkg/remote"
)

var (
	serveAddr  string
	serveWatch bool
	serveStdio bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the notes over HTTP and MCP",
	Long: `Serve the remote-control API: JSON over HTTP under /api, MCP tools at
/mcp, and a server-sent event stream at /api/events. With --stdio the MCP
tools are served on stdin/stdout instead. Pending saves are flushed on
shutdown.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := slog.Default()

		var opts []jotter.Option
		if cmd.Flags().Changed("watch") {
			opts = append(opts, jotter.WithWatch(serveWatch))
		}
		m, err := openNotes(ctx, opts...)
		if err != nil {
			return err
		}
		defer func() {
			if err := m.SaveAll(context.Background()); err != nil {
				logger.Error("failed to flush notes", "error", err)
			}
		}()

		control := remote.NewControl(m,
			remote.WithVersion(jotter.Version),
			remote.WithPresenter(logPresenter{logger: logger}),
			remote.WithLogger(logger),
		)
		mcpServer := remote.NewMCPServer(control)

		logEvents(ctx, m, logger)

		if serveStdio {
			return server.ServeStdio(mcpServer)
		}

		addr := cfg.HTTPAddr
		if cmd.Flags().Changed("addr") {
			addr = serveAddr
		}
		srv := &http.Server{
			Addr:              addr,
			Handler:           remote.NewHandler(control, mcpServer).Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("serving notes", "addr", addr, "dir", cfg.NotesDir)
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("failed to serve: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

// logEvents logs note changes through a lifecycle source until ctx is done.
func logEvents(ctx context.Context, m *core.Manager, logger *slog.Logger) {
	src := jlifecycle.NewSource(m.Events(ctx, 64),
		core.EventAdded, core.EventDeleted, core.EventRenamed, core.EventSaveFailed)
	if err := src.Start(ctx); err != nil {
		logger.Warn("failed to start event log", "error", err)
		return
	}
	lifecycle.Go(ctx, func(ctx context.Context) error {
		for e := range src.Events() {
			logger.Info("note event", "event", e.String())
		}
		return nil
	})
}

// logPresenter stands in for a user interface: display requests are
// logged.
type logPresenter struct {
	logger *slog.Logger
}

func (p logPresenter) PresentNote(n *core.Note, searchText string) {
	p.logger.Info("display note", "uri", n.URI(), "title", n.Title(), "search", searchText)
}

func (p logPresenter) PresentSearch(text string) {
	p.logger.Info("display search", "text", text)
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from JOTTER_HTTP_ADDR or 127.0.0.1:8765)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "Follow changes made by other processes")
	serveCmd.Flags().BoolVar(&serveStdio, "stdio", false, "Serve MCP on stdin/stdout instead of HTTP")
}
