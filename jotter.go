package jotter

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/jotter/internal/platform"
	"github.com/aretw0/jotter/pkg/adapters/fs"
	"github.com/aretw0/jotter/pkg/core"
)

// Version is the version of the library, reported by the remote-control
// Version call.
const Version = "0.1.0"

// --- Types ---

// Manager owns the notes of one directory.
type Manager = core.Manager

// Note is a single note.
type Note = core.Note

// Config is the layered user configuration.
type Config = platform.Config

// --- Configuration ---

// Option defines a functional option for opening a notes directory.
type Option = platform.Option

// WithLogger sets the logger shared by the manager and the repository.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithSaveDelay sets how long edits are coalesced before a save.
func WithSaveDelay(d time.Duration) Option {
	return platform.WithSaveDelay(d)
}

// WithBackups moves deleted notes into the Backup directory.
func WithBackups(enabled bool) Option {
	return platform.WithBackups(enabled)
}

// WithReadOnly opens the notes directory without writing to it.
func WithReadOnly(enabled bool) Option {
	return platform.WithReadOnly(enabled)
}

// WithWatch follows changes made by other processes.
func WithWatch(enabled bool) Option {
	return platform.WithWatch(enabled)
}

// WithHistory commits every change to git.
func WithHistory(enabled bool) Option {
	return platform.WithHistory(enabled)
}

// WithSystemDir sets the hidden directory name (default ".jotter").
func WithSystemDir(name string) Option {
	return platform.WithSystemDir(name)
}

// WithStartNote sets the URI of the start note.
func WithStartNote(uri string) Option {
	return platform.WithStartNote(uri)
}

// WithMustExist fails instead of creating a missing notes directory.
func WithMustExist(must bool) Option {
	return platform.WithMustExist(must)
}

// WithForceTemp forces the use of a temporary directory (useful for testing).
func WithForceTemp(force bool) Option {
	return platform.WithForceTemp(force)
}

// WithDevSafety controls the `go run` sandbox.
func WithDevSafety(enabled bool) Option {
	return platform.WithDevSafety(enabled)
}

// LoadConfig reads defaults, the config file at path, and JOTTER_*
// environment variables.
func LoadConfig(path string) (Config, error) {
	return platform.LoadConfig(path)
}

// FromConfig converts a Config into options.
func FromConfig(cfg Config) []Option {
	return platform.FromConfig(cfg)
}

// --- Factory ---

// Open prepares the notes directory at path and loads its notes.
func Open(ctx context.Context, path string, opts ...Option) (*Manager, error) {
	return platform.Open(ctx, path, opts...)
}

// Init prepares the notes directory at path without loading it.
func Init(ctx context.Context, path string, opts ...Option) (*fs.Repository, error) {
	return platform.Init(ctx, path, opts...)
}

// --- Operations ---

// Sync pulls and pushes the history of the notes directory.
func Sync(ctx context.Context, path string, opts ...Option) error {
	return platform.Sync(ctx, path, opts...)
}

// --- Safety & Utils ---

// ResolveNotesPath applies the dev sandbox rule to a path.
func ResolveNotesPath(userPath string, forceTemp bool) string {
	return platform.ResolveNotesPath(userPath, forceTemp)
}

// IsDevRun checks if the current process is running via `go run` or `go test`.
func IsDevRun() bool {
	return platform.IsDevRun()
}

// FindNotesRoot looks upwards for a notes directory.
func FindNotesRoot(startDir string) (string, error) {
	return platform.FindRoot(startDir)
}
