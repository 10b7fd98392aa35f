package platform

import (
	"log/slog"
	"time"

	"github.com/aretw0/jotter/pkg/core"
)

// options holds the internal configuration for opening a notes directory.
type options struct {
	logger       *slog.Logger
	clock        core.Clock
	saveDelay    time.Duration
	startNote    string
	systemDir    string
	backups      bool
	readOnly     bool
	watch        bool
	history      bool
	mustExist    bool
	forceTemp    bool
	devSafety    bool
	errorHandler func(error)
}

// Option defines a functional option for opening a notes directory.
type Option func(*options)

func defaultOptions() *options {
	return &options{
		saveDelay: core.DefaultSaveDelay,
		backups:   true,
		devSafety: true,
	}
}

// WithLogger sets the logger shared by the manager and the repository.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithClock replaces the wall clock used by the save debouncer.
func WithClock(c core.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithSaveDelay sets how long edits are coalesced before a note is written.
func WithSaveDelay(d time.Duration) Option {
	return func(o *options) {
		o.saveDelay = d
	}
}

// WithStartNote sets the URI of the start note.
func WithStartNote(uri string) Option {
	return func(o *options) {
		o.startNote = uri
	}
}

// WithSystemDir sets the hidden directory holding the title index.
// Defaults to ".jotter".
func WithSystemDir(name string) Option {
	return func(o *options) {
		o.systemDir = name
	}
}

// WithBackups moves deleted notes into the Backup directory instead of
// removing them. Enabled by default.
func WithBackups(enabled bool) Option {
	return func(o *options) {
		o.backups = enabled
	}
}

// WithReadOnly opens the directory without writing to it.
// In this mode:
// 1. Saves and deletes fail with core.ErrReadOnly.
// 2. Directory creation and git init are skipped.
// 3. The dev sandbox is bypassed, since nothing can be damaged.
func WithReadOnly(enabled bool) Option {
	return func(o *options) {
		o.readOnly = enabled
	}
}

// WithWatch follows changes made to the directory by other processes.
func WithWatch(enabled bool) Option {
	return func(o *options) {
		o.watch = enabled
	}
}

// WithHistory commits every save and delete to a git repository in the
// notes directory.
func WithHistory(enabled bool) Option {
	return func(o *options) {
		o.history = enabled
	}
}

// WithMustExist fails instead of creating a missing notes directory.
func WithMustExist(must bool) Option {
	return func(o *options) {
		o.mustExist = must
	}
}

// WithForceTemp forces the use of a temporary directory (useful for testing).
func WithForceTemp(force bool) Option {
	return func(o *options) {
		o.forceTemp = force
	}
}

// WithDevSafety controls the sandbox used when running via `go run`.
// By default (true), the notes directory is re-rooted under the system
// temp directory so development runs cannot touch real notes.
//
// CAUTION: Only disable this if you are sure your code is safe.
func WithDevSafety(enabled bool) Option {
	return func(o *options) {
		o.devSafety = enabled
	}
}

// WithWatcherErrorHandler registers a callback for errors raised inside
// the watch loop, which are otherwise only logged.
func WithWatcherErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.errorHandler = fn
	}
}

// FromConfig converts a loaded Config into options. Explicit options
// passed after these take precedence.
func FromConfig(cfg Config) []Option {
	return []Option{
		WithSaveDelay(cfg.SaveDelay),
		WithBackups(cfg.Backup),
		WithWatch(cfg.Watch),
		WithHistory(cfg.History),
		WithReadOnly(cfg.ReadOnly),
		WithStartNote(cfg.StartNote),
	}
}
