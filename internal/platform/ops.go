package platform

import (
	"context"
	"fmt"

	"github.com/aretw0/jotter/pkg/adapters/fs"
)

// Init prepares the notes directory at path and returns its repository.
// The directory is created unless WithMustExist or WithReadOnly is set.
func Init(ctx context.Context, path string, opts ...Option) (*fs.Repository, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	repo := newRepository(path, o)
	if err := repo.Initialize(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

// newRepository resolves the path against the dev sandbox and builds the
// filesystem adapter.
func newRepository(path string, o *options) *fs.Repository {
	// Read-only access cannot damage anything, so it bypasses the sandbox.
	bypassSafety := o.readOnly || !o.devSafety
	useTemp := o.forceTemp || (IsDevRun() && !bypassSafety)
	resolved := ResolveNotesPath(path, useTemp)

	if o.logger != nil && useTemp && resolved != path {
		o.logger.Warn("running in SAFE MODE (dev sandbox)", "original_path", path, "resolved_path", resolved)
	}

	return fs.NewRepository(fs.Config{
		Path:         resolved,
		SystemDir:    o.systemDir,
		Backups:      o.backups,
		ReadOnly:     o.readOnly,
		MustExist:    o.mustExist || o.readOnly,
		History:      o.history,
		Logger:       o.logger,
		ErrorHandler: o.errorHandler,
	})
}

// Sync pulls and pushes the history of the notes directory at path. The
// directory must exist and have history enabled.
func Sync(ctx context.Context, path string, opts ...Option) error {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	o.mustExist = true
	o.history = true

	repo := newRepository(path, o)
	if err := repo.Initialize(ctx); err != nil {
		return err
	}
	if err := repo.Sync(ctx); err != nil {
		return fmt.Errorf("failed to sync notes: %w", err)
	}
	return nil
}
