package platform

import (
	"context"
	"fmt"

	"github.com/aretw0/jotter/pkg/adapters/fs"
	"github.com/aretw0/jotter/pkg/core"
)

// Open prepares the notes directory at path, loads every note in it, and
// starts following external changes when WithWatch is set. The watch loop
// stops when ctx is done.
//
//	m, err := platform.Open(ctx, "./notes", platform.WithSaveDelay(time.Second))
func Open(ctx context.Context, path string, opts ...Option) (*core.Manager, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	repo := newRepository(path, o)
	if err := repo.Initialize(ctx); err != nil {
		return nil, err
	}

	m := NewManager(repo, opts...)
	if err := m.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to load notes: %w", err)
	}

	if o.watch {
		if err := m.Watch(ctx); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// NewManager builds a manager over an already initialized repository
// without loading it.
func NewManager(repo *fs.Repository, opts ...Option) *core.Manager {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return core.NewManager(repo,
		core.WithLogger(o.logger),
		core.WithClock(o.clock),
		core.WithSaveDelay(o.saveDelay),
		core.WithStartNote(o.startNote),
	)
}
