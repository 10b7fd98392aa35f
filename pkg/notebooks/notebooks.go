// Package notebooks groups notes through tags named
// "system:notebook:<name>". A note belongs to at most one notebook.
package notebooks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/jotter/pkg/core"
)

var (
	// ErrNotFound is returned for a notebook that does not exist.
	ErrNotFound = errors.New("notebook not found")
	// ErrEmptyName is returned for a blank notebook name.
	ErrEmptyName = errors.New("notebook name is empty")
)

// Notebook is a named group of notes.
type Notebook struct {
	Name string
	Tag  *core.Tag
}

// TagName returns the tag that marks members of the notebook name.
func TagName(name string) string {
	return core.NotebookTagPrefix + strings.TrimSpace(name)
}

// Manager lists and edits notebooks over a note manager's tag registry.
type Manager struct {
	notes *core.Manager
}

// New creates a notebook manager.
func New(m *core.Manager) *Manager {
	return &Manager{notes: m}
}

// List returns every notebook sorted by name, empty ones included.
func (m *Manager) List() []Notebook {
	var out []Notebook
	for _, t := range m.notes.Tags().AllTags() {
		if name, ok := nameOf(t); ok {
			out = append(out, Notebook{Name: name, Tag: t})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

// Get returns the notebook called name.
func (m *Manager) Get(name string) (Notebook, error) {
	if strings.TrimSpace(name) == "" {
		return Notebook{}, ErrEmptyName
	}
	t := m.notes.Tags().GetTag(TagName(name))
	if t == nil {
		return Notebook{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	n, _ := nameOf(t)
	return Notebook{Name: n, Tag: t}, nil
}

// Create registers a notebook, or returns the existing one.
func (m *Manager) Create(name string) (Notebook, error) {
	if strings.TrimSpace(name) == "" {
		return Notebook{}, ErrEmptyName
	}
	t := m.notes.Tags().GetOrCreateTag(TagName(name))
	n, _ := nameOf(t)
	m.notes.Logger().Debug("notebook created", "notebook", n)
	return Notebook{Name: n, Tag: t}, nil
}

// Delete removes the notebook. Its notes stay, unfiled.
func (m *Manager) Delete(ctx context.Context, name string) error {
	nb, err := m.Get(name)
	if err != nil {
		return err
	}
	for _, n := range m.NotesIn(nb) {
		if err := ctx.Err(); err != nil {
			return err
		}
		n.RemoveTag(nb.Tag)
	}
	m.notes.Tags().RemoveTag(nb.Tag)
	m.notes.Logger().Info("notebook deleted", "notebook", nb.Name)
	return nil
}

// Move files n under the notebook called name, taking it out of any other
// notebook. An empty name only takes it out.
func (m *Manager) Move(n *core.Note, name string) error {
	if n == nil {
		return core.ErrNoteNotFound
	}
	if n.IsDeleting() {
		return core.ErrNoteDeleted
	}

	var target *core.Tag
	if strings.TrimSpace(name) != "" {
		nb, err := m.Create(name)
		if err != nil {
			return err
		}
		target = nb.Tag
	}

	for _, t := range n.Tags() {
		if _, ok := nameOf(t); ok && t != target {
			n.RemoveTag(t)
		}
	}
	if target != nil {
		n.AddTag(target)
	}
	return nil
}

// NotesIn returns the notes of nb in collection order.
func (m *Manager) NotesIn(nb Notebook) []*core.Note {
	var out []*core.Note
	for _, n := range m.notes.Notes() {
		if n.ContainsTag(nb.Tag) {
			out = append(out, n)
		}
	}
	return out
}

// Of returns the notebook n is filed under, or false.
func (m *Manager) Of(n *core.Note) (Notebook, bool) {
	for _, t := range n.Tags() {
		if name, ok := nameOf(t); ok {
			return Notebook{Name: name, Tag: t}, true
		}
	}
	return Notebook{}, false
}

func nameOf(t *core.Tag) (string, bool) {
	if t == nil || !strings.HasPrefix(t.NormalizedName(), core.NotebookTagPrefix) {
		return "", false
	}
	name := t.Name()[len(core.NotebookTagPrefix):]
	return name, name != ""
}
