package core

import (
	"sort"
	"strings"
	"sync"
)

const (
	// SystemTagPrefix marks tags used internally rather than typed by the user.
	SystemTagPrefix = "system:"

	// NotebookTagPrefix marks tags that group notes into notebooks.
	NotebookTagPrefix = SystemTagPrefix + "notebook:"

	// TemplateTagName marks template notes.
	TemplateTagName = SystemTagPrefix + "template"
)

// NormalizeTagName folds a tag name to its registry key.
func NormalizeTagName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Tag is an interned label shared by every note carrying it. It tracks the
// URIs of the notes that reference it.
type Tag struct {
	name       string
	normalized string

	mu    sync.RWMutex
	notes map[string]struct{}
}

// NewTag creates a tag outside of any registry. The archiver uses detached
// tags; the Manager replaces them with interned ones on load.
func NewTag(name string) *Tag {
	name = strings.TrimSpace(name)
	return &Tag{
		name:       name,
		normalized: NormalizeTagName(name),
		notes:      make(map[string]struct{}),
	}
}

// Name returns the name as first registered.
func (t *Tag) Name() string { return t.name }

// NormalizedName returns the registry key.
func (t *Tag) NormalizedName() string { return t.normalized }

// IsSystem reports whether the tag is reserved for internal use.
func (t *Tag) IsSystem() bool {
	return strings.HasPrefix(t.normalized, SystemTagPrefix)
}

// NoteURIs returns the URIs of the notes carrying the tag, sorted.
func (t *Tag) NoteURIs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	uris := make([]string, 0, len(t.notes))
	for uri := range t.notes {
		uris = append(uris, uri)
	}
	sort.Strings(uris)
	return uris
}

// Popularity is the number of notes carrying the tag.
func (t *Tag) Popularity() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.notes)
}

func (t *Tag) addNote(uri string) {
	t.mu.Lock()
	t.notes[uri] = struct{}{}
	t.mu.Unlock()
}

func (t *Tag) removeNote(uri string) {
	t.mu.Lock()
	delete(t.notes, uri)
	t.mu.Unlock()
}

// TagManager is the registry interning tags by normalized name.
type TagManager struct {
	mu   sync.RWMutex
	tags map[string]*Tag
}

// NewTagManager creates an empty registry.
func NewTagManager() *TagManager {
	return &TagManager{tags: make(map[string]*Tag)}
}

// GetTag returns the registered tag or nil.
func (m *TagManager) GetTag(name string) *Tag {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tags[NormalizeTagName(name)]
}

// GetOrCreateTag returns the registered tag, registering it if needed.
// Blank names yield nil.
func (m *TagManager) GetOrCreateTag(name string) *Tag {
	key := NormalizeTagName(name)
	if key == "" {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if t, ok := m.tags[key]; ok {
		return t
	}
	t := NewTag(name)
	m.tags[key] = t
	return t
}

// RemoveTag unregisters a tag. Notes still referencing it keep their
// reference; callers strip it from notes first.
func (m *TagManager) RemoveTag(t *Tag) {
	if t == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.tags[t.normalized]; ok && cur == t {
		delete(m.tags, t.normalized)
	}
}

// AllTags returns every registered tag sorted by normalized name.
func (m *TagManager) AllTags() []*Tag {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Tag, 0, len(m.tags))
	for _, t := range m.tags {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].normalized < out[j].normalized
	})
	return out
}
