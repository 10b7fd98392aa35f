package fs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// indexVersion is bumped whenever the layout of index.json changes. An index
// written with another version is discarded and rebuilt.
const indexVersion = 2

// IndexFile is the name of the title index inside the system directory.
const IndexFile = "index.json"

// indexEntry is what the title index remembers about one note file.
type indexEntry struct {
	URI     string    `json:"uri"`
	Title   string    `json:"title"`
	ModTime time.Time `json:"mtime"`
}

type indexFile struct {
	Version int                   `json:"version"`
	Notes   map[string]indexEntry `json:"notes"`
}

// titleIndex maps note file names to their URI and title, so listing titles
// does not have to open every file. Entries are only trusted while the
// file's mtime is unchanged.
type titleIndex struct {
	path string

	mu      sync.Mutex
	loaded  bool
	dirty   bool
	entries map[string]indexEntry
}

func newTitleIndex(notesPath, systemDir string) *titleIndex {
	return &titleIndex{
		path:    filepath.Join(notesPath, systemDir, IndexFile),
		entries: make(map[string]indexEntry),
	}
}

// load reads the index from disk, replacing what is in memory. A missing,
// corrupt or outdated file leaves the index empty and marked for rewrite.
func (x *titleIndex) load() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.loadLocked()
}

func (x *titleIndex) loadLocked() error {
	x.loaded = true
	x.entries = make(map[string]indexEntry)
	x.dirty = false

	raw, err := os.ReadFile(x.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read title index: %w", err)
	}

	var f indexFile
	if err := json.Unmarshal(raw, &f); err != nil || f.Version != indexVersion {
		x.dirty = true
		return nil
	}
	for name, e := range f.Notes {
		x.entries[name] = e
	}
	return nil
}

func (x *titleIndex) ensureLoaded() {
	if !x.loaded {
		_ = x.loadLocked()
	}
}

// flush writes the index if it changed since the last load or flush.
func (x *titleIndex) flush() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if !x.dirty {
		return nil
	}
	data, err := json.MarshalIndent(indexFile{Version: indexVersion, Notes: x.entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode title index: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(x.path), 0755); err != nil {
		return fmt.Errorf("failed to create system directory: %w", err)
	}
	if err := writeFileAtomic(x.path, data, 0644); err != nil {
		return err
	}
	x.dirty = false
	return nil
}

// lookup returns the entry for name if it was recorded at mtime.
func (x *titleIndex) lookup(name string, mtime time.Time) (indexEntry, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.ensureLoaded()

	e, ok := x.entries[name]
	if !ok || !e.ModTime.Equal(mtime) {
		return indexEntry{}, false
	}
	return e, true
}

func (x *titleIndex) put(name string, e indexEntry) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.ensureLoaded()

	if cur, ok := x.entries[name]; ok && cur == e {
		return
	}
	x.entries[name] = e
	x.dirty = true
}

func (x *titleIndex) forget(name string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.ensureLoaded()

	if _, ok := x.entries[name]; ok {
		delete(x.entries, name)
		x.dirty = true
	}
}

// retain drops every entry whose name is not in keep.
func (x *titleIndex) retain(keep map[string]bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.ensureLoaded()

	for name := range x.entries {
		if !keep[name] {
			delete(x.entries, name)
			x.dirty = true
		}
	}
}

// modTimes returns the recorded mtime of every entry.
func (x *titleIndex) modTimes() map[string]time.Time {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.ensureLoaded()

	out := make(map[string]time.Time, len(x.entries))
	for name, e := range x.entries {
		out[name] = e.ModTime
	}
	return out
}

func (x *titleIndex) size() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.entries)
}
