package fs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/aretw0/jotter/pkg/core"
	"github.com/aretw0/jotter/pkg/git"
)

const (
	// DefaultSystemDir holds the title index and the history lock.
	DefaultSystemDir = ".jotter"

	// DefaultBackupDir receives deleted notes.
	DefaultBackupDir = "Backup"

	// NotePattern matches note files in the notes directory.
	NotePattern = "*" + core.NoteExtension

	// ownWriteWindow is how long the watcher ignores a file we just wrote.
	ownWriteWindow = 2 * time.Second
)

// Repository is the notes directory: one <guid>.note file per note. It
// implements core.Store.
type Repository struct {
	Archiver

	Path   string
	config Config
	index  *titleIndex
	git    *git.Client

	mu            sync.RWMutex
	watcherActive bool
	lastReconcile *time.Time
	ownWrites     map[string]time.Time
}

// Config holds the configuration for the notes directory.
type Config struct {
	Path      string
	SystemDir string // e.g. ".jotter"
	BackupDir string // relative to Path; e.g. "Backup"

	// Backups moves deleted notes into BackupDir instead of removing them.
	Backups bool
	// ReadOnly rejects writes and removals with core.ErrReadOnly.
	ReadOnly bool
	// MustExist fails Initialize when Path does not exist.
	MustExist bool
	// History commits every write and removal to a git repository at Path.
	History bool

	Logger       *slog.Logger
	ErrorHandler func(error)
}

// NewRepository creates a notes directory adapter. Empty directory names
// fall back to the defaults.
func NewRepository(config Config) *Repository {
	if config.SystemDir == "" {
		config.SystemDir = DefaultSystemDir
	}
	if config.BackupDir == "" {
		config.BackupDir = DefaultBackupDir
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Repository{
		Path:      config.Path,
		config:    config,
		index:     newTitleIndex(config.Path, config.SystemDir),
		git:       git.NewClient(config.Path, filepath.Join(config.SystemDir, "history.lock"), config.Logger),
		ownWrites: make(map[string]time.Time),
	}
}

var _ core.Store = (*Repository)(nil)

// Initialize creates the notes directory, clears temp files left by
// interrupted writes, and sets up history when enabled.
func (r *Repository) Initialize(ctx context.Context) error {
	if r.config.MustExist {
		info, err := os.Stat(r.Path)
		if os.IsNotExist(err) {
			return fmt.Errorf("notes path does not exist: %s", r.Path)
		}
		if err != nil {
			return fmt.Errorf("failed to stat notes path: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("notes path is not a directory: %s", r.Path)
		}
	} else if err := os.MkdirAll(r.Path, 0755); err != nil {
		return fmt.Errorf("failed to create notes directory: %w", err)
	}

	if r.config.ReadOnly {
		return nil
	}

	if err := os.MkdirAll(filepath.Join(r.Path, r.config.SystemDir), 0755); err != nil {
		return fmt.Errorf("failed to create system directory: %w", err)
	}
	if n, err := removeStaleTempFiles(r.Path); err != nil {
		r.config.Logger.Warn("failed to clean temp files", "error", err)
	} else if n > 0 {
		r.config.Logger.Info("removed interrupted writes", "count", n)
	}

	if r.config.History {
		if err := r.initHistory(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) initHistory(ctx context.Context) error {
	if !git.IsInstalled() {
		return fmt.Errorf("history requires git, which is not installed")
	}

	wasNewRepo := false
	if !r.git.IsRepo() {
		if err := r.git.Init(ctx); err != nil {
			return fmt.Errorf("failed to git init: %w", err)
		}
		wasNewRepo = true
	}

	mod, err := r.ensureIgnore()
	if err != nil {
		return fmt.Errorf("failed to ensure .gitignore: %w", err)
	}

	if mod && wasNewRepo {
		if err := r.git.Add(ctx, ".gitignore"); err != nil {
			return fmt.Errorf("failed to add .gitignore: %w", err)
		}
		if err := r.git.Commit(ctx, "chore: configure ignored directories"); err != nil {
			return fmt.Errorf("failed to commit .gitignore: %w", err)
		}
	}
	return nil
}

// ensureIgnore keeps the system and backup directories and temp files out
// of history.
func (r *Repository) ensureIgnore() (bool, error) {
	ignorePath := filepath.Join(r.Path, ".gitignore")
	wanted := []string{r.config.SystemDir + "/", r.config.BackupDir + "/", TempFilePrefix + "*"}

	existing, err := os.ReadFile(ignorePath)
	if err != nil && !os.IsNotExist(err) {
		return false, err
	}

	have := make(map[string]bool)
	for _, line := range strings.Split(string(existing), "\n") {
		have[strings.TrimSpace(line)] = true
	}

	var missing []string
	for _, w := range wanted {
		if !have[w] {
			missing = append(missing, w)
		}
	}
	if len(missing) == 0 {
		return false, nil
	}

	f, err := os.OpenFile(ignorePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return false, err
	}
	defer f.Close()

	if len(existing) > 0 && !strings.HasSuffix(string(existing), "\n") {
		if _, err := f.WriteString("\n"); err != nil {
			return false, err
		}
	}
	if _, err := f.WriteString(strings.Join(missing, "\n") + "\n"); err != nil {
		return false, err
	}
	return true, nil
}

// IsReadOnly reports whether writes are rejected.
func (r *Repository) IsReadOnly() bool {
	return r.config.ReadOnly
}

// NotePath returns the file path for a note id.
func (r *Repository) NotePath(id string) string {
	return filepath.Join(r.Path, id+core.NoteExtension)
}

// BackupPath returns where a deleted note file is kept.
func (r *Repository) BackupPath(path string) string {
	return filepath.Join(r.Path, r.config.BackupDir, filepath.Base(path))
}

// List returns the paths of every note file, sorted.
func (r *Repository) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	matches, err := doublestar.Glob(os.DirFS(r.Path), NotePattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("failed to list notes in %s: %w", r.Path, err)
	}
	sort.Strings(matches)

	paths := make([]string, 0, len(matches))
	for _, m := range matches {
		paths = append(paths, filepath.Join(r.Path, filepath.FromSlash(m)))
	}
	return paths, nil
}

// Write saves data to path atomically, refreshes the title index, and
// commits when history is enabled.
func (r *Repository) Write(path string, data *core.NoteData) error {
	if r.config.ReadOnly {
		return core.ErrReadOnly
	}

	r.recordOwnWrite(path)
	if err := r.Archiver.Write(path, data); err != nil {
		return fmt.Errorf("failed to write note: %w", err)
	}

	if info, err := os.Stat(path); err == nil {
		r.index.put(filepath.Base(path), indexEntry{URI: data.URI, Title: data.Title, ModTime: info.ModTime()})
		if err := r.index.flush(); err != nil {
			r.config.Logger.Warn("failed to save title index", "error", err)
		}
	}

	if r.config.History {
		if err := r.commit(path, "update "+data.Title); err != nil {
			return err
		}
	}
	return nil
}

// Remove takes a note file out of the directory, moving it to the backup
// directory when backups are on. A missing file is not an error.
func (r *Repository) Remove(ctx context.Context, path string) error {
	if r.config.ReadOnly {
		return core.ErrReadOnly
	}

	title := ""
	if e, ok := r.index.lookup(filepath.Base(path), modTime(path)); ok {
		title = e.Title
	}

	r.recordOwnWrite(path)
	if r.config.Backups {
		backup := r.BackupPath(path)
		if err := os.MkdirAll(filepath.Dir(backup), 0755); err != nil {
			return fmt.Errorf("failed to create backup directory: %w", err)
		}
		if err := os.Rename(path, backup); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to back up note %s: %w", path, err)
		}
	} else if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove note %s: %w", path, err)
	}

	r.index.forget(filepath.Base(path))
	if err := r.index.flush(); err != nil {
		r.config.Logger.Warn("failed to save title index", "error", err)
	}

	if r.config.History {
		msg := "delete " + filepath.Base(path)
		if title != "" {
			msg = "delete " + title
		}
		if err := r.commit(path, msg); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) commit(path, msg string) error {
	ctx := context.Background()
	unlock, err := r.git.Lock()
	if err != nil {
		return fmt.Errorf("failed to acquire git lock: %w", err)
	}
	defer unlock()

	rel, err := filepath.Rel(r.Path, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	if err := r.git.Add(ctx, filepath.ToSlash(rel)); err != nil {
		return fmt.Errorf("failed to git add: %w", err)
	}
	if err := r.git.Commit(ctx, msg); err != nil {
		return fmt.Errorf("failed to git commit: %w", err)
	}
	return nil
}

// Sync exchanges history with the configured git remote.
func (r *Repository) Sync(ctx context.Context) error {
	if !r.config.History {
		return fmt.Errorf("cannot sync: history is disabled")
	}
	if !r.git.IsRepo() {
		return fmt.Errorf("notes path is not a git repository: %s", r.Path)
	}

	unlock, err := r.git.Lock()
	if err != nil {
		return fmt.Errorf("failed to acquire git lock: %w", err)
	}
	defer unlock()

	return r.git.Sync(ctx)
}

// TitleEntry is one row of the title index.
type TitleEntry struct {
	URI   string
	Title string
	Path  string
}

// Titles lists every note's title without fully parsing the files. Titles
// come from the on-disk index when the file's mtime still matches.
func (r *Repository) Titles(ctx context.Context) ([]TitleEntry, error) {
	if err := r.index.load(); err != nil {
		r.config.Logger.Warn("failed to load title index", "error", err)
	}

	paths, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	keep := make(map[string]bool, len(paths))
	out := make([]TitleEntry, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := filepath.Base(path)
		keep[name] = true

		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if e, ok := r.index.lookup(name, info.ModTime()); ok {
			out = append(out, TitleEntry{URI: e.URI, Title: e.Title, Path: path})
			continue
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			r.config.Logger.Warn("skipping unreadable note", "path", path, "error", err)
			continue
		}
		entry := indexEntry{
			URI:     core.URLFromPath(path),
			Title:   r.TitleFromNoteXML(string(raw)),
			ModTime: info.ModTime(),
		}
		r.index.put(name, entry)
		out = append(out, TitleEntry{URI: entry.URI, Title: entry.Title, Path: path})
	}

	r.index.retain(keep)
	if !r.config.ReadOnly {
		if err := r.index.flush(); err != nil {
			r.config.Logger.Warn("failed to save title index", "error", err)
		}
	}
	return out, nil
}

// Reconcile compares the title index with the directory and reports the
// changes it did not see happen, then brings the index up to date.
func (r *Repository) Reconcile(ctx context.Context) ([]core.FileEvent, error) {
	if err := r.index.load(); err != nil {
		r.config.Logger.Warn("failed to load title index", "error", err)
	}
	known := r.index.modTimes()

	paths, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	var events []core.FileEvent
	for _, path := range paths {
		name := filepath.Base(path)
		mtime, ok := known[name]
		delete(known, name)
		switch {
		case !ok:
			events = append(events, core.FileEvent{Op: core.FileCreated, Path: path})
		case !mtime.Equal(modTime(path)):
			events = append(events, core.FileEvent{Op: core.FileModified, Path: path})
		}
	}
	for name := range known {
		events = append(events, core.FileEvent{Op: core.FileRemoved, Path: filepath.Join(r.Path, name)})
	}

	if _, err := r.Titles(ctx); err != nil {
		return nil, err
	}
	r.recordReconcile()
	return events, nil
}

func (r *Repository) recordOwnWrite(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for p, t := range r.ownWrites {
		if now.Sub(t) > ownWriteWindow {
			delete(r.ownWrites, p)
		}
	}
	r.ownWrites[filepath.Clean(path)] = now
}

// isOwnWrite reports whether path was written by this process recently.
func (r *Repository) isOwnWrite(path string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.ownWrites[filepath.Clean(path)]
	return ok && time.Since(t) <= ownWriteWindow
}

func modTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

// isNoteFile reports whether name is a note file directly in the notes
// directory.
func (r *Repository) isNoteFile(path string) bool {
	if filepath.Dir(filepath.Clean(path)) != filepath.Clean(r.Path) {
		return false
	}
	ok, err := doublestar.Match(NotePattern, filepath.Base(path))
	return err == nil && ok
}
