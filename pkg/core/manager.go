package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/google/uuid"

	"github.com/aretw0/jotter/pkg/content"
)

// NewNoteBody is the text placed under the title of a freshly created note.
const NewNoteBody = "Describe your new note here."

// Manager owns the collection of notes. Other components refer to notes by
// URI and look them up here; a deleted note is gone from the collection
// before its Deleted event is observed.
type Manager struct {
	mu    sync.RWMutex
	notes map[string]*Note
	order []*Note

	store     Store
	tags      *TagManager
	clock     Clock
	saveDelay time.Duration
	logger    *slog.Logger

	startMu      sync.RWMutex
	startNoteURI string

	events broker
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. A nil logger keeps slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClock replaces the wall clock, mostly for tests.
func WithClock(c Clock) Option {
	return func(m *Manager) {
		if c != nil {
			m.clock = c
		}
	}
}

// WithSaveDelay sets how long edits are coalesced before a save.
func WithSaveDelay(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.saveDelay = d
		}
	}
}

// WithStartNote sets the URI of the start note.
func WithStartNote(uri string) Option {
	return func(m *Manager) {
		m.startNoteURI = uri
	}
}

// WithTagManager shares a tag registry between managers.
func WithTagManager(t *TagManager) Option {
	return func(m *Manager) {
		if t != nil {
			m.tags = t
		}
	}
}

// NewManager creates an empty manager over store. Call Load to read the
// notes already in it.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		notes:     make(map[string]*Note),
		store:     store,
		tags:      NewTagManager(),
		clock:     SystemClock,
		saveDelay: DefaultSaveDelay,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store returns the backing store.
func (m *Manager) Store() Store { return m.store }

// Tags returns the tag registry.
func (m *Manager) Tags() *TagManager { return m.tags }

// Logger returns the manager's logger.
func (m *Manager) Logger() *slog.Logger { return m.logger }

// Load reads every note file in the store. Files that cannot be read are
// logged and skipped. Notes already in the collection are kept.
func (m *Manager) Load(ctx context.Context) error {
	paths, err := m.store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list notes: %w", err)
	}

	loaded := 0
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		if m.FindByURI(URLFromPath(path)) != nil {
			continue
		}
		n, err := LoadNote(ctx, path, m)
		if err != nil {
			m.logger.Warn("skipping unreadable note", "path", path, "error", err)
			continue
		}
		m.add(n)
		loaded++
	}

	m.logger.Info("notes loaded", "count", loaded)
	return nil
}

// Create makes a new note titled title. An empty title picks the first
// free "New Note N". The note is written after the save delay.
func (m *Manager) Create(title string) (*Note, error) {
	return m.CreateWithXML(title, "")
}

// CreateWithXML makes a new note whose body is xmlContent. An empty body
// becomes the title line followed by the default text.
func (m *Manager) CreateWithXML(title, xmlContent string) (*Note, error) {
	return m.CreateWithGUID(title, xmlContent, "")
}

// CreateWithGUID is CreateWithXML with a caller-chosen guid, used when a
// note arrives from another machine. An empty guid generates one.
func (m *Manager) CreateWithGUID(title, xmlContent, guid string) (*Note, error) {
	var err error
	title, err = m.resolveTitle(title)
	if err != nil {
		return nil, err
	}
	if xmlContent == "" {
		xmlContent = content.New(title, NewNoteBody)
	} else if err := content.Validate(xmlContent); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedNote, err)
	}

	if guid == "" {
		guid = uuid.NewString()
	}
	if m.FindByURI(URIScheme+guid) != nil {
		return nil, fmt.Errorf("failed to create note: guid %s already in use", guid)
	}

	n := CreateNewNote(title, m.store.NotePath(guid), m)
	if err := n.data.SetText(xmlContent); err != nil {
		return nil, fmt.Errorf("failed to create note: %w", err)
	}
	m.add(n)

	m.logger.Debug("note created", "uri", n.URI(), "title", title)
	m.publish(n, Event{Type: EventAdded, URI: n.URI(), Title: title, Timestamp: m.clock.Now().Unix()})
	n.QueueSave(ContentChanged)
	return n, nil
}

func (m *Manager) resolveTitle(title string) (string, error) {
	if title == "" {
		return m.uniqueTitle(), nil
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return "", ErrEmptyTitle
	}
	if m.Find(title) != nil {
		return "", fmt.Errorf("%w: %q", ErrTitleTaken, title)
	}
	return title, nil
}

func (m *Manager) uniqueTitle() string {
	m.mu.RLock()
	count := len(m.order)
	m.mu.RUnlock()

	for i := count + 1; ; i++ {
		t := fmt.Sprintf("New Note %d", i)
		if m.Find(t) == nil {
			return t
		}
	}
}

// Find returns the note titled title, ignoring case, or nil.
func (m *Manager) Find(title string) *Note {
	want := strings.ToLower(strings.TrimSpace(title))
	for _, n := range m.Notes() {
		if strings.ToLower(n.Title()) == want && !n.IsDeleting() {
			return n
		}
	}
	return nil
}

// FindByURI returns the note with uri, or nil.
func (m *Manager) FindByURI(uri string) *Note {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.notes[uri]
}

// Notes returns the notes in the order they entered the collection.
func (m *Manager) Notes() []*Note {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Note, len(m.order))
	copy(out, m.order)
	return out
}

// Len returns the number of notes.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order)
}

func (m *Manager) add(n *Note) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.notes[n.URI()]; ok {
		return
	}
	m.notes[n.URI()] = n
	m.order = append(m.order, n)
}

func (m *Manager) remove(n *Note) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	uri := n.URI()
	if cur, ok := m.notes[uri]; !ok || cur != n {
		return false
	}
	delete(m.notes, uri)
	for i, o := range m.order {
		if o == n {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true
}

// Delete deletes n and removes it from the collection. A note whose file
// could not be removed stays in the collection.
func (m *Manager) Delete(ctx context.Context, n *Note) error {
	if n == nil {
		return ErrNoteNotFound
	}
	if err := n.Delete(ctx); err != nil {
		return err
	}
	m.remove(n)
	return nil
}

// SaveAll writes every note with unsaved changes. It keeps going past
// failures and returns them joined.
func (m *Manager) SaveAll(ctx context.Context) error {
	var errs []error
	for _, n := range m.Notes() {
		if !n.IsDirty() {
			continue
		}
		if err := n.Save(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// StartNoteURI returns the URI of the start note, or "".
func (m *Manager) StartNoteURI() string {
	m.startMu.RLock()
	defer m.startMu.RUnlock()
	return m.startNoteURI
}

// SetStartNoteURI changes the start note.
func (m *Manager) SetStartNoteURI(uri string) {
	m.startMu.Lock()
	defer m.startMu.Unlock()
	m.startNoteURI = uri
}

// StartNote returns the start note, or nil when unset or missing.
func (m *Manager) StartNote() *Note {
	uri := m.StartNoteURI()
	if uri == "" {
		return nil
	}
	return m.FindByURI(uri)
}

// --- Events ---

// Subscribe registers fn for the events of every note. The returned
// function unregisters it.
func (m *Manager) Subscribe(fn Observer) func() {
	return m.events.subscribe(fn)
}

// Events streams manager events until ctx is done. Events are dropped when
// the reader falls more than size events behind.
func (m *Manager) Events(ctx context.Context, size int) <-chan Event {
	return m.events.channel(ctx, size)
}

func (m *Manager) publish(n *Note, e Event) {
	switch e.Type {
	case EventDeleted:
		m.remove(n)
	case EventRenamed:
		if e.UpdateLinks {
			m.updateLinks(n, e.OldTitle, e.Title)
		}
	}
	m.events.publish(e)
}

// updateLinks points links to oldTitle in other notes at newTitle.
func (m *Manager) updateLinks(renamed *Note, oldTitle, newTitle string) {
	for _, other := range m.Notes() {
		if other == renamed || other.IsDeleting() {
			continue
		}
		body := other.XMLContent()
		updated, changed := content.RenameLinks(body, oldTitle, newTitle)
		if !changed {
			continue
		}
		if err := other.SetXMLContent(updated); err != nil {
			m.logger.Warn("failed to update links", "uri", other.URI(), "error", err)
			continue
		}
		m.logger.Debug("links updated", "uri", other.URI(), "from", oldTitle, "to", newTitle)
	}
}

// --- External changes ---

// Watch follows changes made to the store by other processes until ctx is
// done. It returns an error if the store cannot be watched.
func (m *Manager) Watch(ctx context.Context) error {
	w, ok := m.store.(Watchable)
	if !ok {
		return errors.New("store does not support watching")
	}
	ch, err := w.Watch(ctx)
	if err != nil {
		return fmt.Errorf("failed to watch notes: %w", err)
	}

	lifecycle.Go(ctx, func(ctx context.Context) error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev, ok := <-ch:
				if !ok {
					return nil
				}
				m.HandleFileEvent(ctx, ev)
			}
		}
	}, lifecycle.WithErrorHandler(func(err error) {
		m.logger.Error("note watch loop failed", "error", err)
	}))
	return nil
}

// HandleFileEvent applies one external change. New files are loaded,
// modified files are reloaded unless the note has unsaved edits, and
// removed files drop their note from the collection.
func (m *Manager) HandleFileEvent(ctx context.Context, ev FileEvent) {
	uri := URLFromPath(ev.Path)
	n := m.FindByURI(uri)

	switch ev.Op {
	case FileRemoved:
		if n == nil || n.IsDeleting() {
			return
		}
		m.remove(n)
		n.detachExternal()
		m.logger.Info("note removed externally", "uri", uri)
		m.events.publish(Event{Type: EventDeleted, URI: uri, Title: n.Title(), Timestamp: m.clock.Now().Unix()})

	case FileCreated, FileModified:
		data, err := m.store.Read(ev.Path, uri)
		if err != nil {
			m.logger.Warn("skipping unreadable note", "path", ev.Path, "error", err)
			return
		}
		if n == nil {
			n = CreateExistingNote(data, ev.Path, m)
			m.add(n)
			m.logger.Info("note added externally", "uri", uri)
			m.events.publish(Event{Type: EventAdded, URI: uri, Title: data.Title, Timestamp: m.clock.Now().Unix()})
			return
		}
		if n.reload(data) {
			m.logger.Debug("note reloaded", "uri", uri)
		} else {
			m.logger.Info("kept local edits over external change", "uri", uri)
		}
	}
}
