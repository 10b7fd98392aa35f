package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/jotter/pkg/content"
)

// ChangeType classifies an edit for the save debouncer. Only ContentChanged
// moves the change date; OtherDataChanged moves the metadata change date.
type ChangeType int

const (
	NoChange ChangeType = iota
	OtherDataChanged
	ContentChanged
)

// String returns the name used in logs.
func (c ChangeType) String() string {
	switch c {
	case ContentChanged:
		return "CONTENT_CHANGED"
	case OtherDataChanged:
		return "OTHER_DATA_CHANGED"
	default:
		return "NO_CHANGE"
	}
}

// State is the lifecycle stage of a Note.
type State int

const (
	StateNew State = iota
	StateLoaded
	StateSaved
	StateDeleting
	StateDeleted
)

// String returns the name used in logs.
func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateLoaded:
		return "loaded"
	case StateSaved:
		return "saved"
	case StateDeleting:
		return "deleting"
	case StateDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// DefaultSaveDelay is how long edits are coalesced before a save.
const DefaultSaveDelay = 4 * time.Second

// Note is the aggregate root for a single note.
//
// Fields of the underlying NoteData other than the body are guarded by mu;
// the body is guarded by the synchronizer. saveMu serializes disk writes
// with each other and with deletion.
type Note struct {
	mu     sync.Mutex
	saveMu sync.Mutex

	data     *DataSynchronizer
	filePath string
	m        *Manager

	state      State
	saveNeeded bool
	pending    ChangeType
	generation uint64
	deleting   bool
	window     Window
	timer      Timer

	events broker
}

func newNote(data *NoteData, path string, m *Manager, state State) *Note {
	n := &Note{
		filePath: path,
		m:        m,
		state:    state,
	}
	n.data = NewDataSynchronizer(data, n.bufferChanged)
	return n
}

// CreateNewNote builds a fresh note titled title, to be stored at path.
// The note is not added to m and nothing is written until it is saved.
func CreateNewNote(title, path string, m *Manager) *Note {
	data := NewNoteData(URLFromPath(path))
	data.Title = title
	now := m.clock.Now()
	data.CreateDate = now
	data.SetChangeDate(now)
	return newNote(data, path, m, StateNew)
}

// CreateExistingNote wraps data already read from path.
func CreateExistingNote(data *NoteData, path string, m *Manager) *Note {
	if data.ChangeDate.IsZero() {
		data.SetChangeDate(m.clock.Now())
	}
	if data.MetadataChangeDate.IsZero() {
		data.MetadataChangeDate = data.ChangeDate
	}
	if data.Tags == nil {
		data.Tags = make(map[string]*Tag)
	}

	n := newNote(data, path, m, StateLoaded)
	n.internTags()
	return n
}

// LoadNote reads the note file at path.
func LoadNote(ctx context.Context, path string, m *Manager) (*Note, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := m.store.Read(path, URLFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to load note %s: %w", path, err)
	}
	return CreateExistingNote(data, path, m), nil
}

// internTags swaps the detached tags produced by the archiver for the
// registry's instances.
func (n *Note) internTags() {
	data := n.data.Data()
	uri := data.URI
	interned := make(map[string]*Tag, len(data.Tags))
	for _, t := range data.Tags {
		reg := n.m.tags.GetOrCreateTag(t.Name())
		if reg == nil {
			continue
		}
		reg.addNote(uri)
		interned[reg.NormalizedName()] = reg
	}
	data.Tags = interned
}

// --- Identity ---

// URI returns the note's stable identifier.
func (n *Note) URI() string { return n.data.Data().URI }

// ID returns the guid part of the URI.
func (n *Note) ID() string { return IDFromURI(n.URI()) }

// FilePath returns where the note is stored.
func (n *Note) FilePath() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.filePath
}

// Title returns the current title.
func (n *Note) Title() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.data.Data().Title
}

// State returns the lifecycle state.
func (n *Note) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// IsNew reports whether the note has never been written.
func (n *Note) IsNew() bool {
	return n.State() == StateNew
}

// IsDeleting reports whether deletion has started.
func (n *Note) IsDeleting() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.deleting
}

// IsDirty reports whether there are edits not yet written.
func (n *Note) IsDirty() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.saveNeeded
}

// IsSpecial reports whether this is the start note.
func (n *Note) IsSpecial() bool {
	return n.m.StartNoteURI() == n.URI()
}

// Data returns the backing record without synchronizing the body.
// Callers must not mutate it.
func (n *Note) Data() *NoteData {
	return n.data.Data()
}

// Snapshot returns a synchronized copy of the backing record.
func (n *Note) Snapshot() *NoteData {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.data.Snapshot()
}

// --- Dates and flags ---

// CreateDate returns when the note was created.
func (n *Note) CreateDate() time.Time {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.data.Data().CreateDate
}

// ChangeDate returns when the content last changed.
func (n *Note) ChangeDate() time.Time {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.data.Data().ChangeDate
}

// MetadataChangeDate returns when anything about the note last changed,
// content included.
func (n *Note) MetadataChangeDate() time.Time {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.data.Data().MetadataChangeDate
}

// IsPinned reports whether the note is pinned.
func (n *Note) IsPinned() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.data.Data().Pinned
}

// SetPinned pins or unpins the note, queueing a metadata save.
func (n *Note) SetPinned(pinned bool) {
	n.mu.Lock()
	d := n.data.Data()
	changed := d.Pinned != pinned
	d.Pinned = pinned
	n.mu.Unlock()

	if changed {
		n.QueueSave(OtherDataChanged)
	}
}

// IsOpenOnStartup reports whether the note is opened when the
// application starts.
func (n *Note) IsOpenOnStartup() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.data.Data().OpenOnStartup
}

// SetOpenOnStartup sets the open-on-startup flag, queueing a metadata save.
func (n *Note) SetOpenOnStartup(open bool) {
	n.mu.Lock()
	d := n.data.Data()
	changed := d.OpenOnStartup != open
	d.OpenOnStartup = open
	n.mu.Unlock()

	if changed {
		n.QueueSave(OtherDataChanged)
	}
}

// SetPositionExtent records window geometry. Geometry alone does not
// schedule a save; it is written with the next one.
func (n *Note) SetPositionExtent(x, y, width, height int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.data.Data().SetPositionExtent(x, y, width, height)
}

// SetCursor records the cursor and selection bound offsets.
func (n *Note) SetCursor(cursor, selectionBound int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	d := n.data.Data()
	d.CursorPosition = cursor
	d.SelectionBoundPosition = selectionBound
}

// --- Saving ---

// QueueSave schedules a save after the save delay, replacing any pending
// one, so bursts of edits produce a single write. NoChange is ignored.
func (n *Note) QueueSave(c ChangeType) {
	if c == NoChange {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.deleting {
		return
	}
	n.markDirtyLocked(c)

	if n.timer != nil {
		n.timer.Stop()
	}
	n.timer = n.m.clock.AfterFunc(n.m.saveDelay, n.saveTimeout)
	n.m.logger.Debug("note save queued", "uri", n.data.Data().URI, "change", c.String())
}

func (n *Note) markDirtyLocked(c ChangeType) {
	if c > n.pending {
		n.pending = c
	}
	n.saveNeeded = true
	n.generation++
}

func (n *Note) saveTimeout() {
	if err := n.Save(context.Background()); err != nil {
		n.m.logger.Error("failed to save note", "uri", n.URI(), "error", err)
	}
}

// Save writes the note if it has unsaved changes. Dates move according to
// the strongest change queued since the last save. On failure the note
// stays dirty and an EventSaveFailed is published.
func (n *Note) Save(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	n.saveMu.Lock()
	defer n.saveMu.Unlock()

	n.mu.Lock()
	if n.deleting || !n.saveNeeded {
		n.mu.Unlock()
		return nil
	}
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}

	d := n.data.Data()
	prevChange, prevMeta := d.ChangeDate, d.MetadataChangeDate
	now := n.m.clock.Now()
	switch n.pending {
	case ContentChanged:
		d.SetChangeDate(now)
	case OtherDataChanged:
		d.MetadataChangeDate = now
	}

	snapshot := n.data.Snapshot()
	gen := n.generation
	path := n.filePath
	uri := d.URI
	n.mu.Unlock()

	n.m.logger.Debug("saving note", "uri", uri, "path", path)
	err := n.m.store.Write(path, snapshot)

	n.mu.Lock()
	if err != nil {
		if n.generation == gen {
			d.ChangeDate, d.MetadataChangeDate = prevChange, prevMeta
		}
		n.mu.Unlock()

		err = fmt.Errorf("failed to save note %s: %w", uri, err)
		n.publish(Event{Type: EventSaveFailed, URI: uri, Title: snapshot.Title, Err: err})
		return err
	}
	if n.generation == gen {
		n.saveNeeded = false
		n.pending = NoChange
	}
	n.state = StateSaved
	n.mu.Unlock()

	n.publish(Event{Type: EventSaved, URI: uri, Title: snapshot.Title})
	return nil
}

// --- Tags ---

// AddTag attaches t. Adding a tag the note already has does nothing.
func (n *Note) AddTag(t *Tag) {
	if t == nil {
		return
	}

	n.mu.Lock()
	if n.deleting {
		n.mu.Unlock()
		return
	}
	d := n.data.Data()
	key := t.NormalizedName()
	if _, ok := d.Tags[key]; ok {
		n.mu.Unlock()
		return
	}
	d.Tags[key] = t
	uri := d.URI
	title := d.Title
	n.mu.Unlock()

	t.addNote(uri)
	n.publish(Event{Type: EventTagAdded, URI: uri, Title: title, Tag: key})
	n.QueueSave(OtherDataChanged)
}

// RemoveTag detaches t. Removing a tag the note does not have does nothing.
func (n *Note) RemoveTag(t *Tag) {
	if t == nil {
		return
	}
	key := t.NormalizedName()

	n.mu.Lock()
	d := n.data.Data()
	if _, ok := d.Tags[key]; !ok {
		n.mu.Unlock()
		return
	}
	uri := d.URI
	title := d.Title
	n.mu.Unlock()

	n.publish(Event{Type: EventTagRemoving, URI: uri, Title: title, Tag: key})

	n.mu.Lock()
	cur, ok := d.Tags[key]
	delete(d.Tags, key)
	n.mu.Unlock()
	if !ok {
		return
	}
	cur.removeNote(uri)

	n.publish(Event{Type: EventTagRemoved, URI: uri, Title: title, Tag: key})
	n.QueueSave(OtherDataChanged)
}

// ContainsTag reports whether the note carries t.
func (n *Note) ContainsTag(t *Tag) bool {
	if t == nil {
		return false
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.data.Data().Tags[t.NormalizedName()]
	return ok
}

// Tags returns the note's tags sorted by normalized name.
func (n *Note) Tags() []*Tag {
	n.mu.Lock()
	defer n.mu.Unlock()

	d := n.data.Data()
	tags := make([]*Tag, 0, len(d.Tags))
	for _, t := range d.Tags {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool {
		return tags[i].NormalizedName() < tags[j].NormalizedName()
	})
	return tags
}

// --- Content ---

// XMLContent returns the body fragment.
func (n *Note) XMLContent() string {
	return n.data.Text()
}

// SetXMLContent replaces the body fragment and queues a content save.
func (n *Note) SetXMLContent(xml string) error {
	if err := content.Validate(xml); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedNote, err)
	}
	if n.IsDeleting() {
		return ErrNoteDeleted
	}
	if err := n.data.SetText(xml); err != nil {
		return fmt.Errorf("failed to set note content: %w", err)
	}
	n.QueueSave(ContentChanged)
	return nil
}

// TextContent returns the body without markup.
func (n *Note) TextContent() string {
	return content.PlainText(n.XMLContent())
}

// SetTextContent replaces the body with plain text. When the first line
// names a title no other note uses, the note takes it as its title.
func (n *Note) SetTextContent(text string) error {
	if err := n.SetXMLContent(content.FromPlainText(text)); err != nil {
		return err
	}

	title := content.FirstLine(text)
	if title == "" || title == n.Title() {
		return nil
	}
	if other := n.m.Find(title); other != nil && other != n {
		return nil
	}
	n.setTitle(title, false, false)
	return nil
}

// CompleteNoteXML returns the full serialized document.
func (n *Note) CompleteNoteXML() (string, error) {
	s, err := n.m.store.WriteString(n.Snapshot())
	if err != nil {
		return "", fmt.Errorf("failed to serialize note %s: %w", n.URI(), err)
	}
	return s, nil
}

// LoadForeignNoteXML replaces the note wholesale from a complete document
// produced elsewhere and queues a save classified as c. Tags are reconciled
// one by one so tag observers see each change. Malformed input leaves the
// note untouched.
func (n *Note) LoadForeignNoteXML(xml string, c ChangeType) error {
	if xml == "" {
		return fmt.Errorf("%w: empty document", ErrMalformedNote)
	}
	if n.IsDeleting() {
		return ErrNoteDeleted
	}

	foreign, err := n.m.store.ReadString(xml, n.URI())
	if err != nil {
		return fmt.Errorf("failed to load foreign note xml: %w", err)
	}
	if err := content.Validate(foreign.Text); err != nil {
		return fmt.Errorf("failed to load foreign note xml: %w: %v", ErrMalformedNote, err)
	}

	for _, t := range n.Tags() {
		if _, ok := foreign.Tags[t.NormalizedName()]; !ok {
			n.RemoveTag(t)
		}
	}
	for _, name := range foreign.TagNames() {
		n.AddTag(n.m.tags.GetOrCreateTag(name))
	}

	if err := n.data.SetText(foreign.Text); err != nil {
		return fmt.Errorf("failed to load foreign note xml: %w", err)
	}

	n.mu.Lock()
	d := n.data.Data()
	d.CreateDate = foreign.CreateDate
	d.ChangeDate = foreign.ChangeDate
	d.MetadataChangeDate = foreign.MetadataChangeDate
	d.Pinned = foreign.Pinned
	d.OpenOnStartup = foreign.OpenOnStartup
	n.mu.Unlock()

	if foreign.Title != "" {
		n.setTitle(foreign.Title, false, false)
	}

	n.QueueSave(c)
	return nil
}

// --- Renaming ---

// SetTitle renames the note. Observers receive an EventRenamed flagged for
// link update so notes linking to the old title follow.
func (n *Note) SetTitle(title string) error {
	return n.rename(title, true)
}

// RenameWithoutLinkUpdate renames the note without touching other notes.
func (n *Note) RenameWithoutLinkUpdate(title string) error {
	return n.rename(title, false)
}

func (n *Note) rename(title string, updateLinks bool) error {
	if title == "" {
		return ErrEmptyTitle
	}
	if n.IsDeleting() {
		return ErrNoteDeleted
	}
	if other := n.m.Find(title); other != nil && other != n {
		return fmt.Errorf("%w: %q", ErrTitleTaken, title)
	}
	n.setTitle(title, true, updateLinks)
	return nil
}

// setTitle changes the title. When rewriteBody is set the leading title
// line of the body is changed too.
func (n *Note) setTitle(title string, rewriteBody, updateLinks bool) {
	n.mu.Lock()
	d := n.data.Data()
	old := d.Title
	if old == title {
		n.mu.Unlock()
		return
	}
	d.Title = title
	w := n.window
	uri := d.URI
	n.mu.Unlock()

	if w != nil {
		w.SetTitle(title)
	}
	if rewriteBody {
		body := n.data.Text()
		renamed := n.m.store.RenamedNoteXML(body, old, title)
		if renamed != body {
			if err := n.data.SetText(renamed); err != nil {
				n.m.logger.Warn("failed to rewrite note title line", "uri", uri, "error", err)
			}
		}
	}

	n.publish(Event{Type: EventRenamed, URI: uri, Title: title, OldTitle: old, UpdateLinks: updateLinks})
	n.QueueSave(ContentChanged)
}

// --- Buffer and window ---

// SetBuffer attaches a live editing buffer loaded from the current body.
// Edits made through it queue content saves.
func (n *Note) SetBuffer(b Editable) error {
	return n.data.SetBuffer(b)
}

// Buffer returns the attached buffer, or nil.
func (n *Note) Buffer() Editable {
	return n.data.Buffer()
}

// HasBuffer reports whether a buffer is attached.
func (n *Note) HasBuffer() bool {
	return n.data.HasBuffer()
}

// DetachBuffer flushes and drops the attached buffer.
func (n *Note) DetachBuffer() {
	n.data.Detach()
}

func (n *Note) bufferChanged() {
	n.QueueSave(ContentChanged)
}

// SetWindow associates w with the note, replacing any previous window.
func (n *Note) SetWindow(w Window) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.window = w
}

// Window returns the associated window, or nil.
func (n *Note) Window() Window {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.window
}

// HasWindow reports whether the note is shown in a window.
func (n *Note) HasWindow() bool {
	return n.Window() != nil
}

// --- Deletion ---

// Delete cancels any pending save, removes the backing file, and then
// detaches tags, window, and buffer. If the file cannot be removed the note
// is left as it was, so the call can be retried. Calls after a successful
// delete return nil.
func (n *Note) Delete(ctx context.Context) error {
	n.mu.Lock()
	if n.deleting {
		n.mu.Unlock()
		return nil
	}
	prev := n.state
	n.deleting = true
	n.state = StateDeleting
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	uri := n.data.Data().URI
	path := n.filePath
	n.mu.Unlock()

	// An in-flight save must finish before the file goes away.
	n.saveMu.Lock()
	n.mu.Lock()
	if n.state == StateSaved {
		prev = StateSaved
		n.state = StateDeleting
	}
	n.mu.Unlock()

	if prev != StateNew {
		if err := n.m.store.Remove(ctx, path); err != nil {
			n.saveMu.Unlock()
			n.abortDelete(prev)
			return fmt.Errorf("failed to delete note %s: %w", uri, err)
		}
	}
	n.saveMu.Unlock()

	n.mu.Lock()
	d := n.data.Data()
	title := d.Title
	tags := d.Tags
	d.Tags = make(map[string]*Tag)
	w := n.window
	n.window = nil
	n.state = StateDeleted
	n.saveNeeded = false
	n.mu.Unlock()

	for _, t := range tags {
		t.removeNote(uri)
	}
	if w != nil {
		w.Hide()
	}
	n.data.Detach()

	n.m.logger.Info("note deleted", "uri", uri, "path", path)
	n.publish(Event{Type: EventDeleted, URI: uri, Title: title})
	return nil
}

// abortDelete undoes the start of a failed Delete and re-arms the save
// timer if edits are still pending.
func (n *Note) abortDelete(prev State) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deleting = false
	n.state = prev
	if n.saveNeeded {
		n.timer = n.m.clock.AfterFunc(n.m.saveDelay, n.saveTimeout)
	}
}

// --- Observers ---

// Subscribe registers fn for this note's events. The returned function
// unregisters it.
func (n *Note) Subscribe(fn Observer) func() {
	return n.events.subscribe(fn)
}

func (n *Note) publish(e Event) {
	if e.Timestamp == 0 {
		e.Timestamp = n.m.clock.Now().Unix()
	}
	n.events.publish(e)
	n.m.publish(n, e)
}

// reload replaces the record with one read from disk after an external
// change. Notes with unsaved edits are left alone.
func (n *Note) reload(data *NoteData) bool {
	n.mu.Lock()
	if n.saveNeeded || n.deleting {
		n.mu.Unlock()
		return false
	}
	d := n.data.Data()
	old := d.Title
	uri := d.URI
	d.CreateDate = data.CreateDate
	d.ChangeDate = data.ChangeDate
	d.MetadataChangeDate = data.MetadataChangeDate
	d.Pinned = data.Pinned
	d.OpenOnStartup = data.OpenOnStartup
	d.CursorPosition = data.CursorPosition
	d.SelectionBoundPosition = data.SelectionBoundPosition
	d.X, d.Y, d.Width, d.Height = data.X, data.Y, data.Width, data.Height
	d.Title = data.Title
	oldTags := d.Tags
	d.Tags = make(map[string]*Tag, len(data.Tags))
	for _, t := range data.Tags {
		reg := n.m.tags.GetOrCreateTag(t.Name())
		if reg == nil {
			continue
		}
		d.Tags[reg.NormalizedName()] = reg
	}
	newTags := d.Tags
	w := n.window
	n.mu.Unlock()

	for k, t := range oldTags {
		if _, ok := newTags[k]; !ok {
			t.removeNote(uri)
		}
	}
	for _, t := range newTags {
		t.addNote(uri)
	}
	if err := n.data.SetText(data.Text); err != nil {
		n.m.logger.Warn("failed to reload note buffer", "uri", uri, "error", err)
	}
	if old != data.Title {
		if w != nil {
			w.SetTitle(data.Title)
		}
		n.publish(Event{Type: EventRenamed, URI: uri, Title: data.Title, OldTitle: old})
	}
	return true
}

// detachExternal retires a note whose file was removed by someone else.
// Nothing is written or removed on disk.
func (n *Note) detachExternal() {
	n.mu.Lock()
	if n.deleting {
		n.mu.Unlock()
		return
	}
	n.deleting = true
	n.state = StateDeleted
	n.saveNeeded = false
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	d := n.data.Data()
	uri := d.URI
	tags := d.Tags
	d.Tags = make(map[string]*Tag)
	w := n.window
	n.window = nil
	n.mu.Unlock()

	for _, t := range tags {
		t.removeNote(uri)
	}
	if w != nil {
		w.Hide()
	}
	n.data.Detach()
}
