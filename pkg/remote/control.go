// Package remote exposes note operations to other processes. Control holds
// the operations; the HTTP and MCP transports are thin layers over it.
//
// Lookups by URI never fail: a missing note yields "", false, -1, or an
// empty slice, depending on the result type.
package remote

import (
	"context"
	"log/slog"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/jotter/pkg/core"
	"github.com/aretw0/jotter/pkg/search"
)

// DefaultVersion is reported by Version when none is configured.
const DefaultVersion = "dev"

// Presenter shows notes and the search view to the user. Applications
// without a display leave it unset.
type Presenter interface {
	PresentNote(n *core.Note, searchText string)
	PresentSearch(text string)
}

// SignalKind names a notification sent to remote listeners.
type SignalKind string

const (
	NoteAdded   SignalKind = "NoteAdded"
	NoteDeleted SignalKind = "NoteDeleted"
	NoteSaved   SignalKind = "NoteSaved"
)

// Signal is a notification about one note. Title is only set on
// NoteDeleted.
type Signal struct {
	Kind  SignalKind `json:"kind"`
	URI   string     `json:"uri"`
	Title string     `json:"title,omitempty"`
}

// Control implements the remote-control operations over a note manager.
type Control struct {
	notes     *core.Manager
	presenter Presenter
	version   string
	logger    *slog.Logger
}

// Option configures a Control.
type Option func(*Control)

// WithPresenter sets where Display calls go.
func WithPresenter(p Presenter) Option {
	return func(c *Control) { c.presenter = p }
}

// WithVersion sets the version string returned by Version.
func WithVersion(v string) Option {
	return func(c *Control) {
		if v != "" {
			c.version = v
		}
	}
}

// WithLogger sets the logger. Defaults to the manager's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Control) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewControl creates a Control over m.
func NewControl(m *core.Manager, opts ...Option) *Control {
	c := &Control{
		notes:   m,
		version: DefaultVersion,
		logger:  m.Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Manager returns the underlying note manager.
func (c *Control) Manager() *core.Manager { return c.notes }

// AddTagToNote tags the note, creating the tag if needed.
func (c *Control) AddTagToNote(uri, tagName string) bool {
	n := c.notes.FindByURI(uri)
	if n == nil {
		return false
	}
	n.AddTag(c.notes.Tags().GetOrCreateTag(tagName))
	return true
}

// CreateNamedNote creates a note titled title. It returns "" when the
// title is taken or creation fails.
func (c *Control) CreateNamedNote(title string) string {
	if c.notes.Find(title) != nil {
		return ""
	}
	n, err := c.notes.Create(title)
	if err != nil {
		c.logger.Error("failed to create note", "title", title, "error", err)
		return ""
	}
	return n.URI()
}

// CreateNote creates a note with a generated title.
func (c *Control) CreateNote() string {
	n, err := c.notes.Create("")
	if err != nil {
		c.logger.Error("failed to create note", "error", err)
		return ""
	}
	return n.URI()
}

// DeleteNote deletes the note.
func (c *Control) DeleteNote(ctx context.Context, uri string) bool {
	n := c.notes.FindByURI(uri)
	if n == nil {
		return false
	}
	if err := c.notes.Delete(ctx, n); err != nil {
		c.logger.Error("failed to delete note", "uri", uri, "error", err)
	}
	return true
}

// DisplayNote presents the note.
func (c *Control) DisplayNote(uri string) bool {
	return c.DisplayNoteWithSearch(uri, "")
}

// DisplayNoteWithSearch presents the note with searchText highlighted.
func (c *Control) DisplayNoteWithSearch(uri, searchText string) bool {
	n := c.notes.FindByURI(uri)
	if n == nil {
		return false
	}
	if c.presenter != nil {
		c.presenter.PresentNote(n, searchText)
	}
	return true
}

// DisplaySearch opens the search view.
func (c *Control) DisplaySearch() {
	c.DisplaySearchWithText("")
}

// DisplaySearchWithText opens the search view filled with text.
func (c *Control) DisplaySearchWithText(text string) {
	if c.presenter != nil {
		c.presenter.PresentSearch(text)
	}
}

// FindNote returns the URI of the note titled title.
func (c *Control) FindNote(title string) string {
	if n := c.notes.Find(title); n != nil {
		return n.URI()
	}
	return ""
}

// FindStartHereNote returns the URI of the start note.
func (c *Control) FindStartHereNote() string {
	if n := c.notes.StartNote(); n != nil {
		return n.URI()
	}
	return ""
}

// GetAllNotesWithTag returns the URIs of the notes carrying the tag.
func (c *Control) GetAllNotesWithTag(tagName string) []string {
	t := c.notes.Tags().GetTag(tagName)
	if t == nil {
		return []string{}
	}
	return t.NoteURIs()
}

// GetNoteChangeDate returns the metadata change date in Unix seconds.
func (c *Control) GetNoteChangeDate(uri string) int64 {
	n := c.notes.FindByURI(uri)
	if n == nil {
		return -1
	}
	return n.MetadataChangeDate().Unix()
}

// GetNoteCreateDate returns the creation date in Unix seconds.
func (c *Control) GetNoteCreateDate(uri string) int64 {
	n := c.notes.FindByURI(uri)
	if n == nil {
		return -1
	}
	return n.CreateDate().Unix()
}

// GetNoteCompleteXml returns the full note document.
func (c *Control) GetNoteCompleteXml(uri string) string {
	n := c.notes.FindByURI(uri)
	if n == nil {
		return ""
	}
	s, err := n.CompleteNoteXML()
	if err != nil {
		c.logger.Error("failed to serialize note", "uri", uri, "error", err)
		return ""
	}
	return s
}

// GetNoteContents returns the body as plain text.
func (c *Control) GetNoteContents(uri string) string {
	n := c.notes.FindByURI(uri)
	if n == nil {
		return ""
	}
	return n.TextContent()
}

// GetNoteContentsXml returns the body fragment.
func (c *Control) GetNoteContentsXml(uri string) string {
	n := c.notes.FindByURI(uri)
	if n == nil {
		return ""
	}
	return n.XMLContent()
}

// GetNoteTitle returns the title.
func (c *Control) GetNoteTitle(uri string) string {
	n := c.notes.FindByURI(uri)
	if n == nil {
		return ""
	}
	return n.Title()
}

// GetTagsForNote returns the normalized names of the note's tags.
func (c *Control) GetTagsForNote(uri string) []string {
	n := c.notes.FindByURI(uri)
	if n == nil {
		return []string{}
	}
	tags := n.Tags()
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = t.NormalizedName()
	}
	return out
}

// HideNote hides the note's window, if it has one.
func (c *Control) HideNote(uri string) bool {
	n := c.notes.FindByURI(uri)
	if n == nil {
		return false
	}
	if w := n.Window(); w != nil {
		w.Hide()
	}
	return true
}

// ListAllNotes returns the URI of every note.
func (c *Control) ListAllNotes() []string {
	notes := c.notes.Notes()
	out := make([]string, len(notes))
	for i, n := range notes {
		out[i] = n.URI()
	}
	return out
}

// NoteExists reports whether a note has uri.
func (c *Control) NoteExists(uri string) bool {
	return c.notes.FindByURI(uri) != nil
}

// RemoveTagFromNote removes the tag from the note. An unknown tag is not
// an error.
func (c *Control) RemoveTagFromNote(uri, tagName string) bool {
	n := c.notes.FindByURI(uri)
	if n == nil {
		return false
	}
	if t := c.notes.Tags().GetTag(tagName); t != nil {
		n.RemoveTag(t)
	}
	return true
}

// SearchNotes returns the URIs of matching notes, best match first.
func (c *Control) SearchNotes(query string, caseSensitive bool) []string {
	if query == "" {
		return []string{}
	}
	return search.URIs(search.Notes(c.notes.Notes(), query, caseSensitive))
}

// SetNoteCompleteXml replaces the note from a complete document. It
// returns false when the note is missing or the document is rejected.
func (c *Control) SetNoteCompleteXml(uri, doc string) bool {
	n := c.notes.FindByURI(uri)
	if n == nil {
		return false
	}
	if err := n.LoadForeignNoteXML(doc, core.ContentChanged); err != nil {
		c.logger.Warn("rejected note document", "uri", uri, "error", err)
		return false
	}
	return true
}

// SetNoteContents replaces the body with plain text.
func (c *Control) SetNoteContents(uri, text string) bool {
	n := c.notes.FindByURI(uri)
	if n == nil {
		return false
	}
	if err := n.SetTextContent(text); err != nil {
		c.logger.Warn("failed to set note contents", "uri", uri, "error", err)
		return false
	}
	return true
}

// SetNoteContentsXml replaces the body fragment.
func (c *Control) SetNoteContentsXml(uri, xml string) bool {
	n := c.notes.FindByURI(uri)
	if n == nil {
		return false
	}
	if err := n.SetXMLContent(xml); err != nil {
		c.logger.Warn("rejected note content", "uri", uri, "error", err)
		return false
	}
	return true
}

// Version returns the application version.
func (c *Control) Version() string {
	return c.version
}

// Signals streams NoteAdded, NoteDeleted, and NoteSaved notifications until
// ctx is done. Signals are dropped when the reader falls size behind.
func (c *Control) Signals(ctx context.Context, size int) <-chan Signal {
	if size <= 0 {
		size = 64
	}
	out := make(chan Signal, size)
	events := c.notes.Events(ctx, size)

	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(out)
		for e := range events {
			s, ok := toSignal(e)
			if !ok {
				continue
			}
			select {
			case out <- s:
			case <-ctx.Done():
				return nil
			}
		}
		return nil
	})
	return out
}

func toSignal(e core.Event) (Signal, bool) {
	switch e.Type {
	case core.EventAdded:
		return Signal{Kind: NoteAdded, URI: e.URI}, true
	case core.EventDeleted:
		return Signal{Kind: NoteDeleted, URI: e.URI, Title: e.Title}, true
	case core.EventSaved:
		return Signal{Kind: NoteSaved, URI: e.URI}, true
	}
	return Signal{}, false
}
