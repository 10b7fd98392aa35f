// Package core holds the note domain: the plain NoteData record, the Note
// aggregate with its save debouncing and tag lifecycle, the synchronizer that
// reconciles NoteData with a live editing buffer, and the Manager that owns
// the collection of notes.
//
// Persistence is reached only through the Store and Archiver interfaces, so
// the domain stays independent of the on-disk format.
package core

import (
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	// URIScheme prefixes every note URI, e.g. "note://jotter/<guid>".
	URIScheme = "note://jotter/"

	// NoteExtension is the file extension of a serialized note.
	NoteExtension = ".note"
)

// URLFromPath derives the stable note URI from its file path.
func URLFromPath(path string) string {
	return URIScheme + strings.TrimSuffix(filepath.Base(path), NoteExtension)
}

// IDFromURI returns the guid part of a note URI.
func IDFromURI(uri string) string {
	return strings.TrimPrefix(uri, URIScheme)
}

// NoteData is the plain, serializable record backing a Note.
//
// Text holds the serialized rich-text body (a <note-content> element), not
// plain text. Positions and extents are -1 when unset.
type NoteData struct {
	URI                    string
	Title                  string
	Text                   string
	CreateDate             time.Time
	ChangeDate             time.Time
	MetadataChangeDate     time.Time
	Tags                   map[string]*Tag // keyed by normalized name
	CursorPosition         int
	SelectionBoundPosition int
	Width                  int
	Height                 int
	X                      int
	Y                      int
	Pinned                 bool
	OpenOnStartup          bool
}

// NewNoteData returns an empty record for uri.
func NewNoteData(uri string) *NoteData {
	return &NoteData{
		URI:                    uri,
		Tags:                   make(map[string]*Tag),
		CursorPosition:         0,
		SelectionBoundPosition: -1,
		Width:                  0,
		Height:                 0,
		X:                      -1,
		Y:                      -1,
	}
}

// ID returns the guid derived from the URI.
func (d *NoteData) ID() string {
	return IDFromURI(d.URI)
}

// SetChangeDate sets the content change date. A content change is also a
// metadata change, so both dates move together.
func (d *NoteData) SetChangeDate(t time.Time) {
	d.ChangeDate = t
	d.MetadataChangeDate = t
}

// SetPositionExtent records window geometry.
func (d *NoteData) SetPositionExtent(x, y, width, height int) {
	if x < 0 || y < 0 || width <= 0 || height <= 0 {
		return
	}
	d.X, d.Y, d.Width, d.Height = x, y, width, height
}

// HasPosition reports whether a window position was recorded.
func (d *NoteData) HasPosition() bool {
	return d.X != -1 && d.Y != -1
}

// HasExtent reports whether a window size was recorded.
func (d *NoteData) HasExtent() bool {
	return d.Width != 0 && d.Height != 0
}

// TagNames returns the original names of the note's tags, sorted by
// normalized name.
func (d *NoteData) TagNames() []string {
	keys := make([]string, 0, len(d.Tags))
	for k := range d.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, d.Tags[k].Name())
	}
	return names
}

// Clone returns a copy whose tag map can be mutated independently. Tag
// values are shared, as they are interned.
func (d *NoteData) Clone() *NoteData {
	c := *d
	c.Tags = make(map[string]*Tag, len(d.Tags))
	for k, v := range d.Tags {
		c.Tags[k] = v
	}
	return &c
}
