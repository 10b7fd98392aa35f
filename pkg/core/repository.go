package core

import (
	"context"
	"time"
)

// Archiver converts between NoteData and the serialized note document.
// Implementations hold no mutable state.
type Archiver interface {
	// Read parses the note file at path. uri is assigned to the result.
	Read(path, uri string) (*NoteData, error)

	// Write serializes data to path.
	Write(path string, data *NoteData) error

	// WriteString serializes data to a complete document.
	WriteString(data *NoteData) (string, error)

	// ReadString parses a complete document.
	ReadString(xml, uri string) (*NoteData, error)

	// TitleFromNoteXML extracts the title without a full parse.
	// It returns "" when no title element is present.
	TitleFromNoteXML(xml string) string

	// RenamedNoteXML returns xml with the title element, and the leading
	// title line of the body, replaced.
	RenamedNoteXML(xml, oldTitle, newTitle string) string
}

// Store is the notes directory: where note files live and how they go away.
type Store interface {
	Archiver

	// Initialize ensures the underlying storage is ready (e.g., create directories).
	Initialize(ctx context.Context) error

	// NotePath returns the file path for a note id.
	NotePath(id string) string

	// List returns the paths of every note file.
	List(ctx context.Context) ([]string, error)

	// Remove takes a note file out of the directory.
	Remove(ctx context.Context, path string) error
}

// Watchable is implemented by stores that can report changes made by
// other processes.
type Watchable interface {
	Watch(ctx context.Context) (<-chan FileEvent, error)
}

// FileOp is the kind of external change observed on a note file.
type FileOp string

const (
	FileCreated  FileOp = "CREATE"
	FileModified FileOp = "MODIFY"
	FileRemoved  FileOp = "REMOVE"
)

// FileEvent is an external change to a note file.
type FileEvent struct {
	Op   FileOp
	Path string
}

// Window is the editor presenting a note. A note has at most one.
type Window interface {
	SetTitle(title string)
	Hide()
}

// Timer is a pending one-shot callback.
type Timer interface {
	// Stop cancels the callback. It reports whether the call stopped it.
	Stop() bool
}

// Clock abstracts time for the save debouncer.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}
