package core

import "errors"

// Common errors.
var (
	ErrNoteNotFound  = errors.New("note not found")
	ErrMalformedNote = errors.New("malformed note xml")
	ErrTitleTaken    = errors.New("a note with this title already exists")
	ErrEmptyTitle    = errors.New("note title cannot be empty")
	ErrNoteDeleted   = errors.New("note is deleted")
	ErrReadOnly      = errors.New("notes directory is in read-only mode")
)
