package core

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Editable is a live editing buffer holding a note body.
type Editable interface {
	// Serialize renders the buffer as a <note-content> fragment.
	Serialize() string

	// Load replaces the buffer content with a <note-content> fragment.
	Load(xml string) error

	// OnChange registers fn to run after every edit. The returned function
	// unregisters it. fn must be called without the buffer's own lock held.
	OnChange(fn func()) (cancel func())
}

// DataSynchronizer owns a NoteData and an optional attached buffer. At most
// one of them is authoritative: after an edit the buffer is, after SetText
// the text is. The text is brought up to date lazily, on read.
type DataSynchronizer struct {
	mu          sync.Mutex
	data        *NoteData
	buffer      Editable
	unsubscribe func()
	textStale   bool

	// loading suppresses change notifications caused by our own Load.
	loading atomic.Bool

	onChange func()
}

// NewDataSynchronizer wraps data. onChange, if set, runs after each buffer
// edit, outside of the synchronizer lock.
func NewDataSynchronizer(data *NoteData, onChange func()) *DataSynchronizer {
	return &DataSynchronizer{data: data, onChange: onChange}
}

// Data returns the record without synchronizing the text.
func (s *DataSynchronizer) Data() *NoteData {
	return s.data
}

// SynchronizedData flushes pending buffer edits into the record and
// returns it.
func (s *DataSynchronizer) SynchronizedData() *NoteData {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncTextLocked()
	return s.data
}

// Snapshot returns a synchronized copy safe to hand to another goroutine.
func (s *DataSynchronizer) Snapshot() *NoteData {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncTextLocked()
	return s.data.Clone()
}

// Text returns the serialized body, pulling it from the buffer first when
// the buffer holds unflushed edits.
func (s *DataSynchronizer) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncTextLocked()
	return s.data.Text
}

// SetText makes text authoritative and reloads the attached buffer from it.
// If the buffer rejects text, both the record and the buffer keep their
// previous content.
func (s *DataSynchronizer) SetText(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.buffer != nil {
		if err := s.loadBufferLocked(text); err != nil {
			return err
		}
	}
	s.data.Text = text
	s.textStale = false
	return nil
}

// Buffer returns the attached buffer, or nil.
func (s *DataSynchronizer) Buffer() Editable {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffer
}

// HasBuffer reports whether a buffer is attached.
func (s *DataSynchronizer) HasBuffer() bool {
	return s.Buffer() != nil
}

// SetBuffer attaches b, flushing and detaching any previous buffer first.
// The new buffer is loaded from the current text. A nil b only detaches.
func (s *DataSynchronizer) SetBuffer(b Editable) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.buffer == b {
		return nil
	}
	s.detachLocked()

	if b == nil {
		return nil
	}
	s.buffer = b
	if err := s.loadBufferLocked(s.data.Text); err != nil {
		s.buffer = nil
		return err
	}
	s.unsubscribe = b.OnChange(s.bufferChanged)
	return nil
}

// Detach flushes and drops the attached buffer and returns the text.
func (s *DataSynchronizer) Detach() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detachLocked()
	return s.data.Text
}

func (s *DataSynchronizer) detachLocked() {
	if s.buffer == nil {
		return
	}
	s.syncTextLocked()
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.buffer = nil
}

func (s *DataSynchronizer) syncTextLocked() {
	if s.buffer == nil || !s.textStale {
		return
	}
	s.data.Text = s.buffer.Serialize()
	s.textStale = false
}

func (s *DataSynchronizer) loadBufferLocked(text string) error {
	s.loading.Store(true)
	defer s.loading.Store(false)

	if err := s.buffer.Load(text); err != nil {
		return fmt.Errorf("failed to load buffer: %w", err)
	}
	return nil
}

func (s *DataSynchronizer) bufferChanged() {
	if s.loading.Load() {
		return
	}

	s.mu.Lock()
	if s.buffer == nil {
		s.mu.Unlock()
		return
	}
	s.textStale = true
	s.mu.Unlock()

	if s.onChange != nil {
		s.onChange()
	}
}
