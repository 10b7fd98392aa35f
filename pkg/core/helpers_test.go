package core_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/jotter/pkg/adapters/fs"
	"github.com/aretw0/jotter/pkg/core"
)

// manualClock fires timers only when the test advances it.
type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

type manualTimer struct {
	clock   *manualClock
	at      time.Time
	f       func()
	stopped bool
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) core.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

// Advance moves time forward and runs the timers that came due, outside
// the clock lock.
func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*manualTimer
	kept := c.timers[:0]
	for _, t := range c.timers {
		switch {
		case t.stopped:
		case !t.at.After(c.now):
			t.stopped = true
			due = append(due, t)
		default:
			kept = append(kept, t)
		}
	}
	c.timers = kept
	c.mu.Unlock()

	for _, t := range due {
		t.f()
	}
}

// Pending returns the number of armed timers.
func (c *manualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

// memStore keeps note documents in memory and uses the real archiver for
// the format.
type memStore struct {
	fs.Archiver

	mu        sync.Mutex
	files     map[string]string
	writes    map[string]int
	removed   []string
	failErr   error
	removeErr error
}

func newMemStore() *memStore {
	return &memStore{
		files:  make(map[string]string),
		writes: make(map[string]int),
	}
}

func (s *memStore) Initialize(ctx context.Context) error { return nil }

func (s *memStore) NotePath(id string) string {
	return "/notes/" + id + core.NoteExtension
}

func (s *memStore) List(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	paths := make([]string, 0, len(s.files))
	for p := range s.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

func (s *memStore) Read(path, uri string) (*core.NoteData, error) {
	s.mu.Lock()
	doc, ok := s.files[path]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("failed to read note file %s: %w", path, os.ErrNotExist)
	}
	return s.ReadString(doc, uri)
}

func (s *memStore) Write(path string, data *core.NoteData) error {
	s.mu.Lock()
	fail := s.failErr
	s.mu.Unlock()
	if fail != nil {
		return fail
	}

	doc, err := s.WriteString(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = doc
	s.writes[path]++
	return nil
}

func (s *memStore) Remove(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removeErr != nil {
		return s.removeErr
	}
	delete(s.files, path)
	s.removed = append(s.removed, path)
	return nil
}

func (s *memStore) put(path string, data *core.NoteData) {
	doc, err := s.WriteString(data)
	if err != nil {
		panic(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = doc
}

func (s *memStore) writeCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes[path]
}

func (s *memStore) doc(path string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.files[path]
	return d, ok
}

func (s *memStore) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

func (s *memStore) failRemove(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeErr = err
}

var _ core.Store = (*memStore)(nil)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// setupManager returns a manager over an in-memory store driven by a
// manual clock.
func setupManager(t *testing.T, opts ...core.Option) (*core.Manager, *memStore, *manualClock) {
	t.Helper()
	store := newMemStore()
	clock := newManualClock()
	opts = append([]core.Option{core.WithClock(clock), core.WithLogger(discardLogger())}, opts...)
	return core.NewManager(store, opts...), store, clock
}

// recorder collects events.
type recorder struct {
	mu     sync.Mutex
	events []core.Event
}

func (r *recorder) observe(e core.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []core.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func (r *recorder) last() core.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

type fakeWindow struct {
	mu     sync.Mutex
	titles []string
	hidden bool
}

func (w *fakeWindow) SetTitle(t string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.titles = append(w.titles, t)
}

func (w *fakeWindow) Hide() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.hidden = true
}
