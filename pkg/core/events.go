package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// EventType represents the kind of change a note went through.
type EventType string

const (
	EventAdded       EventType = "ADDED"
	EventDeleted     EventType = "DELETED"
	EventSaved       EventType = "SAVED"
	EventSaveFailed  EventType = "SAVE_FAILED"
	EventRenamed     EventType = "RENAMED"
	EventTagAdded    EventType = "TAG_ADDED"
	EventTagRemoving EventType = "TAG_REMOVING"
	EventTagRemoved  EventType = "TAG_REMOVED"
)

// Event describes a change to a single note.
type Event struct {
	Type  EventType
	URI   string
	Title string

	// OldTitle is set on EventRenamed.
	OldTitle string
	// UpdateLinks is set on EventRenamed when referring notes should follow.
	UpdateLinks bool
	// Tag is the normalized tag name on tag events.
	Tag string
	// Err is set on EventSaveFailed.
	Err error

	Timestamp int64 // Unix timestamp
}

// String formats the event for logs.
func (e Event) String() string {
	switch e.Type {
	case EventRenamed:
		return fmt.Sprintf("%s %s (%q -> %q)", e.Type, e.URI, e.OldTitle, e.Title)
	case EventTagAdded, EventTagRemoving, EventTagRemoved:
		return fmt.Sprintf("%s %s [%s]", e.Type, e.URI, e.Tag)
	case EventSaveFailed:
		return fmt.Sprintf("%s %s: %v", e.Type, e.URI, e.Err)
	default:
		return fmt.Sprintf("%s %s", e.Type, e.URI)
	}
}

// Observer receives events synchronously on the goroutine that caused them.
type Observer func(Event)

// broker fans events out to registered observers. Observers are invoked
// without any note or manager lock held.
type broker struct {
	mu   sync.RWMutex
	next int
	subs map[int]Observer
}

func (b *broker) subscribe(fn Observer) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs == nil {
		b.subs = make(map[int]Observer)
	}
	id := b.next
	b.next++
	b.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

func (b *broker) publish(e Event) {
	b.mu.RLock()
	ids := make([]int, 0, len(b.subs))
	for id := range b.subs {
		ids = append(ids, id)
	}
	subs := make([]Observer, 0, len(ids))
	// deliver in subscription order
	sort.Ints(ids)
	for _, id := range ids {
		subs = append(subs, b.subs[id])
	}
	b.mu.RUnlock()

	for _, fn := range subs {
		fn(e)
	}
}

// channel bridges the observer list to a buffered channel closed when ctx
// is done. Events are dropped when the consumer falls behind.
func (b *broker) channel(ctx context.Context, size int) <-chan Event {
	if size <= 0 {
		size = 64
	}
	out := make(chan Event, size)

	var mu sync.Mutex
	closed := false

	cancel := b.subscribe(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case out <- e:
		default:
		}
	})

	go func() {
		<-ctx.Done()
		cancel()
		mu.Lock()
		closed = true
		close(out)
		mu.Unlock()
	}()

	return out
}
