package fs

import (
	"sync"
	"time"

	"github.com/aretw0/jotter/pkg/core"
)

// debouncer delays events per path and merges those that arrive before the
// delay runs out.
type debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	pending map[string]*pendingEvent
	stopped bool
	wg      sync.WaitGroup
}

type pendingEvent struct {
	event core.FileEvent
	timer *time.Timer
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{
		delay:   delay,
		pending: make(map[string]*pendingEvent),
	}
}

// add schedules fire for event, replacing a pending event for the same path.
func (d *debouncer) add(event core.FileEvent, fire func(core.FileEvent)) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if p, ok := d.pending[event.Path]; ok && p.timer.Stop() {
		// The stopped timer's wg slot carries over to the new one.
		p.event.Op = mergeOps(p.event.Op, event.Op)
		p.timer = d.schedule(p, fire)
		return
	}

	p := &pendingEvent{event: event}
	d.pending[event.Path] = p
	d.wg.Add(1)
	p.timer = d.schedule(p, fire)
}

func (d *debouncer) schedule(p *pendingEvent, fire func(core.FileEvent)) *time.Timer {
	return time.AfterFunc(d.delay, func() {
		defer d.wg.Done()

		d.mu.Lock()
		if d.pending[p.event.Path] == p {
			delete(d.pending, p.event.Path)
		}
		ev := p.event
		d.mu.Unlock()

		fire(ev)
	})
}

// mergeOps folds a burst into one operation: a file that ends up removed is
// removed, one that was created during the burst is created, and one that
// was removed and came back was modified.
func mergeOps(prev, next core.FileOp) core.FileOp {
	switch {
	case next == core.FileRemoved:
		return core.FileRemoved
	case prev == core.FileRemoved:
		return core.FileModified
	case prev == core.FileCreated:
		return core.FileCreated
	default:
		return next
	}
}

// stopAndWait drops pending events and waits up to timeout for deliveries
// already running.
func (d *debouncer) stopAndWait(timeout time.Duration) {
	d.mu.Lock()
	d.stopped = true
	for path, p := range d.pending {
		if p.timer.Stop() {
			d.wg.Done()
		}
		delete(d.pending, path)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
	}
}
