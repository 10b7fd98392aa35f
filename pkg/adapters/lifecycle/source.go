// Package lifecycle exposes note events as a lifecycle.Source so a
// supervising application can consume them next to its other sources.
package lifecycle

import (
	"context"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/jotter/pkg/core"
)

type noteSource struct {
	events <-chan core.Event
	keep   map[core.EventType]bool
	out    chan lifecycle.Event
}

// NewSource creates a lifecycle.Source that forwards note events. When
// types are given, only events of those types are forwarded.
func NewSource(events <-chan core.Event, types ...core.EventType) lifecycle.Source {
	s := &noteSource{
		events: events,
		out:    make(chan lifecycle.Event),
	}
	if len(types) > 0 {
		s.keep = make(map[core.EventType]bool, len(types))
		for _, t := range types {
			s.keep[t] = true
		}
	}
	return s
}

func (s *noteSource) Events() <-chan lifecycle.Event {
	return s.out
}

func (s *noteSource) Start(ctx context.Context) error {
	// core.Event satisfies lifecycle.Event through its String method.
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(s.out)
		for {
			select {
			case <-ctx.Done():
				return nil
			case e, ok := <-s.events:
				if !ok {
					return nil
				}
				if s.keep != nil && !s.keep[e.Type] {
					continue
				}
				select {
				case s.out <- e:
				case <-ctx.Done():
					return nil
				}
			}
		}
	})
	return nil
}
