// Package buffer is a toolkit-free editing buffer for note bodies. It keeps
// plain text plus named formatting spans and converts to and from the
// <note-content> markup stored in note files.
package buffer

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/jotter/pkg/content"
	"github.com/aretw0/jotter/pkg/core"
)

// Well-known span names. Any other name is serialized as an element of the
// same name.
const (
	Bold          = "bold"
	Italic        = "italic"
	Strikethrough = "strikethrough"
	Highlight     = "highlight"
	Monospace     = "monospace"
	SizeSmall     = "size:small"
	SizeLarge     = "size:large"
	SizeHuge      = "size:huge"
	LinkInternal  = "link:internal"
	LinkURL       = "link:url"
	LinkBroken    = "link:broken"
)

// ErrRange is returned for offsets outside the buffer.
var ErrRange = errors.New("offset out of range")

// Span marks the runes [Start, End) with a formatting name.
type Span struct {
	Name  string
	Start int
	End   int
}

// Buffer holds a note body being edited. It is safe for concurrent use.
// Change listeners run after the edit, without the buffer lock held.
type Buffer struct {
	mu        sync.Mutex
	text      []rune
	spans     []Span
	listeners map[int]func()
	nextID    int
}

var _ core.Editable = (*Buffer)(nil)

// New returns an empty buffer.
func New() *Buffer {
	return &Buffer{listeners: make(map[int]func())}
}

// FromXML returns a buffer loaded with a <note-content> fragment.
func FromXML(s string) (*Buffer, error) {
	b := New()
	if err := b.Load(s); err != nil {
		return nil, err
	}
	return b, nil
}

// OnChange registers fn to run after every edit.
func (b *Buffer) OnChange(fn func()) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.listeners, id)
			b.mu.Unlock()
		})
	}
}

// notify calls the listeners. Callers must not hold b.mu.
func (b *Buffer) notify() {
	b.mu.Lock()
	ids := make([]int, 0, len(b.listeners))
	for id := range b.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, b.listeners[id])
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Text returns the plain text.
func (b *Buffer) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.text)
}

// Len returns the length in runes.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.text)
}

// Spans returns the formatting spans ordered by start.
func (b *Buffer) Spans() []Span {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Span, len(b.spans))
	copy(out, b.spans)
	return out
}

// SetText replaces the whole content with unformatted text.
func (b *Buffer) SetText(text string) {
	b.mu.Lock()
	b.text = []rune(text)
	b.spans = nil
	b.mu.Unlock()
	b.notify()
}

// Insert inserts text at rune offset pos. Text inserted strictly inside a
// span extends it.
func (b *Buffer) Insert(pos int, text string) error {
	r := []rune(text)

	b.mu.Lock()
	if pos < 0 || pos > len(b.text) {
		b.mu.Unlock()
		return fmt.Errorf("failed to insert at %d: %w", pos, ErrRange)
	}
	if len(r) == 0 {
		b.mu.Unlock()
		return nil
	}
	out := make([]rune, 0, len(b.text)+len(r))
	out = append(out, b.text[:pos]...)
	out = append(out, r...)
	out = append(out, b.text[pos:]...)
	b.text = out

	for i := range b.spans {
		s := &b.spans[i]
		switch {
		case pos <= s.Start:
			s.Start += len(r)
			s.End += len(r)
		case pos < s.End:
			s.End += len(r)
		}
	}
	b.mu.Unlock()

	b.notify()
	return nil
}

// Delete removes the runes [start, end).
func (b *Buffer) Delete(start, end int) error {
	b.mu.Lock()
	if start < 0 || end > len(b.text) || start > end {
		b.mu.Unlock()
		return fmt.Errorf("failed to delete [%d,%d): %w", start, end, ErrRange)
	}
	if start == end {
		b.mu.Unlock()
		return nil
	}
	n := end - start
	b.text = append(b.text[:start], b.text[end:]...)

	shift := func(p int) int {
		switch {
		case p <= start:
			return p
		case p < end:
			return start
		default:
			return p - n
		}
	}
	kept := b.spans[:0]
	for _, s := range b.spans {
		s.Start, s.End = shift(s.Start), shift(s.End)
		if s.Start < s.End {
			kept = append(kept, s)
		}
	}
	b.spans = kept
	b.mu.Unlock()

	b.notify()
	return nil
}

// ApplyTag marks [start, end) with name, merging with touching spans of the
// same name.
func (b *Buffer) ApplyTag(name string, start, end int) error {
	b.mu.Lock()
	if start < 0 || end > len(b.text) || start > end {
		b.mu.Unlock()
		return fmt.Errorf("failed to apply %s to [%d,%d): %w", name, start, end, ErrRange)
	}
	if start == end || name == "" {
		b.mu.Unlock()
		return nil
	}
	b.addSpanLocked(Span{Name: name, Start: start, End: end})
	b.mu.Unlock()

	b.notify()
	return nil
}

func (b *Buffer) addSpanLocked(add Span) {
	kept := b.spans[:0]
	for _, s := range b.spans {
		if s.Name == add.Name && s.Start <= add.End && add.Start <= s.End {
			add.Start = min(add.Start, s.Start)
			add.End = max(add.End, s.End)
			continue
		}
		kept = append(kept, s)
	}
	b.spans = append(kept, add)
	sortSpans(b.spans)
}

// RemoveTag clears name from [start, end).
func (b *Buffer) RemoveTag(name string, start, end int) error {
	b.mu.Lock()
	if start < 0 || end > len(b.text) || start > end {
		b.mu.Unlock()
		return fmt.Errorf("failed to remove %s from [%d,%d): %w", name, start, end, ErrRange)
	}
	var out []Span
	changed := false
	for _, s := range b.spans {
		if s.Name != name || s.End <= start || end <= s.Start {
			out = append(out, s)
			continue
		}
		changed = true
		if s.Start < start {
			out = append(out, Span{Name: name, Start: s.Start, End: start})
		}
		if end < s.End {
			out = append(out, Span{Name: name, Start: end, End: s.End})
		}
	}
	sortSpans(out)
	b.spans = out
	b.mu.Unlock()

	if changed {
		b.notify()
	}
	return nil
}

// HasTag reports whether the rune at pos carries name.
func (b *Buffer) HasTag(name string, pos int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.spans {
		if s.Name == name && s.Start <= pos && pos < s.End {
			return true
		}
	}
	return false
}

func sortSpans(spans []Span) {
	sort.SliceStable(spans, func(i, j int) bool {
		if spans[i].Start != spans[j].Start {
			return spans[i].Start < spans[j].Start
		}
		if spans[i].End != spans[j].End {
			return spans[i].End > spans[j].End
		}
		return spans[i].Name < spans[j].Name
	})
}

// Serialize renders the buffer as a <note-content> fragment. Overlapping
// spans are split so that elements nest.
func (b *Buffer) Serialize() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	bounds := map[int]bool{0: true, len(b.text): true}
	for _, s := range b.spans {
		bounds[s.Start] = true
		bounds[s.End] = true
	}
	points := make([]int, 0, len(bounds))
	for p := range bounds {
		points = append(points, p)
	}
	sort.Ints(points)

	var out strings.Builder
	var stack []Span
	for i := 0; i+1 < len(points); i++ {
		from, to := points[i], points[i+1]

		// Close what ends here, and everything opened after it.
		keep := 0
		for keep < len(stack) && stack[keep].End > from {
			keep++
		}
		for j := len(stack) - 1; j >= keep; j-- {
			out.WriteString("</" + stack[j].Name + ">")
		}
		stack = stack[:keep]

		for _, s := range b.spans {
			if s.Start <= from && from < s.End && !onStack(stack, s) {
				out.WriteString("<" + s.Name + ">")
				stack = append(stack, s)
			}
		}
		out.WriteString(content.Escape(string(b.text[from:to])))
	}
	for j := len(stack) - 1; j >= 0; j-- {
		out.WriteString("</" + stack[j].Name + ">")
	}
	return content.Wrap(out.String())
}

func onStack(stack []Span, s Span) bool {
	for _, o := range stack {
		if o == s {
			return true
		}
	}
	return false
}

// Load replaces the content with a <note-content> fragment. Listeners are
// not notified. On error the buffer is left unchanged.
func (b *Buffer) Load(s string) error {
	text, spans, err := parse(s)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.text = text
	b.spans = nil
	for _, sp := range spans {
		b.addSpanLocked(sp)
	}
	return nil
}

func parse(s string) ([]rune, []Span, error) {
	d := xml.NewDecoder(strings.NewReader(s))

	type open struct {
		name  string
		start int
	}
	var (
		text  []rune
		spans []Span
		stack []open
		root  bool
	)
	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", core.ErrMalformedNote, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if !root {
				if t.Name.Local != "note-content" {
					return nil, nil, fmt.Errorf("%w: root element is <%s>", core.ErrMalformedNote, t.Name.Local)
				}
				root = true
				stack = append(stack, open{})
				continue
			}
			stack = append(stack, open{name: spanName(t.Name), start: len(text)})
		case xml.EndElement:
			if len(stack) == 0 {
				continue
			}
			o := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if o.name != "" && o.start < len(text) {
				spans = append(spans, Span{Name: o.name, Start: o.start, End: len(text)})
			}
		case xml.CharData:
			if root {
				text = append(text, []rune(string(t))...)
			}
		}
	}
	if !root {
		return nil, nil, fmt.Errorf("%w: no <note-content> element", core.ErrMalformedNote)
	}
	return text, spans, nil
}

// spanName maps an element name back to its prefixed form.
func spanName(n xml.Name) string {
	switch n.Space {
	case "":
		return n.Local
	case content.LinkNamespace:
		return "link:" + n.Local
	case content.SizeNamespace:
		return "size:" + n.Local
	default:
		if strings.Contains(n.Space, "/") {
			return n.Local
		}
		return n.Space + ":" + n.Local
	}
}
