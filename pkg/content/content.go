// Package content works with the <note-content> fragment that forms a note
// body: wrapping plain text, extracting it back, and rewriting links.
package content

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// Version is the version attribute written on <note-content>.
	Version = "0.1"

	// LinkNamespace and SizeNamespace are bound to the link: and size:
	// prefixes used inside note bodies.
	LinkNamespace = "http://beatniksoftware.com/tomboy/link"
	SizeNamespace = "http://beatniksoftware.com/tomboy/size"
)

var textEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
)

// Escape escapes text for use as character data. Newlines and tabs are
// kept literal, as note bodies preserve whitespace.
func Escape(s string) string {
	return textEscaper.Replace(s)
}

// Wrap wraps already-escaped markup in a <note-content> element.
func Wrap(body string) string {
	return `<note-content version="` + Version + `">` + body + `</note-content>`
}

// FromPlainText builds a body from plain text.
func FromPlainText(text string) string {
	return Wrap(Escape(text))
}

// New builds the body of a fresh note: the title line, a blank line, and
// the given text.
func New(title, text string) string {
	return FromPlainText(title + "\n\n" + text)
}

// RootElement is the element every note body is wrapped in.
const RootElement = "note-content"

// Validate reports whether s is a well-formed note body: a single
// <note-content> element with nothing but whitespace around it.
func Validate(s string) error {
	d := xml.NewDecoder(strings.NewReader(s))
	depth := 0
	roots := 0
	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("invalid note content: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				if t.Name.Local != RootElement {
					return fmt.Errorf("invalid note content: root element is <%s>", t.Name.Local)
				}
				roots++
				if roots > 1 {
					return errors.New("invalid note content: more than one root element")
				}
			}
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			if depth == 0 && len(bytes.TrimSpace(t)) > 0 {
				return errors.New("invalid note content: text outside <note-content>")
			}
		}
	}
	if roots == 0 {
		return errors.New("invalid note content: no <note-content> element")
	}
	if depth != 0 {
		return errors.New("invalid note content: unbalanced elements")
	}
	return nil
}

// PlainText returns the character data of a body with all markup removed.
// Malformed input yields whatever text precedes the error.
func PlainText(s string) string {
	d := xml.NewDecoder(strings.NewReader(s))
	d.Strict = false

	var buf bytes.Buffer
	for {
		tok, err := d.Token()
		if err != nil {
			break
		}
		if cd, ok := tok.(xml.CharData); ok {
			buf.Write(cd)
		}
	}
	return buf.String()
}

// FirstLine returns the first non-blank line of text, trimmed.
func FirstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if l := strings.TrimSpace(line); l != "" {
			return l
		}
	}
	return ""
}

// Title returns the title line of a body.
func Title(s string) string {
	return FirstLine(PlainText(s))
}

// RenameLinks rewrites internal links pointing at oldTitle so they point at
// newTitle, and turns broken links naming newTitle into internal ones. It
// reports whether anything changed.
func RenameLinks(s, oldTitle, newTitle string) (string, bool) {
	oldLink := "<link:internal>" + Escape(oldTitle) + "</link:internal>"
	newLink := "<link:internal>" + Escape(newTitle) + "</link:internal>"
	broken := "<link:broken>" + Escape(newTitle) + "</link:broken>"

	out := strings.ReplaceAll(s, oldLink, newLink)
	out = strings.ReplaceAll(out, broken, newLink)
	return out, out != s
}

// Links returns the titles referenced by internal links, in order of
// appearance.
func Links(s string) []string {
	d := xml.NewDecoder(strings.NewReader(s))
	d.Strict = false

	var (
		links  []string
		inLink int
		cur    strings.Builder
	)
	for {
		tok, err := d.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if isInternalLink(t.Name) {
				inLink++
				cur.Reset()
			}
		case xml.EndElement:
			if isInternalLink(t.Name) && inLink > 0 {
				inLink--
				links = append(links, cur.String())
			}
		case xml.CharData:
			if inLink > 0 {
				cur.Write(t)
			}
		}
	}
	return links
}

func isInternalLink(n xml.Name) bool {
	return n.Local == "internal" && (n.Space == "link" || n.Space == LinkNamespace)
}
