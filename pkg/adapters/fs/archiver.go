package fs

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/jotter/pkg/content"
	"github.com/aretw0/jotter/pkg/core"
)

const (
	// CurrentVersion is the version attribute written on <note>.
	CurrentVersion = "0.3"

	// DateTimeFormat is the timestamp layout of note files: seven fractional
	// digits and a numeric zone offset.
	DateTimeFormat = "2006-01-02T15:04:05.0000000-07:00"

	// Namespace is the default namespace of note documents.
	Namespace = "http://beatniksoftware.com/tomboy"
)

// Archiver reads and writes note documents. The zero value is ready to use
// and holds no state.
type Archiver struct{}

var _ core.Archiver = Archiver{}

// Read parses the note file at path.
func (a Archiver) Read(path, uri string) (*core.NoteData, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read note file %s: %w", path, err)
	}
	data, err := a.parse(src, uri)
	if err != nil {
		return nil, fmt.Errorf("failed to parse note file %s: %w", path, err)
	}
	return data, nil
}

// ReadString parses a complete note document.
func (a Archiver) ReadString(doc, uri string) (*core.NoteData, error) {
	return a.parse([]byte(doc), uri)
}

// Write serializes data to path, replacing the file atomically.
func (a Archiver) Write(path string, data *core.NoteData) error {
	doc, err := a.WriteString(data)
	if err != nil {
		return err
	}
	return writeFileAtomic(path, []byte(doc), 0644)
}

// WriteString serializes data to a complete note document.
func (Archiver) WriteString(data *core.NoteData) (string, error) {
	if data == nil {
		return "", errors.New("failed to serialize note: no data")
	}

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="utf-8"?>` + "\n")
	fmt.Fprintf(&b, `<note version="%s" xmlns:link="%s" xmlns:size="%s" xmlns="%s">`+"\n",
		CurrentVersion, content.LinkNamespace, content.SizeNamespace, Namespace)

	writeElement(&b, "title", escape(data.Title))
	b.WriteString(`  <text xml:space="preserve">`)
	b.WriteString(data.Text)
	b.WriteString("</text>\n")
	writeElement(&b, "last-change-date", formatDate(data.ChangeDate))
	writeElement(&b, "last-metadata-change-date", formatDate(data.MetadataChangeDate))
	writeElement(&b, "create-date", formatDate(data.CreateDate))
	writeElement(&b, "cursor-position", strconv.Itoa(data.CursorPosition))
	writeElement(&b, "selection-bound-position", strconv.Itoa(data.SelectionBoundPosition))
	writeElement(&b, "width", strconv.Itoa(data.Width))
	writeElement(&b, "height", strconv.Itoa(data.Height))
	writeElement(&b, "x", strconv.Itoa(data.X))
	writeElement(&b, "y", strconv.Itoa(data.Y))

	if names := data.TagNames(); len(names) > 0 {
		b.WriteString("  <tags>\n")
		for _, name := range names {
			b.WriteString("    ")
			writeInline(&b, "tag", escape(name))
			b.WriteString("\n")
		}
		b.WriteString("  </tags>\n")
	}

	writeElement(&b, "open-on-startup", formatBool(data.OpenOnStartup))
	writeElement(&b, "pinned", formatBool(data.Pinned))
	b.WriteString("</note>\n")
	return b.String(), nil
}

func writeElement(b *strings.Builder, name, value string) {
	b.WriteString("  ")
	writeInline(b, name, value)
	b.WriteString("\n")
}

func writeInline(b *strings.Builder, name, value string) {
	b.WriteString("<" + name + ">")
	b.WriteString(value)
	b.WriteString("</" + name + ">")
}

// parse walks the document once. The body is kept as the raw bytes
// between <text> and </text> so that markup round-trips untouched.
func (Archiver) parse(src []byte, uri string) (*core.NoteData, error) {
	d := xml.NewDecoder(bytes.NewReader(src))
	data := core.NewNoteData(uri)

	depth := 0
	sawNote := false
	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrMalformedNote, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				if t.Name.Local != "note" {
					return nil, fmt.Errorf("%w: root element is <%s>", core.ErrMalformedNote, t.Name.Local)
				}
				sawNote = true
				depth++
				continue
			}
			if depth > 1 {
				depth++
				continue
			}
			if err := readField(d, src, t, data); err != nil {
				return nil, fmt.Errorf("%w: %v", core.ErrMalformedNote, err)
			}
		case xml.EndElement:
			depth--
		}
	}

	if !sawNote {
		return nil, fmt.Errorf("%w: no <note> element", core.ErrMalformedNote)
	}
	return data, nil
}

// readField consumes one child of <note>, including its end element.
func readField(d *xml.Decoder, src []byte, start xml.StartElement, data *core.NoteData) error {
	switch start.Name.Local {
	case "text":
		body, err := rawInner(d, src)
		if err != nil {
			return err
		}
		data.Text = body
		return nil
	case "tags":
		var tags struct {
			Tag []string `xml:"tag"`
		}
		if err := d.DecodeElement(&tags, &start); err != nil {
			return err
		}
		for _, name := range tags.Tag {
			t := core.NewTag(name)
			if t.NormalizedName() == "" {
				continue
			}
			data.Tags[t.NormalizedName()] = t
		}
		return nil
	}

	var s string
	if err := d.DecodeElement(&s, &start); err != nil {
		return err
	}

	switch start.Name.Local {
	case "title":
		data.Title = s
	case "last-change-date":
		data.ChangeDate = parseDate(s)
	case "last-metadata-change-date":
		data.MetadataChangeDate = parseDate(s)
	case "create-date":
		data.CreateDate = parseDate(s)
	case "cursor-position":
		data.CursorPosition = parseInt(s, data.CursorPosition)
	case "selection-bound-position":
		data.SelectionBoundPosition = parseInt(s, data.SelectionBoundPosition)
	case "width":
		data.Width = parseInt(s, data.Width)
	case "height":
		data.Height = parseInt(s, data.Height)
	case "x":
		data.X = parseInt(s, data.X)
	case "y":
		data.Y = parseInt(s, data.Y)
	case "open-on-startup":
		data.OpenOnStartup = parseBool(s)
	case "pinned":
		data.Pinned = parseBool(s)
	}
	return nil
}

// rawInner returns the source bytes between the start element just read
// and its matching end element, which it consumes.
func rawInner(d *xml.Decoder, src []byte) (string, error) {
	begin := d.InputOffset()
	depth := 0
	for {
		end := d.InputOffset()
		tok, err := d.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", io.ErrUnexpectedEOF
			}
			return "", err
		}
		switch tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			if depth == 0 {
				return string(src[begin:end]), nil
			}
			depth--
		}
	}
}

// TitleFromNoteXML returns the content of the first <title> element found
// by a plain text scan, or "" if there is none.
func (Archiver) TitleFromNoteXML(doc string) string {
	const open, closing = "<title>", "</title>"

	i := strings.Index(doc, open)
	if i < 0 {
		return ""
	}
	rest := doc[i+len(open):]
	j := strings.Index(rest, closing)
	if j < 0 {
		return ""
	}
	raw := rest[:j]
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")
	return html.UnescapeString(raw)
}

// RenamedNoteXML replaces the title element and the title line at the
// start of the body. The title line only matches when it holds the whole
// old title. Other content is left as is.
func (Archiver) RenamedNoteXML(doc, oldTitle, newTitle string) string {
	old := escapedPattern(oldTitle)

	titleRe := regexp.MustCompile(`<title>` + old + `</title>`)
	out := doc
	if loc := titleRe.FindStringIndex(out); loc != nil {
		out = out[:loc[0]] + "<title>" + escape(newTitle) + "</title>" + out[loc[1]:]
	}
	if oldTitle == "" {
		return out
	}

	lineRe := regexp.MustCompile(`(<note-content[^>]*>\s*)` + old + `(\n|<)`)
	repl := "${1}" + strings.ReplaceAll(content.Escape(newTitle), "$", "$$") + "${2}"
	return lineRe.ReplaceAllString(out, repl)
}

// escapedPattern matches s as character data written by any XML writer:
// each special character may appear literally where XML allows it, or as
// a named or numeric entity.
func escapedPattern(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '&':
			b.WriteString(`(?:&amp;|&#38;)`)
		case '<':
			b.WriteString(`(?:&lt;|&#60;)`)
		case '>':
			b.WriteString(`(?:>|&gt;|&#62;)`)
		case '\'':
			b.WriteString(`(?:'|&apos;|&#39;)`)
		case '"':
			b.WriteString(`(?:"|&quot;|&#34;)`)
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	return b.String()
}

func escape(s string) string {
	var b bytes.Buffer
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

func formatDate(t time.Time) string {
	return t.Format(DateTimeFormat)
}

// parseDate accepts the note layout and any RFC 3339 timestamp. Unparseable
// values yield the zero time.
func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(DateTimeFormat, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	return time.Time{}
}

func parseInt(s string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return v
}

func formatBool(v bool) string {
	if v {
		return "True"
	}
	return "False"
}

func parseBool(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "true")
}
