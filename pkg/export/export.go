// Package export renders note bodies as Markdown or HTML.
package export

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/aretw0/jotter/pkg/content"
	"github.com/aretw0/jotter/pkg/core"
)

// LinkResolver maps the title named by an internal link to a URL. An empty
// result renders the link as plain text.
type LinkResolver func(title string) string

type options struct {
	resolve LinkResolver
}

// Option configures an export.
type Option func(*options)

// WithLinkResolver turns internal links into Markdown links.
func WithLinkResolver(r LinkResolver) Option {
	return func(o *options) {
		o.resolve = r
	}
}

var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
)

// markers for the inline elements Markdown can express.
var markers = map[string]string{
	"bold":          "**",
	"italic":        "_",
	"strikethrough": "~~",
	"monospace":     "`",
}

var mdEscaper = strings.NewReplacer(
	`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`", "~", `\~`,
	"[", `\[`, "]", `\]`, "<", `\<`, ">", `\>`, "#", `\#`,
)

type element struct {
	name   string
	marker string
	url    string
	link   strings.Builder
}

// Markdown converts a <note-content> fragment. The title line becomes a
// level one heading and the rest keeps its line structure.
func Markdown(contentXML string, opts ...Option) (string, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	d := xml.NewDecoder(strings.NewReader(contentXML))
	var (
		out       strings.Builder
		stack     []*element
		listDepth int
		atLineBeg = true
	)

	writeText := func(s string) {
		lines := strings.Split(s, "\n")
		for i, line := range lines {
			if i > 0 {
				out.WriteString("\n")
				atLineBeg = true
			}
			if line == "" {
				continue
			}
			if link := innerLink(stack); link != nil {
				link.link.WriteString(line)
				continue
			}
			lead := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
			body := strings.TrimSpace(line)
			trail := line[len(lead)+len(body):]

			out.WriteString(lead)
			if body != "" {
				open, closing := wrapMarkers(stack)
				out.WriteString(open + mdEscaper.Replace(body) + closing)
			}
			out.WriteString(trail)
			atLineBeg = false
		}
	}

	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: %v", core.ErrMalformedNote, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := elementName(t.Name)
			switch name {
			case "note-content":
				continue
			case "list":
				listDepth++
			case "list-item":
				if !atLineBeg {
					out.WriteString("\n")
				}
				out.WriteString(strings.Repeat("  ", max(listDepth-1, 0)) + "- ")
				atLineBeg = false
			}
			stack = append(stack, &element{name: name, marker: markers[name]})
		case xml.EndElement:
			name := elementName(t.Name)
			if name == "note-content" || len(stack) == 0 {
				continue
			}
			e := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			switch name {
			case "list":
				listDepth--
			case "link:internal", "link:url", "link:broken":
				writeLink(&out, e, stack, o)
				atLineBeg = false
			}
		case xml.CharData:
			writeText(string(t))
		}
	}

	return headingFromTitle(out.String()), nil
}

func writeLink(out *strings.Builder, e *element, stack []*element, o *options) {
	label := e.link.String()
	if parent := innerLink(stack); parent != nil {
		parent.link.WriteString(label)
		return
	}
	open, closing := wrapMarkers(stack)

	var url string
	switch e.name {
	case "link:url":
		url = label
	case "link:internal":
		if o.resolve != nil {
			url = o.resolve(label)
		}
	}
	if url == "" {
		out.WriteString(open + mdEscaper.Replace(label) + closing)
		return
	}
	out.WriteString(open + "[" + mdEscaper.Replace(label) + "](" + strings.ReplaceAll(url, " ", "%20") + ")" + closing)
}

func innerLink(stack []*element) *element {
	for i := len(stack) - 1; i >= 0; i-- {
		if strings.HasPrefix(stack[i].name, "link:") {
			return stack[i]
		}
	}
	return nil
}

func wrapMarkers(stack []*element) (string, string) {
	var open, closing []string
	for _, e := range stack {
		if e.marker != "" {
			open = append(open, e.marker)
		}
	}
	for i := len(open) - 1; i >= 0; i-- {
		closing = append(closing, open[i])
	}
	return strings.Join(open, ""), strings.Join(closing, "")
}

func elementName(n xml.Name) string {
	switch n.Space {
	case "":
		return n.Local
	case content.LinkNamespace:
		return "link:" + n.Local
	case content.SizeNamespace:
		return "size:" + n.Local
	}
	return n.Space + ":" + n.Local
}

// headingFromTitle turns the first non-blank line into a heading.
func headingFromTitle(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		lines[i] = "# " + stripMarkers(strings.TrimSpace(l))
		lines = lines[i:]
		break
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n") + "\n"
}

func stripMarkers(s string) string {
	for _, m := range []string{"**", "~~", "_", "`"} {
		s = strings.TrimPrefix(s, m)
		s = strings.TrimSuffix(s, m)
	}
	return s
}

// HTML converts a <note-content> fragment to an HTML fragment by way of
// Markdown. Line breaks inside paragraphs are kept.
func HTML(contentXML string, opts ...Option) (string, error) {
	src, err := Markdown(contentXML, opts...)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("failed to render html: %w", err)
	}
	return buf.String(), nil
}

// HTMLPage wraps HTML output in a standalone document titled title.
func HTMLPage(title, contentXML string, opts ...Option) (string, error) {
	body, err := HTML(contentXML, opts...)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	b.WriteString("<title>" + html.EscapeString(title) + "</title>\n")
	b.WriteString("</head>\n<body>\n")
	b.WriteString(body)
	b.WriteString("</body>\n</html>\n")
	return b.String(), nil
}
