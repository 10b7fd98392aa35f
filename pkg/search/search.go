// Package search finds notes by the words they contain.
package search

import (
	"sort"
	"strings"
	"unicode"

	"github.com/aretw0/jotter/pkg/core"
)

// Result is a matching note and how often the query words occur in it.
type Result struct {
	Note  *core.Note
	Score int
}

// Words splits a query on whitespace and punctuation other than quotes,
// dropping duplicates.
func Words(query string, caseSensitive bool) []string {
	if !caseSensitive {
		query = strings.ToLower(query)
	}
	fields := strings.FieldsFunc(query, func(r rune) bool {
		return unicode.IsSpace(r) || (unicode.IsPunct(r) && r != '\'' && r != '-' && r != '_')
	})

	seen := make(map[string]bool, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

// Notes returns the notes whose title or text contains every word of query,
// highest score first. Ties keep the input order. Template notes and notes
// being deleted never match. An empty query matches nothing.
func Notes(notes []*core.Note, query string, caseSensitive bool) []Result {
	words := Words(query, caseSensitive)
	if len(words) == 0 {
		return nil
	}

	var results []Result
	for _, n := range notes {
		if n.IsDeleting() || isTemplate(n) {
			continue
		}
		if score := Score(n.Title(), n.TextContent(), words, caseSensitive); score > 0 {
			results = append(results, Result{Note: n, Score: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results
}

// Score counts the occurrences of words in title and text. It is zero
// unless every word occurs at least once. The title line usually repeats
// at the top of text, so text already covers it; the title is only
// consulted for words the text lacks.
func Score(title, text string, words []string, caseSensitive bool) int {
	if !caseSensitive {
		title = strings.ToLower(title)
		text = strings.ToLower(text)
	}

	total := 0
	for _, w := range words {
		c := strings.Count(text, w)
		if c == 0 {
			c = strings.Count(title, w)
		}
		if c == 0 {
			return 0
		}
		total += c
	}
	return total
}

// URIs returns the URIs of results in order.
func URIs(results []Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Note.URI()
	}
	return out
}

func isTemplate(n *core.Note) bool {
	for _, t := range n.Tags() {
		if t.NormalizedName() == core.TemplateTagName {
			return true
		}
	}
	return false
}
