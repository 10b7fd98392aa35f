package search_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/jotter/pkg/adapters/fs"
	"github.com/aretw0/jotter/pkg/content"
	"github.com/aretw0/jotter/pkg/core"
	"github.com/aretw0/jotter/pkg/search"
)

func newManager(t *testing.T) *core.Manager {
	t.Helper()
	repo := fs.NewRepository(fs.Config{Path: t.TempDir()})
	require.NoError(t, repo.Initialize(context.Background()))
	return core.NewManager(repo,
		core.WithSaveDelay(time.Hour),
		core.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func create(t *testing.T, m *core.Manager, title, body string) *core.Note {
	t.Helper()
	n, err := m.CreateWithXML(title, content.New(title, body))
	require.NoError(t, err)
	return n
}

func TestWords(t *testing.T) {
	assert.Equal(t, []string{"go", "notes", "don't"}, search.Words("Go, notes!  don't go", false))
	assert.Equal(t, []string{"Go", "go"}, search.Words("Go go", true))
	assert.Empty(t, search.Words(" ,.; ", false))
}

func TestNotes(t *testing.T) {
	m := newManager(t)
	apples := create(t, m, "Apples", "apple pie and apple juice")
	pears := create(t, m, "Pears", "pear and apple")
	create(t, m, "Cherries", "nothing related")

	t.Run("Ranks by Occurrences", func(t *testing.T) {
		got := search.Notes(m.Notes(), "apple", false)
		require.Len(t, got, 2)
		assert.Equal(t, apples, got[0].Note)
		assert.Equal(t, pears, got[1].Note)
		assert.Greater(t, got[0].Score, got[1].Score)
	})

	t.Run("Requires Every Word", func(t *testing.T) {
		got := search.Notes(m.Notes(), "apple pear", false)
		assert.Equal(t, []string{pears.URI()}, search.URIs(got))
	})

	t.Run("Case Sensitivity", func(t *testing.T) {
		assert.Len(t, search.Notes(m.Notes(), "APPLE", false), 2)
		assert.Empty(t, search.Notes(m.Notes(), "APPLE", true))
		assert.Len(t, search.Notes(m.Notes(), "Apples", true), 1)
	})

	t.Run("Empty Query", func(t *testing.T) {
		assert.Empty(t, search.Notes(m.Notes(), "  ", false))
	})

	t.Run("Skips Templates", func(t *testing.T) {
		tmpl := create(t, m, "Apple Template", "apple")
		tmpl.AddTag(m.Tags().GetOrCreateTag(core.TemplateTagName))
		for _, r := range search.Notes(m.Notes(), "apple", false) {
			assert.NotEqual(t, tmpl, r.Note)
		}
	})
}

func TestScore(t *testing.T) {
	assert.Equal(t, 3, search.Score("t", "a a b", []string{"a", "b"}, false))
	assert.Equal(t, 0, search.Score("t", "a a", []string{"a", "b"}, false))
	assert.Equal(t, 1, search.Score("Only Title", "", []string{"title"}, false))
}
