package platform_test

import (
	"context"
		"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/jotter/internal/platform"
	"github.com/aretw0/jotter/pkg/content"
	"github.com/aretw0/jotter/pkg/core"
	"github.com/aretw0/jotter/pkg/git"
)

func gitIdentity(t *testing.T) {
	t.Helper()
	for _, kv := range [][2]string{
		{"GIT_AUTHOR_NAME", "Jotter Test"},
		{"GIT_AUTHOR_EMAIL", "test@example.com"},
		{"GIT_COMMITTER_NAME", "Jotter Test"},
		{"GIT_COMMITTER_EMAIL", "test@example.com"},
	} {
		t.Setenv(kv[0], kv[1])
	}
}

func TestInit(t *testing.T) {
	ctx := context.Background()

	t.Run("Creates Directory", func(t *testing.T) {
		notesPath := filepath.Join(t.TempDir(), "notes")

		repo, err := platform.Init(ctx, notesPath)
		require.NoError(t, err)
		assert.Equal(t, notesPath, repo.Path)

		info, err := os.Stat(notesPath)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
		assert.DirExists(t, filepath.Join(notesPath, ".jotter"))
		assert.NoDirExists(t, filepath.Join(notesPath, ".git"), "history is off by default")
	})

	t.Run("MustExist Fails If Directory Missing", func(t *testing.T) {
		_, err := platform.Init(ctx, filepath.Join(t.TempDir(), "missing"), platform.WithMustExist(true))
		assert.Error(t, err)
	})

	t.Run("ReadOnly Does Not Create", func(t *testing.T) {
		_, err := platform.Init(ctx, filepath.Join(t.TempDir(), "missing"), platform.WithReadOnly(true))
		assert.Error(t, err)
	})

	t.Run("Custom System Dir", func(t *testing.T) {
		notesPath := t.TempDir()
		_, err := platform.Init(ctx, notesPath, platform.WithSystemDir(".meta"))
		require.NoError(t, err)
		assert.DirExists(t, filepath.Join(notesPath, ".meta"))
	})

	t.Run("History Initializes Git", func(t *testing.T) {
		if _, err := exec.LookPath("git"); err != nil {
			t.Skip("git not installed")
		}
		gitIdentity(t)
		notesPath := t.TempDir()
		_, err := platform.Init(ctx, notesPath, platform.WithHistory(true))
		require.NoError(t, err)
		assert.DirExists(t, filepath.Join(notesPath, ".git"))
	})
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	notesPath := t.TempDir()

	m, err := platform.Open(ctx, notesPath, platform.WithSaveDelay(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, m.Len())

	n, err := m.Create("Persisted")
	require.NoError(t, err)
	require.NoError(t, n.SetXMLContent(content.New("Persisted", "kept across opens")))
	require.NoError(t, m.SaveAll(ctx))
	assert.FileExists(t, n.FilePath())

	reopened, err := platform.Open(ctx, notesPath)
	require.NoError(t, err)
	found := reopened.Find("persisted")
	require.NotNil(t, found)
	assert.Equal(t, n.URI(), found.URI())
	assert.Contains(t, found.TextContent(), "kept across opens")

	t.Run("ReadOnly Rejects Saves", func(t *testing.T) {
		ro, err := platform.Open(ctx, notesPath, platform.WithReadOnly(true))
		require.NoError(t, err)
		note := ro.Find("Persisted")
		require.NotNil(t, note)
		note.SetPinned(true)
		assert.ErrorIs(t, note.Save(ctx), core.ErrReadOnly)
	})

	t.Run("No Backups Removes Files", func(t *testing.T) {
		m, err := platform.Open(ctx, t.TempDir(), platform.WithBackups(false))
		require.NoError(t, err)
		n, err := m.Create("Gone")
		require.NoError(t, err)
		require.NoError(t, n.Save(ctx))

		require.NoError(t, m.Delete(ctx, n))
		assert.NoFileExists(t, n.FilePath())
		assert.NoDirExists(t, filepath.Join(filepath.Dir(n.FilePath()), "Backup"))
	})
}

func TestOpen_Watch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notesPath := t.TempDir()
	m, err := platform.Open(ctx, notesPath, platform.WithWatch(true))
	require.NoError(t, err)

	other, err := platform.Open(ctx, notesPath)
	require.NoError(t, err)
	n, err := other.Create("From Elsewhere")
	require.NoError(t, err)
	require.NoError(t, n.Save(ctx))

	assert.Eventually(t, func() bool {
		return m.FindByURI(n.URI()) != nil
	}, 5*time.Second, 20*time.Millisecond)
}

func TestSync(t *testing.T) {
	err := platform.Sync(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	gitIdentity(t)
	notesPath := t.TempDir()
	_, err = platform.Init(context.Background(), notesPath, platform.WithHistory(true))
	require.NoError(t, err)

	err = platform.Sync(context.Background(), notesPath)
	assert.ErrorIs(t, err, git.ErrNoRemote)
}
