package platform_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/jotter/internal/platform"
	"github.com/aretw0/jotter/pkg/core"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data")
	t.Setenv("JOTTER_CONFIG", "")

	cfg, err := platform.LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/data", "jotter"), cfg.NotesDir)
	assert.Equal(t, core.DefaultSaveDelay, cfg.SaveDelay)
	assert.True(t, cfg.Backup)
	assert.False(t, cfg.Watch)
	assert.False(t, cfg.History)
	assert.False(t, cfg.ReadOnly)
	assert.Empty(t, cfg.File)
}

func TestLoadConfig_Files(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
	}{
		{
			name: "YAML",
			file: "jotter.yaml",
			body: "notes_dir: /srv/notes\nsave_delay: 2s\nbackup: false\nwatch: true\nstart_note: note://jotter/start\n",
		},
		{
			name: "TOML",
			file: "jotter.toml",
			body: "notes_dir = \"/srv/notes\"\nsave_delay = \"2s\"\nbackup = false\nwatch = true\nstart_note = \"note://jotter/start\"\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.file, tt.body)

			cfg, err := platform.LoadConfig(path)
			require.NoError(t, err)
			assert.Equal(t, "/srv/notes", cfg.NotesDir)
			assert.Equal(t, 2*time.Second, cfg.SaveDelay)
			assert.False(t, cfg.Backup)
			assert.True(t, cfg.Watch)
			assert.Equal(t, "note://jotter/start", cfg.StartNote)
			assert.False(t, cfg.History, "keys absent from the file keep their default")
			assert.Equal(t, path, cfg.File)
		})
	}
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "jotter.yml", "notes_dir: /from/file\nsave_delay: 2s\n")
	t.Setenv("JOTTER_NOTES_DIR", "/from/env")
	t.Setenv("JOTTER_HISTORY", "true")
	t.Setenv("JOTTER_READ_ONLY", "1")

	cfg, err := platform.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.NotesDir)
	assert.Equal(t, 2*time.Second, cfg.SaveDelay)
	assert.True(t, cfg.History)
	assert.True(t, cfg.ReadOnly)
}

func TestLoadConfig_EnvConfigPath(t *testing.T) {
	path := writeFile(t, "jotter.yaml", "http_addr: 0.0.0.0:9000\n")
	t.Setenv("JOTTER_CONFIG", path)

	cfg, err := platform.LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.HTTPAddr)
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Run("Missing File Is Ignored", func(t *testing.T) {
		_, err := platform.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.NoError(t, err)
	})

	t.Run("Unsupported Extension", func(t *testing.T) {
		_, err := platform.LoadConfig(writeFile(t, "jotter.ini", "a=b"))
		assert.Error(t, err)
	})

	t.Run("Bad Duration In File", func(t *testing.T) {
		_, err := platform.LoadConfig(writeFile(t, "jotter.yaml", "save_delay: soon\n"))
		assert.Error(t, err)
	})

	t.Run("Bad Env Value", func(t *testing.T) {
		t.Setenv("JOTTER_SAVE_DELAY", "later")
		_, err := platform.LoadConfig("")
		assert.Error(t, err)
	})

	t.Run("Non Positive Delay", func(t *testing.T) {
		t.Setenv("JOTTER_SAVE_DELAY", "0s")
		_, err := platform.LoadConfig("")
		assert.Error(t, err)
	})
}

func TestFromConfig(t *testing.T) {
	cfg := platform.DefaultConfig()
	cfg.SaveDelay = time.Minute
	cfg.StartNote = "note://jotter/s"

	m, err := platform.Open(t.Context(), t.TempDir(), platform.FromConfig(cfg)...)
	require.NoError(t, err)

	st := m.State().(core.ManagerState)
	assert.Equal(t, "1m0s", st.SaveDelay)
	assert.Equal(t, "note://jotter/s", st.StartNoteURI)
}
