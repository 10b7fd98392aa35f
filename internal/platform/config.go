package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/jotter/pkg/core"
)

// EnvPrefix prefixes every environment variable read by LoadConfig.
const EnvPrefix = "JOTTER_"

// Config is the user-facing configuration. Values are layered as
// defaults < config file < environment < command-line flags; the last
// layer is applied by the CLI.
type Config struct {
	// NotesDir is the notes directory.
	// Env: JOTTER_NOTES_DIR
	NotesDir string `env:"NOTES_DIR"`

	// SaveDelay is how long edits are coalesced before a save (e.g. "4s").
	// Env: JOTTER_SAVE_DELAY
	SaveDelay time.Duration `env:"SAVE_DELAY"`

	// Backup moves deleted notes into the Backup directory.
	// Env: JOTTER_BACKUP
	Backup bool `env:"BACKUP"`

	// Watch follows changes made by other processes.
	// Env: JOTTER_WATCH
	Watch bool `env:"WATCH"`

	// History commits every change to git.
	// Env: JOTTER_HISTORY
	History bool `env:"HISTORY"`

	// ReadOnly opens the notes directory without writing to it.
	// Env: JOTTER_READ_ONLY
	ReadOnly bool `env:"READ_ONLY"`

	// HTTPAddr is the listen address of `jotter serve`.
	// Env: JOTTER_HTTP_ADDR
	HTTPAddr string `env:"HTTP_ADDR"`

	// StartNote is the URI of the start note.
	// Env: JOTTER_START_NOTE
	StartNote string `env:"START_NOTE"`

	// File is the optional YAML or TOML configuration file.
	// Env: JOTTER_CONFIG
	File string `env:"CONFIG"`
}

// fileConfig mirrors Config for config files. Pointers tell absent keys
// from zero values so that a file only overrides what it names.
type fileConfig struct {
	NotesDir  *string `yaml:"notes_dir" toml:"notes_dir"`
	SaveDelay *string `yaml:"save_delay" toml:"save_delay"`
	Backup    *bool   `yaml:"backup" toml:"backup"`
	Watch     *bool   `yaml:"watch" toml:"watch"`
	History   *bool   `yaml:"history" toml:"history"`
	ReadOnly  *bool   `yaml:"read_only" toml:"read_only"`
	HTTPAddr  *string `yaml:"http_addr" toml:"http_addr"`
	StartNote *string `yaml:"start_note" toml:"start_note"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		NotesDir:  DefaultNotesDir(),
		SaveDelay: core.DefaultSaveDelay,
		Backup:    true,
		HTTPAddr:  "127.0.0.1:8765",
	}
}

// DefaultNotesDir returns $XDG_DATA_HOME/jotter, falling back to
// ~/.local/share/jotter.
func DefaultNotesDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "jotter")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "jotter"
	}
	return filepath.Join(home, ".local", "share", "jotter")
}

// LoadConfig builds the configuration from defaults, the config file and
// the environment. path names the config file; when empty, JOTTER_CONFIG
// is consulted. A missing file is not an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = os.Getenv(EnvPrefix + "CONFIG")
	}
	if path != "" {
		if err := readConfigFile(path, &cfg); err != nil {
			return Config{}, err
		}
		cfg.File = path
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("failed to read environment config: %w", err)
	}
	if cfg.SaveDelay <= 0 {
		return Config{}, fmt.Errorf("invalid save delay %s: must be positive", cfg.SaveDelay)
	}
	return cfg, nil
}

func readConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}

	var fc fileConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	case ".toml":
		err = toml.Unmarshal(data, &fc)
	default:
		return fmt.Errorf("unsupported config file type %q", ext)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return fc.apply(cfg)
}

func (fc fileConfig) apply(cfg *Config) error {
	if fc.NotesDir != nil {
		cfg.NotesDir = expandHome(*fc.NotesDir)
	}
	if fc.SaveDelay != nil {
		d, err := time.ParseDuration(*fc.SaveDelay)
		if err != nil {
			return fmt.Errorf("invalid save_delay: %w", err)
		}
		cfg.SaveDelay = d
	}
	if fc.Backup != nil {
		cfg.Backup = *fc.Backup
	}
	if fc.Watch != nil {
		cfg.Watch = *fc.Watch
	}
	if fc.History != nil {
		cfg.History = *fc.History
	}
	if fc.ReadOnly != nil {
		cfg.ReadOnly = *fc.ReadOnly
	}
	if fc.HTTPAddr != nil {
		cfg.HTTPAddr = *fc.HTTPAddr
	}
	if fc.StartNote != nil {
		cfg.StartNote = *fc.StartNote
	}
	return nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
