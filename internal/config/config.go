// Package config loads codememory settings from an optional TOML file with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/dshills/codememory-mcp/internal/chunker"
	"github.com/dshills/codememory-mcp/internal/generator"
	"github.com/dshills/codememory-mcp/internal/memory"
	"github.com/dshills/codememory-mcp/internal/relevance"
	"github.com/dshills/codememory-mcp/internal/walker"
	"github.com/dshills/codememory-mcp/pkg/types"
)

// DefaultFileName is looked up in the project root when no path is given
const DefaultFileName = ".codememory.toml"

// DefaultDBPath is the default SQLite database location
const DefaultDBPath = "~/.codememory/indices/codememory.db"

// Storage backends
const (
	BackendSQLite = "sqlite"
	BackendJSON   = "json"
)

// Config is the complete runtime configuration
type Config struct {
	Discovery Discovery                  `toml:"discovery"`
	Relevance relevance.Policy           `toml:"relevance"`
	Memory    memory.Limits              `toml:"memory"`
	Chunking  map[string]chunker.Profile `toml:"chunking"`
	Generator generator.Options          `toml:"generator"`
	Storage   Storage                    `toml:"storage"`
	Indexer   Indexer                    `toml:"indexer"`
	Watch     Watch                      `toml:"watch"`
	Log       Log                        `toml:"log"`

	// Path of the file the config was read from; empty for pure defaults
	Source string `toml:"-"`
}

// Discovery controls which files are indexed
type Discovery struct {
	Extensions   []string `toml:"extensions"`
	ExcludeDirs  []string `toml:"exclude_dirs"`
	ExcludeFiles []string `toml:"exclude_files"`
	MaxFileSize  int64    `toml:"max_file_size"`
}

// Storage selects where cache entries and facts are persisted
type Storage struct {
	Backend string `toml:"backend"` // sqlite or json
	DBPath  string `toml:"db_path"`
}

// Indexer tunes index runs
type Indexer struct {
	Workers   int    `toml:"workers"`
	OutputDir string `toml:"output_dir"` // Snapshot directory; empty means the project root
}

// Watch tunes the file watcher
type Watch struct {
	Debounce time.Duration `toml:"debounce"`
}

// Log selects the log level and handler format
type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // text or json
}

// Default returns the built-in configuration
func Default() *Config {
	d := walker.DefaultOptions()
	return &Config{
		Discovery: Discovery{
			ExcludeDirs:  d.ExcludeDirs,
			ExcludeFiles: d.ExcludeFiles,
			MaxFileSize:  d.MaxFileSize,
		},
		Relevance: relevance.DefaultPolicy(),
		Memory:    memory.DefaultLimits(),
		Chunking:  map[string]chunker.Profile{},
		Generator: generator.DefaultOptions(),
		Storage: Storage{
			Backend: BackendSQLite,
			DBPath:  DefaultDBPath,
		},
		Indexer: Indexer{
			Workers: runtime.NumCPU(),
		},
		Watch: Watch{
			Debounce: 500 * time.Millisecond,
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. A missing file is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("parse config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	cfg.Source = path

	return finish(cfg)
}

// Resolve loads explicit when set. Otherwise it loads DefaultFileName from
// root if present and falls back to defaults.
func Resolve(root, explicit string) (*Config, error) {
	if explicit != "" {
		return Load(explicit)
	}
	candidate := filepath.Join(root, DefaultFileName)
	if _, err := os.Stat(candidate); err == nil {
		return Load(candidate)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat config: %w", err)
	}
	return finish(Default())
}

func finish(cfg *Config) (*Config, error) {
	ApplyEnvOverrides(cfg)
	normalize(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func normalize(cfg *Config) {
	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	cfg.Storage.DBPath = strings.TrimSpace(cfg.Storage.DBPath)
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))
	if cfg.Indexer.Workers <= 0 {
		cfg.Indexer.Workers = runtime.NumCPU()
	}
	if cfg.Chunking == nil {
		cfg.Chunking = map[string]chunker.Profile{}
	}
}

// Validate checks every section
func (c *Config) Validate() error {
	if c.Discovery.MaxFileSize < 0 {
		return errors.New("discovery.max_file_size must be >= 0")
	}
	if _, err := walker.New(c.WalkerOptions(), nil); err != nil {
		return fmt.Errorf("discovery: %w", err)
	}
	if err := c.Relevance.Validate(); err != nil {
		return fmt.Errorf("relevance: %w", err)
	}
	if c.Memory.GlobalSymbols < 0 || c.Memory.OpenItems < 0 || c.Memory.Links < 0 || c.Memory.OpenItemFiles < 0 {
		return errors.New("memory limits must be >= 0")
	}
	for name, p := range c.Chunking {
		if lang := types.ParseLanguage(name); lang == types.LanguageText && !strings.EqualFold(name, string(types.LanguageText)) {
			return fmt.Errorf("chunking.%s: unknown language", name)
		}
		if err := p.Validate(); err != nil {
			return fmt.Errorf("chunking.%s: %w", name, err)
		}
	}
	if err := c.Generator.Validate(); err != nil {
		return fmt.Errorf("generator: %w", err)
	}
	switch c.Storage.Backend {
	case BackendSQLite:
		if c.Storage.DBPath == "" {
			return errors.New("storage.db_path must not be empty")
		}
	case BackendJSON:
	default:
		return fmt.Errorf("storage.backend must be %q or %q, got %q", BackendSQLite, BackendJSON, c.Storage.Backend)
	}
	if c.Watch.Debounce < 0 {
		return errors.New("watch.debounce must be >= 0")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// WalkerOptions converts the discovery section
func (c *Config) WalkerOptions() walker.Options {
	return walker.Options{
		Extensions:   c.Discovery.Extensions,
		ExcludeDirs:  c.Discovery.ExcludeDirs,
		ExcludeFiles: c.Discovery.ExcludeFiles,
		MaxFileSize:  c.Discovery.MaxFileSize,
	}
}

// ChunkProfiles converts the chunking section keyed by language
func (c *Config) ChunkProfiles() map[types.Language]chunker.Profile {
	out := make(map[types.Language]chunker.Profile, len(c.Chunking))
	for name, p := range c.Chunking {
		out[types.ParseLanguage(name)] = p
	}
	return out
}

// ResolvedDBPath expands a leading ~ in the database path
func (c *Config) ResolvedDBPath() (string, error) {
	return ExpandHome(c.Storage.DBPath)
}

// ExpandHome replaces a leading ~ with the user's home directory
func ExpandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}

// ParseLevel maps a level name to a slog level
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// NewLogger builds a logger writing to stderr
func (c *Config) NewLogger() *slog.Logger {
	level, err := ParseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
