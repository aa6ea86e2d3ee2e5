package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ErrInvalid is returned for configuration files that load but hold
// values pyprune cannot use.
var ErrInvalid = errors.New("invalid configuration")

// Formats lists the accepted output.format values.
var Formats = []string{"text", "json", "markdown", "md", "toon", "yaml"}

// Config holds all configuration options for pyprune.
type Config struct {
	// Detection settings
	Check CheckConfig `koanf:"check" toml:"check"`

	// File exclusion patterns
	Exclude ExcludeConfig `koanf:"exclude" toml:"exclude"`

	// Cache settings
	Cache CacheConfig `koanf:"cache" toml:"cache"`

	// Output settings
	Output OutputConfig `koanf:"output" toml:"output"`

	// Watch mode settings
	Watch WatchConfig `koanf:"watch" toml:"watch"`
}

// CheckConfig controls what counts as an unused import.
type CheckConfig struct {
	// IgnoreModules are module paths (or dotted prefixes) never flagged.
	IgnoreModules []string `koanf:"ignore_modules" toml:"ignore_modules"`
	RespectNoqa   bool     `koanf:"respect_noqa" toml:"respect_noqa"`
	TypeComments  bool     `koanf:"type_comments" toml:"type_comments"`
	MaxFileSize   int64    `koanf:"max_file_size" toml:"max_file_size"` // bytes, 0 = unlimited
}

// ExcludeConfig defines file exclusion patterns.
type ExcludeConfig struct {
	Patterns  []string `koanf:"patterns" toml:"patterns"`
	Dirs      []string `koanf:"dirs" toml:"dirs"`
	Gitignore bool     `koanf:"gitignore" toml:"gitignore"`
}

// CacheConfig controls caching behavior.
type CacheConfig struct {
	Enabled bool   `koanf:"enabled" toml:"enabled"`
	Dir     string `koanf:"dir" toml:"dir"`
	TTL     int    `koanf:"ttl" toml:"ttl"` // TTL in hours
}

// OutputConfig controls output formatting.
type OutputConfig struct {
	Format  string `koanf:"format" toml:"format"` // text, json, markdown, toon, yaml
	Color   bool   `koanf:"color" toml:"color"`
	Verbose bool   `koanf:"verbose" toml:"verbose"`
}

// WatchConfig controls the file watcher.
type WatchConfig struct {
	DebounceMS int `koanf:"debounce_ms" toml:"debounce_ms"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Check: CheckConfig{
			IgnoreModules: []string{},
			RespectNoqa:   true,
			TypeComments:  true,
			MaxFileSize:   0,
		},
		Exclude: ExcludeConfig{
			Patterns: []string{},
			Dirs: []string{
				".git",
				".hg",
				".tox",
				".nox",
				".venv",
				"venv",
				".mypy_cache",
				".pytest_cache",
				"__pycache__",
				"node_modules",
				"build",
				"dist",
				".pyprune",
			},
			Gitignore: true,
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     ".pyprune/cache",
			TTL:     24,
		},
		Output: OutputConfig{
			Format:  "text",
			Color:   true,
			Verbose: false,
		},
		Watch: WatchConfig{
			DebounceMS: 500,
		},
	}
}

// LoadResult is a loaded configuration and the file it came from.
// Source is empty when no file was found and defaults are in effect.
type LoadResult struct {
	Config *Config
	Source string
}

type loadOptions struct {
	path string
	dirs []string
}

// LoadOption customizes LoadConfig.
type LoadOption func(*loadOptions)

// WithPath loads a specific file instead of searching.
func WithPath(path string) LoadOption {
	return func(o *loadOptions) {
		o.path = path
	}
}

// WithSearchDirs replaces the directories searched for a config file.
func WithSearchDirs(dirs ...string) LoadOption {
	return func(o *loadOptions) {
		o.dirs = dirs
	}
}

// configNames are searched in order within each search directory.
var configNames = []string{
	"pyprune.toml",
	"pyprune.yaml",
	"pyprune.yml",
	"pyprune.json",
	".pyprune.toml",
	".pyprune.yaml",
	".pyprune.yml",
	".pyprune.json",
}

// LoadConfig loads the explicit file if one was given, otherwise the first
// config file found in the search directories, otherwise the defaults.
// Loaded configs are validated.
func LoadConfig(opts ...LoadOption) (*LoadResult, error) {
	o := &loadOptions{dirs: []string{".", ".pyprune"}}
	for _, opt := range opts {
		opt(o)
	}

	path := o.path
	if path == "" {
		path = Find(o.dirs...)
	}
	if path == "" {
		return &LoadResult{Config: DefaultConfig()}, nil
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &LoadResult{Config: cfg, Source: path}, nil
}

// Find returns the first config file present in dirs, or "".
func Find(dirs ...string) string {
	for _, dir := range dirs {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path
			}
		}
	}
	return ""
}

// parserFor picks the koanf parser by file extension, defaulting to TOML.
func parserFor(path string) koanf.Parser {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser()
	case ".json":
		return json.Parser()
	default:
		return toml.Parser()
	}
}

// Load loads configuration from a file on top of the defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), parserFor(path)); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	// Unmarshal merges into the default slices element by element; a list
	// in the file replaces the default list instead.
	for key, dst := range map[string]*[]string{
		"check.ignore_modules": &cfg.Check.IgnoreModules,
		"exclude.patterns":     &cfg.Exclude.Patterns,
		"exclude.dirs":         &cfg.Exclude.Dirs,
	} {
		if k.Exists(key) {
			*dst = k.Strings(key)
		}
	}
	return cfg, nil
}

// LoadOrDefault tries to load config from standard locations or returns defaults.
func LoadOrDefault() *Config {
	result, err := LoadConfig()
	if err != nil {
		return DefaultConfig()
	}
	return result.Config
}

// Validate checks values the schema cannot express.
func (c *Config) Validate() error {
	var problems []string
	if !slices.Contains(Formats, strings.ToLower(c.Output.Format)) {
		problems = append(problems, fmt.Sprintf("output.format %q is not one of %s", c.Output.Format, strings.Join(Formats, ", ")))
	}
	if c.Check.MaxFileSize < 0 {
		problems = append(problems, "check.max_file_size must not be negative")
	}
	if c.Cache.TTL < 0 {
		problems = append(problems, "cache.ttl must not be negative")
	}
	if c.Cache.Enabled && c.Cache.Dir == "" {
		problems = append(problems, "cache.dir is required when the cache is enabled")
	}
	if c.Watch.DebounceMS < 0 {
		problems = append(problems, "watch.debounce_ms must not be negative")
	}
	for _, m := range c.Check.IgnoreModules {
		if strings.Trim(m, ".") == "" {
			problems = append(problems, fmt.Sprintf("check.ignore_modules entry %q is not a module path", m))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// ShouldExclude checks if a path should be excluded by the configured
// directory names and base-name patterns.
func (c *Config) ShouldExclude(path string) bool {
	sep := string(filepath.Separator)
	for _, dir := range c.Exclude.Dirs {
		if strings.Contains(path, sep+dir+sep) || strings.HasPrefix(path, dir+sep) {
			return true
		}
	}

	base := filepath.Base(path)
	for _, pattern := range c.Exclude.Patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}
