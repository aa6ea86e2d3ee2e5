package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.True(t, cfg.Check.RespectNoqa)
	assert.True(t, cfg.Check.TypeComments)
	assert.Empty(t, cfg.Check.IgnoreModules)
	assert.Zero(t, cfg.Check.MaxFileSize)

	assert.True(t, cfg.Exclude.Gitignore)
	assert.Contains(t, cfg.Exclude.Dirs, "__pycache__")
	assert.Contains(t, cfg.Exclude.Dirs, ".venv")

	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, ".pyprune/cache", cfg.Cache.Dir)
	assert.Equal(t, 24, cfg.Cache.TTL)

	assert.Equal(t, "text", cfg.Output.Format)
	assert.True(t, cfg.Output.Color)
	assert.Equal(t, 500, cfg.Watch.DebounceMS)

	assert.NoError(t, cfg.Validate())
}

func TestLoadTOML(t *testing.T) {
	path := writeConfig(t, "pyprune.toml", `
[check]
ignore_modules = ["typing_extensions", "django.conf"]
respect_noqa = false
max_file_size = 1048576

[exclude]
dirs = ["migrations"]

[cache]
enabled = false

[output]
format = "json"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"typing_extensions", "django.conf"}, cfg.Check.IgnoreModules)
	assert.False(t, cfg.Check.RespectNoqa)
	assert.True(t, cfg.Check.TypeComments, "unset keys keep their defaults")
	assert.Equal(t, int64(1048576), cfg.Check.MaxFileSize)
	assert.Equal(t, []string{"migrations"}, cfg.Exclude.Dirs, "lists replace the defaults")
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, "json", cfg.Output.Format)
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "pyprune.yaml", `
check:
  type_comments: false
output:
  format: markdown
watch:
  debounce_ms: 250
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.Check.TypeComments)
	assert.Equal(t, "markdown", cfg.Output.Format)
	assert.Equal(t, 250, cfg.Watch.DebounceMS)
}

func TestLoadJSON(t *testing.T) {
	path := writeConfig(t, "pyprune.json", `{
  "check": {"ignore_modules": ["six"]},
  "output": {"format": "toon", "color": false}
}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"six"}, cfg.Check.IgnoreModules)
	assert.Equal(t, "toon", cfg.Output.Format)
	assert.False(t, cfg.Output.Color)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load("/nonexistent/path/pyprune.toml")
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "pyprune.toml", "[check\ninvalid toml"))
	assert.Error(t, err)
}

func TestLoadConfigSearch(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, ".pyprune")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(nested, "pyprune.toml"), []byte("[output]\nformat = \"yaml\"\n"), 0o644))

	result, err := LoadConfig(WithSearchDirs(dir, nested))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(nested, "pyprune.toml"), result.Source)
	assert.Equal(t, "yaml", result.Config.Output.Format)

	// A file in an earlier directory wins.
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".pyprune.json"), []byte(`{"output": {"format": "json"}}`), 0o644))
	result, err = LoadConfig(WithSearchDirs(dir, nested))
	require.NoError(t, err)
	assert.Equal(t, "json", result.Config.Output.Format)
}

func TestLoadConfigDefaults(t *testing.T) {
	result, err := LoadConfig(WithSearchDirs(t.TempDir()))
	require.NoError(t, err)
	assert.Empty(t, result.Source)
	assert.Equal(t, DefaultConfig(), result.Config)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	path := writeConfig(t, "pyprune.toml", "[output]\nformat = \"html\"\n")

	_, err := LoadConfig(WithPath(path))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "html")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"negative size", func(c *Config) { c.Check.MaxFileSize = -1 }, "max_file_size"},
		{"negative ttl", func(c *Config) { c.Cache.TTL = -1 }, "cache.ttl"},
		{"missing cache dir", func(c *Config) { c.Cache.Dir = "" }, "cache.dir"},
		{"negative debounce", func(c *Config) { c.Watch.DebounceMS = -5 }, "debounce_ms"},
		{"dots only module", func(c *Config) { c.Check.IgnoreModules = []string{".."} }, "ignore_modules"},
		{"unknown format", func(c *Config) { c.Output.Format = "xml" }, "output.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			require.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	cfg := DefaultConfig()
	cfg.Cache.Enabled = false
	cfg.Cache.Dir = ""
	assert.NoError(t, cfg.Validate(), "a disabled cache needs no directory")
}

func TestShouldExclude(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Exclude.Patterns = []string{"*_pb2.py", "conftest.py"}

	tests := []struct {
		path string
		want bool
	}{
		{filepath.Join(".venv", "lib", "site.py"), true},
		{filepath.Join("src", "__pycache__", "mod.py"), true},
		{filepath.Join("api", "service_pb2.py"), true},
		{"conftest.py", true},
		{filepath.Join("src", "app.py"), false},
		{filepath.Join("src", "venv_utils.py"), false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, cfg.ShouldExclude(tt.path))
		})
	}
}
