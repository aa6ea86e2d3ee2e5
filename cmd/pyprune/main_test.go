package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/pyprune/internal/cache"
	"github.com/panbanda/pyprune/internal/fileproc"
	"github.com/panbanda/pyprune/internal/testutil"
	"github.com/panbanda/pyprune/pkg/analyzer/imports"
	"github.com/panbanda/pyprune/pkg/config"
	"github.com/panbanda/pyprune/pkg/parser"
)

// TestGetPaths verifies path handling from CLI arguments.
func TestGetPaths(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "no args defaults to current dir",
			args:     []string{},
			expected: []string{"."},
		},
		{
			name:     "single path",
			args:     []string{"/foo/bar"},
			expected: []string{"/foo/bar"},
		},
		{
			name:     "multiple paths",
			args:     []string{"/foo", "/bar"},
			expected: []string{"/foo", "/bar"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			app := &cli.App{
				Action: func(c *cli.Context) error {
					got = getPaths(c)
					return nil
				},
			}
			require.NoError(t, app.Run(append([]string{"test"}, tt.args...)))
			assert.Equal(t, tt.expected, got)
		})
	}
}

// run executes the CLI with output captured in a file and returns it.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := filepath.Join(t.TempDir(), "out.txt")
	argv := append([]string{"pyprune", "--no-cache", "--no-color", "-o", out}, args...)
	err := newApp().Run(argv)

	data, readErr := os.ReadFile(out)
	if readErr != nil && !errors.Is(readErr, os.ErrNotExist) {
		t.Fatal(readErr)
	}
	return string(data), err
}

const sample = "import os\nimport sys\nfrom typing import List, Optional\nfrom pathlib import Path\n\n" +
	"def get_home() -> Optional[Path]:\n    return Path(os.environ.get(\"HOME\"))\n"

const sampleFixed = "import os\nfrom typing import Optional\nfrom pathlib import Path\n\n" +
	"def get_home() -> Optional[Path]:\n    return Path(os.environ.get(\"HOME\"))\n"

func TestCheckReportsFindings(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "home.py", sample)

	out, err := run(t, "check", dir)
	require.ErrorIs(t, err, errFindings)
	assert.Contains(t, out, "home.py:2: Unused import 'sys'")
	assert.Contains(t, out, "home.py:3: Unused import 'List' from 'typing'")
	assert.Contains(t, out, "2 unused import(s) in 1 file(s)")
}

func TestCheckClean(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "clean.py", "import os\nprint(os.sep)\n")

	out, err := run(t, "check", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "No unused imports found")
}

func TestCheckNoPythonFiles(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "README.md", "# nothing here\n")

	_, err := run(t, "check", dir)
	assert.NoError(t, err)
}

func TestCheckJSON(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "home.py", sample)

	out, err := run(t, "-f", "json", "check", dir)
	require.ErrorIs(t, err, errFindings)

	var data struct {
		Files []struct {
			Findings []struct {
				Name string `json:"name"`
			} `json:"findings"`
		} `json:"files"`
		Summary struct {
			UnusedImports int `json:"unused_imports"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &data))
	assert.Equal(t, 2, data.Summary.UnusedImports)
	require.Len(t, data.Files, 1)
	require.Len(t, data.Files[0].Findings, 2)
	assert.Equal(t, "sys", data.Files[0].Findings[0].Name)
}

func TestCheckInvalidFormat(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "home.py", sample)

	_, err := run(t, "-f", "xml", "check", dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestCheckParseErrorContinues(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "broken.py", "def f(:\n")
	testutil.WriteFile(t, dir, "good.py", "import os\n")

	out, err := run(t, "check", dir)
	require.Error(t, err)
	assert.NotErrorIs(t, err, errFindings)
	assert.Contains(t, err.Error(), "1 file(s) could not be processed")
	assert.Contains(t, out, "good.py:1: Unused import 'os'")
}

func TestFixWritesFiles(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "home.py", sample)

	out, err := run(t, "fix", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Fixed 2 unused import(s) in")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, sampleFixed, string(data))
}

func TestFixDiffDoesNotWrite(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "home.py", sample)

	out, err := run(t, "fix", "--diff", dir)
	require.ErrorIs(t, err, errFindings)
	assert.Contains(t, out, "-import sys\n")
	assert.Contains(t, out, "+from typing import Optional\n")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, sample, string(data))
}

func TestCheckFixFlag(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "home.py", sample)

	_, err := run(t, "check", "--fix", dir)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, sampleFixed, string(data))
}

func TestFixParseErrorLeavesFileUntouched(t *testing.T) {
	dir := t.TempDir()
	src := "import os\ndef f(:\n"
	path := testutil.WriteFile(t, dir, "broken.py", src)

	_, err := run(t, "fix", dir)
	require.Error(t, err)

	data, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.Equal(t, src, string(data))
}

func TestConfigFileIsHonored(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "src/mod.py", "import typing_extensions\n")
	cfgPath := testutil.WriteFile(t, dir, "pyprune.toml", "[check]\nignore_modules = [\"typing_extensions\"]\n")

	out, err := run(t, "-c", cfgPath, "check", filepath.Join(dir, "src"))
	require.NoError(t, err)
	assert.Contains(t, out, "No unused imports found")
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".pyprune", "pyprune.toml")
	require.NoError(t, writeDefaultConfig(path, false))

	cfg, err := config.ValidateFile(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig(), cfg)

	err = writeDefaultConfig(path, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	assert.NoError(t, writeDefaultConfig(path, true))
}

func TestConfigValidateCommand(t *testing.T) {
	dir := t.TempDir()
	good := testutil.WriteFile(t, dir, "good.toml", "[output]\nformat = \"json\"\n")
	bad := testutil.WriteFile(t, dir, "bad.toml", "[output]\nformt = \"json\"\n")

	assert.NoError(t, newApp().Run([]string{"pyprune", "--no-color", "-c", good, "config", "validate"}))

	err := newApp().Run([]string{"pyprune", "--no-color", "-c", bad, "config", "validate"})
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestShowConfig(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, showConfig(&buf, config.DefaultConfig(), ""))
	assert.Contains(t, buf.String(), "# Default configuration (no config file found)")
	assert.Contains(t, buf.String(), "debounce_ms = 500")

	buf.Reset()
	require.NoError(t, showConfig(&buf, config.DefaultConfig(), "pyprune.toml"))
	assert.Contains(t, buf.String(), "# Configuration from: pyprune.toml")
}

func TestSplitErrors(t *testing.T) {
	perrs, err := splitErrors(nil)
	assert.Nil(t, perrs)
	assert.NoError(t, err)

	boom := errors.New("boom")
	perrs, err = splitErrors(boom)
	assert.Nil(t, perrs)
	assert.Equal(t, boom, err)

	collected := &fileproc.ProcessingErrors{}
	collected.Add("a.py", boom)
	perrs, err = splitErrors(collected)
	assert.NoError(t, err)
	assert.Same(t, collected, perrs)
}

func TestNewLogger(t *testing.T) {
	assert.False(t, newLogger(false).Enabled(t.Context(), slog.LevelDebug))
	assert.True(t, newLogger(true).Enabled(t.Context(), slog.LevelDebug))
}

func TestCheckoutRemotesLocalPaths(t *testing.T) {
	dir := t.TempDir()
	paths, cleanup, err := checkoutRemotes(t.Context(), []string{dir, "."}, "", false)
	require.NoError(t, err)
	defer cleanup()
	assert.Equal(t, []string{dir, "."}, paths)
}

func TestFixRejectsRemotePaths(t *testing.T) {
	for _, args := range [][]string{
		{"check", "--fix", "octocat/hello-world"},
		{"fix", "--diff", "github.com/octocat/hello-world@master"},
	} {
		t.Run(args[0], func(t *testing.T) {
			_, err := run(t, args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "cannot fix remote repository")
		})
	}
}

func TestRejectRemotesAllowsLocalPaths(t *testing.T) {
	assert.NoError(t, rejectRemotes([]string{t.TempDir(), "missing-dir"}))
}

func cacheConfig(t *testing.T) (cfgPath, cacheDir string) {
	t.Helper()
	dir := t.TempDir()
	cacheDir = filepath.Join(dir, "cache")
	cfgPath = testutil.WriteFile(t, dir, "pyprune.toml", "[cache]\nenabled = true\ndir = '"+cacheDir+"'\n")
	return cfgPath, cacheDir
}

func cacheEntries(t *testing.T, dir string) int {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	require.NoError(t, err)
	return len(matches)
}

func TestCacheClear(t *testing.T) {
	cfgPath, cacheDir := cacheConfig(t)
	src, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	testutil.WriteFile(t, src, "a.py", "import os\nprint(os.sep)\n")
	testutil.WriteFile(t, src, "b.py", "import re\nprint(re.I)\n")
	out := filepath.Join(t.TempDir(), "out.txt")

	require.NoError(t, newApp().Run([]string{"pyprune", "--no-color", "-c", cfgPath, "-o", out, "check", src}))
	require.Equal(t, 2, cacheEntries(t, cacheDir))

	require.NoError(t, newApp().Run([]string{"pyprune", "--no-color", "-c", cfgPath, "cache", "clear", filepath.Join(src, "a.py")}))
	assert.Equal(t, 1, cacheEntries(t, cacheDir))

	require.NoError(t, newApp().Run([]string{"pyprune", "--no-color", "-c", cfgPath, "cache", "clear"}))
	_, err = os.Stat(cacheDir)
	assert.True(t, errors.Is(err, os.ErrNotExist), "cache directory still exists")
}

func TestCheckChangedForgetsDeletedFile(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "gone.py", "import os\n")
	cacheDir := filepath.Join(t.TempDir(), "cache")
	c, err := cache.New(cacheDir, 24, true)
	require.NoError(t, err)

	a := imports.New(imports.WithCache(c, cache.Key, cache.HashBytes))
	psr := parser.New()
	defer psr.Close()

	checkChanged(t.Context(), a, psr, dir, path)
	require.Equal(t, 1, cacheEntries(t, cacheDir))

	require.NoError(t, os.Remove(path))
	checkChanged(t.Context(), a, psr, dir, path)
	assert.Zero(t, cacheEntries(t, cacheDir))
}
