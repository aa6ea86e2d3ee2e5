package imports

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/pyprune/internal/cache"
	"github.com/panbanda/pyprune/internal/fileproc"
	"github.com/panbanda/pyprune/pkg/analyzer"
	"github.com/panbanda/pyprune/pkg/parser"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestAnalyze(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		writeFile(t, dir, "b.py", "import os\nimport sys\nprint(sys.argv)\n"),
		writeFile(t, dir, "a.py", "import json\n"),
		writeFile(t, dir, "clean.py", "import re\nre.compile('x')\n"),
	}

	tracker := analyzer.NewTracker(nil)
	ctx := analyzer.WithTracker(context.Background(), tracker)

	analysis, err := New(WithWorkers(2)).Analyze(ctx, files)
	require.NoError(t, err)

	require.Len(t, analysis.Files, 3)
	assert.Equal(t, files[1], analysis.Files[0].Path, "files are sorted by path")
	assert.Equal(t, 3, analysis.Summary.TotalFiles)
	assert.Equal(t, 2, analysis.Summary.FilesWithUnused)
	assert.Equal(t, 4, analysis.Summary.TotalImports)
	assert.Equal(t, 2, analysis.Summary.UnusedImports)
	assert.Equal(t, 2, analysis.Summary.ByReason[string(ReasonNeverReferenced)])

	assert.Equal(t, 3, tracker.Total())
	assert.Equal(t, 3, tracker.Done())
	assert.Zero(t, tracker.Failed())
}

func TestAnalyzeContinuesPastBadFiles(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.py", "import os\n")
	bad := writeFile(t, dir, "bad.py", "def (:\n")
	missing := filepath.Join(dir, "missing.py")

	tracker := analyzer.NewTracker(nil)
	ctx := analyzer.WithTracker(context.Background(), tracker)

	analysis, err := New().Analyze(ctx, []string{good, bad, missing})
	require.Error(t, err)

	var perrs *fileproc.ProcessingErrors
	require.True(t, errors.As(err, &perrs))
	assert.Len(t, perrs.Errors, 2)
	assert.ErrorIs(t, err, parser.ErrParse)

	require.Len(t, analysis.Files, 1)
	assert.Equal(t, good, analysis.Files[0].Path)
	assert.Equal(t, 2, tracker.Failed())
}

func TestAnalyzeFileSizeLimit(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "big.py", "import os\n# padding padding padding\n")

	psr := parser.New()
	defer psr.Close()

	_, err := New(WithMaxFileSize(8)).AnalyzeFile(context.Background(), psr, path)
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestAnalyzeFileUsesCache(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "mod.py", "import os\n")
	c, err := cache.New(filepath.Join(dir, ".cache"), 24, true)
	require.NoError(t, err)

	a := New(WithCache(c, cache.Key, cache.HashBytes))
	psr := parser.New()
	defer psr.Close()

	first, err := a.AnalyzeFile(context.Background(), psr, path)
	require.NoError(t, err)
	require.NotEmpty(t, first.Verdicts, "fresh results carry verdicts")

	second, err := a.AnalyzeFile(context.Background(), psr, path)
	require.NoError(t, err)
	assert.Empty(t, second.Verdicts, "cached results carry no verdicts")
	assert.Equal(t, first.Findings, second.Findings)

	// Changing the options changes the key.
	third, err := New(WithCache(c, cache.Key, cache.HashBytes), WithIgnoreModules("os")).AnalyzeFile(context.Background(), psr, path)
	require.NoError(t, err)
	assert.Empty(t, third.Findings)
	assert.NotEmpty(t, third.Verdicts)

	// Changing the content invalidates the entry.
	require.NoError(t, os.WriteFile(path, []byte("import os\nos.getcwd()\n"), 0o644))
	fourth, err := a.AnalyzeFile(context.Background(), psr, path)
	require.NoError(t, err)
	assert.Empty(t, fourth.Findings)
	assert.NotEmpty(t, fourth.Verdicts)
}

func TestForgetDropsCachedResult(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "mod.py", "import os\n")
	c, err := cache.New(filepath.Join(dir, ".cache"), 24, true)
	require.NoError(t, err)

	a := New(WithCache(c, cache.Key, cache.HashBytes))
	psr := parser.New()
	defer psr.Close()

	_, err = a.AnalyzeFile(context.Background(), psr, path)
	require.NoError(t, err)
	require.NoError(t, a.Forget(path))

	again, err := a.AnalyzeFile(context.Background(), psr, path)
	require.NoError(t, err)
	assert.NotEmpty(t, again.Verdicts, "forgotten entry is recomputed")

	assert.NoError(t, New().Forget(path), "no cache")
}

func TestAnalyzeIsDeterministic(t *testing.T) {
	src := "import c\nimport a\nfrom b import x, y\nprint(y)\n"
	first := analyze(t, src)
	for range 5 {
		assert.Equal(t, first.Findings, analyze(t, src).Findings)
	}
}
