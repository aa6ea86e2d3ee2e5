package scanner

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/pyprune/internal/testutil"
	"github.com/panbanda/pyprune/pkg/config"
)

func TestNew(t *testing.T) {
	svc := New()
	require.NotNil(t, svc)
	assert.NotNil(t, svc.config)
}

func TestNewWithConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	svc := New(WithConfig(cfg))
	assert.Same(t, cfg, svc.config)
}

func TestScanPaths_InvalidPath(t *testing.T) {
	svc := New(WithConfig(config.DefaultConfig()))
	_, err := svc.ScanPaths([]string{"/nonexistent/path/that/does/not/exist"})

	var pathErr *PathError
	require.ErrorAs(t, err, &pathErr)
	assert.Equal(t, "/nonexistent/path/that/does/not/exist", pathErr.Path)
}

func TestScanPaths_ValidDir(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "app.py", "import os\n")
	testutil.WriteFile(t, dir, "pkg/mod.py", "import sys\n")
	testutil.WriteFile(t, dir, "README.md", "# readme\n")

	svc := New(WithConfig(config.DefaultConfig()))
	result, err := svc.ScanPaths([]string{dir})
	require.NoError(t, err)
	assert.Len(t, result.Files, 2)
	assert.Zero(t, result.Oversized)
}

func TestScanPaths_MaxFileSize(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "small.py", "import os\n")
	testutil.WriteFile(t, dir, "large.py", "import os\n"+string(make([]byte, 512)))

	cfg := config.DefaultConfig()
	cfg.Check.MaxFileSize = 100
	result, err := New(WithConfig(cfg)).ScanPaths([]string{dir})
	require.NoError(t, err)

	require.Len(t, result.Files, 1)
	assert.Equal(t, "small.py", filepath.Base(result.Files[0]))
	assert.Equal(t, 1, result.Oversized)
}

func TestScanChanged(t *testing.T) {
	root, _ := testutil.Repo(t, map[string]string{
		"clean.py": "import os\n",
		"dirty.py": "import os\n",
	})

	testutil.WriteFile(t, root, "dirty.py", "import sys\n")
	testutil.WriteFile(t, root, "new.py", "import re\n")
	testutil.WriteFile(t, root, "notes.txt", "changed\n")

	result, err := New(WithConfig(config.DefaultConfig())).ScanChanged([]string{root})
	require.NoError(t, err)

	var names []string
	for _, f := range result.Files {
		names = append(names, filepath.Base(f))
	}
	assert.Equal(t, []string{"dirty.py", "new.py"}, names)
	assert.NotEmpty(t, result.RepoRoot)
}

func TestScanChanged_NotRepository(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "app.py", "import os\n")

	_, err := New(WithConfig(config.DefaultConfig())).ScanChanged([]string{dir})
	var gitErr *GitError
	assert.ErrorAs(t, err, &gitErr)
}
