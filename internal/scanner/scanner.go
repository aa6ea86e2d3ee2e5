package scanner

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/panbanda/pyprune/pkg/config"
	"github.com/panbanda/pyprune/pkg/parser"
)

// Scanner finds Python source files.
type Scanner struct {
	config *config.Config
}

// NewScanner creates a new file scanner.
func NewScanner(cfg *config.Config) *Scanner {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Scanner{config: cfg}
}

// FindGitRoot returns the nearest ancestor of start holding a .git entry,
// or "" outside a repository.
func FindGitRoot(start string) string {
	dir := start
	for {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// excluder matches paths against config patterns (relative to the scan
// root) and .gitignore files (relative to the repository root).
type excluder struct {
	root     string
	patterns gitignore.Matcher
	gitRoot  string
	git      gitignore.Matcher
}

func (s *Scanner) newExcluder(root string) *excluder {
	e := &excluder{root: root}

	var patterns []gitignore.Pattern
	for _, p := range s.config.Exclude.Patterns {
		patterns = append(patterns, gitignore.ParsePattern(p, nil))
	}
	if len(patterns) > 0 {
		e.patterns = gitignore.NewMatcher(patterns)
	}

	if s.config.Exclude.Gitignore {
		if gitRoot := FindGitRoot(root); gitRoot != "" {
			// ReadPatterns walks every .gitignore below the repository root.
			if ps, err := gitignore.ReadPatterns(osfs.New(gitRoot), nil); err == nil && len(ps) > 0 {
				e.gitRoot = gitRoot
				e.git = gitignore.NewMatcher(ps)
			}
		}
	}
	return e
}

func (e *excluder) excluded(path string, isDir bool) bool {
	if e.patterns != nil {
		if rel, err := filepath.Rel(e.root, path); err == nil && rel != "." {
			if e.patterns.Match(split(rel), isDir) {
				return true
			}
		}
	}
	if e.git != nil {
		if rel, err := filepath.Rel(e.gitRoot, path); err == nil && rel != "." && !strings.HasPrefix(rel, "..") {
			if e.git.Match(split(rel), isDir) {
				return true
			}
		}
	}
	return false
}

func split(rel string) []string {
	return strings.Split(filepath.ToSlash(rel), "/")
}

// ScanDir recursively scans a directory for Python files.
// Symlinks resolving outside the root are skipped.
func (s *Scanner) ScanDir(root string) ([]string, error) {
	files := make([]string, 0, 256)

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	absRoot, err = filepath.EvalSymlinks(absRoot)
	if err != nil {
		return nil, err
	}

	ex := s.newExcluder(absRoot)

	walkErr := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(path)
			if err != nil || !isWithinRoot(resolved, absRoot) {
				return nil
			}
		}

		if d.IsDir() {
			if path != absRoot && (slices.Contains(s.config.Exclude.Dirs, d.Name()) || ex.excluded(path, true)) {
				return filepath.SkipDir
			}
			return nil
		}

		if !parser.IsPython(path) || ex.excluded(path, false) {
			return nil
		}
		files = append(files, path)
		return nil
	})

	sort.Strings(files)
	return files, walkErr
}

// ScanPaths expands files and directories into a sorted, de-duplicated
// list of Python files. Files named explicitly are kept even when an
// exclude pattern would match them.
func (s *Scanner) ScanPaths(paths []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, err
		}

		var found []string
		if info.IsDir() {
			if found, err = s.ScanDir(abs); err != nil {
				return nil, err
			}
		} else if parser.IsPython(abs) {
			found = []string{abs}
		}

		for _, f := range found {
			if !seen[f] {
				seen[f] = true
				files = append(files, f)
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

// isWithinRoot checks if a path is contained within the root directory.
func isWithinRoot(path, root string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	absPath = filepath.Clean(absPath)
	root = filepath.Clean(root)

	// The separator keeps "/root2" from matching "/root".
	return absPath == root || strings.HasPrefix(absPath, root+string(filepath.Separator))
}

// ScanFile checks if a single file should be analyzed.
func (s *Scanner) ScanFile(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	if info.IsDir() || !parser.IsPython(path) {
		return false, nil
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return false, err
	}
	if s.config.ShouldExclude(abs) {
		return false, nil
	}
	return !s.newExcluder(filepath.Dir(abs)).excluded(abs, false), nil
}

// FilterBySize filters files that exceed the configured maximum size.
// Returns the filtered list and the count of files that were skipped.
// If maxSize is 0, returns the original list unchanged.
func FilterBySize(files []string, maxSize int64) ([]string, int) {
	if maxSize <= 0 {
		return files, 0
	}

	filtered := make([]string, 0, len(files))
	skipped := 0
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil || info.Size() > maxSize {
			skipped++
			continue
		}
		filtered = append(filtered, f)
	}
	return filtered, skipped
}
