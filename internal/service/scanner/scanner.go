package scanner

import (
	"os"
	"path/filepath"

	"github.com/panbanda/pyprune/internal/scanner"
	"github.com/panbanda/pyprune/internal/vcs"
	"github.com/panbanda/pyprune/pkg/config"
	"github.com/panbanda/pyprune/pkg/parser"
)

// ScanResult contains the result of a file scan.
type ScanResult struct {
	Files []string
	// Oversized counts files dropped by check.max_file_size.
	Oversized int
	RepoRoot  string
}

// Service provides file scanning functionality.
type Service struct {
	config *config.Config
}

// Option configures a Service.
type Option func(*Service)

// WithConfig sets the configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		s.config = cfg
	}
}

// New creates a new scanner service.
func New(opts ...Option) *Service {
	s := &Service{config: config.LoadOrDefault()}
	for _, opt := range opts {
		opt(s)
	}
	if s.config == nil {
		s.config = config.DefaultConfig()
	}
	return s
}

// ScanPaths scans multiple paths and returns all found Python files.
// An empty path list scans the current directory.
func (s *Service) ScanPaths(paths []string) (*ScanResult, error) {
	if len(paths) == 0 {
		paths = []string{"."}
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			return nil, &PathError{Path: path, Err: err}
		}
	}

	files, err := scanner.NewScanner(s.config).ScanPaths(paths)
	if err != nil {
		return nil, &ScanError{Path: paths[0], Err: err}
	}

	result := &ScanResult{}
	result.Files, result.Oversized = scanner.FilterBySize(files, s.config.Check.MaxFileSize)
	return result, nil
}

// ScanChanged returns the Python files under paths that git reports as
// modified or untracked. The first path locates the repository.
func (s *Service) ScanChanged(paths []string) (*ScanResult, error) {
	result, err := s.ScanPaths(paths)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		paths = []string{"."}
	}

	root, err := vcs.Root(paths[0])
	if err != nil {
		return nil, &GitError{Err: err}
	}
	changed, err := vcs.ChangedFiles(root)
	if err != nil {
		return nil, &GitError{Err: err}
	}

	dirty := make(map[string]bool, len(changed))
	for _, f := range changed {
		if parser.IsPython(f) {
			dirty[resolve(f)] = true
		}
	}

	kept := result.Files[:0]
	for _, f := range result.Files {
		if dirty[resolve(f)] {
			kept = append(kept, f)
		}
	}
	result.Files = kept
	result.RepoRoot = root
	return result, nil
}

// resolve makes paths from git and from the walker comparable when the
// repository sits behind a symlink.
func resolve(path string) string {
	if r, err := filepath.EvalSymlinks(path); err == nil {
		return r
	}
	return path
}

// PathError indicates an invalid path.
type PathError struct {
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return "invalid path " + e.Path + ": " + e.Err.Error()
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// ScanError indicates a scanning failure.
type ScanError struct {
	Path string
	Err  error
}

func (e *ScanError) Error() string {
	return "failed to scan directory " + e.Path + ": " + e.Err.Error()
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

// GitError indicates the path is not a git repository.
type GitError struct {
	Err error
}

func (e *GitError) Error() string {
	return "not a git repository (or any parent): " + e.Err.Error()
}

func (e *GitError) Unwrap() error {
	return e.Err
}
