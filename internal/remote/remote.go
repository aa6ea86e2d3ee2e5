// Package remote checks out git repositories named on the command line so
// they can be analyzed like a local tree.
package remote

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Source represents a remote repository to analyze.
type Source struct {
	URL      string // normalized git URL
	Ref      string // branch, tag, or SHA (empty = default branch)
	CloneDir string // temp directory after clone
}

// Parse detects if a path is a remote reference.
// Returns nil if path exists on filesystem (local path takes precedence).
func Parse(path string) *Source {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	ref := ""
	// The user part of git@host:owner/repo is not a ref.
	if idx := strings.LastIndex(path, "@"); idx != -1 && strings.Contains(path[:idx], "/") {
		ref = path[idx+1:]
		path = path[:idx]
	}

	switch {
	case strings.HasPrefix(path, "https://"), strings.HasPrefix(path, "http://"),
		strings.HasPrefix(path, "git@"), strings.HasPrefix(path, "ssh://"):
		return &Source{URL: path, Ref: ref}
	case isHostPath(path):
		return &Source{URL: "https://" + path, Ref: ref}
	case isGitHubShorthand(path):
		return &Source{URL: "https://github.com/" + path, Ref: ref}
	}
	return nil
}

// isHostPath returns true for host/owner/repo references such as
// github.com/owner/repo.
func isHostPath(path string) bool {
	parts := strings.Split(path, "/")
	if len(parts) < 3 || !strings.Contains(parts[0], ".") || strings.HasPrefix(parts[0], ".") {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
	}
	return true
}

// isGitHubShorthand returns true if path matches owner/repo pattern.
func isGitHubShorthand(path string) bool {
	slashIdx := strings.Index(path, "/")
	if slashIdx == -1 {
		return false
	}
	if strings.Count(path, "/") != 1 {
		return false
	}
	// A dot before the slash is a domain or a relative path.
	if strings.Contains(path[:slashIdx], ".") {
		return false
	}
	return slashIdx > 0 && slashIdx < len(path)-1
}

// CloneError reports a repository that could not be checked out.
type CloneError struct {
	URL string
	Ref string
	Err error
}

func (e *CloneError) Error() string {
	if e.Ref != "" {
		return fmt.Sprintf("failed to clone %s@%s: %v", e.URL, e.Ref, e.Err)
	}
	return fmt.Sprintf("failed to clone %s: %v", e.URL, e.Err)
}

func (e *CloneError) Unwrap() error {
	return e.Err
}

// Clone checks the repository out into a new temporary directory and
// records it in CloneDir. Server progress messages go to progress, which
// may be nil. Shallow fetches only the tip commit, which rules out checking
// out a commit SHA.
func (s *Source) Clone(ctx context.Context, progress io.Writer, shallow bool) error {
	dir, err := os.MkdirTemp("", "pyprune-remote-*")
	if err != nil {
		return &CloneError{URL: s.URL, Ref: s.Ref, Err: err}
	}
	s.CloneDir = dir

	if err := s.clone(ctx, progress, shallow); err != nil {
		s.Cleanup()
		return &CloneError{URL: s.URL, Ref: s.Ref, Err: err}
	}
	return nil
}

func (s *Source) clone(ctx context.Context, progress io.Writer, shallow bool) error {
	opts := &git.CloneOptions{URL: s.URL, Progress: progress}
	if shallow {
		opts.Depth = 1
		opts.SingleBranch = true
	}
	if s.Ref == "" {
		_, err := git.PlainCloneContext(ctx, s.CloneDir, false, opts)
		return err
	}

	for _, name := range []plumbing.ReferenceName{
		plumbing.NewBranchReferenceName(s.Ref),
		plumbing.NewTagReferenceName(s.Ref),
	} {
		opts.ReferenceName = name
		if _, err := git.PlainCloneContext(ctx, s.CloneDir, false, opts); err == nil {
			return nil
		}
		if err := resetDir(s.CloneDir); err != nil {
			return err
		}
	}
	if shallow {
		return fmt.Errorf("ref %q is not a branch or tag", s.Ref)
	}

	repo, err := git.PlainCloneContext(ctx, s.CloneDir, false, &git.CloneOptions{URL: s.URL, Progress: progress})
	if err != nil {
		return err
	}
	hash, err := repo.ResolveRevision(plumbing.Revision(s.Ref))
	if err != nil {
		return err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return err
	}
	return wt.Checkout(&git.CheckoutOptions{Hash: *hash})
}

// resetDir empties dir so a failed clone attempt can be retried.
func resetDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// Cleanup removes the checkout.
func (s *Source) Cleanup() {
	if s.CloneDir != "" {
		os.RemoveAll(s.CloneDir)
		s.CloneDir = ""
	}
}
