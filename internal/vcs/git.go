// Package vcs answers questions about the git working tree.
package vcs

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/go-git/go-git/v5"
)

// ErrNotRepository is returned for paths outside any git repository.
var ErrNotRepository = errors.New("not a git repository")

// open finds the repository containing path, searching parent directories.
func open(path string) (*git.Repository, string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, "", err
	}
	repo, err := git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{
		DetectDotGit: true,
	})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, "", fmt.Errorf("%s: %w", path, ErrNotRepository)
	}
	if err != nil {
		return nil, "", err
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, "", err
	}
	return repo, wt.Filesystem.Root(), nil
}

// Root returns the top-level directory of the repository containing path.
func Root(path string) (string, error) {
	_, root, err := open(path)
	return root, err
}

// ChangedFiles returns absolute paths of files that differ from HEAD in
// the index or the working tree, untracked files included. Deleted files
// are left out since there is nothing to analyze.
func ChangedFiles(path string) ([]string, error) {
	repo, root, err := open(path)
	if err != nil {
		return nil, err
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, err
	}
	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("git status: %w", err)
	}

	var files []string
	for name, s := range status {
		if s.Staging == git.Unmodified && s.Worktree == git.Unmodified {
			continue
		}
		if s.Worktree == git.Deleted || s.Staging == git.Deleted && s.Worktree != git.Untracked {
			continue
		}
		files = append(files, filepath.Join(root, filepath.FromSlash(name)))
	}
	sort.Strings(files)
	return files, nil
}
