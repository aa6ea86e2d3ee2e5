package fix

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/panbanda/pyprune/internal/fileproc"
	"github.com/panbanda/pyprune/pkg/analyzer"
	"github.com/panbanda/pyprune/pkg/analyzer/imports"
	"github.com/panbanda/pyprune/pkg/parser"
)

// Options controls FixFile.
type Options struct {
	// Write replaces the file contents when anything was removed.
	Write bool
	// Diff renders a unified diff of the change.
	Diff bool
}

// SkippedImport is an unused import the fixer left in place.
type SkippedImport struct {
	Line   int    `json:"line" toon:"line"`
	Name   string `json:"name" toon:"name"`
	Reason string `json:"reason" toon:"reason"`
}

// FileFix is the outcome of fixing one file.
type FileFix struct {
	Path    string            `json:"path" toon:"path"`
	Removed []imports.Finding `json:"removed" toon:"removed"`
	Skipped []SkippedImport   `json:"skipped,omitempty" toon:"skipped,omitempty"`
	Edits   []Edit            `json:"edits,omitempty" toon:"-"`
	Diff    string            `json:"diff,omitempty" toon:"diff,omitempty"`
	Written bool              `json:"written" toon:"written"`
}

// FixFile analyzes path from scratch (never from cache, since the edits
// need the full binding model) and removes its unused imports.
// A file that fails to parse or verify is returned as an error and left
// untouched.
func FixFile(ctx context.Context, a *imports.Analyzer, psr *parser.Parser, path string, opts Options) (*FileFix, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	result, err := a.AnalyzeSource(ctx, psr, path, src)
	if err != nil {
		return nil, err
	}
	res, err := Autofix(src, result.Unused())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	ff := &FileFix{
		Path:    path,
		Removed: make([]imports.Finding, 0, len(res.Removed)),
		Edits:   res.Edits,
	}
	removed := make(map[*imports.ImportBinding]bool, len(res.Removed))
	for _, b := range res.Removed {
		removed[b] = true
	}
	for _, v := range result.Verdicts {
		if removed[v.Binding] {
			ff.Removed = append(ff.Removed, imports.NewFinding(path, v))
		}
	}
	for _, s := range res.Skipped {
		ff.Skipped = append(ff.Skipped, SkippedImport{
			Line:   s.Binding.NameSpan.Start.Line,
			Name:   s.Binding.LocalName,
			Reason: s.Err.Error(),
		})
	}

	if !res.Changed() {
		return ff, nil
	}
	if opts.Diff {
		ff.Diff = UnifiedDiff(path, src, res.Text)
	}
	if opts.Write {
		if err := os.WriteFile(path, res.Text, info.Mode().Perm()); err != nil {
			return nil, fmt.Errorf("write %s: %w", path, err)
		}
		ff.Written = true
	}
	return ff, nil
}

// FixFiles runs FixFile over files in parallel. Results are sorted by path;
// failed files are reported in the returned error while the rest proceed.
func FixFiles(ctx context.Context, a *imports.Analyzer, files []string, workers int, opts Options) ([]FileFix, error) {
	tracker := analyzer.TrackerFromContext(ctx)
	if tracker != nil {
		tracker.Add(len(files))
	}

	var onDone fileproc.DoneFunc
	if tracker != nil {
		onDone = tracker.Record
	}
	results, errs := fileproc.MapFiles(ctx, files, workers, func(ctx context.Context, psr *parser.Parser, path string) (*FileFix, error) {
		return FixFile(ctx, a, psr, path, opts)
	}, onDone)

	fixes := make([]FileFix, 0, len(results))
	for _, r := range results {
		fixes = append(fixes, *r)
	}
	sort.Slice(fixes, func(i, j int) bool {
		return fixes[i].Path < fixes[j].Path
	})

	if errs != nil {
		return fixes, errs
	}
	return fixes, nil
}
