// Package imports finds import bindings in Python modules that no load of
// the name can ever observe.
//
// Analysis runs in two walks over the same tree-sitter tree. The first
// builds the scope tree and records every binding with the offset from
// which it takes effect. The second records every load and resolves it
// immediately, outward through the enclosing scopes, crediting the import
// bindings it may observe.
package imports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/panbanda/pyprune/internal/fileproc"
	"github.com/panbanda/pyprune/pkg/analyzer"
	"github.com/panbanda/pyprune/pkg/parser"
)

// ResultCache stores serialized per-file results, validated by a content
// hash. *cache.Cache satisfies it.
type ResultCache interface {
	Get(key, hash string) ([]byte, bool)
	Set(key, hash string, data []byte) error
	Invalidate(key string) error
}

// Analyzer detects unused imports.
type Analyzer struct {
	ignoreModules []string
	noqa          bool
	typeComments  bool
	maxFileSize   int64
	workers       int
	cache         ResultCache
	keyFunc       func(path, fingerprint string) string
	hashFunc      func([]byte) string
	logger        *slog.Logger
}

// Compile-time check that Analyzer implements FileAnalyzer.
var _ analyzer.FileAnalyzer[*Analysis] = (*Analyzer)(nil)

// Option is a functional option for configuring Analyzer.
type Option func(*Analyzer)

// WithIgnoreModules never reports imports from these modules or their
// submodules.
func WithIgnoreModules(modules ...string) Option {
	return func(a *Analyzer) {
		a.ignoreModules = append(a.ignoreModules, modules...)
	}
}

// WithNoqa controls whether "# noqa" and "# noqa: F401" comments silence
// findings. Enabled by default.
func WithNoqa(enabled bool) Option {
	return func(a *Analyzer) {
		a.noqa = enabled
	}
}

// WithTypeComments controls whether "# type:" comments count as uses.
// Enabled by default.
func WithTypeComments(enabled bool) Option {
	return func(a *Analyzer) {
		a.typeComments = enabled
	}
}

// WithMaxFileSize skips files larger than maxSize bytes (0 = no limit).
func WithMaxFileSize(maxSize int64) Option {
	return func(a *Analyzer) {
		a.maxFileSize = maxSize
	}
}

// WithWorkers sets the number of files analyzed concurrently.
func WithWorkers(n int) Option {
	return func(a *Analyzer) {
		a.workers = n
	}
}

// WithCache reuses results for files whose content has not changed. key
// derives the cache key from a path and the options fingerprint; hash
// digests file contents.
func WithCache(c ResultCache, key func(path, fingerprint string) string, hash func([]byte) string) Option {
	return func(a *Analyzer) {
		a.cache = c
		a.keyFunc = key
		a.hashFunc = hash
	}
}

// WithLogger sets the logger for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) {
		a.logger = l
	}
}

// New creates an analyzer with noqa and type comment support enabled.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		noqa:         true,
		typeComments: true,
		logger:       slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ErrFileTooLarge is returned for files over the configured size limit.
var ErrFileTooLarge = errors.New("file exceeds size limit")

// AnalyzeSource runs both passes over one module's source text.
func (a *Analyzer) AnalyzeSource(ctx context.Context, psr *parser.Parser, path string, src []byte) (*FileResult, error) {
	parsed, err := psr.Parse(ctx, src, path)
	if err != nil {
		return nil, err
	}
	root := parsed.Root()

	model, err := Extract(root, src)
	if err != nil {
		return nil, withPath(err, path)
	}
	res, err := Resolve(ctx, model, root, src, psr, a.typeComments)
	if err != nil {
		return nil, withPath(err, path)
	}
	verdicts := Detect(model, res, ExportNames(root, src))
	if err := model.Verify(res, verdicts); err != nil {
		return nil, withPath(err, path)
	}
	suppress(src, verdicts, a.ignoreModules, a.noqa)

	result := &FileResult{
		Path:     path,
		Imports:  len(verdicts),
		Findings: []Finding{},
		Notes:    model.Notes,
		Verdicts: verdicts,
	}
	for _, v := range verdicts {
		if v.Unused() {
			result.Findings = append(result.Findings, NewFinding(path, v))
		}
	}
	a.logger.Debug("analyzed file",
		"path", path,
		"imports", result.Imports,
		"unused", len(result.Findings),
		"loads", len(res.Usages),
		"unresolved", res.Unresolved)
	return result, nil
}

// AnalyzeFile reads and analyzes one file, consulting the cache if set.
// Results served from cache carry no verdicts and cannot drive a fix.
func (a *Analyzer) AnalyzeFile(ctx context.Context, psr *parser.Parser, path string) (*FileResult, error) {
	if a.maxFileSize > 0 {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if info.Size() > a.maxFileSize {
			return nil, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, info.Size())
		}
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var key, hash string
	if a.cache != nil {
		key, hash = a.keyFunc(path, a.fingerprint()), a.hashFunc(src)
		if data, ok := a.cache.Get(key, hash); ok {
			var cached FileResult
			if err := json.Unmarshal(data, &cached); err == nil {
				a.logger.Debug("cache hit", "path", path)
				return &cached, nil
			}
		}
	}

	result, err := a.AnalyzeSource(ctx, psr, path, src)
	if err != nil {
		return nil, err
	}
	if a.cache != nil {
		if data, err := json.Marshal(result); err == nil {
			if err := a.cache.Set(key, hash, data); err != nil {
				a.logger.Debug("cache write failed", "path", path, "error", err)
			}
		}
	}
	return result, nil
}

// Analyze checks files concurrently. Files that fail to read, parse or pass
// the internal consistency checks are reported in the returned error while
// the rest of the analysis completes.
func (a *Analyzer) Analyze(ctx context.Context, files []string) (*Analysis, error) {
	tracker := analyzer.TrackerFromContext(ctx)
	if tracker != nil {
		tracker.Add(len(files))
	}

	var onDone fileproc.DoneFunc
	if tracker != nil {
		onDone = tracker.Record
	}
	results, errs := fileproc.MapFiles(ctx, files, a.workers, a.AnalyzeFile, onDone)

	analysis := &Analysis{
		Files:      make([]FileResult, 0, len(results)),
		Summary:    NewSummary(),
		AnalyzedAt: time.Now(),
	}
	for _, r := range results {
		analysis.Files = append(analysis.Files, *r)
		analysis.Summary.AddFile(*r)
	}
	sort.Slice(analysis.Files, func(i, j int) bool {
		return analysis.Files[i].Path < analysis.Files[j].Path
	})

	if errs != nil {
		for _, pe := range errs.Errors {
			a.logger.Debug("file skipped", "path", pe.Path, "error", pe.Err)
		}
		return analysis, errs
	}
	return analysis, nil
}

// Forget drops the cached result for path. Without a cache it does nothing.
func (a *Analyzer) Forget(path string) error {
	if a.cache == nil {
		return nil
	}
	return a.cache.Invalidate(a.keyFunc(path, a.fingerprint()))
}

// fingerprint captures the options that change a file's result.
func (a *Analyzer) fingerprint() string {
	return fmt.Sprintf("noqa=%t;type=%t;ignore=%s", a.noqa, a.typeComments, strings.Join(a.ignoreModules, ","))
}

// Close releases analyzer resources.
func (a *Analyzer) Close() {}
