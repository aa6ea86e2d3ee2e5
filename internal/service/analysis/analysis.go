package analysis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/panbanda/pyprune/internal/cache"
	"github.com/panbanda/pyprune/pkg/analyzer"
	"github.com/panbanda/pyprune/pkg/analyzer/imports"
	"github.com/panbanda/pyprune/pkg/config"
	"github.com/panbanda/pyprune/pkg/fix"
)

// Service orchestrates unused-import detection and removal.
type Service struct {
	config  *config.Config
	logger  *slog.Logger
	workers int
	noCache bool
}

// Option configures a Service.
type Option func(*Service)

// WithConfig sets the configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		s.config = cfg
	}
}

// WithLogger sets the logger handed to the analyzer.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithWorkers bounds the number of files processed at once.
// Zero picks a default from the CPU count.
func WithWorkers(n int) Option {
	return func(s *Service) {
		s.workers = n
	}
}

// WithoutCache skips the on-disk result cache even if the config enables it.
func WithoutCache() Option {
	return func(s *Service) {
		s.noCache = true
	}
}

// New creates a new analysis service.
func New(opts ...Option) *Service {
	s := &Service{
		config: config.LoadOrDefault(),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.config == nil {
		s.config = config.DefaultConfig()
	}
	return s
}

// Config returns the configuration in effect.
func (s *Service) Config() *config.Config {
	return s.config
}

// Analyzer builds an import analyzer from the configuration. The result
// cache is attached when enabled.
func (s *Service) Analyzer() (*imports.Analyzer, error) {
	return s.build(!s.noCache)
}

func (s *Service) build(useCache bool) (*imports.Analyzer, error) {
	opts := s.options()
	if s.config.Cache.Enabled && useCache {
		c, err := s.openCache()
		if err != nil {
			return nil, err
		}
		opts = append(opts, imports.WithCache(c, cache.Key, cache.HashBytes))
	}
	return imports.New(opts...), nil
}

func (s *Service) options() []imports.Option {
	chk := s.config.Check
	return []imports.Option{
		imports.WithIgnoreModules(chk.IgnoreModules...),
		imports.WithNoqa(chk.RespectNoqa),
		imports.WithTypeComments(chk.TypeComments),
		imports.WithMaxFileSize(chk.MaxFileSize),
		imports.WithWorkers(s.workers),
		imports.WithLogger(s.logger),
	}
}

func (s *Service) openCache() (*cache.Cache, error) {
	c, err := cache.New(s.config.Cache.Dir, s.config.Cache.TTL, true)
	if err != nil {
		return nil, &CacheError{Dir: s.config.Cache.Dir, Err: err}
	}
	return c, nil
}

// ClearCache drops cached results whether or not caching is enabled. With
// no files the whole cache directory goes; otherwise only the entries for
// files under the current options.
func (s *Service) ClearCache(files []string) error {
	c, err := s.openCache()
	if err != nil {
		return err
	}
	if len(files) == 0 {
		s.logger.Debug("clearing cache", "dir", s.config.Cache.Dir)
		return c.Clear()
	}

	a := imports.New(append(s.options(), imports.WithCache(c, cache.Key, cache.HashBytes))...)
	defer a.Close()
	for _, path := range files {
		if err := a.Forget(path); err != nil {
			return &CacheError{Dir: s.config.Cache.Dir, Err: err}
		}
	}
	s.logger.Debug("invalidated cache entries", "count", len(files))
	return nil
}

// CheckOptions configures detection.
type CheckOptions struct {
	OnProgress analyzer.ProgressFunc
}

// Check reports the unused imports in files. A partial analysis is returned
// alongside the error when some files could not be analyzed.
func (s *Service) Check(ctx context.Context, files []string, opts CheckOptions) (*imports.Analysis, error) {
	a, err := s.Analyzer()
	if err != nil {
		return nil, err
	}
	defer a.Close()

	if opts.OnProgress != nil {
		ctx = analyzer.WithTracker(ctx, analyzer.NewTracker(opts.OnProgress))
	}
	s.logger.Debug("checking files", "count", len(files))
	return a.Analyze(ctx, files)
}

// FixOptions configures removal.
type FixOptions struct {
	// DryRun leaves files untouched and renders diffs instead.
	DryRun     bool
	OnProgress analyzer.ProgressFunc
}

// Fix removes the unused imports from files. Fixes for the files that
// succeeded are returned alongside the error for those that did not.
func (s *Service) Fix(ctx context.Context, files []string, opts FixOptions) ([]fix.FileFix, error) {
	// Fixing needs full verdicts, which cached results do not carry.
	a, err := s.build(false)
	if err != nil {
		return nil, err
	}
	defer a.Close()

	if opts.OnProgress != nil {
		ctx = analyzer.WithTracker(ctx, analyzer.NewTracker(opts.OnProgress))
	}
	s.logger.Debug("fixing files", "count", len(files), "dry_run", opts.DryRun)
	return fix.FixFiles(ctx, a, files, s.workers, fix.Options{
		Write: !opts.DryRun,
		Diff:  opts.DryRun,
	})
}

// CacheError indicates the cache directory could not be prepared.
type CacheError struct {
	Dir string
	Err error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache directory %s: %v", e.Dir, e.Err)
}

func (e *CacheError) Unwrap() error {
	return e.Err
}
