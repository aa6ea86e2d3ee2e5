package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/pyprune/internal/fileproc"
	"github.com/panbanda/pyprune/internal/output"
	"github.com/panbanda/pyprune/internal/progress"
	"github.com/panbanda/pyprune/internal/service/analysis"
	scannerSvc "github.com/panbanda/pyprune/internal/service/scanner"
	"github.com/panbanda/pyprune/pkg/analyzer"
	"github.com/panbanda/pyprune/pkg/config"
)

var (
	version = "dev"
	commit  = "none"    //nolint:unused // set via ldflags at build time
	date    = "unknown" //nolint:unused // set via ldflags at build time
)

// errFindings ends a successful run that found unused imports. It maps to
// exit status 1 without an error message.
var errFindings = errors.New("unused imports found")

// getPaths returns paths from positional args, defaulting to ["."]
func getPaths(c *cli.Context) []string {
	if c.Args().Len() > 0 {
		return c.Args().Slice()
	}
	return []string{"."}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "pyprune",
		Usage:   "Find and remove unused Python imports",
		Version: version,
		Description: `pyprune reports import bindings that no code in the module can ever read,
and removes them. Names are resolved through Python's scoping rules, so
imports shadowed before use, names only used in string annotations or type
comments, and names re-exported through __all__ are all handled.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (TOML, YAML, or JSON)",
				EnvVars: []string{"PYPRUNE_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text, json, markdown, toon, yaml (default from config)",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write output to file",
			},
			&cli.BoolFlag{
				Name:  "no-cache",
				Usage: "Disable caching",
			},
			&cli.BoolFlag{
				Name:  "no-color",
				Usage: "Disable colored output",
			},
			&cli.IntFlag{
				Name:  "jobs",
				Usage: "Files processed in parallel (0 = 2x CPU count)",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable verbose output",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("no-color") {
				color.NoColor = true
			}
			return nil
		},
		Commands: []*cli.Command{
			checkCmd(),
			fixCmd(),
			watchCmd(),
			configCmd(),
			cacheCmd(),
			mcpCmd(),
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		if !errors.Is(err, errFindings) {
			color.Red("Error: %v", err)
		}
		stop()
		os.Exit(1)
	}
}

// session carries what every command derives from the global flags.
type session struct {
	config  *config.Config
	source  string
	logger  *slog.Logger
	noCache bool
	workers int
}

// newSession loads the configuration and applies global flag overrides.
func newSession(c *cli.Context) (*session, error) {
	var opts []config.LoadOption
	if path := c.String("config"); path != "" {
		opts = append(opts, config.WithPath(path))
	}
	result, err := config.LoadConfig(opts...)
	if err != nil {
		return nil, err
	}
	cfg := result.Config

	if c.IsSet("format") {
		cfg.Output.Format = c.String("format")
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	if c.Bool("no-color") {
		cfg.Output.Color = false
	}
	if c.Bool("verbose") {
		cfg.Output.Verbose = true
	}

	s := &session{
		config:  cfg,
		source:  result.Source,
		logger:  newLogger(cfg.Output.Verbose),
		noCache: c.Bool("no-cache"),
		workers: c.Int("jobs"),
	}
	if s.source != "" {
		s.logger.Debug("loaded config", "path", s.source)
	}
	return s, nil
}

// newLogger writes diagnostics to stderr: warnings by default, everything
// when verbose.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func (s *session) service() *analysis.Service {
	opts := []analysis.Option{
		analysis.WithConfig(s.config),
		analysis.WithLogger(s.logger),
		analysis.WithWorkers(s.workers),
	}
	if s.noCache {
		opts = append(opts, analysis.WithoutCache())
	}
	return analysis.New(opts...)
}

// files resolves paths to the Python files to process, optionally only
// those git reports as changed.
func (s *session) files(paths []string, changedOnly bool) ([]string, error) {
	svc := scannerSvc.New(scannerSvc.WithConfig(s.config))

	var (
		result *scannerSvc.ScanResult
		err    error
	)
	if changedOnly {
		result, err = svc.ScanChanged(paths)
	} else {
		result, err = svc.ScanPaths(paths)
	}
	if err != nil {
		return nil, err
	}
	if result.Oversized > 0 {
		s.logger.Warn("skipped files over size limit",
			"count", result.Oversized,
			"max_file_size", s.config.Check.MaxFileSize)
	}
	return result.Files, nil
}

func (s *session) formatter(c *cli.Context) (*output.Formatter, error) {
	return output.NewFormatter(output.ParseFormat(s.config.Output.Format), c.String("output"), s.config.Output.Color && !color.NoColor)
}

// startProgress shows a progress bar on an interactive stderr when the
// report is human-readable text. The returned stop func is always safe to
// call.
func (s *session) startProgress(label string, total int, quiet bool) (analyzer.ProgressFunc, func()) {
	if quiet || total < 2 || output.ParseFormat(s.config.Output.Format) != output.FormatText || !progress.IsTerminal(os.Stderr) {
		return nil, func() {}
	}
	tracker := progress.NewTracker(label, total)
	return tracker.Update, tracker.FinishSuccess
}

// splitErrors separates per-file failures, which are reported while the
// run continues, from errors that abort it.
func splitErrors(err error) (*fileproc.ProcessingErrors, error) {
	if err == nil {
		return nil, nil
	}
	var perrs *fileproc.ProcessingErrors
	if errors.As(err, &perrs) {
		return perrs, nil
	}
	return nil, err
}

// reportFileErrors prints one line per file that could not be processed
// and returns an error summarizing them, or nil.
func reportFileErrors(perrs *fileproc.ProcessingErrors) error {
	if perrs == nil || !perrs.HasErrors() {
		return nil
	}
	for _, e := range perrs.Errors {
		fmt.Fprintln(os.Stderr, color.RedString("%s: %v", e.Path, e.Err))
	}
	return fmt.Errorf("%d file(s) could not be processed", len(perrs.Errors))
}
