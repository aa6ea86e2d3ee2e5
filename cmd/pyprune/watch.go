package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/pyprune/pkg/analyzer/imports"
	"github.com/panbanda/pyprune/pkg/parser"
	"github.com/panbanda/pyprune/pkg/watch"
)

func watchCmd() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Watch for file changes and re-check",
		ArgsUsage: "[path]",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "debounce",
				Usage: "Wait this long after the last write before checking (default from config)",
			},
		},
		Action: runWatchCmd,
	}
}

func runWatchCmd(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}

	absPath, err := filepath.Abs(getPaths(c)[0])
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	if info, err := os.Stat(absPath); err != nil || !info.IsDir() {
		return fmt.Errorf("invalid path %s: not a directory", absPath)
	}

	debounce := time.Duration(s.config.Watch.DebounceMS) * time.Millisecond
	if c.IsSet("debounce") {
		debounce = c.Duration("debounce")
	}

	watcher, err := watch.NewWatcher(absPath, s.config, debounce)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Stop()

	a, err := s.service().Analyzer()
	if err != nil {
		return err
	}
	defer a.Close()

	// Callbacks run one at a time, so a single parser serves them all.
	psr := parser.New()
	defer psr.Close()

	ctx := c.Context
	watcher.SetCallback(func(changed string) {
		checkChanged(ctx, a, psr, absPath, changed)
	})
	watcher.SetErrorHandler(func(err error) {
		color.Red("Watch error: %v", err)
	})

	color.Cyan("Watching %s for changes (Ctrl+C to stop)", absPath)
	err = watcher.Start(ctx)
	if errors.Is(err, context.Canceled) {
		fmt.Println("\nStopping watch...")
		return nil
	}
	return err
}

// checkChanged re-checks one file and prints its findings.
func checkChanged(ctx context.Context, a *imports.Analyzer, psr *parser.Parser, root, path string) {
	display := path
	if rel, err := filepath.Rel(root, path); err == nil {
		display = rel
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := a.Forget(path); err != nil {
			color.Red("%s: %v", display, err)
			return
		}
		color.Cyan("%s: removed", display)
		return
	}

	result, err := a.AnalyzeFile(ctx, psr, path)
	if err != nil {
		color.Red("%s: %v", display, err)
		return
	}
	if len(result.Findings) == 0 {
		color.Green("%s: no unused imports", display)
		return
	}
	for _, f := range result.Findings {
		f.File = display
		color.Yellow("%s", f.Message())
	}
}
