package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/pyprune/internal/output"
	"github.com/panbanda/pyprune/internal/remote"
	"github.com/panbanda/pyprune/internal/service/analysis"
)

func checkCmd() *cli.Command {
	return &cli.Command{
		Name:      "check",
		Usage:     "Report unused imports",
		ArgsUsage: "[path...]",
		Description: `Reports every import binding that no code in its module can read.
Exits with status 1 when any unused import is found.

Examples:
  pyprune check                  # Check the current directory
  pyprune check src tests        # Check several trees
  pyprune check --changed        # Only files git reports as modified
  pyprune check --fix            # Remove what is found
  pyprune check psf/requests     # Clone a GitHub repository and check it
  pyprune -f json check src      # Machine-readable report`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "changed",
				Usage: "Only check Python files modified or untracked in git",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "Print only the summary line",
			},
			&cli.BoolFlag{
				Name:  "detailed",
				Usage: "Include notes and a per-reason breakdown",
			},
			&cli.BoolFlag{
				Name:  "fix",
				Usage: "Remove the unused imports (same as pyprune fix); local paths only",
			},
			&cli.BoolFlag{
				Name:  "diff",
				Usage: "With --fix, print a diff instead of writing files",
			},
			&cli.StringFlag{
				Name:  "ref",
				Usage: "Git ref (branch, tag, SHA) for remote repositories",
			},
			&cli.BoolFlag{
				Name:  "shallow",
				Usage: "Shallow clone (depth=1) for remote repositories",
			},
		},
		Action: runCheckCmd,
	}
}

func runCheckCmd(c *cli.Context) error {
	if c.Bool("fix") {
		return runFixCmd(c)
	}

	s, err := newSession(c)
	if err != nil {
		return err
	}
	quiet := c.Bool("quiet")

	paths, cleanup, err := checkoutRemotes(c.Context, getPaths(c), c.String("ref"), c.Bool("shallow"))
	if err != nil {
		return err
	}
	defer cleanup()

	files, err := s.files(paths, c.Bool("changed"))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		color.Yellow("No Python files found")
		return nil
	}

	onProgress, stop := s.startProgress("Checking imports", len(files), quiet)
	result, err := s.service().Check(c.Context, files, analysis.CheckOptions{OnProgress: onProgress})
	stop()
	perrs, err := splitErrors(err)
	if err != nil {
		return err
	}

	formatter, err := s.formatter(c)
	if err != nil {
		return err
	}
	defer formatter.Close()

	if err := formatter.Output(&output.CheckReport{
		Analysis: result,
		Quiet:    quiet,
		Detailed: c.Bool("detailed"),
	}); err != nil {
		return err
	}

	if err := reportFileErrors(perrs); err != nil {
		return err
	}
	if result.Summary.UnusedImports > 0 {
		return errFindings
	}
	return nil
}

// rejectRemotes fails when any path names a remote repository. Fixing a
// temporary checkout would discard the result.
func rejectRemotes(paths []string) error {
	for _, p := range paths {
		if src := remote.Parse(p); src != nil {
			return fmt.Errorf("cannot fix remote repository %s: fixes apply to local paths only", p)
		}
	}
	return nil
}

// checkoutRemotes clones every path that names a remote repository and
// substitutes the checkout. ref applies to remotes without an @ref suffix.
// The returned cleanup removes the checkouts.
func checkoutRemotes(ctx context.Context, paths []string, ref string, shallow bool) ([]string, func(), error) {
	var sources []*remote.Source
	cleanup := func() {
		for _, src := range sources {
			src.Cleanup()
		}
	}

	out := make([]string, len(paths))
	for i, p := range paths {
		src := remote.Parse(p)
		if src == nil {
			out[i] = p
			continue
		}
		if src.Ref == "" {
			src.Ref = ref
		}
		fmt.Fprintln(os.Stderr, color.CyanString("Cloning %s...", src.URL))
		if err := src.Clone(ctx, nil, shallow); err != nil {
			cleanup()
			return nil, func() {}, err
		}
		sources = append(sources, src)
		out[i] = src.CloneDir
	}
	return out, cleanup, nil
}
