package main

import (
	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/pyprune/internal/output"
	"github.com/panbanda/pyprune/internal/service/analysis"
)

func fixCmd() *cli.Command {
	return &cli.Command{
		Name:      "fix",
		Usage:     "Remove unused imports",
		ArgsUsage: "[path...]",
		Description: `Rewrites files in place without their unused imports. Statements keep
their formatting; a block left empty gets "pass". Files that fail to parse
are reported and left untouched.

With --diff nothing is written; the unified diff of each change is printed
and the exit status is 1 when any file would change.

Examples:
  pyprune fix                    # Fix the current directory
  pyprune fix --diff src         # Preview the changes
  pyprune fix --changed          # Only files git reports as modified`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "diff",
				Usage: "Print a unified diff instead of writing files",
			},
			&cli.BoolFlag{
				Name:  "changed",
				Usage: "Only fix Python files modified or untracked in git",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "Print only the summary line",
			},
		},
		Action: runFixCmd,
	}
}

func runFixCmd(c *cli.Context) error {
	if err := rejectRemotes(getPaths(c)); err != nil {
		return err
	}
	s, err := newSession(c)
	if err != nil {
		return err
	}
	dryRun := c.Bool("diff")
	quiet := c.Bool("quiet")

	files, err := s.files(getPaths(c), c.Bool("changed"))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		color.Yellow("No Python files found")
		return nil
	}

	onProgress, stop := s.startProgress("Removing imports", len(files), quiet)
	fixes, err := s.service().Fix(c.Context, files, analysis.FixOptions{
		DryRun:     dryRun,
		OnProgress: onProgress,
	})
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

	report := &output.FixReport{Files: fixes, DryRun: dryRun, Quiet: quiet}
	if err := formatter.Output(report); err != nil {
		return err
	}

	if err := reportFileErrors(perrs); err != nil {
		return err
	}
	if dryRun && report.Totals().Removed > 0 {
		return errFindings
	}
	return nil
}
