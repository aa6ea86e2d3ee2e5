package main

import (
	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
)

func cacheCmd() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Result cache management commands",
		Subcommands: []*cli.Command{
			{
				Name:      "clear",
				Usage:     "Remove cached results",
				ArgsUsage: "[path...]",
				Description: `Removes the result cache directory, or only the entries for the Python
files under the given paths.

Examples:
  pyprune cache clear                         # Remove every cached result
  pyprune cache clear src/app.py              # Forget one file
  pyprune -c pyprune.toml cache clear         # Cache directory from a config file`,
				Action: runCacheClear,
			},
		},
	}
}

func runCacheClear(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}

	var files []string
	if c.Args().Len() > 0 {
		files, err = s.files(c.Args().Slice(), false)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			color.Yellow("No Python files found")
			return nil
		}
	}

	if err := s.service().ClearCache(files); err != nil {
		return err
	}
	if len(files) == 0 {
		color.Green("Cleared cache at %s", s.config.Cache.Dir)
	} else {
		color.Green("Cleared cached results for %d file(s)", len(files))
	}
	return nil
}
