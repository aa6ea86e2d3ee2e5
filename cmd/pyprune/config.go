package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/pyprune/pkg/config"
)

func configCmd() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Configuration management commands",
		Subcommands: []*cli.Command{
			{
				Name:  "validate",
				Usage: "Validate a configuration file",
				Description: `Validates a pyprune configuration file against its schema, reporting
syntax errors, unknown keys and invalid values.

Examples:
  pyprune config validate                     # Validates default config locations
  pyprune -c pyprune.toml config validate     # Validates specific file`,
				Action: runConfigValidate,
			},
			{
				Name:  "show",
				Usage: "Show the effective configuration",
				Description: `Shows the merged configuration from defaults and config file as TOML.

Examples:
  pyprune config show                         # Show effective config
  pyprune -c pyprune.toml config show         # Show config from specific file`,
				Action: runConfigShow,
			},
			{
				Name:      "init",
				Usage:     "Write a default configuration file",
				ArgsUsage: "[path]",
				Description: `Creates pyprune.toml (or the given path) with the default settings.

Examples:
  pyprune config init                         # Creates pyprune.toml
  pyprune config init .pyprune/pyprune.toml   # Creates config in .pyprune
  pyprune config init --force                 # Overwrite existing config file`,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite existing config file",
					},
				},
				Action: runConfigInit,
			},
		},
	}
}

func runConfigValidate(c *cli.Context) error {
	path := c.String("config")
	if path == "" {
		path = config.Find(".", ".pyprune")
	}
	if path == "" {
		color.Yellow("No config file found. Default configuration is valid.")
		return nil
	}

	if _, err := config.ValidateFile(path); err != nil {
		color.Red("Configuration validation failed:")
		fmt.Printf("  - %s\n", err)
		return err
	}
	color.Green("Configuration valid: %s", path)
	return nil
}

func runConfigShow(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	return showConfig(os.Stdout, s.config, s.source)
}

func showConfig(w io.Writer, cfg *config.Config, source string) error {
	if source != "" {
		fmt.Fprintf(w, "# Configuration from: %s\n\n", source)
	} else {
		fmt.Fprintln(w, "# Default configuration (no config file found)")
	}

	content, err := cfg.TOML()
	if err != nil {
		return err
	}
	_, err = w.Write(content)
	return err
}

func runConfigInit(c *cli.Context) error {
	outputPath := "pyprune.toml"
	if c.Args().Len() > 0 {
		outputPath = c.Args().First()
	}
	if err := writeDefaultConfig(outputPath, c.Bool("force")); err != nil {
		return err
	}

	color.Green("Created %s", outputPath)
	fmt.Println("Edit this file to customize pyprune settings.")
	return nil
}

func writeDefaultConfig(outputPath string, force bool) error {
	if _, err := os.Stat(outputPath); err == nil && !force {
		return fmt.Errorf("config file %q already exists (use --force to overwrite)", outputPath)
	}

	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %q: %w", dir, err)
		}
	}

	content, err := config.DefaultFile()
	if err != nil {
		return err
	}
	if err := os.WriteFile(outputPath, content, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
