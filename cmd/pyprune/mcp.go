package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/pyprune/internal/mcpserver"
)

func mcpCmd() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Start MCP (Model Context Protocol) server for LLM tool integration",
		Description: `Starts an MCP server over stdio transport that exposes pyprune as tools
LLMs can invoke.

To use with Claude Desktop, add to your config:
  {
    "mcpServers": {
      "pyprune": {
        "command": "pyprune",
        "args": ["mcp"]
      }
    }
  }

Available tools:
  - find_unused_imports   Report unused imports
  - fix_unused_imports    Preview their removal as a diff`,
		Action: runMCPCmd,
		Subcommands: []*cli.Command{
			{
				Name:  "manifest",
				Usage: "Print the server.json manifest for MCP registries",
				Action: func(c *cli.Context) error {
					data, err := mcpserver.GenerateManifest(version)
					if err != nil {
						return err
					}
					fmt.Println(string(data))
					return nil
				},
			},
		},
	}
}

func runMCPCmd(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	server := mcpserver.NewServer(version, s.config)
	server.SetLogger(s.logger)
	return server.Run(c.Context)
}
