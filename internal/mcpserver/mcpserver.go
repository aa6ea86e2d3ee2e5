package mcpserver

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/panbanda/pyprune/pkg/config"
)

// Server wraps the MCP server and registers the pyprune tools.
type Server struct {
	server *mcp.Server
	config *config.Config
	logger *slog.Logger
}

// NewServer creates a new MCP server with all pyprune tools registered.
// A nil cfg falls back to the config file in the working directory.
func NewServer(version string, cfg *config.Config) *Server {
	if version == "" {
		version = "dev"
	}
	if cfg == nil {
		cfg = config.LoadOrDefault()
	}
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "pyprune",
			Version: version,
		},
		nil,
	)

	s := &Server{
		server: server,
		config: cfg,
		logger: slog.New(slog.DiscardHandler),
	}
	s.registerTools()
	s.registerPrompts()
	return s
}

// SetLogger routes analyzer debug output. Stdout carries the protocol, so
// the logger must write elsewhere.
func (s *Server) SetLogger(l *slog.Logger) {
	s.logger = l
}

// Run starts the MCP server over stdio transport.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// tools lists the pyprune tools in registration order.
func tools() []*mcp.Tool {
	return []*mcp.Tool{
		{Name: "find_unused_imports", Description: describeFindUnused()},
		// Preview only: the diff is returned, files are never written.
		{Name: "fix_unused_imports", Description: describeFixUnused()},
	}
}

// registerTools adds the pyprune tools to the server.
func (s *Server) registerTools() {
	handlers := map[string]mcp.ToolHandlerFor[AnalyzeInput, any]{
		"find_unused_imports": s.handleFindUnused,
		"fix_unused_imports":  s.handleFixUnused,
	}
	for _, tool := range tools() {
		mcp.AddTool(s.server, tool, handlers[tool.Name])
	}
}
