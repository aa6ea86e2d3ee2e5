package mcpserver

import (
	"bytes"
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/panbanda/pyprune/internal/fileproc"
	"github.com/panbanda/pyprune/internal/output"
	"github.com/panbanda/pyprune/internal/service/analysis"
	scannerSvc "github.com/panbanda/pyprune/internal/service/scanner"
	"github.com/panbanda/pyprune/pkg/config"
)

// AnalyzeInput is the input shared by the pyprune tools.
type AnalyzeInput struct {
	Paths         []string `json:"paths,omitempty" jsonschema:"Files or directories to check. Defaults to current directory if empty."`
	Format        string   `json:"format,omitempty" jsonschema:"Output format: toon (default), json, yaml, markdown, or text."`
	IgnoreModules []string `json:"ignore_modules,omitempty" jsonschema:"Modules whose imports are never reported, in addition to the configured ones."`
}

// Helper functions

func getPaths(input AnalyzeInput) []string {
	if len(input.Paths) == 0 {
		return []string{"."}
	}
	return input.Paths
}

func getFormat(input AnalyzeInput) output.Format {
	if input.Format == "" {
		return output.FormatTOON
	}
	return output.ParseFormat(input.Format)
}

// configFor layers per-call options over the server config without
// mutating it.
func (s *Server) configFor(input AnalyzeInput) *config.Config {
	cfg := *s.config
	cfg.Check.IgnoreModules = append(append([]string{}, s.config.Check.IgnoreModules...), input.IgnoreModules...)
	return &cfg
}

func formatOutput(data any, format output.Format) (string, error) {
	var buf bytes.Buffer
	if err := output.NewWriterFormatter(format, &buf, false).Output(data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func toolResult(data any, format output.Format) (*mcp.CallToolResult, any, error) {
	text, err := formatOutput(data, format)
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}, nil, nil
}

func toolError(msg string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "Error: " + msg},
		},
		IsError: true,
	}, nil, nil
}

// scan resolves the input paths to Python files.
func (s *Server) scan(cfg *config.Config, input AnalyzeInput) ([]string, *mcp.CallToolResult) {
	result, err := scannerSvc.New(scannerSvc.WithConfig(cfg)).ScanPaths(getPaths(input))
	if err != nil {
		res, _, _ := toolError(err.Error())
		return nil, res
	}
	if len(result.Files) == 0 {
		res, _, _ := toolError("no Python files found")
		return nil, res
	}
	return result.Files, nil
}

// partial reports whether err only lists per-file failures, in which case
// the rest of the result is still worth returning.
func partial(err error) bool {
	var perrs *fileproc.ProcessingErrors
	return errors.As(err, &perrs)
}

// Tool handlers

func (s *Server) handleFindUnused(ctx context.Context, req *mcp.CallToolRequest, input AnalyzeInput) (*mcp.CallToolResult, any, error) {
	cfg := s.configFor(input)
	files, errResult := s.scan(cfg, input)
	if errResult != nil {
		return errResult, nil, nil
	}

	svc := analysis.New(analysis.WithConfig(cfg), analysis.WithLogger(s.logger))
	result, err := svc.Check(ctx, files, analysis.CheckOptions{})
	if err != nil && !partial(err) {
		return toolError(err.Error())
	}
	if err != nil {
		s.logger.Warn("some files were not analyzed", "error", err)
	}

	return toolResult(&output.CheckReport{Analysis: result}, getFormat(input))
}

func (s *Server) handleFixUnused(ctx context.Context, req *mcp.CallToolRequest, input AnalyzeInput) (*mcp.CallToolResult, any, error) {
	cfg := s.configFor(input)
	files, errResult := s.scan(cfg, input)
	if errResult != nil {
		return errResult, nil, nil
	}

	svc := analysis.New(analysis.WithConfig(cfg), analysis.WithLogger(s.logger))
	fixes, err := svc.Fix(ctx, files, analysis.FixOptions{DryRun: true})
	if err != nil && !partial(err) {
		return toolError(err.Error())
	}
	if err != nil {
		s.logger.Warn("some files were not fixed", "error", err)
	}

	return toolResult(&output.FixReport{Files: fixes, DryRun: true}, getFormat(input))
}
