package parser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// ErrParse is the sentinel wrapped by every ParseError.
var ErrParse = errors.New("parse error")

// ParseError reports malformed Python source. Analysis of the file stops
// and the file is never rewritten.
type ParseError struct {
	Path   string
	Line   int
	Column int
	Msg    string
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("line %d, column %d: %s", e.Line, e.Column, e.Msg)
	}
	return fmt.Sprintf("%s:%d:%d: %s", e.Path, e.Line, e.Column, e.Msg)
}

// Unwrap lets callers match with errors.Is(err, ErrParse).
func (e *ParseError) Unwrap() error {
	return ErrParse
}

// Parser wraps a tree-sitter parser configured for Python.
// A Parser is not safe for concurrent use; create one per goroutine.
type Parser struct {
	parser *sitter.Parser
}

// ParseResult contains the parsed AST and metadata.
type ParseResult struct {
	Tree   *sitter.Tree
	Source []byte
	Path   string
}

// Root returns the module node of the parsed tree.
func (r *ParseResult) Root() *sitter.Node {
	return r.Tree.RootNode()
}

// New creates a new parser instance.
func New() *Parser {
	p := sitter.NewParser()
	p.SetLanguage(python.GetLanguage())
	return &Parser{parser: p}
}

// ParseFile reads and parses a Python source file.
func (p *Parser) ParseFile(ctx context.Context, path string) (*ParseResult, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if !IsPython(path) {
		return nil, fmt.Errorf("unsupported file type: %s", path)
	}
	return p.Parse(ctx, source, path)
}

// Parse parses source and rejects trees containing syntax errors.
func (p *Parser) Parse(ctx context.Context, source []byte, path string) (*ParseResult, error) {
	tree, err := p.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse: %w", err)
	}
	if perr := firstError(tree.RootNode()); perr != nil {
		perr.Path = path
		return nil, perr
	}
	return &ParseResult{
		Tree:   tree,
		Source: source,
		Path:   path,
	}, nil
}

// ParseFragment parses a standalone snippet such as the contents of a string
// annotation. It returns nil when the snippet is not valid Python.
func (p *Parser) ParseFragment(ctx context.Context, fragment []byte) *sitter.Node {
	tree, err := p.parser.ParseCtx(ctx, nil, fragment)
	if err != nil {
		return nil
	}
	root := tree.RootNode()
	if root.HasError() {
		return nil
	}
	return root
}

// Close releases parser resources.
func (p *Parser) Close() {
	p.parser.Close()
}

// IsPython reports whether path names a Python source or stub file.
func IsPython(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".py", ".pyi":
		return true
	default:
		return false
	}
}

// firstError locates the earliest ERROR or MISSING node.
func firstError(root *sitter.Node) *ParseError {
	if root == nil || !root.HasError() {
		return nil
	}
	var found *ParseError
	Walk(root, nil, func(node *sitter.Node, _ []byte) bool {
		if found != nil {
			return false
		}
		if node.Type() == "ERROR" || node.IsMissing() {
			msg := "invalid syntax"
			if node.IsMissing() {
				msg = fmt.Sprintf("missing %q", node.Type())
			}
			found = &ParseError{
				Line:   Line(node),
				Column: Column(node),
				Msg:    msg,
			}
			return false
		}
		return node.HasError()
	})
	if found == nil {
		found = &ParseError{Line: 1, Column: 1, Msg: "invalid syntax"}
	}
	return found
}

// NodeVisitor is a function that visits AST nodes.
type NodeVisitor func(node *sitter.Node, source []byte) bool

// Walk traverses the AST calling visitor for each node.
// Returning false from the visitor skips the node's children.
func Walk(node *sitter.Node, source []byte, visitor NodeVisitor) {
	if node == nil {
		return
	}
	if !visitor(node, source) {
		return
	}
	for i := range int(node.ChildCount()) {
		Walk(node.Child(i), source, visitor)
	}
}

// FindNodesByType returns all nodes of a specific type in document order.
func FindNodesByType(root *sitter.Node, source []byte, nodeType string) []*sitter.Node {
	var results []*sitter.Node
	Walk(root, source, func(node *sitter.Node, _ []byte) bool {
		if node.Type() == nodeType {
			results = append(results, node)
		}
		return true
	})
	return results
}

// GetNodeText extracts the source text for a node.
// Returns empty string if node is nil or byte offsets are out of bounds.
func GetNodeText(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	start := node.StartByte()
	end := node.EndByte()
	if start > end || end > uint32(len(source)) {
		return ""
	}
	return string(source[start:end])
}

// Line returns the 1-based line a node starts on.
func Line(node *sitter.Node) int {
	return int(node.StartPoint().Row) + 1
}

// EndLine returns the 1-based line a node ends on.
func EndLine(node *sitter.Node) int {
	return int(node.EndPoint().Row) + 1
}

// Column returns the 1-based column a node starts at.
func Column(node *sitter.Node) int {
	return int(node.StartPoint().Column) + 1
}
