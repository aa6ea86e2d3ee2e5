package imports

import (
	"context"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/panbanda/pyprune/pkg/parser"
)

// FragmentParser parses detached snippets of Python such as the contents of
// a string annotation. *parser.Parser satisfies it.
type FragmentParser interface {
	ParseFragment(ctx context.Context, fragment []byte) *sitter.Node
}

// maxAnnotationDepth bounds strings nested inside string annotations.
const maxAnnotationDepth = 4

// stringLiteral returns the value of a plain string literal. Byte strings,
// f-strings and literals with escapes the fragment parser would misread
// are rejected.
func stringLiteral(raw string) (string, bool) {
	i := 0
	for i < len(raw) && strings.IndexByte("rRuUbBfF", raw[i]) >= 0 {
		i++
	}
	prefix := strings.ToLower(raw[:i])
	if strings.ContainsAny(prefix, "bf") {
		return "", false
	}
	body := raw[i:]
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if len(body) >= 2*len(q) && strings.HasPrefix(body, q) && strings.HasSuffix(body, q) {
			value := body[len(q) : len(body)-len(q)]
			if !strings.Contains(prefix, "r") && strings.Contains(value, `\`) {
				return "", false
			}
			return value, true
		}
	}
	return "", false
}

// annotationNames returns the root names a string annotation refers to.
// Unparseable content yields nothing.
func annotationNames(ctx context.Context, fp FragmentParser, content string, depth int) []string {
	if fp == nil || depth > maxAnnotationDepth || content == "" {
		return nil
	}
	if c := content[0]; c == ' ' || c == '\t' || c == '\n' || c == '\r' {
		return nil
	}
	frag := []byte("(" + content + "\n)")
	root := fp.ParseFragment(ctx, frag)
	if root == nil {
		return nil
	}
	c := &nameCollector{ctx: ctx, fp: fp, src: frag, depth: depth, annotation: true}
	c.visit(root)
	return c.names
}

// nameCollector gathers load names from a parsed annotation fragment. It
// applies the same special forms as the walker but has no scopes.
type nameCollector struct {
	ctx        context.Context
	fp         FragmentParser
	src        []byte
	depth      int
	annotation bool
	names      []string
}

func (c *nameCollector) text(n *sitter.Node) string {
	return parser.GetNodeText(n, c.src)
}

func (c *nameCollector) visit(n *sitter.Node) {
	if n == nil {
		return
	}
	switch n.Type() {
	case "identifier":
		c.names = append(c.names, c.text(n))
	case "attribute":
		c.visit(n.ChildByFieldName("object"))
	case "keyword_argument":
		c.visit(n.ChildByFieldName("value"))
	case "comment":
	case "string":
		if !c.annotation {
			return
		}
		if value, ok := stringLiteral(c.text(n)); ok {
			c.names = append(c.names, annotationNames(c.ctx, c.fp, value, c.depth+1)...)
		}
	case "subscript":
		value := n.ChildByFieldName("value")
		c.visit(value)
		special := ""
		if c.annotation && value != nil {
			special = lastSegment(c.text(value))
		}
		if special == "Literal" {
			return
		}
		for i := 1; i < int(n.NamedChildCount()); i++ {
			if special == "Annotated" && i > 1 {
				prev := c.annotation
				c.annotation = false
				c.visit(n.NamedChild(i))
				c.annotation = prev
				continue
			}
			c.visit(n.NamedChild(i))
		}
	default:
		for i := range int(n.NamedChildCount()) {
			c.visit(n.NamedChild(i))
		}
	}
}

var (
	typeCommentRe = regexp.MustCompile(`^#\s*type:\s*(.+?)\s*$`)
	typeIgnoreRe  = regexp.MustCompile(`^ignore\b`)
	starArgRe     = regexp.MustCompile(`\*{1,2}`)
)

// typeCommentExpr extracts the expression carried by a "# type:" comment.
// Function signature comments "(int, str) -> bool" are flattened into one
// tuple of their argument and return types.
func typeCommentExpr(comment string) (string, bool) {
	m := typeCommentRe.FindStringSubmatch(comment)
	if m == nil {
		return "", false
	}
	body := m[1]
	if typeIgnoreRe.MatchString(body) {
		return "", false
	}
	if i := strings.IndexByte(body, '#'); i >= 0 {
		body = strings.TrimSpace(body[:i])
	}
	if strings.HasPrefix(body, "(") {
		if i := strings.LastIndex(body, "->"); i >= 0 {
			args := starArgRe.ReplaceAllString(body[:i], "")
			body = strings.TrimSpace(args) + ", " + strings.TrimSpace(body[i+2:])
		}
	}
	if body == "" {
		return "", false
	}
	return body, true
}
