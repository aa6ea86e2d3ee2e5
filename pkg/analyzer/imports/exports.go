package imports

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/panbanda/pyprune/pkg/parser"
)

// ExportNames returns the names listed in __all__, in first-seen order.
// Only string literals count; computed entries are ignored. Recognized
// forms are assignment, "+=", .extend([...]) and .append("x"). Only
// module-level code counts, including the suites of module-level compound
// statements; function and class bodies are skipped.
func ExportNames(root *sitter.Node, src []byte) []string {
	var names []string
	seen := make(map[string]bool)
	add := func(n *sitter.Node) {
		for _, name := range literalStrings(n, src) {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}

	parser.Walk(root, src, func(n *sitter.Node, src []byte) bool {
		switch n.Type() {
		case "function_definition", "class_definition", "lambda":
			return false
		case "assignment":
			if isAllName(n.ChildByFieldName("left"), src) {
				add(n.ChildByFieldName("right"))
			}
		case "augmented_assignment":
			if isAllName(n.ChildByFieldName("left"), src) && operator(n, src) == "+=" {
				add(n.ChildByFieldName("right"))
			}
		case "call":
			fn := n.ChildByFieldName("function")
			args := n.ChildByFieldName("arguments")
			if fn == nil || fn.Type() != "attribute" || args == nil || args.NamedChildCount() == 0 {
				return true
			}
			if !isAllName(fn.ChildByFieldName("object"), src) {
				return true
			}
			switch parser.GetNodeText(fn.ChildByFieldName("attribute"), src) {
			case "extend":
				add(args.NamedChild(0))
			case "append":
				if arg := args.NamedChild(0); arg.Type() == "string" {
					if s, ok := stringLiteral(parser.GetNodeText(arg, src)); ok && !seen[s] {
						seen[s] = true
						names = append(names, s)
					}
				}
			}
		}
		return true
	})
	return names
}

func isAllName(n *sitter.Node, src []byte) bool {
	return n != nil && n.Type() == "identifier" && parser.GetNodeText(n, src) == "__all__"
}

func operator(n *sitter.Node, src []byte) string {
	if op := n.ChildByFieldName("operator"); op != nil {
		return parser.GetNodeText(op, src)
	}
	return ""
}

// literalStrings returns the string literal elements of a list or tuple.
func literalStrings(n *sitter.Node, src []byte) []string {
	if n == nil || (n.Type() != "list" && n.Type() != "tuple") {
		return nil
	}
	var out []string
	for i := range int(n.NamedChildCount()) {
		c := n.NamedChild(i)
		if c.Type() != "string" {
			continue
		}
		if s, ok := stringLiteral(parser.GetNodeText(c, src)); ok {
			out = append(out, s)
		}
	}
	return out
}
