package imports

import (
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/panbanda/pyprune/pkg/parser"
)

// pass selects which half of the analysis a walker performs. Both passes
// share one traversal so that scopes are opened at exactly the same nodes.
type pass int

const (
	passBind pass = iota
	passLoad
)

// walker is an explicit visitor over a tree-sitter Python tree. The current
// scope is threaded through the recursion in cur; enter and leave save and
// restore it.
type walker struct {
	pass  pass
	src   []byte
	model *Model

	cur          *Scope
	loopEnd      uint32
	inAnnotation bool

	onLoad   func(UsageRecord)
	onString func(*sitter.Node)

	err error
}

func (w *walker) text(n *sitter.Node) string {
	return parser.GetNodeText(n, w.src)
}

func (w *walker) fail(format string, args ...any) {
	if w.err == nil {
		w.err = &InvariantError{Detail: fmt.Sprintf(format, args...)}
	}
}

// enter opens the scope for n. In the bind pass the scope is created; in
// the load pass it is looked up.
func (w *walker) enter(kind ScopeKind, n *sitter.Node) (*Scope, uint32) {
	prev, prevLoop := w.cur, w.loopEnd
	var s *Scope
	if w.pass == passBind {
		s = w.model.newScope(kind, n, w.cur)
	} else {
		s = w.model.scopes[scopeKey{start: n.StartByte(), end: n.EndByte(), kind: kind}]
		if s == nil {
			w.fail("no %s scope recorded at line %d", kind, parser.Line(n))
			s = w.cur
		}
	}
	w.cur = s
	if kind == ScopeFunction || kind == ScopeLambda {
		w.loopEnd = 0
	}
	return prev, prevLoop
}

func (w *walker) leave(prev *Scope, prevLoop uint32) {
	w.cur = prev
	w.loopEnd = prevLoop
}

func (w *walker) bind(n *sitter.Node, kind BindingKind, effective uint32) *BindingEvent {
	if w.pass != passBind || n == nil {
		return nil
	}
	name := w.text(n)
	owner := w.cur.Owner(name)
	ev := w.model.addEvent(owner, name, kind, n, effective)
	ev.Remote = owner != w.cur
	return ev
}

func (w *walker) load(n *sitter.Node) {
	if w.pass != passLoad || w.onLoad == nil {
		return
	}
	w.onLoad(UsageRecord{
		Name:                w.text(n),
		Pos:                 position(n),
		Scope:               w.cur,
		IsAnnotationContext: w.inAnnotation,
		LoopEnd:             w.loopEnd,
	})
}

func (w *walker) children(n *sitter.Node) {
	if n == nil {
		return
	}
	for i := range int(n.NamedChildCount()) {
		w.visit(n.NamedChild(i))
	}
}

func (w *walker) visit(n *sitter.Node) {
	if n == nil {
		return
	}
	switch n.Type() {
	case "comment":
	case "import_statement":
		w.importStatement(n)
	case "import_from_statement":
		w.importFrom(n)
	case "future_import_statement":
		w.futureImport(n)
	case "decorated_definition":
		w.decorated(n)
	case "function_definition":
		w.function(n, n)
	case "class_definition":
		w.class(n, n)
	case "lambda":
		w.lambda(n)
	case "assignment":
		w.assignment(n)
	case "augmented_assignment":
		w.augmented(n)
	case "for_statement":
		w.forStatement(n)
	case "while_statement":
		outer := w.openLoop(n)
		w.children(n)
		w.closeLoop(outer)
	case "with_item":
		w.withItem(n)
	case "except_clause", "except_group_clause":
		w.exceptClause(n)
	case "named_expression":
		w.walrus(n)
	case "list_comprehension", "set_comprehension", "dictionary_comprehension", "generator_expression":
		w.comprehension(n)
	case "global_statement":
		w.declare(n, declGlobal)
	case "nonlocal_statement":
		w.declare(n, declNonlocal)
	case "identifier":
		w.load(n)
	case "dotted_name":
		w.visit(n.NamedChild(0))
	case "attribute":
		w.visit(n.ChildByFieldName("object"))
	case "keyword_argument":
		w.visit(n.ChildByFieldName("value"))
	case "call":
		w.call(n)
	case "subscript":
		w.subscript(n)
	case "string":
		if w.inAnnotation && w.onString != nil && w.pass == passLoad {
			w.onString(n)
		}
		w.children(n)
	case "type":
		w.annotate(n)
	default:
		w.children(n)
	}
}

// annotate visits n as a type annotation.
func (w *walker) annotate(n *sitter.Node) {
	if n == nil {
		return
	}
	prev := w.inAnnotation
	w.inAnnotation = true
	if n.Type() == "type" {
		w.children(n)
	} else {
		w.visit(n)
	}
	w.inAnnotation = prev
}

// plain visits n outside annotation context.
func (w *walker) plain(n *sitter.Node) {
	prev := w.inAnnotation
	w.inAnnotation = false
	w.visit(n)
	w.inAnnotation = prev
}

func (w *walker) openLoop(n *sitter.Node) bool {
	if w.loopEnd != 0 {
		return false
	}
	w.loopEnd = n.EndByte()
	return true
}

func (w *walker) closeLoop(outer bool) {
	if outer {
		w.loopEnd = 0
	}
}

func (w *walker) decorated(n *sitter.Node) {
	for i := range int(n.NamedChildCount()) {
		if c := n.NamedChild(i); c.Type() == "decorator" {
			w.children(c)
		}
	}
	def := n.ChildByFieldName("definition")
	if def == nil {
		return
	}
	switch def.Type() {
	case "function_definition":
		w.function(def, n)
	case "class_definition":
		w.class(def, n)
	default:
		w.visit(def)
	}
}

// function handles a def. Decorators, defaults and annotations belong to
// the enclosing scope; the name is bound there once the whole statement,
// outer included, has executed.
func (w *walker) function(n, outer *sitter.Node) {
	params := n.ChildByFieldName("parameters")
	w.visit(n.ChildByFieldName("type_parameters"))
	w.paramExprs(params)
	w.annotate(n.ChildByFieldName("return_type"))

	prev, loop := w.enter(ScopeFunction, n)
	w.paramNames(params, n.StartByte())
	w.visit(n.ChildByFieldName("body"))
	w.leave(prev, loop)

	w.bind(n.ChildByFieldName("name"), KindDef, outer.EndByte())
}

func (w *walker) class(n, outer *sitter.Node) {
	w.visit(n.ChildByFieldName("type_parameters"))
	w.visit(n.ChildByFieldName("superclasses"))

	prev, loop := w.enter(ScopeClass, n)
	w.visit(n.ChildByFieldName("body"))
	w.leave(prev, loop)

	w.bind(n.ChildByFieldName("name"), KindClass, outer.EndByte())
}

func (w *walker) lambda(n *sitter.Node) {
	params := n.ChildByFieldName("parameters")
	w.paramExprs(params)

	prev, loop := w.enter(ScopeLambda, n)
	w.paramNames(params, n.StartByte())
	w.visit(n.ChildByFieldName("body"))
	w.leave(prev, loop)
}

// paramParts splits one parameter into its bound pattern, annotation and
// default value.
func paramParts(p *sitter.Node) (name, annotation, value *sitter.Node) {
	switch p.Type() {
	case "identifier", "list_splat_pattern", "dictionary_splat_pattern", "tuple_pattern":
		return p, nil, nil
	case "typed_parameter":
		return p.NamedChild(0), p.ChildByFieldName("type"), nil
	case "default_parameter":
		return p.ChildByFieldName("name"), nil, p.ChildByFieldName("value")
	case "typed_default_parameter":
		return p.ChildByFieldName("name"), p.ChildByFieldName("type"), p.ChildByFieldName("value")
	}
	return nil, nil, nil
}

func (w *walker) paramExprs(params *sitter.Node) {
	if params == nil {
		return
	}
	for i := range int(params.NamedChildCount()) {
		_, annotation, value := paramParts(params.NamedChild(i))
		w.annotate(annotation)
		w.plain(value)
	}
}

func (w *walker) paramNames(params *sitter.Node, effective uint32) {
	if params == nil {
		return
	}
	for i := range int(params.NamedChildCount()) {
		if name, _, _ := paramParts(params.NamedChild(i)); name != nil {
			w.target(name, KindParameter, effective)
		}
	}
}

func (w *walker) assignment(n *sitter.Node) {
	left := n.ChildByFieldName("left")
	right := n.ChildByFieldName("right")
	typ := n.ChildByFieldName("type")

	w.annotate(typ)
	if right == nil {
		// "x: int" declares without binding.
		if left != nil && left.Type() != "identifier" {
			w.visit(left)
		}
		return
	}
	if typ != nil && lastSegment(w.text(typ)) == "TypeAlias" {
		w.annotate(right)
	} else {
		w.visit(right)
	}
	w.target(left, KindAssignment, n.EndByte())
}

func (w *walker) augmented(n *sitter.Node) {
	left := n.ChildByFieldName("left")
	w.visit(n.ChildByFieldName("right"))
	if left == nil {
		return
	}
	w.visit(left)
	if left.Type() == "identifier" {
		w.bind(left, KindAssignment, n.EndByte())
	}
}

func (w *walker) forStatement(n *sitter.Node) {
	left := n.ChildByFieldName("left")
	right := n.ChildByFieldName("right")
	w.visit(right)

	effective := n.StartByte()
	if right != nil {
		effective = right.EndByte()
	}
	outer := w.openLoop(n)
	w.target(left, KindLoopTarget, effective)
	w.visit(n.ChildByFieldName("body"))
	w.closeLoop(outer)
	w.visit(n.ChildByFieldName("alternative"))
}

func (w *walker) withItem(n *sitter.Node) {
	value := n.ChildByFieldName("value")
	if value != nil && value.Type() == "as_pattern" {
		w.visit(value.NamedChild(0))
		w.target(value.ChildByFieldName("alias"), KindWithTarget, n.EndByte())
		return
	}
	w.visit(value)
	w.target(n.ChildByFieldName("alias"), KindWithTarget, n.EndByte())
}

func (w *walker) exceptClause(n *sitter.Node) {
	var body *sitter.Node
	for i := range int(n.NamedChildCount()) {
		if c := n.NamedChild(i); c.Type() == "block" {
			body = c
		}
	}
	effective := n.EndByte()
	if body != nil {
		effective = body.StartByte()
	}

	afterAs := false
	for i := range int(n.ChildCount()) {
		c := n.Child(i)
		switch {
		case c.Type() == "block":
		case !c.IsNamed():
			if c.Type() == "as" {
				afterAs = true
			}
		case c.Type() == "as_pattern":
			w.visit(c.NamedChild(0))
			w.target(c.ChildByFieldName("alias"), KindExceptName, effective)
		case afterAs:
			w.target(c, KindExceptName, effective)
		default:
			w.visit(c)
		}
	}
	w.visit(body)
}

// walrus binds in the nearest enclosing scope that is not a comprehension.
func (w *walker) walrus(n *sitter.Node) {
	w.visit(n.ChildByFieldName("value"))
	name := n.ChildByFieldName("name")
	if w.pass != passBind || name == nil {
		return
	}
	s := w.cur
	for s.Kind == ScopeComprehension && s.Parent != nil {
		s = s.Parent
	}
	id := w.text(name)
	owner := s.Owner(id)
	ev := w.model.addEvent(owner, id, KindWalrus, name, n.EndByte())
	ev.Remote = owner != s
}

// forInParts returns the target and iterables of a for_in_clause.
func forInParts(c *sitter.Node) (*sitter.Node, []*sitter.Node) {
	var iterables []*sitter.Node
	seenIn := false
	for i := range int(c.ChildCount()) {
		ch := c.Child(i)
		if !ch.IsNamed() {
			if ch.Type() == "in" {
				seenIn = true
			}
			continue
		}
		if seenIn && ch.Type() != "comment" {
			iterables = append(iterables, ch)
		}
	}
	return c.ChildByFieldName("left"), iterables
}

// comprehension evaluates its first iterable in the enclosing scope and
// everything else in a scope of its own.
func (w *walker) comprehension(n *sitter.Node) {
	var clauses []*sitter.Node
	for i := range int(n.NamedChildCount()) {
		c := n.NamedChild(i)
		if c.Type() == "for_in_clause" || c.Type() == "if_clause" {
			clauses = append(clauses, c)
		}
	}

	first := true
	for _, c := range clauses {
		if c.Type() == "for_in_clause" {
			_, iterables := forInParts(c)
			for _, it := range iterables {
				w.visit(it)
			}
			break
		}
	}

	prev, loop := w.enter(ScopeComprehension, n)
	for _, c := range clauses {
		if c.Type() != "for_in_clause" {
			w.children(c)
			continue
		}
		left, iterables := forInParts(c)
		if !first {
			for _, it := range iterables {
				w.visit(it)
			}
		}
		first = false
		w.target(left, KindComprehensionTarget, n.StartByte())
	}
	w.visit(n.ChildByFieldName("body"))
	w.leave(prev, loop)
}

func (w *walker) declare(n *sitter.Node, d declaration) {
	if w.pass != passBind || w.cur.Kind == ScopeModule {
		return
	}
	for i := range int(n.NamedChildCount()) {
		if c := n.NamedChild(i); c.Type() == "identifier" {
			w.cur.declared[w.text(c)] = d
		}
	}
}

// target binds every name in an assignment-like pattern. Attribute and
// subscript targets bind nothing but load their operands.
func (w *walker) target(n *sitter.Node, kind BindingKind, effective uint32) {
	if n == nil {
		return
	}
	switch n.Type() {
	case "identifier":
		w.bind(n, kind, effective)
	case "as_pattern_target":
		if n.NamedChildCount() == 0 {
			w.bind(n, kind, effective)
			return
		}
		fallthrough
	case "pattern_list", "tuple_pattern", "list_pattern", "tuple", "list",
		"expression_list", "parenthesized_expression",
		"list_splat_pattern", "list_splat", "dictionary_splat_pattern":
		for i := range int(n.NamedChildCount()) {
			w.target(n.NamedChild(i), kind, effective)
		}
	case "comment":
	default:
		w.visit(n)
	}
}

// calleeName returns the final identifier of a callee or subscripted value,
// so both "cast" and "typing.cast" yield "cast".
func (w *walker) calleeName(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	switch n.Type() {
	case "identifier":
		return w.text(n)
	case "attribute":
		return w.text(n.ChildByFieldName("attribute"))
	}
	return ""
}

func (w *walker) call(n *sitter.Node) {
	fn := n.ChildByFieldName("function")
	args := n.ChildByFieldName("arguments")
	w.visit(fn)

	name := w.calleeName(fn)
	if name == "__import__" || name == "import_module" {
		w.model.note(w.pass, NoteDynamicImport, n, truncate(w.text(n), 60))
	}
	if args == nil || args.Type() != "argument_list" {
		w.visit(args)
		return
	}

	positional := 0
	for i := range int(args.NamedChildCount()) {
		a := args.NamedChild(i)
		switch {
		case a.Type() == "keyword_argument":
			value := a.ChildByFieldName("value")
			if name == "TypeVar" && w.text(a.ChildByFieldName("name")) == "bound" {
				w.annotate(value)
			} else {
				w.visit(value)
			}
		case a.Type() == "list_splat" || a.Type() == "dictionary_splat" || a.Type() == "comment":
			w.visit(a)
		default:
			switch {
			case name == "cast" && positional == 0:
				w.annotate(a)
			case name == "TypeVar" && positional > 0:
				w.annotate(a)
			default:
				w.visit(a)
			}
			positional++
		}
	}
}

// subscript applies the typing special forms: nothing inside Literal[...]
// is a type, and only the first element of Annotated[...] is.
func (w *walker) subscript(n *sitter.Node) {
	value := n.ChildByFieldName("value")
	w.visit(value)
	special := ""
	if w.inAnnotation {
		special = w.calleeName(value)
	}
	if special == "Literal" {
		return
	}
	index := 0
	for i := 1; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() == "comment" {
			continue
		}
		if special == "Annotated" && index > 0 {
			w.plain(c)
		} else {
			w.visit(c)
		}
		index++
	}
}

func lastSegment(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func position(n *sitter.Node) Position {
	return Position{
		Line:   parser.Line(n),
		Column: parser.Column(n),
		Offset: n.StartByte(),
	}
}

func span(n *sitter.Node) Span {
	end := n.EndPoint()
	return Span{
		Start: position(n),
		End: Position{
			Line:   int(end.Row) + 1,
			Column: int(end.Column) + 1,
			Offset: n.EndByte(),
		},
	}
}
