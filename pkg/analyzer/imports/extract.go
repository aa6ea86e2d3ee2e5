package imports

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/panbanda/pyprune/pkg/parser"
)

// Model is the output of the binding pass: the scope tree with every binding
// event, plus the import statements found along the way.
type Model struct {
	Module     *Scope
	Events     []*BindingEvent
	Imports    []*ImportBinding
	Statements []*ImportStatement
	Notes      []Note

	scopes map[scopeKey]*Scope
	nextID int
}

func newModel(root *sitter.Node) *Model {
	m := &Model{scopes: make(map[scopeKey]*Scope)}
	m.Module = m.newScope(ScopeModule, root, nil)
	return m
}

func (m *Model) newScope(kind ScopeKind, n *sitter.Node, parent *Scope) *Scope {
	s := newScope(m.nextID, kind, n.StartByte(), n.EndByte(), parent)
	m.nextID++
	m.scopes[scopeKey{start: s.Start, end: s.End, kind: kind}] = s
	return s
}

func (m *Model) addEvent(s *Scope, name string, kind BindingKind, n *sitter.Node, effective uint32) *BindingEvent {
	ev := &BindingEvent{
		ID:        len(m.Events),
		Name:      name,
		Kind:      kind,
		Pos:       position(n),
		Effective: effective,
		Scope:     s,
	}
	s.add(ev)
	m.Events = append(m.Events, ev)
	return ev
}

func (m *Model) note(p pass, kind NoteKind, n *sitter.Node, detail string) {
	if p != passBind {
		return
	}
	m.Notes = append(m.Notes, Note{Kind: kind, Line: parser.Line(n), Detail: detail})
}

// Scopes returns every scope in depth-first order.
func (m *Model) Scopes() []*Scope {
	var out []*Scope
	m.Module.walk(func(s *Scope) { out = append(out, s) })
	return out
}

// Extract runs the binding pass over a parsed module.
func Extract(root *sitter.Node, src []byte) (*Model, error) {
	m := newModel(root)
	w := &walker{pass: passBind, src: src, model: m, cur: m.Module}
	w.children(root)
	if w.err != nil {
		return nil, w.err
	}
	m.Module.sortBindings()
	return m, nil
}

func (w *walker) importStatement(n *sitter.Node) {
	if w.pass != passBind {
		return
	}
	stmt := w.newStatement(n, StatementImport, "")
	for i := range int(n.NamedChildCount()) {
		c := n.NamedChild(i)
		switch c.Type() {
		case "dotted_name":
			path := compact(w.text(c))
			w.addImport(stmt, c, path, path, "", firstSegment(path))
		case "aliased_import":
			path := compact(w.text(c.ChildByFieldName("name")))
			alias := w.text(c.ChildByFieldName("alias"))
			w.addImport(stmt, c, path, path, alias, alias)
		}
	}
}

func (w *walker) importFrom(n *sitter.Node) {
	if w.pass != passBind {
		return
	}
	moduleNode := n.ChildByFieldName("module_name")
	module := compact(w.text(moduleNode))
	kind := StatementFrom
	if module == "__future__" {
		kind = StatementFuture
	}
	stmt := w.newStatement(n, kind, module)
	w.fromNames(stmt, n, moduleNode, module)
}

func (w *walker) futureImport(n *sitter.Node) {
	if w.pass != passBind {
		return
	}
	stmt := w.newStatement(n, StatementFuture, "__future__")
	w.fromNames(stmt, n, nil, "__future__")
}

func (w *walker) fromNames(stmt *ImportStatement, n, moduleNode *sitter.Node, module string) {
	for i := range int(n.NamedChildCount()) {
		c := n.NamedChild(i)
		if moduleNode != nil && c.StartByte() == moduleNode.StartByte() && c.EndByte() == moduleNode.EndByte() {
			continue
		}
		switch c.Type() {
		case "wildcard_import":
			b := w.newBinding(stmt, c, module, "*", "", "*")
			b.IsStar = true
			w.model.note(w.pass, NoteStarImport, n, "from "+module+" import *")
		case "dotted_name":
			name := compact(w.text(c))
			w.addImport(stmt, c, module, name, "", name)
		case "aliased_import":
			name := compact(w.text(c.ChildByFieldName("name")))
			alias := w.text(c.ChildByFieldName("alias"))
			w.addImport(stmt, c, module, name, alias, alias)
		}
	}
}

// newStatement records an import statement together with the suite that
// holds it, which the fixer needs to keep blocks non-empty.
func (w *walker) newStatement(n *sitter.Node, kind StatementKind, module string) *ImportStatement {
	stmt := &ImportStatement{Kind: kind, Module: module, Span: span(n)}
	if parent := n.Parent(); parent != nil {
		stmt.Block = Block{Start: parent.StartByte(), Module: parent.Type() == "module"}
		for i := range int(parent.NamedChildCount()) {
			if parent.NamedChild(i).Type() != "comment" {
				stmt.Block.Statements++
			}
		}
	}
	w.model.Statements = append(w.model.Statements, stmt)
	return stmt
}

func (w *walker) newBinding(stmt *ImportStatement, n *sitter.Node, module, imported, alias, local string) *ImportBinding {
	b := &ImportBinding{
		ID:            len(w.model.Imports),
		ModulePath:    module,
		ImportedName:  imported,
		LocalName:     local,
		Alias:         alias,
		IsFuture:      stmt.Kind == StatementFuture,
		IsFrom:        stmt.Kind != StatementImport,
		StatementSpan: stmt.Span,
		NameSpan:      span(n),
		Source:        strings.Join(strings.Fields(w.text(n)), " "),
		Statement:     stmt,
		Scope:         w.cur.Owner(local),
	}
	stmt.Bindings = append(stmt.Bindings, b)
	w.model.Imports = append(w.model.Imports, b)
	return b
}

// addImport creates an import binding. Imports take effect once the whole
// statement has executed. Future imports bind nothing.
func (w *walker) addImport(stmt *ImportStatement, n *sitter.Node, module, imported, alias, local string) {
	b := w.newBinding(stmt, n, module, imported, alias, local)
	if b.IsFuture {
		return
	}
	ev := w.model.addEvent(b.Scope, local, KindImport, n, stmt.Span.End.Offset)
	ev.Import = b
	ev.Remote = b.Scope != w.cur
}

// compact removes the whitespace tree-sitter tolerates inside dotted names.
func compact(s string) string {
	return strings.Join(strings.Fields(s), "")
}

func firstSegment(path string) string {
	if i := strings.IndexByte(path, '.'); i >= 0 {
		return path[:i]
	}
	return path
}
