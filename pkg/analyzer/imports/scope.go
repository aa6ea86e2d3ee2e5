package imports

import "sort"

// declaration records a global or nonlocal statement.
type declaration int

const (
	declGlobal declaration = iota + 1
	declNonlocal
)

// Scope is one lexical scope. Children are owned by their parent; Parent is
// only used for lookups.
type Scope struct {
	ID       int       `json:"id"`
	Kind     ScopeKind `json:"kind"`
	Start    uint32    `json:"start"`
	End      uint32    `json:"end"`
	Parent   *Scope    `json:"-"`
	Children []*Scope  `json:"children,omitempty"`

	bindings map[string][]*BindingEvent
	declared map[string]declaration
}

func newScope(id int, kind ScopeKind, start, end uint32, parent *Scope) *Scope {
	s := &Scope{
		ID:       id,
		Kind:     kind,
		Start:    start,
		End:      end,
		Parent:   parent,
		bindings: make(map[string][]*BindingEvent),
		declared: make(map[string]declaration),
	}
	if parent != nil {
		parent.Children = append(parent.Children, s)
	}
	return s
}

func (s *Scope) add(ev *BindingEvent) {
	s.bindings[ev.Name] = append(s.bindings[ev.Name], ev)
}

// Local returns the bindings of name owned by this scope in effective order.
// Names declared global or nonlocal here have no local bindings.
func (s *Scope) Local(name string) []*BindingEvent {
	if _, ok := s.declared[name]; ok {
		return nil
	}
	return s.bindings[name]
}

// Owner returns the scope that a binding of name made in s belongs to. A
// global declaration sends it to the module. A nonlocal declaration sends it
// to the nearest enclosing function that binds the name, or the nearest
// enclosing function when none has bound it yet.
func (s *Scope) Owner(name string) *Scope {
	for {
		d, ok := s.declared[name]
		if !ok {
			return s
		}
		if d == declGlobal {
			return s.Module()
		}
		s = s.enclosingBinder(name)
	}
}

// enclosingBinder finds the function scope a nonlocal name refers to.
// Class scopes are never part of the chain.
func (s *Scope) enclosingBinder(name string) *Scope {
	var nearest *Scope
	for p := s.Parent; p != nil; p = p.Parent {
		if !p.Kind.isFunctionLike() {
			continue
		}
		if nearest == nil {
			nearest = p
		}
		if _, declared := p.declared[name]; declared || len(p.bindings[name]) > 0 {
			return p
		}
	}
	if nearest == nil {
		return s.Module()
	}
	return nearest
}

// Names returns the locally bound names in sorted order.
func (s *Scope) Names() []string {
	names := make([]string, 0, len(s.bindings))
	for name := range s.bindings {
		if _, ok := s.declared[name]; ok {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Module returns the root of the scope tree.
func (s *Scope) Module() *Scope {
	for s.Parent != nil {
		s = s.Parent
	}
	return s
}

// Contains reports whether offset lies inside the scope's node.
func (s *Scope) Contains(offset uint32) bool {
	return offset >= s.Start && offset < s.End
}

// Innermost returns the deepest scope containing offset.
func (s *Scope) Innermost(offset uint32) *Scope {
	for _, c := range s.Children {
		if c.Contains(offset) {
			return c.Innermost(offset)
		}
	}
	return s
}

// sortBindings orders every name's bindings by effective offset, then by
// source position.
func (s *Scope) sortBindings() {
	for _, evs := range s.bindings {
		sort.SliceStable(evs, func(i, j int) bool {
			if evs[i].Effective != evs[j].Effective {
				return evs[i].Effective < evs[j].Effective
			}
			return evs[i].Pos.Offset < evs[j].Pos.Offset
		})
	}
	for _, c := range s.Children {
		c.sortBindings()
	}
}

// walk visits the scope and all descendants depth first.
func (s *Scope) walk(fn func(*Scope)) {
	fn(s)
	for _, c := range s.Children {
		c.walk(fn)
	}
}

// scopeKey identifies the node that opened a scope so the second pass can
// find the scope built by the first.
type scopeKey struct {
	start, end uint32
	kind       ScopeKind
}
