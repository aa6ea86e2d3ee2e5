package imports

import (
	"context"

	"github.com/RoaringBitmap/roaring/v2"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/panbanda/pyprune/pkg/parser"
)

// Resolution is the output of the usage pass.
type Resolution struct {
	Usages []UsageRecord
	// Used holds the IDs of import bindings credited by at least one load.
	Used     *roaring.Bitmap
	FirstUse map[int]Position
	// Unresolved counts loads that reached no binding (builtins, typos).
	Unresolved int
}

type resolver struct {
	res *Resolution
}

// lazyLoad marks loads taken from string annotations and type comments,
// which are evaluated after the module body if ever.
type lazyLoad struct {
	UsageRecord
	lazy bool
}

// Resolve walks the tree a second time, resolving every load against the
// scopes built by Extract. fp may be nil to skip string annotations.
func Resolve(ctx context.Context, m *Model, root *sitter.Node, src []byte, fp FragmentParser, typeComments bool) (*Resolution, error) {
	r := &resolver{res: &Resolution{
		Used:     roaring.New(),
		FirstUse: make(map[int]Position),
	}}
	w := &walker{
		pass:   passLoad,
		src:    src,
		model:  m,
		cur:    m.Module,
		onLoad: func(u UsageRecord) { r.record(lazyLoad{UsageRecord: u}) },
	}
	w.onString = func(n *sitter.Node) {
		value, ok := stringLiteral(parser.GetNodeText(n, src))
		if !ok {
			return
		}
		for _, name := range annotationNames(ctx, fp, value, 0) {
			r.record(lazyLoad{lazy: true, UsageRecord: UsageRecord{
				Name:                name,
				Pos:                 position(n),
				Scope:               w.cur,
				IsAnnotationContext: true,
				LoopEnd:             w.loopEnd,
			}})
		}
	}
	w.children(root)
	if w.err != nil {
		return nil, w.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if typeComments {
		for _, c := range parser.FindNodesByType(root, src, "comment") {
			expr, ok := typeCommentExpr(parser.GetNodeText(c, src))
			if !ok {
				continue
			}
			scope := m.Module.Innermost(c.StartByte())
			for _, name := range annotationNames(ctx, fp, expr, 0) {
				r.record(lazyLoad{lazy: true, UsageRecord: UsageRecord{
					Name:                name,
					Pos:                 position(c),
					Scope:               scope,
					IsAnnotationContext: true,
				}})
			}
		}
	}
	return r.res, nil
}

func (r *resolver) record(u lazyLoad) {
	r.res.Usages = append(r.res.Usages, u.UsageRecord)
	found := r.lookup(u)
	if found == nil {
		r.res.Unresolved++
		return
	}
	for _, ev := range found {
		if ev.Import == nil {
			continue
		}
		r.credit(ev.Import, u.Pos)
		if ev.Import.isPlainDotted() {
			r.creditSiblings(ev, u.Pos)
		}
	}
}

func (r *resolver) credit(b *ImportBinding, pos Position) {
	r.res.Used.Add(uint32(b.ID))
	if first, ok := r.res.FirstUse[b.ID]; !ok || pos.Offset < first.Offset {
		r.res.FirstUse[b.ID] = pos
	}
}

// creditSiblings handles "import a.b" followed by "import a.c": both bind a,
// and a load of a.c through the later binding also needs the earlier one to
// have executed.
func (r *resolver) creditSiblings(ev *BindingEvent, pos Position) {
	for _, other := range ev.Scope.Local(ev.Name) {
		if other == ev || other.Import == nil || !other.Import.isPlainDotted() {
			continue
		}
		if other.Effective <= ev.Effective {
			r.credit(other.Import, pos)
		}
	}
}

// lookup walks from the load's scope outward. Class scopes are only visible
// to loads directly inside them. Once the walk leaves a function or lambda
// the load is deferred: it runs after the enclosing scope may have been
// fully populated.
func (r *resolver) lookup(u lazyLoad) []*BindingEvent {
	deferred := u.lazy
	s := u.Scope
	for s != nil {
		if s != u.Scope && s.Kind == ScopeClass {
			s = s.Parent
			continue
		}
		if d, ok := s.declared[u.Name]; ok {
			deferred = true
			if d == declGlobal {
				s = s.Module()
			} else {
				s = s.Parent
			}
			continue
		}
		if evs := s.Local(u.Name); len(evs) > 0 {
			if got := pick(s, evs, u.UsageRecord, deferred); len(got) > 0 {
				return got
			}
			if s.Kind == ScopeModule {
				return nil
			}
		}
		if s.Kind == ScopeFunction || s.Kind == ScopeLambda {
			deferred = true
		}
		s = s.Parent
	}
	return nil
}

// pick chooses which of a scope's bindings a load may observe. The binding
// in effect at the load always counts. Later bindings count when the load is
// deferred, or when they sit in the same loop body and so can flow back to
// the load on a later iteration. Remote bindings always count.
func pick(s *Scope, evs []*BindingEvent, u UsageRecord, deferred bool) []*BindingEvent {
	var ordered, remote []*BindingEvent
	for _, ev := range evs {
		if ev.Remote {
			remote = append(remote, ev)
		} else {
			ordered = append(ordered, ev)
		}
	}
	return append(inEffect(s, ordered, u, deferred), remote...)
}

func inEffect(s *Scope, evs []*BindingEvent, u UsageRecord, deferred bool) []*BindingEvent {
	p := u.Pos.Offset
	idx := -1
	for i, ev := range evs {
		if ev.Effective <= p {
			idx = i
		}
	}

	var out []*BindingEvent
	if idx >= 0 {
		out = append(out, evs[idx])
	}
	later := evs[idx+1:]
	if deferred {
		return append(out, later...)
	}
	if s.Kind.isFunctionLike() && idx < 0 {
		// The name is local for the whole body; a load before any binding
		// still refers to it.
		return evs
	}
	for _, ev := range later {
		if u.LoopEnd != 0 && ev.Effective <= u.LoopEnd {
			out = append(out, ev)
		}
	}
	return out
}
