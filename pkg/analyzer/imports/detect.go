package imports

import (
	"fmt"
	"sort"
)

// Detect produces one verdict per import binding, skipping __future__ and
// star imports, ordered by the binding's position in the file.
func Detect(m *Model, res *Resolution, exports []string) []Verdict {
	exported := make(map[string]bool, len(exports))
	for _, name := range exports {
		exported[name] = true
	}

	verdicts := make([]Verdict, 0, len(m.Imports))
	for _, b := range m.Imports {
		if b.IsFuture || b.IsStar {
			continue
		}
		v := Verdict{Binding: b, Status: StatusUnused}
		switch {
		case res.Used.Contains(uint32(b.ID)):
			v.Status = StatusUsed
			if pos, ok := res.FirstUse[b.ID]; ok {
				v.FirstUse = &pos
			}
		case b.Scope.Kind == ScopeModule && exported[b.LocalName]:
			v.Status = StatusUsed
		default:
			v.Reason = shadowReason(b)
		}
		verdicts = append(verdicts, v)
	}
	sort.SliceStable(verdicts, func(i, j int) bool {
		return verdicts[i].Binding.NameSpan.Start.Offset < verdicts[j].Binding.NameSpan.Start.Offset
	})
	return verdicts
}

// shadowReason names the first later binding of the same name in the same
// scope, if any. Remote bindings run at an unknown time and never shadow.
func shadowReason(b *ImportBinding) Reason {
	var first *BindingEvent
	for _, ev := range b.Scope.Local(b.LocalName) {
		if ev.Import == b || ev.Remote || ev.Pos.Offset <= b.NameSpan.Start.Offset {
			continue
		}
		if first == nil || ev.Pos.Offset < first.Pos.Offset {
			first = ev
		}
	}
	if first == nil {
		return ReasonNeverReferenced
	}
	return ShadowedBy(first.Kind)
}

// Verify checks the structural guarantees of a finished analysis. A failure
// means the file must not be reported on or rewritten.
func (m *Model) Verify(res *Resolution, verdicts []Verdict) error {
	for _, s := range m.Scopes() {
		if s.Module() != m.Module {
			return &InvariantError{Detail: fmt.Sprintf("scope %d is detached from the module", s.ID)}
		}
	}
	for _, ev := range m.Events {
		if ev.Scope == nil || ev.Scope.Module() != m.Module {
			return &InvariantError{Detail: fmt.Sprintf("binding %q has no scope", ev.Name)}
		}
	}
	for _, u := range res.Usages {
		if u.Scope == nil || u.Scope.Module() != m.Module {
			return &InvariantError{Detail: fmt.Sprintf("load of %q at line %d has no scope", u.Name, u.Pos.Line)}
		}
	}

	want := 0
	for _, b := range m.Imports {
		if !b.IsFuture && !b.IsStar {
			want++
		}
	}
	if len(verdicts) != want {
		return &InvariantError{Detail: fmt.Sprintf("%d verdicts for %d imports", len(verdicts), want)}
	}
	seen := make(map[int]bool, len(verdicts))
	for _, v := range verdicts {
		if seen[v.Binding.ID] {
			return &InvariantError{Detail: fmt.Sprintf("import %s judged twice", v.Binding.Description())}
		}
		seen[v.Binding.ID] = true
	}
	return nil
}
