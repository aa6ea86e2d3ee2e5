// Package fix removes unused imports from Python source text.
//
// All edits are computed against the original byte offsets and applied
// from the end of the file backwards, so no pending edit is shifted by one
// already applied.
package fix

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/panbanda/pyprune/pkg/analyzer/imports"
)

// ErrUnsafeEdit marks an import the fixer refused to touch because it could
// not prove the removal leaves valid code.
var ErrUnsafeEdit = errors.New("unsafe edit")

// Edit replaces src[Start:End] with Text. An empty Text is a deletion.
type Edit struct {
	Start       uint32 `json:"start"`
	End         uint32 `json:"end"`
	Text        string `json:"text,omitempty"`
	Line        int    `json:"line"`
	Description string `json:"description"`
}

// Skip records an unused import left in place.
type Skip struct {
	Binding *imports.ImportBinding
	Err     error
}

// Result is the rewritten text and what it took to get there.
type Result struct {
	Text    []byte
	Edits   []Edit
	Removed []*imports.ImportBinding
	Skipped []Skip
}

// Changed reports whether any edit was applied.
func (r *Result) Changed() bool {
	return len(r.Edits) > 0
}

// pending is an edit plus the bindings it removes.
type pending struct {
	Edit
	bindings []*imports.ImportBinding
}

// Autofix removes unused from src. Future and star imports are never
// removed. A statement losing some names keeps the rest; a statement losing
// all of them is deleted, and a block emptied that way gets "pass".
func Autofix(src []byte, unused []*imports.ImportBinding) (*Result, error) {
	res := &Result{}
	groups, order := groupByStatement(unused)

	// Statements removed outright, per enclosing block.
	emptied := make(map[uint32][]*imports.ImportStatement)
	var edits []pending
	for _, stmt := range order {
		removed := groups[stmt]
		if len(removed) < len(stmt.Bindings) {
			edits = append(edits, removeNames(src, stmt, removed)...)
			continue
		}
		emptied[stmt.Block.Start] = append(emptied[stmt.Block.Start], stmt)
	}

	for _, stmts := range emptied {
		sort.Slice(stmts, func(i, j int) bool {
			return stmts[i].Span.Start.Offset < stmts[j].Span.Start.Offset
		})
		block := stmts[0].Block
		for i, stmt := range stmts {
			if i == 0 && !block.Module && len(stmts) == block.Statements {
				edits = append(edits, pending{
					Edit: Edit{
						Start:       stmt.Span.Start.Offset,
						End:         stmt.Span.End.Offset,
						Text:        "pass",
						Line:        stmt.Span.Start.Line,
						Description: "replace emptied block body with pass",
					},
					bindings: stmt.Bindings,
				})
				continue
			}
			e, err := removeStatement(src, stmt)
			if err != nil {
				for _, b := range stmt.Bindings {
					res.Skipped = append(res.Skipped, Skip{Binding: b, Err: err})
				}
				continue
			}
			edits = append(edits, e)
		}
	}

	applied, skipped := merge(edits)
	res.Skipped = append(res.Skipped, skipped...)
	res.Text = apply(src, applied)
	for _, e := range applied {
		res.Edits = append(res.Edits, e.Edit)
		res.Removed = append(res.Removed, e.bindings...)
	}
	sort.Slice(res.Removed, func(i, j int) bool {
		return res.Removed[i].NameSpan.Start.Offset < res.Removed[j].NameSpan.Start.Offset
	})
	sort.SliceStable(res.Skipped, func(i, j int) bool {
		return res.Skipped[i].Binding.NameSpan.Start.Offset < res.Skipped[j].Binding.NameSpan.Start.Offset
	})
	return res, nil
}

// groupByStatement buckets removable bindings by statement, in source order.
func groupByStatement(unused []*imports.ImportBinding) (map[*imports.ImportStatement][]*imports.ImportBinding, []*imports.ImportStatement) {
	groups := make(map[*imports.ImportStatement][]*imports.ImportBinding)
	var order []*imports.ImportStatement
	seen := make(map[*imports.ImportBinding]bool)
	for _, b := range unused {
		if b == nil || b.IsFuture || b.IsStar || b.Statement == nil || seen[b] {
			continue
		}
		seen[b] = true
		if _, ok := groups[b.Statement]; !ok {
			order = append(order, b.Statement)
		}
		groups[b.Statement] = append(groups[b.Statement], b)
	}
	sort.Slice(order, func(i, j int) bool {
		return order[i].Span.Start.Offset < order[j].Span.Start.Offset
	})
	return groups, order
}

// removeNames deletes runs of consecutive removed names. A run followed by
// a kept name goes up to that name; a trailing run goes back to the end of
// the last kept name. Inside parentheses a run that owns its lines is
// deleted line by line so comments on kept lines survive.
func removeNames(src []byte, stmt *imports.ImportStatement, removed []*imports.ImportBinding) []pending {
	drop := make(map[*imports.ImportBinding]bool, len(removed))
	for _, b := range removed {
		drop[b] = true
	}
	bs := stmt.Bindings
	paren := len(bs) > 0 && strings.Contains(string(src[stmt.Span.Start.Offset:bs[0].NameSpan.Start.Offset]), "(")

	var out []pending
	for i := 0; i < len(bs); i++ {
		if !drop[bs[i]] {
			continue
		}
		j := i
		for j+1 < len(bs) && drop[bs[j+1]] {
			j++
		}
		first, last := bs[i], bs[j]

		start, end, ok := uint32(0), uint32(0), false
		if paren {
			start, end, ok = ownLines(src, first, last)
		}
		if !ok {
			if j+1 < len(bs) {
				start, end = first.NameSpan.Start.Offset, bs[j+1].NameSpan.Start.Offset
			} else {
				start, end = bs[i-1].NameSpan.End.Offset, last.NameSpan.End.Offset
			}
		}

		run := bs[i : j+1]
		out = append(out, pending{
			Edit: Edit{
				Start:       start,
				End:         end,
				Line:        first.NameSpan.Start.Line,
				Description: "remove " + describeRun(run),
			},
			bindings: append([]*imports.ImportBinding(nil), run...),
		})
		i = j
	}
	return out
}

// ownLines returns the whole-line span of a run of names when nothing else
// shares those lines, taking the run's trailing comma and comment along.
func ownLines(src []byte, first, last *imports.ImportBinding) (uint32, uint32, bool) {
	begin := first.NameSpan.Start.Offset
	ls := startOfLine(src, begin)
	if !isBlank(src[ls:begin]) {
		return 0, 0, false
	}
	n := uint32(len(src))
	end := skipBlanks(src, last.NameSpan.End.Offset, n)
	if end < n && src[end] == ',' {
		end = skipBlanks(src, end+1, n)
	}
	if !endsLine(src, end) {
		return 0, 0, false
	}
	return ls, endOfLine(src, end), true
}

func describeRun(run []*imports.ImportBinding) string {
	names := make([]string, len(run))
	for i, b := range run {
		names[i] = b.Description()
	}
	return strings.Join(names, ", ")
}

// removeStatement deletes a whole statement. It takes the full line when
// nothing else shares it, and otherwise the statement with one adjacent
// semicolon.
func removeStatement(src []byte, stmt *imports.ImportStatement) (pending, error) {
	start, end := stmt.Span.Start.Offset, stmt.Span.End.Offset
	e := pending{
		Edit: Edit{
			Line:        stmt.Span.Start.Line,
			Description: "remove " + describe(stmt),
		},
		bindings: stmt.Bindings,
	}

	after := skipBlanks(src, end, uint32(len(src)))
	lineStart := startOfLine(src, start)
	switch {
	case after < uint32(len(src)) && src[after] == ';':
		e.Start, e.End = start, skipBlanks(src, after+1, uint32(len(src)))
	case isBlank(src[lineStart:start]) && endsLine(src, after):
		e.Start, e.End = lineStart, endOfLine(src, after)
	default:
		before := start
		for before > lineStart && (src[before-1] == ' ' || src[before-1] == '\t') {
			before--
		}
		if before == lineStart || src[before-1] != ';' {
			return pending{}, fmt.Errorf("%w: %s shares its line", ErrUnsafeEdit, describe(stmt))
		}
		e.Start, e.End = before-1, end
	}
	return e, nil
}

func describe(stmt *imports.ImportStatement) string {
	names := make([]string, len(stmt.Bindings))
	for i, b := range stmt.Bindings {
		names[i] = b.Source
	}
	if stmt.Kind == imports.StatementImport {
		return "import " + strings.Join(names, ", ")
	}
	return "from " + stmt.Module + " import " + strings.Join(names, ", ")
}

// merge sorts edits and folds overlapping deletions together. An overlap
// involving a replacement cannot be resolved and the later edit is dropped.
func merge(edits []pending) ([]pending, []Skip) {
	sort.SliceStable(edits, func(i, j int) bool {
		if edits[i].Start != edits[j].Start {
			return edits[i].Start < edits[j].Start
		}
		return edits[i].End > edits[j].End
	})
	var out []pending
	var skipped []Skip
	for _, e := range edits {
		if n := len(out); n > 0 && e.Start < out[n-1].End {
			last := &out[n-1]
			if last.Text != "" || e.Text != "" {
				for _, b := range e.bindings {
					skipped = append(skipped, Skip{Binding: b, Err: fmt.Errorf("%w: overlapping edits", ErrUnsafeEdit)})
				}
				continue
			}
			if e.End > last.End {
				last.End = e.End
			}
			last.bindings = append(last.bindings, e.bindings...)
			continue
		}
		out = append(out, e)
	}
	return out, skipped
}

// apply rewrites src back to front.
func apply(src []byte, edits []pending) []byte {
	out := append([]byte(nil), src...)
	for i := len(edits) - 1; i >= 0; i-- {
		e := edits[i]
		tail := append([]byte(e.Text), out[e.End:]...)
		out = append(out[:e.Start], tail...)
	}
	return out
}

// skipBlanks advances over spaces and tabs only.
func skipBlanks(src []byte, i, limit uint32) uint32 {
	for i < limit && (src[i] == ' ' || src[i] == '\t') {
		i++
	}
	return i
}

func startOfLine(src []byte, i uint32) uint32 {
	for i > 0 && src[i-1] != '\n' {
		i--
	}
	return i
}

// endOfLine returns the offset just past the newline ending the line at i.
func endOfLine(src []byte, i uint32) uint32 {
	for i < uint32(len(src)) && src[i] != '\n' {
		i++
	}
	if i < uint32(len(src)) {
		i++
	}
	return i
}

// endsLine reports whether only a comment or nothing follows i on its line.
func endsLine(src []byte, i uint32) bool {
	return i >= uint32(len(src)) || src[i] == '\n' || src[i] == '\r' || src[i] == '#'
}

func isBlank(b []byte) bool {
	for _, c := range b {
		if c != ' ' && c != '\t' {
			return false
		}
	}
	return true
}
