package imports

import (
	"fmt"
	"time"
)

// BindingKind identifies how a name became bound.
type BindingKind string

// String implements fmt.Stringer for toon serialization.
func (k BindingKind) String() string {
	return string(k)
}

const (
	KindImport              BindingKind = "import"
	KindAssignment          BindingKind = "assignment"
	KindParameter           BindingKind = "parameter"
	KindLoopTarget          BindingKind = "loop_target"
	KindWithTarget          BindingKind = "with_target"
	KindExceptName          BindingKind = "except_name"
	KindDef                 BindingKind = "def"
	KindClass               BindingKind = "class"
	KindWalrus              BindingKind = "walrus"
	KindComprehensionTarget BindingKind = "comprehension_target"
)

// ScopeKind identifies the construct that opened a scope.
type ScopeKind string

// String implements fmt.Stringer for toon serialization.
func (k ScopeKind) String() string {
	return string(k)
}

const (
	ScopeModule        ScopeKind = "module"
	ScopeFunction      ScopeKind = "function"
	ScopeLambda        ScopeKind = "lambda"
	ScopeClass         ScopeKind = "class"
	ScopeComprehension ScopeKind = "comprehension"
)

// isFunctionLike reports whether any binding in the scope makes a name local
// for the whole scope body.
func (k ScopeKind) isFunctionLike() bool {
	return k == ScopeFunction || k == ScopeLambda || k == ScopeComprehension
}

// Status is the verdict for an import binding.
type Status string

// String implements fmt.Stringer for toon serialization.
func (s Status) String() string {
	return string(s)
}

const (
	StatusUsed   Status = "used"
	StatusUnused Status = "unused"
)

// Reason explains an unused verdict.
type Reason string

// String implements fmt.Stringer for toon serialization.
func (r Reason) String() string {
	return string(r)
}

// ReasonNeverReferenced marks an import no load ever reaches.
const ReasonNeverReferenced Reason = "never-referenced"

// ShadowedBy returns the reason for an import rebound by a later binding.
func ShadowedBy(kind BindingKind) Reason {
	return Reason("shadowed-by-" + string(kind))
}

// Position locates a node in the source.
type Position struct {
	Line   int    `json:"line" toon:"line"`
	Column int    `json:"column" toon:"column"`
	Offset uint32 `json:"offset" toon:"offset"`
}

// Span is a half-open byte range with line information.
type Span struct {
	Start Position `json:"start" toon:"start"`
	End   Position `json:"end" toon:"end"`
}

// StatementKind distinguishes the three import statement forms.
type StatementKind string

const (
	StatementImport StatementKind = "import"
	StatementFrom   StatementKind = "from"
	StatementFuture StatementKind = "future"
)

// Block describes the suite an import statement sits in.
type Block struct {
	Start      uint32 `json:"start"`
	Statements int    `json:"statements"`
	Module     bool   `json:"module"`
}

// ImportStatement groups the bindings produced by one import statement.
type ImportStatement struct {
	Kind     StatementKind    `json:"kind"`
	Module   string           `json:"module,omitempty"`
	Span     Span             `json:"span"`
	Bindings []*ImportBinding `json:"-"`
	Block    Block            `json:"block"`
}

// ImportBinding is one imported name.
type ImportBinding struct {
	ID            int    `json:"id" toon:"id"`
	ModulePath    string `json:"module_path" toon:"module_path"`
	ImportedName  string `json:"imported_name" toon:"imported_name"`
	LocalName     string `json:"local_name" toon:"local_name"`
	Alias         string `json:"alias,omitempty" toon:"alias,omitempty"`
	IsStar        bool   `json:"is_star,omitempty" toon:"is_star,omitempty"`
	IsFuture      bool   `json:"is_future,omitempty" toon:"is_future,omitempty"`
	IsFrom        bool   `json:"is_from,omitempty" toon:"is_from,omitempty"`
	StatementSpan Span   `json:"statement_span" toon:"statement_span"`
	NameSpan      Span   `json:"name_span" toon:"name_span"`
	// Source is the name clause as written, e.g. "chain as ch".
	Source string `json:"source" toon:"source"`

	Statement *ImportStatement `json:"-" toon:"-"`
	Scope     *Scope           `json:"-" toon:"-"`
}

// Description renders the binding the way it appears in an import statement.
func (b *ImportBinding) Description() string {
	name := b.ImportedName
	if b.Alias != "" {
		name += " as " + b.Alias
	}
	if b.IsFrom {
		return fmt.Sprintf("'%s' from '%s'", name, b.ModulePath)
	}
	return fmt.Sprintf("'%s'", name)
}

// isPlainDotted reports whether the binding comes from "import a.b" with no
// alias. Several such imports share the local name "a".
func (b *ImportBinding) isPlainDotted() bool {
	return !b.IsFrom && b.Alias == ""
}

// BindingEvent records one way a name became bound in a scope.
type BindingEvent struct {
	ID   int         `json:"id"`
	Name string      `json:"name"`
	Kind BindingKind `json:"kind"`
	Pos  Position    `json:"position"`
	// Effective is the byte offset from which the binding exists for
	// sequential (module and class body) resolution.
	Effective uint32 `json:"effective"`
	// Remote is set when a global or nonlocal declaration in a nested
	// scope made the binding. It may take effect whenever that scope runs.
	Remote bool           `json:"remote,omitempty"`
	Scope  *Scope         `json:"-"`
	Import *ImportBinding `json:"-"`
}

// UsageRecord is one name load.
type UsageRecord struct {
	Name                string   `json:"name"`
	Pos                 Position `json:"position"`
	Scope               *Scope   `json:"-"`
	IsAnnotationContext bool     `json:"is_annotation_context,omitempty"`
	// LoopEnd is the end offset of the outermost loop enclosing the load
	// within its own function body, or zero.
	LoopEnd uint32 `json:"-"`
}

// Verdict is the detector's decision for one import binding.
type Verdict struct {
	Binding  *ImportBinding `json:"binding"`
	Status   Status         `json:"status"`
	FirstUse *Position      `json:"first_use,omitempty"`
	Reason   Reason         `json:"reason,omitempty"`
	// Suppressed is set for unused imports silenced by noqa or ignore rules.
	Suppressed bool `json:"suppressed,omitempty"`
}

// Unused reports whether the verdict calls for removal.
func (v Verdict) Unused() bool {
	return v.Status == StatusUnused && !v.Suppressed
}

// NoteKind classifies constructs the analysis leaves alone.
type NoteKind string

// String implements fmt.Stringer for toon serialization.
func (k NoteKind) String() string {
	return string(k)
}

const (
	NoteStarImport    NoteKind = "star-import"
	NoteDynamicImport NoteKind = "dynamic-import"
)

// Note records an unsupported construct. It is informational, not an error.
type Note struct {
	Kind   NoteKind `json:"kind" toon:"kind"`
	Line   int      `json:"line" toon:"line"`
	Detail string   `json:"detail" toon:"detail"`
}

// Finding is a reportable unused import.
type Finding struct {
	File     string `json:"file" toon:"file"`
	Line     int    `json:"line" toon:"line"`
	Column   int    `json:"column" toon:"column"`
	Name     string `json:"name" toon:"name"`
	Imported string `json:"imported" toon:"imported"`
	Alias    string `json:"alias,omitempty" toon:"alias,omitempty"`
	Module   string `json:"module,omitempty" toon:"module,omitempty"`
	Reason   Reason `json:"reason" toon:"reason"`
}

// Message formats the finding as "path:line: Unused import ...".
func (f Finding) Message() string {
	name := f.Imported
	if f.Alias != "" {
		name += " as " + f.Alias
	}
	if f.Module != "" {
		return fmt.Sprintf("%s:%d: Unused import '%s' from '%s'", f.File, f.Line, name, f.Module)
	}
	return fmt.Sprintf("%s:%d: Unused import '%s'", f.File, f.Line, name)
}

// NewFinding builds a Finding for an unused binding.
func NewFinding(path string, v Verdict) Finding {
	b := v.Binding
	f := Finding{
		File:     path,
		Line:     b.NameSpan.Start.Line,
		Column:   b.NameSpan.Start.Column,
		Name:     b.LocalName,
		Imported: b.ImportedName,
		Alias:    b.Alias,
		Reason:   v.Reason,
	}
	if b.IsFrom {
		f.Module = b.ModulePath
	}
	return f
}

// FileResult is the outcome of analyzing one file.
type FileResult struct {
	Path     string    `json:"path" toon:"path"`
	Imports  int       `json:"imports" toon:"imports"`
	Findings []Finding `json:"findings" toon:"findings"`
	Notes    []Note    `json:"notes,omitempty" toon:"notes,omitempty"`
	// Verdicts is only populated by a fresh analysis, never from cache.
	Verdicts []Verdict `json:"-" toon:"-"`
}

// Unused returns the bindings that should be removed.
func (r *FileResult) Unused() []*ImportBinding {
	var out []*ImportBinding
	for _, v := range r.Verdicts {
		if v.Unused() {
			out = append(out, v.Binding)
		}
	}
	return out
}

// Analysis represents the full result over a set of files.
type Analysis struct {
	Files      []FileResult `json:"files" toon:"files"`
	Summary    Summary      `json:"summary" toon:"summary"`
	AnalyzedAt time.Time    `json:"analyzed_at" toon:"analyzed_at"`
}

// Summary provides aggregate statistics.
type Summary struct {
	TotalFiles      int            `json:"total_files" toon:"total_files"`
	FilesWithUnused int            `json:"files_with_unused" toon:"files_with_unused"`
	TotalImports    int            `json:"total_imports" toon:"total_imports"`
	UnusedImports   int            `json:"unused_imports" toon:"unused_imports"`
	ByReason        map[string]int `json:"by_reason" toon:"by_reason"`
}

// NewSummary creates an initialized summary.
func NewSummary() Summary {
	return Summary{ByReason: make(map[string]int)}
}

// AddFile updates the summary with one file's result.
func (s *Summary) AddFile(r FileResult) {
	s.TotalFiles++
	s.TotalImports += r.Imports
	if len(r.Findings) > 0 {
		s.FilesWithUnused++
	}
	for _, f := range r.Findings {
		s.UnusedImports++
		s.ByReason[string(f.Reason)]++
	}
}
