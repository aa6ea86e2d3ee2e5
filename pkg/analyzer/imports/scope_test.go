package imports

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/pyprune/pkg/parser"
)

func extract(t *testing.T, src string) (*Model, *Resolution) {
	t.Helper()
	psr := parser.New()
	t.Cleanup(psr.Close)

	parsed, err := psr.Parse(context.Background(), []byte(src), "test.py")
	require.NoError(t, err)
	m, err := Extract(parsed.Root(), parsed.Source)
	require.NoError(t, err)
	res, err := Resolve(context.Background(), m, parsed.Root(), parsed.Source, psr, true)
	require.NoError(t, err)
	return m, res
}

func TestScopeTree(t *testing.T) {
	src := "import os\nclass A:\n    def m(self):\n        return [x for x in os.listdir()]\nf = lambda y: y\n"
	m, _ := extract(t, src)

	var kinds []ScopeKind
	for _, s := range m.Scopes() {
		kinds = append(kinds, s.Kind)
		assert.Same(t, m.Module, s.Module())
	}
	assert.Equal(t, []ScopeKind{ScopeModule, ScopeClass, ScopeFunction, ScopeComprehension, ScopeLambda}, kinds)

	assert.Equal(t, []string{"A", "f", "os"}, m.Module.Names())
	class := m.Module.Children[0]
	assert.Equal(t, []string{"m"}, class.Names())
	assert.Equal(t, []string{"self"}, class.Children[0].Names())
	assert.Equal(t, []string{"x"}, class.Children[0].Children[0].Names())
}

func TestImportBindings(t *testing.T) {
	src := "import a.b.c\nimport numpy as np\nfrom .. import up\nfrom pkg.sub import (x,\n    y as z)\nfrom __future__ import annotations\n"
	m, _ := extract(t, src)

	require.Len(t, m.Imports, 6)
	want := []struct {
		module, imported, local, alias string
		from, future                   bool
	}{
		{"a.b.c", "a.b.c", "a", "", false, false},
		{"numpy", "numpy", "np", "np", false, false},
		{"..", "up", "up", "", true, false},
		{"pkg.sub", "x", "x", "", true, false},
		{"pkg.sub", "y", "z", "z", true, false},
		{"__future__", "annotations", "annotations", "", true, true},
	}
	for i, w := range want {
		b := m.Imports[i]
		assert.Equal(t, w.module, b.ModulePath, "import %d", i)
		assert.Equal(t, w.imported, b.ImportedName, "import %d", i)
		assert.Equal(t, w.local, b.LocalName, "import %d", i)
		assert.Equal(t, w.alias, b.Alias, "import %d", i)
		assert.Equal(t, w.from, b.IsFrom, "import %d", i)
		assert.Equal(t, w.future, b.IsFuture, "import %d", i)
	}

	multi := m.Imports[3].Statement
	assert.Len(t, multi.Bindings, 2)
	assert.Equal(t, 4, multi.Span.Start.Line)
	assert.Equal(t, 5, multi.Span.End.Line)
	assert.Equal(t, "y as z", m.Imports[4].Source)

	// Future imports create no binding event.
	assert.Empty(t, m.Module.Local("annotations"))
}

func TestImportTakesEffectAfterStatement(t *testing.T) {
	src := "import os\n"
	m, _ := extract(t, src)

	evs := m.Module.Local("os")
	require.Len(t, evs, 1)
	assert.Equal(t, KindImport, evs[0].Kind)
	assert.Equal(t, uint32(len("import os")), evs[0].Effective)
	assert.Same(t, m.Imports[0], evs[0].Import)
}

func TestStatementBlock(t *testing.T) {
	src := "import os\ndef f():\n    # comment\n    import sys\n    return 1\n"
	m, _ := extract(t, src)

	require.Len(t, m.Statements, 2)
	assert.True(t, m.Statements[0].Block.Module)
	assert.False(t, m.Statements[1].Block.Module)
	assert.Equal(t, 2, m.Statements[1].Block.Statements)
	assert.Same(t, m.Module.Children[0], m.Imports[1].Scope)
}

func TestUsageRecords(t *testing.T) {
	src := "import os\ndef f(p: \"os.PathLike\") -> int:\n    return len(p)\n"
	_, res := extract(t, src)

	var annotated, plain []string
	for _, u := range res.Usages {
		require.NotNil(t, u.Scope)
		if u.IsAnnotationContext {
			annotated = append(annotated, u.Name)
		} else {
			plain = append(plain, u.Name)
		}
	}
	assert.ElementsMatch(t, []string{"os", "int"}, annotated)
	assert.ElementsMatch(t, []string{"len", "p"}, plain)
	assert.True(t, res.Used.Contains(0))
	assert.Equal(t, 2, res.Unresolved, "int and len are builtins")
}

func TestVerifyRejectsMissingVerdicts(t *testing.T) {
	m, res := extract(t, "import os\nimport sys\n")
	verdicts := Detect(m, res, nil)
	require.Len(t, verdicts, 2)

	require.NoError(t, m.Verify(res, verdicts))

	err := m.Verify(res, verdicts[:1])
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvariantViolation)

	err = m.Verify(res, []Verdict{verdicts[0], verdicts[0]})
	assert.ErrorIs(t, err, ErrInvariantViolation)
}

func TestInnermost(t *testing.T) {
	src := "def f():\n    def g():\n        pass\n"
	m, _ := extract(t, src)

	f := m.Module.Children[0]
	g := f.Children[0]
	assert.Same(t, g, m.Module.Innermost(g.Start+1))
	assert.Same(t, f, m.Module.Innermost(f.Start+1))
	assert.Same(t, m.Module, m.Module.Innermost(f.End+1))
}

func TestDeclaredBindingsMoveToOwner(t *testing.T) {
	src := "def outer():\n    x = 1\n    def inner():\n        nonlocal x\n        global np\n        import numpy as np\n        x = 2\n    class C:\n        def m(self):\n            nonlocal x\n            x = 3\n"
	m, _ := extract(t, src)

	outer := m.Module.Children[0]
	inner := outer.Children[0]
	method := outer.Children[1].Children[0]

	require.Len(t, m.Imports, 1)
	assert.Same(t, m.Module, m.Imports[0].Scope)
	require.Len(t, m.Module.Local("np"), 1)
	assert.Same(t, m.Imports[0], m.Module.Local("np")[0].Import)

	assert.True(t, m.Module.Local("np")[0].Remote)

	xs := outer.Local("x")
	require.Len(t, xs, 3)
	assert.False(t, xs[0].Remote)
	assert.True(t, xs[1].Remote)
	assert.True(t, xs[2].Remote)
	assert.Empty(t, inner.Local("x"))
	assert.Empty(t, inner.Local("np"))
	assert.Empty(t, method.Local("x"))

	assert.Same(t, outer, inner.Owner("x"))
	assert.Same(t, m.Module, inner.Owner("np"))
	assert.Same(t, outer, method.Owner("x"))
	assert.Same(t, outer, outer.Owner("x"))
}
