package domain

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docverify/internal/parser"
	"git.home.luguber.info/inful/docverify/internal/refparse"
	"git.home.luguber.info/inful/docverify/internal/source"
)

func loc(p string, line int) source.Location {
	return source.Location{Path: p, Line: line, Column: 1}
}

func newTestRegistry() *Registry {
	return NewRegistry(DefaultTable(), Builtin()...)
}

func ref(role, target, docID string) refparse.Reference {
	return refparse.Reference{Role: role, Target: target, DocID: docID, Path: docID + ".rst", Line: 1, Column: 1}
}

func TestRegistry_ConcurrentRegistration(t *testing.T) {
	reg := newTestRegistry()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				name := fmt.Sprintf("pkg.f%d_%d", w, i)
				require.NoError(t, reg.RegisterObject("py", "function", name, loc("a.rst", i+1)))
			}
		}(w)
	}
	wg.Wait()

	dups := reg.Freeze()
	assert.Empty(t, dups)
	assert.Equal(t, 800, reg.Len())
	_, ok := reg.Lookup("py", "function", "pkg.f7_99")
	assert.True(t, ok)
}

func TestRegistry_RegisterAfterFreeze(t *testing.T) {
	reg := newTestRegistry()
	reg.Freeze()
	err := reg.RegisterObject("py", "function", "x", loc("a.rst", 1))
	assert.ErrorIs(t, err, ErrFrozen)
	assert.True(t, reg.Frozen())
}

func TestRegistry_SameLocationIsIdempotent(t *testing.T) {
	reg := newTestRegistry()
	require.NoError(t, reg.RegisterObject("py", "class", "pkg.A", loc("a.rst", 3)))
	require.NoError(t, reg.RegisterObject("py", "class", "pkg.A", loc("a.rst", 3)))

	assert.Empty(t, reg.Freeze())
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_DuplicatesIndependentOfOrder(t *testing.T) {
	orders := [][]string{{"a.rst", "b.rst"}, {"b.rst", "a.rst"}}
	for _, order := range orders {
		reg := newTestRegistry()
		for _, p := range order {
			require.NoError(t, reg.RegisterObject("py", "function", "pkg.run", loc(p, 10)))
		}
		dups := reg.Freeze()
		require.Len(t, dups, 1)
		assert.Equal(t, "a.rst", dups[0].First.Location.Path)
		assert.Equal(t, "b.rst", dups[0].Object.Location.Path)

		o, ok := reg.Lookup("py", "function", "pkg.run")
		require.True(t, ok)
		assert.Equal(t, "a.rst", o.Location.Path)
	}
}

func TestRegistry_FreezeTwiceReturnsSameDuplicates(t *testing.T) {
	reg := newTestRegistry()
	require.NoError(t, reg.RegisterObject("std", "label", "intro", loc("a.rst", 1)))
	require.NoError(t, reg.RegisterObject("std", "label", "intro", loc("b.rst", 1)))
	first := reg.Freeze()
	assert.Equal(t, first, reg.Freeze())
}

func TestRegistry_StdScopesAreSeparate(t *testing.T) {
	reg := newTestRegistry()
	require.NoError(t, reg.RegisterObject("std", "label", "install", loc("a.rst", 1)))
	require.NoError(t, reg.RegisterObject("std", "doc", "install", source.Location{Path: "install.rst"}))
	assert.Empty(t, reg.Freeze())

	_, ok := reg.Lookup("std", "label", "install")
	assert.True(t, ok)
	_, ok = reg.Lookup("std", "doc", "install")
	assert.True(t, ok)
}

func TestRegistry_PythonSharesNamespace(t *testing.T) {
	reg := newTestRegistry()
	require.NoError(t, reg.RegisterObject("py", "class", "pkg.Thing", loc("a.rst", 1)))
	require.NoError(t, reg.RegisterObject("py", "function", "pkg.Thing", loc("b.rst", 1)))
	assert.Len(t, reg.Freeze(), 1)

	res := reg.Resolve(ref("func", "pkg.Thing", "c"))
	assert.Equal(t, StatusValid, res.Status)
}

func TestRegistry_ResolveBeforeFreezePanics(t *testing.T) {
	reg := newTestRegistry()
	assert.Panics(t, func() { reg.Resolve(ref("func", "x", "a")) })
}

func TestRegistry_Resolve(t *testing.T) {
	reg := newTestRegistry()
	doc := &parser.Document{
		ID:   "guide/install",
		Path: "guide/install.rst",
		Objects: []parser.Object{
			{Domain: "py", Type: "function", Name: "pkg.run", Location: loc("guide/install.rst", 4)},
			{Domain: "py", Type: "function", Name: "pkg.runner", Location: loc("guide/install.rst", 8)},
			{Domain: "std", Type: "label", Name: "setup", Location: loc("guide/install.rst", 1)},
		},
	}
	require.NoError(t, reg.RegisterDocument(doc))
	require.NoError(t, reg.RegisterDocument(&parser.Document{ID: "index", Path: "index.rst"}))
	require.Empty(t, reg.Freeze())

	tests := []struct {
		name   string
		ref    refparse.Reference
		status Status
		sugg   []string
	}{
		{"function", ref("func", "pkg.run", "index"), StatusValid, nil},
		{"qualified role", ref("py:func", "pkg.run()", "index"), StatusValid, nil},
		{"label case insensitive", ref("ref", "Setup", "index"), StatusValid, nil},
		{"doc from root", ref("doc", "guide/install", "index"), StatusValid, nil},
		{"doc relative", ref("doc", "install", "guide/other"), StatusValid, nil},
		{"doc absolute", ref("doc", "/index", "guide/other"), StatusValid, nil},
		{"doc with extension", ref("doc", "guide/install.rst", "index"), StatusValid, nil},
		{"broken with suggestions", ref("func", "pkg.ru", "index"), StatusBroken, []string{"pkg.run", "pkg.runner"}},
		{"broken without suggestions", ref("func", "other.x", "index"), StatusBroken, nil},
		{"unknown role", ref("frobnicate", "x", "index"), StatusUnknownRole, nil},
		{"mismatched prefix", ref("std:func", "pkg.run", "index"), StatusUnknownRole, nil},
		{"external", refparse.Reference{Role: "doc", Target: "https://example.com", External: true}, StatusExternal, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := reg.Resolve(tt.ref)
			assert.Equal(t, tt.status, res.Status)
			assert.Equal(t, tt.sugg, res.Suggestions)
			if tt.status == StatusValid {
				require.NotNil(t, res.Object)
			}
		})
	}
}

func TestRegistry_ValidateTable(t *testing.T) {
	reg := NewRegistry(DefaultTable().With("need", RoleTarget{Domain: "req", Type: "item"}), Builtin()...)
	assert.Error(t, reg.ValidateTable())
	assert.NoError(t, newTestRegistry().ValidateTable())
}

func TestRank(t *testing.T) {
	names := []string{"pkg.runner", "pkg.running_total", "pkg.ru", "zzz", "pkg.rum"}
	assert.Equal(t, []string{"pkg.ru", "pkg.runner", "pkg.running_total"}, Rank("pkg.run", names))
	assert.Equal(t, []string{"ab", "ac", "ad"}, Rank("a", []string{"ae", "ad", "ac", "ab"}))
	assert.Nil(t, Rank("x", []string{"a", "b"}))
	assert.Nil(t, Rank("", []string{"a"}))
}

func TestDocCandidates(t *testing.T) {
	assert.Equal(t, []string{"guide/install", "install"}, DocCandidates("guide/index", "install"))
	assert.Equal(t, []string{"install"}, DocCandidates("index", "install.rst"))
	assert.Equal(t, []string{"api"}, DocCandidates("guide/index", "/api"))
	assert.Equal(t, []string{"api"}, DocCandidates("guide/index", "../api"))
}

func TestSummarize(t *testing.T) {
	py := RoleTarget{Domain: "py", Type: "function"}
	std := RoleTarget{Domain: "std", Type: "doc"}
	ref := func(role string) refparse.Reference { return refparse.Reference{Role: role} }

	s := Summarize([]Resolution{
		{Reference: ref("py:func"), Target: py, Status: StatusValid},
		{Reference: ref("func"), Target: py, Status: StatusBroken},
		{Reference: ref("doc"), Target: std, Status: StatusValid},
		{Reference: ref("doc"), Status: StatusExternal},
		{Reference: ref("bogus"), Status: StatusUnknownRole},
	})

	assert.Equal(t, Tally{Total: 5, Valid: 2, Broken: 1, External: 1, UnknownRole: 1}, s.Tally)
	assert.Equal(t, map[string]Tally{
		"py":  {Total: 2, Valid: 1, Broken: 1},
		"std": {Total: 1, Valid: 1},
	}, s.ByDomain)
	assert.Equal(t, map[string]Tally{
		"py:func": {Total: 1, Valid: 1},
		"func":    {Total: 1, Broken: 1},
		"doc":     {Total: 2, Valid: 1, External: 1},
		"bogus":   {Total: 1, UnknownRole: 1},
	}, s.ByRole)

	var merged Stats
	merged.Merge(s)
	merged.Merge(s)
	assert.Equal(t, 10, merged.Total)
	assert.Equal(t, Tally{Total: 4, Valid: 2, Broken: 2}, merged.ByDomain["py"])
}
