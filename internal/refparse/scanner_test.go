package refparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_Forms(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		role    string
		target  string
		display string
		column  int
	}{
		{"simple", ":ref:`install`", "ref", "install", "", 1},
		{"display", "See :doc:`the guide <guide/install>`.", "doc", "guide/install", "the guide", 5},
		{"domain prefix", ":py:func:`pkg.run`", "py:func", "pkg.run", "", 1},
		{"tilde modifier", ":py:meth:`~pkg.Client.close`", "py:meth", "pkg.Client.close", "", 1},
		{"bang modifier", ":func:`!pkg.run`", "func", "pkg.run", "", 1},
		{"angle without display", ":ref:`<target>`", "ref", "<target>", "", 1},
		{"unicode column", "Ünïcödé :term:`glossary`", "term", "glossary", "", 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			refs, warnings := Extract("doc", "doc.rst", tt.line)
			assert.Empty(t, warnings)
			require.Len(t, refs, 1)
			assert.Equal(t, tt.role, refs[0].Role)
			assert.Equal(t, tt.target, refs[0].Target)
			assert.Equal(t, tt.display, refs[0].Display)
			assert.Equal(t, 1, refs[0].Line)
			assert.Equal(t, tt.column, refs[0].Column)
			assert.Equal(t, "doc", refs[0].DocID)
		})
	}
}

func TestExtract_MultipleTokensPerLine(t *testing.T) {
	text := "intro\nUse :func:`a` then :class:`B` and :ref:`c`.\n"
	refs, _ := Extract("index", "index.rst", text)

	require.Len(t, refs, 3)
	cols := []int{refs[0].Column, refs[1].Column, refs[2].Column}
	assert.Equal(t, []int{5, 20, 35}, cols)
	for _, r := range refs {
		assert.Equal(t, 2, r.Line)
	}
}

func TestExtract_External(t *testing.T) {
	refs, _ := Extract("d", "d.rst", ":doc:`https://example.com/x` :ref:`ops@example.com` :doc:`local`")
	require.Len(t, refs, 3)
	assert.True(t, refs[0].External)
	assert.True(t, refs[1].External)
	assert.False(t, refs[2].External)
}

func TestExtract_Malformed(t *testing.T) {
	refs, warnings := Extract("d", "d.rst", "ok :ref:`a` broken :ref:`never closed\nnext :doc:`b`")

	require.Len(t, refs, 2)
	assert.Equal(t, "a", refs[0].Target)
	assert.Equal(t, "b", refs[1].Target)
	require.Len(t, warnings, 1)
	assert.Equal(t, 1, warnings[0].Location.Line)
	assert.Equal(t, 20, warnings[0].Location.Column)
	assert.Contains(t, warnings[0].Message, "unterminated")
}

func TestExtract_EmptyTarget(t *testing.T) {
	refs, warnings := Extract("d", "d.rst", ":ref:` ` :ref:`x`")
	require.Len(t, refs, 1)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "empty")
}

func TestExtract_Ignores(t *testing.T) {
	for _, line := range []string{
		"Note: nothing here",
		"time 10:30:`x`",
		"``:ref:`literal``` text",
		`\:ref:` + "`escaped`",
		"http://example.com:8080/path",
		":ref: `spaced`",
	} {
		refs, warnings := Extract("d", "d.rst", line)
		assert.Empty(t, refs, line)
		assert.Empty(t, warnings, line)
	}
}

func TestExtract_Deterministic(t *testing.T) {
	text := ":ref:`a` :doc:`b <c>`\n:py:class:`D`\n"
	r1, w1 := Extract("x", "x.rst", text)
	r2, w2 := Extract("x", "x.rst", text)
	assert.Equal(t, r1, r2)
	assert.Equal(t, w1, w2)
}

func TestReference_SplitRole(t *testing.T) {
	d, n := Reference{Role: "py:func"}.SplitRole()
	assert.Equal(t, "py", d)
	assert.Equal(t, "func", n)

	d, n = Reference{Role: "ref"}.SplitRole()
	assert.Empty(t, d)
	assert.Equal(t, "ref", n)
}

func TestMarkdownExtractor_SkipsCodeSpans(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		targets []string
		columns []int
	}{
		{"role in code span", "Use the `:doc:` role to link to `index` pages.", nil, nil},
		{"reference next to span", "See :doc:`index` and `:ref:`x``.", []string{"index"}, []int{5}},
		{"double backtick span", "``:ref:`a` `` then :ref:`b`", []string{"b"}, []int{20}},
		{"span swallows role", "`code :ref:`ok`", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewMarkdownExtractor("page", "page.md")
			e.ScanLine(3, tt.line)

			var targets []string
			var columns []int
			for _, r := range e.References() {
				targets = append(targets, r.Target)
				columns = append(columns, r.Column)
			}
			assert.Equal(t, tt.targets, targets)
			assert.Equal(t, tt.columns, columns)
			assert.Empty(t, e.Warnings())
		})
	}
}
