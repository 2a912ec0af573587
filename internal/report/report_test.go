package report

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docverify/internal/source"
)

func issue(path string, line int, sev Severity, code Code) Issue {
	return Issue{Code: code, Severity: sev, Location: source.Location{Path: path, Line: line, Column: 1}, Message: string(code)}
}

func TestParseSeverity(t *testing.T) {
	tests := map[string]Severity{
		"":         SeverityWarning,
		"info":     SeverityInfo,
		"Warn":     SeverityWarning,
		"ERROR":    SeverityError,
		"critical": SeverityCritical,
	}
	for in, want := range tests {
		got, err := ParseSeverity(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseSeverity("fatal")
	assert.Error(t, err)
}

func TestSeverityText(t *testing.T) {
	b, err := SeverityCritical.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "critical", string(b))

	var s Severity
	require.NoError(t, s.UnmarshalText([]byte("error")))
	assert.Equal(t, SeverityError, s)
}

func TestPolicyThreshold(t *testing.T) {
	assert.Equal(t, SeverityError, DefaultPolicy().Threshold())
	assert.Equal(t, SeverityWarning, Policy{FailSeverity: SeverityError, FailOnWarning: true}.Threshold())
	assert.Equal(t, SeverityInfo, Policy{FailSeverity: SeverityInfo, FailOnWarning: true}.Threshold())
	assert.Equal(t, SeverityCritical, Policy{FailSeverity: SeverityCritical}.Threshold())
}

func TestFinalize_FailOnWarning(t *testing.T) {
	issues := []Issue{issue("a.rst", 1, SeverityWarning, CodeBrokenReference)}

	r := &Report{Issues: append([]Issue(nil), issues...)}
	r.Finalize(DefaultPolicy(), false)
	assert.Equal(t, VerdictPass, r.Verdict)
	assert.Equal(t, 0, r.ExitCode())

	r = &Report{Issues: append([]Issue(nil), issues...)}
	r.Finalize(Policy{FailSeverity: SeverityError, FailOnWarning: true}, false)
	assert.Equal(t, VerdictFail, r.Verdict)
	assert.Equal(t, 1, r.ExitCode())
}

func TestFinalize_ForcedAndIncomplete(t *testing.T) {
	r := &Report{}
	r.Finalize(DefaultPolicy(), true)
	assert.Equal(t, VerdictFail, r.Verdict)
	assert.True(t, r.Forced)
	assert.NotNil(t, r.Issues)

	r = &Report{Incomplete: true}
	r.Finalize(DefaultPolicy(), false)
	assert.Equal(t, VerdictFail, r.Verdict)
}

func TestFinalize_SortsAndCounts(t *testing.T) {
	r := &Report{Issues: []Issue{
		issue("b.rst", 1, SeverityError, CodeConstraintViolation),
		issue("a.rst", 9, SeverityInfo, CodeOrphanDocument),
		issue("a.rst", 2, SeverityCritical, CodeDuplicateID),
		issue("a.rst", 2, SeverityWarning, CodeBrokenReference),
	}}
	r.Finalize(DefaultPolicy(), false)

	var got []string
	for _, i := range r.Issues {
		got = append(got, i.Location.String()+" "+string(i.Code))
	}
	assert.Equal(t, []string{
		"a.rst:2:1 BROKEN_REFERENCE",
		"a.rst:2:1 DUPLICATE_ID",
		"a.rst:9:1 ORPHAN_DOCUMENT",
		"b.rst:1:1 CONSTRAINT_VIOLATION",
	}, got)
	assert.Equal(t, Counts{Info: 1, Warning: 1, Error: 1, Critical: 1}, r.Counts)
	assert.Equal(t, 2, r.Counts.AtLeast(SeverityError))
	assert.Equal(t, 4, r.Counts.Total())
	assert.Equal(t, VerdictFail, r.Verdict)
}

func TestTextFormatter(t *testing.T) {
	r := &Report{BuildID: "b-1", Issues: []Issue{{
		Code:        CodeBrokenReference,
		Severity:    SeverityWarning,
		Location:    source.Location{Path: "index.rst", Line: 3, Column: 5},
		Message:     `unresolved reference :func:"pkg.ru"`,
		Suggestions: []string{"pkg.run"},
		Related:     []source.Location{{Path: "api.rst", Line: 1}},
	}}}
	r.Finalize(DefaultPolicy(), false)

	var buf bytes.Buffer
	require.NoError(t, NewTextFormatter().Format(&buf, r))
	out := buf.String()
	assert.Contains(t, out, "⚠ index.rst:3:5: unresolved reference")
	assert.Contains(t, out, "[BROKEN_REFERENCE]")
	assert.Contains(t, out, "did you mean: pkg.run")
	assert.Contains(t, out, "see also: api.rst:1")
	assert.Contains(t, out, "✓ Passed (failing at error and above)")
}

func TestTextFormatter_ReferencesByDomain(t *testing.T) {
	r := &Report{BuildID: "b-3", Stats: Stats{
		References: 3,
		Resolved:   2,
		Broken:     1,
		ReferencesByDomain: map[string]ReferenceCounts{
			"std": {Total: 1, Resolved: 1},
			"py":  {Total: 2, Resolved: 1, Broken: 1},
		},
	}}
	r.Finalize(DefaultPolicy(), false)

	var buf bytes.Buffer
	require.NoError(t, NewTextFormatter().Format(&buf, r))
	out := buf.String()
	assert.Contains(t, out, "    py: 1 resolved, 1 broken\n    std: 1 resolved, 0 broken\n")
}

func TestJSONFormatter(t *testing.T) {
	r := &Report{BuildID: "b-2", Issues: []Issue{issue("a.rst", 4, SeverityError, CodeDuplicateID)}}
	r.Finalize(DefaultPolicy(), false)

	var buf bytes.Buffer
	require.NoError(t, NewJSONFormatter().Format(&buf, r))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "b-2", decoded["build_id"])
	assert.Equal(t, "fail", decoded["verdict"])
	assert.Equal(t, "error", decoded["threshold"])
	assert.Equal(t, false, decoded["passed"])
	issues := decoded["issues"].([]any)
	require.Len(t, issues, 1)
	first := issues[0].(map[string]any)
	assert.Equal(t, "a.rst:4:1", first["position"])
	assert.Equal(t, "error", first["severity"])
}

func TestNewFormatter(t *testing.T) {
	f, err := NewFormatter("JSON")
	require.NoError(t, err)
	assert.IsType(t, &JSONFormatter{}, f)
	f, err = NewFormatter("")
	require.NoError(t, err)
	assert.IsType(t, &TextFormatter{}, f)
	_, err = NewFormatter("xml")
	assert.Error(t, err)
}
