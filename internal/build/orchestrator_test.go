package build

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docverify/internal/config"
	"git.home.luguber.info/inful/docverify/internal/constraint"
	derrors "git.home.luguber.info/inful/docverify/internal/foundation/errors"
	"git.home.luguber.info/inful/docverify/internal/report"
	"git.home.luguber.info/inful/docverify/internal/source"
)

func file(p, content string) source.File {
	return source.NewFile(p, []byte(content), time.Unix(0, 0))
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Workers = 4
	opts.CheckOrphans = false
	return opts
}

func issuesWith(rep *report.Report, code report.Code) []report.Issue {
	var out []report.Issue
	for _, i := range rep.Issues {
		if i.Code == code {
			out = append(out, i)
		}
	}
	return out
}

func mustRun(t *testing.T, o *Orchestrator, files ...source.File) *Result {
	t.Helper()
	res, err := o.Run(context.Background(), files)
	require.NoError(t, err)
	return res
}

func TestRun_LateDefinitionResolves(t *testing.T) {
	files := []source.File{
		file("a.rst", "Uses :py:func:`pkg.run` early.\n"),
		file("b.rst", ".. py:function:: pkg.run()\n"),
	}
	for _, workers := range []int{1, 8} {
		opts := testOptions()
		opts.Workers = workers
		res := mustRun(t, New(opts, nil), files...)

		assert.Empty(t, issuesWith(res.Report, report.CodeBrokenReference), "workers=%d", workers)
		assert.Equal(t, 1, res.Report.Stats.References)
		assert.Equal(t, 1, res.Report.Stats.Resolved)
		assert.True(t, res.Report.Passed())
	}
}

func TestRun_BrokenReferenceSuggestions(t *testing.T) {
	res := mustRun(t, New(testOptions(), nil),
		file("api.rst", ".. py:function:: pkg.run()\n\n.. py:function:: pkg.runner()\n"),
		file("guide.rst", "See :py:func:`pkg.ru`.\n"),
	)

	broken := issuesWith(res.Report, report.CodeBrokenReference)
	require.Len(t, broken, 1)
	assert.Equal(t, report.SeverityWarning, broken[0].Severity)
	assert.Equal(t, "guide.rst", broken[0].Location.Path)
	assert.Equal(t, []string{"pkg.run", "pkg.runner"}, broken[0].Suggestions)
	assert.Equal(t, 1, res.Report.Stats.Broken)
	assert.True(t, res.Report.Passed())
}

func TestRun_DirectiveArgumentReferences(t *testing.T) {
	res := mustRun(t, New(testOptions(), nil),
		file("index.rst", ".. seealso:: :doc:`missing-page`\n\n.. note:: Read :ref:`nowhere` first.\n"),
		file("notes.md", "```{note} See :doc:`absent`\n```\n"),
	)

	broken := issuesWith(res.Report, report.CodeBrokenReference)
	require.Len(t, broken, 3)
	assert.Equal(t, "index.rst:1:14", broken[0].Location.String())
	assert.Equal(t, "index.rst:3:16", broken[1].Location.String())
	assert.Equal(t, "notes.md:1:15", broken[2].Location.String())
	assert.Equal(t, 3, res.Report.Stats.References)
	assert.Equal(t, 3, res.Report.Stats.Broken)
}

func TestRun_ReferenceStatsByDomainAndRole(t *testing.T) {
	res := mustRun(t, New(testOptions(), nil), file("a.rst",
		".. py:function:: pkg.run()\n\n"+
			":py:func:`pkg.run` :func:`pkg.gone` :doc:`a` :doc:`https://example.org` :bogus:`z`\n"))

	s := res.Report.Stats
	assert.Equal(t, 5, s.References)
	assert.Equal(t, map[string]report.ReferenceCounts{
		"py":  {Total: 2, Resolved: 1, Broken: 1},
		"std": {Total: 1, Resolved: 1},
	}, s.ReferencesByDomain)
	assert.Equal(t, map[string]report.ReferenceCounts{
		"py:func": {Total: 1, Resolved: 1},
		"func":    {Total: 1, Broken: 1},
		"doc":     {Total: 2, Resolved: 1, External: 1},
		"bogus":   {Total: 1, UnknownRole: 1},
	}, s.ReferencesByRole)
}

func TestRun_DirectiveChecks(t *testing.T) {
	files := []source.File{
		file("index.rst", ".. notee:: Typo.\n\n"+
			".. image:: logo.png\n"+
			"   :alignn: left\n"+
			"   :scale: big\n\n"+
			".. include::\n\n"+
			".. mermaid::\n\n"+
			"   graph TD\n\n"+
			".. req:: Login\n"+
			"   :id: REQ-1\n"+
			"   :anything: goes\n"),
		file("notes.md", "```{toctree}\n:maxdepth: deep\n\nindex\n```\n"),
	}

	opts := testOptions()
	opts.ExtraDirectives = []string{"mermaid"}
	res := mustRun(t, New(opts, nil), files...)

	unknown := issuesWith(res.Report, report.CodeUnknownDirective)
	require.Len(t, unknown, 1)
	assert.Equal(t, "index.rst:1:1", unknown[0].Location.String())
	assert.Equal(t, report.SeverityWarning, unknown[0].Severity)
	assert.Equal(t, []string{"note"}, unknown[0].Suggestions)

	invalid := issuesWith(res.Report, report.CodeInvalidDirectiveOption)
	require.Len(t, invalid, 3)
	assert.Equal(t, "index.rst:4", invalid[0].Location.String())
	assert.Equal(t, []string{"align"}, invalid[0].Suggestions)
	assert.Equal(t, "index.rst:5", invalid[1].Location.String())
	assert.Equal(t, "notes.md:2", invalid[2].Location.String())

	shape := issuesWith(res.Report, report.CodeInvalidDirective)
	require.Len(t, shape, 1)
	assert.Equal(t, "index.rst:7:1", shape[0].Location.String())
	assert.Contains(t, shape[0].Message, "requires an argument")

	opts.CheckDirectives = false
	res = mustRun(t, New(opts, nil), files...)
	assert.Empty(t, issuesWith(res.Report, report.CodeUnknownDirective))
	assert.Empty(t, issuesWith(res.Report, report.CodeInvalidDirectiveOption))
	assert.Empty(t, issuesWith(res.Report, report.CodeInvalidDirective))
}

func TestRun_BrokenSeverityByRole(t *testing.T) {
	opts := testOptions()
	opts.BrokenSeverity = map[string]report.Severity{"func": report.SeverityError}
	res := mustRun(t, New(opts, nil), file("guide.rst", "See :py:func:`pkg.missing`.\n"))

	broken := issuesWith(res.Report, report.CodeBrokenReference)
	require.Len(t, broken, 1)
	assert.Equal(t, report.SeverityError, broken[0].Severity)
	assert.False(t, res.Report.Passed())
}

func TestRun_FailOnWarning(t *testing.T) {
	files := []source.File{file("a.rst", "A :bogus:`thing` here.\n")}

	res := mustRun(t, New(testOptions(), nil), files...)
	require.Len(t, issuesWith(res.Report, report.CodeUnknownRole), 1)
	assert.True(t, res.Report.Passed())
	assert.Equal(t, derrors.ExitOK, res.Report.ExitCode())

	opts := testOptions()
	opts.Policy.FailOnWarning = true
	res = mustRun(t, New(opts, nil), files...)
	assert.False(t, res.Report.Passed())
	assert.Equal(t, derrors.ExitVerdictFailed, res.Report.ExitCode())
}

func TestRun_DuplicateIDReportedOnce(t *testing.T) {
	req := ".. req:: Login\n   :id: REQ-1\n   :status: open\n"
	res := mustRun(t, New(testOptions(), nil),
		file("b.rst", req),
		file("a.rst", req),
	)

	dups := issuesWith(res.Report, report.CodeDuplicateID)
	require.Len(t, dups, 1)
	assert.Equal(t, report.SeverityCritical, dups[0].Severity)
	assert.Equal(t, "b.rst", dups[0].Location.Path)
	assert.Equal(t, []source.Location{{Path: "a.rst", Line: 1, Column: 1}}, dups[0].Related)
	assert.Equal(t, "REQ-1", dups[0].ItemID)
	assert.False(t, res.Report.Passed())
}

func TestRun_DuplicateObject(t *testing.T) {
	res := mustRun(t, New(testOptions(), nil),
		file("a.rst", ".. envvar:: HOME_DIR\n"),
		file("b.rst", ".. envvar:: HOME_DIR\n"),
	)

	dups := issuesWith(res.Report, report.CodeDuplicateObject)
	require.Len(t, dups, 1)
	assert.Equal(t, "b.rst", dups[0].Location.Path)
	assert.Equal(t, "a.rst", dups[0].Related[0].Path)
}

func newEngine(t *testing.T, cfgs ...config.ConstraintConfig) *constraint.Engine {
	t.Helper()
	rules, err := constraint.RulesFromConfig(cfgs)
	require.NoError(t, err)
	return constraint.NewEngine(rules)
}

func TestRun_ConstraintActions(t *testing.T) {
	engine := newEngine(t,
		config.ConstraintConfig{
			Name:       "done",
			Expression: "status == 'complete'",
			Severity:   "info",
			Styles:     []string{"red"},
		},
		config.ConstraintConfig{
			Name:       "owned",
			Expression: "owner",
			Severity:   "info",
			Actions:    []string{"fail_build"},
		},
	)
	files := []source.File{
		file("reqs.rst", ".. req:: Login\n   :id: REQ-1\n   :status: open\n   :constraints: done\n\n"+
			".. req:: Logout\n   :id: REQ-2\n   :status: complete\n   :owner: alice\n   :constraints: done, owned\n"),
	}
	o := New(testOptions(), engine)

	for range 2 {
		res := mustRun(t, o, files...)
		require.Len(t, res.Items, 2)
		assert.Equal(t, []string{"red"}, res.Items[0].Tags)
		assert.Empty(t, res.Items[1].Tags)

		violations := issuesWith(res.Report, report.CodeConstraintViolation)
		require.Len(t, violations, 1)
		assert.Equal(t, "done", violations[0].Rule)
		assert.Equal(t, "REQ-1", violations[0].ItemID)
		assert.Equal(t, 3, res.Report.Stats.RulesEvaluated)
		assert.Equal(t, 1, res.Report.Stats.RulesFailed)
		assert.False(t, res.Report.Forced)
		assert.True(t, res.Report.Passed())
	}

	doc, err := o.Cache().GetOrParse(context.Background(), files[0])
	require.NoError(t, err)
	assert.Empty(t, doc.Items[0].Tags, "cached documents must not be mutated")
}

func TestRun_FailBuildForcesVerdict(t *testing.T) {
	engine := newEngine(t, config.ConstraintConfig{
		Name:       "owned",
		Expression: "owner",
		Severity:   "info",
		Actions:    []string{"fail_build"},
	})
	res := mustRun(t, New(testOptions(), engine),
		file("reqs.rst", ".. req:: Login\n   :id: REQ-1\n   :constraints: owned\n"))

	assert.True(t, res.Report.Forced)
	assert.False(t, res.Report.Passed())
	require.Len(t, issuesWith(res.Report, report.CodeConstraintViolation), 1)
}

func TestRun_IncrementalUsesCache(t *testing.T) {
	o := New(testOptions(), nil)
	files := []source.File{
		file("a.rst", "Uses :py:func:`pkg.run`.\n"),
		file("b.rst", ".. py:function:: pkg.run()\n"),
	}

	first := mustRun(t, o, files...)
	assert.EqualValues(t, 2, first.Report.Stats.CacheMisses)
	assert.EqualValues(t, 0, first.Report.Stats.CacheHits)

	second := mustRun(t, o, files...)
	assert.EqualValues(t, 0, second.Report.Stats.CacheMisses)
	assert.EqualValues(t, 2, second.Report.Stats.CacheHits)
	assert.Equal(t, first.Report.Issues, second.Report.Issues)
	assert.NotEqual(t, first.Report.BuildID, second.Report.BuildID)

	// Removing the definition must break the reference even though a.rst
	// itself is unchanged and served from the cache.
	files[1] = source.NewFile("b.rst", []byte("Nothing here.\n"), time.Unix(1, 0))
	third := mustRun(t, o, files...)
	assert.EqualValues(t, 1, third.Report.Stats.CacheMisses)
	assert.EqualValues(t, 1, third.Report.Stats.CacheHits)
	assert.Len(t, issuesWith(third.Report, report.CodeBrokenReference), 1)
}

func TestRun_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := New(testOptions(), nil).Run(ctx, []source.File{
		file("a.rst", "Uses :py:func:`pkg.missing`.\n"),
	})
	require.NoError(t, err)

	assert.True(t, res.Report.Incomplete)
	assert.False(t, res.Report.Passed())
	assert.Len(t, issuesWith(res.Report, report.CodeBuildCanceled), 1)
	assert.Empty(t, issuesWith(res.Report, report.CodeBrokenReference))
}

func TestRun_ToctreeAndOrphans(t *testing.T) {
	opts := testOptions()
	opts.CheckOrphans = true
	index := `Index
=====

.. toctree::
   :glob:

   guide
   missing
   sub/*
   empty/*
`
	res := mustRun(t, New(opts, nil),
		file("index.rst", index),
		file("guide.rst", "Guide\n=====\n"),
		file("sub/x.rst", "X\n=\n"),
		file("lonely.rst", "Lonely\n======\n"),
	)

	missing := issuesWith(res.Report, report.CodeMissingToctreeEntry)
	require.Len(t, missing, 2)
	assert.Contains(t, missing[0].Message, "missing")
	assert.Contains(t, missing[1].Message, "empty/*")

	orphans := issuesWith(res.Report, report.CodeOrphanDocument)
	require.Len(t, orphans, 1)
	assert.Equal(t, "lonely.rst", orphans[0].Location.Path)
	assert.Equal(t, report.SeverityInfo, orphans[0].Severity)
}

func TestRun_BrokenItemLink(t *testing.T) {
	res := mustRun(t, New(testOptions(), nil),
		file("reqs.rst", ".. req:: A\n   :id: REQ-1\n   :links: REQ-2, REQ-404\n\n.. req:: B\n   :id: REQ-2\n"))

	links := issuesWith(res.Report, report.CodeBrokenItemLink)
	require.Len(t, links, 1)
	assert.Equal(t, "REQ-1", links[0].ItemID)
	assert.Contains(t, links[0].Message, "REQ-404")
}

func TestRun_ParseFailure(t *testing.T) {
	res := mustRun(t, New(testOptions(), nil),
		source.NewFile("bad.rst", []byte{0xff, 0xfe}, time.Unix(0, 0)),
		file("good.rst", "Fine.\n"),
	)

	failures := issuesWith(res.Report, report.CodeParseFailure)
	require.Len(t, failures, 1)
	assert.Equal(t, "bad.rst", failures[0].Location.Path)
	assert.Equal(t, 1, res.Report.Stats.ParseFailures)
	assert.Equal(t, 1, res.Report.Stats.Documents)
	assert.False(t, res.Report.Passed())
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := &config.Config{
		Build:      config.BuildConfig{Workers: 3, FailSeverity: "critical", FailOnWarning: true},
		Roles:      map[string]config.RoleMapping{"setting": {Domain: "std", Type: "envvar"}},
		References: map[string]string{"func": "error"},
	}
	opts, err := OptionsFromConfig(cfg)
	require.NoError(t, err)

	assert.Equal(t, 3, opts.Workers)
	assert.Equal(t, report.SeverityWarning, opts.Policy.Threshold())
	assert.Equal(t, report.SeverityError, opts.brokenSeverity("func"))
	assert.Equal(t, report.SeverityError, opts.brokenSeverity("py:func"))
	assert.Equal(t, report.SeverityWarning, opts.brokenSeverity("class"))
	assert.Contains(t, opts.Roles, "setting")
	assert.True(t, opts.CheckOrphans)
	assert.True(t, opts.CheckDirectives)

	cfg.References["func"] = "loud"
	_, err = OptionsFromConfig(cfg)
	require.Error(t, err)
	assert.True(t, derrors.HasCategory(err, derrors.CategoryConfig))
}

func TestNewFromConfig_UnknownDomain(t *testing.T) {
	cfg := &config.Config{
		Build: config.BuildConfig{FailSeverity: "error"},
		Roles: map[string]config.RoleMapping{"rust": {Domain: "rs", Type: "fn"}},
	}
	_, err := NewFromConfig(cfg)
	require.Error(t, err)
	assert.True(t, derrors.HasCategory(err, derrors.CategoryConfig))
}

func TestRun_CustomRole(t *testing.T) {
	cfg := &config.Config{
		Build: config.BuildConfig{FailSeverity: "error"},
		Roles: map[string]config.RoleMapping{"setting": {Domain: "std", Type: "envvar"}},
	}
	o, err := NewFromConfig(cfg)
	require.NoError(t, err)

	res := mustRun(t, o,
		file("env.rst", ".. envvar:: APP_HOME\n\nSet :setting:`APP_HOME`.\n"))
	assert.Empty(t, issuesWith(res.Report, report.CodeUnknownRole))
	assert.Empty(t, issuesWith(res.Report, report.CodeBrokenReference))
	assert.Equal(t, 1, res.Report.Stats.Resolved)
}
