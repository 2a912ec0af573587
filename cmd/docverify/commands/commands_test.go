package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docverify/internal/config"
	derrors "git.home.luguber.info/inful/docverify/internal/foundation/errors"
	"git.home.luguber.info/inful/docverify/internal/report"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

// newProject writes a small corpus and a configuration next to it.
func newProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "docs", "index.rst"), `Index
=====

.. toctree::

   guide
`)
	writeFile(t, filepath.Join(dir, "docs", "guide.rst"), `Guide
=====

Back to :doc:`+"`index`"+`, on to :doc:`+"`missing`"+`.
`)
	writeFile(t, filepath.Join(dir, "docverify.yaml"), `source:
  root: docs
cache:
  path: cache.db
references:
  doc: error
metrics:
  textfile: metrics.prom
`)
	return dir
}

func loadProject(t *testing.T, dir string) *config.Config {
	t.Helper()
	cfg, err := config.Load(filepath.Join(dir, "docverify.yaml"))
	require.NoError(t, err)
	// Relative outputs resolve against the project, not the test's working directory.
	cfg.Cache.Path = filepath.Join(dir, cfg.Cache.Path)
	cfg.Metrics.Textfile = filepath.Join(dir, cfg.Metrics.Textfile)
	return cfg
}

func TestRunCheck_JSON(t *testing.T) {
	dir := newProject(t)

	var out bytes.Buffer
	rep, err := RunCheck(context.Background(), loadProject(t, dir), CheckOptions{Format: "json", NoPublish: true}, &out)
	require.NoError(t, err)
	assert.False(t, rep.Passed())

	var decoded struct {
		Passed bool `json:"passed"`
		Issues []struct {
			Code     report.Code `json:"code"`
			Position string      `json:"position"`
		} `json:"issues"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.False(t, decoded.Passed)
	require.Len(t, decoded.Issues, 1)
	assert.Equal(t, report.CodeBrokenReference, decoded.Issues[0].Code)
	assert.Equal(t, "guide.rst:4:29", decoded.Issues[0].Position)

	metricsFile, err := os.ReadFile(filepath.Join(dir, "metrics.prom"))
	require.NoError(t, err)
	assert.NotEmpty(t, metricsFile)
}

func TestRunCheck_WarmCache(t *testing.T) {
	dir := newProject(t)

	first, err := RunCheck(context.Background(), loadProject(t, dir), CheckOptions{Format: "text", NoPublish: true}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, first.Stats.CacheMisses)

	// A fresh process restores the persisted documents.
	second, err := RunCheck(context.Background(), loadProject(t, dir), CheckOptions{Format: "text", NoPublish: true}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, second.Stats.CacheHits)
	assert.EqualValues(t, 0, second.Stats.CacheMisses)
	assert.Equal(t, first.Issues, second.Issues)

	var info bytes.Buffer
	require.NoError(t, RunCacheInfo(context.Background(), loadProject(t, dir), &info))
	assert.Contains(t, info.String(), "guide.rst")
	assert.Contains(t, info.String(), "2 documents")

	var cleared bytes.Buffer
	require.NoError(t, RunCacheClear(context.Background(), loadProject(t, dir), &cleared))
	info.Reset()
	require.NoError(t, RunCacheInfo(context.Background(), loadProject(t, dir), &info))
	assert.Contains(t, info.String(), "0 documents")
}

func TestRunCheck_NoCache(t *testing.T) {
	dir := newProject(t)
	_, err := RunCheck(context.Background(), loadProject(t, dir), CheckOptions{Format: "text", NoCache: true, NoPublish: true}, &bytes.Buffer{})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "cache.db"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunCheck_RootOverrideAndFailOnWarning(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "index.rst"), "Index\n=====\n\nSee :bogus:`x`.\n")
	cfg := &config.Config{}
	require.NoError(t, cfg.Finalize())

	var out bytes.Buffer
	rep, err := RunCheck(context.Background(), cfg, CheckOptions{Root: dir, Format: "text"}, &out)
	require.NoError(t, err)
	assert.True(t, rep.Passed())
	assert.Contains(t, out.String(), "UNKNOWN_ROLE")

	rep, err = RunCheck(context.Background(), cfg, CheckOptions{Root: dir, Format: "text", FailOnWarning: true}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.False(t, rep.Passed())
}

func TestRunCheck_MissingRoot(t *testing.T) {
	cfg := &config.Config{}
	require.NoError(t, cfg.Finalize())

	_, err := RunCheck(context.Background(), cfg, CheckOptions{Root: filepath.Join(t.TempDir(), "nope"), Format: "text"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Equal(t, derrors.ExitFileSystem, derrors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err))
}

func TestRunCheck_ConfigErrorBeforeDiscovery(t *testing.T) {
	cfg := &config.Config{}
	require.NoError(t, cfg.Finalize())
	cfg.Constraints = []config.ConstraintConfig{{Name: "broken", Expression: "status ==", Severity: "error"}}

	// The root does not exist either; the constraint must be reported first.
	_, err := RunCheck(context.Background(), cfg, CheckOptions{Root: filepath.Join(t.TempDir(), "nope"), Format: "text"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Equal(t, derrors.ExitConfig, derrors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err))
}

func TestRunCheck_BadFormat(t *testing.T) {
	cfg := &config.Config{}
	require.NoError(t, cfg.Finalize())

	_, err := RunCheck(context.Background(), cfg, CheckOptions{Root: t.TempDir(), Format: "xml"}, &bytes.Buffer{})
	require.Error(t, err)
}

func TestRunInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultConfigPath)

	var out bytes.Buffer
	require.NoError(t, RunInit(&out, path, false))
	assert.Contains(t, out.String(), "initialized successfully")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Constraints)

	err = RunInit(&bytes.Buffer{}, path, false)
	require.Error(t, err)
	assert.True(t, derrors.HasCategory(err, derrors.CategoryConfig))
	require.NoError(t, RunInit(&bytes.Buffer{}, path, true))
}

func TestRunCacheInfo_NotConfigured(t *testing.T) {
	err := RunCacheInfo(context.Background(), &config.Config{}, &bytes.Buffer{})
	require.Error(t, err)
	assert.True(t, derrors.HasCategory(err, derrors.CategoryConfig))
}
