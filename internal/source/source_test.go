package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeFingerprint(t *testing.T) {
	now := time.Unix(1700000000, 0)

	a := ComputeFingerprint([]byte("Title\n=====\n"), now)
	b := ComputeFingerprint([]byte("Title\n=====\n"), now)
	assert.Equal(t, a, b)
	assert.Equal(t, a.Key(), b.Key())
	assert.False(t, a.IsZero())

	changed := ComputeFingerprint([]byte("Title\n=====\n\nMore.\n"), now)
	assert.NotEqual(t, a.Hash, changed.Hash)

	touched := ComputeFingerprint([]byte("Title\n=====\n"), now.Add(time.Second))
	assert.Equal(t, a.Hash, touched.Hash)
	assert.NotEqual(t, a.Key(), touched.Key())
}

func TestNewFile_NormalisesPath(t *testing.T) {
	f := NewFile(`guide\install.rst`, []byte("x"), time.Time{})
	assert.Equal(t, "guide/install.rst", f.Path)
	assert.Equal(t, "guide/install", f.DocID())
}

func TestDocID(t *testing.T) {
	assert.Equal(t, "index", DocID("index.rst"))
	assert.Equal(t, "api/v1.2/module", DocID("api/v1.2/module.md"))
	assert.Equal(t, "README", DocID("README"))
}

func TestLocation(t *testing.T) {
	assert.Equal(t, "a.rst", Location{Path: "a.rst"}.String())
	assert.Equal(t, "a.rst:3", Location{Path: "a.rst", Line: 3}.String())
	assert.Equal(t, "a.rst:3:7", Location{Path: "a.rst", Line: 3, Column: 7}.String())

	locs := []Location{
		{Path: "b.rst", Line: 1, Column: 1},
		{Path: "a.rst", Line: 2, Column: 1},
		{Path: "a.rst", Line: 1, Column: 9},
	}
	assert.Positive(t, locs[0].Compare(locs[1]))
	assert.Positive(t, locs[1].Compare(locs[2]))
	assert.Zero(t, locs[2].Compare(locs[2]))
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	for _, p := range []string{
		"index.rst",
		"guide/install.md",
		"guide/notes.txt",
		"_build/html/index.rst",
		".git/config.rst",
		"api/deep/module.rst",
	} {
		full := filepath.Join(root, filepath.FromSlash(p))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte("content of "+p), 0o600))
	}

	files, err := Discover(context.Background(), root, []string{"**/*.rst", "**/*.md"}, []string{"_build/**", ".*/**"})
	require.NoError(t, err)

	var paths []string
	for _, f := range files {
		paths = append(paths, f.Path)
		assert.False(t, f.Fingerprint.IsZero())
	}
	assert.Equal(t, []string{"api/deep/module.rst", "guide/install.md", "index.rst"}, paths)
	assert.Equal(t, "content of index.rst", string(files[2].Content))
}

func TestDiscover_Errors(t *testing.T) {
	_, err := Discover(context.Background(), filepath.Join(t.TempDir(), "missing"), []string{"**/*.rst"}, nil)
	require.Error(t, err)

	_, err = Discover(context.Background(), t.TempDir(), []string{"[unclosed"}, nil)
	require.Error(t, err)
}

func TestDiscover_Canceled(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.rst"), []byte("a"), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Discover(ctx, root, []string{"**/*.rst"}, nil)
	require.ErrorIs(t, err, context.Canceled)
}
