package source

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	derrors "git.home.luguber.info/inful/docverify/internal/foundation/errors"
	"git.home.luguber.info/inful/docverify/internal/logfields"
)

// Discover walks root and returns every file matched by at least one include
// pattern and by no exclude pattern, sorted by path. Patterns use doublestar
// syntax against slash-separated paths relative to root.
func Discover(ctx context.Context, root string, include, exclude []string) ([]File, error) {
	for _, p := range append(append([]string(nil), include...), exclude...) {
		if !doublestar.ValidatePattern(p) {
			return nil, derrors.ConfigError("invalid glob pattern").WithContext("pattern", p).Build()
		}
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, derrors.FileSystemError("source root not accessible").
			WithCause(err).
			WithContext("path", root).
			Fatal().
			Build()
	}
	if !info.IsDir() {
		return nil, derrors.FileSystemError("source root is not a directory").
			WithContext("path", root).
			Fatal().
			Build()
	}

	var files []File
	err = fs.WalkDir(os.DirFS(root), ".", func(rel string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			if matchAny(exclude, rel) {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !matchAny(include, rel) || matchAny(exclude, rel) {
			return nil
		}

		content, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			return err
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, NewFile(rel, content, fi.ModTime()))
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, derrors.FileSystemError("failed to discover sources").
			WithCause(err).
			WithContext("path", root).
			Fatal().
			Build()
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	slog.Debug("Discovered source files", logfields.Path(root), logfields.Count(len(files)))
	return files, nil
}

func matchAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}
