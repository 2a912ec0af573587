package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"git.home.luguber.info/inful/docverify/internal/config"
	"git.home.luguber.info/inful/docverify/internal/doccache"
	derrors "git.home.luguber.info/inful/docverify/internal/foundation/errors"
)

// CacheCmd groups the cache subcommands.
type CacheCmd struct {
	Info  CacheInfoCmd  `cmd:"" help:"List persisted documents and their fingerprints"`
	Clear CacheClearCmd `cmd:"" help:"Remove every persisted document"`
}

// CacheInfoCmd implements 'cache info'.
type CacheInfoCmd struct{}

func (c *CacheInfoCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root.Config)
	if err != nil {
		return err
	}
	return RunCacheInfo(context.Background(), cfg, os.Stdout)
}

// CacheClearCmd implements 'cache clear'.
type CacheClearCmd struct{}

func (c *CacheClearCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root.Config)
	if err != nil {
		return err
	}
	return RunCacheClear(context.Background(), cfg, os.Stdout)
}

func openCacheStore(cfg *config.Config) (*doccache.SQLiteStore, error) {
	if cfg.Cache.Path == "" {
		return nil, derrors.ConfigError("cache.path is not configured").Build()
	}
	return doccache.OpenStore(cfg.Cache.Path)
}

// RunCacheInfo prints one line per persisted document.
func RunCacheInfo(ctx context.Context, cfg *config.Config, w io.Writer) error {
	store, err := openCacheStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	fps, err := store.Fingerprints(ctx)
	if err != nil {
		return err
	}
	paths := make([]string, 0, len(fps))
	for p := range fps {
		paths = append(paths, p)
	}
	slices.Sort(paths)

	for _, p := range paths {
		fp := fps[p]
		hash := fp.Hash
		if len(hash) > 12 {
			hash = hash[:12]
		}
		_, _ = fmt.Fprintf(w, "%s  %s  %s\n", hash, time.Unix(0, fp.ModTime).UTC().Format(time.RFC3339), p)
	}
	_, _ = fmt.Fprintf(w, "%d documents in %s\n", len(paths), cfg.Cache.Path)
	return nil
}

// RunCacheClear empties the persisted cache.
func RunCacheClear(ctx context.Context, cfg *config.Config, w io.Writer) error {
	store, err := openCacheStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.Clear(ctx); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(w, "Cleared document cache %s\n", cfg.Cache.Path)
	return nil
}
