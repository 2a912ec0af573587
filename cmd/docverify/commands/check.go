package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/docverify/internal/build"
	"git.home.luguber.info/inful/docverify/internal/config"
	"git.home.luguber.info/inful/docverify/internal/doccache"
	"git.home.luguber.info/inful/docverify/internal/logfields"
	"git.home.luguber.info/inful/docverify/internal/metrics"
	"git.home.luguber.info/inful/docverify/internal/publish"
	"git.home.luguber.info/inful/docverify/internal/report"
	"git.home.luguber.info/inful/docverify/internal/source"
)

// CheckCmd implements the 'check' command.
type CheckCmd struct {
	Root          string `arg:"" optional:"" help:"Corpus root; overrides source.root"`
	Format        string `short:"f" default:"text" help:"Output format (text or json)" enum:"text,human,json"`
	FailOnWarning bool   `name:"fail-on-warning" help:"Treat warnings as failures"`
	NoCache       bool   `name:"no-cache" help:"Do not read or write the persisted document cache"`
	NoPublish     bool   `name:"no-publish" help:"Skip publishing the summary to NATS"`
}

func (c *CheckCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root.Config)
	if err != nil {
		return err
	}
	root.applyLoggingConfig(g, cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rep, err := RunCheck(ctx, cfg, CheckOptions{
		Root:          c.Root,
		Format:        c.Format,
		FailOnWarning: c.FailOnWarning,
		NoCache:       c.NoCache,
		NoPublish:     c.NoPublish,
	}, os.Stdout)
	if err != nil {
		return err
	}
	if !rep.Passed() {
		return ErrVerdictFailed
	}
	return nil
}

// CheckOptions are the command-line overrides of a check.
type CheckOptions struct {
	Root          string
	Format        string
	FailOnWarning bool
	NoCache       bool
	NoPublish     bool
}

// RunCheck discovers the corpus, runs a build and writes the formatted
// report to w. The returned error covers conditions that prevent a report;
// a failing verdict is reported through the report.
func RunCheck(ctx context.Context, cfg *config.Config, opts CheckOptions, w io.Writer) (*report.Report, error) {
	if opts.Root != "" {
		cfg.Source.Root = opts.Root
	}
	if opts.FailOnWarning {
		cfg.Build.FailOnWarning = true
	}
	formatter, err := report.NewFormatter(opts.Format)
	if err != nil {
		return nil, err
	}

	// Configuration errors abort before any file is read.
	orch, err := build.NewFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	files, err := source.Discover(ctx, cfg.Source.Root, cfg.Source.Include, cfg.Source.Exclude)
	if err != nil {
		return nil, err
	}
	var recorder *metrics.PrometheusRecorder
	if cfg.Metrics.Textfile != "" {
		recorder = metrics.NewPrometheusRecorder(prom.NewRegistry())
		orch.WithRecorder(recorder)
	}

	var store *doccache.SQLiteStore
	if cfg.Cache.Path != "" && !opts.NoCache {
		store, err = doccache.OpenStore(cfg.Cache.Path)
		if err != nil {
			slog.Warn("Document cache unavailable, continuing without it", logfields.Error(err))
			store = nil
		} else {
			defer func() { _ = store.Close() }()
			n := orch.Cache().Restore(ctx, store)
			slog.Debug("Document cache restored", logfields.Count(n), logfields.Path(cfg.Cache.Path))
		}
	}

	res, err := orch.Run(ctx, files)
	if err != nil {
		return nil, err
	}
	rep := res.Report

	if store != nil && !rep.Incomplete {
		if err := orch.Cache().Persist(context.WithoutCancel(ctx), store); err != nil {
			slog.Warn("Failed to persist document cache", logfields.Error(err))
		}
	}

	if err := formatter.Format(w, rep); err != nil {
		return rep, fmt.Errorf("write report: %w", err)
	}

	if recorder != nil {
		if err := metrics.WriteTextfile(cfg.Metrics.Textfile, recorder.Registry()); err != nil {
			return rep, err
		}
	}

	if cfg.Publish.Enabled() && !opts.NoPublish {
		if err := publishSummary(ctx, cfg.Publish, rep); err != nil {
			return rep, err
		}
	}
	return rep, nil
}

func publishSummary(ctx context.Context, cfg config.PublishConfig, rep *report.Report) error {
	client, err := publish.NewNATSClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()
	return client.Publish(ctx, rep)
}
