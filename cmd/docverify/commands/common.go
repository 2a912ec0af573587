package commands

import (
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/docverify/internal/config"
)

// ErrVerdictFailed is returned by check when the report verdict is failing.
var ErrVerdictFailed = errors.New("verification failed")

// DefaultConfigPath is used when --config is not given.
const DefaultConfigPath = "docverify.yaml"

// Global context passed to subcommands.
type Global struct {
	Logger *slog.Logger
}

// CLI definition & global flags.
type CLI struct {
	Config    string           `short:"c" help:"Configuration file path (YAML or TOML)" default:"${config_path}"`
	Verbose   bool             `short:"v" help:"Enable verbose logging"`
	LogFormat string           `name:"log-format" help:"Log format (text or json); overrides logging.format"`
	Version   kong.VersionFlag `name:"version" help:"Show version and exit"`

	Check CheckCmd `cmd:"" default:"withargs" help:"Verify a documentation corpus and print the report"`
	Init  InitCmd  `cmd:"" help:"Write an example configuration file"`
	Cache CacheCmd `cmd:"" help:"Inspect or clear the persisted document cache"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply(g *Global) error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	g.Logger = setupLogging(os.Stderr, level, config.NormalizeLogFormat(c.LogFormat))
	return nil
}

// applyLoggingConfig replaces the logger with the configured level and
// format. Command-line flags take precedence.
func (c *CLI) applyLoggingConfig(g *Global, cfg *config.Config) {
	level := cfg.Logging.Level.Slog()
	if c.Verbose {
		level = slog.LevelDebug
	}
	format := cfg.Logging.Format
	if c.LogFormat != "" {
		format = config.NormalizeLogFormat(c.LogFormat)
	}
	g.Logger = setupLogging(os.Stderr, level, format)
}

func setupLogging(w io.Writer, level slog.Level, format config.LogFormat) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if format == config.LogFormatJSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// loadConfig reads the configuration file. A missing file at the default
// path is not an error: the built-in defaults are used instead.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && path == DefaultConfigPath {
		slog.Info("No configuration file found, using defaults", "path", path)
		cfg := &config.Config{}
		if err := cfg.Finalize(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return config.Load(path)
}
