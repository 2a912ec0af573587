package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	derrors "git.home.luguber.info/inful/docverify/internal/foundation/errors"
)

// Format is the on-disk encoding of a configuration file.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFor picks the encoding from the file extension; anything that is not
// .toml is read as YAML.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// Load reads, decodes, defaults and validates a configuration file.
// .env files are loaded first and ${VAR} references are expanded.
func Load(configPath string) (*Config, error) {
	loadEnvFiles()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, derrors.ConfigError("configuration file not found").
				WithCause(err).
				WithContext("path", configPath).
				Build()
		}
		return nil, derrors.ConfigError("failed to read config file").
			WithCause(err).
			WithContext("path", configPath).
			Build()
	}

	cfg, err := Decode([]byte(os.ExpandEnv(string(data))), FormatFor(configPath))
	if err != nil {
		return nil, derrors.ConfigError("failed to decode config file").
			WithCause(err).
			WithContext("path", configPath).
			Build()
	}

	// Relative roots are resolved against the directory holding the config file.
	if !filepath.IsAbs(cfg.Source.Root) {
		cfg.Source.Root = filepath.Join(filepath.Dir(configPath), cfg.Source.Root)
	}
	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode parses raw configuration bytes. Unknown keys are rejected.
func Decode(data []byte, format Format) (*Config, error) {
	var cfg Config
	switch format {
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("toml: %w", err)
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		// An empty document decodes to the zero config.
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("yaml: %w", err)
		}
	}
	return &cfg, nil
}

// Finalize applies defaults and validates.
func (c *Config) Finalize() error {
	if err := applyDefaults(c); err != nil {
		return err
	}
	return Validate(c)
}

// Init writes an example configuration to configPath.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return derrors.ConfigError("configuration file already exists (use --force to overwrite)").
			WithContext("path", configPath).
			Build()
	}

	cfg := Example()
	var (
		data []byte
		err  error
	)
	if FormatFor(configPath) == FormatTOML {
		data, err = toml.Marshal(cfg)
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return derrors.InternalError("failed to marshal example config").WithCause(err).Build()
	}

	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return derrors.FileSystemError("failed to write config file").
			WithCause(err).
			WithContext("path", configPath).
			Build()
	}
	return nil
}

// Example returns the configuration written by `docverify init`.
func Example() *Config {
	cfg := &Config{}
	_ = applyDefaults(cfg)
	cfg.Source.Root = "docs"
	cfg.Roles = map[string]RoleMapping{
		"req": {Domain: "std", Type: "label"},
	}
	cfg.References = map[string]string{
		"doc": "error",
	}
	cfg.Constraints = []ConstraintConfig{
		{
			Name:       "critical_needs_completion",
			Expression: "priority != 'critical' or status in ['complete', 'verified']",
			Severity:   "error",
			Actions:    []string{"warn", "apply_style"},
			Styles:     []string{"needs-attention"},
			Message:    "{{.ID}} is critical but has status {{index .Fields \"status\"}}",
		},
	}
	return cfg
}
