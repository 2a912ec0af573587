package config

import "math"

// Default values used when a field is omitted.
var (
	DefaultInclude        = []string{"**/*.rst", "**/*.md"}
	DefaultExclude        = []string{"_build/**", ".*/**"}
	DefaultNeedDirectives = []string{"req", "spec", "need", "test", "impl"}
	DefaultRelationFields = []string{"links"}
)

const (
	DefaultRootDoc      = "index"
	DefaultMaxItems     = 4096
	DefaultMaxBytes     = 256 << 20
	DefaultFailSeverity = "error"
	DefaultSubject      = "docverify.reports"
	DefaultKVBucket     = "docverify"
)

// DefaultApplier applies defaults for a specific configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config) error
	Domain() string
}

// SourceDefaultApplier handles source discovery defaults.
type SourceDefaultApplier struct{}

func (SourceDefaultApplier) Domain() string { return "source" }

func (SourceDefaultApplier) ApplyDefaults(cfg *Config) error {
	s := &cfg.Source
	if s.Root == "" {
		s.Root = "."
	}
	if len(s.Include) == 0 {
		s.Include = append([]string(nil), DefaultInclude...)
	}
	if s.Exclude == nil {
		s.Exclude = append([]string(nil), DefaultExclude...)
	}
	if s.RootDoc == "" {
		s.RootDoc = DefaultRootDoc
	}
	if len(s.NeedDirectives) == 0 {
		s.NeedDirectives = append([]string(nil), DefaultNeedDirectives...)
	}
	if len(s.RelationFields) == 0 {
		s.RelationFields = append([]string(nil), DefaultRelationFields...)
	}
	return nil
}

// CacheDefaultApplier handles cache budget defaults.
type CacheDefaultApplier struct{}

func (CacheDefaultApplier) Domain() string { return "cache" }

func (CacheDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Cache.MaxItems == 0 {
		cfg.Cache.MaxItems = DefaultMaxItems
	}
	if cfg.Cache.MaxBytes == 0 {
		cfg.Cache.MaxBytes = DefaultMaxBytes
	}
	// Negative values disable a budget.
	if cfg.Cache.MaxItems < 0 {
		cfg.Cache.MaxItems = math.MaxInt
	}
	if cfg.Cache.MaxBytes < 0 {
		cfg.Cache.MaxBytes = math.MaxInt64
	}
	return nil
}

// BuildDefaultApplier handles build and verdict defaults.
type BuildDefaultApplier struct{}

func (BuildDefaultApplier) Domain() string { return "build" }

func (BuildDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Build.FailSeverity == "" {
		cfg.Build.FailSeverity = DefaultFailSeverity
	}
	return nil
}

// LoggingDefaultApplier normalises logging enums.
type LoggingDefaultApplier struct{}

func (LoggingDefaultApplier) Domain() string { return "logging" }

func (LoggingDefaultApplier) ApplyDefaults(cfg *Config) error {
	cfg.Logging.Level = NormalizeLogLevel(string(cfg.Logging.Level))
	cfg.Logging.Format = NormalizeLogFormat(string(cfg.Logging.Format))
	return nil
}

// PublishDefaultApplier fills subject and bucket when a NATS URL is set.
type PublishDefaultApplier struct{}

func (PublishDefaultApplier) Domain() string { return "publish" }

func (PublishDefaultApplier) ApplyDefaults(cfg *Config) error {
	if !cfg.Publish.Enabled() {
		return nil
	}
	if cfg.Publish.Subject == "" {
		cfg.Publish.Subject = DefaultSubject
	}
	if cfg.Publish.KVBucket == "" {
		cfg.Publish.KVBucket = DefaultKVBucket
	}
	return nil
}

var defaultAppliers = []DefaultApplier{
	SourceDefaultApplier{},
	CacheDefaultApplier{},
	BuildDefaultApplier{},
	LoggingDefaultApplier{},
	PublishDefaultApplier{},
}

func applyDefaults(cfg *Config) error {
	for _, a := range defaultAppliers {
		if err := a.ApplyDefaults(cfg); err != nil {
			return err
		}
	}
	return nil
}
