package config

// Config is the validated configuration object handed to the build.
type Config struct {
	Source      SourceConfig           `yaml:"source" toml:"source"`
	Cache       CacheConfig            `yaml:"cache" toml:"cache"`
	Build       BuildConfig            `yaml:"build" toml:"build"`
	Roles       map[string]RoleMapping `yaml:"roles,omitempty" toml:"roles,omitempty"`           // custom role -> (domain, object type)
	References  map[string]string      `yaml:"references,omitempty" toml:"references,omitempty"` // role -> severity for broken references
	Constraints []ConstraintConfig     `yaml:"constraints,omitempty" toml:"constraints,omitempty"`
	Logging     LoggingConfig          `yaml:"logging" toml:"logging"`
	Metrics     MetricsConfig          `yaml:"metrics,omitempty" toml:"metrics,omitempty"`
	Publish     PublishConfig          `yaml:"publish,omitempty" toml:"publish,omitempty"`
}

// SourceConfig controls discovery and content parsing.
type SourceConfig struct {
	Root           string   `yaml:"root" toml:"root"`
	Include        []string `yaml:"include" toml:"include"`
	Exclude        []string `yaml:"exclude" toml:"exclude"`
	RootDoc        string   `yaml:"root_doc" toml:"root_doc"`                 // document id exempt from orphan checks
	NeedDirectives []string `yaml:"need_directives" toml:"need_directives"`   // directive names that declare content items
	RelationFields []string `yaml:"relation_fields" toml:"relation_fields"` // item options treated as links to other items
	// ExtraDirectives names extension directives accepted without checks.
	ExtraDirectives []string `yaml:"extra_directives,omitempty" toml:"extra_directives,omitempty"`
}

// CacheConfig bounds the document cache. Zero selects the default budget and a
// negative value disables it.
type CacheConfig struct {
	MaxItems int    `yaml:"max_items" toml:"max_items"`
	MaxBytes int64  `yaml:"max_bytes" toml:"max_bytes"`
	Path     string `yaml:"path,omitempty" toml:"path,omitempty"` // SQLite file for persistence between runs
}

// BuildConfig controls scheduling and the verdict.
type BuildConfig struct {
	Workers       int    `yaml:"workers" toml:"workers"` // 0 means GOMAXPROCS
	FailOnWarning bool   `yaml:"fail_on_warning" toml:"fail_on_warning"`
	FailSeverity  string `yaml:"fail_severity" toml:"fail_severity"`
	CheckOrphans  *bool  `yaml:"check_orphans,omitempty" toml:"check_orphans,omitempty"`
	// CheckDirectives toggles unknown and malformed directive warnings.
	CheckDirectives *bool `yaml:"check_directives,omitempty" toml:"check_directives,omitempty"`
}

// OrphanChecks reports whether orphan detection is enabled (default true).
func (b BuildConfig) OrphanChecks() bool {
	return b.CheckOrphans == nil || *b.CheckOrphans
}

// DirectiveChecks reports whether directive checks are enabled (default true).
func (b BuildConfig) DirectiveChecks() bool {
	return b.CheckDirectives == nil || *b.CheckDirectives
}

// RoleMapping maps a role onto a domain and object type.
type RoleMapping struct {
	Domain string `yaml:"domain" toml:"domain"`
	Type   string `yaml:"type" toml:"type"`
}

// ConstraintConfig declares one constraint rule.
type ConstraintConfig struct {
	Name       string   `yaml:"name" toml:"name"`
	Expression string   `yaml:"expression" toml:"expression"`
	Severity   string   `yaml:"severity" toml:"severity"`
	Actions    []string `yaml:"actions,omitempty" toml:"actions,omitempty"` // warn | fail_build | apply_style
	Styles     []string `yaml:"styles,omitempty" toml:"styles,omitempty"`
	Message    string   `yaml:"message,omitempty" toml:"message,omitempty"` // text/template
	Global     bool     `yaml:"global,omitempty" toml:"global,omitempty"`   // evaluate against every item
}

// MetricsConfig configures the Prometheus textfile export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile,omitempty" toml:"textfile,omitempty"`
}

// PublishConfig configures publishing of the report summary to NATS.
type PublishConfig struct {
	URL      string `yaml:"url,omitempty" toml:"url,omitempty"`
	Subject  string `yaml:"subject,omitempty" toml:"subject,omitempty"`
	KVBucket string `yaml:"kv_bucket,omitempty" toml:"kv_bucket,omitempty"`
	Retries  int    `yaml:"retries,omitempty" toml:"retries,omitempty"` // retries after a failed publish
	Backoff  string `yaml:"backoff,omitempty" toml:"backoff,omitempty"` // fixed | linear | exponential
}

// Enabled reports whether a NATS server is configured.
func (p PublishConfig) Enabled() bool { return p.URL != "" }
