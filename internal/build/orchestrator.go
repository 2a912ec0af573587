package build

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/docverify/internal/config"
	"git.home.luguber.info/inful/docverify/internal/constraint"
	"git.home.luguber.info/inful/docverify/internal/doccache"
	"git.home.luguber.info/inful/docverify/internal/directive"
	"git.home.luguber.info/inful/docverify/internal/domain"
	derrors "git.home.luguber.info/inful/docverify/internal/foundation/errors"
	"git.home.luguber.info/inful/docverify/internal/logfields"
	"git.home.luguber.info/inful/docverify/internal/metrics"
	"git.home.luguber.info/inful/docverify/internal/observability"
	"git.home.luguber.info/inful/docverify/internal/parser"
	"git.home.luguber.info/inful/docverify/internal/report"
	"git.home.luguber.info/inful/docverify/internal/source"
)

// Phase names used in logs and metrics.
const (
	PhaseParse     = "parse"
	PhaseBarrier   = "barrier"
	PhaseValidate  = "validate"
	PhaseAggregate = "aggregate"
)

// Result is the outcome of Run.
type Result struct {
	Report *report.Report
	// Items are the content items after constraint actions, sorted by location.
	Items []parser.ContentItem
}

// Orchestrator runs builds. The document cache is kept between runs so that
// unchanged files are not parsed again. Run must not be called concurrently.
type Orchestrator struct {
	opts       Options
	parser     *parser.Parser
	engine     *constraint.Engine
	recorder   metrics.Recorder
	domains    []domain.Domain
	directives directive.Table

	cacheOnce sync.Once
	cacheOpts doccache.Options
	cache     *doccache.Cache
}

// New creates an orchestrator. A nil engine evaluates no constraints.
func New(opts Options, engine *constraint.Engine) *Orchestrator {
	if opts.Workers <= 0 {
		opts.Workers = DefaultOptions().Workers
	}
	if opts.Roles == nil {
		opts.Roles = domain.DefaultTable()
	}
	if engine == nil {
		engine = constraint.NewEngine(nil)
	}
	directives := directive.Builtin().With(opts.Parser.NeedDirectives...).With(opts.ExtraDirectives...)
	return &Orchestrator{
		opts:       opts,
		parser:     parser.New(opts.Parser),
		engine:     engine,
		recorder:   metrics.NoopRecorder{},
		domains:    domain.Builtin(),
		directives: directives,
	}
}

// NewFromConfig wires an orchestrator from a finalized configuration.
func NewFromConfig(cfg *config.Config) (*Orchestrator, error) {
	opts, err := OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	rules, err := constraint.RulesFromConfig(cfg.Constraints)
	if err != nil {
		return nil, err
	}
	o := New(opts, constraint.NewEngine(rules))
	o.cacheOpts.MaxItems = cfg.Cache.MaxItems
	o.cacheOpts.MaxBytes = cfg.Cache.MaxBytes
	if err := domain.NewRegistry(opts.Roles, o.domains...).ValidateTable(); err != nil {
		return nil, derrors.ConfigError("invalid role table").WithCause(err).Build()
	}
	return o, nil
}

// WithRecorder sets the metrics recorder. It must be called before the
// cache is first used.
func (o *Orchestrator) WithRecorder(r metrics.Recorder) *Orchestrator {
	if r != nil {
		o.recorder = r
	}
	return o
}

// WithCache replaces the default document cache.
func (o *Orchestrator) WithCache(c *doccache.Cache) *Orchestrator {
	o.cacheOnce.Do(func() {})
	o.cache = c
	return o
}

// Cache returns the document cache, creating it on first use.
func (o *Orchestrator) Cache() *doccache.Cache {
	o.cacheOnce.Do(func() {
		opts := o.cacheOpts
		opts.Recorder = o.recorder
		o.cache = doccache.New(o.parser.Parse, opts)
	})
	return o.cache
}

// Parser returns the parser used on cache misses.
func (o *Orchestrator) Parser() *parser.Parser { return o.parser }

// run holds the state of one build.
type run struct {
	o   *Orchestrator
	reg *domain.Registry

	mu     sync.Mutex
	issues []report.Issue
	docs   []*parser.Document
	failed int
}

func (r *run) add(issues ...report.Issue) {
	if len(issues) == 0 {
		return
	}
	r.mu.Lock()
	r.issues = append(r.issues, issues...)
	r.mu.Unlock()
}

// Run verifies files. Problems in the corpus are reported as issues; an
// error is returned only for conditions that prevent a report, such as an
// invalid role table. A canceled ctx yields an incomplete, failing report.
func (o *Orchestrator) Run(ctx context.Context, files []source.File) (*Result, error) {
	start := time.Now()
	buildID := uuid.NewString()
	ctx = observability.WithBuildID(ctx, buildID)

	reg := domain.NewRegistry(o.opts.Roles, o.domains...)
	if err := reg.ValidateTable(); err != nil {
		return nil, derrors.ConfigError("invalid role table").WithCause(err).Build()
	}

	cache := o.Cache()
	before := cache.Stats()
	o.recorder.SetWorkers(o.opts.Workers)

	rep := &report.Report{BuildID: buildID, StartedAt: start}
	rep.Stats.Files = len(files)
	rep.Stats.Workers = o.opts.Workers
	r := &run{o: o, reg: reg}

	observability.InfoContext(ctx, "Build started",
		logfields.Count(len(files)), logfields.Workers(o.opts.Workers))

	// Phase 1: parse and register.
	phaseStart := time.Now()
	pctx := observability.WithPhase(ctx, PhaseParse)
	canceled := r.parseAll(pctx, files)
	o.phaseDone(pctx, phaseStart)

	rep.Stats.Documents = len(r.docs)
	rep.Stats.ParseFailures = r.failed

	// Phase 2: barrier.
	phaseStart = time.Now()
	bctx := observability.WithPhase(ctx, PhaseBarrier)
	dups := reg.Freeze()
	r.add(duplicateObjectIssues(dups)...)
	items := collectItems(r.docs)
	r.add(duplicateIDIssues(items)...)
	rep.Stats.Objects = reg.Len()
	o.phaseDone(bctx, phaseStart, logfields.Count(reg.Len()))

	// Phase 3: validate. A partial registry would report references to
	// unparsed files as broken, so nothing is judged after cancellation.
	var forced bool
	if canceled {
		rep.Incomplete = true
		r.add(report.Issue{
			Code:     report.CodeBuildCanceled,
			Severity: report.SeverityError,
			Message:  fmt.Sprintf("build canceled after %d of %d files; validation skipped", len(r.docs)+r.failed, len(files)),
		})
		observability.WarnContext(ctx, "Build canceled, skipping validation",
			logfields.Count(len(r.docs)))
	} else {
		phaseStart = time.Now()
		vctx := observability.WithPhase(ctx, PhaseValidate)
		v := r.validate(vctx, items)
		forced = v.forced
		items = v.items
		rep.Stats.References = v.refs.Total
		rep.Stats.Resolved = v.refs.Valid
		rep.Stats.Broken = v.refs.Broken
		rep.Stats.External = v.refs.External
		rep.Stats.UnknownRoles = v.refs.UnknownRole
		rep.Stats.ReferencesByDomain = referenceCounts(v.refs.ByDomain)
		rep.Stats.ReferencesByRole = referenceCounts(v.refs.ByRole)
		rep.Stats.RulesEvaluated = v.evaluated
		rep.Stats.RulesFailed = v.failed
		o.phaseDone(vctx, phaseStart, logfields.Count(v.refs.Total))
	}
	rep.Stats.Items = len(items)

	// Phase 4: aggregate.
	phaseStart = time.Now()
	actx := observability.WithPhase(ctx, PhaseAggregate)
	after := cache.Stats()
	rep.Stats.CacheHits = after.Hits - before.Hits
	rep.Stats.CacheMisses = after.Misses - before.Misses
	rep.Stats.CacheShared = after.Shared - before.Shared
	rep.Stats.CacheEvictions = after.Evictions - before.Evictions

	rep.Issues = r.issues
	rep.Finalize(o.opts.Policy, forced)
	rep.Duration = time.Since(start)
	o.phaseDone(actx, phaseStart)
	o.recordOutcome(rep)

	observability.InfoContext(ctx, "Build finished",
		logfields.Since(start),
		logfields.Count(len(rep.Issues)),
		slog.String("verdict", string(rep.Verdict)))
	return &Result{Report: rep, Items: items}, nil
}

// parseAll runs phase 1 and reports whether ctx was canceled before every
// file was handed to a worker. In-flight parses are allowed to finish.
func (r *run) parseAll(ctx context.Context, files []source.File) bool {
	var g errgroup.Group
	g.SetLimit(r.o.opts.Workers)
	cache := r.o.Cache()

	canceled := false
	for _, f := range files {
		if ctx.Err() != nil {
			canceled = true
			break
		}
		g.Go(func() error {
			doc, err := cache.GetOrParse(context.WithoutCancel(ctx), f)
			if err != nil {
				r.parseFailed(ctx, f, err)
				return nil
			}
			if err := r.reg.RegisterDocument(doc); err != nil {
				// Only possible once frozen, which cannot happen before Wait.
				return err
			}
			r.mu.Lock()
			r.docs = append(r.docs, doc)
			r.issues = append(r.issues, parseWarningIssues(doc)...)
			r.mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		observability.ErrorContext(ctx, "Registration failed", logfields.Error(err))
	}
	return canceled
}

func (r *run) parseFailed(ctx context.Context, f source.File, err error) {
	observability.WarnContext(ctx, "Parse failed", logfields.Path(f.Path), logfields.Error(err))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed++
	r.issues = append(r.issues, report.Issue{
		Code:     report.CodeParseFailure,
		Severity: report.SeverityError,
		Location: source.Location{Path: f.Path},
		Message:  fmt.Sprintf("cannot parse %s: %v", f.Path, err),
	})
}

func parseWarningIssues(doc *parser.Document) []report.Issue {
	out := make([]report.Issue, 0, len(doc.Warnings))
	for _, w := range doc.Warnings {
		out = append(out, report.Issue{
			Code:     report.CodeParseWarning,
			Severity: report.SeverityInfo,
			Location: w.Location,
			Message:  w.Message,
		})
	}
	return out
}

func (o *Orchestrator) phaseDone(ctx context.Context, start time.Time, attrs ...slog.Attr) {
	d := time.Since(start)
	o.recorder.ObservePhaseDuration(observability.GetContext(ctx).Phase, d)
	observability.DebugContext(ctx, "Phase complete", append(attrs, logfields.Since(start))...)
}

func (o *Orchestrator) recordOutcome(rep *report.Report) {
	o.recorder.ObserveBuildDuration(rep.Duration)
	for _, issue := range rep.Issues {
		o.recorder.IncIssue(string(issue.Code), issue.Severity.String())
	}
	switch {
	case rep.Incomplete:
		o.recorder.IncBuildOutcome(metrics.BuildIncomplete)
	case rep.Passed():
		o.recorder.IncBuildOutcome(metrics.BuildPassed)
	default:
		o.recorder.IncBuildOutcome(metrics.BuildFailed)
	}
}
