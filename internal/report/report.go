package report

import (
	"time"

	derrors "git.home.luguber.info/inful/docverify/internal/foundation/errors"
)

// Verdict is the aggregate outcome of a build.
type Verdict string

const (
	VerdictPass Verdict = "pass"
	VerdictFail Verdict = "fail"
)

// Policy decides which issues fail a build.
type Policy struct {
	// FailSeverity is the lowest severity that fails the build.
	FailSeverity Severity
	// FailOnWarning lowers the threshold to SeverityWarning.
	FailOnWarning bool
}

// DefaultPolicy fails on errors and above.
func DefaultPolicy() Policy { return Policy{FailSeverity: SeverityError} }

// Threshold returns the effective failing severity.
func (p Policy) Threshold() Severity {
	if p.FailOnWarning && p.FailSeverity > SeverityWarning {
		return SeverityWarning
	}
	return p.FailSeverity
}

// Counts tallies issues by severity.
type Counts struct {
	Info     int `json:"info"`
	Warning  int `json:"warning"`
	Error    int `json:"error"`
	Critical int `json:"critical"`
}

// Total returns the number of counted issues.
func (c Counts) Total() int { return c.Info + c.Warning + c.Error + c.Critical }

// AtLeast returns the number of issues with severity s or higher.
func (c Counts) AtLeast(s Severity) int {
	n := 0
	if s <= SeverityInfo {
		n += c.Info
	}
	if s <= SeverityWarning {
		n += c.Warning
	}
	if s <= SeverityError {
		n += c.Error
	}
	return n + c.Critical
}

func (c *Counts) add(s Severity) {
	switch s {
	case SeverityInfo:
		c.Info++
	case SeverityWarning:
		c.Warning++
	case SeverityError:
		c.Error++
	default:
		c.Critical++
	}
}

// CountIssues tallies issues by severity.
func CountIssues(issues []Issue) Counts {
	var c Counts
	for _, i := range issues {
		c.add(i.Severity)
	}
	return c
}

// ReferenceCounts tallies reference resolution outcomes.
type ReferenceCounts struct {
	Total       int `json:"total"`
	Resolved    int `json:"resolved"`
	Broken      int `json:"broken"`
	External    int `json:"external,omitempty"`
	UnknownRole int `json:"unknown_role,omitempty"`
}

// Stats describes the work a build did.
type Stats struct {
	Files          int   `json:"files"`
	Documents      int   `json:"documents"`
	ParseFailures  int   `json:"parse_failures"`
	CacheHits      int64 `json:"cache_hits"`
	CacheMisses    int64 `json:"cache_misses"`
	CacheShared    int64 `json:"cache_shared"`
	CacheEvictions int64 `json:"cache_evictions"`
	Objects        int   `json:"objects"`
	References     int   `json:"references"`
	Resolved       int   `json:"resolved"`
	Broken         int   `json:"broken"`
	External       int   `json:"external"`
	UnknownRoles   int   `json:"unknown_roles"`
	Items          int   `json:"items"`
	RulesEvaluated int   `json:"rules_evaluated"`
	RulesFailed    int   `json:"rules_failed"`
	Workers        int   `json:"workers"`

	// Reference outcomes per domain ("py", "std") and per role as written.
	ReferencesByDomain map[string]ReferenceCounts `json:"references_by_domain,omitempty"`
	ReferencesByRole   map[string]ReferenceCounts `json:"references_by_role,omitempty"`
}

// Report is the result of one build. Issues are sorted by location.
type Report struct {
	BuildID    string        `json:"build_id"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration_ns"`
	Verdict    Verdict       `json:"verdict"`
	Threshold  Severity      `json:"threshold"`
	Forced     bool          `json:"forced,omitempty"` // a fail_build constraint action fired
	Incomplete bool          `json:"incomplete,omitempty"`
	Counts     Counts        `json:"counts"`
	Stats      Stats         `json:"stats"`
	Issues     []Issue       `json:"issues"`
}

// Finalize sorts the issues, counts them and computes the verdict. The
// build fails when an issue reaches the policy threshold, when forced is
// set, or when the report is incomplete.
func (r *Report) Finalize(p Policy, forced bool) {
	if r.Issues == nil {
		r.Issues = []Issue{}
	}
	Sort(r.Issues)
	r.Counts = CountIssues(r.Issues)
	r.Threshold = p.Threshold()
	r.Forced = forced
	r.Verdict = VerdictPass
	if forced || r.Incomplete || r.Counts.AtLeast(r.Threshold) > 0 {
		r.Verdict = VerdictFail
	}
}

// Passed reports whether the verdict is passing.
func (r *Report) Passed() bool { return r.Verdict == VerdictPass }

// ExitCode maps the verdict to a process exit code.
func (r *Report) ExitCode() int {
	if r.Passed() {
		return derrors.ExitOK
	}
	return derrors.ExitVerdictFailed
}
