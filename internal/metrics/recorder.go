package metrics

import "time"

// CacheResult enumerates document cache lookup outcomes.
type CacheResult string

const (
	CacheHit    CacheResult = "hit"
	CacheMiss   CacheResult = "miss"
	CacheShared CacheResult = "shared" // joined an in-flight parse
)

// BuildOutcomeLabel enumerates final build verdicts.
type BuildOutcomeLabel string

const (
	BuildPassed     BuildOutcomeLabel = "passed"
	BuildFailed     BuildOutcomeLabel = "failed"
	BuildIncomplete BuildOutcomeLabel = "incomplete"
)

// Recorder defines observability hooks for builds, the document cache and
// validation results. All methods must be safe to call concurrently.
type Recorder interface {
	ObservePhaseDuration(phase string, d time.Duration)
	ObserveBuildDuration(d time.Duration)
	IncCacheLookup(result CacheResult)
	IncCacheEviction()
	SetCacheResident(items int, bytes int64)
	IncIssue(code, severity string)
	IncBuildOutcome(outcome BuildOutcomeLabel)
	SetWorkers(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObservePhaseDuration(string, time.Duration) {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)         {}
func (NoopRecorder) IncCacheLookup(CacheResult)                 {}
func (NoopRecorder) IncCacheEviction()                          {}
func (NoopRecorder) SetCacheResident(int, int64)                {}
func (NoopRecorder) IncIssue(string, string)                    {}
func (NoopRecorder) IncBuildOutcome(BuildOutcomeLabel)          {}
func (NoopRecorder) SetWorkers(int)                             {}
