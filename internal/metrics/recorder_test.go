package metrics

import (
	"time"
)

var _ Recorder = NoopRecorder{}
var _ Recorder = (*PrometheusRecorder)(nil)

func ExampleNoopRecorder() {
	var r Recorder = NoopRecorder{}
	r.ObservePhaseDuration("parse", time.Second)
	r.IncCacheLookup(CacheHit)
	r.IncBuildOutcome(BuildPassed)
	// Output:
}
