package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "docverify"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	registry      *prom.Registry
	phaseDuration *prom.HistogramVec
	buildDuration prom.Histogram
	cacheLookups  *prom.CounterVec
	cacheEvicted  prom.Counter
	cacheItems    prom.Gauge
	cacheBytes    prom.Gauge
	issues        *prom.CounterVec
	buildOutcome  *prom.CounterVec
	workers       prom.Gauge
}

// NewPrometheusRecorder constructs and registers the metrics on reg. A nil
// registry gets a fresh one.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		registry: reg,
		phaseDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Duration of individual build phases",
			Buckets:   prom.DefBuckets,
		}, []string{"phase"}),
		buildDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Total build duration",
			Buckets:   prom.DefBuckets,
		}),
		cacheLookups: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Document cache lookups by result",
		}, []string{"result"}),
		cacheEvicted: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "evictions_total",
			Help:      "Document cache LRU evictions",
		}),
		cacheItems: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "resident_items",
			Help:      "Documents currently held in the cache",
		}),
		cacheBytes: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "resident_bytes",
			Help:      "Approximate size of cached documents",
		}),
		issues: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "issues_total",
			Help:      "Validation issues by code and severity",
		}, []string{"code", "severity"}),
		buildOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by final verdict",
		}, []string{"outcome"}),
		workers: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "workers",
			Help:      "Worker pool size of the last build",
		}),
	}
	reg.MustRegister(pr.phaseDuration, pr.buildDuration, pr.cacheLookups, pr.cacheEvicted,
		pr.cacheItems, pr.cacheBytes, pr.issues, pr.buildOutcome, pr.workers)
	return pr
}

// Registry returns the registry the metrics are registered on.
func (p *PrometheusRecorder) Registry() *prom.Registry { return p.registry }

func (p *PrometheusRecorder) ObservePhaseDuration(phase string, d time.Duration) {
	if p == nil {
		return
	}
	p.phaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncCacheLookup(result CacheResult) {
	if p == nil {
		return
	}
	p.cacheLookups.WithLabelValues(string(result)).Inc()
}

func (p *PrometheusRecorder) IncCacheEviction() {
	if p == nil {
		return
	}
	p.cacheEvicted.Inc()
}

func (p *PrometheusRecorder) SetCacheResident(items int, bytes int64) {
	if p == nil {
		return
	}
	p.cacheItems.Set(float64(items))
	p.cacheBytes.Set(float64(bytes))
}

func (p *PrometheusRecorder) IncIssue(code, severity string) {
	if p == nil {
		return
	}
	p.issues.WithLabelValues(code, severity).Inc()
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome BuildOutcomeLabel) {
	if p == nil {
		return
	}
	p.buildOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) SetWorkers(n int) {
	if p == nil {
		return
	}
	p.workers.Set(float64(n))
}
