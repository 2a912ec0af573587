// Package metrics provides the observability hooks used by the build.
//
// Components receive a Recorder and default to NoopRecorder, so metrics are
// opt-in:
//
//	recorder := metrics.NewPrometheusRecorder(prometheus.NewRegistry())
//	orch := build.NewOrchestrator(cfg, build.WithRecorder(recorder))
//
// A one-shot CLI run has no scrape endpoint; the collected registry is
// written to a textfile with WriteTextfile instead.
package metrics
