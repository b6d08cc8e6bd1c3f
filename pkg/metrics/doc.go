// Package metrics defines and registers the cluster's Prometheus metrics:
// queue depth, worker counts by type and status, job submission/completion/
// failure counters, job latency, and orchestrator publish/receive duration.
// Handler exposes them for scraping; Collector samples the Orchestrator and
// storage.Store on a ticker, mirroring the teacher's collector.go.
package metrics
