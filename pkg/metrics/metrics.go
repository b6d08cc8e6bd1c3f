package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Queue metrics
	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cluster_queue_depth",
			Help: "Number of messages currently queued, by queue name",
		},
		[]string{"queue"},
	)

	// Job metrics
	JobsSubmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cluster_jobs_submitted_total",
			Help: "Total number of jobs submitted, by schema",
		},
		[]string{"schema"},
	)

	JobsCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cluster_jobs_completed_total",
			Help: "Total number of jobs completed, by schema",
		},
		[]string{"schema"},
	)

	JobsFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cluster_jobs_failed_total",
			Help: "Total number of jobs that ended in a failed or error state, by schema",
		},
		[]string{"schema"},
	)

	JobLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cluster_job_latency_seconds",
			Help:    "Time from job submission to terminal status, by schema",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"schema"},
	)

	// Worker metrics
	WorkersTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cluster_workers_total",
			Help: "Total number of registered workers, by worker type and status",
		},
		[]string{"worker_type", "status"},
	)

	// Orchestrator metrics
	OrchestratorPublishDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cluster_orchestrator_publish_duration_seconds",
			Help:    "Time taken to publish a job onto a queue, by queue",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"queue"},
	)

	OrchestratorReceiveDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cluster_orchestrator_receive_duration_seconds",
			Help:    "Time taken to receive a message from a queue, by queue",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"queue"},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cluster_api_requests_total",
			Help: "Total number of API requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cluster_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(QueueDepth)
	prometheus.MustRegister(JobsSubmittedTotal)
	prometheus.MustRegister(JobsCompletedTotal)
	prometheus.MustRegister(JobsFailedTotal)
	prometheus.MustRegister(JobLatency)
	prometheus.MustRegister(WorkersTotal)
	prometheus.MustRegister(OrchestratorPublishDuration)
	prometheus.MustRegister(OrchestratorReceiveDuration)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
