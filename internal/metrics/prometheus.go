package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OutcomesTotal counts per-test-case outcomes by language and judge status.
	OutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harness_outcomes_total",
			Help: "Total number of test case outcomes",
		},
		[]string{"language", "status"},
	)

	// FailuresTotal counts outcomes by failure class.
	FailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harness_failures_total",
			Help: "Total number of failed test case outcomes by failure class",
		},
		[]string{"class"},
	)

	// JudgeRequestDuration tracks round trips to the remote judge in seconds.
	JudgeRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "harness_judge_request_duration_seconds",
			Help:    "Duration of remote judge submissions in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		},
		[]string{"language"},
	)

	// JudgeRetries counts retried judge requests by HTTP status.
	JudgeRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harness_judge_retries_total",
			Help: "Total number of retried remote judge requests",
		},
		[]string{"code"},
	)

	// NormalizationsTotal counts which repair strategy produced each argument list.
	NormalizationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harness_normalizations_total",
			Help: "Total number of normalized test inputs by strategy",
		},
		[]string{"strategy"},
	)

	// BatchDuration tracks whole-batch latency in seconds.
	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "harness_batch_duration_seconds",
			Help:    "Duration of test case batches in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
	)

	// WorkersActive tracks the number of currently active workers.
	WorkersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "harness_workers_active",
			Help: "Number of currently active worker goroutines",
		},
	)

	// GradingJobsTotal counts processed grading jobs by final status.
	GradingJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harness_grading_jobs_total",
			Help: "Total number of processed grading jobs",
		},
		[]string{"status"},
	)
)
