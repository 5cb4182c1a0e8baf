package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QuestionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bi_agent_questions_total",
			Help: "Questions answered, by outcome (answered, clarification, error) and intent",
		},
		[]string{"outcome", "intent"},
	)

	IntentResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bi_agent_intent_resolutions_total",
			Help: "Intent resolutions by the strategy that produced them",
		},
		[]string{"source"},
	)

	DataFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bi_agent_data_fetch_duration_seconds",
			Help:    "Duration of deal and work order fetches in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 3, 9),
		},
		[]string{"backend", "entity"},
	)

	DataFetchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bi_agent_data_fetch_failures_total",
			Help: "Failed deal and work order fetches",
		},
		[]string{"backend", "entity"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bi_agent_cache_lookups_total",
			Help: "Table cache lookups by result (hit, miss, error)",
		},
		[]string{"entity", "result"},
	)

	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)
)
