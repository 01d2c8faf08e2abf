package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Counters
	TasksProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contentorch_tasks_processed_total",
			Help: "Total number of task attempts by outcome",
		},
		[]string{"success", "category"},
	)

	TaskRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "contentorch_task_retries_total",
			Help: "Total number of retry attempts scheduled",
		},
	)

	BatchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "contentorch_batches_total",
			Help: "Total number of batch runs",
		},
	)

	ProviderRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contentorch_provider_requests_total",
			Help: "Content provider calls by provider and result",
		},
		[]string{"provider", "result"}, // result: ok, error
	)

	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contentorch_cache_lookups_total",
			Help: "Content cache lookups",
		},
		[]string{"result"}, // hit, miss
	)

	ImagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contentorch_images_total",
			Help: "Image generation attempts",
		},
		[]string{"result"}, // ok, empty
	)

	// Gauges
	TasksInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "contentorch_tasks_in_flight",
			Help: "Tasks currently held by workers",
		},
	)

	// Histograms
	// Buckets: 0.1s to ~410s
	TaskDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "contentorch_task_duration_seconds",
			Help:    "Task attempt duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 13),
		},
		[]string{"success"},
	)

	ContentQuality = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "contentorch_content_quality",
			Help:    "Quality score of generated content",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		},
		[]string{"provider"},
	)
)
