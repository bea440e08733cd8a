package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ingestion metrics
var (
	IngestRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presale_ingest_runs_total",
			Help: "Ingestion runs by final status",
		},
		[]string{"status"},
	)

	IngestRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presale_ingest_records_total",
			Help: "History records seen by ingestion, by outcome (applied, duplicate or a skip reason)",
		},
		[]string{"outcome"},
	)

	IngestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "presale_ingest_duration_seconds",
		Help:    "Wall time of one ingestion run",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	})

	IngestCursor = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "presale_ingest_cursor_ledger",
		Help: "Last fully scanned ledger index",
	})

	ContributedDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "presale_contributed_drops_total",
		Help: "Drops applied to aggregates since process start",
	})
)

// Read path metrics
var (
	SourceFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presale_source_fetches_total",
			Help: "Payment source attempts by view, source and result",
		},
		[]string{"view", "source", "result"},
	)
)

// HTTP metrics
var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presale_http_requests_total",
			Help: "HTTP requests by route and status code",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "presale_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)
