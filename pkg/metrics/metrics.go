package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Define global variables for metrics.
// We use 'promauto' which automatically registers metrics without complex initialization.

var (
	// 1. HTTP Requests Total (Counter)
	// Counts how many requests arrive, labeled by method, path, and status code.
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "elograph_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "path", "status"}, // Labels
	)

	// 2. HTTP Request Duration (Histogram)
	// Measures server response time.
	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "elograph_http_request_duration_seconds",
			Help: "Duration of HTTP requests in seconds",
			// Custom buckets covering from point lookups to full-graph scans
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	// 3. Node Count (Gauge)
	// Tracks the total number of nodes, labeled by type.
	TotalNodes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "elograph_nodes_total",
			Help: "Total number of graph nodes",
		},
		[]string{"type"},
	)

	// 4. Edge Count (Gauge)
	// Tracks the total number of edges, labeled by type.
	TotalEdges = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "elograph_edges_total",
			Help: "Total number of graph edges",
		},
		[]string{"type"},
	)
)
