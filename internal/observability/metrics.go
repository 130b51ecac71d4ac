package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EmotionsDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "emotune",
		Name:      "emotions_detected_total",
		Help:      "Total number of classified images by detected emotion",
	}, []string{"emotion"})

	InferenceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "emotune",
		Name:      "inference_duration_seconds",
		Help:      "Duration of image preprocessing and classification",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
	}, []string{"stage"})

	CatalogSearches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "emotune",
		Name:      "catalog_searches_total",
		Help:      "Catalog searches issued for recommendations",
	}, []string{"attempt", "outcome"})

	CatalogSearchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "emotune",
		Name:      "catalog_search_duration_seconds",
		Help:      "Latency of catalog search calls",
		Buckets:   prometheus.DefBuckets,
	}, []string{"attempt"})

	ResetTokensActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "emotune",
		Name:      "reset_tokens_active",
		Help:      "Number of password reset tokens held in memory",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "emotune",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "emotune",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
