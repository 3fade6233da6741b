// Package metrics объявляет метрики Prometheus сервиса рекомендаций.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "recommender"

// Значения метки outcome
const (
	OutcomeOK          = "ok"
	OutcomeNotFound    = "not_found"
	OutcomeBadRequest  = "invalid_argument"
	OutcomeUnavailable = "unavailable"
	OutcomeError       = "error"
)

// Значения метки result для кэша
const (
	CacheHit          = "hit"
	CacheMiss         = "miss"
	CacheBackendError = "backend_error"
)

var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "requests_total",
		Help:      "Recommendation requests by operation and outcome.",
	}, []string{"op", "outcome"})

	CacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_lookups_total",
		Help:      "Result cache lookups by result.",
	}, []string{"result"})

	SearchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "search_duration_seconds",
		Help:      "Vector index search latency.",
		Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5},
	}, []string{"strategy"})

	GenerationVectors = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "generation_vectors",
		Help:      "Vectors in the currently served index generation.",
	})

	GenerationsLive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "generations_live",
		Help:      "Index generations held in memory, including retired ones still in use.",
	})

	RebuildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rebuilds_total",
		Help:      "Index rebuild attempts by status.",
	}, []string{"status"})

	RebuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "rebuild_duration_seconds",
		Help:      "Wall time of successful index rebuilds.",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
	})
)
