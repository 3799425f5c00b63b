package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	cacheHits     *prometheus.CounterVec
	cacheMisses   *prometheus.CounterVec
	fetches       *prometheus.CounterVec
	fetchLatency  prometheus.Histogram
	retryAttempts *prometheus.CounterVec
	trendRebuilds prometheus.Counter
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		cacheHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ratesync_cache_hits_total",
				Help: "Cache hits by class",
			},
			[]string{"class"},
		),
		cacheMisses: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ratesync_cache_misses_total",
				Help: "Cache misses by class",
			},
			[]string{"class"},
		),
		fetches: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ratesync_fetches_total",
				Help: "Remote fetch outcomes",
			},
			[]string{"result"},
		),
		fetchLatency: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ratesync_fetch_duration_seconds",
				Help:    "Remote fetch latency including retries",
				Buckets: prometheus.DefBuckets,
			},
		),
		retryAttempts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ratesync_retry_attempts_total",
				Help: "Counted retry attempts by endpoint",
			},
			[]string{"endpoint"},
		),
		trendRebuilds: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "ratesync_trend_rebuilds_total",
				Help: "Full trend window rebuilds",
			},
		),
	}
}

// RecordCacheHit records a cache hit for a class.
func (r *Recorder) RecordCacheHit(class string) {
	r.cacheHits.WithLabelValues(class).Inc()
}

// RecordCacheMiss records a cache miss for a class.
func (r *Recorder) RecordCacheMiss(class string) {
	r.cacheMisses.WithLabelValues(class).Inc()
}

// RecordFetch records a remote fetch outcome.
func (r *Recorder) RecordFetch(result string) {
	r.fetches.WithLabelValues(result).Inc()
}

// RecordFetchLatency records remote fetch latency in seconds.
func (r *Recorder) RecordFetchLatency(seconds float64) {
	r.fetchLatency.Observe(seconds)
}

// RecordRetryAttempt records one counted retry attempt.
func (r *Recorder) RecordRetryAttempt(endpoint string) {
	r.retryAttempts.WithLabelValues(endpoint).Inc()
}

// RecordTrendRebuild records one trend rebuild.
func (r *Recorder) RecordTrendRebuild() {
	r.trendRebuilds.Inc()
}
