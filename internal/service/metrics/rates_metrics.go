package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	EndpointLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ratesync",
			Subsystem: "api",
			Name:      "latency_seconds",
			Help:      "Latency of rates endpoints",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	EndpointErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ratesync",
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "Errors by rates endpoint",
		},
		[]string{"endpoint"},
	)

	PipelineEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ratesync",
			Subsystem: "quotes",
			Name:      "pipeline_events_total",
			Help:      "Quote pipeline outcomes by stage",
		},
		[]string{"stage"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(EndpointLatency, EndpointErrors, PipelineEvents)
	})
}
