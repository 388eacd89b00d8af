package client

import "github.com/prometheus/client_golang/prometheus"

var (
	generationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "client",
			Name:      "generations_total",
			Help:      "Total generation requests by variant and outcome",
		},
		[]string{"variant", "outcome"},
	)

	tokensGeneratedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "client",
			Name:      "tokens_generated_total",
			Help:      "Total completion tokens generated",
		},
		[]string{"variant"},
	)

	generationLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "inferd",
			Subsystem: "client",
			Name:      "generation_duration_seconds",
			Help:      "Duration of generation requests in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"variant"},
	)

	contextOverflowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "client",
			Name:      "context_overflows_total",
			Help:      "Requests rejected because the token budget could not be satisfied",
		},
		[]string{"variant"},
	)

	gpuAlertsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "client",
			Name:      "gpu_alerts_total",
			Help:      "GPU memory threshold crossings observed by the monitor",
		},
	)
)

func init() {
	prometheus.MustRegister(generationsTotal, tokensGeneratedTotal, generationLatency,
		contextOverflowsTotal, gpuAlertsTotal)
}
