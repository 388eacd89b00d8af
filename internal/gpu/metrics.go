package gpu

import "github.com/prometheus/client_golang/prometheus"

var (
	memFreeMB = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "inferd",
		Subsystem: "gpu",
		Name:      "memory_free_mb",
		Help:      "Free GPU memory in MB from the latest sample",
	})

	utilizationPct = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "inferd",
		Subsystem: "gpu",
		Name:      "utilization_pct",
		Help:      "GPU utilization percent from the latest sample",
	})

	temperatureC = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "inferd",
		Subsystem: "gpu",
		Name:      "temperature_celsius",
		Help:      "GPU temperature in Celsius from the latest sample",
	})

	sampleFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "inferd",
		Subsystem: "gpu",
		Name:      "sample_failures_total",
		Help:      "Total failed device queries",
	})
)

func init() {
	prometheus.MustRegister(memFreeMB, utilizationPct, temperatureC, sampleFailures)
}

func recordSample(s Snapshot) {
	if !s.Known {
		sampleFailures.Inc()
		return
	}
	memFreeMB.Set(float64(s.MemoryFreeMB))
	utilizationPct.Set(s.UtilizationPct)
	temperatureC.Set(float64(s.TemperatureC))
}
