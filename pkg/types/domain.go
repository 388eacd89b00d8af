package types

// ClientStats is a point-in-time snapshot of a client's counters.
// It is produced by the owning client and is read-only to consumers.
type ClientStats struct {
	// Variant identifies the concrete client: direct or remote.
	Variant string `json:"variant"`
	// Requests processed (successes + failures).
	Requests uint64 `json:"requests"`
	Successes uint64 `json:"successes"`
	Failures  uint64 `json:"failures"`
	// Total completion tokens generated.
	TokensGenerated uint64 `json:"tokens_generated"`
	// Requests rejected because the token budget could not be satisfied.
	ContextOverflows uint64 `json:"context_overflows"`
	// GPU memory threshold crossings observed while this client was connected.
	GPUAlerts uint64 `json:"gpu_alerts"`
	// Rolling average request latency in milliseconds.
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

// GPUStatus is the externally visible view of the latest GPU sample.
type GPUStatus struct {
	MemoryTotalMB  int     `json:"memory_total_mb"`
	MemoryUsedMB   int     `json:"memory_used_mb"`
	MemoryFreeMB   int     `json:"memory_free_mb"`
	UtilizationPct float64 `json:"utilization_pct"`
	TemperatureC   int     `json:"temperature_c"`
	SampledUnix    int64   `json:"sampled_unix"`
	// Known is false when no sample is available (monitoring outage or disabled).
	Known bool `json:"known"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Overall service state: ready or unavailable.
	State string `json:"state"`
	// Active client variant.
	Variant string `json:"variant"`
	// Configured model identity.
	Model string `json:"model"`
	// Uptime of the server in seconds.
	UptimeSeconds int64 `json:"uptime_seconds"`
	// Server time in unix seconds.
	ServerTimeUnix int64 `json:"server_time_unix"`
	// Client counters.
	Stats ClientStats `json:"stats"`
	// Latest GPU sample, if monitoring is enabled.
	GPU *GPUStatus `json:"gpu,omitempty"`
}
