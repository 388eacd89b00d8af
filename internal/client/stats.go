package client

import (
	"sync"
	"time"

	"inferd/pkg/types"
)

// statsTracker accumulates client counters. Single writer (the owning
// client), many readers via Snapshot.
type statsTracker struct {
	mu               sync.RWMutex
	variant          Variant
	requests         uint64
	successes        uint64
	failures         uint64
	tokensGenerated  uint64
	contextOverflows uint64
	gpuAlerts        uint64
	totalLatency     time.Duration
}

func newStatsTracker(v Variant) *statsTracker {
	return &statsTracker{variant: v}
}

func (s *statsTracker) recordSuccess(tokens int, dur time.Duration) {
	s.mu.Lock()
	s.requests++
	s.successes++
	s.tokensGenerated += uint64(tokens)
	s.totalLatency += dur
	s.mu.Unlock()
	generationsTotal.WithLabelValues(string(s.variant), "success").Inc()
	tokensGeneratedTotal.WithLabelValues(string(s.variant)).Add(float64(tokens))
	generationLatency.WithLabelValues(string(s.variant)).Observe(dur.Seconds())
}

func (s *statsTracker) recordFailure(dur time.Duration) {
	s.mu.Lock()
	s.requests++
	s.failures++
	s.totalLatency += dur
	s.mu.Unlock()
	generationsTotal.WithLabelValues(string(s.variant), "failure").Inc()
}

func (s *statsTracker) recordOverflow() {
	s.mu.Lock()
	s.contextOverflows++
	s.mu.Unlock()
	contextOverflowsTotal.WithLabelValues(string(s.variant)).Inc()
}

func (s *statsTracker) recordGPUAlert() {
	s.mu.Lock()
	s.gpuAlerts++
	s.mu.Unlock()
	gpuAlertsTotal.Inc()
}

// Snapshot returns a point-in-time copy of the counters.
func (s *statsTracker) Snapshot() types.ClientStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := types.ClientStats{
		Variant:          string(s.variant),
		Requests:         s.requests,
		Successes:        s.successes,
		Failures:         s.failures,
		TokensGenerated:  s.tokensGenerated,
		ContextOverflows: s.contextOverflows,
		GPUAlerts:        s.gpuAlerts,
	}
	if s.requests > 0 {
		out.AvgLatencyMs = float64(s.totalLatency.Milliseconds()) / float64(s.requests)
	}
	return out
}
