package gpu

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// MonitorConfig holds tunables for Monitor construction.
type MonitorConfig struct {
	Sampler  Sampler
	Interval time.Duration
	// MemoryThreshold is the used/total fraction above which OnAlert fires.
	MemoryThreshold float64
	// OnAlert is invoked once per threshold crossing (rising edge). It is
	// observability only and must not block.
	OnAlert func(Snapshot)
	Logger  zerolog.Logger
}

// Monitor runs a periodic sampling loop independent of the request path.
// It owns nothing beyond its latest snapshot: single writer (the loop),
// many readers.
type Monitor struct {
	cfg    MonitorConfig
	mu     sync.RWMutex
	last   Snapshot
	above  bool
	cancel context.CancelFunc
	done   chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewMonitor constructs a Monitor. Interval must be positive.
func NewMonitor(cfg MonitorConfig) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	return &Monitor{cfg: cfg}
}

// Start launches the sampling loop. It samples once synchronously so a ready
// monitor has a snapshot before the first request arrives. Start is idempotent.
func (m *Monitor) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		loopCtx, cancel := context.WithCancel(ctx)
		m.cancel = cancel
		m.done = make(chan struct{})
		m.sample(loopCtx)
		go m.loop(loopCtx)
	})
}

// Stop cancels the loop and waits for it to exit. Idempotent.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		if m.cancel != nil {
			m.cancel()
			<-m.done
		}
	})
}

func (m *Monitor) loop(ctx context.Context) {
	defer close(m.done)
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sample(ctx)
		}
	}
}

func (m *Monitor) sample(ctx context.Context) {
	snap, err := m.cfg.Sampler.Sample(ctx)
	if err != nil {
		if ctx.Err() == nil {
			m.cfg.Logger.Warn().Err(err).Msg("gpu sample failed")
		}
		snap = Snapshot{Timestamp: time.Now()}
	}
	recordSample(snap)

	m.mu.Lock()
	m.last = snap
	crossed := false
	if snap.Known && m.cfg.MemoryThreshold > 0 {
		above := snap.MemoryUsedFraction() >= m.cfg.MemoryThreshold
		crossed = above && !m.above
		m.above = above
	}
	m.mu.Unlock()

	if crossed && m.cfg.OnAlert != nil {
		m.cfg.OnAlert(snap)
	}
}

// Stats returns the latest sample. If no sample has been taken, or the device
// query failed, the returned snapshot has Known=false rather than an error:
// a monitoring outage must not crash request handling.
func (m *Monitor) Stats() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

// CheckMemoryAvailable reports whether the latest snapshot shows at least
// requiredGB of free memory. An unknown snapshot is treated conservatively
// as unavailable.
func (m *Monitor) CheckMemoryAvailable(requiredGB float64) bool {
	snap := m.Stats()
	if !snap.Known {
		return false
	}
	return snap.FreeGB() >= requiredGB
}

// WaitForMemory polls until requiredGB is free or the timeout elapses. It
// returns false on timeout rather than an error, leaving escalation to the
// caller. The wait never exceeds timeout plus one poll interval.
func (m *Monitor) WaitForMemory(ctx context.Context, requiredGB float64, timeout time.Duration) bool {
	if m.CheckMemoryAvailable(requiredGB) {
		return true
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return false
		case <-ticker.C:
			if m.CheckMemoryAvailable(requiredGB) {
				return true
			}
		}
	}
}
