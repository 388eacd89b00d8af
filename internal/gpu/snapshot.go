// Package gpu provides background sampling of device memory, utilization and
// temperature, with point-in-time snapshots and a bounded wait primitive.
// A monitoring outage never fails the request path: consumers receive an
// explicit unknown snapshot instead of an error.
package gpu

import (
	"time"

	"inferd/pkg/types"
)

// Snapshot is a single GPU sample. Known is false when the device query was
// unavailable; all other fields are then meaningless.
type Snapshot struct {
	MemoryTotalMB  int
	MemoryUsedMB   int
	MemoryFreeMB   int
	UtilizationPct float64
	TemperatureC   int
	Timestamp      time.Time
	Known          bool
}

// FreeGB returns free memory in gigabytes.
func (s Snapshot) FreeGB() float64 {
	return float64(s.MemoryFreeMB) / 1024.0
}

// MemoryUsedFraction returns used/total, or 0 when unknown.
func (s Snapshot) MemoryUsedFraction() float64 {
	if !s.Known || s.MemoryTotalMB <= 0 {
		return 0
	}
	return float64(s.MemoryUsedMB) / float64(s.MemoryTotalMB)
}

// Status converts the snapshot to its externally visible form.
func (s Snapshot) Status() types.GPUStatus {
	st := types.GPUStatus{Known: s.Known}
	if !s.Known {
		return st
	}
	st.MemoryTotalMB = s.MemoryTotalMB
	st.MemoryUsedMB = s.MemoryUsedMB
	st.MemoryFreeMB = s.MemoryFreeMB
	st.UtilizationPct = s.UtilizationPct
	st.TemperatureC = s.TemperatureC
	st.SampledUnix = s.Timestamp.Unix()
	return st
}
