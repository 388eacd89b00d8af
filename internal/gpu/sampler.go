package gpu

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Sampler queries the device for a single snapshot. Implementations must
// respect the context for cancellation; a failed query returns an error and
// the Monitor records an unknown snapshot.
type Sampler interface {
	Sample(ctx context.Context) (Snapshot, error)
}

// SMISampler shells out to nvidia-smi. It is the production sampler; tests
// inject a fake through the Sampler interface.
type SMISampler struct {
	// Binary overrides the nvidia-smi path. Empty means "nvidia-smi" on PATH.
	Binary string
	// Index selects the device queried. Multi-device hosts run one monitor
	// per device.
	Index int
}

const smiQuery = "memory.total,memory.used,memory.free,utilization.gpu,temperature.gpu"

func (s *SMISampler) Sample(ctx context.Context) (Snapshot, error) {
	bin := s.Binary
	if bin == "" {
		bin = "nvidia-smi"
	}
	cmd := exec.CommandContext(ctx, bin,
		"--query-gpu="+smiQuery,
		"--format=csv,noheader,nounits",
		"-i", strconv.Itoa(s.Index),
	)
	out, err := cmd.Output()
	if err != nil {
		return Snapshot{}, fmt.Errorf("nvidia-smi query: %w", err)
	}
	return parseSMILine(strings.TrimSpace(string(out)))
}

// parseSMILine parses one CSV line of the query above, e.g.
// "24576, 18432, 6144, 87, 61".
func parseSMILine(line string) (Snapshot, error) {
	fields := strings.Split(line, ",")
	if len(fields) != 5 {
		return Snapshot{}, fmt.Errorf("unexpected nvidia-smi output: %q", line)
	}
	vals := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return Snapshot{}, fmt.Errorf("parse nvidia-smi field %d (%q): %w", i, f, err)
		}
		vals[i] = v
	}
	return Snapshot{
		MemoryTotalMB:  int(vals[0]),
		MemoryUsedMB:   int(vals[1]),
		MemoryFreeMB:   int(vals[2]),
		UtilizationPct: vals[3],
		TemperatureC:   int(vals[4]),
		Timestamp:      time.Now(),
		Known:          true,
	}, nil
}
