package gpu

import "testing"

func TestParseSMILine(t *testing.T) {
	s, err := parseSMILine("24576, 18432, 6144, 87, 61")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.Known {
		t.Fatal("expected known snapshot")
	}
	if s.MemoryTotalMB != 24576 || s.MemoryUsedMB != 18432 || s.MemoryFreeMB != 6144 {
		t.Errorf("memory = %d/%d/%d, want 24576/18432/6144",
			s.MemoryTotalMB, s.MemoryUsedMB, s.MemoryFreeMB)
	}
	if s.UtilizationPct != 87 {
		t.Errorf("utilization = %v, want 87", s.UtilizationPct)
	}
	if s.TemperatureC != 61 {
		t.Errorf("temperature = %d, want 61", s.TemperatureC)
	}
}

func TestParseSMILine_Malformed(t *testing.T) {
	for _, line := range []string{
		"",
		"1, 2, 3",
		"a, b, c, d, e",
		"24576, 18432, 6144, 87",
	} {
		if _, err := parseSMILine(line); err == nil {
			t.Errorf("line %q: expected parse error", line)
		}
	}
}

func TestSnapshotHelpers(t *testing.T) {
	s := Snapshot{MemoryTotalMB: 10240, MemoryUsedMB: 8192, MemoryFreeMB: 2048, Known: true}
	if got := s.FreeGB(); got != 2 {
		t.Errorf("FreeGB = %v, want 2", got)
	}
	if got := s.MemoryUsedFraction(); got != 0.8 {
		t.Errorf("MemoryUsedFraction = %v, want 0.8", got)
	}
	var unknown Snapshot
	if unknown.MemoryUsedFraction() != 0 {
		t.Error("unknown snapshot fraction should be 0")
	}
	if unknown.Status().Known {
		t.Error("unknown snapshot status should stay unknown")
	}
}
