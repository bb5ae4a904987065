package metrics

import "testing"

func TestParseNvidiaSMIOutput(t *testing.T) {
	output := "NVIDIA GeForce RTX 4090, 37, 54, 8192, 24564\n"

	info, err := parseNvidiaSMIOutput(output)
	if err != nil {
		t.Fatalf("parseNvidiaSMIOutput: %v", err)
	}
	if info.Name != "NVIDIA GeForce RTX 4090" {
		t.Errorf("Name = %q", info.Name)
	}
	if info.Utilization != 37 {
		t.Errorf("Utilization = %v", info.Utilization)
	}
	if info.Temperature != 54 {
		t.Errorf("Temperature = %v", info.Temperature)
	}
	if info.MemoryUsedMB != 8192 {
		t.Errorf("MemoryUsedMB = %v", info.MemoryUsedMB)
	}
	if info.MemoryTotalMB != 24564 {
		t.Errorf("MemoryTotalMB = %v", info.MemoryTotalMB)
	}
	if got := info.MemoryFreeMB(); got != 24564-8192 {
		t.Errorf("MemoryFreeMB = %v", got)
	}
}

func TestParseNvidiaSMIOutputMultiGPUUsesFirst(t *testing.T) {
	output := "GPU A, 10, 40, 1000, 8000\nGPU B, 90, 70, 7000, 8000\n"

	info, err := parseNvidiaSMIOutput(output)
	if err != nil {
		t.Fatalf("parseNvidiaSMIOutput: %v", err)
	}
	if info.Name != "GPU A" {
		t.Errorf("Name = %q, want first device", info.Name)
	}
}

func TestParseNvidiaSMIOutputErrors(t *testing.T) {
	tests := []struct {
		name   string
		output string
	}{
		{"empty", ""},
		{"too few fields", "GPU, 10, 40"},
		{"non-numeric", "GPU, ten, 40, 1000, 8000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseNvidiaSMIOutput(tt.output); err == nil {
				t.Error("expected error")
			}
		})
	}
}
