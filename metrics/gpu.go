// Package metrics reads GPU state through nvidia-smi. The generation engines
// compete for GPU memory, so the web UI and console surface the numbers
// before and during runs.
package metrics

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// queryTimeout bounds one nvidia-smi invocation.
const queryTimeout = 5 * time.Second

// GPUInfo is one snapshot of GPU state.
type GPUInfo struct {
	Name          string  `json:"name"`
	Utilization   float64 `json:"utilization_percent"`
	Temperature   float64 `json:"temperature_c"`
	MemoryUsedMB  float64 `json:"memory_used_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
}

// MemoryFreeMB returns the free GPU memory in MiB.
func (g GPUInfo) MemoryFreeMB() float64 {
	return g.MemoryTotalMB - g.MemoryUsedMB
}

// GPUReader reads a GPU snapshot. The nvidia-smi implementation is the
// default; tests substitute their own.
type GPUReader interface {
	ReadGPU(ctx context.Context) (GPUInfo, error)
}

// NvidiaSMIReader queries GPU state by executing nvidia-smi. It avoids a
// driver-library dependency: the binary ships with every NVIDIA driver and
// works identically across CUDA versions.
type NvidiaSMIReader struct {
	// Path to the nvidia-smi executable; empty uses PATH lookup.
	Path string
}

// ReadGPU runs one nvidia-smi query and parses the CSV output.
func (r *NvidiaSMIReader) ReadGPU(ctx context.Context) (GPUInfo, error) {
	path := r.Path
	if path == "" {
		path = "nvidia-smi"
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, path,
		"--query-gpu=name,utilization.gpu,temperature.gpu,memory.used,memory.total",
		"--format=csv,noheader,nounits")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return GPUInfo{}, fmt.Errorf("nvidia-smi failed: %w (stderr: %s)", err, stderr.String())
	}

	return parseNvidiaSMIOutput(stdout.String())
}

// parseNvidiaSMIOutput parses one CSV line of nvidia-smi query output.
// Multi-GPU machines report one line per device; the first is used.
func parseNvidiaSMIOutput(output string) (GPUInfo, error) {
	output = strings.TrimSpace(output)
	if output == "" {
		return GPUInfo{}, fmt.Errorf("empty nvidia-smi output")
	}

	record, err := csv.NewReader(strings.NewReader(output)).Read()
	if err != nil {
		return GPUInfo{}, fmt.Errorf("failed to parse CSV: %w", err)
	}
	if len(record) < 5 {
		return GPUInfo{}, fmt.Errorf("unexpected field count: got %d, expected 5", len(record))
	}

	info := GPUInfo{Name: strings.TrimSpace(record[0])}

	fields := []struct {
		name string
		dst  *float64
		raw  string
	}{
		{"utilization", &info.Utilization, record[1]},
		{"temperature", &info.Temperature, record[2]},
		{"memory used", &info.MemoryUsedMB, record[3]},
		{"memory total", &info.MemoryTotalMB, record[4]},
	}
	for _, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f.raw), 64)
		if err != nil {
			return GPUInfo{}, fmt.Errorf("failed to parse %s: %w", f.name, err)
		}
		*f.dst = v
	}

	return info, nil
}
