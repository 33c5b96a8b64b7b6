package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// BenchmarkResult holds results for one test run.
type BenchmarkResult struct {
	Implementation      string  `json:"implementation"`
	NumProducers        int     `json:"num_producers"`
	NumConsumers        int     `json:"num_consumers"`
	Capacity            uint32  `json:"capacity"`
	NumMessages         int64   `json:"num_messages"`          // produced count
	NumMessagesConsumed int64   `json:"num_messages_consumed"` // consumed count
	TestDuration        string  `json:"test_duration"`         // e.g. "10s"
	ActualElapsed       string  `json:"actual_elapsed"`        // measured time
	Throughput          float64 `json:"throughput_msgs_sec"`   // based on consumed count
	Timestamp           int64   `json:"timestamp"`
	GoVersion           string  `json:"go_version"`
}

// SystemInfo holds system information.
type SystemInfo struct {
	NumCPU            int     `json:"num_cpu"`
	TrueCPU           int     `json:"true_cpu,omitempty"`
	SimulatedCPUCount int     `json:"simulated_cpu_count,omitempty"`
	CPUModel          string  `json:"cpu_model,omitempty"`
	CPUSpeedMHz       float64 `json:"cpu_speed_mhz,omitempty"`
	GOARCH            string  `json:"go_arch"`
	TotalMemory       uint64  `json:"total_memory_bytes,omitempty"`
}

// FullReport represents a complete test session.
type FullReport struct {
	SessionID   string            `json:"session_id"`
	SessionTime string            `json:"session_time"`
	SystemInfo  SystemInfo        `json:"system_info"`
	Benchmarks  []BenchmarkResult `json:"benchmarks"`
}

// gatherSystemInfo collects basic CPU and memory details.
func gatherSystemInfo() SystemInfo {
	var cpuModel string
	var cpuSpeed float64
	if infos, err := cpu.Info(); err == nil && len(infos) > 0 {
		cpuModel = infos[0].ModelName
		cpuSpeed = infos[0].Mhz
	}

	var totalMemory uint64
	if vm, err := mem.VirtualMemory(); err == nil {
		totalMemory = vm.Total
	}

	return SystemInfo{
		NumCPU:      runtime.NumCPU(),
		CPUModel:    cpuModel,
		CPUSpeedMHz: cpuSpeed,
		GOARCH:      runtime.GOARCH,
		TotalMemory: totalMemory,
	}
}

// readReports loads the sessions stored in filename. A missing file is an
// empty history.
func readReports(filename string) ([]FullReport, error) {
	data, err := os.ReadFile(filename)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	var sessions []FullReport
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", filename, err)
	}
	return sessions, nil
}

// appendReports adds sessions to the history in filename.
func appendReports(filename string, sessions []FullReport) error {
	previous, err := readReports(filename)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(append(previous, sessions...), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}

// writeMarkdownTable writes the last session of sessions as a Markdown table,
// averaging the throughput of each implementation over all its runs.
func writeMarkdownTable(w io.Writer, sessions []FullReport) error {
	if len(sessions) == 0 {
		return errors.New("no sessions found")
	}
	last := sessions[len(sessions)-1]

	meta := make(map[string]Implementation)
	for _, impl := range getImplementations() {
		meta[impl.name] = impl
	}

	type tableRow struct {
		implementation string
		pkgName        string
		features       string
		throughput     float64
		runs           int
	}
	byName := make(map[string]*tableRow)
	var rows []*tableRow
	for _, bench := range last.Benchmarks {
		r, ok := byName[bench.Implementation]
		if !ok {
			r = &tableRow{implementation: bench.Implementation}
			if m, ok := meta[bench.Implementation]; ok {
				r.pkgName = m.pkgName
				r.features = strings.Join(m.features, ", ")
			}
			byName[bench.Implementation] = r
			rows = append(rows, r)
		}
		r.throughput += bench.Throughput
		r.runs++
	}
	for _, r := range rows {
		r.throughput /= float64(r.runs)
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].throughput > rows[j].throughput
	})

	fmt.Fprintln(w, "## Last Session Benchmark Summary")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "| Implementation           | Package         | Features                                 | Throughput (msgs/sec) |")
	fmt.Fprintln(w, "|--------------------------|-----------------|------------------------------------------|-----------------------|")
	for _, r := range rows {
		fmt.Fprintf(w, "| %-24s | %-15s | %-40s | %21.0f |\n",
			r.implementation, r.pkgName, r.features, r.throughput)
	}
	return nil
}
