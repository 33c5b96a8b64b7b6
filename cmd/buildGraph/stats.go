package main

import (
	"fmt"
	"sort"
	"time"
)

// BenchmarkResult is the subset of a cmd/bench result the graphs need.
type BenchmarkResult struct {
	Implementation      string  `json:"implementation"`
	NumProducers        int     `json:"num_producers"`
	NumConsumers        int     `json:"num_consumers"`
	Capacity            uint32  `json:"capacity"`
	NumMessagesConsumed int64   `json:"num_messages_consumed"`
	ActualElapsed       string  `json:"actual_elapsed"`
	Throughput          float64 `json:"throughput_msgs_sec"`
}

// SystemInfo is the subset of the recorded system info the graphs need.
type SystemInfo struct {
	NumCPU            int `json:"num_cpu"`
	SimulatedCPUCount int `json:"simulated_cpu_count,omitempty"`
}

// FullReport is one bench session.
type FullReport struct {
	SessionID  string            `json:"session_id"`
	SystemInfo SystemInfo        `json:"system_info"`
	Benchmarks []BenchmarkResult `json:"benchmarks"`
}

// metric turns one result into the plotted value. ok is false for results
// that carry no usable measurement.
type metric struct {
	label string
	value func(BenchmarkResult) (v float64, ok bool)
	// format renders a tick label.
	format func(float64) string
}

var metrics = map[string]metric{
	"ns": {
		label: "Time per Msg",
		value: func(b BenchmarkResult) (float64, bool) {
			dur, err := time.ParseDuration(b.ActualElapsed)
			if err != nil || b.NumMessagesConsumed == 0 {
				return 0, false
			}
			return float64(dur.Nanoseconds()) / float64(b.NumMessagesConsumed), true
		},
		format: formatNs,
	},
	"throughput": {
		label: "Throughput (msgs/sec)",
		value: func(b BenchmarkResult) (float64, bool) {
			return b.Throughput, b.Throughput > 0
		},
		format: formatRate,
	},
}

// groupKey identifies one graph.
type groupKey struct {
	cpus     int
	capacity uint32
}

// samples maps implementation -> producers+consumers -> values.
type samples map[string]map[float64][]float64

// group splits the results of sessions by CPU count and queue capacity.
// An empty sessionID keeps every session.
func group(sessions []FullReport, m metric, sessionID string) map[groupKey]samples {
	out := make(map[groupKey]samples)
	for _, session := range sessions {
		if sessionID != "" && session.SessionID != sessionID {
			continue
		}
		cpus := session.SystemInfo.SimulatedCPUCount
		if cpus == 0 {
			cpus = session.SystemInfo.NumCPU
		}
		for _, b := range session.Benchmarks {
			v, ok := m.value(b)
			if !ok {
				continue
			}
			key := groupKey{cpus: cpus, capacity: b.Capacity}
			g, ok := out[key]
			if !ok {
				g = make(samples)
				out[key] = g
			}
			if g[b.Implementation] == nil {
				g[b.Implementation] = make(map[float64][]float64)
			}
			x := float64(b.NumProducers + b.NumConsumers)
			g[b.Implementation][x] = append(g[b.Implementation][x], v)
		}
	}
	return out
}

// concurrencyStats holds "5%-avg-min", median, and "5%-avg-max" for one
// concurrency level.
type concurrencyStats struct {
	x      float64 // plot position
	orig   float64 // producers+consumers
	min    float64
	median float64
	max    float64
}

// statsPoints implements XYer and YErrorer so a series can be drawn as lines
// with error bars.
type statsPoints []concurrencyStats

func (s statsPoints) Len() int                { return len(s) }
func (s statsPoints) XY(i int) (x, y float64) { return s[i].x, s[i].median }
func (s statsPoints) YError(i int) (low, high float64) {
	return s[i].median - s[i].min, s[i].max - s[i].median
}

// buildStats reduces each concurrency level to its stats, ordered by level.
func buildStats(byConcurrency map[float64][]float64) []concurrencyStats {
	var out []concurrencyStats
	for x, vals := range byConcurrency {
		if len(vals) == 0 {
			continue
		}
		sorted := append([]float64(nil), vals...)
		sort.Float64s(sorted)
		out = append(out, concurrencyStats{
			x:      x,
			orig:   x,
			min:    averageOfRange(sorted, 0.0, 0.05),
			median: median(sorted),
			max:    averageOfRange(sorted, 0.95, 1.0),
		})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].orig < out[b].orig })
	return out
}

// averageOfRange returns the average of sortedVals in [startFrac, endFrac) of
// its length, or the median if that range holds no value.
func averageOfRange(sortedVals []float64, startFrac, endFrac float64) float64 {
	n := len(sortedVals)
	if n == 0 {
		return 0
	}
	startIndex := int(float64(n) * startFrac)
	endIndex := int(float64(n) * endFrac)
	if endIndex > n {
		endIndex = n
	}
	if startIndex >= endIndex {
		return median(sortedVals)
	}
	sum := 0.0
	for i := startIndex; i < endIndex; i++ {
		sum += sortedVals[i]
	}
	return sum / float64(endIndex-startIndex)
}

func median(sorted []float64) float64 {
	n := len(sorted)
	mid := n / 2
	if n%2 == 1 {
		return sorted[mid]
	}
	return 0.5 * (sorted[mid-1] + sorted[mid])
}

// formatNs formats a nanoseconds value in ns, µs, ms, or s.
func formatNs(ns float64) string {
	switch {
	case ns < 1e3:
		return fmt.Sprintf("%.0fns", ns)
	case ns < 1e6:
		return fmt.Sprintf("%.1fµs", ns/1e3)
	case ns < 1e9:
		return fmt.Sprintf("%.1fms", ns/1e6)
	default:
		return fmt.Sprintf("%.2fs", ns/1e9)
	}
}

func formatRate(r float64) string {
	switch {
	case r < 1e3:
		return fmt.Sprintf("%.0f", r)
	case r < 1e6:
		return fmt.Sprintf("%.1fk", r/1e3)
	default:
		return fmt.Sprintf("%.1fM", r/1e6)
	}
}
