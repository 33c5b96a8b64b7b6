package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupSplitsByCPUAndCapacity(t *testing.T) {
	sessions := []FullReport{
		{
			SessionID:  "a",
			SystemInfo: SystemInfo{NumCPU: 8, SimulatedCPUCount: 2},
			Benchmarks: []BenchmarkResult{
				{Implementation: "x", NumProducers: 2, NumConsumers: 2, Capacity: 64, NumMessagesConsumed: 1000, ActualElapsed: "1ms", Throughput: 1e6},
				{Implementation: "x", NumProducers: 2, NumConsumers: 2, Capacity: 1024, NumMessagesConsumed: 10, ActualElapsed: "1ms", Throughput: 1e4},
				{Implementation: "y", NumProducers: 1, NumConsumers: 1, Capacity: 64, NumMessagesConsumed: 0, ActualElapsed: "1ms"},
			},
		},
		{
			SessionID:  "b",
			SystemInfo: SystemInfo{NumCPU: 4},
			Benchmarks: []BenchmarkResult{
				{Implementation: "x", NumProducers: 2, NumConsumers: 2, Capacity: 64, NumMessagesConsumed: 500, ActualElapsed: "bogus", Throughput: 5e5},
			},
		},
	}

	ns := group(sessions, metrics["ns"], "")
	require.Len(t, ns, 2, "zero consumed and unparsable durations are skipped")
	assert.Equal(t, []float64{1000}, ns[groupKey{cpus: 2, capacity: 64}]["x"][4])
	assert.Equal(t, []float64{100000}, ns[groupKey{cpus: 2, capacity: 1024}]["x"][4])

	tp := group(sessions, metrics["throughput"], "")
	assert.Len(t, tp, 3)
	assert.Equal(t, []float64{5e5}, tp[groupKey{cpus: 4, capacity: 64}]["x"][4])

	only := group(sessions, metrics["throughput"], "b")
	assert.Len(t, only, 1)
}

func TestBuildStats(t *testing.T) {
	vals := make([]float64, 0, 40)
	for i := 40; i > 0; i-- {
		vals = append(vals, float64(i))
	}
	stats := buildStats(map[float64][]float64{8: {3, 1, 2}, 4: vals})
	require.Len(t, stats, 2)

	assert.Equal(t, float64(4), stats[0].orig)
	assert.Equal(t, 1.5, stats[0].min, "bottom 5 percent of 40 values is the two smallest")
	assert.Equal(t, 20.5, stats[0].median)
	assert.Equal(t, 39.5, stats[0].max)
	assert.Equal(t, float64(40), vals[0], "input is not sorted in place")

	assert.Equal(t, float64(8), stats[1].orig)
	assert.Equal(t, float64(2), stats[1].median)
	assert.Equal(t, float64(2), stats[1].min, "too few values falls back to the median")

	sp := statsPoints(stats)
	low, high := sp.YError(0)
	assert.Equal(t, 19.0, low)
	assert.Equal(t, 19.0, high)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "500ns", formatNs(500))
	assert.Equal(t, "1.5µs", formatNs(1500))
	assert.Equal(t, "2.0ms", formatNs(2e6))
	assert.Equal(t, "3.00s", formatNs(3e9))
	assert.Equal(t, "999", formatRate(999))
	assert.Equal(t, "12.3k", formatRate(12300))
	assert.Equal(t, "4.5M", formatRate(4.5e6))
}
