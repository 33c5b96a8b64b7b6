package main

import (
	"github.com/i5heu/GoRingQueue/internal/queue"
	"github.com/i5heu/GoRingQueue/pkg/buffered"
	"github.com/i5heu/GoRingQueue/pkg/ringqueue"
)

// benchQueue is what every implementation under test hands to the testbench.
type benchQueue = queue.QueueValidationInterface[*int]

// Implementation represents a queue implementation.
type Implementation struct {
	name        string
	description string
	pkgName     string
	features    []string
	// newQueue returns the queue and a func releasing it.
	newQueue func(capacity uint32) (benchQueue, func(), error)
}

func newRingQueue(ws ringqueue.WaitStrategy) func(uint32) (benchQueue, func(), error) {
	return func(capacity uint32) (benchQueue, func(), error) {
		q := ringqueue.New(ringqueue.Config[*int]{Wait: ws})
		if err := q.Create(ringqueue.NewBuffer[*int](int(capacity))); err != nil {
			return nil, nil, err
		}
		return q, func() { _ = q.Destroy() }, nil
	}
}

// getImplementations enumerates the queue variants under test.
func getImplementations() []Implementation {
	return []Implementation{
		{
			name:        "Golang Buffered Channel",
			pkgName:     "buffered",
			description: "Standard go channel used with select/default, the baseline every variant is compared against.",
			features:    []string{"MPMC", "FIFO"},
			newQueue: func(capacity uint32) (benchQueue, func(), error) {
				return buffered.New[*int](capacity), func() {}, nil
			},
		},
		{
			name:        "RingQueue (spin)",
			pkgName:     "ringqueue",
			description: "Lock-free ring over caller storage, busy-waiting on a held slot.",
			features:    []string{"MPMC", "FIFO", "Cache-Optimized", "Spin-Wait"},
			newQueue:    newRingQueue(ringqueue.Spin{}),
		},
		{
			name:        "RingQueue (spin+yield)",
			pkgName:     "ringqueue",
			description: "Lock-free ring over caller storage, yielding the processor after a short spin.",
			features:    []string{"MPMC", "FIFO", "Cache-Optimized", "Yield-Wait"},
			newQueue:    newRingQueue(ringqueue.SpinYield{Spins: 64}),
		},
		{
			name:        "RingQueue (backoff)",
			pkgName:     "ringqueue",
			description: "Lock-free ring over caller storage, spin then yield then exponential sleep.",
			features:    []string{"MPMC", "FIFO", "Cache-Optimized", "Backoff"},
			newQueue:    newRingQueue(ringqueue.DefaultBackoff()),
		},
	}
}

// selectImplementations keeps the implementations named in names, in the
// order getImplementations lists them. An empty names keeps all.
func selectImplementations(names []string) []Implementation {
	all := getImplementations()
	if len(names) == 0 {
		return all
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []Implementation
	for _, impl := range all {
		if want[impl.name] || want[impl.pkgName] {
			out = append(out, impl)
		}
	}
	return out
}
