package main

import (
	"bytes"
	"errors"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i5heu/GoRingQueue/internal/testbench"
	"github.com/i5heu/GoRingQueue/pkg/ringqueue"
)

// progressWatchdog fails the test if no progress is made for 15 seconds.
type progressWatchdog struct {
	t            *testing.T
	label        string
	lastProgress atomic.Int64
	done         chan struct{}
	wg           sync.WaitGroup
}

func newWatchdog(t *testing.T, label string) *progressWatchdog {
	wd := &progressWatchdog{
		t:     t,
		label: label,
		done:  make(chan struct{}),
	}
	wd.lastProgress.Store(time.Now().UnixNano())
	return wd
}

func (wd *progressWatchdog) Start() {
	wd.wg.Add(1)
	go func() {
		defer wd.wg.Done()
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				last := wd.lastProgress.Load()
				if time.Since(time.Unix(0, last)) > 15*time.Second {
					wd.t.Errorf("No progress in the last 15 seconds (%s test likely stuck).", wd.label)
					return
				}
			case <-wd.done:
				return
			}
		}
	}()
}

func (wd *progressWatchdog) Progress() {
	wd.lastProgress.Store(time.Now().UnixNano())
}

func (wd *progressWatchdog) Stop() {
	close(wd.done)
	wd.wg.Wait()
}

// withAllQueues runs fn once per implementation that has every feature in
// testedFeatures.
func withAllQueues(t *testing.T, capacity uint32, testedFeatures []string, fn func(t *testing.T, q benchQueue)) {
	t.Helper()
	for _, impl := range getImplementations() {
		impl := impl
		t.Run(impl.name, func(t *testing.T) {
			for _, feature := range testedFeatures {
				if !hasFeature(impl, feature) {
					t.Skipf("Skipping: missing feature %q", feature)
				}
			}
			q, release, err := impl.newQueue(capacity)
			require.NoError(t, err)
			defer release()
			fn(t, q)
		})
	}
}

func hasFeature(impl Implementation, feature string) bool {
	for _, f := range impl.features {
		if f == feature {
			return true
		}
	}
	return false
}

// usable is how many values q accepts before reporting full.
func usable(q benchQueue) int {
	n := int(q.Capacity())
	if _, ring := q.(*ringqueue.RingQueue[*int]); ring {
		n--
	}
	return n
}

func TestBasicFIFO(t *testing.T) {
	withAllQueues(t, 1024, []string{"FIFO"}, func(t *testing.T, q benchQueue) {
		wd := newWatchdog(t, "BasicFIFO")
		wd.Start()
		defer wd.Stop()

		n := usable(q)
		for i := 0; i < n; i++ {
			item := i
			require.NoError(t, q.Push(&item))
			wd.Progress()
		}
		assert.ErrorIs(t, q.Push(new(int)), ringqueue.ErrFull)

		for i := 0; i < n; i++ {
			var v *int
			require.NoError(t, q.Pop(&v))
			require.Equal(t, i, *v, "FIFO order violated")
			wd.Progress()
		}
		assert.ErrorIs(t, q.Pop(nil), ringqueue.ErrEmpty)
	})
}

func TestEmptyQueue(t *testing.T) {
	withAllQueues(t, 16, nil, func(t *testing.T, q benchQueue) {
		var v *int
		err := q.Pop(&v)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ringqueue.ErrFail))
		assert.Nil(t, v)
		assert.Zero(t, q.Count())
	})
}

func TestWrapAround(t *testing.T) {
	withAllQueues(t, 8, []string{"FIFO"}, func(t *testing.T, q benchQueue) {
		next, want := 0, 0
		for round := 0; round < 200; round++ {
			for i := 0; i < 5; i++ {
				v := next
				require.NoError(t, q.Push(&v))
				next++
			}
			for i := 0; i < 5; i++ {
				var v *int
				require.NoError(t, q.Pop(&v))
				require.Equal(t, want, *v)
				want++
			}
		}
	})
}

func TestCount(t *testing.T) {
	withAllQueues(t, 32, nil, func(t *testing.T, q benchQueue) {
		for i := 0; i < 10; i++ {
			v := i
			require.NoError(t, q.Push(&v))
		}
		assert.Equal(t, uint32(10), q.Count())
		for i := 0; i < 4; i++ {
			require.NoError(t, q.Pop(nil))
		}
		assert.Equal(t, uint32(6), q.Count())
	})
}

// TestHighContention checks exact-once delivery with a small ring and many
// goroutines on every implementation.
func TestHighContention(t *testing.T) {
	withAllQueues(t, 16, []string{"MPMC"}, func(t *testing.T, q benchQueue) {
		wd := newWatchdog(t, "HighContention")
		wd.Start()
		defer wd.Stop()

		cq := countedQueue{q: q, wd: wd}
		res, err := testbench.RunCounted(&cq, testbench.Config{
			NumProducers: 2 * runtime.GOMAXPROCS(0),
			NumConsumers: 2 * runtime.GOMAXPROCS(0),
		}, 20_000)
		require.NoError(t, err)
		assert.Equal(t, int64(20_000), res.Pushed)
		assert.Equal(t, int64(20_000), res.Popped)
		assert.Zero(t, q.Count())
	})
}

// countedQueue adapts a *int queue to the int values RunCounted pushes.
type countedQueue struct {
	q  benchQueue
	wd *progressWatchdog
}

func (c *countedQueue) Push(v int) error {
	if err := c.q.Push(&v); err != nil {
		return err
	}
	c.wd.Progress()
	return nil
}

func (c *countedQueue) Pop(out *int) error {
	var p *int
	if err := c.q.Pop(&p); err != nil {
		return err
	}
	if out != nil {
		*out = *p
	}
	return nil
}

func (c *countedQueue) Count() uint32    { return c.q.Count() }
func (c *countedQueue) Capacity() uint32 { return c.q.Capacity() }

func TestRunTimedTestBalances(t *testing.T) {
	withAllQueues(t, 64, nil, func(t *testing.T, q benchQueue) {
		produced, consumed, elapsed := testbench.RunTimedTest(q, testbench.Config{NumProducers: 4, NumConsumers: 4},
			50*time.Millisecond, func(i int) *int { return &i })
		assert.Positive(t, produced)
		assert.Equal(t, produced, consumed, "consumers must drain everything produced")
		assert.GreaterOrEqual(t, elapsed, 40*time.Millisecond)
	})
}

func TestSelectImplementations(t *testing.T) {
	assert.Len(t, selectImplementations(nil), len(getImplementations()))
	assert.Len(t, selectImplementations([]string{"ringqueue"}), 3)

	got := selectImplementations([]string{"Golang Buffered Channel"})
	require.Len(t, got, 1)
	assert.Equal(t, "buffered", got[0].pkgName)

	assert.Empty(t, selectImplementations([]string{"nope"}))
}

func TestReportsRoundTripAndTable(t *testing.T) {
	file := filepath.Join(t.TempDir(), "results.json")

	none, err := readReports(file)
	require.NoError(t, err)
	assert.Empty(t, none)

	first := FullReport{SessionID: "a", Benchmarks: []BenchmarkResult{
		{Implementation: "RingQueue (spin)", Throughput: 100},
	}}
	second := FullReport{SessionID: "b", Benchmarks: []BenchmarkResult{
		{Implementation: "Golang Buffered Channel", Throughput: 10},
		{Implementation: "RingQueue (spin)", Throughput: 100},
		{Implementation: "RingQueue (spin)", Throughput: 300},
	}}
	require.NoError(t, appendReports(file, []FullReport{first}))
	require.NoError(t, appendReports(file, []FullReport{second}))

	sessions, err := readReports(file)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "b", sessions[1].SessionID)

	var buf bytes.Buffer
	require.NoError(t, writeMarkdownTable(&buf, sessions))
	out := buf.String()
	assert.Contains(t, out, "| RingQueue (spin)")
	assert.Contains(t, out, "200 |", "throughput is averaged per implementation")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("RingQueue (spin)")),
		bytes.Index(buf.Bytes(), []byte("Golang Buffered Channel")), "rows sorted by throughput")

	assert.Error(t, writeMarkdownTable(&buf, nil))
}
