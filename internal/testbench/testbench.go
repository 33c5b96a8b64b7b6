package testbench

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/i5heu/GoRingQueue/internal/queue"
	"github.com/i5heu/GoRingQueue/pkg/ringqueue"
)

// Config is only about concurrency: how many producers, how many consumers.
type Config struct {
	NumProducers int `yaml:"producers" json:"producers"`
	NumConsumers int `yaml:"consumers" json:"consumers"`
}

// RunTimedTest spawns producers and consumers that run for the specified
// duration, measuring how many messages are actually pushed/popped in that
// window. Push and pop failures caused by a full or empty queue are the
// normal back-off signal and only make the caller yield. Once the context
// expires producers stop, and consumers drain what is left before returning.
// Returns the total messages pushed, total popped, and the actual elapsed time.
func RunTimedTest[T any, Q queue.QueueValidationInterface[T]](
	q Q,
	cfg Config,
	testDuration time.Duration,
	valueGenerator func(int) T,
) (producedCount int64, consumedCount int64, elapsed time.Duration) {

	ctx, cancel := context.WithTimeout(context.Background(), testDuration)
	defer cancel()

	var totalProduced atomic.Int64
	var totalConsumed atomic.Int64
	var msgIndex atomic.Int64

	// producersDone is set once every producer has returned, so an empty
	// queue seen afterwards really is drained.
	var producersDone atomic.Bool

	start := time.Now()

	var prodWg sync.WaitGroup
	prodWg.Add(cfg.NumProducers)
	for i := 0; i < cfg.NumProducers; i++ {
		go func() {
			defer prodWg.Done()
			for ctx.Err() == nil {
				msg := valueGenerator(int(msgIndex.Add(1) - 1))
				for {
					err := q.Push(msg)
					if err == nil {
						totalProduced.Add(1)
						break
					}
					if !errors.Is(err, ringqueue.ErrFail) || ctx.Err() != nil {
						return
					}
					runtime.Gosched()
				}
			}
		}()
	}

	var consWg sync.WaitGroup
	consWg.Add(cfg.NumConsumers)
	for i := 0; i < cfg.NumConsumers; i++ {
		go func() {
			defer consWg.Done()
			var out T
			for {
				if err := q.Pop(&out); err == nil {
					totalConsumed.Add(1)
					continue
				}
				if producersDone.Load() {
					// One more attempt: the queue may have refilled between
					// the failed pop and the flag check.
					if err := q.Pop(&out); err != nil {
						return
					}
					totalConsumed.Add(1)
					continue
				}
				runtime.Gosched()
			}
		}()
	}

	<-ctx.Done()
	prodWg.Wait()
	producersDone.Store(true)
	consWg.Wait()

	elapsed = time.Since(start)
	return totalProduced.Load(), totalConsumed.Load(), elapsed
}

// CountedResult summarizes a RunCounted session.
type CountedResult struct {
	Pushed     int64
	Popped     int64
	FullRetry  int64 // pushes that had to back off
	EmptyRetry int64 // pops that found nothing
	Elapsed    time.Duration
}

// RunCounted pushes exactly total distinct values 0..total-1 split across the
// producers and pops them with the consumers. It returns an error if any
// value was lost or delivered more than once.
func RunCounted[Q queue.QueueValidationInterface[int]](q Q, cfg Config, total int) (CountedResult, error) {
	if cfg.NumProducers < 1 || cfg.NumConsumers < 1 {
		return CountedResult{}, fmt.Errorf("testbench: need at least one producer and one consumer, got %+v", cfg)
	}

	seen := make([]atomic.Uint32, total)
	var res CountedResult
	var pushed, popped, fullRetry, emptyRetry atomic.Int64
	start := time.Now()

	var wg sync.WaitGroup
	per := total / cfg.NumProducers
	for p := 0; p < cfg.NumProducers; p++ {
		from := p * per
		to := from + per
		if p == cfg.NumProducers-1 {
			to = total
		}
		wg.Add(1)
		go func(from, to int) {
			defer wg.Done()
			for v := from; v < to; v++ {
				for q.Push(v) != nil {
					fullRetry.Add(1)
					runtime.Gosched()
				}
				pushed.Add(1)
			}
		}(from, to)
	}

	for c := 0; c < cfg.NumConsumers; c++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var v int
			for popped.Load() < int64(total) {
				if err := q.Pop(&v); err != nil {
					emptyRetry.Add(1)
					runtime.Gosched()
					continue
				}
				seen[v].Add(1)
				popped.Add(1)
			}
		}()
	}

	wg.Wait()
	res.Pushed = pushed.Load()
	res.Popped = popped.Load()
	res.FullRetry = fullRetry.Load()
	res.EmptyRetry = emptyRetry.Load()
	res.Elapsed = time.Since(start)

	var lost, dup int
	for i := range seen {
		switch n := seen[i].Load(); {
		case n == 0:
			lost++
		case n > 1:
			dup++
		}
	}
	if lost > 0 || dup > 0 {
		return res, fmt.Errorf("testbench: %d values lost, %d duplicated out of %d", lost, dup, total)
	}
	return res, nil
}
