package ringqueue

import (
	"context"
	"fmt"
	"runtime"
	"time"
)

// WaitStrategy decides what a caller does while the slot it reserved is not
// yet in the state it needs.
//
// Pause is called once per unsuccessful poll. round counts earlier pauses of
// the same wait, starting at 0, and start is when the wait began. Returning a
// non-nil error abandons the wait.
type WaitStrategy interface {
	Pause(ctx context.Context, round int, start time.Time) error
}

// Spin polls without yielding, sleeping or timing out. Lowest latency, but a
// stalled peer pins the waiting goroutine forever. This is the default.
type Spin struct{}

func (Spin) Pause(context.Context, int, time.Time) error { return nil }

// SpinYield polls Spins times, then yields the processor between polls.
// It has no timeout but gives up when ctx is done.
type SpinYield struct {
	Spins int
}

func (w SpinYield) Pause(ctx context.Context, round int, _ time.Time) error {
	if round < w.Spins {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrStalled, err)
	}
	runtime.Gosched()
	return nil
}

// Backoff spins, then yields, then sleeps with exponential growth bounded by
// MaxSleep. A non-zero Timeout bounds the whole wait.
type Backoff struct {
	Spins    int
	Yields   int
	MinSleep time.Duration
	MaxSleep time.Duration
	Timeout  time.Duration
}

// DefaultBackoff suits hand-offs where the peer may be descheduled.
func DefaultBackoff() Backoff {
	return Backoff{
		Spins:    128,
		Yields:   64,
		MinSleep: time.Microsecond,
		MaxSleep: time.Millisecond,
	}
}

func (b Backoff) Pause(ctx context.Context, round int, start time.Time) error {
	if round < b.Spins {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrStalled, err)
	}
	if b.Timeout > 0 && time.Since(start) >= b.Timeout {
		return fmt.Errorf("%w: gave up after %s", ErrStalled, b.Timeout)
	}
	if round < b.Spins+b.Yields {
		runtime.Gosched()
		return nil
	}
	return b.sleep(ctx, round-b.Spins-b.Yields)
}

func (b Backoff) sleep(ctx context.Context, n int) error {
	minSleep, maxSleep := b.MinSleep, b.MaxSleep
	if minSleep <= 0 {
		minSleep = time.Microsecond
	}
	if maxSleep < minSleep {
		maxSleep = minSleep
	}
	d := minSleep
	for i := 0; i < n && d < maxSleep; i++ {
		d <<= 1
	}
	if d > maxSleep {
		d = maxSleep
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrStalled, ctx.Err())
	}
}
