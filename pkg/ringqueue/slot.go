package ringqueue

import (
	"context"
	"sync/atomic"
	"time"
	"unsafe"
)

// Slot is one cell of the ring. It holds at most one value.
//
// The turn word encodes both the lap and the presence flag:
//
//	turn == 2*lap     empty, waiting for the producer of lap
//	turn == 2*lap + 1 full, waiting for the consumer of lap
//
// A producer owns value while the slot is empty for its lap, a consumer owns
// it while the slot is full for its lap.
type Slot[T any] struct {
	turn  atomic.Uint64
	value T
}

// Present reports whether a value currently occupies the slot.
func (s *Slot[T]) Present() bool {
	return s.turn.Load()&1 == 1
}

func (s *Slot[T]) reset() {
	var zero T
	s.value = zero
	s.turn.Store(0)
}

// store requires the slot to be empty for lap.
func (s *Slot[T]) store(lap uint64, v T) {
	if s.turn.Load() != lap*2 {
		panic("ringqueue: store into a slot that is not empty for this lap")
	}
	s.value = v
	s.turn.Store(lap*2 + 1)
}

// load requires the slot to be full for lap. out may be nil.
func (s *Slot[T]) load(lap uint64, out *T) {
	if s.turn.Load() != lap*2+1 {
		panic("ringqueue: load from a slot that is not full for this lap")
	}
	if out != nil {
		*out = s.value
	}
	var zero T
	s.value = zero
	s.turn.Store(lap*2 + 2)
}

func (s *Slot[T]) waitUntilEmpty(ctx context.Context, lap uint64, ws WaitStrategy) error {
	return s.await(ctx, lap*2, ws)
}

func (s *Slot[T]) waitUntilPresent(ctx context.Context, lap uint64, ws WaitStrategy) error {
	return s.await(ctx, lap*2+1, ws)
}

func (s *Slot[T]) await(ctx context.Context, want uint64, ws WaitStrategy) error {
	if s.turn.Load() == want {
		return nil
	}
	start := time.Now()
	for round := 0; s.turn.Load() != want; round++ {
		if err := ws.Pause(ctx, round, start); err != nil {
			return err
		}
	}
	return nil
}

// SlotSize returns the size in bytes of one Slot[T].
func SlotSize[T any]() uintptr {
	var s Slot[T]
	return unsafe.Sizeof(s)
}

// SlotsFor returns how many slots fit in sizeInBytes. Leftover bytes are unused.
func SlotsFor[T any](sizeInBytes uintptr) int {
	return int(sizeInBytes / SlotSize[T]())
}

// NewBuffer allocates backing storage for n slots. The caller owns the
// returned slice and must keep it alive for as long as a queue uses it.
func NewBuffer[T any](n int) []Slot[T] {
	return make([]Slot[T], n)
}
