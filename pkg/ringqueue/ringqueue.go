// Package ringqueue provides a bounded, lock-free, multi-producer/multi-consumer
// queue over caller-supplied storage.
//
// Admission and hand-off are decoupled. A producer reserves a ring position
// by CAS on head and then waits only for that one slot to be drained before
// writing into it; a consumer does the same on tail. A slow producer or
// consumer therefore stalls the slot it holds, never the shared cursors.
//
// The queue never allocates. The caller hands it a []Slot[T] in Create and
// must keep that slice alive, and unaliased, until Destroy returns.
//
// One slot is always kept free so that a full ring can be told apart from an
// empty one: a queue created over n slots holds at most n-1 values.
package ringqueue

import (
	"context"
	"math"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

const (
	stateUncreated int32 = iota
	stateCreating
	stateCreated
)

// Config holds the optional behavior of a RingQueue.
type Config[T any] struct {
	// Wait is used while a reserved slot is still held by the other side.
	// Nil means Spin.
	Wait WaitStrategy

	// Discard is called by Destroy once for every value still held by a
	// slot, including values stored after their consumer gave up.
	Discard func(T)
}

// RingQueue is a fixed-capacity MPMC queue. The zero value is an uncreated
// queue using the Spin wait strategy. A RingQueue must not be copied.
//
// head and tail are monotonically increasing tickets; a ticket maps to slot
// ticket%capacity on lap ticket/capacity. Using tickets instead of indices
// wrapped at capacity keeps a late consumer of one lap from taking the value
// written for the next lap into the same slot.
type RingQueue[T any] struct {
	noCopy noCopy //nolint:unused

	_     cpu.CacheLinePad
	head  atomic.Uint64
	_     cpu.CacheLinePad
	tail  atomic.Uint64
	_     cpu.CacheLinePad
	count atomic.Int64
	_     cpu.CacheLinePad

	state    atomic.Int32
	slots    []Slot[T]
	capacity uint64

	wait    WaitStrategy
	discard func(T)
}

// New returns an uncreated queue configured by cfg.
func New[T any](cfg Config[T]) *RingQueue[T] {
	return &RingQueue[T]{
		wait:    cfg.Wait,
		discard: cfg.Discard,
	}
}

// Create maps the queue onto buffer. Capacity becomes len(buffer).
//
// It returns ErrInvalidCall if the queue is already created and
// ErrInvalidArgument if buffer is nil or holds no slot at all.
// Create must not race with Destroy.
func (q *RingQueue[T]) Create(buffer []Slot[T]) error {
	if !q.state.CompareAndSwap(stateUncreated, stateCreating) {
		return ErrInvalidCall
	}
	if len(buffer) < 1 || uint64(len(buffer)) > math.MaxUint32 {
		q.state.Store(stateUncreated)
		return ErrInvalidArgument
	}

	for i := range buffer {
		buffer[i].reset()
	}
	q.slots = buffer
	q.capacity = uint64(len(buffer))
	q.head.Store(0)
	q.tail.Store(0)
	q.count.Store(0)
	if q.wait == nil {
		q.wait = Spin{}
	}

	q.state.Store(stateCreated)
	return nil
}

// Destroy hands every value still held by a slot to Config.Discard, in ticket
// order starting at tail, and returns the queue to the uncreated state. It
// never waits: a slot whose reservation was abandoned is skipped, and a value
// stored behind tail after its consumer gave up is still discarded. Destroy
// always succeeds, also on a queue that was never created. No Push or Pop may
// run concurrently with Destroy.
func (q *RingQueue[T]) Destroy() error {
	if q.state.Load() == stateCreated {
		q.sweep()
	}

	q.state.Store(stateUncreated)
	q.slots = nil
	q.capacity = 0
	q.head.Store(0)
	q.tail.Store(0)
	q.count.Store(0)
	return nil
}

// sweep empties every present slot exactly once.
func (q *RingQueue[T]) sweep() {
	tail := q.tail.Load()
	for i := uint64(0); i < q.capacity; i++ {
		s := &q.slots[(tail+i)%q.capacity]
		turn := s.turn.Load()
		if turn&1 == 0 {
			continue
		}
		if q.discard == nil {
			s.load(turn/2, nil)
			continue
		}
		var v T
		s.load(turn/2, &v)
		q.discard(v)
	}
}

// IsCreated reports whether Create succeeded and Destroy has not run since.
func (q *RingQueue[T]) IsCreated() bool {
	return q.state.Load() == stateCreated
}

// Capacity returns the number of slots, including the sentinel slot.
// It is 0 while the queue is not created.
func (q *RingQueue[T]) Capacity() uint32 {
	if !q.IsCreated() {
		return 0
	}
	return uint32(q.capacity)
}

// Count returns an approximate number of queued values.
//
// The counter is updated outside the reservation CAS: it grows once a push
// has reserved its slot but before the value is stored, and shrinks once a
// pop has reserved but before the value is taken. Use it as a hint ("probably
// non-empty, worth polling"), never for correctness decisions.
func (q *RingQueue[T]) Count() uint32 {
	n := q.count.Load()
	if n < 0 {
		return 0
	}
	return uint32(n)
}

// Push appends v. It returns ErrFull without blocking when the ring is full
// and ErrInvalidCall when the queue is not created.
//
// Once a slot has been reserved Push waits, using the configured strategy,
// for the previous lap's consumer to release it.
func (q *RingQueue[T]) Push(v T) error {
	return q.PushContext(context.Background(), v)
}

// PushContext is Push with a context that wait strategies may honor while
// waiting for the reserved slot.
func (q *RingQueue[T]) PushContext(ctx context.Context, v T) error {
	if !q.IsCreated() {
		return ErrInvalidCall
	}

	var pos uint64
	for {
		// tail first: head only grows, so pos >= tail holds below.
		tail := q.tail.Load()
		pos = q.head.Load()
		if pos-tail >= q.capacity-1 {
			return ErrFull
		}
		if q.head.CompareAndSwap(pos, pos+1) {
			break
		}
	}

	s := &q.slots[pos%q.capacity]
	lap := pos / q.capacity
	if err := s.waitUntilEmpty(ctx, lap, q.wait); err != nil {
		return err
	}
	q.count.Add(1)
	s.store(lap, v)
	return nil
}

// Pop removes the value at the front and copies it into out. out may be nil
// to discard the value. It returns ErrEmpty without blocking when nothing is
// queued and ErrInvalidCall when the queue is not created.
func (q *RingQueue[T]) Pop(out *T) error {
	return q.PopContext(context.Background(), out)
}

// PopContext is Pop with a context that wait strategies may honor while
// waiting for the reserved slot to be filled.
func (q *RingQueue[T]) PopContext(ctx context.Context, out *T) error {
	if !q.IsCreated() {
		return ErrInvalidCall
	}

	var pos uint64
	for {
		pos = q.tail.Load()
		if pos == q.head.Load() {
			return ErrEmpty
		}
		if q.tail.CompareAndSwap(pos, pos+1) {
			break
		}
	}

	s := &q.slots[pos%q.capacity]
	lap := pos / q.capacity
	if err := s.waitUntilPresent(ctx, lap, q.wait); err != nil {
		return err
	}
	q.count.Add(-1)
	s.load(lap, out)
	return nil
}

// noCopy lets go vet's copylocks check flag copies of a RingQueue.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}
