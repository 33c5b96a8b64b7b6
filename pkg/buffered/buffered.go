// Package buffered is the channel baseline the ring queue is benchmarked
// against. It follows the same non-blocking Push/Pop contract.
package buffered

import "github.com/i5heu/GoRingQueue/pkg/ringqueue"

type Queue[T any] struct {
	ch chan T
}

func New[T any](bufferSize uint32) *Queue[T] {
	// Enforce minimum capacity of 1 to ensure proper bounded buffer semantics.
	// A zero-capacity Go channel is an unbuffered synchronization primitive,
	// not a zero-capacity buffer, which would cause unexpected behavior.
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Queue[T]{
		ch: make(chan T, bufferSize),
	}
}

func (q *Queue[T]) Push(val T) error {
	select {
	case q.ch <- val:
		return nil
	default:
		return ringqueue.ErrFull
	}
}

func (q *Queue[T]) Pop(out *T) error {
	select {
	case val := <-q.ch:
		if out != nil {
			*out = val
		}
		return nil
	default:
		return ringqueue.ErrEmpty
	}
}

func (q *Queue[T]) Count() uint32 {
	return uint32(len(q.ch))
}

func (q *Queue[T]) Capacity() uint32 {
	return uint32(cap(q.ch))
}
