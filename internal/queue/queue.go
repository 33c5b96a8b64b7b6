package queue

// QueueValidationInterface is the method set the testbench drives. It is used
// as a type constraint by the harness and as a plain interface by cmd/bench.
type QueueValidationInterface[T any] interface {
	// Push adds an element without blocking.
	// It returns an error wrapping ringqueue.ErrFail when the queue is full.
	Push(T) error

	// Pop removes the oldest element and copies it into out (which may be nil).
	// It returns an error wrapping ringqueue.ErrFail when the queue is empty.
	Pop(out *T) error

	// Count returns how many elements are currently queued (may be approximate).
	Count() uint32

	// Capacity returns the number of slots backing the queue.
	Capacity() uint32
}
