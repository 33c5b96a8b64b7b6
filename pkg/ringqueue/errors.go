package ringqueue

import (
	"errors"
	"fmt"
)

// Result is the numeric outcome of a queue operation.
type Result int32

const (
	Success         Result = 0
	Fail            Result = -1
	InvalidArgument Result = -2
	InvalidCall     Result = -3
)

func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case Fail:
		return "fail"
	case InvalidArgument:
		return "invalid argument"
	case InvalidCall:
		return "invalid call"
	default:
		return fmt.Sprintf("result(%d)", int32(r))
	}
}

var (
	// ErrFail is the transient "cannot proceed right now" condition.
	// Callers should back off and retry; it is not a malfunction.
	ErrFail = errors.New("ringqueue: operation failed")

	// ErrFull is returned by Push when only the sentinel slot is left.
	ErrFull = fmt.Errorf("%w: queue is full", ErrFail)

	// ErrEmpty is returned by Pop when nothing has been reserved for reading.
	ErrEmpty = fmt.Errorf("%w: queue is empty", ErrFail)

	// ErrStalled is returned when a wait strategy gives up on a slot hand-off
	// after the reservation was already won. The slot stays reserved, so the
	// queue should be destroyed once the caller has drained what it can.
	// A value the other side stores into that slot later is still handed to
	// Config.Discard by Destroy.
	ErrStalled = fmt.Errorf("%w: slot hand-off stalled", ErrFail)

	ErrInvalidArgument = errors.New("ringqueue: invalid argument")
	ErrInvalidCall     = errors.New("ringqueue: invalid call")
)

// ResultOf maps an error returned by this package to its Result code.
// Errors from elsewhere are reported as Fail.
func ResultOf(err error) Result {
	switch {
	case err == nil:
		return Success
	case errors.Is(err, ErrInvalidCall):
		return InvalidCall
	case errors.Is(err, ErrInvalidArgument):
		return InvalidArgument
	default:
		return Fail
	}
}
