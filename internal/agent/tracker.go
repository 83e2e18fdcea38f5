package agent

import (
	"sync/atomic"
	"time"
)

// State is what an external supervisor can observe about a live invocation.
type State int32

const (
	// StateStarting means no output has been decoded yet. Staying here for
	// long is a startup hang.
	StateStarting State = iota
	// StateEngaged means output has been seen but the invocation has not
	// finished. Staying here without progress is an analysis hang.
	StateEngaged
	// StateFinished means the process is gone and the result is assembled.
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateEngaged:
		return "engaged"
	case StateFinished:
		return "finished"
	}
	return "unknown"
}

// tracker records the time from launch to the first decoded output unit.
// It is written by the read loop and read from any goroutine.
type tracker struct {
	start time.Time
	first atomic.Int64 // nanoseconds since start; 0 = not yet seen
	state atomic.Int32
}

func newTracker(start time.Time) *tracker {
	return &tracker{start: start}
}

// mark records first output at now. It returns the elapsed time and true
// only on the first call.
func (t *tracker) mark(now time.Time) (time.Duration, bool) {
	elapsed := now.Sub(t.start)
	if elapsed <= 0 {
		elapsed = time.Nanosecond
	}
	if !t.first.CompareAndSwap(0, int64(elapsed)) {
		return 0, false
	}
	t.state.CompareAndSwap(int32(StateStarting), int32(StateEngaged))
	return elapsed, true
}

// firstOutput returns the recorded first-output delay, if any.
func (t *tracker) firstOutput() (time.Duration, bool) {
	n := t.first.Load()
	if n == 0 {
		return 0, false
	}
	return time.Duration(n), true
}

func (t *tracker) finish() {
	t.state.Store(int32(StateFinished))
}

func (t *tracker) current() State {
	return State(t.state.Load())
}
