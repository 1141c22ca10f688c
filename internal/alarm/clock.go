package alarm

import "time"

// Clock abstracts time so the state machine's delay behaviour is testable
// without real waiting.
type Clock interface {
	Now() time.Time

	// AfterFunc schedules f to run after d on its own goroutine and
	// returns a handle that can cancel it. Cancelling an already-fired
	// timer is a harmless no-op.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancelable scheduled callback.
type Timer interface {
	// Stop cancels the callback. Reports false when it already fired
	// or was stopped; callers don't usually care.
	Stop() bool
}

// realClock is the production Clock backed by the time package.
type realClock struct{}

// NewClock returns the real time-backed Clock.
func NewClock() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
