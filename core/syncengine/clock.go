package syncengine

import "time"

type (
	// Timer is the cancellable handle of a scheduled debounce callback.
	Timer interface {
		Stop() bool
	}

	// Clock abstracts timer scheduling so the debounce behaviour can be
	// unit-tested with a fake clock.
	Clock interface {
		Now() time.Time
		AfterFunc(d time.Duration, f func()) Timer
	}
)

type realClock struct{}

// NewClock returns the wall clock.
func NewClock() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
