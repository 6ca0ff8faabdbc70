package auction

import "time"

// Clock supplies wall-clock time to the state machine. Timeout decisions
// are made against Now() at the moment of each operation, never against a
// scheduler.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the real wall clock.
func SystemClock() Clock { return systemClock{} }
