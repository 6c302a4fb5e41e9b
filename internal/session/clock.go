package session

import "time"

// Clock abstracts wall time so the timer logic is testable without sleeping.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// SystemClock is the default clock.
var SystemClock Clock = realClock{}
