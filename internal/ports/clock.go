package ports

import "time"

type Clock interface {
	Now() time.Time
	// After sends the current time once d has elapsed.
	After(d time.Duration) <-chan time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
