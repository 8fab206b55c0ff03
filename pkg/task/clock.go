package task

import "time"

// Clock provides time for task timers. The default implementation uses
// system time; tests can inject a fake clock with WithClock.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemClock returns the clock backed by the time package.
func SystemClock() Clock { return realClock{} }
