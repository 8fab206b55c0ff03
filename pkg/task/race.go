package task

import (
	"context"
	"time"

	"github.com/go-drift/reactor/pkg/errors"
)

// Race suspends until the first of hs finishes, cancels the others and
// returns the winner's index and result. If the calling task is cancelled
// first, every contender is cancelled and the index is -1.
func Race[V any](s *Scope, hs ...*Handle[V]) (int, V, error) {
	var zero V
	if len(hs) == 0 {
		return -1, zero, nil
	}

	winner := make(chan int, len(hs))
	stop := make(chan struct{})
	defer close(stop)
	for i, h := range hs {
		go func() {
			select {
			case <-h.t.done:
				winner <- i
			case <-stop:
			}
		}()
	}

	idx := -1
	err := s.suspend("task.Race", func(done <-chan struct{}) error {
		select {
		case idx = <-winner:
		case <-done:
		}
		return nil
	})
	for i, h := range hs {
		if i != idx {
			h.t.requestCancel(errRaceLost)
		}
	}
	if err != nil {
		return -1, zero, err
	}
	v, rerr := hs[idx].result()
	return idx, v, rerr
}

// Timeout runs fn as a task raced against a timer task of duration d. The
// loser is cancelled. When the timer wins, the returned handle's error
// matches errors.ErrCancelled and wraps context.DeadlineExceeded.
func Timeout[T any](r *Runner, d time.Duration, fn Func[T]) *Handle[T] {
	work := Spawn(r, fn)
	timer := Spawn(r, func(s *Scope) (T, error) {
		var zero T
		return zero, s.Sleep(d)
	})
	return Spawn(r, func(s *Scope) (T, error) {
		idx, v, err := Race(s, work, timer)
		if idx == 1 {
			var zero T
			return zero, errors.New("task.Timeout", errors.KindCancelled, nil, context.DeadlineExceeded)
		}
		return v, err
	})
}
