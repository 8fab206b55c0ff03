package testing

import (
	"testing"
	"time"

	"github.com/go-drift/reactor/pkg/task"
)

var _ task.Clock = (*FakeClock)(nil)

func TestFakeClock_Advance(t *testing.T) {
	clk := NewFakeClock()
	start := clk.Now()

	clk.Advance(100 * time.Millisecond)
	if got := clk.Now().Sub(start); got != 100*time.Millisecond {
		t.Errorf("elapsed = %v, want 100ms", got)
	}
}

func TestFakeClock_AfterFiresOnDeadline(t *testing.T) {
	clk := NewFakeClock()
	ch := clk.After(time.Second)
	if clk.Timers() != 1 {
		t.Fatalf("Timers() = %d, want 1", clk.Timers())
	}

	clk.Advance(999 * time.Millisecond)
	select {
	case <-ch:
		t.Fatal("timer fired early")
	default:
	}

	clk.Advance(time.Millisecond)
	select {
	case got := <-ch:
		if !got.Equal(clk.Now()) {
			t.Errorf("fired at %v, want %v", got, clk.Now())
		}
	default:
		t.Fatal("timer did not fire at its deadline")
	}
	if clk.Timers() != 0 {
		t.Errorf("Timers() = %d after firing, want 0", clk.Timers())
	}
}

func TestFakeClock_AfterNonPositive(t *testing.T) {
	clk := NewFakeClock()
	select {
	case <-clk.After(0):
	default:
		t.Fatal("After(0) did not fire immediately")
	}
}

func TestFakeClock_SetFiresTimers(t *testing.T) {
	clk := NewFakeClock()
	ch := clk.After(time.Hour)
	clk.Set(clk.Now().Add(2 * time.Hour))
	select {
	case <-ch:
	default:
		t.Fatal("Set past the deadline did not fire the timer")
	}
}

func TestFakeClock_DrivesTaskSleep(t *testing.T) {
	clk := NewFakeClock()
	r := task.NewRunner(task.WithClock(clk))
	defer r.Shutdown(t.Context())

	h := task.Spawn(r, func(s *task.Scope) (string, error) {
		if err := s.Sleep(time.Minute); err != nil {
			return "", err
		}
		return "woke", nil
	})
	r.StartPending()

	if !clk.WaitForTimers(1, 2*time.Second) {
		t.Fatal("task never slept")
	}
	clk.Advance(time.Minute)

	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("task did not wake after Advance")
	}
	if v, err, ok := h.Result(); !ok || err != nil || v != "woke" {
		t.Errorf("Result() = %q, %v, %v", v, err, ok)
	}
}
