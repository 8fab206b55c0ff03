package testing

import (
	"testing"
	"time"

	"github.com/go-drift/reactor/pkg/core"
	"github.com/go-drift/reactor/pkg/view"
)

func TestMount_RendersRoot(t *testing.T) {
	tester := NewTesterWithT(t)
	_, w, err := Mount(tester, Counter{Label: "clicks"})
	if err != nil {
		t.Fatal(err)
	}
	if w == nil || w.Title() != "test" {
		t.Fatalf("window = %v", w)
	}
	frames := tester.Recorder().Frames()
	if len(frames) != 1 || frames[0].Pass != 1 {
		t.Fatalf("frames = %+v, want one frame from pass 1", frames)
	}
	if got := TextOf(tester.Screen()); got != "clicks0" {
		t.Errorf("screen text = %q, want %q", got, "clicks0")
	}
}

func TestMount_RejectsNonView(t *testing.T) {
	tester := NewTesterWithT(t)
	if _, _, err := Mount(tester, struct{ N int }{}); err == nil {
		t.Error("expected error mounting a payload without Render")
	}
}

func TestUpdate_RendersOnNextPump(t *testing.T) {
	tester := NewTesterWithT(t)
	ref, _, err := Mount(tester, Counter{Label: "n"})
	if err != nil {
		t.Fatal(err)
	}
	tester.Recorder().Reset()

	tester.Update(increment(ref))
	tester.Update(increment(ref))
	if len(tester.Recorder().Frames()) != 0 {
		t.Fatal("update rendered synchronously")
	}

	rep, err := tester.Pump()
	if err != nil {
		t.Fatal(err)
	}
	if rep.Passes != 1 {
		t.Errorf("Passes = %d, want 1", rep.Passes)
	}
	if !tester.Find(ByText("2")).Exists() {
		t.Errorf("screen = %s", tester.Screen())
	}
}

func TestDispatch_RunsOnPump(t *testing.T) {
	tester := NewTesterWithT(t)
	ref, _, err := Mount(tester, Counter{Label: "n"})
	if err != nil {
		t.Fatal(err)
	}
	tester.Dispatch(increment(ref))
	if _, err := tester.Pump(); err != nil {
		t.Fatal(err)
	}
	if got := tester.Find(ByTag("counter")).Text(); got != "n1" {
		t.Errorf("counter text = %q, want %q", got, "n1")
	}
}

func TestPumpAndSettle_TaskOnFakeClock(t *testing.T) {
	tester := NewTesterWithT(t)
	ref, _, err := Mount(tester, Counter{Label: "tick"})
	if err != nil {
		t.Fatal(err)
	}

	tester.Update(func(cx *core.Context) {
		core.Spawn(cx, func(acx *core.AsyncContext) (struct{}, error) {
			for {
				if err := acx.Sleep(time.Second); err != nil {
					return struct{}{}, err
				}
				if err := core.Update(acx, ref, func(c *Counter, cx *core.Context) error {
					c.Count++
					cx.NotifySelf()
					return nil
				}); err != nil {
					return struct{}{}, err
				}
			}
		}).Detach()
	})
	if err := tester.PumpAndSettle(2 * time.Second); err != nil {
		t.Fatal(err)
	}

	for want := 1; want <= 2; want++ {
		if !tester.Clock().WaitForTimers(1, 2*time.Second) {
			t.Fatal("task is not sleeping")
		}
		tester.Clock().Advance(time.Second)
		if !tester.Clock().WaitForTimers(1, 2*time.Second) {
			t.Fatal("task did not sleep again")
		}
		if err := tester.PumpAndSettle(2 * time.Second); err != nil {
			t.Fatal(err)
		}
		if got := tester.Find(ByKey("tick")).Text(); got != "tick"+string(rune('0'+want)) {
			t.Errorf("after %d ticks text = %q", want, got)
		}
	}
}

func TestPumpAndSettle_TimesOut(t *testing.T) {
	tester := NewTesterWithT(t)
	if _, _, err := Mount(tester, Echo{}); err != nil {
		t.Fatal(err)
	}
	if err := tester.PumpAndSettle(20 * time.Millisecond); err != ErrSettleTimeout {
		t.Errorf("err = %v, want ErrSettleTimeout", err)
	}
}

// Echo notifies itself on every render and never settles.
type Echo struct{}

func (*Echo) Render(cx *core.Context) view.Node {
	cx.NotifySelf()
	return view.Text("echo")
}
