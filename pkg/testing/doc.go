// Package testing provides a deterministic harness for reactor views and
// tasks.
//
// # Quick Start
//
// Create a tester, mount a root view, and make assertions:
//
//	func TestCounter(t *testing.T) {
//	    tester := reactortest.NewTesterWithT(t)
//	    counter, _, err := reactortest.Mount(tester, Counter{})
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//
//	    tester.Update(func(cx *core.Context) {
//	        core.Update(cx, counter, func(c *Counter, cx *core.Context) error {
//	            c.Count++
//	            cx.NotifySelf()
//	            return nil
//	        })
//	    })
//	    tester.Pump()
//
//	    if !tester.Find(reactortest.ByText("1")).Exists() {
//	        t.Error("expected count 1 on screen")
//	    }
//	}
//
// # Snapshot Testing
//
// Capture and compare window trees as YAML golden files:
//
//	tester.CaptureSnapshot().MatchesFile(t, "testdata/counter.snapshot.yaml")
//
// Update snapshots with:
//
//	REACTOR_UPDATE_SNAPSHOTS=1 go test ./...
//
// # Task Timing
//
// Task timers run on a fake clock:
//
//	tester.Clock().WaitForTimers(1, time.Second)
//	tester.Clock().Advance(5 * time.Second)
//	tester.PumpAndSettle(time.Second)
//
// # Import Alias
//
// Since this package has the same name as the standard library testing
// package, import it with an alias:
//
//	import reactortest "github.com/go-drift/reactor/pkg/testing"
package testing
