package errors

import (
	"fmt"
	"runtime"
	"strings"
	"sync/atomic"
	"time"
)

// handlerBox lets atomic.Pointer hold an interface value.
type handlerBox struct{ h Handler }

var current atomic.Pointer[handlerBox]

func init() { current.Store(&handlerBox{h: &LogHandler{}}) }

// SetHandler installs the process-wide handler that Report, ReportPanic
// and ReportRenderError deliver to. Nil restores a LogHandler on
// slog.Default().
func SetHandler(h Handler) {
	if h == nil {
		h = &LogHandler{}
	}
	current.Store(&handlerBox{h: h})
}

func getHandler() Handler { return current.Load().h }

// Report delivers err to the installed handler, stamping it if needed.
func Report(err *Error) {
	if err == nil {
		return
	}
	stamp(&err.Timestamp)
	getHandler().HandleError(err)
}

// ReportPanic delivers a recovered panic to the installed handler.
func ReportPanic(err *PanicError) {
	if err == nil {
		return
	}
	stamp(&err.Timestamp)
	getHandler().HandlePanic(err)
}

// ReportRenderError delivers a failed render to the installed handler.
func ReportRenderError(err *RenderError) {
	if err == nil {
		return
	}
	stamp(&err.Timestamp)
	getHandler().HandleRenderError(err)
}

func stamp(ts *time.Time) {
	if ts.IsZero() {
		*ts = time.Now()
	}
}

// Recover reports a panic in progress as a PanicError tagged with op.
// It must be deferred directly:
//
//	defer errors.Recover("engine.tick")
func Recover(op string) {
	if r := recover(); r != nil {
		reportRecovered(op, r)
	}
}

// RecoverWithCallback is Recover followed by onPanic(r), so the caller
// can turn the panic into a return value.
func RecoverWithCallback(op string, onPanic func(r any)) {
	r := recover()
	if r == nil {
		return
	}
	reportRecovered(op, r)
	if onPanic != nil {
		onPanic(r)
	}
}

func reportRecovered(op string, r any) {
	ReportPanic(&PanicError{
		Op:         op,
		Value:      r,
		StackTrace: stackFrom(4),
		Timestamp:  time.Now(),
	})
}

// CaptureStack formats the caller's goroutine stack, one function per
// entry with its file:line indented below.
func CaptureStack() string { return stackFrom(3) }

func stackFrom(skip int) string {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip, pcs)
	if n == 0 {
		return ""
	}
	var b strings.Builder
	frames := runtime.CallersFrames(pcs[:n])
	for more := true; more; {
		var f runtime.Frame
		f, more = frames.Next()
		fmt.Fprintf(&b, "%s\n\t%s:%d\n", f.Function, f.File, f.Line)
	}
	return b.String()
}
