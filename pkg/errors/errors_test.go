package errors

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
)

type testID string

func (id testID) String() string { return string(id) }

func TestErrorString(t *testing.T) {
	err := &Error{
		Op:     "entity.Update",
		Kind:   KindNotFound,
		Entity: testID("3v2"),
	}
	want := "entity.Update [not found] entity=3v2"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestErrorStringWrapped(t *testing.T) {
	err := Reentrant("entity.Update", testID("1v1"), "entity is already leased")
	got := err.Error()
	if !strings.Contains(got, "reentrant access") {
		t.Errorf("error string %q should contain kind", got)
	}
	if !strings.HasSuffix(got, ": entity is already leased") {
		t.Errorf("error string %q should end with the reason", got)
	}
}

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindUnknown, "unknown"},
		{KindNotFound, "not found"},
		{KindReentrantAccess, "reentrant access"},
		{KindCancelled, "cancelled"},
		{KindTaskFailed, "task failed"},
		{KindRender, "render"},
		{KindPanic, "panic"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestIsMatchesByKind(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"not found", NotFound("entity.Read", nil), ErrNotFound, true},
		{"wrapped", fmt.Errorf("loading: %w", NotFound("entity.Read", nil)), ErrNotFound, true},
		{"different kind", NotFound("entity.Read", nil), ErrReentrantAccess, false},
		{"op filter match", NotFound("entity.Read", nil), &Error{Op: "entity.Read", Kind: KindNotFound}, true},
		{"op filter mismatch", NotFound("entity.Read", nil), &Error{Op: "entity.Update", Kind: KindNotFound}, false},
		{"cancelled wraps cause", New("task.Timeout", KindCancelled, nil, context.DeadlineExceeded), context.DeadlineExceeded, true},
		{"render error", &RenderError{View: "*app.Counter"}, &Error{Kind: KindRender}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.target); got != tt.want {
				t.Errorf("Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.want)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	if got := KindOf(fmt.Errorf("x: %w", ErrCancelled)); got != KindCancelled {
		t.Errorf("KindOf = %v, want cancelled", got)
	}
	if got := KindOf(context.Canceled); got != KindUnknown {
		t.Errorf("KindOf(plain) = %v, want unknown", got)
	}
}

func TestPanicErrorString(t *testing.T) {
	err := &PanicError{
		Value:     "test panic",
		Timestamp: time.Now(),
	}
	want := "panic: test panic"
	if got := err.Error(); got != want {
		t.Errorf("PanicError.Error() = %q, want %q", got, want)
	}

	err.Op = "task.run"
	want = "panic in task.run: test panic"
	if got := err.Error(); got != want {
		t.Errorf("PanicError.Error() = %q, want %q", got, want)
	}
}

func TestRenderErrorString(t *testing.T) {
	err := &RenderError{View: "*app.Counter", Recovered: "nil pointer dereference"}
	want := "panic in *app.Counter.Render(): nil pointer dereference"
	if got := err.Error(); got != want {
		t.Errorf("RenderError.Error() = %q, want %q", got, want)
	}

	err2 := &RenderError{View: "*app.Counter", Err: ErrNotFound}
	if got := err2.Error(); !strings.Contains(got, "error in *app.Counter.Render()") {
		t.Errorf("RenderError.Error() = %q, should contain 'error in'", got)
	}

	err3 := &RenderError{View: "*app.Counter"}
	want3 := "unknown error in *app.Counter.Render()"
	if got := err3.Error(); got != want3 {
		t.Errorf("RenderError.Error() = %q, want %q", got, want3)
	}
}

func TestReport(t *testing.T) {
	var captured *Error
	SetHandler(&testHandler{onError: func(err *Error) { captured = err }})
	defer SetHandler(nil)

	Report(&Error{Op: "test.op", Kind: KindTaskFailed})

	if captured == nil {
		t.Fatal("expected error to be captured")
	}
	if captured.Op != "test.op" {
		t.Errorf("Op = %q, want %q", captured.Op, "test.op")
	}
	if captured.Timestamp.IsZero() {
		t.Error("expected Timestamp to be set")
	}
}

func TestReportRenderError(t *testing.T) {
	var captured *RenderError
	SetHandler(&testHandler{onRender: func(err *RenderError) { captured = err }})
	defer SetHandler(nil)

	ReportRenderError(&RenderError{View: "*app.Root", Recovered: "boom"})

	if captured == nil {
		t.Fatal("expected render error to be captured")
	}
	if captured.Timestamp.IsZero() {
		t.Error("expected Timestamp to be set")
	}
}

func TestRecover(t *testing.T) {
	var captured *PanicError
	SetHandler(&testHandler{onPanic: func(err *PanicError) { captured = err }})
	defer SetHandler(nil)

	func() {
		defer Recover("test.recover")
		panic("intentional test panic")
	}()

	if captured == nil {
		t.Fatal("expected panic to be recovered and captured")
	}
	if captured.Value != "intentional test panic" {
		t.Errorf("Value = %v, want %q", captured.Value, "intentional test panic")
	}
	if captured.Op != "test.recover" {
		t.Errorf("Op = %q, want %q", captured.Op, "test.recover")
	}
}

func TestCaptureStack(t *testing.T) {
	stack := CaptureStack()
	if stack == "" {
		t.Fatal("expected non-empty stack trace")
	}
	if !strings.Contains(stack, "testing") && !strings.Contains(stack, "runtime") {
		t.Errorf("stack trace should contain testing or runtime frames, got: %s", stack)
	}
}

func TestSetHandlerNil(t *testing.T) {
	SetHandler(nil)
	if _, ok := getHandler().(*LogHandler); !ok {
		t.Errorf("SetHandler(nil) should set LogHandler, got %T", getHandler())
	}
}

type testHandler struct {
	onError  func(*Error)
	onPanic  func(*PanicError)
	onRender func(*RenderError)
}

func (h *testHandler) HandleError(err *Error) {
	if h.onError != nil {
		h.onError(err)
	}
}

func (h *testHandler) HandlePanic(err *PanicError) {
	if h.onPanic != nil {
		h.onPanic(err)
	}
}

func (h *testHandler) HandleRenderError(err *RenderError) {
	if h.onRender != nil {
		h.onRender(err)
	}
}
