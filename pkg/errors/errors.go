// Package errors provides the error taxonomy and structured error reporting
// for the reactor runtime.
//
// Store and task operations return errors that match one of the sentinel
// values through [Is]:
//
//	err := entity.Update(sess, ref, fn)
//	if errors.Is(err, errors.ErrNotFound) {
//	    // the entity was destroyed
//	}
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// Kind identifies the category of an error.
type Kind int

const (
	// KindUnknown indicates an error of unknown type.
	KindUnknown Kind = iota
	// KindNotFound indicates a stale reference to a destroyed entity.
	KindNotFound
	// KindReentrantAccess indicates an attempted aliasing violation.
	KindReentrantAccess
	// KindCancelled indicates a task observed its cancellation.
	KindCancelled
	// KindTaskFailed indicates a task body returned an error or panicked.
	KindTaskFailed
	// KindRender indicates a render function failed during a pass.
	KindRender
	// KindPanic indicates a recovered panic.
	KindPanic
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindReentrantAccess:
		return "reentrant access"
	case KindCancelled:
		return "cancelled"
	case KindTaskFailed:
		return "task failed"
	case KindRender:
		return "render"
	case KindPanic:
		return "panic"
	default:
		return "unknown"
	}
}

// Sentinel errors. Any *Error of the matching Kind satisfies Is.
var (
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrReentrantAccess = &Error{Kind: KindReentrantAccess}
	ErrCancelled       = &Error{Kind: KindCancelled}
	ErrTaskFailed      = &Error{Kind: KindTaskFailed}
)

// Error is a structured runtime error.
type Error struct {
	// Op is the operation that failed (e.g., "entity.Update").
	Op string
	// Kind categorizes the error.
	Kind Kind
	// Entity is the entity the operation targeted, if any.
	Entity fmt.Stringer
	// Err is the underlying error.
	Err error
	// Timestamp is when the error was reported.
	Timestamp time.Time
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = fmt.Sprintf("%s [%s]", e.Op, e.Kind)
	}
	if e.Entity != nil {
		msg += " entity=" + e.Entity.String()
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same Kind. A target with
// an Op only matches errors with that Op.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Op == "" || t.Op == e.Op
}

// New returns an *Error of the given kind.
func New(op string, kind Kind, entity fmt.Stringer, err error) *Error {
	return &Error{Op: op, Kind: kind, Entity: entity, Err: err}
}

// NotFound returns a KindNotFound error for op and entity.
func NotFound(op string, entity fmt.Stringer) *Error {
	return &Error{Op: op, Kind: KindNotFound, Entity: entity}
}

// Reentrant returns a KindReentrantAccess error for op and entity.
func Reentrant(op string, entity fmt.Stringer, reason string) *Error {
	return &Error{Op: op, Kind: KindReentrantAccess, Entity: entity, Err: stderrors.New(reason)}
}

// KindOf returns the Kind of the first *Error in err's chain, or
// KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is forwards to the standard library errors.Is.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As forwards to the standard library errors.As.
func As(err error, target any) bool { return stderrors.As(err, target) }

// Join forwards to the standard library errors.Join.
func Join(errs ...error) error { return stderrors.Join(errs...) }

// PanicError represents a recovered panic.
type PanicError struct {
	// Op is the operation that panicked (e.g., "task.run").
	Op string
	// Value is the value passed to panic().
	Value any
	// StackTrace contains the call stack at the time of the panic.
	StackTrace string
	// Timestamp is when the panic occurred.
	Timestamp time.Time
}

func (e *PanicError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("panic in %s: %v", e.Op, e.Value)
	}
	return fmt.Sprintf("panic: %v", e.Value)
}

// RenderError represents a render function failure that aborted a pass.
type RenderError struct {
	// View is the payload type name of the view that failed.
	View string
	// Entity is the entity being rendered.
	Entity fmt.Stringer
	// Pass is the render pass number.
	Pass uint64
	// Recovered is the panic value (nil for regular errors).
	Recovered any
	// Err is the underlying error (nil for panics).
	Err error
	// StackTrace contains the call stack at the time of the error.
	StackTrace string
	// Timestamp is when the error occurred.
	Timestamp time.Time
}

func (e *RenderError) Error() string {
	if e.Recovered != nil {
		return fmt.Sprintf("panic in %s.Render(): %v", e.View, e.Recovered)
	}
	if e.Err != nil {
		return fmt.Sprintf("error in %s.Render(): %v", e.View, e.Err)
	}
	return fmt.Sprintf("unknown error in %s.Render()", e.View)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// Is matches any *Error of KindRender.
func (e *RenderError) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == KindRender && t.Op == ""
}

// Handler receives errors reported by the runtime.
type Handler interface {
	// HandleError is called when an error is reported.
	HandleError(err *Error)
	// HandlePanic is called when a panic is recovered.
	HandlePanic(err *PanicError)
	// HandleRenderError is called when a render pass is aborted.
	HandleRenderError(err *RenderError)
}
