package pool

import (
	"context"
	"fmt"
	"reflect"
	"runtime"
	"runtime/debug"
	"strings"
)

// CallWrapped runs fn and converts anything that goes wrong into a
// *TaskError captured on the calling goroutine: returned errors keep the
// name and location of fn plus the current stack, panics keep the stack at
// the panic site. Errors that already are TaskErrors pass through as is.
//
// A returned error carries no stack of its own, so its trace names fn and
// the line fn starts on, followed by the stack at the point fn returned.
// It does not point at the line inside fn that produced the error; return
// a *TaskError built at the failure site when that line matters.
func CallWrapped[R any](ctx context.Context, fn func(context.Context) (R, error)) (result R, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero R
			result = zero
			err = panicError(r, debug.Stack())
		}
	}()

	result, err = fn(ctx)
	if err != nil {
		err = wrapReturned(err, fn)
	}
	return result, err
}

func wrapReturned(err error, fn any) error {
	if _, ok := AsTaskError(err); ok {
		return err
	}

	var b strings.Builder
	if name, file, line, ok := funcLocation(fn); ok {
		fmt.Fprintf(&b, "error returned by %s\n\t%s:%d\n", name, file, line)
	}
	b.Write(debug.Stack())

	return &TaskError{
		Kind:    fmt.Sprintf("%T", err),
		Message: err.Error(),
		Trace:   b.String(),
		Err:     err,
	}
}

func panicError(r any, stack []byte) *TaskError {
	te := &TaskError{
		Kind:    KindPanic,
		Message: fmt.Sprintf("panic: %v", r),
		Trace:   string(stack),
	}
	if err, ok := r.(error); ok {
		te.Err = err
	}
	return te
}

// crashError is delivered to the unit that was running when its worker
// died without returning.
func crashError(slot, incarnation int) *TaskError {
	return &TaskError{
		Kind:    "crash",
		Message: fmt.Sprintf("%v: slot %d incarnation %d exited while running the unit", ErrWorkerCrashed, slot, incarnation),
		Trace:   string(debug.Stack()),
		Err:     ErrWorkerCrashed,
	}
}

func funcLocation(fn any) (name, file string, line int, ok bool) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return "", "", 0, false
	}
	f := runtime.FuncForPC(v.Pointer())
	if f == nil {
		return "", "", 0, false
	}
	file, line = f.FileLine(f.Entry())
	return f.Name(), file, line, true
}
