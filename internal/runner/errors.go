package runner

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"runtime/debug"
	"strings"
)

// PanicError is a panic recovered from an agent run.
type PanicError struct {
	Value any
	Stack []byte
}

func newPanicError(v any) *PanicError {
	return &PanicError{Value: v, Stack: debug.Stack()}
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

func (e *PanicError) Kind() string { return "PanicError" }

func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

type kinder interface {
	Kind() string
}

// PlainErrorKind is the kind of errors built only from errors.New and
// fmt.Errorf.
const PlainErrorKind = "Error"

// ErrorKind names the kind of err for use as an exit status. The first error
// in the chain with a Kind method decides; then context cancellation; then the
// type name of the first error that is not a plain errors.New or fmt.Errorf
// value. Chains of plain errors are PlainErrorKind.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}

	chain := unwrapChain(err)
	for _, e := range chain {
		if k, ok := e.(kinder); ok {
			return k.Kind()
		}
	}

	switch {
	case errors.Is(err, context.Canceled):
		return "Canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "DeadlineExceeded"
	}

	for _, e := range chain {
		t := indirect(reflect.TypeOf(e))
		if pkg := t.PkgPath(); pkg != "errors" && pkg != "fmt" && t.Name() != "" {
			return t.Name()
		}
	}
	return PlainErrorKind
}

// Traceback renders err for the trajectory: its kind and message, the
// message of each wrapped error, and a goroutine stack. Panics carry the
// stack of the panicking goroutine.
func Traceback(err error) string {
	if err == nil {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", ErrorKind(err), err.Error())
	for _, e := range unwrapChain(err)[1:] {
		fmt.Fprintf(&b, "caused by: %s\n", e.Error())
	}

	stack := debug.Stack()
	var p *PanicError
	if errors.As(err, &p) {
		stack = p.Stack
	}
	b.WriteString("\n")
	b.Write(stack)
	return b.String()
}

// unwrapChain flattens err depth-first, following both Unwrap() error and
// Unwrap() []error.
func unwrapChain(err error) []error {
	var chain []error
	var walk func(error)
	walk = func(e error) {
		if e == nil {
			return
		}
		chain = append(chain, e)
		switch u := e.(type) {
		case interface{ Unwrap() error }:
			walk(u.Unwrap())
		case interface{ Unwrap() []error }:
			for _, inner := range u.Unwrap() {
				walk(inner)
			}
		}
	}
	walk(err)
	return chain
}

func indirect(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}
