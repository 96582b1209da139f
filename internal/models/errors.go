package models

import "fmt"

// ExitStatus identifies how an agent run ended. Agents may report other
// values; runs that fail with an error use the error's kind name.
type ExitStatus string

const (
	// Agent finished on its own
	ExitSubmitted      ExitStatus = "Submitted"
	ExitLimitsExceeded ExitStatus = "LimitsExceeded"

	// Recoverable step failures, reported back to the model
	ExitFormatError      ExitStatus = "FormatError"
	ExitExecutionTimeout ExitStatus = "ExecutionTimeoutError"

	// Interactive
	ExitUserRejection    ExitStatus = "UserRejection"
	ExitUserInterruption ExitStatus = "UserInterruption"
)

// KindError is a sentinel error with a stable kind name, recorded as the exit
// status of a run that fails with it.
type KindError struct {
	kind string
	msg  string
}

// NewKindError creates a sentinel error named kind.
func NewKindError(kind, msg string) *KindError {
	return &KindError{kind: kind, msg: msg}
}

func (e *KindError) Error() string { return e.msg }
func (e *KindError) Kind() string  { return e.kind }

// ErrTimeout is matched by errors returned from Environment.Execute when a
// command exceeds its time budget.
var ErrTimeout error = NewKindError("TimeoutError", "command timed out")

// TimeoutError reports a command that timed out, along with whatever output
// it produced before being killed.
type TimeoutError struct {
	Command string
	Output  string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("command timed out: %s", e.Command)
}

func (e *TimeoutError) Kind() string { return "TimeoutError" }

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}
