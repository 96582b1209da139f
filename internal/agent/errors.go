package agent

import "github.com/spachava753/coderun/internal/models"

// NonTerminatingError is reported back to the model as a user message and the
// run continues.
type NonTerminatingError struct {
	Status  models.ExitStatus
	Message string
}

func (e *NonTerminatingError) Error() string { return e.Message }

// Kind returns the status name of the error.
func (e *NonTerminatingError) Kind() string { return string(e.Status) }

// TerminatingError ends the run. Its status and message become the run's
// exit status and result.
type TerminatingError struct {
	Status  models.ExitStatus
	Message string
}

func (e *TerminatingError) Error() string { return e.Message }

// Kind returns the status name of the error.
func (e *TerminatingError) Kind() string { return string(e.Status) }

func formatError(msg string) error {
	return &NonTerminatingError{Status: models.ExitFormatError, Message: msg}
}

func executionTimeout(msg string) error {
	return &NonTerminatingError{Status: models.ExitExecutionTimeout, Message: msg}
}

func submitted(output string) error {
	return &TerminatingError{Status: models.ExitSubmitted, Message: output}
}

func limitsExceeded() error {
	return &TerminatingError{Status: models.ExitLimitsExceeded}
}
