// Package exception provides the engine's error taxonomy: BatchError
// carries a module name, a human message, the wrapped cause, and
// retryable/skippable flags so the scheduler loop and audit table updater
// can decide whether a failure is fatal without string-sniffing.
package exception

import "fmt"

// BatchError is the error type raised by every engine component.
type BatchError struct {
	Module      string
	Message     string
	OriginalErr error
	isRetryable bool
	isSkippable bool
}

// New creates a BatchError.
func New(module, message string, originalErr error, isRetryable, isSkippable bool) *BatchError {
	return &BatchError{
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		isRetryable: isRetryable,
		isSkippable: isSkippable,
	}
}

// Fatal creates a BatchError that is neither retryable nor skippable —
// the engine treats these as job-control errors (exit code 2).
func Fatal(module, message string, originalErr error) *BatchError {
	return New(module, message, originalErr, false, false)
}

func (e *BatchError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap lets errors.Is/errors.As traverse into OriginalErr.
func (e *BatchError) Unwrap() error { return e.OriginalErr }

// IsRetryable reports whether retrying the operation might succeed.
func (e *BatchError) IsRetryable() bool { return e.isRetryable }

// IsSkippable reports whether the failing item/unit can be skipped.
func (e *BatchError) IsSkippable() bool { return e.isSkippable }

// IsFatal reports whether the error is neither retryable nor skippable.
func (e *BatchError) IsFatal() bool { return !e.isRetryable && !e.isSkippable }

// AsBatchError extracts a *BatchError from err, if any.
func AsBatchError(err error) (*BatchError, bool) {
	be, ok := err.(*BatchError)
	return be, ok
}
