// Package pipeline implements record processing stages: decode -> validate -> process.
package pipeline

import "errors"

// Common pipeline errors.
var (
	// ErrContextCanceled indicates the caller's context was canceled.
	// Stages may return this error directly (or wrapped) when ctx.Done() is signaled.
	ErrContextCanceled = errors.New("context canceled")
)

// DecodeError represents a failure in the decode stage.
// It wraps the underlying decoder/unmarshal error.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	if e == nil || e.Err == nil {
		return "decode failed"
	}
	return "decode failed: " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error { return e.Err }

// ValidationError represents a business rule violation.
// Field is the name of the invalid field; Reason describes why.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	errMsg := "validation failed"
	if e != nil && e.Field != "" {
		errMsg += ": " + e.Field
	}
	if e != nil && e.Reason != "" {
		errMsg += ": " + e.Reason
	}
	return errMsg
}

// RecoverableError marks a failure that may succeed if the same record is
// processed again.
type RecoverableError struct {
	Err error
}

func (e *RecoverableError) Error() string {
	if e == nil || e.Err == nil {
		return "recoverable failure"
	}
	return "recoverable failure: " + e.Err.Error()
}

func (e *RecoverableError) Unwrap() error { return e.Err }

// Transient reports that the failure is worth retrying.
func (e *RecoverableError) Transient() bool { return true }

// ProcessError represents a failure in the process stage.
// It wraps the underlying processing error.
type ProcessError struct {
	Err error
}

func (e *ProcessError) Error() string {
	if e == nil || e.Err == nil {
		return "process failed"
	}
	return "process failed: " + e.Err.Error()
}

func (e *ProcessError) Unwrap() error { return e.Err }
