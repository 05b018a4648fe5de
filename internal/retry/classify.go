// Package retry bounds re-execution of record processing and classifies
// failures as retryable or fatal.
package retry

import (
	"errors"

	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/pipeline"
)

// Class is the retry classification of a processing failure.
type Class int

const (
	// Fatal failures stop retrying immediately.
	Fatal Class = iota
	// Retryable failures are attempted again after a backoff.
	Retryable
)

func (c Class) String() string {
	if c == Retryable {
		return "retryable"
	}
	return "fatal"
}

// transient is implemented by errors that know they may succeed later.
type transient interface {
	Transient() bool
}

// Classify maps err to a retry class. Validation and decode failures are
// fatal even when they wrap a transient cause. Unknown errors are fatal.
func Classify(err error) Class {
	if err == nil {
		return Fatal
	}

	var ve *pipeline.ValidationError
	if errors.As(err, &ve) {
		return Fatal
	}
	var de *pipeline.DecodeError
	if errors.As(err, &de) {
		return Fatal
	}

	var re *pipeline.RecoverableError
	if errors.As(err, &re) {
		return Retryable
	}
	var t transient
	if errors.As(err, &t) && t.Transient() {
		return Retryable
	}

	return Fatal
}

// Kind names the failure for logs and metric labels.
func Kind(err error) string {
	var (
		ve *pipeline.ValidationError
		de *pipeline.DecodeError
		re *pipeline.RecoverableError
		pe *pipeline.ProcessError
	)
	switch {
	case err == nil:
		return "none"
	case errors.As(err, &ve):
		return "validation"
	case errors.As(err, &de):
		return "decode"
	case errors.As(err, &re):
		return "recoverable"
	case errors.As(err, &pe):
		return "process"
	default:
		return "unknown"
	}
}
