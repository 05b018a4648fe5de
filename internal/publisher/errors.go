package publisher

import (
	"errors"
	"time"
)

var (
	// ErrPublisherClosed is returned for sends issued after Close.
	ErrPublisherClosed = errors.New("publisher closed")
	// ErrPublishInterrupted is returned when the caller's context ends while
	// waiting for a synchronous send.
	ErrPublishInterrupted = errors.New("publish interrupted")
)

// PublishTimeoutError is returned when a synchronous send is not
// acknowledged within the configured timeout.
type PublishTimeoutError struct {
	Timeout time.Duration
}

func (e *PublishTimeoutError) Error() string {
	return "publish not acknowledged within " + e.Timeout.String()
}

// PublishFailure wraps a broker-side or transport send failure.
type PublishFailure struct {
	Err error
}

func (e *PublishFailure) Error() string {
	if e == nil || e.Err == nil {
		return "publish failed"
	}
	return "publish failed: " + e.Err.Error()
}

func (e *PublishFailure) Unwrap() error { return e.Err }
