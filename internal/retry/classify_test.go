package retry

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/pipeline"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/store"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	recoverable := &pipeline.RecoverableError{Err: errors.New("temporary network issue")}

	tests := []struct {
		name     string
		err      error
		want     Class
		wantKind string
	}{
		{name: "nil", err: nil, want: Fatal, wantKind: "none"},
		{name: "recoverable", err: recoverable, want: Retryable, wantKind: "recoverable"},
		{name: "wrapped_recoverable", err: fmt.Errorf("attempt: %w", recoverable), want: Retryable, wantKind: "recoverable"},
		{name: "validation", err: &pipeline.ValidationError{Field: "libraryEventId", Reason: "is required for UPDATE"}, want: Fatal, wantKind: "validation"},
		{name: "decode", err: &pipeline.DecodeError{Err: errors.New("bad json")}, want: Fatal, wantKind: "decode"},
		{name: "validation_wrapping_recoverable_is_fatal", err: fmt.Errorf("%w: %w", &pipeline.ValidationError{Field: "x"}, recoverable), want: Fatal, wantKind: "validation"},
		{name: "transient_storage", err: &pipeline.ProcessError{Err: &store.TransientError{Err: errors.New("conn reset")}}, want: Retryable, wantKind: "process"},
		{name: "plain_process_error", err: &pipeline.ProcessError{Err: errors.New("constraint violation")}, want: Fatal, wantKind: "process"},
		{name: "unknown", err: errors.New("boom"), want: Fatal, wantKind: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Classify(tt.err))
			assert.Equal(t, tt.wantKind, Kind(tt.err))
		})
	}
}

func TestClass_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "fatal", Fatal.String())
	assert.Equal(t, "retryable", Retryable.String())
}
