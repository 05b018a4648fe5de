package pipeline

import (
	"context"
	"strings"

	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/types"
)

// Validate checks the business rules that can be decided without storage.
// It returns a typed *ValidationError for validation failures.
func Validate(ctx context.Context, ev *types.LibraryEvent) error {
	if err := ctx.Err(); err != nil {
		return ErrContextCanceled
	}
	if ev == nil {
		return &ValidationError{Field: "libraryEvent", Reason: "is nil"}
	}
	if !ev.LibraryEventType.Valid() {
		return &ValidationError{Field: "libraryEventType", Reason: "is not a known event type"}
	}
	if ev.Book == nil {
		return &ValidationError{Field: "book", Reason: "is required"}
	}
	if ev.LibraryEventType == types.EventTypeUpdate {
		if ev.LibraryEventID == nil {
			return &ValidationError{Field: "libraryEventId", Reason: "is required for UPDATE"}
		}
		if strings.TrimSpace(ev.Book.BookName) == "" {
			return &ValidationError{Field: "book.bookName", Reason: "is required for UPDATE"}
		}
		if strings.TrimSpace(ev.Book.BookAuthor) == "" {
			return &ValidationError{Field: "book.bookAuthor", Reason: "is required for UPDATE"}
		}
	}

	return nil
}
