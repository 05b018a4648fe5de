package pipeline

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/types"
)

// codec is strict on input and emits fields in declaration order, so a
// canonically encoded event survives a decode/encode round trip byte for byte.
var codec = jsoniter.Config{
	EscapeHTML:             false,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	DisallowUnknownFields:  true,
}.Froze()

// Decode unmarshals a library event from a record value.
// It returns a typed *DecodeError for malformed JSON or a schema mismatch, and
// a *ValidationError for an UPDATE whose book carries no bookId.
func Decode(ctx context.Context, value []byte) (*types.LibraryEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrContextCanceled
	}

	if len(bytes.TrimSpace(value)) == 0 {
		return nil, &DecodeError{Err: errors.New("empty payload")}
	}

	var ev types.LibraryEvent
	if err := codec.Unmarshal(value, &ev); err != nil {
		// Preserve underlying error for errors.Is/As checks.
		return nil, &DecodeError{Err: err}
	}
	if !ev.LibraryEventType.Valid() {
		return nil, &DecodeError{Err: fmt.Errorf("unknown libraryEventType %q", ev.LibraryEventType)}
	}
	if ev.Book == nil {
		return nil, &DecodeError{Err: errors.New("book is required")}
	}
	// Missing fields decode as zero values, so presence is checked on the raw value.
	if ev.LibraryEventType == types.EventTypeUpdate {
		if t := codec.Get(value, "book", "bookId").ValueType(); t != jsoniter.NumberValue {
			return nil, &ValidationError{Field: "book.bookId", Reason: "is required for UPDATE"}
		}
	}

	// We again check for context cancellation to report if decoding canceled during the work.
	if ctx.Err() != nil {
		return nil, ErrContextCanceled
	}

	return &ev, nil
}

// DecodeKey reads a record key written by EncodeKey.
// A nil or empty key means the event carried no id.
func DecodeKey(key []byte) (*int, error) {
	switch len(key) {
	case 0:
		return nil, nil
	case 4:
		id := int(int32(binary.BigEndian.Uint32(key)))
		return &id, nil
	default:
		return nil, &DecodeError{Err: fmt.Errorf("key must be 4 bytes, got %d", len(key))}
	}
}
