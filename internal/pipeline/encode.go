package pipeline

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/types"
)

// Encode serializes a library event into its canonical compact JSON form.
func Encode(ev *types.LibraryEvent) ([]byte, error) {
	if ev == nil {
		return nil, errors.New("library event is nil")
	}
	b, err := codec.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to encode library event: %w", err)
	}
	return b, nil
}

// ErrKeyOutOfRange is returned for ids that do not fit a 4-byte key.
var ErrKeyOutOfRange = errors.New("library event id does not fit a 32-bit key")

// EncodeKey serializes an event id as a 4-byte big-endian integer.
// A nil id yields a nil key.
func EncodeKey(id *int) ([]byte, error) {
	if id == nil {
		return nil, nil
	}
	if *id < math.MinInt32 || *id > math.MaxInt32 {
		return nil, fmt.Errorf("%w: %d", ErrKeyOutOfRange, *id)
	}
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(int32(*id)))
	return b, nil
}
