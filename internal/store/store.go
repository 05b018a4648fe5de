// Package store persists library events keyed by their identifier.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/config"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/types"
)

// ErrNotFound is returned when no event exists for the requested identifier.
var ErrNotFound = errors.New("library event not found")

// Store is the persistence boundary used by business processing.
type Store interface {
	// Create persists a new event and assigns it a fresh identifier.
	Create(ctx context.Context, ev types.LibraryEvent) (types.LibraryEvent, error)
	// Update loads the event with the given id, applies mutate and writes the
	// result back as one atomic step. It returns ErrNotFound for unknown ids.
	Update(ctx context.Context, id int, mutate func(*types.LibraryEvent) error) (types.LibraryEvent, error)
	// Get returns the stored event.
	Get(ctx context.Context, id int) (types.LibraryEvent, error)
	Close() error
}

// TransientError marks a storage failure that may succeed on a later attempt.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	if e == nil || e.Err == nil {
		return "transient storage failure"
	}
	return "transient storage failure: " + e.Err.Error()
}

func (e *TransientError) Unwrap() error { return e.Err }

// Transient reports that the failure is worth retrying.
func (e *TransientError) Transient() bool { return true }

// Open builds the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case config.StoreDriverMemory:
		return NewMemoryStore(), nil
	case config.StoreDriverPostgres:
		return OpenPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
