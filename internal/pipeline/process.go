package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/store"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/types"
)

// errSimulatedOutage is the cause attached to injected recoverable failures.
var errSimulatedOutage = errors.New("temporary network issue")

// Processor applies a decoded library event to the store.
type Processor struct {
	store        store.Store
	logger       *zap.Logger
	faultEventID int
}

// NewProcessor creates a processor. A non-zero faultEventID makes every
// event carrying that id fail with a *RecoverableError before validation.
func NewProcessor(st store.Store, logger *zap.Logger, faultEventID int) (*Processor, error) {
	if st == nil {
		return nil, errors.New("store is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Processor{store: st, logger: logger, faultEventID: faultEventID}, nil
}

// Process validates and persists ev. NEW events get a fresh id; UPDATE
// events replace the book of an existing event.
func (p *Processor) Process(ctx context.Context, ev types.LibraryEvent) (types.LibraryEvent, error) {
	if err := ctx.Err(); err != nil {
		return types.LibraryEvent{}, ErrContextCanceled
	}

	if p.faultEventID != 0 && ev.LibraryEventID != nil && *ev.LibraryEventID == p.faultEventID {
		return types.LibraryEvent{}, &RecoverableError{Err: errSimulatedOutage}
	}

	if err := Validate(ctx, &ev); err != nil {
		return types.LibraryEvent{}, err
	}

	var (
		saved types.LibraryEvent
		err   error
	)
	switch ev.LibraryEventType {
	case types.EventTypeNew:
		saved, err = p.create(ctx, ev)
	case types.EventTypeUpdate:
		saved, err = p.update(ctx, ev)
	}
	if err != nil {
		return types.LibraryEvent{}, err
	}

	p.logger.Info("Successfully persisted library event",
		zap.Intp("library_event_id", saved.LibraryEventID),
		zap.String("library_event_type", string(saved.LibraryEventType)),
	)
	return saved, nil
}

func (p *Processor) create(ctx context.Context, ev types.LibraryEvent) (types.LibraryEvent, error) {
	work := ev.Clone()
	work.LibraryEventID = nil
	work.Book.LibraryEventID = nil

	saved, err := p.store.Create(ctx, work)
	if err != nil {
		return types.LibraryEvent{}, &ProcessError{Err: fmt.Errorf("create library event: %w", err)}
	}
	return saved, nil
}

func (p *Processor) update(ctx context.Context, ev types.LibraryEvent) (types.LibraryEvent, error) {
	id := *ev.LibraryEventID
	book := *ev.Book
	book.LibraryEventID = types.IntPtr(id)

	saved, err := p.store.Update(ctx, id, func(existing *types.LibraryEvent) error {
		existing.LibraryEventType = types.EventTypeUpdate
		b := book
		existing.Book = &b
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return types.LibraryEvent{}, &ValidationError{Field: "libraryEventId", Reason: "not a valid library event"}
	}
	if err != nil {
		return types.LibraryEvent{}, &ProcessError{Err: fmt.Errorf("update library event %d: %w", id, err)}
	}
	return saved, nil
}
