package pipeline

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/store"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/types"
)

const testFaultID = 111

func newObservedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.InfoLevel)
	return zap.New(core), logs
}

func newTestProcessor(t *testing.T) (*Processor, *store.MemoryStore, *observer.ObservedLogs) {
	t.Helper()
	st := store.NewMemoryStore()
	logger, logs := newObservedLogger()
	p, err := NewProcessor(st, logger, testFaultID)
	if err != nil {
		t.Fatalf("NewProcessor: %v", err)
	}
	return p, st, logs
}

func newBookEvent(id *int, typ types.EventType, name string) types.LibraryEvent {
	return types.LibraryEvent{
		LibraryEventID:   id,
		LibraryEventType: typ,
		Book:             &types.Book{BookID: 456, BookName: name, BookAuthor: "Dilip"},
	}
}

// failingStore fails every call with err.
type failingStore struct {
	store.Store
	err error
}

func (f failingStore) Create(context.Context, types.LibraryEvent) (types.LibraryEvent, error) {
	return types.LibraryEvent{}, f.err
}

func TestNewProcessor_RequiresDependencies(t *testing.T) {
	t.Parallel()

	if _, err := NewProcessor(nil, zap.NewNop(), 0); err == nil {
		t.Fatalf("expected error for nil store")
	}
	if _, err := NewProcessor(store.NewMemoryStore(), nil, 0); err == nil {
		t.Fatalf("expected error for nil logger")
	}
}

func TestProcess_NewPersistsAndLogs(t *testing.T) {
	t.Parallel()

	p, st, logs := newTestProcessor(t)

	saved, err := p.Process(context.Background(), newBookEvent(nil, types.EventTypeNew, "Kafka Using Spring Boot"))
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if saved.LibraryEventID == nil {
		t.Fatalf("expected assigned id")
	}
	if saved.Book.LibraryEventID == nil || *saved.Book.LibraryEventID != *saved.LibraryEventID {
		t.Fatalf("expected book to reference its event id")
	}
	if st.Len() != 1 {
		t.Fatalf("expected 1 stored event, got %d", st.Len())
	}

	entries := logs.FilterMessage("Successfully persisted library event").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 persistence log, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["library_event_type"]; got != "NEW" {
		t.Fatalf("expected library_event_type=NEW, got %v", got)
	}
}

func TestProcess_NewWithSuppliedIDGetsFreshID(t *testing.T) {
	t.Parallel()

	p, _, _ := newTestProcessor(t)

	saved, err := p.Process(context.Background(), newBookEvent(types.IntPtr(5000), types.EventTypeNew, "B"))
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if *saved.LibraryEventID == 5000 {
		t.Fatalf("expected a store-assigned id, got the supplied one")
	}
}

func TestProcess_UpdateReplacesBook(t *testing.T) {
	t.Parallel()

	p, st, _ := newTestProcessor(t)
	ctx := context.Background()

	created, err := p.Process(ctx, newBookEvent(nil, types.EventTypeNew, "Before"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = p.Process(ctx, newBookEvent(created.LibraryEventID, types.EventTypeUpdate, "After"))
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := st.Get(ctx, *created.LibraryEventID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Book.BookName != "After" || got.LibraryEventType != types.EventTypeUpdate {
		t.Fatalf("expected updated event, got %+v / %+v", got, got.Book)
	}
}

func TestProcess_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		ctx         context.Context
		ev          types.LibraryEvent
		wantAsVal   bool
		wantAsRecov bool
		wantErr     error
	}{
		{
			name:      "update_without_id",
			ctx:       context.Background(),
			ev:        newBookEvent(nil, types.EventTypeUpdate, "B"),
			wantAsVal: true,
		},
		{
			name:      "update_unknown_id",
			ctx:       context.Background(),
			ev:        newBookEvent(types.IntPtr(999), types.EventTypeUpdate, "B"),
			wantAsVal: true,
		},
		{
			name:        "fault_injection_id_on_update",
			ctx:         context.Background(),
			ev:          newBookEvent(types.IntPtr(testFaultID), types.EventTypeUpdate, "B"),
			wantAsRecov: true,
		},
		{
			name:        "fault_injection_id_on_new",
			ctx:         context.Background(),
			ev:          newBookEvent(types.IntPtr(testFaultID), types.EventTypeNew, "B"),
			wantAsRecov: true,
		},
		{
			name:    "context_canceled",
			ctx:     canceledCtx(),
			ev:      newBookEvent(nil, types.EventTypeNew, "B"),
			wantErr: ErrContextCanceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p, st, _ := newTestProcessor(t)

			_, err := p.Process(tt.ctx, tt.ev)
			if err == nil {
				t.Fatalf("expected error, got nil")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected errors.Is(err, %v)=true; got err=%v", tt.wantErr, err)
			}
			if tt.wantAsVal {
				var ve *ValidationError
				if !errors.As(err, &ve) {
					t.Fatalf("expected *ValidationError, got %T (%v)", err, err)
				}
			}
			if tt.wantAsRecov {
				var re *RecoverableError
				if !errors.As(err, &re) {
					t.Fatalf("expected *RecoverableError, got %T (%v)", err, err)
				}
			}
			if st.Len() != 0 {
				t.Fatalf("expected nothing persisted, got %d events", st.Len())
			}
		})
	}
}

func TestProcess_FaultInjectionDisabled(t *testing.T) {
	t.Parallel()

	logger, _ := newObservedLogger()
	p, err := NewProcessor(store.NewMemoryStore(), logger, 0)
	if err != nil {
		t.Fatalf("NewProcessor: %v", err)
	}

	if _, err := p.Process(context.Background(), newBookEvent(types.IntPtr(testFaultID), types.EventTypeNew, "B")); err != nil {
		t.Fatalf("expected nil error with fault injection disabled, got %v", err)
	}
}

func TestProcess_StoreFailureIsProcessError(t *testing.T) {
	t.Parallel()

	cause := &store.TransientError{Err: errors.New("connection reset")}
	p, err := NewProcessor(failingStore{err: cause}, zap.NewNop(), 0)
	if err != nil {
		t.Fatalf("NewProcessor: %v", err)
	}

	_, err = p.Process(context.Background(), newBookEvent(nil, types.EventTypeNew, "B"))
	var pe *ProcessError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ProcessError, got %T (%v)", err, err)
	}
	var te *store.TransientError
	if !errors.As(err, &te) {
		t.Fatalf("expected transient cause to be preserved, got %v", err)
	}
}
