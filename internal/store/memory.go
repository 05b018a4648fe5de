package store

import (
	"context"
	"sync"

	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/types"
)

// MemoryStore keeps events in process memory. Writes are serialized, so an
// Update is atomic with respect to every other call.
type MemoryStore struct {
	mu     sync.Mutex
	events map[int]types.LibraryEvent
	nextID int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events: make(map[int]types.LibraryEvent),
		nextID: 1,
	}
}

func (s *MemoryStore) Create(ctx context.Context, ev types.LibraryEvent) (types.LibraryEvent, error) {
	if err := ctx.Err(); err != nil {
		return types.LibraryEvent{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++

	stored := ev.Clone()
	stored.LibraryEventID = types.IntPtr(id)
	if stored.Book != nil {
		stored.Book.LibraryEventID = types.IntPtr(id)
	}
	s.events[id] = stored
	return stored.Clone(), nil
}

func (s *MemoryStore) Update(ctx context.Context, id int, mutate func(*types.LibraryEvent) error) (types.LibraryEvent, error) {
	if err := ctx.Err(); err != nil {
		return types.LibraryEvent{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.events[id]
	if !ok {
		return types.LibraryEvent{}, ErrNotFound
	}

	updated := existing.Clone()
	if err := mutate(&updated); err != nil {
		return types.LibraryEvent{}, err
	}
	updated.LibraryEventID = types.IntPtr(id)
	if updated.Book != nil {
		updated.Book.LibraryEventID = types.IntPtr(id)
	}
	s.events[id] = updated
	return updated.Clone(), nil
}

func (s *MemoryStore) Get(ctx context.Context, id int) (types.LibraryEvent, error) {
	if err := ctx.Err(); err != nil {
		return types.LibraryEvent{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.events[id]
	if !ok {
		return types.LibraryEvent{}, ErrNotFound
	}
	return ev.Clone(), nil
}

// Len returns the number of stored events.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func (s *MemoryStore) Close() error { return nil }
