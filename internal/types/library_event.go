package types

// EventType is the kind of a library event
type EventType string

const (
	EventTypeNew    EventType = "NEW"
	EventTypeUpdate EventType = "UPDATE"
)

// Valid reports whether t is a known event type
func (t EventType) Valid() bool {
	return t == EventTypeNew || t == EventTypeUpdate
}

// LibraryEvent is the decoded value of a record on the library-events topic.
// Field order is the wire order.
type LibraryEvent struct {
	LibraryEventID   *int      `json:"libraryEventId"`
	LibraryEventType EventType `json:"libraryEventType"`
	Book             *Book     `json:"book"`
}

// Book is the payload carried by a library event
type Book struct {
	BookID     int    `json:"bookId"`
	BookName   string `json:"bookName"`
	BookAuthor string `json:"bookAuthor"`

	// LibraryEventID links the book back to its parent event. It is set
	// before persistence and never serialized.
	LibraryEventID *int `json:"-"`
}

// Clone returns a deep copy of the event
func (e LibraryEvent) Clone() LibraryEvent {
	out := e
	if e.LibraryEventID != nil {
		id := *e.LibraryEventID
		out.LibraryEventID = &id
	}
	if e.Book != nil {
		b := *e.Book
		if e.Book.LibraryEventID != nil {
			id := *e.Book.LibraryEventID
			b.LibraryEventID = &id
		}
		out.Book = &b
	}
	return out
}

// IntPtr returns a pointer to v
func IntPtr(v int) *int {
	return &v
}
