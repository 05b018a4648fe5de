package store

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/types"
)

//go:embed migrations/*.sql
var migrations embed.FS

// PostgresStore persists events in the library_events table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to databaseURL and applies pending migrations.
func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	if databaseURL == "" {
		return nil, errors.New("database url is required")
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Migrate applies the embedded goose migrations.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, ev types.LibraryEvent) (types.LibraryEvent, error) {
	if ev.Book == nil {
		return types.LibraryEvent{}, errors.New("book is required")
	}

	const q = `INSERT INTO library_events (library_event_type, book_id, book_name, book_author)
		VALUES ($1, $2, $3, $4)
		RETURNING library_event_id`

	var id int
	err := s.pool.QueryRow(ctx, q, string(ev.LibraryEventType), ev.Book.BookID, ev.Book.BookName, ev.Book.BookAuthor).Scan(&id)
	if err != nil {
		return types.LibraryEvent{}, wrapErr(err)
	}

	stored := ev.Clone()
	stored.LibraryEventID = types.IntPtr(id)
	stored.Book.LibraryEventID = types.IntPtr(id)
	return stored, nil
}

func (s *PostgresStore) Update(ctx context.Context, id int, mutate func(*types.LibraryEvent) error) (types.LibraryEvent, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.LibraryEvent{}, wrapErr(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ev, err := scanEvent(tx.QueryRow(ctx, selectEvent+` FOR UPDATE`, id))
	if err != nil {
		return types.LibraryEvent{}, err
	}

	if err := mutate(&ev); err != nil {
		return types.LibraryEvent{}, err
	}
	if ev.Book == nil {
		return types.LibraryEvent{}, errors.New("book is required")
	}

	const q = `UPDATE library_events
		SET library_event_type = $2, book_id = $3, book_name = $4, book_author = $5, updated_at = now()
		WHERE library_event_id = $1`
	if _, err := tx.Exec(ctx, q, id, string(ev.LibraryEventType), ev.Book.BookID, ev.Book.BookName, ev.Book.BookAuthor); err != nil {
		return types.LibraryEvent{}, wrapErr(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return types.LibraryEvent{}, wrapErr(err)
	}

	ev.LibraryEventID = types.IntPtr(id)
	ev.Book.LibraryEventID = types.IntPtr(id)
	return ev, nil
}

func (s *PostgresStore) Get(ctx context.Context, id int) (types.LibraryEvent, error) {
	return scanEvent(s.pool.QueryRow(ctx, selectEvent, id))
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const selectEvent = `SELECT library_event_id, library_event_type, book_id, book_name, book_author
	FROM library_events WHERE library_event_id = $1`

func scanEvent(row pgx.Row) (types.LibraryEvent, error) {
	var (
		id        int
		eventType string
		book      types.Book
	)
	if err := row.Scan(&id, &eventType, &book.BookID, &book.BookName, &book.BookAuthor); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.LibraryEvent{}, ErrNotFound
		}
		return types.LibraryEvent{}, wrapErr(err)
	}
	book.LibraryEventID = types.IntPtr(id)
	return types.LibraryEvent{
		LibraryEventID:   types.IntPtr(id),
		LibraryEventType: types.EventType(eventType),
		Book:             &book,
	}, nil
}

// wrapErr tags connection-level failures as transient.
func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return &TransientError{Err: err}
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return &TransientError{Err: err}
	}
	return err
}
