// Package localstore persists the most recent server responses to a small
// SQLite database so books and the credit balance can render offline or
// before the first fetch completes. Snapshots are a display convenience, not
// a source of truth: they are overwritten on every successful fetch and
// callers treat them as stale.
package localstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"os"
	"path/filepath"
	"time"

	"github.com/bookwrightapp/bookwright/pkg/config"
	"github.com/bookwrightapp/bookwright/pkg/errcodes"
	"github.com/bookwrightapp/bookwright/pkg/models"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/segmentio/encoding/json"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const maxBusyRetries = 5

type Store struct {
	db *bun.DB
}

type bookSnapshot struct {
	bun.BaseModel `bun:"table:book_snapshots"`

	BookID    string    `bun:"book_id,pk"`
	Data      []byte    `bun:"data"`
	FetchedAt time.Time `bun:"fetched_at"`
}

type balanceSnapshot struct {
	bun.BaseModel `bun:"table:balance_snapshots"`

	ID        int       `bun:"id,pk"`
	Data      []byte    `bun:"data"`
	FetchedAt time.Time `bun:"fetched_at"`
}

type logQueryHook struct {
	log logger.Logger
}

func (*logQueryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (qh *logQueryHook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	qh.log.Debug(event.Query)
}

// Open creates (or reopens) the snapshot database in the cache directory.
// The schema is created on open; a deleted database file is simply rebuilt.
func Open(cfg *config.Config) (*Store, error) {
	if err := os.MkdirAll(cfg.CacheDir, 0755); err != nil {
		return nil, errors.WithStack(err)
	}
	return openAt(filepath.Join(cfg.CacheDir, "snapshots.sqlite"), cfg.Debug)
}

func openAt(path string, debug bool) (*Store, error) {
	drv := sqliteshim.Driver()
	drvCtx, ok := drv.(interface {
		OpenConnector(name string) (driver.Connector, error)
	})
	if !ok {
		return nil, errors.New("sqlite driver does not support OpenConnector")
	}
	connector, err := drvCtx.OpenConnector(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	sqldb := sql.OpenDB(newRetryConnector(connector, maxBusyRetries))
	db := bun.NewDB(sqldb, sqlitedialect.New())

	if debug {
		db.AddQueryHook(&logQueryHook{logger.NewWithLevel("debug")})
	}

	// WAL lets a watch-mode reader overlap with fetch-path writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, errors.Wrap(err, "failed to enable WAL mode")
	}
	if _, err := db.Exec("PRAGMA busy_timeout=1000"); err != nil {
		return nil, errors.Wrap(err, "failed to set busy_timeout")
	}

	if err := createSchema(db); err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

func createSchema(db *bun.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS book_snapshots (
			book_id TEXT PRIMARY KEY,
			data BLOB NOT NULL,
			fetched_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS balance_snapshots (
			id INTEGER PRIMARY KEY,
			data BLOB NOT NULL,
			fetched_at TIMESTAMP NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	return errors.WithStack(s.db.Close())
}

// SaveBook upserts a book snapshot after a successful fetch.
func (s *Store) SaveBook(ctx context.Context, book *models.Book) error {
	data, err := json.Marshal(book)
	if err != nil {
		return errors.WithStack(err)
	}

	snap := &bookSnapshot{BookID: book.ID, Data: data, FetchedAt: time.Now()}
	_, err = s.db.
		NewInsert().
		Model(snap).
		On("CONFLICT (book_id) DO UPDATE").
		Set("data = EXCLUDED.data").
		Set("fetched_at = EXCLUDED.fetched_at").
		Exec(ctx)
	return errors.WithStack(err)
}

// SaveBooks snapshots a whole listing.
func (s *Store) SaveBooks(ctx context.Context, books []*models.Book) error {
	for _, book := range books {
		if err := s.SaveBook(ctx, book); err != nil {
			return err
		}
	}
	return nil
}

// Book returns the snapshot for a book and when it was fetched.
func (s *Store) Book(ctx context.Context, bookID string) (*models.Book, time.Time, error) {
	snap := &bookSnapshot{}
	err := s.db.
		NewSelect().
		Model(snap).
		Where("book_id = ?", bookID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, errors.WithStack(errcodes.NotFound("Book"))
	}
	if err != nil {
		return nil, time.Time{}, errors.WithStack(err)
	}

	book := &models.Book{}
	if err := json.Unmarshal(snap.Data, book); err != nil {
		return nil, time.Time{}, errors.WithStack(err)
	}
	return book, snap.FetchedAt, nil
}

// Books returns every snapshotted book, most recently fetched first.
func (s *Store) Books(ctx context.Context) ([]*models.Book, error) {
	var snaps []bookSnapshot
	err := s.db.
		NewSelect().
		Model(&snaps).
		Order("fetched_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	books := make([]*models.Book, 0, len(snaps))
	for _, snap := range snaps {
		book := &models.Book{}
		if err := json.Unmarshal(snap.Data, book); err != nil {
			return nil, errors.WithStack(err)
		}
		books = append(books, book)
	}
	return books, nil
}

// DeleteBook drops a snapshot after the server copy is deleted.
func (s *Store) DeleteBook(ctx context.Context, bookID string) error {
	_, err := s.db.
		NewDelete().
		Model((*bookSnapshot)(nil)).
		Where("book_id = ?", bookID).
		Exec(ctx)
	return errors.WithStack(err)
}

// SaveBalance upserts the single balance snapshot row.
func (s *Store) SaveBalance(ctx context.Context, balance *models.CreditBalance) error {
	data, err := json.Marshal(balance)
	if err != nil {
		return errors.WithStack(err)
	}

	snap := &balanceSnapshot{ID: 1, Data: data, FetchedAt: time.Now()}
	_, err = s.db.
		NewInsert().
		Model(snap).
		On("CONFLICT (id) DO UPDATE").
		Set("data = EXCLUDED.data").
		Set("fetched_at = EXCLUDED.fetched_at").
		Exec(ctx)
	return errors.WithStack(err)
}

// Balance returns the snapshotted balance and when it was fetched.
func (s *Store) Balance(ctx context.Context) (*models.CreditBalance, time.Time, error) {
	snap := &balanceSnapshot{}
	err := s.db.
		NewSelect().
		Model(snap).
		Where("id = 1").
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, errors.WithStack(errcodes.NotFound("Balance"))
	}
	if err != nil {
		return nil, time.Time{}, errors.WithStack(err)
	}

	balance := &models.CreditBalance{}
	if err := json.Unmarshal(snap.Data, balance); err != nil {
		return nil, time.Time{}, errors.WithStack(err)
	}
	return balance, snap.FetchedAt, nil
}
