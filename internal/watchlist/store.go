// Package watchlist persists per-user watchlists in SQLite and mirrors
// them client-side through an event reducer.
package watchlist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/seenimoa/sentidash/pkg/models"
	"github.com/seenimoa/sentidash/pkg/utils"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

var (
	// ErrUnauthenticated is returned when no user is signed in.
	ErrUnauthenticated = errors.New("watchlist: not authenticated")
	// ErrForbidden is returned when a row belongs to another user.
	ErrForbidden = errors.New("watchlist: forbidden")
	// ErrNotFound is returned when no matching row exists.
	ErrNotFound = errors.New("watchlist: not found")
	// ErrInvalidSymbol is returned for an empty or malformed symbol.
	ErrInvalidSymbol = errors.New("watchlist: invalid symbol")
)

const schema = `
CREATE TABLE IF NOT EXISTS watchlist (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	symbol     TEXT NOT NULL,
	name       TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS watchlist_user_created ON watchlist (user_id, created_at);
`

// createdLayout is fixed-width so created_at sorts as text.
const createdLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Op is the kind of row change.
type Op string

const (
	OpInsert Op = "insert"
	OpDelete Op = "delete"
)

// Change describes one row change.
type Change struct {
	Op    Op                    `json:"op"`
	Entry models.WatchlistEntry `json:"entry"`
}

type subscriber struct {
	userID string
	ch     chan Change
}

// Store is the watchlist table. All access goes through For.
type Store struct {
	db  *sql.DB
	now func() time.Time

	mu     sync.Mutex
	subs   map[int]subscriber
	nextID int
}

// Open opens (or creates) the database at path and ensures the schema.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("watchlist: create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("watchlist: open %s: %w", path, err)
	}
	// One connection keeps :memory: databases shared and writes serialized.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("watchlist: migrate: %w", err)
	}
	return &Store{db: db, now: time.Now, subs: make(map[int]subscriber)}, nil
}

// Close closes the database and every subscription channel.
func (s *Store) Close() error {
	s.mu.Lock()
	for id, sub := range s.subs {
		close(sub.ch)
		delete(s.subs, id)
	}
	s.mu.Unlock()
	return s.db.Close()
}

// For returns a handle scoped to userID.
func (s *Store) For(userID string) (*Scoped, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	return &Scoped{store: s, userID: userID}, nil
}

// Subscribe returns a channel of row changes. A non-empty userID limits
// events to that user's rows. Events are dropped for a subscriber whose
// buffer is full. Call the returned func to unsubscribe.
func (s *Store) Subscribe(userID string) (<-chan Change, func()) {
	ch := make(chan Change, 16)
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = subscriber{userID: userID, ch: ch}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			if sub, ok := s.subs[id]; ok {
				close(sub.ch)
				delete(s.subs, id)
			}
			s.mu.Unlock()
		})
	}
}

func (s *Store) publish(c Change) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		if sub.userID != "" && sub.userID != c.Entry.UserID {
			continue
		}
		select {
		case sub.ch <- c:
		default:
		}
	}
}

// Scoped is a view of the table restricted to one user's rows.
type Scoped struct {
	store  *Store
	userID string
}

// UserID returns the scope's user.
func (sc *Scoped) UserID() string { return sc.userID }

// List returns the user's entries, oldest first.
func (sc *Scoped) List(ctx context.Context) ([]models.WatchlistEntry, error) {
	rows, err := sc.store.db.QueryContext(ctx,
		`SELECT id, user_id, symbol, name, created_at FROM watchlist WHERE user_id = ? ORDER BY created_at, id`,
		sc.userID)
	if err != nil {
		return nil, fmt.Errorf("watchlist: list: %w", err)
	}
	defer rows.Close()

	entries := []models.WatchlistEntry{}
	for rows.Next() {
		var e models.WatchlistEntry
		var created string
		if err := rows.Scan(&e.ID, &e.UserID, &e.Symbol, &e.Name, &created); err != nil {
			return nil, fmt.Errorf("watchlist: scan: %w", err)
		}
		e.CreatedAt, _ = time.Parse(createdLayout, created)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("watchlist: list: %w", err)
	}
	return entries, nil
}

// Insert adds an entry for the scope's user. An entry naming a different
// user is rejected. The table does not enforce symbol uniqueness.
func (sc *Scoped) Insert(ctx context.Context, e models.WatchlistEntry) (models.WatchlistEntry, error) {
	if e.UserID != "" && e.UserID != sc.userID {
		return models.WatchlistEntry{}, ErrForbidden
	}
	e.UserID = sc.userID
	e.Symbol = utils.NormalizeTicker(e.Symbol)
	if !utils.ValidTicker(e.Symbol) {
		return models.WatchlistEntry{}, fmt.Errorf("%w: %q", ErrInvalidSymbol, e.Symbol)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = sc.store.now().UTC()
	}

	_, err := sc.store.db.ExecContext(ctx,
		`INSERT INTO watchlist (id, user_id, symbol, name, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.Symbol, e.Name, e.CreatedAt.UTC().Format(createdLayout))
	if err != nil {
		return models.WatchlistEntry{}, fmt.Errorf("watchlist: insert %s: %w", e.Symbol, err)
	}
	sc.store.publish(Change{Op: OpInsert, Entry: e})
	return e, nil
}

// Ensure inserts symbol unless the user already has it. It reports
// whether a row was created.
func (sc *Scoped) Ensure(ctx context.Context, symbol, name string) (models.WatchlistEntry, bool, error) {
	symbol = utils.NormalizeTicker(symbol)
	entries, err := sc.List(ctx)
	if err != nil {
		return models.WatchlistEntry{}, false, err
	}
	for _, e := range entries {
		if e.Symbol == symbol {
			return e, false, nil
		}
	}
	e, err := sc.Insert(ctx, models.WatchlistEntry{Symbol: symbol, Name: name})
	if err != nil {
		return models.WatchlistEntry{}, false, err
	}
	return e, true, nil
}

// Delete removes the user's rows for symbol and returns how many went.
func (sc *Scoped) Delete(ctx context.Context, symbol string) (int64, error) {
	symbol = utils.NormalizeTicker(symbol)
	res, err := sc.store.db.ExecContext(ctx,
		`DELETE FROM watchlist WHERE user_id = ? AND symbol = ?`, sc.userID, symbol)
	if err != nil {
		return 0, fmt.Errorf("watchlist: delete %s: %w", symbol, err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		sc.store.publish(Change{Op: OpDelete, Entry: models.WatchlistEntry{UserID: sc.userID, Symbol: symbol}})
	}
	return n, nil
}

// DeleteByID removes one row. A row owned by another user is ErrForbidden.
func (sc *Scoped) DeleteByID(ctx context.Context, id string) error {
	var e models.WatchlistEntry
	err := sc.store.db.QueryRowContext(ctx,
		`SELECT id, user_id, symbol FROM watchlist WHERE id = ?`, id).Scan(&e.ID, &e.UserID, &e.Symbol)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("watchlist: lookup %s: %w", id, err)
	}
	if e.UserID != sc.userID {
		return ErrForbidden
	}
	if _, err := sc.store.db.ExecContext(ctx,
		`DELETE FROM watchlist WHERE id = ? AND user_id = ?`, id, sc.userID); err != nil {
		return fmt.Errorf("watchlist: delete %s: %w", id, err)
	}
	sc.store.publish(Change{Op: OpDelete, Entry: e})
	return nil
}
