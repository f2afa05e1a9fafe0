package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"sparkie-hq/relay/pkg/keypool"
)

// SQLiteStore persists pool snapshots in a single SQLite database, one row
// per credential. It uses a write-ahead log for better concurrent
// performance; each save replaces the stored snapshot wholesale inside one
// transaction, so a load always sees a consistent snapshot.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// Config configures the SQLite store.
type Config struct {
	// Path is the database file path.
	Path string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds.
	BusyTimeout time.Duration
}

// NewSQLiteStore opens (and if needed initializes) the snapshot database.
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL",
		cfg.Path, int(cfg.BusyTimeout.Milliseconds()))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db, path: cfg.Path}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS credentials (
	id                   TEXT PRIMARY KEY,
	secret               TEXT NOT NULL,
	state                INTEGER NOT NULL,
	cooldown_until       INTEGER NOT NULL,
	consecutive_failures INTEGER NOT NULL,
	last_used_at         INTEGER NOT NULL,
	last_success_at      INTEGER NOT NULL,
	total_requests       INTEGER NOT NULL,
	taken_at             INTEGER NOT NULL
);`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// SaveSnapshot replaces the stored snapshot with snap, atomically.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap *keypool.PoolSnapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM credentials`); err != nil {
		return fmt.Errorf("failed to clear snapshot: %w", err)
	}

	const insert = `
INSERT INTO credentials
	(id, secret, state, cooldown_until, consecutive_failures, last_used_at, last_success_at, total_requests, taken_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	takenAt := timeToNanos(snap.TakenAt)
	for _, c := range snap.Credentials {
		_, err := stmt.ExecContext(ctx,
			c.ID,
			c.Secret,
			int(c.State),
			timeToNanos(c.CooldownUntil),
			c.ConsecutiveFailures,
			timeToNanos(c.LastUsedAt),
			timeToNanos(c.LastSuccessAt),
			c.TotalRequests,
			takenAt,
		)
		if err != nil {
			return fmt.Errorf("failed to save credential %q: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns the stored snapshot. An empty database yields an
// empty snapshot, not an error.
func (s *SQLiteStore) LoadSnapshot(ctx context.Context) (*keypool.PoolSnapshot, error) {
	const query = `
SELECT id, secret, state, cooldown_until, consecutive_failures, last_used_at, last_success_at, total_requests, taken_at
FROM credentials ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}
	defer rows.Close()

	snap := &keypool.PoolSnapshot{}
	for rows.Next() {
		var (
			c             keypool.CredentialSnapshot
			state         int
			cooldownUntil int64
			lastUsedAt    int64
			lastSuccessAt int64
			takenAt       int64
		)
		if err := rows.Scan(&c.ID, &c.Secret, &state, &cooldownUntil,
			&c.ConsecutiveFailures, &lastUsedAt, &lastSuccessAt, &c.TotalRequests, &takenAt); err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}
		c.State = keypool.State(state)
		c.CooldownUntil = nanosToTime(cooldownUntil)
		c.LastUsedAt = nanosToTime(lastUsedAt)
		c.LastSuccessAt = nanosToTime(lastSuccessAt)
		snap.TakenAt = nanosToTime(takenAt)
		snap.Credentials = append(snap.Credentials, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return snap, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// timeToNanos stores the zero time as 0 so it survives the round trip.
func timeToNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func nanosToTime(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
