package cache

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver (pure Go)
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS snapshots (
    name        TEXT PRIMARY KEY,
    fingerprint TEXT NOT NULL,
    run_id      TEXT NOT NULL,
    created_at  TEXT NOT NULL,
    data        BLOB NOT NULL
)`

func sqlitePath(dir string) string {
	return filepath.Join(dir, "cache.db")
}

// SQLiteStore keeps all entries in one SQLite database. Each Put is a single
// upsert, so concurrent runs never observe a half-written entry.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := ensureDir(dir); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	ctx := context.Background()
	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		sqliteSchema,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to initialize cache database: %w", err)
		}
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, name string) (Lookup, error) {
	var (
		fingerprint, runID, createdAt string
		data                          []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT fingerprint, run_id, created_at, data FROM snapshots WHERE name = ?`, name,
	).Scan(&fingerprint, &runID, &createdAt, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return Lookup{Status: Miss}, nil
	}
	if err != nil {
		return Lookup{}, err
	}

	e, err := decodeEntry(bytes.NewReader(data))
	if err != nil {
		return Lookup{Status: Corrupt, Err: err}, nil
	}
	// The columns are authoritative; the blob only has to carry the payload.
	e.Name = name
	e.Fingerprint = fingerprint
	e.RunID = runID
	if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		e.CreatedAt = ts
	}
	return Lookup{Status: Hit, Entry: e}, nil
}

// Put implements Store.
func (s *SQLiteStore) Put(ctx context.Context, e Entry) error {
	data, err := compress(e)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (name, fingerprint, run_id, created_at, data)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			fingerprint = excluded.fingerprint,
			run_id      = excluded.run_id,
			created_at  = excluded.created_at,
			data        = excluded.data`,
		e.Name, e.Fingerprint, e.RunID, e.CreatedAt.UTC().Format(time.RFC3339Nano), data,
	)
	if err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
