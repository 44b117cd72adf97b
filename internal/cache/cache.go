// =============================================================================
// crsmerge - Snapshot Cache
// =============================================================================
//
// Fetching the World Bank data and parsing the CRS archives is slow, so
// intermediate results are kept as named snapshots. A lookup never relies on
// a failed read to mean "not cached": the store first checks whether an entry
// exists and then reports one of
//
//	Miss     nothing stored under the name
//	Hit      entry found and its fingerprint matches
//	Stale    entry found but built from different inputs
//	Corrupt  entry found but unreadable
//
// Callers recompute on anything but Hit. Stale and corrupt entries are simply
// overwritten by the next Put.
//
// =============================================================================

package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Status is the outcome of a lookup.
type Status int

const (
	Miss Status = iota
	Hit
	Stale
	Corrupt
)

func (s Status) String() string {
	switch s {
	case Hit:
		return "hit"
	case Stale:
		return "stale"
	case Corrupt:
		return "corrupt"
	default:
		return "miss"
	}
}

// Entry is one stored snapshot.
type Entry struct {
	Name        string          `json:"name"`
	Fingerprint string          `json:"fingerprint"`
	RunID       string          `json:"run_id"`
	CreatedAt   time.Time       `json:"created_at"`
	Payload     json.RawMessage `json:"payload"`
}

// Lookup is the result of Store.Get. Entry is set for Hit and Stale, Err for
// Corrupt.
type Lookup struct {
	Status Status
	Entry  *Entry
	Err    error
}

// Store persists entries by name.
type Store interface {
	// Get returns Miss, Hit or Corrupt. Stale is decided by Load, which
	// knows the expected fingerprint. The error is reserved for failures of
	// the store itself.
	Get(ctx context.Context, name string) (Lookup, error)
	Put(ctx context.Context, e Entry) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendNone   = "none"
)

// Open returns the store for a backend rooted at dir.
func Open(backend, dir string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendFile:
		return NewFileStore(dir)
	case BackendSQLite:
		return OpenSQLite(sqlitePath(dir))
	case BackendNone:
		return NopStore{}, nil
	}
	return nil, fmt.Errorf("unknown cache backend %q (want file, sqlite or none)", backend)
}

// =============================================================================
// TYPED ACCESS
// =============================================================================

// Load reads a snapshot into a value of type T. The returned status is Hit
// only if the value was decoded and its fingerprint matches.
func Load[T any](ctx context.Context, s Store, name, fingerprint string, logger *slog.Logger) (T, Status, error) {
	var zero T
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	lookup, err := s.Get(ctx, name)
	if err != nil {
		return zero, Miss, fmt.Errorf("failed to read cache entry %s: %w", name, err)
	}

	switch lookup.Status {
	case Miss:
		logger.Debug("cache miss", "name", name)
		return zero, Miss, nil
	case Corrupt:
		logger.Warn("cache entry corrupt, recomputing", "name", name, "error", lookup.Err)
		return zero, Corrupt, nil
	}

	if lookup.Entry.Fingerprint != fingerprint {
		logger.Info("cache entry stale, recomputing", "name", name, "built_by", lookup.Entry.RunID)
		return zero, Stale, nil
	}

	var v T
	if err := json.Unmarshal(lookup.Entry.Payload, &v); err != nil {
		logger.Warn("cache entry corrupt, recomputing", "name", name, "error", err)
		return zero, Corrupt, nil
	}
	logger.Info("cache hit", "name", name, "created_at", lookup.Entry.CreatedAt, "run_id", lookup.Entry.RunID)
	return v, Hit, nil
}

// Save stores v under name.
func Save[T any](ctx context.Context, s Store, name, fingerprint, runID string, v T) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry %s: %w", name, err)
	}
	if runID == "" {
		runID = uuid.NewString()
	}
	e := Entry{
		Name:        name,
		Fingerprint: fingerprint,
		RunID:       runID,
		CreatedAt:   time.Now().UTC(),
		Payload:     payload,
	}
	if err := s.Put(ctx, e); err != nil {
		return fmt.Errorf("failed to write cache entry %s: %w", name, err)
	}
	return nil
}

// =============================================================================
// NO-OP STORE
// =============================================================================

// NopStore never holds anything.
type NopStore struct{}

func (NopStore) Get(context.Context, string) (Lookup, error) { return Lookup{Status: Miss}, nil }
func (NopStore) Put(context.Context, Entry) error             { return nil }
func (NopStore) Close() error                                 { return nil }
