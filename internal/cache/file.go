package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"

	"github.com/ginjaninja78/crsmerge/pkg/utils"
)

// snapshotExt is appended to every entry name.
const snapshotExt = ".json.zst"

// FileStore keeps one zstd-compressed JSON file per entry.
type FileStore struct {
	dir string
}

// NewFileStore returns a store in dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("cache directory is empty")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Path returns the file an entry is stored in.
func (s *FileStore) Path(name string) string {
	return filepath.Join(s.dir, utils.SanitizeFileName(name)+snapshotExt)
}

// Get implements Store.
func (s *FileStore) Get(_ context.Context, name string) (Lookup, error) {
	path := s.Path(name)
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Lookup{Status: Miss}, nil
	}
	if err != nil {
		return Lookup{}, err
	}
	if info.IsDir() {
		return Lookup{Status: Corrupt, Err: fmt.Errorf("%s is a directory", path)}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return Lookup{}, err
	}
	defer f.Close()

	e, err := decodeEntry(f)
	if err != nil {
		return Lookup{Status: Corrupt, Err: err}, nil
	}
	if e.Name != name {
		return Lookup{Status: Corrupt, Err: fmt.Errorf("file holds entry %q", e.Name)}, nil
	}
	return Lookup{Status: Hit, Entry: e}, nil
}

// Put implements Store. The file is replaced atomically.
func (s *FileStore) Put(_ context.Context, e Entry) error {
	return utils.WriteFileAtomic(s.Path(e.Name), func(w io.Writer) error {
		return encodeEntry(w, e)
	})
}

// Close implements Store.
func (s *FileStore) Close() error { return nil }

// =============================================================================
// CODEC
// =============================================================================

func encodeEntry(w io.Writer, e Entry) error {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("failed to create compressor: %w", err)
	}
	if err := json.NewEncoder(zw).Encode(e); err != nil {
		_ = zw.Close()
		return fmt.Errorf("failed to encode entry: %w", err)
	}
	return zw.Close()
}

func decodeEntry(r io.Reader) (*Entry, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress snapshot: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &e, nil
}

func compress(e Entry) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeEntry(&buf, e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
