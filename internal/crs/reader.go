// =============================================================================
// crsmerge - CRS Extract Reader
// =============================================================================
//
// CRS extracts are published as one zip archive per reporting year or year
// range. Each archive holds a single text file:
//
//   - '|' delimited, '"' quoted
//   - ISO-8859-15 encoded
//   - first row is the header
//
// Reader streams records out of such a file; ReadFile opens an archive and
// collects everything into a Dataset. Anything that stops a file from being
// read at all (missing file, broken archive, unknown encoding, bad header) is
// reported as a *FileError naming the file. Row-level oddities are counted in
// ReadStats instead.
//
// =============================================================================

package crs

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zip"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// =============================================================================
// SETTINGS
// =============================================================================

// Settings controls how extract files are decoded.
type Settings struct {
	// Delimiter separates fields. Accepts a single character or one of the
	// names "pipe", "tab", "semicolon", "comma".
	Delimiter string `koanf:"delimiter" yaml:"delimiter"`

	// Encoding is a WHATWG encoding label such as "iso-8859-15",
	// "windows-1252" or "utf-8".
	Encoding string `koanf:"encoding" yaml:"encoding"`
}

// DefaultSettings matches the published CRS bulk files.
func DefaultSettings() Settings {
	return Settings{Delimiter: "|", Encoding: "iso-8859-15"}
}

func (s Settings) comma() (rune, error) {
	switch strings.ToLower(s.Delimiter) {
	case "", "|", "pipe":
		return '|', nil
	case "\\t", "\t", "tab":
		return '\t', nil
	case ";", "semicolon":
		return ';', nil
	case ",", "comma":
		return ',', nil
	}
	r := []rune(s.Delimiter)
	if len(r) != 1 {
		return 0, fmt.Errorf("delimiter %q must be a single character", s.Delimiter)
	}
	return r[0], nil
}

// decoder resolves the configured encoding. Python-style labels such as
// "iso8859_15" are accepted as well.
func (s Settings) decoder() (encoding.Encoding, error) {
	label := strings.ToLower(strings.TrimSpace(s.Encoding))
	if label == "" {
		label = "iso-8859-15"
	}
	label = strings.ReplaceAll(label, "_", "-")
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported encoding %q: %w", s.Encoding, err)
	}
	return enc, nil
}

// =============================================================================
// ERRORS AND STATS
// =============================================================================

// FileError is a fatal problem with one input file.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("failed to read %s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// ErrNoEntries is returned for an archive without any file in it.
var ErrNoEntries = errors.New("archive contains no files")

// ReadStats counts row-level anomalies.
type ReadStats struct {
	Files    int
	Rows     int
	BadDates int
	// ShortRows counts rows with fewer fields than the header.
	ShortRows int
}

// Add accumulates other into s.
func (s *ReadStats) Add(other ReadStats) {
	s.Files += other.Files
	s.Rows += other.Rows
	s.BadDates += other.BadDates
	s.ShortRows += other.ShortRows
}

// =============================================================================
// STREAMING READER
// =============================================================================

// Reader streams transactions out of a decoded extract.
//
// USAGE:
//
//	r, err := crs.NewReader(src, settings)
//	for r.Next() {
//	    tx := r.Transaction()
//	}
//	if err := r.Err(); err != nil { ... }
type Reader struct {
	csv     *csv.Reader
	headers []string
	current Transaction
	line    int
	stats   ReadStats
	err     error
}

// NewReader wraps src, decodes it and reads the header row.
func NewReader(src io.Reader, settings Settings) (*Reader, error) {
	comma, err := settings.comma()
	if err != nil {
		return nil, err
	}
	enc, err := settings.decoder()
	if err != nil {
		return nil, err
	}

	decoded := transform.NewReader(bufio.NewReader(src), unicode.BOMOverride(enc.NewDecoder()))
	cr := csv.NewReader(decoded)
	cr.Comma = comma
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	r := &Reader{csv: cr}
	if err := r.readHeader(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Reader) readHeader() error {
	row, err := r.csv.Read()
	if err == io.EOF {
		return errors.New("file is empty")
	}
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}
	r.line = 1

	headers := make([]string, len(row))
	for i, h := range row {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Column_%d", i+1)
		}
		headers[i] = h
	}
	if err := ValidateHeader(headers); err != nil {
		return err
	}
	r.headers = headers
	return nil
}

// Next advances to the next non-empty row.
func (r *Reader) Next() bool {
	if r.err != nil {
		return false
	}
	for {
		row, err := r.csv.Read()
		if err == io.EOF {
			return false
		}
		if err != nil {
			r.err = fmt.Errorf("failed to read line %d: %w", r.line+1, err)
			return false
		}
		r.line++
		if isRowEmpty(row) {
			continue
		}

		if len(row) < len(r.headers) {
			r.stats.ShortRows++
		}
		fields := make(map[string]string, len(r.headers))
		for i, h := range r.headers {
			if i >= len(row) {
				break
			}
			if v := strings.TrimSpace(row[i]); v != "" {
				fields[h] = v
			}
		}

		tx, ok := NewTransaction(fields)
		if !ok {
			r.stats.BadDates++
		}
		r.stats.Rows++
		r.current = tx
		return true
	}
}

// Transaction returns the current record.
func (r *Reader) Transaction() Transaction { return r.current }

// Headers returns the column names.
func (r *Reader) Headers() []string { return append([]string(nil), r.headers...) }

// Stats returns the counts so far.
func (r *Reader) Stats() ReadStats { return r.stats }

// Err returns the error that stopped iteration, if any.
func (r *Reader) Err() error { return r.err }

func isRowEmpty(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// =============================================================================
// ARCHIVES
// =============================================================================

// ReadFile reads a zipped extract. The first regular file in the archive is
// used.
func ReadFile(path string, settings Settings) (*Dataset, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return nil, &FileError{Path: path, Err: err}
	}
	defer archive.Close()

	var entry *zip.File
	for _, f := range archive.File {
		if !f.FileInfo().IsDir() {
			entry = f
			break
		}
	}
	if entry == nil {
		return nil, &FileError{Path: path, Err: ErrNoEntries}
	}

	rc, err := entry.Open()
	if err != nil {
		return nil, &FileError{Path: path, Err: fmt.Errorf("failed to open %s: %w", entry.Name, err)}
	}
	defer rc.Close()

	ds, err := ReadAll(rc, settings)
	if err != nil {
		return nil, &FileError{Path: path, Err: err}
	}
	ds.Stats.Files = 1
	return ds, nil
}

// ReadAll reads an uncompressed extract into a Dataset.
func ReadAll(src io.Reader, settings Settings) (*Dataset, error) {
	r, err := NewReader(src, settings)
	if err != nil {
		return nil, err
	}

	ds := &Dataset{Columns: r.Headers()}
	for r.Next() {
		ds.Records = append(ds.Records, r.Transaction())
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	ds.Stats = r.Stats()
	return ds, nil
}
