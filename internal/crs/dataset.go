package crs

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/ginjaninja78/crsmerge/internal/countrycode"
	"github.com/ginjaninja78/crsmerge/internal/table"
)

// Dataset is an ordered collection of transactions read from one or more
// extracts.
type Dataset struct {
	Name    string
	Columns []string
	Records []Transaction
	Stats   ReadStats
}

// Len returns the number of records.
func (d *Dataset) Len() int { return len(d.Records) }

// WithRecords returns a dataset with the same columns holding records.
func (d *Dataset) WithRecords(records []Transaction) *Dataset {
	return &Dataset{
		Name:    d.Name,
		Columns: append([]string(nil), d.Columns...),
		Records: records,
		Stats:   d.Stats,
	}
}

// WithColumn returns a dataset whose column list includes column. Records
// are shared, not copied.
func (d *Dataset) WithColumn(column string, records []Transaction) *Dataset {
	out := d.WithRecords(records)
	for _, c := range out.Columns {
		if c == column {
			return out
		}
	}
	out.Columns = append(out.Columns, column)
	return out
}

// Entities returns the distinct donor and recipient (code, name) pairs.
func (d *Dataset) Entities() []countrycode.Entity {
	entities := make([]countrycode.Entity, 0, 2*len(d.Records))
	for _, t := range d.Records {
		entities = append(entities,
			countrycode.Entity{Code: t.DonorCode, Name: t.DonorName},
			countrycode.Entity{Code: t.RecipientCode, Name: t.RecipientName},
		)
	}
	return countrycode.UniqueEntities(entities)
}

// Table renders the dataset. Amount columns become numbers, everything else
// text, and blank cells null.
func (d *Dataset) Table() *table.Table {
	t := table.MustNew(d.Columns...)
	row := make([]table.Value, len(d.Columns))
	for _, rec := range d.Records {
		for i, c := range d.Columns {
			row[i] = Cell(rec, c)
		}
		t.MustAppend(row...)
	}
	return t
}

// Cell renders one column of a record as a table value.
func Cell(rec Transaction, column string) table.Value {
	if IsAmountColumn(column) {
		amount, ok := rec.Amount(column)
		if !ok {
			return table.Null()
		}
		f, _ := amount.Float64()
		return table.Number(f)
	}
	v, ok := rec.Field(column)
	if !ok {
		return table.Null()
	}
	return table.String(v)
}

// =============================================================================
// LOADING
// =============================================================================

// LoadOptions controls LoadFiles.
type LoadOptions struct {
	Settings       Settings
	MaxConcurrency int
	Logger         *slog.Logger
}

// LoadFiles reads the given archives with up to MaxConcurrency files in
// flight and concatenates the records in the order of paths. Columns are the
// union of all headers in order of first appearance.
func LoadFiles(ctx context.Context, name string, paths []string, opts LoadOptions) (*Dataset, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	limit := opts.MaxConcurrency
	if limit <= 0 {
		limit = 1
	}

	parts := make([]*Dataset, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			logger.Info("reading extract", "file", path)
			ds, err := ReadFile(path, opts.Settings)
			if err != nil {
				return err
			}
			logger.Debug("extract read", "file", path, "rows", ds.Stats.Rows, "bad_dates", ds.Stats.BadDates)
			parts[i] = ds
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &Dataset{Name: name}
	seen := make(map[string]struct{})
	total := 0
	for _, p := range parts {
		total += len(p.Records)
	}
	out.Records = make([]Transaction, 0, total)
	for _, p := range parts {
		for _, c := range p.Columns {
			if _, ok := seen[c]; !ok {
				seen[c] = struct{}{}
				out.Columns = append(out.Columns, c)
			}
		}
		out.Records = append(out.Records, p.Records...)
		out.Stats.Add(p.Stats)
	}
	return out, nil
}

// =============================================================================
// NAMED SETS
// =============================================================================

// SetFull is the set holding every extract archive.
const SetFull = "fullset"

// DefaultSets lists the extract archives of each named dataset.
func DefaultSets() map[string][]string {
	return map[string][]string{
		SetFull: {
			"crs1994-73.zip", "crs1999-95.zip", "crs2000-01.zip", "crs2002-03.zip",
			"crs2005-04.zip", "crs2006.zip", "crs2007.zip", "crs2008.zip", "crs2009.zip",
			"crs2010.zip", "crs2011.zip", "crs2012.zip", "crs2013.zip", "crs2014.zip",
			"crs2015.zip", "crs2016.zip", "crs2017.zip", "crs2018.zip", "crs2019.zip",
		},
		"sane commitment": {
			"crs2005-04.zip", "crs2006.zip", "crs2007.zip", "crs2008.zip", "crs2009.zip",
			"crs2010.zip", "crs2011.zip", "crs2012.zip", "crs2013.zip", "crs2014.zip",
			"crs2015.zip", "crs2016.zip", "crs2017.zip", "crs2018.zip", "crs2019.zip",
		},
		"sane disbursement": {
			"crs2007.zip", "crs2008.zip", "crs2009.zip", "crs2010.zip", "crs2011.zip",
			"crs2012.zip", "crs2013.zip", "crs2014.zip", "crs2015.zip", "crs2016.zip",
			"crs2017.zip", "crs2018.zip", "crs2019.zip",
		},
		"sane": {
			"crs2010.zip", "crs2011.zip", "crs2012.zip", "crs2013.zip", "crs2014.zip",
			"crs2015.zip", "crs2016.zip", "crs2017.zip", "crs2018.zip", "crs2019.zip",
		},
		"playset": {"crs2017.zip", "crs2018.zip", "crs2019.zip", "crs2016.zip"},
	}
}

// ResolveSet returns the archive paths of a named set under dataDir.
func ResolveSet(sets map[string][]string, name, dataDir string) ([]string, error) {
	files, ok := sets[name]
	if !ok {
		known := make([]string, 0, len(sets))
		for k := range sets {
			known = append(known, k)
		}
		sort.Strings(known)
		return nil, fmt.Errorf("unknown dataset %q (known: %v)", name, known)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("dataset %q lists no files", name)
	}
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = filepath.Join(dataDir, f)
	}
	return paths, nil
}

// =============================================================================
// SERIALIZATION
// =============================================================================

// datasetSnapshot stores rows positionally to keep cache files small.
type datasetSnapshot struct {
	Name    string     `json:"name"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
	Stats   ReadStats  `json:"stats"`
}

// MarshalJSON implements json.Marshaler.
func (d *Dataset) MarshalJSON() ([]byte, error) {
	s := datasetSnapshot{Name: d.Name, Columns: d.Columns, Stats: d.Stats, Rows: make([][]string, len(d.Records))}
	for i, rec := range d.Records {
		row := make([]string, len(d.Columns))
		for j, c := range d.Columns {
			row[j], _ = rec.Field(c)
		}
		s.Rows[i] = row
	}
	return json.Marshal(s)
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Dataset) UnmarshalJSON(data []byte) error {
	var s datasetSnapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	d.Name = s.Name
	d.Columns = s.Columns
	d.Stats = s.Stats
	d.Records = make([]Transaction, len(s.Rows))
	for i, row := range s.Rows {
		if len(row) != len(s.Columns) {
			return fmt.Errorf("row %d has %d values, want %d", i, len(row), len(s.Columns))
		}
		fields := make(map[string]string, len(row))
		for j, v := range row {
			if v != "" {
				fields[s.Columns[j]] = v
			}
		}
		d.Records[i], _ = NewTransaction(fields)
	}
	return nil
}
