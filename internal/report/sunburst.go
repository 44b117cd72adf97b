package report

import (
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/crsmerge/internal/crs"
	"github.com/ginjaninja78/crsmerge/internal/table"
)

// DefaultGroupings are the key combinations of the sunburst files.
func DefaultGroupings() [][]string {
	return [][]string{
		{"IncomegroupName", "SectorName"},
		{"IncomegroupName", "PurposeName"},
		{"IncomegroupName", "SectorName", "PurposeName"},
		{"RecipientName", "SectorName"},
		{"RecipientName", "PurposeName"},
		{"RecipientName", "SectorName", "PurposeName"},
		{"AgencyName", "RecipientName"},
		{"AgencyName", "PurposeName"},
		{"AgencyName", "IncomegroupName"},
		{"AgencyName", "SectorName"},
	}
}

// GroupRow is the value total of one key tuple.
type GroupRow struct {
	Keys []string
	Sum  decimal.Decimal
}

// Grouping is a value sum per distinct key tuple, sorted by keys.
type Grouping struct {
	Keys        []string
	ValueColumn string
	Rows        []GroupRow
}

// Name joins the keys with "-", e.g. "IncomegroupName-SectorName".
func (g *Grouping) Name() string { return strings.Join(g.Keys, "-") }

// BuildGrouping sums valueColumn per distinct tuple of keys. Records missing
// any key or the value are skipped. The key "IncomegroupName" reads
// groupColumn, so groupings follow the historical income group when one is
// configured.
func BuildGrouping(records []crs.Transaction, keys []string, valueColumn, groupColumn string) *Grouping {
	g := &Grouping{Keys: append([]string(nil), keys...), ValueColumn: valueColumn}

	sums := make(map[string]*GroupRow)
	for _, r := range records {
		v, ok := r.Amount(valueColumn)
		if !ok {
			continue
		}
		tuple := make([]string, len(keys))
		complete := true
		for i, k := range keys {
			column := k
			if k == crs.ColIncomegroup {
				column = groupColumn
			}
			val, _ := r.Field(column)
			if val == "" {
				complete = false
				break
			}
			tuple[i] = val
		}
		if !complete {
			continue
		}

		id := strings.Join(tuple, "\x00")
		row, ok := sums[id]
		if !ok {
			row = &GroupRow{Keys: tuple, Sum: decimal.Zero}
			sums[id] = row
		}
		row.Sum = row.Sum.Add(v)
	}

	g.Rows = make([]GroupRow, 0, len(sums))
	for _, row := range sums {
		g.Rows = append(g.Rows, *row)
	}
	sort.Slice(g.Rows, func(i, j int) bool {
		a, b := g.Rows[i].Keys, g.Rows[j].Keys
		for k := range a {
			if a[k] != b[k] {
				return a[k] < b[k]
			}
		}
		return false
	})
	return g
}

// JSON returns the rows keyed by position, each with the key columns and the
// value column.
func (g *Grouping) JSON() table.Object {
	out := make(table.Object, 0, len(g.Rows))
	for i, row := range g.Rows {
		obj := make(table.Object, 0, len(g.Keys)+1)
		for k, key := range g.Keys {
			obj.Set(key, row.Keys[k])
		}
		obj.Set(g.ValueColumn, row.Sum.InexactFloat64())
		out.Set(strconv.Itoa(i), obj)
	}
	return out
}
