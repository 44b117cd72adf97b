// =============================================================================
// crsmerge - Historical Income Groups
// =============================================================================
//
// The IncomegroupName column of a CRS extract is "active data": it holds the
// classification at publication time, not at commitment time. This package
// attaches the classification that was valid in the commitment year, from
// two sources:
//
//   - the World Bank historical classification (OGHIST), keyed by ISO3 and
//     translated to OECD codes through the IdentifierMap
//   - the OECD DAC list history, keyed by OECD recipient code
//
// Both are left joins on (commitment year, RecipientCode). Records without a
// match keep no value in the target column.
//
// =============================================================================

package incomegroup

import (
	"log/slog"
	"sort"

	"github.com/ginjaninja78/crsmerge/internal/crs"
	"github.com/ginjaninja78/crsmerge/internal/joinkey"
)

// Target columns.
const (
	ColumnWorldBank = "IncomegroupName (WB)"
	ColumnOECD      = "IncomegroupName (oecd hist)"
)

// KnownGroups are the short names used in CRS extracts.
var KnownGroups = []string{"LDCs", "LMICs", "MADCTs", "Other LICs", "Part I unallocated by income", "UMICs"}

// History maps (year, OECD recipient code) to an income group.
type History struct {
	values map[joinkey.Key]string
}

func newHistory() *History {
	return &History{values: make(map[joinkey.Key]string)}
}

func (h *History) set(year int, code, group string) {
	h.values[joinkey.New(year, code)] = group
}

// Lookup returns the group of a recipient in a year.
func (h *History) Lookup(year int, code string) (string, bool) {
	g, ok := h.values[joinkey.New(year, code)]
	return g, ok
}

// Len returns the number of (year, code) entries.
func (h *History) Len() int { return len(h.values) }

// Groups returns the distinct group names, sorted.
func (h *History) Groups() []string {
	seen := make(map[string]struct{})
	for _, g := range h.values {
		seen[g] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for g := range seen {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

// Stats counts the outcome of Apply.
type Stats struct {
	Records     int
	Matched     int
	Unmatched   int
	MissingDate int
}

// LogValue implements slog.LogValuer.
func (s Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("records", s.Records),
		slog.Int("matched", s.Matched),
		slog.Int("unmatched", s.Unmatched),
		slog.Int("missing_date", s.MissingDate),
	)
}

// Apply returns copies of records with column set from h. The input is not
// modified.
func Apply(records []crs.Transaction, h *History, column string) ([]crs.Transaction, Stats) {
	out := make([]crs.Transaction, len(records))
	var stats Stats
	for i, r := range records {
		stats.Records++
		out[i] = r

		year, ok := r.Year()
		if !ok {
			stats.MissingDate++
			continue
		}
		group, ok := h.Lookup(year, r.RecipientCode)
		if !ok {
			stats.Unmatched++
			continue
		}
		out[i] = r.With(column, group)
		stats.Matched++
	}
	return out, stats
}
