// =============================================================================
// crsmerge - Indicator Table
// =============================================================================
//
// The indicator table is the wide form of a set of World Bank series: one row
// per (country, year), one value per indicator. It is what the series merger
// joins onto CRS records.
//
// Construction:
//
//  1. null observations are already gone (the client drops them)
//  2. indicators listed in ScaleOptions are multiplied by the factor; the
//     daily per-capita series are turned into yearly figures this way
//  3. values are summed per (country, year, indicator)
//
// An indicator with no observation for a (country, year) that has other
// indicators stays absent, so it reads as null rather than zero.
//
// =============================================================================

package indicator

import (
	"sort"

	"github.com/ginjaninja78/crsmerge/internal/joinkey"
	"github.com/ginjaninja78/crsmerge/internal/worldbank"
)

// Default series and scaling of the reference analysis.
var (
	// DefaultSeries are:
	//   SI.SPR.PCAP     survey mean consumption or income per capita ($/day)
	//   SI.POV.XPND.MD  median daily per capita income or consumption ($/day)
	//   SP.POP.TOTL     population, total
	//   AG.SRF.TOTL.K2  surface area (sq. km)
	DefaultSeries = []string{"SI.SPR.PCAP", "SI.POV.XPND.MD", "SP.POP.TOTL", "AG.SRF.TOTL.K2"}

	DefaultScaled = []string{"SI.SPR.PCAP", "SI.POV.XPND.MD"}
)

// DefaultScaleFactor turns a daily figure into a yearly one.
const DefaultScaleFactor = 360

// FirstYear is the default start of the fetched date range.
const FirstYear = 1980

// ScaleOptions lists the indicators to multiply by Factor.
type ScaleOptions struct {
	Indicators []string
	Factor     float64
}

// DefaultScale returns the reference scaling.
func DefaultScale() ScaleOptions {
	return ScaleOptions{Indicators: append([]string(nil), DefaultScaled...), Factor: DefaultScaleFactor}
}

// Row holds the indicator values of one country in one year.
type Row struct {
	Country string             `json:"country"`
	Year    int                `json:"year"`
	Values  map[string]float64 `json:"values"`
	// Meta is set by AttachCountries and stays nil for countries missing
	// from the country table.
	Meta *worldbank.Country `json:"meta,omitempty"`
}

// Value returns the value of an indicator.
func (r *Row) Value(indicator string) (float64, bool) {
	v, ok := r.Values[indicator]
	return v, ok
}

// Key returns the join key of the row.
func (r *Row) Key() joinkey.Key { return joinkey.New(r.Year, r.Country) }

// Table is a wide indicator table.
type Table struct {
	indicators []string
	rows       map[joinkey.Key]*Row
	order      []joinkey.Key
}

// Build pivots series into a table. Indicators keep the order of series.
func Build(series []*worldbank.Series, scale ScaleOptions) *Table {
	scaled := make(map[string]bool, len(scale.Indicators))
	for _, s := range scale.Indicators {
		scaled[s] = true
	}

	t := &Table{rows: make(map[joinkey.Key]*Row)}
	seen := make(map[string]bool, len(series))
	for _, s := range series {
		if s == nil {
			continue
		}
		if !seen[s.Indicator] {
			seen[s.Indicator] = true
			t.indicators = append(t.indicators, s.Indicator)
		}
		factor := 1.0
		if scaled[s.Indicator] && scale.Factor != 0 {
			factor = scale.Factor
		}
		for _, o := range s.Observations {
			k := joinkey.New(o.Year, o.Country)
			row, ok := t.rows[k]
			if !ok {
				row = &Row{Country: o.Country, Year: o.Year, Values: make(map[string]float64)}
				t.rows[k] = row
			}
			row.Values[s.Indicator] += o.Value * factor
		}
	}
	t.sortKeys()
	return t
}

func (t *Table) sortKeys() {
	t.order = make([]joinkey.Key, 0, len(t.rows))
	for k := range t.rows {
		t.order = append(t.order, k)
	}
	sort.Slice(t.order, func(i, j int) bool {
		if t.order[i].Country != t.order[j].Country {
			return t.order[i].Country < t.order[j].Country
		}
		return t.order[i].Year < t.order[j].Year
	})
}

// Indicators returns the indicator codes in column order.
func (t *Table) Indicators() []string { return append([]string(nil), t.indicators...) }

// Len returns the number of (country, year) rows.
func (t *Table) Len() int { return len(t.order) }

// Lookup returns the row for a key.
func (t *Table) Lookup(k joinkey.Key) (*Row, bool) {
	r, ok := t.rows[k]
	return r, ok
}

// Rows returns the rows ordered by country, then year.
func (t *Table) Rows() []*Row {
	out := make([]*Row, len(t.order))
	for i, k := range t.order {
		out[i] = t.rows[k]
	}
	return out
}

// FilterCountries returns a table with the rows whose country passes keep.
func (t *Table) FilterCountries(keep func(iso3 string) bool) *Table {
	out := &Table{indicators: t.Indicators(), rows: make(map[joinkey.Key]*Row)}
	for _, k := range t.order {
		if keep(k.Country) {
			out.rows[k] = t.rows[k]
			out.order = append(out.order, k)
		}
	}
	return out
}

// AttachCountries returns a table whose rows carry the matching entry of the
// country table. Rows of unknown countries are kept without metadata.
func (t *Table) AttachCountries(countries []worldbank.Country) *Table {
	byCode := make(map[string]*worldbank.Country, len(countries))
	for i := range countries {
		c := countries[i]
		byCode[c.ISO3] = &c
	}

	out := &Table{indicators: t.Indicators(), rows: make(map[joinkey.Key]*Row, len(t.rows))}
	for _, k := range t.order {
		src := t.rows[k]
		row := &Row{Country: src.Country, Year: src.Year, Values: src.Values, Meta: byCode[src.Country]}
		out.rows[k] = row
		out.order = append(out.order, k)
	}
	return out
}

// =============================================================================
// SERIALIZATION
// =============================================================================

// Snapshot is the serializable form of a Table, used by the cache.
type Snapshot struct {
	Indicators []string `json:"indicators"`
	Rows       []Row    `json:"rows"`
}

// Snapshot returns the table in serializable form.
func (t *Table) Snapshot() Snapshot {
	s := Snapshot{Indicators: t.Indicators(), Rows: make([]Row, 0, len(t.order))}
	for _, k := range t.order {
		s.Rows = append(s.Rows, *t.rows[k])
	}
	return s
}

// FromSnapshot rebuilds a Table.
func FromSnapshot(s Snapshot) *Table {
	t := &Table{indicators: append([]string(nil), s.Indicators...), rows: make(map[joinkey.Key]*Row, len(s.Rows))}
	for i := range s.Rows {
		r := s.Rows[i]
		if r.Values == nil {
			r.Values = make(map[string]float64)
		}
		t.rows[r.Key()] = &r
	}
	t.sortKeys()
	return t
}
