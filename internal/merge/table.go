package merge

import (
	"strconv"

	"github.com/ginjaninja78/crsmerge/internal/crs"
	"github.com/ginjaninja78/crsmerge/internal/indicator"
	"github.com/ginjaninja78/crsmerge/internal/table"
	"github.com/ginjaninja78/crsmerge/internal/worldbank"
)

// metaColumn is one country-table attribute carried into the merged table.
type metaColumn struct {
	name    string
	numeric bool
	value   func(c *worldbank.Country) string
}

// metaColumns follow the column order of the country table. The donor side
// drops the country name.
var metaColumns = []metaColumn{
	{name: "iso3Code", value: func(c *worldbank.Country) string { return c.ISO3 }},
	{name: "iso2Code", value: func(c *worldbank.Country) string { return c.ISO2 }},
	{name: "name", value: func(c *worldbank.Country) string { return c.Name }},
	{name: "region", value: func(c *worldbank.Country) string { return c.Region }},
	{name: "adminregion", value: func(c *worldbank.Country) string { return c.AdminRegion }},
	{name: "incomeLevel", value: func(c *worldbank.Country) string { return c.IncomeLevel }},
	{name: "lendingType", value: func(c *worldbank.Country) string { return c.LendingType }},
	{name: "capitalCity", value: func(c *worldbank.Country) string { return c.CapitalCity }},
	{name: "longitude", numeric: true, value: func(c *worldbank.Country) string { return c.Longitude }},
	{name: "latitude", numeric: true, value: func(c *worldbank.Country) string { return c.Latitude }},
}

func (r Role) metaColumns() []metaColumn {
	if r == Recipient {
		return metaColumns
	}
	out := make([]metaColumn, 0, len(metaColumns)-1)
	for _, c := range metaColumns {
		if c.name != "name" {
			out = append(out, c)
		}
	}
	return out
}

// Columns returns the indicator-side column names of the result, role by
// role, donor first.
func (r *Result) Columns() []string {
	var cols []string
	for _, role := range r.Options.Roles() {
		for _, ind := range r.Indicators {
			cols = append(cols, role.Prefix()+ind)
		}
		for _, mc := range role.metaColumns() {
			cols = append(cols, role.Prefix()+mc.name)
		}
	}
	return cols
}

// Table renders the result with the given transaction columns followed by
// the indicator-side columns. A base column that clashes with an indicator
// column is dropped from the indicator side.
func (r *Result) Table(baseColumns []string) *table.Table {
	seen := make(map[string]struct{}, len(baseColumns))
	var cols []string
	for _, c := range baseColumns {
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		cols = append(cols, c)
	}
	base := len(cols)

	type source struct {
		role      Role
		indicator string
		meta      *metaColumn
	}
	var sources []source
	for _, role := range r.Options.Roles() {
		for _, ind := range r.Indicators {
			name := role.Prefix() + ind
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			cols = append(cols, name)
			sources = append(sources, source{role: role, indicator: ind})
		}
		for _, mc := range role.metaColumns() {
			name := role.Prefix() + mc.name
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			cols = append(cols, name)
			sources = append(sources, source{role: role, meta: &mc})
		}
	}

	t := table.MustNew(cols...)
	values := make([]table.Value, len(cols))
	for _, row := range r.Rows {
		for i := 0; i < base; i++ {
			values[i] = crs.Cell(row.Transaction, cols[i])
		}
		for j, src := range sources {
			values[base+j] = sourceValue(row.For(src.role), src.indicator, src.meta)
		}
		t.MustAppend(values...)
	}
	return t
}

func sourceValue(ind *indicator.Row, code string, meta *metaColumn) table.Value {
	if ind == nil {
		return table.Null()
	}
	if meta == nil {
		v, ok := ind.Value(code)
		if !ok {
			return table.Null()
		}
		return table.Number(v)
	}
	if ind.Meta == nil {
		return table.Null()
	}
	raw := meta.value(ind.Meta)
	if raw == "" {
		return table.Null()
	}
	if meta.numeric {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return table.Null()
		}
		return table.Number(f)
	}
	return table.String(raw)
}
