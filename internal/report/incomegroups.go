package report

import (
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/crsmerge/internal/crs"
	"github.com/ginjaninja78/crsmerge/internal/incomegroup"
	"github.com/ginjaninja78/crsmerge/internal/table"
)

// =============================================================================
// INCOME GROUP DISTRIBUTION
// =============================================================================

// Distribution holds the values of each (commitment year, income group)
// cell.
type Distribution struct {
	// Years present in the data, ascending.
	Years []int

	// Groups present in the data. Known CRS groups come first in their usual
	// order, unknown names follow sorted.
	Groups []string

	cells map[int]map[string][]decimal.Decimal
}

// BuildDistribution groups the value column of records by commitment year
// and income group. Records without a date, a group or a value are skipped.
func BuildDistribution(records []crs.Transaction, valueColumn, groupColumn string) *Distribution {
	d := &Distribution{cells: make(map[int]map[string][]decimal.Decimal)}
	groups := make(map[string]struct{})

	for _, r := range records {
		year, ok := r.Year()
		if !ok {
			continue
		}
		group, _ := r.Field(groupColumn)
		if group == "" {
			continue
		}
		v, ok := r.Amount(valueColumn)
		if !ok {
			continue
		}
		byGroup, ok := d.cells[year]
		if !ok {
			byGroup = make(map[string][]decimal.Decimal)
			d.cells[year] = byGroup
			d.Years = append(d.Years, year)
		}
		byGroup[group] = append(byGroup[group], v)
		groups[group] = struct{}{}
	}

	sort.Ints(d.Years)
	d.Groups = orderGroups(groups)
	return d
}

func orderGroups(present map[string]struct{}) []string {
	out := make([]string, 0, len(present))
	known := make(map[string]struct{}, len(incomegroup.KnownGroups))
	for _, g := range incomegroup.KnownGroups {
		known[g] = struct{}{}
		if _, ok := present[g]; ok {
			out = append(out, g)
		}
	}
	var rest []string
	for g := range present {
		if _, ok := known[g]; !ok {
			rest = append(rest, g)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// Count returns the number of records in a cell.
func (d *Distribution) Count(year int, group string) int {
	return len(d.cells[year][group])
}

// Sum returns the total of a cell. An empty cell is zero.
func (d *Distribution) Sum(year int, group string) decimal.Decimal {
	return decimal.Sum(decimal.Zero, d.cells[year][group]...)
}

// Mean returns the average of a cell. An empty cell is zero.
func (d *Distribution) Mean(year int, group string) decimal.Decimal {
	vs := d.cells[year][group]
	if len(vs) == 0 {
		return decimal.Zero
	}
	return decimal.Avg(vs[0], vs[1:]...)
}

// Median returns the median of a cell. An empty cell is zero.
func (d *Distribution) Median(year int, group string) decimal.Decimal {
	vs := append([]decimal.Decimal(nil), d.cells[year][group]...)
	if len(vs) == 0 {
		return decimal.Zero
	}
	sort.Slice(vs, func(i, j int) bool { return vs[i].LessThan(vs[j]) })
	mid := len(vs) / 2
	if len(vs)%2 == 1 {
		return vs[mid]
	}
	return vs[mid-1].Add(vs[mid]).Div(decimal.NewFromInt(2))
}

// SumPercent returns the share of a cell in the year's total value. It
// reports false when the year's total is zero.
func (d *Distribution) SumPercent(year int, group string) (float64, bool) {
	total := decimal.Zero
	for _, g := range d.Groups {
		total = total.Add(d.Sum(year, g))
	}
	if total.IsZero() {
		return 0, false
	}
	return d.Sum(year, group).Div(total).Mul(decimal.NewFromInt(100)).InexactFloat64(), true
}

// CountPercent returns the share of a cell in the year's record count.
func (d *Distribution) CountPercent(year int, group string) (float64, bool) {
	total := 0
	for _, g := range d.Groups {
		total += d.Count(year, g)
	}
	if total == 0 {
		return 0, false
	}
	return float64(d.Count(year, group)) / float64(total) * 100, true
}

// View is one derived table of the distribution, keyed by year then group.
type View struct {
	Name string
	Data table.Object
}

// Views returns the six views written to disk, in file order.
func (d *Distribution) Views() []View {
	dec := func(f func(int, string) decimal.Decimal) func(int, string) any {
		return func(y int, g string) any { return f(y, g).InexactFloat64() }
	}
	pct := func(f func(int, string) (float64, bool)) func(int, string) any {
		return func(y int, g string) any {
			if v, ok := f(y, g); ok {
				return v
			}
			return nil
		}
	}
	return []View{
		{Name: "sum-absolut", Data: d.object(dec(d.Sum))},
		{Name: "sum-percent", Data: d.object(pct(d.SumPercent))},
		{Name: "mean", Data: d.object(dec(d.Mean))},
		{Name: "median", Data: d.object(dec(d.Median))},
		{Name: "count-absolut", Data: d.object(func(y int, g string) any { return d.Count(y, g) })},
		{Name: "count-percent", Data: d.object(pct(d.CountPercent))},
	}
}

func (d *Distribution) object(cell func(year int, group string) any) table.Object {
	out := make(table.Object, 0, len(d.Years))
	for _, y := range d.Years {
		row := make(table.Object, 0, len(d.Groups))
		for _, g := range d.Groups {
			row.Set(g, cell(y, g))
		}
		out.Set(strconv.Itoa(y), row)
	}
	return out
}
