package report

import (
	"math"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/crsmerge/internal/crs"
	"github.com/ginjaninja78/crsmerge/internal/table"
)

// DefaultBins is the number of bins per histogram window.
const DefaultBins = 50

// Window is an open value interval. Both bounds are exclusive.
type Window struct {
	Lo float64
	Hi float64
}

// DefaultWindows are the project-size windows of the data overview, in
// million USD.
func DefaultWindows() []Window {
	inf := math.Inf(1)
	return []Window{
		{math.Inf(-1), 0},
		{0, inf},
		{0, 8},
		{0, 3},
		{0, 1},
		{0, 0.2},
		{math.Inf(-1), -0.2},
		{1, 60},
		{60, inf},
		{200, inf},
		{500, inf},
	}
}

// Contains reports whether lo < v < hi.
func (w Window) Contains(v float64) bool { return v > w.Lo && v < w.Hi }

// Label renders the window as used in file names, e.g. "0.00-8.00" or
// "60.00-inf".
func (w Window) Label() string {
	return formatBound(w.Lo) + "-" + formatBound(w.Hi)
}

func formatBound(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	return strconv.FormatFloat(f, 'f', 2, 64)
}

// Values returns the parsed amounts of column. Records without one are
// skipped.
func Values(records []crs.Transaction, column string) []decimal.Decimal {
	out := make([]decimal.Decimal, 0, len(records))
	for _, r := range records {
		if v, ok := r.Amount(column); ok {
			out = append(out, v)
		}
	}
	return out
}

// =============================================================================
// HISTOGRAM
// =============================================================================

// Bin is one right-closed interval (Lower, Upper].
type Bin struct {
	Lower float64
	Upper float64
	Count int
	Sum   decimal.Decimal
}

// Label renders the interval with three significant fractional digits,
// e.g. "(-0.0479, 1.0]".
func (b Bin) Label() string {
	return "(" + formatEdge(b.Lower) + ", " + formatEdge(b.Upper) + "]"
}

// Histogram is the distribution of values inside one window.
type Histogram struct {
	Window Window
	Count  int
	Sum    decimal.Decimal
	Bins   []Bin
}

// BuildHistogram bins the values inside w into n equal-width bins spanning
// the observed minimum to maximum. The lowest edge is moved down by 0.1% of
// the range so the minimum falls inside the first bin. When all values are
// equal the range is widened by 0.1% of the value on both sides.
func BuildHistogram(values []decimal.Decimal, w Window, n int) *Histogram {
	if n <= 0 {
		n = DefaultBins
	}
	h := &Histogram{Window: w, Sum: decimal.Zero}

	var (
		inside []float64
		sums   []decimal.Decimal
	)
	for _, v := range values {
		f := v.InexactFloat64()
		if !w.Contains(f) {
			continue
		}
		inside = append(inside, f)
		sums = append(sums, v)
		h.Sum = h.Sum.Add(v)
	}
	h.Count = len(inside)
	if h.Count == 0 {
		return h
	}

	edges := binEdges(inside, n)
	h.Bins = make([]Bin, n)
	for i := range h.Bins {
		h.Bins[i] = Bin{Lower: edges[i], Upper: edges[i+1], Sum: decimal.Zero}
	}
	for i, f := range inside {
		b := sort.SearchFloat64s(edges, f) - 1
		if b < 0 {
			b = 0
		}
		if b >= n {
			b = n - 1
		}
		h.Bins[b].Count++
		h.Bins[b].Sum = h.Bins[b].Sum.Add(sums[i])
	}
	return h
}

func binEdges(values []float64, n int) []float64 {
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	if lo == hi {
		d := 0.001 * math.Abs(lo)
		if lo == 0 {
			d = 0.001
		}
		lo -= d
		hi += d
		return linspace(lo, hi, n+1)
	}

	edges := linspace(lo, hi, n+1)
	edges[0] -= (hi - lo) * 0.001
	return edges
}

func linspace(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	out[n-1] = hi
	return out
}

// formatEdge rounds to three digits after the leading zeros of the
// fractional part.
func formatEdge(f float64) string { return formatEdgeAt(f, 0) }

// formatEdgeAt is formatEdge with extra more digits.
func formatEdgeAt(f float64, extra int) string {
	whole, frac := math.Modf(f)
	if frac == 0 {
		return strconv.FormatFloat(f, 'f', 1, 64)
	}
	digits := 3
	if whole == 0 {
		digits = int(-math.Floor(math.Log10(math.Abs(frac)))) - 1 + 3
	}
	digits += extra
	p := math.Pow(10, float64(digits))
	r := math.Round(f*p) / p
	s := strconv.FormatFloat(r, 'f', -1, 64)
	if r == math.Trunc(r) {
		s = strconv.FormatFloat(r, 'f', 1, 64)
	}
	return s
}

// maxExtraDigits bounds the precision Labels adds before falling back to
// the shortest exact representation.
const maxExtraDigits = 12

// Labels returns the bin labels in bin order. Narrow windows can round two
// bins to the same label; precision is raised until all labels differ.
func (h *Histogram) Labels() []string {
	labels := make([]string, len(h.Bins))
	for extra := 0; extra <= maxExtraDigits; extra++ {
		seen := make(map[string]struct{}, len(h.Bins))
		for i, b := range h.Bins {
			labels[i] = "(" + formatEdgeAt(b.Lower, extra) + ", " + formatEdgeAt(b.Upper, extra) + "]"
			seen[labels[i]] = struct{}{}
		}
		if len(seen) == len(labels) {
			return labels
		}
	}
	for i, b := range h.Bins {
		labels[i] = "(" + strconv.FormatFloat(b.Lower, 'g', -1, 64) + ", " + strconv.FormatFloat(b.Upper, 'g', -1, 64) + "]"
	}
	return labels
}

// JSON returns the bin counts keyed by interval, lowest bin first.
func (h *Histogram) JSON() table.Object {
	obj := make(table.Object, 0, len(h.Bins))
	for i, label := range h.Labels() {
		obj.Set(label, h.Bins[i].Count)
	}
	return obj
}
