// =============================================================================
// crsmerge - Reports
// =============================================================================
//
// This package turns a list of transactions into the aggregate files of the
// data overview:
//
//   - histograms of project sizes over fixed value windows
//   - the per-year distribution over income groups (sum, mean, median, count)
//   - sunburst groupings, a value sum per key combination
//   - one XLSX workbook holding all of the above with native charts
//
// RECORD SELECTION:
//   Records pass the year window first, then (unless disabled) records with
//   a blank or zero value are dropped. The distribution and the groupings
//   further keep only the configured income groups.
//
// OUTPUT LAYOUT:
//   <dir>/<from_Y_upto_Y>/<base>-<suffix>.json
//   <dir>/<from_Y_upto_Y>/<workbook>
//
// =============================================================================

package report

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"github.com/ginjaninja78/crsmerge/internal/crs"
	"github.com/ginjaninja78/crsmerge/pkg/utils"
)

// DefaultIncomegroups are the groups the distribution and groupings keep.
var DefaultIncomegroups = []string{"LDCs", "LMICs", "UMICs"}

// Default base file names.
const (
	DefaultHistogramBase   = "projects_commitsizes"
	DefaultIncomegroupBase = "incomegroups"
	DefaultGroupingBase    = "projects_grouping"
	DefaultWorkbook        = "overview.xlsx"
)

// =============================================================================
// OPTIONS
// =============================================================================

// Options controls a report run.
type Options struct {
	// ValueColumn is the amount column that is summed and binned.
	ValueColumn string

	// Window restricts records by commitment year.
	Window crs.YearWindow

	// KeepZeroValues disables dropping records with a blank or zero value.
	KeepZeroValues bool

	// Incomegroups restricts the distribution and the groupings. Empty keeps
	// every group.
	Incomegroups []string

	// IncomegroupColumn is read for the group of a record. It can point at
	// one of the historical columns added by the incomegroup package.
	IncomegroupColumn string

	// Bins is the number of histogram bins per window.
	Bins int

	// Windows are the histogram value windows.
	Windows []Window

	// Groupings are the key combinations of the sunburst files.
	Groupings [][]string

	// Workbook is the file name of the XLSX workbook. Empty skips it.
	Workbook string

	HistogramBase   string
	IncomegroupBase string
	GroupingBase    string
}

// DefaultOptions returns the options of the reference analysis for a value
// column.
func DefaultOptions(valueColumn string) Options {
	return Options{
		ValueColumn:       valueColumn,
		Window:            crs.YearWindow{Stop: crs.CurrentYear()},
		Incomegroups:      append([]string(nil), DefaultIncomegroups...),
		IncomegroupColumn: crs.ColIncomegroup,
		Bins:              DefaultBins,
		Windows:           DefaultWindows(),
		Groupings:         DefaultGroupings(),
		Workbook:          DefaultWorkbook,
		HistogramBase:     DefaultHistogramBase,
		IncomegroupBase:   DefaultIncomegroupBase,
		GroupingBase:      DefaultGroupingBase,
	}
}

func (o Options) withDefaults() Options {
	if o.IncomegroupColumn == "" {
		o.IncomegroupColumn = crs.ColIncomegroup
	}
	if o.Bins <= 0 {
		o.Bins = DefaultBins
	}
	if o.HistogramBase == "" {
		o.HistogramBase = DefaultHistogramBase
	}
	if o.IncomegroupBase == "" {
		o.IncomegroupBase = DefaultIncomegroupBase
	}
	if o.GroupingBase == "" {
		o.GroupingBase = DefaultGroupingBase
	}
	return o
}

// =============================================================================
// SELECTION
// =============================================================================

// Select applies the year window and the zero-value filter.
func Select(records []crs.Transaction, opts Options) []crs.Transaction {
	out := opts.Window.Apply(records)
	if !opts.KeepZeroValues {
		out = crs.DropZeroValues(out, opts.ValueColumn)
	}
	return out
}

// SelectGroups keeps records whose income group is listed. An empty list
// keeps everything.
func SelectGroups(records []crs.Transaction, column string, groups []string) []crs.Transaction {
	if len(groups) == 0 {
		return records
	}
	keep := make(map[string]struct{}, len(groups))
	for _, g := range groups {
		keep[g] = struct{}{}
	}
	out := make([]crs.Transaction, 0, len(records))
	for _, r := range records {
		g, _ := r.Field(column)
		if _, ok := keep[g]; ok {
			out = append(out, r)
		}
	}
	return out
}

// =============================================================================
// RUN
// =============================================================================

// Report is everything one Generate call computed and wrote.
type Report struct {
	Dir          string
	Records      int
	Histograms   []*Histogram
	Distribution *Distribution
	Groupings    []*Grouping
	Files        []string
}

// Generate computes all reports over records and writes them below dir.
func Generate(records []crs.Transaction, dir string, opts Options, logger *slog.Logger) (*Report, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.ValueColumn == "" {
		return nil, errors.New("no value column configured")
	}
	opts = opts.withDefaults()

	target := filepath.Join(dir, opts.Window.DirName())
	if err := os.MkdirAll(target, 0755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}

	selected := Select(records, opts)
	grouped := SelectGroups(selected, opts.IncomegroupColumn, opts.Incomegroups)
	logger.Info("selected records for report",
		"value", opts.ValueColumn,
		"window", opts.Window.DirName(),
		"input", len(records),
		"selected", len(selected),
		"in_groups", len(grouped))

	rep := &Report{Dir: target, Records: len(selected)}

	values := Values(selected, opts.ValueColumn)
	for _, w := range opts.Windows {
		h := BuildHistogram(values, w, opts.Bins)
		rep.Histograms = append(rep.Histograms, h)
		if h.Count == 0 {
			logger.Warn("no data for histogram window", "window", w.Label())
			continue
		}
		path := filepath.Join(target, fmt.Sprintf("%s-%s.json", opts.HistogramBase, w.Label()))
		if err := writeJSON(path, h.JSON()); err != nil {
			return nil, err
		}
		rep.Files = append(rep.Files, path)
	}

	rep.Distribution = BuildDistribution(grouped, opts.ValueColumn, opts.IncomegroupColumn)
	for _, view := range rep.Distribution.Views() {
		path := filepath.Join(target, fmt.Sprintf("%s-%s.json", opts.IncomegroupBase, view.Name))
		if err := writeJSON(path, view.Data); err != nil {
			return nil, err
		}
		rep.Files = append(rep.Files, path)
	}

	for _, keys := range opts.Groupings {
		g := BuildGrouping(grouped, keys, opts.ValueColumn, opts.IncomegroupColumn)
		rep.Groupings = append(rep.Groupings, g)
		path := filepath.Join(target, fmt.Sprintf("%s-%s.json", opts.GroupingBase, g.Name()))
		if err := writeJSON(path, g.JSON()); err != nil {
			return nil, err
		}
		rep.Files = append(rep.Files, path)
	}

	if opts.Workbook != "" {
		path := filepath.Join(target, opts.Workbook)
		if err := WriteWorkbook(path, rep); err != nil {
			return nil, err
		}
		rep.Files = append(rep.Files, path)
	}

	logger.Info("report written", "dir", target, "files", len(rep.Files))
	return rep, nil
}

func writeJSON(path string, v any) error {
	err := utils.WriteFileAtomic(path, func(w io.Writer) error {
		return json.NewEncoder(w).Encode(v)
	})
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
