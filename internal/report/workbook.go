package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/crsmerge/pkg/utils"
)

// =============================================================================
// WORKBOOK
// =============================================================================

// Sheet names.
const (
	SheetIncomegroups = "Incomegroups"
	SheetHistograms   = "Histograms"
)

// maxSheetName is the Excel limit on sheet name length.
const maxSheetName = 31

// WriteWorkbook writes the report as one XLSX file: the income-group tables
// with a clustered and a percent-stacked column chart, one bin table with a
// column chart per non-empty histogram window, and one sheet per grouping.
func WriteWorkbook(path string, rep *Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetIncomegroups); err != nil {
		return fmt.Errorf("failed to create workbook: %w", err)
	}
	if rep.Distribution != nil {
		if err := writeDistributionSheet(f, rep.Distribution); err != nil {
			return fmt.Errorf("failed to write %s sheet: %w", SheetIncomegroups, err)
		}
	}

	if _, err := f.NewSheet(SheetHistograms); err != nil {
		return fmt.Errorf("failed to create workbook: %w", err)
	}
	if err := writeHistogramSheet(f, rep.Histograms); err != nil {
		return fmt.Errorf("failed to write %s sheet: %w", SheetHistograms, err)
	}

	used := map[string]bool{SheetIncomegroups: true, SheetHistograms: true}
	for _, g := range rep.Groupings {
		name := sheetName(g.Name(), used)
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
		if err := writeGroupingSheet(f, name, g); err != nil {
			return fmt.Errorf("failed to write sheet %s: %w", name, err)
		}
	}

	err := utils.WriteFileAtomic(path, func(w io.Writer) error {
		_, err := f.WriteTo(w)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", path, err)
	}
	return nil
}

func writeDistributionSheet(f *excelize.File, d *Distribution) error {
	sheet := SheetIncomegroups
	if len(d.Years) == 0 || len(d.Groups) == 0 {
		return f.SetCellValue(sheet, "A1", "no data")
	}

	header := make([]any, 0, len(d.Groups)+1)
	header = append(header, "Year")
	for _, g := range d.Groups {
		header = append(header, g)
	}

	// Absolute sums start at row 1, shares below them.
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i, y := range d.Years {
		row := []any{fmt.Sprint(y)}
		for _, g := range d.Groups {
			row = append(row, d.Sum(y, g).InexactFloat64())
		}
		if err := f.SetSheetRow(sheet, cell(1, i+2), &row); err != nil {
			return err
		}
	}

	pctTop := len(d.Years) + 3
	pctHeader := append([]any{"Year (%)"}, header[1:]...)
	if err := f.SetSheetRow(sheet, cell(1, pctTop), &pctHeader); err != nil {
		return err
	}
	for i, y := range d.Years {
		row := []any{fmt.Sprint(y)}
		for _, g := range d.Groups {
			if v, ok := d.SumPercent(y, g); ok {
				row = append(row, v)
			} else {
				row = append(row, nil)
			}
		}
		if err := f.SetSheetRow(sheet, cell(1, pctTop+i+1), &row); err != nil {
			return err
		}
	}

	lastRow := len(d.Years) + 1
	series := make([]excelize.ChartSeries, len(d.Groups))
	for j := range d.Groups {
		col := j + 2
		series[j] = excelize.ChartSeries{
			Name:       ref(sheet, col, 1),
			Categories: rangeRef(sheet, 1, 2, 1, lastRow),
			Values:     rangeRef(sheet, col, 2, col, lastRow),
		}
	}

	anchor := len(d.Groups) + 3
	charts := []struct {
		kind  excelize.ChartType
		title string
		row   int
	}{
		{excelize.Col, "mUSD per income group (sum)", 1},
		{excelize.ColPercentStacked, "mUSD per income group (percent)", 22},
	}
	for _, c := range charts {
		err := f.AddChart(sheet, cell(anchor, c.row), &excelize.Chart{
			Type:      c.kind,
			Series:    series,
			Title:     []excelize.RichTextRun{{Text: c.title}},
			Legend:    excelize.ChartLegend{Position: "bottom"},
			Dimension: excelize.ChartDimension{Width: 720, Height: 380},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func writeHistogramSheet(f *excelize.File, hs []*Histogram) error {
	sheet := SheetHistograms
	top := 1
	for _, h := range hs {
		if h.Count == 0 {
			continue
		}
		title := []any{
			fmt.Sprintf("%s < x < %s", formatBound(h.Window.Lo), formatBound(h.Window.Hi)),
			fmt.Sprintf("%d projects", h.Count),
			h.Sum.InexactFloat64(),
		}
		if err := f.SetSheetRow(sheet, cell(1, top), &title); err != nil {
			return err
		}
		header := []any{"Bin", "Count", "Sum"}
		if err := f.SetSheetRow(sheet, cell(1, top+1), &header); err != nil {
			return err
		}
		labels := h.Labels()
		for i, b := range h.Bins {
			row := []any{labels[i], b.Count, b.Sum.InexactFloat64()}
			if err := f.SetSheetRow(sheet, cell(1, top+2+i), &row); err != nil {
				return err
			}
		}

		first, last := top+2, top+1+len(h.Bins)
		err := f.AddChart(sheet, cell(5, top), &excelize.Chart{
			Type: excelize.Col,
			Series: []excelize.ChartSeries{{
				Name:       ref(sheet, 2, top+1),
				Categories: rangeRef(sheet, 1, first, 1, last),
				Values:     rangeRef(sheet, 2, first, 2, last),
			}},
			Title:     []excelize.RichTextRun{{Text: fmt.Sprint(title[0])}},
			Legend:    excelize.ChartLegend{Position: "none"},
			Dimension: excelize.ChartDimension{Width: 640, Height: 320},
		})
		if err != nil {
			return err
		}
		top += max(len(h.Bins)+3, 20)
	}
	if top == 1 {
		return f.SetCellValue(sheet, "A1", "no data")
	}
	return nil
}

func writeGroupingSheet(f *excelize.File, sheet string, g *Grouping) error {
	header := make([]any, 0, len(g.Keys)+1)
	for _, k := range g.Keys {
		header = append(header, k)
	}
	header = append(header, g.ValueColumn)
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i, r := range g.Rows {
		row := make([]any, 0, len(r.Keys)+1)
		for _, k := range r.Keys {
			row = append(row, k)
		}
		row = append(row, r.Sum.InexactFloat64())
		if err := f.SetSheetRow(sheet, cell(1, i+2), &row); err != nil {
			return err
		}
	}
	return nil
}

// sheetName cuts name to the Excel limit and makes it unique in used.
func sheetName(name string, used map[string]bool) string {
	base := name
	if len(base) > maxSheetName {
		base = base[:maxSheetName]
	}
	out := base
	for i := 2; used[out]; i++ {
		suffix := fmt.Sprintf("~%d", i)
		out = base
		if len(out)+len(suffix) > maxSheetName {
			out = out[:maxSheetName-len(suffix)]
		}
		out += suffix
	}
	used[out] = true
	return out
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func ref(sheet string, col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row, true)
	return quoteSheet(sheet) + "!" + name
}

func rangeRef(sheet string, col1, row1, col2, row2 int) string {
	from, _ := excelize.CoordinatesToCellName(col1, row1, true)
	to, _ := excelize.CoordinatesToCellName(col2, row2, true)
	return quoteSheet(sheet) + "!" + from + ":" + to
}

func quoteSheet(sheet string) string {
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
}
