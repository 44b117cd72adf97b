package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ginjaninja78/crsmerge/internal/countrycode"
	"github.com/ginjaninja78/crsmerge/internal/crs"
	"github.com/ginjaninja78/crsmerge/internal/export"
	"github.com/ginjaninja78/crsmerge/internal/incomegroup"
	"github.com/ginjaninja78/crsmerge/internal/merge"
	"github.com/ginjaninja78/crsmerge/internal/report"
	"github.com/ginjaninja78/crsmerge/internal/table"
	"github.com/ginjaninja78/crsmerge/pkg/utils"
)

// MicrodataDir is the results subdirectory of the merged microdata.
const MicrodataDir = "microdata"

// =============================================================================
// RESULT STRUCTURES
// =============================================================================

// FetchResult describes a fetch run.
type FetchResult struct {
	Countries  int
	Aggregates int

	// Observations counts the non-null values per indicator.
	Observations map[string]int
	Indicators   []string
}

// MergeResult describes a merge run.
type MergeResult struct {
	RunID   string
	Dataset string
	Mapping *Mapping
	Stats   merge.Stats

	// Incomegroups holds the enrichment stats by target column.
	Incomegroups map[string]incomegroup.Stats

	Columns  []string
	Files    export.Files
	Summary  string
	Duration time.Duration
}

// ReportResult describes a report run.
type ReportResult struct {
	RunID    string
	Dataset  string
	Reports  []ScopeReport
	Summary  string
	Duration time.Duration
}

// ScopeReport is the report of one value column over one scope.
type ScopeReport struct {
	Value  string
	Scope  string
	Report *report.Report
}

// =============================================================================
// FETCH
// =============================================================================

// Fetch loads the country table and the indicator series into the cache.
func (p *Pipeline) Fetch(ctx context.Context) (*FetchResult, error) {
	countries, err := p.Countries(ctx)
	if err != nil {
		return nil, err
	}
	series, err := p.Series(ctx)
	if err != nil {
		return nil, err
	}

	res := &FetchResult{Countries: len(countries), Observations: make(map[string]int, len(series))}
	for _, c := range countries {
		if c.IsAggregate() {
			res.Aggregates++
		}
	}
	for _, s := range series {
		res.Indicators = append(res.Indicators, s.Indicator)
		res.Observations[s.Indicator] = len(s.Observations)
	}
	return res, nil
}

// BuildMapping loads the mapping set and the country table and builds the
// identifier map.
func (p *Pipeline) BuildMapping(ctx context.Context) (*Mapping, error) {
	countries, err := p.Countries(ctx)
	if err != nil {
		return nil, err
	}
	return p.Mapping(ctx, nil, countries)
}

// =============================================================================
// MERGE
// =============================================================================

// Merge runs the full merge and writes the microdata files.
//
// PROCESSING STEPS:
//  1. Load the dataset and the World Bank data
//  2. Build the identifier map and the indicator table
//  3. Optionally add the historical income-group columns
//  4. Merge donor and recipient indicators onto every record
//  5. Extract the configured features and export CSV and JSON
//  6. Write the run summary
func (p *Pipeline) Merge(ctx context.Context) (*MergeResult, error) {
	start := time.Now()
	res := &MergeResult{RunID: p.runID, Dataset: p.cfg.Dataset}

	// =========================================================================
	// STEP 1: LOAD INPUTS
	// =========================================================================

	ds, err := p.Dataset(ctx)
	if err != nil {
		return nil, err
	}
	countries, err := p.Countries(ctx)
	if err != nil {
		return nil, err
	}

	// =========================================================================
	// STEP 2: IDENTIFIER MAP AND INDICATORS
	// =========================================================================

	mapping, err := p.Mapping(ctx, ds, countries)
	if err != nil {
		return nil, err
	}
	res.Mapping = mapping

	indicators, err := p.Indicators(ctx, mapping.Map, countries)
	if err != nil {
		return nil, err
	}

	// =========================================================================
	// STEP 3: INCOME GROUPS
	// =========================================================================

	columns := append([]string(nil), ds.Columns...)
	records := ds.Records
	features := append([]string(nil), p.cfg.Merge.Features...)
	if p.cfg.Merge.Incomegroups {
		var added []string
		records, added, res.Incomegroups, err = p.applyIncomegroups(records, mapping.Map, nil)
		if err != nil {
			return nil, err
		}
		columns = append(columns, added...)
		features = append(features, added...)
	}

	// =========================================================================
	// STEP 4: MERGE
	// =========================================================================

	merger, err := merge.New(mapping.Map, indicators, p.cfg.MergeOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create merger: %w", err)
	}
	merged := merger.Merge(records)
	res.Stats = merged.Stats
	p.logger.Info("records merged", "stats", merged.Stats)

	// =========================================================================
	// STEP 5: EXPORT
	// =========================================================================

	out := table.Extract(merged.Table(columns), features)
	res.Columns = out.Columns()

	dir, err := p.files.ResultsPath(MicrodataDir)
	if err != nil {
		return nil, err
	}
	base := utils.GenerateOutputFileName(p.cfg.Merge.Output, map[string]string{
		"set":  p.cfg.Dataset,
		"join": p.cfg.Merge.Join,
		"run":  p.runID,
	})
	res.Files, err = export.WriteMicrodata(dir, base, out)
	if err != nil {
		return nil, err
	}
	p.logger.Info("microdata written", "csv", res.Files.CSV, "json", res.Files.JSON, "rows", out.Len(), "columns", len(res.Columns))

	// =========================================================================
	// STEP 6: SUMMARY
	// =========================================================================

	res.Duration = time.Since(start)
	summary := p.summary("merge", start)
	summary.AddCount("Records read", ds.Len())
	summary.AddCount("Bad dates", ds.Stats.BadDates)
	summary.AddCount("Map entries", mapping.Map.Len())
	summary.AddCount("Unmatched OECD entities", len(mapping.Report.UnexpectedOECD()))
	summary.AddCount("Unmapped donor", merged.Stats.UnmappedDonor)
	summary.AddCount("Unmapped recipient", merged.Stats.UnmappedRecipient)
	summary.AddCount("Donor without stats", merged.Stats.DonorWithoutStats)
	summary.AddCount("Recipient without stats", merged.Stats.RecipientWithoutStats)
	summary.AddCount("Dropped by inner join", merged.Stats.DroppedByInnerJoin)
	summary.AddCount("Records written", merged.Stats.Output)
	summary.Outputs = append(summary.Outputs, res.Files.CSV, res.Files.JSON)
	for _, e := range mapping.Report.UnexpectedOECD() {
		summary.Warnings = append(summary.Warnings, fmt.Sprintf("no ISO3 code for %s (%s)", e.Name, e.Code))
	}
	if res.Summary, err = p.writeSummary(summary); err != nil {
		return nil, err
	}
	return res, nil
}

// applyIncomegroups adds the history columns whose source file exists. With
// a non-nil only, just those columns are considered.
func (p *Pipeline) applyIncomegroups(records []crs.Transaction, idmap *countrycode.IdentifierMap, only map[string]bool) ([]crs.Transaction, []string, map[string]incomegroup.Stats, error) {
	sources := []struct {
		column string
		path   string
		read   func(path string) (*incomegroup.History, error)
	}{
		{incomegroup.ColumnWorldBank, p.cfg.DataPath(p.cfg.Incomegroups.WorldBankFile), func(path string) (*incomegroup.History, error) {
			return incomegroup.ReadWorldBank(path, idmap)
		}},
		{incomegroup.ColumnOECD, p.cfg.DataPath(p.cfg.Incomegroups.OECDFile), incomegroup.ReadOECD},
	}

	var added []string
	stats := make(map[string]incomegroup.Stats)
	for _, src := range sources {
		if only != nil && !only[src.column] {
			continue
		}
		if src.path == "" || !utils.FileExists(src.path) {
			p.logger.Warn("income-group history not found, column skipped", "column", src.column, "file", src.path)
			continue
		}
		h, err := src.read(src.path)
		if err != nil {
			return nil, nil, nil, err
		}
		var s incomegroup.Stats
		records, s = incomegroup.Apply(records, h, src.column)
		stats[src.column] = s
		added = append(added, src.column)
		p.logger.Info("income groups added", "column", src.column, "stats", s)
	}
	return records, added, stats, nil
}

// =============================================================================
// REPORTS
// =============================================================================

// Report generates the reports of every configured value column and scope
// below <results>/<value>/<scope>.
func (p *Pipeline) Report(ctx context.Context) (*ReportResult, error) {
	start := time.Now()
	res := &ReportResult{RunID: p.runID, Dataset: p.cfg.Dataset}

	ds, err := p.Dataset(ctx)
	if err != nil {
		return nil, err
	}
	records := ds.Records

	// A history column used as group column is added first.
	switch col := p.cfg.Reports.IncomegroupColumn; col {
	case incomegroup.ColumnWorldBank, incomegroup.ColumnOECD:
		var idmap *countrycode.IdentifierMap
		if col == incomegroup.ColumnWorldBank {
			countries, err := p.Countries(ctx)
			if err != nil {
				return nil, err
			}
			mapping, err := p.Mapping(ctx, ds, countries)
			if err != nil {
				return nil, err
			}
			idmap = mapping.Map
		}
		var added []string
		records, added, _, err = p.applyIncomegroups(records, idmap, map[string]bool{col: true})
		if err != nil {
			return nil, err
		}
		if len(added) == 0 {
			return nil, fmt.Errorf("income-group column %q requested but its history file is missing", col)
		}
	}

	summary := p.summary("report", start)
	summary.AddCount("Records read", ds.Len())

	for _, value := range p.cfg.Reports.ValueColumns {
		for _, name := range p.cfg.Reports.Run {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			scope, ok := p.cfg.Scope(name)
			if !ok {
				return nil, fmt.Errorf("unknown report scope %q", name)
			}

			dir, err := p.files.ResultsPath(value, scope.Name)
			if err != nil {
				return nil, err
			}
			selected := scope.Apply(records)
			p.logger.Info("generating report", "value", value, "scope", scope.Name, "records", len(selected))

			rep, err := report.Generate(selected, dir, p.cfg.ReportOptions(value), p.logger)
			if err != nil {
				return nil, fmt.Errorf("failed to generate report %s/%s: %w", value, scope.Name, err)
			}
			res.Reports = append(res.Reports, ScopeReport{Value: value, Scope: scope.Name, Report: rep})
			summary.AddCount(fmt.Sprintf("%s/%s", value, scope.Name), rep.Records)
			summary.Outputs = append(summary.Outputs, rep.Dir)
		}
	}

	res.Duration = time.Since(start)
	if res.Summary, err = p.writeSummary(summary); err != nil {
		return nil, err
	}
	return res, nil
}

// =============================================================================
// SUMMARY
// =============================================================================

func (p *Pipeline) summary(command string, start time.Time) utils.RunSummary {
	return utils.RunSummary{
		RunID:     p.runID,
		Command:   command,
		Dataset:   p.cfg.Dataset,
		StartTime: start,
	}
}

func (p *Pipeline) writeSummary(s utils.RunSummary) (string, error) {
	s.EndTime = time.Now()
	path, err := utils.WriteSummaryLog(s, p.cfg.ResultsDir)
	if err != nil {
		return "", err
	}
	p.logger.Info("run summary written", "path", path)
	return path, nil
}
