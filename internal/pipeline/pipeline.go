// =============================================================================
// crsmerge - Pipeline Module
// =============================================================================
//
// This module runs the stages of a merge or report run against one
// configuration:
//
//   1. Load the CRS dataset (cached per set and input files)
//   2. Fetch the World Bank country table and indicator series (cached)
//   3. Build the OECD <-> ISO3 identifier map from the mapping set (automatic
//      part cached, overrides re-applied on every run)
//   4. Build the wide indicator table
//   5. Merge, extract features and export, or generate reports
//
// Every stage can be called on its own; later stages call the earlier ones.
//
// =============================================================================

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"github.com/ginjaninja78/crsmerge/internal/cache"
	"github.com/ginjaninja78/crsmerge/internal/config"
	"github.com/ginjaninja78/crsmerge/internal/countrycode"
	"github.com/ginjaninja78/crsmerge/internal/crs"
	"github.com/ginjaninja78/crsmerge/internal/indicator"
	"github.com/ginjaninja78/crsmerge/internal/worldbank"
	"github.com/ginjaninja78/crsmerge/pkg/utils"
)

// Cache entry names.
const (
	cacheCountries = "worldbank-countries"
	cacheSeries    = "worldbank-series"
	cacheMapping   = "oecdiso3"
	cacheDataset   = "crs-"
)

// IndicatorSource provides the World Bank country table and indicator
// series. *worldbank.Client satisfies it.
type IndicatorSource interface {
	Countries(ctx context.Context) ([]worldbank.Country, error)
	SeriesSet(ctx context.Context, indicators []string, from, to int) ([]*worldbank.Series, error)
}

// =============================================================================
// PIPELINE STRUCTURE
// =============================================================================

// Pipeline runs the stages of one configuration.
type Pipeline struct {
	cfg    *config.Config
	source IndicatorSource
	store  cache.Store
	files  *utils.FileManager
	logger *slog.Logger

	// runID tags cache entries and the run summary.
	runID string

	// refresh skips cache lookups. Results are still written back.
	refresh bool

	// ownsStore is set when New opened the store and Close must close it.
	ownsStore bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithSource replaces the World Bank client.
func WithSource(s IndicatorSource) Option {
	return func(p *Pipeline) { p.source = s }
}

// WithStore replaces the cache store opened from the configuration.
func WithStore(s cache.Store) Option {
	return func(p *Pipeline) { p.store = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithRefresh makes every cached stage recompute.
func WithRefresh(refresh bool) Option {
	return func(p *Pipeline) { p.refresh = refresh }
}

// =============================================================================
// CONSTRUCTOR
// =============================================================================

// New creates a Pipeline.
//
// PARAMETERS:
//   - cfg: The validated configuration.
//   - opts: Optional replacements for the source, store and logger.
//
// RETURNS:
//   - A new Pipeline. Call Close when done.
//   - An error if the cache store cannot be opened.
func New(cfg *config.Config, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		cfg:    cfg,
		files:  utils.NewFileManager(cfg.DataDir, cfg.CacheDir, cfg.ResultsDir),
		logger: slog.New(slog.DiscardHandler),
		runID:  uuid.NewString(),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.source == nil {
		clientOpts := append(cfg.WorldBankOptions(), worldbank.WithLogger(p.logger))
		p.source = worldbank.NewClient(clientOpts...)
	}
	if p.store == nil {
		store, err := cache.Open(cfg.Cache.Backend, cfg.CacheDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open cache: %w", err)
		}
		p.store = store
		p.ownsStore = true
	}

	p.logger = p.logger.With("run_id", p.runID)
	return p, nil
}

// RunID returns the identifier of this run.
func (p *Pipeline) RunID() string { return p.runID }

// Close releases the cache store if New opened it.
func (p *Pipeline) Close() error {
	if p.ownsStore {
		return p.store.Close()
	}
	return nil
}

// =============================================================================
// STAGE 1: CRS DATASET
// =============================================================================

// Dataset loads the configured CRS set. With dataset "all" every zip archive
// in the data directory is read.
func (p *Pipeline) Dataset(ctx context.Context) (*crs.Dataset, error) {
	return p.loadDataset(ctx, p.cfg.Dataset)
}

// MappingDataset loads the set the identifier map is built from. ds is
// returned as is when it already is that set.
func (p *Pipeline) MappingDataset(ctx context.Context, ds *crs.Dataset) (*crs.Dataset, error) {
	if ds != nil && ds.Name == p.cfg.Mapping.Dataset {
		return ds, nil
	}
	return p.loadDataset(ctx, p.cfg.Mapping.Dataset)
}

func (p *Pipeline) loadDataset(ctx context.Context, set string) (*crs.Dataset, error) {
	paths, err := p.datasetPaths(set)
	if err != nil {
		return nil, err
	}

	filesFP, err := cache.FilesFingerprint(paths)
	if err != nil {
		return nil, fmt.Errorf("failed to fingerprint dataset %q: %w", set, err)
	}
	fingerprint := cache.Fingerprint(filesFP, p.cfg.Input.Delimiter, p.cfg.Input.Encoding)
	name := cacheDataset + set

	return cached(ctx, p, name, fingerprint, func() (*crs.Dataset, error) {
		ds, err := crs.LoadFiles(ctx, set, paths, crs.LoadOptions{
			Settings:       p.cfg.Input,
			MaxConcurrency: p.cfg.MaxConcurrency,
			Logger:         p.logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load dataset %q: %w", set, err)
		}
		p.logger.Info("dataset loaded",
			"dataset", set,
			"files", ds.Stats.Files,
			"rows", ds.Stats.Rows,
			"bad_dates", ds.Stats.BadDates)
		return ds, nil
	})
}

func (p *Pipeline) datasetPaths(set string) ([]string, error) {
	if set == config.DatasetAll {
		paths, err := p.files.DiscoverDataFiles("*.zip")
		if err != nil {
			return nil, err
		}
		if len(paths) == 0 {
			return nil, fmt.Errorf("no zip archives found in %s", p.cfg.DataDir)
		}
		return paths, nil
	}
	return crs.ResolveSet(p.cfg.Sets(), set, p.cfg.DataDir)
}

// =============================================================================
// STAGE 2: WORLD BANK DATA
// =============================================================================

// Countries returns the World Bank country table, aggregates included.
func (p *Pipeline) Countries(ctx context.Context) ([]worldbank.Country, error) {
	fingerprint := cache.Fingerprint(p.cfg.WorldBank.BaseURL)
	return cached(ctx, p, cacheCountries, fingerprint, func() ([]worldbank.Country, error) {
		countries, err := p.source.Countries(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch countries: %w", err)
		}
		p.logger.Info("countries fetched", "count", len(countries))
		return countries, nil
	})
}

// Series returns the configured indicator series over the configured years.
func (p *Pipeline) Series(ctx context.Context) ([]*worldbank.Series, error) {
	wb := p.cfg.WorldBank
	parts := append([]string{wb.BaseURL, strconv.Itoa(wb.FirstYear), strconv.Itoa(wb.LastYear)}, wb.Series...)
	fingerprint := cache.Fingerprint(parts...)

	return cached(ctx, p, cacheSeries, fingerprint, func() ([]*worldbank.Series, error) {
		series, err := p.source.SeriesSet(ctx, wb.Series, wb.FirstYear, wb.LastYear)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch indicator series: %w", err)
		}
		for _, s := range series {
			p.logger.Info("series fetched", "indicator", s.Indicator, "observations", len(s.Observations))
		}
		return series, nil
	})
}

// =============================================================================
// STAGE 3: IDENTIFIER MAP
// =============================================================================

// Mapping is the identifier map of a run with the report of the automatic
// build.
type Mapping struct {
	Map    *countrycode.IdentifierMap
	Report countrycode.BuildReport

	// Status tells whether the automatic part came from the cache.
	Status cache.Status
}

// mappingSnapshot is the cached automatic map.
type mappingSnapshot struct {
	Map    *countrycode.IdentifierMap `json:"map"`
	Report countrycode.BuildReport    `json:"report"`
}

// Mapping builds the identifier map from the entities of the mapping set
// (mapping.dataset) and the country table. ds is the run's dataset and is
// reused when it is that set; it may be nil. Only the automatic links are
// cached; overrides from the reference tables are applied on top every time.
func (p *Pipeline) Mapping(ctx context.Context, ds *crs.Dataset, countries []worldbank.Country) (*Mapping, error) {
	tables, err := p.cfg.Tables()
	if err != nil {
		return nil, err
	}
	mapper, err := countrycode.NewMapper(tables,
		countrycode.WithDenylistMode(p.cfg.DenylistMode()),
		countrycode.WithLogger(p.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create mapper: %w", err)
	}

	source, err := p.MappingDataset(ctx, ds)
	if err != nil {
		return nil, err
	}
	entities := source.Entities()
	refs := References(countries, p.cfg.Mapping.IncludeAggregates)

	automatic := tables.Clone()
	automatic.Overrides = nil
	fingerprint, err := cache.FingerprintValue(struct {
		Dataset  string
		Entities []countrycode.Entity
		Refs     []countrycode.Reference
		Tables   countrycode.Tables
		Mode     countrycode.DenylistMode
	}{source.Name, entities, refs, automatic, p.cfg.DenylistMode()})
	if err != nil {
		return nil, err
	}

	status := cache.Miss
	var snap mappingSnapshot
	if !p.refresh {
		snap, status, err = cache.Load[mappingSnapshot](ctx, p.store, cacheMapping, fingerprint, p.logger)
		if err != nil {
			return nil, err
		}
	}
	if status != cache.Hit || snap.Map == nil {
		status = cache.Miss
		snap.Map, snap.Report = mapper.Automatic(entities, refs)
		if err := cache.Save(ctx, p.store, cacheMapping, fingerprint, p.runID, snap); err != nil {
			p.logger.Warn("failed to cache result", "name", cacheMapping, "error", err)
		}
	}

	m := &Mapping{Map: snap.Map, Report: snap.Report, Status: status}
	m.Report.Overrides = mapper.ApplyOverrides(m.Map)

	p.logger.Info("identifier map ready",
		"dataset", source.Name,
		"entries", m.Map.Len(),
		"matched", m.Report.Matched,
		"unmatched_oecd", len(m.Report.UnmatchedOECD),
		"unexpected_unmatched_oecd", len(m.Report.UnexpectedOECD()),
		"unmatched_worldbank", len(m.Report.UnmatchedWorldBank),
		"overrides", m.Report.Overrides,
		"cache", status.String())
	for _, e := range m.Report.UnexpectedOECD() {
		p.logger.Debug("unmatched oecd entity", "code", e.Code, "name", e.Name)
	}
	return m, nil
}

// References turns the country table into mapper references. Aggregates
// are skipped unless includeAggregates is set.
func References(countries []worldbank.Country, includeAggregates bool) []countrycode.Reference {
	refs := make([]countrycode.Reference, 0, len(countries))
	for _, c := range countries {
		if c.IsAggregate() && !includeAggregates {
			continue
		}
		refs = append(refs, countrycode.Reference{Code: c.ISO3, Name: c.Name, Region: c.Region})
	}
	return refs
}

// =============================================================================
// STAGE 4: INDICATOR TABLE
// =============================================================================

// Indicators builds the wide indicator table restricted to the countries of
// idmap, with the country table attached.
func (p *Pipeline) Indicators(ctx context.Context, idmap *countrycode.IdentifierMap, countries []worldbank.Country) (*indicator.Table, error) {
	series, err := p.Series(ctx)
	if err != nil {
		return nil, err
	}
	t := indicator.Build(series, p.cfg.Scale()).
		FilterCountries(idmap.Contains).
		AttachCountries(countries)
	p.logger.Info("indicator table built", "rows", t.Len(), "indicators", len(t.Indicators()))
	return t, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// cached returns the entry stored under name when its fingerprint matches,
// and otherwise computes, stores and returns a fresh value.
func cached[T any](ctx context.Context, p *Pipeline, name, fingerprint string, compute func() (T, error)) (T, error) {
	if !p.refresh {
		v, status, err := cache.Load[T](ctx, p.store, name, fingerprint, p.logger)
		if err != nil {
			var zero T
			return zero, err
		}
		if status == cache.Hit {
			return v, nil
		}
	}

	v, err := compute()
	if err != nil {
		return v, err
	}
	if err := cache.Save(ctx, p.store, name, fingerprint, p.runID, v); err != nil {
		p.logger.Warn("failed to cache result", "name", name, "error", err)
	}
	return v, nil
}
