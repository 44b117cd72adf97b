// =============================================================================
// crsmerge - Configuration Module
// =============================================================================
//
// This module loads the run configuration. Values are layered, later layers
// winning:
//
//   1. Built-in defaults
//   2. The YAML config file (crsmerge.yaml unless --config says otherwise)
//   3. Environment variables with the CRSMERGE_ prefix; "__" separates
//      nesting levels, e.g. CRSMERGE_CACHE__BACKEND=sqlite
//   4. Command line flags that were explicitly set
//
// After decoding, list-valued settings that are still empty get their
// defaults and the result is validated. Validation creates missing
// directories.
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/ginjaninja78/crsmerge/internal/cache"
	"github.com/ginjaninja78/crsmerge/internal/countrycode"
	"github.com/ginjaninja78/crsmerge/internal/crs"
	"github.com/ginjaninja78/crsmerge/internal/export"
	"github.com/ginjaninja78/crsmerge/internal/indicator"
	"github.com/ginjaninja78/crsmerge/internal/logging"
	"github.com/ginjaninja78/crsmerge/internal/merge"
	"github.com/ginjaninja78/crsmerge/internal/report"
	"github.com/ginjaninja78/crsmerge/internal/worldbank"
)

// DefaultConfigFile is read when no --config flag is given.
const DefaultConfigFile = "crsmerge.yaml"

// EnvPrefix is the prefix of configuration environment variables.
const EnvPrefix = "CRSMERGE_"

// DatasetAll selects every archive in the data directory.
const DatasetAll = "all"

// =============================================================================
// CONFIGURATION STRUCTURE
// =============================================================================

// Config holds the configuration of a run.
type Config struct {
	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// DataDir holds the CRS extract archives and the income-group files.
	// Default: "./data"
	DataDir string `koanf:"data_dir" yaml:"data_dir"`

	// CacheDir holds cached snapshots.
	// Default: "./cache"
	CacheDir string `koanf:"cache_dir" yaml:"cache_dir"`

	// ResultsDir is the root of the report and microdata output.
	// Default: "./results"
	ResultsDir string `koanf:"results_dir" yaml:"results_dir"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogLevel controls the verbosity of logging.
	// Valid values: "debug", "info", "warn", "error"
	LogLevel string `koanf:"log_level" yaml:"log_level"`

	// LogFormat is "text" or "json".
	LogFormat string `koanf:"log_format" yaml:"log_format"`

	// Verbose forces debug logging.
	Verbose bool `koanf:"verbose" yaml:"verbose"`

	// =========================================================================
	// INPUT SETTINGS
	// =========================================================================

	// MaxConcurrency is the maximum number of archives decoded at once.
	// Default: 4
	MaxConcurrency int `koanf:"max_concurrency" yaml:"max_concurrency"`

	// Dataset names the set of archives to load, or "all".
	// Default: "sane commitment"
	Dataset string `koanf:"dataset" yaml:"dataset"`

	// Datasets adds or replaces named sets. Keys are set names, values are
	// archive names relative to DataDir.
	Datasets map[string][]string `koanf:"datasets" yaml:"datasets"`

	// Input controls how archives are decoded.
	Input crs.Settings `koanf:"input" yaml:"input"`

	Cache        CacheConfig        `koanf:"cache" yaml:"cache"`
	WorldBank    WorldBankConfig    `koanf:"worldbank" yaml:"worldbank"`
	Mapping      MappingConfig      `koanf:"mapping" yaml:"mapping"`
	Merge        MergeConfig        `koanf:"merge" yaml:"merge"`
	Incomegroups IncomegroupsConfig `koanf:"incomegroups" yaml:"incomegroups"`
	Reports      ReportsConfig      `koanf:"reports" yaml:"reports"`
}

// CacheConfig selects the snapshot store.
type CacheConfig struct {
	// Backend is "file", "sqlite" or "none".
	Backend string `koanf:"backend" yaml:"backend"`
}

// WorldBankConfig controls the indicator source.
type WorldBankConfig struct {
	BaseURL string        `koanf:"base_url" yaml:"base_url"`
	Timeout time.Duration `koanf:"timeout" yaml:"timeout"`
	PerPage int           `koanf:"per_page" yaml:"per_page"`

	// Series are the indicator codes fetched and merged.
	Series []string `koanf:"series" yaml:"series"`

	// Scaled lists the series multiplied by ScaleFactor.
	Scaled      []string `koanf:"scaled" yaml:"scaled"`
	ScaleFactor float64  `koanf:"scale_factor" yaml:"scale_factor"`

	// FirstYear and LastYear bound the fetched date range. A zero LastYear
	// means the current year.
	FirstYear int `koanf:"first_year" yaml:"first_year"`
	LastYear  int `koanf:"last_year" yaml:"last_year"`
}

// MappingConfig controls the identifier mapping.
type MappingConfig struct {
	// Dataset names the set whose donors and recipients feed the map. It is
	// independent of the run's dataset so the map does not change with it.
	// Default: "fullset"
	Dataset string `koanf:"dataset" yaml:"dataset"`

	// TablesFile replaces the built-in reference tables when set.
	TablesFile string `koanf:"tables_file" yaml:"tables_file"`

	// Denylist is "report" or "enforce".
	Denylist string `koanf:"denylist" yaml:"denylist"`

	// IncludeAggregates keeps World Bank regional aggregates as candidates.
	IncludeAggregates bool `koanf:"include_aggregates" yaml:"include_aggregates"`
}

// MergeConfig controls the series merge and the microdata export.
type MergeConfig struct {
	// Join is "left" or "inner".
	Join      string `koanf:"join" yaml:"join"`
	Donor     bool   `koanf:"donor" yaml:"donor"`
	Recipient bool   `koanf:"recipient" yaml:"recipient"`

	// Features are the exported columns. Empty means the default features.
	Features []string `koanf:"features" yaml:"features"`

	// Output is the base file name of the microdata files. It may hold the
	// placeholders {set}, {join}, {run}, {date}, {time}, {timestamp} and
	// {uuid}.
	Output string `koanf:"output" yaml:"output"`

	// Incomegroups adds the historical income-group columns before export.
	Incomegroups bool `koanf:"incomegroups" yaml:"incomegroups"`
}

// IncomegroupsConfig locates the historical classification files, relative
// to DataDir unless absolute. An empty path skips that source.
type IncomegroupsConfig struct {
	WorldBankFile string `koanf:"worldbank_file" yaml:"worldbank_file"`
	OECDFile      string `koanf:"oecd_file" yaml:"oecd_file"`
}

// ReportsConfig controls the report command.
type ReportsConfig struct {
	// ValueColumns are reported one after another.
	ValueColumns []string `koanf:"value_columns" yaml:"value_columns"`

	// StartYear and StopYear bound the commitment year, inclusive. Zero
	// leaves a side open.
	StartYear int `koanf:"start_year" yaml:"start_year"`
	StopYear  int `koanf:"stop_year" yaml:"stop_year"`

	Incomegroups      []string `koanf:"incomegroups" yaml:"incomegroups"`
	IncomegroupColumn string   `koanf:"incomegroup_column" yaml:"incomegroup_column"`
	Bins              int      `koanf:"bins" yaml:"bins"`
	KeepZeroValues    bool     `koanf:"keep_zero_values" yaml:"keep_zero_values"`
	Workbook          string   `koanf:"workbook" yaml:"workbook"`

	// Scopes are the named record filters. The "all" scope, which filters
	// nothing, is always available.
	Scopes []crs.Filter `koanf:"scopes" yaml:"scopes"`

	// Run lists the scope names the report command runs.
	Run []string `koanf:"run" yaml:"run"`
}

// =============================================================================
// LOADING
// =============================================================================

// flagKeys maps command line flag names to configuration keys. Flags not
// listed here are not configuration.
var flagKeys = map[string]string{
	"data-dir":        "data_dir",
	"cache-dir":       "cache_dir",
	"results-dir":     "results_dir",
	"log-level":       "log_level",
	"log-format":      "log_format",
	"verbose":         "verbose",
	"max-concurrency": "max_concurrency",
	"set":             "dataset",
	"mapping-set":     "mapping.dataset",
	"cache":           "cache.backend",
	"denylist":        "mapping.denylist",
	"join":            "merge.join",
	"features":        "merge.features",
	"output":          "merge.output",
	"incomegroups":    "merge.incomegroups",
	"value":           "reports.value_columns",
	"start-year":      "reports.start_year",
	"stop-year":       "reports.stop_year",
	"scope":           "reports.run",
	"workbook":        "reports.workbook",
}

// negatedFlags set a boolean key to the opposite of the flag value.
var negatedFlags = map[string]string{
	"no-donor":     "merge.donor",
	"no-recipient": "merge.recipient",
}

// defaults are the scalar defaults. List settings are filled by
// applyDefaults.
func defaults() map[string]interface{} {
	return map[string]interface{}{
		"data_dir":                    "./data",
		"cache_dir":                   "./cache",
		"results_dir":                 "./results",
		"log_level":                   "info",
		"log_format":                  logging.FormatText,
		"verbose":                     false,
		"max_concurrency":             4,
		"dataset":                     "sane commitment",
		"input.delimiter":             crs.DefaultSettings().Delimiter,
		"input.encoding":              crs.DefaultSettings().Encoding,
		"cache.backend":               cache.BackendFile,
		"worldbank.base_url":          worldbank.DefaultBaseURL,
		"worldbank.timeout":           "60s",
		"worldbank.per_page":          worldbank.DefaultPerPage,
		"worldbank.scale_factor":      float64(indicator.DefaultScaleFactor),
		"worldbank.first_year":        indicator.FirstYear,
		"mapping.dataset":             crs.SetFull,
		"mapping.denylist":            string(countrycode.DenylistReport),
		"mapping.include_aggregates":  false,
		"merge.join":                  string(merge.JoinLeft),
		"merge.donor":                 true,
		"merge.recipient":             true,
		"merge.output":                export.DefaultBase,
		"merge.incomegroups":          false,
		"incomegroups.worldbank_file": "OGHIST.xlsx",
		"incomegroups.oecd_file":      "oecd-incomegroup-history.csv",
		"reports.incomegroup_column":  crs.ColIncomegroup,
		"reports.bins":                report.DefaultBins,
		"reports.workbook":            report.DefaultWorkbook,
	}
}

// Load reads the configuration from cfgFile, the environment and flags.
// A missing cfgFile is not an error when it is the default file name.
//
// PARAMETERS:
//   - cfgFile: The path to the YAML file. Empty means DefaultConfigFile.
//   - flags: The command flags. Only flags that were set are applied.
//
// RETURNS:
//   - The validated configuration.
//   - An error if a layer cannot be read or validation fails.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	explicit := cfgFile != ""
	if !explicit {
		cfgFile = DefaultConfigFile
	}
	if _, err := os.Stat(cfgFile); err == nil {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", cfgFile, err)
		}
	} else if explicit {
		return nil, fmt.Errorf("failed to read config file %s: %w", cfgFile, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, flagValue(flags)), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// envKey turns CRSMERGE_CACHE__BACKEND into cache.backend.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func flagValue(flags *pflag.FlagSet) func(f *pflag.Flag) (string, interface{}) {
	return func(f *pflag.Flag) (string, interface{}) {
		if !f.Changed {
			return "", nil
		}
		if key, ok := negatedFlags[f.Name]; ok {
			v, _ := flags.GetBool(f.Name)
			return key, !v
		}
		key, ok := flagKeys[f.Name]
		if !ok {
			return "", nil
		}
		return key, posflag.FlagVal(flags, f)
	}
}

// =============================================================================
// DEFAULTS AND VALIDATION
// =============================================================================

// applyDefaults fills list settings that are still empty.
func applyDefaults(cfg *Config) {
	if len(cfg.WorldBank.Series) == 0 {
		cfg.WorldBank.Series = append([]string(nil), indicator.DefaultSeries...)
	}
	if cfg.WorldBank.Scaled == nil {
		cfg.WorldBank.Scaled = append([]string(nil), indicator.DefaultScaled...)
	}
	if cfg.WorldBank.LastYear == 0 {
		cfg.WorldBank.LastYear = time.Now().Year()
	}
	if len(cfg.Merge.Features) == 0 {
		cfg.Merge.Features = export.DefaultFeatures(cfg.WorldBank.Series)
	}
	if len(cfg.Reports.ValueColumns) == 0 {
		cfg.Reports.ValueColumns = []string{"USD_Commitment_Defl", "USD_Disbursement_Defl"}
	}
	if cfg.Reports.Incomegroups == nil {
		cfg.Reports.Incomegroups = append([]string(nil), report.DefaultIncomegroups...)
	}
	if len(cfg.Reports.Scopes) == 0 {
		cfg.Reports.Scopes = crs.DefaultFocusFilters()
	}
	if len(cfg.Reports.Run) == 0 {
		cfg.Reports.Run = []string{ScopeAll}
	}
}

// validate checks enums and ranges and creates the directories.
func validate(cfg *Config) error {
	var errs []error

	if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(cfg.LogFormat) {
	case logging.FormatText, logging.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", cfg.LogFormat))
	}
	if cfg.MaxConcurrency < 1 {
		errs = append(errs, fmt.Errorf("max_concurrency must be at least 1, got %d", cfg.MaxConcurrency))
	}
	switch cfg.Cache.Backend {
	case cache.BackendFile, cache.BackendSQLite, cache.BackendNone:
	default:
		errs = append(errs, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend))
	}
	if _, err := countrycode.ParseDenylistMode(cfg.Mapping.Denylist); err != nil {
		errs = append(errs, err)
	}
	if _, err := merge.ParseJoinMode(cfg.Merge.Join); err != nil {
		errs = append(errs, err)
	}
	for _, name := range []string{cfg.Dataset, cfg.Mapping.Dataset} {
		if name == DatasetAll {
			continue
		}
		if _, ok := cfg.Sets()[name]; !ok {
			errs = append(errs, fmt.Errorf("unknown dataset %q", name))
		}
	}
	if cfg.WorldBank.FirstYear > cfg.WorldBank.LastYear {
		errs = append(errs, fmt.Errorf("worldbank.first_year %d is after last_year %d", cfg.WorldBank.FirstYear, cfg.WorldBank.LastYear))
	}
	if cfg.Reports.StartYear != 0 && cfg.Reports.StopYear != 0 && cfg.Reports.StartYear > cfg.Reports.StopYear {
		errs = append(errs, fmt.Errorf("reports.start_year %d is after stop_year %d", cfg.Reports.StartYear, cfg.Reports.StopYear))
	}
	if cfg.Reports.Bins < 1 {
		errs = append(errs, fmt.Errorf("reports.bins must be at least 1, got %d", cfg.Reports.Bins))
	}
	for _, name := range cfg.Reports.Run {
		if _, ok := cfg.Scope(name); !ok {
			errs = append(errs, fmt.Errorf("unknown report scope %q", name))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	for _, dir := range []string{cfg.DataDir, cfg.CacheDir, cfg.ResultsDir} {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
		}
	}
	return nil
}

// =============================================================================
// DERIVED SETTINGS
// =============================================================================

// ScopeAll is the report scope that filters nothing.
const ScopeAll = "all"

// Sets returns the built-in dataset sets with Datasets applied on top.
func (c *Config) Sets() map[string][]string {
	sets := crs.DefaultSets()
	for name, files := range c.Datasets {
		sets[name] = files
	}
	return sets
}

// Scope returns the named report scope.
func (c *Config) Scope(name string) (crs.Filter, bool) {
	if name == ScopeAll {
		return crs.Filter{Name: ScopeAll}, true
	}
	for _, s := range c.Reports.Scopes {
		if s.Name == name {
			return s, true
		}
	}
	return crs.Filter{}, false
}

// Window returns the report year window.
func (c *Config) Window() crs.YearWindow {
	return crs.YearWindow{Start: c.Reports.StartYear, Stop: c.Reports.StopYear}
}

// Scale returns the indicator scaling.
func (c *Config) Scale() indicator.ScaleOptions {
	return indicator.ScaleOptions{
		Indicators: append([]string(nil), c.WorldBank.Scaled...),
		Factor:     c.WorldBank.ScaleFactor,
	}
}

// MergeOptions returns the merge options. The join mode was validated.
func (c *Config) MergeOptions() merge.Options {
	mode, _ := merge.ParseJoinMode(c.Merge.Join)
	return merge.Options{Mode: mode, Donor: c.Merge.Donor, Recipient: c.Merge.Recipient}
}

// DenylistMode returns the mapping denylist mode. The mode was validated.
func (c *Config) DenylistMode() countrycode.DenylistMode {
	mode, _ := countrycode.ParseDenylistMode(c.Mapping.Denylist)
	return mode
}

// ReportOptions returns the report options for one value column.
func (c *Config) ReportOptions(valueColumn string) report.Options {
	opts := report.DefaultOptions(valueColumn)
	opts.Window = c.Window()
	opts.KeepZeroValues = c.Reports.KeepZeroValues
	opts.Incomegroups = append([]string(nil), c.Reports.Incomegroups...)
	opts.IncomegroupColumn = c.Reports.IncomegroupColumn
	opts.Bins = c.Reports.Bins
	opts.Workbook = c.Reports.Workbook
	return opts
}

// WorldBankOptions returns the client options.
func (c *Config) WorldBankOptions() []worldbank.Option {
	return []worldbank.Option{
		worldbank.WithBaseURL(c.WorldBank.BaseURL),
		worldbank.WithTimeout(c.WorldBank.Timeout),
		worldbank.WithPerPage(c.WorldBank.PerPage),
	}
}
