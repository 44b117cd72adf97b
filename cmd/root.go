// =============================================================================
// crsmerge - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. All other commands
// are attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (crsmerge)
//   ├── fetchCmd   (crsmerge fetch)
//   ├── mappingCmd (crsmerge mapping)
//   ├── tablesCmd  (crsmerge tables)
//   ├── mergeCmd   (crsmerge merge)
//   ├── reportCmd  (crsmerge report)
//   └── versionCmd (crsmerge version)
//
// CONFIGURATION:
//   Before any command runs, the root command
//   1. loads the configuration (defaults, file, CRSMERGE_ env, flags)
//   2. builds the slog logger
//   3. stores both in the command context
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/crsmerge/internal/config"
	"github.com/ginjaninja78/crsmerge/internal/logging"
	"github.com/ginjaninja78/crsmerge/internal/pipeline"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the configuration file.
// Empty means crsmerge.yaml in the current directory, if present.
var cfgFile string

// configKey stores the loaded configuration in the command context.
type configKey struct{}

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "crsmerge",
	Short: "crsmerge - Merge OECD CRS microdata with World Bank indicators",
	Long: `crsmerge reads OECD Creditor Reporting System (CRS) extracts, fetches
World Bank indicator series, reconciles the two country code schemes and
attaches donor and recipient statistics to every transaction.

Key Features:
  - Bidirectional OECD <-> ISO3 country code map with manual overrides
  - Donor and recipient indicators joined by commitment year
  - Historical income groups from the World Bank and the OECD
  - Histogram, income-group and grouping reports with an XLSX workbook
  - Cached downloads and dataset snapshots (file or SQLite)

Example Usage:
  crsmerge fetch                          # Download the World Bank data
  crsmerge mapping --mapping-set playset  # Build and print the country map
  crsmerge merge --join inner             # Merge and export microdata
  crsmerge report --scope germany-water   # Run one report scope`,

	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if cmd.Name() == "help" || cmd.Name() == "version" {
			return nil
		}

		cfg, err := config.Load(cfgFile, cmd.Flags())
		if err != nil {
			return err
		}

		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}

		ctx := context.WithValue(cmd.Context(), configKey{}, cfg)
		ctx = logging.WithLogger(ctx, logger)
		cmd.SetContext(ctx)
		return nil
	},

	SilenceUsage:  true,
	SilenceErrors: true,

	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. This is called by main.main().
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	flags := rootCmd.PersistentFlags()

	flags.StringVar(&cfgFile, "config", "", "Path to the configuration file (default is crsmerge.yaml)")
	flags.BoolP("verbose", "v", false, "Enable debug logging")
	flags.String("log-level", "", "Log level (debug|info|warn|error)")
	flags.String("log-format", "", "Log format (text|json)")
	flags.String("data-dir", "", "Directory holding the CRS archives and income-group files")
	flags.String("cache-dir", "", "Directory holding cached snapshots")
	flags.String("results-dir", "", "Directory receiving reports and microdata")
	flags.String("cache", "", "Cache backend (file|sqlite|none)")
	flags.Int("max-concurrency", 0, "Maximum number of archives decoded at once")

	_ = rootCmd.RegisterFlagCompletionFunc("log-format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{logging.FormatText, logging.FormatJSON}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("cache", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"file", "sqlite", "none"}, cobra.ShellCompDirectiveNoFileComp
	})
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// newLogger builds the logger of a run. --verbose wins over log_level.
func newLogger(cfg *config.Config) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	return logging.New(os.Stderr, level, cfg.LogFormat)
}

// configFrom returns the configuration stored by the root command.
func configFrom(ctx context.Context) (*config.Config, error) {
	if c, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return c, nil
	}
	return nil, fmt.Errorf("configuration not loaded")
}

// newPipeline creates a pipeline for the command's configuration and logger.
func newPipeline(cmd *cobra.Command, opts ...pipeline.Option) (*pipeline.Pipeline, error) {
	cfg, err := configFrom(cmd.Context())
	if err != nil {
		return nil, err
	}
	opts = append([]pipeline.Option{pipeline.WithLogger(logging.FromContext(cmd.Context()))}, opts...)
	return pipeline.New(cfg, opts...)
}
