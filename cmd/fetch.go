// =============================================================================
// crsmerge - Fetch Command
// =============================================================================
//
// COMMAND USAGE:
//   crsmerge fetch [--refresh]
//
// Downloads the World Bank country table and the configured indicator
// series into the cache, so later runs work offline.
//
// =============================================================================

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/crsmerge/internal/pipeline"
)

// fetchRefresh ignores cached downloads.
var fetchRefresh bool

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the World Bank country table and indicator series",
	Long: `Fetch downloads the World Bank country table and every configured
indicator series and stores them in the cache. Cached data is reused unless
--refresh is given or the configured series or years changed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline(cmd, pipeline.WithRefresh(fetchRefresh))
		if err != nil {
			return err
		}
		defer p.Close()

		res, err := p.Fetch(cmd.Context())
		if err != nil {
			return err
		}
		renderFetch(cmd.OutOrStdout(), res)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().BoolVar(&fetchRefresh, "refresh", false, "Download again even if cached")
}
