// =============================================================================
// crsmerge - Mapping Command
// =============================================================================
//
// COMMAND USAGE:
//   crsmerge mapping [--mapping-set name] [--refresh] [--out file.json]
//
// Builds the OECD <-> ISO3 identifier map from the mapping set and the World Bank
// country table, prints it with the build report and optionally writes it as
// JSON.
//
// =============================================================================

package cmd

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/crsmerge/internal/pipeline"
	"github.com/ginjaninja78/crsmerge/pkg/utils"
)

var (
	// mappingRefresh rebuilds the automatic map instead of reading the cache.
	mappingRefresh bool

	// mappingOut is the path of the JSON export.
	mappingOut string

	// mappingQuiet suppresses the link table.
	mappingQuiet bool
)

var mappingCmd = &cobra.Command{
	Use:   "mapping",
	Short: "Build and print the OECD <-> ISO3 country code map",
	Long: `Mapping matches the donor and recipient names of the dataset against the
World Bank country table, applies the manual overrides and prints the result
together with the entities that could not be matched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline(cmd, pipeline.WithRefresh(mappingRefresh))
		if err != nil {
			return err
		}
		defer p.Close()

		m, err := p.BuildMapping(cmd.Context())
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if !mappingQuiet {
			renderPairs(w, m.Map)
		}
		renderBuildReport(w, m.Report)

		if mappingOut != "" {
			err := utils.WriteFileAtomic(mappingOut, func(w io.Writer) error {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(m.Map)
			})
			if err != nil {
				return fmt.Errorf("failed to write mapping: %w", err)
			}
			fmt.Fprintf(w, "Mapping written to %s\n", mappingOut)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mappingCmd)

	mappingCmd.Flags().String("mapping-set", "", "Dataset to read the entities from (default fullset)")
	mappingCmd.Flags().String("denylist", "", "Denylist mode (report|enforce)")
	mappingCmd.Flags().BoolVar(&mappingRefresh, "refresh", false, "Rebuild instead of reading the cache")
	mappingCmd.Flags().StringVar(&mappingOut, "out", "", "Write the map as JSON to this file")
	mappingCmd.Flags().BoolVarP(&mappingQuiet, "quiet", "q", false, "Print only the build report")
}
