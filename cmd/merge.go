// =============================================================================
// crsmerge - Merge Command
// =============================================================================
//
// COMMAND USAGE:
//   crsmerge merge [flags]
//
// FLAGS:
//   --set           : Dataset to merge (a named set or "all")
//   --join          : left keeps records without statistics, inner drops them
//   --no-donor      : Do not attach donor statistics
//   --no-recipient  : Do not attach recipient statistics
//   --features      : Columns of the microdata files
//   --incomegroups  : Add the historical income-group columns
//   --output        : Base name of the microdata files
//
// PROCESSING PIPELINE:
//   1. Load the dataset and the World Bank data (cached)
//   2. Build the identifier map and the indicator table
//   3. Merge donor and recipient statistics onto every record
//   4. Write <results>/microdata/<output>.csv and .json
//   5. Write the run summary
//
// =============================================================================

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge World Bank indicators onto the CRS records and export microdata",
	Long: `Merge attaches the configured World Bank indicators to every transaction,
once for the donor and once for the recipient, keyed by commitment year and
country. Records whose donor or recipient has no ISO3 code are excluded and
counted. The merged table is reduced to the configured features and written
as CSV and JSON.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline(cmd)
		if err != nil {
			return err
		}
		defer p.Close()

		res, err := p.Merge(cmd.Context())
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		renderMergeStats(w, res.Stats)
		fmt.Fprintf(w, "Run ID:     %s\n", res.RunID)
		fmt.Fprintf(w, "CSV:        %s\n", res.Files.CSV)
		fmt.Fprintf(w, "JSON:       %s\n", res.Files.JSON)
		fmt.Fprintf(w, "Summary:    %s\n", res.Summary)
		fmt.Fprintf(w, "Time:       %s\n", res.Duration)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mergeCmd)

	flags := mergeCmd.Flags()
	flags.String("set", "", "Dataset to merge (named set or \"all\")")
	flags.String("join", "", "Join mode (left|inner)")
	flags.Bool("no-donor", false, "Do not attach donor statistics")
	flags.Bool("no-recipient", false, "Do not attach recipient statistics")
	flags.StringSlice("features", nil, "Columns of the microdata files")
	flags.Bool("incomegroups", false, "Add the historical income-group columns")
	flags.String("output", "", "Base name of the microdata files ({set}, {join}, {run}, {date} expand)")
	flags.String("denylist", "", "Denylist mode (report|enforce)")

	_ = mergeCmd.RegisterFlagCompletionFunc("join", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"left", "inner"}, cobra.ShellCompDirectiveNoFileComp
	})
}
