// =============================================================================
// crsmerge - Report Command
// =============================================================================
//
// COMMAND USAGE:
//   crsmerge report [flags]
//
// FLAGS:
//   --set         : Dataset to report on
//   --value       : Value column, repeatable (default: commitments and
//                   disbursements)
//   --start-year  : First commitment year, inclusive
//   --stop-year   : Last commitment year, inclusive
//   --scope       : Report scope, repeatable ("all" or a configured scope)
//   --workbook    : File name of the XLSX workbook, empty to skip
//
// OUTPUT:
//   <results>/<value>/<scope>[/from_<Y>_upto_<Y>]/
//     projects_commitsizes-<lo>-<hi>.json
//     incomegroups-{sum,count}-{absolut,percent}.json, -mean, -median
//     projects_grouping-<keys>.json
//     overview.xlsx
//
// =============================================================================

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate histogram, income-group and grouping reports",
	Long: `Report runs every configured value column over every selected scope and
writes the histogram, income-group distribution and grouping data as JSON,
plus a workbook with charts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline(cmd)
		if err != nil {
			return err
		}
		defer p.Close()

		res, err := p.Report(cmd.Context())
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		renderReports(w, res.Reports)
		fmt.Fprintf(w, "Summary:    %s\n", res.Summary)
		fmt.Fprintf(w, "Time:       %s\n", res.Duration)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)

	flags := reportCmd.Flags()
	flags.String("set", "", "Dataset to report on")
	flags.StringSlice("value", nil, "Value column (repeatable)")
	flags.Int("start-year", 0, "First commitment year, inclusive")
	flags.Int("stop-year", 0, "Last commitment year, inclusive")
	flags.StringSlice("scope", nil, "Report scope (repeatable)")
	flags.String("workbook", "", "File name of the XLSX workbook")
}
