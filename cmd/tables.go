// =============================================================================
// crsmerge - Tables Command
// =============================================================================
//
// COMMAND USAGE:
//   crsmerge tables [--export file.yaml]
//
// Prints the reference tables of the run (name aliases, denylists and
// overrides) or exports them as YAML for editing. Point mapping.tables_file
// at the edited file to use it.
//
// =============================================================================

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/crsmerge/internal/config"
)

// tablesExport is the path of the YAML export.
var tablesExport string

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "Print or export the country reference tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := configFrom(cmd.Context())
		if err != nil {
			return err
		}
		tables, err := cfg.Tables()
		if err != nil {
			return err
		}

		if tablesExport != "" {
			if err := config.WriteTables(tablesExport, tables); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Tables written to %s\n", tablesExport)
			return nil
		}
		renderTables(cmd.OutOrStdout(), tables)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tablesCmd)

	tablesCmd.Flags().StringVar(&tablesExport, "export", "", "Write the tables as YAML to this file")
}
