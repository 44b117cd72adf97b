// =============================================================================
// crsmerge - Main Entry Point
// =============================================================================
//
// USAGE:
//   crsmerge fetch     - Download the World Bank data into the cache
//   crsmerge mapping   - Build and print the country code map
//   crsmerge tables    - Print or export the reference tables
//   crsmerge merge     - Merge indicators and export microdata
//   crsmerge report    - Generate the reports
//   crsmerge version   - Display the application version
//
// ARCHITECTURE:
//   - cmd/           : CLI command definitions (Cobra)
//   - internal/      : Core logic (not for external import)
//   - pkg/           : Shared file utilities
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/crsmerge/cmd"
)

func main() {
	cmd.Execute()
}
