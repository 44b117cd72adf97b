// =============================================================================
// crsmerge - Microdata Export
// =============================================================================
//
// This package writes a table as the microdata files handed to analysts:
//
//   - <base>.csv  ';' separated; header and text cells are always quoted,
//                 numbers are written bare, null cells are empty
//   - <base>.json an object keyed by row position ("0", "1", ...), each row
//                 an object in column order
//
// Both files are written atomically.
//
// =============================================================================

package export

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"

	"github.com/ginjaninja78/crsmerge/internal/indicator"
	"github.com/ginjaninja78/crsmerge/internal/merge"
	"github.com/ginjaninja78/crsmerge/internal/table"
	"github.com/ginjaninja78/crsmerge/pkg/utils"
)

// DefaultBase is the base file name of the microdata files.
const DefaultBase = "microdata"

// Separator is the CSV field separator.
const Separator = ';'

// BaseFeatures are the CRS columns of the microdata files.
var BaseFeatures = []string{
	"DonorName", "RecipientName", "DonorCode", "RecipientCode", "IncomegroupName",
	"USD_Commitment_Defl", "USD_Received_Defl", "ShortDescription", "AgencyName",
	"FlowCode", "SectorCode", "ProjectTitle", "PurposeName", "SectorName",
	"ChannelName", "ChannelReportedName", "ExpectedStartDate", "CompletionDate",
	"LongDescription", "CommitmentDate", "USD_GrantEquiv", "USD_Disbursement_Defl",
}

// DefaultFeatures returns BaseFeatures followed by the recipient column of
// each series. Nil series means indicator.DefaultSeries.
func DefaultFeatures(series []string) []string {
	if series == nil {
		series = indicator.DefaultSeries
	}
	out := append([]string(nil), BaseFeatures...)
	for _, s := range series {
		out = append(out, merge.Recipient.Prefix()+s)
	}
	return out
}

// Files are the paths WriteMicrodata produced.
type Files struct {
	CSV  string
	JSON string
}

// WriteMicrodata writes t as <dir>/<base>.csv and <dir>/<base>.json.
func WriteMicrodata(dir, base string, t *table.Table) (Files, error) {
	if base == "" {
		base = DefaultBase
	}
	files := Files{
		CSV:  filepath.Join(dir, base+".csv"),
		JSON: filepath.Join(dir, base+".json"),
	}

	if err := utils.WriteFileAtomic(files.CSV, func(w io.Writer) error {
		return WriteCSV(w, t)
	}); err != nil {
		return Files{}, fmt.Errorf("failed to write %s: %w", files.CSV, err)
	}

	if err := utils.WriteFileAtomic(files.JSON, func(w io.Writer) error {
		return WriteJSON(w, t)
	}); err != nil {
		return Files{}, fmt.Errorf("failed to write %s: %w", files.JSON, err)
	}
	return files, nil
}

// WriteCSV writes t with every header and text cell quoted.
func WriteCSV(w io.Writer, t *table.Table) error {
	bw := bufio.NewWriter(w)

	for i, c := range t.Columns() {
		if i > 0 {
			bw.WriteByte(Separator)
		}
		bw.WriteString(quote(c))
	}
	bw.WriteByte('\n')

	for r := 0; r < t.Len(); r++ {
		for i, v := range t.Row(r) {
			if i > 0 {
				bw.WriteByte(Separator)
			}
			switch v.Kind() {
			case table.KindString:
				bw.WriteString(quote(v.Text()))
			case table.KindNumber:
				bw.WriteString(v.Text())
			}
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// WriteJSON writes t keyed by row position.
func WriteJSON(w io.Writer, t *table.Table) error {
	return json.NewEncoder(w).Encode(t.IndexObject())
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
