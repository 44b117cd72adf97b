package incomegroup

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/ginjaninja78/crsmerge/internal/countrycode"
)

// WorldBankValues maps OGHIST codes to CRS group names. Codes not listed
// (e.g. "..") pass through.
var WorldBankValues = map[string]string{
	"L":   "LDCs",
	"LM":  "LMICs",
	"UM":  "UMICs",
	"H":   "HICs",
	"LM*": "LMICs",
}

// OECDValues maps the long DAC list names to CRS group names.
var OECDValues = map[string]string{
	"High Income Countries":                              "HICs",
	"Least Developed Countries":                          "LDCs",
	"Lower Middle Income Countries":                      "LMICs",
	"More Advanced Developing Countries and Territories": "MADCTs",
	"Other Low Income Countries":                         "Other LICs",
	"Upper Middle Income Countries":                      "UMICs",
}

// missingValue marks a year without classification in OGHIST.
const missingValue = ".."

// =============================================================================
// WORLD BANK (OGHIST)
// =============================================================================

// ReadWorldBank reads the World Bank historical classification from a ';'
// separated CSV or from the first sheet of an .xlsx workbook. The table has
// an "id" column (ISO3), a "Country" column and one column per year.
//
// A year without a value takes the value of the next year that has one.
// ISO3 codes are translated to OECD codes through idmap; codes without an
// entry are kept and will not match any record.
func ReadWorldBank(path string, idmap *countrycode.IdentifierMap) (*History, error) {
	var (
		rows [][]string
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		rows, err = readXLSX(path)
	} else {
		rows, err = readCSV(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	h, err := parseWorldBank(rows, idmap)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return h, nil
}

func parseWorldBank(rows [][]string, idmap *countrycode.IdentifierMap) (*History, error) {
	headerRow := -1
	idCol := -1
	for i, row := range rows {
		for j, cell := range row {
			if strings.EqualFold(strings.TrimSpace(cell), "id") {
				headerRow, idCol = i, j
				break
			}
		}
		if headerRow >= 0 {
			break
		}
	}
	if headerRow < 0 {
		return nil, errors.New(`no header row with an "id" column`)
	}

	type yearCol struct {
		year  int
		index int
	}
	var years []yearCol
	for j, cell := range rows[headerRow] {
		if y, ok := parseYear(cell); ok {
			years = append(years, yearCol{year: y, index: j})
		}
	}
	if len(years) == 0 {
		return nil, errors.New("header has no year columns")
	}

	h := newHistory()
	for _, row := range rows[headerRow+1:] {
		id := cellAt(row, idCol)
		if id == "" {
			continue
		}
		code := id
		if idmap != nil {
			if oecd, ok := idmap.Lookup(id); ok {
				code = oecd
			}
		}

		// Walk backwards so each gap takes the next valid year.
		next := ""
		for k := len(years) - 1; k >= 0; k-- {
			v := cellAt(row, years[k].index)
			if v == missingValue {
				v = ""
			}
			if v == "" {
				v = next
			} else {
				next = v
			}
			if v == "" {
				continue
			}
			h.set(years[k].year, code, mapValue(WorldBankValues, v))
		}
	}
	return h, nil
}

// =============================================================================
// OECD DAC LIST HISTORY
// =============================================================================

// ReadOECD reads the DAC list history: a ';' separated CSV with at least the
// columns year, incomegroup and RecipientCode.
func ReadOECD(path string) (*History, error) {
	rows, err := readCSV(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	h, err := parseOECD(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return h, nil
}

func parseOECD(rows [][]string) (*History, error) {
	if len(rows) == 0 {
		return nil, errors.New("file is empty")
	}
	cols := map[string]int{"year": -1, "incomegroup": -1, "RecipientCode": -1}
	for j, cell := range rows[0] {
		if _, ok := cols[strings.TrimSpace(cell)]; ok {
			cols[strings.TrimSpace(cell)] = j
		}
	}
	for name, idx := range cols {
		if idx < 0 {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}

	h := newHistory()
	for i, row := range rows[1:] {
		rawYear := cellAt(row, cols["year"])
		code := cellAt(row, cols["RecipientCode"])
		group := cellAt(row, cols["incomegroup"])
		if rawYear == "" && code == "" && group == "" {
			continue
		}
		year, ok := parseYear(rawYear)
		if !ok {
			return nil, fmt.Errorf("row %d: invalid year %q", i+2, rawYear)
		}
		if code == "" || group == "" {
			continue
		}
		h.set(year, code, mapValue(OECDValues, group))
	}
	return h, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseCSV(f)
}

func parseCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	cr.Comma = ';'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	return cr.ReadAll()
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, errors.New("workbook has no sheets")
	}
	return f.GetRows(sheet)
}

func cellAt(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// parseYear accepts "1987" as well as the "1987.0" some spreadsheet exports
// produce.
func parseYear(s string) (int, bool) {
	s = strings.TrimSuffix(strings.TrimSpace(s), ".0")
	y, err := strconv.Atoi(s)
	if err != nil || y < 1000 || y > 9999 {
		return 0, false
	}
	return y, true
}

func mapValue(m map[string]string, v string) string {
	if mapped, ok := m[v]; ok {
		return mapped
	}
	return v
}
