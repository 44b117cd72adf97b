package crs

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// CODE FILTER
// =============================================================================

// Filter selects records by donor, sector, flow and recipient code. An empty
// list leaves that dimension unfiltered.
type Filter struct {
	Name           string   `koanf:"name" yaml:"name"`
	DonorCodes     []string `koanf:"donor_codes" yaml:"donor_codes"`
	SectorCodes    []string `koanf:"sector_codes" yaml:"sector_codes"`
	FlowCodes      []string `koanf:"flow_codes" yaml:"flow_codes"`
	RecipientCodes []string `koanf:"recipient_codes" yaml:"recipient_codes"`
}

// Apply returns the records that pass every configured code list.
func (f Filter) Apply(records []Transaction) []Transaction {
	donors := toSet(f.DonorCodes)
	sectors := toSet(f.SectorCodes)
	flows := toSet(f.FlowCodes)
	recipients := toSet(f.RecipientCodes)

	out := make([]Transaction, 0, len(records))
	for _, r := range records {
		if !matches(donors, r.DonorCode) || !matches(recipients, r.RecipientCode) {
			continue
		}
		if sector, _ := r.Field(ColSectorCode); !matches(sectors, sector) {
			continue
		}
		if flow, _ := r.Field(ColFlowCode); !matches(flows, flow) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// DefaultFocusFilters are the report scopes of the reference analysis:
// German (donor 5) aid overall, German water and sanitation (sector 140)
// ODA grants and loans (flows 11, 13), and the latter for a fixed set of
// recipients.
func DefaultFocusFilters() []Filter {
	return []Filter{
		{Name: "germany", DonorCodes: []string{"5"}},
		{
			Name:        "germany-water",
			DonorCodes:  []string{"5"},
			SectorCodes: []string{"140"},
			FlowCodes:   []string{"11", "13"},
		},
		{
			Name:        "germany-water-selected",
			DonorCodes:  []string{"5"},
			SectorCodes: []string{"140"},
			FlowCodes:   []string{"11", "13"},
			RecipientCodes: []string{
				"285", "248", "282", "238", "278", "266", "228",
				"645", "666", "555", "142", "437", "428",
			},
		},
	}
}

// =============================================================================
// VALUE FILTER
// =============================================================================

// DropZeroValues removes records whose value column is blank or zero. About
// half of the raw commitments carry no amount.
func DropZeroValues(records []Transaction, column string) []Transaction {
	out := make([]Transaction, 0, len(records))
	for _, r := range records {
		if v, ok := r.Amount(column); ok && !v.IsZero() {
			out = append(out, r)
		}
	}
	return out
}

// =============================================================================
// YEAR WINDOW
// =============================================================================

// YearWindow keeps records committed between Start and Stop, both inclusive.
// Zero leaves that side open.
type YearWindow struct {
	Start int
	Stop  int
}

// Open reports whether the window filters nothing.
func (w YearWindow) Open() bool { return w.Start == 0 && w.Stop == 0 }

// Contains reports whether a record falls inside the window. Records without
// a commitment date only pass an open window.
func (w YearWindow) Contains(t Transaction) bool {
	if w.Open() {
		return true
	}
	year, ok := t.Year()
	if !ok {
		return false
	}
	if w.Start != 0 && year < w.Start {
		return false
	}
	if w.Stop != 0 && year > w.Stop {
		return false
	}
	return true
}

// Apply returns the records inside the window.
func (w YearWindow) Apply(records []Transaction) []Transaction {
	if w.Open() {
		return records
	}
	out := make([]Transaction, 0, len(records))
	for _, r := range records {
		if w.Contains(r) {
			out = append(out, r)
		}
	}
	return out
}

// DirName names the output directory of a window, e.g. "from_2011_upto_2018".
// An open window returns "".
func (w YearWindow) DirName() string {
	var parts []string
	if w.Start != 0 {
		parts = append(parts, fmt.Sprintf("from_%d", w.Start))
	}
	if w.Stop != 0 {
		parts = append(parts, fmt.Sprintf("upto_%d", w.Stop))
	}
	return strings.Join(parts, "_")
}

// CurrentYear is the default stop year of report windows.
func CurrentYear() int { return time.Now().Year() }

func toSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func matches(set map[string]struct{}, v string) bool {
	if set == nil {
		return true
	}
	_, ok := set[v]
	return ok
}
