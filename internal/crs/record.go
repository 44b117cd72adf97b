// =============================================================================
// crsmerge - CRS Transaction Records
// =============================================================================
//
// A Transaction is one row of a Creditor Reporting System extract. The donor
// and recipient roles and the commitment date are lifted into typed fields
// because the mapping and merge steps key on them; every other column stays
// as the raw text read from the file. Code columns in particular are never
// converted to numbers so leading zeros survive.
//
// Transactions are values. Methods that "change" one return a copy.
//
// =============================================================================

package crs

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Column names the pipeline depends on.
const (
	ColDonorCode      = "DonorCode"
	ColDonorName      = "DonorName"
	ColRecipientCode  = "RecipientCode"
	ColRecipientName  = "RecipientName"
	ColCommitmentDate = "CommitmentDate"
	ColSectorCode     = "SectorCode"
	ColFlowCode       = "FlowCode"
	ColIncomegroup    = "IncomegroupName"
)

// Transaction is one aid-flow record.
type Transaction struct {
	DonorCode      string
	DonorName      string
	RecipientCode  string
	RecipientName  string
	CommitmentDate time.Time

	fields map[string]string
}

// NewTransaction builds a Transaction from raw column values. The map is
// copied. A CommitmentDate that cannot be parsed leaves the date zero; the
// second return value reports that case.
func NewTransaction(fields map[string]string) (Transaction, bool) {
	own := make(map[string]string, len(fields))
	for k, v := range fields {
		own[k] = v
	}

	t := Transaction{
		DonorCode:     own[ColDonorCode],
		DonorName:     own[ColDonorName],
		RecipientCode: own[ColRecipientCode],
		RecipientName: own[ColRecipientName],
		fields:        own,
	}

	raw := strings.TrimSpace(own[ColCommitmentDate])
	if raw == "" {
		return t, true
	}
	date, ok := ParseDate(raw)
	t.CommitmentDate = date
	return t, ok
}

// Field returns the raw value of a column.
func (t Transaction) Field(column string) (string, bool) {
	v, ok := t.fields[column]
	return v, ok
}

// Amount parses a monetary column. Blank or unparseable values report false.
func (t Transaction) Amount(column string) (decimal.Decimal, bool) {
	raw := strings.TrimSpace(t.fields[column])
	if raw == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// Year returns the commitment year.
func (t Transaction) Year() (int, bool) {
	if t.CommitmentDate.IsZero() {
		return 0, false
	}
	return t.CommitmentDate.Year(), true
}

// With returns a copy of t with column set to value.
func (t Transaction) With(column, value string) Transaction {
	own := make(map[string]string, len(t.fields)+1)
	for k, v := range t.fields {
		own[k] = v
	}
	own[column] = value
	t.fields = own
	return t
}

// =============================================================================
// DATES
// =============================================================================

// dateLayouts are tried in order. Slash dates are month first.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"1/2/2006",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"2006",
}

// ParseDate parses the date formats found in CRS extracts.
func ParseDate(raw string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, raw); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

// IsAmountColumn reports whether a column holds a monetary value. CRS names
// every USD amount column with a USD_ prefix.
func IsAmountColumn(column string) bool {
	return strings.HasPrefix(column, "USD_")
}
