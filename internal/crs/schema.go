package crs

import (
	"fmt"
	"strings"
)

// RequiredColumns must be present in every extract.
var RequiredColumns = []string{
	ColDonorCode,
	ColDonorName,
	ColRecipientCode,
	ColRecipientName,
	ColCommitmentDate,
}

// CodeColumns are identifiers that look numeric but must be kept as text.
// They are listed so exports can quote them like any other string.
var CodeColumns = []string{
	"DonorCode", "InitialReport", "AgencyCode", "RecipientCode", "RegionCode",
	"IncomegroupCode", "FlowCode", "Bi_Multi", "Category", "Finance_t", "CrsID",
	"Aid_t", "ProjectNumber", "CurrencyCode", "PurposeCode", "SDGfocus",
	"SectorCode", "ChannelCode", "ParentChannelCode", "BudgetIdent", "Gender",
	"Environment", "PDGG", "Trade", "RMNCH",
}

// DateColumns hold dates in the extracts.
var DateColumns = []string{
	"CommitmentDate", "ExpectedStartDate", "Year", "CompletionDate",
	"Repaydate1", "Repaydate2",
}

// HeaderError lists the required columns a header lacks.
type HeaderError struct {
	Missing []string
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Missing, ", "))
}

// ValidateHeader checks that all RequiredColumns are present and that no
// column name repeats.
func ValidateHeader(headers []string) error {
	seen := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		if _, dup := seen[h]; dup {
			return fmt.Errorf("duplicate column %q", h)
		}
		seen[h] = struct{}{}
	}

	var missing []string
	for _, c := range RequiredColumns {
		if _, ok := seen[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return &HeaderError{Missing: missing}
	}
	return nil
}
