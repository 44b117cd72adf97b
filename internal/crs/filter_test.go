package crs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func filterRecords(t *testing.T) []Transaction {
	return []Transaction{
		mustTx(t, map[string]string{"DonorCode": "5", "RecipientCode": "285", "SectorCode": "140", "FlowCode": "11", "USD_Commitment_Defl": "1.5", "CommitmentDate": "2012-05-01"}),
		mustTx(t, map[string]string{"DonorCode": "5", "RecipientCode": "999", "SectorCode": "140", "FlowCode": "13", "USD_Commitment_Defl": "0", "CommitmentDate": "2016-05-01"}),
		mustTx(t, map[string]string{"DonorCode": "4", "RecipientCode": "285", "SectorCode": "140", "FlowCode": "11", "CommitmentDate": "2019-05-01"}),
		mustTx(t, map[string]string{"DonorCode": "5", "RecipientCode": "285", "SectorCode": "110", "FlowCode": "19", "USD_Commitment_Defl": "2"}),
	}
}

func TestFilter_Apply(t *testing.T) {
	records := filterRecords(t)

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"no lists", Filter{}, 4},
		{"donor", Filter{DonorCodes: []string{"5"}}, 3},
		{"donor and sector", Filter{DonorCodes: []string{"5"}, SectorCodes: []string{"140"}}, 2},
		{"flows", Filter{FlowCodes: []string{"11", "13"}}, 3},
		{"recipient", Filter{RecipientCodes: []string{"999"}}, 1},
		{"everything", DefaultFocusFilters()[2], 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, tt.filter.Apply(records), tt.want)
		})
	}
}

func TestDropZeroValues(t *testing.T) {
	got := DropZeroValues(filterRecords(t), "USD_Commitment_Defl")
	assert.Len(t, got, 2)
}

func TestYearWindow(t *testing.T) {
	records := filterRecords(t)

	assert.Len(t, YearWindow{}.Apply(records), 4)
	assert.Len(t, YearWindow{Start: 2015}.Apply(records), 2)
	assert.Len(t, YearWindow{Start: 2012, Stop: 2016}.Apply(records), 2)
	assert.Len(t, YearWindow{Stop: 2012}.Apply(records), 1)
}

func TestYearWindow_DirName(t *testing.T) {
	assert.Equal(t, "", YearWindow{}.DirName())
	assert.Equal(t, "from_2011", YearWindow{Start: 2011}.DirName())
	assert.Equal(t, "upto_2018", YearWindow{Stop: 2018}.DirName())
	assert.Equal(t, "from_2011_upto_2018", YearWindow{Start: 2011, Stop: 2018}.DirName())
}
