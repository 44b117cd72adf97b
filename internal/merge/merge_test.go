package merge

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/crsmerge/internal/countrycode"
	"github.com/ginjaninja78/crsmerge/internal/crs"
	"github.com/ginjaninja78/crsmerge/internal/indicator"
	"github.com/ginjaninja78/crsmerge/internal/table"
	"github.com/ginjaninja78/crsmerge/internal/worldbank"
)

func fixture(t *testing.T) (*countrycode.IdentifierMap, *indicator.Table) {
	t.Helper()

	idmap := countrycode.NewIdentifierMap()
	idmap.Link("5", "DEU")
	idmap.Link("285", "UGA")
	idmap.Link("238", "ETH")

	ind := indicator.Build([]*worldbank.Series{
		{Indicator: "SP.POP.TOTL", Observations: []worldbank.Observation{
			{Country: "DEU", Year: 2015, Value: 81},
			{Country: "UGA", Year: 2015, Value: 39},
			{Country: "ETH", Year: 2015, Value: 100},
		}},
	}, indicator.ScaleOptions{}).AttachCountries([]worldbank.Country{
		{ISO3: "DEU", ISO2: "DE", Name: "Germany", Longitude: "13.4115", Latitude: "52.5235"},
		{ISO3: "UGA", ISO2: "UG", Name: "Uganda", Region: "Sub-Saharan Africa"},
	})
	return idmap, ind
}

func tx(t *testing.T, donor, recipient, date string) crs.Transaction {
	t.Helper()
	fields := map[string]string{"DonorCode": donor, "RecipientCode": recipient, "USD_Commitment_Defl": "1.5"}
	if date != "" {
		fields["CommitmentDate"] = date
	}
	rec, ok := crs.NewTransaction(fields)
	require.True(t, ok)
	return rec
}

func newMerger(t *testing.T, opts Options) *Merger {
	t.Helper()
	idmap, ind := fixture(t)
	m, err := New(idmap, ind, opts)
	require.NoError(t, err)
	return m
}

func TestMerge_UnmappedDonorIsExcluded(t *testing.T) {
	m := newMerger(t, DefaultOptions())

	res := m.Merge([]crs.Transaction{
		tx(t, "999", "285", "2015-06-01"),
		tx(t, "5", "285", "2015-06-01"),
	})

	require.Len(t, res.Rows, 1)
	assert.Equal(t, "5", res.Rows[0].Transaction.DonorCode)
	assert.Equal(t, 1, res.Stats.UnmappedDonor)
	assert.Equal(t, 2, res.Stats.Input)
	assert.Equal(t, 1, res.Stats.Output)
}

func TestMerge_LeftKeepsRowsWithoutStats(t *testing.T) {
	m := newMerger(t, DefaultOptions())

	res := m.Merge([]crs.Transaction{tx(t, "5", "285", "2016-06-01")})

	require.Len(t, res.Rows, 1)
	assert.Nil(t, res.Rows[0].Donor)
	assert.Nil(t, res.Rows[0].Recipient)
	assert.Equal(t, 1, res.Stats.DonorWithoutStats)
	assert.Equal(t, 1, res.Stats.RecipientWithoutStats)

	tbl := res.Table([]string{"DonorCode"})
	v, ok := tbl.Get(0, "Donorstat SP.POP.TOTL")
	require.True(t, ok)
	assert.True(t, v.IsNull())
}

func TestMerge_InnerDropsRowsWithoutStats(t *testing.T) {
	m := newMerger(t, Options{Mode: JoinInner, Donor: true, Recipient: true})

	res := m.Merge([]crs.Transaction{
		tx(t, "5", "285", "2016-06-01"),
		tx(t, "5", "285", "2015-06-01"),
		tx(t, "5", "285", ""),
	})

	require.Len(t, res.Rows, 1)
	assert.Equal(t, 2, res.Stats.DroppedByInnerJoin)
	assert.Equal(t, 1, res.Stats.MissingDate)
}

func TestMerge_MissingDateKeptInLeftMode(t *testing.T) {
	m := newMerger(t, DefaultOptions())

	res := m.Merge([]crs.Transaction{tx(t, "5", "285", "")})

	require.Len(t, res.Rows, 1)
	assert.Equal(t, 1, res.Stats.MissingDate)
	assert.Nil(t, res.Rows[0].Donor)
}

func TestMerge_RolesAreIndependent(t *testing.T) {
	m := newMerger(t, DefaultOptions())

	res := m.Merge([]crs.Transaction{tx(t, "5", "238", "2015-01-01")})

	require.Len(t, res.Rows, 1)
	row := res.Rows[0]
	require.NotNil(t, row.Donor)
	require.NotNil(t, row.Recipient)
	assert.Equal(t, "DEU", row.Donor.Country)
	assert.Equal(t, "ETH", row.Recipient.Country)
	assert.Nil(t, row.Recipient.Meta, "no country metadata for ETH")
}

func TestMerge_DonorOnly(t *testing.T) {
	m := newMerger(t, Options{Mode: JoinLeft, Donor: true})

	res := m.Merge([]crs.Transaction{tx(t, "5", "not-mapped", "2015-01-01")})

	require.Len(t, res.Rows, 1, "recipient codes are not filtered when the recipient role is off")
	assert.Equal(t, 0, res.Stats.UnmappedRecipient)
	assert.NotContains(t, res.Columns(), "Recipientstat SP.POP.TOTL")
}

func TestMerge_UnmappedRecipientCounted(t *testing.T) {
	m := newMerger(t, DefaultOptions())

	res := m.Merge([]crs.Transaction{tx(t, "5", "998", "2015-01-01")})

	assert.Empty(t, res.Rows)
	assert.Equal(t, 1, res.Stats.UnmappedRecipient)
}

func TestMerge_DoesNotMutateInput(t *testing.T) {
	m := newMerger(t, DefaultOptions())
	in := []crs.Transaction{tx(t, "5", "285", "2015-01-01")}

	res := m.Merge(in)
	_ = res.Table([]string{"DonorCode"})

	_, ok := in[0].Field("Donorstat SP.POP.TOTL")
	assert.False(t, ok)
	assert.Equal(t, in, res.Transactions())
}

func TestResult_Table(t *testing.T) {
	m := newMerger(t, DefaultOptions())
	res := m.Merge([]crs.Transaction{tx(t, "5", "285", "2015-01-01")})

	tbl := res.Table([]string{"DonorCode", "RecipientCode", "USD_Commitment_Defl"})
	cols := tbl.Columns()

	assert.Equal(t, []string{
		"DonorCode", "RecipientCode", "USD_Commitment_Defl",
		"Donorstat SP.POP.TOTL", "Donorstat iso3Code", "Donorstat iso2Code", "Donorstat region",
		"Donorstat adminregion", "Donorstat incomeLevel", "Donorstat lendingType",
		"Donorstat capitalCity", "Donorstat longitude", "Donorstat latitude",
		"Recipientstat SP.POP.TOTL", "Recipientstat iso3Code", "Recipientstat iso2Code",
		"Recipientstat name", "Recipientstat region", "Recipientstat adminregion",
		"Recipientstat incomeLevel", "Recipientstat lendingType", "Recipientstat capitalCity",
		"Recipientstat longitude", "Recipientstat latitude",
	}, cols)

	get := func(col string) table.Value {
		v, ok := tbl.Get(0, col)
		require.True(t, ok, col)
		return v
	}

	pop, ok := get("Donorstat SP.POP.TOTL").Float()
	require.True(t, ok)
	assert.Equal(t, 81.0, pop)
	assert.Equal(t, "DEU", get("Donorstat iso3Code").Text())
	lon, ok := get("Donorstat longitude").Float()
	require.True(t, ok)
	assert.InDelta(t, 13.4115, lon, 1e-9)
	assert.Equal(t, "Uganda", get("Recipientstat name").Text())
	assert.True(t, get("Recipientstat capitalCity").IsNull())
	amount, ok := get("USD_Commitment_Defl").Float()
	require.True(t, ok)
	assert.Equal(t, 1.5, amount)
}

func TestNew_Errors(t *testing.T) {
	idmap, ind := fixture(t)

	_, err := New(idmap, ind, Options{Mode: "outer"})
	assert.True(t, errors.Is(err, ErrUnknownJoinMode))

	_, err = New(nil, ind, DefaultOptions())
	assert.Error(t, err)

	_, err = New(idmap, nil, DefaultOptions())
	assert.Error(t, err)

	m, err := New(idmap, ind, Options{Donor: true})
	require.NoError(t, err)
	assert.Equal(t, JoinLeft, m.opts.Mode, "blank mode defaults to left")
}

func TestParseJoinMode(t *testing.T) {
	tests := []struct {
		in      string
		want    JoinMode
		wantErr bool
	}{
		{"", JoinLeft, false},
		{"left", JoinLeft, false},
		{" INNER ", JoinInner, false},
		{"outer", "", true},
	}
	for _, tt := range tests {
		got, err := ParseJoinMode(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrUnknownJoinMode)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestStats_LogValue(t *testing.T) {
	v := Stats{Input: 3, Output: 2}.LogValue()
	assert.Equal(t, slog.KindGroup, v.Kind())
	assert.Len(t, v.Group(), 8)
}
