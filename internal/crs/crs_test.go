package crs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/ginjaninja78/crsmerge/internal/countrycode"
	"github.com/ginjaninja78/crsmerge/internal/testutil"
)

const header = "Year|DonorCode|DonorName|RecipientCode|RecipientName|CommitmentDate|SectorCode|FlowCode|USD_Commitment_Defl"

// writeExtract zips an ISO-8859-15 encoded extract into dir.
func writeExtract(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()

	encoded, err := charmap.ISO8859_15.NewEncoder().String(strings.Join(lines, "\n") + "\n")
	require.NoError(t, err)

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	w, err := zw.Create(strings.TrimSuffix(name, ".zip") + ".txt")
	require.NoError(t, err)
	_, err = w.Write([]byte(encoded))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return path
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := writeExtract(t, dir, "crs2019.zip",
		header,
		`2019|5|Germany|285|Uganda|2019-03-15|140|11|1.25`,
		`2019|5|Germany|247|"Côte d'Ivoire"|2019-07-01 00:00:00|140|13|`,
		`||||||||`,
		`2019|5|Germany|0285|Uganda|not a date|140|11|0`,
	)

	ds, err := ReadFile(path, DefaultSettings())
	require.NoError(t, err)

	require.Len(t, ds.Records, 3)
	assert.Equal(t, 1, ds.Stats.Files)
	assert.Equal(t, 3, ds.Stats.Rows)
	assert.Equal(t, 1, ds.Stats.BadDates)

	first := ds.Records[0]
	assert.Equal(t, "5", first.DonorCode)
	assert.Equal(t, "285", first.RecipientCode)
	assert.Equal(t, time.Date(2019, time.March, 15, 0, 0, 0, 0, time.UTC), first.CommitmentDate)
	amount, ok := first.Amount("USD_Commitment_Defl")
	require.True(t, ok)
	assert.Equal(t, "1.25", amount.String())

	second := ds.Records[1]
	assert.Equal(t, "Côte d'Ivoire", second.RecipientName)
	_, ok = second.Amount("USD_Commitment_Defl")
	assert.False(t, ok)

	third := ds.Records[2]
	assert.Equal(t, "0285", third.RecipientCode, "codes keep leading zeros")
	assert.True(t, third.CommitmentDate.IsZero())
}

func TestReadFile_Errors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		_, err := ReadFile(filepath.Join(dir, "nope.zip"), DefaultSettings())
		var fe *FileError
		require.ErrorAs(t, err, &fe)
		assert.Contains(t, fe.Error(), "nope.zip")
	})

	t.Run("missing required column", func(t *testing.T) {
		path := writeExtract(t, dir, "bad.zip", "DonorCode|DonorName", "5|Germany")
		_, err := ReadFile(path, DefaultSettings())

		var fe *FileError
		require.ErrorAs(t, err, &fe)
		var he *HeaderError
		require.ErrorAs(t, err, &he)
		assert.Contains(t, he.Missing, "RecipientCode")
	})

	t.Run("not a zip", func(t *testing.T) {
		path := filepath.Join(dir, "plain.zip")
		require.NoError(t, os.WriteFile(path, []byte(header), 0o644))
		_, err := ReadFile(path, DefaultSettings())
		var fe *FileError
		assert.ErrorAs(t, err, &fe)
	})

	t.Run("unknown encoding", func(t *testing.T) {
		path := writeExtract(t, dir, "ok.zip", header)
		_, err := ReadFile(path, Settings{Delimiter: "|", Encoding: "klingon"})
		var fe *FileError
		require.ErrorAs(t, err, &fe)
		assert.Contains(t, err.Error(), "unsupported encoding")
	})

	t.Run("empty archive", func(t *testing.T) {
		path := filepath.Join(dir, "empty.zip")
		f, err := os.Create(path)
		require.NoError(t, err)
		require.NoError(t, zip.NewWriter(f).Close())
		require.NoError(t, f.Close())

		_, err = ReadFile(path, DefaultSettings())
		assert.True(t, errors.Is(err, ErrNoEntries))
	})
}

func TestSettings_PythonEncodingLabel(t *testing.T) {
	r, err := NewReader(strings.NewReader(header+"\n"), Settings{Encoding: "iso8859_15"})
	require.NoError(t, err)
	assert.Len(t, r.Headers(), 9)
}

func TestLoadFiles_KeepsSetOrder(t *testing.T) {
	dir := t.TempDir()
	a := writeExtract(t, dir, "crs2018.zip", header, `2018|5|Germany|285|Uganda|2018-01-01|140|11|1`)
	b := writeExtract(t, dir, "crs2019.zip",
		header+"|ExtraColumn",
		`2019|5|Germany|285|Uganda|2019-01-01|140|11|2|x`,
		`2019|4|France|285|Uganda|2019-01-01|140|11|3|y`,
	)

	ds, err := LoadFiles(context.Background(), "test", []string{b, a}, LoadOptions{
		Settings:       DefaultSettings(),
		MaxConcurrency: 2,
		Logger:         testutil.NewTestLogger(t),
	})
	require.NoError(t, err)

	require.Len(t, ds.Records, 3)
	assert.Equal(t, 2019, ds.Records[0].CommitmentDate.Year())
	assert.Equal(t, 2018, ds.Records[2].CommitmentDate.Year())
	assert.Equal(t, "ExtraColumn", ds.Columns[len(ds.Columns)-1])
	assert.Equal(t, 2, ds.Stats.Files)
}

func TestLoadFiles_FailsOnBadFile(t *testing.T) {
	dir := t.TempDir()
	good := writeExtract(t, dir, "crs2019.zip", header)

	_, err := LoadFiles(context.Background(), "test", []string{good, filepath.Join(dir, "missing.zip")}, LoadOptions{
		Settings: DefaultSettings(),
	})
	var fe *FileError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, filepath.Join(dir, "missing.zip"), fe.Path)
}

func TestDataset_Entities(t *testing.T) {
	ds := &Dataset{Records: []Transaction{
		mustTx(t, map[string]string{"DonorCode": "5", "DonorName": "Germany", "RecipientCode": "285", "RecipientName": "Uganda"}),
		mustTx(t, map[string]string{"DonorCode": "5", "DonorName": "Germany", "RecipientCode": "298", "RecipientName": "Africa, regional"}),
	}}

	assert.Equal(t, []countrycode.Entity{
		{Code: "285", Name: "Uganda"},
		{Code: "298", Name: "Africa, regional"},
		{Code: "5", Name: "Germany"},
	}, ds.Entities())
}

func TestDataset_TableTypesCells(t *testing.T) {
	ds := &Dataset{
		Columns: []string{"DonorCode", "USD_Commitment_Defl", "ProjectTitle"},
		Records: []Transaction{mustTx(t, map[string]string{"DonorCode": "5", "USD_Commitment_Defl": "0.5"})},
	}
	tbl := ds.Table()

	code, _ := tbl.Get(0, "DonorCode")
	assert.Equal(t, "5", code.Text())
	amount, _ := tbl.Get(0, "USD_Commitment_Defl")
	f, ok := amount.Float()
	require.True(t, ok)
	assert.InDelta(t, 0.5, f, 1e-12)
	title, _ := tbl.Get(0, "ProjectTitle")
	assert.True(t, title.IsNull())
}

func TestDataset_JSONRoundTrip(t *testing.T) {
	ds := &Dataset{
		Name:    "playset",
		Columns: []string{"DonorCode", "DonorName", "RecipientCode", "RecipientName", "CommitmentDate"},
		Records: []Transaction{
			mustTx(t, map[string]string{"DonorCode": "5", "DonorName": "Germany", "RecipientCode": "285", "RecipientName": "Uganda", "CommitmentDate": "2019-03-15"}),
		},
		Stats: ReadStats{Files: 1, Rows: 1},
	}

	data, err := json.Marshal(ds)
	require.NoError(t, err)

	var restored Dataset
	require.NoError(t, json.Unmarshal(data, &restored))
	assert.Equal(t, ds.Columns, restored.Columns)
	assert.Equal(t, ds.Stats, restored.Stats)
	require.Len(t, restored.Records, 1)
	assert.Equal(t, ds.Records[0].CommitmentDate, restored.Records[0].CommitmentDate)
	assert.Equal(t, "Uganda", restored.Records[0].RecipientName)
}

func TestResolveSet(t *testing.T) {
	paths, err := ResolveSet(DefaultSets(), "playset", "data")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("data", "crs2017.zip"), paths[0])
	assert.Len(t, paths, 4)

	_, err = ResolveSet(DefaultSets(), "nope", "data")
	assert.Error(t, err)
}

func TestTransaction_WithDoesNotMutate(t *testing.T) {
	orig := mustTx(t, map[string]string{"DonorCode": "5"})
	changed := orig.With("IncomegroupName (WB)", "LDCs")

	_, ok := orig.Field("IncomegroupName (WB)")
	assert.False(t, ok)
	v, ok := changed.Field("IncomegroupName (WB)")
	require.True(t, ok)
	assert.Equal(t, "LDCs", v)
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Time
		ok   bool
	}{
		{"2015-06-30", time.Date(2015, 6, 30, 0, 0, 0, 0, time.UTC), true},
		{"2015-06-30 00:00:00", time.Date(2015, 6, 30, 0, 0, 0, 0, time.UTC), true},
		{"6/30/2015", time.Date(2015, 6, 30, 0, 0, 0, 0, time.UTC), true},
		{"2015", time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC), true},
		{"30.06.2015", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ParseDate(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func mustTx(t *testing.T, fields map[string]string) Transaction {
	t.Helper()
	tx, ok := NewTransaction(fields)
	require.True(t, ok)
	return tx
}
