package export

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/crsmerge/internal/table"
)

func sample(t *testing.T) *table.Table {
	t.Helper()
	tbl := table.MustNew("RecipientCode", "ProjectTitle", "USD_Commitment_Defl")
	require.NoError(t, tbl.Append(table.String("0142"), table.String(`Water "WASH" I`), table.Number(1.25)))
	require.NoError(t, tbl.Append(table.String("285"), table.Null(), table.Null()))
	return tbl
}

func TestWriteCSV_QuotesTextNotNumbers(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sample(t)))

	want := `"RecipientCode";"ProjectTitle";"USD_Commitment_Defl"` + "\n" +
		`"0142";"Water ""WASH"" I";1.25` + "\n" +
		`"285";;` + "\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteJSON_KeyedByRow(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sample(t)))

	assert.JSONEq(t, `{
		"0": {"RecipientCode": "0142", "ProjectTitle": "Water \"WASH\" I", "USD_Commitment_Defl": 1.25},
		"1": {"RecipientCode": "285", "ProjectTitle": null, "USD_Commitment_Defl": null}
	}`, buf.String())
}

func TestWriteMicrodata(t *testing.T) {
	dir := t.TempDir()

	files, err := WriteMicrodata(dir, "", sample(t))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "microdata.csv"), files.CSV)
	assert.Equal(t, filepath.Join(dir, "microdata.json"), files.JSON)
	assert.FileExists(t, files.CSV)
	assert.FileExists(t, files.JSON)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temp files left behind")
}

func TestWriteMicrodata_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "microdata", "germany-water")
	files, err := WriteMicrodata(dir, "x", sample(t))
	require.NoError(t, err)
	assert.FileExists(t, files.CSV)
}

func TestWriteMicrodata_DirectoryIsAFile(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "results")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	_, err := WriteMicrodata(blocker, "x", sample(t))
	assert.Error(t, err)
}

func TestDefaultFeatures(t *testing.T) {
	got := DefaultFeatures([]string{"SP.POP.TOTL"})
	assert.Len(t, got, len(BaseFeatures)+1)
	assert.Equal(t, "DonorName", got[0])
	assert.Equal(t, "Recipientstat SP.POP.TOTL", got[len(got)-1])

	assert.Len(t, DefaultFeatures(nil), len(BaseFeatures)+4)
	assert.Len(t, BaseFeatures, 22)
}
