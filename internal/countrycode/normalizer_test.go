package countrycode

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizer_ToWorldBank(t *testing.T) {
	n, err := NewNormalizer(DefaultTables())
	require.NoError(t, err)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"alias", "Viet Nam", "Vietnam"},
		{"alias with punctuation", "Côte d'Ivoire", "Cote d'Ivoire"},
		{"pass-through", "Germany", "Germany"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, n.ToWorldBank(tt.in))
		})
	}
}

func TestNormalizer_ToOECD(t *testing.T) {
	n, err := NewNormalizer(DefaultTables())
	require.NoError(t, err)

	assert.Equal(t, "Russia", n.ToOECD("Russian Federation"))
	assert.Equal(t, "France", n.ToOECD("France"))
}

func TestNormalizer_Denylists(t *testing.T) {
	n, err := NewNormalizer(DefaultTables())
	require.NoError(t, err)

	assert.True(t, n.DeniedOECD("Chinese Taipei"))
	assert.False(t, n.DeniedOECD("Germany"))
	assert.True(t, n.DeniedWorldBank("Monaco"))
	assert.False(t, n.DeniedWorldBank("Chinese Taipei"))
}

func TestNewNormalizer_RejectsNonInjectiveTable(t *testing.T) {
	tables := Tables{Aliases: []NameAlias{
		{OECD: "Congo", WorldBank: "Congo, Rep."},
		{OECD: "Congo", WorldBank: "Congo, Dem. Rep."},
	}}

	_, err := NewNormalizer(tables)
	require.Error(t, err)

	var conflict *AliasConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "oecd", conflict.Side)
	assert.Equal(t, "Congo", conflict.Name)
}

func TestInvertAliases_RoundTrip(t *testing.T) {
	original := DefaultTables().Aliases

	once, err := InvertAliases(original)
	require.NoError(t, err)
	twice, err := InvertAliases(once)
	require.NoError(t, err)

	assert.Equal(t, original, twice)
	assert.Equal(t, "Viet Nam", once[1].WorldBank)
}

func TestInvertAliases_DuplicateWorldBankName(t *testing.T) {
	_, err := InvertAliases([]NameAlias{
		{OECD: "A", WorldBank: "X"},
		{OECD: "B", WorldBank: "X"},
	})

	var conflict *AliasConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "worldbank", conflict.Side)
}

func TestDefaultTables_ReturnsFreshCopy(t *testing.T) {
	a := DefaultTables()
	a.Aliases[0].WorldBank = "changed"
	a.Overrides = nil

	b := DefaultTables()
	assert.Equal(t, "Yemen, Rep.", b.Aliases[0].WorldBank)
	assert.Len(t, b.Overrides, 19)
}
