package countrycode

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/crsmerge/internal/testutil"
)

func testEntities() []Entity {
	return []Entity{
		{Code: "5", Name: "Germany"},
		{Code: "769", Name: "Viet Nam"},
		{Code: "285", Name: "Uganda"},
		{Code: "285", Name: "Uganda"}, // duplicate rows are expected
		{Code: "298", Name: "Africa, regional"},
		{Code: "", Name: "Nowhere"},
		{Code: "732", Name: "Chinese Taipei"},
		{Code: "999", Name: "Atlantis"},
	}
}

func testReferences() []Reference {
	return []Reference{
		{Code: "DEU", Name: "Germany", Region: "Europe & Central Asia"},
		{Code: "VNM", Name: "Vietnam", Region: "East Asia & Pacific"},
		{Code: "UGA", Name: "Uganda", Region: "Sub-Saharan Africa"},
		{Code: "MCO", Name: "Monaco", Region: "Europe & Central Asia"},
		{Code: "FRA", Name: "France", Region: "Europe & Central Asia"},
	}
}

func TestMapper_Build_LinksBothDirections(t *testing.T) {
	m, err := NewMapper(DefaultTables(), WithLogger(testutil.NewTestLogger(t)))
	require.NoError(t, err)

	idmap, report := m.Build(testEntities(), testReferences())

	for oecd, iso3 := range map[string]string{"5": "DEU", "769": "VNM", "285": "UGA"} {
		got, ok := idmap.Lookup(oecd)
		require.True(t, ok, "oecd %s", oecd)
		assert.Equal(t, iso3, got)

		back, ok := idmap.Lookup(iso3)
		require.True(t, ok, "iso3 %s", iso3)
		assert.Equal(t, oecd, back)
	}

	assert.False(t, idmap.Contains("298"))
	assert.False(t, idmap.Contains("FRA"))
	assert.Equal(t, 3, report.Matched)
	assert.Equal(t, 19, report.Overrides)
	assert.Equal(t, 2, report.ExpectedUnmapped)
	assert.Equal(t, []Entity{{Code: "999", Name: "Atlantis"}}, report.UnexpectedOECD())
	assert.Equal(t, []Entity{{Code: "732", Name: "Chinese Taipei"}}, report.DeniedOECD)
}

func TestMapper_Build_OverridesWin(t *testing.T) {
	tables := DefaultTables()
	m, err := NewMapper(tables)
	require.NoError(t, err)

	// A misleading name match that the override for 88 must replace.
	entities := []Entity{{Code: "88", Name: "Macedonia"}}
	refs := []Reference{{Code: "XMK", Name: "Macedonia"}}

	idmap, _ := m.Build(entities, refs)

	for _, o := range tables.Overrides {
		got, ok := idmap.Lookup(o.OECD)
		require.True(t, ok)
		assert.Equal(t, o.ISO3, got)

		back, ok := idmap.Lookup(o.ISO3)
		require.True(t, ok)
		assert.Equal(t, o.OECD, back)
	}
}

func TestMapper_Build_OverridesAppliedOnEmptyInput(t *testing.T) {
	m, err := NewMapper(DefaultTables())
	require.NoError(t, err)

	idmap, report := m.Build(nil, nil)

	assert.Equal(t, 38, idmap.Len())
	assert.Equal(t, 0, report.Matched)
}

func TestMapper_Build_SharedCountryKeepsBothOECDCodes(t *testing.T) {
	m, err := NewMapper(Tables{})
	require.NoError(t, err)

	// Korea reports as a donor under 742 and receives under 543.
	entities := []Entity{{Code: "742", Name: "Korea"}, {Code: "543", Name: "Korea"}}
	refs := []Reference{{Code: "KOR", Name: "Korea"}}

	idmap, report := m.Build(entities, refs)

	donor, ok := idmap.Lookup("742")
	require.True(t, ok)
	assert.Equal(t, "KOR", donor)
	recipient, ok := idmap.Lookup("543")
	require.True(t, ok)
	assert.Equal(t, "KOR", recipient)

	back, _ := idmap.Lookup("KOR")
	assert.Equal(t, "742", back, "entities are linked in code order, last link wins")
	assert.Equal(t, []string{"KOR"}, report.Relinked)
}

func TestMapper_Build_DenylistModes(t *testing.T) {
	tables := Tables{
		NoCounterpartOECD:      []string{"Tokelau"},
		NoCounterpartWorldBank: []string{"Monaco"},
	}
	entities := []Entity{{Code: "868", Name: "Tokelau"}, {Code: "999", Name: "Monaco"}}
	refs := []Reference{{Code: "TKL", Name: "Tokelau"}, {Code: "MCO", Name: "Monaco"}}

	t.Run("report", func(t *testing.T) {
		m, err := NewMapper(tables)
		require.NoError(t, err)

		idmap, report := m.Build(entities, refs)
		assert.True(t, idmap.Contains("868"))
		assert.True(t, idmap.Contains("999"))
		assert.Len(t, report.DeniedOECD, 1)
		assert.Len(t, report.DeniedWorldBank, 1)
		assert.False(t, report.Enforced)
	})

	t.Run("enforce", func(t *testing.T) {
		m, err := NewMapper(tables, WithDenylistMode(DenylistEnforce))
		require.NoError(t, err)

		idmap, report := m.Build(entities, refs)
		assert.False(t, idmap.Contains("868"))
		assert.False(t, idmap.Contains("999"))
		assert.True(t, report.Enforced)
		assert.Equal(t, []Reference{{Code: "TKL", Name: "Tokelau"}}, report.UnmatchedWorldBank)
	})
}

func TestMapper_Build_EnforceKeepsAliasedNames(t *testing.T) {
	m, err := NewMapper(DefaultTables(), WithDenylistMode(DenylistEnforce))
	require.NoError(t, err)

	idmap, report := m.Build(
		[]Entity{{Code: "383", Name: "Saint Lucia"}},
		[]Reference{{Code: "LCA", Name: "St. Lucia"}},
	)
	iso3, ok := idmap.Lookup("383")
	require.True(t, ok)
	assert.Equal(t, "LCA", iso3)
	assert.Empty(t, report.DeniedOECD)
}

func TestDefaultTables_DenylistsDisjointFromAliases(t *testing.T) {
	tables := DefaultTables()
	oecd := make(map[string]bool)
	worldBank := make(map[string]bool)
	for _, a := range tables.Aliases {
		oecd[a.OECD] = true
		worldBank[a.WorldBank] = true
	}
	for _, name := range tables.NoCounterpartOECD {
		assert.False(t, oecd[name], "%q is aliased and denylisted", name)
	}
	for _, name := range tables.NoCounterpartWorldBank {
		assert.False(t, worldBank[name], "%q is aliased and denylisted", name)
	}
}

func TestMapper_Build_Idempotent(t *testing.T) {
	m, err := NewMapper(DefaultTables())
	require.NoError(t, err)

	first, _ := m.Build(testEntities(), testReferences())

	// Shuffled input order must not matter.
	entities := testEntities()
	for i, j := 0, len(entities)-1; i < j; i, j = i+1, j-1 {
		entities[i], entities[j] = entities[j], entities[i]
	}
	second, _ := m.Build(entities, testReferences())

	assert.Equal(t, first.Entries(), second.Entries())
}

func TestParseDenylistMode(t *testing.T) {
	mode, err := ParseDenylistMode("")
	require.NoError(t, err)
	assert.Equal(t, DenylistReport, mode)

	mode, err = ParseDenylistMode("enforce")
	require.NoError(t, err)
	assert.Equal(t, DenylistEnforce, mode)

	_, err = ParseDenylistMode("strict")
	assert.Error(t, err)
}

func TestIdentifierMap_JSONRoundTrip(t *testing.T) {
	m, err := NewMapper(DefaultTables())
	require.NoError(t, err)
	idmap, _ := m.Build(testEntities(), testReferences())

	data, err := json.Marshal(idmap)
	require.NoError(t, err)

	restored := NewIdentifierMap()
	require.NoError(t, json.Unmarshal(data, restored))

	assert.Equal(t, idmap.Entries(), restored.Entries())
	assert.Equal(t, idmap.Pairs(), restored.Pairs())
}

func TestIdentifierMap_PairsNumericOrder(t *testing.T) {
	idmap := NewIdentifierMap()
	idmap.Link("769", "VNM")
	idmap.Link("5", "DEU")
	idmap.Link("1027", "XXX")

	pairs := idmap.Pairs()
	require.Len(t, pairs, 3)
	assert.Equal(t, "5", pairs[0].OECD)
	assert.Equal(t, "769", pairs[1].OECD)
	assert.Equal(t, "1027", pairs[2].OECD)
}
