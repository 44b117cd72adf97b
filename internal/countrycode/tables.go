// =============================================================================
// crsmerge - Country Reference Tables
// =============================================================================
//
// The OECD Creditor Reporting System and the World Bank spell country names
// differently and use unrelated code schemes. This file holds the curated
// reference data used to reconcile them:
//
//   - Aliases:      OECD display name <-> World Bank display name
//   - Denylists:    names with no counterpart entity in the other source
//   - Overrides:    hand-maintained OECD code <-> ISO3 pairs that always win
//
// The tables are plain values. DefaultTables returns a fresh copy every call
// so callers can edit their copy without touching anyone else's, and a YAML
// file with the same shape can replace them (see config.LoadTables).
//
// =============================================================================

package countrycode

// NameAlias pairs the OECD and the World Bank spelling of the same country.
type NameAlias struct {
	OECD      string `yaml:"oecd" json:"oecd"`
	WorldBank string `yaml:"worldbank" json:"worldbank"`
}

// Override is a manually curated OECD code <-> ISO3 pair.
type Override struct {
	OECD string `yaml:"oecd" json:"oecd"`
	ISO3 string `yaml:"iso3" json:"iso3"`
	Note string `yaml:"note,omitempty" json:"note,omitempty"`
}

// Tables is the complete set of reference data handed to a Normalizer and a
// Mapper at construction time.
type Tables struct {
	Aliases                []NameAlias `yaml:"aliases"`
	// NoCounterpartOECD and NoCounterpartWorldBank are names known to have no
	// match on the other side. Enforce mode drops them even when an alias
	// would match, so they must not appear in Aliases.
	NoCounterpartOECD      []string    `yaml:"no_counterpart_oecd"`
	NoCounterpartWorldBank []string    `yaml:"no_counterpart_worldbank"`
	Overrides              []Override  `yaml:"overrides"`
}

// Clone returns a deep copy of the tables.
func (t Tables) Clone() Tables {
	return Tables{
		Aliases:                append([]NameAlias(nil), t.Aliases...),
		NoCounterpartOECD:      append([]string(nil), t.NoCounterpartOECD...),
		NoCounterpartWorldBank: append([]string(nil), t.NoCounterpartWorldBank...),
		Overrides:              append([]Override(nil), t.Overrides...),
	}
}

// =============================================================================
// BUILT-IN TABLES
// =============================================================================

// DefaultTables returns the built-in reference tables.
func DefaultTables() Tables {
	return Tables{
		Aliases: []NameAlias{
			{OECD: "Yemen", WorldBank: "Yemen, Rep."},
			{OECD: "Viet Nam", WorldBank: "Vietnam"},
			{OECD: "Venezuela", WorldBank: "Venezuela, RB"},
			{OECD: "Saint Vincent and the Grenadines", WorldBank: "St. Vincent and the Grenadines"},
			{OECD: "Russia", WorldBank: "Russian Federation"},
			{OECD: "West Bank and Gaza Strip", WorldBank: "West Bank and Gaza"},
			{OECD: "Democratic People's Republic of Korea", WorldBank: "Korea, Dem. People’s Rep."},
			{OECD: "Macau (China)", WorldBank: "Macao SAR, China"},
			{OECD: "Saint Lucia", WorldBank: "St. Lucia"},
			{OECD: "Lao People's Democratic Republic", WorldBank: "Lao PDR"},
			{OECD: "Korea", WorldBank: "Korea, Rep."},
			{OECD: "Saint Kitts and Nevis", WorldBank: "St. Kitts and Nevis"},
			{OECD: "Kyrgyzstan", WorldBank: "Kyrgyz Republic"},
			{OECD: "Iran", WorldBank: "Iran, Islamic Rep."},
			{OECD: "Hong Kong (China)", WorldBank: "Hong Kong SAR, China"},
			{OECD: "Gambia", WorldBank: "Gambia, The"},
			{OECD: "Micronesia", WorldBank: "Micronesia, Fed. Sts."},
			{OECD: "Egypt", WorldBank: "Egypt, Arab Rep."},
			{OECD: "Congo", WorldBank: "Congo, Rep."},
			{OECD: "Democratic Republic of the Congo", WorldBank: "Congo, Dem. Rep."},
			{OECD: "Côte d'Ivoire", WorldBank: "Cote d'Ivoire"},
			{OECD: "China (People's Republic of)", WorldBank: "China"},
			{OECD: "Bahamas", WorldBank: "Bahamas, The"},
		},
		NoCounterpartOECD: []string{
			"Montserrat", "Cook Islands", "Niue", "Tokelau", "Anguilla",
			"Netherlands Antilles", "Saint Helena", "Mayotte", "Chinese Taipei",
			"Wallis and Futuna",
		},
		NoCounterpartWorldBank: []string{
			"Virgin Islands (U.S.)", "Taiwan, China", "Sint Maarten (Dutch part)",
			"San Marino", "Puerto Rico", "St. Martin (French part)", "Monaco",
			"Isle of Man", "Guam", "Greenland", "Faroe Islands", "Curacao",
			"American Samoa", "Andorra", "Channel Islands",
		},
		Overrides: []Override{
			{OECD: "376", ISO3: "AIA", Note: "Anguilla"},
			{OECD: "831", ISO3: "COK", Note: "Cook Islands"},
			{OECD: "443", ISO3: "FLK", Note: "Falkland Islands (Malvinas)"},
			{OECD: "258", ISO3: "MYT", Note: "Mayotte"},
			{OECD: "385", ISO3: "MSR", Note: "Montserrat"},
			{OECD: "361", ISO3: "ANT", Note: "Netherlands Antilles"},
			{OECD: "856", ISO3: "NIU", Note: "Niue"},
			{OECD: "276", ISO3: "SHN", Note: "Saint Helena, Ascension and Tristan da Cunha"},
			{OECD: "868", ISO3: "TKL", Note: "Tokelau"},
			{OECD: "876", ISO3: "WLF", Note: "Wallis and Futuna"},
			{OECD: "88", ISO3: "MKD", Note: "North Macedonia"},
			{OECD: "69", ISO3: "SVK", Note: "Slovakia"},
			{OECD: "280", ISO3: "SWZ", Note: "Eswatini"},
			{OECD: "75", ISO3: "HUN", Note: "Hungary"},
			{OECD: "82", ISO3: "EST", Note: "Estonia"},
			{OECD: "68", ISO3: "CZE", Note: "Czech Republic"},
			{OECD: "72", ISO3: "BGR", Note: "Bulgaria"},
			{OECD: "83", ISO3: "LVA", Note: "Latvia"},
			{OECD: "84", ISO3: "LTU", Note: "Lithuania"},
		},
	}
}

// UnmappedRegionCodes lists OECD recipient codes for regional and
// multi-country aggregates. They have no ISO3 equivalent and are expected to
// stay unmapped; BuildReport uses the list to tell expected gaps apart from
// surprising ones.
var UnmappedRegionCodes = []string{
	"298", "498", "798", "9998", "389", "1031", "1032", "619", "237", "1027", "89",
	"789", "1033", "1028", "589", "189", "889", "689", "489", "679", "289", "1029",
	"1030",
	// Chinese Taipei
	"732",
}
