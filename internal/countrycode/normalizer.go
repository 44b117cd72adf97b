package countrycode

import (
	"fmt"
)

// =============================================================================
// ALIAS INVERSION
// =============================================================================

// AliasConflictError reports a name that appears twice on one side of an
// alias table, which makes the table impossible to invert.
type AliasConflictError struct {
	Side   string
	Name   string
	First  string
	Second string
}

func (e *AliasConflictError) Error() string {
	return fmt.Sprintf("alias table is not injective: %s name %q maps to both %q and %q",
		e.Side, e.Name, e.First, e.Second)
}

// InvertAliases swaps the direction of every alias. It fails if the table is
// not injective in either direction.
func InvertAliases(aliases []NameAlias) ([]NameAlias, error) {
	if err := checkInjective(aliases); err != nil {
		return nil, err
	}
	inverted := make([]NameAlias, len(aliases))
	for i, a := range aliases {
		inverted[i] = NameAlias{OECD: a.WorldBank, WorldBank: a.OECD}
	}
	return inverted, nil
}

func checkInjective(aliases []NameAlias) error {
	byOECD := make(map[string]string, len(aliases))
	byWB := make(map[string]string, len(aliases))
	for _, a := range aliases {
		if prev, ok := byOECD[a.OECD]; ok && prev != a.WorldBank {
			return &AliasConflictError{Side: "oecd", Name: a.OECD, First: prev, Second: a.WorldBank}
		}
		if prev, ok := byWB[a.WorldBank]; ok && prev != a.OECD {
			return &AliasConflictError{Side: "worldbank", Name: a.WorldBank, First: prev, Second: a.OECD}
		}
		byOECD[a.OECD] = a.WorldBank
		byWB[a.WorldBank] = a.OECD
	}
	return nil
}

// =============================================================================
// NORMALIZER
// =============================================================================

// Normalizer translates display names between the OECD and World Bank
// spellings. Names without an alias pass through unchanged.
type Normalizer struct {
	toWorldBank map[string]string
	toOECD      map[string]string
	deniedOECD  map[string]struct{}
	deniedWB    map[string]struct{}
}

// NewNormalizer builds a Normalizer from the alias table and denylists in t.
//
// RETURNS:
//   - An *AliasConflictError if the alias table is not injective.
func NewNormalizer(t Tables) (*Normalizer, error) {
	if err := checkInjective(t.Aliases); err != nil {
		return nil, err
	}

	n := &Normalizer{
		toWorldBank: make(map[string]string, len(t.Aliases)),
		toOECD:      make(map[string]string, len(t.Aliases)),
		deniedOECD:  toSet(t.NoCounterpartOECD),
		deniedWB:    toSet(t.NoCounterpartWorldBank),
	}
	for _, a := range t.Aliases {
		n.toWorldBank[a.OECD] = a.WorldBank
		n.toOECD[a.WorldBank] = a.OECD
	}
	return n, nil
}

// ToWorldBank returns the World Bank spelling of an OECD name.
func (n *Normalizer) ToWorldBank(oecdName string) string {
	if wb, ok := n.toWorldBank[oecdName]; ok {
		return wb
	}
	return oecdName
}

// ToOECD returns the OECD spelling of a World Bank name.
func (n *Normalizer) ToOECD(worldBankName string) string {
	if o, ok := n.toOECD[worldBankName]; ok {
		return o
	}
	return worldBankName
}

// DeniedOECD reports whether an OECD name is known to have no World Bank
// counterpart.
func (n *Normalizer) DeniedOECD(name string) bool {
	_, ok := n.deniedOECD[name]
	return ok
}

// DeniedWorldBank reports whether a World Bank name is known to have no OECD
// counterpart.
func (n *Normalizer) DeniedWorldBank(name string) bool {
	_, ok := n.deniedWB[name]
	return ok
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
