package countrycode

import (
	"sort"

	"github.com/goccy/go-json"
)

// Pair is one OECD code <-> ISO3 code link.
type Pair struct {
	OECD string `json:"oecd"`
	ISO3 string `json:"iso3"`
}

// IdentifierMap is the combined bidirectional code table. Both schemes share
// one key space: an OECD code maps to its ISO3 code and the ISO3 code maps
// back, side by side in the same table. The code spaces do not overlap, so a
// lookup never needs to know which scheme the key came from.
//
// A later Link for a key replaces the earlier value but leaves the earlier
// partner's entry in place. Several OECD codes may therefore resolve to the
// same ISO3 code (donor and recipient codes of one country), while that ISO3
// code resolves back to the most recently linked OECD code.
type IdentifierMap struct {
	entries map[string]string
	links   map[string]string // OECD -> ISO3
}

// NewIdentifierMap returns an empty map.
func NewIdentifierMap() *IdentifierMap {
	return &IdentifierMap{
		entries: make(map[string]string),
		links:   make(map[string]string),
	}
}

// Link inserts oecd -> iso3 and iso3 -> oecd.
func (m *IdentifierMap) Link(oecd, iso3 string) {
	m.entries[oecd] = iso3
	m.entries[iso3] = oecd
	m.links[oecd] = iso3
}

// Lookup returns the counterpart of code in the other scheme.
func (m *IdentifierMap) Lookup(code string) (string, bool) {
	v, ok := m.entries[code]
	return v, ok
}

// Contains reports whether code has a counterpart.
func (m *IdentifierMap) Contains(code string) bool {
	_, ok := m.entries[code]
	return ok
}

// Len returns the number of keys in the combined table (both directions).
func (m *IdentifierMap) Len() int {
	return len(m.entries)
}

// Pairs returns every OECD -> ISO3 link, numerically ordered by OECD code.
func (m *IdentifierMap) Pairs() []Pair {
	pairs := make([]Pair, 0, len(m.links))
	for oecd, iso3 := range m.links {
		pairs = append(pairs, Pair{OECD: oecd, ISO3: iso3})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if len(pairs[i].OECD) != len(pairs[j].OECD) {
			return len(pairs[i].OECD) < len(pairs[j].OECD)
		}
		return pairs[i].OECD < pairs[j].OECD
	})
	return pairs
}

// Entries returns a copy of the combined table.
func (m *IdentifierMap) Entries() map[string]string {
	out := make(map[string]string, len(m.entries))
	for k, v := range m.entries {
		out[k] = v
	}
	return out
}

// Clone returns an independent copy.
func (m *IdentifierMap) Clone() *IdentifierMap {
	c := NewIdentifierMap()
	for k, v := range m.entries {
		c.entries[k] = v
	}
	for k, v := range m.links {
		c.links[k] = v
	}
	return c
}

// =============================================================================
// SERIALIZATION
// =============================================================================

// snapshot keeps the combined table as-is so a restored map answers every
// lookup exactly like the one that was saved.
type snapshot struct {
	Entries map[string]string `json:"entries"`
	Links   []Pair            `json:"links"`
}

// MarshalJSON implements json.Marshaler.
func (m *IdentifierMap) MarshalJSON() ([]byte, error) {
	links := make([]Pair, 0, len(m.links))
	for oecd, iso3 := range m.links {
		links = append(links, Pair{OECD: oecd, ISO3: iso3})
	}
	sort.Slice(links, func(i, j int) bool { return links[i].OECD < links[j].OECD })
	return json.Marshal(snapshot{Entries: m.entries, Links: links})
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *IdentifierMap) UnmarshalJSON(data []byte) error {
	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	m.entries = make(map[string]string, len(s.Entries))
	for k, v := range s.Entries {
		m.entries[k] = v
	}
	m.links = make(map[string]string, len(s.Links))
	for _, p := range s.Links {
		m.links[p.OECD] = p.ISO3
	}
	return nil
}
