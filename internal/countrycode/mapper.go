// =============================================================================
// crsmerge - Identifier Mapper
// =============================================================================
//
// The Mapper links OECD country codes to World Bank ISO3 codes by name:
//
//   1. Take every distinct (code, name) pair seen as donor or recipient.
//   2. Translate each OECD name into World Bank spelling.
//   3. Outer-join the translated names against the World Bank country table.
//   4. Link both directions for every row with a code on both sides.
//   5. Overlay the manual overrides, which always win.
//
// Steps 1-4 are Automatic; step 5 is ApplyOverrides. Build runs both. The
// split lets a cached automatic map be reused while the overrides are still
// applied on every run.
//
// =============================================================================

package countrycode

import (
	"fmt"
	"log/slog"
	"sort"
)

// Entity is an OECD (code, name) pair as found in the transaction data.
type Entity struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Reference is one row of the World Bank country table.
type Reference struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Region string `json:"region"`
}

// DenylistMode decides what the Mapper does with denylisted names.
type DenylistMode string

const (
	// DenylistReport lists denylisted names in the BuildReport and still
	// attempts to match them.
	DenylistReport DenylistMode = "report"

	// DenylistEnforce removes denylisted names before matching.
	DenylistEnforce DenylistMode = "enforce"
)

// ParseDenylistMode validates a configured mode. Empty means DenylistReport.
func ParseDenylistMode(s string) (DenylistMode, error) {
	switch DenylistMode(s) {
	case "", DenylistReport:
		return DenylistReport, nil
	case DenylistEnforce:
		return DenylistEnforce, nil
	default:
		return "", fmt.Errorf("unknown denylist mode %q (want %q or %q)", s, DenylistReport, DenylistEnforce)
	}
}

// =============================================================================
// BUILD REPORT
// =============================================================================

// BuildReport describes what a mapping run matched and what it left out.
type BuildReport struct {
	Entities   int
	References int

	// Matched counts joined rows that produced a link.
	Matched int

	UnmatchedOECD      []Entity
	UnmatchedWorldBank []Reference

	// ExpectedUnmapped counts unmatched OECD entities whose code is a known
	// regional aggregate.
	ExpectedUnmapped int

	DeniedOECD      []Entity
	DeniedWorldBank []Reference
	Enforced        bool

	// Relinked lists keys whose value was replaced by a later link.
	Relinked []string

	Overrides int
}

// UnexpectedOECD returns the unmatched OECD entities that are not regional
// aggregates.
func (r BuildReport) UnexpectedOECD() []Entity {
	regions := toSet(UnmappedRegionCodes)
	var out []Entity
	for _, e := range r.UnmatchedOECD {
		if _, ok := regions[e.Code]; !ok {
			out = append(out, e)
		}
	}
	return out
}

// =============================================================================
// MAPPER
// =============================================================================

// Mapper builds IdentifierMaps from reference tables.
type Mapper struct {
	normalizer *Normalizer
	overrides  []Override
	denylist   DenylistMode
	logger     *slog.Logger
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithDenylistMode sets how denylisted names are treated.
func WithDenylistMode(mode DenylistMode) Option {
	return func(m *Mapper) { m.denylist = mode }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Mapper) { m.logger = logger }
}

// NewMapper creates a Mapper over the given tables.
func NewMapper(t Tables, opts ...Option) (*Mapper, error) {
	n, err := NewNormalizer(t)
	if err != nil {
		return nil, err
	}
	m := &Mapper{
		normalizer: n,
		overrides:  append([]Override(nil), t.Overrides...),
		denylist:   DenylistReport,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Normalizer returns the name normalizer the Mapper matches with.
func (m *Mapper) Normalizer() *Normalizer {
	return m.normalizer
}

// Build runs Automatic followed by ApplyOverrides.
func (m *Mapper) Build(entities []Entity, refs []Reference) (*IdentifierMap, BuildReport) {
	idmap, report := m.Automatic(entities, refs)
	report.Overrides = m.ApplyOverrides(idmap)
	return idmap, report
}

// Automatic links codes by name. Entities and references with an empty code
// or name are skipped. Entities are processed in (code, name) order and
// references in code order, so equal inputs always give equal maps.
func (m *Mapper) Automatic(entities []Entity, refs []Reference) (*IdentifierMap, BuildReport) {
	enforce := m.denylist == DenylistEnforce
	report := BuildReport{Enforced: enforce}

	// Index the World Bank side by name.
	refs = uniqueReferences(refs)
	byName := make(map[string][]int, len(refs))
	for i, r := range refs {
		if m.normalizer.DeniedWorldBank(r.Name) {
			report.DeniedWorldBank = append(report.DeniedWorldBank, r)
			if enforce {
				continue
			}
		}
		byName[r.Name] = append(byName[r.Name], i)
	}
	report.References = len(refs)

	entities = UniqueEntities(entities)
	report.Entities = len(entities)

	idmap := NewIdentifierMap()
	matchedRefs := make([]bool, len(refs))
	regions := toSet(UnmappedRegionCodes)

	for _, e := range entities {
		if m.normalizer.DeniedOECD(e.Name) {
			report.DeniedOECD = append(report.DeniedOECD, e)
			if enforce {
				continue
			}
		}

		candidates := byName[m.normalizer.ToWorldBank(e.Name)]
		if len(candidates) == 0 {
			report.UnmatchedOECD = append(report.UnmatchedOECD, e)
			if _, ok := regions[e.Code]; ok {
				report.ExpectedUnmapped++
			}
			continue
		}

		for _, idx := range candidates {
			r := refs[idx]
			matchedRefs[idx] = true
			report.Relinked = append(report.Relinked, relinks(idmap, e.Code, r.Code)...)
			idmap.Link(e.Code, r.Code)
			report.Matched++
		}
	}

	for i, r := range refs {
		if matchedRefs[i] {
			continue
		}
		if enforce && m.normalizer.DeniedWorldBank(r.Name) {
			continue
		}
		report.UnmatchedWorldBank = append(report.UnmatchedWorldBank, r)
	}

	m.logger.Debug("automatic country mapping built",
		"entities", report.Entities,
		"references", report.References,
		"matched", report.Matched,
		"unmatched_oecd", len(report.UnmatchedOECD),
		"unmatched_worldbank", len(report.UnmatchedWorldBank),
		"relinked", len(report.Relinked),
	)
	return idmap, report
}

// ApplyOverrides links every manual override pair into idmap, replacing any
// automatic result for the same keys. It returns the number applied.
func (m *Mapper) ApplyOverrides(idmap *IdentifierMap) int {
	for _, o := range m.overrides {
		if prev, ok := idmap.Lookup(o.OECD); ok && prev != o.ISO3 {
			m.logger.Debug("override replaces automatic link", "oecd", o.OECD, "was", prev, "now", o.ISO3)
		}
		idmap.Link(o.OECD, o.ISO3)
	}
	return len(m.overrides)
}

// relinks returns the keys a Link(oecd, iso3) would overwrite with a
// different value.
func relinks(idmap *IdentifierMap, oecd, iso3 string) []string {
	var out []string
	if prev, ok := idmap.Lookup(oecd); ok && prev != iso3 {
		out = append(out, oecd)
	}
	if prev, ok := idmap.Lookup(iso3); ok && prev != oecd {
		out = append(out, iso3)
	}
	return out
}

// =============================================================================
// INPUT PREPARATION
// =============================================================================

// UniqueEntities returns the set union of the given entities, without blanks,
// sorted by code then name.
func UniqueEntities(entities []Entity) []Entity {
	seen := make(map[Entity]struct{}, len(entities))
	out := make([]Entity, 0, len(entities))
	for _, e := range entities {
		if e.Code == "" || e.Name == "" {
			continue
		}
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Code != out[j].Code {
			return out[i].Code < out[j].Code
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func uniqueReferences(refs []Reference) []Reference {
	seen := make(map[string]struct{}, len(refs))
	out := make([]Reference, 0, len(refs))
	for _, r := range refs {
		if r.Code == "" || r.Name == "" {
			continue
		}
		if _, ok := seen[r.Code]; ok {
			continue
		}
		seen[r.Code] = struct{}{}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
