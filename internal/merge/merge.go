// =============================================================================
// crsmerge - Series Merger
// =============================================================================
//
// The merger attaches World Bank indicator values to CRS transactions, once
// for the donor and once for the recipient of each record. For each enabled
// role:
//
//  1. the role's OECD code is translated through the IdentifierMap; a record
//     whose code has no entry is dropped before any join happens
//  2. a join key is built from the commitment year and the ISO3 code
//  3. the indicator row for that key is looked up
//
// In left mode a record without an indicator row is kept with null values.
// In inner mode it is dropped. The merger performs no I/O.
//
// =============================================================================

package merge

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ginjaninja78/crsmerge/internal/countrycode"
	"github.com/ginjaninja78/crsmerge/internal/crs"
	"github.com/ginjaninja78/crsmerge/internal/indicator"
	"github.com/ginjaninja78/crsmerge/internal/joinkey"
)

// =============================================================================
// ROLES AND MODES
// =============================================================================

// Role is the side of a transaction an indicator row is joined for.
type Role int

const (
	Donor Role = iota
	Recipient
)

func (r Role) String() string {
	if r == Donor {
		return "donor"
	}
	return "recipient"
}

// Prefix is prepended to every column the role contributes.
func (r Role) Prefix() string {
	if r == Donor {
		return "Donorstat "
	}
	return "Recipientstat "
}

func (r Role) code(t crs.Transaction) string {
	if r == Donor {
		return t.DonorCode
	}
	return t.RecipientCode
}

// JoinMode selects what happens to records without indicator data.
type JoinMode string

const (
	// JoinLeft keeps such records with null indicator columns.
	JoinLeft JoinMode = "left"
	// JoinInner drops them.
	JoinInner JoinMode = "inner"
)

// ErrUnknownJoinMode is returned for a mode other than left or inner.
var ErrUnknownJoinMode = errors.New("unknown join mode")

// ParseJoinMode parses "left" or "inner". Blank means left.
func ParseJoinMode(s string) (JoinMode, error) {
	switch JoinMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", JoinLeft:
		return JoinLeft, nil
	case JoinInner:
		return JoinInner, nil
	}
	return "", fmt.Errorf("%w: %q (want left or inner)", ErrUnknownJoinMode, s)
}

// Options controls a merge.
type Options struct {
	Mode      JoinMode
	Donor     bool
	Recipient bool
}

// DefaultOptions merges both roles in left mode.
func DefaultOptions() Options {
	return Options{Mode: JoinLeft, Donor: true, Recipient: true}
}

// Roles returns the enabled roles, donor first.
func (o Options) Roles() []Role {
	var roles []Role
	if o.Donor {
		roles = append(roles, Donor)
	}
	if o.Recipient {
		roles = append(roles, Recipient)
	}
	return roles
}

// =============================================================================
// RESULT
// =============================================================================

// Row is a transaction with the indicator rows found for it. A nil pointer
// means no data for that role.
type Row struct {
	Transaction crs.Transaction
	Donor       *indicator.Row
	Recipient   *indicator.Row
}

// For returns the indicator row of a role.
func (r Row) For(role Role) *indicator.Row {
	if role == Donor {
		return r.Donor
	}
	return r.Recipient
}

// Stats counts what happened to the input records.
type Stats struct {
	Input                 int
	Output                int
	UnmappedDonor         int
	UnmappedRecipient     int
	MissingDate           int
	DonorWithoutStats     int
	RecipientWithoutStats int
	DroppedByInnerJoin    int
}

// LogValue implements slog.LogValuer.
func (s Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("input", s.Input),
		slog.Int("output", s.Output),
		slog.Int("unmapped_donor", s.UnmappedDonor),
		slog.Int("unmapped_recipient", s.UnmappedRecipient),
		slog.Int("missing_date", s.MissingDate),
		slog.Int("donor_without_stats", s.DonorWithoutStats),
		slog.Int("recipient_without_stats", s.RecipientWithoutStats),
		slog.Int("dropped_by_inner_join", s.DroppedByInnerJoin),
	)
}

// Result is the output of a merge.
type Result struct {
	Rows       []Row
	Stats      Stats
	Options    Options
	Indicators []string
}

// Transactions returns the merged records without indicator data.
func (r *Result) Transactions() []crs.Transaction {
	out := make([]crs.Transaction, len(r.Rows))
	for i, row := range r.Rows {
		out[i] = row.Transaction
	}
	return out
}

// =============================================================================
// MERGER
// =============================================================================

// Merger joins indicator rows onto transactions.
type Merger struct {
	idmap      *countrycode.IdentifierMap
	indicators *indicator.Table
	opts       Options
}

// New returns a merger. The indicator table is expected to hold only
// countries present in idmap.
func New(idmap *countrycode.IdentifierMap, indicators *indicator.Table, opts Options) (*Merger, error) {
	if idmap == nil {
		return nil, errors.New("identifier map is nil")
	}
	if indicators == nil {
		return nil, errors.New("indicator table is nil")
	}
	mode, err := ParseJoinMode(string(opts.Mode))
	if err != nil {
		return nil, err
	}
	opts.Mode = mode
	return &Merger{idmap: idmap, indicators: indicators, opts: opts}, nil
}

// Merge joins every record. The input is not modified.
func (m *Merger) Merge(records []crs.Transaction) *Result {
	res := &Result{
		Rows:       make([]Row, 0, len(records)),
		Options:    m.opts,
		Indicators: m.indicators.Indicators(),
	}
	roles := m.opts.Roles()

	for _, tx := range records {
		res.Stats.Input++

		codes, ok := m.translate(tx, roles, &res.Stats)
		if !ok {
			continue
		}

		row := Row{Transaction: tx}
		year, hasDate := tx.Year()
		if !hasDate {
			res.Stats.MissingDate++
		}

		complete := hasDate
		if hasDate {
			for i, role := range roles {
				ind, found := m.indicators.Lookup(joinkey.New(year, codes[i]))
				if !found {
					complete = false
					if role == Donor {
						res.Stats.DonorWithoutStats++
					} else {
						res.Stats.RecipientWithoutStats++
					}
					continue
				}
				if role == Donor {
					row.Donor = ind
				} else {
					row.Recipient = ind
				}
			}
		}

		if m.opts.Mode == JoinInner && !complete {
			res.Stats.DroppedByInnerJoin++
			continue
		}
		res.Rows = append(res.Rows, row)
		res.Stats.Output++
	}
	return res
}

// translate resolves the ISO3 code of every enabled role. Roles are checked
// in order and the first unmapped one is counted.
func (m *Merger) translate(tx crs.Transaction, roles []Role, stats *Stats) ([]string, bool) {
	codes := make([]string, len(roles))
	for i, role := range roles {
		iso3, ok := m.idmap.Lookup(role.code(tx))
		if !ok {
			if role == Donor {
				stats.UnmappedDonor++
			} else {
				stats.UnmappedRecipient++
			}
			return nil, false
		}
		codes[i] = iso3
	}
	return codes, true
}
