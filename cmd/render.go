package cmd

import (
	"fmt"
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/ginjaninja78/crsmerge/internal/countrycode"
	"github.com/ginjaninja78/crsmerge/internal/merge"
	"github.com/ginjaninja78/crsmerge/internal/pipeline"
)

func newTable(w io.Writer, header ...any) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	if len(header) > 0 {
		t.AppendHeader(table.Row(header))
	}
	return t
}

// renderPairs prints the OECD -> ISO3 links of a map.
func renderPairs(w io.Writer, idmap *countrycode.IdentifierMap) {
	t := newTable(w, "OECD", "ISO3")
	for _, p := range idmap.Pairs() {
		t.AppendRow(table.Row{p.OECD, p.ISO3})
	}
	t.Render()
	fmt.Fprintf(w, "(%d links)\n", len(idmap.Pairs()))
}

// renderBuildReport prints the counts of a mapping run and the entities it
// could not place.
func renderBuildReport(w io.Writer, r countrycode.BuildReport) {
	t := newTable(w, "Mapping", "Count")
	t.AppendRows([]table.Row{
		{"OECD entities", r.Entities},
		{"World Bank countries", r.References},
		{"Matched", r.Matched},
		{"Overrides", r.Overrides},
		{"Unmatched OECD", len(r.UnmatchedOECD)},
		{"  of which regional aggregates", r.ExpectedUnmapped},
		{"Unmatched World Bank", len(r.UnmatchedWorldBank)},
		{"Denylisted OECD", len(r.DeniedOECD)},
		{"Denylisted World Bank", len(r.DeniedWorldBank)},
		{"Relinked", len(r.Relinked)},
	})
	t.Render()

	if unexpected := r.UnexpectedOECD(); len(unexpected) > 0 {
		u := newTable(w, "Unmatched OECD code", "Name")
		for _, e := range unexpected {
			u.AppendRow(table.Row{e.Code, e.Name})
		}
		u.Render()
	}
}

func renderMergeStats(w io.Writer, s merge.Stats) {
	t := newTable(w, "Merge", "Records")
	t.AppendRows([]table.Row{
		{"Input", s.Input},
		{"Unmapped donor", s.UnmappedDonor},
		{"Unmapped recipient", s.UnmappedRecipient},
		{"Missing commitment date", s.MissingDate},
		{"Donor without stats", s.DonorWithoutStats},
		{"Recipient without stats", s.RecipientWithoutStats},
		{"Dropped by inner join", s.DroppedByInnerJoin},
	})
	t.AppendFooter(table.Row{"Output", s.Output})
	t.Render()
}

func renderFetch(w io.Writer, r *pipeline.FetchResult) {
	t := newTable(w, "Source", "Rows")
	t.AppendRow(table.Row{"Countries", r.Countries})
	t.AppendRow(table.Row{"  of which aggregates", r.Aggregates})
	indicators := append([]string(nil), r.Indicators...)
	sort.Strings(indicators)
	for _, ind := range indicators {
		t.AppendRow(table.Row{ind, r.Observations[ind]})
	}
	t.Render()
}

func renderReports(w io.Writer, reports []pipeline.ScopeReport) {
	t := newTable(w, "Value", "Scope", "Records", "Files", "Directory")
	for _, r := range reports {
		t.AppendRow(table.Row{r.Value, r.Scope, r.Report.Records, len(r.Report.Files), r.Report.Dir})
	}
	t.Render()
}

func renderTables(w io.Writer, tables countrycode.Tables) {
	a := newTable(w, "OECD name", "World Bank name")
	for _, al := range tables.Aliases {
		a.AppendRow(table.Row{al.OECD, al.WorldBank})
	}
	a.Render()

	o := newTable(w, "OECD code", "ISO3", "Note")
	for _, ov := range tables.Overrides {
		o.AppendRow(table.Row{ov.OECD, ov.ISO3, ov.Note})
	}
	o.Render()

	d := newTable(w, "Side", "No counterpart")
	for _, n := range tables.NoCounterpartOECD {
		d.AppendRow(table.Row{"OECD", n})
	}
	for _, n := range tables.NoCounterpartWorldBank {
		d.AppendRow(table.Row{"World Bank", n})
	}
	d.Render()
}
