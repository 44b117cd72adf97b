package table

// Extract returns a new table holding the requested columns that exist in t,
// in the requested order. Requested columns missing from t are skipped, a
// repeated name keeps its first position, and an empty request returns a full
// copy. Report code asks for optional enrichment columns that may not be
// there, so a missing column is never an error.
func Extract(t *Table, features []string) *Table {
	if len(features) == 0 {
		return t.Copy()
	}

	var (
		columns []string
		source  []int
		seen    = make(map[string]struct{}, len(features))
	)
	for _, f := range features {
		if _, dup := seen[f]; dup {
			continue
		}
		c, ok := t.index[f]
		if !ok {
			continue
		}
		seen[f] = struct{}{}
		columns = append(columns, f)
		source = append(source, c)
	}

	out := MustNew(columns...)
	out.rows = make([][]Value, len(t.rows))
	for i, r := range t.rows {
		row := make([]Value, len(source))
		for j, c := range source {
			row[j] = r[c]
		}
		out.rows[i] = row
	}
	return out
}
