// =============================================================================
// crsmerge - Tabular View
// =============================================================================
//
// This package holds the ordered-column table shared by the merge, report and
// export packages. It sits below all of them so none has to import another
// just to pass rows around.
//
// A Table is built once and then only read. Every operation that changes the
// shape (Extract, Filter) returns a new Table.
//
// =============================================================================

package table

import (
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
)

// =============================================================================
// VALUES
// =============================================================================

// Kind is the type of a cell.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
)

// Value is one cell. The zero Value is null.
type Value struct {
	kind Kind
	text string
	num  float64
}

// Null returns a null cell.
func Null() Value { return Value{} }

// String returns a text cell.
func String(s string) Value { return Value{kind: KindString, text: s} }

// Number returns a numeric cell.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Kind returns the cell type.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the cell is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Float returns the numeric value of a number cell.
func (v Value) Float() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

// Text renders the cell as text. Null renders as "".
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.text
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	default:
		return ""
	}
}

// MarshalJSON renders null, string or number.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.text)
	case KindNumber:
		return json.Marshal(v.num)
	default:
		return []byte("null"), nil
	}
}

// =============================================================================
// TABLE
// =============================================================================

// Table is a list of rows over a fixed, ordered set of columns.
type Table struct {
	columns []string
	index   map[string]int
	rows    [][]Value
}

// New creates an empty table. Duplicate column names are rejected.
func New(columns ...string) (*Table, error) {
	t := &Table{
		columns: append([]string(nil), columns...),
		index:   make(map[string]int, len(columns)),
	}
	for i, c := range columns {
		if _, dup := t.index[c]; dup {
			return nil, fmt.Errorf("duplicate column %q", c)
		}
		t.index[c] = i
	}
	return t, nil
}

// MustNew is New for column lists known to be valid.
func MustNew(columns ...string) *Table {
	t, err := New(columns...)
	if err != nil {
		panic(err)
	}
	return t
}

// Append adds a row. The row must have one value per column.
func (t *Table) Append(row ...Value) error {
	if len(row) != len(t.columns) {
		return fmt.Errorf("row has %d values, table has %d columns", len(row), len(t.columns))
	}
	t.rows = append(t.rows, append([]Value(nil), row...))
	return nil
}

// MustAppend is Append for rows built from the table's own columns.
func (t *Table) MustAppend(row ...Value) {
	if err := t.Append(row...); err != nil {
		panic(err)
	}
}

// Columns returns the column names in order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

// Has reports whether the table has a column.
func (t *Table) Has(column string) bool {
	_, ok := t.index[column]
	return ok
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Row returns row i. The slice must not be modified.
func (t *Table) Row(i int) []Value { return t.rows[i] }

// Get returns the cell at row i, column name.
func (t *Table) Get(i int, column string) (Value, bool) {
	c, ok := t.index[column]
	if !ok {
		return Value{}, false
	}
	return t.rows[i][c], true
}

// Copy returns an independent copy.
func (t *Table) Copy() *Table {
	c := MustNew(t.columns...)
	c.rows = make([][]Value, len(t.rows))
	for i, r := range t.rows {
		c.rows[i] = append([]Value(nil), r...)
	}
	return c
}

// Filter returns a table with the rows for which keep returns true.
func (t *Table) Filter(keep func(row int) bool) *Table {
	out := MustNew(t.columns...)
	for i, r := range t.rows {
		if keep(i) {
			out.rows = append(out.rows, append([]Value(nil), r...))
		}
	}
	return out
}
