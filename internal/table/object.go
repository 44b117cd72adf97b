package table

import (
	"bytes"
	"strconv"

	"github.com/goccy/go-json"
)

// Member is one key of an Object.
type Member struct {
	Key   string
	Value any
}

// Object is a JSON object that keeps its keys in insertion order. Report
// files are read by people as often as by programs, so a stable order
// matters.
type Object []Member

// Set appends a member.
func (o *Object) Set(key string, value any) {
	*o = append(*o, Member{Key: key, Value: value})
}

// MarshalJSON renders the members in order.
func (o Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(m.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		value, err := json.Marshal(m.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// RowObject returns row i as an object in column order.
func (t *Table) RowObject(i int) Object {
	obj := make(Object, len(t.columns))
	for j, c := range t.columns {
		obj[j] = Member{Key: c, Value: t.rows[i][j]}
	}
	return obj
}

// IndexObject returns the table keyed by row position ("0", "1", ...).
func (t *Table) IndexObject() Object {
	obj := make(Object, len(t.rows))
	for i := range t.rows {
		obj[i] = Member{Key: strconv.Itoa(i), Value: t.RowObject(i)}
	}
	return obj
}
