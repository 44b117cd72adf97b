package table

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(t *testing.T) *Table {
	t.Helper()
	tbl := MustNew("A", "B", "C")
	require.NoError(t, tbl.Append(String("a1"), Number(1.5), Null()))
	require.NoError(t, tbl.Append(String("a2"), Number(2), String("c2")))
	return tbl
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name     string
		features []string
		want     []string
	}{
		{"subset in requested order", []string{"C", "A"}, []string{"C", "A"}},
		{"missing column skipped", []string{"A", "Z"}, []string{"A"}},
		{"nothing matches", []string{"Y", "Z"}, nil},
		{"duplicates keep first position", []string{"B", "A", "B"}, []string{"B", "A"}},
		{"empty request copies everything", nil, []string{"A", "B", "C"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := sample(t)
			got := Extract(src, tt.features)

			if tt.want == nil {
				assert.Empty(t, got.Columns())
			} else {
				assert.Equal(t, tt.want, got.Columns())
			}
			assert.Equal(t, src.Len(), got.Len())
		})
	}
}

func TestExtract_ValuesFollowColumns(t *testing.T) {
	got := Extract(sample(t), []string{"C", "A"})

	v, ok := got.Get(1, "C")
	require.True(t, ok)
	assert.Equal(t, "c2", v.Text())

	v, ok = got.Get(0, "C")
	require.True(t, ok)
	assert.True(t, v.IsNull())
}

func TestExtract_ReturnsIndependentCopy(t *testing.T) {
	src := sample(t)
	got := Extract(src, nil)
	got.rows[0][0] = String("changed")

	v, _ := src.Get(0, "A")
	assert.Equal(t, "a1", v.Text())
}

func TestNew_RejectsDuplicateColumns(t *testing.T) {
	_, err := New("A", "A")
	assert.Error(t, err)
}

func TestAppend_WrongWidth(t *testing.T) {
	tbl := MustNew("A", "B")
	assert.Error(t, tbl.Append(String("x")))
}

func TestMustAppend(t *testing.T) {
	tbl := MustNew("A", "B")
	tbl.MustAppend(String("x"), Number(1))
	assert.Equal(t, 1, tbl.Len())
	assert.Panics(t, func() { tbl.MustAppend(String("x")) })
}

func TestValue_JSON(t *testing.T) {
	data, err := json.Marshal([]Value{Null(), String("x"), Number(2.5)})
	require.NoError(t, err)
	assert.JSONEq(t, `[null,"x",2.5]`, string(data))
}

func TestValue_Text(t *testing.T) {
	assert.Equal(t, "", Null().Text())
	assert.Equal(t, "0.25", Number(0.25).Text())
	assert.Equal(t, "1000000", Number(1e6).Text())
}

func TestFilter(t *testing.T) {
	src := sample(t)
	got := src.Filter(func(i int) bool {
		v, _ := src.Get(i, "C")
		return !v.IsNull()
	})
	require.Equal(t, 1, got.Len())
	v, _ := got.Get(0, "A")
	assert.Equal(t, "a2", v.Text())
}

func TestObject_KeepsOrder(t *testing.T) {
	var obj Object
	obj.Set("z", 1)
	obj.Set("a", nil)
	obj.Set("m", Object{{Key: "y", Value: "x"}})

	data, err := json.Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"z":1,"a":null,"m":{"y":"x"}}`, string(data))
}

func TestIndexObject(t *testing.T) {
	data, err := json.Marshal(sample(t).IndexObject())
	require.NoError(t, err)
	assert.Equal(t,
		`{"0":{"A":"a1","B":1.5,"C":null},"1":{"A":"a2","B":2,"C":"c2"}}`,
		string(data))
}
