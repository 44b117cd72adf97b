package joinkey

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  Key
		want string
	}{
		{"four digit year", New(2015, "DEU"), "2015DEU"},
		{"no zero padding", New(987, "DEU"), "987DEU"},
		{"oecd code", New(2019, "285"), "2019285"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.key.String())
		})
	}
}

func TestKey_Delimited(t *testing.T) {
	assert.Equal(t, "2015|DEU", New(2015, "DEU").Delimited("|"))
}

func TestFromDate(t *testing.T) {
	key, ok := FromDate(time.Date(2015, time.March, 4, 0, 0, 0, 0, time.UTC), "DEU")
	require.True(t, ok)
	assert.Equal(t, "2015DEU", key.String())

	_, ok = FromDate(time.Time{}, "DEU")
	assert.False(t, ok)
}

func TestKey_TupleEqualityAvoidsStringCollisions(t *testing.T) {
	a := New(201, "5DEU")
	b := New(2015, "DEU")

	assert.Equal(t, a.String(), b.String())
	assert.NotEqual(t, a, b)

	index := map[Key]int{a: 1, b: 2}
	assert.Len(t, index, 2)
}
