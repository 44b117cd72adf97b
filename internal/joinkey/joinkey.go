// Package joinkey builds the (year, country) keys that line up transaction
// records with yearly indicator values. The two sources share no foreign key,
// so the commitment year plus the country code in World Bank form is the only
// thing they can be joined on.
package joinkey

import (
	"strconv"
	"time"
)

// Key is a composite join key. Keys compare as tuples, so there is no
// ambiguity between e.g. (201, "5DEU") and (2015, "DEU").
type Key struct {
	Year    int
	Country string
}

// New returns the key for a year and a country code.
func New(year int, country string) Key {
	return Key{Year: year, Country: country}
}

// FromDate returns the key for the calendar year of date. It reports false
// for a zero date, which cannot be joined.
func FromDate(date time.Time, country string) (Key, bool) {
	if date.IsZero() {
		return Key{}, false
	}
	return Key{Year: date.Year(), Country: country}, true
}

// String renders the key in its legacy form: the year as a plain integer
// followed directly by the code, e.g. "2015DEU".
func (k Key) String() string {
	return strconv.Itoa(k.Year) + k.Country
}

// Delimited renders the key with sep between year and code.
func (k Key) Delimited(sep string) string {
	return strconv.Itoa(k.Year) + sep + k.Country
}
