package worldbank

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// AggregateRegion is the region value the API gives to aggregates such as
// "World" or "Sub-Saharan Africa".
const AggregateRegion = "Aggregates"

// Country is one row of the World Bank country table.
type Country struct {
	ISO3        string `json:"iso3Code"`
	ISO2        string `json:"iso2Code"`
	Name        string `json:"name"`
	Region      string `json:"region"`
	AdminRegion string `json:"adminregion"`
	IncomeLevel string `json:"incomeLevel"`
	LendingType string `json:"lendingType"`
	CapitalCity string `json:"capitalCity"`
	Longitude   string `json:"longitude"`
	Latitude    string `json:"latitude"`
}

// IsAggregate reports whether the row is a regional or income aggregate
// rather than a country.
func (c Country) IsAggregate() bool { return c.Region == AggregateRegion }

// Observation is one non-null indicator value.
type Observation struct {
	Country string  `json:"country"`
	Year    int     `json:"year"`
	Value   float64 `json:"value"`
}

// Series is all observations of one indicator.
type Series struct {
	Indicator    string        `json:"indicator"`
	Observations []Observation `json:"observations"`
}

// =============================================================================
// WIRE FORMAT
// =============================================================================

// meta is the first element of every API response.
type meta struct {
	Page    flexInt `json:"page"`
	Pages   flexInt `json:"pages"`
	PerPage flexInt `json:"per_page"`
	Total   flexInt `json:"total"`
}

// flexInt accepts both 3 and "3"; the API uses either depending on the
// endpoint.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*f = 0
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return err
		}
		*f = flexInt(n)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

// apiMessage is the body of an error response: [{"message":[{...}]}].
type apiMessage struct {
	Message []struct {
		ID    string `json:"id"`
		Key   string `json:"key"`
		Value string `json:"value"`
	} `json:"message"`
}

type idValue struct {
	ID       string `json:"id"`
	ISO2Code string `json:"iso2code"`
	Value    string `json:"value"`
}

type rawCountry struct {
	ID          string  `json:"id"`
	ISO2Code    string  `json:"iso2Code"`
	Name        string  `json:"name"`
	Region      idValue `json:"region"`
	AdminRegion idValue `json:"adminregion"`
	IncomeLevel idValue `json:"incomeLevel"`
	LendingType idValue `json:"lendingType"`
	CapitalCity string  `json:"capitalCity"`
	Longitude   string  `json:"longitude"`
	Latitude    string  `json:"latitude"`
}

func (r rawCountry) country() Country {
	return Country{
		ISO3:        strings.TrimSpace(r.ID),
		ISO2:        strings.TrimSpace(r.ISO2Code),
		Name:        strings.TrimSpace(r.Name),
		Region:      strings.TrimSpace(r.Region.Value),
		AdminRegion: strings.TrimSpace(r.AdminRegion.Value),
		IncomeLevel: strings.TrimSpace(r.IncomeLevel.Value),
		LendingType: strings.TrimSpace(r.LendingType.Value),
		CapitalCity: strings.TrimSpace(r.CapitalCity),
		Longitude:   strings.TrimSpace(r.Longitude),
		Latitude:    strings.TrimSpace(r.Latitude),
	}
}

type rawObservation struct {
	CountryISO3 string   `json:"countryiso3code"`
	Date        string   `json:"date"`
	Value       *float64 `json:"value"`
}

// observation converts a raw row. Rows with a null value, no ISO3 code or a
// non-annual date are skipped.
func (r rawObservation) observation() (Observation, bool) {
	if r.Value == nil {
		return Observation{}, false
	}
	iso3 := strings.TrimSpace(r.CountryISO3)
	if iso3 == "" {
		return Observation{}, false
	}
	year, err := strconv.Atoi(strings.TrimSpace(r.Date))
	if err != nil {
		return Observation{}, false
	}
	return Observation{Country: iso3, Year: year, Value: *r.Value}, true
}
