package worldbank

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/crsmerge/internal/testutil"
)

const countryPage1 = `[
  {"page":1,"pages":2,"per_page":"2","total":3},
  [
    {"id":"DEU","iso2Code":"DE","name":"Germany",
     "region":{"id":"ECS","iso2code":"Z7","value":"Europe & Central Asia "},
     "adminregion":{"id":"","iso2code":"","value":""},
     "incomeLevel":{"id":"HIC","iso2code":"XD","value":"High income"},
     "lendingType":{"id":"LNX","iso2code":"XX","value":"Not classified"},
     "capitalCity":"Berlin","longitude":"13.4115","latitude":"52.5235"},
    {"id":"WLD","iso2Code":"1W","name":"World",
     "region":{"id":"NA","iso2code":"NA","value":"Aggregates"},
     "adminregion":{"id":"","iso2code":"","value":""},
     "incomeLevel":{"id":"NA","iso2code":"NA","value":"Aggregates"},
     "lendingType":{"id":"","iso2code":"","value":"Aggregates"},
     "capitalCity":"","longitude":"","latitude":""}
  ]
]`

const countryPage2 = `[
  {"page":"2","pages":"2","per_page":"2","total":"3"},
  [
    {"id":"UGA","iso2Code":"UG","name":"Uganda",
     "region":{"id":"SSF","iso2code":"ZG","value":"Sub-Saharan Africa "},
     "adminregion":{"id":"SSA","iso2code":"ZF","value":"Sub-Saharan Africa (excluding high income)"},
     "incomeLevel":{"id":"LIC","iso2code":"XM","value":"Low income"},
     "lendingType":{"id":"IDX","iso2code":"XI","value":"IDA"},
     "capitalCity":"Kampala","longitude":"32.5729","latitude":"0.314269"}
  ]
]`

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(WithBaseURL(srv.URL), WithPerPage(2), WithLogger(testutil.NewTestLogger(t)))
}

func TestClient_CountriesPaginates(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/country", r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "2", r.URL.Query().Get("per_page"))
		switch r.URL.Query().Get("page") {
		case "1":
			fmt.Fprint(w, countryPage1)
		case "2":
			fmt.Fprint(w, countryPage2)
		default:
			t.Errorf("unexpected page %q", r.URL.Query().Get("page"))
		}
	}))

	countries, err := c.Countries(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())
	require.Len(t, countries, 3)

	deu := countries[0]
	assert.Equal(t, "DEU", deu.ISO3)
	assert.Equal(t, "Europe & Central Asia", deu.Region, "region values are trimmed")
	assert.Equal(t, "High income", deu.IncomeLevel)
	assert.Equal(t, "Berlin", deu.CapitalCity)
	assert.False(t, deu.IsAggregate())

	assert.True(t, countries[1].IsAggregate())
	assert.Equal(t, "Sub-Saharan Africa (excluding high income)", countries[2].AdminRegion)
}

func TestClient_SeriesDropsNulls(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/country/all/indicator/SP.POP.TOTL", r.URL.Path)
		assert.Equal(t, "2018:2019", r.URL.Query().Get("date"))
		fmt.Fprint(w, `[
		  {"page":1,"pages":1,"per_page":50,"total":4},
		  [
		    {"indicator":{"id":"SP.POP.TOTL","value":"Population, total"},"country":{"id":"DE","value":"Germany"},"countryiso3code":"DEU","date":"2019","value":83092962,"unit":"","obs_status":"","decimal":0},
		    {"indicator":{"id":"SP.POP.TOTL","value":"Population, total"},"country":{"id":"DE","value":"Germany"},"countryiso3code":"DEU","date":"2018","value":null,"unit":"","obs_status":"","decimal":0},
		    {"indicator":{"id":"SP.POP.TOTL","value":"Population, total"},"country":{"id":"XK","value":"Kosovo"},"countryiso3code":"","date":"2019","value":1794248,"unit":"","obs_status":"","decimal":0},
		    {"indicator":{"id":"SP.POP.TOTL","value":"Population, total"},"country":{"id":"UG","value":"Uganda"},"countryiso3code":"UGA","date":"2019","value":44269587,"unit":"","obs_status":"","decimal":0}
		  ]
		]`)
	}))

	s, err := c.Series(context.Background(), "SP.POP.TOTL", 2018, 2019)
	require.NoError(t, err)
	assert.Equal(t, "SP.POP.TOTL", s.Indicator)
	assert.Equal(t, []Observation{
		{Country: "DEU", Year: 2019, Value: 83092962},
		{Country: "UGA", Year: 2019, Value: 44269587},
	}, s.Observations)
}

func TestClient_SeriesWithoutData(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"page":0,"pages":0,"per_page":50,"total":0},null]`)
	}))

	s, err := c.Series(context.Background(), "SI.SPR.PCAP", 1980, 1981)
	require.NoError(t, err)
	assert.Empty(t, s.Observations)
}

func TestClient_APIError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"message":[{"id":"120","key":"Invalid value","value":"The provided parameter value is not valid"}]}]`)
	}))

	_, err := c.Series(context.Background(), "NOPE", 2000, 2001)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, apiErr.Message, "Invalid value")
	assert.Contains(t, err.Error(), "failed to fetch series NOPE")
}

func TestClient_HTTPStatusError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))

	_, err := c.Countries(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
}

func TestClient_ContextCancelled(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, countryPage2)
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Countries(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_SeriesSet(t *testing.T) {
	var seen []string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		code := strings.TrimPrefix(r.URL.Path, "/country/all/indicator/")
		seen = append(seen, code)
		fmt.Fprint(w, `[{"page":1,"pages":1},[{"countryiso3code":"DEU","date":"2019","value":1.5}]]`)
	}))

	set, err := c.SeriesSet(context.Background(), []string{"A.B", "C.D"}, 2019, 2019)
	require.NoError(t, err)
	require.Len(t, set, 2)
	assert.Equal(t, []string{"A.B", "C.D"}, seen)
	assert.Equal(t, "C.D", set[1].Indicator)
}

func TestFlexInt(t *testing.T) {
	tests := []struct {
		in   string
		want flexInt
	}{
		{`3`, 3},
		{`"3"`, 3},
		{`""`, 0},
	}
	for _, tt := range tests {
		var f flexInt
		require.NoError(t, json.Unmarshal([]byte(tt.in), &f), tt.in)
		assert.Equal(t, tt.want, f, tt.in)
	}

	var f flexInt
	assert.Error(t, json.Unmarshal([]byte(`"three"`), &f))
}
