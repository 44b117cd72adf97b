// =============================================================================
// crsmerge - World Bank API Client
// =============================================================================
//
// A small client for the World Bank Indicators API (v2). Two resources are
// used:
//
//	{base}/country                               the country table
//	{base}/country/all/indicator/{code}?date=a:b  one indicator, all countries
//
// Every response is a two element array [meta, data]; the client walks the
// pages until meta.page reaches meta.pages. An error response is a one element
// array carrying a message list and is returned as *APIError.
//
// There are no retries. A failed request aborts the caller.
//
// =============================================================================

package worldbank

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// DefaultBaseURL is the public API endpoint.
const DefaultBaseURL = "https://api.worldbank.org/v2"

// DefaultPerPage is large enough to fetch the country table in one page.
const DefaultPerPage = 1000

// APIError is an error reported by the API itself.
type APIError struct {
	URL     string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Status != 0 && e.Status != http.StatusOK {
		return fmt.Sprintf("world bank api: %s (status %d, %s)", e.Message, e.Status, e.URL)
	}
	return fmt.Sprintf("world bank api: %s (%s)", e.Message, e.URL)
}

// Client fetches countries and indicator series.
type Client struct {
	baseURL string
	http    *http.Client
	perPage int
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http = &http.Client{Timeout: d} }
}

// WithPerPage sets the page size.
func WithPerPage(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.perPage = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient returns a client for the public API unless told otherwise.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		http:    &http.Client{Timeout: 60 * time.Second},
		perPage: DefaultPerPage,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Countries fetches the country table, aggregates included.
func (c *Client) Countries(ctx context.Context) ([]Country, error) {
	raw, err := fetchAll[rawCountry](ctx, c, "country", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch countries: %w", err)
	}
	out := make([]Country, 0, len(raw))
	for _, r := range raw {
		if strings.TrimSpace(r.ID) == "" {
			continue
		}
		out = append(out, r.country())
	}
	c.logger.Debug("countries fetched", "count", len(out))
	return out, nil
}

// Series fetches one indicator for all countries between from and to, both
// inclusive. Null values are dropped.
func (c *Client) Series(ctx context.Context, indicator string, from, to int) (*Series, error) {
	indicator = strings.TrimSpace(indicator)
	if indicator == "" {
		return nil, fmt.Errorf("indicator code is empty")
	}
	params := url.Values{}
	if from != 0 || to != 0 {
		params.Set("date", fmt.Sprintf("%d:%d", from, to))
	}

	raw, err := fetchAll[rawObservation](ctx, c, "country/all/indicator/"+url.PathEscape(indicator), params)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch series %s: %w", indicator, err)
	}

	s := &Series{Indicator: indicator, Observations: make([]Observation, 0, len(raw))}
	dropped := 0
	for _, r := range raw {
		if o, ok := r.observation(); ok {
			s.Observations = append(s.Observations, o)
		} else {
			dropped++
		}
	}
	c.logger.Debug("series fetched", "indicator", indicator, "observations", len(s.Observations), "dropped", dropped)
	return s, nil
}

// SeriesSet fetches several indicators one after the other.
func (c *Client) SeriesSet(ctx context.Context, indicators []string, from, to int) ([]*Series, error) {
	out := make([]*Series, 0, len(indicators))
	for _, code := range indicators {
		s, err := c.Series(ctx, code, from, to)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// =============================================================================
// PAGING
// =============================================================================

func fetchAll[T any](ctx context.Context, c *Client, path string, params url.Values) ([]T, error) {
	var out []T
	for page := 1; ; page++ {
		items, m, err := fetchPage[T](ctx, c, path, params, page)
		if err != nil {
			return nil, err
		}
		out = append(out, items...)
		if int(m.Pages) <= page {
			return out, nil
		}
	}
}

func fetchPage[T any](ctx context.Context, c *Client, path string, params url.Values, page int) ([]T, meta, error) {
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("format", "json")
	q.Set("per_page", strconv.Itoa(c.perPage))
	q.Set("page", strconv.Itoa(page))
	u := c.baseURL + "/" + path + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, meta{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("requesting", "url", u)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, meta{}, fmt.Errorf("failed to request %s: %w", u, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, meta{}, fmt.Errorf("failed to read response: %w", err)
	}

	var parts []json.RawMessage
	if err := json.Unmarshal(body, &parts); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, meta{}, &APIError{URL: u, Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return nil, meta{}, fmt.Errorf("failed to decode response from %s: %w", u, err)
	}

	if len(parts) == 1 {
		return nil, meta{}, decodeAPIError(u, resp.StatusCode, parts[0])
	}
	if resp.StatusCode != http.StatusOK {
		return nil, meta{}, &APIError{URL: u, Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	if len(parts) != 2 {
		return nil, meta{}, fmt.Errorf("unexpected response from %s: %d elements", u, len(parts))
	}

	var m meta
	if err := json.Unmarshal(parts[0], &m); err != nil {
		return nil, meta{}, fmt.Errorf("failed to decode page metadata: %w", err)
	}
	var items []T
	if err := json.Unmarshal(parts[1], &items); err != nil {
		return nil, meta{}, fmt.Errorf("failed to decode page %d: %w", page, err)
	}
	return items, m, nil
}

func decodeAPIError(u string, status int, raw json.RawMessage) error {
	var msg apiMessage
	if err := json.Unmarshal(raw, &msg); err != nil || len(msg.Message) == 0 {
		return &APIError{URL: u, Status: status, Message: "unrecognized error response"}
	}
	texts := make([]string, 0, len(msg.Message))
	for _, m := range msg.Message {
		text := strings.TrimSpace(m.Value)
		if m.Key != "" {
			text = m.Key + ": " + text
		}
		texts = append(texts, text)
	}
	return &APIError{URL: u, Status: status, Message: strings.Join(texts, "; ")}
}
