// Package fxrate converts transaction amounts to EUR using historical exchange rates.
package fxrate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultBaseURL is the public historical-rate API compatible with Client.
const DefaultBaseURL = "https://api.frankfurter.app"

// ErrRateUnavailable is returned when the service answers without the requested rate.
var ErrRateUnavailable = errors.New("rate unavailable")

// RateSource returns the from->to rate in effect on date (YYYY-MM-DD).
type RateSource interface {
	Rate(ctx context.Context, date, from, to string) (decimal.Decimal, error)
}

// Client queries an HTTP historical-rate service:
//
//	GET {base}/{date}?from=USD&to=EUR  ->  {"rates":{"EUR":0.92}}
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a rate Client. A zero timeout leaves the http.Client unbounded;
// callers then rely on the context deadline.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type rateResponse struct {
	Rates map[string]decimal.Decimal `json:"rates"`
}

// Rate implements RateSource.
func (c *Client) Rate(ctx context.Context, date, from, to string) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("from", from)
	q.Set("to", to)
	endpoint := fmt.Sprintf("%s/%s?%s", c.baseURL, url.PathEscape(date), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("building rate request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("requesting %s->%s rate for %s: %w", from, to, date, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return decimal.Zero, fmt.Errorf("rate service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out rateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return decimal.Zero, fmt.Errorf("decoding rate response: %w", err)
	}
	rate, ok := out.Rates[to]
	if !ok || !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("%s->%s on %s: %w", from, to, date, ErrRateUnavailable)
	}
	return rate, nil
}
