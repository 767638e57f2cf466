// Package exchangerate provides the primary exchange-rate source, which returns
// every quote currency for one base currency in a single call.
package exchangerate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"price_engine/internal/feature/prices/domain"
	"price_engine/internal/feature/prices/fetcher"
	"price_engine/internal/platform/config"
	"price_engine/internal/platform/externalapi/exchangerate/dto"
)

const providerName = "exchangerate"

// Config holds configuration for the exchangerate-api client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// FromProviderConfig extracts the exchangerate-api settings from the process config.
func FromProviderConfig(p config.ProviderConfig) Config {
	return Config{BaseURL: p.ExchangeRateBaseURL, Timeout: p.Timeout}
}

// Client calls exchangerate-api.
type Client struct {
	cfg    Config
	client *http.Client
}

var _ fetcher.RateSource = (*Client)(nil)

// NewClient creates a Client.
func NewClient(cfg Config, client *http.Client) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{cfg: cfg, client: client}
}

// Rates returns the latest rates from base into quotes. Unknown quotes are omitted.
// An empty quotes slice returns every rate the provider knows.
func (c *Client) Rates(ctx context.Context, base string, quotes []string) (map[string]float64, error) {
	base = strings.ToUpper(base)
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	u := fmt.Sprintf("%s/v4/latest/%s", c.cfg.BaseURL, url.PathEscape(base))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, domain.NewProviderError(providerName, base, domain.ErrConfiguration, err)
	}
	res, err := c.client.Do(req)
	if err != nil {
		return nil, domain.NewProviderError(providerName, base, domain.ErrProviderUnavailable, err)
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			slog.Warn("failed to close response body", "error", err)
		}
	}()

	switch {
	case res.StatusCode == http.StatusNotFound || res.StatusCode == http.StatusBadRequest:
		return nil, domain.NewProviderError(providerName, base, domain.ErrNoData, fmt.Errorf("http %d", res.StatusCode))
	case res.StatusCode >= 400:
		return nil, domain.NewProviderError(providerName, base, domain.ErrProviderUnavailable, fmt.Errorf("http %d", res.StatusCode))
	}

	var body dto.LatestResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, domain.NewProviderError(providerName, base, domain.ErrProviderUnavailable, fmt.Errorf("decode: %w", err))
	}
	if len(body.Rates) == 0 {
		return nil, domain.NewProviderError(providerName, base, domain.ErrNoData, nil)
	}

	if len(quotes) == 0 {
		return body.Rates, nil
	}
	out := make(map[string]float64, len(quotes))
	for _, q := range quotes {
		q = strings.ToUpper(q)
		if r, ok := body.Rates[q]; ok && r > 0 {
			out[q] = r
		}
	}
	return out, nil
}
