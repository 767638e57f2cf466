package twelvedata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"price_engine/internal/feature/prices/domain"
	"price_engine/internal/platform/externalapi/twelvedata/dto"
)

const providerName = "twelvedata"

// Client calls the Twelve Data REST API.
type Client struct {
	cfg    Config
	client *http.Client
}

// NewClient は指定された設定とHTTPクライアントで Client を生成します。
func NewClient(cfg Config, client *http.Client) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{cfg: cfg, client: client}
}

// Quote returns the latest quote for symbol.
func (c *Client) Quote(ctx context.Context, symbol string) (*dto.QuoteResponse, error) {
	q := url.Values{}
	q.Set("symbol", symbol)

	var body dto.QuoteResponse
	if err := c.get(ctx, "/quote", symbol, q, &body); err != nil {
		return nil, err
	}
	if err := statusError(symbol, body.ErrorFields); err != nil {
		return nil, err
	}
	return &body, nil
}

// TimeSeries returns daily bars for symbol between start and end, oldest first.
func (c *Client) TimeSeries(ctx context.Context, symbol string, start, end time.Time) (*dto.TimeSeriesResponse, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", "1day")
	q.Set("start_date", start.UTC().Format(time.DateOnly))
	q.Set("end_date", end.UTC().Format(time.DateOnly))
	q.Set("order", "ASC")
	q.Set("outputsize", strconv.Itoa(5000))

	var body dto.TimeSeriesResponse
	if err := c.get(ctx, "/time_series", symbol, q, &body); err != nil {
		return nil, err
	}
	if err := statusError(symbol, body.ErrorFields); err != nil {
		return nil, err
	}
	return &body, nil
}

func (c *Client) get(ctx context.Context, path, symbol string, q url.Values, out any) error {
	if c.cfg.APIKey == "" {
		return domain.NewProviderError(providerName, symbol, domain.ErrConfiguration, errors.New("TWELVE_DATA_API_KEY is not set"))
	}
	q.Set("apikey", c.cfg.APIKey)
	u := fmt.Sprintf("%s%s?%s", c.cfg.BaseURL, path, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.NewProviderError(providerName, symbol, domain.ErrConfiguration, err)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return domain.NewProviderError(providerName, symbol, domain.ErrProviderUnavailable, err)
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			slog.Warn("failed to close response body", "error", err)
		}
	}()

	if res.StatusCode >= 400 {
		return domain.NewProviderError(providerName, symbol, kindForStatus(res.StatusCode), fmt.Errorf("http %d", res.StatusCode))
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return domain.NewProviderError(providerName, symbol, domain.ErrProviderUnavailable, fmt.Errorf("decode: %w", err))
	}
	return nil
}

// statusError converts an in-body error (Twelve Data answers 200 with status=error) to a ProviderError.
func statusError(symbol string, f dto.ErrorFields) error {
	if f.Status != "error" {
		return nil
	}
	code := f.Code
	if code == 0 {
		code = http.StatusBadRequest
	}
	return domain.NewProviderError(providerName, symbol, kindForStatus(code), errors.New(f.Message))
}

func kindForStatus(code int) error {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return domain.ErrConfiguration
	case code == http.StatusBadRequest || code == http.StatusNotFound:
		return domain.ErrNoData
	default:
		return domain.ErrProviderUnavailable
	}
}
