package yahoo

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
	_ "time/tzdata"

	"price_engine/internal/feature/prices/domain"
	"price_engine/internal/platform/externalapi/yahoo/dto"
)

const providerName = "yahoo"

// Bar is one daily close with its timestamp placed in the exchange time zone.
type Bar struct {
	Time  time.Time
	Close float64
}

// Chart is the decoded subset of a chart response the fetchers use.
type Chart struct {
	Symbol        string
	Currency      string
	Price         float64
	PreviousClose float64
	MarketTime    time.Time
	SessionStart  time.Time
	SessionEnd    time.Time
	Bars          []Bar
}

// Client calls the Yahoo chart API.
type Client struct {
	cfg    Config
	client *http.Client
}

// NewClient creates a Client.
func NewClient(cfg Config, client *http.Client) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{cfg: cfg, client: client}
}

// Latest returns the last few sessions of symbol, enough for the current price and previous close.
func (c *Client) Latest(ctx context.Context, symbol string) (*Chart, error) {
	q := url.Values{}
	q.Set("range", "5d")
	q.Set("interval", "1d")
	return c.chart(ctx, symbol, q)
}

// History returns daily bars of symbol between start and end.
func (c *Client) History(ctx context.Context, symbol string, start, end time.Time) (*Chart, error) {
	q := url.Values{}
	q.Set("period1", strconv.FormatInt(start.Unix(), 10))
	q.Set("period2", strconv.FormatInt(end.Unix(), 10))
	q.Set("interval", "1d")
	return c.chart(ctx, symbol, q)
}

func (c *Client) chart(ctx context.Context, symbol string, q url.Values) (*Chart, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.cfg.BaseURL, url.PathEscape(symbol), q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, domain.NewProviderError(providerName, symbol, domain.ErrConfiguration, err)
	}
	res, err := c.client.Do(req)
	if err != nil {
		return nil, domain.NewProviderError(providerName, symbol, domain.ErrProviderUnavailable, err)
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			slog.Warn("failed to close response body", "error", err)
		}
	}()

	var body dto.ChartResponse
	decodeErr := json.NewDecoder(res.Body).Decode(&body)

	switch {
	case res.StatusCode == http.StatusNotFound || res.StatusCode == http.StatusBadRequest:
		return nil, domain.NewProviderError(providerName, symbol, domain.ErrNoData, chartErr(body, res.StatusCode))
	case res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden:
		return nil, domain.NewProviderError(providerName, symbol, domain.ErrConfiguration, chartErr(body, res.StatusCode))
	case res.StatusCode >= 400:
		return nil, domain.NewProviderError(providerName, symbol, domain.ErrProviderUnavailable, chartErr(body, res.StatusCode))
	case decodeErr != nil:
		return nil, domain.NewProviderError(providerName, symbol, domain.ErrProviderUnavailable, fmt.Errorf("decode: %w", decodeErr))
	case body.Chart.Error != nil || len(body.Chart.Result) == 0:
		return nil, domain.NewProviderError(providerName, symbol, domain.ErrNoData, chartErr(body, res.StatusCode))
	}
	return toChart(body.Chart.Result[0]), nil
}

func chartErr(body dto.ChartResponse, status int) error {
	if body.Chart.Error != nil {
		return errors.New(body.Chart.Error.Description)
	}
	return fmt.Errorf("http %d", status)
}

func toChart(r dto.ChartResult) *Chart {
	loc := time.FixedZone(r.Meta.ExchangeTimezoneName, r.Meta.GMTOffset)
	if tz, err := time.LoadLocation(r.Meta.ExchangeTimezoneName); err == nil && r.Meta.ExchangeTimezoneName != "" {
		loc = tz
	}
	ch := &Chart{
		Symbol:        r.Meta.Symbol,
		Currency:      r.Meta.Currency,
		Price:         r.Meta.RegularMarketPrice,
		PreviousClose: r.Meta.ChartPreviousClose,
		MarketTime:    time.Unix(r.Meta.RegularMarketTime, 0).In(loc),
		SessionStart:  time.Unix(r.Meta.CurrentTradingPeriod.Regular.Start, 0),
		SessionEnd:    time.Unix(r.Meta.CurrentTradingPeriod.Regular.End, 0),
	}
	if len(r.Indicators.Quote) == 0 {
		return ch
	}
	closes := r.Indicators.Quote[0].Close
	for i, ts := range r.Timestamp {
		if i >= len(closes) || closes[i] == nil || *closes[i] <= 0 {
			continue
		}
		ch.Bars = append(ch.Bars, Bar{Time: time.Unix(ts, 0).In(loc), Close: *closes[i]})
	}
	return ch
}

// IsOpen reports whether now falls inside the current regular session.
func (ch *Chart) IsOpen(now time.Time) bool {
	if ch.SessionStart.Unix() == 0 || ch.SessionEnd.Unix() == 0 {
		return true
	}
	return !now.Before(ch.SessionStart) && now.Before(ch.SessionEnd)
}
