package twelvedata

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"price_engine/internal/feature/prices/domain"
	"price_engine/internal/feature/prices/domain/entity"
	"price_engine/internal/feature/prices/fetcher"
)

// Fetcher prices US equities or crypto pairs through the Twelve Data client.
type Fetcher struct {
	client   *Client
	market   entity.Market
	currency string // fixed quote currency; empty means "as reported"
	remap    func(string) string
	timeout  time.Duration
	now      func() time.Time
}

var _ fetcher.PriceFetcher = (*Fetcher)(nil)

// NewEquityFetcher creates the fetcher for US-listed equities.
func NewEquityFetcher(c *Client) *Fetcher {
	return &Fetcher{
		client:  c,
		market:  entity.MarketEquityUS,
		remap:   func(s string) string { return s },
		timeout: c.cfg.Timeout,
		now:     time.Now,
	}
}

// NewCryptoFetcher creates the fetcher for "<COIN>-USD" symbols, which
// Twelve Data expects as "<COIN>/USD".
func NewCryptoFetcher(c *Client) *Fetcher {
	return &Fetcher{
		client:   c,
		market:   entity.MarketCrypto,
		currency: "USD",
		remap:    CryptoSymbol,
		timeout:  c.cfg.Timeout,
		now:      time.Now,
	}
}

// CryptoSymbol maps "BTC-USD" to "BTC/USD".
func CryptoSymbol(symbol string) string {
	return strings.Replace(symbol, "-", "/", 1)
}

// FetchCurrent returns the latest price. A quote from a closed market is returned with MarketClosed set.
func (f *Fetcher) FetchCurrent(ctx context.Context, symbol string) (*entity.Quote, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	res, err := f.client.Quote(ctx, f.remap(symbol))
	if err != nil {
		return nil, err
	}
	price, err := strconv.ParseFloat(res.Close, 64)
	if err != nil || price <= 0 {
		return nil, domain.NewProviderError(providerName, symbol, domain.ErrNoData, fmt.Errorf("invalid close %q", res.Close))
	}

	q := &entity.Quote{
		Symbol:       symbol,
		Price:        price,
		Currency:     f.quoteCurrency(res.Currency),
		Market:       f.market,
		FetchedAt:    f.now().UTC(),
		MarketClosed: !res.IsMarketOpen && f.market != entity.MarketCrypto,
	}
	if pc, err := strconv.ParseFloat(res.PercentChange, 64); err == nil {
		q.ChangePercent = &pc
	}
	return q, nil
}

// FetchHistorical returns daily closes dated at midnight UTC of each trading day.
func (f *Fetcher) FetchHistorical(ctx context.Context, symbol string, start, end time.Time) ([]entity.HistoricalPoint, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	res, err := f.client.TimeSeries(ctx, f.remap(symbol), start, end)
	if err != nil {
		return nil, err
	}
	points := make([]entity.HistoricalPoint, 0, len(res.Values))
	for _, v := range res.Values {
		day := v.Datetime
		if len(day) > len(time.DateOnly) {
			day = day[:len(time.DateOnly)]
		}
		tm, err := time.Parse(time.DateOnly, day)
		if err != nil {
			return nil, domain.NewProviderError(providerName, symbol, domain.ErrProviderUnavailable, fmt.Errorf("parse time %q: %w", v.Datetime, err))
		}
		c, err := strconv.ParseFloat(v.Close, 64)
		if err != nil || c <= 0 {
			continue
		}
		points = append(points, entity.HistoricalPoint{Symbol: symbol, Timestamp: tm, Close: c})
	}
	if len(points) == 0 {
		return nil, domain.NewProviderError(providerName, symbol, domain.ErrNoData, nil)
	}
	return points, nil
}

func (f *Fetcher) quoteCurrency(reported string) string {
	if f.currency != "" {
		return f.currency
	}
	if reported == "" {
		return "USD"
	}
	return strings.ToUpper(reported)
}
