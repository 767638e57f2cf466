package yahoo

import (
	"context"
	"strings"
	"time"

	"price_engine/internal/feature/prices/domain"
	"price_engine/internal/feature/prices/domain/entity"
	"price_engine/internal/feature/prices/fetcher"
)

// RegionalFetcher prices numeric Tel Aviv security numbers via "<n>.TA".
type RegionalFetcher struct {
	client *Client
	suffix string
	now    func() time.Time
}

var _ fetcher.PriceFetcher = (*RegionalFetcher)(nil)

// NewRegionalFetcher creates the fetcher for the regional exchange.
func NewRegionalFetcher(c *Client) *RegionalFetcher {
	return &RegionalFetcher{client: c, suffix: ".TA", now: time.Now}
}

func (f *RegionalFetcher) providerSymbol(symbol string) string {
	return strings.TrimSpace(symbol) + f.suffix
}

// FetchCurrent returns the last price in ILS.
func (f *RegionalFetcher) FetchCurrent(ctx context.Context, symbol string) (*entity.Quote, error) {
	ch, err := f.client.Latest(ctx, f.providerSymbol(symbol))
	if err != nil {
		return nil, err
	}
	if ch.Price <= 0 {
		return nil, domain.NewProviderError(providerName, symbol, domain.ErrNoData, nil)
	}
	price, ccy := NormalizeMinorUnit(ch.Price, ch.Currency)
	now := f.now()
	q := &entity.Quote{
		Symbol:       symbol,
		Price:        price,
		Currency:     ccy,
		Market:       entity.MarketEquityRegional,
		FetchedAt:    now.UTC(),
		MarketClosed: !ch.IsOpen(now),
	}
	if ch.PreviousClose > 0 {
		pc := (ch.Price - ch.PreviousClose) / ch.PreviousClose * 100
		q.ChangePercent = &pc
	}
	return q, nil
}

// FetchHistorical returns daily closes in ILS with timestamps in exchange-local time.
func (f *RegionalFetcher) FetchHistorical(ctx context.Context, symbol string, start, end time.Time) ([]entity.HistoricalPoint, error) {
	ch, err := f.client.History(ctx, f.providerSymbol(symbol), start, end)
	if err != nil {
		return nil, err
	}
	if len(ch.Bars) == 0 {
		return nil, domain.NewProviderError(providerName, symbol, domain.ErrNoData, nil)
	}
	points := make([]entity.HistoricalPoint, 0, len(ch.Bars))
	for _, b := range ch.Bars {
		c, _ := NormalizeMinorUnit(b.Close, ch.Currency)
		points = append(points, entity.HistoricalPoint{Symbol: symbol, Timestamp: b.Time, Close: c})
	}
	return points, nil
}
