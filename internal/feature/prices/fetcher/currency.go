package fetcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"price_engine/internal/feature/prices/domain"
	"price_engine/internal/feature/prices/domain/entity"
)

// DefaultPivotCurrency is used to triangulate pairs without a direct quote.
const DefaultPivotCurrency = "USD"

// RateSource returns the latest rates from base into each requested quote currency.
// Missing quotes are simply absent from the map.
type RateSource interface {
	Rates(ctx context.Context, base string, quotes []string) (map[string]float64, error)
}

// PairHistorySource returns daily closes of base priced in quote.
type PairHistorySource interface {
	PairHistory(ctx context.Context, base, quote string, start, end time.Time) ([]entity.HistoricalPoint, error)
}

// CurrencyFetcher prices synthetic "FX:<CCY>" symbols in a single quote currency.
type CurrencyFetcher struct {
	quote   string
	pivot   string
	rates   RateSource
	history PairHistorySource
	now     func() time.Time
}

var _ PriceFetcher = (*CurrencyFetcher)(nil)

// NewCurrencyFetcher creates a CurrencyFetcher quoting every FX symbol in quote.
// history may be nil, in which case historical requests report no data.
func NewCurrencyFetcher(quote string, rates RateSource, history PairHistorySource) *CurrencyFetcher {
	return &CurrencyFetcher{
		quote:   strings.ToUpper(quote),
		pivot:   DefaultPivotCurrency,
		rates:   rates,
		history: history,
		now:     time.Now,
	}
}

// FetchCurrent returns the rate from the symbol's currency into the quote currency.
func (f *CurrencyFetcher) FetchCurrent(ctx context.Context, symbol string) (*entity.Quote, error) {
	ccy := entity.FXCurrency(Normalize(symbol))
	q := &entity.Quote{
		Symbol:    entity.FXSymbol(ccy),
		Currency:  f.quote,
		Market:    entity.MarketCurrency,
		FetchedAt: f.now().UTC(),
	}
	if ccy == f.quote {
		q.Price = 1.0
		return q, nil
	}
	if f.rates == nil {
		return nil, domain.NewProviderError("fx", symbol, domain.ErrConfiguration, errors.New("no rate source"))
	}

	rate, err := f.rate(ctx, ccy, f.quote)
	if err != nil {
		return nil, err
	}
	q.Price = rate
	return q, nil
}

// rate asks for the direct quote and the pivot leg in one call, then falls back to
// triangulation through the pivot currency.
func (f *CurrencyFetcher) rate(ctx context.Context, from, to string) (float64, error) {
	quotes := []string{to}
	canPivot := from != f.pivot && to != f.pivot
	if canPivot {
		quotes = append(quotes, f.pivot)
	}
	rates, err := f.rates.Rates(ctx, from, quotes)
	if err != nil {
		return 0, err
	}
	if r, ok := rates[to]; ok && r > 0 {
		return r, nil
	}
	if !canPivot {
		return 0, domain.NewProviderError("fx", from+"/"+to, domain.ErrNoData, nil)
	}

	leg1, ok := rates[f.pivot]
	if !ok || leg1 <= 0 {
		return 0, domain.NewProviderError("fx", from+"/"+to, domain.ErrNoData, nil)
	}
	pivotRates, err := f.rates.Rates(ctx, f.pivot, []string{to})
	if err != nil {
		return 0, err
	}
	leg2, ok := pivotRates[to]
	if !ok || leg2 <= 0 {
		return 0, domain.NewProviderError("fx", f.pivot+"/"+to, domain.ErrNoData, nil)
	}
	return leg1 * leg2, nil
}

// FetchHistorical returns daily rates into the quote currency, triangulating
// through the pivot when the direct pair has no data.
func (f *CurrencyFetcher) FetchHistorical(ctx context.Context, symbol string, start, end time.Time) ([]entity.HistoricalPoint, error) {
	ccy := entity.FXCurrency(Normalize(symbol))
	if f.history == nil || ccy == f.quote {
		return nil, domain.NewProviderError("fx", symbol, domain.ErrNoData, nil)
	}

	points, err := f.history.PairHistory(ctx, ccy, f.quote, start, end)
	if err == nil && len(points) > 0 {
		return relabel(points, entity.FXSymbol(ccy)), nil
	}
	if err != nil && !domain.IsNoData(err) {
		return nil, err
	}
	if ccy == f.pivot || f.quote == f.pivot {
		return nil, domain.NewProviderError("fx", symbol, domain.ErrNoData, err)
	}

	leg1, err := f.history.PairHistory(ctx, ccy, f.pivot, start, end)
	if err != nil {
		return nil, fmt.Errorf("pivot leg %s/%s: %w", ccy, f.pivot, err)
	}
	leg2, err := f.history.PairHistory(ctx, f.pivot, f.quote, start, end)
	if err != nil {
		return nil, fmt.Errorf("pivot leg %s/%s: %w", f.pivot, f.quote, err)
	}
	return crossSeries(entity.FXSymbol(ccy), leg1, leg2), nil
}

func relabel(points []entity.HistoricalPoint, symbol string) []entity.HistoricalPoint {
	out := make([]entity.HistoricalPoint, len(points))
	for i, p := range points {
		p.Symbol = symbol
		out[i] = p
	}
	return out
}

// crossSeries multiplies two daily series on matching calendar days.
func crossSeries(symbol string, leg1, leg2 []entity.HistoricalPoint) []entity.HistoricalPoint {
	byDay := make(map[string]float64, len(leg2))
	for _, p := range leg2 {
		byDay[p.Timestamp.Format(time.DateOnly)] = p.Close
	}
	out := make([]entity.HistoricalPoint, 0, len(leg1))
	for _, p := range leg1 {
		r, ok := byDay[p.Timestamp.Format(time.DateOnly)]
		if !ok {
			continue
		}
		out = append(out, entity.HistoricalPoint{Symbol: symbol, Timestamp: p.Timestamp, Close: p.Close * r})
	}
	return out
}
