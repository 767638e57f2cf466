// Package usecase values portfolio holdings in a single base currency.
package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"gonum.org/v1/gonum/floats"

	"price_engine/internal/feature/prices/domain/entity"
	"price_engine/internal/feature/prices/fetcher"
)

// PriceSource resolves current prices for many symbols in one call.
type PriceSource interface {
	GetBatchPrices(ctx context.Context, symbols []string) (map[string]entity.PriceRecord, error)
}

// RateSource resolves many exchange rates in one call. Missing pairs are omitted.
type RateSource interface {
	GetBatchRates(ctx context.Context, pairs []entity.CurrencyPair) map[string]float64
}

// Holding is one position to value.
type Holding struct {
	Symbol   string  `json:"symbol"`
	Units    float64 `json:"units"`
	Currency string  `json:"currency,omitempty"`
}

// HoldingValue is a valued position. Value is the unit price in the base
// currency; Total is Value times units.
type HoldingValue struct {
	Symbol       string  `json:"symbol"`
	UnitPrice    float64 `json:"unit_price"`
	Currency     string  `json:"currency"`
	ExchangeRate float64 `json:"exchange_rate"`
	Value        float64 `json:"value"`
	Total        float64 `json:"total"`
}

// BatchCalculator loads every price and rate a valuation needs up front and then
// values holdings without further lookups.
type BatchCalculator struct {
	prices PriceSource
	rates  RateSource
	base   string

	priceOf    map[string]float64
	currencyOf map[string]string
	rateOf     map[string]float64
}

// NewBatchCalculator creates a calculator valuing into base.
func NewBatchCalculator(prices PriceSource, rates RateSource, base string) *BatchCalculator {
	return &BatchCalculator{
		prices:     prices,
		rates:      rates,
		base:       strings.ToUpper(base),
		priceOf:    map[string]float64{},
		currencyOf: map[string]string{},
		rateOf:     map[string]float64{},
	}
}

// Base returns the valuation currency.
func (b *BatchCalculator) Base() string { return b.base }

// Initialize performs one batch price lookup and one batch rate lookup for symbols.
// symbolCurrency overrides the currency reported with the price; fallbackPrices fills
// symbols the price source could not resolve.
func (b *BatchCalculator) Initialize(ctx context.Context, symbols []string, symbolCurrency map[string]string, fallbackPrices map[string]float64) error {
	norm := make([]string, 0, len(symbols))
	for _, s := range symbols {
		norm = append(norm, fetcher.Normalize(s))
	}

	records, err := b.prices.GetBatchPrices(ctx, norm)
	if err != nil {
		return fmt.Errorf("batch prices: %w", err)
	}
	for _, s := range norm {
		if rec, ok := records[s]; ok {
			b.priceOf[s] = rec.Price
			b.currencyOf[s] = strings.ToUpper(rec.Currency)
		} else if p, ok := fallbackPrices[s]; ok {
			b.priceOf[s] = p
		}
	}
	for s, c := range symbolCurrency {
		b.currencyOf[fetcher.Normalize(s)] = strings.ToUpper(c)
	}

	var pairs []entity.CurrencyPair
	seen := map[string]bool{}
	for _, s := range norm {
		c := b.currencyOf[s]
		if c == "" || c == b.base || entity.IsFXSymbol(s) || seen[c] {
			continue
		}
		seen[c] = true
		pairs = append(pairs, entity.CurrencyPair{From: c, To: b.base})
	}
	if len(pairs) == 0 {
		return nil
	}
	rates := b.rates.GetBatchRates(ctx, pairs)
	for _, p := range pairs {
		if r, ok := rates[p.Key()]; ok {
			b.rateOf[p.From] = r
		} else {
			slog.Warn("exchange rate unavailable for valuation", "pair", p.Key())
		}
	}
	return nil
}

// rateFor returns the multiplier into the base currency. FX symbols are already
// priced in the base by convention. Unknown rates are 0 so the row stays visible.
func (b *BatchCalculator) rateFor(symbol, currency string) float64 {
	if entity.IsFXSymbol(symbol) || currency == "" || currency == b.base {
		return 1.0
	}
	return b.rateOf[currency]
}

// CalculateHoldingValues values holdings elementwise. Symbols without a price are
// valued at 0 rather than dropped.
func (b *BatchCalculator) CalculateHoldingValues(holdings []Holding) []HoldingValue {
	n := len(holdings)
	if n == 0 {
		return []HoldingValue{}
	}
	prices := make([]float64, n)
	rates := make([]float64, n)
	units := make([]float64, n)
	out := make([]HoldingValue, n)

	for i, h := range holdings {
		sym := fetcher.Normalize(h.Symbol)
		ccy := strings.ToUpper(h.Currency)
		if ccy == "" {
			ccy = b.currencyOf[sym]
		}
		if entity.IsFXSymbol(sym) {
			ccy = b.base
		}
		prices[i] = b.priceOf[sym]
		rates[i] = b.rateFor(sym, ccy)
		units[i] = h.Units
		out[i] = HoldingValue{Symbol: sym, UnitPrice: prices[i], Currency: ccy, ExchangeRate: rates[i]}
	}

	values := make([]float64, n)
	totals := make([]float64, n)
	floats.MulTo(values, prices, rates)
	floats.MulTo(totals, values, units)

	for i := range out {
		out[i].Value = values[i]
		out[i].Total = totals[i]
	}
	return out
}

// PortfolioTotal sums the totals of values.
func PortfolioTotal(values []HoldingValue) float64 {
	totals := make([]float64, len(values))
	for i, v := range values {
		totals[i] = v.Total
	}
	return floats.Sum(totals)
}
