package usecase

import (
	"context"
	"strings"
)

// Valuation is a valued portfolio.
type Valuation struct {
	BaseCurrency string         `json:"base_currency"`
	Holdings     []HoldingValue `json:"holdings"`
	Total        float64        `json:"total"`
}

// ValuationUsecase values a list of holdings with one BatchCalculator per request.
type ValuationUsecase struct {
	prices      PriceSource
	rates       RateSource
	defaultBase string
}

// NewValuationUsecase creates a ValuationUsecase. defaultBase is used when a
// request names no base currency.
func NewValuationUsecase(prices PriceSource, rates RateSource, defaultBase string) *ValuationUsecase {
	return &ValuationUsecase{prices: prices, rates: rates, defaultBase: strings.ToUpper(defaultBase)}
}

// Value prices every holding into base.
func (u *ValuationUsecase) Value(ctx context.Context, base string, holdings []Holding) (*Valuation, error) {
	if base == "" {
		base = u.defaultBase
	}
	calc := NewBatchCalculator(u.prices, u.rates, base)

	symbols := make([]string, 0, len(holdings))
	currencies := make(map[string]string)
	for _, h := range holdings {
		symbols = append(symbols, h.Symbol)
		if h.Currency != "" {
			currencies[h.Symbol] = h.Currency
		}
	}
	if err := calc.Initialize(ctx, symbols, currencies, nil); err != nil {
		return nil, err
	}

	values := calc.CalculateHoldingValues(holdings)
	return &Valuation{BaseCurrency: calc.Base(), Holdings: values, Total: PortfolioTotal(values)}, nil
}
