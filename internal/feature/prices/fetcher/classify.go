// Package fetcher selects the market-specific price provider for a symbol.
package fetcher

import (
	"regexp"
	"strings"

	"price_engine/internal/feature/prices/domain"
	"price_engine/internal/feature/prices/domain/entity"
)

var (
	numericSymbol  = regexp.MustCompile(`^[0-9]{1,12}$`)
	cryptoSymbol   = regexp.MustCompile(`^[A-Z0-9]{2,10}-USD$`)
	equitySymbol   = regexp.MustCompile(`^[A-Z][A-Z0-9.\-]{0,14}$`)
	currencySymbol = regexp.MustCompile(`^[A-Z]{3}$`)
)

// Normalize trims and upper-cases a symbol so lookups are case-insensitive.
func Normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Classify maps a symbol to its market by shape:
// "FX:" prefix is a currency, all digits is the regional exchange,
// a "-USD" suffix is crypto, and any other ticker-shaped string is a US equity.
func Classify(symbol string) (entity.Market, error) {
	s := Normalize(symbol)
	switch {
	case s == "":
		return "", domain.ErrUnsupportedSymbol
	case entity.IsFXSymbol(s):
		if !currencySymbol.MatchString(entity.FXCurrency(s)) {
			return "", domain.ErrUnsupportedSymbol
		}
		return entity.MarketCurrency, nil
	case numericSymbol.MatchString(s):
		return entity.MarketEquityRegional, nil
	case cryptoSymbol.MatchString(s):
		return entity.MarketCrypto, nil
	case equitySymbol.MatchString(s):
		return entity.MarketEquityUS, nil
	}
	return "", domain.ErrUnsupportedSymbol
}
