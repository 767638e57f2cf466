// Package entity defines the domain models for the prices feature.
package entity

import (
	"strconv"
	"strings"
	"time"
)

// Market identifies which family of provider prices a symbol.
type Market string

const (
	MarketEquityUS       Market = "equity-us"
	MarketEquityRegional Market = "equity-regional"
	MarketCurrency       Market = "currency"
	MarketCrypto         Market = "crypto"
)

// Valid reports whether m is one of the known markets.
func (m Market) Valid() bool {
	switch m {
	case MarketEquityUS, MarketEquityRegional, MarketCurrency, MarketCrypto:
		return true
	}
	return false
}

// FXPrefix marks synthetic exchange-rate symbols such as "FX:USD".
const FXPrefix = "FX:"

// FXSymbol returns the synthetic cache symbol for a currency.
func FXSymbol(currency string) string {
	return FXPrefix + strings.ToUpper(currency)
}

// IsFXSymbol reports whether symbol is a synthetic exchange-rate symbol.
func IsFXSymbol(symbol string) bool {
	return strings.HasPrefix(symbol, FXPrefix)
}

// FXCurrency extracts the currency code from a synthetic FX symbol.
func FXCurrency(symbol string) string {
	return strings.TrimPrefix(symbol, FXPrefix)
}

// Quote is what a provider returns for a current-price request.
type Quote struct {
	Symbol        string
	Price         float64
	Currency      string
	Market        Market
	FetchedAt     time.Time
	ChangePercent *float64
	// MarketClosed is set when the provider reports the quote as the last close
	// of a market that is not currently trading.
	MarketClosed bool
}

// LivePriceEntry is the in-memory last-known price of a symbol.
// Entries are replaced as a whole; they are never partially updated.
type LivePriceEntry struct {
	Symbol        string
	Price         float64
	Currency      string
	Market        Market
	LastUpdate    time.Time
	ChangePercent *float64
}

// Age returns how old the entry is relative to now.
func (e LivePriceEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.LastUpdate)
}

// PriceRecord is a resolved current price as returned to callers and
// persisted once per symbol per trading day.
type PriceRecord struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Currency  string    `json:"currency"`
	Market    Market    `json:"market"`
	Date      time.Time `json:"date"`
	FetchedAt time.Time `json:"fetched_at"`
}

// HistoricalPoint is one daily close of a symbol. Timestamp is normalized to
// the market-close slot of its trading day, in UTC.
type HistoricalPoint struct {
	Symbol    string
	Timestamp time.Time
	Close     float64
}

// Key identifies the point by symbol and timestamp for duplicate detection.
func (p HistoricalPoint) Key() string {
	return p.Symbol + "|" + strconv.FormatInt(p.Timestamp.Unix(), 10)
}

// DailyPrice is a single entry of a historical price series.
type DailyPrice struct {
	Date  time.Time `json:"date"`
	Price float64   `json:"price"`
}

// CurrencyPair is a from/to exchange-rate request.
type CurrencyPair struct {
	From string
	To   string
}

// Key returns the "FROM/TO" form used in batch rate results.
func (p CurrencyPair) Key() string {
	return PairKey(p.From, p.To)
}

// PairKey formats a currency pair as "FROM/TO".
func PairKey(from, to string) string {
	return strings.ToUpper(from) + "/" + strings.ToUpper(to)
}
