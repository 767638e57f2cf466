// Package domain defines domain-level errors for the prices feature.
package domain

import (
	"errors"
	"fmt"
)

// Error kinds shared by fetchers, repositories and services.
// Callers classify failures with errors.Is against these values.
var (
	// ErrNoData indicates the provider was reached but has nothing for the symbol or range
	// (market closed, delisted, empty window). It is not retried within the same cycle.
	ErrNoData = errors.New("no data available")

	// ErrProviderUnavailable indicates a timeout, transport failure, rate limit or 5xx from a provider.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrConfiguration indicates a missing credential or an unconfigured provider.
	// It disables one fetcher type, not the engine.
	ErrConfiguration = errors.New("provider configuration error")

	// ErrDuplicateWrite indicates a historical point already exists for (symbol, timestamp).
	ErrDuplicateWrite = errors.New("duplicate historical point")

	// ErrUnsupportedSymbol indicates the symbol does not match any known market shape.
	ErrUnsupportedSymbol = errors.New("unsupported symbol type")

	// ErrPriceNotFound is returned when no tier could resolve a price.
	ErrPriceNotFound = errors.New("price not found")

	// ErrRateUnavailable is returned when no tier could resolve an exchange rate.
	ErrRateUnavailable = errors.New("exchange rate unavailable")

	// ErrJobInProgress is returned when a sync or refresh is triggered while the same one is still running.
	ErrJobInProgress = errors.New("job already running")

	// ErrSymbolNotTracked is returned by repositories when a tracked symbol row is missing.
	ErrSymbolNotTracked = errors.New("symbol not tracked")
)

// ProviderError attaches the provider and symbol to one of the error kinds above.
type ProviderError struct {
	Provider string
	Symbol   string
	Kind     error
	Err      error
}

// NewProviderError builds a ProviderError. err may be nil.
func NewProviderError(provider, symbol string, kind, err error) *ProviderError {
	return &ProviderError{Provider: provider, Symbol: symbol, Kind: kind, Err: err}
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Symbol, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v: %v", e.Provider, e.Symbol, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the underlying cause to errors.Is/As.
func (e *ProviderError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// IsNoData reports whether err is a NoData condition.
func IsNoData(err error) bool {
	return errors.Is(err, ErrNoData)
}

// IsConfiguration reports whether err is a configuration failure.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}
