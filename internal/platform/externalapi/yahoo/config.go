// Package yahoo provides a client for the Yahoo Finance v8 chart API, the
// regional-exchange fetcher and the backup exchange-rate source built on it.
package yahoo

import (
	"time"

	"price_engine/internal/platform/config"
)

// Config holds configuration for the Yahoo chart client.
type Config struct {
	BaseURL string        // e.g. "https://query1.finance.yahoo.com"
	Timeout time.Duration // per-symbol fetch timeout
}

// FromProviderConfig extracts the Yahoo settings from the process config.
func FromProviderConfig(p config.ProviderConfig) Config {
	return Config{BaseURL: p.YahooBaseURL, Timeout: p.Timeout}
}
