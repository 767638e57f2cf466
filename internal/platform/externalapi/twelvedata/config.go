// Package twelvedata provides a client for the Twelve Data market API and the
// equity and crypto price fetchers built on it.
package twelvedata

import (
	"time"

	"price_engine/internal/platform/config"
)

// Config holds configuration for the Twelve Data API client.
type Config struct {
	APIKey  string        // API key; empty disables the provider with a configuration error
	BaseURL string        // e.g. "https://api.twelvedata.com"
	Timeout time.Duration // per-symbol fetch timeout
}

// FromProviderConfig extracts the Twelve Data settings from the process config.
func FromProviderConfig(p config.ProviderConfig) Config {
	return Config{
		APIKey:  p.TwelveDataAPIKey,
		BaseURL: p.TwelveDataBaseURL,
		Timeout: p.Timeout,
	}
}
