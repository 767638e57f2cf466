package fetcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"price_engine/internal/feature/prices/domain"
	"price_engine/internal/feature/prices/domain/entity"
)

// PriceFetcher is the capability every market adapter provides.
// Implementations return an error wrapping domain.ErrNoData for market-closed or
// unknown-symbol conditions and domain.ErrConfiguration for missing credentials.
type PriceFetcher interface {
	FetchCurrent(ctx context.Context, symbol string) (*entity.Quote, error)
	FetchHistorical(ctx context.Context, symbol string, start, end time.Time) ([]entity.HistoricalPoint, error)
}

// Registry maps markets to their fetcher.
type Registry struct {
	mu       sync.RWMutex
	fetchers map[entity.Market]PriceFetcher
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{fetchers: make(map[entity.Market]PriceFetcher)}
}

// Register installs f as the fetcher for market, replacing any previous one.
func (r *Registry) Register(market entity.Market, f PriceFetcher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetchers[market] = f
}

// ForMarket returns the fetcher registered for market.
func (r *Registry) ForMarket(market entity.Market) (PriceFetcher, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.fetchers[market]
	if !ok || f == nil {
		return nil, fmt.Errorf("no fetcher configured for market %s: %w", market, domain.ErrConfiguration)
	}
	return f, nil
}

// Resolve classifies symbol and returns the fetcher for its market.
func (r *Registry) Resolve(symbol string) (PriceFetcher, entity.Market, error) {
	market, err := Classify(symbol)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", symbol, err)
	}
	f, err := r.ForMarket(market)
	if err != nil {
		return nil, market, err
	}
	return f, market, nil
}
