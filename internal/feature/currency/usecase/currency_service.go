// Package usecase resolves exchange rates through the live cache and a
// primary/backup pair of rate providers.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"price_engine/internal/feature/prices/domain"
	"price_engine/internal/feature/prices/domain/entity"
	"price_engine/internal/feature/prices/fetcher"
	"price_engine/internal/platform/livecache"
)

// RateProvider returns the latest rates from base into each requested quote.
// Missing quotes are absent from the map.
type RateProvider interface {
	Rates(ctx context.Context, base string, quotes []string) (map[string]float64, error)
}

// CurrencyService resolves exchange rates. Rates into the canonical currency are
// cached under the synthetic "FX:<CCY>" symbol.
type CurrencyService struct {
	cache     *livecache.Cache
	primary   RateProvider
	backup    RateProvider
	canonical string
	ttl       time.Duration
	now       func() time.Time
}

// CurrencyService doubles as the rate source behind the FX price fetcher.
var _ fetcher.RateSource = (*CurrencyService)(nil)

// NewCurrencyService creates a CurrencyService. backup may be nil.
func NewCurrencyService(cache *livecache.Cache, primary, backup RateProvider, canonical string, ttl time.Duration) *CurrencyService {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &CurrencyService{
		cache:     cache,
		primary:   primary,
		backup:    backup,
		canonical: strings.ToUpper(canonical),
		ttl:       ttl,
		now:       time.Now,
	}
}

// Canonical returns the currency FX cache entries are quoted in.
func (s *CurrencyService) Canonical() string {
	return s.canonical
}

// GetRate returns how many units of to one unit of from buys.
// The error wraps domain.ErrRateUnavailable when no tier has the pair.
func (s *CurrencyService) GetRate(ctx context.Context, from, to string) (float64, error) {
	from, to = strings.ToUpper(strings.TrimSpace(from)), strings.ToUpper(strings.TrimSpace(to))
	if from == to {
		return 1.0, nil
	}
	if r, ok := s.cached(from, to); ok {
		return r, nil
	}

	rates, err := s.Rates(ctx, from, []string{to})
	if err != nil {
		return 0, fmt.Errorf("%s: %w: %w", entity.PairKey(from, to), domain.ErrRateUnavailable, err)
	}
	r, ok := rates[to]
	if !ok || r <= 0 {
		return 0, fmt.Errorf("%s: %w", entity.PairKey(from, to), domain.ErrRateUnavailable)
	}
	s.writeBack(from, to, r)
	return r, nil
}

// GetBatchRates resolves many pairs with at most one provider request per
// distinct from currency. Unresolved pairs are omitted from the result.
func (s *CurrencyService) GetBatchRates(ctx context.Context, pairs []entity.CurrencyPair) map[string]float64 {
	out := make(map[string]float64, len(pairs))
	pending := make(map[string][]string)
	var bases []string

	for _, p := range pairs {
		from, to := strings.ToUpper(strings.TrimSpace(p.From)), strings.ToUpper(strings.TrimSpace(p.To))
		key := entity.PairKey(from, to)
		if _, done := out[key]; done {
			continue
		}
		if from == to {
			out[key] = 1.0
			continue
		}
		if r, ok := s.cached(from, to); ok {
			out[key] = r
			continue
		}
		if _, seen := pending[from]; !seen {
			bases = append(bases, from)
		}
		if !slices.Contains(pending[from], to) {
			pending[from] = append(pending[from], to)
		}
	}

	for _, from := range bases {
		quotes := pending[from]
		rates, err := s.Rates(ctx, from, quotes)
		if err != nil {
			slog.Warn("batch rate lookup failed", "base", from, "quotes", len(quotes), "error", err)
			continue
		}
		for _, to := range quotes {
			if r, ok := rates[to]; ok && r > 0 {
				out[entity.PairKey(from, to)] = r
				s.writeBack(from, to, r)
			}
		}
	}
	return out
}

// Rates asks the primary provider for every quote, then the backup for whatever
// the primary could not supply. The live cache is not consulted.
func (s *CurrencyService) Rates(ctx context.Context, base string, quotes []string) (map[string]float64, error) {
	base = strings.ToUpper(base)
	out := make(map[string]float64, len(quotes))
	var errs []error

	if s.primary != nil {
		rates, err := s.primary.Rates(ctx, base, quotes)
		if err != nil {
			errs = append(errs, err)
		}
		for q, r := range rates {
			out[strings.ToUpper(q)] = r
		}
	}

	var missing []string
	for _, q := range quotes {
		if _, ok := out[strings.ToUpper(q)]; !ok {
			missing = append(missing, q)
		}
	}
	if len(missing) > 0 && s.backup != nil {
		slog.Debug("falling back to backup rate provider", "base", base, "quotes", missing)
		rates, err := s.backup.Rates(ctx, base, missing)
		if err != nil {
			errs = append(errs, err)
		}
		for q, r := range rates {
			out[strings.ToUpper(q)] = r
		}
	}

	if len(out) == 0 {
		if len(errs) == 0 {
			return nil, domain.NewProviderError("fx", base, domain.ErrNoData, nil)
		}
		return nil, errors.Join(errs...)
	}
	return out, nil
}

// cached serves from the live cache when the pair touches the canonical currency
// and the entry is younger than the FX freshness window.
func (s *CurrencyService) cached(from, to string) (float64, bool) {
	switch {
	case to == s.canonical:
		if e, ok := s.cache.Get(entity.FXSymbol(from)); ok && e.Price > 0 && e.Age(s.now()) <= s.ttl {
			return e.Price, true
		}
	case from == s.canonical:
		if e, ok := s.cache.Get(entity.FXSymbol(to)); ok && e.Price > 0 && e.Age(s.now()) <= s.ttl {
			return 1 / e.Price, true
		}
	}
	return 0, false
}

func (s *CurrencyService) writeBack(from, to string, rate float64) {
	opt := livecache.WithLastUpdate(s.now().UTC())
	switch {
	case to == s.canonical:
		s.cache.Set(entity.FXSymbol(from), rate, s.canonical, entity.MarketCurrency, opt)
	case from == s.canonical:
		s.cache.Set(entity.FXSymbol(to), 1/rate, s.canonical, entity.MarketCurrency, opt)
	}
}
