// Package usecase resolves current and historical prices across the live cache,
// the persistent store and the market-data providers.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"price_engine/internal/feature/prices/domain"
	"price_engine/internal/feature/prices/domain/entity"
	"price_engine/internal/feature/prices/fetcher"
	"price_engine/internal/platform/livecache"
	"price_engine/internal/shared/ratelimiter"
)

// FetcherResolver picks the market-specific fetcher for a symbol.
type FetcherResolver interface {
	Resolve(symbol string) (fetcher.PriceFetcher, entity.Market, error)
}

// Config tunes the PriceManager.
type Config struct {
	FreshnessTTL   time.Duration // persisted prices younger than this are served without fetching
	TrackingExpiry time.Duration // tracked symbols not read for this long are pruned
	FetchTimeout   time.Duration // per-symbol provider timeout
	Concurrency    int           // bounded worker pool size for batch fetches
}

// RefreshResult summarizes one refresh of every tracked symbol.
type RefreshResult struct {
	Message           string   `json:"message"`
	RefreshedCount    int      `json:"refreshed_count"`
	NotRefreshedCount int      `json:"not_refreshed_count"`
	FailedSymbols     []string `json:"failed_symbols"`
	PrunedCount       int      `json:"pruned_count"`
}

// PriceManager resolves prices through the live cache, the persisted store and the fetchers.
type PriceManager struct {
	cache    *livecache.Cache
	prices   PriceRepository
	history  HistoryRepository
	tracked  TrackedSymbolRepository
	fetchers FetcherResolver
	limiter  ratelimiter.RateLimiterInterface
	cfg      Config
	now      func() time.Time

	refreshing sync.Mutex
}

// NewPriceManager wires a PriceManager. limiter may be nil.
func NewPriceManager(
	cache *livecache.Cache,
	prices PriceRepository,
	history HistoryRepository,
	tracked TrackedSymbolRepository,
	fetchers FetcherResolver,
	limiter ratelimiter.RateLimiterInterface,
	cfg Config,
) *PriceManager {
	if cfg.FreshnessTTL <= 0 {
		cfg.FreshnessTTL = 24 * time.Hour
	}
	if cfg.TrackingExpiry <= 0 {
		cfg.TrackingExpiry = 30 * 24 * time.Hour
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 8 * time.Second
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 4
	}
	return &PriceManager{
		cache:    cache,
		prices:   prices,
		history:  history,
		tracked:  tracked,
		fetchers: fetchers,
		limiter:  limiter,
		cfg:      cfg,
		now:      time.Now,
	}
}

func recordFromEntry(e entity.LivePriceEntry) entity.PriceRecord {
	d := e.LastUpdate.UTC()
	return entity.PriceRecord{
		Symbol:    e.Symbol,
		Price:     e.Price,
		Currency:  e.Currency,
		Market:    e.Market,
		Date:      time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC),
		FetchedAt: d,
	}
}

func entryFromRecord(r entity.PriceRecord) entity.LivePriceEntry {
	return entity.LivePriceEntry{
		Symbol:     r.Symbol,
		Price:      r.Price,
		Currency:   r.Currency,
		Market:     r.Market,
		LastUpdate: r.FetchedAt,
	}
}

// GetPrice resolves one symbol. With fresh set, the cache and store are skipped.
// A failure to resolve wraps domain.ErrPriceNotFound.
func (m *PriceManager) GetPrice(ctx context.Context, symbol string, fresh bool) (*entity.PriceRecord, error) {
	sym := fetcher.Normalize(symbol)
	market, err := fetcher.Classify(sym)
	if err != nil {
		return nil, err
	}

	if !fresh {
		if e, ok := m.cache.Get(sym); ok {
			rec := recordFromEntry(e)
			m.touch(ctx, []entity.TrackedSymbol{{Symbol: sym, Market: market}})
			return &rec, nil
		}
		if rec, ok := m.storedIfFresh(ctx, sym); ok {
			m.touch(ctx, []entity.TrackedSymbol{{Symbol: sym, Market: market}})
			return rec, nil
		}
	}

	rec, _, err := m.fetchAndStore(ctx, sym)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPriceNotFound, err)
	}
	m.touch(ctx, []entity.TrackedSymbol{{Symbol: sym, Market: market}})
	return rec, nil
}

// storedIfFresh returns the persisted price when it is younger than the
// freshness TTL and repopulates the live cache with it.
func (m *PriceManager) storedIfFresh(ctx context.Context, sym string) (*entity.PriceRecord, bool) {
	rec, err := m.prices.Latest(ctx, sym)
	if err != nil {
		if !errors.Is(err, domain.ErrPriceNotFound) {
			slog.Warn("price store lookup failed", "symbol", sym, "error", err)
		}
		return nil, false
	}
	if m.now().Sub(rec.FetchedAt) >= m.cfg.FreshnessTTL {
		return nil, false
	}
	m.cache.Put(entryFromRecord(*rec))
	return rec, true
}

// fetchAndStore calls the provider, persists the result and writes it into the live cache.
// The returned quote exposes MarketClosed to callers that distinguish stale from new data.
func (m *PriceManager) fetchAndStore(ctx context.Context, sym string) (*entity.PriceRecord, *entity.Quote, error) {
	f, market, err := m.fetchers.Resolve(sym)
	if err != nil {
		return nil, nil, err
	}
	if m.limiter != nil {
		if err := m.limiter.WaitIfNeeded(ctx); err != nil {
			return nil, nil, domain.NewProviderError("limiter", sym, domain.ErrProviderUnavailable, err)
		}
	}

	fctx, cancel := context.WithTimeout(ctx, m.cfg.FetchTimeout)
	defer cancel()
	q, err := f.FetchCurrent(fctx, sym)
	if err != nil {
		return nil, nil, err
	}
	if q.Market == "" {
		q.Market = market
	}
	if q.FetchedAt.IsZero() {
		q.FetchedAt = m.now().UTC()
	}

	rec := entity.PriceRecord{
		Symbol:    sym,
		Price:     q.Price,
		Currency:  q.Currency,
		Market:    q.Market,
		FetchedAt: q.FetchedAt.UTC(),
	}
	rec.Date = time.Date(rec.FetchedAt.Year(), rec.FetchedAt.Month(), rec.FetchedAt.Day(), 0, 0, 0, 0, time.UTC)

	if err := m.prices.Upsert(ctx, rec); err != nil {
		slog.Warn("failed to persist price", "symbol", sym, "error", err)
	}
	opts := []livecache.Option{livecache.WithLastUpdate(rec.FetchedAt)}
	if q.ChangePercent != nil {
		opts = append(opts, livecache.WithChangePercent(*q.ChangePercent))
	}
	m.cache.Set(sym, rec.Price, rec.Currency, rec.Market, opts...)
	return &rec, q, nil
}

// GetBatchPrices resolves many symbols: cache hits first, then one store query
// for the misses, then a bounded parallel fetch for what is still missing.
// Unresolvable symbols are omitted.
func (m *PriceManager) GetBatchPrices(ctx context.Context, symbols []string) (map[string]entity.PriceRecord, error) {
	out := make(map[string]entity.PriceRecord, len(symbols))
	markets := make(map[string]entity.Market, len(symbols))
	var misses []string

	for _, s := range symbols {
		sym := fetcher.Normalize(s)
		if _, dup := markets[sym]; dup {
			continue
		}
		market, err := fetcher.Classify(sym)
		if err != nil {
			slog.Debug("skipping unsupported symbol", "symbol", s)
			continue
		}
		markets[sym] = market
		if e, ok := m.cache.Get(sym); ok {
			out[sym] = recordFromEntry(e)
			continue
		}
		misses = append(misses, sym)
	}

	var toFetch []string
	if len(misses) > 0 {
		stored, err := m.prices.LatestBatch(ctx, misses)
		if err != nil {
			slog.Warn("batch price lookup failed", "symbols", len(misses), "error", err)
		}
		now := m.now()
		for _, sym := range misses {
			if rec, ok := stored[sym]; ok && now.Sub(rec.FetchedAt) < m.cfg.FreshnessTTL {
				out[sym] = rec
				m.cache.Put(entryFromRecord(rec))
				continue
			}
			toFetch = append(toFetch, sym)
		}
	}

	if len(toFetch) > 0 {
		var mu sync.Mutex
		var g errgroup.Group
		g.SetLimit(m.cfg.Concurrency)
		for _, sym := range toFetch {
			g.Go(func() error {
				rec, _, err := m.fetchAndStore(ctx, sym)
				if err != nil {
					slog.Warn("price fetch failed", "symbol", sym, "error", err)
					return nil
				}
				mu.Lock()
				out[sym] = *rec
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
	}

	resolved := make([]entity.TrackedSymbol, 0, len(out))
	for sym := range out {
		resolved = append(resolved, entity.TrackedSymbol{Symbol: sym, Market: markets[sym]})
	}
	m.touch(ctx, resolved)
	return out, nil
}

// GetHistoricalPrices returns up to days of daily closes per symbol, oldest first.
// Symbols whose lookup fails are omitted.
func (m *PriceManager) GetHistoricalPrices(ctx context.Context, symbols []string, days int) (map[string][]entity.DailyPrice, error) {
	if days < 1 {
		days = 1
	}
	since := m.now().UTC().AddDate(0, 0, -days)
	out := make(map[string][]entity.DailyPrice, len(symbols))
	var read []entity.TrackedSymbol

	for _, s := range symbols {
		sym := fetcher.Normalize(s)
		market, err := fetcher.Classify(sym)
		if err != nil {
			continue
		}
		if _, dup := out[sym]; dup {
			continue
		}
		points, err := m.history.Find(ctx, sym, since)
		if err != nil {
			slog.Warn("history lookup failed", "symbol", sym, "error", err)
			continue
		}
		series := make([]entity.DailyPrice, 0, len(points))
		for _, p := range points {
			series = append(series, entity.DailyPrice{Date: p.Timestamp, Price: p.Close})
		}
		out[sym] = series
		read = append(read, entity.TrackedSymbol{Symbol: sym, Market: market})
	}
	m.touch(ctx, read)
	return out, nil
}

// TrackSymbols idempotently registers symbols for background maintenance.
func (m *PriceManager) TrackSymbols(ctx context.Context, symbols []string) (map[string]entity.TrackStatus, error) {
	out := make(map[string]entity.TrackStatus, len(symbols))
	now := m.now().UTC()
	for _, s := range symbols {
		sym := fetcher.Normalize(s)
		market, err := fetcher.Classify(sym)
		if err != nil {
			out[sym] = entity.TrackStatusUnsupported
			continue
		}
		created, err := m.tracked.Create(ctx, &entity.TrackedSymbol{
			Symbol:        sym,
			Market:        market,
			AddedAt:       now,
			LastQueriedAt: now,
		})
		if err != nil {
			return nil, fmt.Errorf("track %s: %w", sym, err)
		}
		if created {
			out[sym] = entity.TrackStatusAdded
		} else {
			out[sym] = entity.TrackStatusAlreadyTracked
		}
	}
	return out, nil
}

// PruneExpired deletes tracked symbols not read within the tracking expiry and
// evicts them from the live cache.
func (m *PriceManager) PruneExpired(ctx context.Context) ([]string, error) {
	cutoff := m.now().Add(-m.cfg.TrackingExpiry)
	pruned, err := m.tracked.DeleteQueriedBefore(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("prune tracked symbols: %w", err)
	}
	for _, sym := range pruned {
		m.cache.Remove(sym)
	}
	if len(pruned) > 0 {
		slog.Info("pruned expired tracked symbols", "count", len(pruned))
	}
	return pruned, nil
}

// RefreshTrackedSymbols prunes expired symbols, then force-fetches every remaining
// one. A closed market or a provider with nothing new counts as not refreshed,
// not as a failure. Only store failures abort the run. A refresh started while
// another is running returns domain.ErrJobInProgress without waiting.
func (m *PriceManager) RefreshTrackedSymbols(ctx context.Context) (*RefreshResult, error) {
	if !m.refreshing.TryLock() {
		return nil, domain.ErrJobInProgress
	}
	defer m.refreshing.Unlock()

	pruned, err := m.PruneExpired(ctx)
	if err != nil {
		return nil, err
	}
	symbols, err := m.tracked.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tracked symbols: %w", err)
	}

	res := &RefreshResult{PrunedCount: len(pruned), FailedSymbols: []string{}}
	var (
		mu       sync.Mutex
		disabled = map[entity.Market]bool{}
		g        errgroup.Group
	)
	g.SetLimit(m.cfg.Concurrency)

	for _, ts := range symbols {
		g.Go(func() error {
			mu.Lock()
			skip := disabled[ts.Market]
			mu.Unlock()
			if skip {
				mu.Lock()
				res.FailedSymbols = append(res.FailedSymbols, ts.Symbol)
				mu.Unlock()
				return nil
			}

			_, q, err := m.fetchAndStore(ctx, ts.Symbol)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil && q.MarketClosed:
				res.NotRefreshedCount++
			case err == nil:
				res.RefreshedCount++
			case domain.IsNoData(err):
				res.NotRefreshedCount++
			case domain.IsConfiguration(err):
				if !disabled[ts.Market] {
					slog.Error("provider misconfigured, skipping market", "market", ts.Market, "error", err)
				}
				disabled[ts.Market] = true
				res.FailedSymbols = append(res.FailedSymbols, ts.Symbol)
			default:
				slog.Warn("refresh failed", "symbol", ts.Symbol, "error", err)
				res.FailedSymbols = append(res.FailedSymbols, ts.Symbol)
			}
			return nil
		})
	}
	_ = g.Wait()
	slices.Sort(res.FailedSymbols)

	res.Message = fmt.Sprintf("refreshed %d of %d tracked symbols", res.RefreshedCount, len(symbols))
	slog.Info("tracked symbols refreshed",
		"refreshed", res.RefreshedCount,
		"not_refreshed", res.NotRefreshedCount,
		"failed", len(res.FailedSymbols),
		"pruned", res.PrunedCount,
	)
	return res, nil
}

// touch records a read of symbols; failures are logged, never returned.
func (m *PriceManager) touch(ctx context.Context, symbols []entity.TrackedSymbol) {
	if len(symbols) == 0 {
		return
	}
	if err := m.tracked.Touch(ctx, symbols, m.now().UTC()); err != nil {
		slog.Warn("failed to update last_queried_at", "symbols", len(symbols), "error", err)
	}
}
