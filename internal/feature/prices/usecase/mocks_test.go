package usecase

import (
	"context"
	"sync"
	"time"

	"price_engine/internal/feature/prices/domain"
	"price_engine/internal/feature/prices/domain/entity"
)

// mockPriceRepository はテスト用のPriceRepositoryモック実装です。
type mockPriceRepository struct {
	mu            sync.Mutex
	upserted      []entity.PriceRecord
	latestFn      func(ctx context.Context, symbol string) (*entity.PriceRecord, error)
	latestBatchFn func(ctx context.Context, symbols []string) (map[string]entity.PriceRecord, error)
	batchCalls    int
}

func (m *mockPriceRepository) Upsert(ctx context.Context, rec entity.PriceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserted = append(m.upserted, rec)
	return nil
}

func (m *mockPriceRepository) Latest(ctx context.Context, symbol string) (*entity.PriceRecord, error) {
	if m.latestFn != nil {
		return m.latestFn(ctx, symbol)
	}
	return nil, domain.ErrPriceNotFound
}

func (m *mockPriceRepository) LatestBatch(ctx context.Context, symbols []string) (map[string]entity.PriceRecord, error) {
	m.mu.Lock()
	m.batchCalls++
	m.mu.Unlock()
	if m.latestBatchFn != nil {
		return m.latestBatchFn(ctx, symbols)
	}
	return map[string]entity.PriceRecord{}, nil
}

func (m *mockPriceRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

// mockTrackedRepository はテスト用のTrackedSymbolRepositoryモック実装です。
type mockTrackedRepository struct {
	mu        sync.Mutex
	existing  map[string]bool
	touched   []string
	list      []entity.TrackedSymbol
	pruned    []string
	listErr   error
	touchCall int
}

func (m *mockTrackedRepository) Create(ctx context.Context, ts *entity.TrackedSymbol) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.existing == nil {
		m.existing = map[string]bool{}
	}
	if m.existing[ts.Symbol] {
		return false, nil
	}
	m.existing[ts.Symbol] = true
	return true, nil
}

func (m *mockTrackedRepository) Touch(ctx context.Context, symbols []entity.TrackedSymbol, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touchCall++
	for _, s := range symbols {
		m.touched = append(m.touched, s.Symbol)
	}
	return nil
}

func (m *mockTrackedRepository) List(ctx context.Context) ([]entity.TrackedSymbol, error) {
	return m.list, m.listErr
}

func (m *mockTrackedRepository) SetLastUpdate(ctx context.Context, symbol string, at time.Time) error {
	return nil
}

func (m *mockTrackedRepository) SetLastUpdateMany(ctx context.Context, symbols []string, at time.Time) error {
	return nil
}

func (m *mockTrackedRepository) DeleteQueriedBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	return m.pruned, nil
}

// mockHistoryRepository はテスト用のHistoryRepositoryモック実装です。
type mockHistoryRepository struct {
	findFn func(ctx context.Context, symbol string, since time.Time) ([]entity.HistoricalPoint, error)
}

func (m *mockHistoryRepository) Count(ctx context.Context, symbol string) (int64, error) {
	return 0, nil
}

func (m *mockHistoryRepository) CountBatch(ctx context.Context, symbols []string) (map[string]int64, error) {
	return map[string]int64{}, nil
}

func (m *mockHistoryRepository) ExistingKeys(ctx context.Context, points []entity.HistoricalPoint) (map[string]struct{}, error) {
	return map[string]struct{}{}, nil
}

func (m *mockHistoryRepository) InsertBatch(ctx context.Context, points []entity.HistoricalPoint) (int, error) {
	return len(points), nil
}

func (m *mockHistoryRepository) Find(ctx context.Context, symbol string, since time.Time) ([]entity.HistoricalPoint, error) {
	if m.findFn != nil {
		return m.findFn(ctx, symbol, since)
	}
	return nil, nil
}

func (m *mockHistoryRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

// mockFetcher はテスト用のPriceFetcherモック実装です。
type mockFetcher struct {
	mu      sync.Mutex
	calls   []string
	fetchFn func(ctx context.Context, symbol string) (*entity.Quote, error)
}

func (m *mockFetcher) FetchCurrent(ctx context.Context, symbol string) (*entity.Quote, error) {
	m.mu.Lock()
	m.calls = append(m.calls, symbol)
	m.mu.Unlock()
	return m.fetchFn(ctx, symbol)
}

func (m *mockFetcher) FetchHistorical(ctx context.Context, symbol string, start, end time.Time) ([]entity.HistoricalPoint, error) {
	return nil, nil
}

func (m *mockFetcher) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
