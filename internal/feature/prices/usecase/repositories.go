package usecase

import (
	"context"
	"time"

	"price_engine/internal/feature/prices/domain/entity"
)

// TrackedSymbolRepository persists the set of symbols the engine keeps prices for.
type TrackedSymbolRepository interface {
	// Create inserts ts unless the symbol already exists and reports whether a row was added.
	Create(ctx context.Context, ts *entity.TrackedSymbol) (bool, error)
	// Touch upserts every symbol and sets last_queried_at to at.
	Touch(ctx context.Context, symbols []entity.TrackedSymbol, at time.Time) error
	List(ctx context.Context) ([]entity.TrackedSymbol, error)
	SetLastUpdate(ctx context.Context, symbol string, at time.Time) error
	SetLastUpdateMany(ctx context.Context, symbols []string, at time.Time) error
	// DeleteQueriedBefore removes symbols not read since cutoff and returns them.
	DeleteQueriedBefore(ctx context.Context, cutoff time.Time) ([]string, error)
}

// PriceRepository persists one current-price row per symbol per day.
type PriceRepository interface {
	Upsert(ctx context.Context, rec entity.PriceRecord) error
	// Latest returns domain.ErrPriceNotFound when the symbol has no row.
	Latest(ctx context.Context, symbol string) (*entity.PriceRecord, error)
	// LatestBatch resolves every symbol in one query; symbols without rows are absent.
	LatestBatch(ctx context.Context, symbols []string) (map[string]entity.PriceRecord, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// HistoryRepository persists daily historical closes keyed by (symbol, timestamp).
type HistoryRepository interface {
	Count(ctx context.Context, symbol string) (int64, error)
	CountBatch(ctx context.Context, symbols []string) (map[string]int64, error)
	// ExistingKeys returns the HistoricalPoint.Key of every point that is already stored.
	ExistingKeys(ctx context.Context, points []entity.HistoricalPoint) (map[string]struct{}, error)
	// InsertBatch stores points, skipping duplicates, and returns how many rows were written.
	InsertBatch(ctx context.Context, points []entity.HistoricalPoint) (int, error)
	// Find returns points at or after since, oldest first.
	Find(ctx context.Context, symbol string, since time.Time) ([]entity.HistoricalPoint, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
