package adapters

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"price_engine/internal/feature/prices/domain/entity"
	"price_engine/internal/feature/prices/usecase"
)

// HistoricalPointModel is one daily close. (symbol, ts) is unique and the
// composite index also serves symbol-scoped range scans.
type HistoricalPointModel struct {
	ID     uint      `gorm:"primaryKey"`
	Symbol string    `gorm:"size:32;not null;uniqueIndex:hist_sym_ts,priority:1"`
	Ts     time.Time `gorm:"column:ts;not null;uniqueIndex:hist_sym_ts,priority:2;index"`
	Close  float64   `gorm:"not null"`
}

func (HistoricalPointModel) TableName() string {
	return "historical_prices"
}

// keyChunk keeps IN lists under driver parameter limits.
const keyChunk = 400

type historyGorm struct {
	db *gorm.DB
}

var _ usecase.HistoryRepository = (*historyGorm)(nil)

// NewHistoryRepository creates a gorm-backed HistoryRepository.
func NewHistoryRepository(db *gorm.DB) *historyGorm {
	return &historyGorm{db: db}
}

func normalizeTs(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

func (r *historyGorm) Count(ctx context.Context, symbol string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&HistoricalPointModel{}).Where("symbol = ?", symbol).Count(&n).Error
	return n, err
}

func (r *historyGorm) CountBatch(ctx context.Context, symbols []string) (map[string]int64, error) {
	out := make(map[string]int64, len(symbols))
	if len(symbols) == 0 {
		return out, nil
	}
	var rows []struct {
		Symbol string
		N      int64
	}
	err := r.db.WithContext(ctx).Model(&HistoricalPointModel{}).
		Select("symbol, COUNT(*) AS n").
		Where("symbol IN ?", symbols).
		Group("symbol").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, s := range symbols {
		out[s] = 0
	}
	for _, row := range rows {
		out[row.Symbol] = row.N
	}
	return out, nil
}

func (r *historyGorm) ExistingKeys(ctx context.Context, points []entity.HistoricalPoint) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	if len(points) == 0 {
		return out, nil
	}
	symSet := map[string]struct{}{}
	tsSet := map[int64]time.Time{}
	for _, p := range points {
		symSet[p.Symbol] = struct{}{}
		ts := normalizeTs(p.Timestamp)
		tsSet[ts.Unix()] = ts
	}
	symbols := make([]string, 0, len(symSet))
	for s := range symSet {
		symbols = append(symbols, s)
	}
	stamps := make([]time.Time, 0, len(tsSet))
	for _, ts := range tsSet {
		stamps = append(stamps, ts)
	}

	for start := 0; start < len(stamps); start += keyChunk {
		end := min(start+keyChunk, len(stamps))
		var rows []HistoricalPointModel
		err := r.db.WithContext(ctx).
			Select("symbol", "ts").
			Where("symbol IN ? AND ts IN ?", symbols, stamps[start:end]).
			Find(&rows).Error
		if err != nil {
			return nil, err
		}
		for _, m := range rows {
			out[entity.HistoricalPoint{Symbol: m.Symbol, Timestamp: m.Ts}.Key()] = struct{}{}
		}
	}
	return out, nil
}

// InsertBatch writes all points in one statement. When a concurrent writer
// already stored some of them, it retries row by row and skips the duplicates.
func (r *historyGorm) InsertBatch(ctx context.Context, points []entity.HistoricalPoint) (int, error) {
	if len(points) == 0 {
		return 0, nil
	}
	rows := make([]HistoricalPointModel, 0, len(points))
	for _, p := range points {
		rows = append(rows, HistoricalPointModel{Symbol: p.Symbol, Ts: normalizeTs(p.Timestamp), Close: p.Close})
	}

	db := r.db.WithContext(ctx)
	err := db.Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(&rows, 200).Error
	})
	if err == nil {
		return len(rows), nil
	}
	if !isDuplicateKey(err) {
		return 0, err
	}

	inserted, skipped := 0, 0
	for _, m := range rows {
		m.ID = 0
		if err := db.Create(&m).Error; err != nil {
			if isDuplicateKey(err) {
				skipped++
				continue
			}
			return inserted, err
		}
		inserted++
	}
	slog.Debug("historical insert skipped duplicates", "inserted", inserted, "skipped", skipped)
	return inserted, nil
}

func (r *historyGorm) Find(ctx context.Context, symbol string, since time.Time) ([]entity.HistoricalPoint, error) {
	var rows []HistoricalPointModel
	err := r.db.WithContext(ctx).
		Where("symbol = ? AND ts >= ?", symbol, normalizeTs(since)).
		Order("ts ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]entity.HistoricalPoint, 0, len(rows))
	for _, m := range rows {
		out = append(out, entity.HistoricalPoint{Symbol: m.Symbol, Timestamp: m.Ts.UTC(), Close: m.Close})
	}
	return out, nil
}

func (r *historyGorm) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("ts < ?", normalizeTs(cutoff)).Delete(&HistoricalPointModel{})
	return res.RowsAffected, res.Error
}

// Models lists the gorm models owned by this package for AutoMigrate.
func Models() []any {
	return []any{&entity.TrackedSymbol{}, &PriceModel{}, &HistoricalPointModel{}}
}
