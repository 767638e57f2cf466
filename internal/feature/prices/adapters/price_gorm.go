package adapters

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"price_engine/internal/feature/prices/domain"
	"price_engine/internal/feature/prices/domain/entity"
	"price_engine/internal/feature/prices/usecase"
)

// PriceModel is one persisted current price per symbol per UTC day.
type PriceModel struct {
	ID        uint      `gorm:"primaryKey"`
	Symbol    string    `gorm:"size:32;not null;uniqueIndex:price_sym_date,priority:1"`
	TradeDate time.Time `gorm:"not null;uniqueIndex:price_sym_date,priority:2"`
	Price     float64   `gorm:"not null"`
	Currency  string    `gorm:"size:8;not null"`
	Market    string    `gorm:"size:32;not null"`
	FetchedAt time.Time `gorm:"not null;index"`
}

func (PriceModel) TableName() string {
	return "current_prices"
}

type priceGorm struct {
	db *gorm.DB
}

var _ usecase.PriceRepository = (*priceGorm)(nil)

// NewPriceRepository creates a gorm-backed PriceRepository.
func NewPriceRepository(db *gorm.DB) *priceGorm {
	return &priceGorm{db: db}
}

func dayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (m PriceModel) toEntity() entity.PriceRecord {
	return entity.PriceRecord{
		Symbol:    m.Symbol,
		Price:     m.Price,
		Currency:  m.Currency,
		Market:    entity.Market(m.Market),
		Date:      m.TradeDate.UTC(),
		FetchedAt: m.FetchedAt.UTC(),
	}
}

func (r *priceGorm) Upsert(ctx context.Context, rec entity.PriceRecord) error {
	m := PriceModel{
		Symbol:    rec.Symbol,
		TradeDate: dayOf(rec.FetchedAt),
		Price:     rec.Price,
		Currency:  rec.Currency,
		Market:    string(rec.Market),
		FetchedAt: rec.FetchedAt.UTC(),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}, {Name: "trade_date"}},
		DoUpdates: clause.AssignmentColumns([]string{"price", "currency", "market", "fetched_at"}),
	}).Create(&m).Error
}

func (r *priceGorm) Latest(ctx context.Context, symbol string) (*entity.PriceRecord, error) {
	var m PriceModel
	err := r.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("fetched_at DESC").
		Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrPriceNotFound
	}
	if err != nil {
		return nil, err
	}
	rec := m.toEntity()
	return &rec, nil
}

func (r *priceGorm) LatestBatch(ctx context.Context, symbols []string) (map[string]entity.PriceRecord, error) {
	out := make(map[string]entity.PriceRecord, len(symbols))
	if len(symbols) == 0 {
		return out, nil
	}
	db := r.db.WithContext(ctx)
	latest := db.Model(&PriceModel{}).
		Select("symbol, MAX(fetched_at) AS max_fetched").
		Where("symbol IN ?", symbols).
		Group("symbol")

	var rows []PriceModel
	err := db.Model(&PriceModel{}).
		Select("current_prices.*").
		Joins("JOIN (?) AS latest ON current_prices.symbol = latest.symbol AND current_prices.fetched_at = latest.max_fetched", latest).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, m := range rows {
		out[m.Symbol] = m.toEntity()
	}
	return out, nil
}

func (r *priceGorm) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("fetched_at < ?", cutoff.UTC()).Delete(&PriceModel{})
	return res.RowsAffected, res.Error
}
