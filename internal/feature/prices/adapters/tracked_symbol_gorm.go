package adapters

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"price_engine/internal/feature/prices/domain"
	"price_engine/internal/feature/prices/domain/entity"
	"price_engine/internal/feature/prices/usecase"
)

type trackedSymbolGorm struct {
	db *gorm.DB
}

var _ usecase.TrackedSymbolRepository = (*trackedSymbolGorm)(nil)

// NewTrackedSymbolRepository creates a gorm-backed TrackedSymbolRepository.
func NewTrackedSymbolRepository(db *gorm.DB) *trackedSymbolGorm {
	return &trackedSymbolGorm{db: db}
}

func (r *trackedSymbolGorm) Create(ctx context.Context, ts *entity.TrackedSymbol) (bool, error) {
	ts.AddedAt = ts.AddedAt.UTC()
	ts.LastQueriedAt = ts.LastQueriedAt.UTC()
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}},
		DoNothing: true,
	}).Create(ts)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *trackedSymbolGorm) Touch(ctx context.Context, symbols []entity.TrackedSymbol, at time.Time) error {
	if len(symbols) == 0 {
		return nil
	}
	at = at.UTC()
	rows := make([]entity.TrackedSymbol, 0, len(symbols))
	seen := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		if _, ok := seen[s.Symbol]; ok {
			continue
		}
		seen[s.Symbol] = struct{}{}
		rows = append(rows, entity.TrackedSymbol{Symbol: s.Symbol, Market: s.Market, AddedAt: at, LastQueriedAt: at})
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_queried_at"}),
	}).Create(&rows).Error
}

func (r *trackedSymbolGorm) List(ctx context.Context) ([]entity.TrackedSymbol, error) {
	var rows []entity.TrackedSymbol
	if err := r.db.WithContext(ctx).Order("symbol").Find(&rows).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].AddedAt = rows[i].AddedAt.UTC()
		rows[i].LastQueriedAt = rows[i].LastQueriedAt.UTC()
		if rows[i].LastUpdate != nil {
			t := rows[i].LastUpdate.UTC()
			rows[i].LastUpdate = &t
		}
	}
	return rows, nil
}

func (r *trackedSymbolGorm) SetLastUpdate(ctx context.Context, symbol string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&entity.TrackedSymbol{}).
		Where("symbol = ?", symbol).
		Update("last_update", at.UTC())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrSymbolNotTracked
	}
	return nil
}

func (r *trackedSymbolGorm) SetLastUpdateMany(ctx context.Context, symbols []string, at time.Time) error {
	if len(symbols) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&entity.TrackedSymbol{}).
		Where("symbol IN ?", symbols).
		Update("last_update", at.UTC()).Error
}

func (r *trackedSymbolGorm) DeleteQueriedBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	var symbols []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&entity.TrackedSymbol{}).
			Where("last_queried_at < ?", cutoff.UTC()).
			Pluck("symbol", &symbols).Error; err != nil {
			return err
		}
		if len(symbols) == 0 {
			return nil
		}
		return tx.Where("symbol IN ?", symbols).Delete(&entity.TrackedSymbol{}).Error
	})
	if err != nil {
		return nil, err
	}
	return symbols, nil
}
