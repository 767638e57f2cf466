package di

import (
	"context"

	"price_engine/internal/app/router"
	currencyhandler "price_engine/internal/feature/currency/transport/handler"
	synchandler "price_engine/internal/feature/historysync/transport/handler"
	priceshandler "price_engine/internal/feature/prices/transport/handler"
	valuationhandler "price_engine/internal/feature/valuation/transport/handler"
	platformhandler "price_engine/internal/platform/http/handler"
)

// NewHandlers はEngineのユースケースからHTTPハンドラーを生成します。
func NewHandlers(e *Engine) router.Handlers {
	required := map[string]platformhandler.Check{
		"store": func(ctx context.Context) error {
			sqlDB, err := e.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	// Redis未設定は正常扱い。接続済みのクライアントだけを任意チェックに含めます。
	optional := map[string]platformhandler.Check{}
	if e.Redis != nil {
		optional["redis"] = func(ctx context.Context) error {
			return e.Redis.Ping(ctx).Err()
		}
	}

	return router.Handlers{
		Health:    platformhandler.NewHealthHandler(required, optional, e.Cache.Size),
		Prices:    priceshandler.NewPricesHandler(e.Prices),
		Rates:     currencyhandler.NewRatesHandler(e.Currency),
		Valuation: valuationhandler.NewValuationHandler(e.Valuation),
		Sync:      synchandler.NewSyncHandler(e.Sync),
	}
}
