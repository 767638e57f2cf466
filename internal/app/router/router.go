// Package router は運用向けHTTPエンドポイントのルーティングを定義します。
package router

import (
	"github.com/gin-gonic/gin"

	currencyhandler "price_engine/internal/feature/currency/transport/handler"
	synchandler "price_engine/internal/feature/historysync/transport/handler"
	priceshandler "price_engine/internal/feature/prices/transport/handler"
	valuationhandler "price_engine/internal/feature/valuation/transport/handler"
	platformhandler "price_engine/internal/platform/http/handler"
)

// Handlers はルーターに登録する各フィーチャーのハンドラーです。
type Handlers struct {
	Health    *platformhandler.HealthHandler
	Prices    *priceshandler.PricesHandler
	Rates     *currencyhandler.RatesHandler
	Valuation *valuationhandler.ValuationHandler
	Sync      *synchandler.SyncHandler
}

// NewRouter はginエンジンを生成してルートを登録します。
func NewRouter(h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// 導通確認用
	r.GET("/healthz", h.Health.Health)
	r.HEAD("/healthz", h.Health.Health)
	r.OPTIONS("/healthz", h.Health.Health)

	prices := r.Group("/prices")
	{
		prices.GET("/history", h.Prices.GetHistory)
		prices.GET("/:symbol", h.Prices.GetPrice)
		prices.POST("/batch", h.Prices.GetBatchPrices)
	}

	symbols := r.Group("/symbols")
	{
		symbols.POST("/track", h.Prices.TrackSymbols)
		symbols.POST("/refresh", h.Prices.RefreshTracked)
	}

	rates := r.Group("/rates")
	{
		rates.GET("/:from/:to", h.Rates.GetRate)
		rates.POST("/batch", h.Rates.GetBatchRates)
	}

	r.POST("/valuation", h.Valuation.Value)
	r.POST("/sync/historical", h.Sync.RunHistorical)

	return r
}
