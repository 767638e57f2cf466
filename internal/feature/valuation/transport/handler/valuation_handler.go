// Package handler はvaluationフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"price_engine/internal/api"
	"price_engine/internal/feature/valuation/transport/http/dto"
	"price_engine/internal/feature/valuation/usecase"
)

// ValuationUsecaseInterface はポートフォリオ評価のユースケースです。
type ValuationUsecaseInterface interface {
	Value(ctx context.Context, base string, holdings []usecase.Holding) (*usecase.Valuation, error)
}

// ValuationHandler はポートフォリオ評価のHTTPリクエストを処理します。
type ValuationHandler struct {
	uc ValuationUsecaseInterface
}

// NewValuationHandler はValuationHandlerを生成します。
func NewValuationHandler(uc ValuationUsecaseInterface) *ValuationHandler {
	return &ValuationHandler{uc: uc}
}

// Value は POST /valuation を処理します。
func (h *ValuationHandler) Value(c *gin.Context) {
	var req dto.ValuationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	holdings := make([]usecase.Holding, 0, len(req.Holdings))
	for _, h := range req.Holdings {
		holdings = append(holdings, usecase.Holding{Symbol: h.Symbol, Units: h.Units, Currency: h.Currency})
	}

	v, err := h.uc.Value(c.Request.Context(), req.BaseCurrency, holdings)
	if err != nil {
		c.JSON(http.StatusBadGateway, api.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, v)
}
