// Package handler はcurrencyフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"price_engine/internal/api"
	"price_engine/internal/feature/currency/transport/http/dto"
	"price_engine/internal/feature/prices/domain"
	"price_engine/internal/feature/prices/domain/entity"
)

// RatesUsecase は為替レート取得のユースケースインターフェースを定義します。
type RatesUsecase interface {
	GetRate(ctx context.Context, from, to string) (float64, error)
	GetBatchRates(ctx context.Context, pairs []entity.CurrencyPair) map[string]float64
}

// RatesHandler は為替レートのHTTPリクエストを処理します。
type RatesHandler struct {
	uc RatesUsecase
}

// NewRatesHandler はRatesHandlerを生成します。
func NewRatesHandler(uc RatesUsecase) *RatesHandler {
	return &RatesHandler{uc: uc}
}

// GetRate は GET /rates/:from/:to を処理します。
func (h *RatesHandler) GetRate(c *gin.Context) {
	from, to := strings.ToUpper(c.Param("from")), strings.ToUpper(c.Param("to"))

	rate, err := h.uc.GetRate(c.Request.Context(), from, to)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, domain.ErrRateUnavailable) {
			status = http.StatusNotFound
		}
		c.JSON(status, api.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.RateResponse{From: from, To: to, Rate: rate})
}

// GetBatchRates は POST /rates/batch を処理します。
// 取得できなかったペアはレスポンスに含まれません。
func (h *RatesHandler) GetBatchRates(c *gin.Context) {
	var req dto.BatchRatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	pairs := make([]entity.CurrencyPair, 0, len(req.Pairs))
	for _, p := range req.Pairs {
		pairs = append(pairs, entity.CurrencyPair{From: p.From, To: p.To})
	}
	c.JSON(http.StatusOK, h.uc.GetBatchRates(c.Request.Context(), pairs))
}
