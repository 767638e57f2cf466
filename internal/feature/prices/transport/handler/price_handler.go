// Package handler はpricesフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"price_engine/internal/api"
	"price_engine/internal/feature/prices/domain"
	"price_engine/internal/feature/prices/domain/entity"
	"price_engine/internal/feature/prices/transport/http/dto"
	"price_engine/internal/feature/prices/usecase"
)

// PricesUsecase は価格解決のユースケースインターフェースを定義します。
// インターフェースは利用者（handler）側で定義します。
type PricesUsecase interface {
	GetPrice(ctx context.Context, symbol string, fresh bool) (*entity.PriceRecord, error)
	GetBatchPrices(ctx context.Context, symbols []string) (map[string]entity.PriceRecord, error)
	GetHistoricalPrices(ctx context.Context, symbols []string, days int) (map[string][]entity.DailyPrice, error)
	TrackSymbols(ctx context.Context, symbols []string) (map[string]entity.TrackStatus, error)
	RefreshTrackedSymbols(ctx context.Context) (*usecase.RefreshResult, error)
}

// PricesHandler は価格関連のHTTPリクエストを処理します。
type PricesHandler struct {
	uc PricesUsecase
}

// NewPricesHandler は指定されたusecaseでPricesHandlerを生成します。
func NewPricesHandler(uc PricesUsecase) *PricesHandler {
	return &PricesHandler{uc: uc}
}

func toPriceResponse(r entity.PriceRecord) dto.PriceResponse {
	return dto.PriceResponse{
		Symbol:    r.Symbol,
		Price:     r.Price,
		Currency:  r.Currency,
		Market:    string(r.Market),
		Date:      r.Date.UTC().Format(time.DateOnly),
		FetchedAt: r.FetchedAt.UTC().Format(time.RFC3339),
	}
}

// GetPrice は単一シンボルの現在価格を返します。
//
// エンドポイント例:
// GET /prices/AAPL?fresh=true
func (h *PricesHandler) GetPrice(c *gin.Context) {
	fresh, _ := strconv.ParseBool(c.DefaultQuery("fresh", "false"))

	rec, err := h.uc.GetPrice(c.Request.Context(), c.Param("symbol"), fresh)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUnsupportedSymbol):
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		case errors.Is(err, domain.ErrPriceNotFound):
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: err.Error()})
		default:
			c.JSON(http.StatusBadGateway, api.ErrorResponse{Error: err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, toPriceResponse(*rec))
}

// GetBatchPrices は解決できたシンボルの価格のみを返します。
func (h *PricesHandler) GetBatchPrices(c *gin.Context) {
	var req dto.SymbolsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	prices, err := h.uc.GetBatchPrices(c.Request.Context(), req.Symbols)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: err.Error()})
		return
	}

	out := make(map[string]dto.PriceResponse, len(prices))
	for sym, r := range prices {
		out[sym] = toPriceResponse(r)
	}
	c.JSON(http.StatusOK, out)
}

// GetHistory は過去N日分の日次終値を返します。
//
// エンドポイント例:
// GET /prices/history?symbols=AAPL,MSFT&days=7
func (h *PricesHandler) GetHistory(c *gin.Context) {
	var symbols []string
	for _, s := range strings.Split(c.Query("symbols"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			symbols = append(symbols, s)
		}
	}
	if len(symbols) == 0 {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "symbols is required"})
		return
	}
	// 不正値はusecase側で1日に丸められる
	days, _ := strconv.Atoi(c.DefaultQuery("days", "7"))

	series, err := h.uc.GetHistoricalPrices(c.Request.Context(), symbols, days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: err.Error()})
		return
	}

	out := make(map[string][]dto.DailyPriceResponse, len(series))
	for sym, points := range series {
		rows := make([]dto.DailyPriceResponse, 0, len(points))
		for _, p := range points {
			rows = append(rows, dto.DailyPriceResponse{Date: p.Date.UTC().Format(time.DateOnly), Price: p.Price})
		}
		out[sym] = rows
	}
	c.JSON(http.StatusOK, out)
}

// TrackSymbols はシンボルをバックグラウンド更新対象に登録します。
func (h *PricesHandler) TrackSymbols(c *gin.Context) {
	var req dto.SymbolsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	statuses, err := h.uc.TrackSymbols(c.Request.Context(), req.Symbols)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: err.Error()})
		return
	}

	res := dto.TrackResponse{Results: make(map[string]string, len(statuses))}
	for sym, st := range statuses {
		res.Results[sym] = string(st)
	}
	c.JSON(http.StatusOK, res)
}

// RefreshTracked は追跡中の全シンボルを即時更新し、集計結果を返します。
func (h *PricesHandler) RefreshTracked(c *gin.Context) {
	res, err := h.uc.RefreshTrackedSymbols(c.Request.Context())
	if errors.Is(err, domain.ErrJobInProgress) {
		c.JSON(http.StatusConflict, api.ErrorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}
