package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"price_engine/internal/feature/prices/domain"
	"price_engine/internal/feature/prices/domain/entity"
	"price_engine/internal/feature/prices/transport/handler"
	"price_engine/internal/feature/prices/usecase"
)

// mockPricesUsecase はPricesUsecaseインターフェースのモック実装です。
type mockPricesUsecase struct {
	GetPriceFunc            func(ctx context.Context, symbol string, fresh bool) (*entity.PriceRecord, error)
	GetBatchPricesFunc      func(ctx context.Context, symbols []string) (map[string]entity.PriceRecord, error)
	GetHistoricalPricesFunc func(ctx context.Context, symbols []string, days int) (map[string][]entity.DailyPrice, error)
	TrackSymbolsFunc        func(ctx context.Context, symbols []string) (map[string]entity.TrackStatus, error)
	RefreshFunc             func(ctx context.Context) (*usecase.RefreshResult, error)
}

func (m *mockPricesUsecase) GetPrice(ctx context.Context, symbol string, fresh bool) (*entity.PriceRecord, error) {
	return m.GetPriceFunc(ctx, symbol, fresh)
}

func (m *mockPricesUsecase) GetBatchPrices(ctx context.Context, symbols []string) (map[string]entity.PriceRecord, error) {
	return m.GetBatchPricesFunc(ctx, symbols)
}

func (m *mockPricesUsecase) GetHistoricalPrices(ctx context.Context, symbols []string, days int) (map[string][]entity.DailyPrice, error) {
	return m.GetHistoricalPricesFunc(ctx, symbols, days)
}

func (m *mockPricesUsecase) TrackSymbols(ctx context.Context, symbols []string) (map[string]entity.TrackStatus, error) {
	return m.TrackSymbolsFunc(ctx, symbols)
}

func (m *mockPricesUsecase) RefreshTrackedSymbols(ctx context.Context) (*usecase.RefreshResult, error) {
	return m.RefreshFunc(ctx)
}

func newRouter(uc *mockPricesUsecase) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := handler.NewPricesHandler(uc)
	r := gin.New()
	r.GET("/prices/history", h.GetHistory)
	r.GET("/prices/:symbol", h.GetPrice)
	r.POST("/prices/batch", h.GetBatchPrices)
	r.POST("/symbols/track", h.TrackSymbols)
	r.POST("/symbols/refresh", h.RefreshTracked)
	return r
}

var fetchedAt = time.Date(2024, 10, 15, 20, 0, 0, 0, time.UTC)

// TestPricesHandler_GetPrice はエラー種別ごとのステータスコード変換をテストします。
func TestPricesHandler_GetPrice(t *testing.T) {
	tests := []struct {
		name           string
		url            string
		mockGetPrice   func(ctx context.Context, symbol string, fresh bool) (*entity.PriceRecord, error)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "success",
			url:  "/prices/AAPL?fresh=true",
			mockGetPrice: func(ctx context.Context, symbol string, fresh bool) (*entity.PriceRecord, error) {
				assert.Equal(t, "AAPL", symbol)
				assert.True(t, fresh)
				return &entity.PriceRecord{Symbol: "AAPL", Price: 274.04, Currency: "USD", Market: entity.MarketEquityUS, Date: fetchedAt, FetchedAt: fetchedAt}, nil
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"symbol":"AAPL","price":274.04,"currency":"USD","market":"equity-us","date":"2024-10-15","fetched_at":"2024-10-15T20:00:00Z"}`,
		},
		{
			name: "unsupported symbol",
			url:  "/prices/$$",
			mockGetPrice: func(ctx context.Context, symbol string, fresh bool) (*entity.PriceRecord, error) {
				return nil, domain.ErrUnsupportedSymbol
			},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"unsupported symbol type"}`,
		},
		{
			name: "not found",
			url:  "/prices/ZZZZ",
			mockGetPrice: func(ctx context.Context, symbol string, fresh bool) (*entity.PriceRecord, error) {
				assert.False(t, fresh)
				return nil, domain.ErrPriceNotFound
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `{"error":"price not found"}`,
		},
		{
			name: "unexpected error",
			url:  "/prices/AAPL",
			mockGetPrice: func(ctx context.Context, symbol string, fresh bool) (*entity.PriceRecord, error) {
				return nil, errors.New("boom")
			},
			expectedStatus: http.StatusBadGateway,
			expectedBody:   `{"error":"boom"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(&mockPricesUsecase{GetPriceFunc: tt.mockGetPrice})
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
		})
	}
}

func TestPricesHandler_GetBatchPrices(t *testing.T) {
	uc := &mockPricesUsecase{
		GetBatchPricesFunc: func(ctx context.Context, symbols []string) (map[string]entity.PriceRecord, error) {
			assert.Equal(t, []string{"AAPL", "TSLA"}, symbols)
			return map[string]entity.PriceRecord{
				"AAPL": {Symbol: "AAPL", Price: 274.04, Currency: "USD", Market: entity.MarketEquityUS, Date: fetchedAt, FetchedAt: fetchedAt},
			}, nil
		},
	}
	r := newRouter(uc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/prices/batch", strings.NewReader(`{"symbols":["AAPL","TSLA"]}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"AAPL":{"symbol":"AAPL","price":274.04,"currency":"USD","market":"equity-us","date":"2024-10-15","fetched_at":"2024-10-15T20:00:00Z"}}`, w.Body.String())

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/prices/batch", strings.NewReader(`{"symbols":[]}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPricesHandler_GetHistory(t *testing.T) {
	tests := []struct {
		name           string
		url            string
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "success",
			url:            "/prices/history?symbols=AAPL,%20msft&days=3",
			expectedStatus: http.StatusOK,
			expectedBody:   `{"AAPL":[{"date":"2024-10-15","price":274.04}]}`,
		},
		{
			name:           "missing symbols",
			url:            "/prices/history",
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"symbols is required"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := &mockPricesUsecase{
				GetHistoricalPricesFunc: func(ctx context.Context, symbols []string, days int) (map[string][]entity.DailyPrice, error) {
					assert.Equal(t, []string{"AAPL", "msft"}, symbols)
					assert.Equal(t, 3, days)
					return map[string][]entity.DailyPrice{"AAPL": {{Date: fetchedAt, Price: 274.04}}}, nil
				},
			}
			r := newRouter(uc)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.url, nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
		})
	}
}

func TestPricesHandler_TrackAndRefresh(t *testing.T) {
	uc := &mockPricesUsecase{
		TrackSymbolsFunc: func(ctx context.Context, symbols []string) (map[string]entity.TrackStatus, error) {
			return map[string]entity.TrackStatus{"AAPL": entity.TrackStatusAdded, "??": entity.TrackStatusUnsupported}, nil
		},
		RefreshFunc: func(ctx context.Context) (*usecase.RefreshResult, error) {
			return &usecase.RefreshResult{Message: "refreshed 1 of 2 tracked symbols", RefreshedCount: 1, NotRefreshedCount: 1, FailedSymbols: []string{}}, nil
		},
	}
	r := newRouter(uc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/symbols/track", strings.NewReader(`{"symbols":["AAPL","??"]}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"results":{"AAPL":"added","??":"unsupported_symbol_type"}}`, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/symbols/refresh", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"refreshed 1 of 2 tracked symbols","refreshed_count":1,"not_refreshed_count":1,"failed_symbols":[],"pruned_count":0}`, w.Body.String())
}

// TestPricesHandler_RefreshAlreadyRunning は更新が実行中なら 409 を返すことを検証します。
func TestPricesHandler_RefreshAlreadyRunning(t *testing.T) {
	r := newRouter(&mockPricesUsecase{
		RefreshFunc: func(ctx context.Context) (*usecase.RefreshResult, error) {
			return nil, domain.ErrJobInProgress
		},
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/symbols/refresh", nil))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"error":"job already running"}`, w.Body.String())
}
