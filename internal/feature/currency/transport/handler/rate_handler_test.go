package handler_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"price_engine/internal/feature/currency/transport/handler"
	"price_engine/internal/feature/prices/domain"
	"price_engine/internal/feature/prices/domain/entity"
)

// mockRatesUsecase はRatesUsecaseインターフェースのモック実装です。
type mockRatesUsecase struct {
	GetRateFunc       func(ctx context.Context, from, to string) (float64, error)
	GetBatchRatesFunc func(ctx context.Context, pairs []entity.CurrencyPair) map[string]float64
}

func (m *mockRatesUsecase) GetRate(ctx context.Context, from, to string) (float64, error) {
	return m.GetRateFunc(ctx, from, to)
}

func (m *mockRatesUsecase) GetBatchRates(ctx context.Context, pairs []entity.CurrencyPair) map[string]float64 {
	return m.GetBatchRatesFunc(ctx, pairs)
}

func newRouter(uc *mockRatesUsecase) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := handler.NewRatesHandler(uc)
	r := gin.New()
	r.GET("/rates/:from/:to", h.GetRate)
	r.POST("/rates/batch", h.GetBatchRates)
	return r
}

func TestRatesHandler_GetRate(t *testing.T) {
	tests := []struct {
		name           string
		url            string
		mockGetRate    func(ctx context.Context, from, to string) (float64, error)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "success",
			url:  "/rates/usd/ils",
			mockGetRate: func(ctx context.Context, from, to string) (float64, error) {
				assert.Equal(t, "USD", from)
				assert.Equal(t, "ILS", to)
				return 3.7, nil
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"from":"USD","to":"ILS","rate":3.7}`,
		},
		{
			name: "unavailable",
			url:  "/rates/XXX/ILS",
			mockGetRate: func(ctx context.Context, from, to string) (float64, error) {
				return 0, fmt.Errorf("XXX/ILS: %w", domain.ErrRateUnavailable)
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `{"error":"XXX/ILS: exchange rate unavailable"}`,
		},
		{
			name: "other error",
			url:  "/rates/USD/ILS",
			mockGetRate: func(ctx context.Context, from, to string) (float64, error) {
				return 0, errors.New("boom")
			},
			expectedStatus: http.StatusBadGateway,
			expectedBody:   `{"error":"boom"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(&mockRatesUsecase{GetRateFunc: tt.mockGetRate})
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.url, nil))
			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
		})
	}
}

func TestRatesHandler_GetBatchRates(t *testing.T) {
	uc := &mockRatesUsecase{
		GetBatchRatesFunc: func(ctx context.Context, pairs []entity.CurrencyPair) map[string]float64 {
			assert.Equal(t, []entity.CurrencyPair{{From: "USD", To: "ILS"}, {From: "GBP", To: "ILS"}}, pairs)
			return map[string]float64{"USD/ILS": 3.7}
		},
	}
	r := newRouter(uc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/rates/batch", strings.NewReader(`{"pairs":[{"from":"USD","to":"ILS"},{"from":"GBP","to":"ILS"}]}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"USD/ILS":3.7}`, w.Body.String())

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/rates/batch", strings.NewReader(`{"pairs":[{"from":"USD"}]}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
