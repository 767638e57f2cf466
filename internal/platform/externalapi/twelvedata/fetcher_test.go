package twelvedata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"price_engine/internal/feature/prices/domain"
	"price_engine/internal/feature/prices/domain/entity"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{APIKey: "test-key", BaseURL: srv.URL, Timeout: 2 * time.Second}, srv.Client())
}

// TestFetcher_FetchCurrent_Equity は /quote の応答が Quote に変換されることを検証します。
func TestFetcher_FetchCurrent_Equity(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quote", r.URL.Path)
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
		assert.Equal(t, "test-key", r.URL.Query().Get("apikey"))
		_, _ = w.Write([]byte(`{"symbol":"AAPL","currency":"USD","close":"274.04","percent_change":"1.25","is_market_open":true}`))
	})

	q, err := NewEquityFetcher(c).FetchCurrent(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 274.04, q.Price)
	assert.Equal(t, "USD", q.Currency)
	assert.Equal(t, entity.MarketEquityUS, q.Market)
	assert.False(t, q.MarketClosed)
	require.NotNil(t, q.ChangePercent)
	assert.Equal(t, 1.25, *q.ChangePercent)
}

// TestFetcher_FetchCurrent_Crypto は暗号資産シンボルが BTC/USD に変換され USD 建てになることを検証します。
func TestFetcher_FetchCurrent_Crypto(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "BTC/USD", r.URL.Query().Get("symbol"))
		_, _ = w.Write([]byte(`{"symbol":"BTC/USD","currency_base":"Bitcoin","close":"67000.5","is_market_open":false}`))
	})

	q, err := NewCryptoFetcher(c).FetchCurrent(context.Background(), "BTC-USD")
	require.NoError(t, err)
	assert.Equal(t, "BTC-USD", q.Symbol)
	assert.Equal(t, "USD", q.Currency)
	assert.Equal(t, entity.MarketCrypto, q.Market)
	assert.False(t, q.MarketClosed)
}

func TestFetcher_FetchCurrent_MarketClosed(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"symbol":"AAPL","currency":"USD","close":"270","is_market_open":false}`))
	})

	q, err := NewEquityFetcher(c).FetchCurrent(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.True(t, q.MarketClosed)
}

// TestFetcher_ErrorMapping は HTTP ステータスや本文のエラーがエラー種別へ対応付けられることを検証します。
func TestFetcher_ErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "in-body 404", status: 200, body: `{"status":"error","code":404,"message":"symbol not found"}`, wantErr: domain.ErrNoData},
		{name: "in-body 401", status: 200, body: `{"status":"error","code":401,"message":"invalid key"}`, wantErr: domain.ErrConfiguration},
		{name: "in-body 429", status: 200, body: `{"status":"error","code":429,"message":"limit"}`, wantErr: domain.ErrProviderUnavailable},
		{name: "http 503", status: 503, body: ``, wantErr: domain.ErrProviderUnavailable},
		{name: "http 403", status: 403, body: ``, wantErr: domain.ErrConfiguration},
		{name: "garbage", status: 200, body: `not json`, wantErr: domain.ErrProviderUnavailable},
		{name: "zero close", status: 200, body: `{"close":"0"}`, wantErr: domain.ErrNoData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := NewEquityFetcher(c).FetchCurrent(context.Background(), "AAPL")
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)

			var perr *domain.ProviderError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, "twelvedata", perr.Provider)
		})
	}
}

func TestFetcher_MissingAPIKey(t *testing.T) {
	t.Parallel()

	c := NewClient(Config{BaseURL: "http://unused"}, http.DefaultClient)
	_, err := NewEquityFetcher(c).FetchCurrent(context.Background(), "AAPL")
	assert.True(t, domain.IsConfiguration(err))
}

// TestFetcher_FetchHistorical は時系列の日付・終値が解析され、不正な終値が除外されることを検証します。
func TestFetcher_FetchHistorical(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/time_series", r.URL.Path)
		assert.Equal(t, "1day", r.URL.Query().Get("interval"))
		assert.Equal(t, "2024-10-01", r.URL.Query().Get("start_date"))
		assert.Equal(t, "2024-10-03", r.URL.Query().Get("end_date"))
		_, _ = w.Write([]byte(`{"meta":{"symbol":"AAPL","currency":"USD"},"values":[
			{"datetime":"2024-10-01","close":"226.21"},
			{"datetime":"2024-10-02 00:00:00","close":"226.78"},
			{"datetime":"2024-10-03","close":""}
		],"status":"ok"}`))
	})

	start := time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 10, 3, 0, 0, 0, 0, time.UTC)
	points, err := NewEquityFetcher(c).FetchHistorical(context.Background(), "AAPL", start, end)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, time.Date(2024, 10, 2, 0, 0, 0, 0, time.UTC), points[1].Timestamp)
	assert.Equal(t, 226.78, points[1].Close)
	assert.Equal(t, "AAPL", points[0].Symbol)
}

func TestFetcher_FetchHistorical_Empty(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok","values":[]}`))
	})
	_, err := NewEquityFetcher(c).FetchHistorical(context.Background(), "AAPL", time.Now().AddDate(0, 0, -3), time.Now())
	assert.True(t, domain.IsNoData(err))
}

func TestCryptoSymbol(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "ETH/USD", CryptoSymbol("ETH-USD"))
	assert.Equal(t, "AAPL", CryptoSymbol("AAPL"))
}
