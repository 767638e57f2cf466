package fetcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"price_engine/internal/feature/prices/domain"
	"price_engine/internal/feature/prices/domain/entity"
)

type mockRateSource struct {
	ratesFn func(ctx context.Context, base string, quotes []string) (map[string]float64, error)
	calls   []string
}

func (m *mockRateSource) Rates(ctx context.Context, base string, quotes []string) (map[string]float64, error) {
	m.calls = append(m.calls, base)
	return m.ratesFn(ctx, base, quotes)
}

type mockHistorySource struct {
	historyFn func(ctx context.Context, base, quote string, start, end time.Time) ([]entity.HistoricalPoint, error)
}

func (m *mockHistorySource) PairHistory(ctx context.Context, base, quote string, start, end time.Time) ([]entity.HistoricalPoint, error) {
	return m.historyFn(ctx, base, quote, start, end)
}

// TestCurrencyFetcher_FetchCurrent は直接レート・同一通貨・ピボット通貨経由の三角計算を検証します。
func TestCurrencyFetcher_FetchCurrent(t *testing.T) {
	t.Parallel()

	table := map[string]map[string]float64{
		"USD": {"ILS": 3.75},
		"EUR": {"ILS": 4.05, "USD": 1.08},
		"THB": {"USD": 0.03},
	}
	tests := []struct {
		name      string
		symbol    string
		want      float64
		wantCalls int
		wantErr   error
	}{
		{name: "same currency", symbol: "FX:ILS", want: 1, wantCalls: 0},
		{name: "direct", symbol: "FX:EUR", want: 4.05, wantCalls: 1},
		{name: "pivot currency itself", symbol: "FX:USD", want: 3.75, wantCalls: 1},
		{name: "triangulated", symbol: "FX:THB", want: 0.03 * 3.75, wantCalls: 2},
		{name: "no route", symbol: "FX:XAU", wantErr: domain.ErrNoData, wantCalls: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			src := &mockRateSource{ratesFn: func(ctx context.Context, base string, quotes []string) (map[string]float64, error) {
				out := map[string]float64{}
				for _, q := range quotes {
					if r, ok := table[base][q]; ok {
						out[q] = r
					}
				}
				return out, nil
			}}
			f := NewCurrencyFetcher("ils", src, nil)

			q, err := f.FetchCurrent(context.Background(), tt.symbol)
			assert.Len(t, src.calls, tt.wantCalls)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, q.Price, 1e-12)
			assert.Equal(t, "ILS", q.Currency)
			assert.Equal(t, entity.MarketCurrency, q.Market)
		})
	}
}

func TestCurrencyFetcher_NoRateSource(t *testing.T) {
	t.Parallel()

	_, err := NewCurrencyFetcher("ILS", nil, nil).FetchCurrent(context.Background(), "FX:USD")
	assert.True(t, domain.IsConfiguration(err))
}

// TestCurrencyFetcher_FetchHistorical_Triangulates は直接ペアに履歴が無い場合に両レッグを日付で結合することを検証します。
func TestCurrencyFetcher_FetchHistorical_Triangulates(t *testing.T) {
	t.Parallel()

	d1 := time.Date(2024, 10, 14, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 1)
	d3 := d1.AddDate(0, 0, 2)

	hist := &mockHistorySource{historyFn: func(ctx context.Context, base, quote string, start, end time.Time) ([]entity.HistoricalPoint, error) {
		switch base + quote {
		case "THBUSD":
			return []entity.HistoricalPoint{{Timestamp: d1, Close: 0.03}, {Timestamp: d2, Close: 0.031}}, nil
		case "USDILS":
			return []entity.HistoricalPoint{{Timestamp: d2, Close: 3.7}, {Timestamp: d3, Close: 3.8}}, nil
		}
		return nil, domain.NewProviderError("test", base+quote, domain.ErrNoData, nil)
	}}

	f := NewCurrencyFetcher("ILS", nil, hist)
	points, err := f.FetchHistorical(context.Background(), "FX:THB", d1, d3)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "FX:THB", points[0].Symbol)
	assert.Equal(t, d2, points[0].Timestamp)
	assert.InDelta(t, 0.031*3.7, points[0].Close, 1e-12)
}

func TestCurrencyFetcher_FetchHistorical_Direct(t *testing.T) {
	t.Parallel()

	d1 := time.Date(2024, 10, 14, 0, 0, 0, 0, time.UTC)
	hist := &mockHistorySource{historyFn: func(ctx context.Context, base, quote string, start, end time.Time) ([]entity.HistoricalPoint, error) {
		assert.Equal(t, "USD", base)
		assert.Equal(t, "ILS", quote)
		return []entity.HistoricalPoint{{Symbol: "USDILS=X", Timestamp: d1, Close: 3.7}}, nil
	}}

	points, err := NewCurrencyFetcher("ILS", nil, hist).FetchHistorical(context.Background(), "FX:USD", d1, d1)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "FX:USD", points[0].Symbol)
}
