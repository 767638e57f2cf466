package usecase

import (
	"context"
	"errors"
	"math/rand/v2"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"price_engine/internal/feature/prices/domain/entity"
)

// mockPriceSource はPriceSourceのモック実装です。
type mockPriceSource struct {
	calls int
	fn    func(ctx context.Context, symbols []string) (map[string]entity.PriceRecord, error)
}

func (m *mockPriceSource) GetBatchPrices(ctx context.Context, symbols []string) (map[string]entity.PriceRecord, error) {
	m.calls++
	return m.fn(ctx, symbols)
}

// mockRateSource はRateSourceのモック実装です。
type mockRateSource struct {
	calls int
	pairs []entity.CurrencyPair
	rates map[string]float64
}

func (m *mockRateSource) GetBatchRates(ctx context.Context, pairs []entity.CurrencyPair) map[string]float64 {
	m.calls++
	m.pairs = pairs
	out := map[string]float64{}
	for _, p := range pairs {
		if r, ok := m.rates[p.Key()]; ok {
			out[p.Key()] = r
		}
	}
	return out
}

func staticPrices(recs map[string]entity.PriceRecord) *mockPriceSource {
	return &mockPriceSource{fn: func(ctx context.Context, symbols []string) (map[string]entity.PriceRecord, error) {
		out := map[string]entity.PriceRecord{}
		for _, s := range symbols {
			if r, ok := recs[s]; ok {
				out[s] = r
			}
		}
		return out, nil
	}}
}

// TestBatchCalculator_SingleRoundTrip は初期化が価格・レートそれぞれ一回の一括照会で済むことを検証します。
func TestBatchCalculator_SingleRoundTrip(t *testing.T) {
	t.Parallel()
	prices := staticPrices(map[string]entity.PriceRecord{
		"AAPL":    {Symbol: "AAPL", Price: 200, Currency: "USD"},
		"MSFT":    {Symbol: "MSFT", Price: 400, Currency: "USD"},
		"1081942": {Symbol: "1081942", Price: 12.5, Currency: "ILS"},
		"SAP":     {Symbol: "SAP", Price: 180, Currency: "EUR"},
		"FX:USD":  {Symbol: "FX:USD", Price: 3.7, Currency: "ILS"},
	})
	rates := &mockRateSource{rates: map[string]float64{"USD/ILS": 3.7, "EUR/ILS": 4.0}}
	calc := NewBatchCalculator(prices, rates, "ils")

	require.NoError(t, calc.Initialize(context.Background(), []string{"AAPL", "MSFT", "1081942", "SAP", "FX:USD", "GONE"}, nil, nil))
	assert.Equal(t, 1, prices.calls)
	assert.Equal(t, 1, rates.calls)
	assert.ElementsMatch(t, []entity.CurrencyPair{{From: "USD", To: "ILS"}, {From: "EUR", To: "ILS"}}, rates.pairs)

	got := calc.CalculateHoldingValues([]Holding{
		{Symbol: "AAPL", Units: 10},
		{Symbol: "1081942", Units: 100},
		{Symbol: "SAP", Units: 2},
		{Symbol: "FX:USD", Units: 1000},
		{Symbol: "GONE", Units: 5, Currency: "USD"},
	})

	assert.Equal(t, []HoldingValue{
		{Symbol: "AAPL", UnitPrice: 200, Currency: "USD", ExchangeRate: 3.7, Value: 740, Total: 7400},
		{Symbol: "1081942", UnitPrice: 12.5, Currency: "ILS", ExchangeRate: 1, Value: 12.5, Total: 1250},
		{Symbol: "SAP", UnitPrice: 180, Currency: "EUR", ExchangeRate: 4, Value: 720, Total: 1440},
		{Symbol: "FX:USD", UnitPrice: 3.7, Currency: "ILS", ExchangeRate: 1, Value: 3.7, Total: 3700},
		{Symbol: "GONE", UnitPrice: 0, Currency: "USD", ExchangeRate: 3.7, Value: 0, Total: 0},
	}, got)
	assert.InDelta(t, 13790.0, PortfolioTotal(got), 1e-9)
}

func TestBatchCalculator_FallbackAndOverrides(t *testing.T) {
	t.Parallel()
	prices := staticPrices(map[string]entity.PriceRecord{
		"AAPL": {Symbol: "AAPL", Price: 200, Currency: "USD"},
	})
	rates := &mockRateSource{rates: map[string]float64{"USD/EUR": 0.9}}
	calc := NewBatchCalculator(prices, rates, "EUR")

	require.NoError(t, calc.Initialize(context.Background(),
		[]string{"aapl", "PRIVATE"},
		map[string]string{"PRIVATE": "GBP"},
		map[string]float64{"PRIVATE": 50},
	))

	got := calc.CalculateHoldingValues([]Holding{{Symbol: "AAPL", Units: 1}, {Symbol: "PRIVATE", Units: 2}})
	assert.InDelta(t, 180.0, got[0].Total, 1e-9)
	// GBP/EUR のレートが無いため 0 で評価される
	assert.Equal(t, 50.0, got[1].UnitPrice)
	assert.Equal(t, 0.0, got[1].ExchangeRate)
	assert.Equal(t, 0.0, got[1].Total)
}

func TestBatchCalculator_PriceError(t *testing.T) {
	t.Parallel()
	prices := &mockPriceSource{fn: func(ctx context.Context, symbols []string) (map[string]entity.PriceRecord, error) {
		return nil, errors.New("store down")
	}}
	calc := NewBatchCalculator(prices, &mockRateSource{}, "ILS")
	assert.Error(t, calc.Initialize(context.Background(), []string{"AAPL"}, nil, nil))
	assert.Equal(t, []HoldingValue{}, calc.CalculateHoldingValues(nil))
}

// TestBatchCalculator_MatchesScalarLoop はベクトル化した計算結果が行ごとの price*rate*units と一致することを検証します。
func TestBatchCalculator_MatchesScalarLoop(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewPCG(42, 7))
	currencies := []string{"USD", "EUR", "ILS", "GBP"}

	for round := 0; round < 20; round++ {
		n := 1 + rng.IntN(60)
		recs := map[string]entity.PriceRecord{}
		holdings := make([]Holding, n)
		symbols := make([]string, n)
		for i := range n {
			sym := "S" + strconv.Itoa(i)
			symbols[i] = sym
			if rng.IntN(10) > 0 {
				recs[sym] = entity.PriceRecord{Symbol: sym, Price: rng.Float64() * 1000, Currency: currencies[rng.IntN(len(currencies))]}
			}
			holdings[i] = Holding{Symbol: sym, Units: rng.Float64() * 500}
		}
		rateTable := map[string]float64{"USD/ILS": 3.7, "EUR/ILS": 4.0, "GBP/ILS": 4.8}

		calc := NewBatchCalculator(staticPrices(recs), &mockRateSource{rates: rateTable}, "ILS")
		require.NoError(t, calc.Initialize(context.Background(), symbols, nil, nil))
		got := calc.CalculateHoldingValues(holdings)

		require.Len(t, got, n)
		for i, h := range holdings {
			rec, ok := recs[h.Symbol]
			price, rate := 0.0, 1.0
			if ok {
				price = rec.Price
				if rec.Currency != "ILS" {
					rate = rateTable[rec.Currency+"/ILS"]
				}
			}
			want := price * rate * h.Units
			assert.InDelta(t, want, got[i].Total, 1e-9*(1+want), "round %d row %d", round, i)
			assert.InDelta(t, price*rate, got[i].Value, 1e-9*(1+price*rate))
		}
	}
}
