package yahoo

import (
	"context"
	"errors"
	"strings"
	"time"

	"price_engine/internal/feature/prices/domain"
	"price_engine/internal/feature/prices/domain/entity"
	"price_engine/internal/feature/prices/fetcher"
)

// FXSource serves exchange rates from "<BASE><QUOTE>=X" chart symbols.
// It is the backup rate source and the history source for FX symbols.
type FXSource struct {
	client *Client
}

var (
	_ fetcher.RateSource        = (*FXSource)(nil)
	_ fetcher.PairHistorySource = (*FXSource)(nil)
)

// NewFXSource creates an FXSource.
func NewFXSource(c *Client) *FXSource {
	return &FXSource{client: c}
}

func pairSymbol(base, quote string) string {
	return strings.ToUpper(base) + strings.ToUpper(quote) + "=X"
}

// Rates fetches one chart per quote currency. Quotes that fail are omitted;
// an error is returned only when nothing could be resolved.
func (s *FXSource) Rates(ctx context.Context, base string, quotes []string) (map[string]float64, error) {
	out := make(map[string]float64, len(quotes))
	var errs []error
	for _, q := range quotes {
		if strings.EqualFold(q, base) {
			out[strings.ToUpper(q)] = 1
			continue
		}
		ch, err := s.client.Latest(ctx, pairSymbol(base, q))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ch.Price > 0 {
			out[strings.ToUpper(q)] = ch.Price
		}
	}
	if len(out) == 0 {
		if len(errs) == 0 {
			return nil, domain.NewProviderError(providerName, base, domain.ErrNoData, nil)
		}
		return nil, errors.Join(errs...)
	}
	return out, nil
}

// PairHistory returns daily rates of base in quote.
func (s *FXSource) PairHistory(ctx context.Context, base, quote string, start, end time.Time) ([]entity.HistoricalPoint, error) {
	sym := pairSymbol(base, quote)
	ch, err := s.client.History(ctx, sym, start, end)
	if err != nil {
		return nil, err
	}
	if len(ch.Bars) == 0 {
		return nil, domain.NewProviderError(providerName, sym, domain.ErrNoData, nil)
	}
	points := make([]entity.HistoricalPoint, 0, len(ch.Bars))
	for _, b := range ch.Bars {
		points = append(points, entity.HistoricalPoint{Symbol: sym, Timestamp: b.Time, Close: b.Close})
	}
	return points, nil
}
