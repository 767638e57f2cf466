package cache

import (
	"time"

	"price_engine/internal/feature/prices/fetcher"
	"price_engine/internal/platform/marketcal"
)

const (
	minTTL = time.Minute
	maxTTL = 24 * time.Hour
)

// TimeUntilNextClose は銘柄の市場で次の終値スロットが確定するまでの期間を返します。
// 履歴はそれまで変化しないため、キャッシュのTTLとして使用します。
func TimeUntilNextClose(symbol string, now time.Time) time.Duration {
	market, err := fetcher.Classify(symbol)
	if err != nil {
		return minTTL
	}
	d := marketcal.ForMarket(market).NextClose(now).Sub(now)
	switch {
	case d < minTTL:
		return minTTL
	case d > maxTTL:
		return maxTTL
	}
	return d
}
