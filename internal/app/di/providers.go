// Package di は設定からアプリケーションの構成要素を組み立てるファクトリーを提供します。
package di

import (
	"net/http"
	"time"

	"price_engine/internal/feature/prices/domain/entity"
	"price_engine/internal/feature/prices/fetcher"
	"price_engine/internal/platform/config"
	"price_engine/internal/platform/externalapi/exchangerate"
	"price_engine/internal/platform/externalapi/twelvedata"
	"price_engine/internal/platform/externalapi/yahoo"
	infrahttp "price_engine/internal/platform/http"
	"price_engine/internal/shared/ratelimiter"
)

// Providers は外部マーケットデータのクライアント群です。
type Providers struct {
	HTTP         *http.Client
	TwelveData   *twelvedata.Client
	Yahoo        *yahoo.Client
	ExchangeRate *exchangerate.Client
	YahooFX      *yahoo.FXSource
	Limiter      ratelimiter.RateLimiterInterface
}

// NewProviders は共有HTTPクライアントで各プロバイダーのクライアントを生成します。
func NewProviders(cfg config.ProviderConfig) *Providers {
	client := infrahttp.NewHTTPClient(cfg.Timeout)
	y := yahoo.NewClient(yahoo.FromProviderConfig(cfg), client)
	return &Providers{
		HTTP:         client,
		TwelveData:   twelvedata.NewClient(twelvedata.FromProviderConfig(cfg), client),
		Yahoo:        y,
		ExchangeRate: exchangerate.NewClient(exchangerate.FromProviderConfig(cfg), client),
		YahooFX:      yahoo.NewFXSource(y),
		Limiter:      ratelimiter.NewRateLimiter(cfg.RatePerMinute, time.Minute),
	}
}

// NewFetcherRegistry は市場ごとのフェッチャーを登録します。
// FXシンボルのレートは rates（通常はCurrencyService）経由で取得します。
func NewFetcherRegistry(p *Providers, baseCurrency string, rates fetcher.RateSource) *fetcher.Registry {
	reg := fetcher.NewRegistry()
	reg.Register(entity.MarketEquityUS, twelvedata.NewEquityFetcher(p.TwelveData))
	reg.Register(entity.MarketCrypto, twelvedata.NewCryptoFetcher(p.TwelveData))
	reg.Register(entity.MarketEquityRegional, yahoo.NewRegionalFetcher(p.Yahoo))
	reg.Register(entity.MarketCurrency, fetcher.NewCurrencyFetcher(baseCurrency, rates, p.YahooFX))
	return reg
}
