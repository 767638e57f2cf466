package di

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	currencyusecase "price_engine/internal/feature/currency/usecase"
	syncusecase "price_engine/internal/feature/historysync/usecase"
	"price_engine/internal/feature/prices/adapters"
	pricesusecase "price_engine/internal/feature/prices/usecase"
	valuationusecase "price_engine/internal/feature/valuation/usecase"
	"price_engine/internal/platform/cache"
	"price_engine/internal/platform/config"
	"price_engine/internal/platform/db"
	"price_engine/internal/platform/livecache"
	"price_engine/internal/platform/scheduler"
)

// Engine は起動時に一度だけ組み立てられるサービス群です。
type Engine struct {
	Config    *config.Config
	DB        *gorm.DB
	Redis     *redis.Client
	Cache     *livecache.Cache
	Snapshot  *livecache.RedisSnapshotStore
	Providers *Providers
	Prices    *pricesusecase.PriceManager
	Currency  *currencyusecase.CurrencyService
	Sync      *syncusecase.HistoricalSyncService
	Valuation *valuationusecase.ValuationUsecase
}

// NewEngine はストア、キャッシュ、プロバイダー、各ユースケースを接続します。
// Redisのスナップショットがあればライブキャッシュを復元します。
func NewEngine(ctx context.Context, cfg *config.Config) (*Engine, error) {
	gdb, err := db.Open(ctx, cfg.DB, adapters.Models()...)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	rdb := NewOptionalRedis(ctx, cfg.Redis)

	live := livecache.New()
	snapshot := livecache.NewRedisSnapshotStore(rdb, "", 0)
	livecache.Restore(ctx, live, snapshot)

	providers := NewProviders(cfg.Providers)
	ec := cfg.Engine

	currency := currencyusecase.NewCurrencyService(live, providers.ExchangeRate, providers.YahooFX, ec.BaseCurrency, ec.FXFreshnessTTL)
	registry := NewFetcherRegistry(providers, ec.BaseCurrency, currency)

	tracked := adapters.NewTrackedSymbolRepository(gdb)
	prices := adapters.NewPriceRepository(gdb)
	history := cache.NewCachingHistoryRepository(rdb, nil, adapters.NewHistoryRepository(gdb), "history")

	mgr := pricesusecase.NewPriceManager(live, prices, history, tracked, registry, providers.Limiter, pricesusecase.Config{
		FreshnessTTL:   ec.PriceFreshnessTTL,
		TrackingExpiry: ec.TrackingExpiry,
		FetchTimeout:   cfg.Providers.Timeout,
		Concurrency:    ec.WorkerConcurrency,
	})
	syncSvc := syncusecase.NewHistoricalSyncService(tracked, history, live, registry, providers.Limiter, syncusecase.Config{
		SyncInterval:     ec.SyncInterval,
		BackfillMinRows:  int64(ec.BackfillMinRows),
		BackfillLookback: ec.BackfillLookback,
		FetchTimeout:     cfg.Providers.Timeout,
		Concurrency:      ec.WorkerConcurrency,
	})

	return &Engine{
		Config:    cfg,
		DB:        gdb,
		Redis:     rdb,
		Cache:     live,
		Snapshot:  snapshot,
		Providers: providers,
		Prices:    mgr,
		Currency:  currency,
		Sync:      syncSvc,
		Valuation: valuationusecase.NewValuationUsecase(mgr, currency, ec.BaseCurrency),
	}, nil
}

// NewScheduler はLiveUpdate・HistoricalSync・Maintenanceの各ジョブを登録します。
// どのジョブも起動直後に一度実行されます。
func NewScheduler(e *Engine) (*scheduler.Scheduler, error) {
	s := scheduler.New()
	ec := e.Config.Engine
	jobs := []struct {
		spec string
		job  scheduler.Job
	}{
		{ec.LiveUpdateSchedule, pricesusecase.NewLiveUpdateJob(e.Prices, e.Snapshot)},
		{ec.HistoricalSyncSchedule, syncusecase.NewSyncJob(e.Sync)},
		{ec.MaintenanceSchedule, pricesusecase.NewMaintenanceJob(e.Prices, ec.HistoryRetention)},
	}
	for _, j := range jobs {
		if err := s.AddJob(j.spec, j.job, true); err != nil {
			return nil, fmt.Errorf("schedule %s: %w", j.job.Name(), err)
		}
	}
	return s, nil
}

// Close はライブキャッシュを保存してから接続を閉じます。
func (e *Engine) Close(ctx context.Context) error {
	var errs []error
	if err := e.Snapshot.Save(ctx, e.Cache.GetAll()); err != nil {
		errs = append(errs, fmt.Errorf("save snapshot: %w", err))
	}
	if e.Redis != nil {
		if err := e.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if sqlDB, err := e.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	if len(errs) == 0 {
		slog.Info("engine closed")
	}
	return errors.Join(errs...)
}
