package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"price_engine/internal/feature/prices/domain"
	"price_engine/internal/feature/prices/domain/entity"
	"price_engine/internal/platform/livecache"
)

// SnapshotSaver persists the live cache between process restarts.
type SnapshotSaver interface {
	Save(ctx context.Context, entries map[string]entity.LivePriceEntry) error
}

// LiveUpdateJob refreshes every tracked symbol into the live cache and then
// snapshots the cache.
type LiveUpdateJob struct {
	mgr      *PriceManager
	cache    *livecache.Cache
	snapshot SnapshotSaver
}

// NewLiveUpdateJob creates a LiveUpdateJob. snapshot may be nil.
func NewLiveUpdateJob(mgr *PriceManager, snapshot SnapshotSaver) *LiveUpdateJob {
	return &LiveUpdateJob{mgr: mgr, cache: mgr.cache, snapshot: snapshot}
}

func (j *LiveUpdateJob) Name() string { return "live_update" }

func (j *LiveUpdateJob) Run(ctx context.Context) error {
	res, err := j.mgr.RefreshTrackedSymbols(ctx)
	if errors.Is(err, domain.ErrJobInProgress) {
		slog.Info("refresh already running, skipping", "job", j.Name())
		return nil
	}
	if err != nil {
		return err
	}
	if j.snapshot != nil {
		if err := j.snapshot.Save(ctx, j.cache.GetAll()); err != nil {
			slog.Warn("failed to snapshot live cache", "error", err)
		}
	}
	slog.Info("live update finished", "refreshed", res.RefreshedCount, "cache_size", j.cache.Size())
	return nil
}

// MaintenanceJob prunes expired tracked symbols and deletes persisted prices
// older than the retention window.
type MaintenanceJob struct {
	mgr       *PriceManager
	retention time.Duration
}

// NewMaintenanceJob creates a MaintenanceJob.
func NewMaintenanceJob(mgr *PriceManager, retention time.Duration) *MaintenanceJob {
	if retention <= 0 {
		retention = 365 * 24 * time.Hour
	}
	return &MaintenanceJob{mgr: mgr, retention: retention}
}

func (j *MaintenanceJob) Name() string { return "maintenance" }

func (j *MaintenanceJob) Run(ctx context.Context) error {
	if _, err := j.mgr.PruneExpired(ctx); err != nil {
		return err
	}
	cutoff := j.mgr.now().Add(-j.retention)
	points, err := j.mgr.history.DeleteBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("purge history: %w", err)
	}
	rows, err := j.mgr.prices.DeleteBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("purge current prices: %w", err)
	}
	slog.Info("maintenance finished", "history_deleted", points, "prices_deleted", rows, "cutoff", cutoff)
	return nil
}
