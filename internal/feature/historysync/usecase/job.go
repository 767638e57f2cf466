package usecase

import (
	"context"
	"errors"
	"log/slog"

	"price_engine/internal/feature/prices/domain"
)

// SyncJob runs the historical sync on a schedule.
type SyncJob struct {
	svc *HistoricalSyncService
}

// NewSyncJob creates a SyncJob.
func NewSyncJob(svc *HistoricalSyncService) *SyncJob {
	return &SyncJob{svc: svc}
}

func (j *SyncJob) Name() string { return "historical_sync" }

func (j *SyncJob) Run(ctx context.Context) error {
	_, err := j.svc.Run(ctx)
	if errors.Is(err, domain.ErrJobInProgress) {
		slog.Info("historical sync already running, skipping", "job", j.Name())
		return nil
	}
	return err
}
