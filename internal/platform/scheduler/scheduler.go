// Package scheduler runs periodic jobs on cron schedules. A job never overlaps
// with itself; different jobs may run concurrently.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is a unit of periodic work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler manages background jobs.
type Scheduler struct {
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	startup []cron.Job
	started bool
	wg      sync.WaitGroup
}

// New creates a Scheduler. Panicking jobs are recovered and a run is skipped
// while the previous run of the same job is still in progress.
func New() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(slogLogger{})),
		ctx:    ctx,
		cancel: cancel,
	}
}

// AddJob registers job under a standard cron spec or descriptor such as "@every 15m".
// With runAtStartup set the job also runs once as soon as Start is called.
func (s *Scheduler) AddJob(spec string, job Job, runAtStartup bool) error {
	// the startup run shares this chain, so it cannot overlap the first tick
	wrapped := cron.NewChain(cron.Recover(slogLogger{}), cron.SkipIfStillRunning(slogLogger{})).
		Then(s.adapt(job))
	if _, err := s.cron.AddJob(spec, wrapped); err != nil {
		return err
	}
	if runAtStartup {
		s.mu.Lock()
		s.startup = append(s.startup, wrapped)
		s.mu.Unlock()
	}
	slog.Info("job registered", "job", job.Name(), "schedule", spec, "run_at_startup", runAtStartup)
	return nil
}

// adapt turns a Job into a cron.Job bound to the scheduler's lifetime context.
func (s *Scheduler) adapt(job Job) cron.Job {
	return cron.FuncJob(func() {
		started := time.Now()
		slog.Debug("running job", "job", job.Name())
		if err := job.Run(s.ctx); err != nil {
			slog.Error("job failed", "job", job.Name(), "error", err, "duration", time.Since(started))
			return
		}
		slog.Debug("job completed", "job", job.Name(), "duration", time.Since(started))
	})
}

// Start begins the cron loop and kicks off the startup runs.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.cron.Start()
	for _, j := range s.startup {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			j.Run()
		}()
	}
	slog.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop cancels running jobs and waits for them to return or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	cronDone := s.cron.Stop()
	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		slog.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunNow executes job immediately on the caller's goroutine, outside any schedule.
func (s *Scheduler) RunNow(ctx context.Context, job Job) error {
	slog.Info("running job immediately", "job", job.Name())
	return job.Run(ctx)
}
