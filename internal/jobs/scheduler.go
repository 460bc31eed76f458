// AngelaMos | 2026
// scheduler.go

package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/angelamos/musicdesk/internal/config"
	"github.com/angelamos/musicdesk/internal/metrics"
)

const (
	JobTokenCleanup = "token_cleanup"

	jobTimeout = 5 * time.Minute
)

type SessionPurger interface {
	PurgeExpiredSessions(ctx context.Context) (int64, error)
}

type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

func NewScheduler(logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithSeconds(),
		),
		logger: logger,
	}
}

// Register adds the maintenance jobs described by cfg.
func (s *Scheduler) Register(cfg config.JobsConfig, purger SessionPurger) error {
	if _, err := s.cron.AddFunc(cfg.TokenCleanup, s.wrap(JobTokenCleanup, func(ctx context.Context) error {
		removed, err := purger.PurgeExpiredSessions(ctx)
		if err != nil {
			return err
		}
		s.logger.Info("expired sessions purged", "removed", removed)
		return nil
	})); err != nil {
		return fmt.Errorf("register %s: %w", JobTokenCleanup, err)
	}

	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("job scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop waits for running jobs until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("job scheduler stop timed out")
	}
}

func (s *Scheduler) wrap(name string, fn func(ctx context.Context) error) func() {
	return func() {
		s.run(name, fn)
	}
}

func (s *Scheduler) run(name string, fn func(ctx context.Context) error) {
	start := time.Now()
	success := false

	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("job panicked", "job", name, "panic", p)
		}
		metrics.RecordJob(name, time.Since(start), success)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		s.logger.Error("job failed", "job", name, "error", err)
		return
	}

	success = true
}
