// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	syncdomain "github.com/caixafacil/caixafacil/internal/domain/sync"
)

// Scheduler runs the daily open banking sync in the background.
type Scheduler struct {
	cron     *cron.Cron
	syncSvc  *syncdomain.Service
	schedule string
	logger   *slog.Logger
}

// NewScheduler creates the job scheduler. schedule is a standard 5-field
// cron expression.
func NewScheduler(syncSvc *syncdomain.Service, schedule string, logger *slog.Logger) *Scheduler {
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	return &Scheduler{
		cron:     c,
		syncSvc:  syncSvc,
		schedule: schedule,
		logger:   logger,
	}
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.schedule, s.syncAllAccounts)
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.String("schedule", s.schedule),
		slog.Int("jobs", len(s.cron.Entries())),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow manually triggers the account sync (for testing/admin).
func (s *Scheduler) RunNow() {
	go s.syncAllAccounts()
}

// syncAllAccounts syncs every connected bank account.
func (s *Scheduler) syncAllAccounts() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	s.logger.Info("starting daily account sync")

	results, err := s.syncSvc.SyncAll(ctx)
	if err != nil {
		s.logger.Error("daily account sync failed", slog.Any("error", err))
		return
	}

	synced := 0
	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
			continue
		}
		synced++
	}

	s.logger.Info("daily account sync completed",
		slog.Int("accounts_synced", synced),
		slog.Int("accounts_failed", failed),
	)
}
