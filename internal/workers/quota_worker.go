// Package workers hosts the scheduled background jobs.
package workers

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"scriba_backend/internal/logger"
	"scriba_backend/internal/services"
)

// QuotaWorker runs the daily quota sweep: detaching expired plans and rolling
// creation counters over on their configured cadence.
type QuotaWorker struct {
	quota services.QuotaService
	cron  *cron.Cron
}

func NewQuotaWorker(quota services.QuotaService) *QuotaWorker {
	return &QuotaWorker{
		quota: quota,
		cron:  cron.New(),
	}
}

// Start schedules the sweep at midnight every day and runs one sweep
// immediately so a long-stopped process catches up.
func (w *QuotaWorker) Start() error {
	if _, err := w.cron.AddFunc("0 0 * * *", w.sweep); err != nil {
		return err
	}
	w.cron.Start()
	go w.sweep()
	logger.Info("quota sweep scheduled", "schedule", "0 0 * * *")
	return nil
}

func (w *QuotaWorker) Stop() {
	ctx := w.cron.Stop()
	<-ctx.Done()
}

func (w *QuotaWorker) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	start := time.Now()
	if err := w.quota.Sweep(ctx, start); err != nil {
		logger.CtxWithError(ctx, "quota sweep failed", err)
		return
	}
	logger.Info("quota sweep finished", "elapsed", time.Since(start).String())
}
