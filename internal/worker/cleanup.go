package worker

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/jwalitptl/rdv-api/pkg/logger"
)

// Cleaner purges old email failure records.
type Cleaner interface {
	CleanupOldFailures(ctx context.Context, days int) (int64, error)
}

// CleanupWorker runs the retention purge on a cron schedule.
type CleanupWorker struct {
	cleaner       Cleaner
	schedule      string
	retentionDays int
	logger        *logger.Logger
}

func NewCleanupWorker(cleaner Cleaner, schedule string, retentionDays int, log *logger.Logger) *CleanupWorker {
	if log == nil {
		log = logger.Nop()
	}
	return &CleanupWorker{
		cleaner:       cleaner,
		schedule:      schedule,
		retentionDays: retentionDays,
		logger:        log,
	}
}

// Start schedules the purge and blocks until ctx is cancelled. It returns an
// error only when the schedule cannot be parsed.
func (w *CleanupWorker) Start(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(w.schedule, func() { w.cleanup(ctx) }); err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", w.schedule, err)
	}
	c.Start()
	w.logger.Info("Email failure cleanup scheduled",
		"schedule", w.schedule,
		"retention_days", w.retentionDays)

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

func (w *CleanupWorker) cleanup(ctx context.Context) {
	deleted, err := w.cleaner.CleanupOldFailures(ctx, w.retentionDays)
	if err != nil {
		w.logger.Error(err, "Failed to clean up email failures")
		return
	}
	w.logger.Info("Cleaned up email failures",
		"deleted", deleted,
		"retention_days", w.retentionDays)
}
