package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"bookngn/internal/amqp"
	"bookngn/internal/core"
)

// Processor is the part of the sync processor the worker drives.
type Processor interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	ProcessNow()
	ProcessBatch(ctx context.Context) int
	Cleanup(ctx context.Context) (int64, error)
	ResetStale(ctx context.Context) error
	Stats(ctx context.Context, userID string) (core.SyncQueueStats, error)
}

// Schedule holds the cron specs of the worker's periodic jobs.
type Schedule struct {
	Cleanup    string
	ResetStale string
	Stats      string
}

// DefaultSchedule returns the schedule used when the config leaves a job unset.
func DefaultSchedule() Schedule {
	return Schedule{
		Cleanup:    "@hourly",
		ResetStale: "@every 5m",
		Stats:      "@every 15m",
	}
}

// startupBatches bounds how many batches StartupSyncCheck drains.
const startupBatches = 5

// SyncWorker runs the sync processor together with the AMQP nudge handler and
// the scheduled maintenance jobs.
type SyncWorker struct {
	processor Processor
	schedule  Schedule
	cron      *cron.Cron
}

func NewSyncWorker(processor Processor, schedule Schedule) *SyncWorker {
	defaults := DefaultSchedule()
	if schedule.Cleanup == "" {
		schedule.Cleanup = defaults.Cleanup
	}
	if schedule.ResetStale == "" {
		schedule.ResetStale = defaults.ResetStale
	}
	if schedule.Stats == "" {
		schedule.Stats = defaults.Stats
	}
	return &SyncWorker{
		processor: processor,
		schedule:  schedule,
		cron:      cron.New(),
	}
}

// HandleSyncRequested wakes the processor for a change published by the
// server. The message only identifies the entity; the queue row carries the
// work, so a lost or duplicated message is harmless.
func (w *SyncWorker) HandleSyncRequested(ctx context.Context, msg *amqp.SyncRequestedMessage) error {
	slog.DebugContext(ctx, "Sync requested",
		"user_id", msg.UserID,
		"entity", msg.Entity,
		"entity_id", msg.EntityID,
		"timestamp", msg.Timestamp)
	w.processor.ProcessNow()
	return nil
}

// StartupSyncCheck drains items left pending while the worker was down.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	if err := w.processor.ResetStale(ctx); err != nil {
		return fmt.Errorf("reset stale sync items: %w", err)
	}

	total := 0
	for i := 0; i < startupBatches; i++ {
		n := w.processor.ProcessBatch(ctx)
		total += n
		if n == 0 || ctx.Err() != nil {
			break
		}
	}

	if total == 0 {
		slog.InfoContext(ctx, "No pending sync items found on startup")
		return nil
	}
	slog.InfoContext(ctx, "Startup sync completed", "processed", total)
	return nil
}

// Start registers the scheduled jobs and starts the processor loop.
func (w *SyncWorker) Start(ctx context.Context) error {
	jobs := []struct {
		name string
		spec string
		run  func(context.Context) error
	}{
		{"cleanup", w.schedule.Cleanup, w.cleanup},
		{"reset_stale", w.schedule.ResetStale, w.processor.ResetStale},
		{"stats", w.schedule.Stats, w.logStats},
	}
	for _, job := range jobs {
		if _, err := w.cron.AddFunc(job.spec, w.runJob(ctx, job.name, job.run)); err != nil {
			return fmt.Errorf("schedule %s job %q: %w", job.name, job.spec, err)
		}
	}

	if err := w.processor.Start(ctx); err != nil {
		return fmt.Errorf("start sync processor: %w", err)
	}
	w.cron.Start()

	slog.InfoContext(ctx, "Sync worker started",
		"cleanup_schedule", w.schedule.Cleanup,
		"reset_stale_schedule", w.schedule.ResetStale,
		"stats_schedule", w.schedule.Stats)
	return nil
}

// Stop waits for running jobs and stops the processor, giving up when ctx is
// done.
func (w *SyncWorker) Stop(ctx context.Context) error {
	jobsDone := w.cron.Stop()
	select {
	case <-jobsDone.Done():
	case <-ctx.Done():
		slog.WarnContext(ctx, "Timed out waiting for scheduled jobs")
	}
	return w.processor.Stop(ctx)
}

// Entries reports the number of registered jobs.
func (w *SyncWorker) Entries() int {
	return len(w.cron.Entries())
}

func (w *SyncWorker) runJob(ctx context.Context, name string, run func(context.Context) error) func() {
	return func() {
		if ctx.Err() != nil {
			return
		}
		start := time.Now()
		if err := run(ctx); err != nil {
			slog.ErrorContext(ctx, "Scheduled job failed", "job", name, "error", err)
			return
		}
		slog.DebugContext(ctx, "Scheduled job finished", "job", name, "duration", time.Since(start))
	}
}

func (w *SyncWorker) cleanup(ctx context.Context) error {
	_, err := w.processor.Cleanup(ctx)
	return err
}

func (w *SyncWorker) logStats(ctx context.Context) error {
	stats, err := w.processor.Stats(ctx, "")
	if err != nil {
		return err
	}
	attrs := []any{
		"pending", stats.Pending,
		"processing", stats.Processing,
		"completed", stats.Completed,
		"failed", stats.Failed,
	}
	if stats.Failed > 0 {
		slog.WarnContext(ctx, "Sync queue has failed items", attrs...)
		return nil
	}
	slog.InfoContext(ctx, "Sync queue stats", attrs...)
	return nil
}
