package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"bookngn/internal/core"
	"bookngn/internal/remote"
	"bookngn/internal/storage"
)

var errNoMirror = errors.New("no remote mirror configured")

// SyncProcessorConfig holds configuration for the sync processor
type SyncProcessorConfig struct {
	// PollInterval is how often to check for pending items (default: 30s)
	PollInterval time.Duration

	// BatchSize is the max number of items to process per poll cycle (default: 10)
	BatchSize int

	// MaxRetries is the maximum attempts before an item is marked failed (default: 5)
	MaxRetries int

	// CleanupAge is how old completed items must be before Cleanup removes them (default: 24h)
	CleanupAge time.Duration
}

// DefaultSyncProcessorConfig returns sensible defaults
func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		PollInterval: 30 * time.Second,
		BatchSize:    10,
		MaxRetries:   5,
		CleanupAge:   24 * time.Hour,
	}
}

// SyncProcessor drains the SQLite sync queue into the remote mirror.
type SyncProcessor struct {
	storage *storage.SQLiteRepository
	mirror  remote.Mirror
	config  SyncProcessorConfig

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	nudgeCh chan struct{}

	// Serialises batches between the loop and direct ProcessBatch calls
	batchMu sync.Mutex
}

// NewSyncProcessor creates a new sync processor
func NewSyncProcessor(storage *storage.SQLiteRepository, mirror remote.Mirror, config SyncProcessorConfig) *SyncProcessor {
	return &SyncProcessor{
		storage: storage,
		mirror:  mirror,
		config:  config,
		nudgeCh: make(chan struct{}, 1),
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	// Reset any stale processing items from previous crashes
	if err := p.storage.ResetStaleProcessing(ctx); err != nil {
		slog.WarnContext(ctx, "Failed to reset stale processing items", "error", err)
	}

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Sync processor started",
		"backend", p.mirrorName(),
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)

	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		slog.InfoContext(ctx, "Sync processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

// IsRunning returns whether the processor is currently running
func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// ProcessNow asks the running loop to process a batch without waiting for
// the next poll. Nudges coalesce; it never blocks.
func (p *SyncProcessor) ProcessNow() {
	select {
	case p.nudgeCh <- struct{}{}:
	default:
	}
}

func (p *SyncProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	pollTicker := time.NewTicker(p.config.PollInterval)
	defer pollTicker.Stop()

	// Process immediately on startup
	p.ProcessBatch(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			p.ProcessBatch(ctx)
		case <-p.nudgeCh:
			p.ProcessBatch(ctx)
		}
	}
}

// ProcessBatch processes a single batch of due items and returns how many
// were pushed successfully.
func (p *SyncProcessor) ProcessBatch(ctx context.Context) int {
	p.batchMu.Lock()
	defer p.batchMu.Unlock()

	items, err := p.storage.DequeueSyncBatch(ctx, int64(p.config.BatchSize))
	if err != nil {
		slog.ErrorContext(ctx, "Failed to dequeue sync batch", "error", err)
		return 0
	}
	if len(items) == 0 {
		return 0
	}

	slog.DebugContext(ctx, "Processing sync batch", "count", len(items))

	synced := 0
	for _, item := range items {
		if p.stopping() || ctx.Err() != nil {
			return synced
		}

		if err := p.storage.MarkSyncProcessing(ctx, item.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to mark item as processing",
				"id", item.ID, "error", err)
			continue
		}

		if err := p.processItem(ctx, item); err != nil {
			p.handleFailure(ctx, item, err)
			continue
		}
		p.handleSuccess(ctx, item)
		synced++
	}
	return synced
}

func (p *SyncProcessor) stopping() bool {
	p.mu.Lock()
	stopCh := p.stopCh
	p.mu.Unlock()
	if stopCh == nil {
		return false
	}
	select {
	case <-stopCh:
		return true
	default:
		return false
	}
}

func (p *SyncProcessor) mirrorName() string {
	if p.mirror == nil {
		return "none"
	}
	return p.mirror.Name()
}

// processItem pushes one queue item to the mirror.
func (p *SyncProcessor) processItem(ctx context.Context, item storage.SyncItem) error {
	if p.mirror == nil {
		return errNoMirror
	}

	if item.Operation == storage.OpDelete {
		switch item.Entity {
		case storage.EntityTransaction:
			return p.mirror.DeleteTransaction(ctx, item.UserID, item.EntityID)
		case storage.EntityBudget:
			return p.mirror.DeleteBudget(ctx, item.UserID, item.EntityID)
		}
		return fmt.Errorf("unsupported delete of %s", item.Entity)
	}
	if item.Operation != storage.OpUpsert {
		return fmt.Errorf("unknown operation: %s", item.Operation)
	}

	var err error
	switch item.Entity {
	case storage.EntityTransaction:
		var t core.Transaction
		if t, err = p.storage.LoadTransactionForSync(ctx, item); err == nil {
			err = p.mirror.UpsertTransaction(ctx, item.UserID, t)
		}
	case storage.EntityBudget:
		var b core.Budget
		if b, err = p.storage.LoadBudgetForSync(ctx, item); err == nil {
			err = p.mirror.UpsertBudget(ctx, item.UserID, b)
		}
	case storage.EntityProfile:
		var pr core.FinancialProfile
		if pr, err = p.storage.LoadProfileForSync(ctx, item); err == nil {
			err = p.mirror.UpsertProfile(ctx, item.UserID, pr)
		}
	default:
		return fmt.Errorf("unknown entity: %s", item.Entity)
	}

	if errors.Is(err, storage.ErrNotFound) {
		// Deleted since it was queued; its delete item carries the change
		slog.DebugContext(ctx, "Skipping sync of missing entity",
			"entity", item.Entity, "entity_id", item.EntityID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s %s %s: %w", p.mirrorName(), item.Operation, item.Entity, err)
	}

	if err := p.storage.MarkEntitySynced(ctx, item.Entity, item.EntityID); err != nil {
		// The remote write succeeded; only the local flag is stale
		slog.WarnContext(ctx, "Failed to mark entity as synced",
			"entity", item.Entity, "entity_id", item.EntityID, "error", err)
	}
	slog.InfoContext(ctx, "Synced entity to remote",
		"backend", p.mirrorName(),
		"entity", item.Entity,
		"entity_id", item.EntityID,
		"operation", item.Operation)
	return nil
}

func (p *SyncProcessor) handleSuccess(ctx context.Context, item storage.SyncItem) {
	if err := p.storage.MarkSyncComplete(ctx, item.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to mark sync complete",
			"id", item.ID, "error", err)
	}
}

// handleFailure handles a failed sync attempt with retry logic
func (p *SyncProcessor) handleFailure(ctx context.Context, item storage.SyncItem, processErr error) {
	slog.WarnContext(ctx, "Sync processing failed",
		"id", item.ID,
		"entity", item.Entity,
		"operation", item.Operation,
		"attempt", item.Attempts+1,
		"error", processErr)

	if item.Attempts+1 >= int64(p.config.MaxRetries) {
		if err := p.storage.MarkSyncFailed(ctx, item.ID, processErr.Error()); err != nil {
			slog.ErrorContext(ctx, "Failed to mark sync as failed",
				"id", item.ID, "error", err)
		}
		slog.ErrorContext(ctx, "Sync item failed permanently after max retries",
			"id", item.ID,
			"entity", item.Entity,
			"entity_id", item.EntityID,
			"attempts", item.Attempts+1)
		return
	}

	if err := p.storage.IncrementSyncAttempt(ctx, item.ID, processErr.Error()); err != nil {
		slog.ErrorContext(ctx, "Failed to increment sync attempt",
			"id", item.ID, "error", err)
	}
}

// Cleanup removes completed items older than CleanupAge.
func (p *SyncProcessor) Cleanup(ctx context.Context) (int64, error) {
	n, err := p.storage.CleanupCompletedSyncs(ctx, p.config.CleanupAge)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		slog.InfoContext(ctx, "Cleaned up completed sync items", "count", n)
	}
	return n, nil
}

// ResetStale returns items abandoned in processing to the queue.
func (p *SyncProcessor) ResetStale(ctx context.Context) error {
	return p.storage.ResetStaleProcessing(ctx)
}

// Stats returns queue counts for a user, or for everyone when userID is empty.
func (p *SyncProcessor) Stats(ctx context.Context, userID string) (core.SyncQueueStats, error) {
	return p.storage.GetSyncQueueStats(ctx, userID)
}

// RetryFailed resets failed items for retry and wakes the loop.
func (p *SyncProcessor) RetryFailed(ctx context.Context, userID string) (int64, error) {
	n, err := p.storage.RetryFailedSyncs(ctx, userID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		p.ProcessNow()
	}
	return n, nil
}
