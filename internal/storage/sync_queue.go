package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"bookngn/internal/core"
)

const (
	EntityTransaction = "transaction"
	EntityBudget      = "budget"
	EntityProfile     = "profile"

	OpUpsert = "upsert"
	OpDelete = "delete"

	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

const (
	baseRetryDelay = 30 * time.Second
	maxRetryDelay  = time.Hour
	staleAfter     = 5 * time.Minute
)

// SyncItem is one row of the sync_queue table.
type SyncItem struct {
	ID            int64
	UserID        string
	Entity        string
	EntityID      string
	Operation     string
	Status        string
	Attempts      int64
	LastError     string
	NextAttemptAt time.Time
	CreatedAt     time.Time
}

// enqueue records a pending sync for an entity, replacing any older pending
// row for the same entity so the mirror only sees the latest operation.
func enqueue(ctx context.Context, q dbtx, userID, entity, entityID, op string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM sync_queue
		WHERE entity = ? AND entity_id = ? AND status = 'pending'`, entity, entityID); err != nil {
		return fmt.Errorf("collapse pending sync: %w", err)
	}
	if _, err := q.ExecContext(ctx, `INSERT INTO sync_queue (user_id, entity, entity_id, operation)
		VALUES (?, ?, ?, ?)`, userID, entity, entityID, op); err != nil {
		return fmt.Errorf("enqueue sync: %w", err)
	}
	return nil
}

// DequeueSyncBatch returns pending items whose retry time has come, oldest first.
func (r *SQLiteRepository) DequeueSyncBatch(ctx context.Context, limit int64) ([]SyncItem, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, user_id, entity, entity_id, operation, status,
		attempts, last_error, next_attempt_at, created_at
		FROM sync_queue
		WHERE status = 'pending' AND next_attempt_at <= CURRENT_TIMESTAMP
		ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("dequeue sync batch: %w", err)
	}
	defer rows.Close()

	var items []SyncItem
	for rows.Next() {
		var (
			it            SyncItem
			next, created string
		)
		if err := rows.Scan(&it.ID, &it.UserID, &it.Entity, &it.EntityID, &it.Operation, &it.Status,
			&it.Attempts, &it.LastError, &next, &created); err != nil {
			return nil, fmt.Errorf("scan sync item: %w", err)
		}
		it.NextAttemptAt = parseTimestamp(next)
		it.CreatedAt = parseTimestamp(created)
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *SQLiteRepository) setSyncStatus(ctx context.Context, id int64, status string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE sync_queue SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, status, id)
	return err
}

func (r *SQLiteRepository) MarkSyncProcessing(ctx context.Context, id int64) error {
	if err := r.setSyncStatus(ctx, id, StatusProcessing); err != nil {
		return fmt.Errorf("mark sync processing: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) MarkSyncComplete(ctx context.Context, id int64) error {
	if err := r.setSyncStatus(ctx, id, StatusCompleted); err != nil {
		return fmt.Errorf("mark sync complete: %w", err)
	}
	return nil
}

// RetryDelay is the backoff before the given attempt number (1-based) is retried.
func RetryDelay(attempt int64) time.Duration {
	d := baseRetryDelay
	for i := int64(1); i < attempt && d < maxRetryDelay; i++ {
		d *= 2
	}
	if d > maxRetryDelay {
		d = maxRetryDelay
	}
	return d
}

// IncrementSyncAttempt records a failed attempt and reschedules the item
// with exponential backoff.
func (r *SQLiteRepository) IncrementSyncAttempt(ctx context.Context, id int64, lastErr string) error {
	return r.withTx(ctx, func(q dbtx) error {
		var attempts int64
		if err := q.QueryRowContext(ctx, `SELECT attempts FROM sync_queue WHERE id = ?`, id).Scan(&attempts); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("sync item %d: %w", id, ErrNotFound)
			}
			return fmt.Errorf("read sync attempts: %w", err)
		}
		attempts++
		delay := int64(RetryDelay(attempts) / time.Second)
		_, err := q.ExecContext(ctx, `UPDATE sync_queue SET
			status = 'pending', attempts = ?, last_error = ?,
			next_attempt_at = datetime('now', printf('+%d seconds', ?)),
			updated_at = CURRENT_TIMESTAMP
			WHERE id = ?`, attempts, lastErr, delay, id)
		if err != nil {
			return fmt.Errorf("increment sync attempt: %w", err)
		}
		return nil
	})
}

// MarkSyncFailed gives up on an item and flags its entity with a sync error.
func (r *SQLiteRepository) MarkSyncFailed(ctx context.Context, id int64, lastErr string) error {
	return r.withTx(ctx, func(q dbtx) error {
		var entity, entityID string
		if err := q.QueryRowContext(ctx, `SELECT entity, entity_id FROM sync_queue WHERE id = ?`, id).
			Scan(&entity, &entityID); err != nil {
			return fmt.Errorf("read sync item: %w", err)
		}
		if _, err := q.ExecContext(ctx, `UPDATE sync_queue SET status = 'failed', attempts = attempts + 1,
			last_error = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, lastErr, id); err != nil {
			return fmt.Errorf("mark sync failed: %w", err)
		}
		return setEntitySyncStatus(ctx, q, entity, entityID, SyncError)
	})
}

// MarkEntitySynced flags the local row as mirrored.
func (r *SQLiteRepository) MarkEntitySynced(ctx context.Context, entity, entityID string) error {
	return setEntitySyncStatus(ctx, r.db, entity, entityID, SyncSynced)
}

func setEntitySyncStatus(ctx context.Context, q dbtx, entity, entityID, status string) error {
	var query string
	switch entity {
	case EntityTransaction:
		query = `UPDATE transactions SET sync_status = ? WHERE id = ?`
	case EntityBudget:
		query = `UPDATE budgets SET sync_status = ? WHERE id = ?`
	case EntityProfile:
		query = `UPDATE profiles SET sync_status = ? WHERE user_id = ?`
	default:
		return fmt.Errorf("unknown sync entity %q", entity)
	}
	if _, err := q.ExecContext(ctx, query, status, entityID); err != nil {
		return fmt.Errorf("set %s sync status: %w", entity, err)
	}
	return nil
}

// ResetStaleProcessing returns items stuck in processing (after a crash) to pending.
func (r *SQLiteRepository) ResetStaleProcessing(ctx context.Context) error {
	res, err := r.db.ExecContext(ctx, `UPDATE sync_queue SET status = 'pending', updated_at = CURRENT_TIMESTAMP
		WHERE status = 'processing' AND updated_at <= datetime('now', printf('-%d seconds', ?))`,
		int64(staleAfter/time.Second))
	if err != nil {
		return fmt.Errorf("reset stale processing: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		slog.WarnContext(ctx, "Reset stale sync items", "count", n)
	}
	return nil
}

// CleanupCompletedSyncs deletes completed items last touched more than olderThan ago.
func (r *SQLiteRepository) CleanupCompletedSyncs(ctx context.Context, olderThan time.Duration) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sync_queue
		WHERE status = 'completed' AND updated_at <= datetime('now', printf('-%d seconds', ?))`,
		int64(olderThan/time.Second))
	if err != nil {
		return 0, fmt.Errorf("cleanup completed syncs: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// RetryFailedSyncs moves failed items for a user (or every user when userID is
// empty) back to pending with a fresh attempt budget.
func (r *SQLiteRepository) RetryFailedSyncs(ctx context.Context, userID string) (int64, error) {
	query := `UPDATE sync_queue SET status = 'pending', attempts = 0, next_attempt_at = CURRENT_TIMESTAMP,
		updated_at = CURRENT_TIMESTAMP WHERE status = 'failed'`
	var args []any
	if userID != "" {
		query += ` AND user_id = ?`
		args = append(args, userID)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry failed syncs: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// GetSyncQueueStats counts queue rows by status, for one user or all when userID is empty.
func (r *SQLiteRepository) GetSyncQueueStats(ctx context.Context, userID string) (core.SyncQueueStats, error) {
	query := `SELECT status, COUNT(*) FROM sync_queue`
	var args []any
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` GROUP BY status`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return core.SyncQueueStats{}, fmt.Errorf("sync queue stats: %w", err)
	}
	defer rows.Close()

	var st core.SyncQueueStats
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return core.SyncQueueStats{}, fmt.Errorf("scan sync stats: %w", err)
		}
		switch status {
		case StatusPending:
			st.Pending = n
		case StatusProcessing:
			st.Processing = n
		case StatusCompleted:
			st.Completed = n
		case StatusFailed:
			st.Failed = n
		}
	}
	return st, rows.Err()
}

// LoadTransactionForSync fetches the entry referenced by a queue item.
func (r *SQLiteRepository) LoadTransactionForSync(ctx context.Context, it SyncItem) (core.Transaction, error) {
	return r.GetTransaction(ctx, it.UserID, it.EntityID)
}

func (r *SQLiteRepository) LoadBudgetForSync(ctx context.Context, it SyncItem) (core.Budget, error) {
	return r.GetBudget(ctx, it.UserID, it.EntityID)
}

func (r *SQLiteRepository) LoadProfileForSync(ctx context.Context, it SyncItem) (core.FinancialProfile, error) {
	return r.GetProfile(ctx, it.UserID)
}
