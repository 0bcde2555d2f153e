package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"bookngn/internal/core"
)

const budgetColumns = `id, category_id, amount_limit_kobo, period, version, created_at, updated_at`

func scanBudget(row interface{ Scan(...any) error }) (core.Budget, error) {
	var (
		b                    core.Budget
		period               string
		createdAt, updatedAt string
	)
	if err := row.Scan(&b.ID, &b.CategoryID, &b.AmountLimit.Kobo, &period, &b.Version, &createdAt, &updatedAt); err != nil {
		return core.Budget{}, err
	}
	b.Period = core.BudgetPeriod(period)
	b.CreatedAt = parseTimestamp(createdAt)
	b.UpdatedAt = parseTimestamp(updatedAt)
	return b, nil
}

func (r *SQLiteRepository) CreateBudget(ctx context.Context, userID string, b core.Budget) (core.Budget, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	err := r.withTx(ctx, func(q dbtx) error {
		_, err := q.ExecContext(ctx, `INSERT INTO budgets (id, user_id, category_id, amount_limit_kobo, period)
			VALUES (?, ?, ?, ?, ?)`, b.ID, userID, b.CategoryID, b.AmountLimit.Kobo, string(b.Period))
		if err != nil {
			return fmt.Errorf("insert budget: %w", err)
		}
		return enqueue(ctx, q, userID, EntityBudget, b.ID, OpUpsert)
	})
	if err != nil {
		return core.Budget{}, err
	}
	return r.GetBudget(ctx, userID, b.ID)
}

func (r *SQLiteRepository) GetBudget(ctx context.Context, userID, id string) (core.Budget, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+budgetColumns+` FROM budgets
		WHERE id = ? AND user_id = ? AND deleted_at IS NULL`, id, userID)
	b, err := scanBudget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, fmt.Errorf("budget %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget: %w", err)
	}
	return b, nil
}

func (r *SQLiteRepository) ListBudgets(ctx context.Context, userID string) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+budgetColumns+` FROM budgets
		WHERE user_id = ? AND deleted_at IS NULL ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) DeleteBudget(ctx context.Context, userID, id string) error {
	return r.withTx(ctx, func(q dbtx) error {
		res, err := q.ExecContext(ctx, `UPDATE budgets SET deleted_at = CURRENT_TIMESTAMP,
			version = version + 1, sync_status = 'pending', updated_at = CURRENT_TIMESTAMP
			WHERE id = ? AND user_id = ? AND deleted_at IS NULL`, id, userID)
		if err != nil {
			return fmt.Errorf("delete budget: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("budget %s: %w", id, ErrNotFound)
		}
		return enqueue(ctx, q, userID, EntityBudget, id, OpDelete)
	})
}
