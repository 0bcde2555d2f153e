package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bookngn/internal/core"
)

// TransactionFilter narrows ListTransactions. Zero values mean "any".
type TransactionFilter struct {
	From       core.Date
	To         core.Date
	Type       core.EntryType
	CategoryID string
	Limit      int
	Offset     int
}

const transactionColumns = `id, type, amount_kobo, category_id, account_id, txn_date, description,
	is_deductible, exchange_rate, version, sync_status, created_at, updated_at`

func scanTransaction(row interface{ Scan(...any) error }) (core.Transaction, error) {
	var (
		t                    core.Transaction
		typ, date            string
		deductible           int
		rate                 sql.NullString
		createdAt, updatedAt string
	)
	if err := row.Scan(&t.ID, &typ, &t.Amount.Kobo, &t.CategoryID, &t.AccountID, &date, &t.Description,
		&deductible, &rate, &t.Version, &t.SyncStatus, &createdAt, &updatedAt); err != nil {
		return core.Transaction{}, err
	}
	t.Type = core.EntryType(typ)
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse date %q: %w", date, err)
	}
	t.Date = d
	t.IsDeductible = deductible != 0
	if rate.Valid && rate.String != "" {
		dec, err := decimal.NewFromString(rate.String)
		if err != nil {
			return core.Transaction{}, fmt.Errorf("parse exchange rate %q: %w", rate.String, err)
		}
		t.ExchangeRate = decimal.NewNullDecimal(dec)
	}
	t.CreatedAt = parseTimestamp(createdAt)
	t.UpdatedAt = parseTimestamp(updatedAt)
	return t, nil
}

func nullRate(r decimal.NullDecimal) sql.NullString {
	if !r.Valid {
		return sql.NullString{}
	}
	return sql.NullString{String: r.Decimal.String(), Valid: true}
}

// CreateTransaction stores a new entry and queues it for sync. An empty ID is
// replaced with a fresh UUID.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, userID string, t core.Transaction) (core.Transaction, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.AccountID == "" {
		t.AccountID = "default"
	}
	err := r.withTx(ctx, func(q dbtx) error {
		_, err := q.ExecContext(ctx, `INSERT INTO transactions
			(id, user_id, type, amount_kobo, category_id, account_id, txn_date, description, is_deductible, exchange_rate)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, userID, string(t.Type), t.Amount.Kobo, t.CategoryID, t.AccountID, t.Date.String(),
			t.Description, boolToInt(t.IsDeductible), nullRate(t.ExchangeRate))
		if err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		return enqueue(ctx, q, userID, EntityTransaction, t.ID, OpUpsert)
	})
	if err != nil {
		return core.Transaction{}, err
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", t.ID,
		"type", t.Type,
		"amount_kobo", t.Amount.Kobo,
		"date", t.Date.String())

	return r.GetTransaction(ctx, userID, t.ID)
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE id = ? AND user_id = ? AND deleted_at IS NULL`, id, userID)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID string, f TransactionFilter) ([]core.Transaction, error) {
	return listTransactions(ctx, r.db, userID, f)
}

func listTransactions(ctx context.Context, q dbtx, userID string, f TransactionFilter) ([]core.Transaction, error) {
	var (
		where = []string{"user_id = ?", "deleted_at IS NULL"}
		args  = []any{userID}
	)
	if !f.From.IsZero() {
		where = append(where, "txn_date >= ?")
		args = append(args, f.From.String())
	}
	if !f.To.IsZero() {
		where = append(where, "txn_date <= ?")
		args = append(args, f.To.String())
	}
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(f.Type))
	}
	if f.CategoryID != "" {
		where = append(where, "category_id = ?")
		args = append(args, f.CategoryID)
	}
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY txn_date DESC, created_at DESC`
	if f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpdateTransaction replaces the mutable fields of an entry and bumps its version.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, userID string, t core.Transaction) (core.Transaction, error) {
	err := r.withTx(ctx, func(q dbtx) error {
		res, err := q.ExecContext(ctx, `UPDATE transactions SET
			type = ?, amount_kobo = ?, category_id = ?, account_id = ?, txn_date = ?, description = ?,
			is_deductible = ?, exchange_rate = ?, version = version + 1, sync_status = 'pending',
			updated_at = CURRENT_TIMESTAMP
			WHERE id = ? AND user_id = ? AND deleted_at IS NULL`,
			string(t.Type), t.Amount.Kobo, t.CategoryID, t.AccountID, t.Date.String(), t.Description,
			boolToInt(t.IsDeductible), nullRate(t.ExchangeRate), t.ID, userID)
		if err != nil {
			return fmt.Errorf("update transaction: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("transaction %s: %w", t.ID, ErrNotFound)
		}
		return enqueue(ctx, q, userID, EntityTransaction, t.ID, OpUpsert)
	})
	if err != nil {
		return core.Transaction{}, err
	}
	return r.GetTransaction(ctx, userID, t.ID)
}

// DeleteTransaction soft-deletes an entry and queues the remote delete.
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, userID, id string) error {
	err := r.withTx(ctx, func(q dbtx) error {
		res, err := q.ExecContext(ctx, `UPDATE transactions SET deleted_at = CURRENT_TIMESTAMP,
			version = version + 1, sync_status = 'pending', updated_at = CURRENT_TIMESTAMP
			WHERE id = ? AND user_id = ? AND deleted_at IS NULL`, id, userID)
		if err != nil {
			return fmt.Errorf("delete transaction: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("transaction %s: %w", id, ErrNotFound)
		}
		return enqueue(ctx, q, userID, EntityTransaction, id, OpDelete)
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Transaction deleted", "id", id)
	return nil
}
