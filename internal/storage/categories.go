package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"bookngn/internal/core"
)

var ErrDuplicateCategory = errors.New("category already exists")

func scanCategory(row interface{ Scan(...any) error }) (core.Category, error) {
	var (
		c   core.Category
		typ string
	)
	if err := row.Scan(&c.ID, &c.Name, &typ, &c.Color, &c.Icon); err != nil {
		return core.Category{}, err
	}
	c.Type = core.EntryType(typ)
	return c, nil
}

// ListCategories returns the user's categories, seeding the defaults the
// first time a user has none.
func (r *SQLiteRepository) ListCategories(ctx context.Context, userID string) ([]core.Category, error) {
	if err := r.ensureDefaultCategories(ctx, userID); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, type, color, icon FROM categories
		WHERE user_id = ? ORDER BY type DESC, name`, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, userID, id string) (core.Category, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, name, type, color, icon FROM categories
		WHERE id = ? AND user_id = ?`, id, userID)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, fmt.Errorf("category %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, userID string, c core.Category) (core.Category, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	var exists int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories WHERE user_id = ? AND name = ? AND type = ?`,
		userID, c.Name, string(c.Type)).Scan(&exists)
	if err != nil {
		return core.Category{}, fmt.Errorf("check category: %w", err)
	}
	if exists > 0 {
		return core.Category{}, fmt.Errorf("%s: %w", c.Name, ErrDuplicateCategory)
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO categories (id, user_id, name, type, color, icon)
		VALUES (?, ?, ?, ?, ?, ?)`, c.ID, userID, c.Name, string(c.Type), c.Color, c.Icon)
	if err != nil {
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) ensureDefaultCategories(ctx context.Context, userID string) error {
	return r.withTx(ctx, func(q dbtx) error {
		var n int
		if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories WHERE user_id = ?`, userID).Scan(&n); err != nil {
			return fmt.Errorf("count categories: %w", err)
		}
		if n > 0 {
			return nil
		}
		for _, c := range core.DefaultCategories() {
			if _, err := q.ExecContext(ctx, `INSERT INTO categories (id, user_id, name, type, color, icon)
				VALUES (?, ?, ?, ?, ?, ?)`, uuid.NewString(), userID, c.Name, string(c.Type), c.Color, c.Icon); err != nil {
				return fmt.Errorf("seed category %s: %w", c.Name, err)
			}
		}
		return nil
	})
}
