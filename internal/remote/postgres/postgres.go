// Package postgres mirrors the ledger into the hosted Postgres backend. The
// schema is owned by the backend; this package only upserts and deletes rows.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"bookngn/internal/core"
	"bookngn/internal/remote"
)

var _ remote.Mirror = (*Repository)(nil)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PingContext(ctx context.Context) error
}

// Repository provides mirror operations against Postgres.
type Repository struct {
	db execer
}

// Open connects with the lib/pq driver and verifies the connection.
func Open(ctx context.Context, dsn string) (*Repository, *sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return NewRepository(db), db, nil
}

// NewRepository wraps an open database handle.
func NewRepository(db execer) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Name() string { return "postgres" }

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// UpsertTransaction writes the entry unless the mirror already holds a newer version.
func (r *Repository) UpsertTransaction(ctx context.Context, userID string, t core.Transaction) error {
	query := `
		INSERT INTO transactions (id, user_id, type, amount, category_id, account_id, date,
			description, is_deductible, exchange_rate, version, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, CURRENT_TIMESTAMP)
		ON CONFLICT (id) DO UPDATE SET
			type = EXCLUDED.type,
			amount = EXCLUDED.amount,
			category_id = EXCLUDED.category_id,
			account_id = EXCLUDED.account_id,
			date = EXCLUDED.date,
			description = EXCLUDED.description,
			is_deductible = EXCLUDED.is_deductible,
			exchange_rate = EXCLUDED.exchange_rate,
			version = EXCLUDED.version,
			updated_at = CURRENT_TIMESTAMP
		WHERE transactions.version < EXCLUDED.version`
	var rate any
	if t.ExchangeRate.Valid {
		rate = t.ExchangeRate.Decimal.String()
	}
	_, err := r.db.ExecContext(ctx, query, t.ID, userID, string(t.Type), t.Amount.Decimal().String(),
		t.CategoryID, t.AccountID, t.Date.String(), t.Description, t.IsDeductible, rate, t.Version)
	if err != nil {
		return fmt.Errorf("failed to upsert transaction: %w", err)
	}
	return nil
}

func (r *Repository) DeleteTransaction(ctx context.Context, userID, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	return nil
}

func (r *Repository) UpsertBudget(ctx context.Context, userID string, b core.Budget) error {
	query := `
		INSERT INTO budgets (id, user_id, category_id, amount_limit, period, version, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, CURRENT_TIMESTAMP)
		ON CONFLICT (id) DO UPDATE SET
			category_id = EXCLUDED.category_id,
			amount_limit = EXCLUDED.amount_limit,
			period = EXCLUDED.period,
			version = EXCLUDED.version,
			updated_at = CURRENT_TIMESTAMP
		WHERE budgets.version < EXCLUDED.version`
	_, err := r.db.ExecContext(ctx, query, b.ID, userID, b.CategoryID, b.AmountLimit.Decimal().String(),
		string(b.Period), b.Version)
	if err != nil {
		return fmt.Errorf("failed to upsert budget: %w", err)
	}
	return nil
}

func (r *Repository) DeleteBudget(ctx context.Context, userID, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM budgets WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete budget: %w", err)
	}
	return nil
}

func (r *Repository) UpsertProfile(ctx context.Context, userID string, p core.FinancialProfile) error {
	query := `
		INSERT INTO bookkeeping_profiles (user_id, monthly_income, life_insurance_premium,
			health_insurance_premium, voluntary_pension, voluntary_nhf, rent_paid, monthly_utilities,
			utility_percentage, mortgage_interest, employee_count, taxpayer_category, version, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, CURRENT_TIMESTAMP)
		ON CONFLICT (user_id) DO UPDATE SET
			monthly_income = EXCLUDED.monthly_income,
			life_insurance_premium = EXCLUDED.life_insurance_premium,
			health_insurance_premium = EXCLUDED.health_insurance_premium,
			voluntary_pension = EXCLUDED.voluntary_pension,
			voluntary_nhf = EXCLUDED.voluntary_nhf,
			rent_paid = EXCLUDED.rent_paid,
			monthly_utilities = EXCLUDED.monthly_utilities,
			utility_percentage = EXCLUDED.utility_percentage,
			mortgage_interest = EXCLUDED.mortgage_interest,
			employee_count = EXCLUDED.employee_count,
			taxpayer_category = EXCLUDED.taxpayer_category,
			version = EXCLUDED.version,
			updated_at = CURRENT_TIMESTAMP
		WHERE bookkeeping_profiles.version < EXCLUDED.version`
	m := func(v core.Money) string { return v.Decimal().String() }
	_, err := r.db.ExecContext(ctx, query, userID, m(p.MonthlyIncome), m(p.LifeInsurance),
		m(p.HealthInsurance), m(p.VoluntaryPension), m(p.VoluntaryNHF), m(p.RentPaid),
		m(p.MonthlyUtilities), p.UtilityPercentage.String(), m(p.MortgageInterest), p.EmployeeCount,
		string(p.Category), p.Version)
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}
