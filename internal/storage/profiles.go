package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"bookngn/internal/core"
)

const profileColumns = `monthly_income, life_insurance, health_insurance, voluntary_pension, voluntary_nhf,
	rent_paid, monthly_utilities, utility_percentage, mortgage_interest, employee_count,
	taxpayer_category, version, updated_at`

func getProfile(ctx context.Context, q dbtx, userID string) (core.FinancialProfile, error) {
	var (
		p                 core.FinancialProfile
		pct, cat, updated string
	)
	err := q.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE user_id = ?`, userID).Scan(
		&p.MonthlyIncome.Kobo, &p.LifeInsurance.Kobo, &p.HealthInsurance.Kobo, &p.VoluntaryPension.Kobo,
		&p.VoluntaryNHF.Kobo, &p.RentPaid.Kobo, &p.MonthlyUtilities.Kobo, &pct, &p.MortgageInterest.Kobo,
		&p.EmployeeCount, &cat, &p.Version, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return core.FinancialProfile{}, fmt.Errorf("profile %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return core.FinancialProfile{}, fmt.Errorf("get profile: %w", err)
	}
	p.UtilityPercentage, err = decimal.NewFromString(pct)
	if err != nil {
		return core.FinancialProfile{}, fmt.Errorf("parse utility percentage %q: %w", pct, err)
	}
	p.Category = core.TaxpayerCategory(cat)
	p.UpdatedAt = parseTimestamp(updated)
	return p, nil
}

// GetProfile returns the stored profile or ErrNotFound.
func (r *SQLiteRepository) GetProfile(ctx context.Context, userID string) (core.FinancialProfile, error) {
	return getProfile(ctx, r.db, userID)
}

// SaveProfile upserts the profile, bumping its version, and queues it for sync.
func (r *SQLiteRepository) SaveProfile(ctx context.Context, userID string, p core.FinancialProfile) (core.FinancialProfile, error) {
	err := r.withTx(ctx, func(q dbtx) error {
		_, err := q.ExecContext(ctx, `INSERT INTO profiles (user_id, monthly_income, life_insurance,
			health_insurance, voluntary_pension, voluntary_nhf, rent_paid, monthly_utilities,
			utility_percentage, mortgage_interest, employee_count, taxpayer_category)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(user_id) DO UPDATE SET
				monthly_income = excluded.monthly_income,
				life_insurance = excluded.life_insurance,
				health_insurance = excluded.health_insurance,
				voluntary_pension = excluded.voluntary_pension,
				voluntary_nhf = excluded.voluntary_nhf,
				rent_paid = excluded.rent_paid,
				monthly_utilities = excluded.monthly_utilities,
				utility_percentage = excluded.utility_percentage,
				mortgage_interest = excluded.mortgage_interest,
				employee_count = excluded.employee_count,
				taxpayer_category = excluded.taxpayer_category,
				version = profiles.version + 1,
				sync_status = 'pending',
				updated_at = CURRENT_TIMESTAMP`,
			userID, p.MonthlyIncome.Kobo, p.LifeInsurance.Kobo, p.HealthInsurance.Kobo,
			p.VoluntaryPension.Kobo, p.VoluntaryNHF.Kobo, p.RentPaid.Kobo, p.MonthlyUtilities.Kobo,
			p.UtilityPercentage.String(), p.MortgageInterest.Kobo, p.EmployeeCount, string(p.Category))
		if err != nil {
			return fmt.Errorf("upsert profile: %w", err)
		}
		return enqueue(ctx, q, userID, EntityProfile, userID, OpUpsert)
	})
	if err != nil {
		return core.FinancialProfile{}, err
	}
	return r.GetProfile(ctx, userID)
}

// Snapshot is a consistent read of everything the tax computation needs.
type Snapshot struct {
	Profile      core.FinancialProfile
	HasProfile   bool
	Transactions []core.Transaction
}

// TaxSnapshot reads the profile and one year of the ledger inside a single
// transaction so the two are consistent with each other.
func (r *SQLiteRepository) TaxSnapshot(ctx context.Context, userID string, year int) (Snapshot, error) {
	var snap Snapshot
	err := r.withTx(ctx, func(q dbtx) error {
		p, err := getProfile(ctx, q, userID)
		switch {
		case errors.Is(err, ErrNotFound):
			snap.Profile = core.DefaultProfile()
		case err != nil:
			return err
		default:
			snap.Profile = p
			snap.HasProfile = true
		}
		snap.Transactions, err = listTransactions(ctx, q, userID, TransactionFilter{
			From: core.NewDate(year, 1, 1),
			To:   core.NewDate(year, 12, 31),
		})
		return err
	})
	return snap, err
}
