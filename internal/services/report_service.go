package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"bookngn/internal/core"
	"bookngn/internal/storage"
)

// ReportService derives summaries from the local ledger.
type ReportService struct {
	storage *storage.SQLiteRepository
	tax     *TaxService
	now     func() time.Time
}

func NewReportService(storage *storage.SQLiteRepository, tax *TaxService) *ReportService {
	return &ReportService{storage: storage, tax: tax, now: time.Now}
}

// MonthlySummary returns twelve months of totals for year.
func (s *ReportService) MonthlySummary(ctx context.Context, userID string, year int) ([]core.MonthSummary, error) {
	txs, err := s.storage.ListTransactions(ctx, userID, storage.TransactionFilter{
		From: core.NewDate(year, 1, 1),
		To:   core.NewDate(year, 12, 31),
	})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	months := make([]core.MonthSummary, 12)
	for i := range months {
		months[i] = core.MonthSummary{Year: year, Month: i + 1}
	}
	for _, t := range txs {
		m := &months[t.Date.Month()-1]
		switch t.Type {
		case core.Income:
			m.Income = m.Income.Add(t.NairaAmount())
		case core.Expense:
			m.Expenses = m.Expenses.Add(t.Amount)
			if t.IsDeductible {
				m.TaxDeductible = m.TaxDeductible.Add(t.Amount)
			}
		}
	}
	return months, nil
}

// BudgetStatus reports every budget against the spend in its current period.
func (s *ReportService) BudgetStatus(ctx context.Context, userID string) ([]core.BudgetStatus, error) {
	budgets, err := s.storage.ListBudgets(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	if len(budgets) == 0 {
		return []core.BudgetStatus{}, nil
	}

	cats, err := s.storage.ListCategories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	names := make(map[string]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}

	now := s.now()
	txs, err := s.storage.ListTransactions(ctx, userID, storage.TransactionFilter{
		From: core.NewDate(now.Year(), 1, 1),
		To:   core.NewDate(now.Year(), 12, 31),
		Type: core.Expense,
	})
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}

	out := make([]core.BudgetStatus, 0, len(budgets))
	for _, b := range budgets {
		var spent core.Money
		for _, t := range txs {
			if t.CategoryID == b.CategoryID && b.Period.Covers(t.Date, now) {
				spent = spent.Add(t.Amount)
			}
		}
		out = append(out, core.NewBudgetStatus(b, names[b.CategoryID], spent))
	}
	return out, nil
}

// Dashboard bundles everything the overview screen needs.
type Dashboard struct {
	Year    int                 `json:"year"`
	Tax     TaxReport           `json:"tax"`
	Months  []core.MonthSummary `json:"months"`
	Budgets []core.BudgetStatus `json:"budgets"`
	Sync    core.SyncQueueStats `json:"sync"`
}

// Dashboard loads the tax report, monthly summary, budget status and sync
// counts concurrently. The first failure cancels the rest.
func (s *ReportService) Dashboard(ctx context.Context, userID string, year int) (Dashboard, error) {
	d := Dashboard{Year: year}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		r, err := s.tax.Compute(gctx, userID, year)
		d.Tax = r
		return err
	})
	g.Go(func() error {
		m, err := s.MonthlySummary(gctx, userID, year)
		d.Months = m
		return err
	})
	g.Go(func() error {
		b, err := s.BudgetStatus(gctx, userID)
		d.Budgets = b
		return err
	})
	g.Go(func() error {
		st, err := s.storage.GetSyncQueueStats(gctx, userID)
		d.Sync = st
		return err
	})

	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	return d, nil
}
