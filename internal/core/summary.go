package core

import "github.com/shopspring/decimal"

// MonthSummary aggregates one calendar month of the ledger.
type MonthSummary struct {
	Year          int   `json:"year"`
	Month         int   `json:"month"`
	Income        Money `json:"income"`
	Expenses      Money `json:"expenses"`
	TaxDeductible Money `json:"tax_deductible"`
}

// Net returns income minus expenses.
func (m MonthSummary) Net() Money {
	return m.Income.Sub(m.Expenses)
}

// BudgetStatus reports spending against a budget in its current period.
type BudgetStatus struct {
	Budget       Budget          `json:"budget"`
	CategoryName string          `json:"category_name"`
	Spent        Money           `json:"spent"`
	Percentage   decimal.Decimal `json:"percentage"`
	Over         bool            `json:"over"`
	Remaining    Money           `json:"remaining"`
	Exceeded     Money           `json:"exceeded"`
}

// NewBudgetStatus derives percentage (capped at 100), over flag and remaining
// or exceeded amounts from the spend.
func NewBudgetStatus(b Budget, categoryName string, spent Money) BudgetStatus {
	st := BudgetStatus{Budget: b, CategoryName: categoryName, Spent: spent, Percentage: decimal.Zero}
	if b.AmountLimit.Kobo > 0 {
		pct := decimal.NewFromInt(spent.Kobo).Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromInt(b.AmountLimit.Kobo)).Round(2)
		st.Percentage = decimal.Min(pct, decimal.NewFromInt(100))
	}
	st.Over = spent.Kobo > b.AmountLimit.Kobo
	if st.Over {
		st.Exceeded = spent.Sub(b.AmountLimit)
	} else {
		st.Remaining = b.AmountLimit.Sub(spent)
	}
	return st
}

// SyncQueueStats counts sync_queue rows by status.
type SyncQueueStats struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}
