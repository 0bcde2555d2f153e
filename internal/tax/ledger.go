package tax

import "bookngn/internal/core"

// LedgerTotals are the annual figures folded from ledger entries.
type LedgerTotals struct {
	Year               int        `json:"year"`
	Income             core.Money `json:"income"`
	ForeignIncome      core.Money `json:"foreign_income"`
	Expenses           core.Money `json:"expenses"`
	DeductibleExpenses core.Money `json:"deductible_expenses"`
}

// FoldLedger sums one calendar year of entries. Foreign receipts are converted
// to naira with their exchange rate; only expenses flagged deductible count
// towards DeductibleExpenses.
func FoldLedger(txs []core.Transaction, year int) LedgerTotals {
	t := LedgerTotals{Year: year}
	for _, tx := range txs {
		if tx.Date.Year() != year {
			continue
		}
		amt := tx.NairaAmount()
		switch tx.Type {
		case core.Income:
			t.Income = t.Income.Add(amt)
			if tx.IsForeign() {
				t.ForeignIncome = t.ForeignIncome.Add(amt)
			}
		case core.Expense:
			t.Expenses = t.Expenses.Add(amt)
			if tx.IsDeductible {
				t.DeductibleExpenses = t.DeductibleExpenses.Add(amt)
			}
		}
	}
	return t
}

// Apply copies the folded totals onto an engine input.
func (t LedgerTotals) Apply(in Input) Input {
	in.AdditionalIncome = t.Income
	in.BusinessExpenses = t.DeductibleExpenses
	return in
}
