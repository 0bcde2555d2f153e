package google

import (
	"fmt"
	"strconv"
	"strings"

	"bookngn/internal/core"
)

// Column layouts. Column A always holds the entity id.
var (
	TransactionHeader = []string{"ID", "User", "Date", "Type", "Category", "Account", "Description",
		"Amount", "Deductible", "Exchange Rate", "Amount (NGN)", "Version"}
	BudgetHeader  = []string{"ID", "User", "Category", "Limit", "Period", "Version"}
	ProfileHeader = []string{"User", "Monthly Income", "Life Insurance", "Health Insurance",
		"Voluntary Pension", "Voluntary NHF", "Rent", "Utilities", "Utility %", "Mortgage Interest",
		"Employees", "Category", "Version"}
)

func transactionRow(userID string, t core.Transaction) []any {
	rate := ""
	if t.ExchangeRate.Valid {
		rate = t.ExchangeRate.Decimal.String()
	}
	return []any{
		t.ID, userID, t.Date.String(), string(t.Type), t.CategoryID, t.AccountID, t.Description,
		t.Amount.Decimal().StringFixed(2), strings.ToUpper(strconv.FormatBool(t.IsDeductible)), rate,
		t.NairaAmount().Decimal().StringFixed(2), t.Version,
	}
}

func budgetRow(userID string, b core.Budget) []any {
	return []any{b.ID, userID, b.CategoryID, b.AmountLimit.Decimal().StringFixed(2), string(b.Period), b.Version}
}

func profileRow(userID string, p core.FinancialProfile) []any {
	m := func(v core.Money) string { return v.Decimal().StringFixed(2) }
	return []any{
		userID, m(p.MonthlyIncome), m(p.LifeInsurance), m(p.HealthInsurance), m(p.VoluntaryPension),
		m(p.VoluntaryNHF), m(p.RentPaid), m(p.MonthlyUtilities), p.UtilityPercentage.String(),
		m(p.MortgageInterest), p.EmployeeCount, string(p.Category), p.Version,
	}
}

// indexColumn maps the first-column values to their 1-based row numbers.
// Blank cells and the header row are skipped.
func indexColumn(values [][]any) map[string]int {
	out := make(map[string]int, len(values))
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		id := strings.TrimSpace(fmt.Sprint(row[0]))
		if id == "" || (i == 0 && (strings.EqualFold(id, "id") || strings.EqualFold(id, "user"))) {
			continue
		}
		out[id] = i + 1
	}
	return out
}
