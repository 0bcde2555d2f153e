package core

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  EntryType = "Income"
	Expense EntryType = "Expense"

	Monthly BudgetPeriod = "monthly"
	Yearly  BudgetPeriod = "yearly"

	dateLayout = "2006-01-02"
)

type (
	EntryType    string
	BudgetPeriod string

	Date struct {
		time.Time
	}

	Money struct {
		Kobo int64
	}

	// Transaction is a single ledger entry. For Income the optional exchange
	// rate marks a foreign-currency receipt whose Amount is in foreign units.
	Transaction struct {
		ID           string              `json:"id"`
		Type         EntryType           `json:"type"`
		Amount       Money               `json:"amount"`
		CategoryID   string              `json:"category_id"`
		AccountID    string              `json:"account_id"`
		Date         Date                `json:"date"`
		Description  string              `json:"description"`
		IsDeductible bool                `json:"is_deductible"`
		ExchangeRate decimal.NullDecimal `json:"exchange_rate"`
		Version      int64               `json:"version"`
		SyncStatus   string              `json:"sync_status,omitempty"`
		CreatedAt    time.Time           `json:"created_at"`
		UpdatedAt    time.Time           `json:"updated_at"`
	}

	Category struct {
		ID    string    `json:"id"`
		Name  string    `json:"name"`
		Type  EntryType `json:"type"`
		Color string    `json:"color"`
		Icon  string    `json:"icon"`
	}

	Budget struct {
		ID          string       `json:"id"`
		CategoryID  string       `json:"category_id"`
		AmountLimit Money        `json:"amount_limit"`
		Period      BudgetPeriod `json:"period"`
		Version     int64        `json:"version"`
		CreatedAt   time.Time    `json:"created_at"`
		UpdatedAt   time.Time    `json:"updated_at"`
	}
)

var (
	ErrInvalidDay          = errors.New("invalid day")
	ErrInvalidMonth        = errors.New("invalid month")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrAmountTooLarge      = errors.New("amount exceeds ₦1,000,000,000,000")
	ErrEmptyDescription    = errors.New("empty description")
	ErrInvalidEntryType    = errors.New("invalid entry type")
	ErrInvalidExchangeRate = errors.New("exchange rate must be positive")
	ErrExchangeRateExpense = errors.New("exchange rate only applies to income")
	ErrEmptyCategoryName   = errors.New("empty category name")
	ErrEmptyCategory       = errors.New("empty category")
	ErrInvalidPeriod       = errors.New("invalid budget period")
	ErrInvalidLimit        = errors.New("budget limit must be positive")
)

func (t EntryType) Valid() bool {
	return t == Income || t == Expense
}

// ParseEntryType accepts "income"/"expense" in any case.
func ParseEntryType(s string) (EntryType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "income":
		return Income, nil
	case "expense":
		return Expense, nil
	}
	return "", ErrInvalidEntryType
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts "YYYY-MM-DD" or a full RFC 3339 timestamp.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	if parsed, err := ParseDate(s); err == nil {
		*d = parsed
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return err
	}
	*d = NewDate(t.Year(), int(t.Month()), t.Day())
	return nil
}

func (m Money) Validate() error {
	if m.Kobo < 0 {
		return ErrInvalidAmount
	}
	if m.Kobo > MaxKobo {
		return ErrAmountTooLarge
	}
	return nil
}

// NairaAmount returns the amount in naira, converting foreign receipts with
// their exchange rate.
func (t Transaction) NairaAmount() Money {
	if t.Type == Income && t.ExchangeRate.Valid {
		return MoneyFromDecimal(t.Amount.Decimal().Mul(t.ExchangeRate.Decimal))
	}
	return t.Amount
}

// IsForeign reports whether the entry is a foreign-currency receipt.
func (t Transaction) IsForeign() bool {
	return t.Type == Income && t.ExchangeRate.Valid
}

func (t Transaction) Validate() error {
	if !t.Type.Valid() {
		return ErrInvalidEntryType
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if t.ExchangeRate.Valid {
		if t.Type != Income {
			return ErrExchangeRateExpense
		}
		if !t.ExchangeRate.Decimal.IsPositive() {
			return ErrInvalidExchangeRate
		}
		if t.Amount.Decimal().Mul(t.ExchangeRate.Decimal).Shift(2).GreaterThan(decimal.NewFromInt(MaxKobo)) {
			return ErrAmountTooLarge
		}
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyCategoryName
	}
	if len(c.Name) > 60 {
		return errors.New("category name too long (max 60 characters)")
	}
	if !c.Type.Valid() {
		return ErrInvalidEntryType
	}
	return nil
}

func (p BudgetPeriod) Valid() bool {
	return p == Monthly || p == Yearly
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.CategoryID) == "" {
		return ErrEmptyCategory
	}
	if b.AmountLimit.Kobo <= 0 {
		return ErrInvalidLimit
	}
	if !b.Period.Valid() {
		return ErrInvalidPeriod
	}
	return nil
}

// Covers reports whether a date falls inside the budget period that contains ref.
func (p BudgetPeriod) Covers(d Date, ref time.Time) bool {
	switch p {
	case Monthly:
		return d.Year() == ref.Year() && d.Month() == int(ref.Month())
	case Yearly:
		return d.Year() == ref.Year()
	}
	return false
}

// DefaultCategories are seeded for every new user.
func DefaultCategories() []Category {
	return []Category{
		{Name: "Sales", Type: Income, Color: "#10B981", Icon: "Tag"},
		{Name: "Consulting", Type: Income, Color: "#3B82F6", Icon: "Tag"},
		{Name: "Rent", Type: Expense, Color: "#EF4444", Icon: "Tag"},
		{Name: "Utilities", Type: Expense, Color: "#F59E0B", Icon: "Tag"},
	}
}
