// Package tax computes annual income tax liability from a financial profile.
//
// The engine is a pure transform: it annualises the monthly profile figures,
// applies the category's reliefs, and runs the taxable income through a
// progressive band schedule. Rules are immutable once loaded, so a single
// Engine is safe for concurrent use.
package tax

import (
	"fmt"

	"github.com/shopspring/decimal"

	"bookngn/internal/core"
)

const monthsPerYear = 12

var hundred = decimal.NewFromInt(100)

// Input groups everything the engine needs. AdditionalIncome and
// BusinessExpenses are annual figures folded from the ledger by the caller.
type Input struct {
	Profile          core.FinancialProfile
	Category         core.TaxpayerCategory
	AdditionalIncome core.Money
	BusinessExpenses core.Money
}

// Deductions is the annual relief breakdown.
type Deductions struct {
	LifeInsurance    core.Money `json:"life_insurance"`
	HealthInsurance  core.Money `json:"health_insurance"`
	Pension          core.Money `json:"pension"`
	NHF              core.Money `json:"nhf"`
	RentRelief       core.Money `json:"rent_relief"`
	UtilityRelief    core.Money `json:"utility_relief"`
	MortgageInterest core.Money `json:"mortgage_interest"`
	BusinessExpenses core.Money `json:"business_expenses"`
}

// Total sums every relief.
func (d Deductions) Total() core.Money {
	return d.LifeInsurance.Add(d.HealthInsurance).Add(d.Pension).Add(d.NHF).
		Add(d.RentRelief).Add(d.UtilityRelief).Add(d.MortgageInterest).Add(d.BusinessExpenses)
}

// BandResult is the share of taxable income that fell in one band.
type BandResult struct {
	Lower     core.Money      `json:"lower"`
	Upper     core.Money      `json:"upper"`
	Unbounded bool            `json:"unbounded"`
	Rate      decimal.Decimal `json:"rate"`
	Taxed     core.Money      `json:"taxed"`
	Tax       core.Money      `json:"tax"`
}

type Result struct {
	Category        core.TaxpayerCategory `json:"category"`
	Schedule        string                `json:"schedule"`
	RuleSet         string                `json:"rule_set"`
	GrossIncome     core.Money            `json:"gross_income"`
	Deductions      Deductions            `json:"deductions"`
	TotalDeductions core.Money            `json:"total_deductions"`
	TaxableIncome   core.Money            `json:"taxable_income"`
	AnnualTax       core.Money            `json:"annual_tax"`
	MonthlyTax      core.Money            `json:"monthly_tax"`
	EffectiveRate   decimal.Decimal       `json:"effective_rate"`
	Bands           []BandResult          `json:"bands"`
}

type Engine struct {
	rules *Rules
}

// NewEngine builds an engine over a validated rule set. A nil rule set uses
// the embedded defaults.
func NewEngine(rules *Rules) *Engine {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Engine{rules: rules}
}

func (e *Engine) Rules() *Rules {
	return e.rules
}

// Compute runs the full calculation. Category falls back to the profile's own
// category when unset.
func (e *Engine) Compute(in Input) (Result, error) {
	cat := in.Category
	if cat == "" {
		cat = in.Profile.Category
	}
	if err := validateInput(in); err != nil {
		return Result{}, err
	}
	rule, ok := e.rules.Category(cat)
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownCategory, cat)
	}

	p := in.Profile
	gross := p.MonthlyIncome.Times(monthsPerYear).Add(in.AdditionalIncome)

	var d Deductions
	emp := p.EmployeeCount
	if rule.Reliefs.LifeInsurance.applies(emp) {
		d.LifeInsurance = p.LifeInsurance.Times(monthsPerYear)
	}
	if rule.Reliefs.HealthInsurance.applies(emp) {
		d.HealthInsurance = p.HealthInsurance.Times(monthsPerYear)
	}
	if rule.Reliefs.Pension.applies(emp) {
		d.Pension = p.VoluntaryPension.Times(monthsPerYear)
	}
	if rule.Reliefs.NHF.applies(emp) {
		d.NHF = p.VoluntaryNHF.Times(monthsPerYear)
	}
	if rule.Reliefs.Rent.applies(emp) {
		relief := core.MoneyFromDecimal(p.RentPaid.Times(monthsPerYear).Decimal().Mul(e.rules.RentRate))
		d.RentRelief = core.MinMoney(relief, e.rules.RentCap)
	}
	if rule.Reliefs.Utilities.applies(emp) {
		d.UtilityRelief = core.MoneyFromDecimal(
			p.MonthlyUtilities.Times(monthsPerYear).Decimal().Mul(p.UtilityPercentage).Div(hundred))
	}
	if rule.Reliefs.MortgageInterest.applies(emp) {
		d.MortgageInterest = p.MortgageInterest.Times(monthsPerYear)
	}
	if rule.Reliefs.BusinessExpenses.applies(emp) {
		d.BusinessExpenses = in.BusinessExpenses
	}

	total := d.Total()
	taxable := core.MaxMoney(core.Money{}, gross.Sub(total))

	sched, err := e.rules.ScheduleFor(cat, gross)
	if err != nil {
		return Result{}, err
	}
	bands, tax := applyBands(sched, taxable)

	return Result{
		Category:        cat,
		Schedule:        sched.Name,
		RuleSet:         e.rules.Name,
		GrossIncome:     gross,
		Deductions:      d,
		TotalDeductions: total,
		TaxableIncome:   taxable,
		AnnualTax:       tax,
		MonthlyTax:      core.Money{Kobo: tax.Kobo / monthsPerYear},
		EffectiveRate:   effectiveRate(tax, gross),
		Bands:           bands,
	}, nil
}

// applyBands taxes the slice of income inside each band; per-band tax is
// truncated to whole kobo.
func applyBands(s Schedule, taxable core.Money) ([]BandResult, core.Money) {
	out := make([]BandResult, 0, len(s.Bands))
	var total core.Money
	for _, b := range s.Bands {
		top := taxable
		if !b.Unbounded {
			top = core.MinMoney(taxable, b.Upper)
		}
		taxed := core.MaxMoney(core.Money{}, top.Sub(b.Lower))
		tax := core.Money{Kobo: decimal.NewFromInt(taxed.Kobo).Mul(b.Rate).Floor().IntPart()}
		total = total.Add(tax)
		out = append(out, BandResult{
			Lower:     b.Lower,
			Upper:     b.Upper,
			Unbounded: b.Unbounded,
			Rate:      b.Rate,
			Taxed:     taxed,
			Tax:       tax,
		})
	}
	return out, total
}

func effectiveRate(tax, gross core.Money) decimal.Decimal {
	if gross.Kobo <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(tax.Kobo).Mul(hundred).Div(decimal.NewFromInt(gross.Kobo)).Truncate(4)
}

func validateInput(in Input) error {
	p := in.Profile
	amounts := []struct {
		field string
		value core.Money
	}{
		{"monthly_income", p.MonthlyIncome},
		{"life_insurance_premium", p.LifeInsurance},
		{"health_insurance_premium", p.HealthInsurance},
		{"voluntary_pension", p.VoluntaryPension},
		{"voluntary_nhf", p.VoluntaryNHF},
		{"rent_paid", p.RentPaid},
		{"monthly_utilities", p.MonthlyUtilities},
		{"mortgage_interest", p.MortgageInterest},
		{"additional_income", in.AdditionalIncome},
		{"business_expenses", in.BusinessExpenses},
	}
	for _, a := range amounts {
		if a.value.IsNegative() {
			return &ValidationError{Field: a.field, Err: ErrNegativeAmount}
		}
		if a.value.Kobo > core.MaxKobo {
			return &ValidationError{Field: a.field, Err: core.ErrAmountTooLarge}
		}
	}
	if p.UtilityPercentage.IsNegative() || p.UtilityPercentage.GreaterThan(hundred) {
		return &ValidationError{Field: "utility_percentage", Err: ErrInvalidPercentage}
	}
	if p.EmployeeCount < 0 {
		return &ValidationError{Field: "employee_count", Err: ErrNegativeCount}
	}
	return nil
}

// ValidateProfile checks a profile the same way Compute does.
func ValidateProfile(p core.FinancialProfile) error {
	return validateInput(Input{Profile: p})
}
