package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TaxpayerCategory selects the relief rules and band schedule applied to a profile.
type TaxpayerCategory string

const (
	PAYE         TaxpayerCategory = "paye"
	SelfEmployed TaxpayerCategory = "self_employed"
	Company      TaxpayerCategory = "company"
)

var ErrInvalidTaxpayerCategory = errors.New("invalid taxpayer category")

// DefaultUtilityPercentage is the business-use share assumed for utilities.
var DefaultUtilityPercentage = decimal.NewFromInt(40)

// ParseTaxpayerCategory accepts the canonical names plus the legacy spellings
// used by older clients (PAYE, SELF_EMPLOYED, Self-Employed, COMPANY, LLC).
func ParseTaxpayerCategory(s string) (TaxpayerCategory, error) {
	n := strings.ToLower(strings.TrimSpace(s))
	n = strings.NewReplacer("-", "_", " ", "_").Replace(n)
	switch n {
	case "paye":
		return PAYE, nil
	case "self_employed", "selfemployed":
		return SelfEmployed, nil
	case "company", "llc":
		return Company, nil
	}
	return "", ErrInvalidTaxpayerCategory
}

func (c TaxpayerCategory) Valid() bool {
	switch c {
	case PAYE, SelfEmployed, Company:
		return true
	}
	return false
}

// FinancialProfile holds the user's self-declared monthly figures.
type FinancialProfile struct {
	MonthlyIncome     Money            `json:"monthly_income" yaml:"monthly_income"`
	LifeInsurance     Money            `json:"life_insurance_premium" yaml:"life_insurance_premium"`
	HealthInsurance   Money            `json:"health_insurance_premium" yaml:"health_insurance_premium"`
	VoluntaryPension  Money            `json:"voluntary_pension" yaml:"voluntary_pension"`
	VoluntaryNHF      Money            `json:"voluntary_nhf" yaml:"voluntary_nhf"`
	RentPaid          Money            `json:"rent_paid" yaml:"rent_paid"`
	MonthlyUtilities  Money            `json:"monthly_utilities" yaml:"monthly_utilities"`
	UtilityPercentage decimal.Decimal  `json:"utility_percentage" yaml:"utility_percentage"`
	MortgageInterest  Money            `json:"mortgage_interest" yaml:"mortgage_interest"`
	EmployeeCount     int              `json:"employee_count" yaml:"employee_count"`
	Category          TaxpayerCategory `json:"taxpayer_category" yaml:"taxpayer_category"`
	Version           int64            `json:"version" yaml:"-"`
	UpdatedAt         time.Time        `json:"updated_at" yaml:"-"`
}

// DefaultProfile is used for users that never saved a profile.
func DefaultProfile() FinancialProfile {
	return FinancialProfile{
		UtilityPercentage: DefaultUtilityPercentage,
		Category:          PAYE,
	}
}
