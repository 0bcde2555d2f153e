package tax

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"bookngn/internal/core"
)

//go:embed rules/nta2025.yaml
var defaultRulesYAML []byte

// Eligibility states when a relief applies to a category.
type Eligibility string

const (
	Always        Eligibility = "always"
	Never         Eligibility = "never"
	WithEmployees Eligibility = "with_employees"
)

func (e Eligibility) applies(employees int) bool {
	switch e {
	case Always:
		return true
	case WithEmployees:
		return employees > 0
	}
	return false
}

// Band is one step of a progressive schedule. Amounts are annual.
type Band struct {
	Lower     core.Money
	Upper     core.Money
	Unbounded bool
	Rate      decimal.Decimal
}

type Schedule struct {
	Name  string
	Bands []Band
}

type Reliefs struct {
	LifeInsurance    Eligibility `yaml:"life_insurance"`
	HealthInsurance  Eligibility `yaml:"health_insurance"`
	Pension          Eligibility `yaml:"pension"`
	NHF              Eligibility `yaml:"nhf"`
	Rent             Eligibility `yaml:"rent"`
	Utilities        Eligibility `yaml:"utilities"`
	MortgageInterest Eligibility `yaml:"mortgage_interest"`
	BusinessExpenses Eligibility `yaml:"business_expenses"`
}

// CategoryRule binds a taxpayer category to its schedule and reliefs. When
// SmallSchedule is set it replaces Schedule for gross income up to TurnoverLimit.
type CategoryRule struct {
	Schedule      string
	SmallSchedule string
	TurnoverLimit core.Money
	Reliefs       Reliefs
}

// Rules is a validated, immutable tax rule set.
type Rules struct {
	Name       string
	RentRate   decimal.Decimal
	RentCap    core.Money
	schedules  map[string]Schedule
	categories map[core.TaxpayerCategory]CategoryRule
}

type rulesFile struct {
	Name       string `yaml:"name"`
	RentRelief struct {
		Rate decimal.Decimal `yaml:"rate"`
		Cap  decimal.Decimal `yaml:"cap"`
	} `yaml:"rent_relief"`
	Schedules map[string]struct {
		Bands []struct {
			Upper *decimal.Decimal `yaml:"upper"`
			Rate  decimal.Decimal  `yaml:"rate"`
		} `yaml:"bands"`
	} `yaml:"schedules"`
	Categories map[string]struct {
		Schedule     string `yaml:"schedule"`
		SmallCompany *struct {
			Schedule      string          `yaml:"schedule"`
			TurnoverLimit decimal.Decimal `yaml:"turnover_limit"`
		} `yaml:"small_company"`
		Reliefs Reliefs `yaml:"reliefs"`
	} `yaml:"categories"`
}

// DefaultRules returns the embedded rule set.
func DefaultRules() *Rules {
	r, err := ParseRules(defaultRulesYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded tax rules: %v", err))
	}
	return r
}

// LoadRules reads a rule set from a YAML file.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tax rules %s: %w", path, err)
	}
	r, err := ParseRules(data)
	if err != nil {
		return nil, fmt.Errorf("tax rules %s: %w", path, err)
	}
	return r, nil
}

// ParseRules decodes and validates a YAML rule set.
func ParseRules(data []byte) (*Rules, error) {
	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}

	var problems []string
	r := &Rules{
		Name:       f.Name,
		RentRate:   f.RentRelief.Rate,
		RentCap:    core.MoneyFromDecimal(f.RentRelief.Cap),
		schedules:  make(map[string]Schedule, len(f.Schedules)),
		categories: make(map[core.TaxpayerCategory]CategoryRule, len(f.Categories)),
	}
	if r.RentRate.IsNegative() || r.RentRate.GreaterThan(decimal.NewFromInt(1)) {
		problems = append(problems, "rent_relief.rate must be between 0 and 1")
	}
	if r.RentCap.IsNegative() {
		problems = append(problems, "rent_relief.cap must not be negative")
	}

	for name, s := range f.Schedules {
		sched := Schedule{Name: name}
		lower := core.Money{}
		for i, b := range s.Bands {
			if b.Rate.IsNegative() || b.Rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
				problems = append(problems, fmt.Sprintf("schedule %s band %d: rate must be in [0, 1)", name, i+1))
			}
			band := Band{Lower: lower, Rate: b.Rate}
			last := i == len(s.Bands)-1
			switch {
			case b.Upper == nil && !last:
				problems = append(problems, fmt.Sprintf("schedule %s band %d: only the final band may be unbounded", name, i+1))
			case b.Upper == nil:
				band.Unbounded = true
			case last:
				problems = append(problems, fmt.Sprintf("schedule %s: final band must be unbounded", name))
			default:
				band.Upper = core.MoneyFromDecimal(*b.Upper)
				if band.Upper.Kobo <= lower.Kobo {
					problems = append(problems, fmt.Sprintf("schedule %s band %d: bounds must be ascending", name, i+1))
				}
				lower = band.Upper
			}
			sched.Bands = append(sched.Bands, band)
		}
		if len(sched.Bands) == 0 {
			problems = append(problems, fmt.Sprintf("schedule %s has no bands", name))
		}
		r.schedules[name] = sched
	}

	for name, c := range f.Categories {
		cat, err := core.ParseTaxpayerCategory(name)
		if err != nil {
			problems = append(problems, fmt.Sprintf("unknown category %q", name))
			continue
		}
		rule := CategoryRule{Schedule: c.Schedule, Reliefs: c.Reliefs}
		if _, ok := r.schedules[c.Schedule]; !ok {
			problems = append(problems, fmt.Sprintf("category %s references unknown schedule %q", name, c.Schedule))
		}
		if c.SmallCompany != nil {
			rule.SmallSchedule = c.SmallCompany.Schedule
			rule.TurnoverLimit = core.MoneyFromDecimal(c.SmallCompany.TurnoverLimit)
			if _, ok := r.schedules[rule.SmallSchedule]; !ok {
				problems = append(problems, fmt.Sprintf("category %s references unknown schedule %q", name, rule.SmallSchedule))
			}
		}
		for field, e := range rule.Reliefs.all() {
			switch e {
			case Always, Never, WithEmployees:
			case "":
				problems = append(problems, fmt.Sprintf("category %s: relief %s is not set", name, field))
			default:
				problems = append(problems, fmt.Sprintf("category %s: relief %s has invalid eligibility %q", name, field, e))
			}
		}
		r.categories[cat] = rule
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return nil, fmt.Errorf("%w:\n- %s", ErrInvalidRules, strings.Join(problems, "\n- "))
	}
	return r, nil
}

func (rl Reliefs) all() map[string]Eligibility {
	return map[string]Eligibility{
		"life_insurance":    rl.LifeInsurance,
		"health_insurance":  rl.HealthInsurance,
		"pension":           rl.Pension,
		"nhf":               rl.NHF,
		"rent":              rl.Rent,
		"utilities":         rl.Utilities,
		"mortgage_interest": rl.MortgageInterest,
		"business_expenses": rl.BusinessExpenses,
	}
}

// Category returns the rule for a taxpayer category.
func (r *Rules) Category(c core.TaxpayerCategory) (CategoryRule, bool) {
	rule, ok := r.categories[c]
	return rule, ok
}

// ScheduleFor resolves the band schedule for a category and annual gross income.
func (r *Rules) ScheduleFor(c core.TaxpayerCategory, gross core.Money) (Schedule, error) {
	rule, ok := r.categories[c]
	if !ok {
		return Schedule{}, fmt.Errorf("%w: %q", ErrUnknownCategory, c)
	}
	name := rule.Schedule
	if rule.SmallSchedule != "" && gross.Kobo <= rule.TurnoverLimit.Kobo {
		name = rule.SmallSchedule
	}
	s, ok := r.schedules[name]
	if !ok {
		return Schedule{}, fmt.Errorf("%w: no schedule %q for %q", ErrUnknownCategory, name, c)
	}
	return s, nil
}

// Categories lists configured categories in a stable order.
func (r *Rules) Categories() []core.TaxpayerCategory {
	out := make([]core.TaxpayerCategory, 0, len(r.categories))
	for c := range r.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Schedule returns a band schedule by name.
func (r *Rules) Schedule(name string) (Schedule, bool) {
	s, ok := r.schedules[name]
	return s, ok
}
