package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"bookngn/internal/core"
	"bookngn/internal/services"
	"bookngn/internal/tax"
)

// moneyFlags maps flag names onto the profile fields they set. Values are
// monthly naira amounts.
var moneyFlags = []struct {
	name  string
	usage string
	field func(*core.FinancialProfile) *core.Money
}{
	{"monthly-income", "monthly income", func(p *core.FinancialProfile) *core.Money { return &p.MonthlyIncome }},
	{"life-insurance", "monthly life insurance premium", func(p *core.FinancialProfile) *core.Money { return &p.LifeInsurance }},
	{"health-insurance", "monthly health insurance premium", func(p *core.FinancialProfile) *core.Money { return &p.HealthInsurance }},
	{"pension", "monthly voluntary pension contribution", func(p *core.FinancialProfile) *core.Money { return &p.VoluntaryPension }},
	{"nhf", "monthly voluntary NHF contribution", func(p *core.FinancialProfile) *core.Money { return &p.VoluntaryNHF }},
	{"rent", "monthly rent paid", func(p *core.FinancialProfile) *core.Money { return &p.RentPaid }},
	{"utilities", "monthly utility spend", func(p *core.FinancialProfile) *core.Money { return &p.MonthlyUtilities }},
	{"mortgage-interest", "monthly mortgage interest", func(p *core.FinancialProfile) *core.Money { return &p.MortgageInterest }},
}

func newEstimateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate annual tax for a profile",
		Long: `Estimate annual tax for a financial profile given by flags or a YAML file.
Flags override values read from --profile. Amounts are naira.`,
		Example: `  bookngn-tax estimate --monthly-income 500000 --category self_employed
  bookngn-tax estimate --profile profile.yaml --business-expenses 1200000 --format json`,
		Args: cobra.NoArgs,
		RunE: runEstimate,
	}

	f := cmd.Flags()
	f.String("profile", "", "YAML profile file")
	f.String("category", "", "taxpayer category: paye, self_employed or company (default: profile category)")
	f.String("additional-income", "0", "annual income on top of the profile, e.g. from the ledger")
	f.String("business-expenses", "0", "annual deductible business expenses")
	f.String("utility-percentage", "40", "business-use share of utilities, 0-100")
	f.Int("employees", 0, "number of employees")
	f.String("format", "text", "output format: text or json")
	for _, mf := range moneyFlags {
		f.String(mf.name, "0", mf.usage)
	}
	return cmd
}

func runEstimate(cmd *cobra.Command, args []string) error {
	engine, err := engineFor(cmd)
	if err != nil {
		return err
	}
	req, err := estimateRequestFromFlags(cmd)
	if err != nil {
		return err
	}

	result, err := services.NewTaxService(nil, engine, nil).Estimate(req)
	if err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	switch format {
	case "json":
		return writeResultJSON(cmd.OutOrStdout(), result)
	case "text":
		return writeResultText(cmd.OutOrStdout(), result)
	default:
		return fmt.Errorf("unknown format %q: must be text or json", format)
	}
}

func estimateRequestFromFlags(cmd *cobra.Command) (services.EstimateRequest, error) {
	f := cmd.Flags()
	profile := core.DefaultProfile()

	if path, _ := f.GetString("profile"); path != "" {
		p, err := loadProfile(path)
		if err != nil {
			return services.EstimateRequest{}, err
		}
		profile = p
	}

	for _, mf := range moneyFlags {
		if !f.Changed(mf.name) {
			continue
		}
		raw, _ := f.GetString(mf.name)
		m, err := parseMoneyFlag(mf.name, raw)
		if err != nil {
			return services.EstimateRequest{}, err
		}
		*mf.field(&profile) = m
	}
	if f.Changed("utility-percentage") {
		raw, _ := f.GetString("utility-percentage")
		pct, err := decimal.NewFromString(raw)
		if err != nil {
			return services.EstimateRequest{}, fmt.Errorf("--utility-percentage: invalid number %q", raw)
		}
		profile.UtilityPercentage = pct
	}
	if f.Changed("employees") {
		n, err := f.GetInt("employees")
		if err != nil {
			return services.EstimateRequest{}, fmt.Errorf("--employees: %w", err)
		}
		if n < 0 {
			return services.EstimateRequest{}, fmt.Errorf("--employees: must not be negative, got %d", n)
		}
		profile.EmployeeCount = n
	}

	req := services.EstimateRequest{Profile: profile}
	if raw, _ := f.GetString("category"); raw != "" {
		cat, err := core.ParseTaxpayerCategory(raw)
		if err != nil {
			return services.EstimateRequest{}, fmt.Errorf("--category: %w %q", err, raw)
		}
		req.Category = cat
	}

	for name, dst := range map[string]*core.Money{
		"additional-income": &req.AdditionalIncome,
		"business-expenses": &req.BusinessExpenses,
	} {
		raw, _ := f.GetString(name)
		m, err := parseMoneyFlag(name, raw)
		if err != nil {
			return services.EstimateRequest{}, err
		}
		*dst = m
	}
	return req, nil
}

func parseMoneyFlag(name, raw string) (core.Money, error) {
	kobo, err := core.ParseDecimalToKobo(raw)
	if err != nil {
		return core.Money{}, fmt.Errorf("--%s: invalid amount %q", name, raw)
	}
	return core.Money{Kobo: kobo}, nil
}

// loadProfile reads a YAML profile. Unknown keys are rejected and the legacy
// category spellings are accepted.
func loadProfile(path string) (core.FinancialProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.FinancialProfile{}, fmt.Errorf("read profile: %w", err)
	}

	p := core.DefaultProfile()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && err != io.EOF {
		return core.FinancialProfile{}, fmt.Errorf("parse profile %s: %w", path, err)
	}

	if p.Category != "" {
		cat, err := core.ParseTaxpayerCategory(string(p.Category))
		if err != nil {
			return core.FinancialProfile{}, fmt.Errorf("profile %s: %w %q", path, err, p.Category)
		}
		p.Category = cat
	} else {
		p.Category = core.PAYE
	}
	return p, nil
}

func writeResultJSON(w io.Writer, result tax.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func writeResultText(w io.Writer, r tax.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Category:\t%s\n", r.Category)
	fmt.Fprintf(tw, "Schedule:\t%s (%s)\n", r.Schedule, r.RuleSet)
	fmt.Fprintf(tw, "Gross income:\t%s\n", r.GrossIncome)
	fmt.Fprintln(tw, "Deductions:\t")
	for _, d := range []struct {
		label  string
		amount core.Money
	}{
		{"life insurance", r.Deductions.LifeInsurance},
		{"health insurance", r.Deductions.HealthInsurance},
		{"pension", r.Deductions.Pension},
		{"NHF", r.Deductions.NHF},
		{"rent relief", r.Deductions.RentRelief},
		{"utility relief", r.Deductions.UtilityRelief},
		{"mortgage interest", r.Deductions.MortgageInterest},
		{"business expenses", r.Deductions.BusinessExpenses},
	} {
		if !d.amount.IsZero() {
			fmt.Fprintf(tw, "  %s\t%s\n", d.label, d.amount)
		}
	}
	fmt.Fprintf(tw, "Total deductions:\t%s\n", r.TotalDeductions)
	fmt.Fprintf(tw, "Taxable income:\t%s\n", r.TaxableIncome)
	fmt.Fprintf(tw, "Annual tax:\t%s\n", r.AnnualTax)
	fmt.Fprintf(tw, "Monthly tax:\t%s\n", r.MonthlyTax)
	fmt.Fprintf(tw, "Effective rate:\t%s%%\n", r.EffectiveRate.String())
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	return writeBands(w, r.Bands, true)
}

// writeBands prints one row per band; withTax adds the taxed amount and tax.
func writeBands(w io.Writer, bands []tax.BandResult, withTax bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	if withTax {
		fmt.Fprintln(tw, "Band\tRate\tTaxed\tTax\t")
	} else {
		fmt.Fprintln(tw, "Band\tRate\t")
	}
	for _, b := range bands {
		rate := b.Rate.Mul(decimal.NewFromInt(100)).String() + "%"
		if withTax {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", bandRange(b.Lower, b.Upper, b.Unbounded), rate, b.Taxed, b.Tax)
		} else {
			fmt.Fprintf(tw, "%s\t%s\t\n", bandRange(b.Lower, b.Upper, b.Unbounded), rate)
		}
	}
	return tw.Flush()
}

func bandRange(lower, upper core.Money, unbounded bool) string {
	if unbounded {
		return "above " + lower.String()
	}
	return lower.String() + " - " + upper.String()
}
