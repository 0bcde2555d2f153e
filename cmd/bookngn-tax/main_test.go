package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookngn/internal/core"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRootCommand(t *testing.T) {
	cmd := newRootCmd()
	assert.Equal(t, "bookngn-tax", cmd.Use)
	assert.NotEmpty(t, cmd.Short)

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"estimate", "bands", "version"})
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "bookngn-tax dev")
}

func TestEstimateText(t *testing.T) {
	out, err := execute(t, "estimate", "--monthly-income", "500000", "--category", "self_employed")
	require.NoError(t, err)

	assert.Contains(t, out, "self_employed")
	assert.Contains(t, out, "₦6,000,000.00")
	assert.Contains(t, out, "₦870,000.00")
	assert.Contains(t, out, "14.5%")
	assert.Contains(t, out, "above ₦50,000,000.00")
}

func TestEstimateJSON(t *testing.T) {
	out, err := execute(t, "estimate",
		"--monthly-income", "500000",
		"--category", "SELF_EMPLOYED",
		"--business-expenses", "1000000",
		"--format", "json")
	require.NoError(t, err)

	var got struct {
		Category      core.TaxpayerCategory `json:"category"`
		GrossIncome   core.Money            `json:"gross_income"`
		TaxableIncome core.Money            `json:"taxable_income"`
		AnnualTax     core.Money            `json:"annual_tax"`
		Bands         []json.RawMessage     `json:"bands"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, core.SelfEmployed, got.Category)
	assert.Equal(t, core.Naira(6_000_000), got.GrossIncome)
	assert.Equal(t, core.Naira(5_000_000), got.TaxableIncome)
	// 2.2m at 15% + 2m at 18%
	assert.Equal(t, core.Naira(690_000), got.AnnualTax)
	assert.Len(t, got.Bands, 6)
}

func TestEstimateFromProfileFile(t *testing.T) {
	path := writeFile(t, "profile.yaml", `
monthly_income: 400000
rent_paid: 300000
taxpayer_category: Self-Employed
`)

	t.Run("file values", func(t *testing.T) {
		out, err := execute(t, "estimate", "--profile", path, "--format", "json")
		require.NoError(t, err)

		var got struct {
			Category   core.TaxpayerCategory `json:"category"`
			Deductions struct {
				RentRelief core.Money `json:"rent_relief"`
			} `json:"deductions"`
			GrossIncome core.Money `json:"gross_income"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		assert.Equal(t, core.SelfEmployed, got.Category)
		assert.Equal(t, core.Naira(4_800_000), got.GrossIncome)
		// 20% of 3.6m is above the cap
		assert.Equal(t, core.Naira(500_000), got.Deductions.RentRelief)
	})

	t.Run("flags override file", func(t *testing.T) {
		out, err := execute(t, "estimate", "--profile", path, "--monthly-income", "500000", "--rent", "0", "--format", "json")
		require.NoError(t, err)

		var got struct {
			GrossIncome   core.Money `json:"gross_income"`
			TaxableIncome core.Money `json:"taxable_income"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		assert.Equal(t, core.Naira(6_000_000), got.GrossIncome)
		assert.Equal(t, core.Naira(6_000_000), got.TaxableIncome)
	})
}

func TestEstimateZeroUtilityPercentage(t *testing.T) {
	out, err := execute(t, "estimate",
		"--monthly-income", "500000",
		"--utilities", "100000",
		"--utility-percentage", "0",
		"--category", "self_employed",
		"--format", "json")
	require.NoError(t, err)

	var got struct {
		Deductions struct {
			UtilityRelief core.Money `json:"utility_relief"`
		} `json:"deductions"`
		AnnualTax core.Money `json:"annual_tax"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.True(t, got.Deductions.UtilityRelief.IsZero())
	assert.Equal(t, core.Naira(870_000), got.AnnualTax)
}

func TestEstimateErrors(t *testing.T) {
	badProfile := writeFile(t, "bad.yaml", "monthly_income: 1000\nsalary: 5\n")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"invalid amount", []string{"estimate", "--monthly-income=-5"}, "invalid amount"},
		{"invalid category", []string{"estimate", "--category", "charity"}, "invalid taxpayer category"},
		{"invalid format", []string{"estimate", "--format", "xml"}, "unknown format"},
		{"negative employees", []string{"estimate", "--employees=-3"}, "--employees: must not be negative"},
		{"invalid percentage", []string{"estimate", "--utility-percentage", "lots"}, "invalid number"},
		{"out of range percentage", []string{"estimate", "--utilities", "1000", "--utility-percentage", "150"}, "utility"},
		{"unknown profile key", []string{"estimate", "--profile", badProfile}, "salary"},
		{"missing profile", []string{"estimate", "--profile", filepath.Join(t.TempDir(), "none.yaml")}, "read profile"},
		{"missing rules", []string{"estimate", "--rules", filepath.Join(t.TempDir(), "none.yaml")}, "load rules"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestEstimateCustomRules(t *testing.T) {
	rules := writeFile(t, "rules.yaml", `
name: flat
rent_relief:
  rate: 0.2
  cap: 500000
schedules:
  flat:
    bands:
      - rate: 0.1
categories:
  paye:
    schedule: flat
    reliefs:
      life_insurance: never
      health_insurance: never
      pension: never
      nhf: never
      rent: always
      utilities: never
      mortgage_interest: never
      business_expenses: never
`)

	out, err := execute(t, "estimate", "--rules", rules, "--monthly-income", "100000", "--format", "json")
	require.NoError(t, err)

	var got struct {
		RuleSet   string     `json:"rule_set"`
		AnnualTax core.Money `json:"annual_tax"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "flat", got.RuleSet)
	assert.Equal(t, core.Naira(120_000), got.AnnualTax)
}

func TestBands(t *testing.T) {
	t.Run("personal", func(t *testing.T) {
		out, err := execute(t, "bands", "--category", "PAYE")
		require.NoError(t, err)
		assert.Contains(t, out, "personal")
		assert.Contains(t, out, "₦800,000.00 - ₦3,000,000.00")
		assert.Contains(t, out, "15%")
		assert.Contains(t, out, "above ₦50,000,000.00")
	})

	t.Run("company lists the small schedule", func(t *testing.T) {
		out, err := execute(t, "bands", "--category", "llc")
		require.NoError(t, err)
		assert.Contains(t, out, "company_small")
		assert.Contains(t, out, "company_standard")
		assert.Contains(t, out, "₦100,000,000.00")
		assert.Contains(t, out, "30%")
	})

	t.Run("unknown category", func(t *testing.T) {
		_, err := execute(t, "bands", "--category", "trust")
		require.Error(t, err)
	})
}
