package core

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseDecimalToKobo(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{"12.344", 1234, true},
		{" 2.50 ", 250, true},
		{"0", 0, true},
		{"-1", 0, false},
		{"+1", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"1,234.50", 0, false},
		{"", 0, false},
		{"1000000000000", MaxKobo, true},
		{"1000000000000.01", 0, false},
		{"99999999999999999999", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToKobo(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestMoneyString(t *testing.T) {
	cases := map[int64]string{
		0:          "₦0.00",
		5:          "₦0.05",
		123450:     "₦1,234.50",
		100000000:  "₦1,000,000.00",
		-250:       "-₦2.50",
		87000000:   "₦870,000.00",
		1234567899: "₦12,345,678.99",
	}
	for kobo, want := range cases {
		if got := (Money{Kobo: kobo}).String(); got != want {
			t.Errorf("Money{%d}.String() = %q, want %q", kobo, got, want)
		}
	}
}

func TestMoneyFromDecimalRoundsToKobo(t *testing.T) {
	d := decimal.RequireFromString("100").Mul(decimal.RequireFromString("1530.255"))
	if got := MoneyFromDecimal(d); got.Kobo != 15302550 {
		t.Fatalf("got %d", got.Kobo)
	}
	if got := MoneyFromDecimal(decimal.RequireFromString("0.005")); got.Kobo != 1 {
		t.Fatalf("half should round up, got %d", got.Kobo)
	}
}

func TestMoneyJSON(t *testing.T) {
	b, err := json.Marshal(Money{Kobo: 123450})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "1234.5" {
		t.Fatalf("marshal = %s", b)
	}

	var m Money
	for _, in := range []string{`1234.5`, `"1234.50"`} {
		if err := json.Unmarshal([]byte(in), &m); err != nil {
			t.Fatalf("%s: %v", in, err)
		}
		if m.Kobo != 123450 {
			t.Fatalf("%s: got %d", in, m.Kobo)
		}
	}
	if err := json.Unmarshal([]byte(`"abc"`), &m); err == nil {
		t.Fatal("expected error for non-numeric string")
	}
	for _, in := range []string{`1e18`, `"100000000000000000"`, `-1e15`} {
		if err := json.Unmarshal([]byte(in), &m); !errors.Is(err, ErrAmountTooLarge) {
			t.Fatalf("%s: err = %v, want ErrAmountTooLarge", in, err)
		}
	}
	if err := m.UnmarshalText([]byte("1e18")); !errors.Is(err, ErrAmountTooLarge) {
		t.Fatalf("text: err = %v", err)
	}
}

func TestMinMaxMoney(t *testing.T) {
	a, b := Naira(5), Naira(7)
	if MinMoney(a, b) != a || MaxMoney(a, b) != b {
		t.Fatal("min/max mismatch")
	}
	if Naira(3).Times(12).Kobo != 3600 {
		t.Fatal("times")
	}
}
