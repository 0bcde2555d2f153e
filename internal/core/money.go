// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts from strings
// and converting between kobo and naira representations.
package core

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// KoboPerNaira is the number of kobo in one naira.
const KoboPerNaira = 100

// MaxKobo bounds any single amount at ₦1,000,000,000,000. Twelve months of
// every profile figure stay well inside int64 below it.
const MaxKobo int64 = 1_000_000_000_000 * KoboPerNaira

// ParseDecimalToKobo converts a decimal naira string to kobo with proper rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and performs
// half-up rounding on the third decimal place. Zero is accepted; negative values,
// signs and malformed input are rejected with ErrInvalidAmount, and values above
// MaxKobo with ErrAmountTooLarge.
//
// Examples:
//   ParseDecimalToKobo("12.34") -> 1234, nil
//   ParseDecimalToKobo("12,34") -> 1234, nil
//   ParseDecimalToKobo("12.345") -> 1235, nil (rounds up)
//   ParseDecimalToKobo("12.344") -> 1234, nil (rounds down)
func ParseDecimalToKobo(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart + fracPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrAmountTooLarge
	}
	if iv > MaxKobo/KoboPerNaira {
		return 0, ErrAmountTooLarge
	}
	var fracKobo int64
	if len(fracPart) > 0 {
		fracKobo = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			fracKobo += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracKobo++
			}
		}
	}
	kobo := iv*KoboPerNaira + fracKobo
	if kobo > MaxKobo {
		return 0, ErrAmountTooLarge
	}
	return kobo, nil
}

// Naira builds a Money value from a whole naira amount.
func Naira(n int64) Money {
	return Money{Kobo: n * KoboPerNaira}
}

// MoneyFromDecimal converts a naira decimal to Money, rounding half away from zero to the kobo.
func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money{Kobo: d.Shift(2).Round(0).IntPart()}
}

// moneyFromInput converts a decoded naira amount, rejecting anything outside
// ±MaxKobo before the int64 conversion can wrap.
func moneyFromInput(d decimal.Decimal) (Money, error) {
	kobo := d.Shift(2).Round(0)
	if kobo.Abs().GreaterThan(decimal.NewFromInt(MaxKobo)) {
		return Money{}, ErrAmountTooLarge
	}
	return Money{Kobo: kobo.IntPart()}, nil
}

// Decimal returns the amount in naira as an exact decimal.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Kobo, -2)
}

// Float returns the naira value for display purposes only.
// Use kobo for calculations to avoid floating-point precision issues.
func (m Money) Float() float64 {
	return float64(m.Kobo) / KoboPerNaira
}

func (m Money) Add(o Money) Money { return Money{Kobo: m.Kobo + o.Kobo} }

func (m Money) Sub(o Money) Money { return Money{Kobo: m.Kobo - o.Kobo} }

// Times multiplies the amount by an integer factor (e.g. 12 to annualise a monthly figure).
func (m Money) Times(n int64) Money { return Money{Kobo: m.Kobo * n} }

func (m Money) IsZero() bool { return m.Kobo == 0 }

func (m Money) IsNegative() bool { return m.Kobo < 0 }

// MinMoney returns the smaller of two amounts.
func MinMoney(a, b Money) Money {
	if a.Kobo < b.Kobo {
		return a
	}
	return b
}

// MaxMoney returns the larger of two amounts.
func MaxMoney(a, b Money) Money {
	if a.Kobo > b.Kobo {
		return a
	}
	return b
}

// String formats the amount as "₦1,234.50".
func (m Money) String() string {
	kobo := m.Kobo
	neg := kobo < 0
	if neg {
		kobo = -kobo
	}
	whole := strconv.FormatInt(kobo/KoboPerNaira, 10)
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	frac := kobo % KoboPerNaira
	s := "₦" + b.String() + "." + strconv.FormatInt(frac/10, 10) + strconv.FormatInt(frac%10, 10)
	if neg {
		return "-" + s
	}
	return s
}

// MarshalJSON encodes the amount as a naira number (e.g. 1234.5).
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal().String()), nil
}

// UnmarshalJSON accepts a naira number or a quoted decimal string.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		m.Kobo = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(s)
	}
	d, err := decimal.NewFromString(string(data))
	if err != nil {
		return ErrInvalidAmount
	}
	v, err := moneyFromInput(d)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// UnmarshalText lets text-based formats (YAML profiles, env) carry naira amounts.
func (m *Money) UnmarshalText(text []byte) error {
	d, err := decimal.NewFromString(strings.TrimSpace(string(text)))
	if err != nil {
		return ErrInvalidAmount
	}
	v, err := moneyFromInput(d)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
