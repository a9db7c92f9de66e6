package domain

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// BusinessDaysPerYear is the compounding convention of the benchmark.
const BusinessDaysPerYear = 252

const (
	moneyPrecision = 2
	ratePrecision  = 6
)

var hundred = decimal.NewFromInt(100)

// SafeParse parses a string into a decimal, returning zero for invalid or empty input.
// A decimal comma is accepted.
func SafeParse(value string) decimal.Decimal {
	value = strings.TrimSpace(strings.Replace(value, ",", ".", 1))
	if value == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Round2 rounds a monetary value to cents.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(moneyPrecision)
}

// Round6 rounds a rate to six decimal places.
func Round6(v float64) float64 {
	return decimal.NewFromFloat(v).Round(ratePrecision).InexactFloat64()
}

// NonNegative clamps d at zero.
func NonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// AnnualFromDailyPercent compounds a daily percentage over a business year
// and returns the annual percentage, rounded to six places.
func AnnualFromDailyPercent(dailyPercent float64) float64 {
	if dailyPercent <= 0 {
		return 0
	}
	return Round6((math.Pow(1+dailyPercent/100, BusinessDaysPerYear) - 1) * 100)
}

// DailyRateFromAnnualPercent converts an annual percentage into the
// equivalent daily rate as a fraction (not a percentage).
func DailyRateFromAnnualPercent(annualPercent float64) float64 {
	if annualPercent <= 0 {
		return 0
	}
	return math.Pow(1+annualPercent/100, 1.0/BusinessDaysPerYear) - 1
}
