package domain

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestSafeParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"valid integer", "100", "100"},
		{"valid decimal", "3.14", "3.14"},
		{"decimal comma", "0,040168", "0.040168"},
		{"zero", "0", "0"},
		{"negative", "-5.5", "-5.5"},
		{"empty string", "", "0"},
		{"invalid string", "abc", "0"},
		{"whitespace", "  ", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SafeParse(tt.input)
			want, _ := decimal.NewFromString(tt.want)
			if !got.Equal(want) {
				t.Errorf("SafeParse(%q) = %s, want %s", tt.input, got, want)
			}
		})
	}
}

func TestRound2(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"7.645", "7.65"},
		{"7.644", "7.64"},
		{"926.35", "926.35"},
		{"0.005", "0.01"},
		{"0.004", "0"},
	}

	for _, tt := range tests {
		got := Round2(decimal.RequireFromString(tt.in))
		if !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("Round2(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestAnnualFromDailyPercent(t *testing.T) {
	// 0.055131% a day is the published daily factor for a 14.9% year.
	got := AnnualFromDailyPercent(0.055131)
	if math.Abs(got-14.9) > 0.01 {
		t.Errorf("AnnualFromDailyPercent(0.055131) = %v, want ~14.9", got)
	}
	if AnnualFromDailyPercent(0) != 0 {
		t.Error("zero daily rate should annualize to zero")
	}
	if AnnualFromDailyPercent(-1) != 0 {
		t.Error("negative daily rate should annualize to zero")
	}
}

func TestDailyRateRoundTrip(t *testing.T) {
	for _, annual := range []float64{0.5, 6.5, 10, 13.65, 14.9, 25} {
		daily := DailyRateFromAnnualPercent(annual)
		back := (math.Pow(1+daily, BusinessDaysPerYear) - 1) * 100
		if math.Abs(back-annual) > 0.01 {
			t.Errorf("annual %v -> daily %v -> annual %v, want within 0.01", annual, daily, back)
		}

		viaPercent := AnnualFromDailyPercent(daily * 100)
		if math.Abs(viaPercent-annual) > 0.01 {
			t.Errorf("AnnualFromDailyPercent(%v) = %v, want ~%v", daily*100, viaPercent, annual)
		}
	}
}

func TestDailyRateFromAnnualPercentNonPositive(t *testing.T) {
	if DailyRateFromAnnualPercent(0) != 0 || DailyRateFromAnnualPercent(-3) != 0 {
		t.Error("non-positive annual rate should give zero daily rate")
	}
}

func TestNonNegative(t *testing.T) {
	if !NonNegative(decimal.NewFromInt(-1)).IsZero() {
		t.Error("negative should clamp to zero")
	}
	if !NonNegative(decimal.NewFromInt(3)).Equal(decimal.NewFromInt(3)) {
		t.Error("positive should pass through")
	}
}
