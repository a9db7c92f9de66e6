package domain

import (
	"testing"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

func TestParseInvestmentType(t *testing.T) {
	tests := []struct {
		raw    string
		want   InvestmentType
		wantOK bool
	}{
		{"cdb_cdi", InvestmentCDBCDI, true},
		{"CDB-CDI", InvestmentCDBCDI, true},
		{"cdi", InvestmentCDBCDI, true},
		{" CDB ", InvestmentCDBCDI, true},
		{"none", InvestmentNone, true},
		{"", InvestmentNone, true},
		{"nenhum", InvestmentNone, true},
		{"stocks", InvestmentNone, false},
	}

	for _, tt := range tests {
		got, ok := ParseInvestmentType(tt.raw)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseInvestmentType(%q) = (%s, %v), want (%s, %v)", tt.raw, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestNormalizeInvestmentNoneClearsRates(t *testing.T) {
	s := NormalizeInvestment(RawInvestment{
		Type:          "none",
		AutoCDI:       lo.ToPtr(true),
		CDIAnnualRate: lo.ToPtr(decimal.NewFromInt(10)),
		CDIPercentage: lo.ToPtr(decimal.NewFromInt(100)),
	})

	if s.Type != InvestmentNone || s.AutoCDI || !s.CDIAnnualRate.IsZero() || !s.CDIPercentage.IsZero() {
		t.Errorf("none settings = %+v, want inert", s)
	}
}

func TestNormalizeInvestmentLegacyPercentage(t *testing.T) {
	s := NormalizeInvestment(RawInvestment{
		Type:             "cdi",
		CDIAnnualRate:    lo.ToPtr(decimal.NewFromInt(12)),
		LegacyPercentage: lo.ToPtr(decimal.NewFromInt(110)),
	})

	if s.Type != InvestmentCDBCDI {
		t.Fatalf("type = %s, want cdb_cdi", s.Type)
	}
	if !s.CDIPercentage.Equal(decimal.NewFromInt(110)) {
		t.Errorf("percentage = %s, want 110 from legacy column", s.CDIPercentage)
	}
	if s.AutoCDI {
		t.Error("row with manual rate and no auto flag should not be automatic")
	}
}

func TestNormalizeInvestmentDefaults(t *testing.T) {
	s := NormalizeInvestment(RawInvestment{Type: "cdb_cdi"})

	if !s.CDIPercentage.Equal(decimal.NewFromInt(100)) {
		t.Errorf("percentage = %s, want 100", s.CDIPercentage)
	}
	if !s.AutoCDI {
		t.Error("row without rate or flag should be automatic")
	}
}

func TestNormalizeInvestmentUnknownType(t *testing.T) {
	s := NormalizeInvestment(RawInvestment{Type: "crypto", CDIPercentage: lo.ToPtr(decimal.NewFromInt(100))})
	if s.Type != InvestmentNone {
		t.Errorf("type = %s, want none", s.Type)
	}
}

func TestEffectiveAnnualRatePercent(t *testing.T) {
	b := &Box{
		InvestmentType: InvestmentCDBCDI,
		CDIAnnualRate:  decimal.NewFromInt(10),
		CDIPercentage:  decimal.NewFromInt(110),
	}
	if got := b.EffectiveAnnualRatePercent(); got != 11 {
		t.Errorf("EffectiveAnnualRatePercent() = %v, want 11", got)
	}

	b.InvestmentType = InvestmentNone
	if got := b.EffectiveAnnualRatePercent(); got != 0 {
		t.Errorf("EffectiveAnnualRatePercent() for none = %v, want 0", got)
	}
}
