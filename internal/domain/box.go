package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvestmentType selects how a box's balance grows.
type InvestmentType string

const (
	InvestmentNone   InvestmentType = "none"
	InvestmentCDBCDI InvestmentType = "cdb_cdi"
)

// MovementType classifies a box ledger entry.
type MovementType string

const (
	MovementIn    MovementType = "in"
	MovementOut   MovementType = "out"
	MovementYield MovementType = "yield"
)

// Box is a savings sub-account of a family, optionally yield-bearing.
type Box struct {
	ID                  uuid.UUID       `json:"id"`
	FamilyID            string          `json:"familyId"`
	Name                string          `json:"name"`
	IsEmergency         bool            `json:"isEmergency"`
	CurrentValue        decimal.Decimal `json:"currentValue"`
	PrincipalValue      decimal.Decimal `json:"principalValue"`
	FirstContributionAt *time.Time      `json:"firstContributionAt"`
	InvestmentType      InvestmentType  `json:"investmentType"`
	AutoCDI             bool            `json:"autoCdi"`
	CDIAnnualRate       decimal.Decimal `json:"cdiAnnualRate"`
	CDIPercentage       decimal.Decimal `json:"cdiPercentage"`
	LastYieldAppliedAt  *time.Time      `json:"lastYieldAppliedAt"`
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
	// Version is bumped on every successful save and guards concurrent writers.
	Version int `json:"-"`
}

// Yields reports whether the box accrues benchmark-indexed yield.
func (b *Box) Yields() bool {
	return b.InvestmentType == InvestmentCDBCDI
}

// EffectiveAnnualRatePercent returns cdiAnnualRate scaled by the contracted
// percentage of the benchmark. Zero for boxes without yield.
func (b *Box) EffectiveAnnualRatePercent() float64 {
	if !b.Yields() {
		return 0
	}
	return b.CDIAnnualRate.Mul(b.CDIPercentage).Div(hundred).InexactFloat64()
}

// Settings returns the investment configuration of the box.
func (b *Box) Settings() InvestmentSettings {
	return InvestmentSettings{
		Type:          b.InvestmentType,
		AutoCDI:       b.AutoCDI,
		CDIAnnualRate: b.CDIAnnualRate,
		CDIPercentage: b.CDIPercentage,
	}
}

// ApplySettings replaces the investment configuration of the box.
func (b *Box) ApplySettings(s InvestmentSettings) {
	b.InvestmentType = s.Type
	b.AutoCDI = s.AutoCDI
	b.CDIAnnualRate = s.CDIAnnualRate
	b.CDIPercentage = s.CDIPercentage
}

// BoxTransaction is an append-only ledger entry of a box.
type BoxTransaction struct {
	ID         uuid.UUID        `json:"id"`
	BoxID      uuid.UUID        `json:"boxId"`
	FamilyID   string           `json:"familyId"`
	Type       MovementType     `json:"type"`
	Value      decimal.Decimal  `json:"value"`
	GrossValue *decimal.Decimal `json:"grossValue"`
	NetValue   *decimal.Decimal `json:"netValue"`
	IRRate     *decimal.Decimal `json:"irRate"`
	IRTax      *decimal.Decimal `json:"irTax"`
	Date       time.Time        `json:"date"`
	CreatedAt  time.Time        `json:"createdAt"`
}

// NewBoxTransaction builds a ledger entry for the box dated at date.
func NewBoxTransaction(b *Box, typ MovementType, value decimal.Decimal, date time.Time) *BoxTransaction {
	return &BoxTransaction{
		ID:        uuid.New(),
		BoxID:     b.ID,
		FamilyID:  b.FamilyID,
		Type:      typ,
		Value:     value,
		Date:      date,
		CreatedAt: date,
	}
}

// InvestmentSettings is the normalized two-value investment model.
type InvestmentSettings struct {
	Type          InvestmentType
	AutoCDI       bool
	CDIAnnualRate decimal.Decimal
	CDIPercentage decimal.Decimal
}

// Equal reports whether both settings describe the same investment.
func (s InvestmentSettings) Equal(o InvestmentSettings) bool {
	return s.Type == o.Type &&
		s.AutoCDI == o.AutoCDI &&
		s.CDIAnnualRate.Equal(o.CDIAnnualRate) &&
		s.CDIPercentage.Equal(o.CDIPercentage)
}

// RawInvestment carries investment fields as persisted by any schema
// generation, including spellings and columns no longer written.
type RawInvestment struct {
	Type             string
	AutoCDI          *bool
	CDIAnnualRate    *decimal.Decimal
	CDIPercentage    *decimal.Decimal
	LegacyPercentage *decimal.Decimal
}

// ParseInvestmentType maps every known spelling onto the current model.
// The second result is false for unrecognized input.
func ParseInvestmentType(raw string) (InvestmentType, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.NewReplacer("-", "_", " ", "_", "/", "_").Replace(s)
	switch s {
	case "", "none", "nenhum", "sem_rendimento", "no_yield":
		return InvestmentNone, true
	case "cdb_cdi", "cdi", "cdb", "cdb_di", "cdi_cdb", "pos_fixado":
		return InvestmentCDBCDI, true
	}
	return InvestmentNone, false
}

// NormalizeInvestment converts a raw record into InvestmentSettings.
// Unknown types degrade to none; yield-bearing rows without a percentage
// track the benchmark 1:1; rows predating the auto flag are automatic when
// they carry no manual rate.
func NormalizeInvestment(raw RawInvestment) InvestmentSettings {
	typ, _ := ParseInvestmentType(raw.Type)
	if typ == InvestmentNone {
		return InvestmentSettings{Type: InvestmentNone}
	}

	annual := decimal.Zero
	if raw.CDIAnnualRate != nil && raw.CDIAnnualRate.IsPositive() {
		annual = *raw.CDIAnnualRate
	}

	pct := decimal.Zero
	switch {
	case raw.CDIPercentage != nil && raw.CDIPercentage.IsPositive():
		pct = *raw.CDIPercentage
	case raw.LegacyPercentage != nil && raw.LegacyPercentage.IsPositive():
		pct = *raw.LegacyPercentage
	default:
		pct = hundred
	}

	auto := annual.IsZero()
	if raw.AutoCDI != nil {
		auto = *raw.AutoCDI
	}

	return InvestmentSettings{
		Type:          InvestmentCDBCDI,
		AutoCDI:       auto,
		CDIAnnualRate: annual,
		CDIPercentage: pct,
	}
}
