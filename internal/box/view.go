package box

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mtlprog/savebox/internal/domain"
	"github.com/mtlprog/savebox/internal/tax"
	"github.com/mtlprog/savebox/internal/yield"
)

const labelNoYield = "No yield"

// View is the externally visible representation of a box, current as of
// its accrual.
type View struct {
	ID                  uuid.UUID             `json:"id"`
	FamilyID            string                `json:"familyId"`
	Name                string                `json:"name"`
	IsEmergency         bool                  `json:"isEmergency"`
	InvestmentType      domain.InvestmentType `json:"investmentType"`
	AutoCDI             bool                  `json:"autoCdi"`
	CDIAnnualRate       decimal.Decimal       `json:"cdiAnnualRate"`
	CDIPercentage       decimal.Decimal       `json:"cdiPercentage"`
	EffectiveAnnualRate decimal.Decimal       `json:"effectiveAnnualRate"`
	DailyRate           decimal.Decimal       `json:"dailyRate"`
	YieldLabel          string                `json:"yieldLabel"`

	CurrentValue   decimal.Decimal `json:"currentValue"`
	PrincipalValue decimal.Decimal `json:"principalValue"`
	tax.Projection

	EstimatedDailyGrossYield decimal.Decimal `json:"estimatedDailyGrossYield"`
	EstimatedDailyNetYield   decimal.Decimal `json:"estimatedDailyNetYield"`

	FirstContributionAt *time.Time `json:"firstContributionAt"`
	LastYieldAppliedAt  *time.Time `json:"lastYieldAppliedAt"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// Statement is a box view together with its ledger.
type Statement struct {
	Box     View                    `json:"box"`
	Entries []domain.BoxTransaction `json:"entries"`
}

// NewView projects taxes and tomorrow's yield for an accrued box at now.
func NewView(b *domain.Box, now time.Time) View {
	v := View{
		ID:                  b.ID,
		FamilyID:            b.FamilyID,
		Name:                b.Name,
		IsEmergency:         b.IsEmergency,
		InvestmentType:      b.InvestmentType,
		AutoCDI:             b.AutoCDI,
		CDIAnnualRate:       b.CDIAnnualRate,
		CDIPercentage:       b.CDIPercentage,
		YieldLabel:          Label(b),
		CurrentValue:        b.CurrentValue,
		PrincipalValue:      b.PrincipalValue,
		FirstContributionAt: b.FirstContributionAt,
		LastYieldAppliedAt:  b.LastYieldAppliedAt,
		CreatedAt:           b.CreatedAt,
		UpdatedAt:           b.UpdatedAt,
	}

	if !b.Yields() {
		v.Projection = tax.Projection{
			NetCurrentValue: b.CurrentValue,
		}
		return v
	}

	holding := tax.HoldingDays(b.FirstContributionAt, now)
	v.Projection = tax.Project(b.CurrentValue, b.PrincipalValue, holding)

	daily := yield.DailyRate(b)
	v.EffectiveAnnualRate = decimal.NewFromFloat(b.EffectiveAnnualRatePercent()).Round(6)
	v.DailyRate = decimal.NewFromFloat(daily * 100).Round(6)

	gross := domain.Round2(b.CurrentValue.Mul(decimal.NewFromFloat(daily)))
	v.EstimatedDailyGrossYield = gross
	v.EstimatedDailyNetYield = tax.NetOf(gross, holding+1)
	return v
}

// Label describes the yield of a box, e.g. "110% of CDI".
func Label(b *domain.Box) string {
	if !b.Yields() {
		return labelNoYield
	}
	return fmt.Sprintf("%s%% of CDI", b.CDIPercentage.String())
}
