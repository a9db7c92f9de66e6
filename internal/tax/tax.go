// Package tax projects the regressive withholding taxes on box profit:
// the short-term financial-transaction tax (IOF) and income tax (IR).
package tax

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mtlprog/savebox/internal/domain"
)

// iofPercentByDay is the published regressive IOF table: the percentage of
// profit taxed when redeemed on holding day N (index N-1), N = 1..29.
var iofPercentByDay = [29]int64{
	96, 93, 90, 86, 83, 80, 76, 73, 70, 66,
	63, 60, 56, 53, 50, 46, 43, 40, 36, 33,
	30, 26, 23, 20, 16, 13, 10, 6, 3,
}

var (
	irShort    = decimal.RequireFromString("0.225")
	irMedium   = decimal.RequireFromString("0.20")
	irLong     = decimal.RequireFromString("0.175")
	irVeryLong = decimal.RequireFromString("0.15")
)

// IOFRate returns the short-term tax rate for a whole holding day count.
// Zero for day 30 onward and for non-positive holding periods.
func IOFRate(holdingDays int) decimal.Decimal {
	if holdingDays < 1 || holdingDays > len(iofPercentByDay) {
		return decimal.Zero
	}
	return decimal.New(iofPercentByDay[holdingDays-1], -2)
}

// IRRate returns the income tax rate for the total holding period.
func IRRate(holdingDays int) decimal.Decimal {
	switch {
	case holdingDays <= 180:
		return irShort
	case holdingDays <= 360:
		return irMedium
	case holdingDays <= 720:
		return irLong
	default:
		return irVeryLong
	}
}

// HoldingDays counts calendar days since the first contribution, the first
// day being day 1. Zero when there was no contribution.
func HoldingDays(firstContributionAt *time.Time, now time.Time) int {
	if firstContributionAt == nil || now.Before(*firstContributionAt) {
		return 0
	}
	return int(now.Sub(*firstContributionAt)/(24*time.Hour)) + 1
}

// Projection is a point-in-time tax breakdown of a box.
type Projection struct {
	HoldingDays     int             `json:"holdingDays"`
	GrossProfit     decimal.Decimal `json:"grossProfit"`
	IOFRate         decimal.Decimal `json:"iofRate"`
	IOFTax          decimal.Decimal `json:"iofTax"`
	IRRate          decimal.Decimal `json:"irRate"`
	IRTax           decimal.Decimal `json:"irTax"`
	TotalTax        decimal.Decimal `json:"totalTax"`
	NetCurrentValue decimal.Decimal `json:"netCurrentValue"`
	NetProfit       decimal.Decimal `json:"netProfit"`
}

// Project computes the taxes due if the whole balance were redeemed after
// holdingDays. IOF applies to gross profit first; IR to what remains.
func Project(currentValue, principalValue decimal.Decimal, holdingDays int) Projection {
	p := Projection{
		HoldingDays: holdingDays,
		GrossProfit: domain.NonNegative(currentValue.Sub(principalValue)),
		IOFRate:     IOFRate(holdingDays),
		IRRate:      IRRate(holdingDays),
	}

	iofTax, irTax := taxes(p.GrossProfit, p.IOFRate, p.IRRate)
	p.IOFTax = iofTax
	p.IRTax = irTax
	p.TotalTax = iofTax.Add(irTax)
	p.NetCurrentValue = domain.Round2(currentValue.Sub(p.TotalTax))
	p.NetProfit = domain.NonNegative(domain.Round2(p.NetCurrentValue.Sub(principalValue)))
	return p
}

// NetOf returns a profit amount after both taxes at holdingDays.
func NetOf(profit decimal.Decimal, holdingDays int) decimal.Decimal {
	profit = domain.NonNegative(profit)
	iofTax, irTax := taxes(profit, IOFRate(holdingDays), IRRate(holdingDays))
	return domain.NonNegative(domain.Round2(profit.Sub(iofTax).Sub(irTax)))
}

func taxes(profit, iofRate, irRate decimal.Decimal) (iofTax, irTax decimal.Decimal) {
	iofTax = domain.Round2(profit.Mul(iofRate))
	afterIOF := domain.NonNegative(profit.Sub(iofTax))
	irTax = domain.Round2(afterIOF.Mul(irRate))
	return iofTax, irTax
}
