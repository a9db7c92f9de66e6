// Package yield compounds benchmark-indexed yield onto savings boxes.
package yield

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mtlprog/savebox/internal/domain"
	"github.com/mtlprog/savebox/internal/rate"
)

// RateResolver supplies the current benchmark rate.
type RateResolver interface {
	Resolve(ctx context.Context, opts rate.ResolveOptions) (domain.RateSnapshot, error)
}

// Engine brings box balances up to date.
type Engine struct {
	rates RateResolver
	loc   *time.Location
}

// NewEngine creates an Engine counting business days in loc.
func NewEngine(rates RateResolver, loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{rates: rates, loc: loc}
}

// Location returns the calendar used for day counting.
func (e *Engine) Location() *time.Location {
	return e.loc
}

// SyncRate refreshes the stored annual rate of an automatic box. On
// failure a strict caller gets the error; otherwise the last stored rate is
// kept and nil is returned.
func (e *Engine) SyncRate(ctx context.Context, b *domain.Box, strict bool) error {
	if !b.Yields() || !b.AutoCDI || e.rates == nil {
		return nil
	}

	s, err := e.rates.Resolve(ctx, rate.ResolveOptions{AllowStale: true})
	if err != nil {
		if strict {
			return fmt.Errorf("resolving benchmark rate for box %s: %w", b.ID, err)
		}
		slog.Warn("yield: benchmark rate unavailable, keeping last known rate",
			"box", b.ID, "cdiAnnualRate", b.CDIAnnualRate, "error", err)
		return nil
	}

	b.CDIAnnualRate = decimal.NewFromFloat(s.AnnualRatePercent).Round(6)
	return nil
}

// Accrue compounds yield for the business days elapsed since the last
// accrual and advances LastYieldAppliedAt to now. It returns the yield
// ledger entry to append, or nil when nothing grew. Boxes without yield
// are left untouched.
func (e *Engine) Accrue(ctx context.Context, b *domain.Box, now time.Time) (*domain.BoxTransaction, error) {
	return e.accrue(ctx, b, now, false)
}

// AccrueStrict is Accrue failing with domain.ErrRateUnavailable instead of
// falling back to the stored rate.
func (e *Engine) AccrueStrict(ctx context.Context, b *domain.Box, now time.Time) (*domain.BoxTransaction, error) {
	return e.accrue(ctx, b, now, true)
}

func (e *Engine) accrue(ctx context.Context, b *domain.Box, now time.Time, strict bool) (*domain.BoxTransaction, error) {
	if !b.Yields() {
		return nil, nil
	}

	start := b.CreatedAt
	if b.LastYieldAppliedAt != nil {
		start = *b.LastYieldAppliedAt
	}
	if now.Before(start) {
		return nil, nil
	}

	if err := e.SyncRate(ctx, b, strict); err != nil {
		return nil, err
	}
	// No rate was ever resolved: keep the days for a later accrual.
	if !b.CDIAnnualRate.IsPositive() && b.AutoCDI {
		slog.Warn("yield: no benchmark rate known, postponing accrual", "box", b.ID)
		return nil, nil
	}

	days := BusinessDays(start, now, e.loc)
	daily := domain.DailyRateFromAnnualPercent(b.EffectiveAnnualRatePercent())
	b.LastYieldAppliedAt = &now
	if days <= 0 || daily <= 0 {
		return nil, nil
	}

	growth := math.Pow(1+daily, float64(days)) - 1
	value := domain.Round2(b.CurrentValue.Mul(decimal.NewFromFloat(growth)))
	if !value.IsPositive() {
		return nil, nil
	}

	b.CurrentValue = domain.Round2(b.CurrentValue.Add(value))

	entry := domain.NewBoxTransaction(b, domain.MovementYield, value, now)
	entry.GrossValue = &value

	return entry, nil
}

// DailyRate returns the box's effective daily rate as a fraction.
func DailyRate(b *domain.Box) float64 {
	return domain.DailyRateFromAnnualPercent(b.EffectiveAnnualRatePercent())
}
