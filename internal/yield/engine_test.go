package yield

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtlprog/savebox/internal/domain"
	"github.com/mtlprog/savebox/internal/rate"
)

type stubRates struct {
	snapshot domain.RateSnapshot
	err      error
	calls    int
}

func (s *stubRates) Resolve(_ context.Context, _ rate.ResolveOptions) (domain.RateSnapshot, error) {
	s.calls++
	return s.snapshot, s.err
}

func cdiBox(current string, last time.Time) *domain.Box {
	return &domain.Box{
		ID:                 uuid.New(),
		FamilyID:           "fam",
		CurrentValue:       decimal.RequireFromString(current),
		PrincipalValue:     decimal.RequireFromString(current),
		InvestmentType:     domain.InvestmentCDBCDI,
		CDIAnnualRate:      decimal.NewFromInt(10),
		CDIPercentage:      decimal.NewFromInt(100),
		LastYieldAppliedAt: &last,
		CreatedAt:          last,
	}
}

func TestAccrueCompoundsBusinessDays(t *testing.T) {
	e := NewEngine(nil, time.UTC)
	monday := date(2026, 10, 12, 10)
	b := cdiBox("1000", monday)

	entry, err := e.Accrue(context.Background(), b, monday.AddDate(0, 0, 7))
	require.NoError(t, err)
	require.NotNil(t, entry)

	// 1000 * (1.10^(5/252) - 1) = 1.89
	assert.True(t, entry.Value.Equal(decimal.RequireFromString("1.89")), "yield = %s", entry.Value)
	assert.Equal(t, domain.MovementYield, entry.Type)
	assert.Equal(t, b.ID, entry.BoxID)
	assert.True(t, b.CurrentValue.Equal(decimal.RequireFromString("1001.89")), "current = %s", b.CurrentValue)
	assert.True(t, b.PrincipalValue.Equal(decimal.NewFromInt(1000)), "principal must not change")
	assert.Equal(t, monday.AddDate(0, 0, 7), *b.LastYieldAppliedAt)
}

func TestAccrueIsIdempotentForSameNow(t *testing.T) {
	e := NewEngine(nil, time.UTC)
	monday := date(2026, 10, 12, 10)
	b := cdiBox("1000", monday)
	now := monday.AddDate(0, 0, 1)

	first, err := e.Accrue(context.Background(), b, now)
	require.NoError(t, err)
	require.NotNil(t, first)
	after := b.CurrentValue

	second, err := e.Accrue(context.Background(), b, now)
	require.NoError(t, err)
	assert.Nil(t, second)
	assert.True(t, b.CurrentValue.Equal(after))
	assert.Equal(t, now, *b.LastYieldAppliedAt)
}

func TestAccrueSameDayLaterDoesNotDoubleCount(t *testing.T) {
	e := NewEngine(nil, time.UTC)
	monday := date(2026, 10, 12, 10)
	b := cdiBox("1000", monday)

	_, err := e.Accrue(context.Background(), b, date(2026, 10, 13, 9))
	require.NoError(t, err)
	entry, err := e.Accrue(context.Background(), b, date(2026, 10, 13, 18))
	require.NoError(t, err)

	assert.Nil(t, entry)
	assert.True(t, b.CurrentValue.Equal(decimal.RequireFromString("1000.38")), "current = %s", b.CurrentValue)
}

func TestAccrueNoneIsInert(t *testing.T) {
	rates := &stubRates{err: errors.New("should not be called")}
	e := NewEngine(rates, time.UTC)
	monday := date(2026, 10, 12, 10)
	b := cdiBox("1000", monday)
	b.InvestmentType = domain.InvestmentNone
	b.AutoCDI = true

	entry, err := e.Accrue(context.Background(), b, monday.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.Equal(t, 0, rates.calls)
	assert.Equal(t, monday, *b.LastYieldAppliedAt)
	assert.True(t, b.CurrentValue.Equal(decimal.NewFromInt(1000)))
}

func TestAccrueNeverMovesBackwards(t *testing.T) {
	e := NewEngine(nil, time.UTC)
	monday := date(2026, 10, 12, 10)
	b := cdiBox("1000", monday)

	entry, err := e.Accrue(context.Background(), b, monday.Add(-time.Hour))
	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.Equal(t, monday, *b.LastYieldAppliedAt)
}

func TestAccrueWeekendOnlyAdvancesTimestamp(t *testing.T) {
	e := NewEngine(nil, time.UTC)
	friday := date(2026, 10, 16, 10)
	b := cdiBox("1000", friday)
	sunday := date(2026, 10, 18, 10)

	entry, err := e.Accrue(context.Background(), b, sunday)
	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.Equal(t, sunday, *b.LastYieldAppliedAt)
}

func TestAccrueZeroBalanceCreatesNoEntry(t *testing.T) {
	e := NewEngine(nil, time.UTC)
	monday := date(2026, 10, 12, 10)
	b := cdiBox("0", monday)

	entry, err := e.Accrue(context.Background(), b, monday.AddDate(0, 0, 7))
	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.Equal(t, monday.AddDate(0, 0, 7), *b.LastYieldAppliedAt)
}

func TestAccrueUsesNeverAccruedCreatedAt(t *testing.T) {
	e := NewEngine(nil, time.UTC)
	monday := date(2026, 10, 12, 10)
	b := cdiBox("1000", monday)
	b.LastYieldAppliedAt = nil

	entry, err := e.Accrue(context.Background(), b, monday.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.True(t, entry.Value.Equal(decimal.RequireFromString("0.38")))
}

func TestAccrueAutoUsesResolvedRate(t *testing.T) {
	rates := &stubRates{snapshot: domain.RateSnapshot{AnnualRatePercent: 14.9}}
	e := NewEngine(rates, time.UTC)
	monday := date(2026, 10, 12, 10)
	b := cdiBox("1000", monday)
	b.AutoCDI = true

	entry, err := e.Accrue(context.Background(), b, monday.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.True(t, b.CDIAnnualRate.Equal(decimal.RequireFromString("14.9")), "stored rate = %s", b.CDIAnnualRate)
	// 1000 * (1.149^(1/252) - 1) = 0.5513
	assert.True(t, entry.Value.Equal(decimal.RequireFromString("0.55")), "yield = %s", entry.Value)
}

func TestAccrueAutoFallsBackToStoredRate(t *testing.T) {
	rates := &stubRates{err: domain.ErrRateUnavailable}
	e := NewEngine(rates, time.UTC)
	monday := date(2026, 10, 12, 10)
	b := cdiBox("1000", monday)
	b.AutoCDI = true

	entry, err := e.Accrue(context.Background(), b, monday.AddDate(0, 0, 7))
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.True(t, b.CDIAnnualRate.Equal(decimal.NewFromInt(10)))
	assert.True(t, entry.Value.Equal(decimal.RequireFromString("1.89")))
}

func TestAccrueStrictPropagatesRateFailure(t *testing.T) {
	rates := &stubRates{err: domain.ErrRateUnavailable}
	e := NewEngine(rates, time.UTC)
	monday := date(2026, 10, 12, 10)
	b := cdiBox("1000", monday)
	b.AutoCDI = true

	entry, err := e.AccrueStrict(context.Background(), b, monday.AddDate(0, 0, 7))
	assert.ErrorIs(t, err, domain.ErrRateUnavailable)
	assert.Nil(t, entry)
	assert.True(t, b.CurrentValue.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, monday, *b.LastYieldAppliedAt)
}

func TestAccrueAutoWithoutAnyRatePostpones(t *testing.T) {
	rates := &stubRates{err: domain.ErrRateUnavailable}
	e := NewEngine(rates, time.UTC)
	monday := date(2026, 10, 12, 10)
	b := cdiBox("1000", monday)
	b.AutoCDI = true
	b.CDIAnnualRate = decimal.Zero

	entry, err := e.Accrue(context.Background(), b, monday.AddDate(0, 0, 7))
	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.Equal(t, monday, *b.LastYieldAppliedAt)
}

func TestDailyRate(t *testing.T) {
	b := cdiBox("1000", date(2026, 10, 12, 10))
	assert.InDelta(t, 0.000378287, DailyRate(b), 1e-9)

	b.InvestmentType = domain.InvestmentNone
	assert.Zero(t, DailyRate(b))
}
