// Package box orchestrates savings boxes: accrual-on-read, deposits and
// withdrawals, configuration changes and views.
package box

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/mtlprog/savebox/internal/domain"
	"github.com/mtlprog/savebox/internal/metrics"
	"github.com/mtlprog/savebox/internal/tax"
)

const maxSaveAttempts = 3

var defaultCDIPercentage = decimal.NewFromInt(100)

// Accruer brings a box's balance up to date.
type Accruer interface {
	Accrue(ctx context.Context, b *domain.Box, now time.Time) (*domain.BoxTransaction, error)
	AccrueStrict(ctx context.Context, b *domain.Box, now time.Time) (*domain.BoxTransaction, error)
	SyncRate(ctx context.Context, b *domain.Box, strict bool) error
}

// MovementInput is a deposit ("in") or withdrawal ("out") request.
type MovementInput struct {
	Value decimal.Decimal `json:"value"`
	Type  string          `json:"type"`
}

// Input carries box creation and update fields. Nil fields keep the
// current (or default) value.
type Input struct {
	Name            *string
	IsEmergency     *bool
	InvestmentType  *string
	CDIPercentage   *decimal.Decimal
	CDIAnnualRate   *decimal.Decimal
	AutoCDI         *bool
	InitialValue    *decimal.Decimal
	ApplicationDate *time.Time
}

// Service manages boxes of a family.
type Service struct {
	repo    Repository
	accruer Accruer
	locks   *boxLocks
	now     func() time.Time
}

// NewService creates a new box Service.
func NewService(repo Repository, accruer Accruer) *Service {
	return &Service{
		repo:    repo,
		accruer: accruer,
		locks:   newBoxLocks(),
		now:     time.Now,
	}
}

// List returns the family's boxes, each accrued up to now.
func (s *Service) List(ctx context.Context, familyID string) ([]View, error) {
	boxes, err := s.repo.ListBoxes(ctx, familyID)
	if err != nil {
		return nil, fmt.Errorf("listing boxes: %w", err)
	}

	views := make([]View, 0, len(boxes))
	for _, b := range boxes {
		v, err := s.Get(ctx, familyID, b.ID)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

// ListAll returns every box of every family, accrued up to now.
func (s *Service) ListAll(ctx context.Context) ([]View, error) {
	boxes, err := s.repo.ListAllBoxes(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing all boxes: %w", err)
	}

	views := make([]View, 0, len(boxes))
	for _, b := range boxes {
		v, err := s.Get(ctx, b.FamilyID, b.ID)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

// Get returns one box accrued up to now.
func (s *Service) Get(ctx context.Context, familyID string, id uuid.UUID) (View, error) {
	b, now, err := s.withBox(ctx, familyID, id, nil)
	if err != nil {
		return View{}, err
	}
	return NewView(b, now), nil
}

// Statement returns the accrued box and its full ledger.
func (s *Service) Statement(ctx context.Context, familyID string, id uuid.UUID) (Statement, error) {
	v, err := s.Get(ctx, familyID, id)
	if err != nil {
		return Statement{}, err
	}
	entries, err := s.repo.ListLedgerEntries(ctx, id)
	if err != nil {
		return Statement{}, fmt.Errorf("getting statement: %w", err)
	}
	return Statement{Box: v, Entries: entries}, nil
}

// Create validates the input and stores a new box. A positive initial value
// is booked as a deposit on the application date and accrued up to now.
func (s *Service) Create(ctx context.Context, familyID string, in Input) (View, error) {
	now := s.now()

	name := strings.TrimSpace(lo.FromPtr(in.Name))
	if name == "" {
		return View{}, fmt.Errorf("%w: name is required", domain.ErrValidation)
	}

	settings, err := in.settings(domain.InvestmentSettings{Type: domain.InvestmentNone}, true)
	if err != nil {
		return View{}, err
	}

	initial := domain.Round2(lo.FromPtr(in.InitialValue))
	if initial.IsNegative() {
		return View{}, fmt.Errorf("%w: initialValue must not be negative", domain.ErrValidation)
	}
	applied := lo.FromPtrOr(in.ApplicationDate, now)
	if applied.After(now) {
		return View{}, fmt.Errorf("%w: applicationDate is in the future", domain.ErrValidation)
	}

	b := &domain.Box{
		ID:             uuid.New(),
		FamilyID:       familyID,
		Name:           name,
		IsEmergency:    lo.FromPtr(in.IsEmergency),
		CurrentValue:   decimal.Zero,
		PrincipalValue: decimal.Zero,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	b.ApplySettings(settings)

	var entries []*domain.BoxTransaction
	if initial.IsPositive() {
		entries = append(entries, deposit(b, initial, applied))
		b.LastYieldAppliedAt = &applied
	}

	accrue := s.accruer.Accrue
	if b.AutoCDI && !b.CDIAnnualRate.IsPositive() {
		accrue = s.accruer.AccrueStrict
	}
	entry, err := accrue(ctx, b, now)
	if err != nil {
		return View{}, err
	}
	if entry != nil {
		entries = append(entries, entry)
	}

	if err := s.repo.CreateBox(ctx, b, entries); err != nil {
		return View{}, err
	}
	recordYield(entries)

	slog.Info("box created", "box", b.ID, "family", familyID, "investmentType", b.InvestmentType)
	return NewView(b, now), nil
}

// Update accrues under the current configuration, then applies changes.
func (s *Service) Update(ctx context.Context, familyID string, id uuid.UUID, in Input) (View, error) {
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return View{}, fmt.Errorf("%w: name must not be empty", domain.ErrValidation)
	}

	b, now, err := s.withBox(ctx, familyID, id, func(b *domain.Box, now time.Time) ([]*domain.BoxTransaction, error) {
		before := b.Settings()
		settings, err := in.settings(before, false)
		if err != nil {
			return nil, err
		}

		wasYielding := b.Yields()
		if in.Name != nil {
			b.Name = strings.TrimSpace(*in.Name)
		}
		if in.IsEmergency != nil {
			b.IsEmergency = *in.IsEmergency
		}
		b.ApplySettings(settings)

		// Days spent without yield must not be credited later.
		if b.Yields() && !wasYielding {
			b.LastYieldAppliedAt = &now
		}
		// A box that never had a rate may still be renamed while the source is down.
		strict := !settings.Equal(before) && !b.CDIAnnualRate.IsPositive()
		if err := s.accruer.SyncRate(ctx, b, strict); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		return View{}, err
	}
	return NewView(b, now), nil
}

// Delete removes a box and its ledger.
func (s *Service) Delete(ctx context.Context, familyID string, id uuid.UUID) error {
	unlock := s.locks.lock(id)
	defer unlock()

	if _, err := s.find(ctx, familyID, id); err != nil {
		return err
	}
	if err := s.repo.DeleteLedgerEntriesForBox(ctx, id); err != nil {
		return err
	}
	if err := s.repo.DeleteBox(ctx, id); err != nil {
		return err
	}

	slog.Info("box deleted", "box", id, "family", familyID)
	return nil
}

// Move applies a deposit or withdrawal after bringing the box up to date.
func (s *Service) Move(ctx context.Context, familyID string, id uuid.UUID, in MovementInput) (View, error) {
	value := domain.Round2(in.Value)
	if !value.IsPositive() {
		return View{}, fmt.Errorf("%w: value must be a positive amount", domain.ErrInvalidInput)
	}
	typ := domain.MovementType(strings.ToLower(strings.TrimSpace(in.Type)))
	if typ != domain.MovementIn && typ != domain.MovementOut {
		return View{}, fmt.Errorf("%w: unknown movement type %q", domain.ErrInvalidInput, in.Type)
	}

	b, now, err := s.withBox(ctx, familyID, id, func(b *domain.Box, now time.Time) ([]*domain.BoxTransaction, error) {
		if typ == domain.MovementIn {
			return []*domain.BoxTransaction{deposit(b, value, now)}, nil
		}
		entry, err := withdraw(b, value, now)
		if err != nil {
			return nil, err
		}
		return []*domain.BoxTransaction{entry}, nil
	})
	if err != nil {
		return View{}, err
	}

	metrics.BoxMovementsTotal.WithLabelValues(string(typ)).Inc()
	return NewView(b, now), nil
}

// AccrueAll brings every yield-bearing box up to date and returns how many
// were processed. Failures are logged and joined.
func (s *Service) AccrueAll(ctx context.Context) (int, error) {
	boxes, err := s.repo.ListAllBoxes(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing boxes for accrual: %w", err)
	}

	var errs []error
	done := 0
	for _, b := range lo.Filter(boxes, func(b domain.Box, _ int) bool { return b.Yields() }) {
		if _, _, err := s.withBox(ctx, b.FamilyID, b.ID, nil); err != nil {
			slog.Error("accrual failed", "box", b.ID, "error", err)
			errs = append(errs, err)
			continue
		}
		done++
	}
	return done, errors.Join(errs...)
}

// withBox runs accrual and then mutate on a fresh copy of the box, and saves
// it together with the resulting ledger entries. A read that credits nothing
// and changes no rate is not saved. A concurrent save from another process
// restarts the cycle.
func (s *Service) withBox(
	ctx context.Context,
	familyID string,
	id uuid.UUID,
	mutate func(b *domain.Box, now time.Time) ([]*domain.BoxTransaction, error),
) (*domain.Box, time.Time, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	for attempt := range maxSaveAttempts {
		b, err := s.find(ctx, familyID, id)
		if err != nil {
			return nil, time.Time{}, err
		}

		now := s.now()
		orig := *b
		var entries []*domain.BoxTransaction
		entry, err := s.accruer.Accrue(ctx, b, now)
		if err != nil {
			return nil, time.Time{}, err
		}
		if mutate == nil && entry == nil && b.CDIAnnualRate.Equal(orig.CDIAnnualRate) {
			return &orig, now, nil
		}
		if entry != nil {
			entries = append(entries, entry)
		}

		if mutate != nil {
			more, err := mutate(b, now)
			if err != nil {
				return nil, time.Time{}, err
			}
			entries = append(entries, more...)
		}

		b.UpdatedAt = now
		if err := s.repo.SaveBox(ctx, b, entries); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				metrics.BoxSaveConflictsTotal.Inc()
				slog.Warn("box save conflict, retrying", "box", id, "attempt", attempt+1)
				continue
			}
			return nil, time.Time{}, err
		}
		recordYield(entries)
		return b, now, nil
	}

	return nil, time.Time{}, fmt.Errorf("saving box %s after %d attempts: %w", id, maxSaveAttempts, domain.ErrConflict)
}

func (s *Service) find(ctx context.Context, familyID string, id uuid.UUID) (*domain.Box, error) {
	b, err := s.repo.FindBox(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.FamilyID != familyID {
		return nil, domain.ErrNotFound
	}
	return b, nil
}

// recordYield counts stored yield entries.
func recordYield(entries []*domain.BoxTransaction) {
	for _, e := range entries {
		if e.Type != domain.MovementYield {
			continue
		}
		metrics.YieldAccrualsTotal.Inc()
		metrics.YieldAccruedValueTotal.Add(e.Value.InexactFloat64())
	}
}

// deposit raises balance and cost basis equally.
func deposit(b *domain.Box, value decimal.Decimal, at time.Time) *domain.BoxTransaction {
	b.CurrentValue = domain.Round2(b.CurrentValue.Add(value))
	b.PrincipalValue = domain.Round2(b.PrincipalValue.Add(value))
	if b.FirstContributionAt == nil {
		b.FirstContributionAt = &at
	}
	return domain.NewBoxTransaction(b, domain.MovementIn, value, at)
}

// withdraw lowers the balance and reduces the cost basis in proportion to
// the share of the balance withdrawn. The entry records the taxes that the
// withdrawn share would bear.
func withdraw(b *domain.Box, value decimal.Decimal, at time.Time) (*domain.BoxTransaction, error) {
	if value.GreaterThan(b.CurrentValue) {
		return nil, fmt.Errorf("%w: requested %s, available %s",
			domain.ErrInsufficientBalance, value.StringFixed(2), b.CurrentValue.StringFixed(2))
	}

	entry := domain.NewBoxTransaction(b, domain.MovementOut, value, at)
	entry.GrossValue = &value
	if b.Yields() {
		p := tax.Project(b.CurrentValue, b.PrincipalValue, tax.HoldingDays(b.FirstContributionAt, at))
		share := value.Div(b.CurrentValue)
		irTax := domain.Round2(p.IRTax.Mul(share))
		net := domain.Round2(value.Sub(p.TotalTax.Mul(share)))
		entry.IRRate = &p.IRRate
		entry.IRTax = &irTax
		entry.NetValue = &net
	}

	remaining := domain.Round2(b.CurrentValue.Sub(value))
	principal := domain.NonNegative(domain.Round2(b.PrincipalValue.Mul(remaining).Div(b.CurrentValue)))
	if remaining.IsZero() {
		principal = decimal.Zero
		b.FirstContributionAt = nil
	}
	b.CurrentValue = remaining
	b.PrincipalValue = principal
	return entry, nil
}

// settings merges the input onto base. New boxes default to tracking the
// benchmark 1:1 when no percentage is given.
func (in Input) settings(base domain.InvestmentSettings, creating bool) (domain.InvestmentSettings, error) {
	s := base
	if in.InvestmentType != nil {
		t, ok := domain.ParseInvestmentType(*in.InvestmentType)
		if !ok {
			return s, fmt.Errorf("%w: unknown investmentType %q", domain.ErrValidation, *in.InvestmentType)
		}
		s.Type = t
	}
	if s.Type == domain.InvestmentNone {
		return domain.InvestmentSettings{Type: domain.InvestmentNone}, nil
	}

	if in.CDIPercentage != nil {
		s.CDIPercentage = *in.CDIPercentage
	} else if creating || s.CDIPercentage.IsZero() {
		s.CDIPercentage = defaultCDIPercentage
	}
	if in.CDIAnnualRate != nil {
		s.CDIAnnualRate = *in.CDIAnnualRate
	}
	if in.AutoCDI != nil {
		s.AutoCDI = *in.AutoCDI
	}

	switch {
	case !s.CDIPercentage.IsPositive():
		return s, fmt.Errorf("%w: cdiPercentage must be positive", domain.ErrValidation)
	case s.CDIAnnualRate.IsNegative():
		return s, fmt.Errorf("%w: cdiAnnualRate must not be negative", domain.ErrValidation)
	case !s.AutoCDI && !s.CDIAnnualRate.IsPositive():
		return s, fmt.Errorf("%w: cdiAnnualRate is required when autoCdi is off", domain.ErrValidation)
	}
	return s, nil
}
