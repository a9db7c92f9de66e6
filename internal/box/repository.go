package box

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mtlprog/savebox/internal/domain"
)

// Repository defines persistent storage for boxes and their ledger.
type Repository interface {
	FindBox(ctx context.Context, id uuid.UUID) (*domain.Box, error)
	ListBoxes(ctx context.Context, familyID string) ([]domain.Box, error)
	ListAllBoxes(ctx context.Context) ([]domain.Box, error)
	// CreateBox inserts b together with its opening ledger entries.
	CreateBox(ctx context.Context, b *domain.Box, entries []*domain.BoxTransaction) error
	// SaveBox persists b and appends entries atomically if nobody saved b
	// since it was read, bumping b.Version. A lost race yields
	// domain.ErrConflict and writes nothing.
	SaveBox(ctx context.Context, b *domain.Box, entries []*domain.BoxTransaction) error
	DeleteBox(ctx context.Context, id uuid.UUID) error
	ListLedgerEntries(ctx context.Context, boxID uuid.UUID) ([]domain.BoxTransaction, error)
	DeleteLedgerEntriesForBox(ctx context.Context, boxID uuid.UUID) error
}

// PgRepository implements Repository with PostgreSQL.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewPgRepository creates a new PostgreSQL box repository.
func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const boxColumns = `id, family_id, name, is_emergency, current_value, principal_value,
	first_contribution_at, investment_type, auto_cdi, cdi_annual_rate, cdi_percentage,
	yield_percentage, last_yield_applied_at, created_at, updated_at, version`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanBox decodes a row and normalizes the investment columns of every
// schema generation into the current model.
func scanBox(row rowScanner) (*domain.Box, error) {
	var (
		b                         domain.Box
		rawType                   string
		autoCDI                   *bool
		annual, pct, legacyPct    decimal.NullDecimal
		firstContribution, lastAt *time.Time
	)
	err := row.Scan(&b.ID, &b.FamilyID, &b.Name, &b.IsEmergency, &b.CurrentValue, &b.PrincipalValue,
		&firstContribution, &rawType, &autoCDI, &annual, &pct,
		&legacyPct, &lastAt, &b.CreatedAt, &b.UpdatedAt, &b.Version)
	if err != nil {
		return nil, err
	}

	b.FirstContributionAt = firstContribution
	b.LastYieldAppliedAt = lastAt
	b.ApplySettings(domain.NormalizeInvestment(domain.RawInvestment{
		Type:             rawType,
		AutoCDI:          autoCDI,
		CDIAnnualRate:    nullable(annual),
		CDIPercentage:    nullable(pct),
		LegacyPercentage: nullable(legacyPct),
	}))
	return &b, nil
}

func nullable(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	return &d.Decimal
}

func (r *PgRepository) FindBox(ctx context.Context, id uuid.UUID) (*domain.Box, error) {
	b, err := scanBox(r.pool.QueryRow(ctx,
		`SELECT `+boxColumns+` FROM boxes WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("getting box %s: %w", id, err)
	}
	return b, nil
}

func (r *PgRepository) ListBoxes(ctx context.Context, familyID string) ([]domain.Box, error) {
	return r.queryBoxes(ctx,
		`SELECT `+boxColumns+` FROM boxes WHERE family_id = $1 ORDER BY created_at, id`, familyID)
}

func (r *PgRepository) ListAllBoxes(ctx context.Context) ([]domain.Box, error) {
	return r.queryBoxes(ctx, `SELECT `+boxColumns+` FROM boxes ORDER BY created_at, id`)
}

func (r *PgRepository) queryBoxes(ctx context.Context, sql string, args ...any) ([]domain.Box, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("listing boxes: %w", err)
	}
	defer rows.Close()

	var boxes []domain.Box
	for rows.Next() {
		b, err := scanBox(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning box: %w", err)
		}
		boxes = append(boxes, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating boxes: %w", err)
	}
	return boxes, nil
}

func (r *PgRepository) CreateBox(ctx context.Context, b *domain.Box, entries []*domain.BoxTransaction) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO boxes (id, family_id, name, is_emergency, current_value, principal_value,
				first_contribution_at, investment_type, auto_cdi, cdi_annual_rate, cdi_percentage,
				last_yield_applied_at, created_at, updated_at, version)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, 1)`,
			b.ID, b.FamilyID, b.Name, b.IsEmergency, b.CurrentValue, b.PrincipalValue,
			b.FirstContributionAt, string(b.InvestmentType), b.AutoCDI, b.CDIAnnualRate, b.CDIPercentage,
			b.LastYieldAppliedAt, b.CreatedAt, b.UpdatedAt)
		if err != nil {
			return fmt.Errorf("creating box: %w", err)
		}
		return appendLedgerEntries(ctx, tx, entries)
	})
	if err != nil {
		return err
	}
	b.Version = 1
	return nil
}

func (r *PgRepository) SaveBox(ctx context.Context, b *domain.Box, entries []*domain.BoxTransaction) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE boxes SET
				name = $3, is_emergency = $4, current_value = $5, principal_value = $6,
				first_contribution_at = $7, investment_type = $8, auto_cdi = $9,
				cdi_annual_rate = $10, cdi_percentage = $11, yield_percentage = NULL,
				last_yield_applied_at = $12, updated_at = $13, version = version + 1
			 WHERE id = $1 AND version = $2`,
			b.ID, b.Version, b.Name, b.IsEmergency, b.CurrentValue, b.PrincipalValue,
			b.FirstContributionAt, string(b.InvestmentType), b.AutoCDI,
			b.CDIAnnualRate, b.CDIPercentage, b.LastYieldAppliedAt, b.UpdatedAt)
		if err != nil {
			return fmt.Errorf("saving box %s: %w", b.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("saving box %s at version %d: %w", b.ID, b.Version, domain.ErrConflict)
		}
		return appendLedgerEntries(ctx, tx, entries)
	})
	if err != nil {
		return err
	}
	b.Version++
	return nil
}

func (r *PgRepository) DeleteBox(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM boxes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting box %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func appendLedgerEntries(ctx context.Context, tx pgx.Tx, entries []*domain.BoxTransaction) error {
	for _, e := range entries {
		_, err := tx.Exec(ctx,
			`INSERT INTO box_transactions (id, box_id, family_id, type, value,
				gross_value, net_value, ir_rate, ir_tax, date, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			e.ID, e.BoxID, e.FamilyID, string(e.Type), e.Value,
			e.GrossValue, e.NetValue, e.IRRate, e.IRTax, e.Date, e.CreatedAt)
		if err != nil {
			return fmt.Errorf("appending %s entry to box %s: %w", e.Type, e.BoxID, err)
		}
	}
	return nil
}

func (r *PgRepository) ListLedgerEntries(ctx context.Context, boxID uuid.UUID) ([]domain.BoxTransaction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, box_id, family_id, type, value, gross_value, net_value, ir_rate, ir_tax, date, created_at
		 FROM box_transactions
		 WHERE box_id = $1
		 ORDER BY date, created_at`, boxID)
	if err != nil {
		return nil, fmt.Errorf("listing ledger of box %s: %w", boxID, err)
	}
	defer rows.Close()

	var entries []domain.BoxTransaction
	for rows.Next() {
		var (
			e                      domain.BoxTransaction
			typ                    string
			gross, net, irR, irTax decimal.NullDecimal
		)
		if err := rows.Scan(&e.ID, &e.BoxID, &e.FamilyID, &typ, &e.Value,
			&gross, &net, &irR, &irTax, &e.Date, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning ledger entry: %w", err)
		}
		e.Type = domain.MovementType(typ)
		e.GrossValue = nullable(gross)
		e.NetValue = nullable(net)
		e.IRRate = nullable(irR)
		e.IRTax = nullable(irTax)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating ledger entries: %w", err)
	}
	return entries, nil
}

func (r *PgRepository) DeleteLedgerEntriesForBox(ctx context.Context, boxID uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM box_transactions WHERE box_id = $1`, boxID); err != nil {
		return fmt.Errorf("deleting ledger of box %s: %w", boxID, err)
	}
	return nil
}
