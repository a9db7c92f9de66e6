package export

import (
	"context"
	"fmt"
	"sort"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/mtlprog/savebox/internal/box"
)

// BoxLister lists accrued boxes across all families.
type BoxLister interface {
	ListAll(ctx context.Context) ([]box.View, error)
}

// SheetWriter writes box and family rows to a spreadsheet destination.
type SheetWriter interface {
	Write(ctx context.Context, boxes []box.View, families []FamilyTotals) error
}

// FamilyTotals aggregates the boxes of one family.
type FamilyTotals struct {
	FamilyID        string
	Boxes           int
	CurrentValue    decimal.Decimal
	PrincipalValue  decimal.Decimal
	TotalTax        decimal.Decimal
	NetCurrentValue decimal.Decimal
}

// Service collects box views and delegates writing to a SheetWriter.
type Service struct {
	boxes  BoxLister
	writer SheetWriter
}

// NewService creates a new export Service.
func NewService(boxes BoxLister, writer SheetWriter) *Service {
	return &Service{boxes: boxes, writer: writer}
}

// Export writes every box and the per-family totals. It runs after each
// accrual pass as well as on demand.
func (s *Service) Export(ctx context.Context) error {
	views, err := s.boxes.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("listing boxes for export: %w", err)
	}

	sort.SliceStable(views, func(i, j int) bool {
		if views[i].FamilyID != views[j].FamilyID {
			return views[i].FamilyID < views[j].FamilyID
		}
		return views[i].Name < views[j].Name
	})

	return s.writer.Write(ctx, views, familyTotals(views))
}

// familyTotals sums the views per family, ordered by family id.
func familyTotals(views []box.View) []FamilyTotals {
	grouped := lo.GroupBy(views, func(v box.View) string { return v.FamilyID })

	totals := make([]FamilyTotals, 0, len(grouped))
	for family, vs := range grouped {
		t := FamilyTotals{FamilyID: family, Boxes: len(vs)}
		for _, v := range vs {
			t.CurrentValue = t.CurrentValue.Add(v.CurrentValue)
			t.PrincipalValue = t.PrincipalValue.Add(v.PrincipalValue)
			t.TotalTax = t.TotalTax.Add(v.TotalTax)
			t.NetCurrentValue = t.NetCurrentValue.Add(v.NetCurrentValue)
		}
		totals = append(totals, t)
	}
	sort.Slice(totals, func(i, j int) bool { return totals[i].FamilyID < totals[j].FamilyID })
	return totals
}
