package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/mtlprog/savebox/internal/box"
	"github.com/mtlprog/savebox/internal/domain"
)

func TestWriteStatement(t *testing.T) {
	ir := decimal.RequireFromString("0.225")
	st := box.Statement{
		Box: view("a", "Travel", "750", "675", "0"),
		Entries: []domain.BoxTransaction{
			{Type: domain.MovementIn, Value: decimal.NewFromInt(1000), Date: time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)},
			{Type: domain.MovementOut, Value: decimal.NewFromInt(250), IRRate: &ir, Date: time.Date(2026, 10, 13, 0, 0, 0, 0, time.UTC)},
		},
	}

	var buf bytes.Buffer
	if err := WriteStatement(&buf, st); err != nil {
		t.Fatalf("WriteStatement: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	name, err := f.GetCellValue(summarySheet, "B1")
	if err != nil {
		t.Fatalf("GetCellValue: %v", err)
	}
	if name != "Travel" {
		t.Errorf("box name = %q, want Travel", name)
	}

	rows, err := f.GetRows(ledgerSheet)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("ledger rows = %d, want 3", len(rows))
	}
	if rows[1][0] != "2026-10-12" || rows[1][1] != "in" || rows[1][2] != "1000" {
		t.Errorf("deposit row = %v", rows[1])
	}
	if rows[2][1] != "out" || rows[2][4] != "0.225" {
		t.Errorf("withdrawal row = %v", rows[2])
	}
}
