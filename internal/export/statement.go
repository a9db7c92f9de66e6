package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/mtlprog/savebox/internal/box"
)

const (
	summarySheet = "Summary"
	ledgerSheet  = "Ledger"
)

// WriteStatement renders a box statement as an xlsx workbook with a summary
// sheet and the full ledger.
func WriteStatement(w io.Writer, st box.Statement) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("renaming summary sheet: %w", err)
	}
	if _, err := f.NewSheet(ledgerSheet); err != nil {
		return fmt.Errorf("creating ledger sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}

	for i, row := range summaryRows(st.Box) {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return fmt.Errorf("writing summary: %w", err)
		}
	}
	if err := f.SetCellStyle(summarySheet, "A1", fmt.Sprintf("A%d", len(summaryRows(st.Box))), bold); err != nil {
		return fmt.Errorf("styling summary: %w", err)
	}

	for i, row := range ledgerRows(st) {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(ledgerSheet, cell, &row); err != nil {
			return fmt.Errorf("writing ledger: %w", err)
		}
	}
	if err := f.SetCellStyle(ledgerSheet, "A1", "G1", bold); err != nil {
		return fmt.Errorf("styling ledger: %w", err)
	}

	_ = f.SetColWidth(summarySheet, "A", "A", 24)
	_ = f.SetColWidth(summarySheet, "B", "B", 20)
	_ = f.SetColWidth(ledgerSheet, "A", "G", 14)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func summaryRows(v box.View) [][]any {
	return [][]any{
		{"Box", v.Name},
		{"Yield", v.YieldLabel},
		{"Effective annual %", toFloat(v.EffectiveAnnualRate)},
		{"Current value", toFloat(v.CurrentValue)},
		{"Principal", toFloat(v.PrincipalValue)},
		{"Holding days", v.HoldingDays},
		{"Gross profit", toFloat(v.GrossProfit)},
		{"IOF rate", toFloat(v.IOFRate)},
		{"IOF", toFloat(v.IOFTax)},
		{"IR rate", toFloat(v.IRRate)},
		{"IR", toFloat(v.IRTax)},
		{"Total tax", toFloat(v.TotalTax)},
		{"Net value", toFloat(v.NetCurrentValue)},
		{"Net profit", toFloat(v.NetProfit)},
		{"Est. daily gross", toFloat(v.EstimatedDailyGrossYield)},
		{"Est. daily net", toFloat(v.EstimatedDailyNetYield)},
	}
}

// ledgerRows lists the ledger in the order it was written.
// Columns: Date | Type | Value | Gross | IR rate | IR | Net
func ledgerRows(st box.Statement) [][]any {
	rows := make([][]any, 0, len(st.Entries)+1)
	rows = append(rows, []any{"Date", "Type", "Value", "Gross", "IR rate", "IR", "Net"})
	for _, e := range st.Entries {
		rows = append(rows, []any{
			e.Date.Format("2006-01-02"),
			string(e.Type),
			toFloat(e.Value),
			ptrFloat(e.GrossValue),
			ptrFloat(e.IRRate),
			ptrFloat(e.IRTax),
			ptrFloat(e.NetValue),
		})
	}
	return rows
}
