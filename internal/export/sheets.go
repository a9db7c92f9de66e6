package export

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"

	"github.com/mtlprog/savebox/internal/box"
)

const (
	boxesSheet    = "BOXES"
	familiesSheet = "FAMILIES"
)

// SheetsWriter implements SheetWriter using the Google Sheets API.
type SheetsWriter struct {
	spreadsheetID string
	svc           *sheets.Service
}

// NewSheetsWriter creates a SheetsWriter authenticated with a service account JSON.
func NewSheetsWriter(ctx context.Context, spreadsheetID, credentialsJSON string) (*SheetsWriter, error) {
	creds, err := google.CredentialsFromJSON(
		ctx,
		[]byte(credentialsJSON),
		sheets.SpreadsheetsScope,
	)
	if err != nil {
		return nil, fmt.Errorf("parsing google credentials: %w", err)
	}

	svc, err := sheets.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}

	return &SheetsWriter{spreadsheetID: spreadsheetID, svc: svc}, nil
}

// Write ensures required sheets exist, then clears and rewrites them.
func (w *SheetsWriter) Write(ctx context.Context, boxes []box.View, families []FamilyTotals) error {
	if err := w.ensureSheets(ctx, boxesSheet, familiesSheet); err != nil {
		return err
	}

	_, err := w.svc.Spreadsheets.Values.BatchClear(
		w.spreadsheetID,
		&sheets.BatchClearValuesRequest{
			Ranges: []string{boxesSheet + "!A:N", familiesSheet + "!A:F"},
		},
	).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clearing sheets: %w", err)
	}

	_, err = w.svc.Spreadsheets.Values.BatchUpdate(
		w.spreadsheetID,
		&sheets.BatchUpdateValuesRequest{
			ValueInputOption: "USER_ENTERED",
			Data: []*sheets.ValueRange{
				{Range: boxesSheet + "!A1", Values: buildBoxRows(boxes)},
				{Range: familiesSheet + "!A1", Values: buildFamilyRows(families)},
			},
		},
	).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("writing sheets: %w", err)
	}

	return nil
}

// buildBoxRows builds the BOXES sheet data.
// Columns: Family | Box | Emergency | Yield | Annual % | Current | Principal |
// Gross profit | Days | IOF | IR | Net value | Net profit | Est. daily net
func buildBoxRows(views []box.View) [][]any {
	data := make([][]any, 0, len(views)+1)
	data = append(data, []any{
		"Family", "Box", "Emergency", "Yield", "Annual %",
		"Current", "Principal", "Gross profit", "Days",
		"IOF", "IR", "Net value", "Net profit", "Est. daily net",
	})

	for _, v := range views {
		emergency := 0
		if v.IsEmergency {
			emergency = 1
		}
		data = append(data, []any{
			v.FamilyID, v.Name, emergency, v.YieldLabel,
			toFloat(v.EffectiveAnnualRate),
			toFloat(v.CurrentValue),
			toFloat(v.PrincipalValue),
			toFloat(v.GrossProfit),
			v.HoldingDays,
			toFloat(v.IOFTax),
			toFloat(v.IRTax),
			toFloat(v.NetCurrentValue),
			toFloat(v.NetProfit),
			toFloat(v.EstimatedDailyNetYield),
		})
	}

	return data
}

// buildFamilyRows builds the FAMILIES sheet data.
// Columns: Family | Boxes | Current | Principal | Taxes | Net value
func buildFamilyRows(families []FamilyTotals) [][]any {
	data := [][]any{
		{"Family", "Boxes", "Current", "Principal", "Taxes", "Net value"},
	}

	for _, f := range families {
		data = append(data, []any{
			f.FamilyID,
			f.Boxes,
			toFloat(f.CurrentValue),
			toFloat(f.PrincipalValue),
			toFloat(f.TotalTax),
			toFloat(f.NetCurrentValue),
		})
	}

	return data
}

// ensureSheets creates any of the named sheets that do not already exist.
func (w *SheetsWriter) ensureSheets(ctx context.Context, names ...string) error {
	spreadsheet, err := w.svc.Spreadsheets.Get(w.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("getting spreadsheet metadata: %w", err)
	}

	existing := make(map[string]bool, len(spreadsheet.Sheets))
	for _, s := range spreadsheet.Sheets {
		existing[s.Properties.Title] = true
	}

	var requests []*sheets.Request
	for _, name := range names {
		if !existing[name] {
			requests = append(requests, &sheets.Request{
				AddSheet: &sheets.AddSheetRequest{
					Properties: &sheets.SheetProperties{Title: name},
				},
			})
		}
	}

	if len(requests) == 0 {
		return nil
	}

	_, err = w.svc.Spreadsheets.BatchUpdate(
		w.spreadsheetID,
		&sheets.BatchUpdateSpreadsheetRequest{Requests: requests},
	).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("creating sheets: %w", err)
	}

	return nil
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func ptrFloat(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	f, _ := d.Float64()
	return f
}
