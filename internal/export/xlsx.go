package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"balances/internal/view"
)

const (
	AccountsSheet    = "Accounts"
	GrandTotalsSheet = "Grand totals"

	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// WriteXLSX writes v as a two-sheet workbook to w.
func WriteXLSX(w io.Writer, v view.View) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", AccountsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(GrandTotalsSheet); err != nil {
		return fmt.Errorf("create sheet %q: %w", GrandTotalsSheet, err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	if err := writeSheet(f, AccountsSheet, Rows(v), bold); err != nil {
		return err
	}
	if err := writeSheet(f, GrandTotalsSheet, GrandTotalRows(v), bold); err != nil {
		return err
	}
	if v.AsOfLabel != "" {
		if err := f.SetCellValue(GrandTotalsSheet, "E1", v.AsOfLabel); err != nil {
			return fmt.Errorf("write as-of label: %w", err)
		}
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, rows [][]any, headerStyle int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		r := row
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}
	if err := f.SetColWidth(sheet, "A", "I", 18); err != nil {
		return fmt.Errorf("size %s columns: %w", sheet, err)
	}
	return nil
}
