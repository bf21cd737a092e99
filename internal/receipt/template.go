package receipt

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/adaeze-umeh/donation-receipts/internal/billing"
	"github.com/adaeze-umeh/donation-receipts/internal/common"
)

// Template placeholders are named __field__ in the workbook. A cell whose
// whole trimmed content is the items marker is replaced by one row per
// billing line: date, description, amount across three columns.
const itemsMarker = "__items__"

// Render loads the template workbook, binds the receipt request into its
// named placeholders, and writes the primary-format result to outPath.
func Render(templatePath string, req billing.ReceiptRequest, outPath string) error {
	f, err := excelize.OpenFile(templatePath)
	if err != nil {
		return fmt.Errorf("%w: open template %s: %v", common.ErrTemplateBinding, templatePath, err)
	}
	defer f.Close()

	repl := placeholders(req)

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return fmt.Errorf("%w: read sheet %s: %v", common.ErrTemplateBinding, sheet, err)
		}

		markerRow, markerCol := -1, -1
		for ri, row := range rows {
			for ci, cell := range row {
				if !strings.Contains(cell, "__") {
					continue
				}
				if strings.TrimSpace(cell) == itemsMarker {
					markerRow, markerCol = ri, ci
					continue
				}
				if bound := bind(cell, repl); bound != cell {
					if err := setCell(f, sheet, ci, ri, bound); err != nil {
						return err
					}
				}
			}
		}

		// Expand the items marker last so scalar coordinates above stay
		// valid while rows shift below.
		if markerRow >= 0 {
			if err := expandItems(f, sheet, markerRow, markerCol, req.Items); err != nil {
				return err
			}
		}
	}

	if err := f.SaveAs(outPath); err != nil {
		return fmt.Errorf("%w: write %s: %v", common.ErrTemplateBinding, outPath, err)
	}
	return nil
}

func expandItems(f *excelize.File, sheet string, row, col int, items []billing.BillingLine) error {
	if len(items) == 0 {
		// Clear the marker; the receipt keeps its (empty) items section.
		return setCell(f, sheet, col, row, "")
	}
	if len(items) > 1 {
		if err := f.InsertRows(sheet, row+2, len(items)-1); err != nil {
			return fmt.Errorf("%w: insert item rows: %v", common.ErrTemplateBinding, err)
		}
	}
	for i, item := range items {
		if err := setCell(f, sheet, col, row+i, item.Date); err != nil {
			return err
		}
		if err := setCell(f, sheet, col+1, row+i, item.Description); err != nil {
			return err
		}
		if err := setCell(f, sheet, col+2, row+i, item.Amount); err != nil {
			return err
		}
	}
	return nil
}

// setCell writes a value at zero-based row/column coordinates.
func setCell(f *excelize.File, sheet string, col, row int, value string) error {
	axis, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return fmt.Errorf("%w: cell (%d,%d): %v", common.ErrTemplateBinding, col, row, err)
	}
	if err := f.SetCellValue(sheet, axis, value); err != nil {
		return fmt.Errorf("%w: set %s!%s: %v", common.ErrTemplateBinding, sheet, axis, err)
	}
	return nil
}

func bind(cell string, repl map[string]string) string {
	for name, value := range repl {
		cell = strings.ReplaceAll(cell, "__"+name+"__", value)
	}
	return cell
}

func placeholders(req billing.ReceiptRequest) map[string]string {
	return map[string]string{
		"receipt_id":   req.ReceiptID,
		"donator_id":   req.DonatorID,
		"donator":      req.Donator,
		"phone_number": req.PhoneNumber,
		"email":        req.Email,
		"total_amount": req.TotalAmount,
		"issued_by":    req.IssuedBy,
		"note":         req.Note,
		"year":         req.Year,
		"start_date":   req.StartDate,
		"end_date":     req.EndDate,
	}
}
