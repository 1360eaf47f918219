// Package export writes admin lists as xlsx workbooks.
package export

import (
	"fmt"
	"io"

	"github.com/diewo77/go-garage/internal/models"
	"github.com/xuri/excelize/v2"
)

const (
	JobsSheet      = "Jobs"
	InventorySheet = "Inventory"
	timeLayout     = "2006-01-02 15:04"
)

// ContentType is the MIME type of the workbooks produced here.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var jobHeaders = []string{
	"ID", "Customer", "Vehicle reg", "Status", "Date in",
	"Total", "Paid", "Outstanding", "Payment status",
}

var inventoryHeaders = []string{
	"ID", "Name", "Category", "Quantity", "Price", "Last updated",
}

// Jobs writes one row per job. Jobs must have services, parts and payments loaded.
func Jobs(w io.Writer, jobs []models.Job) error {
	rows := make([][]any, 0, len(jobs))
	for i := range jobs {
		j := &jobs[i]
		rows = append(rows, []any{
			j.ID,
			j.CustomerName,
			j.VehicleReg,
			string(j.Status),
			j.DateIn.Local().Format(timeLayout),
			j.TotalAmount().InexactFloat64(),
			j.AmountPaid().InexactFloat64(),
			j.Outstanding().InexactFloat64(),
			j.PaymentStatus.Label(),
		})
	}
	return writeWorkbook(w, JobsSheet, jobHeaders, rows, []int{6, 7, 8})
}

// Inventory writes one row per item.
func Inventory(w io.Writer, items []models.InventoryItem) error {
	rows := make([][]any, 0, len(items))
	for _, it := range items {
		rows = append(rows, []any{
			it.ID,
			it.Name,
			it.Category,
			it.Quantity,
			it.Price.InexactFloat64(),
			it.LastUpdated.Local().Format(timeLayout),
		})
	}
	return writeWorkbook(w, InventorySheet, inventoryHeaders, rows, []int{5})
}

// writeWorkbook fills a single-sheet workbook; moneyCols are 1-based column
// numbers formatted with two decimals.
func writeWorkbook(w io.Writer, sheetName string, headers []string, rows [][]any, moneyCols []int) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return fmt.Errorf("write header %s: %w", cell, err)
		}
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6E6FA"}, Pattern: 1},
	})
	if err == nil {
		_ = f.SetRowStyle(sheetName, 1, 1, headerStyle)
	}

	for r, values := range rows {
		for c, v := range values {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return fmt.Errorf("write cell %s: %w", cell, err)
			}
		}
	}

	if len(rows) > 0 {
		money := "0.00"
		moneyStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &money})
		if err == nil {
			for _, col := range moneyCols {
				top, _ := excelize.CoordinatesToCellName(col, 2)
				bottom, _ := excelize.CoordinatesToCellName(col, len(rows)+1)
				_ = f.SetCellStyle(sheetName, top, bottom, moneyStyle)
			}
		}
	}

	last, _ := excelize.ColumnNumberToName(len(headers))
	_ = f.SetColWidth(sheetName, "A", last, 18)

	if f.GetSheetName(0) != sheetName {
		_ = f.DeleteSheet("Sheet1")
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
