package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"fleetquote/internal/pricing"
)

// ExportQuoteToExcel writes one quote's cost breakdown to an .xlsx report
// and returns the file path.
func (s *PostgresStorage) ExportQuoteToExcel(quoteID int64, result pricing.Result, adj pricing.Adjustment, dir string) (string, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet("Quote")
	if err != nil {
		return "", fmt.Errorf("failed to create sheet: %w", err)
	}

	headers := []string{
		"Vehicle ID", "Depreciation", "Maintenance", "Tracking",
		"Protection", "IPVA", "Licensing", "Tax",
		"Total", "Cost/km", "Extra-km Rate",
	}
	for col, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		f.SetCellValue("Quote", cell, header)
	}

	for row, b := range result.Vehicles {
		data := []interface{}{
			b.VehicleID,
			b.Depreciation,
			b.Maintenance,
			b.Tracking,
			b.Protection,
			b.Ipva,
			b.Licensing,
			b.Tax,
			b.Total,
			b.CostPerKm,
			b.ExtraKmRate,
		}
		for col, value := range data {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue("Quote", cell, value)
		}
	}

	summaryRow := len(result.Vehicles) + 3
	summary := [][2]interface{}{
		{"Quote Total", result.Total},
		{"Suggested ROIC (%)", adj.Suggested},
		{"Applied ROIC (%)", adj.Roic},
		{"Annual ROIC (%)", pricing.AnnualEquivalent(adj.Roic)},
		{"Adjusted Total", adj.AdjustedTotal},
	}
	for i, pair := range summary {
		labelCell, _ := excelize.CoordinatesToCellName(1, summaryRow+i)
		valueCell, _ := excelize.CoordinatesToCellName(2, summaryRow+i)
		f.SetCellValue("Quote", labelCell, pair[0])
		f.SetCellValue("Quote", valueCell, pair[1])
	}
	if adj.Justification != nil {
		labelCell, _ := excelize.CoordinatesToCellName(1, summaryRow+len(summary))
		valueCell, _ := excelize.CoordinatesToCellName(2, summaryRow+len(summary))
		f.SetCellValue("Quote", labelCell, "Justification")
		f.SetCellValue("Quote", valueCell,
			fmt.Sprintf("%s (authorized by %s)", adj.Justification.Reason, adj.Justification.AuthorizedBy))
	}

	style, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	lastHeader, _ := excelize.CoordinatesToCellName(len(headers), 1)
	f.SetCellStyle("Quote", "A1", lastHeader, style)

	f.SetActiveSheet(index)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create reports directory: %w", err)
	}

	// Overwrite-latest: the requote worker keeps one current report per quote.
	path := filepath.Join(dir, fmt.Sprintf("quote_%d.xlsx", quoteID))

	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to save Excel file: %w", err)
	}

	return path, nil
}
