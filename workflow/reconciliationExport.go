package workflow

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const (
	findingsSheet = "Findings"
	summarySheet  = "Summary"
)

func newReconciliationWorkbook(summary *ReconciliationSummary) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", findingsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, err
	}

	headers := []string{"CheckType", "EntityType", "EntityId", "Details", "CorrelationId", "CreatedAt"}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		f.SetCellValue(findingsSheet, cell, h)
	}
	for i, r := range summary.Findings {
		row := i + 2
		f.SetCellValue(findingsSheet, "A"+fmt.Sprint(row), r.CheckType)
		f.SetCellValue(findingsSheet, "B"+fmt.Sprint(row), r.EntityType)
		f.SetCellValue(findingsSheet, "C"+fmt.Sprint(row), r.EntityId)
		f.SetCellValue(findingsSheet, "D"+fmt.Sprint(row), r.Details)
		f.SetCellValue(findingsSheet, "E"+fmt.Sprint(row), r.CorrelationId)
		f.SetCellValue(findingsSheet, "F"+fmt.Sprint(row), r.CreatedAt.Format("2006-01-02 15:04:05"))
	}

	f.SetCellValue(summarySheet, "A1", "CorrelationId")
	f.SetCellValue(summarySheet, "B1", summary.CorrelationId)
	f.SetCellValue(summarySheet, "A2", "Total")
	f.SetCellValue(summarySheet, "B2", summary.Total)
	for i, check := range summary.CheckTypes() {
		row := i + 4
		f.SetCellValue(summarySheet, "A"+fmt.Sprint(row), check)
		f.SetCellValue(summarySheet, "B"+fmt.Sprint(row), summary.ByCheck[check])
	}
	return f, nil
}

// WriteReconciliationWorkbook writes the run as an .xlsx with a findings sheet
// and a per-check summary sheet.
func WriteReconciliationWorkbook(w io.Writer, summary *ReconciliationSummary) error {
	f, err := newReconciliationWorkbook(summary)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

// SaveReconciliationWorkbook is WriteReconciliationWorkbook to a file path.
func SaveReconciliationWorkbook(filename string, summary *ReconciliationSummary) error {
	f, err := newReconciliationWorkbook(summary)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.SaveAs(filename)
}
