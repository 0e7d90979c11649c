package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const (
	summarySheet   = "Summary"
	protectedSheet = "Protected dates"
)

type sheetWriter struct {
	file         *excelize.File
	currentSheet string
	currentRow   int
}

func newSheetWriter() *sheetWriter {
	return &sheetWriter{file: excelize.NewFile()}
}

func (w *sheetWriter) addSheet(name string) error {
	// Excel limit
	if len(name) > 31 {
		name = name[:31]
	}

	if w.currentSheet == "" {
		if err := w.file.SetSheetName("Sheet1", name); err != nil {
			return fmt.Errorf("rename sheet: %w", err)
		}
	} else if _, err := w.file.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}

	w.currentSheet = name
	w.currentRow = 1
	return nil
}

func (w *sheetWriter) writeHeader(columns []string) error {
	row := make([]interface{}, len(columns))
	for i, c := range columns {
		row[i] = c
	}
	if err := w.writeRow(row); err != nil {
		return err
	}

	style, err := w.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		startCell, _ := excelize.CoordinatesToCellName(1, w.currentRow-1)
		endCell, _ := excelize.CoordinatesToCellName(len(columns), w.currentRow-1)
		_ = w.file.SetCellStyle(w.currentSheet, startCell, endCell, style)
	}
	return nil
}

func (w *sheetWriter) writeRow(row []interface{}) error {
	if w.currentSheet == "" {
		return fmt.Errorf("no active sheet")
	}

	for i, val := range row {
		cell, err := excelize.CoordinatesToCellName(i+1, w.currentRow)
		if err != nil {
			return err
		}
		if err := w.file.SetCellValue(w.currentSheet, cell, val); err != nil {
			return err
		}
	}

	w.currentRow++
	return nil
}

// WriteXLSX exports a report as a workbook with a summary sheet and one row
// per protected reservation.
func WriteXLSX(out io.Writer, r Report) error {
	w := newSheetWriter()
	defer w.file.Close()

	if err := w.addSheet(summarySheet); err != nil {
		return err
	}
	summary := [][]interface{}{
		{"Business", r.BusinessID},
		{"Reason", r.Reason.Message()},
		{"Run", r.RunID},
		{"Generated at", r.GeneratedAt.Format("2006-01-02 15:04:05")},
		{"Slots updated", r.SlotsUpdated},
		{"Protected dates", len(r.Groups)},
	}
	for _, row := range summary {
		if err := w.writeRow(row); err != nil {
			return err
		}
	}

	if err := w.addSheet(protectedSheet); err != nil {
		return err
	}
	if err := w.writeHeader([]string{"Date", "Customer", "Time", "Resource"}); err != nil {
		return err
	}
	for _, g := range r.Groups {
		for _, p := range g.Reservations {
			if err := w.writeRow([]interface{}{g.Date, p.CustomerName, p.AppointmentTime, p.ResourceName}); err != nil {
				return err
			}
		}
	}

	return w.file.Write(out)
}
