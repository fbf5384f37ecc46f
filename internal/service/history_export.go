package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"rehab_monitor/internal/models"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "History"

var exportHeader = []string{"Session ID", "Day", "Start", "End", "Event", "Event Time"}

var exportColumnWidths = []float64{38, 12, 20, 20, 22, 20}

const exportTimeLayout = "2006-01-02 15:04:05"

// Export writes the history as an xlsx workbook with one row per recorded
// event; sessions without events get a single row.
func (a *HistoryAggregator) Export(ctx context.Context, w io.Writer) error {
	sessions, err := a.Sessions(ctx)
	if err != nil {
		return err
	}
	return writeHistoryWorkbook(w, sessions, a.loc)
}

func writeHistoryWorkbook(w io.Writer, sessions []models.HistorySession, loc *time.Location) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(exportSheet)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	for col, header := range exportHeader {
		if err := setCell(f, col+1, 1, header); err != nil {
			return err
		}
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(exportSheet, name, name, exportColumnWidths[col]); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(exportHeader), 1)
	if err := f.SetCellStyle(exportSheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("set header style: %w", err)
	}

	row := 2
	for _, s := range sessions {
		day := UnknownDateLabel
		if s.StartTime != nil {
			day = s.StartTime.In(loc).Format(DayLabelLayout)
		}
		base := []any{s.ID, day, formatOptTime(s.StartTime, loc), formatOptTime(s.EndTime, loc)}

		if len(s.Events) == 0 {
			if err := writeRow(f, row, append(base, "", "")); err != nil {
				return err
			}
			row++
			continue
		}
		for _, ev := range s.Events {
			if err := writeRow(f, row, append(base[:4:4], ev.EventType, formatOptTime(ev.Timestamp, loc))); err != nil {
				return err
			}
			row++
		}
	}

	if err := f.SetPanes(exportSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, row int, values []any) error {
	for i, v := range values {
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		if err := setCell(f, i+1, row, v); err != nil {
			return err
		}
	}
	return nil
}

func setCell(f *excelize.File, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	if err := f.SetCellValue(exportSheet, cell, value); err != nil {
		return fmt.Errorf("set cell %s: %w", cell, err)
	}
	return nil
}

func formatOptTime(t *time.Time, loc *time.Location) string {
	if t == nil {
		return ""
	}
	return t.In(loc).Format(exportTimeLayout)
}
