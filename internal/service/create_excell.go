package service

import (
	"bytes"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

const AttendanceSheet = "Attendance"

type AttendanceRow struct {
	PrintedID   string
	Name        string
	Course      string
	Status      string
	CheckedInAt *time.Time
	DeclinedAt  *time.Time
	Reason      string
}

// AttendanceWorkbook renders the attendees of one event as an xlsx file.
func AttendanceWorkbook(eventName string, rows []AttendanceRow) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := AttendanceSheet
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, errors.Wrap(err, "naming sheet")
	}

	if err := f.SetCellValue(sheet, "A1", eventName); err != nil {
		return nil, errors.Wrap(err, "writing title")
	}

	headers := []string{"Printed ID", "Name", "Course", "Status", "Checked in at", "Declined at", "Reason"}
	for i, header := range headers {
		cell := fmt.Sprintf("%c2", 'A'+i)
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return nil, errors.Wrap(err, "writing header")
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, errors.Wrap(err, "creating header style")
	}
	if err := f.SetCellStyle(sheet, "A1", "G2", bold); err != nil {
		return nil, errors.Wrap(err, "styling header")
	}

	rowNum := 3
	for _, entry := range rows {
		values := []interface{}{
			entry.PrintedID,
			entry.Name,
			entry.Course,
			entry.Status,
			formatTime(entry.CheckedInAt),
			formatTime(entry.DeclinedAt),
			entry.Reason,
		}
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", rowNum), &values); err != nil {
			return nil, errors.Wrapf(err, "writing row %d", rowNum)
		}
		rowNum++
	}

	if err := f.SetColWidth(sheet, "A", "G", 20); err != nil {
		return nil, errors.Wrap(err, "sizing columns")
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, errors.Wrap(err, "writing workbook")
	}

	return buf, nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}
