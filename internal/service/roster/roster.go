// Package roster reads member rosters from xlsx workbooks.
package roster

import (
	"fmt"
	"io"
	"log"
	"regexp"
	"strings"

	"eventattendance/backend/internal/auth"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/unicode/norm"
)

// SheetName is preferred when present; otherwise the first sheet is read.
const SheetName = "Roster"

// Columns, in order.
var Header = []string{"Printed ID", "Full name", "Email", "Course", "Role", "Password"}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

type Row struct {
	PrintedID string
	FullName  string
	Email     string
	Course    string
	Role      string
	Password  string
}

// Rejected is a spreadsheet row (1-based, as shown in Excel) that was skipped.
type Rejected struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// Read parses a roster. courses holds the known course names and taken the
// printed ids already in use. Rows that fail validation are reported instead
// of aborting the whole import.
func Read(r io.Reader, courses, taken map[string]struct{}) ([]Row, []Rejected, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, errors.Wrap(err, "opening roster")
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			log.Printf("roster close error: %v", closeErr)
		}
	}()

	sheet := SheetName
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx == -1 {
		list := f.GetSheetList()
		if len(list) == 0 {
			return nil, nil, errors.New("roster has no sheets")
		}
		sheet = list[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, errors.Wrap(err, "reading roster rows")
	}

	var (
		list     []Row
		rejected []Rejected
		local    = make(map[string]int)
	)

	reject := func(row int, reason string) {
		rejected = append(rejected, Rejected{Row: row, Reason: reason})
	}

	for i, cells := range rows {
		rowNumber := i + 1
		if i == 0 {
			continue
		}
		if blank(cells) {
			continue
		}

		row := Row{
			PrintedID: cell(cells, 0),
			FullName:  cell(cells, 1),
			Email:     cell(cells, 2),
			Course:    cell(cells, 3),
			Role:      strings.ToUpper(cell(cells, 4)),
			Password:  cell(cells, 5),
		}
		if row.Role == "" {
			row.Role = auth.RoleMember
		}

		switch {
		case row.PrintedID == "" || row.FullName == "" || row.Password == "":
			reject(rowNumber, "printed id, full name and password are required")
			continue
		case !validRole(row.Role):
			reject(rowNumber, "unknown role "+row.Role)
			continue
		case row.Email != "" && !emailRegex.MatchString(row.Email):
			reject(rowNumber, "invalid email "+row.Email)
			continue
		}

		if row.Course != "" {
			if _, ok := courses[row.Course]; !ok {
				reject(rowNumber, "unknown course "+row.Course)
				continue
			}
		}

		if _, exists := taken[row.PrintedID]; exists {
			reject(rowNumber, "printed id "+row.PrintedID+" is already taken")
			continue
		}
		if prevRow, exists := local[row.PrintedID]; exists {
			reject(rowNumber, fmt.Sprintf("printed id %s repeats row %d", row.PrintedID, prevRow))
			continue
		}
		local[row.PrintedID] = rowNumber

		list = append(list, row)
	}

	return list, rejected, nil
}

// Template returns an empty roster with the expected header.
func Template() (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, errors.Wrap(err, "naming sheet")
	}
	header := make([]interface{}, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return nil, errors.Wrap(err, "writing header")
	}
	return f, nil
}

// cell returns a trimmed, width-folded value; full-width digits and letters
// typed on some keyboards become their ASCII form.
func cell(cells []string, i int) string {
	if i >= len(cells) {
		return ""
	}
	return strings.TrimSpace(norm.NFKC.String(cells[i]))
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func validRole(role string) bool {
	switch role {
	case auth.RoleMember, auth.RoleAdmin, auth.RoleReader, auth.RoleDashboard:
		return true
	}
	return false
}
