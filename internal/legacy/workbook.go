package legacy

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// NumberedRow is a data row with its 1-based spreadsheet row number.
type NumberedRow struct {
	Num int
	Row Row
}

// Workbook holds the header-keyed rows of each known sheet. A missing sheet has no
// rows.
type Workbook struct {
	Sheets map[string][]NumberedRow
}

// Rows returns the rows of sheet.
func (w Workbook) Rows(sheet string) []NumberedRow {
	return w.Sheets[sheet]
}

// ReadWorkbook reads the Inventory, Jobs and Invoice sheets of an xlsx export. The
// first row of each sheet names the columns; blank rows are skipped.
func ReadWorkbook(r io.Reader) (Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Workbook{}, fmt.Errorf("legacy: open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	wb := Workbook{Sheets: map[string][]NumberedRow{}}
	found := 0
	for _, name := range f.GetSheetList() {
		sheet := canonicalSheet(name)
		if sheet == "" {
			continue
		}
		rows, err := f.GetRows(name)
		if err != nil {
			return Workbook{}, fmt.Errorf("legacy: read sheet %s: %w", name, err)
		}
		wb.Sheets[sheet] = keyRows(rows)
		found++
	}
	if found == 0 {
		return Workbook{}, fmt.Errorf("legacy: no %s, %s or %s sheet found", SheetInventory, SheetJobs, SheetInvoice)
	}
	return wb, nil
}

func canonicalSheet(name string) string {
	for _, s := range []string{SheetInventory, SheetJobs, SheetInvoice} {
		if strings.EqualFold(strings.TrimSpace(name), s) {
			return s
		}
	}
	return ""
}

func keyRows(rows [][]string) []NumberedRow {
	if len(rows) == 0 {
		return nil
	}
	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
	}
	out := make([]NumberedRow, 0, len(rows)-1)
	for i, cells := range rows[1:] {
		row := make(Row, len(headers))
		blank := true
		for c, h := range headers {
			if h == "" || c >= len(cells) {
				continue
			}
			row[h] = cells[c]
			if strings.TrimSpace(cells[c]) != "" {
				blank = false
			}
		}
		if blank {
			continue
		}
		out = append(out, NumberedRow{Num: i + 2, Row: row})
	}
	return out
}
