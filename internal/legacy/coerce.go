// Package legacy converts rows exported from the old spreadsheet backend into the
// typed records of this service. Spreadsheet cells are loosely typed: numbers arrive as
// text with separators, arrays as JSON text, and status labels may be stale.
package legacy

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Row is one spreadsheet row keyed by header.
type Row map[string]string

// Get returns the trimmed cell for key.
func (r Row) Get(key string) string {
	return strings.TrimSpace(r[key])
}

var numberReplacer = strings.NewReplacer(",", "", "₹", "", "$", "", " ", "", "Rs.", "", "Rs", "")

// Decimal parses a money or quantity cell. An empty cell is zero.
func Decimal(cell string) (decimal.Decimal, error) {
	s := numberReplacer.Replace(strings.TrimSpace(cell))
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("not a number: %q", cell)
	}
	return d, nil
}

// Int parses an integer cell. Whole-valued decimals such as "5.0" are accepted.
func Int(cell string) (int64, error) {
	d, err := Decimal(cell)
	if err != nil {
		return 0, err
	}
	if !d.IsInteger() {
		return 0, fmt.Errorf("not a whole number: %q", cell)
	}
	return d.IntPart(), nil
}

// StringList parses a JSON array cell. Plain text becomes a single element; an empty
// cell is an empty list.
func StringList(cell string) ([]string, error) {
	s := strings.TrimSpace(cell)
	if s == "" {
		return []string{}, nil
	}
	if !strings.HasPrefix(s, "[") {
		return []string{s}, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("not a JSON string array: %w", err)
	}
	clean := make([]string, 0, len(out))
	for _, v := range out {
		if v = strings.TrimSpace(v); v != "" {
			clean = append(clean, v)
		}
	}
	return clean, nil
}

// dateLayouts are tried in order. Browser locale dates are month-first in the
// default locale; day-first is tried when the month would be out of range.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02",
	"1/2/2006",
	"2/1/2006",
	"1/2/2006, 3:04:05 PM",
	"2/1/2006, 3:04:05 pm",
}

// Date parses a date cell. An empty cell returns the zero time. Bare numbers are
// read as Excel date serials.
func Date(cell string) (time.Time, error) {
	s := strings.TrimSpace(cell)
	if s == "" {
		return time.Time{}, nil
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, fmt.Errorf("unrecognised date: %q", cell)
		}
		return t.UTC(), nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date: %q", cell)
}
