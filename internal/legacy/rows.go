package legacy

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/phoenix-garage/garage/internal/intake"
	"github.com/phoenix-garage/garage/internal/inventory"
	"github.com/phoenix-garage/garage/internal/invoice"
	"github.com/phoenix-garage/garage/internal/jobcard"
)

// Sheet names in the exported workbook.
const (
	SheetInventory = "Inventory"
	SheetJobs      = "Jobs"
	SheetInvoice   = "Invoice"
)

// Warning records a value that was coerced or defaulted while importing a row.
type Warning struct {
	Sheet   string `json:"sheet"`
	Row     int    `json:"row"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	if w.Field == "" {
		return fmt.Sprintf("%s row %d: %s", w.Sheet, w.Row, w.Message)
	}
	return fmt.Sprintf("%s row %d: %s: %s", w.Sheet, w.Row, w.Field, w.Message)
}

// RowError rejects a whole row.
type RowError struct {
	Sheet string
	Row   int
	Err   error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("%s row %d: %v", e.Sheet, e.Row, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// partNamespace scopes the deterministic ids given to legacy parts whose ids were
// millisecond timestamps rather than UUIDs. Re-importing the same sheet yields the
// same ids.
var partNamespace = uuid.MustParse("6f1c1d0e-8a44-4b7c-9d38-2f5b3c0e7a11")

// PartID maps a legacy part id to a UUID. UUIDs pass through unchanged.
func PartID(legacyID string) string {
	legacyID = strings.TrimSpace(legacyID)
	if id, err := uuid.Parse(legacyID); err == nil {
		return id.String()
	}
	return uuid.NewSHA1(partNamespace, []byte(legacyID)).String()
}

type rowParser struct {
	sheet    string
	row      int
	warnings []Warning
}

func (p *rowParser) warn(field, format string, args ...any) {
	p.warnings = append(p.warnings, Warning{Sheet: p.sheet, Row: p.row, Field: field, Message: fmt.Sprintf(format, args...)})
}

func (p *rowParser) fail(format string, args ...any) error {
	return &RowError{Sheet: p.sheet, Row: p.row, Err: fmt.Errorf(format, args...)}
}

func (p *rowParser) decimal(r Row, field string) decimal.Decimal {
	d, err := Decimal(r.Get(field))
	if err != nil {
		p.warn(field, "%v, using 0", err)
		return decimal.Zero
	}
	return d
}

func (p *rowParser) int(r Row, field string) int64 {
	n, err := Int(r.Get(field))
	if err != nil {
		p.warn(field, "%v, using 0", err)
		return 0
	}
	return n
}

func (p *rowParser) list(r Row, field string) []string {
	l, err := StringList(r.Get(field))
	if err != nil {
		p.warn(field, "%v, using empty list", err)
		return []string{}
	}
	return l
}

// ParsePart converts one Inventory row. The stored status label is ignored and
// re-derived from stock.
func ParsePart(r Row, rowNum int) (inventory.Part, []Warning, error) {
	p := &rowParser{sheet: SheetInventory, row: rowNum}
	legacyID := r.Get("id")
	if legacyID == "" {
		return inventory.Part{}, nil, p.fail("missing id")
	}
	name := r.Get("name")
	if name == "" {
		return inventory.Part{}, nil, p.fail("missing name")
	}
	part := inventory.Part{
		ID:           PartID(legacyID),
		Name:         name,
		SKU:          r.Get("sku"),
		Category:     r.Get("category"),
		Brand:        r.Get("brand"),
		StockQty:     p.int(r, "stockQty"),
		ReorderLevel: p.int(r, "reorderLevel"),
		CostPrice:    p.decimal(r, "costPrice"),
		SellingPrice: p.decimal(r, "sellingPrice"),
		Notes:        r.Get("notes"),
		ImageURL:     r.Get("imageUrl"),
	}
	if part.SKU == "" {
		part.SKU = "SKU-" + lastDigits(legacyID, 4)
		p.warn("sku", "missing, using %s", part.SKU)
	}
	if !inventory.ValidCategory(part.Category) {
		p.warn("category", "unknown category %q, using Other", part.Category)
		part.Category = "Other"
	}
	if part.StockQty < 0 {
		p.warn("stockQty", "negative stock %d kept", part.StockQty)
	}
	if !part.CostPrice.IsPositive() || !part.SellingPrice.IsPositive() {
		return inventory.Part{}, p.warnings, p.fail("costPrice and sellingPrice must be greater than 0")
	}
	part.Status = inventory.DeriveStatus(part.StockQty)
	if old := r.Get("status"); old != "" && old != string(part.Status) {
		p.warn("status", "stored %q, derived %q", old, part.Status)
	}
	return part, p.warnings, nil
}

func lastDigits(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// ParseJob converts one Jobs row including its lineItems column. totalAmount is
// recomputed from the items; a stored value that disagrees is reported.
func ParseJob(r Row, rowNum int) (jobcard.Job, []invoice.LineItem, []Warning, error) {
	p := &rowParser{sheet: SheetJobs, row: rowNum}
	id := r.Get("id")
	if id == "" {
		return jobcard.Job{}, nil, nil, p.fail("missing id")
	}
	job := jobcard.Job{
		ID:            id,
		CustomerName:  r.Get("customerName"),
		Phone:         r.Get("phone"),
		Brand:         r.Get("brand"),
		Model:         r.Get("model"),
		NumberPlate:   intake.NormalizePlate(r.Get("numberPlate")),
		FuelType:      r.Get("fuelType"),
		FuelLevel:     int(p.int(r, "fuelLevel")),
		VehicleImages: p.list(r, "vehicleImages"),
		Status:        jobcard.Status(r.Get("status")),
		PaymentStatus: jobcard.PaymentStatus(r.Get("paymentStatus")),
		AdvanceAmount: p.decimal(r, "advanceAmount"),
		Complaints:    p.list(r, "complaints"),
		Notes:         r.Get("notes"),
	}
	job.Vehicle = jobcard.VehicleLabel(job.Brand, job.Model)
	if job.CustomerName == "" {
		return jobcard.Job{}, nil, p.warnings, p.fail("missing customerName")
	}

	date, err := Date(r.Get("date"))
	if err != nil {
		p.warn("date", "%v, using import time", err)
	}
	job.Date = date

	if job.FuelLevel < 0 || job.FuelLevel > 100 {
		p.warn("fuelLevel", "%d out of range, clamped", job.FuelLevel)
		job.FuelLevel = min(max(job.FuelLevel, 0), 100)
	}
	switch {
	case job.Status == "":
		job.Status = jobcard.StatusOpen
	case !job.Status.Valid():
		p.warn("status", "unknown status %q, using Open", job.Status)
		job.Status = jobcard.StatusOpen
	}
	switch {
	case job.PaymentStatus == "":
		job.PaymentStatus = jobcard.PaymentUnpaid
	case !job.PaymentStatus.Valid():
		p.warn("paymentStatus", "unknown payment status %q, using Unpaid", job.PaymentStatus)
		job.PaymentStatus = jobcard.PaymentUnpaid
	}
	if job.PaymentStatus != jobcard.PaymentAdvance && !job.AdvanceAmount.IsZero() {
		p.warn("advanceAmount", "cleared for %s job", job.PaymentStatus)
		job.AdvanceAmount = decimal.Zero
	}
	if job.AdvanceAmount.IsNegative() {
		p.warn("advanceAmount", "negative advance cleared")
		job.AdvanceAmount = decimal.Zero
	}

	items := p.items(r.Get("lineItems"), "lineItems")
	job.TotalAmount = invoice.SumTotals(items)
	if stored := r.Get("totalAmount"); stored != "" {
		if d, err := Decimal(stored); err != nil || !d.Equal(job.TotalAmount) {
			p.warn("totalAmount", "stored %q, recomputed %s from line items", stored, job.TotalAmount)
		}
	}
	return job, items, p.warnings, nil
}

// legacyItem is the JSON shape the spreadsheet frontend wrote. Numbers may have been
// saved as strings.
type legacyItem struct {
	ID          string      `json:"id"`
	PartID      string      `json:"partId"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
	Type        string      `json:"type"`
	Quantity    looseNumber `json:"quantity"`
	UnitPrice   looseNumber `json:"unitPrice"`
}

type looseNumber string

func (n *looseNumber) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*n = looseNumber(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return err
	}
	*n = looseNumber(num.String())
	return nil
}

func (p *rowParser) items(cell, field string) []invoice.LineItem {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return []invoice.LineItem{}
	}
	var raw []legacyItem
	if err := json.Unmarshal([]byte(cell), &raw); err != nil {
		p.warn(field, "not a JSON item array: %v, no items imported", err)
		return []invoice.LineItem{}
	}
	out := make([]invoice.LineItem, 0, len(raw))
	for i, li := range raw {
		item, ok := p.item(li, fmt.Sprintf("%s[%d]", field, i))
		if ok {
			out = append(out, item)
		}
	}
	normalized, err := invoice.NormalizeItems(out)
	if err != nil {
		p.warn(field, "%v, no items imported", err)
		return []invoice.LineItem{}
	}
	return normalized
}

func (p *rowParser) item(li legacyItem, field string) (invoice.LineItem, bool) {
	item := invoice.LineItem{
		ID:          strings.TrimSpace(li.ID),
		Description: strings.TrimSpace(li.Description),
		Category:    strings.TrimSpace(li.Category),
		Type:        invoice.ItemType(strings.TrimSpace(li.Type)),
	}
	if item.Description == "" {
		p.warn(field, "missing description, item skipped")
		return invoice.LineItem{}, false
	}
	var err error
	if item.Quantity, err = Decimal(string(li.Quantity)); err != nil || !item.Quantity.IsPositive() {
		p.warn(field, "quantity %q is not positive, item skipped", li.Quantity)
		return invoice.LineItem{}, false
	}
	if item.UnitPrice, err = Decimal(string(li.UnitPrice)); err != nil || item.UnitPrice.IsNegative() {
		p.warn(field, "unitPrice %q is invalid, using 0", li.UnitPrice)
		item.UnitPrice = decimal.Zero
	}
	if !inventory.ValidCategory(item.Category) {
		p.warn(field, "unknown category %q, using Other", item.Category)
		item.Category = "Other"
	}
	if !item.Type.Valid() {
		p.warn(field, "unknown type %q, using Other", item.Type)
		item.Type = invoice.ItemOther
	}
	if item.Type == invoice.ItemPart && !item.Quantity.IsInteger() {
		p.warn(field, "fractional part quantity %s, imported as Other", item.Quantity)
		item.Type = invoice.ItemOther
	}
	if pid := strings.TrimSpace(li.PartID); pid != "" && item.Type == invoice.ItemPart {
		item.PartID = PartID(pid)
	}
	return item, true
}

// ParseInvoiceRow converts one Invoice sheet row. A row either carries a JSON items
// column for a whole job or describes a single item in its own columns.
func ParseInvoiceRow(r Row, rowNum int) (string, []invoice.LineItem, []Warning, error) {
	p := &rowParser{sheet: SheetInvoice, row: rowNum}
	jobID := r.Get("jobId")
	if jobID == "" {
		return "", nil, nil, p.fail("missing jobId")
	}
	if cell := r.Get("items"); cell != "" {
		return jobID, p.items(cell, "items"), p.warnings, nil
	}
	li := legacyItem{
		ID:          r.Get("id"),
		PartID:      r.Get("partId"),
		Description: r.Get("description"),
		Category:    r.Get("category"),
		Type:        r.Get("type"),
		Quantity:    looseNumber(r.Get("quantity")),
		UnitPrice:   looseNumber(r.Get("unitPrice")),
	}
	item, ok := p.item(li, "item")
	if !ok {
		return jobID, []invoice.LineItem{}, p.warnings, nil
	}
	return jobID, []invoice.LineItem{item}, p.warnings, nil
}
