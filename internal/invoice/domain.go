package invoice

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/phoenix-garage/garage/internal/inventory"
	"github.com/phoenix-garage/garage/internal/jobcard"
	"github.com/phoenix-garage/garage/internal/shared"
)

// ItemType classifies a line item. Only Part items move stock.
type ItemType string

const (
	ItemPart   ItemType = "Part"
	ItemLabour ItemType = "Labour"
	ItemFluid  ItemType = "Fluid"
	ItemOther  ItemType = "Other"
)

// Valid reports whether t is a known item type.
func (t ItemType) Valid() bool {
	switch t {
	case ItemPart, ItemLabour, ItemFluid, ItemOther:
		return true
	}
	return false
}

// MaxItems bounds the size of one invoice.
const MaxItems = 500

// LineItem is one billable unit on a job's invoice. PartID links a Part item to
// inventory; unlinked Part items fall back to matching Description against part names.
type LineItem struct {
	ID          string          `json:"id"`
	PartID      string          `json:"partId,omitempty"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Type        ItemType        `json:"type"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Total       decimal.Decimal `json:"total"`
}

// StockKey identifies the part a Part line item draws from.
type StockKey struct {
	PartID string
	Name   string
}

func (k StockKey) String() string {
	if k.PartID != "" {
		return k.PartID
	}
	return k.Name
}

// KeyOf returns the stock key for item: its part id when linked, otherwise its
// description.
func KeyOf(item LineItem) StockKey {
	if item.PartID != "" {
		return StockKey{PartID: item.PartID}
	}
	return StockKey{Name: item.Description}
}

// NormalizeItems validates items and returns copies with trimmed text, fresh ids where
// missing or repeated, and totals recomputed from quantity and unit price. Any invalid
// item rejects the whole set.
func NormalizeItems(items []LineItem) ([]LineItem, error) {
	if len(items) > MaxItems {
		return nil, shared.NewFieldError("items", "too many line items")
	}
	out := make([]LineItem, 0, len(items))
	seen := make(map[string]bool, len(items))
	for i, item := range items {
		field := func(name string) string { return "items[" + strconv.Itoa(i) + "]." + name }
		item.Description = strings.TrimSpace(item.Description)
		item.Category = strings.TrimSpace(item.Category)
		item.PartID = strings.TrimSpace(item.PartID)
		item.ID = strings.TrimSpace(item.ID)

		if item.Description == "" {
			return nil, shared.NewFieldError(field("description"), "is required")
		}
		if !inventory.ValidCategory(item.Category) {
			return nil, shared.NewFieldError(field("category"), "must be one of "+strings.Join(inventory.Categories, ", "))
		}
		if !item.Type.Valid() {
			return nil, shared.NewFieldError(field("type"), "must be one of Part, Labour, Fluid, Other")
		}
		if !item.Quantity.IsPositive() {
			return nil, shared.NewFieldError(field("quantity"), "must be greater than 0")
		}
		if item.UnitPrice.IsNegative() {
			return nil, shared.NewFieldError(field("unitPrice"), "must be at least 0")
		}
		if item.Type == ItemPart && !item.Quantity.IsInteger() {
			return nil, shared.NewFieldError(field("quantity"), "must be a whole number for parts")
		}
		if item.PartID != "" {
			if item.Type != ItemPart {
				item.PartID = ""
			} else if _, err := uuid.Parse(item.PartID); err != nil {
				return nil, shared.NewFieldError(field("partId"), "is not a valid part id")
			}
		}
		if item.ID == "" || seen[item.ID] {
			item.ID = uuid.NewString()
		}
		seen[item.ID] = true
		item.Total = item.Quantity.Mul(item.UnitPrice)
		out = append(out, item)
	}
	return out, nil
}

// SumTotals returns the sum of item totals.
func SumTotals(items []LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.Total)
	}
	return sum
}

// Adjustment reports one part's stock change from a reconciliation.
type Adjustment struct {
	PartID   string                `json:"partId"`
	Name     string                `json:"name"`
	Delta    int64                 `json:"delta"`
	NewStock int64                 `json:"newStock"`
	Status   inventory.StockStatus `json:"status"`
}

// Result is the outcome of saving a job's invoice.
type Result struct {
	JobID       string          `json:"jobId"`
	Items       []LineItem      `json:"items"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Adjustments []Adjustment    `json:"adjustments"`
	Unmatched   []string        `json:"unmatched"`
}

// Detail is a job with its current line items.
type Detail struct {
	jobcard.Job
	LineItems []LineItem `json:"lineItems"`
}
