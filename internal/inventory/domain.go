package inventory

import (
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/phoenix-garage/garage/internal/shared"
)

// StockStatus is the label derived from a part's stock quantity.
type StockStatus string

const (
	// StatusInStock applies from LowStockThreshold upwards.
	StatusInStock StockStatus = "In Stock"
	// StatusLowStock applies to 1..LowStockThreshold-1 units.
	StatusLowStock StockStatus = "Low Stock"
	// StatusOutOfStock applies to zero or negative stock.
	StatusOutOfStock StockStatus = "Out of Stock"
)

// LowStockThreshold is the first quantity reported as In Stock.
const LowStockThreshold = 6

// DeriveStatus maps a stock quantity to its label. Negative stock, reachable only
// through permissive reconciliation, reports Out of Stock.
func DeriveStatus(qty int64) StockStatus {
	switch {
	case qty <= 0:
		return StatusOutOfStock
	case qty < LowStockThreshold:
		return StatusLowStock
	default:
		return StatusInStock
	}
}

// Categories lists the part and service categories offered by the shop.
var Categories = []string{"Engine", "Brake", "Electrical", "Suspension", "Body", "General Service", "Other"}

// ValidCategory reports whether c is a known category.
func ValidCategory(c string) bool {
	return slices.Contains(Categories, c)
}

// Part is an inventory item.
type Part struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	SKU          string          `json:"sku"`
	Category     string          `json:"category"`
	Brand        string          `json:"brand"`
	StockQty     int64           `json:"stockQty"`
	ReorderLevel int64           `json:"reorderLevel"`
	CostPrice    decimal.Decimal `json:"costPrice"`
	SellingPrice decimal.Decimal `json:"sellingPrice"`
	Status       StockStatus     `json:"status"`
	Notes        string          `json:"notes"`
	ImageURL     string          `json:"imageUrl,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// ApplyDelta adds delta to the part's stock and recomputes its status. When allowNeg is
// false a result below zero is rejected and the part is left unchanged.
func (p *Part) ApplyDelta(delta int64, allowNeg bool) error {
	next := p.StockQty + delta
	if next < 0 && !allowNeg {
		return fmt.Errorf("%w: %s would drop to %d", ErrNegativeStock, p.Name, next)
	}
	p.StockQty = next
	p.Status = DeriveStatus(next)
	return nil
}

// ListFilter narrows List results.
type ListFilter struct {
	Search   string
	Status   StockStatus
	Category string
	LowStock bool
	Limit    int
}

// TransactionType enumerates stock movements.
type TransactionType string

const (
	// TransactionTypeOpening records the stock a part was created with.
	TransactionTypeOpening TransactionType = "OPENING"
	// TransactionTypeAdjust records a manual stock edit.
	TransactionTypeAdjust TransactionType = "ADJUST"
	// TransactionTypeInvoice records an invoice reconciliation delta.
	TransactionTypeInvoice TransactionType = "INVOICE"
)

// Movement is one entry on a part's stock card.
type Movement struct {
	ID         int64           `json:"id"`
	PartID     string          `json:"partId"`
	TxType     TransactionType `json:"txType"`
	RefModule  string          `json:"refModule,omitempty"`
	RefID      string          `json:"refId,omitempty"`
	QtyChange  int64           `json:"qtyChange"`
	BalanceQty int64           `json:"balanceQty"`
	Note       string          `json:"note,omitempty"`
	PostedAt   time.Time       `json:"postedAt"`
}

// ErrNegativeStock is returned when a change would leave stock below zero and negative
// stock is disabled.
var ErrNegativeStock = fmt.Errorf("inventory: negative stock not allowed: %w", shared.ErrConflict)
