package inventory

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/phoenix-garage/garage/internal/shared"
)

// CreatePartInput is the payload for adding a part.
type CreatePartInput struct {
	Name         string          `json:"name" validate:"required,max=200"`
	Category     string          `json:"category" validate:"required"`
	Brand        string          `json:"brand" validate:"max=120"`
	StockQty     int64           `json:"stockQty" validate:"gte=0"`
	ReorderLevel int64           `json:"reorderLevel" validate:"gte=0"`
	CostPrice    decimal.Decimal `json:"costPrice" validate:"gt=0"`
	SellingPrice decimal.Decimal `json:"sellingPrice" validate:"gt=0"`
	Notes        string          `json:"notes"`
	ImageURL     string          `json:"imageUrl"`
}

func (in *CreatePartInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	in.Brand = strings.TrimSpace(in.Brand)
	in.Notes = strings.TrimSpace(in.Notes)
}

// Validate checks required fields and price/stock bounds.
func (in CreatePartInput) Validate() error {
	if err := shared.ValidateStruct(in); err != nil {
		return err
	}
	if !ValidCategory(in.Category) {
		return shared.NewFieldError("category", "is not a known category")
	}
	return nil
}

// PartPatch is a partial update. Nil fields are left unchanged; id, sku and status are
// never writable.
type PartPatch struct {
	Name         *string          `json:"name,omitempty"`
	Category     *string          `json:"category,omitempty"`
	Brand        *string          `json:"brand,omitempty"`
	StockQty     *int64           `json:"stockQty,omitempty"`
	ReorderLevel *int64           `json:"reorderLevel,omitempty"`
	CostPrice    *decimal.Decimal `json:"costPrice,omitempty"`
	SellingPrice *decimal.Decimal `json:"sellingPrice,omitempty"`
	Notes        *string          `json:"notes,omitempty"`
	ImageURL     *string          `json:"imageUrl,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p PartPatch) Empty() bool {
	return p.Name == nil && p.Category == nil && p.Brand == nil && p.StockQty == nil &&
		p.ReorderLevel == nil && p.CostPrice == nil && p.SellingPrice == nil &&
		p.Notes == nil && p.ImageURL == nil
}

// apply validates the supplied fields and writes them onto part.
func (p PartPatch) apply(part *Part) error {
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return shared.NewFieldError("name", "is required")
		}
		part.Name = name
	}
	if p.Category != nil {
		category := strings.TrimSpace(*p.Category)
		if category == "" {
			return shared.NewFieldError("category", "is required")
		}
		if !ValidCategory(category) {
			return shared.NewFieldError("category", "is not a known category")
		}
		part.Category = category
	}
	if p.Brand != nil {
		part.Brand = strings.TrimSpace(*p.Brand)
	}
	if p.StockQty != nil {
		if *p.StockQty < 0 {
			return shared.NewFieldError("stockQty", "must be at least 0")
		}
		part.StockQty = *p.StockQty
	}
	if p.ReorderLevel != nil {
		if *p.ReorderLevel < 0 {
			return shared.NewFieldError("reorderLevel", "must be at least 0")
		}
		part.ReorderLevel = *p.ReorderLevel
	}
	if p.CostPrice != nil {
		if !p.CostPrice.IsPositive() {
			return shared.NewFieldError("costPrice", "must be greater than 0")
		}
		part.CostPrice = *p.CostPrice
	}
	if p.SellingPrice != nil {
		if !p.SellingPrice.IsPositive() {
			return shared.NewFieldError("sellingPrice", "must be greater than 0")
		}
		part.SellingPrice = *p.SellingPrice
	}
	if p.Notes != nil {
		part.Notes = strings.TrimSpace(*p.Notes)
	}
	if p.ImageURL != nil {
		part.ImageURL = strings.TrimSpace(*p.ImageURL)
	}
	part.Status = DeriveStatus(part.StockQty)
	return nil
}
