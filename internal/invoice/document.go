package invoice

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/phoenix-garage/garage/internal/jobcard"
)

// CategoryGroup is one category section of an invoice.
type CategoryGroup struct {
	Category string          `json:"category"`
	Items    []LineItem      `json:"items"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// GroupByCategory groups items by category, categories sorted ascending and items kept
// in their original order.
func GroupByCategory(items []LineItem) []CategoryGroup {
	index := make(map[string]int)
	groups := make([]CategoryGroup, 0)
	for _, item := range items {
		i, ok := index[item.Category]
		if !ok {
			i = len(groups)
			index[item.Category] = i
			groups = append(groups, CategoryGroup{Category: item.Category, Subtotal: decimal.Zero})
		}
		groups[i].Items = append(groups[i].Items, item)
		groups[i].Subtotal = groups[i].Subtotal.Add(item.Total)
	}
	sort.SliceStable(groups, func(a, b int) bool { return groups[a].Category < groups[b].Category })
	return groups
}

// Document is the data behind a printable invoice.
type Document struct {
	InvoiceNumber string                `json:"invoiceNumber"`
	JobID         string                `json:"jobId"`
	Date          time.Time             `json:"date"`
	CustomerName  string                `json:"customerName"`
	Phone         string                `json:"phone"`
	Vehicle       string                `json:"vehicle"`
	NumberPlate   string                `json:"numberPlate"`
	Groups        []CategoryGroup       `json:"groups"`
	Subtotal      decimal.Decimal       `json:"subtotal"`
	TaxRate       decimal.Decimal       `json:"taxRate"`
	Tax           decimal.Decimal       `json:"tax"`
	GrandTotal    decimal.Decimal       `json:"grandTotal"`
	PaymentStatus jobcard.PaymentStatus `json:"paymentStatus"`
	AdvanceAmount decimal.Decimal       `json:"advanceAmount"`
	BalanceDue    decimal.Decimal       `json:"balanceDue"`
}

// Assemble builds the invoice document. taxRate is a fraction (0.18 for 18%) applied to
// the subtotal; tax is rounded to cents.
func Assemble(job jobcard.Job, items []LineItem, taxRate decimal.Decimal) Document {
	subtotal := SumTotals(items)
	tax := subtotal.Mul(taxRate).Round(2)
	grand := subtotal.Add(tax)

	doc := Document{
		InvoiceNumber: "INV-" + jobcard.InvoiceSuffix(job.ID),
		JobID:         job.ID,
		Date:          job.Date,
		CustomerName:  job.CustomerName,
		Phone:         job.Phone,
		Vehicle:       jobcard.VehicleLabel(job.Brand, job.Model),
		NumberPlate:   job.NumberPlate,
		Groups:        GroupByCategory(items),
		Subtotal:      subtotal,
		TaxRate:       taxRate,
		Tax:           tax,
		GrandTotal:    grand,
		PaymentStatus: job.PaymentStatus,
		AdvanceAmount: decimal.Zero,
		BalanceDue:    grand,
	}
	switch job.PaymentStatus {
	case jobcard.PaymentPaid:
		doc.BalanceDue = decimal.Zero
	case jobcard.PaymentAdvance:
		doc.AdvanceAmount = job.AdvanceAmount
		doc.BalanceDue = decimal.Max(grand.Sub(job.AdvanceAmount), decimal.Zero)
	}
	return doc
}
