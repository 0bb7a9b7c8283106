package perf

import (
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/phoenix-garage/garage/internal/invoice"
	"github.com/phoenix-garage/garage/internal/jobcard"
	"github.com/phoenix-garage/garage/internal/legacy"
)

func largeInvoice(n int, qty int64) []invoice.LineItem {
	items := make([]invoice.LineItem, 0, n)
	for i := 0; i < n; i++ {
		item := invoice.LineItem{
			ID:          fmt.Sprintf("li-%d", i),
			Description: fmt.Sprintf("Part %d", i%40),
			Category:    "Engine",
			Type:        invoice.ItemPart,
			Quantity:    decimal.NewFromInt(qty),
			UnitPrice:   decimal.NewFromInt(int64(100 + i)),
		}
		if i%3 == 0 {
			item.Type = invoice.ItemLabour
			item.Category = "General Service"
		}
		items = append(items, item)
	}
	return items
}

func TestStockDeltaLatencyTargets(t *testing.T) {
	oldItems := largeInvoice(invoice.MaxItems, 1)
	newItems := largeInvoice(invoice.MaxItems, 2)
	samples := make([]time.Duration, 0, 30)
	for i := 0; i < 30; i++ {
		start := time.Now()
		_ = invoice.ComputeStockDeltas(oldItems, newItems)
		samples = append(samples, time.Since(start))
	}
	if p95 := percentile95(samples); p95 > 50*time.Millisecond {
		t.Fatalf("stock delta regression on a full invoice: p95=%s", p95)
	}
}

func BenchmarkComputeStockDeltas(b *testing.B) {
	oldItems := largeInvoice(200, 1)
	newItems := largeInvoice(200, 3)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = invoice.ComputeStockDeltas(oldItems, newItems)
	}
}

func BenchmarkNormalizeItems(b *testing.B) {
	items := largeInvoice(200, 2)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := invoice.NormalizeItems(items); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkAssembleDocument(b *testing.B) {
	items, err := invoice.NormalizeItems(largeInvoice(200, 2))
	if err != nil {
		b.Fatal(err)
	}
	job := jobcard.Job{ID: "JC-0001", CustomerName: "Bench Customer"}
	rate := decimal.RequireFromString("0.18")
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = invoice.Assemble(job, items, rate)
	}
}

func BenchmarkParseLegacyJobRow(b *testing.B) {
	row := legacy.Row{
		"id":            "JC-0042",
		"date":          "3/14/2024",
		"customerName":  "Asha Rao",
		"numberPlate":   "ka 01 ab 1234",
		"status":        "In Progress",
		"paymentStatus": "Unpaid",
		"lineItems":     `[{"description":"Oil Filter","category":"Engine","type":"Part","quantity":"2","unitPrice":"250"},{"description":"Labour","category":"General Service","type":"Labour","quantity":1,"unitPrice":700}]`,
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, _, err := legacy.ParseJob(row, 2); err != nil {
			b.Fatal(err)
		}
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}
