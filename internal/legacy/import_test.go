package legacy

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/phoenix-garage/garage/internal/inventory"
)

type memorySink struct {
	parts map[string]inventory.Part
	jobs  map[string]JobRecord
	fail  error
}

func newMemorySink() *memorySink {
	return &memorySink{parts: map[string]inventory.Part{}, jobs: map[string]JobRecord{}}
}

func (s *memorySink) ImportParts(_ context.Context, parts []inventory.Part) (int, error) {
	if s.fail != nil {
		return 0, s.fail
	}
	n := 0
	for _, p := range parts {
		if _, ok := s.parts[p.ID]; ok {
			continue
		}
		s.parts[p.ID] = p
		n++
	}
	return n, nil
}

func (s *memorySink) ImportJobs(_ context.Context, jobs []JobRecord) (int, error) {
	n := 0
	for _, j := range jobs {
		if _, ok := s.jobs[j.Job.ID]; ok {
			continue
		}
		s.jobs[j.Job.ID] = j
		n++
	}
	return n, nil
}

func buildWorkbook(t *testing.T) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheets := map[string][][]any{
		"Inventory": {
			{"id", "name", "sku", "category", "brand", "stockQty", "reorderLevel", "costPrice", "sellingPrice", "status", "notes", "imageUrl"},
			{"1712345678901", "Oil Filter", "SKU-8901", "Engine", "Bosch", "4", "2", "180", "250", "In Stock", "", ""},
			{"1712345678902", "Brake Pad", "SKU-8902", "Brake", "", "12", "4", "300", "450", "In Stock", "", ""},
			{},
			{"1712345678901", "Oil Filter copy", "SKU-0000", "Engine", "", "1", "", "1", "2", "", "", ""},
			{"1712345678903", "Freebie", "SKU-8903", "Body", "", "1", "", "0", "0", "", "", ""},
		},
		"Jobs": {
			{"id", "date", "customerName", "phone", "brand", "model", "numberPlate", "fuelType", "fuelLevel", "vehicleImages", "status", "paymentStatus", "advanceAmount", "complaints", "notes", "lineItems", "totalAmount"},
			{"JC-0042", "2024-03-14", "Asha", "9999999999", "Hyundai", "i20", "KL 07 AB 1234", "Petrol", "50", "[]", "Finished", "Paid", "", `["Brake Issue"]`, "",
				`[{"id":"a","description":"Brake Pad","category":"Brake","type":"Part","quantity":2,"unitPrice":450}]`, "900"},
			{"JC-0043", "", "Ravi", "8888888888", "Maruti", "Swift", "KL 01 C 9", "Diesel", "20", "", "Open", "Advance", "200", "", "", "", "0"},
		},
		"Invoice": {
			{"jobId", "description", "category", "type", "quantity", "unitPrice"},
			{"JC-0043", "Labour", "General Service", "Labour", "1", "300"},
			{"JC-9999", "Oil", "Engine", "Fluid", "1", "100"},
		},
	}
	for name, rows := range sheets {
		_, err := f.NewSheet(name)
		require.NoError(t, err)
		for i, row := range rows {
			if len(row) == 0 {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetSheetRow(name, cell, &row))
		}
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func fixedImporter(sink Sink) *Importer {
	im := NewImporter(sink, nil)
	im.now = func() time.Time { return time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC) }
	return im
}

func TestReadWorkbookKeysRowsByHeader(t *testing.T) {
	wb, err := ReadWorkbook(buildWorkbook(t))
	require.NoError(t, err)

	inv := wb.Rows(SheetInventory)
	require.Len(t, inv, 4, "blank row skipped")
	require.Equal(t, 2, inv[0].Num)
	require.Equal(t, "Oil Filter", inv[0].Row.Get("name"))
	require.Equal(t, 5, inv[2].Num)
	require.Len(t, wb.Rows(SheetJobs), 2)
	require.Len(t, wb.Rows(SheetInvoice), 2)
}

func TestReadWorkbookWithoutKnownSheets(t *testing.T) {
	f := excelize.NewFile()
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	_, err = ReadWorkbook(buf)
	require.Error(t, err)

	_, err = ReadWorkbook(bytes.NewReader([]byte("not a zip")))
	require.Error(t, err)
}

func TestDryRunWritesNothing(t *testing.T) {
	wb, err := ReadWorkbook(buildWorkbook(t))
	require.NoError(t, err)
	sink := newMemorySink()

	sum, err := fixedImporter(sink).Run(context.Background(), wb, ModeDry)
	require.NoError(t, err)
	require.Empty(t, sink.parts)
	require.Empty(t, sink.jobs)

	require.Equal(t, ModeDry, sum.Mode)
	require.Equal(t, SheetSummary{Rows: 4, Valid: 2, Rejected: 2}, sum.Parts)
	require.Equal(t, SheetSummary{Rows: 2, Valid: 2}, sum.Jobs)
	require.Equal(t, SheetSummary{Rows: 2, Valid: 1, Rejected: 1}, sum.Invoice)
	require.Equal(t, 2, sum.LineItems)
	require.Len(t, sum.Errors, 3)
	require.False(t, sum.Clean())
}

func TestApplyImportsAndIsRepeatable(t *testing.T) {
	wb, err := ReadWorkbook(buildWorkbook(t))
	require.NoError(t, err)
	sink := newMemorySink()
	im := fixedImporter(sink)

	sum, err := im.Run(context.Background(), wb, ModeApply)
	require.NoError(t, err)
	require.Equal(t, 2, sum.Parts.Inserted)
	require.Equal(t, 2, sum.Jobs.Inserted)

	filter := sink.parts[PartID("1712345678901")]
	require.Equal(t, inventory.StatusLowStock, filter.Status)

	ravi := sink.jobs["JC-0043"]
	require.Len(t, ravi.Items, 1)
	require.Equal(t, "300", ravi.Job.TotalAmount.String())
	require.Equal(t, "200", ravi.Job.AdvanceAmount.String())
	require.Equal(t, "2024-06-01", ravi.Job.Date.Format("2006-01-02"), "missing date takes import time")

	asha := sink.jobs["JC-0042"]
	require.Equal(t, "900", asha.Job.TotalAmount.String())
	require.Len(t, asha.Items, 1)
	require.Equal(t, "a", asha.Items[0].ID)

	sum, err = im.Run(context.Background(), wb, ModeApply)
	require.NoError(t, err)
	require.Zero(t, sum.Parts.Inserted)
	require.Equal(t, 2, sum.Parts.Existing)
	require.Equal(t, 2, sum.Jobs.Existing)
}

func TestApplyPropagatesSinkFailure(t *testing.T) {
	wb, err := ReadWorkbook(buildWorkbook(t))
	require.NoError(t, err)
	sink := newMemorySink()
	sink.fail = errors.New("db down")

	_, err = fixedImporter(sink).Run(context.Background(), wb, ModeApply)
	require.ErrorContains(t, err, "db down")

	_, err = NewImporter(nil, nil).Run(context.Background(), wb, ModeApply)
	require.Error(t, err)
	_, err = NewImporter(nil, nil).Run(context.Background(), wb, Mode("wet"))
	require.Error(t, err)
}
