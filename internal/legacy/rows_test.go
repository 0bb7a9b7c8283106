package legacy

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/phoenix-garage/garage/internal/inventory"
	"github.com/phoenix-garage/garage/internal/invoice"
	"github.com/phoenix-garage/garage/internal/jobcard"
)

func TestDecimalCoercion(t *testing.T) {
	cases := map[string]string{
		"":          "0",
		"1,200":     "1200",
		"₹1,500.50": "1500.5",
		" 42 ":      "42",
		"Rs. 99":    "99",
	}
	for in, want := range cases {
		got, err := Decimal(in)
		require.NoError(t, err, in)
		require.True(t, got.Equal(decimal.RequireFromString(want)), "%q -> %s", in, got)
	}
	_, err := Decimal("twelve")
	require.Error(t, err)

	n, err := Int("5.0")
	require.NoError(t, err)
	require.EqualValues(t, 5, n)
	_, err = Int("2.5")
	require.Error(t, err)
}

func TestStringList(t *testing.T) {
	l, err := StringList(`["Engine Noise", " ", "Brake Issue"]`)
	require.NoError(t, err)
	require.Equal(t, []string{"Engine Noise", "Brake Issue"}, l)

	l, err = StringList("Oil Leakage")
	require.NoError(t, err)
	require.Equal(t, []string{"Oil Leakage"}, l)

	l, err = StringList("")
	require.NoError(t, err)
	require.Empty(t, l)

	_, err = StringList(`["unterminated`)
	require.Error(t, err)
}

func TestDateLayouts(t *testing.T) {
	march14 := time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"2024-03-14", "3/14/2024", "14/3/2024"} {
		got, err := Date(in)
		require.NoError(t, err, in)
		require.True(t, got.Equal(march14), "%s -> %s", in, got)
	}

	got, err := Date("2024-03-14T09:30:00Z")
	require.NoError(t, err)
	require.Equal(t, 9, got.Hour())

	got, err = Date("45292")
	require.NoError(t, err)
	require.Equal(t, "2024-01-01", got.Format("2006-01-02"))

	got, err = Date("")
	require.NoError(t, err)
	require.True(t, got.IsZero())

	_, err = Date("yesterday")
	require.Error(t, err)
}

func TestPartIDIsStable(t *testing.T) {
	a := PartID("1712345678901")
	require.Equal(t, a, PartID(" 1712345678901 "))
	_, err := uuid.Parse(a)
	require.NoError(t, err)
	require.NotEqual(t, a, PartID("1712345678902"))

	existing := uuid.NewString()
	require.Equal(t, existing, PartID(existing))
}

func TestParsePartCoercesAndRederivesStatus(t *testing.T) {
	part, warnings, err := ParsePart(Row{
		"id":           "1712345678901",
		"name":         "Oil Filter",
		"category":     "Engin",
		"stockQty":     "4",
		"costPrice":    "1,200",
		"sellingPrice": "₹1,500.50",
		"status":       "In Stock",
	}, 2)
	require.NoError(t, err)
	require.Equal(t, PartID("1712345678901"), part.ID)
	require.Equal(t, "SKU-8901", part.SKU)
	require.Equal(t, "Other", part.Category)
	require.Equal(t, inventory.StatusLowStock, part.Status)
	require.True(t, part.SellingPrice.Equal(decimal.RequireFromString("1500.50")))

	fields := map[string]bool{}
	for _, w := range warnings {
		require.Equal(t, SheetInventory, w.Sheet)
		require.Equal(t, 2, w.Row)
		fields[w.Field] = true
	}
	require.Equal(t, map[string]bool{"sku": true, "category": true, "status": true}, fields)
}

func TestParsePartRejectsRow(t *testing.T) {
	_, _, err := ParsePart(Row{"name": "No Id", "costPrice": "1", "sellingPrice": "1"}, 3)
	var rowErr *RowError
	require.ErrorAs(t, err, &rowErr)
	require.Equal(t, 3, rowErr.Row)

	_, _, err = ParsePart(Row{"id": "1", "name": "Free Part", "costPrice": "0", "sellingPrice": "10"}, 4)
	require.Error(t, err)
}

func TestParseJob(t *testing.T) {
	job, items, warnings, err := ParseJob(Row{
		"id":            "JC-0042",
		"date":          "14/3/2024",
		"customerName":  "Asha",
		"phone":         "9999999999",
		"brand":         "Hyundai",
		"model":         "i20",
		"numberPlate":   "kl 07 ab 1234",
		"fuelLevel":     "50",
		"status":        "Closed",
		"paymentStatus": "Paid",
		"advanceAmount": "500",
		"complaints":    `["Engine Noise","Brake Issue"]`,
		"lineItems": `[{"id":"a","description":"Brake Pad","category":"Brake","type":"Part","quantity":2,"unitPrice":"450"},` +
			`{"id":"b","description":"Labour","category":"General","type":"Labour","quantity":1,"unitPrice":300}]`,
		"totalAmount": "1000",
	}, 5)
	require.NoError(t, err)

	require.Equal(t, "Hyundai i20", job.Vehicle)
	require.Equal(t, "KL 07 AB 1234", job.NumberPlate)
	require.Equal(t, time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC), job.Date)
	require.Equal(t, jobcard.StatusOpen, job.Status)
	require.Equal(t, jobcard.PaymentPaid, job.PaymentStatus)
	require.True(t, job.AdvanceAmount.IsZero())
	require.Equal(t, []string{"Engine Noise", "Brake Issue"}, job.Complaints)
	require.Empty(t, job.VehicleImages)

	require.Len(t, items, 2)
	require.Equal(t, "Other", items[1].Category)
	require.True(t, items[0].Total.Equal(decimal.NewFromInt(900)))
	require.True(t, job.TotalAmount.Equal(decimal.NewFromInt(1200)))

	fields := map[string]bool{}
	for _, w := range warnings {
		fields[w.Field] = true
	}
	for _, f := range []string{"status", "advanceAmount", "lineItems[1]", "totalAmount"} {
		require.True(t, fields[f], "missing warning for %s", f)
	}
}

func TestParseJobSkipsBadItems(t *testing.T) {
	_, items, warnings, err := ParseJob(Row{
		"id":           "JC-0001",
		"customerName": "Ravi",
		"lineItems":    `[{"description":"","quantity":1},{"description":"Coolant","category":"Engine","type":"Fluid","quantity":"0"},{"description":"Spark Plug","category":"Engine","type":"Part","quantity":1.5,"unitPrice":80}]`,
	}, 2)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, invoice.ItemOther, items[0].Type)
	require.Len(t, warnings, 3)

	_, items, _, err = ParseJob(Row{"id": "JC-0002", "customerName": "Ravi", "lineItems": "not json"}, 3)
	require.NoError(t, err)
	require.Empty(t, items)

	_, _, _, err = ParseJob(Row{"id": "JC-0003"}, 4)
	require.Error(t, err)
}

func TestParseInvoiceRow(t *testing.T) {
	jobID, items, _, err := ParseInvoiceRow(Row{
		"jobId": "JC-0042", "description": "Engine Oil", "category": "Engine", "type": "Fluid",
		"quantity": "3.5", "unitPrice": "420", "partId": "1712345678901",
	}, 2)
	require.NoError(t, err)
	require.Equal(t, "JC-0042", jobID)
	require.Len(t, items, 1)
	require.Empty(t, items[0].PartID, "only Part items link to inventory")

	_, items, _, err = ParseInvoiceRow(Row{
		"jobId": "JC-0042",
		"items": `[{"description":"Oil Filter","category":"Engine","type":"Part","quantity":1,"unitPrice":250,"partId":"1712345678901"}]`,
	}, 3)
	require.NoError(t, err)
	require.Equal(t, PartID("1712345678901"), items[0].PartID)

	_, _, _, err = ParseInvoiceRow(Row{"description": "orphan"}, 4)
	require.Error(t, err)
}
