package legacy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phoenix-garage/garage/internal/inventory"
	"github.com/phoenix-garage/garage/internal/invoice"
	"github.com/phoenix-garage/garage/internal/jobcard"
)

// Mode selects whether an import writes.
type Mode string

const (
	ModeDry   Mode = "dry"
	ModeApply Mode = "apply"
)

// JobRecord is a job with its line items.
type JobRecord struct {
	Job   jobcard.Job
	Items []invoice.LineItem
}

// Sink stores imported records. Rows whose key already exists are skipped, so an
// import can be re-run.
type Sink interface {
	ImportParts(ctx context.Context, parts []inventory.Part) (int, error)
	ImportJobs(ctx context.Context, jobs []JobRecord) (int, error)
}

// SheetSummary counts the rows of one sheet.
type SheetSummary struct {
	Rows     int `json:"rows"`
	Valid    int `json:"valid"`
	Rejected int `json:"rejected"`
	Inserted int `json:"inserted"`
	Existing int `json:"existing"`
}

// Summary reports an import run.
type Summary struct {
	Mode      Mode         `json:"mode"`
	Parts     SheetSummary `json:"parts"`
	Jobs      SheetSummary `json:"jobs"`
	Invoice   SheetSummary `json:"invoice"`
	LineItems int          `json:"lineItems"`
	Warnings  []Warning    `json:"warnings"`
	Errors    []string     `json:"errors"`
}

// Clean reports whether every row was accepted without coercion.
func (s Summary) Clean() bool {
	return len(s.Warnings) == 0 && len(s.Errors) == 0
}

// Importer converts a workbook and hands the records to a Sink.
type Importer struct {
	sink   Sink
	logger *slog.Logger
	now    func() time.Time
}

// NewImporter constructs an Importer. sink may be nil for dry runs only.
func NewImporter(sink Sink, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{sink: sink, logger: logger, now: time.Now}
}

// Run parses every sheet and, in apply mode, writes the accepted records.
func (im *Importer) Run(ctx context.Context, wb Workbook, mode Mode) (Summary, error) {
	if mode != ModeDry && mode != ModeApply {
		return Summary{}, fmt.Errorf("legacy: unknown mode %q", mode)
	}
	if mode == ModeApply && im.sink == nil {
		return Summary{}, errors.New("legacy: apply mode needs a sink")
	}
	sum := Summary{Mode: mode, Warnings: []Warning{}, Errors: []string{}}

	parts := im.parts(wb, &sum)
	jobs := im.jobs(wb, &sum)
	im.invoiceRows(wb, jobs, &sum)

	records := make([]JobRecord, 0, len(jobs.order))
	for _, id := range jobs.order {
		rec := jobs.byID[id]
		items, err := invoice.NormalizeItems(rec.Items)
		if err != nil {
			sum.Warnings = append(sum.Warnings, Warning{Sheet: SheetJobs, Row: jobs.rows[id], Field: "lineItems", Message: err.Error() + ", no items imported"})
			items = []invoice.LineItem{}
		}
		rec.Items = items
		rec.Job.TotalAmount = invoice.SumTotals(items)
		sum.LineItems += len(items)
		records = append(records, *rec)
	}

	if mode == ModeDry {
		return sum, nil
	}

	n, err := im.sink.ImportParts(ctx, parts)
	if err != nil {
		return sum, fmt.Errorf("legacy: import parts: %w", err)
	}
	sum.Parts.Inserted, sum.Parts.Existing = n, len(parts)-n

	n, err = im.sink.ImportJobs(ctx, records)
	if err != nil {
		return sum, fmt.Errorf("legacy: import jobs: %w", err)
	}
	sum.Jobs.Inserted, sum.Jobs.Existing = n, len(records)-n

	im.logger.Info("legacy import applied",
		slog.Int("parts", sum.Parts.Inserted),
		slog.Int("jobs", sum.Jobs.Inserted),
		slog.Int("line_items", sum.LineItems),
		slog.Int("warnings", len(sum.Warnings)))
	return sum, nil
}

func (s *Summary) reject(sheet *SheetSummary, err error) {
	sheet.Rejected++
	s.Errors = append(s.Errors, err.Error())
}

func (im *Importer) parts(wb Workbook, sum *Summary) []inventory.Part {
	rows := wb.Rows(SheetInventory)
	sum.Parts.Rows = len(rows)
	out := make([]inventory.Part, 0, len(rows))
	seenID := map[string]int{}
	seenSKU := map[string]int{}
	for _, nr := range rows {
		part, warnings, err := ParsePart(nr.Row, nr.Num)
		sum.Warnings = append(sum.Warnings, warnings...)
		if err != nil {
			sum.reject(&sum.Parts, err)
			continue
		}
		if first, dup := seenID[part.ID]; dup {
			sum.reject(&sum.Parts, &RowError{Sheet: SheetInventory, Row: nr.Num, Err: fmt.Errorf("duplicate id, first seen on row %d", first)})
			continue
		}
		if first, dup := seenSKU[part.SKU]; dup {
			sum.reject(&sum.Parts, &RowError{Sheet: SheetInventory, Row: nr.Num, Err: fmt.Errorf("duplicate sku %s, first seen on row %d", part.SKU, first)})
			continue
		}
		seenID[part.ID], seenSKU[part.SKU] = nr.Num, nr.Num
		now := im.now().UTC()
		part.CreatedAt, part.UpdatedAt = now, now
		out = append(out, part)
	}
	sum.Parts.Valid = len(out)
	return out
}

type jobSet struct {
	order []string
	byID  map[string]*JobRecord
	rows  map[string]int
}

func (im *Importer) jobs(wb Workbook, sum *Summary) jobSet {
	rows := wb.Rows(SheetJobs)
	sum.Jobs.Rows = len(rows)
	set := jobSet{byID: map[string]*JobRecord{}, rows: map[string]int{}}
	for _, nr := range rows {
		job, items, warnings, err := ParseJob(nr.Row, nr.Num)
		sum.Warnings = append(sum.Warnings, warnings...)
		if err != nil {
			sum.reject(&sum.Jobs, err)
			continue
		}
		if first, dup := set.rows[job.ID]; dup {
			sum.reject(&sum.Jobs, &RowError{Sheet: SheetJobs, Row: nr.Num, Err: fmt.Errorf("duplicate id, first seen on row %d", first)})
			continue
		}
		if job.Date.IsZero() {
			job.Date = im.now().UTC()
		}
		job.UpdatedAt = im.now().UTC()
		set.order = append(set.order, job.ID)
		set.byID[job.ID] = &JobRecord{Job: job, Items: items}
		set.rows[job.ID] = nr.Num
	}
	sum.Jobs.Valid = len(set.order)
	return set
}

// invoiceRows appends Invoice sheet items to their jobs, after any items from the
// job's own lineItems column.
func (im *Importer) invoiceRows(wb Workbook, jobs jobSet, sum *Summary) {
	rows := wb.Rows(SheetInvoice)
	sum.Invoice.Rows = len(rows)
	for _, nr := range rows {
		jobID, items, warnings, err := ParseInvoiceRow(nr.Row, nr.Num)
		sum.Warnings = append(sum.Warnings, warnings...)
		if err != nil {
			sum.reject(&sum.Invoice, err)
			continue
		}
		rec, ok := jobs.byID[jobID]
		if !ok {
			sum.reject(&sum.Invoice, &RowError{Sheet: SheetInvoice, Row: nr.Num, Err: fmt.Errorf("unknown job %s", jobID)})
			continue
		}
		rec.Items = append(rec.Items, items...)
		sum.Invoice.Valid++
	}
}
