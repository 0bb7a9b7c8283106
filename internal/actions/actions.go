// Package actions serves the single-endpoint action API used by the original
// spreadsheet frontend: GET /exec?action=... for reads and POST /exec with
// {"action": ..., "payload": ...} for writes.
package actions

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/phoenix-garage/garage/internal/inventory"
	"github.com/phoenix-garage/garage/internal/invoice"
	"github.com/phoenix-garage/garage/internal/jobcard"
	"github.com/phoenix-garage/garage/internal/platform/blob"
	"github.com/phoenix-garage/garage/internal/platform/httpx"
	"github.com/phoenix-garage/garage/internal/shared"
)

// Action names accepted by the endpoint.
const (
	GetInventory     = "getInventory"
	GetJobs          = "getJobs"
	GetInvoiceItems  = "getInvoiceItems"
	AddPart          = "addPart"
	AddJob           = "addJob"
	DeletePart       = "deletePart"
	DeleteJob        = "deleteJob"
	UpdatePart       = "updatePart"
	UpdateJob        = "updateJob"
	SaveInvoiceItems = "saveInvoiceItems"
	UploadImage      = "uploadImage"
)

// PartService is the inventory surface the actions use.
type PartService interface {
	List(ctx context.Context, filter inventory.ListFilter) ([]inventory.Part, error)
	Create(ctx context.Context, input inventory.CreatePartInput) (inventory.Part, error)
	Update(ctx context.Context, id string, patch inventory.PartPatch) (inventory.Part, error)
	Delete(ctx context.Context, id string) error
}

// JobService is the job lifecycle surface the actions use.
type JobService interface {
	Create(ctx context.Context, input jobcard.NewJob) (jobcard.Job, error)
	Update(ctx context.Context, id string, patch jobcard.JobPatch) (jobcard.Job, error)
	Delete(ctx context.Context, id string) error
}

// InvoiceService is the invoice surface the actions use.
type InvoiceService interface {
	Items(ctx context.Context, jobID string) ([]invoice.LineItem, error)
	SaveItems(ctx context.Context, jobID string, items []invoice.LineItem) (invoice.Result, error)
	JobsWithItems(ctx context.Context, filter jobcard.ListFilter) ([]invoice.Detail, error)
}

// UploadObserver counts failed image uploads.
type UploadObserver interface {
	ObserveUploadFailure(source string)
}

// Outcome is what an action returns. URL and FileID are only set by uploads, which
// report them beside data for older clients.
type Outcome struct {
	Data    any
	Message string
	URL     string
	FileID  string
	Created bool
}

type (
	queryFunc   func(ctx context.Context, params map[string]string) (Outcome, error)
	commandFunc func(ctx context.Context, payload json.RawMessage) (Outcome, error)
)

// Dispatcher routes action names to services.
type Dispatcher struct {
	parts    PartService
	jobs     JobService
	invoices InvoiceService
	uploader blob.Uploader
	observer UploadObserver
	logger   *slog.Logger

	queries  map[string]queryFunc
	commands map[string]commandFunc
}

// NewDispatcher wires the action table. uploader and observer may be nil.
func NewDispatcher(parts PartService, jobs JobService, invoices InvoiceService, uploader blob.Uploader, observer UploadObserver, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		parts:    parts,
		jobs:     jobs,
		invoices: invoices,
		uploader: uploader,
		observer: observer,
		logger:   logger,
	}
	d.queries = map[string]queryFunc{
		GetInventory:    d.getInventory,
		GetJobs:         d.getJobs,
		GetInvoiceItems: d.getInvoiceItems,
	}
	d.commands = map[string]commandFunc{
		AddPart:          d.addPart,
		AddJob:           d.addJob,
		DeletePart:       d.deletePart,
		DeleteJob:        d.deleteJob,
		UpdatePart:       d.updatePart,
		UpdateJob:        d.updateJob,
		SaveInvoiceItems: d.saveInvoiceItems,
		UploadImage:      d.uploadImage,
	}
	return d
}

// ErrUnknownAction is returned for an action name the endpoint does not serve.
var ErrUnknownAction = fmt.Errorf("%w: invalid action", httpx.ErrBadRequest)

// Query runs a read action.
func (d *Dispatcher) Query(ctx context.Context, action string, params map[string]string) (Outcome, error) {
	fn, ok := d.queries[action]
	if !ok {
		return Outcome{}, ErrUnknownAction
	}
	return fn(ctx, params)
}

// Command runs a write action.
func (d *Dispatcher) Command(ctx context.Context, action string, payload json.RawMessage) (Outcome, error) {
	fn, ok := d.commands[action]
	if !ok {
		return Outcome{}, ErrUnknownAction
	}
	return fn(ctx, payload)
}

func (d *Dispatcher) getInventory(ctx context.Context, params map[string]string) (Outcome, error) {
	parts, err := d.parts.List(ctx, inventory.ListFilter{
		Search:   params["search"],
		Status:   inventory.StockStatus(params["status"]),
		Category: params["category"],
	})
	return Outcome{Data: parts}, err
}

func (d *Dispatcher) getJobs(ctx context.Context, params map[string]string) (Outcome, error) {
	jobs, err := d.invoices.JobsWithItems(ctx, jobcard.ListFilter{
		Status:        jobcard.Status(params["status"]),
		PaymentStatus: jobcard.PaymentStatus(params["paymentStatus"]),
		Search:        params["search"],
	})
	return Outcome{Data: jobs}, err
}

func (d *Dispatcher) getInvoiceItems(ctx context.Context, params map[string]string) (Outcome, error) {
	jobID := strings.TrimSpace(params["jobId"])
	if jobID == "" {
		return Outcome{}, shared.NewFieldError("jobId", "is required")
	}
	items, err := d.invoices.Items(ctx, jobID)
	return Outcome{Data: items}, err
}

func (d *Dispatcher) addPart(ctx context.Context, payload json.RawMessage) (Outcome, error) {
	// Older clients send id, sku and status along with the form; those are assigned
	// server side and ignored here.
	var input inventory.CreatePartInput
	if err := decodeLoose(payload, &input); err != nil {
		return Outcome{}, err
	}
	part, err := d.parts.Create(ctx, input)
	return Outcome{Data: part, Message: "Added successfully", Created: true}, err
}

func (d *Dispatcher) addJob(ctx context.Context, payload json.RawMessage) (Outcome, error) {
	var input jobcard.NewJob
	if err := decodeLoose(payload, &input); err != nil {
		return Outcome{}, err
	}
	job, err := d.jobs.Create(ctx, input)
	return Outcome{Data: job, Message: "Added successfully", Created: true}, err
}

type idPayload struct {
	ID string `json:"id"`
}

func (d *Dispatcher) deletePart(ctx context.Context, payload json.RawMessage) (Outcome, error) {
	var p idPayload
	if err := decodeLoose(payload, &p); err != nil {
		return Outcome{}, err
	}
	if err := d.parts.Delete(ctx, p.ID); err != nil {
		return Outcome{}, err
	}
	return Outcome{Data: p, Message: "Deleted successfully"}, nil
}

func (d *Dispatcher) deleteJob(ctx context.Context, payload json.RawMessage) (Outcome, error) {
	var p idPayload
	if err := decodeLoose(payload, &p); err != nil {
		return Outcome{}, err
	}
	if err := d.jobs.Delete(ctx, p.ID); err != nil {
		return Outcome{}, err
	}
	return Outcome{Data: p, Message: "Deleted successfully"}, nil
}

type updatePayload struct {
	ID      string          `json:"id"`
	Updates json.RawMessage `json:"updates"`
}

// readOnlyPartFields are accepted in updatePart and dropped: the client echoes them
// back from the list it edited.
var readOnlyPartFields = []string{"id", "sku", "status", "createdAt", "updatedAt"}

func (d *Dispatcher) updatePart(ctx context.Context, payload json.RawMessage) (Outcome, error) {
	var p updatePayload
	if err := decodeLoose(payload, &p); err != nil {
		return Outcome{}, err
	}
	patch, err := parsePartPatch(p.Updates)
	if err != nil {
		return Outcome{}, err
	}
	part, err := d.parts.Update(ctx, p.ID, patch)
	return Outcome{Data: part, Message: "Updated successfully"}, err
}

func parsePartPatch(raw json.RawMessage) (inventory.PartPatch, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return inventory.PartPatch{}, fmt.Errorf("%w: updates: %v", httpx.ErrBadRequest, err)
	}
	for _, k := range readOnlyPartFields {
		delete(fields, k)
	}
	clean, err := json.Marshal(fields)
	if err != nil {
		return inventory.PartPatch{}, err
	}
	dec := json.NewDecoder(bytes.NewReader(clean))
	dec.DisallowUnknownFields()
	var patch inventory.PartPatch
	if err := dec.Decode(&patch); err != nil {
		return inventory.PartPatch{}, fmt.Errorf("%w: updates: %v", httpx.ErrBadRequest, err)
	}
	return patch, nil
}

func (d *Dispatcher) updateJob(ctx context.Context, payload json.RawMessage) (Outcome, error) {
	var p updatePayload
	if err := decodeLoose(payload, &p); err != nil {
		return Outcome{}, err
	}
	patch, err := jobcard.ParsePatch(p.Updates)
	if err != nil {
		return Outcome{}, err
	}
	job, err := d.jobs.Update(ctx, p.ID, patch)
	return Outcome{Data: job, Message: "Updated successfully"}, err
}

func (d *Dispatcher) saveInvoiceItems(ctx context.Context, payload json.RawMessage) (Outcome, error) {
	var p struct {
		JobID string             `json:"jobId"`
		Items []invoice.LineItem `json:"items"`
	}
	if err := decodeLoose(payload, &p); err != nil {
		return Outcome{}, err
	}
	res, err := d.invoices.SaveItems(ctx, p.JobID, p.Items)
	return Outcome{Data: res, Message: "Saved successfully"}, err
}

func (d *Dispatcher) uploadImage(ctx context.Context, payload json.RawMessage) (Outcome, error) {
	var p struct {
		Data     string `json:"data"`
		Filename string `json:"filename"`
		MimeType string `json:"mimeType"`
	}
	if err := decodeLoose(payload, &p); err != nil {
		return Outcome{}, err
	}
	if d.uploader == nil {
		return Outcome{}, fmt.Errorf("image upload not configured: %w", shared.ErrUpload)
	}
	data, err := decodeBase64(p.Data)
	if err != nil {
		return Outcome{}, shared.NewFieldError("data", "must be base64 encoded")
	}
	obj, err := d.uploader.Upload(ctx, data, p.Filename, p.MimeType)
	if err != nil {
		d.logger.Warn("image upload failed", slog.String("file", p.Filename), slog.Any("error", err))
		if d.observer != nil {
			d.observer.ObserveUploadFailure("action")
		}
		return Outcome{}, err
	}
	return Outcome{Data: obj, URL: obj.URL, FileID: obj.FileID}, nil
}

// decodeBase64 accepts plain base64 or a data: URL as produced by FileReader.
func decodeBase64(s string) ([]byte, error) {
	if i := strings.Index(s, ";base64,"); i >= 0 && strings.HasPrefix(s, "data:") {
		s = s[i+len(";base64,"):]
	}
	return base64.StdEncoding.DecodeString(strings.TrimSpace(s))
}

func decodeLoose(raw json.RawMessage, target any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return fmt.Errorf("%w: payload is required", httpx.ErrBadRequest)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("%w: payload: %v", httpx.ErrBadRequest, err)
	}
	return nil
}
