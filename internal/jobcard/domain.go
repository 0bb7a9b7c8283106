package jobcard

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/phoenix-garage/garage/internal/shared"
)

// Status is the dispatcher-operated work state of a job.
type Status string

const (
	StatusOpen       Status = "Open"
	StatusInProgress Status = "In Progress"
	StatusFinished   Status = "Finished"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusFinished:
		return true
	}
	return false
}

// PaymentStatus tracks settlement of a job.
type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "Unpaid"
	PaymentPaid    PaymentStatus = "Paid"
	PaymentAdvance PaymentStatus = "Advance"
)

// Valid reports whether p is a known payment status.
func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentUnpaid, PaymentPaid, PaymentAdvance:
		return true
	}
	return false
}

// Job is a job card: one vehicle service visit.
type Job struct {
	ID            string          `json:"id"`
	Date          time.Time       `json:"date"`
	CustomerName  string          `json:"customerName"`
	Phone         string          `json:"phone"`
	Vehicle       string          `json:"vehicle"`
	Brand         string          `json:"brand"`
	Model         string          `json:"model"`
	NumberPlate   string          `json:"numberPlate"`
	FuelType      string          `json:"fuelType,omitempty"`
	FuelLevel     int             `json:"fuelLevel"`
	VehicleImages []string        `json:"vehicleImages"`
	Status        Status          `json:"status"`
	PaymentStatus PaymentStatus   `json:"paymentStatus"`
	AdvanceAmount decimal.Decimal `json:"advanceAmount"`
	Complaints    []string        `json:"complaints"`
	Notes         string          `json:"notes,omitempty"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// VehicleLabel is the display name shown on lists and documents.
func VehicleLabel(brand, model string) string {
	return strings.TrimSpace(strings.TrimSpace(brand) + " " + strings.TrimSpace(model))
}

// normalizePayment enforces that only Advance jobs carry an advance amount.
func (j *Job) normalizePayment() {
	if j.PaymentStatus != PaymentAdvance {
		j.AdvanceAmount = decimal.Zero
	}
}

// InvoiceSuffix is the part of the job id used in invoice numbers.
func InvoiceSuffix(jobID string) string {
	if i := strings.LastIndexByte(jobID, '-'); i >= 0 && i < len(jobID)-1 {
		return jobID[i+1:]
	}
	return jobID
}

// TransitionPolicy decides whether a status change is allowed.
type TransitionPolicy func(from, to Status) error

// PermissiveTransitions allows any status to follow any other.
func PermissiveTransitions(_, _ Status) error { return nil }

// ForwardOnlyTransitions rejects moving a job back to an earlier state. It is not the
// default; shops that want a strict workflow opt in through ServiceConfig.
func ForwardOnlyTransitions(from, to Status) error {
	rank := map[Status]int{StatusOpen: 0, StatusInProgress: 1, StatusFinished: 2}
	if rank[to] < rank[from] {
		return fmt.Errorf("%w: %s -> %s", ErrTransitionRejected, from, to)
	}
	return nil
}

// ErrTransitionRejected is returned when a TransitionPolicy refuses a change.
var ErrTransitionRejected = fmt.Errorf("jobcard: status transition rejected: %w", shared.ErrValidation)

// ErrTotalAmountReadOnly is returned when a caller tries to set totalAmount directly.
var ErrTotalAmountReadOnly = shared.NewFieldError("totalAmount", "is derived from line items and cannot be set")

// ListFilter narrows List results.
type ListFilter struct {
	Status        Status
	PaymentStatus PaymentStatus
	Search        string
	Limit         int
}

var errNoIDs = errors.New("jobcard: could not allocate a job id")
