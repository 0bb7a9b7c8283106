package jobcard

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/phoenix-garage/garage/internal/shared"
)

// NewJob carries the intake data for a job card.
type NewJob struct {
	CustomerName  string   `json:"customerName" validate:"required,max=200"`
	Phone         string   `json:"phone" validate:"required,max=40"`
	Brand         string   `json:"brand" validate:"required,max=80"`
	Model         string   `json:"model" validate:"required,max=80"`
	NumberPlate   string   `json:"numberPlate" validate:"required,max=20"`
	FuelType      string   `json:"fuelType" validate:"max=30"`
	FuelLevel     int      `json:"fuelLevel" validate:"gte=0,lte=100"`
	VehicleImages []string `json:"vehicleImages"`
	Complaints    []string `json:"complaints"`
	Notes         string   `json:"notes"`
}

func (n *NewJob) normalize() {
	n.CustomerName = strings.TrimSpace(n.CustomerName)
	n.Phone = strings.TrimSpace(n.Phone)
	n.Brand = strings.TrimSpace(n.Brand)
	n.Model = strings.TrimSpace(n.Model)
	n.NumberPlate = strings.TrimSpace(n.NumberPlate)
	n.FuelType = strings.TrimSpace(n.FuelType)
	n.Notes = strings.TrimSpace(n.Notes)
	n.VehicleImages = compact(n.VehicleImages)
	n.Complaints = compact(n.Complaints)
}

// JobPatch updates any job field except id, date and totalAmount. Nil fields are left
// unchanged.
type JobPatch struct {
	CustomerName  *string          `json:"customerName,omitempty"`
	Phone         *string          `json:"phone,omitempty"`
	Brand         *string          `json:"brand,omitempty"`
	Model         *string          `json:"model,omitempty"`
	NumberPlate   *string          `json:"numberPlate,omitempty"`
	FuelType      *string          `json:"fuelType,omitempty"`
	FuelLevel     *int             `json:"fuelLevel,omitempty"`
	VehicleImages *[]string        `json:"vehicleImages,omitempty"`
	Status        *Status          `json:"status,omitempty"`
	PaymentStatus *PaymentStatus   `json:"paymentStatus,omitempty"`
	AdvanceAmount *decimal.Decimal `json:"advanceAmount,omitempty"`
	Complaints    *[]string        `json:"complaints,omitempty"`
	Notes         *string          `json:"notes,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p JobPatch) Empty() bool {
	return p.CustomerName == nil && p.Phone == nil && p.Brand == nil && p.Model == nil &&
		p.NumberPlate == nil && p.FuelType == nil && p.FuelLevel == nil && p.VehicleImages == nil &&
		p.Status == nil && p.PaymentStatus == nil && p.AdvanceAmount == nil && p.Complaints == nil &&
		p.Notes == nil
}

func requiredText(field string, v *string, dst *string) error {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return shared.NewFieldError(field, "is required")
	}
	*dst = s
	return nil
}

// apply validates supplied fields and writes them onto job. Status changes go through
// policy.
func (p JobPatch) apply(job *Job, policy TransitionPolicy) error {
	if err := requiredText("customerName", p.CustomerName, &job.CustomerName); err != nil {
		return err
	}
	if err := requiredText("phone", p.Phone, &job.Phone); err != nil {
		return err
	}
	if err := requiredText("brand", p.Brand, &job.Brand); err != nil {
		return err
	}
	if err := requiredText("model", p.Model, &job.Model); err != nil {
		return err
	}
	if err := requiredText("numberPlate", p.NumberPlate, &job.NumberPlate); err != nil {
		return err
	}
	job.Vehicle = VehicleLabel(job.Brand, job.Model)
	if p.FuelType != nil {
		job.FuelType = strings.TrimSpace(*p.FuelType)
	}
	if p.FuelLevel != nil {
		if *p.FuelLevel < 0 || *p.FuelLevel > 100 {
			return shared.NewFieldError("fuelLevel", "must be between 0 and 100")
		}
		job.FuelLevel = *p.FuelLevel
	}
	if p.VehicleImages != nil {
		job.VehicleImages = compact(*p.VehicleImages)
	}
	if p.Complaints != nil {
		job.Complaints = compact(*p.Complaints)
	}
	if p.Notes != nil {
		job.Notes = strings.TrimSpace(*p.Notes)
	}
	if p.Status != nil {
		if !p.Status.Valid() {
			return shared.NewFieldError("status", "must be one of Open, In Progress, Finished")
		}
		if *p.Status != job.Status {
			if err := policy(job.Status, *p.Status); err != nil {
				return err
			}
		}
		job.Status = *p.Status
	}
	return p.applyPayment(job)
}

func (p JobPatch) applyPayment(job *Job) error {
	wasAdvance := job.PaymentStatus == PaymentAdvance
	if p.PaymentStatus != nil {
		if !p.PaymentStatus.Valid() {
			return shared.NewFieldError("paymentStatus", "must be one of Unpaid, Paid, Advance")
		}
		job.PaymentStatus = *p.PaymentStatus
	}
	if p.AdvanceAmount != nil && p.AdvanceAmount.IsNegative() {
		return shared.NewFieldError("advanceAmount", "must be at least 0")
	}
	if job.PaymentStatus == PaymentAdvance {
		switch {
		case p.AdvanceAmount != nil:
			job.AdvanceAmount = *p.AdvanceAmount
		case !wasAdvance:
			return shared.NewFieldError("advanceAmount", "is required when paymentStatus is Advance")
		}
	}
	job.normalizePayment()
	return nil
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
