// Package intake drives the four-step job card intake wizard. Drafts live in Redis so
// a wizard can be continued across requests until the job is created.
package intake

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/phoenix-garage/garage/internal/jobcard"
	"github.com/phoenix-garage/garage/internal/shared"
)

// Step is a wizard position.
type Step int

const (
	StepCustomer Step = iota + 1
	StepVehicle
	StepComplaints
	StepReview
)

// Name returns the label shown in the stepper.
func (s Step) Name() string {
	switch s {
	case StepCustomer:
		return "Customer"
	case StepVehicle:
		return "Vehicle"
	case StepComplaints:
		return "Complaints"
	case StepReview:
		return "Review"
	}
	return fmt.Sprintf("Step(%d)", int(s))
}

// DefaultFuelLevel is the fuel gauge position of a fresh draft, in percent.
const DefaultFuelLevel = 50

// CommonComplaints are the canned complaint labels offered on the complaints step.
var CommonComplaints = []string{
	"General Service",
	"Engine Noise",
	"Brake Issue",
	"AC Cooling",
	"Suspension Noise",
	"Electrical Fault",
	"Oil Leak",
	"Battery Dead",
}

// FuelTypes are the fuel options offered on the vehicle step.
var FuelTypes = []string{"Petrol", "Diesel", "Other"}

var (
	// ErrNotReviewStep is returned when a job is created before the review step.
	ErrNotReviewStep = fmt.Errorf("job can only be created from the review step: %w", shared.ErrValidation)
	// ErrAlreadySubmitted is returned when a draft is edited after its job was created.
	ErrAlreadySubmitted = fmt.Errorf("draft already submitted: %w", shared.ErrConflict)
)

// Form accumulates the data entered across the wizard.
type Form struct {
	CustomerName  string   `json:"customerName"`
	Phone         string   `json:"phone"`
	Brand         string   `json:"brand"`
	Model         string   `json:"model"`
	NumberPlate   string   `json:"numberPlate"`
	FuelType      string   `json:"fuelType"`
	FuelLevel     int      `json:"fuelLevel"`
	VehicleImages []string `json:"vehicleImages"`
	Complaints    []string `json:"complaints"`
	Notes         string   `json:"notes"`
}

// Draft is one wizard in progress.
type Draft struct {
	ID        string    `json:"id"`
	Step      Step      `json:"step"`
	StepName  string    `json:"stepName"`
	Form      Form      `json:"form"`
	JobID     string    `json:"jobId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewDraft returns an empty draft positioned on the customer step.
func NewDraft(id string, now time.Time) Draft {
	return Draft{
		ID:       id,
		Step:     StepCustomer,
		StepName: StepCustomer.Name(),
		Form: Form{
			FuelLevel:     DefaultFuelLevel,
			VehicleImages: []string{},
			Complaints:    []string{},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CheckGate validates the fields the given step requires before moving past it.
func (f Form) CheckGate(step Step) error {
	switch step {
	case StepCustomer:
		if strings.TrimSpace(f.CustomerName) == "" {
			return shared.NewFieldError("customerName", "please enter customer name")
		}
		if strings.TrimSpace(f.Phone) == "" {
			return shared.NewFieldError("phone", "please enter phone number")
		}
	case StepVehicle:
		if strings.TrimSpace(f.Brand) == "" {
			return shared.NewFieldError("brand", "please select or enter a brand")
		}
		if strings.TrimSpace(f.Model) == "" {
			return shared.NewFieldError("model", "please select or enter a model")
		}
		if strings.TrimSpace(f.NumberPlate) == "" {
			return shared.NewFieldError("numberPlate", "please enter number plate")
		}
	case StepComplaints:
		if len(f.Complaints) == 0 && strings.TrimSpace(f.Notes) == "" {
			return shared.NewFieldError("complaints", "please select at least one complaint or add a note")
		}
	}
	return nil
}

// Next advances one step if the current step's gate passes. It is a no-op on the
// review step.
func (d *Draft) Next() error {
	if err := d.Form.CheckGate(d.Step); err != nil {
		return err
	}
	if d.Step < StepReview {
		d.Step++
	}
	d.StepName = d.Step.Name()
	return nil
}

// Back moves one step back, never below the customer step.
func (d *Draft) Back() {
	if d.Step > StepCustomer {
		d.Step--
	}
	d.StepName = d.Step.Name()
}

// ToggleComplaint selects label, or deselects it when already selected.
func (d *Draft) ToggleComplaint(label string) error {
	label = strings.TrimSpace(label)
	if label == "" {
		return shared.NewFieldError("label", "is required")
	}
	if i := slices.Index(d.Form.Complaints, label); i >= 0 {
		d.Form.Complaints = slices.Delete(d.Form.Complaints, i, i+1)
		return nil
	}
	d.Form.Complaints = append(d.Form.Complaints, label)
	return nil
}

// RemoveImage drops the image at index.
func (d *Draft) RemoveImage(index int) error {
	if index < 0 || index >= len(d.Form.VehicleImages) {
		return shared.NewFieldError("index", "is out of range")
	}
	d.Form.VehicleImages = slices.Delete(d.Form.VehicleImages, index, index+1)
	return nil
}

// NewJob converts the completed form into a job creation request.
func (f Form) NewJob() jobcard.NewJob {
	return jobcard.NewJob{
		CustomerName:  f.CustomerName,
		Phone:         f.Phone,
		Brand:         f.Brand,
		Model:         f.Model,
		NumberPlate:   f.NumberPlate,
		FuelType:      f.FuelType,
		FuelLevel:     f.FuelLevel,
		VehicleImages: slices.Clone(f.VehicleImages),
		Complaints:    slices.Clone(f.Complaints),
		Notes:         f.Notes,
	}
}

// FormPatch edits form fields. Nil fields are left unchanged.
type FormPatch struct {
	CustomerName *string   `json:"customerName,omitempty"`
	Phone        *string   `json:"phone,omitempty"`
	Brand        *string   `json:"brand,omitempty"`
	Model        *string   `json:"model,omitempty"`
	NumberPlate  *string   `json:"numberPlate,omitempty"`
	FuelType     *string   `json:"fuelType,omitempty"`
	FuelLevel    *int      `json:"fuelLevel,omitempty"`
	Complaints   *[]string `json:"complaints,omitempty"`
	Notes        *string   `json:"notes,omitempty"`
}

var plateCase = cases.Upper(language.Und)

// NormalizePlate upper-cases a number plate and collapses inner whitespace.
func NormalizePlate(plate string) string {
	return plateCase.String(strings.Join(strings.Fields(plate), " "))
}

func (p FormPatch) apply(f *Form) error {
	if p.CustomerName != nil {
		f.CustomerName = strings.TrimSpace(*p.CustomerName)
	}
	if p.Phone != nil {
		f.Phone = strings.TrimSpace(*p.Phone)
	}
	if p.Brand != nil {
		brand := strings.TrimSpace(*p.Brand)
		// Picking another brand clears a model chosen for the previous one.
		if brand != f.Brand && p.Model == nil {
			f.Model = ""
		}
		f.Brand = brand
	}
	if p.Model != nil {
		f.Model = strings.TrimSpace(*p.Model)
	}
	if p.NumberPlate != nil {
		f.NumberPlate = NormalizePlate(*p.NumberPlate)
	}
	if p.FuelType != nil {
		fuel := strings.TrimSpace(*p.FuelType)
		if fuel != "" && !slices.Contains(FuelTypes, fuel) {
			return shared.NewFieldError("fuelType", "must be one of "+strings.Join(FuelTypes, ", "))
		}
		f.FuelType = fuel
	}
	if p.FuelLevel != nil {
		if *p.FuelLevel < 0 || *p.FuelLevel > 100 {
			return shared.NewFieldError("fuelLevel", "must be between 0 and 100")
		}
		f.FuelLevel = *p.FuelLevel
	}
	if p.Complaints != nil {
		out := make([]string, 0, len(*p.Complaints))
		for _, c := range *p.Complaints {
			if c = strings.TrimSpace(c); c != "" && !slices.Contains(out, c) {
				out = append(out, c)
			}
		}
		f.Complaints = out
	}
	if p.Notes != nil {
		f.Notes = *p.Notes
	}
	return nil
}

// Redirect is where the client navigates after a job is created.
func Redirect(jobID string, autoprint bool) string {
	if autoprint {
		return "/job-card/" + jobID + "?autoprint=true"
	}
	return "/jobs"
}

func isSubmitted(d Draft) error {
	if d.JobID != "" {
		return ErrAlreadySubmitted
	}
	return nil
}

var errDraftKey = errors.New("draft id required")
