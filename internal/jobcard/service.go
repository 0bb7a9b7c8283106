package jobcard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/phoenix-garage/garage/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Insert(ctx context.Context, job Job) error
	Get(ctx context.Context, id string) (Job, error)
	List(ctx context.Context, filter ListFilter) ([]Job, error)
	Delete(ctx context.Context, id string) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	Transitions TransitionPolicy
}

// Service implements the job lifecycle.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	logger      *slog.Logger
	transitions TransitionPolicy
	newID       func() string
	now         func() time.Time
}

// NewService builds Service. A nil transition policy is permissive.
func NewService(repo RepositoryPort, audit AuditPort, logger *slog.Logger, cfg ServiceConfig) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	policy := cfg.Transitions
	if policy == nil {
		policy = PermissiveTransitions
	}
	return &Service{
		repo:        repo,
		audit:       audit,
		logger:      logger,
		transitions: policy,
		newID:       func() string { return shared.ShortCode("JC", 4) },
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a new Open, Unpaid job with a zero total and no line items.
func (s *Service) Create(ctx context.Context, input NewJob) (Job, error) {
	input.normalize()
	if err := shared.ValidateStruct(input); err != nil {
		return Job{}, err
	}
	job := Job{
		Date:          s.now(),
		CustomerName:  input.CustomerName,
		Phone:         input.Phone,
		Vehicle:       VehicleLabel(input.Brand, input.Model),
		Brand:         input.Brand,
		Model:         input.Model,
		NumberPlate:   input.NumberPlate,
		FuelType:      input.FuelType,
		FuelLevel:     input.FuelLevel,
		VehicleImages: input.VehicleImages,
		Status:        StatusOpen,
		PaymentStatus: PaymentUnpaid,
		AdvanceAmount: decimal.Zero,
		Complaints:    input.Complaints,
		Notes:         input.Notes,
		TotalAmount:   decimal.Zero,
	}
	job.UpdatedAt = job.Date

	for attempt := 0; attempt < shared.CodeAttempts; attempt++ {
		job.ID = s.newID()
		err := s.repo.Insert(ctx, job)
		if err == nil {
			s.record(ctx, "job:create", job.ID, map[string]any{"customer": job.CustomerName, "plate": job.NumberPlate})
			return job, nil
		}
		if !errors.Is(err, shared.ErrConflict) {
			return Job{}, fmt.Errorf("create job: %w", err)
		}
	}
	return Job{}, errNoIDs
}

// Update applies patch under a row lock.
func (s *Service) Update(ctx context.Context, id string, patch JobPatch) (Job, error) {
	if patch.Empty() {
		return Job{}, shared.NewFieldError("updates", "at least one field is required")
	}
	job, err := s.mutate(ctx, id, func(job *Job) error {
		return patch.apply(job, s.transitions)
	})
	if err != nil {
		return Job{}, err
	}
	s.record(ctx, "job:update", id, map[string]any{"status": job.Status, "payment_status": job.PaymentStatus})
	return job, nil
}

// MarkPaid sets the payment status to Paid regardless of totals or advances.
func (s *Service) MarkPaid(ctx context.Context, id string) (Job, error) {
	job, err := s.mutate(ctx, id, func(job *Job) error {
		job.PaymentStatus = PaymentPaid
		job.normalizePayment()
		return nil
	})
	if err != nil {
		return Job{}, err
	}
	s.record(ctx, "job:mark-paid", id, map[string]any{"total_amount": job.TotalAmount.String()})
	return job, nil
}

// AppendImages adds uploaded image URLs to the job, keeping existing order.
func (s *Service) AppendImages(ctx context.Context, id string, urls []string) (Job, error) {
	urls = compact(urls)
	if len(urls) == 0 {
		return Job{}, shared.NewFieldError("urls", "at least one url is required")
	}
	return s.mutate(ctx, id, func(job *Job) error {
		job.VehicleImages = append(job.VehicleImages, urls...)
		return nil
	})
}

func (s *Service) mutate(ctx context.Context, id string, fn func(*Job) error) (Job, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Job{}, shared.NewFieldError("id", "is required")
	}
	var out Job
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		job, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(&job); err != nil {
			return err
		}
		if err := tx.Update(ctx, job); err != nil {
			return err
		}
		out = job
		return nil
	})
	return out, err
}

// Delete removes a job and its line items. Stock deducted by its invoice is not
// returned to inventory.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, "job:delete", id, nil)
	return nil
}

// Get returns one job.
func (s *Service) Get(ctx context.Context, id string) (Job, error) {
	return s.repo.Get(ctx, id)
}

// List returns jobs matching filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Job, error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) record(ctx context.Context, action, id string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		Actor:    shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "job",
		EntityID: id,
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
