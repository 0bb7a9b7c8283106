package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/phoenix-garage/garage/internal/jobcard"
	"github.com/phoenix-garage/garage/internal/platform/blob"
	"github.com/phoenix-garage/garage/internal/shared"
)

// StorePort persists drafts.
type StorePort interface {
	Load(ctx context.Context, id string) (Draft, error)
	Save(ctx context.Context, d Draft) error
	Delete(ctx context.Context, id string) error
}

// JobCreator creates and loads job cards.
type JobCreator interface {
	Create(ctx context.Context, input jobcard.NewJob) (jobcard.Job, error)
	Get(ctx context.Context, id string) (jobcard.Job, error)
}

// IdempotencyPort guards job creation against double submits.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// UploadObserver counts failed image uploads.
type UploadObserver interface {
	ObserveUploadFailure(source string)
}

// File is one image submitted for upload.
type File struct {
	Name     string
	MimeType string
	Data     []byte
}

// AttachResult reports a batch upload. Failed lists the names of files that were
// dropped.
type AttachResult struct {
	Draft    Draft    `json:"draft"`
	Uploaded []string `json:"uploaded"`
	Failed   []string `json:"failed"`
}

// CreateResult is the outcome of submitting a draft.
type CreateResult struct {
	Job      jobcard.Job `json:"job"`
	Redirect string      `json:"redirect"`
}

// Service runs the intake wizard.
type Service struct {
	store    StorePort
	jobs     JobCreator
	uploader blob.Uploader
	idem     IdempotencyPort
	observer UploadObserver
	logger   *slog.Logger
	newID    func() string
	now      func() time.Time
}

// NewService builds Service. uploader, idem and observer may be nil.
func NewService(store StorePort, jobs JobCreator, uploader blob.Uploader, idem IdempotencyPort, observer UploadObserver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		jobs:     jobs,
		uploader: uploader,
		idem:     idem,
		observer: observer,
		logger:   logger,
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

// Start opens a new draft on the customer step.
func (s *Service) Start(ctx context.Context) (Draft, error) {
	d := NewDraft(s.newID(), s.now().UTC())
	if err := s.store.Save(ctx, d); err != nil {
		return Draft{}, err
	}
	return d, nil
}

// Get returns a draft.
func (s *Service) Get(ctx context.Context, id string) (Draft, error) {
	return s.store.Load(ctx, id)
}

// Update edits form fields. Fields can be changed on any step; gates are checked on
// Next and Create.
func (s *Service) Update(ctx context.Context, id string, patch FormPatch) (Draft, error) {
	return s.mutate(ctx, id, func(d *Draft) error {
		return patch.apply(&d.Form)
	})
}

// ToggleComplaint selects or deselects a complaint label.
func (s *Service) ToggleComplaint(ctx context.Context, id, label string) (Draft, error) {
	return s.mutate(ctx, id, func(d *Draft) error {
		return d.ToggleComplaint(label)
	})
}

// RemoveImage drops an attached image by position.
func (s *Service) RemoveImage(ctx context.Context, id string, index int) (Draft, error) {
	return s.mutate(ctx, id, func(d *Draft) error {
		return d.RemoveImage(index)
	})
}

// Next advances the draft when the current step's gate passes.
func (s *Service) Next(ctx context.Context, id string) (Draft, error) {
	return s.mutate(ctx, id, func(d *Draft) error {
		return d.Next()
	})
}

// Back moves the draft one step back.
func (s *Service) Back(ctx context.Context, id string) (Draft, error) {
	return s.mutate(ctx, id, func(d *Draft) error {
		d.Back()
		return nil
	})
}

// AttachImages uploads files one by one and appends the URLs that came back. A file
// that fails to upload is logged, counted and skipped; the rest still attach.
func (s *Service) AttachImages(ctx context.Context, id string, files []File) (AttachResult, error) {
	d, err := s.store.Load(ctx, id)
	if err != nil {
		return AttachResult{}, err
	}
	if err := isSubmitted(d); err != nil {
		return AttachResult{}, err
	}
	if s.uploader == nil {
		return AttachResult{}, fmt.Errorf("image upload not configured: %w", shared.ErrUpload)
	}

	res := AttachResult{Uploaded: []string{}, Failed: []string{}}
	for _, f := range files {
		obj, err := s.uploader.Upload(ctx, f.Data, f.Name, f.MimeType)
		if err != nil {
			s.logger.Warn("vehicle image upload failed", slog.String("draft_id", id), slog.String("file", f.Name), slog.Any("error", err))
			if s.observer != nil {
				s.observer.ObserveUploadFailure("intake")
			}
			res.Failed = append(res.Failed, f.Name)
			continue
		}
		res.Uploaded = append(res.Uploaded, obj.URL)
	}

	// Reload so edits made while uploading are not overwritten.
	d, err = s.mutate(ctx, id, func(d *Draft) error {
		d.Form.VehicleImages = append(d.Form.VehicleImages, res.Uploaded...)
		return nil
	})
	if err != nil {
		return AttachResult{}, err
	}
	res.Draft = d
	return res, nil
}

// Create persists the job described by a draft on the review step. Submitting the same
// draft again returns the job created the first time.
func (s *Service) Create(ctx context.Context, id string, autoprint bool) (CreateResult, error) {
	d, err := s.store.Load(ctx, id)
	if err != nil {
		return CreateResult{}, err
	}
	if d.JobID != "" {
		return s.created(ctx, d.JobID, autoprint)
	}
	if d.Step != StepReview {
		return CreateResult{}, ErrNotReviewStep
	}
	for step := StepCustomer; step < StepReview; step++ {
		if err := d.Form.CheckGate(step); err != nil {
			return CreateResult{}, err
		}
	}

	key := "intake:" + d.ID
	if s.idem != nil {
		if err := s.idem.CheckAndInsert(ctx, key, "intake"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				// Another request holds the key; its job id shows up once it saves.
				if again, lerr := s.store.Load(ctx, id); lerr == nil && again.JobID != "" {
					return s.created(ctx, again.JobID, autoprint)
				}
			}
			return CreateResult{}, err
		}
	}

	job, err := s.jobs.Create(ctx, d.Form.NewJob())
	if err != nil {
		if s.idem != nil {
			if derr := s.idem.Delete(ctx, key); derr != nil {
				s.logger.Warn("idempotency key rollback failed", slog.String("key", key), slog.Any("error", derr))
			}
		}
		return CreateResult{}, err
	}

	d.JobID = job.ID
	d.UpdatedAt = s.now().UTC()
	if err := s.store.Save(ctx, d); err != nil {
		// The job exists; only the draft bookkeeping failed.
		s.logger.Warn("draft not marked submitted", slog.String("draft_id", d.ID), slog.String("job_id", job.ID), slog.Any("error", err))
	}
	s.logger.Info("job created from intake", slog.String("draft_id", d.ID), slog.String("job_id", job.ID))
	return CreateResult{Job: job, Redirect: Redirect(job.ID, autoprint)}, nil
}

// Discard drops a draft.
func (s *Service) Discard(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

func (s *Service) created(ctx context.Context, jobID string, autoprint bool) (CreateResult, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return CreateResult{}, err
	}
	return CreateResult{Job: job, Redirect: Redirect(job.ID, autoprint)}, nil
}

func (s *Service) mutate(ctx context.Context, id string, fn func(*Draft) error) (Draft, error) {
	d, err := s.store.Load(ctx, id)
	if err != nil {
		return Draft{}, err
	}
	if err := isSubmitted(d); err != nil {
		return Draft{}, err
	}
	if err := fn(&d); err != nil {
		return Draft{}, err
	}
	d.UpdatedAt = s.now().UTC()
	if err := s.store.Save(ctx, d); err != nil {
		return Draft{}, err
	}
	return d, nil
}
