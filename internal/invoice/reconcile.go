package invoice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/phoenix-garage/garage/internal/inventory"
	"github.com/phoenix-garage/garage/internal/jobcard"
	"github.com/phoenix-garage/garage/internal/platform/db"
	"github.com/phoenix-garage/garage/internal/shared"
)

// ComputeStockDeltas returns the net stock change per part implied by replacing
// oldItems with newItems: every old Part item adds its quantity back, every new Part
// item subtracts its quantity. Keys whose changes cancel out are omitted.
func ComputeStockDeltas(oldItems, newItems []LineItem) map[StockKey]int64 {
	deltas := make(map[StockKey]int64)
	for _, item := range oldItems {
		if item.Type == ItemPart {
			deltas[KeyOf(item)] += item.Quantity.IntPart()
		}
	}
	for _, item := range newItems {
		if item.Type == ItemPart {
			deltas[KeyOf(item)] -= item.Quantity.IntPart()
		}
	}
	for k, d := range deltas {
		if d == 0 {
			delete(deltas, k)
		}
	}
	return deltas
}

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListLineItems(ctx context.Context, jobID string) ([]LineItem, error)
	ListLineItemsForJobs(ctx context.Context, jobIDs []string) (map[string][]LineItem, error)
}

// JobReader loads jobs for documents and detail views.
type JobReader interface {
	Get(ctx context.Context, id string) (jobcard.Job, error)
	List(ctx context.Context, filter jobcard.ListFilter) ([]jobcard.Job, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Observer receives reconciliation outcomes for metrics.
type Observer interface {
	ObserveReconciliation(outcome string, elapsed time.Duration)
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	AllowNegativeStock bool
	TaxRate            decimal.Decimal
}

// Service saves invoices and assembles invoice documents.
type Service struct {
	repo     RepositoryPort
	jobs     JobReader
	locker   shared.Locker
	audit    AuditPort
	observer Observer
	logger   *slog.Logger
	allowNeg bool
	taxRate  decimal.Decimal
}

// NewService builds Service. A nil locker falls back to an in-process keyed mutex.
func NewService(repo RepositoryPort, jobs JobReader, locker shared.Locker, audit AuditPort, observer Observer, logger *slog.Logger, cfg ServiceConfig) *Service {
	if locker == nil {
		locker = shared.NewLocalLocker()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		jobs:     jobs,
		locker:   locker,
		audit:    audit,
		observer: observer,
		logger:   logger,
		allowNeg: cfg.AllowNegativeStock,
		taxRate:  cfg.TaxRate,
	}
}

// SaveItems replaces the job's line items with items and reconciles inventory in one
// transaction, serialized per job. The job total becomes the sum of all item totals.
func (s *Service) SaveItems(ctx context.Context, jobID string, items []LineItem) (Result, error) {
	start := time.Now()
	res, err := s.saveItems(ctx, jobID, items)
	s.observe(err, time.Since(start))
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

func (s *Service) saveItems(ctx context.Context, jobID string, items []LineItem) (Result, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return Result{}, shared.NewFieldError("jobId", "is required")
	}
	normalized, err := NormalizeItems(items)
	if err != nil {
		return Result{}, err
	}

	release, err := s.locker.Lock(ctx, shared.JobLockKey(jobID))
	if err != nil {
		return Result{}, fmt.Errorf("reconcile %s: %w", jobID, err)
	}
	defer release()

	res := Result{JobID: jobID, Items: normalized, TotalAmount: SumTotals(normalized)}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockJob(ctx, jobID); err != nil {
			return err
		}
		old, err := tx.ListLineItems(ctx, jobID)
		if err != nil {
			return err
		}
		deltas := ComputeStockDeltas(old, normalized)
		if err := tx.ReplaceLineItems(ctx, jobID, normalized); err != nil {
			return err
		}
		res.Adjustments, res.Unmatched, err = s.applyDeltas(ctx, tx.Parts(), jobID, deltas)
		if err != nil {
			return err
		}
		return tx.UpdateTotal(ctx, jobID, res.TotalAmount)
	})
	if err != nil {
		if errors.Is(err, db.ErrCommit) {
			s.logger.Error("invoice commit outcome unknown", slog.String("job_id", jobID), slog.Any("error", err))
			return Result{}, fmt.Errorf("reconcile %s: %w: %v", jobID, shared.ErrPartialReconciliation, err)
		}
		return Result{}, fmt.Errorf("reconcile %s: %w", jobID, err)
	}

	if len(res.Unmatched) > 0 {
		s.logger.Warn("invoice items without matching part", slog.String("job_id", jobID), slog.Any("keys", res.Unmatched))
	}
	s.record(ctx, jobID, res)
	return res, nil
}

// applyDeltas resolves keys to parts, merges keys that land on the same part and
// applies the non-zero net changes in part id order.
func (s *Service) applyDeltas(ctx context.Context, parts inventory.TxRepository, jobID string, deltas map[StockKey]int64) ([]Adjustment, []string, error) {
	keys := make([]StockKey, 0, len(deltas))
	for k := range deltas {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	unmatched := make([]string, 0)
	byPart := make(map[string]int64)
	for _, k := range keys {
		id := k.PartID
		if id == "" {
			found, err := parts.FindIDByName(ctx, k.Name)
			if errors.Is(err, shared.ErrNotFound) {
				unmatched = append(unmatched, k.String())
				continue
			}
			if err != nil {
				return nil, nil, err
			}
			id = found
		}
		byPart[id] += deltas[k]
	}

	ids := make([]string, 0, len(byPart))
	for id, d := range byPart {
		if d != 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	adjustments := make([]Adjustment, 0, len(ids))
	for _, id := range ids {
		part, err := parts.GetForUpdate(ctx, id)
		if errors.Is(err, shared.ErrNotFound) {
			unmatched = append(unmatched, id)
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		delta := byPart[id]
		if err := part.ApplyDelta(delta, s.allowNeg); err != nil {
			return nil, nil, err
		}
		if err := parts.UpdatePart(ctx, part); err != nil {
			return nil, nil, err
		}
		if err := parts.InsertMovement(ctx, inventory.Movement{
			PartID:     part.ID,
			TxType:     inventory.TransactionTypeInvoice,
			RefModule:  "invoice",
			RefID:      jobID,
			QtyChange:  delta,
			BalanceQty: part.StockQty,
		}); err != nil {
			return nil, nil, err
		}
		adjustments = append(adjustments, Adjustment{
			PartID:   part.ID,
			Name:     part.Name,
			Delta:    delta,
			NewStock: part.StockQty,
			Status:   part.Status,
		})
	}
	return adjustments, unmatched, nil
}

// Items returns the saved line items of a job.
func (s *Service) Items(ctx context.Context, jobID string) ([]LineItem, error) {
	if _, err := s.jobs.Get(ctx, jobID); err != nil {
		return nil, err
	}
	return s.repo.ListLineItems(ctx, jobID)
}

// JobDetail returns a job together with its line items.
func (s *Service) JobDetail(ctx context.Context, jobID string) (Detail, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return Detail{}, err
	}
	items, err := s.repo.ListLineItems(ctx, jobID)
	if err != nil {
		return Detail{}, err
	}
	return Detail{Job: job, LineItems: items}, nil
}

// JobsWithItems lists jobs with their line items attached.
func (s *Service) JobsWithItems(ctx context.Context, filter jobcard.ListFilter) ([]Detail, error) {
	jobs, err := s.jobs.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(jobs))
	for i, j := range jobs {
		ids[i] = j.ID
	}
	byJob, err := s.repo.ListLineItemsForJobs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]Detail, len(jobs))
	for i, j := range jobs {
		items := byJob[j.ID]
		if items == nil {
			items = []LineItem{}
		}
		out[i] = Detail{Job: j, LineItems: items}
	}
	return out, nil
}

// Document assembles the printable invoice of a job.
func (s *Service) Document(ctx context.Context, jobID string) (Document, error) {
	detail, err := s.JobDetail(ctx, jobID)
	if err != nil {
		return Document{}, err
	}
	return Assemble(detail.Job, detail.LineItems, s.taxRate), nil
}

func (s *Service) observe(err error, elapsed time.Duration) {
	if s.observer == nil {
		return
	}
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, shared.ErrPartialReconciliation):
		outcome = "partial"
	case errors.Is(err, inventory.ErrNegativeStock):
		outcome = "negative_stock"
	case errors.Is(err, shared.ErrValidation):
		outcome = "invalid"
	case errors.Is(err, shared.ErrNotFound):
		outcome = "not_found"
	case errors.Is(err, shared.ErrTimeout):
		outcome = "timeout"
	default:
		outcome = "error"
	}
	s.observer.ObserveReconciliation(outcome, elapsed)
}

func (s *Service) record(ctx context.Context, jobID string, res Result) {
	if s.audit == nil {
		return
	}
	adjustments := make(map[string]int64, len(res.Adjustments))
	for _, a := range res.Adjustments {
		adjustments[a.PartID] = a.Delta
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		Actor:    shared.ActorFromContext(ctx),
		Action:   "invoice:save",
		Entity:   "job",
		EntityID: jobID,
		Meta: map[string]any{
			"items":        len(res.Items),
			"total_amount": res.TotalAmount.String(),
			"adjustments":  adjustments,
			"unmatched":    res.Unmatched,
		},
	}); err != nil {
		s.logger.Warn("audit record failed", slog.String("job_id", jobID), slog.Any("error", err))
	}
}
