package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/phoenix-garage/garage/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id string) (Part, error)
	List(ctx context.Context, filter ListFilter) ([]Part, error)
	Delete(ctx context.Context, id string) error
	RepairStatus(ctx context.Context, id string, qty int64, status StockStatus) (bool, error)
	ListMovements(ctx context.Context, partID string, limit int) ([]Movement, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates inventory operations.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	logger *slog.Logger
	newSKU func() string
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		audit:  audit,
		logger: logger,
		newSKU: func() string { return shared.ShortCode("SKU", 4) },
	}
}

// Create validates input and inserts a part with a fresh SKU, retrying on SKU collisions.
func (s *Service) Create(ctx context.Context, input CreatePartInput) (Part, error) {
	input.normalize()
	if err := input.Validate(); err != nil {
		return Part{}, err
	}
	part := Part{
		ID:           uuid.NewString(),
		Name:         input.Name,
		Category:     input.Category,
		Brand:        input.Brand,
		StockQty:     input.StockQty,
		ReorderLevel: input.ReorderLevel,
		CostPrice:    input.CostPrice,
		SellingPrice: input.SellingPrice,
		Status:       DeriveStatus(input.StockQty),
		Notes:        input.Notes,
		ImageURL:     input.ImageURL,
	}

	var err error
	for attempt := 0; attempt < shared.CodeAttempts; attempt++ {
		part.SKU = s.newSKU()
		err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			if err := tx.InsertPart(ctx, part); err != nil {
				return err
			}
			if part.StockQty == 0 {
				return nil
			}
			return tx.InsertMovement(ctx, Movement{
				PartID:     part.ID,
				TxType:     TransactionTypeOpening,
				QtyChange:  part.StockQty,
				BalanceQty: part.StockQty,
			})
		})
		if !errors.Is(err, shared.ErrConflict) {
			break
		}
	}
	if err != nil {
		return Part{}, fmt.Errorf("create part: %w", err)
	}
	s.record(ctx, "part:create", part.ID, map[string]any{"sku": part.SKU, "stock_qty": part.StockQty})
	return part, nil
}

// Update applies patch under a row lock. Status is recomputed from the resulting stock,
// and a manual stock change is written to the stock card.
func (s *Service) Update(ctx context.Context, id string, patch PartPatch) (Part, error) {
	if !validID(id) {
		return Part{}, fmt.Errorf("part %s: %w", id, shared.ErrNotFound)
	}
	if patch.Empty() {
		return Part{}, shared.NewFieldError("updates", "at least one field is required")
	}
	var updated Part
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		part, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		before := part.StockQty
		if err := patch.apply(&part); err != nil {
			return err
		}
		if err := tx.UpdatePart(ctx, part); err != nil {
			return err
		}
		if delta := part.StockQty - before; delta != 0 {
			if err := tx.InsertMovement(ctx, Movement{
				PartID:     part.ID,
				TxType:     TransactionTypeAdjust,
				QtyChange:  delta,
				BalanceQty: part.StockQty,
				Note:       "manual edit",
			}); err != nil {
				return err
			}
		}
		updated = part
		return nil
	})
	if err != nil {
		return Part{}, err
	}
	s.record(ctx, "part:update", id, map[string]any{"stock_qty": updated.StockQty, "status": updated.Status})
	return updated, nil
}

// Delete removes a part. Line items that referenced it keep their description.
func (s *Service) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return fmt.Errorf("part %s: %w", id, shared.ErrNotFound)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, "part:delete", id, nil)
	return nil
}

// Get returns one part.
func (s *Service) Get(ctx context.Context, id string) (Part, error) {
	if !validID(id) {
		return Part{}, fmt.Errorf("part %s: %w", id, shared.ErrNotFound)
	}
	return s.repo.Get(ctx, id)
}

// List returns parts matching filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Part, error) {
	return s.repo.List(ctx, filter)
}

// LowStock returns parts below LowStockThreshold, including out-of-stock ones.
func (s *Service) LowStock(ctx context.Context) ([]Part, error) {
	return s.repo.List(ctx, ListFilter{LowStock: true})
}

// StockCard returns the movement history of a part, newest first.
func (s *Service) StockCard(ctx context.Context, id string, limit int) ([]Movement, error) {
	if !validID(id) {
		return nil, fmt.Errorf("part %s: %w", id, shared.ErrNotFound)
	}
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListMovements(ctx, id, limit)
}

// RepairStatuses rewrites any stored status that no longer matches its stock quantity
// and reports how many rows were corrected.
func (s *Service) RepairStatuses(ctx context.Context) (int, error) {
	parts, err := s.repo.List(ctx, ListFilter{})
	if err != nil {
		return 0, err
	}
	repaired := 0
	for _, p := range parts {
		want := DeriveStatus(p.StockQty)
		if p.Status == want {
			continue
		}
		ok, err := s.repo.RepairStatus(ctx, p.ID, p.StockQty, want)
		if err != nil {
			return repaired, err
		}
		if ok {
			repaired++
			s.logger.Info("part status repaired", slog.String("part_id", p.ID), slog.String("from", string(p.Status)), slog.String("to", string(want)))
		}
	}
	return repaired, nil
}

func (s *Service) record(ctx context.Context, action, id string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		Actor:    shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "part",
		EntityID: id,
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
