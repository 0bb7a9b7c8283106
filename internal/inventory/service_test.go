package inventory

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/phoenix-garage/garage/internal/shared"
)

type memoryRepo struct {
	parts     map[string]Part
	movements []Movement
	skus      map[string]bool
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{parts: make(map[string]Part), skus: make(map[string]bool)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snapshot := make(map[string]Part, len(r.parts))
	for k, v := range r.parts {
		snapshot[k] = v
	}
	moves := len(r.movements)
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.parts = snapshot
		r.movements = r.movements[:moves]
		return err
	}
	return nil
}

func (r *memoryRepo) Get(_ context.Context, id string) (Part, error) {
	p, ok := r.parts[id]
	if !ok {
		return Part{}, shared.ErrNotFound
	}
	return p, nil
}

func (r *memoryRepo) List(_ context.Context, filter ListFilter) ([]Part, error) {
	out := make([]Part, 0, len(r.parts))
	for _, p := range r.parts {
		if filter.LowStock && p.StockQty >= LowStockThreshold {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *memoryRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.parts[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.parts, id)
	return nil
}

func (r *memoryRepo) RepairStatus(_ context.Context, id string, qty int64, status StockStatus) (bool, error) {
	p, ok := r.parts[id]
	if !ok || p.StockQty != qty || p.Status == status {
		return false, nil
	}
	p.Status = status
	r.parts[id] = p
	return true, nil
}

func (r *memoryRepo) ListMovements(_ context.Context, partID string, _ int) ([]Movement, error) {
	var out []Movement
	for _, m := range r.movements {
		if m.PartID == partID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (tx *memoryTx) InsertPart(_ context.Context, part Part) error {
	if tx.repo.skus[part.SKU] {
		return fmt.Errorf("insert part: %w", shared.ErrConflict)
	}
	tx.repo.skus[part.SKU] = true
	tx.repo.parts[part.ID] = part
	return nil
}

func (tx *memoryTx) GetForUpdate(ctx context.Context, id string) (Part, error) {
	return tx.repo.Get(ctx, id)
}

func (tx *memoryTx) FindIDByName(_ context.Context, name string) (string, error) {
	for _, p := range tx.repo.parts {
		if p.Name == name {
			return p.ID, nil
		}
	}
	return "", shared.ErrNotFound
}

func (tx *memoryTx) UpdatePart(_ context.Context, part Part) error {
	tx.repo.parts[part.ID] = part
	return nil
}

func (tx *memoryTx) InsertMovement(_ context.Context, m Movement) error {
	tx.repo.movements = append(tx.repo.movements, m)
	return nil
}

func validInput() CreatePartInput {
	return CreatePartInput{
		Name:         "Oil Filter",
		Category:     "Engine",
		Brand:        "Bosch",
		StockQty:     3,
		CostPrice:    decimal.NewFromInt(80),
		SellingPrice: decimal.NewFromInt(120),
	}
}

func TestDeriveStatusThresholds(t *testing.T) {
	cases := map[int64]StockStatus{
		-2: StatusOutOfStock,
		0:  StatusOutOfStock,
		1:  StatusLowStock,
		5:  StatusLowStock,
		6:  StatusInStock,
		40: StatusInStock,
	}
	for qty, want := range cases {
		require.Equal(t, want, DeriveStatus(qty), "qty %d", qty)
	}
}

func TestCreateDerivesStatusAndSKU(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)

	part, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)
	require.Regexp(t, `^SKU-\d{4}$`, part.SKU)
	require.Equal(t, StatusLowStock, part.Status)
	require.Len(t, repo.movements, 1)
	require.Equal(t, TransactionTypeOpening, repo.movements[0].TxType)
}

func TestCreateRetriesSKUCollision(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	codes := []string{"SKU-0001", "SKU-0001", "SKU-0002"}
	svc.newSKU = func() string {
		c := codes[0]
		codes = codes[1:]
		return c
	}

	first, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)
	second, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)
	require.Equal(t, "SKU-0001", first.SKU)
	require.Equal(t, "SKU-0002", second.SKU)
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	ctx := context.Background()

	cases := []struct {
		field  string
		mutate func(*CreatePartInput)
	}{
		{"name", func(in *CreatePartInput) { in.Name = "  " }},
		{"category", func(in *CreatePartInput) { in.Category = "" }},
		{"category", func(in *CreatePartInput) { in.Category = "Tyres" }},
		{"stockQty", func(in *CreatePartInput) { in.StockQty = -1 }},
		{"costPrice", func(in *CreatePartInput) { in.CostPrice = decimal.Zero }},
		{"sellingPrice", func(in *CreatePartInput) { in.SellingPrice = decimal.NewFromInt(-5) }},
	}
	for _, tc := range cases {
		in := validInput()
		tc.mutate(&in)
		_, err := svc.Create(ctx, in)
		var fe *shared.FieldError
		require.ErrorAs(t, err, &fe)
		require.Equal(t, tc.field, fe.Field)
	}
}

func TestUpdateRecomputesStatusAndRecordsMovement(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()
	part, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	qty := int64(0)
	updated, err := svc.Update(ctx, part.ID, PartPatch{StockQty: &qty})
	require.NoError(t, err)
	require.Equal(t, StatusOutOfStock, updated.Status)
	require.Equal(t, part.SKU, updated.SKU)

	card, err := svc.StockCard(ctx, part.ID, 0)
	require.NoError(t, err)
	require.Len(t, card, 2)
	require.Equal(t, int64(-3), card[1].QtyChange)

	zero := decimal.Zero
	_, err = svc.Update(ctx, part.ID, PartPatch{SellingPrice: &zero})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Equal(t, int64(0), repo.parts[part.ID].StockQty)

	_, err = svc.Update(ctx, part.ID, PartPatch{})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestUnknownIDIsNotFound(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	ctx := context.Background()

	require.ErrorIs(t, svc.Delete(ctx, "not-a-uuid"), shared.ErrNotFound)
	require.ErrorIs(t, svc.Delete(ctx, "6f1c2a52-0d0c-4a4b-9d7e-1b0d3d0b8e11"), shared.ErrNotFound)
	name := "x"
	_, err := svc.Update(ctx, "6f1c2a52-0d0c-4a4b-9d7e-1b0d3d0b8e11", PartPatch{Name: &name})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestApplyDeltaNegativeGuard(t *testing.T) {
	p := Part{Name: "Brake Pad", StockQty: 2}
	require.ErrorIs(t, p.ApplyDelta(-3, false), ErrNegativeStock)
	require.Equal(t, int64(2), p.StockQty)

	require.NoError(t, p.ApplyDelta(-3, true))
	require.Equal(t, int64(-1), p.StockQty)
	require.Equal(t, StatusOutOfStock, p.Status)
}

func TestRepairStatuses(t *testing.T) {
	repo := newMemoryRepo()
	repo.parts["a"] = Part{ID: "a", StockQty: 10, Status: StatusLowStock}
	repo.parts["b"] = Part{ID: "b", StockQty: 0, Status: StatusOutOfStock}
	repo.parts["c"] = Part{ID: "c", StockQty: 2, Status: StatusInStock}
	svc := NewService(repo, nil, nil)

	n, err := svc.RepairStatuses(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)
	for _, p := range repo.parts {
		require.Equal(t, DeriveStatus(p.StockQty), p.Status)
	}
}

func TestLowStock(t *testing.T) {
	repo := newMemoryRepo()
	repo.parts["a"] = Part{ID: "a", StockQty: 10}
	repo.parts["b"] = Part{ID: "b", StockQty: 5}
	repo.parts["c"] = Part{ID: "c", StockQty: 0}
	svc := NewService(repo, nil, nil)

	parts, err := svc.LowStock(context.Background())
	require.NoError(t, err)
	require.Len(t, parts, 2)
}
