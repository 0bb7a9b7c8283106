package inventory

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/phoenix-garage/garage/internal/platform/db"
	"github.com/phoenix-garage/garage/internal/shared"
)

// Repository persists parts in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by services. The invoice
// reconciliation shares it through NewTxStore.
type TxRepository interface {
	InsertPart(ctx context.Context, part Part) error
	GetForUpdate(ctx context.Context, id string) (Part, error)
	FindIDByName(ctx context.Context, name string) (string, error)
	UpdatePart(ctx context.Context, part Part) error
	InsertMovement(ctx context.Context, m Movement) error
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxStore(tx))
	})
}

const partColumns = `id, name, sku, category, brand, stock_qty, reorder_level, cost_price, selling_price, status, notes, image_url, created_at, updated_at`

func scanPart(row pgx.Row) (Part, error) {
	var p Part
	var status string
	err := row.Scan(&p.ID, &p.Name, &p.SKU, &p.Category, &p.Brand, &p.StockQty, &p.ReorderLevel,
		&p.CostPrice, &p.SellingPrice, &status, &p.Notes, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt)
	p.Status = StockStatus(status)
	return p, err
}

// Get loads a part by id.
func (r *Repository) Get(ctx context.Context, id string) (Part, error) {
	part, err := scanPart(r.pool.QueryRow(ctx, `SELECT `+partColumns+` FROM parts WHERE id = $1`, id))
	if err != nil {
		return Part{}, shared.StorageError("get part", err)
	}
	return part, nil
}

// List returns parts ordered by name.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Part, error) {
	var (
		where []string
		args  []any
	)
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+s+"%")
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR sku ILIKE $%d OR brand ILIKE $%d)", len(args), len(args), len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.LowStock {
		args = append(args, LowStockThreshold)
		where = append(where, fmt.Sprintf("stock_qty < $%d", len(args)))
	}
	query := `SELECT ` + partColumns + ` FROM parts`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY name, sku`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, shared.StorageError("list parts", err)
	}
	defer rows.Close()
	parts := make([]Part, 0)
	for rows.Next() {
		part, err := scanPart(rows)
		if err != nil {
			return nil, shared.StorageError("scan part", err)
		}
		parts = append(parts, part)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.StorageError("list parts", err)
	}
	return parts, nil
}

// Delete removes a part.
func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM parts WHERE id = $1`, id)
	if err != nil {
		return shared.StorageError("delete part", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete part %s: %w", id, shared.ErrNotFound)
	}
	return nil
}

// RepairStatus rewrites the stored status only when stock still equals qty, so a
// concurrent stock change is never overwritten.
func (r *Repository) RepairStatus(ctx context.Context, id string, qty int64, status StockStatus) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE parts SET status = $2, updated_at = NOW() WHERE id = $1 AND stock_qty = $3 AND status <> $2`, id, string(status), qty)
	if err != nil {
		return false, shared.StorageError("repair part status", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListMovements returns the newest stock card entries for a part.
func (r *Repository) ListMovements(ctx context.Context, partID string, limit int) ([]Movement, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT id, part_id, tx_type, ref_module, ref_id, qty_change, balance_qty, note, posted_at
		FROM stock_movements WHERE part_id = $1 ORDER BY posted_at DESC, id DESC LIMIT $2`, partID, limit)
	if err != nil {
		return nil, shared.StorageError("list movements", err)
	}
	defer rows.Close()
	out := make([]Movement, 0)
	for rows.Next() {
		var m Movement
		var txType string
		if err := rows.Scan(&m.ID, &m.PartID, &txType, &m.RefModule, &m.RefID, &m.QtyChange, &m.BalanceQty, &m.Note, &m.PostedAt); err != nil {
			return nil, shared.StorageError("scan movement", err)
		}
		m.TxType = TransactionType(txType)
		out = append(out, m)
	}
	return out, shared.StorageError("list movements", rows.Err())
}

// TxStore implements TxRepository on an open transaction.
type TxStore struct {
	tx pgx.Tx
}

// NewTxStore wraps tx.
func NewTxStore(tx pgx.Tx) *TxStore {
	return &TxStore{tx: tx}
}

// InsertPart inserts a new part row.
func (s *TxStore) InsertPart(ctx context.Context, p Part) error {
	_, err := s.tx.Exec(ctx, `INSERT INTO parts (id, name, sku, category, brand, stock_qty, reorder_level, cost_price, selling_price, status, notes, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		p.ID, p.Name, p.SKU, p.Category, p.Brand, p.StockQty, p.ReorderLevel, p.CostPrice, p.SellingPrice, string(p.Status), p.Notes, p.ImageURL)
	return shared.StorageError("insert part", err)
}

// GetForUpdate loads and row-locks a part by id.
func (s *TxStore) GetForUpdate(ctx context.Context, id string) (Part, error) {
	part, err := scanPart(s.tx.QueryRow(ctx, `SELECT `+partColumns+` FROM parts WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return Part{}, shared.StorageError("lock part", err)
	}
	return part, nil
}

// FindIDByName returns the id of the oldest part whose name equals name exactly. The
// row is not locked; callers lock by id afterwards so lock order stays deterministic.
func (s *TxStore) FindIDByName(ctx context.Context, name string) (string, error) {
	var id string
	err := s.tx.QueryRow(ctx, `SELECT id FROM parts WHERE name = $1 ORDER BY created_at, id LIMIT 1`, name).Scan(&id)
	if err != nil {
		return "", shared.StorageError("find part by name", err)
	}
	return id, nil
}

// UpdatePart writes every mutable column of p.
func (s *TxStore) UpdatePart(ctx context.Context, p Part) error {
	tag, err := s.tx.Exec(ctx, `UPDATE parts SET name = $2, category = $3, brand = $4, stock_qty = $5, reorder_level = $6,
		cost_price = $7, selling_price = $8, status = $9, notes = $10, image_url = $11, updated_at = NOW() WHERE id = $1`,
		p.ID, p.Name, p.Category, p.Brand, p.StockQty, p.ReorderLevel, p.CostPrice, p.SellingPrice, string(p.Status), p.Notes, p.ImageURL)
	if err != nil {
		return shared.StorageError("update part", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update part %s: %w", p.ID, shared.ErrNotFound)
	}
	return nil
}

// InsertMovement appends a stock card entry.
func (s *TxStore) InsertMovement(ctx context.Context, m Movement) error {
	_, err := s.tx.Exec(ctx, `INSERT INTO stock_movements (part_id, tx_type, ref_module, ref_id, qty_change, balance_qty, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`, m.PartID, string(m.TxType), m.RefModule, m.RefID, m.QtyChange, m.BalanceQty, m.Note)
	return shared.StorageError("insert movement", err)
}
