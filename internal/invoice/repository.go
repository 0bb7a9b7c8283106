package invoice

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/phoenix-garage/garage/internal/inventory"
	"github.com/phoenix-garage/garage/internal/platform/db"
	"github.com/phoenix-garage/garage/internal/shared"
)

// Repository persists line items in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations of a reconciliation.
type TxRepository interface {
	LockJob(ctx context.Context, jobID string) error
	ListLineItems(ctx context.Context, jobID string) ([]LineItem, error)
	ReplaceLineItems(ctx context.Context, jobID string, items []LineItem) error
	UpdateTotal(ctx context.Context, jobID string, total decimal.Decimal) error
	Parts() inventory.TxRepository
}

type txRepo struct {
	tx    pgx.Tx
	parts *inventory.TxStore
}

// WithTx executes the callback inside a repeatable-read transaction. A failed COMMIT
// is reported as db.ErrCommit.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx, parts: inventory.NewTxStore(tx)})
	})
}

const itemColumns = `job_id, id, part_id, description, category, item_type, quantity, unit_price, total`

func scanItem(row pgx.Row) (string, LineItem, error) {
	var (
		jobID    string
		item     LineItem
		partID   *string
		itemType string
	)
	if err := row.Scan(&jobID, &item.ID, &partID, &item.Description, &item.Category, &itemType,
		&item.Quantity, &item.UnitPrice, &item.Total); err != nil {
		return "", LineItem{}, err
	}
	if partID != nil {
		item.PartID = *partID
	}
	item.Type = ItemType(itemType)
	return jobID, item, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listItems(ctx context.Context, q querier, jobIDs []string) (map[string][]LineItem, error) {
	rows, err := q.Query(ctx, `SELECT `+itemColumns+` FROM line_items WHERE job_id = ANY($1) ORDER BY job_id, position`, jobIDs)
	if err != nil {
		return nil, shared.StorageError("list line items", err)
	}
	defer rows.Close()
	out := make(map[string][]LineItem, len(jobIDs))
	for rows.Next() {
		jobID, item, err := scanItem(rows)
		if err != nil {
			return nil, shared.StorageError("scan line item", err)
		}
		out[jobID] = append(out[jobID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.StorageError("list line items", err)
	}
	return out, nil
}

// ListLineItems returns a job's items in saved order.
func (r *Repository) ListLineItems(ctx context.Context, jobID string) ([]LineItem, error) {
	byJob, err := listItems(ctx, r.pool, []string{jobID})
	if err != nil {
		return nil, err
	}
	items := byJob[jobID]
	if items == nil {
		items = []LineItem{}
	}
	return items, nil
}

// ListLineItemsForJobs returns items for several jobs keyed by job id.
func (r *Repository) ListLineItemsForJobs(ctx context.Context, jobIDs []string) (map[string][]LineItem, error) {
	if len(jobIDs) == 0 {
		return map[string][]LineItem{}, nil
	}
	return listItems(ctx, r.pool, jobIDs)
}

func (t *txRepo) Parts() inventory.TxRepository {
	return t.parts
}

func (t *txRepo) LockJob(ctx context.Context, jobID string) error {
	var id string
	if err := t.tx.QueryRow(ctx, `SELECT id FROM jobs WHERE id = $1 FOR UPDATE`, jobID).Scan(&id); err != nil {
		return shared.StorageError("lock job "+jobID, err)
	}
	return nil
}

func (t *txRepo) ListLineItems(ctx context.Context, jobID string) ([]LineItem, error) {
	byJob, err := listItems(ctx, t.tx, []string{jobID})
	if err != nil {
		return nil, err
	}
	return byJob[jobID], nil
}

// ReplaceLineItems deletes every item of the job and inserts items in order.
func (t *txRepo) ReplaceLineItems(ctx context.Context, jobID string, items []LineItem) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM line_items WHERE job_id = $1`, jobID); err != nil {
		return shared.StorageError("delete line items", err)
	}
	if len(items) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for i, item := range items {
		var partID any
		if item.PartID != "" {
			partID = item.PartID
		}
		batch.Queue(`INSERT INTO line_items (job_id, position, id, part_id, description, category, item_type, quantity, unit_price, total)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			jobID, i, item.ID, partID, item.Description, item.Category, string(item.Type), item.Quantity, item.UnitPrice, item.Total)
	}
	br := t.tx.SendBatch(ctx, batch)
	for i := range items {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return shared.StorageError(fmt.Sprintf("insert line item %d", i), err)
		}
	}
	return shared.StorageError("insert line items", br.Close())
}

func (t *txRepo) UpdateTotal(ctx context.Context, jobID string, total decimal.Decimal) error {
	tag, err := t.tx.Exec(ctx, `UPDATE jobs SET total_amount = $2, updated_at = NOW() WHERE id = $1`, jobID, total)
	if err != nil {
		return shared.StorageError("update job total", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update job total %s: %w", jobID, shared.ErrNotFound)
	}
	return nil
}
