package legacy

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/phoenix-garage/garage/internal/inventory"
	"github.com/phoenix-garage/garage/internal/platform/db"
	"github.com/phoenix-garage/garage/internal/shared"
)

// PGSink writes imported records to PostgreSQL. Imported stock is recorded on the
// part's stock card as an opening balance; imported line items do not move stock.
type PGSink struct {
	pool *pgxpool.Pool
}

// NewPGSink constructs PGSink.
func NewPGSink(pool *pgxpool.Pool) *PGSink {
	return &PGSink{pool: pool}
}

// ImportParts inserts parts whose id and sku are both unused.
func (s *PGSink) ImportParts(ctx context.Context, parts []inventory.Part) (int, error) {
	inserted := 0
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		inserted = 0
		for _, p := range parts {
			tag, err := tx.Exec(ctx, `INSERT INTO parts (id, name, sku, category, brand, stock_qty, reorder_level, cost_price, selling_price, status, notes, image_url, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
				ON CONFLICT DO NOTHING`,
				p.ID, p.Name, p.SKU, p.Category, p.Brand, p.StockQty, p.ReorderLevel, p.CostPrice, p.SellingPrice,
				string(p.Status), p.Notes, p.ImageURL, p.CreatedAt, p.UpdatedAt)
			if err != nil {
				return shared.StorageError(fmt.Sprintf("import part %s", p.ID), err)
			}
			if tag.RowsAffected() == 0 {
				continue
			}
			inserted++
			if p.StockQty == 0 {
				continue
			}
			_, err = tx.Exec(ctx, `INSERT INTO stock_movements (part_id, tx_type, ref_module, ref_id, qty_change, balance_qty, note)
				VALUES ($1, $2, 'legacy', $3, $4, $4, 'imported')`,
				p.ID, string(inventory.TransactionTypeOpening), p.SKU, p.StockQty)
			if err != nil {
				return shared.StorageError("import opening movement", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// ImportJobs inserts jobs whose id is unused, together with their line items.
func (s *PGSink) ImportJobs(ctx context.Context, jobs []JobRecord) (int, error) {
	inserted := 0
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		inserted = 0
		for _, rec := range jobs {
			j := rec.Job
			tag, err := tx.Exec(ctx, `INSERT INTO jobs (id, job_date, customer_name, phone, brand, model, number_plate, fuel_type, fuel_level,
				vehicle_images, status, payment_status, advance_amount, complaints, notes, total_amount, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
				ON CONFLICT (id) DO NOTHING`,
				j.ID, j.Date, j.CustomerName, j.Phone, j.Brand, j.Model, j.NumberPlate, j.FuelType, j.FuelLevel,
				j.VehicleImages, string(j.Status), string(j.PaymentStatus), j.AdvanceAmount, j.Complaints, j.Notes,
				j.TotalAmount, j.UpdatedAt)
			if err != nil {
				return shared.StorageError(fmt.Sprintf("import job %s", j.ID), err)
			}
			if tag.RowsAffected() == 0 {
				continue
			}
			inserted++
			if len(rec.Items) == 0 {
				continue
			}
			batch := &pgx.Batch{}
			for i, item := range rec.Items {
				var partID any
				if item.PartID != "" {
					partID = item.PartID
				}
				batch.Queue(`INSERT INTO line_items (job_id, position, id, part_id, description, category, item_type, quantity, unit_price, total)
					VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
					j.ID, i, item.ID, partID, item.Description, item.Category, string(item.Type), item.Quantity, item.UnitPrice, item.Total)
			}
			if err := tx.SendBatch(ctx, batch).Close(); err != nil {
				return shared.StorageError(fmt.Sprintf("import line items for %s", j.ID), err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}
