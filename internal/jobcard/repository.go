package jobcard

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/phoenix-garage/garage/internal/platform/db"
	"github.com/phoenix-garage/garage/internal/shared"
)

// Repository persists job cards in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes row-locked access to a job.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id string) (Job, error)
	Update(ctx context.Context, job Job) error
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// JobColumns lists job columns in the order ScanJob expects.
const JobColumns = `id, job_date, customer_name, phone, brand, model, number_plate, fuel_type, fuel_level,
	vehicle_images, status, payment_status, advance_amount, complaints, notes, total_amount, updated_at`

// ScanJob reads one row selected with JobColumns.
func ScanJob(row pgx.Row) (Job, error) {
	var (
		j             Job
		status, payer string
	)
	err := row.Scan(&j.ID, &j.Date, &j.CustomerName, &j.Phone, &j.Brand, &j.Model, &j.NumberPlate,
		&j.FuelType, &j.FuelLevel, &j.VehicleImages, &status, &payer, &j.AdvanceAmount,
		&j.Complaints, &j.Notes, &j.TotalAmount, &j.UpdatedAt)
	if err != nil {
		return Job{}, err
	}
	j.Status = Status(status)
	j.PaymentStatus = PaymentStatus(payer)
	j.Vehicle = VehicleLabel(j.Brand, j.Model)
	if j.VehicleImages == nil {
		j.VehicleImages = []string{}
	}
	if j.Complaints == nil {
		j.Complaints = []string{}
	}
	return j, nil
}

// Insert stores a new job. A duplicate id surfaces as shared.ErrConflict.
func (r *Repository) Insert(ctx context.Context, j Job) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO jobs (id, job_date, customer_name, phone, brand, model, number_plate, fuel_type, fuel_level,
		vehicle_images, status, payment_status, advance_amount, complaints, notes, total_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		j.ID, j.Date, j.CustomerName, j.Phone, j.Brand, j.Model, j.NumberPlate, j.FuelType, j.FuelLevel,
		j.VehicleImages, string(j.Status), string(j.PaymentStatus), j.AdvanceAmount, j.Complaints, j.Notes, j.TotalAmount)
	return shared.StorageError("insert job", err)
}

// Get loads a job by id.
func (r *Repository) Get(ctx context.Context, id string) (Job, error) {
	job, err := ScanJob(r.pool.QueryRow(ctx, `SELECT `+JobColumns+` FROM jobs WHERE id = $1`, id))
	if err != nil {
		return Job{}, shared.StorageError("get job", err)
	}
	return job, nil
}

// List returns jobs newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Job, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.PaymentStatus != "" {
		args = append(args, string(filter.PaymentStatus))
		where = append(where, fmt.Sprintf("payment_status = $%d", len(args)))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+s+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(id ILIKE $%d OR customer_name ILIKE $%d OR phone ILIKE $%d OR number_plate ILIKE $%d)", n, n, n, n))
	}
	query := `SELECT ` + JobColumns + ` FROM jobs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY job_date DESC, id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, shared.StorageError("list jobs", err)
	}
	defer rows.Close()
	jobs := make([]Job, 0)
	for rows.Next() {
		job, err := ScanJob(rows)
		if err != nil {
			return nil, shared.StorageError("scan job", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.StorageError("list jobs", err)
	}
	return jobs, nil
}

// Delete removes a job; its line items cascade.
func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	if err != nil {
		return shared.StorageError("delete job", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete job %s: %w", id, shared.ErrNotFound)
	}
	return nil
}

func (t *txRepo) GetForUpdate(ctx context.Context, id string) (Job, error) {
	job, err := ScanJob(t.tx.QueryRow(ctx, `SELECT `+JobColumns+` FROM jobs WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return Job{}, shared.StorageError("lock job", err)
	}
	return job, nil
}

// Update writes every editable column. total_amount is only written by invoice reconciliation.
func (t *txRepo) Update(ctx context.Context, j Job) error {
	tag, err := t.tx.Exec(ctx, `UPDATE jobs SET customer_name = $2, phone = $3, brand = $4, model = $5, number_plate = $6,
		fuel_type = $7, fuel_level = $8, vehicle_images = $9, status = $10, payment_status = $11, advance_amount = $12,
		complaints = $13, notes = $14, updated_at = NOW() WHERE id = $1`,
		j.ID, j.CustomerName, j.Phone, j.Brand, j.Model, j.NumberPlate, j.FuelType, j.FuelLevel, j.VehicleImages,
		string(j.Status), string(j.PaymentStatus), j.AdvanceAmount, j.Complaints, j.Notes)
	if err != nil {
		return shared.StorageError("update job", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update job %s: %w", j.ID, shared.ErrNotFound)
	}
	return nil
}
