package invoicing

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trainops/trainops-erp/internal/platform/db"
	"github.com/trainops/trainops-erp/internal/taxcalc"
)

// Repository defines invoice persistence.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	// NextSequence returns the next invoice sequence number for the month of at.
	NextSequence(ctx context.Context, at time.Time) (int64, error)
	Insert(ctx context.Context, inv Invoice) (Invoice, error)
	Get(ctx context.Context, id int64) (Invoice, error)
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewRepository constructs a Postgres-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

func (r *repository) NextSequence(ctx context.Context, at time.Time) (int64, error) {
	var seq int64
	err := r.db.QueryRow(ctx, `INSERT INTO invoice_sequences (period, last_value) VALUES ($1, 1)
ON CONFLICT (period) DO UPDATE SET last_value = invoice_sequences.last_value + 1
RETURNING last_value`, at.Format("200601")).Scan(&seq)
	return seq, err
}

const invoiceColumns = `id, number, deal_id, customer_name, base_amount, gst_type, gst_percent, tax_amount,
total_amount, igst_amount, cgst_amount, sgst_amount, issued_at`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	var gstType string
	err := row.Scan(&inv.ID, &inv.Number, &inv.DealID, &inv.CustomerName, &inv.BaseAmount, &gstType, &inv.GSTPercent,
		&inv.TaxAmount, &inv.TotalAmount, &inv.Breakdown.IGST, &inv.Breakdown.CGST, &inv.Breakdown.SGST, &inv.IssuedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, ErrInvoiceNotFound
		}
		return Invoice{}, err
	}
	inv.GSTType = taxcalc.GSTType(gstType)
	return inv, nil
}

func (r *repository) Insert(ctx context.Context, inv Invoice) (Invoice, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO invoices (number, deal_id, customer_name, base_amount, gst_type, gst_percent,
tax_amount, total_amount, igst_amount, cgst_amount, sgst_amount, issued_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING `+invoiceColumns,
		inv.Number, inv.DealID, inv.CustomerName, inv.BaseAmount.String(), string(inv.GSTType), inv.GSTPercent.String(),
		inv.TaxAmount.String(), inv.TotalAmount.String(), inv.Breakdown.IGST.String(), inv.Breakdown.CGST.String(),
		inv.Breakdown.SGST.String(), inv.IssuedAt)
	out, err := scanInvoice(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Invoice{}, ErrDuplicateNumber
		}
		return Invoice{}, err
	}
	return out, nil
}

func (r *repository) Get(ctx context.Context, id int64) (Invoice, error) {
	return scanInvoice(r.db.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id))
}
