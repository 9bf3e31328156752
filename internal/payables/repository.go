package payables

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/trainops/trainops-erp/internal/platform/db"
	"github.com/trainops/trainops-erp/internal/taxcalc"
)

// Repository defines vendor and payable data access.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	CreateVendor(ctx context.Context, v Vendor) (Vendor, error)
	GetVendor(ctx context.Context, id int64) (Vendor, error)
	// LockVendor loads the vendor and holds a row lock until the transaction ends.
	LockVendor(ctx context.Context, id int64) (Vendor, error)
	CumulativeTotal(ctx context.Context, vendorID int64, fiscalYear string) (decimal.Decimal, error)
	InsertPayable(ctx context.Context, p Payable) (Payable, error)
	ListPayables(ctx context.Context, req ListPayablesRequest) ([]Payable, error)
	SectionSummary(ctx context.Context, fiscalYear string) ([]SectionSummary, error)
	VendorsWithPayables(ctx context.Context, fiscalYear string) ([]int64, error)
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
	// Each statement must see payments committed while it waited on the vendor lock.
	opts := pgx.TxOptions{IsoLevel: pgx.ReadCommitted}
	return db.WithTxOptions(ctx, r.pool, opts, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const vendorColumns = `id, name, category, nature_of_service, COALESCE(pan, ''), created_at`

func scanVendor(row pgx.Row) (Vendor, error) {
	var v Vendor
	var category, nature string
	if err := row.Scan(&v.ID, &v.Name, &category, &nature, &v.PAN, &v.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Vendor{}, ErrVendorNotFound
		}
		return Vendor{}, err
	}
	v.Category = taxcalc.VendorCategory(category)
	v.NatureOfService = taxcalc.ServiceNature(nature)
	return v, nil
}

func (r *repository) CreateVendor(ctx context.Context, v Vendor) (Vendor, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO vendors (name, category, nature_of_service, pan)
VALUES ($1, $2, $3, NULLIF($4, ''))
RETURNING `+vendorColumns, v.Name, string(v.Category), string(v.NatureOfService), v.PAN)
	return scanVendor(row)
}

func (r *repository) GetVendor(ctx context.Context, id int64) (Vendor, error) {
	return scanVendor(r.db.QueryRow(ctx, `SELECT `+vendorColumns+` FROM vendors WHERE id = $1`, id))
}

func (r *repository) LockVendor(ctx context.Context, id int64) (Vendor, error) {
	return scanVendor(r.db.QueryRow(ctx, `SELECT `+vendorColumns+` FROM vendors WHERE id = $1 FOR UPDATE`, id))
}

func (r *repository) CumulativeTotal(ctx context.Context, vendorID int64, fiscalYear string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(payment_amount), 0)
FROM vendor_payables WHERE vendor_id = $1 AND fiscal_year = $2`, vendorID, fiscalYear).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("payables: cumulative total: %w", err)
	}
	return total, nil
}

const payableColumns = `id, vendor_id, reference, fiscal_year, payment_amount, cumulative_before, section,
rate_percent, threshold_exceeded, tds_amount, net_payable, pan_penalty_applied, compliance_status, paid_at, created_at`

func scanPayable(row pgx.Row) (Payable, error) {
	var p Payable
	var section, status string
	err := row.Scan(&p.ID, &p.VendorID, &p.Reference, &p.FiscalYear, &p.PaymentAmount, &p.CumulativeBefore, &section,
		&p.RatePercent, &p.ThresholdExceeded, &p.TDSAmount, &p.NetPayable, &p.PANPenaltyApplied, &status, &p.PaidAt, &p.CreatedAt)
	if err != nil {
		return Payable{}, err
	}
	p.Section = taxcalc.Section(section)
	p.ComplianceStatus = taxcalc.ComplianceStatus(status)
	return p, nil
}

func (r *repository) InsertPayable(ctx context.Context, p Payable) (Payable, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO vendor_payables (vendor_id, reference, fiscal_year, payment_amount, cumulative_before,
section, rate_percent, threshold_exceeded, tds_amount, net_payable, pan_penalty_applied, compliance_status, paid_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
RETURNING `+payableColumns,
		p.VendorID, p.Reference, p.FiscalYear, p.PaymentAmount.String(), p.CumulativeBefore.String(),
		string(p.Section), p.RatePercent.String(), p.ThresholdExceeded, p.TDSAmount.String(), p.NetPayable.String(),
		p.PANPenaltyApplied, string(p.ComplianceStatus), p.PaidAt)
	out, err := scanPayable(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Payable{}, ErrDuplicateReference
		}
		return Payable{}, err
	}
	return out, nil
}

func (r *repository) ListPayables(ctx context.Context, req ListPayablesRequest) ([]Payable, error) {
	var conditions []string
	var args []interface{}
	if req.VendorID != 0 {
		args = append(args, req.VendorID)
		conditions = append(conditions, fmt.Sprintf("vendor_id = $%d", len(args)))
	}
	if req.FiscalYear != "" {
		args = append(args, req.FiscalYear)
		conditions = append(conditions, fmt.Sprintf("fiscal_year = $%d", len(args)))
	}
	query := `SELECT ` + payableColumns + ` FROM vendor_payables`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY paid_at DESC, id DESC"
	if req.Limit > 0 {
		args = append(args, req.Limit, req.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Payable
	for rows.Next() {
		p, err := scanPayable(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repository) SectionSummary(ctx context.Context, fiscalYear string) ([]SectionSummary, error) {
	rows, err := r.db.Query(ctx, `SELECT section, COUNT(*), COALESCE(SUM(payment_amount), 0), COALESCE(SUM(tds_amount), 0),
COUNT(*) FILTER (WHERE compliance_status = 'PendingPAN')
FROM vendor_payables WHERE fiscal_year = $1
GROUP BY section ORDER BY section`, fiscalYear)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SectionSummary
	for rows.Next() {
		var s SectionSummary
		var section string
		if err := rows.Scan(&section, &s.Payables, &s.Gross, &s.TDS, &s.PendingPAN); err != nil {
			return nil, err
		}
		s.Section = taxcalc.Section(section)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *repository) VendorsWithPayables(ctx context.Context, fiscalYear string) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT vendor_id FROM vendor_payables WHERE fiscal_year = $1 ORDER BY vendor_id`, fiscalYear)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
