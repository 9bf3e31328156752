package deals

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trainops/trainops-erp/internal/platform/db"
	"github.com/trainops/trainops-erp/internal/taxcalc"
)

// Repository defines deal persistence.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Create(ctx context.Context, d Deal) (Deal, error)
	Get(ctx context.Context, id int64) (Deal, error)
	// Lock loads the deal and holds a row lock until the transaction ends.
	Lock(ctx context.Context, id int64) (Deal, error)
	Save(ctx context.Context, d Deal) (Deal, error)
	ListPendingIDs(ctx context.Context) ([]int64, error)
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

const dealColumns = `id, title, client_name, expected_revenue, costs, total_cost, net_profit,
gross_margin_percent, margin_status, approval_status, evaluated_at, created_at`

func scanDeal(row pgx.Row) (Deal, error) {
	var d Deal
	var costs []byte
	var margin, approval string
	err := row.Scan(&d.ID, &d.Title, &d.ClientName, &d.ExpectedRevenue, &costs, &d.TotalCost, &d.NetProfit,
		&d.GrossMarginPercent, &margin, &approval, &d.EvaluatedAt, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Deal{}, ErrDealNotFound
		}
		return Deal{}, err
	}
	if err := json.Unmarshal(costs, &d.Costs); err != nil {
		return Deal{}, err
	}
	d.MarginStatus = taxcalc.MarginStatus(margin)
	d.ApprovalStatus = ApprovalStatus(approval)
	return d, nil
}

func (r *repository) Create(ctx context.Context, d Deal) (Deal, error) {
	costs, err := json.Marshal(d.Costs)
	if err != nil {
		return Deal{}, err
	}
	row := r.db.QueryRow(ctx, `INSERT INTO deals (title, client_name, expected_revenue, costs, total_cost, net_profit,
gross_margin_percent, margin_status, approval_status, evaluated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING `+dealColumns,
		d.Title, d.ClientName, d.ExpectedRevenue.String(), costs, d.TotalCost.String(), d.NetProfit.String(),
		d.GrossMarginPercent.String(), string(d.MarginStatus), string(d.ApprovalStatus), d.EvaluatedAt)
	return scanDeal(row)
}

func (r *repository) Get(ctx context.Context, id int64) (Deal, error) {
	return scanDeal(r.db.QueryRow(ctx, `SELECT `+dealColumns+` FROM deals WHERE id = $1`, id))
}

func (r *repository) Lock(ctx context.Context, id int64) (Deal, error) {
	return scanDeal(r.db.QueryRow(ctx, `SELECT `+dealColumns+` FROM deals WHERE id = $1 FOR UPDATE`, id))
}

func (r *repository) Save(ctx context.Context, d Deal) (Deal, error) {
	costs, err := json.Marshal(d.Costs)
	if err != nil {
		return Deal{}, err
	}
	row := r.db.QueryRow(ctx, `UPDATE deals SET costs = $2, total_cost = $3, net_profit = $4, gross_margin_percent = $5,
margin_status = $6, approval_status = $7, evaluated_at = $8
WHERE id = $1
RETURNING `+dealColumns,
		d.ID, costs, d.TotalCost.String(), d.NetProfit.String(), d.GrossMarginPercent.String(),
		string(d.MarginStatus), string(d.ApprovalStatus), d.EvaluatedAt)
	return scanDeal(row)
}

func (r *repository) ListPendingIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM deals WHERE approval_status IN ($1, $2) ORDER BY id`,
		string(ApprovalPendingSalesHead), string(ApprovalPendingDirector))
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
