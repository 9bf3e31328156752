package deals

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trainops/trainops-erp/internal/platform/httpx"
	"github.com/trainops/trainops-erp/internal/taxcalc"
)

// Module is the approval log module name for deals.
const Module = "deals"

var (
	ErrDealNotFound       = fmt.Errorf("deal %w", httpx.ErrNotFound)
	ErrTitleRequired      = fmt.Errorf("%w: deal title is required", httpx.ErrValidation)
	ErrClientNameRequired = fmt.Errorf("%w: client name is required", httpx.ErrValidation)
)

// ApprovalStatus tracks who must sign off on a deal.
type ApprovalStatus string

const (
	ApprovalAutoApproved     ApprovalStatus = "AutoApproved"
	ApprovalPendingSalesHead ApprovalStatus = "PendingSalesHead"
	ApprovalPendingDirector  ApprovalStatus = "PendingDirector"
)

// ApprovalFor routes a margin band to the approval it needs.
func ApprovalFor(status taxcalc.MarginStatus) ApprovalStatus {
	switch status {
	case taxcalc.MarginAboveThreshold:
		return ApprovalAutoApproved
	case taxcalc.MarginAtThreshold:
		return ApprovalPendingSalesHead
	default:
		return ApprovalPendingDirector
	}
}

// Pending reports whether the deal still waits on a person.
func (s ApprovalStatus) Pending() bool {
	return s == ApprovalPendingSalesHead || s == ApprovalPendingDirector
}

// Deal is a proposed training engagement with its costed margin.
type Deal struct {
	ID                 int64                `json:"id"`
	Title              string               `json:"title"`
	ClientName         string               `json:"client_name"`
	ExpectedRevenue    decimal.Decimal      `json:"expected_revenue"`
	Costs              taxcalc.DealCosts    `json:"costs"`
	TotalCost          decimal.Decimal      `json:"total_cost"`
	NetProfit          decimal.Decimal      `json:"net_profit"`
	GrossMarginPercent decimal.Decimal      `json:"gross_margin_percent"`
	MarginStatus       taxcalc.MarginStatus `json:"margin_status"`
	ApprovalStatus     ApprovalStatus       `json:"approval_status"`
	EvaluatedAt        time.Time            `json:"evaluated_at"`
	CreatedAt          time.Time            `json:"created_at"`
}

// apply copies a margin result onto the deal.
func (d *Deal) apply(res taxcalc.MarginResult, at time.Time) {
	d.TotalCost = res.TotalCost
	d.NetProfit = res.NetProfit
	d.GrossMarginPercent = res.GrossMarginPercent
	d.MarginStatus = res.MarginStatus
	d.ApprovalStatus = ApprovalFor(res.MarginStatus)
	d.EvaluatedAt = at
}

// CreateDealInput for registering a deal.
type CreateDealInput struct {
	Title           string
	ClientName      string
	ExpectedRevenue decimal.Decimal
	Costs           taxcalc.DealCosts
	ActorID         int64
}
