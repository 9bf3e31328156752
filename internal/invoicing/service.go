package invoicing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/trainops/trainops-erp/internal/deals"
	"github.com/trainops/trainops-erp/internal/observability"
	"github.com/trainops/trainops-erp/internal/platform/httpx"
	"github.com/trainops/trainops-erp/internal/shared"
	"github.com/trainops/trainops-erp/internal/taxcalc"
)

// DealLookup resolves the deal an invoice bills.
type DealLookup interface {
	GetDeal(ctx context.Context, id int64) (deals.Deal, error)
}

// Service issues invoices.
type Service struct {
	repo    Repository
	deals   DealLookup
	metrics *observability.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewService constructs the invoicing service. dealLookup may be nil when invoices
// never reference deals.
func NewService(repo Repository, dealLookup DealLookup, metrics *observability.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, deals: dealLookup, metrics: metrics, logger: logger, now: time.Now}
}

// CreateInvoice totals the invoice through the GST calculator and persists it.
func (s *Service) CreateInvoice(ctx context.Context, input CreateInvoiceInput) (Invoice, error) {
	inv := Invoice{
		Number:       strings.TrimSpace(input.Number),
		DealID:       input.DealID,
		CustomerName: strings.TrimSpace(input.CustomerName),
		BaseAmount:   input.BaseAmount,
		GSTPercent:   DefaultGSTPercent,
		IssuedAt:     input.IssuedAt,
	}
	if input.GSTPercent != nil {
		inv.GSTPercent = *input.GSTPercent
	}
	if inv.IssuedAt.IsZero() {
		inv.IssuedAt = s.now()
	}
	if err := s.resolveDeal(ctx, &inv); err != nil {
		return Invoice{}, err
	}
	if err := shared.RequireCents("base_amount", inv.BaseAmount); err != nil {
		return Invoice{}, err
	}
	if err := shared.RequireCents("gst_percent", inv.GSTPercent); err != nil {
		return Invoice{}, err
	}

	gstType, err := taxcalc.ParseGSTType(input.GSTType)
	if err != nil {
		return Invoice{}, asValidation(err)
	}
	inv.GSTType = gstType
	totals, err := taxcalc.ComputeInvoiceTotals(taxcalc.InvoiceFacts{BaseAmount: inv.BaseAmount, GSTType: gstType, GSTPercent: inv.GSTPercent})
	if err != nil {
		return Invoice{}, asValidation(err)
	}
	split, err := taxcalc.GSTBreakdown(gstType, totals.TaxAmount)
	if err != nil {
		return Invoice{}, asValidation(err)
	}
	inv.TaxAmount = totals.TaxAmount
	inv.TotalAmount = totals.TotalAmount
	inv.Breakdown = split

	var issued Invoice
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		// Retried attempts draw a fresh number; the rolled-back one is not reused.
		draft := inv
		if draft.Number == "" {
			seq, err := tx.NextSequence(ctx, draft.IssuedAt)
			if err != nil {
				return fmt.Errorf("invoicing: next sequence: %w", err)
			}
			draft.Number = NumberFor(draft.IssuedAt, seq)
		}
		var err error
		issued, err = tx.Insert(ctx, draft)
		return err
	})
	if err != nil {
		return Invoice{}, err
	}
	s.metrics.ObserveInvoice(string(gstType))
	return issued, nil
}

// GetInvoice loads an invoice.
func (s *Service) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	if id <= 0 {
		return Invoice{}, ErrInvoiceNotFound
	}
	return s.repo.Get(ctx, id)
}

// resolveDeal fills the customer and base amount from the referenced deal when the
// caller left them blank.
func (s *Service) resolveDeal(ctx context.Context, inv *Invoice) error {
	if inv.DealID == nil {
		if inv.BaseAmount.IsZero() {
			return ErrBaseAmountNeeded
		}
		return nil
	}
	if s.deals == nil {
		return errors.New("invoicing: deal lookup not configured")
	}
	d, err := s.deals.GetDeal(ctx, *inv.DealID)
	if err != nil {
		return err
	}
	if inv.CustomerName == "" {
		inv.CustomerName = d.ClientName
	}
	if inv.BaseAmount.IsZero() {
		inv.BaseAmount = d.ExpectedRevenue
	}
	return nil
}

func asValidation(err error) error {
	if errors.Is(err, taxcalc.ErrInvalidInput) {
		return fmt.Errorf("%w: %w", httpx.ErrValidation, err)
	}
	return err
}
