package payables

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/trainops/trainops-erp/internal/observability"
	"github.com/trainops/trainops-erp/internal/platform/httpx"
	"github.com/trainops/trainops-erp/internal/shared"
	"github.com/trainops/trainops-erp/internal/taxcalc"
)

var panPattern = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)

// Service books vendor payables and applies TDS to them.
type Service struct {
	repo    Repository
	cache   *CumulativeCache
	metrics *observability.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewService constructs the payables service. cache and metrics may be nil.
func NewService(repo Repository, cache *CumulativeCache, metrics *observability.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, metrics: metrics, logger: logger, now: time.Now}
}

// CreateVendor registers a vendor after normalising its category and nature of service.
func (s *Service) CreateVendor(ctx context.Context, input CreateVendorInput) (Vendor, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return Vendor{}, ErrVendorNameRequired
	}
	category, err := taxcalc.ParseVendorCategory(input.Category)
	if err != nil {
		return Vendor{}, asValidation(err)
	}
	nature, err := taxcalc.ParseServiceNature(input.NatureOfService)
	if err != nil {
		return Vendor{}, asValidation(err)
	}
	pan := strings.ToUpper(strings.TrimSpace(input.PAN))
	if pan != "" && !panPattern.MatchString(pan) {
		return Vendor{}, ErrInvalidPAN
	}
	return s.repo.CreateVendor(ctx, Vendor{Name: name, Category: category, NatureOfService: nature, PAN: pan})
}

// GetVendor loads a vendor.
func (s *Service) GetVendor(ctx context.Context, id int64) (Vendor, error) {
	if id <= 0 {
		return Vendor{}, ErrVendorNotFound
	}
	return s.repo.GetVendor(ctx, id)
}

// PreviewTDS computes TDS for a prospective payment without booking it. The cumulative
// total comes from the cache and may briefly lag a concurrent RecordPayable.
func (s *Service) PreviewTDS(ctx context.Context, vendorID int64, amount decimal.Decimal, paidAt time.Time) (Preview, error) {
	if err := shared.RequireCents("payment_amount", amount); err != nil {
		return Preview{}, err
	}
	vendor, err := s.GetVendor(ctx, vendorID)
	if err != nil {
		return Preview{}, err
	}
	if paidAt.IsZero() {
		paidAt = s.now()
	}
	fy := FiscalYearOf(paidAt)
	prior, err := s.cache.Fetch(ctx, vendor.ID, fy, func(ctx context.Context) (decimal.Decimal, error) {
		return s.repo.CumulativeTotal(ctx, vendor.ID, fy)
	})
	if err != nil {
		return Preview{}, err
	}
	res, err := taxcalc.ComputeTDS(vendor.Facts(), taxcalc.PaymentFacts{PaymentAmount: amount, YearlyCumulativeTotal: prior})
	if err != nil {
		return Preview{}, asValidation(err)
	}
	return Preview{VendorID: vendor.ID, FiscalYear: fy, CumulativeBefore: prior, Result: res}, nil
}

// RecordPayable books a payment. The vendor row is locked for the duration of the
// transaction so concurrent payments to one vendor see each other's totals.
func (s *Service) RecordPayable(ctx context.Context, input RecordPayableInput) (Payable, error) {
	if input.VendorID <= 0 {
		return Payable{}, ErrVendorNotFound
	}
	if err := shared.RequireCents("payment_amount", input.Amount); err != nil {
		return Payable{}, err
	}
	if input.PaidAt.IsZero() {
		input.PaidAt = s.now()
	}
	input.Reference = strings.TrimSpace(input.Reference)
	if input.Reference == "" {
		input.Reference = "PAY-" + strings.ToUpper(uuid.NewString()[:8])
	}
	fy := FiscalYearOf(input.PaidAt)

	var booked Payable
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		vendor, err := tx.LockVendor(ctx, input.VendorID)
		if err != nil {
			return err
		}
		prior, err := tx.CumulativeTotal(ctx, vendor.ID, fy)
		if err != nil {
			return err
		}
		res, err := taxcalc.ComputeTDS(vendor.Facts(), taxcalc.PaymentFacts{PaymentAmount: input.Amount, YearlyCumulativeTotal: prior})
		if err != nil {
			return asValidation(err)
		}
		booked, err = tx.InsertPayable(ctx, Payable{
			VendorID:          vendor.ID,
			Reference:         input.Reference,
			FiscalYear:        fy,
			PaymentAmount:     input.Amount,
			CumulativeBefore:  prior,
			Section:           res.Section,
			RatePercent:       res.RatePercent,
			ThresholdExceeded: res.ThresholdExceeded,
			TDSAmount:         res.TDSAmount,
			NetPayable:        res.NetPayable,
			PANPenaltyApplied: res.PANMissingPenaltyApplied,
			ComplianceStatus:  res.ComplianceStatus,
			PaidAt:            input.PaidAt,
		})
		return err
	})
	if err != nil {
		return Payable{}, err
	}

	s.metrics.ObserveTDS(string(booked.Section), string(booked.ComplianceStatus))
	if err := s.cache.Invalidate(ctx, booked.VendorID, fy); err != nil {
		s.logger.Warn("invalidate cumulative cache", slog.Int64("vendor_id", booked.VendorID), slog.Any("error", err))
	}
	return booked, nil
}

// ListPayables returns payables matching the filter.
func (s *Service) ListPayables(ctx context.Context, req ListPayablesRequest) ([]Payable, error) {
	if req.FiscalYear != "" {
		if _, _, err := FiscalYearBounds(req.FiscalYear, nil); err != nil {
			return nil, err
		}
	}
	if req.Limit <= 0 || req.Limit > 500 {
		req.Limit = 100
	}
	if req.Offset < 0 {
		req.Offset = 0
	}
	return s.repo.ListPayables(ctx, req)
}

// SectionSummary aggregates a fiscal year's payables by TDS section. An empty label
// means the current fiscal year.
func (s *Service) SectionSummary(ctx context.Context, fiscalYear string) (string, []SectionSummary, error) {
	if fiscalYear == "" {
		fiscalYear = FiscalYearOf(s.now())
	}
	if _, _, err := FiscalYearBounds(fiscalYear, nil); err != nil {
		return "", nil, err
	}
	rows, err := s.repo.SectionSummary(ctx, fiscalYear)
	return fiscalYear, rows, err
}

// WarmCumulative reloads the cached totals of every vendor with payables in the year
// and returns how many were refreshed.
func (s *Service) WarmCumulative(ctx context.Context, fiscalYear string) (int, error) {
	if fiscalYear == "" {
		fiscalYear = FiscalYearOf(s.now())
	}
	ids, err := s.repo.VendorsWithPayables(ctx, fiscalYear)
	if err != nil {
		return 0, err
	}
	for i, id := range ids {
		_, err := s.cache.Refresh(ctx, id, fiscalYear, func(ctx context.Context) (decimal.Decimal, error) {
			return s.repo.CumulativeTotal(ctx, id, fiscalYear)
		})
		if err != nil {
			return i, err
		}
	}
	return len(ids), nil
}

func asValidation(err error) error {
	if errors.Is(err, taxcalc.ErrInvalidInput) {
		return fmt.Errorf("%w: %w", httpx.ErrValidation, err)
	}
	return err
}
