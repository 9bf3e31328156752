package deals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/trainops/trainops-erp/internal/observability"
	"github.com/trainops/trainops-erp/internal/platform/httpx"
	"github.com/trainops/trainops-erp/internal/shared"
	"github.com/trainops/trainops-erp/internal/taxcalc"
)

// ApprovalRecorder appends to and reads the approval history.
type ApprovalRecorder interface {
	Record(ctx context.Context, log shared.ApprovalLog) error
	List(ctx context.Context, module string, ref uuid.UUID) ([]shared.ApprovalLog, error)
}

// Service evaluates deal margins and routes them for approval.
type Service struct {
	repo     Repository
	approval ApprovalRecorder
	metrics  *observability.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs the deals service. approval and metrics may be nil.
func NewService(repo Repository, approval ApprovalRecorder, metrics *observability.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, approval: approval, metrics: metrics, logger: logger, now: time.Now}
}

// CreateDeal registers a deal with its margin computed up front.
func (s *Service) CreateDeal(ctx context.Context, input CreateDealInput) (Deal, error) {
	d := Deal{
		Title:           strings.TrimSpace(input.Title),
		ClientName:      strings.TrimSpace(input.ClientName),
		ExpectedRevenue: input.ExpectedRevenue,
		Costs:           input.Costs,
	}
	if d.Title == "" {
		return Deal{}, ErrTitleRequired
	}
	if d.ClientName == "" {
		return Deal{}, ErrClientNameRequired
	}
	if err := checkCents(d.ExpectedRevenue, d.Costs); err != nil {
		return Deal{}, err
	}
	if err := s.evaluate(&d); err != nil {
		return Deal{}, err
	}
	created, err := s.repo.Create(ctx, d)
	if err != nil {
		return Deal{}, err
	}
	s.metrics.ObserveMargin(string(created.MarginStatus))
	s.record(ctx, created, input.ActorID, shared.ApprovalSubmit)
	return created, nil
}

// GetDeal loads a deal.
func (s *Service) GetDeal(ctx context.Context, id int64) (Deal, error) {
	if id <= 0 {
		return Deal{}, ErrDealNotFound
	}
	return s.repo.Get(ctx, id)
}

// UpdateCosts replaces the cost sheet and recomputes the margin.
func (s *Service) UpdateCosts(ctx context.Context, id int64, costs taxcalc.DealCosts) (Deal, error) {
	return s.reprice(ctx, id, &costs)
}

// Evaluate recomputes the margin from the stored costs and logs the resulting
// approval routing against actorID.
func (s *Service) Evaluate(ctx context.Context, id int64, actorID int64) (Deal, error) {
	d, err := s.reprice(ctx, id, nil)
	if err != nil {
		return Deal{}, err
	}
	action := shared.ApprovalEscalate
	if d.ApprovalStatus == ApprovalAutoApproved {
		action = shared.ApprovalApprove
	}
	s.record(ctx, d, actorID, action)
	return d, nil
}

// ApprovalHistory returns the approval log of a deal, oldest first.
func (s *Service) ApprovalHistory(ctx context.Context, id int64) ([]shared.ApprovalLog, error) {
	d, err := s.GetDeal(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.approval == nil {
		return []shared.ApprovalLog{}, nil
	}
	logs, err := s.approval.List(ctx, Module, shared.RefFor(Module, d.ID))
	if err != nil {
		return nil, err
	}
	if logs == nil {
		logs = []shared.ApprovalLog{}
	}
	return logs, nil
}

// ReevaluateOpen evaluates every deal still waiting on an approver and returns how
// many were processed.
func (s *Service) ReevaluateOpen(ctx context.Context) (int, error) {
	ids, err := s.repo.ListPendingIDs(ctx)
	if err != nil {
		return 0, err
	}
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if _, err := s.Evaluate(ctx, id, shared.SystemActor); err != nil {
			return i, fmt.Errorf("deal %d: %w", id, err)
		}
	}
	return len(ids), nil
}

func (s *Service) reprice(ctx context.Context, id int64, costs *taxcalc.DealCosts) (Deal, error) {
	if id <= 0 {
		return Deal{}, ErrDealNotFound
	}
	if costs != nil {
		if err := checkCents(decimal.Zero, *costs); err != nil {
			return Deal{}, err
		}
	}
	var saved Deal
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		d, err := tx.Lock(ctx, id)
		if err != nil {
			return err
		}
		if costs != nil {
			d.Costs = *costs
		}
		if err := s.evaluate(&d); err != nil {
			return err
		}
		saved, err = tx.Save(ctx, d)
		return err
	})
	if err != nil {
		return Deal{}, err
	}
	// Counted once per committed evaluation; the closure may run again on retry.
	s.metrics.ObserveMargin(string(saved.MarginStatus))
	return saved, nil
}

func (s *Service) evaluate(d *Deal) error {
	res, err := taxcalc.ComputeMargin(d.ExpectedRevenue, d.Costs)
	if err != nil {
		if errors.Is(err, taxcalc.ErrInvalidInput) {
			return fmt.Errorf("%w: %w", httpx.ErrValidation, err)
		}
		return err
	}
	d.apply(res, s.now())
	return nil
}

// checkCents rejects amounts the deal columns would round on insert.
func checkCents(revenue decimal.Decimal, costs taxcalc.DealCosts) error {
	if err := shared.RequireCents("expected_revenue", revenue); err != nil {
		return err
	}
	for _, line := range costs.Lines() {
		if err := shared.RequireCents("costs."+line.Name, line.Amount); err != nil {
			return err
		}
	}
	return nil
}

// record logs an approval entry. Failures are logged and do not undo the deal change.
func (s *Service) record(ctx context.Context, d Deal, actorID int64, action shared.ApprovalAction) {
	if s.approval == nil {
		return
	}
	entry := shared.ApprovalLog{
		Module:  Module,
		RefID:   shared.RefFor(Module, d.ID),
		ActorID: actorID,
		Action:  action,
		Note:    fmt.Sprintf("margin %s%% %s, routed %s", d.GrossMarginPercent.StringFixed(2), d.MarginStatus, d.ApprovalStatus),
		At:      d.EvaluatedAt,
	}
	if err := s.approval.Record(ctx, entry); err != nil {
		s.logger.Warn("record deal approval", slog.Int64("deal_id", d.ID), slog.Any("error", err))
	}
}
