package deals

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/trainops/trainops-erp/internal/platform/httpx"
	"github.com/trainops/trainops-erp/internal/taxcalc"
)

// Handler wires deal endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds the handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: httpx.NewValidator()}
}

// MountRoutes registers deal routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/deals", func(r chi.Router) {
		r.Post("/", h.create)
		r.Get("/{id}", h.get)
		r.Put("/{id}/costs", h.updateCosts)
		r.Post("/{id}/evaluate", h.evaluate)
		r.Get("/{id}/approvals", h.approvals)
	})
}

type createDealRequest struct {
	Title           string            `json:"title" validate:"required,max=200"`
	ClientName      string            `json:"client_name" validate:"required,max=200"`
	ExpectedRevenue decimal.Decimal   `json:"expected_revenue"`
	Costs           taxcalc.DealCosts `json:"costs"`
	ActorID         int64             `json:"actor_id" validate:"gte=0"`
}

type evaluateRequest struct {
	ActorID int64 `json:"actor_id" validate:"gte=0"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createDealRequest
	if !h.decode(w, r, &req) {
		return
	}
	d, err := h.service.CreateDeal(r.Context(), CreateDealInput{
		Title:           req.Title,
		ClientName:      req.ClientName,
		ExpectedRevenue: req.ExpectedRevenue,
		Costs:           req.Costs,
		ActorID:         req.ActorID,
	})
	if err != nil {
		h.respondError(w, "create deal", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, d)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	d, err := h.service.GetDeal(r.Context(), id)
	if err != nil {
		h.respondError(w, "get deal", err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) updateCosts(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var costs taxcalc.DealCosts
	if !h.decode(w, r, &costs) {
		return
	}
	d, err := h.service.UpdateCosts(r.Context(), id, costs)
	if err != nil {
		h.respondError(w, "update deal costs", err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) evaluate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req evaluateRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}
	d, err := h.service.Evaluate(r.Context(), id, req.ActorID)
	if err != nil {
		h.respondError(w, "evaluate deal", err)
		return
	}
	h.logger.Info("deal evaluated",
		slog.Int64("deal_id", d.ID),
		slog.String("margin_status", string(d.MarginStatus)),
		slog.String("approval_status", string(d.ApprovalStatus)))
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) approvals(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	logs, err := h.service.ApprovalHistory(r.Context(), id)
	if err != nil {
		h.respondError(w, "deal approvals", err)
		return
	}
	httpx.JSON(w, http.StatusOK, logs)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", err.Error())
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		httpx.RespondError(w, err)
		return false
	}
	return true
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	h.logger.Warn(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "id must be a positive integer")
		return 0, false
	}
	return id, true
}
