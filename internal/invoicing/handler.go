package invoicing

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/trainops/trainops-erp/internal/platform/httpx"
)

// Handler wires invoice endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds the handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: httpx.NewValidator()}
}

// MountRoutes registers invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/invoices", func(r chi.Router) {
		r.Post("/", h.create)
		r.Get("/{id}", h.get)
	})
}

type createInvoiceRequest struct {
	Number       string           `json:"number" validate:"max=32"`
	DealID       *int64           `json:"deal_id" validate:"omitempty,gt=0"`
	CustomerName string           `json:"customer_name" validate:"required_without=DealID,max=200"`
	BaseAmount   decimal.Decimal  `json:"base_amount"`
	GSTType      string           `json:"gst_type" validate:"required"`
	GSTPercent   *decimal.Decimal `json:"gst_percent"`
	IssuedAt     *time.Time       `json:"issued_at"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input := CreateInvoiceInput{
		Number:       req.Number,
		DealID:       req.DealID,
		CustomerName: req.CustomerName,
		BaseAmount:   req.BaseAmount,
		GSTType:      req.GSTType,
		GSTPercent:   req.GSTPercent,
	}
	if req.IssuedAt != nil {
		input.IssuedAt = *req.IssuedAt
	}
	inv, err := h.service.CreateInvoice(r.Context(), input)
	if err != nil {
		h.logger.Warn("create invoice", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("invoice issued", slog.String("number", inv.Number), slog.String("total", inv.TotalAmount.String()))
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "id must be a positive integer")
		return
	}
	inv, err := h.service.GetInvoice(r.Context(), id)
	if err != nil {
		h.logger.Warn("get invoice", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}
