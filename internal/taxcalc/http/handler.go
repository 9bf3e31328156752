package taxcalchttp

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/trainops/trainops-erp/internal/observability"
	"github.com/trainops/trainops-erp/internal/platform/httpx"
	"github.com/trainops/trainops-erp/internal/taxcalc"
)

// Handler exposes the stateless calculators over JSON.
type Handler struct {
	logger   *slog.Logger
	metrics  *observability.Metrics
	validate *validator.Validate
}

// NewHandler constructs handler.
func NewHandler(logger *slog.Logger, metrics *observability.Metrics) *Handler {
	return &Handler{logger: logger, metrics: metrics, validate: httpx.NewValidator()}
}

// MountRoutes registers routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/tax", func(r chi.Router) {
		r.Get("/rules", h.rules)
		r.Post("/tds", h.tds)
		r.Post("/margin", h.margin)
		r.Post("/invoice-totals", h.invoiceTotals)
	})
}

type tdsRequest struct {
	VendorCategory        string          `json:"vendor_category" validate:"required"`
	PANProvided           bool            `json:"pan_provided"`
	NatureOfService       string          `json:"nature_of_service" validate:"required"`
	PaymentAmount         decimal.Decimal `json:"payment_amount"`
	YearlyCumulativeTotal decimal.Decimal `json:"vendor_yearly_cumulative_total"`
}

type marginRequest struct {
	ExpectedRevenue decimal.Decimal   `json:"expected_revenue"`
	Costs           taxcalc.DealCosts `json:"costs"`
}

type invoiceRequest struct {
	BaseAmount decimal.Decimal `json:"base_amount"`
	GSTType    string          `json:"gst_type" validate:"required"`
	GSTPercent decimal.Decimal `json:"gst_percent"`
}

type invoiceResponse struct {
	taxcalc.InvoiceResult
	Breakdown taxcalc.GSTSplit `json:"breakdown"`
}

func (h *Handler) rules(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{
		"rules":            taxcalc.Rules(),
		"pan_penalty_rate": taxcalc.PANPenaltyRate,
	})
}

func (h *Handler) tds(w http.ResponseWriter, r *http.Request) {
	var req tdsRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := taxcalc.ComputeTDS(
		taxcalc.VendorFacts{
			Category:        taxcalc.VendorCategory(req.VendorCategory),
			PANProvided:     req.PANProvided,
			NatureOfService: taxcalc.ServiceNature(req.NatureOfService),
		},
		taxcalc.PaymentFacts{PaymentAmount: req.PaymentAmount, YearlyCumulativeTotal: req.YearlyCumulativeTotal},
	)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.metrics.ObserveTDS(string(res.Section), string(res.ComplianceStatus))
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) margin(w http.ResponseWriter, r *http.Request) {
	var req marginRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := taxcalc.ComputeMargin(req.ExpectedRevenue, req.Costs)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.metrics.ObserveMargin(string(res.MarginStatus))
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) invoiceTotals(w http.ResponseWriter, r *http.Request) {
	var req invoiceRequest
	if !h.decode(w, r, &req) {
		return
	}
	gstType, err := taxcalc.ParseGSTType(req.GSTType)
	if err != nil {
		h.respondError(w, err)
		return
	}
	res, err := taxcalc.ComputeInvoiceTotals(taxcalc.InvoiceFacts{
		BaseAmount: req.BaseAmount,
		GSTType:    gstType,
		GSTPercent: req.GSTPercent,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	split, err := taxcalc.GSTBreakdown(gstType, res.TaxAmount)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.metrics.ObserveInvoice(string(gstType))
	httpx.JSON(w, http.StatusOK, invoiceResponse{InvoiceResult: res, Breakdown: split})
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

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	if errors.Is(err, taxcalc.ErrInvalidInput) {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", err.Error())
		return
	}
	h.logger.Error("tax calculation", slog.Any("error", err))
	httpx.RespondError(w, err)
}
