package payables

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/trainops/trainops-erp/internal/platform/httpx"
)

const idempotencyModule = "payables"

// IdempotencyGuard claims request keys so retried payments are booked once.
type IdempotencyGuard interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Release(ctx context.Context, key, module string) error
}

// Handler wires payables endpoints.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	idempotency IdempotencyGuard
	validate    *validator.Validate
}

// NewHandler builds the handler. idempotency may be nil, in which case the
// Idempotency-Key header is ignored.
func NewHandler(logger *slog.Logger, service *Service, idempotency IdempotencyGuard) *Handler {
	return &Handler{logger: logger, service: service, idempotency: idempotency, validate: httpx.NewValidator()}
}

// MountRoutes registers vendor and payable routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/vendors", func(r chi.Router) {
		r.Post("/", h.createVendor)
		r.Get("/{id}", h.getVendor)
		r.Post("/{id}/tds-preview", h.previewTDS)
	})
	r.Route("/payables", func(r chi.Router) {
		r.Get("/", h.listPayables)
		r.Post("/", h.recordPayable)
		r.Get("/summary", h.summary)
	})
}

type createVendorRequest struct {
	Name            string `json:"name" validate:"required,max=200"`
	VendorCategory  string `json:"vendor_category" validate:"required"`
	NatureOfService string `json:"nature_of_service" validate:"required"`
	PAN             string `json:"pan" validate:"omitempty,len=10"`
}

type previewRequest struct {
	PaymentAmount decimal.Decimal `json:"payment_amount"`
	PaidAt        *time.Time      `json:"paid_at"`
}

type recordPayableRequest struct {
	VendorID      int64           `json:"vendor_id" validate:"required,gt=0"`
	Reference     string          `json:"reference" validate:"max=64"`
	PaymentAmount decimal.Decimal `json:"payment_amount"`
	PaidAt        *time.Time      `json:"paid_at"`
}

type summaryResponse struct {
	FiscalYear string           `json:"fiscal_year"`
	Sections   []SectionSummary `json:"sections"`
}

func (h *Handler) createVendor(w http.ResponseWriter, r *http.Request) {
	var req createVendorRequest
	if !h.decode(w, r, &req) {
		return
	}
	vendor, err := h.service.CreateVendor(r.Context(), CreateVendorInput{
		Name:            req.Name,
		Category:        req.VendorCategory,
		NatureOfService: req.NatureOfService,
		PAN:             req.PAN,
	})
	if err != nil {
		h.respondError(w, "create vendor", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, vendor)
}

func (h *Handler) getVendor(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	vendor, err := h.service.GetVendor(r.Context(), id)
	if err != nil {
		h.respondError(w, "get vendor", err)
		return
	}
	httpx.JSON(w, http.StatusOK, vendor)
}

func (h *Handler) previewTDS(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req previewRequest
	if !h.decode(w, r, &req) {
		return
	}
	var paidAt time.Time
	if req.PaidAt != nil {
		paidAt = *req.PaidAt
	}
	preview, err := h.service.PreviewTDS(r.Context(), id, req.PaymentAmount, paidAt)
	if err != nil {
		h.respondError(w, "preview tds", err)
		return
	}
	httpx.JSON(w, http.StatusOK, preview)
}

func (h *Handler) recordPayable(w http.ResponseWriter, r *http.Request) {
	var req recordPayableRequest
	if !h.decode(w, r, &req) {
		return
	}
	key := r.Header.Get("Idempotency-Key")
	if key != "" && h.idempotency != nil {
		if err := h.idempotency.CheckAndInsert(r.Context(), key, idempotencyModule); err != nil {
			h.respondError(w, "claim idempotency key", err)
			return
		}
	}
	input := RecordPayableInput{VendorID: req.VendorID, Reference: req.Reference, Amount: req.PaymentAmount}
	if req.PaidAt != nil {
		input.PaidAt = *req.PaidAt
	}
	payable, err := h.service.RecordPayable(r.Context(), input)
	if err != nil {
		if key != "" && h.idempotency != nil {
			if rerr := h.idempotency.Release(r.Context(), key, idempotencyModule); rerr != nil {
				h.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", rerr))
			}
		}
		h.respondError(w, "record payable", err)
		return
	}
	h.logger.Info("payable recorded",
		slog.Int64("vendor_id", payable.VendorID),
		slog.String("reference", payable.Reference),
		slog.String("section", string(payable.Section)),
		slog.String("tds_amount", payable.TDSAmount.String()))
	httpx.JSON(w, http.StatusCreated, payable)
}

func (h *Handler) listPayables(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := ListPayablesRequest{FiscalYear: q.Get("fiscal_year")}
	for name, dst := range map[string]*int{"limit": &req.Limit, "offset": &req.Offset} {
		if raw := q.Get(name); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil {
				httpx.Problem(w, http.StatusBadRequest, "Invalid Query", name+" must be an integer")
				return
			}
			*dst = v
		}
	}
	if raw := q.Get("vendor_id"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Query", "vendor_id must be an integer")
			return
		}
		req.VendorID = v
	}
	rows, err := h.service.ListPayables(r.Context(), req)
	if err != nil {
		h.respondError(w, "list payables", err)
		return
	}
	if rows == nil {
		rows = []Payable{}
	}
	httpx.JSON(w, http.StatusOK, rows)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	fy, rows, err := h.service.SectionSummary(r.Context(), r.URL.Query().Get("fiscal_year"))
	if err != nil {
		h.respondError(w, "section summary", err)
		return
	}
	if rows == nil {
		rows = []SectionSummary{}
	}
	httpx.JSON(w, http.StatusOK, summaryResponse{FiscalYear: fy, Sections: rows})
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
