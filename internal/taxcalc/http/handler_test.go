package taxcalchttp

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/trainops/trainops-erp/internal/observability"
	"github.com/trainops/trainops-erp/internal/platform/httpx"
)

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	NewHandler(logger, observability.NewMetrics()).MountRoutes(r)
	return r
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rr, req)
	return rr
}

func TestTDSEndpoint(t *testing.T) {
	rr := post(t, newRouter(t), "/tax/tds", `{
		"vendor_category": "Company",
		"pan_provided": true,
		"nature_of_service": "Contractor",
		"payment_amount": 50000,
		"vendor_yearly_cumulative_total": 0
	}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "194C", body["section"])
	require.Equal(t, "2", body["rate_percent"])
	require.Equal(t, "1000", body["tds_amount"])
	require.Equal(t, "49000", body["net_payable"])
	require.Equal(t, "Compliant", body["compliance_status"])
}

func TestTDSEndpointRejectsNegativeAmount(t *testing.T) {
	rr := post(t, newRouter(t), "/tax/tds", `{
		"vendor_category": "Company",
		"nature_of_service": "Contractor",
		"payment_amount": -1
	}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	var problem httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &problem))
	require.Equal(t, "Invalid Input", problem.Title)
	require.Contains(t, problem.Detail, "payment_amount")
}

func TestTDSEndpointRequiresCategory(t *testing.T) {
	rr := post(t, newRouter(t), "/tax/tds", `{"nature_of_service": "Contractor", "payment_amount": 10}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	var problem httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &problem))
	require.Equal(t, "required", problem.Errors["vendor_category"])
}

func TestMarginEndpoint(t *testing.T) {
	rr := post(t, newRouter(t), "/tax/margin", `{
		"expected_revenue": "100000",
		"costs": {"trainer_cost": 60000, "lab_cost": 20000}
	}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "80000", body["total_cost"])
	require.Equal(t, "20", body["gross_margin_percent"])
	require.Equal(t, "AboveThreshold", body["margin_status"])
}

func TestMarginEndpointRejectsNegativeRevenue(t *testing.T) {
	rr := post(t, newRouter(t), "/tax/margin", `{"expected_revenue": -100, "costs": {}}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestInvoiceTotalsEndpoint(t *testing.T) {
	rr := post(t, newRouter(t), "/tax/invoice-totals", `{"base_amount": 500000, "gst_type": "CGST_SGST", "gst_percent": 18}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var body struct {
		TaxAmount   string            `json:"tax_amount"`
		TotalAmount string            `json:"total_amount"`
		Breakdown   map[string]string `json:"breakdown"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "90000", body.TaxAmount)
	require.Equal(t, "590000", body.TotalAmount)
	require.Equal(t, "45000", body.Breakdown["cgst"])
	require.Equal(t, "45000", body.Breakdown["sgst"])
}

func TestInvoiceTotalsEndpointRejectsOutOfRangePercent(t *testing.T) {
	rr := post(t, newRouter(t), "/tax/invoice-totals", `{"base_amount": 100, "gst_type": "IGST", "gst_percent": 150}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRulesEndpoint(t *testing.T) {
	rr := httptest.NewRecorder()
	newRouter(t).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/tax/rules", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"section":"194C"`)
	require.Contains(t, rr.Body.String(), `"pan_penalty_rate":"20"`)
}
