package cli

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trainops/trainops-erp/internal/taxcalc"
)

func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Execute(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestTDSJSON(t *testing.T) {
	code, out, _ := run(t, "tds", "--category", "company", "--nature", "Contractor", "--pan", "--amount", "50000", "--json")
	require.Equal(t, 0, code)

	var res taxcalc.TDSResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, taxcalc.Section194C, res.Section)
	assert.True(t, res.TDSAmount.Equal(decimal.NewFromInt(1000)))
	assert.True(t, res.NetPayable.Equal(decimal.NewFromInt(49000)))
	assert.Equal(t, taxcalc.StatusCompliant, res.ComplianceStatus)
}

func TestTDSTableNotesMissingPAN(t *testing.T) {
	code, out, _ := run(t, "tds", "--category", "Individual", "--nature", "ProfessionalServices", "--amount", "60000")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "194J")
	assert.Contains(t, out, "PendingPAN")
	assert.Contains(t, out, "PAN missing")
}

func TestInvalidInputExitsTwo(t *testing.T) {
	code, _, errOut := run(t, "tds", "--category", "Trust", "--nature", "Contractor", "--amount", "100")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "vendor_category")

	code, _, errOut = run(t, "margin", "--revenue", "abc")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "--revenue")
}

func TestMarginJSON(t *testing.T) {
	code, out, _ := run(t, "margin", "--revenue", "100000", "--trainer", "70000", "--lab", "15000", "--json")
	require.Equal(t, 0, code)

	var res taxcalc.MarginResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.TotalCost.Equal(decimal.NewFromInt(85000)))
	assert.True(t, res.GrossMarginPercent.Equal(decimal.NewFromInt(15)))
	assert.Equal(t, taxcalc.MarginAtThreshold, res.MarginStatus)
}

func TestInvoiceSplitsCentralAndState(t *testing.T) {
	code, out, _ := run(t, "invoice", "--base", "100000", "--gst-type", "cgst_sgst")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "CGST")
	assert.Contains(t, out, "SGST")

	code, out, _ = run(t, "invoice", "--base", "100000", "--gst-type", "IGST", "--json")
	require.Equal(t, 0, code)
	var res struct {
		TaxAmount   decimal.Decimal  `json:"tax_amount"`
		TotalAmount decimal.Decimal  `json:"total_amount"`
		Breakdown   taxcalc.GSTSplit `json:"breakdown"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.TaxAmount.Equal(decimal.NewFromInt(18000)))
	assert.True(t, res.TotalAmount.Equal(decimal.NewFromInt(118000)))
	assert.True(t, res.Breakdown.IGST.Equal(decimal.NewFromInt(18000)))
}

func TestRulesListsEverySection(t *testing.T) {
	code, out, _ := run(t, "rules", "--json")
	require.Equal(t, 0, code)

	var rules []taxcalc.Rule
	require.NoError(t, json.Unmarshal([]byte(out), &rules))
	assert.Len(t, rules, 4)
	assert.Equal(t, taxcalc.NatureContractor, rules[0].Nature)
}

func writeCSV(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "payments.csv")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestBatchReportsEachLine(t *testing.T) {
	path := writeCSV(t, strings.Join([]string{
		"vendor_category,pan_provided,nature,payment_amount,cumulative_total",
		"Company,true,Contractor,50000,0",
		"Individual,false,ProfessionalServices,60000,",
		"Firm,maybe,Contractor,1000,0",
		"Company,true,Other,9000,0",
	}, "\n"))

	code, out, errOut := run(t, "batch", "--in", path, "--json")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "1 of 4 line(s) failed")

	var summary BatchSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	require.Len(t, summary.Rows, 4)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 2, summary.Rows[0].Line)
	assert.True(t, summary.Rows[0].Result.TDSAmount.Equal(decimal.NewFromInt(1000)))
	assert.True(t, summary.Rows[1].Result.TDSAmount.Equal(decimal.NewFromInt(12000)))
	assert.Nil(t, summary.Rows[2].Result)
	assert.Contains(t, summary.Rows[2].Error, "pan_provided")
	assert.Equal(t, taxcalc.SectionNone, summary.Rows[3].Result.Section)
	assert.True(t, summary.TotalTDS.Equal(decimal.NewFromInt(13000)))
	assert.True(t, summary.TotalGross.Equal(decimal.NewFromInt(119000)))
}

func TestBatchSucceedsWhenAllLinesValid(t *testing.T) {
	path := writeCSV(t, "nature,vendor_category,pan_provided,payment_amount,cumulative_total\nContractor,HUF,true,40000,0\n")

	code, out, _ := run(t, "batch", "--in", path)
	assert.Equal(t, 0, code)
	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"2", "194C", "1", "true", "400", "39600", "Compliant", ""}, rows[1])
}

func TestBatchRejectsMissingColumn(t *testing.T) {
	_, err := RunBatch(strings.NewReader("vendor_category,nature,payment_amount\nCompany,Contractor,100\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pan_provided")
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

func TestInspectQueue(t *testing.T) {
	stats, err := inspectQueue(stubInspector{info: &asynq.QueueInfo{Queue: "default", Pending: 3, Retry: 1, Archived: 2}})
	require.NoError(t, err)
	assert.Equal(t, QueueStats{Queue: "default", Pending: 3, Retry: 1, Archived: 2}, stats)

	_, err = inspectQueue(stubInspector{err: errors.New("redis down")})
	assert.EqualError(t, err, "redis down")
}

func TestRenderQueueStats(t *testing.T) {
	var out bytes.Buffer
	cmd := NewRootCmd(&out, &out)
	require.NoError(t, renderQueueStats(cmd, QueueStats{Queue: "default", Pending: 4}))
	assert.Contains(t, out.String(), "PENDING")
	assert.Contains(t, out.String(), "default")
}

func TestJobsTriggerRejectsUnknownTask(t *testing.T) {
	code, _, errOut := run(t, "jobs", "trigger", "reports:nightly", "--redis", "127.0.0.1:1")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "unsupported job reports:nightly")
}
