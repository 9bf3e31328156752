package cli

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/trainops/trainops-erp/internal/taxcalc"
)

var batchColumns = []string{"vendor_category", "pan_provided", "nature", "payment_amount", "cumulative_total"}

// BatchRow is the outcome of one CSV line.
type BatchRow struct {
	Line   int                `json:"line"`
	Result *taxcalc.TDSResult `json:"result,omitempty"`
	Error  string             `json:"error,omitempty"`
}

// BatchSummary totals a batch run.
type BatchSummary struct {
	Rows       []BatchRow      `json:"rows"`
	Failed     int             `json:"failed"`
	TotalGross decimal.Decimal `json:"total_gross"`
	TotalTDS   decimal.Decimal `json:"total_tds"`
}

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Compute TDS for every payment in a CSV file",
		Long: `batch reads a CSV with the header
  vendor_category,pan_provided,nature,payment_amount,cumulative_total
and writes one CSV result row per input line. Bad lines carry their error in the
last column; the command exits non-zero when any line failed.`,
		Example: `  taxcalc batch --in payments.csv
  taxcalc batch --in - --json < payments.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("in")
			var in io.Reader = cmd.InOrStdin()
			if path != "-" {
				f, err := os.Open(path)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			summary, err := RunBatch(in)
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				if err := writeJSON(cmd, summary); err != nil {
					return err
				}
			} else if err := renderBatch(cmd.OutOrStdout(), summary); err != nil {
				return err
			}
			if summary.Failed > 0 {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "%d of %d line(s) failed\n", summary.Failed, len(summary.Rows))
				return errSilent
			}
			return nil
		},
	}
	cmd.Flags().String("in", "", "CSV file to read, - for stdin")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}

// RunBatch computes TDS for each CSV record. Only a missing or malformed header
// aborts the run.
func RunBatch(in io.Reader) (BatchSummary, error) {
	r := csv.NewReader(in)
	r.TrimLeadingSpace = true
	header, err := r.Read()
	if err != nil {
		return BatchSummary{}, fmt.Errorf("batch: read header: %w", err)
	}
	index, err := columnIndex(header)
	if err != nil {
		return BatchSummary{}, err
	}

	summary := BatchSummary{Rows: []BatchRow{}, TotalGross: decimal.Zero, TotalTDS: decimal.Zero}
	line := 1
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		row := BatchRow{Line: line}
		if err != nil {
			row.Error = err.Error()
		} else if res, err := computeRecord(record, index); err != nil {
			row.Error = err.Error()
		} else {
			row.Result = &res
			summary.TotalGross = summary.TotalGross.Add(res.NetPayable).Add(res.TDSAmount)
			summary.TotalTDS = summary.TotalTDS.Add(res.TDSAmount)
		}
		if row.Error != "" {
			summary.Failed++
		}
		summary.Rows = append(summary.Rows, row)
	}
	return summary, nil
}

func columnIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range batchColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("batch: header missing column %q", col)
		}
	}
	return index, nil
}

func computeRecord(record []string, index map[string]int) (taxcalc.TDSResult, error) {
	field := func(col string) string {
		i := index[col]
		if i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}
	pan, err := strconv.ParseBool(field("pan_provided"))
	if err != nil {
		return taxcalc.TDSResult{}, fmt.Errorf("%w: pan_provided %q is not a boolean", taxcalc.ErrInvalidInput, field("pan_provided"))
	}
	amount, err := decimal.NewFromString(field("payment_amount"))
	if err != nil {
		return taxcalc.TDSResult{}, fmt.Errorf("%w: payment_amount %q is not a number", taxcalc.ErrInvalidInput, field("payment_amount"))
	}
	cumulative := decimal.Zero
	if raw := field("cumulative_total"); raw != "" {
		if cumulative, err = decimal.NewFromString(raw); err != nil {
			return taxcalc.TDSResult{}, fmt.Errorf("%w: cumulative_total %q is not a number", taxcalc.ErrInvalidInput, raw)
		}
	}
	return taxcalc.ComputeTDS(
		taxcalc.VendorFacts{
			Category:        taxcalc.VendorCategory(field("vendor_category")),
			PANProvided:     pan,
			NatureOfService: taxcalc.ServiceNature(field("nature")),
		},
		taxcalc.PaymentFacts{PaymentAmount: amount, YearlyCumulativeTotal: cumulative},
	)
}

func renderBatch(out io.Writer, summary BatchSummary) error {
	w := csv.NewWriter(out)
	_ = w.Write([]string{"line", "section", "rate_percent", "threshold_exceeded", "tds_amount", "net_payable", "compliance_status", "error"})
	for _, row := range summary.Rows {
		line := strconv.Itoa(row.Line)
		if row.Result == nil {
			_ = w.Write([]string{line, "", "", "", "", "", "", row.Error})
			continue
		}
		res := row.Result
		_ = w.Write([]string{
			line,
			string(res.Section),
			res.RatePercent.String(),
			strconv.FormatBool(res.ThresholdExceeded),
			res.TDSAmount.String(),
			res.NetPayable.String(),
			string(res.ComplianceStatus),
			"",
		})
	}
	w.Flush()
	return w.Error()
}
