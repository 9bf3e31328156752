// Package cli implements the taxcalc command line: one-off TDS, margin and invoice
// computations, CSV batch runs and manual job triggers.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/trainops/trainops-erp/internal/taxcalc"
)

var version = "0.1.0"

// errSilent marks failures already reported to stderr.
var errSilent = errors.New("taxcalc: failed")

// Execute runs the command tree and returns the process exit code.
func Execute(args []string, stdout, stderr io.Writer) int {
	root := NewRootCmd(stdout, stderr)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		if !errors.Is(err, errSilent) {
			_, _ = fmt.Fprintln(stderr, "Error:", err)
		}
		if errors.Is(err, taxcalc.ErrInvalidInput) {
			return 2
		}
		return 1
	}
	return 0
}

// NewRootCmd builds the taxcalc command tree writing to the given streams.
func NewRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "taxcalc",
		Short: "Compute TDS, deal margins and GST invoice totals",
		Long: `taxcalc runs the TrainOps calculators from the command line.

Amounts are decimal strings; results are rounded the same way the API rounds
them (TDS to whole rupees, invoice tax to paise).`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().Bool("json", false, "print results as JSON")

	root.AddCommand(
		newTDSCmd(),
		newMarginCmd(),
		newInvoiceCmd(),
		newRulesCmd(),
		newBatchCmd(),
		newJobsCmd(),
	)
	return root
}

func jsonOutput(cmd *cobra.Command) bool {
	on, _ := cmd.Flags().GetBool("json")
	return on
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var printer = message.NewPrinter(language.MustParse("en-IN"))

// rupees renders an amount with grouping for human output.
func rupees(d decimal.Decimal) string {
	return printer.Sprintf("₹%.2f", d.InexactFloat64())
}

func decimalFlag(cmd *cobra.Command, name string) (decimal.Decimal, error) {
	raw, _ := cmd.Flags().GetString(name)
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: --%s %q is not a number", taxcalc.ErrInvalidInput, name, raw)
	}
	return d, nil
}
