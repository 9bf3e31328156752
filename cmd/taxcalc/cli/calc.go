package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/trainops/trainops-erp/internal/taxcalc"
)

func newTDSCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tds",
		Short: "Compute TDS on a vendor payment",
		Example: `  taxcalc tds --category Company --nature Contractor --pan --amount 50000
  taxcalc tds --category Individual --nature ProfessionalServices --amount 60000 --cumulative 10000 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			category, _ := cmd.Flags().GetString("category")
			nature, _ := cmd.Flags().GetString("nature")
			pan, _ := cmd.Flags().GetBool("pan")
			amount, err := decimalFlag(cmd, "amount")
			if err != nil {
				return err
			}
			cumulative, err := decimalFlag(cmd, "cumulative")
			if err != nil {
				return err
			}
			res, err := taxcalc.ComputeTDS(
				taxcalc.VendorFacts{Category: taxcalc.VendorCategory(category), PANProvided: pan, NatureOfService: taxcalc.ServiceNature(nature)},
				taxcalc.PaymentFacts{PaymentAmount: amount, YearlyCumulativeTotal: cumulative},
			)
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return writeJSON(cmd, res)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "Section\t%s\n", res.Section)
			fmt.Fprintf(w, "Rate\t%s%%\n", res.RatePercent)
			fmt.Fprintf(w, "Threshold exceeded\t%t\n", res.ThresholdExceeded)
			fmt.Fprintf(w, "TDS\t%s\n", rupees(res.TDSAmount))
			fmt.Fprintf(w, "Net payable\t%s\n", rupees(res.NetPayable))
			fmt.Fprintf(w, "Compliance\t%s\n", res.ComplianceStatus)
			if res.PANMissingPenaltyApplied {
				fmt.Fprintf(w, "Note\tPAN missing, %s%% floor applied\n", taxcalc.PANPenaltyRate)
			}
			return w.Flush()
		},
	}
	cmd.Flags().String("category", "", "vendor category (Individual, HUF, Company, Firm, LLP)")
	cmd.Flags().String("nature", "", "nature of service (Contractor, ProfessionalServices, TechnicalServices, CallCentreServices, Other)")
	cmd.Flags().Bool("pan", false, "vendor has a PAN on file")
	cmd.Flags().String("amount", "", "payment amount")
	cmd.Flags().String("cumulative", "0", "vendor total already paid this fiscal year")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("nature")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

var costFlags = []struct{ name, usage string }{
	{"trainer", "trainer cost"},
	{"lab", "lab cost"},
	{"logistics", "logistics cost"},
	{"content", "content cost"},
	{"contingency", "contingency buffer"},
	{"travel", "travel cost"},
	{"marketing", "marketing cost"},
	{"other", "other cost"},
}

func costsFromFlags(cmd *cobra.Command) (taxcalc.DealCosts, error) {
	var c taxcalc.DealCosts
	targets := map[string]*decimal.Decimal{
		"trainer":     &c.TrainerCost,
		"lab":         &c.LabCost,
		"logistics":   &c.LogisticsCost,
		"content":     &c.ContentCost,
		"contingency": &c.ContingencyBuffer,
		"travel":      &c.TravelCost,
		"marketing":   &c.MarketingCost,
		"other":       &c.OtherCost,
	}
	for _, f := range costFlags {
		v, err := decimalFlag(cmd, f.name)
		if err != nil {
			return taxcalc.DealCosts{}, err
		}
		*targets[f.name] = v
	}
	return c, nil
}

func newMarginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "margin",
		Short:   "Compute the gross margin of a deal",
		Example: `  taxcalc margin --revenue 250000 --trainer 120000 --lab 30000 --travel 15000`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			revenue, err := decimalFlag(cmd, "revenue")
			if err != nil {
				return err
			}
			costs, err := costsFromFlags(cmd)
			if err != nil {
				return err
			}
			res, err := taxcalc.ComputeMargin(revenue, costs)
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return writeJSON(cmd, res)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "Total cost\t%s\n", rupees(res.TotalCost))
			fmt.Fprintf(w, "Net profit\t%s\n", rupees(res.NetProfit))
			fmt.Fprintf(w, "Gross margin\t%s%%\n", res.GrossMarginPercent.StringFixed(2))
			fmt.Fprintf(w, "Status\t%s\n", res.MarginStatus)
			return w.Flush()
		},
	}
	cmd.Flags().String("revenue", "", "expected revenue")
	_ = cmd.MarkFlagRequired("revenue")
	for _, f := range costFlags {
		cmd.Flags().String(f.name, "", f.usage)
	}
	return cmd
}

func newInvoiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "invoice",
		Short:   "Compute GST and invoice total",
		Example: `  taxcalc invoice --base 100000 --gst-type CGST_SGST --gst-percent 18`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := decimalFlag(cmd, "base")
			if err != nil {
				return err
			}
			pct, err := decimalFlag(cmd, "gst-percent")
			if err != nil {
				return err
			}
			rawType, _ := cmd.Flags().GetString("gst-type")
			gstType, err := taxcalc.ParseGSTType(rawType)
			if err != nil {
				return err
			}
			res, err := taxcalc.ComputeInvoiceTotals(taxcalc.InvoiceFacts{BaseAmount: base, GSTType: gstType, GSTPercent: pct})
			if err != nil {
				return err
			}
			split, err := taxcalc.GSTBreakdown(gstType, res.TaxAmount)
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return writeJSON(cmd, struct {
					taxcalc.InvoiceResult
					Breakdown taxcalc.GSTSplit `json:"breakdown"`
				}{res, split})
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "Base\t%s\n", rupees(base))
			switch gstType {
			case taxcalc.GSTIntegrated:
				fmt.Fprintf(w, "IGST\t%s\n", rupees(split.IGST))
			case taxcalc.GSTCentralState:
				fmt.Fprintf(w, "CGST\t%s\n", rupees(split.CGST))
				fmt.Fprintf(w, "SGST\t%s\n", rupees(split.SGST))
			}
			fmt.Fprintf(w, "Tax\t%s\n", rupees(res.TaxAmount))
			fmt.Fprintf(w, "Total\t%s\n", rupees(res.TotalAmount))
			return w.Flush()
		},
	}
	cmd.Flags().String("base", "", "taxable base amount")
	cmd.Flags().String("gst-type", "", "IGST, CGST_SGST or None")
	cmd.Flags().String("gst-percent", "18", "GST rate in percent")
	_ = cmd.MarkFlagRequired("base")
	_ = cmd.MarkFlagRequired("gst-type")
	return cmd
}

func newRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "Print the TDS threshold table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rules := taxcalc.Rules()
			if jsonOutput(cmd) {
				return writeJSON(cmd, rules)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NATURE\tSECTION\tSINGLE\tAGGREGATE\tINDIVIDUAL/HUF\tOTHERS")
			for _, r := range rules {
				single := "-"
				if r.SingleThreshold.IsPositive() {
					single = rupees(r.SingleThreshold)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s%%\t%s%%\n", r.Nature, r.Section, single, rupees(r.AggregateThreshold),
					r.Rates[taxcalc.CategoryIndividual], r.Rates[taxcalc.CategoryCompany])
			}
			fmt.Fprintf(w, "PAN missing floor: %s%%\n", taxcalc.PANPenaltyRate)
			return w.Flush()
		},
	}
}
