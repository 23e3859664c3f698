package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/aiki-no/aiki-cli/internal/cost"
	"github.com/aiki-no/aiki-cli/internal/format"
)

var (
	priceKnown string
	priceInput cost.QuoteInput
	priceJSON  bool
)

var pricingCmd = &cobra.Command{
	Use:   "pricing",
	Short: "Estimate success fee, savings and ROI for a customer",
	Long: `Prices an engagement with the internal calculator: a success fee on the
annual result plus the value of hours saved per employee.

Examples:
  aiki pricing --known equinor
  aiki pricing --company "Fjordlast AS" --result 12000000 --employees 260 --percent 2`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.Features.PricingCalc {
			return eris.New("pricing calculator is disabled (features.pricing_calculator)")
		}
		calc := cost.NewCalculator(cost.FromConfig(cfg.Pricing))

		var (
			q   cost.Quote
			err error
		)
		if priceKnown != "" {
			q, err = calc.QuoteKnown(cfg.Pricing.MockCompanies, priceKnown, priceInput)
		} else {
			q, err = calc.Quote(priceInput)
		}
		if err != nil {
			return err
		}

		if priceJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(q)
		}
		f := format.New(format.Locale{
			Tag:        cfg.I18n.Locale,
			Currency:   cfg.I18n.Currency,
			DateFormat: cfg.I18n.DateFormat,
		}, nil, randSource())
		formatQuote(os.Stdout, f, q)
		return nil
	},
}

func init() {
	pricingCmd.Flags().StringVar(&priceKnown, "known", "", "key of a known company (equinor, telenor, ...)")
	pricingCmd.Flags().StringVar(&priceInput.Company, "company", "", "customer name")
	pricingCmd.Flags().Float64Var(&priceInput.AnnualResult, "result", 0, "annual result in NOK")
	pricingCmd.Flags().IntVar(&priceInput.Employees, "employees", 0, "number of employees")
	pricingCmd.Flags().Float64Var(&priceInput.Percent, "percent", 0, "success fee percent (default from config)")
	pricingCmd.Flags().Float64Var(&priceInput.HoursSavedPerDay, "hours", 0, "hours saved per employee per day (default from config)")
	pricingCmd.Flags().Float64Var(&priceInput.Investment, "investment", 0, "investment in NOK (default one year of success fee)")
	pricingCmd.Flags().BoolVar(&priceJSON, "json", false, "print the quote as JSON")
	rootCmd.AddCommand(pricingCmd)
}

// formatQuote writes a quote as a two-column table.
func formatQuote(out io.Writer, f *format.Formatter, q cost.Quote) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if q.Company != "" {
		_, _ = fmt.Fprintf(w, "Kunde:\t%s\n", q.Company)
	}
	_, _ = fmt.Fprintf(w, "Suksesshonorar:\t%s (%s)\n", f.FormatCurrency(q.SuccessFee), f.FormatPercent(q.Percent, 1))
	_, _ = fmt.Fprintf(w, "Per måned:\t%s\n", f.FormatCurrency(q.MonthlySuccessFee))
	_, _ = fmt.Fprintf(w, "Timer spart per år:\t%s\n", f.FormatNumber(q.HoursSaved))
	_, _ = fmt.Fprintf(w, "Verdi av tidsbesparelse:\t%s\n", f.FormatCurrency(q.SavingsValue))
	_, _ = fmt.Fprintf(w, "Vedlikehold:\t%s\n", f.FormatCurrency(q.Maintenance))
	_, _ = fmt.Fprintf(w, "Netto gevinst:\t%s\n", f.FormatCurrency(q.NetBenefit))
	_, _ = fmt.Fprintf(w, "ROI:\t%s\n", f.FormatPercent(q.ROIPercent, 1))
	if q.PaybackMonths > 0 {
		_, _ = fmt.Fprintf(w, "Tilbakebetaling:\t%.1f måneder\n", q.PaybackMonths)
	} else {
		_, _ = fmt.Fprintln(w, "Tilbakebetaling:\tikke innen rekkevidde")
	}
	_ = w.Flush()
}
