package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aiki-no/aiki-cli/internal/export"
	"github.com/aiki-no/aiki-cli/internal/model"
	"github.com/aiki-no/aiki-cli/internal/store"
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Inspect stored documents",
	Long:  "Commands for listing, viewing and exporting generated documents.",
}

// -- docs list --

var docsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored documents",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		kindName, _ := cmd.Flags().GetString("kind")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := store.DocumentFilter{Limit: limit}
		if kindName != "" {
			k, err := model.ParseKind(kindName)
			if err != nil {
				return err
			}
			filter.Kind = k
		}

		docs, err := st.ListDocuments(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "docs list")
		}
		if len(docs) == 0 {
			fmt.Fprintln(os.Stderr, "No documents found.")
			return nil
		}

		formatDocumentList(os.Stdout, docs)
		return nil
	},
}

// -- docs show --

var docsShowCmd = &cobra.Command{
	Use:   "show <document-id>",
	Short: "Print a stored document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		doc, err := st.GetDocument(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "docs show")
		}
		asJSON, _ := cmd.Flags().GetBool("json")
		return writeDocument(os.Stdout, doc, asJSON)
	},
}

// -- docs leads --

var docsLeadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "List ranked leads across stored lead reports",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		minScore, _ := cmd.Flags().GetInt("min-score")
		limit, _ := cmd.Flags().GetInt("limit")

		leads, err := st.ListLeads(ctx, store.LeadFilter{MinScore: minScore, Limit: limit})
		if err != nil {
			return eris.Wrap(err, "docs leads")
		}
		if len(leads) == 0 {
			fmt.Fprintln(os.Stderr, "No leads found.")
			return nil
		}

		formatLeadList(os.Stdout, leads)
		return nil
	},
}

// -- docs export --

var docsExportCmd = &cobra.Command{
	Use:   "export <document-id>",
	Short: "Export the leads of a lead report to XLSX",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		doc, err := st.GetDocument(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "docs export")
		}
		if doc.Kind != model.KindLeadSearch {
			return eris.Errorf("docs export: %s is a %s document, not a lead report", doc.ID, doc.Kind)
		}

		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			out = doc.ID + ".xlsx"
		}
		if err := export.SaveLeads(out, doc.Leads); err != nil {
			return eris.Wrap(err, "docs export")
		}

		zap.L().Info("leads exported",
			zap.String("document", doc.ID),
			zap.Int("leads", len(doc.Leads)),
			zap.String("file", out),
		)
		return nil
	},
}

func init() {
	docsListCmd.Flags().String("kind", "", "filter by kind (tilbud, kontrakt, leads, bedrift)")
	docsListCmd.Flags().Int("limit", 50, "max number of documents to display")

	docsShowCmd.Flags().Bool("json", false, "print the document as JSON")

	docsLeadsCmd.Flags().Int("min-score", 0, "only leads scoring at least this")
	docsLeadsCmd.Flags().Int("limit", 50, "max number of leads to display")

	docsExportCmd.Flags().String("out", "", "output file (default <document-id>.xlsx)")

	docsCmd.AddCommand(docsListCmd)
	docsCmd.AddCommand(docsShowCmd)
	docsCmd.AddCommand(docsLeadsCmd)
	docsCmd.AddCommand(docsExportCmd)
	rootCmd.AddCommand(docsCmd)
}

// formatDocumentList writes a tabular list of documents to out.
func formatDocumentList(out io.Writer, docs []store.DocumentSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tKIND\tISSUED\tTITLE")
	_, _ = fmt.Fprintln(w, "--\t----\t------\t-----")

	for _, d := range docs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			d.ID,
			d.Kind,
			d.IssuedAt.Format("2006-01-02 15:04"),
			truncate(d.Title, 50),
		)
	}
	_ = w.Flush()
}

// formatLeadList writes stored leads to out.
func formatLeadList(out io.Writer, leads []store.StoredLead) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SCORE\tCOMPANY\tEMPLOYEES\tCONTACT\tEMAIL\tDOCUMENT")
	_, _ = fmt.Fprintln(w, "-----\t-------\t---------\t-------\t-----\t--------")

	for _, l := range leads {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\t%s\n",
			l.Score,
			truncate(l.Name, 30),
			l.Employees,
			l.Contact,
			l.Email,
			l.DocumentID,
		)
	}
	_ = w.Flush()
}

// truncate shortens s to n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
