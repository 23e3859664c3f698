package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aiki-no/aiki-cli/internal/config"
	"github.com/aiki-no/aiki-cli/internal/export"
	"github.com/aiki-no/aiki-cli/internal/model"
	"github.com/aiki-no/aiki-cli/pkg/notion"
	"github.com/aiki-no/aiki-cli/pkg/salesforce"
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish stored documents to Notion or Salesforce",
}

var publishNotionCmd = &cobra.Command{
	Use:   "notion <document-id>",
	Short: "Publish a document, and its leads, to Notion",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if !cfg.Features.NotionPublish {
			return eris.New("notion publishing is disabled (features.notion_publish)")
		}
		if err := cfg.Validate("notion"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		doc, err := st.GetDocument(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "publish notion")
		}

		return publishToNotion(ctx, notion.NewClient(cfg.Notion.Token), cfg.Notion, doc)
	},
}

var publishSFXLSX string

var publishSalesforceCmd = &cobra.Command{
	Use:   "salesforce [document-id]",
	Short: "Push the leads of a lead report, or of an XLSX sheet, to Salesforce",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if !cfg.Features.CRMIntegration {
			return eris.New("CRM integration is disabled (features.crm_integration)")
		}
		if err := cfg.Validate("salesforce"); err != nil {
			return err
		}

		var leads []model.Lead
		switch {
		case publishSFXLSX != "":
			l, err := export.ReadLeads(ctx, publishSFXLSX)
			if err != nil {
				return err
			}
			leads = l
		case len(args) == 1:
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck

			doc, err := st.GetDocument(ctx, args[0])
			if err != nil {
				return eris.Wrap(err, "publish salesforce")
			}
			if doc.Kind != model.KindLeadSearch {
				return eris.Errorf("publish salesforce: %s is a %s document, not a lead report", doc.ID, doc.Kind)
			}
			leads = doc.Leads
		default:
			return eris.New("publish salesforce: give a document id or --xlsx")
		}

		client, err := salesforce.Connect(cfg.Salesforce, salesforce.WithRateLimit(5))
		if err != nil {
			return err
		}
		res, err := salesforce.PushLeads(ctx, client, leads)
		if err != nil {
			return eris.Wrap(err, "publish salesforce")
		}
		if res.Failed > 0 {
			zap.L().Warn("some leads were rejected", zap.Strings("errors", res.Errors))
		}
		return nil
	},
}

func init() {
	publishSalesforceCmd.Flags().StringVar(&publishSFXLSX, "xlsx", "", "read leads from an XLSX lead sheet instead of a stored document")

	publishCmd.AddCommand(publishNotionCmd)
	publishCmd.AddCommand(publishSalesforceCmd)
	rootCmd.AddCommand(publishCmd)
}

// publishToNotion writes doc to the document database. Lead reports also
// add their leads to the lead database when one is configured.
func publishToNotion(ctx context.Context, c notion.Client, nc config.NotionConfig, doc *model.RenderedDocument) error {
	res, err := notion.PublishDocument(ctx, c, nc.DocumentDB, doc)
	if err != nil {
		return eris.Wrap(err, "publish notion")
	}
	zap.L().Info("document published to notion",
		zap.String("id", doc.ID),
		zap.String("page", res.PageID),
		zap.Bool("created", res.Created),
		zap.Int("blocks", res.Blocks),
	)

	if doc.Kind != model.KindLeadSearch || nc.LeadDB == "" || len(doc.Leads) == 0 {
		return nil
	}
	n, err := notion.PublishLeads(ctx, c, nc.LeadDB, doc.Leads)
	if err != nil {
		return eris.Wrap(err, "publish notion leads")
	}
	zap.L().Info("leads published to notion", zap.Int("created", n))
	return nil
}
