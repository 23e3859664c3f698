package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aiki-no/aiki-cli/internal/model"
)

var (
	genFields []string
	genSave   bool
	genJSON   bool
)

var generateCmd = &cobra.Command{
	Use:   "generate <tilbud|kontrakt|leads|bedrift>",
	Short: "Generate a single document",
	Long: `Generate one document from form fields given as key=value pairs.

Examples:
  aiki generate tilbud -f kunde="Fjordlast AS" -f tjenester="AI-chatbot" -f budsjett="100 000 - 200 000"
  aiki generate leads -f bransje=teknologi -f region=Norge
  aiki generate bedrift -f bedrift_navn=Equinor -f analyse_type=komplett`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		req, err := buildRequest(args[0], genFields)
		if err != nil {
			return err
		}

		env, err := initApp(ctx, genSave)
		if err != nil {
			return err
		}
		defer env.Close()

		doc, err := env.Pipeline.Run(ctx, req)
		if err != nil {
			return eris.Wrap(err, "generate")
		}

		zap.L().Info("document generated",
			zap.String("id", doc.ID),
			zap.Stringer("kind", doc.Kind),
			zap.Bool("saved", genSave),
		)
		return writeDocument(os.Stdout, doc, genJSON)
	},
}

func init() {
	generateCmd.Flags().StringArrayVarP(&genFields, "field", "f", nil, "form field as key=value (repeatable)")
	generateCmd.Flags().BoolVar(&genSave, "save", false, "store the generated document")
	generateCmd.Flags().BoolVar(&genJSON, "json", false, "print the document as JSON")
	rootCmd.AddCommand(generateCmd)
}

// buildRequest parses a kind name and key=value pairs into a request.
func buildRequest(kind string, pairs []string) (model.DocumentRequest, error) {
	k, err := model.ParseKind(kind)
	if err != nil {
		return model.DocumentRequest{}, err
	}
	fields := make(map[string]string, len(pairs))
	for _, p := range pairs {
		key, val, ok := strings.Cut(p, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return model.DocumentRequest{}, eris.Errorf("invalid field %q, expected key=value", p)
		}
		fields[key] = val
	}
	return model.DocumentRequest{Kind: k, Fields: fields}, nil
}

// writeDocument prints the body, or the whole document as indented JSON.
func writeDocument(out io.Writer, doc *model.RenderedDocument, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	}
	_, err := fmt.Fprintln(out, doc.Body)
	return err
}
