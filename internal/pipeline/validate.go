package pipeline

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/aiki-no/aiki-cli/internal/format"
	"github.com/aiki-no/aiki-cli/internal/model"
)

// ErrFeatureDisabled is returned for kinds switched off under features.*.
var ErrFeatureDisabled = eris.New("pipeline: feature disabled")

// ValidationError lists the required fields a request is missing, by their
// human-readable labels.
type ValidationError struct {
	Kind   model.Kind
	Fields []string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "pipeline: invalid " + e.Kind.String() + " request"
	}
	return "pipeline: " + e.Kind.String() + " request missing " + strings.Join(e.Fields, ", ")
}

type requiredField struct {
	key   string
	label string
}

var requiredFields = map[model.Kind][]requiredField{
	model.KindOffer: {
		{"kunde", "customer name"},
		{"tjenester", "services"},
	},
	model.KindContract: {
		{"type", "contract type"},
		{"parter", "parties"},
		{"leveranser", "deliverables"},
	},
	model.KindLeadSearch: {
		{"bransje", "industry"},
	},
	model.KindCompanyReport: {
		{"bedrift_navn", "company name"},
	},
}

// Validate checks that req names a known kind and carries every required
// field with non-blank content.
func Validate(req model.DocumentRequest) error {
	fields, ok := requiredFields[req.Kind]
	if !ok {
		return &ValidationError{Kind: req.Kind, Fields: []string{"document type"}}
	}
	var missing []string
	for _, f := range fields {
		if req.Field(f.key) == "" {
			missing = append(missing, f.label)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Kind: req.Kind, Fields: missing}
	}
	return nil
}

// orgNrWarning reports whether a supplied org.nr fails the mod-11 check.
// An invalid number never fails the request.
func orgNrWarning(req model.DocumentRequest) bool {
	orgnr := strings.ReplaceAll(req.Field("orgnr"), " ", "")
	return orgnr != "" && !format.ValidateOrgNr(orgnr)
}
