package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Kind selects which document-generation branch a request belongs to.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindOffer
	KindContract
	KindLeadSearch
	KindCompanyReport
)

// Kinds lists every valid kind in display order.
var Kinds = []Kind{KindOffer, KindContract, KindLeadSearch, KindCompanyReport}

var kindNames = map[Kind]string{
	KindOffer:         "offer",
	KindContract:      "contract",
	KindLeadSearch:    "leads",
	KindCompanyReport: "company",
}

// kindAliases maps accepted spellings (English and the Norwegian form names) to a Kind.
var kindAliases = map[string]Kind{
	"offer":          KindOffer,
	"tilbud":         KindOffer,
	"contract":       KindContract,
	"kontrakt":       KindContract,
	"kontrakter":     KindContract,
	"leads":          KindLeadSearch,
	"lead_search":    KindLeadSearch,
	"leadsearch":     KindLeadSearch,
	"company":        KindCompanyReport,
	"company_report": KindCompanyReport,
	"bedrift":        KindCompanyReport,
	"bedriftinfo":    KindCompanyReport,
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether k is one of the four document kinds.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// ParseKind resolves a kind name or alias, case-insensitively.
func ParseKind(s string) (Kind, error) {
	if k, ok := kindAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return k, nil
	}
	return KindUnknown, eris.Errorf("model: unknown document kind %q", s)
}

func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, eris.Errorf("model: cannot marshal invalid kind %d", k)
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// DocumentRequest is a single generation request: a kind plus free-text form fields.
type DocumentRequest struct {
	Kind   Kind              `json:"kind" yaml:"kind"`
	Fields map[string]string `json:"fields" yaml:"fields"`
}

// Field returns the trimmed value of a request field, or "" when absent.
func (r DocumentRequest) Field(key string) string {
	return strings.TrimSpace(r.Fields[key])
}

// Clone returns a copy whose field map is independent of the original.
func (r DocumentRequest) Clone() DocumentRequest {
	fields := make(map[string]string, len(r.Fields))
	for k, v := range r.Fields {
		fields[k] = v
	}
	return DocumentRequest{Kind: r.Kind, Fields: fields}
}

// Stage is a step of the per-request pipeline state machine.
type Stage string

const (
	StageReceived        Stage = "received"
	StageValidating      Stage = "validating"
	StageDataAcquisition Stage = "data_acquisition"
	StageScoring         Stage = "scoring"
	StageAssembling      Stage = "assembling"
	StageDone            Stage = "done"
	StageFailed          Stage = "failed"
)

// StageResult records how long a pipeline stage took.
type StageResult struct {
	Stage    Stage  `json:"stage"`
	Duration int64  `json:"duration_ms"`
	Note     string `json:"note,omitempty"`
}

// RenderedDocument is the terminal artifact of a pipeline run.
type RenderedDocument struct {
	ID       string           `json:"id"`
	Kind     Kind             `json:"kind"`
	IssuedAt time.Time        `json:"issued_at"`
	Body     string           `json:"body"`
	Stages   []StageResult    `json:"stages,omitempty"`
	Leads    []Lead           `json:"leads,omitempty"`
	Analysis *CompanyAnalysis `json:"analysis,omitempty"`
}

// Title returns the first non-empty line of the body.
func (d *RenderedDocument) Title() string {
	for _, line := range strings.Split(d.Body, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return d.ID
}
