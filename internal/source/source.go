// Package source is the external-data collaborator of the document pipeline.
// It supplies company attributes and lead candidates. The default
// implementation is a mock; caching and resilience are decorators so a real
// provider can be dropped in without touching the pipeline.
package source

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/aiki-no/aiki-cli/internal/model"
)

// ErrDataUnavailable means the collaborator failed or had nothing to return.
// Callers degrade to estimates instead of failing the request.
var ErrDataUnavailable = eris.New("source: data unavailable")

// CompanyQuery identifies the company to look up.
type CompanyQuery struct {
	Name    string `json:"name"`
	OrgNr   string `json:"orgnr,omitempty"`
	Country string `json:"country,omitempty"`
}

// Key returns a normalized cache key for the query.
func (q CompanyQuery) Key() string {
	return "company:" + normalize(q.Name) + "|" + strings.ReplaceAll(q.OrgNr, " ", "") + "|" + normalize(q.Country)
}

// LeadQuery describes a lead search.
type LeadQuery struct {
	Industry string `json:"industry"`
	Region   string `json:"region"`
	Size     string `json:"size"`
}

// Key returns a normalized cache key for the query.
func (q LeadQuery) Key() string {
	return "leads:" + normalize(q.Industry) + "|" + normalize(q.Region) + "|" + normalize(q.Size)
}

// DataSource supplies external data to the pipeline.
type DataSource interface {
	// FetchCompanyData returns attributes for one company.
	FetchCompanyData(ctx context.Context, q CompanyQuery) (*model.CompanyAttributes, error)
	// FetchLeadCandidates returns unscored leads in generation order.
	FetchLeadCandidates(ctx context.Context, q LeadQuery) ([]model.Lead, error)
}

// UnavailableError wraps a collaborator failure. It matches
// ErrDataUnavailable under errors.Is.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return "source: " + e.Op + ": data unavailable: " + e.Err.Error()
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Is matches ErrDataUnavailable.
func (e *UnavailableError) Is(target error) bool { return target == ErrDataUnavailable }

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
