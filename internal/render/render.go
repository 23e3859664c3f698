// Package render assembles document bodies from computed bundles. Rendering
// is deterministic: ids, dates, scores and the footer are all chosen before
// a bundle reaches this package.
package render

import (
	"strings"

	"github.com/aiki-no/aiki-cli/internal/format"
	"github.com/aiki-no/aiki-cli/internal/model"
)

// Bundle is the data needed to render one document. The set of
// implementations is closed: OfferBundle, ContractBundle, LeadBundle and
// CompanyBundle.
type Bundle interface {
	Kind() model.Kind
	render(r *Renderer, b *strings.Builder)
}

// Provider identifies the company issuing documents.
type Provider struct {
	Name    string
	Team    string
	Contact string
}

// DefaultProvider is AIKI.
func DefaultProvider() Provider {
	return Provider{
		Name:    "AIKI",
		Team:    "AIKI Development Team",
		Contact: "ai@aiki.no | +47 xxx xx xxx",
	}
}

// Renderer turns bundles into text.
type Renderer struct {
	f        *format.Formatter
	provider Provider
}

// New creates a Renderer. Empty provider fields take DefaultProvider values.
func New(f *format.Formatter, p Provider) *Renderer {
	def := DefaultProvider()
	if p.Name == "" {
		p.Name = def.Name
	}
	if p.Team == "" {
		p.Team = def.Team
	}
	if p.Contact == "" {
		p.Contact = def.Contact
	}
	return &Renderer{f: f, provider: p}
}

// Render returns the body text for b.
func (r *Renderer) Render(b Bundle) string {
	var sb strings.Builder
	b.render(r, &sb)
	return sb.String()
}

// splitLines trims every line of s and drops the empty ones.
func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func writeBullets(sb *strings.Builder, indent string, items []string) {
	for _, it := range items {
		sb.WriteString(indent)
		sb.WriteString("• ")
		sb.WriteString(it)
		sb.WriteByte('\n')
	}
}
