package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/aiki-no/aiki-cli/internal/model"
)

// CompanyBundle is the computed data of a company report.
type CompanyBundle struct {
	ID       string
	IssuedAt time.Time
	// OrgNr is the registry id given in the request, if any.
	OrgNr    string
	Analysis model.CompanyAnalysis
}

// Kind implements Bundle.
func (CompanyBundle) Kind() model.Kind { return model.KindCompanyReport }

func (c CompanyBundle) render(r *Renderer, sb *strings.Builder) {
	f := r.f
	a := c.Analysis

	fmt.Fprintf(sb, "BEDRIFTSANALYSE: %s\n\n", f.Upper(a.Basics.Name))
	fmt.Fprintf(sb, "RAPPORT NR: %s\n", c.ID)
	fmt.Fprintf(sb, "ANALYSETYPE: %s\n", f.Upper(a.AnalysisType))
	fmt.Fprintf(sb, "RAPPORT GENERERT: %s\n", f.FormatDateTime(c.IssuedAt))
	if orgnr := strings.TrimSpace(c.OrgNr); orgnr != "" {
		fmt.Fprintf(sb, "ORG.NR: %s\n", orgnr)
	}
	if a.Estimated {
		sb.WriteString("MERK: Eksterne data var utilgjengelige. Tallene under er estimater.\n")
	}
	sb.WriteByte('\n')

	for _, s := range a.Sections {
		sb.WriteString(s.Title)
		sb.WriteByte('\n')
		sb.WriteString(s.Content)
		sb.WriteString("\n\n")
	}

	sb.WriteString("EXECUTIVE SUMMARY:\n")
	sb.WriteString(a.Summary)
	sb.WriteString("\n\n")

	sb.WriteString("SALGSMULIGHETER:\n")
	writeBullets(sb, "", nonEmpty(a.Opportunities))
	sb.WriteByte('\n')

	sb.WriteString("RISIKOFAKTORER:\n")
	writeBullets(sb, "", nonEmpty(a.Risks))
	sb.WriteByte('\n')

	sb.WriteString("ANBEFALINGER:\n")
	writeBullets(sb, "", nonEmpty(a.Recommendations))
	sb.WriteByte('\n')

	sb.WriteString("SCORING:\n")
	fmt.Fprintf(sb, "- Kredittverdighet: %d/10\n", a.Scores.Credit)
	fmt.Fprintf(sb, "- Vekstpotensial: %d/10\n", a.Scores.Growth)
	fmt.Fprintf(sb, "- Teknologimodenhet: %d/10\n", a.Scores.Tech)
	fmt.Fprintf(sb, "- Salgspotensial: %d/10\n\n", a.Scores.Sales)

	fmt.Fprintf(sb, "TOTAL %s-SCORE: %d/10\n\n", r.provider.Name, a.TotalScore)

	sb.WriteString("---\n")
	fmt.Fprintf(sb, "Rapporten er generert med %s AI og basert på offentlige kilder og markedsinnsikt.\n", r.provider.Name)
	sb.WriteString("For dypere analyse, kontakt vårt ekspertteam.\n")
}
