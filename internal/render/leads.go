package render

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aiki-no/aiki-cli/internal/model"
	"github.com/aiki-no/aiki-cli/internal/scoring"
)

// LeadBundle is the computed data of a lead search report. Leads must
// already be ranked and cut to the reported number.
type LeadBundle struct {
	ID       string
	IssuedAt time.Time
	Params   model.LeadSearchParams
	Analysed int
	Leads    []model.Lead
	Stats    scoring.MarketStats
	// Note explains a degraded search, e.g. when the lead source was unavailable.
	Note string
}

// Kind implements Bundle.
func (LeadBundle) Kind() model.Kind { return model.KindLeadSearch }

func (l LeadBundle) render(r *Renderer, sb *strings.Builder) {
	f := r.f

	sb.WriteString("LEAD HUNTING RESULTATER\n\n")
	fmt.Fprintf(sb, "RAPPORT NR: %s\n", l.ID)
	fmt.Fprintf(sb, "DATO: %s\n\n", f.FormatDate(l.IssuedAt))

	sb.WriteString("SØKEPARAMETERE:\n")
	fmt.Fprintf(sb, "- Bransje: %s\n", l.Params.Industry)
	fmt.Fprintf(sb, "- Område: %s\n", l.Params.Region)
	fmt.Fprintf(sb, "- Størrelse: %s\n", l.Params.Size)
	fmt.Fprintf(sb, "- Spesialkriterier: %s\n\n", l.Params.Criteria)

	fmt.Fprintf(sb, "ANALYSERTE BEDRIFTER: %d\n", l.Analysed)
	fmt.Fprintf(sb, "KVALIFISERTE LEADS: %d\n", len(l.Leads))
	if l.Note != "" {
		fmt.Fprintf(sb, "MERK: %s\n", l.Note)
	}
	sb.WriteByte('\n')

	if len(l.Leads) == 0 {
		sb.WriteString("Ingen kvalifiserte leads funnet for søket.\n\n")
	}
	for i, lead := range l.Leads {
		if i > 0 {
			sb.WriteString("---\n\n")
		}
		writeLead(r, sb, i+1, lead)
	}

	sb.WriteString("MARKEDSANALYSE:\n")
	fmt.Fprintf(sb, "- Totalt potensial: %sM NOK\n", strconv.FormatFloat(l.Stats.TotalPotentialMillions, 'f', 1, 64))
	fmt.Fprintf(sb, "- Gjennomsnittlig dealsize: %sK NOK\n", f.FormatNumber(float64(l.Stats.AvgDealSizeThousands)))
	fmt.Fprintf(sb, "- Konverteringsrate: %d%%\n\n", l.Stats.ConversionRate)

	sb.WriteString("NESTE STEG:\n")
	sb.WriteString("1. Kontakt Top Lead #1 innen 24 timer\n")
	sb.WriteString("2. Forbered skreddersydd pitch basert på deres spesifikke behov\n")
	sb.WriteString("3. Book demo/møte med beslutningstaker\n")
	sb.WriteString("4. Følg opp innen en uke\n")
}

func writeLead(r *Renderer, sb *strings.Builder, rank int, lead model.Lead) {
	f := r.f
	const in = "   "

	fmt.Fprintf(sb, "TOP LEAD #%d: %s\n", rank, lead.Name)
	fmt.Fprintf(sb, "%sMatchscore: %d/100\n\n", in, lead.Score)

	fmt.Fprintf(sb, "%sGRUNNDATA:\n", in)
	fmt.Fprintf(sb, "%s- Ansatte: %s\n", in, f.FormatNumber(float64(lead.Employees)))
	fmt.Fprintf(sb, "%s- Omsetning: %sM NOK\n", in, f.FormatNumber(lead.RevenueMillions))
	fmt.Fprintf(sb, "%s- Vekst: %s%% årlig\n", in, strconv.FormatFloat(lead.GrowthPercent, 'f', -1, 64))
	fmt.Fprintf(sb, "%s- Bransje: %s\n\n", in, lead.IndustryDetail)

	if opps := nonEmpty(lead.Opportunities); len(opps) > 0 {
		fmt.Fprintf(sb, "%sMULIGHETER:\n", in)
		writeBullets(sb, in, opps)
		sb.WriteByte('\n')
	}

	c := lead.Contact
	fmt.Fprintf(sb, "%sKONTAKTINFO:\n", in)
	if c.Role != "" {
		fmt.Fprintf(sb, "%s- Nøkkelperson: %s (%s)\n", in, c.Name, c.Role)
	} else {
		fmt.Fprintf(sb, "%s- Nøkkelperson: %s\n", in, c.Name)
	}
	fmt.Fprintf(sb, "%s- E-post: %s\n", in, c.Email)
	fmt.Fprintf(sb, "%s- LinkedIn: %s\n", in, c.LinkedIn)
	fmt.Fprintf(sb, "%s- Telefon: %s\n\n", in, c.Phone)

	if lead.Approach != "" {
		fmt.Fprintf(sb, "%sANBEFALT TILNÆRMING:\n%s%s\n\n", in, in, lead.Approach)
	}
	if lead.AttackPlan != "" {
		fmt.Fprintf(sb, "%sANGREPSPLAN:\n%s%s\n\n", in, in, lead.AttackPlan)
	}
}

func nonEmpty(items []string) []string {
	var out []string
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return out
}
