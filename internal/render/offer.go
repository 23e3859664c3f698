package render

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aiki-no/aiki-cli/internal/model"
)

// OfferBundle is the computed data of an offer.
type OfferBundle struct {
	ID             string
	IssuedAt       time.Time
	ValidUntil     time.Time
	RespondBy      time.Time
	Customer       string
	Services       string
	Package        model.Package
	Budget         model.BudgetEstimate
	Requirements   string
	AutomationNote string
	Comment        string
	Footer         string
}

// Kind implements Bundle.
func (OfferBundle) Kind() model.Kind { return model.KindOffer }

// Complexity classifies a services description by length in characters:
// more than 200 is high, more than 100 medium, otherwise low.
type Complexity string

const (
	ComplexityLow    Complexity = "lav"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "høy"
)

// ComplexityOf returns the complexity of a services description.
func ComplexityOf(services string) Complexity {
	n := utf8.RuneCountInString(services)
	switch {
	case n > 200:
		return ComplexityHigh
	case n > 100:
		return ComplexityMedium
	default:
		return ComplexityLow
	}
}

// Weeks returns the total delivery estimate for the complexity.
func (c Complexity) Weeks() string {
	switch c {
	case ComplexityHigh:
		return "8-12 uker"
	case ComplexityMedium:
		return "4-8 uker"
	default:
		return "2-6 uker"
	}
}

func (c Complexity) developmentWeeks() string {
	if c == ComplexityHigh {
		return "4-6"
	}
	return "2-4"
}

func (o OfferBundle) render(r *Renderer, sb *strings.Builder) {
	f := r.f
	p := r.provider

	fmt.Fprintf(sb, "PROFESJONELT TILBUD FRA %s\n\n", p.Name)
	fmt.Fprintf(sb, "TILBUD NR: %s\n", o.ID)
	fmt.Fprintf(sb, "DATO: %s\n", f.FormatDate(o.IssuedAt))
	fmt.Fprintf(sb, "GYLDIG TIL: %s\n\n", f.FormatDate(o.ValidUntil))
	fmt.Fprintf(sb, "TIL: %s\n\n", o.Customer)

	sb.WriteString("SAMMENDRAG:\n")
	sb.WriteString("Vi tilbyr avanserte AI-løsninger som vil transformere og effektivisere din virksomhet.\n\n")

	sb.WriteString("TJENESTER OG LEVERANSER:\n")
	writeBullets(sb, "", splitLines(o.Services))
	sb.WriteByte('\n')

	sb.WriteString("VALGT ALTERNATIV:\n")
	sb.WriteString(o.Package.Label())
	sb.WriteString("\n\n")

	sb.WriteString("ESTIMERT PRIS (eks. mva):\n")
	if o.Budget.Available {
		for _, line := range o.Budget.Breakdown {
			fmt.Fprintf(sb, "%s: %s\n", line.Label, f.FormatCurrency(float64(line.Amount)))
		}
		fmt.Fprintf(sb, "TOTALT: %s (eks. mva)\n\n", f.FormatCurrency(o.Budget.Average))
	} else {
		sb.WriteString("Tilpasset prismodell\n")
		sb.WriteString("TOTALT: På forespørsel\n\n")
	}

	c := ComplexityOf(o.Services)
	sb.WriteString("TIDSLINJE:\n")
	fmt.Fprintf(sb, "Estimert leveringstid: %s\n", c.Weeks())
	sb.WriteString("Fase 1: Analyse og design (1-2 uker)\n")
	fmt.Fprintf(sb, "Fase 2: Utvikling og AI-trening (%s uker)\n", c.developmentWeeks())
	sb.WriteString("Fase 3: Testing og optimalisering (1-2 uker)\n")
	sb.WriteString("Fase 4: Lansering og opplæring (1 uke)\n\n")

	sb.WriteString("TILPASNINGER OG NOTATER:\n")
	custom := customizations(o)
	if len(custom) == 0 {
		fmt.Fprintf(sb, "Standard leveranse med %s-kvalitet\n", p.Name)
	}
	for _, line := range custom {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	sb.WriteByte('\n')

	fmt.Fprintf(sb, "HVORFOR VELGE %s:\n", p.Name)
	sb.WriteString("✓ AI-drevet teknologi i forreste rekke\n")
	sb.WriteString("✓ Ekspertteam med dyp kompetanse\n")
	sb.WriteString("✓ Dokumentert ROI på 300%+\n")
	sb.WriteString("✓ 24/7 support og vedlikehold\n\n")

	sb.WriteString("NESTE STEG:\n")
	fmt.Fprintf(sb, "1. Bekreft interesse innen %s\n", f.FormatDate(o.RespondBy))
	sb.WriteString("2. Detaljert behovsanalyse og tilpasning\n")
	sb.WriteString("3. Kontraktinngåelse og kickoff\n")
	sb.WriteString("4. Implementering med høy presisjon\n\n")

	sb.WriteString("Vi ser frem til å realisere AI-potensialet sammen med dere!\n\n")
	sb.WriteString("Med vennlig hilsen,\n")
	sb.WriteString(p.Team)
	sb.WriteString("\n\n")
	fmt.Fprintf(sb, "Kontakt: %s\n", p.Contact)
	if o.Footer != "" {
		sb.WriteString(o.Footer)
		sb.WriteByte('\n')
	}
}

// customizations lists the non-empty free-text notes, one per line.
func customizations(o OfferBundle) []string {
	var out []string
	add := func(label, v string) {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, "- "+label+": "+v)
		}
	}
	add("Spesielle krav", o.Requirements)
	add("Automasjonsbeskrivelse", o.AutomationNote)
	add("Kommentar", o.Comment)
	return out
}
