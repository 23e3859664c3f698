package render

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/aiki-no/aiki-cli/internal/model"
)

// ContractBundle is the computed data of a contract.
type ContractBundle struct {
	ID           string
	IssuedAt     time.Time
	Type         model.ContractType
	Parties      string
	Deliverables string
	Terms        string
}

// Kind implements Bundle.
func (ContractBundle) Kind() model.Kind { return model.KindContract }

var contractTaglines = map[model.ContractType]string{
	model.ContractService:     "Tjenesteavtale med AI-presisjon",
	model.ContractSale:        "Salgsavtale med kvalitetsgaranti",
	model.ContractConsultancy: "Konsulentavtale - Profesjonell ekspertise",
	model.ContractLicense:     "Lisensavtale med omfattende rettigheter",
	model.ContractPartnership: "Partnerskapsavtale - Sammen oppnår vi mer!",
}

var partPrefixRe = regexp.MustCompile(`(?i)part\s*\d+\s*:`)

// Counterparty returns the label for the second signature line: the first
// non-blank line of parties that does not mention provider, with any
// "Part N:" prefix removed. It returns "KUNDE" when no such line exists.
func Counterparty(parties, provider string) string {
	p := strings.ToLower(provider)
	for _, line := range splitLines(parties) {
		if p != "" && strings.Contains(strings.ToLower(line), p) {
			continue
		}
		if name := strings.TrimSpace(partPrefixRe.ReplaceAllString(line, "")); name != "" {
			return name
		}
	}
	return "KUNDE"
}

func (c ContractBundle) render(r *Renderer, sb *strings.Builder) {
	f := r.f
	p := r.provider
	typ := model.ContractType(strings.ToLower(strings.TrimSpace(string(c.Type))))

	fmt.Fprintf(sb, "%sKONTRAKT\n", f.Upper(string(typ)))
	if tag, ok := contractTaglines[typ]; ok {
		sb.WriteString(tag)
		sb.WriteByte('\n')
	}
	sb.WriteByte('\n')
	fmt.Fprintf(sb, "KONTRAKT NR: %s\n", c.ID)
	fmt.Fprintf(sb, "OPPRETTET: %s\n\n", f.FormatDate(c.IssuedAt))

	sb.WriteString("PARTER I AVTALEN:\n")
	for _, line := range splitLines(c.Parties) {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	sb.WriteByte('\n')

	sb.WriteString("§1 AVTALENS FORMÅL OG OMFANG\n")
	fmt.Fprintf(sb, "Denne avtalen regulerer %s med presisjon og profesjonalitet.\n\n", typ.Purpose())

	sb.WriteString("§2 LEVERANSER OG FORPLIKTELSER\n")
	writeBullets(sb, "", splitLines(c.Deliverables))
	sb.WriteByte('\n')

	sb.WriteString("§3 TIDSRAMME OG MILEPÆLER\n")
	sb.WriteString("Milepæl 1: Prosjektstart og kickoff (uke 1)\n")
	sb.WriteString("Milepæl 2: Analyse og design ferdigstilt (uke 2-3)\n")
	sb.WriteString("Milepæl 3: Utvikling og implementering (uke 4-6)\n")
	sb.WriteString("Milepæl 4: Testing og optimalisering (uke 7)\n")
	sb.WriteString("Milepæl 5: Levering og opplæring (uke 8)\n\n")

	sb.WriteString("§4 VEDERLAG OG BETALINGSBETINGELSER\n")
	sb.WriteString("Fakturering skjer ved oppnådde milepæler:\n")
	sb.WriteString("- 30% ved kontraktinngåelse\n")
	sb.WriteString("- 40% ved halvveis milepæl\n")
	sb.WriteString("- 30% ved ferdigstillelse\n")
	sb.WriteString("Betalingsfrist: 30 dager netto\n")
	if terms := splitLines(c.Terms); len(terms) > 0 {
		sb.WriteString("Særskilte betingelser:\n")
		for _, t := range terms {
			sb.WriteString("- ")
			sb.WriteString(t)
			sb.WriteByte('\n')
		}
	}
	sb.WriteByte('\n')

	sb.WriteString("§5 IMMATERIELLE RETTIGHETER\n")
	fmt.Fprintf(sb, "All kode, dokumentasjon og AI-modeller utviklet under denne avtalen tilhører %s, med lisens til kunde for avtalt bruk.\n\n", p.Name)

	sb.WriteString("§6 KONFIDENSIALITET\n")
	sb.WriteString("Begge parter forplikter seg til å behandle all informasjon om den andre parten som konfidensiell.\n\n")

	sb.WriteString("§7 ANSVAR OG GARANTI\n")
	fmt.Fprintf(sb, "%s garanterer leveransene i henhold til avtalt spesifikasjon. Ansvar begrenses til kontraktsum.\n\n", p.Name)

	sb.WriteString("§8 OPPSIGELSE\n")
	sb.WriteString("Avtalen kan sies opp av begge parter med 30 dagers skriftlig varsel.\n")
	sb.WriteString("Ved vesentlig mislighold kan avtalen sies opp umiddelbart.\n\n")

	sb.WriteString("§9 TVISTLØSNING\n")
	sb.WriteString("Eventuelle tvister løses ved ordinær domstol i Oslo, Norge.\n\n")

	sb.WriteString("§10 IKRAFTTREDELSE\n")
	sb.WriteString("Avtalen trer i kraft ved signering og gjelder frem til alle forpliktelser er oppfylt.\n\n")

	fmt.Fprintf(sb, "Denne %savtalen er utarbeidet i henhold til norsk rett og\n", typ)
	sb.WriteString("underlagt norsk jurisdiksjon.\n\n")

	sb.WriteString("SIGNATURER:\n")
	sb.WriteString("_________________________    _________________________\n")
	fmt.Fprintf(sb, "%-29s%s\n", "For "+p.Name, "For "+Counterparty(c.Parties, p.Name))
	sb.WriteString("Dato: ___________            Dato: ___________\n\n")

	fmt.Fprintf(sb, "Dokumentet er generert med %s AI.\n", p.Name)
}
