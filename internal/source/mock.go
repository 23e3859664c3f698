package source

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/aiki-no/aiki-cli/internal/config"
	"github.com/aiki-no/aiki-cli/internal/model"
	"github.com/aiki-no/aiki-cli/internal/rng"
)

var techStacks = []string{"React", "Node.js", "MongoDB", "AWS"}

// leadTemplate is a catalog entry; the industry detail is completed from
// the search industry.
type leadTemplate struct {
	lead  model.Lead
	focus string
}

var leadCatalog = []leadTemplate{
	{
		focus: "Teknologiutvikling",
		lead: model.Lead{
			Name: "TechNinja AS", Employees: 45, RevenueMillions: 25, GrowthPercent: 15,
			Opportunities: []string{
				"Trenger AI-automatisering av kundeservice",
				"Planlegger ekspansjon til 3 nye markeder",
				"Har budsjett på 2M NOK for digitalisering",
			},
			Contact: model.Contact{
				Name: "Sarah Hansen", Role: "CEO", Email: "s.hansen@techninja.no",
				LinkedIn: "linkedin.com/in/sarahhansen", Phone: "+47 xxx xx xxx",
			},
			Approach:   "Fokuser på ROI fra AI-automatisering og skalerbarhet",
			AttackPlan: "Demo av chatbot-løsning → møte med tech-team → pilot-prosjekt",
		},
	},
	{
		focus: "Dataanalyse",
		lead: model.Lead{
			Name: "DinoData Solutions", Employees: 120, RevenueMillions: 80, GrowthPercent: 8,
			Opportunities: []string{
				"Utdaterte rapporteringsverktøy",
				"Manuell databehandling som kan automatiseres",
				"Vurderer AI-implementering neste år",
			},
			Contact: model.Contact{
				Name: "Lars Eriksen", Role: "CTO", Email: "lars.e@dinodata.com",
				LinkedIn: "linkedin.com/in/larseriksen", Phone: "+47 yyy yy yyy",
			},
			Approach:   "Teknisk tilnærming med fokus på modernisering",
			AttackPlan: "Teknisk whitepaper → workshop → POC-utvikling",
		},
	},
	{
		focus: "Logistikk",
		lead: model.Lead{
			Name: "Fjordlast AS", Employees: 260, RevenueMillions: 310, GrowthPercent: 12,
			Opportunities: []string{
				"Ruteplanlegging gjøres manuelt",
				"Høye kostnader til kundeservice i høysesong",
			},
			Contact: model.Contact{
				Name: "Ingrid Berg", Role: "COO", Email: "ingrid.berg@fjordlast.no",
				LinkedIn: "linkedin.com/in/ingridberg", Phone: "+47 zzz zz zzz",
			},
			Approach:   "Vis konkrete besparelser i drift og planlegging",
			AttackPlan: "Kostnadsanalyse → pilot på én rute → utrulling",
		},
	},
	{
		focus: "Rådgivning",
		lead: model.Lead{
			Name: "Nordlys Rådgivning AS", Employees: 18, RevenueMillions: 9, GrowthPercent: 22,
			Opportunities: []string{
				"Ønsker å automatisere rapportskriving",
				"Lite internt IT-miljø",
			},
			Contact: model.Contact{
				Name: "Kari Nilsen", Role: "Daglig leder", Email: "kari@nordlysradgivning.no",
				LinkedIn: "linkedin.com/in/karinilsen", Phone: "+47 aaa aa aaa",
			},
			Approach:   "Enkel start med AI Kickstart-pakken",
			AttackPlan: "Workshop → AI Kickstart → månedlig oppfølging",
		},
	},
	{
		focus: "Produksjon",
		lead: model.Lead{
			Name: "Vestmek Industri AS", Employees: 540, RevenueMillions: 720, GrowthPercent: 5,
			Opportunities: []string{
				"Prediktivt vedlikehold på produksjonslinjer",
				"Kvalitetskontroll med bildegjenkjenning",
				"Stort datagrunnlag fra sensorer",
			},
			Contact: model.Contact{
				Name: "Ole Haugen", Role: "Teknisk direktør", Email: "ole.haugen@vestmek.no",
				LinkedIn: "linkedin.com/in/olehaugen", Phone: "+47 bbb bb bbb",
			},
			Approach:   "Start med ett avgrenset vedlikeholdscase",
			AttackPlan: "Befaring → datakartlegging → POC på én linje",
		},
	},
	{
		focus: "Netthandel",
		lead: model.Lead{
			Name: "Polarhandel AS", Employees: 75, RevenueMillions: 140, GrowthPercent: 31,
			Opportunities: []string{
				"Produkttekster skrives manuelt",
				"Vil personalisere anbefalinger",
			},
			Contact: model.Contact{
				Name: "Jonas Lie", Role: "CMO", Email: "jonas@polarhandel.no",
				LinkedIn: "linkedin.com/in/jonaslie", Phone: "+47 ccc cc ccc",
			},
			Approach:   "Koble AI direkte til konvertering og omsetning",
			AttackPlan: "A/B-test av AI-tekster → integrasjon i nettbutikk",
		},
	},
}

// Mock is an in-process DataSource producing plausible data. Companies in
// the known table get their registered figures; any other company gets
// random attributes.
type Mock struct {
	rand  rng.Source
	known map[string]config.MockCompany
}

// NewMock creates a Mock. known is keyed by a lower-case short name such as
// "equinor" or "norsk_hydro".
func NewMock(src rng.Source, known map[string]config.MockCompany) *Mock {
	if src == nil {
		src = rng.Default()
	}
	return &Mock{rand: src, known: known}
}

// FetchCompanyData implements DataSource.
func (m *Mock) FetchCompanyData(ctx context.Context, q CompanyQuery) (*model.CompanyAttributes, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r := m.rand
	attrs := Estimate(r, q)
	attrs.Estimated = false

	if known, ok := m.lookup(q.Name); ok {
		zap.L().Debug("source: known company", zap.String("company", known.Name))
		attrs.Basics.OrgNr = known.OrgNr
		attrs.Basics.Employees = known.Employees
		attrs.Basics.RevenueMillions = math.Round(float64(known.Revenue) / 1e6)
		attrs.Basics.Industry = known.Industry
		if known.Revenue > 0 {
			attrs.Financials.ProfitMargin = math.Round(float64(known.Result)/float64(known.Revenue)*1000) / 10
		}
	}
	return attrs, nil
}

// Estimate returns plausible random attributes for q, flagged as estimated.
// It is the fallback when no data source can answer.
func Estimate(r rng.Source, q CompanyQuery) *model.CompanyAttributes {
	country := q.Country
	if country == "" {
		country = "Norge"
	}

	attrs := &model.CompanyAttributes{
		Basics: model.CompanyBasics{
			Name:            q.Name,
			OrgNr:           q.OrgNr,
			Country:         country,
			Founded:         2015 + r.IntN(8),
			Employees:       r.IntN(200) + 10,
			RevenueMillions: float64(r.IntN(100) + 5),
		},
		Financials: model.CompanyFinancials{
			ProfitMargin: float64(r.IntN(10) - 2),
			EquityRatio:  float64(r.IntN(20) + 5),
			Solidity:     float64(r.IntN(40) + 30),
		},
		Tech: model.CompanyTech{
			Digitalization: float64(r.IntN(100)),
			AIMaturity:     float64(r.IntN(50)),
			TechStack:      techStacks[r.IntN(len(techStacks))],
		},
		Estimated: true,
	}
	if attrs.Basics.OrgNr == "" {
		attrs.Basics.OrgNr = fmt.Sprintf("%d", 100000000+r.IntN(900000000))
	}
	return attrs
}

// lookup matches the query name against the known table by key or by the
// registered name, ignoring case and a trailing "ASA"/"AS".
func (m *Mock) lookup(name string) (config.MockCompany, bool) {
	n := trimCompanySuffix(normalize(name))
	if n == "" {
		return config.MockCompany{}, false
	}
	keys := make([]string, 0, len(m.known))
	for k := range m.known {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		c := m.known[k]
		if n == strings.ReplaceAll(k, "_", " ") || n == trimCompanySuffix(normalize(c.Name)) {
			return c, true
		}
	}
	return config.MockCompany{}, false
}

func trimCompanySuffix(s string) string {
	for _, suffix := range []string{" asa", " as"} {
		if strings.HasSuffix(s, suffix) {
			return strings.TrimSuffix(s, suffix)
		}
	}
	return s
}

// FetchLeadCandidates implements DataSource. The catalog is filtered by
// size band ("små", "mellomstore", "store"); any other size returns all.
func (m *Mock) FetchLeadCandidates(ctx context.Context, q LeadQuery) ([]model.Lead, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	industry := strings.TrimSpace(q.Industry)
	var out []model.Lead
	for _, tpl := range leadCatalog {
		if !inSizeBand(tpl.lead.Employees, q.Size) {
			continue
		}
		l := tpl.lead
		l.Opportunities = slices.Clone(tpl.lead.Opportunities)
		l.IndustryDetail = tpl.focus
		if industry != "" {
			l.IndustryDetail = industry + " - " + tpl.focus
		}
		out = append(out, l)
	}
	return out, nil
}

func inSizeBand(employees int, size string) bool {
	switch normalize(size) {
	case "små", "sma", "liten", "small":
		return employees < 50
	case "mellomstore", "mellomstor", "medium":
		return employees >= 50 && employees < 250
	case "store", "stor", "large":
		return employees >= 250
	default:
		return true
	}
}
