package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/aiki-no/aiki-cli/internal/format"
	"github.com/aiki-no/aiki-cli/internal/model"
	"github.com/aiki-no/aiki-cli/internal/rng"
)

// Analysis types accepted by Analyze.
const (
	AnalysisBasic       = "grunnleggende"
	AnalysisFinancial   = "økonomisk"
	AnalysisTechnology  = "teknologi"
	AnalysisCompetition = "konkurranse"
	AnalysisComplete    = "komplett"
)

const companyScoreMax = 10

// ScoreCompany computes the four sub-scores and the total score. The
// formulas are kept as the product defines them, random jitter included:
//
//	credit = round(solidity/10)
//	growth = round(employees/20 + [0,3))
//	tech   = round(digitalization/10)
//	sales  = round(7 + [0,3))
//	total  = round((solidity+digitalization)/20 + [0,2))
//
// Every result is clamped to [0,10].
func ScoreCompany(src rng.Source, a model.CompanyAttributes) (model.CompanyScores, int) {
	solidity := finiteOr(a.Financials.Solidity, 0)
	digital := finiteOr(a.Tech.Digitalization, 0)

	scores := model.CompanyScores{
		Credit: roundClamp(solidity / 10),
		Growth: roundClamp(float64(a.Basics.Employees)/20 + src.Float64()*3),
		Tech:   roundClamp(digital / 10),
		Sales:  roundClamp(7 + src.Float64()*3),
	}
	total := roundClamp((solidity+digital)/20 + src.Float64()*2)
	return scores, total
}

// NormalizeAnalysisType lower-cases t, maps the ASCII spelling "okonomisk"
// and returns "grunnleggende" for empty input.
func NormalizeAnalysisType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	switch t {
	case "":
		return AnalysisBasic
	case "okonomisk", "oekonomisk":
		return AnalysisFinancial
	}
	return t
}

// Analyze builds the full company analysis: sections selected by analysis
// type, the executive summary, opportunity, risk and recommendation lists,
// and the scores.
func Analyze(src rng.Source, f *format.Formatter, a model.CompanyAttributes, analysisType string) model.CompanyAnalysis {
	analysisType = NormalizeAnalysisType(analysisType)
	b, fin, tech := a.Basics, a.Financials, a.Tech

	sections := []model.Section{{
		Title: "GRUNNLEGGENDE INFORMASJON",
		Content: fmt.Sprintf("Bedriftsnavn: %s\nOrg.nr: %s\nEtablert: %d\nAnsatte: %s\nÅrlig omsetning: %sM NOK",
			b.Name, orDash(b.OrgNr), b.Founded, f.FormatNumber(float64(b.Employees)), f.FormatNumber(b.RevenueMillions)),
	}}
	if b.Industry != "" {
		sections[0].Content += "\nBransje: " + b.Industry
	}

	if analysisType == AnalysisFinancial || analysisType == AnalysisComplete {
		rating := "Moderat"
		if fin.Solidity > 40 {
			rating = "God"
		}
		sections = append(sections, model.Section{
			Title: "ØKONOMISK ANALYSE",
			Content: fmt.Sprintf("Resultatgrad: %s\nEgenkapitalandel: %s\nSoliditet: %s\nKredittvurdering: %s",
				f.FormatPercent(fin.ProfitMargin, 0), f.FormatPercent(fin.EquityRatio, 0), f.FormatPercent(fin.Solidity, 0), rating),
		})
	}

	if analysisType == AnalysisTechnology || analysisType == AnalysisComplete {
		need := "Moderat"
		if tech.Digitalization < 60 {
			need = "Høyt"
		}
		sections = append(sections, model.Section{
			Title: "TEKNOLOGISK MODENHET",
			Content: fmt.Sprintf("Digitaliseringsgrad: %s\nAI-implementering: %s\nPrimær tech-stack: %s\nModerniseringsbehov: %s",
				f.FormatPercent(tech.Digitalization, 0), f.FormatPercent(tech.AIMaturity, 0), orDash(tech.TechStack), need),
		})
	}

	scores, total := ScoreCompany(src, a)

	return model.CompanyAnalysis{
		Basics:          b,
		Financials:      fin,
		Tech:            tech,
		AnalysisType:    analysisType,
		Sections:        sections,
		Summary:         summary(a),
		Opportunities:   opportunities(),
		Risks:           risks(a),
		Recommendations: recommendations(),
		Scores:          scores,
		TotalScore:      total,
		Estimated:       a.Estimated,
	}
}

func summary(a model.CompanyAttributes) string {
	size := "medium"
	if a.Basics.Employees < 50 {
		size = "mindre"
	}
	economy := "moderat"
	if a.Financials.Solidity > 40 {
		economy = "solid"
	}
	maturity := "begrenset"
	if a.Tech.Digitalization > 60 {
		maturity = "god"
	}
	return fmt.Sprintf("%s er en %s bedrift med %s økonomi og %s teknologisk modenhet.",
		a.Basics.Name, size, economy, maturity)
}

func opportunities() []string {
	return []string{
		"AI-automatisering kan spare 15-25% av arbeidstid",
		"Potensiell kostnadsbesparing på 2-4M NOK årlig",
		"Skaleringsmuligheter i nordiske markeder",
	}
}

func risks(a model.CompanyAttributes) []string {
	var out []string
	if a.Financials.Solidity < 30 {
		out = append(out, "Lav soliditet indikerer finansiell risiko")
	}
	if a.Tech.Digitalization < 40 {
		out = append(out, "Lav digitaliseringsgrad = høy implementeringsrisiko")
	}
	if len(out) == 0 {
		out = append(out, "Ingen kritiske risikofaktorer identifisert")
	}
	return out
}

func recommendations() []string {
	return []string{
		"Start med pilot-prosjekt for å bevise ROI",
		"Fokuser på prosessautomatisering først",
		"Etabler dedikert digitaliserings-team",
	}
}

func roundClamp(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	return clamp(int(math.Round(math.Max(-1, math.Min(v, companyScoreMax+1)))), 0, companyScoreMax)
}

func finiteOr(v, def float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return def
	}
	return v
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
