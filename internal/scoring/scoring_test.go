package scoring

import (
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiki-no/aiki-cli/internal/format"
	"github.com/aiki-no/aiki-cli/internal/model"
	"github.com/aiki-no/aiki-cli/internal/rng"
)

func newFormatter() *format.Formatter {
	return format.New(format.DefaultLocale(), clockwork.NewFakeClockAt(time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)), rng.Fixed{})
}

func breakdownSum(b model.BudgetEstimate) int64 {
	var sum int64
	for _, l := range b.Breakdown {
		sum += l.Amount
	}
	return sum
}

func TestEstimateBudget_Range(t *testing.T) {
	est := EstimateBudget("50000-100000")
	require.True(t, est.Available)
	assert.InDelta(t, 50000, est.Lower, 0.001)
	assert.InDelta(t, 100000, est.Upper, 0.001)
	assert.InDelta(t, 75000, est.Average, 0.001)

	require.Len(t, est.Breakdown, 3)
	assert.Equal(t, model.BudgetLine{Label: PhaseDevelopment, Amount: 52500}, est.Breakdown[0])
	assert.Equal(t, model.BudgetLine{Label: PhaseImplementation, Amount: 15000}, est.Breakdown[1])
	assert.Equal(t, model.BudgetLine{Label: PhaseTesting, Amount: 7500}, est.Breakdown[2])
	assert.InDelta(t, 75000, breakdownSum(est), 1)
}

func TestEstimateBudget_SingleNumber(t *testing.T) {
	est := EstimateBudget("ca 80000 kr")
	require.True(t, est.Available)
	assert.InDelta(t, 80000, est.Lower, 0.001)
	assert.InDelta(t, 120000, est.Upper, 0.001)
	assert.InDelta(t, 100000, est.Average, 0.001)
}

func TestEstimateBudget_GroupedDigitsAreSeparateNumbers(t *testing.T) {
	est := EstimateBudget("ca 80 000 kr")
	require.True(t, est.Available)
	assert.InDelta(t, 0, est.Lower, 0.001)
	assert.InDelta(t, 80, est.Upper, 0.001)
	assert.InDelta(t, 40, est.Average, 0.001)
}

func TestEstimateBudget_ReversedBoundsAreSwapped(t *testing.T) {
	est := EstimateBudget("200000 til 100000")
	require.True(t, est.Available)
	assert.InDelta(t, 100000, est.Lower, 0.001)
	assert.InDelta(t, 200000, est.Upper, 0.001)
}

func TestEstimateBudget_OnlyFirstTwoNumbers(t *testing.T) {
	est := EstimateBudget("10 20 30")
	assert.InDelta(t, 10, est.Lower, 0.001)
	assert.InDelta(t, 20, est.Upper, 0.001)
}

func TestEstimateBudget_Unavailable(t *testing.T) {
	for _, in := range []string{"no numbers here", "", "på forespørsel", strings.Repeat("9", 40)} {
		est := EstimateBudget(in)
		assert.False(t, est.Available, in)
		assert.Empty(t, est.Breakdown, in)
	}
}

func TestScoreLead_Bonuses(t *testing.T) {
	lead := model.Lead{Name: "TechNinja AS", Employees: 45, GrowthPercent: 15}

	// Fixed{0} draws the minimum base of 80.
	assert.Equal(t, 80+5+3, ScoreLead(rng.Fixed{}, lead, "Trenger AI-løsninger"))
	assert.Equal(t, 80+3, ScoreLead(rng.Fixed{}, lead, ""))

	big := model.Lead{Employees: 120, GrowthPercent: 8}
	assert.Equal(t, 82, ScoreLead(rng.Fixed{}, big, "pris"))
	assert.Equal(t, 87, ScoreLead(rng.Fixed{}, big, "ai"))
}

func TestScoreLead_ClampedAt100(t *testing.T) {
	lead := model.Lead{Employees: 500, GrowthPercent: 40}
	assert.Equal(t, 100, ScoreLead(rng.Fixed{Frac: 0.99}, lead, "AI"))
}

func TestScoreLead_VariesButStaysBounded(t *testing.T) {
	src := rng.New(3)
	lead := model.Lead{Employees: 10, GrowthPercent: 1}
	seen := map[int]bool{}
	for range 500 {
		s := ScoreLead(src, lead, "")
		assert.GreaterOrEqual(t, s, LeadScoreMin)
		assert.LessOrEqual(t, s, LeadScoreMax)
		seen[s] = true
	}
	assert.Greater(t, len(seen), 1)
}

func TestRankLeads_StableOnTies(t *testing.T) {
	leads := []model.Lead{
		{Name: "A", Employees: 10},
		{Name: "B", Employees: 100},
		{Name: "C", Employees: 10},
		{Name: "D", Employees: 100},
	}

	ranked := RankLeads(rng.Fixed{}, leads, "")
	names := make([]string, len(ranked))
	for i, l := range ranked {
		names[i] = l.Name
	}
	assert.Equal(t, []string{"B", "D", "A", "C"}, names)
	assert.Equal(t, 82, ranked[0].Score)
	assert.Equal(t, 80, ranked[3].Score)

	// Input untouched.
	assert.Equal(t, 0, leads[0].Score)
}

func TestTopLeads(t *testing.T) {
	leads := make([]model.Lead, 7)
	assert.Len(t, TopLeads(leads, 5), 5)
	assert.Len(t, TopLeads(leads[:2], 5), 2)
	assert.Empty(t, TopLeads(leads, -1))
}

func TestScoreCompany_Formulas(t *testing.T) {
	a := model.CompanyAttributes{
		Basics:     model.CompanyBasics{Employees: 100},
		Financials: model.CompanyFinancials{Solidity: 45},
		Tech:       model.CompanyTech{Digitalization: 72},
	}

	scores, total := ScoreCompany(rng.Fixed{}, a)
	assert.Equal(t, model.CompanyScores{Credit: 5, Growth: 5, Tech: 7, Sales: 7}, scores)
	assert.Equal(t, 6, total) // round(117/20) = round(5.85)

	scores, total = ScoreCompany(rng.Fixed{Frac: 0.9}, a)
	assert.Equal(t, 8, scores.Growth) // round(5 + 2.7)
	assert.Equal(t, 10, scores.Sales) // round(7 + 2.7) = 10
	assert.Equal(t, 8, total)         // round(5.85 + 1.8)
}

func TestScoreCompany_Clamped(t *testing.T) {
	a := model.CompanyAttributes{
		Basics:     model.CompanyBasics{Employees: 21000},
		Financials: model.CompanyFinancials{Solidity: 250},
		Tech:       model.CompanyTech{Digitalization: -40},
	}
	scores, total := ScoreCompany(rng.Fixed{Frac: 0.99}, a)
	assert.Equal(t, 10, scores.Credit)
	assert.Equal(t, 10, scores.Growth)
	assert.Equal(t, 0, scores.Tech)
	assert.LessOrEqual(t, total, 10)
	assert.GreaterOrEqual(t, total, 0)
}

func TestNormalizeAnalysisType(t *testing.T) {
	assert.Equal(t, AnalysisBasic, NormalizeAnalysisType(""))
	assert.Equal(t, AnalysisFinancial, NormalizeAnalysisType("Okonomisk"))
	assert.Equal(t, AnalysisFinancial, NormalizeAnalysisType("ØKONOMISK"))
	assert.Equal(t, AnalysisComplete, NormalizeAnalysisType(" komplett "))
}

func sampleAttributes() model.CompanyAttributes {
	return model.CompanyAttributes{
		Basics: model.CompanyBasics{
			Name: "Fjord Tech AS", OrgNr: "974760673", Founded: 2018, Employees: 35, RevenueMillions: 42,
		},
		Financials: model.CompanyFinancials{ProfitMargin: 4, EquityRatio: 12, Solidity: 25},
		Tech:       model.CompanyTech{Digitalization: 30, AIMaturity: 10, TechStack: "React"},
	}
}

func TestAnalyze_SectionsByType(t *testing.T) {
	f := newFormatter()
	tests := []struct {
		typ    string
		titles []string
	}{
		{"grunnleggende", []string{"GRUNNLEGGENDE INFORMASJON"}},
		{"økonomisk", []string{"GRUNNLEGGENDE INFORMASJON", "ØKONOMISK ANALYSE"}},
		{"teknologi", []string{"GRUNNLEGGENDE INFORMASJON", "TEKNOLOGISK MODENHET"}},
		{"konkurranse", []string{"GRUNNLEGGENDE INFORMASJON"}},
		{"komplett", []string{"GRUNNLEGGENDE INFORMASJON", "ØKONOMISK ANALYSE", "TEKNOLOGISK MODENHET"}},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			an := Analyze(rng.Fixed{}, f, sampleAttributes(), tt.typ)
			var titles []string
			for _, s := range an.Sections {
				titles = append(titles, s.Title)
			}
			assert.Equal(t, tt.titles, titles)
			assert.Equal(t, tt.typ, an.AnalysisType)
		})
	}
}

func TestAnalyze_NarrativeRules(t *testing.T) {
	an := Analyze(rng.Fixed{}, newFormatter(), sampleAttributes(), "komplett")

	assert.Equal(t, "Fjord Tech AS er en mindre bedrift med moderat økonomi og begrenset teknologisk modenhet.", an.Summary)
	assert.Equal(t, []string{
		"Lav soliditet indikerer finansiell risiko",
		"Lav digitaliseringsgrad = høy implementeringsrisiko",
	}, an.Risks)
	assert.Len(t, an.Opportunities, 3)
	assert.Len(t, an.Recommendations, 3)
	assert.Contains(t, an.Sections[1].Content, "Kredittvurdering: Moderat")
	assert.Contains(t, an.Sections[2].Content, "Moderniseringsbehov: Høyt")
	assert.Contains(t, an.Sections[0].Content, "Årlig omsetning: 42M NOK")
}

func TestAnalyze_HealthyCompany(t *testing.T) {
	a := sampleAttributes()
	a.Basics.Employees = 80
	a.Financials.Solidity = 55
	a.Tech.Digitalization = 75

	an := Analyze(rng.Fixed{}, newFormatter(), a, "komplett")
	assert.Equal(t, "Fjord Tech AS er en medium bedrift med solid økonomi og god teknologisk modenhet.", an.Summary)
	assert.Equal(t, []string{"Ingen kritiske risikofaktorer identifisert"}, an.Risks)
	assert.Contains(t, an.Sections[1].Content, "Kredittvurdering: God")
	assert.Contains(t, an.Sections[2].Content, "Moderniseringsbehov: Moderat")
}

func TestComputeMarketStats(t *testing.T) {
	leads := []model.Lead{{RevenueMillions: 25}, {RevenueMillions: 80}}

	stats := ComputeMarketStats(leads, "Teknologi", map[string]int{"teknologi": 25, "industri": 30}, 20)
	assert.InDelta(t, 10.5, stats.TotalPotentialMillions, 0.0001)
	assert.Equal(t, 2625, stats.AvgDealSizeThousands)
	assert.Equal(t, 25, stats.ConversionRate)

	stats = ComputeMarketStats(leads, "maritim", map[string]int{"teknologi": 25}, 0)
	assert.Equal(t, DefaultConversionRate, stats.ConversionRate)
}

func TestComputeMarketStats_NoLeads(t *testing.T) {
	stats := ComputeMarketStats(nil, "finans", map[string]int{"finans": 15}, 20)
	assert.Zero(t, stats.TotalPotentialMillions)
	assert.Zero(t, stats.AvgDealSizeThousands)
	assert.Equal(t, 15, stats.ConversionRate)
}
