package scoring

import (
	"slices"
	"strings"

	"github.com/aiki-no/aiki-cli/internal/model"
	"github.com/aiki-no/aiki-cli/internal/rng"
)

// Lead score bounds and bonuses.
const (
	LeadScoreMin   = 80
	LeadScoreMax   = 100
	leadBaseSpread = 20

	bonusAICriteria = 5
	bonusGrowth     = 3
	bonusEmployees  = 2
)

// ScoreLead returns a match score in [80,100]. The base is random; bonuses
// apply when the criteria mention "ai", growth exceeds 10% and the company
// has more than 50 employees.
func ScoreLead(src rng.Source, lead model.Lead, criteria string) int {
	score := LeadScoreMin + src.IntN(leadBaseSpread)

	if strings.Contains(strings.ToLower(criteria), "ai") {
		score += bonusAICriteria
	}
	if lead.GrowthPercent > 10 {
		score += bonusGrowth
	}
	if lead.Employees > 50 {
		score += bonusEmployees
	}

	return clamp(score, LeadScoreMin, LeadScoreMax)
}

// RankLeads scores a copy of each lead and sorts them by score descending.
// Equal scores keep their original order.
func RankLeads(src rng.Source, leads []model.Lead, criteria string) []model.Lead {
	ranked := make([]model.Lead, len(leads))
	for i, l := range leads {
		l.Opportunities = slices.Clone(l.Opportunities)
		l.Score = ScoreLead(src, l, criteria)
		ranked[i] = l
	}
	slices.SortStableFunc(ranked, func(a, b model.Lead) int {
		return b.Score - a.Score
	})
	return ranked
}

// TopLeads returns at most n leads from the front of ranked.
func TopLeads(ranked []model.Lead, n int) []model.Lead {
	if n < 0 {
		n = 0
	}
	if len(ranked) > n {
		return ranked[:n]
	}
	return ranked
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
