// Package scoring derives budgets, lead scores and company analyses from
// request fields and collaborator data. Nothing here returns an error:
// malformed input degrades to a documented sentinel.
package scoring

import (
	"math"
	"regexp"
	"strconv"

	"github.com/aiki-no/aiki-cli/internal/model"
)

// Breakdown labels and weights. The 70/20/10 split is fixed policy.
const (
	PhaseDevelopment    = "Utviklingsarbeid"
	PhaseImplementation = "Implementering"
	PhaseTesting        = "Testing og lansering"
)

var phaseWeights = []struct {
	label  string
	weight float64
}{
	{PhaseDevelopment, 0.7},
	{PhaseImplementation, 0.2},
	{PhaseTesting, 0.1},
}

var numberRe = regexp.MustCompile(`\d+`)

// EstimateBudget reads up to two integers from free text such as
// "50000-100000" or "ca 80000 kr". With no numbers the estimate is
// unavailable; with one, the upper bound is 1.5 times the lower. Bounds
// given in reverse order are swapped. Digit groups are not joined: in
// "80 000" the integers are 80 and 0.
func EstimateBudget(text string) model.BudgetEstimate {
	matches := numberRe.FindAllString(text, 2)
	if len(matches) == 0 {
		return model.BudgetEstimate{}
	}

	lower, ok := parseAmount(matches[0])
	if !ok {
		return model.BudgetEstimate{}
	}
	upper := lower * 1.5
	if len(matches) > 1 {
		if v, ok := parseAmount(matches[1]); ok {
			upper = v
		}
	}
	if upper < lower {
		lower, upper = upper, lower
	}

	avg := (lower + upper) / 2
	est := model.BudgetEstimate{
		Available: true,
		Lower:     lower,
		Upper:     upper,
		Average:   avg,
		Breakdown: make([]model.BudgetLine, 0, len(phaseWeights)),
	}
	for _, p := range phaseWeights {
		est.Breakdown = append(est.Breakdown, model.BudgetLine{
			Label:  p.label,
			Amount: int64(math.Round(avg * p.weight)),
		})
	}
	return est
}

// parseAmount rejects digit runs too long to be an amount.
func parseAmount(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) || v > 1e15 {
		return 0, false
	}
	return v, true
}
