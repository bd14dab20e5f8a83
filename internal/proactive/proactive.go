// Package proactive turns the analyst's alignment verdicts into structured
// comparison records for the dominant and relevant risks. Output is codes
// only; wording belongs to the external text generator.
package proactive

import (
	"fmt"
	"sort"

	"k9/internal/state"
)

// Roles a risk can play in the explanation.
const (
	RoleDominant = "dominant"
	RoleRelevant = "relevant"
)

// Explanation codes.
const (
	CodeProactiveRanksLower  = "PROACTIVE_RANKS_LOWER"
	CodeProactiveRanksHigher = "PROACTIVE_RANKS_HIGHER"
	CodeRankingsAgree        = "RANKINGS_AGREE"
	CodeInsufficientRankData = "INSUFFICIENT_RANK_DATA"
)

// Overall alignment verdicts.
const (
	OverallAligned      = "aligned"
	OverallDivergent    = "divergent"
	OverallInconclusive = "inconclusive"
)

// Run builds the proactive-model explanation. Gate: analyst findings with a
// non-empty proactive comparison must be present; otherwise skip+trace.
func Run(st *state.State) *state.State {
	next := st.Clone()

	findings := st.Analysis.Analyst
	if findings == nil || len(findings.ProactiveComparison) == 0 {
		next.Trace("proactive_model: skip (no proactive comparison available)")
		return next
	}

	roles := make(map[string][]string)
	if findings.RiskSummary != nil {
		if r := findings.RiskSummary.DominantRisk; r != "" {
			roles[r] = append(roles[r], RoleDominant)
		}
		if r := findings.RiskSummary.RelevantRisk; r != "" {
			roles[r] = append(roles[r], RoleRelevant)
		}
	}

	explanation := &state.ProactiveExplanation{}
	conclusive := 0
	divergent := 0
	for _, riskID := range sortedKeys(roles) {
		cmp := findings.ProactiveComparison[riskID]
		if cmp == nil {
			continue
		}
		for _, role := range roles[riskID] {
			explanation.Comparisons = append(explanation.Comparisons, state.ModelComparison{
				RiskID:          riskID,
				Role:            role,
				AlignmentStatus: cmp.AlignmentStatus,
				RankDelta:       cmp.RankDelta,
				Code:            codeFor(cmp.AlignmentStatus),
			})
		}
		switch cmp.AlignmentStatus {
		case state.AlignmentUnderestimated, state.AlignmentOverestimated:
			conclusive++
			divergent++
		case state.AlignmentAligned:
			conclusive++
		}
	}

	switch {
	case conclusive == 0:
		explanation.OverallAlignment = OverallInconclusive
	case divergent > 0:
		explanation.OverallAlignment = OverallDivergent
	default:
		explanation.OverallAlignment = OverallAligned
	}

	next.Analysis.Proactive = explanation
	next.Trace(fmt.Sprintf("proactive_model: %d comparisons, overall %s",
		len(explanation.Comparisons), explanation.OverallAlignment))
	return next
}

func codeFor(status string) string {
	switch status {
	case state.AlignmentUnderestimated:
		return CodeProactiveRanksLower
	case state.AlignmentOverestimated:
		return CodeProactiveRanksHigher
	case state.AlignmentAligned:
		return CodeRankingsAgree
	default:
		return CodeInsufficientRankData
	}
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
