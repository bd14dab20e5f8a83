// Package analyst derives judgments from engine facts and operational
// evidence: trend labels, dominance, proactive-model alignment, and the
// evidence-gated preventive decision. It is the only node allowed to
// prioritize, and it may do so only when operational evidence exists.
package analyst

import (
	"fmt"
	"sort"
	"strings"

	"k9/internal/command"
	"k9/internal/state"
)

// alignmentThreshold is the absolute rank delta at which the proactive
// model is considered to disagree with the internal ranking.
const alignmentThreshold = 2

var gatedIntents = map[command.Intent]bool{
	command.IntentAnalytical:       true,
	command.IntentComparative:      true,
	command.IntentTemporalRelation: true,
}

// Run derives the analyst findings. Gates: intent must be analytical,
// comparative or temporal-relation, and engine facts must be present. Every
// sub-step tolerates missing upstream blocks; only the gates short-circuit.
func Run(st *state.State) *state.State {
	next := st.Clone()

	if !gatedIntents[st.Intent()] {
		next.Trace(fmt.Sprintf("analyst: skip (intent gate, got %s)", st.Intent()))
		return next
	}
	facts := st.Analysis.Engine
	if facts == nil {
		next.Trace("analyst: skip (no engine facts present)")
		return next
	}
	evidence := st.Analysis.Operational

	findings := &state.AnalystFindings{
		AnalysisMode:     analysisMode(evidence),
		RiskTrajectories: trajectories(facts),
	}
	findings.RiskSummary = riskSummary(facts, findings.RiskTrajectories)
	findings.EvidenceSummary = evidenceSummary(evidence)
	findings.ProactiveComparison = proactiveComparison(facts)
	findings.PreventiveDecision = preventiveDecision(findings, evidence)

	next.Analysis.Analyst = findings
	next.Trace(fmt.Sprintf("analyst: mode=%s dominant=%s prioritized=%d",
		findings.AnalysisMode, dominantOf(findings), len(findings.PreventiveDecision.PrioritizedRisks)))
	return next
}

func dominantOf(f *state.AnalystFindings) string {
	if f.RiskSummary == nil || f.RiskSummary.DominantRisk == "" {
		return "none"
	}
	return f.RiskSummary.DominantRisk
}

func analysisMode(evidence *state.OperationalEvidence) string {
	if evidence != nil && len(evidence.EvidenceByRisk) > 0 {
		return state.ModeEvidenceBased
	}
	return state.ModeStructural
}

// trajectories maps engine trend directions to cognitive labels.
func trajectories(facts *state.EngineFacts) map[string]string {
	out := make(map[string]string, len(facts.RiskTrends))
	for riskID, trend := range facts.RiskTrends {
		switch trend.Trend {
		case state.TrendUp:
			out[riskID] = state.TrajectoryDegrading
		case state.TrendDown:
			out[riskID] = state.TrajectoryImproving
		default:
			out[riskID] = state.TrajectoryStable
		}
	}
	return out
}

// riskSummary picks the dominant risk (highest average criticality) and the
// relevant risk (highest average criticality among those degrading). Ties
// resolve to the lexicographically smallest risk ID.
func riskSummary(facts *state.EngineFacts, trajs map[string]string) *state.RiskSummary {
	summary := &state.RiskSummary{RisksConsidered: len(facts.WeeklySignals)}
	for _, riskID := range sortedRiskIDs(facts.WeeklySignals) {
		signal := facts.WeeklySignals[riskID]
		if summary.DominantRisk == "" || signal.AvgCriticidad > summary.DominantAvg {
			summary.DominantRisk = riskID
			summary.DominantAvg = signal.AvgCriticidad
		}
		if trajs[riskID] == state.TrajectoryDegrading {
			summary.DegradingCount++
			if summary.RelevantRisk == "" || signal.AvgCriticidad > summary.RelevantAvg {
				summary.RelevantRisk = riskID
				summary.RelevantAvg = signal.AvgCriticidad
			}
		}
	}
	return summary
}

// evidenceSummary applies the asymmetric support rule: any OCC counts as
// support, a single OPG does not.
func evidenceSummary(evidence *state.OperationalEvidence) *state.EvidenceSummary {
	summary := &state.EvidenceSummary{}
	if evidence == nil {
		return summary
	}
	for riskID, bucket := range evidence.EvidenceByRisk {
		if len(bucket.CriticalControlsAffected) > 0 {
			summary.HasCriticalControlFailures = true
		}
		if bucket.OCCCount > 0 || bucket.OPGCount > 1 {
			summary.SupportedRisks = append(summary.SupportedRisks, riskID)
		}
	}
	sort.Strings(summary.SupportedRisks)
	return summary
}

// proactiveComparison ranks risks internally by descending average
// criticality (rank 1 highest) and compares against the externally supplied
// proactive rank. The proactive scores are never recomputed, only compared.
func proactiveComparison(facts *state.EngineFacts) map[string]*state.RankComparison {
	ranked := sortedRiskIDs(facts.WeeklySignals)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := facts.WeeklySignals[ranked[i]], facts.WeeklySignals[ranked[j]]
		if a.AvgCriticidad != b.AvgCriticidad {
			return a.AvgCriticidad > b.AvgCriticidad
		}
		return ranked[i] < ranked[j]
	})

	out := make(map[string]*state.RankComparison, len(ranked))
	for i, riskID := range ranked {
		k9Rank := i + 1
		cmp := &state.RankComparison{K9Rank: k9Rank, AlignmentStatus: state.AlignmentInconclusive}
		if proactive, ok := facts.Proactivo[riskID]; ok {
			cmp.ProactiveRank = proactive.AvgRank
			cmp.RankDelta = proactive.AvgRank - float64(k9Rank)
			switch {
			case cmp.RankDelta >= alignmentThreshold:
				cmp.AlignmentStatus = state.AlignmentUnderestimated
			case cmp.RankDelta <= -alignmentThreshold:
				cmp.AlignmentStatus = state.AlignmentOverestimated
			default:
				cmp.AlignmentStatus = state.AlignmentAligned
			}
		}
		out[riskID] = cmp
	}
	return out
}

// preventiveDecision builds the analyst's single decisional artifact. The
// candidate universe is dominant + relevant + every risk the proactive model
// underestimates; only candidates with positive OCC counts survive. No
// operational evidence means no prioritization, whatever the data says.
func preventiveDecision(findings *state.AnalystFindings, evidence *state.OperationalEvidence) *state.PreventiveDecision {
	decision := &state.PreventiveDecision{
		PrioritizedRisks: []state.PrioritizedRisk{},
		DecisionBasis: state.DecisionBasis{
			Sources: []string{
				"operational_analysis.evidence_by_risk",
				"analyst.risk_summary",
				"analyst.proactive_comparison",
			},
			Criteria: []string{
				"occ_count>0",
				"order:(has_critical_controls,occ_count) desc",
			},
		},
	}

	underestimated := make(map[string]bool)
	universe := make(map[string]bool)
	if findings.RiskSummary != nil {
		if findings.RiskSummary.DominantRisk != "" {
			universe[findings.RiskSummary.DominantRisk] = true
		}
		if findings.RiskSummary.RelevantRisk != "" {
			universe[findings.RiskSummary.RelevantRisk] = true
		}
	}
	for riskID, cmp := range findings.ProactiveComparison {
		if cmp.AlignmentStatus == state.AlignmentUnderestimated {
			underestimated[riskID] = true
			universe[riskID] = true
		}
	}
	for riskID := range universe {
		decision.DecisionBasis.UniverseConsidered = append(decision.DecisionBasis.UniverseConsidered, riskID)
	}
	sort.Strings(decision.DecisionBasis.UniverseConsidered)

	if evidence == nil {
		return decision
	}
	var candidates []state.PrioritizedRisk
	for riskID := range universe {
		bucket, ok := evidence.EvidenceByRisk[riskID]
		if !ok || bucket.OCCCount == 0 {
			continue
		}
		candidates = append(candidates, state.PrioritizedRisk{
			RiskID:              riskID,
			OCCCount:            bucket.OCCCount,
			HasCriticalControls: len(bucket.CriticalControlsAffected) > 0,
			Underestimated:      underestimated[riskID],
		})
	}
	if len(candidates) == 0 {
		return decision
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].HasCriticalControls != candidates[j].HasCriticalControls {
			return candidates[i].HasCriticalControls
		}
		if candidates[i].OCCCount != candidates[j].OCCCount {
			return candidates[i].OCCCount > candidates[j].OCCCount
		}
		return candidates[i].RiskID < candidates[j].RiskID
	})
	decision.PrioritizedRisks = candidates

	decision.Scenario = state.ScenarioPreventiveWatch
	for _, c := range candidates {
		if c.Underestimated {
			decision.Scenario = state.ScenarioProactiveUnderestimation
			break
		}
	}

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.RiskID
	}
	decision.Recommendation = fmt.Sprintf("focus_preventive_action_on:%s", strings.Join(ids, ","))
	return decision
}

func sortedRiskIDs(signals map[string]state.WeeklySignal) []string {
	ids := make([]string, 0, len(signals))
	for riskID := range signals {
		ids = append(ids, riskID)
	}
	sort.Strings(ids)
	return ids
}
