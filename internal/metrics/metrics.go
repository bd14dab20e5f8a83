// Package metrics materializes chart and table suggestions from whatever
// the engine, operational and analyst nodes produced. Purely presentational
// aggregation; no new decisions, no rendering.
package metrics

import (
	"fmt"
	"sort"
	"strconv"

	"k9/internal/state"
)

// Suggestion kinds.
const (
	KindLineChart = "line_chart"
	KindBarChart  = "bar_chart"
	KindTable     = "table"
)

// Suggestion names.
const (
	NameRiskTrajectories = "risk_trajectories"
	NameRiskComparison   = "risk_comparison"
	NameRiskPriority     = "risk_priority"
	NameOCCByRisk        = "occ_by_risk"
	NameAuditsByTipo     = "audits_by_tipo"
	NameAuditsByOrigen   = "audits_by_origen"
)

// Run derives visual suggestions. Gate: engine facts must be present;
// otherwise skip+trace.
func Run(st *state.State) *state.State {
	next := st.Clone()

	facts := st.Analysis.Engine
	if facts == nil {
		next.Trace("metrics: skip (no engine facts present)")
		return next
	}

	out := &state.MetricsOutput{
		TimeSeries: make(map[string]state.TimeSeries),
		Tables:     make(map[string]state.Table),
	}

	if len(facts.RiskTrends) > 0 {
		riskIDs := sortedTrendIDs(facts.RiskTrends)
		out.Suggestions = append(out.Suggestions, state.VisualSuggestion{
			Kind: KindLineChart, Name: NameRiskTrajectories, Risks: riskIDs,
		})
		for _, riskID := range riskIDs {
			trend := facts.RiskTrends[riskID]
			out.TimeSeries[NameRiskTrajectories+"."+riskID] = state.TimeSeries{
				Labels: trend.Weeks,
				Values: trend.Values,
			}
		}
	}

	if len(facts.WeeklySignals) > 0 {
		riskIDs := sortedSignalIDs(facts.WeeklySignals)
		values := make([]float64, len(riskIDs))
		for i, riskID := range riskIDs {
			values[i] = facts.WeeklySignals[riskID].AvgCriticidad
		}
		out.Suggestions = append(out.Suggestions, state.VisualSuggestion{
			Kind: KindBarChart, Name: NameRiskComparison, Risks: riskIDs,
		})
		out.TimeSeries[NameRiskComparison] = state.TimeSeries{Labels: riskIDs, Values: values}
	}

	if findings := st.Analysis.Analyst; findings != nil && findings.PreventiveDecision != nil &&
		len(findings.PreventiveDecision.PrioritizedRisks) > 0 {
		prioritized := findings.PreventiveDecision.PrioritizedRisks
		riskIDs := make([]string, len(prioritized))
		rows := make([][]string, len(prioritized))
		for i, p := range prioritized {
			riskIDs[i] = p.RiskID
			rows[i] = []string{p.RiskID, strconv.Itoa(p.OCCCount), strconv.FormatBool(p.HasCriticalControls)}
		}
		out.Suggestions = append(out.Suggestions, state.VisualSuggestion{
			Kind: KindBarChart, Name: NameRiskPriority, Risks: riskIDs,
		})
		out.Tables[NameRiskPriority] = state.Table{
			Columns: []string{"riesgo_id", "occ_count", "controles_criticos"},
			Rows:    rows,
		}
	}

	if evidence := st.Analysis.Operational; evidence != nil && len(evidence.EvidenceByRisk) > 0 {
		riskIDs := make([]string, 0, len(evidence.EvidenceByRisk))
		for riskID := range evidence.EvidenceByRisk {
			riskIDs = append(riskIDs, riskID)
		}
		sort.Strings(riskIDs)
		rows := make([][]string, len(riskIDs))
		for i, riskID := range riskIDs {
			bucket := evidence.EvidenceByRisk[riskID]
			rows[i] = []string{
				riskID,
				strconv.Itoa(bucket.OCCCount),
				strconv.Itoa(bucket.OPGCount),
				strconv.Itoa(len(bucket.CriticalControlsAffected)),
			}
		}
		out.Suggestions = append(out.Suggestions, state.VisualSuggestion{
			Kind: KindTable, Name: NameOCCByRisk, Risks: riskIDs,
		})
		out.Tables[NameOCCByRisk] = state.Table{
			Columns: []string{"riesgo_id", "occ_count", "opg_count", "controles_criticos_afectados"},
			Rows:    rows,
		}
	}

	if facts.Audits.Total > 0 {
		out.Suggestions = append(out.Suggestions,
			state.VisualSuggestion{Kind: KindTable, Name: NameAuditsByTipo},
			state.VisualSuggestion{Kind: KindTable, Name: NameAuditsByOrigen},
		)
		out.Tables[NameAuditsByTipo] = countTable("tipo_auditoria", facts.Audits.ByTipo)
		out.Tables[NameAuditsByOrigen] = countTable("origen", facts.Audits.ByOrigen)
	}

	next.Analysis.Metrics = out
	next.Trace(fmt.Sprintf("metrics: %d suggestions, %d series, %d tables",
		len(out.Suggestions), len(out.TimeSeries), len(out.Tables)))
	return next
}

func countTable(keyCol string, counts map[string]int) state.Table {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([][]string, len(keys))
	for i, k := range keys {
		rows[i] = []string{k, strconv.Itoa(counts[k])}
	}
	return state.Table{Columns: []string{keyCol, "total"}, Rows: rows}
}

func sortedTrendIDs(trends map[string]state.RiskTrend) []string {
	ids := make([]string, 0, len(trends))
	for id := range trends {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortedSignalIDs(signals map[string]state.WeeklySignal) []string {
	ids := make([]string, 0, len(signals))
	for id := range signals {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
