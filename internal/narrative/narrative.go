// Package narrative builds the structured semantic scaffold consumed by the
// external text generator. The scaffold says what should be talked about and
// under which constraints; it never contains natural-language sentences.
package narrative

import (
	"fmt"

	"k9/internal/command"
	"k9/internal/state"
)

// Narrative types.
const (
	TypeComposite     = "composite"
	TypeOperational   = "operational"
	TypeAnalytical    = "analytical"
	TypeComparative   = "comparative"
	TypeOntology      = "ontology"
	TypeInstitutional = "institutional"
	TypeUnknown       = "unknown"
)

// Guardrail notes for the text generator. Instructions, not content.
const (
	NoteDoNotInventData          = "do_not_invent_data"
	NoteCiteOnlyProvidedEvidence = "cite_only_provided_evidence"
	NoteAnswerInUserLanguage     = "answer_in_user_language"
	NoteDoNotRecommendActions    = "do_not_recommend_actions"
)

// Run builds the scaffold. Gate: the command's output mode must be
// "narrative"; otherwise skip+trace.
func Run(st *state.State) *state.State {
	next := st.Clone()

	if st.Command == nil || st.Command.OutputMode() != command.OutputNarrative {
		next.Trace("narrative: skip (output gate, narrative not requested)")
		return next
	}

	scaffold := &state.Scaffold{
		NarrativeType:   narrativeType(st.Command),
		NarrativeIntent: narrativeIntent(st.Intent()),
		ConceptualAxes:  conceptualAxes(st.Intent()),
	}
	addSemanticFocus(scaffold, st)
	addKeyRisks(scaffold, st)
	addTemporalMarkers(scaffold, st)
	addComparisons(scaffold, st)
	addNotes(scaffold, st)

	next.Narrative = scaffold
	next.Trace(fmt.Sprintf("narrative: scaffold built (type=%s, focus=%d entries)",
		scaffold.NarrativeType, len(scaffold.SemanticFocus)))
	return next
}

func narrativeType(cmd *command.Command) string {
	if cmd.IsComposite() {
		return TypeComposite
	}
	switch cmd.Intent {
	case command.IntentOperational:
		return TypeOperational
	case command.IntentAnalytical:
		return TypeAnalytical
	case command.IntentComparative, command.IntentTemporalRelation:
		return TypeComparative
	case command.IntentOntology:
		return TypeOntology
	case command.IntentGreeting, command.IntentSystem:
		return TypeInstitutional
	default:
		return TypeUnknown
	}
}

func narrativeIntent(intent command.Intent) string {
	switch intent {
	case command.IntentOperational:
		return "summarize_operational_evidence"
	case command.IntentAnalytical:
		return "explain_risk_evolution"
	case command.IntentComparative:
		return "compare_model_rankings"
	case command.IntentTemporalRelation:
		return "relate_time_periods"
	case command.IntentOntology:
		return "describe_risk_structure"
	case command.IntentGreeting, command.IntentSystem:
		return "present_system_capabilities"
	default:
		return "inform"
	}
}

func conceptualAxes(intent command.Intent) []string {
	switch intent {
	case command.IntentOperational:
		return []string{"risk", "evidence"}
	case command.IntentAnalytical:
		return []string{"risk", "time"}
	case command.IntentComparative:
		return []string{"risk", "model_alignment"}
	case command.IntentTemporalRelation:
		return []string{"risk", "time", "causality"}
	case command.IntentOntology:
		return []string{"structure"}
	default:
		return []string{"system"}
	}
}

// addSemanticFocus appends one focus entry per evidence block that actually
// exists. Never speculatively, never to satisfy a template.
func addSemanticFocus(scaffold *state.Scaffold, st *state.State) {
	a := st.Analysis
	if a.Engine != nil && len(a.Engine.RiskTrends) > 0 {
		scaffold.SemanticFocus = append(scaffold.SemanticFocus, "risk_trends")
	}
	if f := a.Analyst; f != nil {
		if f.RiskSummary != nil && f.RiskSummary.DominantRisk != "" {
			scaffold.SemanticFocus = append(scaffold.SemanticFocus, "risk_summary")
		}
		if len(f.ProactiveComparison) > 0 {
			scaffold.SemanticFocus = append(scaffold.SemanticFocus, "proactive_comparison")
		}
		if f.PreventiveDecision != nil && len(f.PreventiveDecision.PrioritizedRisks) > 0 {
			scaffold.SemanticFocus = append(scaffold.SemanticFocus, "preventive_decision")
		}
	}
	if a.Operational != nil && len(a.Operational.EvidenceByRisk) > 0 {
		scaffold.SemanticFocus = append(scaffold.SemanticFocus, "operational_evidence")
	}
	if a.Ontology != nil {
		scaffold.SemanticFocus = append(scaffold.SemanticFocus, "ontology_result")
	}
}

func addKeyRisks(scaffold *state.Scaffold, st *state.State) {
	seen := make(map[string]bool)
	add := func(riskID string) {
		if riskID == "" || seen[riskID] {
			return
		}
		seen[riskID] = true
		scaffold.KeyRisks = append(scaffold.KeyRisks, riskID)
	}
	if f := st.Analysis.Analyst; f != nil {
		if f.RiskSummary != nil {
			add(f.RiskSummary.DominantRisk)
			add(f.RiskSummary.RelevantRisk)
		}
		if f.PreventiveDecision != nil {
			for _, p := range f.PreventiveDecision.PrioritizedRisks {
				add(p.RiskID)
			}
		}
	}
}

func addTemporalMarkers(scaffold *state.Scaffold, st *state.State) {
	if st.TimeContext != nil {
		scaffold.TemporalMarkers = append(scaffold.TemporalMarkers, st.TimeContext.String())
	}
	if st.Analysis.Engine != nil && st.Analysis.Engine.Period.MinWeek != "" {
		scaffold.TemporalMarkers = append(scaffold.TemporalMarkers,
			st.Analysis.Engine.Period.MinWeek, st.Analysis.Engine.Period.MaxWeek)
	}
}

func addComparisons(scaffold *state.Scaffold, st *state.State) {
	f := st.Analysis.Analyst
	if f == nil {
		return
	}
	for _, riskID := range scaffold.KeyRisks {
		if cmp, ok := f.ProactiveComparison[riskID]; ok && cmp.AlignmentStatus != state.AlignmentInconclusive {
			scaffold.Comparisons = append(scaffold.Comparisons, riskID+":"+cmp.AlignmentStatus)
		}
	}
}

func addNotes(scaffold *state.Scaffold, st *state.State) {
	scaffold.NotesForLLM = []string{
		NoteDoNotInventData,
		NoteCiteOnlyProvidedEvidence,
		NoteAnswerInUserLanguage,
	}
	f := st.Analysis.Analyst
	if f == nil || f.PreventiveDecision == nil || len(f.PreventiveDecision.PrioritizedRisks) == 0 {
		scaffold.NotesForLLM = append(scaffold.NotesForLLM, NoteDoNotRecommendActions)
	}
}
