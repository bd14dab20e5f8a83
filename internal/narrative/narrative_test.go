package narrative

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"k9/internal/command"
	"k9/internal/state"
	"k9/internal/temporal"
)

func narrativeState(intent command.Intent) *state.State {
	return state.New("cuentame la evolucion", &command.Command{
		Type:   command.TypeSimple,
		Intent: intent,
		Payload: &command.Payload{
			Intent:    intent,
			Operation: "analyze_trends",
			Output:    command.OutputNarrative,
		},
	})
}

func TestOutputGate(t *testing.T) {
	st := narrativeState(command.IntentAnalytical)
	st.Command.Payload.Output = command.OutputAnalysis

	out := Run(st)
	assert.Nil(t, out.Narrative)
	require.Len(t, out.Reasoning, 1)
	assert.Contains(t, out.Reasoning[0], "skip")
	assert.Contains(t, out.Reasoning[0], "output gate")
}

func TestTopLevelOutputAlsoPassesGate(t *testing.T) {
	st := narrativeState(command.IntentAnalytical)
	st.Command.Payload.Output = command.OutputAnalysis
	st.Command.Output = command.OutputNarrative

	out := Run(st)
	assert.NotNil(t, out.Narrative)
}

func TestNarrativeTypesByIntent(t *testing.T) {
	tests := []struct {
		intent command.Intent
		want   string
	}{
		{command.IntentOperational, TypeOperational},
		{command.IntentAnalytical, TypeAnalytical},
		{command.IntentComparative, TypeComparative},
		{command.IntentTemporalRelation, TypeComparative},
		{command.IntentOntology, TypeOntology},
		{command.IntentGreeting, TypeInstitutional},
		{command.IntentSystem, TypeInstitutional},
	}
	for _, tt := range tests {
		t.Run(string(tt.intent), func(t *testing.T) {
			out := Run(narrativeState(tt.intent))
			require.NotNil(t, out.Narrative)
			assert.Equal(t, tt.want, out.Narrative.NarrativeType)
		})
	}
}

func TestCompositeNarrativeType(t *testing.T) {
	st := state.New("q", &command.Command{
		Type:   command.TypeComposite,
		Output: command.OutputNarrative,
		Plan:   []command.Command{},
	})
	out := Run(st)
	require.NotNil(t, out.Narrative)
	assert.Equal(t, TypeComposite, out.Narrative.NarrativeType)
}

func TestSemanticFocusHonesty(t *testing.T) {
	// No evidence blocks at all: focus stays empty.
	out := Run(narrativeState(command.IntentAnalytical))
	require.NotNil(t, out.Narrative)
	assert.Empty(t, out.Narrative.SemanticFocus)
	assert.NotContains(t, out.Narrative.SemanticFocus, "operational_evidence")

	// Operational block present but empty: still no operational focus.
	st := narrativeState(command.IntentOperational)
	st.Analysis.Operational = &state.OperationalEvidence{
		EvidenceByRisk: map[string]*state.RiskEvidence{},
	}
	out = Run(st)
	assert.NotContains(t, out.Narrative.SemanticFocus, "operational_evidence")

	// Non-empty evidence earns the focus entry.
	st.Analysis.Operational.EvidenceByRisk["R01"] = &state.RiskEvidence{OCCCount: 1}
	out = Run(st)
	assert.Contains(t, out.Narrative.SemanticFocus, "operational_evidence")
}

func TestFullScaffold(t *testing.T) {
	st := narrativeState(command.IntentComparative)
	st.TimeContext = &temporal.TimeContext{
		Type: temporal.TypeRelative, Value: temporal.Last2Weeks, Confidence: temporal.ConfidenceExplicit,
	}
	st.Analysis.Engine = &state.EngineFacts{
		Period:     state.Period{MinWeek: "2025-S11", MaxWeek: "2025-S12"},
		RiskTrends: map[string]state.RiskTrend{"R01": {Trend: state.TrendUp}},
	}
	st.Analysis.Analyst = &state.AnalystFindings{
		RiskSummary: &state.RiskSummary{DominantRisk: "R01", RelevantRisk: "R01"},
		ProactiveComparison: map[string]*state.RankComparison{
			"R01": {K9Rank: 1, ProactiveRank: 3, RankDelta: 2, AlignmentStatus: state.AlignmentUnderestimated},
		},
		PreventiveDecision: &state.PreventiveDecision{
			Scenario:         state.ScenarioProactiveUnderestimation,
			PrioritizedRisks: []state.PrioritizedRisk{{RiskID: "R01", OCCCount: 2}},
		},
	}

	out := Run(st)
	scaffold := out.Narrative
	require.NotNil(t, scaffold)

	assert.Equal(t, TypeComparative, scaffold.NarrativeType)
	assert.Equal(t, "compare_model_rankings", scaffold.NarrativeIntent)
	assert.Equal(t, []string{"risk", "model_alignment"}, scaffold.ConceptualAxes)
	assert.Equal(t, []string{"risk_trends", "risk_summary", "proactive_comparison", "preventive_decision"},
		scaffold.SemanticFocus)
	assert.Equal(t, []string{"R01"}, scaffold.KeyRisks)
	assert.Equal(t, []string{"RELATIVE/LAST_2_WEEKS (EXPLICIT)", "2025-S11", "2025-S12"},
		scaffold.TemporalMarkers)
	assert.Equal(t, []string{"R01:underestimated_by_proactive"}, scaffold.Comparisons)

	// prioritization exists, so recommendation talk is allowed
	assert.NotContains(t, scaffold.NotesForLLM, NoteDoNotRecommendActions)
	assert.Contains(t, scaffold.NotesForLLM, NoteDoNotInventData)
}

func TestGuardrailWithoutDecision(t *testing.T) {
	out := Run(narrativeState(command.IntentAnalytical))
	assert.Contains(t, out.Narrative.NotesForLLM, NoteDoNotRecommendActions)
}

func TestNoProseInScaffold(t *testing.T) {
	out := Run(narrativeState(command.IntentGreeting))
	scaffold := out.Narrative
	require.NotNil(t, scaffold)
	for _, note := range scaffold.NotesForLLM {
		assert.NotContains(t, note, " ", "notes are instruction codes, not sentences")
	}
}
