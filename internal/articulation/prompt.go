package articulation

import (
	"encoding/json"
	"fmt"
	"strings"

	"k9/internal/state"
)

// PartialResult is one composite step's contribution to the final synthesis
// payload, accumulated by the orchestration layer in submission order.
type PartialResult struct {
	Step      int             `json:"step"`
	Question  string          `json:"question,omitempty"`
	Narrative *state.Scaffold `json:"narrative,omitempty"`
	Analysis  state.Analysis  `json:"analysis"`
	Reasoning []string        `json:"reasoning,omitempty"`
}

// RenderInterpretPrompt builds the user prompt for the interpretation call.
// Mechanical assembly from the bundle and the question; no quality logic.
func RenderInterpretPrompt(bundle *Bundle, question string) string {
	var b strings.Builder
	b.WriteString("Known intents: ")
	b.WriteString(strings.Join(bundle.IntentCatalog, ", "))
	b.WriteString("\n\nExample command:\n")
	b.WriteString(bundle.CommandExample)
	b.WriteString("\n\nQuestion:\n")
	b.WriteString(question)
	return b.String()
}

// RenderSynthesisPrompt builds the user prompt for the final answer call
// from the state's public fields. Partials come from composite execution and
// may be empty for simple commands.
func RenderSynthesisPrompt(bundle *Bundle, st *state.State, partials []PartialResult) (string, error) {
	payload := map[string]any{
		"question":  st.Question,
		"analysis":  st.Analysis,
		"reasoning": st.Reasoning,
	}
	if st.Narrative != nil {
		payload["narrative"] = st.Narrative
	}
	if st.TimeContext != nil {
		payload["time_context"] = st.TimeContext
	}
	if len(partials) > 0 {
		payload["partial_results"] = partials
	}

	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("rendering synthesis payload: %w", err)
	}

	var b strings.Builder
	b.WriteString("Guidelines: ")
	b.WriteString(strings.Join(bundle.AnswerGuidelines, "; "))
	b.WriteString("\n\nPayload:\n")
	b.Write(encoded)
	return b.String(), nil
}
