package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"k9/internal/command"
	"k9/internal/dataset"
	"k9/internal/logging"
	"k9/internal/perception"
	"k9/internal/state"
	"k9/internal/store"
)

func testGraph(t *testing.T) *Graph {
	t.Helper()
	dir := t.TempDir()
	return NewGraph(dataset.Open(dir), dir, "")
}

func simpleCommand(intent command.Intent, output string) *command.Command {
	return &command.Command{
		Type:   command.TypeSimple,
		Intent: intent,
		Output: output,
		Payload: &command.Payload{
			Intent:    intent,
			Operation: "describe",
			Output:    output,
		},
	}
}

func TestGraphGreetingProducesScaffoldOnly(t *testing.T) {
	g := testGraph(t)
	st := state.New("hola", simpleCommand(command.IntentGreeting, "narrative"))

	out, err := g.Execute(context.Background(), st)
	require.NoError(t, err)
	require.NotNil(t, out.Narrative)
	assert.Equal(t, "institutional", out.Narrative.NarrativeType)
	assert.True(t, out.Analysis.Empty())
}

func TestGraphMissingCommandIsFatal(t *testing.T) {
	g := testGraph(t)
	_, err := g.Execute(context.Background(), state.New("hola", nil))
	assert.Error(t, err)
}

func TestGraphDefersComposite(t *testing.T) {
	g := testGraph(t)
	cmd := &command.Command{
		Type: command.TypeComposite,
		Plan: []command.Command{
			*simpleCommand(command.IntentGreeting, "narrative"),
		},
	}

	out, err := g.Execute(context.Background(), state.New("q", cmd))
	require.NoError(t, err)
	assert.True(t, out.Deferred)
	assert.Nil(t, out.Narrative)
}

func TestExecutePlanTwoSteps(t *testing.T) {
	g := testGraph(t)
	cmd := &command.Command{
		Type: command.TypeComposite,
		Plan: []command.Command{
			*simpleCommand(command.IntentGreeting, "narrative"),
			*simpleCommand(command.IntentSystem, "narrative"),
		},
	}

	last, partials, err := g.ExecutePlan(context.Background(), state.New("q", cmd))
	require.NoError(t, err)
	require.Len(t, partials, 2)

	// submission order preserved
	assert.Equal(t, 1, partials[0].Step)
	assert.Equal(t, 2, partials[1].Step)

	// each step carries its own scaffold
	require.NotNil(t, partials[0].Narrative)
	require.NotNil(t, partials[1].Narrative)
	assert.NotSame(t, partials[0].Narrative, partials[1].Narrative)

	// steps are independent: step 1 never saw step 2's trace
	assert.Contains(t, partials[0].Reasoning, "router: intent GREETING_QUERY validated")
	for _, line := range partials[0].Reasoning {
		assert.NotContains(t, line, "SYSTEM_QUERY")
	}
	assert.Contains(t, partials[1].Reasoning, "router: intent SYSTEM_QUERY validated")
	assert.Same(t, last.Narrative, partials[1].Narrative)
}

func TestExecutePlanRejectsNonComposite(t *testing.T) {
	g := testGraph(t)
	st := state.New("q", simpleCommand(command.IntentGreeting, "narrative"))
	_, _, err := g.ExecutePlan(context.Background(), st)
	assert.Error(t, err)
}

// ============================================================================
// ORCHESTRATOR
// ============================================================================

const greetingCommandJSON = `{
  "type": "K9_COMMAND",
  "intent": "GREETING_QUERY",
  "output": "narrative",
  "payload": {"intent": "GREETING_QUERY", "operation": "describe", "output": "narrative"}
}`

func testOrchestrator(t *testing.T, llm perception.LLMClient) (*Orchestrator, *store.SessionStore, string) {
	t.Helper()
	dir := t.TempDir()
	sessions, err := store.Open(filepath.Join(dir, "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sessions.Close() })

	clarPath := filepath.Join(dir, "clarifications.jsonl")
	o := NewOrchestrator(llm, nil, testGraph(t), logging.NewClarificationLog(clarPath), sessions)
	return o, sessions, clarPath
}

func TestOrchestratorFullTurn(t *testing.T) {
	mock := perception.NewMockClient(greetingCommandJSON, "Hola, soy K9.")
	o, sessions, _ := testOrchestrator(t, mock)

	res, err := o.Answer(context.Background(), "s1", "hola", nil)
	require.NoError(t, err)
	assert.Equal(t, "Hola, soy K9.", res.Answer)
	assert.False(t, res.Clarification)
	require.NotNil(t, res.Command)
	assert.Equal(t, command.IntentGreeting, res.Command.Intent)
	require.NotNil(t, res.State)
	assert.Equal(t, "Hola, soy K9.", res.State.FinalAnswer)

	turns, err := sessions.History("s1")
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "GREETING_QUERY", turns[0].Intent)
}

func TestOrchestratorCompositeTurn(t *testing.T) {
	compositeJSON := `{
	  "type": "COMPOSITE_K9_COMMAND",
	  "plan": [
	    {"type": "K9_COMMAND", "intent": "GREETING_QUERY", "output": "narrative",
	     "payload": {"intent": "GREETING_QUERY", "operation": "describe", "output": "narrative"}},
	    {"type": "K9_COMMAND", "intent": "SYSTEM_QUERY", "output": "narrative",
	     "payload": {"intent": "SYSTEM_QUERY", "operation": "describe", "output": "narrative"}}
	  ]
	}`
	mock := perception.NewMockClient(compositeJSON, "Resumen de ambos pasos.")
	o, _, _ := testOrchestrator(t, mock)

	res, err := o.Answer(context.Background(), "s1", "saluda y describe el sistema", nil)
	require.NoError(t, err)
	assert.Equal(t, "Resumen de ambos pasos.", res.Answer)
	require.Len(t, res.Partials, 2)
	assert.Equal(t, 1, res.Partials[0].Step)
	assert.Equal(t, 2, res.Partials[1].Step)

	// synthesis prompt carried both partials
	calls := mock.Calls()
	require.Len(t, calls, 2)
	assert.Contains(t, calls[1], `"partial_results"`)
	assert.Contains(t, calls[1], `"step": 1`)
	assert.Contains(t, calls[1], `"step": 2`)
}

func TestOrchestratorClarificationPath(t *testing.T) {
	clarificationJSON := `{
	  "type": "CLARIFICATION_REQUEST",
	  "reason": "referencia temporal ambigua",
	  "options": [
	    {"label": "esta semana", "description": "la semana en curso"},
	    {"label": "el mes pasado", "description": "las ultimas 4 semanas"}
	  ]
	}`
	mock := perception.NewMockClient(clarificationJSON)
	o, _, clarPath := testOrchestrator(t, mock)

	res, err := o.Answer(context.Background(), "s1", "como vamos?", nil)
	require.NoError(t, err)
	assert.True(t, res.Clarification)
	assert.Contains(t, res.Answer, "referencia temporal ambigua")
	assert.Contains(t, res.Answer, "1. esta semana - la semana en curso")

	raw, err := os.ReadFile(clarPath)
	require.NoError(t, err)
	var event map[string]any
	require.NoError(t, json.Unmarshal(raw, &event))
	assert.Equal(t, "como vamos?", event["question"])
	assert.Equal(t, "referencia temporal ambigua", event["reason"])
}

func TestOrchestratorLLMFailureDegrades(t *testing.T) {
	o, _, clarPath := testOrchestrator(t, perception.NewFailingMockClient(errors.New("connection refused")))

	res, err := o.Answer(context.Background(), "s1", "hola", nil)
	require.NoError(t, err)
	assert.True(t, res.Clarification)
	assert.Equal(t, msgCannotInterpret, res.Answer)

	raw, err := os.ReadFile(clarPath)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "llm unavailable")
}

func TestOrchestratorRejectsMalformedCommand(t *testing.T) {
	// model returns JSON that fails the handshake
	badJSON := `{
	  "type": "K9_COMMAND",
	  "intent": "GREETING_QUERY",
	  "payload": {"intent": "SYSTEM_QUERY", "operation": "describe", "output": "raw"}
	}`
	mock := perception.NewMockClient(badJSON)
	o, _, clarPath := testOrchestrator(t, mock)

	res, err := o.Answer(context.Background(), "s1", "hola", nil)
	require.NoError(t, err)
	assert.Equal(t, msgCannotInterpret, res.Answer)

	raw, err := os.ReadFile(clarPath)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "intent mismatch")
}

func TestOrchestratorSynthesisFailureKeepsAnalysis(t *testing.T) {
	// first call interprets, second (synthesis) fails
	mock := perception.NewMockClient(greetingCommandJSON)
	mock.FailAfter(1)
	o, _, _ := testOrchestrator(t, mock)

	res, err := o.Answer(context.Background(), "s1", "hola", nil)
	require.NoError(t, err)
	// structured payload survives as the answer
	assert.Contains(t, res.Answer, `"question"`)
	assert.Contains(t, res.Answer, "hola")
}
