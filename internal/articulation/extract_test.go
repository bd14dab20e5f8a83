package articulation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"k9/internal/state"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no fences", `{"a":1}`, `{"a":1}`},
		{"plain fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding whitespace", "  ```json\n{\"a\":1}\n```  ", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripFences(tt.in))
		})
	}
}

func TestExtractObject(t *testing.T) {
	t.Run("bare object", func(t *testing.T) {
		obj, raw, err := ExtractObject(`{"type":"K9_COMMAND","intent":"SYSTEM_QUERY"}`)
		require.NoError(t, err)
		assert.Equal(t, "K9_COMMAND", obj["type"])
		assert.JSONEq(t, `{"type":"K9_COMMAND","intent":"SYSTEM_QUERY"}`, string(raw))
	})

	t.Run("object with prose around it", func(t *testing.T) {
		obj, _, err := ExtractObject("Sure, here is the command:\n{\"type\":\"K9_COMMAND\"}\nLet me know!")
		require.NoError(t, err)
		assert.Equal(t, "K9_COMMAND", obj["type"])
	})

	t.Run("fenced object", func(t *testing.T) {
		obj, _, err := ExtractObject("```json\n{\"type\":\"CLARIFICATION_REQUEST\",\"reason\":\"x\"}\n```")
		require.NoError(t, err)
		assert.Equal(t, "CLARIFICATION_REQUEST", obj["type"])
	})

	t.Run("braces inside strings do not break balancing", func(t *testing.T) {
		obj, _, err := ExtractObject(`{"reason":"use {curly} braces \" and escapes"}`)
		require.NoError(t, err)
		assert.Equal(t, `use {curly} braces " and escapes`, obj["reason"])
	})

	t.Run("nested objects stay whole", func(t *testing.T) {
		obj, _, err := ExtractObject(`{"payload":{"intent":"SYSTEM_QUERY","filters":{"id":"R01"}}}`)
		require.NoError(t, err)
		payload := obj["payload"].(map[string]any)
		assert.Equal(t, "SYSTEM_QUERY", payload["intent"])
	})

	t.Run("first decodable object wins", func(t *testing.T) {
		obj, _, err := ExtractObject(`{"broken": } {"ok": true}`)
		require.NoError(t, err)
		assert.Equal(t, true, obj["ok"])
	})

	t.Run("no object at all", func(t *testing.T) {
		_, _, err := ExtractObject("I cannot answer that.")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNoJSON)
	})

	t.Run("unbalanced object never returned", func(t *testing.T) {
		_, _, err := ExtractObject(`{"type": "K9_COMMAND"`)
		assert.ErrorIs(t, err, ErrNoJSON)
	})
}

func TestRenderInterpretPrompt(t *testing.T) {
	prompt := RenderInterpretPrompt(DefaultBundle(), "como van los riesgos esta semana?")
	assert.Contains(t, prompt, "ANALYTICAL_QUERY")
	assert.Contains(t, prompt, "como van los riesgos esta semana?")
	assert.Contains(t, prompt, "K9_COMMAND")
}

func TestRenderSynthesisPrompt(t *testing.T) {
	st := state.New("pregunta", nil)
	st.Trace("router: intent validated")
	st.Narrative = &state.Scaffold{NarrativeType: "analytical"}

	prompt, err := RenderSynthesisPrompt(DefaultBundle(), st, []PartialResult{
		{Step: 1, Question: "paso uno"},
		{Step: 2, Question: "paso dos"},
	})
	require.NoError(t, err)
	assert.Contains(t, prompt, `"partial_results"`)
	assert.Contains(t, prompt, "paso uno")
	assert.Contains(t, prompt, `"narrative"`)
	assert.True(t, strings.Contains(prompt, "Guidelines: "))
}
