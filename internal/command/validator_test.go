package command

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string) map[string]any {
	t.Helper()
	var obj map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &obj))
	return obj
}

const validSimple = `{
	"type": "K9_COMMAND",
	"intent": "ANALYTICAL_QUERY",
	"payload": {
		"intent": "ANALYTICAL_QUERY",
		"entity": "riesgo",
		"operation": "analyze_trends",
		"filters": {"risk_id": "R01"},
		"time": {"type": "RELATIVE", "value": "LAST_WEEK", "confidence": "EXPLICIT"},
		"output": "narrative"
	}
}`

func TestValidateSimpleCommand(t *testing.T) {
	ok, reason := Validate(decode(t, validSimple))
	assert.True(t, ok)
	assert.Empty(t, reason)
}

func TestValidateFailClosed(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(obj map[string]any)
		want   string
	}{
		{
			name:   "missing type",
			mutate: func(obj map[string]any) { delete(obj, "type") },
			want:   "missing or non-string 'type'",
		},
		{
			name:   "unknown type",
			mutate: func(obj map[string]any) { obj["type"] = "MAGIC_COMMAND" },
			want:   `unknown command type "MAGIC_COMMAND"`,
		},
		{
			name:   "missing payload",
			mutate: func(obj map[string]any) { delete(obj, "payload") },
			want:   "K9_COMMAND requires a 'payload' object",
		},
		{
			name: "missing payload intent",
			mutate: func(obj map[string]any) {
				delete(obj["payload"].(map[string]any), "intent")
			},
			want: "payload missing 'intent'",
		},
		{
			name: "missing operation",
			mutate: func(obj map[string]any) {
				delete(obj["payload"].(map[string]any), "operation")
			},
			want: "payload missing 'operation'",
		},
		{
			name: "missing output",
			mutate: func(obj map[string]any) {
				delete(obj["payload"].(map[string]any), "output")
			},
			want: "payload missing 'output'",
		},
		{
			name:   "missing top-level intent",
			mutate: func(obj map[string]any) { delete(obj, "intent") },
			want:   "K9_COMMAND requires a top-level 'intent'",
		},
		{
			name:   "intent handshake mismatch",
			mutate: func(obj map[string]any) { obj["intent"] = "OPERATIONAL_QUERY" },
			want:   `intent mismatch: top-level "OPERATIONAL_QUERY" vs payload "ANALYTICAL_QUERY"`,
		},
		{
			name: "filters not an object",
			mutate: func(obj map[string]any) {
				obj["payload"].(map[string]any)["filters"] = "R01"
			},
			want: "'filters' must be an object",
		},
		{
			name: "time not an object",
			mutate: func(obj map[string]any) {
				obj["payload"].(map[string]any)["time"] = "LAST_WEEK"
			},
			want: "'time' must be an object",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj := decode(t, validSimple)
			tt.mutate(obj)
			ok, reason := Validate(obj)
			assert.False(t, ok)
			assert.Equal(t, tt.want, reason)
		})
	}
}

func TestValidateComposite(t *testing.T) {
	t.Run("valid two-step plan", func(t *testing.T) {
		step := decode(t, validSimple)
		obj := map[string]any{
			"type": TypeComposite,
			"plan": []any{step, decode(t, validSimple)},
		}
		ok, reason := Validate(obj)
		assert.True(t, ok)
		assert.Empty(t, reason)
	})

	t.Run("empty plan rejected", func(t *testing.T) {
		ok, reason := Validate(map[string]any{"type": TypeComposite, "plan": []any{}})
		assert.False(t, ok)
		assert.Equal(t, "'plan' must be non-empty", reason)
	})

	t.Run("nested composite rejected", func(t *testing.T) {
		obj := map[string]any{
			"type": TypeComposite,
			"plan": []any{map[string]any{"type": TypeComposite, "plan": []any{}}},
		}
		ok, reason := Validate(obj)
		assert.False(t, ok)
		assert.Contains(t, reason, "must be a K9_COMMAND")
	})

	t.Run("invalid step surfaces with index", func(t *testing.T) {
		bad := decode(t, validSimple)
		delete(bad["payload"].(map[string]any), "output")
		obj := map[string]any{
			"type": TypeComposite,
			"plan": []any{decode(t, validSimple), bad},
		}
		ok, reason := Validate(obj)
		assert.False(t, ok)
		assert.Equal(t, "plan step 1: payload missing 'output'", reason)
	})
}

func TestValidateClarification(t *testing.T) {
	option := func(label string) map[string]any {
		return map[string]any{"label": label, "description": "desc for " + label}
	}

	t.Run("valid", func(t *testing.T) {
		obj := map[string]any{
			"type":    TypeClarification,
			"reason":  "ambiguous time reference",
			"options": []any{option("a"), option("b")},
		}
		ok, _ := Validate(obj)
		assert.True(t, ok)
	})

	t.Run("too many options", func(t *testing.T) {
		obj := map[string]any{
			"type":    TypeClarification,
			"reason":  "ambiguous",
			"options": []any{option("a"), option("b"), option("c"), option("d")},
		}
		ok, reason := Validate(obj)
		assert.False(t, ok)
		assert.Contains(t, reason, "at most 3 clarification options")
	})

	t.Run("option missing description", func(t *testing.T) {
		obj := map[string]any{
			"type":    TypeClarification,
			"reason":  "ambiguous",
			"options": []any{map[string]any{"label": "a"}},
		}
		ok, reason := Validate(obj)
		assert.False(t, ok)
		assert.Equal(t, "option 0 missing 'description'", reason)
	})

	t.Run("empty reason", func(t *testing.T) {
		obj := map[string]any{
			"type":    TypeClarification,
			"reason":  "",
			"options": []any{option("a")},
		}
		ok, _ := Validate(obj)
		assert.False(t, ok)
	})
}

func TestParse(t *testing.T) {
	t.Run("valid command round-trips", func(t *testing.T) {
		cmd, err := Parse([]byte(validSimple))
		require.NoError(t, err)
		assert.Equal(t, IntentAnalytical, cmd.Intent)
		require.NotNil(t, cmd.Payload)
		assert.Equal(t, "riesgo", cmd.Payload.Entity)
		assert.Equal(t, "analyze_trends", cmd.Payload.Operation)
		assert.Equal(t, OutputNarrative, cmd.Payload.Output)
		require.NotNil(t, cmd.Payload.Time)
		assert.Equal(t, "LAST_WEEK", cmd.Payload.Time.Value)
	})

	t.Run("invalid command never decodes", func(t *testing.T) {
		cmd, err := Parse([]byte(`{"type":"K9_COMMAND"}`))
		assert.Nil(t, cmd)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid command")
	})

	t.Run("non-JSON input", func(t *testing.T) {
		_, err := Parse([]byte("not json"))
		require.Error(t, err)
	})
}
