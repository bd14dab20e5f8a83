package command

import "fmt"

// ============================================================================
// FAIL-CLOSED COMMAND VALIDATION
// ============================================================================
// Validate checks a decoded JSON object against the canonical contract before
// anything downstream is allowed to see it. No repair, no defaulting (the
// Router owns the one permitted default, the time context). A false result
// means the command must be rejected wholesale.

const maxClarificationOptions = 3

// Validate reports whether obj is a well-formed canonical command. On
// failure the second return value names the first violated rule.
func Validate(obj map[string]any) (bool, string) {
	if obj == nil {
		return false, "command is nil"
	}
	typ, ok := obj["type"].(string)
	if !ok || typ == "" {
		return false, "missing or non-string 'type'"
	}
	switch typ {
	case TypeSimple:
		return validateSimple(obj)
	case TypeComposite:
		return validateComposite(obj)
	case TypeClarification:
		return validateClarification(obj)
	default:
		return false, fmt.Sprintf("unknown command type %q", typ)
	}
}

func validateSimple(obj map[string]any) (bool, string) {
	payload, ok := obj["payload"].(map[string]any)
	if !ok {
		return false, "K9_COMMAND requires a 'payload' object"
	}
	payloadIntent, ok := payload["intent"].(string)
	if !ok || payloadIntent == "" {
		return false, "payload missing 'intent'"
	}
	if _, ok := payload["operation"].(string); !ok {
		return false, "payload missing 'operation'"
	}
	output, ok := payload["output"].(string)
	if !ok || output == "" {
		return false, "payload missing 'output'"
	}
	topIntent, ok := obj["intent"].(string)
	if !ok || topIntent == "" {
		return false, "K9_COMMAND requires a top-level 'intent'"
	}
	// The duplication is the handshake: a payload whose intent disagrees
	// with the envelope was assembled by something that cannot be trusted.
	if topIntent != payloadIntent {
		return false, fmt.Sprintf("intent mismatch: top-level %q vs payload %q", topIntent, payloadIntent)
	}
	if raw, present := payload["filters"]; present {
		if _, ok := raw.(map[string]any); !ok {
			return false, "'filters' must be an object"
		}
	}
	if raw, present := payload["time"]; present && raw != nil {
		if _, ok := raw.(map[string]any); !ok {
			return false, "'time' must be an object"
		}
	}
	return true, ""
}

func validateComposite(obj map[string]any) (bool, string) {
	rawPlan, ok := obj["plan"].([]any)
	if !ok {
		return false, "COMPOSITE_K9_COMMAND requires a 'plan' list"
	}
	if len(rawPlan) == 0 {
		return false, "'plan' must be non-empty"
	}
	for i, rawStep := range rawPlan {
		step, ok := rawStep.(map[string]any)
		if !ok {
			return false, fmt.Sprintf("plan step %d is not an object", i)
		}
		stepType, _ := step["type"].(string)
		if stepType != TypeSimple {
			return false, fmt.Sprintf("plan step %d must be a K9_COMMAND, got %q", i, stepType)
		}
		if ok, reason := validateSimple(step); !ok {
			return false, fmt.Sprintf("plan step %d: %s", i, reason)
		}
	}
	return true, ""
}

func validateClarification(obj map[string]any) (bool, string) {
	reason, ok := obj["reason"].(string)
	if !ok || reason == "" {
		return false, "CLARIFICATION_REQUEST requires a non-empty 'reason'"
	}
	rawOptions, ok := obj["options"].([]any)
	if !ok || len(rawOptions) == 0 {
		return false, "CLARIFICATION_REQUEST requires a non-empty 'options' list"
	}
	if len(rawOptions) > maxClarificationOptions {
		return false, fmt.Sprintf("at most %d clarification options allowed, got %d", maxClarificationOptions, len(rawOptions))
	}
	for i, rawOpt := range rawOptions {
		opt, ok := rawOpt.(map[string]any)
		if !ok {
			return false, fmt.Sprintf("option %d is not an object", i)
		}
		if label, ok := opt["label"].(string); !ok || label == "" {
			return false, fmt.Sprintf("option %d missing 'label'", i)
		}
		if desc, ok := opt["description"].(string); !ok || desc == "" {
			return false, fmt.Sprintf("option %d missing 'description'", i)
		}
	}
	return true, ""
}
