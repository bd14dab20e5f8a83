package articulation

import (
	"encoding/json"
	"fmt"
	"os"
)

// Bundle holds the prompt scaffolds for the two model calls. Loaded once at
// construction and passed down explicitly; there is no ambient cache.
type Bundle struct {
	InterpretSystem  string   `json:"interpret_system"`
	SynthesisSystem  string   `json:"synthesis_system"`
	IntentCatalog    []string `json:"intent_catalog"`
	CommandExample   string   `json:"command_example"`
	AnswerGuidelines []string `json:"answer_guidelines"`
}

// LoadBundle reads a bundle from a JSON file.
func LoadBundle(path string) (*Bundle, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading language bundle: %w", err)
	}
	var bundle Bundle
	if err := json.Unmarshal(raw, &bundle); err != nil {
		return nil, fmt.Errorf("parsing language bundle: %w", err)
	}
	if bundle.InterpretSystem == "" || bundle.SynthesisSystem == "" {
		return nil, fmt.Errorf("language bundle missing system scaffolds")
	}
	return &bundle, nil
}

// DefaultBundle returns the built-in scaffolds used when no bundle file is
// configured.
func DefaultBundle() *Bundle {
	return &Bundle{
		InterpretSystem: "You translate mining-safety questions into exactly one JSON command object. " +
			"Reply with a single JSON object of type K9_COMMAND, COMPOSITE_K9_COMMAND or CLARIFICATION_REQUEST and nothing else.",
		SynthesisSystem: "You write the final answer for a mining-safety assistant. " +
			"Use only the facts provided in the payload. Follow every note in notes_for_llm.",
		IntentCatalog: []string{
			"GREETING_QUERY", "ONTOLOGY_QUERY", "OPERATIONAL_QUERY", "ANALYTICAL_QUERY",
			"COMPARATIVE_QUERY", "TEMPORAL_RELATION_QUERY", "SYSTEM_QUERY",
		},
		CommandExample: `{"type":"K9_COMMAND","intent":"ANALYTICAL_QUERY","payload":{"intent":"ANALYTICAL_QUERY","entity":"riesgo","operation":"analyze_trends","filters":{},"time":{"type":"RELATIVE","value":"LAST_2_WEEKS","confidence":"EXPLICIT"},"output":"narrative"}}`,
		AnswerGuidelines: []string{
			"answer in the language of the question",
			"never mention internal field names",
		},
	}
}
