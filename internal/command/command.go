// Package command defines the canonical K9 command schema: the only legal
// shapes a language-model interpretation may take before it is allowed to
// drive the deterministic pipeline. Validation is fail-closed; a command that
// does not satisfy the contract is never repaired, only rejected.
package command

import (
	"encoding/json"
	"fmt"
)

// Command type discriminators.
const (
	TypeSimple        = "K9_COMMAND"
	TypeComposite     = "COMPOSITE_K9_COMMAND"
	TypeClarification = "CLARIFICATION_REQUEST"
)

// Intent is the closed vocabulary of request purposes.
type Intent string

const (
	IntentGreeting         Intent = "GREETING_QUERY"
	IntentOntology         Intent = "ONTOLOGY_QUERY"
	IntentOperational      Intent = "OPERATIONAL_QUERY"
	IntentAnalytical       Intent = "ANALYTICAL_QUERY"
	IntentComparative      Intent = "COMPARATIVE_QUERY"
	IntentTemporalRelation Intent = "TEMPORAL_RELATION_QUERY"
	IntentSystem           Intent = "SYSTEM_QUERY"
)

// ValidIntents is the canonical intent space. The Router rejects anything
// outside it.
var ValidIntents = map[Intent]bool{
	IntentGreeting:         true,
	IntentOntology:         true,
	IntentOperational:      true,
	IntentAnalytical:       true,
	IntentComparative:      true,
	IntentTemporalRelation: true,
	IntentSystem:           true,
}

// Valid reports whether the intent belongs to the canonical vocabulary.
func (i Intent) Valid() bool { return ValidIntents[i] }

// Output modes for a command.
const (
	OutputRaw       = "raw"
	OutputAnalysis  = "analysis"
	OutputNarrative = "narrative"
)

// TimeSpec is the raw temporal request carried by a command payload. It is
// semantic input for the Router; it is never consumed directly by any node.
type TimeSpec struct {
	Type       string `json:"type"`
	Value      string `json:"value"`
	Confidence string `json:"confidence,omitempty"`
}

// Payload carries the executable part of a simple command.
type Payload struct {
	Intent    Intent            `json:"intent"`
	Entity    string            `json:"entity,omitempty"`
	Operation string            `json:"operation,omitempty"`
	Filters   map[string]string `json:"filters,omitempty"`
	Time      *TimeSpec         `json:"time,omitempty"`
	Output    string            `json:"output"`
}

// ClarificationOption is one of at most three labeled choices offered back
// to the user when interpretation fails.
type ClarificationOption struct {
	Label       string `json:"label"`
	Description string `json:"description"`
}

// Command is the canonical unit the Router consumes. Exactly one of the
// shape-specific field groups is populated, according to Type:
//
//	K9_COMMAND            -> Intent + Payload
//	COMPOSITE_K9_COMMAND  -> Plan (ordered, each element a simple command)
//	CLARIFICATION_REQUEST -> Reason + Options
//
// The top-level Intent duplicates Payload.Intent by contract: the match is
// the handshake that lets the Router trust the payload without re-deriving
// intent from free text.
type Command struct {
	Type    string                `json:"type"`
	Intent  Intent                `json:"intent,omitempty"`
	Output  string                `json:"output,omitempty"`
	Payload *Payload              `json:"payload,omitempty"`
	Plan    []Command             `json:"plan,omitempty"`
	Reason  string                `json:"reason,omitempty"`
	Options []ClarificationOption `json:"options,omitempty"`
}

// IsComposite reports whether the command wraps an ordered plan.
func (c *Command) IsComposite() bool { return c.Type == TypeComposite }

// IsClarification reports whether the command is a clarification request.
func (c *Command) IsClarification() bool { return c.Type == TypeClarification }

// Entity returns the payload entity, or "" when absent.
func (c *Command) Entity() string {
	if c.Payload == nil {
		return ""
	}
	return c.Payload.Entity
}

// Operation returns the payload operation, or "" when absent.
func (c *Command) Operation() string {
	if c.Payload == nil {
		return ""
	}
	return c.Payload.Operation
}

// OutputMode returns the output mode, preferring the top-level field over
// the payload one when both are set.
func (c *Command) OutputMode() string {
	if c.Output != "" {
		return c.Output
	}
	if c.Payload == nil {
		return ""
	}
	return c.Payload.Output
}

// Parse validates a raw JSON object against the canonical contract and, only
// if validation passes, decodes it into a typed Command. Fail-closed: any
// schema violation returns an error and a nil command.
func Parse(raw []byte) (*Command, error) {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("command is not a JSON object: %w", err)
	}
	if ok, reason := Validate(obj); !ok {
		return nil, fmt.Errorf("invalid command: %s", reason)
	}
	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return nil, fmt.Errorf("decoding validated command: %w", err)
	}
	return &cmd, nil
}
