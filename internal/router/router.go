// Package router validates the canonical command and derives the request's
// time context. Single pass, no loops: command-type check, intent
// validation, time derivation, done. Every decision point appends exactly
// one trace line; that trail is the system's audit log.
package router

import (
	"fmt"
	"strings"

	"k9/internal/command"
	"k9/internal/state"
	"k9/internal/temporal"
)

// Run routes one state through the command checks. A missing or malformed
// command is a fatal configuration error, never defaulted. Composite
// commands are marked deferred and returned untouched; unrolling plans
// belongs to the orchestration layer, one sub-command at a time.
func Run(st *state.State) (*state.State, error) {
	next := st.Clone()

	if next.Command == nil {
		return nil, fmt.Errorf("router: no command present in state")
	}
	cmd := next.Command

	switch cmd.Type {
	case command.TypeComposite:
		next.Deferred = true
		next.Trace(fmt.Sprintf("router: composite command with %d steps, execution deferred to orchestrator", len(cmd.Plan)))
		return next, nil
	case command.TypeSimple:
		next.Trace("router: K9_COMMAND accepted")
	default:
		return nil, fmt.Errorf("router: unroutable command type %q", cmd.Type)
	}

	intent := command.Intent(strings.ToUpper(string(cmd.Intent)))
	if !intent.Valid() {
		return nil, fmt.Errorf("router: unknown intent %q", cmd.Intent)
	}
	if intent != cmd.Intent {
		// Normalize case on a copy; the incoming state stays untouched.
		normalized := *cmd
		normalized.Intent = intent
		if cmd.Payload != nil {
			payload := *cmd.Payload
			payload.Intent = intent
			normalized.Payload = &payload
		}
		next.Command = &normalized
		cmd = &normalized
	}
	next.Trace(fmt.Sprintf("router: intent %s validated", intent))

	tc, shimmed, err := deriveTimeContext(cmd)
	if err != nil {
		return nil, err
	}
	if shimmed {
		next.Trace(fmt.Sprintf("router: WINDOW/%s reclassified as RELATIVE (relative-window synonym)", tc.Value))
	}
	if tc.Confidence == temporal.ConfidenceInferred && cmd.Payload.Time == nil {
		next.Trace(fmt.Sprintf("router: no time in command, defaulting to %s", tc))
	} else {
		next.Trace(fmt.Sprintf("router: time context %s", tc))
	}
	next.TimeContext = tc
	return next, nil
}

// deriveTimeContext normalizes the payload time field into a TimeContext.
// One compatibility shim exists for imprecise upstream output: WINDOW with a
// LAST_* value is reclassified as RELATIVE. Everything else is validated
// strictly against the per-type vocabulary.
func deriveTimeContext(cmd *command.Command) (*temporal.TimeContext, bool, error) {
	spec := cmd.Payload.Time
	if spec == nil {
		return temporal.Default(), false, nil
	}

	ctype := temporal.ContextType(strings.ToUpper(strings.TrimSpace(spec.Type)))
	value := strings.ToUpper(strings.TrimSpace(spec.Value))
	confidence := temporal.Confidence(strings.ToUpper(strings.TrimSpace(spec.Confidence)))
	if confidence == "" {
		confidence = temporal.ConfidenceExplicit
	}
	if confidence != temporal.ConfidenceExplicit && confidence != temporal.ConfidenceInferred {
		return nil, false, fmt.Errorf("router: unknown time confidence %q", spec.Confidence)
	}

	shimmed := false
	if ctype == temporal.TypeWindow && strings.HasPrefix(value, "LAST_") {
		ctype = temporal.TypeRelative
		shimmed = true
	}

	switch ctype {
	case temporal.TypeAbsolute:
		if value == "" {
			return nil, false, fmt.Errorf("router: ABSOLUTE time requires a value")
		}
	case temporal.TypeRelative, temporal.TypeWindow, temporal.TypeAnchor:
		if !temporal.Vocabulary[ctype][value] {
			return nil, false, fmt.Errorf("router: value %q not in %s vocabulary", value, ctype)
		}
	default:
		return nil, false, fmt.Errorf("router: unknown time type %q", spec.Type)
	}

	return &temporal.TimeContext{Type: ctype, Value: value, Confidence: confidence}, shimmed, nil
}
