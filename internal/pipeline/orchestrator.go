package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"k9/internal/articulation"
	"k9/internal/command"
	"k9/internal/graphstore"
	"k9/internal/logging"
	"k9/internal/perception"
	"k9/internal/state"
	"k9/internal/store"
)

// Fixed fallback texts. The deterministic core never writes prose into the
// analysis; these live at the orchestration boundary where text is the
// product.
const (
	msgCannotInterpret = "No pude interpretar la pregunta. Por favor reformulala con mas detalle."
)

// Result is one completed turn.
type Result struct {
	SessionID       string                        `json:"session_id"`
	Answer          string                        `json:"answer"`
	Command         *command.Command              `json:"command,omitempty"`
	State           *state.State                  `json:"state,omitempty"`
	Partials        []articulation.PartialResult  `json:"partials,omitempty"`
	Clarification   bool                          `json:"clarification,omitempty"`
	Recommendations []*graphstore.Recommendations `json:"recommendations,omitempty"`
}

// Orchestrator drives a turn end to end: interpretation through the language
// model, validation, graph execution, synthesis. Interpretation failures
// degrade to clarification; synthesis failures degrade to the structured
// payload itself. Only contract violations inside the graph surface as
// errors.
type Orchestrator struct {
	llm             perception.LLMClient
	bundle          *articulation.Bundle
	graph           *Graph
	clarifications  *logging.ClarificationLog
	sessions        *store.SessionStore
	recommendations *graphstore.Client
	log             *logging.Logger
}

// WithRecommendations attaches the graph database client. Prioritized risks
// from analytical turns get their control and cause context looked up; a nil
// client leaves turns unchanged.
func (o *Orchestrator) WithRecommendations(client *graphstore.Client) *Orchestrator {
	o.recommendations = client
	return o
}

// NewOrchestrator wires the turn driver. Sessions and clarifications may be
// nil; both degrade to no-ops.
func NewOrchestrator(llm perception.LLMClient, bundle *articulation.Bundle, graph *Graph,
	clarifications *logging.ClarificationLog, sessions *store.SessionStore) *Orchestrator {
	if bundle == nil {
		bundle = articulation.DefaultBundle()
	}
	return &Orchestrator{
		llm:            llm,
		bundle:         bundle,
		graph:          graph,
		clarifications: clarifications,
		sessions:       sessions,
		log:            logging.Get(logging.CategoryOrchestrator),
	}
}

// Answer runs one turn. enrichment carries backend-supplied historical
// records for operational queries and may be nil.
func (o *Orchestrator) Answer(ctx context.Context, sessionID, question string, enrichment map[string]any) (*Result, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	res := &Result{SessionID: sessionID}

	cmd, raw, reason := o.interpret(ctx, question)
	if cmd == nil {
		o.logClarification(sessionID, question, reason, nil, raw)
		res.Answer = msgCannotInterpret
		res.Clarification = true
		o.saveTurn(res, question, "")
		return res, nil
	}
	res.Command = cmd

	if cmd.IsClarification() {
		options := make([]string, len(cmd.Options))
		for i, opt := range cmd.Options {
			options[i] = opt.Label
		}
		o.logClarification(sessionID, question, cmd.Reason, options, raw)
		res.Answer = renderClarification(cmd)
		res.Clarification = true
		o.saveTurn(res, question, raw)
		return res, nil
	}

	st := state.New(question, cmd)
	st.Enrichment = enrichment

	var partials []articulation.PartialResult
	var err error
	if cmd.IsComposite() {
		o.log.WithFields("executing composite plan", map[string]any{
			"session": sessionID, "steps": planIntents(cmd),
		})
		st, partials, err = o.graph.ExecutePlan(ctx, st)
	} else {
		st, err = o.graph.Execute(ctx, st)
	}
	if err != nil {
		return nil, fmt.Errorf("executing command: %w", err)
	}
	res.State = st
	res.Partials = partials
	res.Recommendations = o.lookupRecommendations(ctx, st)

	res.Answer = o.synthesize(ctx, st, partials)
	st.FinalAnswer = res.Answer
	o.saveTurn(res, question, raw)
	return res, nil
}

// interpret asks the model for a canonical command and parses it
// fail-closed. A nil command means interpretation failed; reason says why.
func (o *Orchestrator) interpret(ctx context.Context, question string) (*command.Command, string, string) {
	prompt := articulation.RenderInterpretPrompt(o.bundle, question)
	out, err := o.llm.CompleteWithSystem(ctx, o.bundle.InterpretSystem, prompt)
	if err != nil {
		o.log.Error("interpretation call failed: %v", err)
		return nil, "", fmt.Sprintf("llm unavailable: %v", err)
	}

	_, raw, err := articulation.ExtractObject(out)
	if err != nil {
		o.log.Warn("no command object in model output")
		return nil, out, "no JSON object in model output"
	}
	cmd, err := command.Parse(raw)
	if err != nil {
		o.log.Warn("command rejected: %v", err)
		return nil, string(raw), err.Error()
	}
	return cmd, string(raw), ""
}

// synthesize turns the executed state into the final answer. A synthesis
// failure never loses the analysis: the structured payload itself becomes
// the answer.
func (o *Orchestrator) synthesize(ctx context.Context, st *state.State, partials []articulation.PartialResult) string {
	prompt, err := articulation.RenderSynthesisPrompt(o.bundle, st, partials)
	if err != nil {
		o.log.Error("rendering synthesis payload failed: %v", err)
		return fmt.Sprintf("reasoning trace:\n%s", strings.Join(st.Reasoning, "\n"))
	}
	answer, err := o.llm.CompleteWithSystem(ctx, o.bundle.SynthesisSystem, prompt)
	if err != nil {
		o.log.Warn("synthesis call failed, returning structured payload: %v", err)
		return prompt
	}
	return strings.TrimSpace(answer)
}

// lookupRecommendations fetches graph context for every prioritized risk.
// Best effort: an unavailable graph database yields nothing.
func (o *Orchestrator) lookupRecommendations(ctx context.Context, st *state.State) []*graphstore.Recommendations {
	if o.recommendations == nil || st == nil || st.Analysis.Analyst == nil {
		return nil
	}
	decision := st.Analysis.Analyst.PreventiveDecision
	if decision == nil {
		return nil
	}
	var out []*graphstore.Recommendations
	for _, risk := range decision.PrioritizedRisks {
		if rec := o.recommendations.Recommendations(ctx, risk.RiskID); rec != nil {
			out = append(out, rec)
		}
	}
	return out
}

func (o *Orchestrator) logClarification(sessionID, question, reason string, options []string, raw string) {
	if err := o.clarifications.Append(logging.ClarificationEvent{
		SessionID: sessionID,
		Question:  question,
		Reason:    reason,
		Options:   options,
		RawOutput: raw,
	}); err != nil {
		o.log.Warn("clarification audit append failed: %v", err)
	}
}

func (o *Orchestrator) saveTurn(res *Result, question, commandJSON string) {
	if o.sessions == nil {
		return
	}
	turn, err := o.sessions.NextTurnNumber(res.SessionID)
	if err != nil {
		o.log.Warn("turn numbering failed: %v", err)
		return
	}
	partials := make([]string, 0, len(res.Partials))
	for _, p := range res.Partials {
		if encoded, err := json.Marshal(p); err == nil {
			partials = append(partials, string(encoded))
		}
	}
	var intent string
	if res.Command != nil {
		intent = string(res.Command.Intent)
	}
	if err := o.sessions.SaveTurn(store.Turn{
		SessionID:   res.SessionID,
		TurnNumber:  turn,
		Question:    question,
		CommandJSON: commandJSON,
		Intent:      intent,
		Answer:      res.Answer,
		Partials:    partials,
	}); err != nil {
		o.log.Warn("session persistence failed: %v", err)
	}
}

// renderClarification builds the user-facing text for a clarification
// request from its structured reason and options.
func renderClarification(cmd *command.Command) string {
	var b strings.Builder
	b.WriteString(cmd.Reason)
	for i, opt := range cmd.Options {
		b.WriteString(fmt.Sprintf("\n%d. %s", i+1, opt.Label))
		if opt.Description != "" {
			b.WriteString(" - ")
			b.WriteString(opt.Description)
		}
	}
	return b.String()
}
