package pipeline

import (
	"context"
	"fmt"

	"k9/internal/articulation"
	"k9/internal/command"
	"k9/internal/state"
)

// ExecutePlan runs a composite command's steps sequentially. Every step gets
// its own fresh state over the same question and enrichment; steps never see
// each other's analysis. Partial results accumulate in submission order and
// the last step's state is returned for synthesis.
func (g *Graph) ExecutePlan(ctx context.Context, st *state.State) (*state.State, []articulation.PartialResult, error) {
	cmd := st.Command
	if cmd == nil || !cmd.IsComposite() {
		return nil, nil, fmt.Errorf("execute plan: command is not composite")
	}
	if len(cmd.Plan) == 0 {
		return nil, nil, fmt.Errorf("execute plan: empty plan")
	}

	partials := make([]articulation.PartialResult, 0, len(cmd.Plan))
	var last *state.State
	for i := range cmd.Plan {
		step := cmd.Plan[i]
		stepState := state.New(st.Question, &step)
		stepState.Enrichment = st.Enrichment

		g.log.Info("composite step %d/%d: intent %s", i+1, len(cmd.Plan), step.Intent)
		out, err := g.Execute(ctx, stepState)
		if err != nil {
			return nil, nil, fmt.Errorf("composite step %d: %w", i+1, err)
		}
		partials = append(partials, articulation.PartialResult{
			Step:      i + 1,
			Narrative: out.Narrative,
			Analysis:  out.Analysis,
			Reasoning: out.Reasoning,
		})
		last = out
	}
	return last, partials, nil
}

// planIntents lists a plan's intents, for tracing.
func planIntents(cmd *command.Command) []string {
	out := make([]string, len(cmd.Plan))
	for i, step := range cmd.Plan {
		out[i] = string(step.Intent)
	}
	return out
}
