// Package pipeline wires the deterministic nodes into the fixed execution
// graph and drives a full request turn: interpret, execute, synthesize. The
// graph topology depends only on the routed intent, never on data values.
package pipeline

import (
	"context"
	"fmt"

	"k9/internal/analyst"
	"k9/internal/command"
	"k9/internal/dataset"
	"k9/internal/engine"
	"k9/internal/logging"
	"k9/internal/metrics"
	"k9/internal/narrative"
	"k9/internal/ontology"
	"k9/internal/operational"
	"k9/internal/proactive"
	"k9/internal/router"
	"k9/internal/state"
)

// Graph executes one validated command through the node sequence its intent
// prescribes.
type Graph struct {
	engine   *engine.Engine
	ontology *ontology.Catalog
	scenario string
	log      *logging.Logger
}

// NewGraph builds the graph over a dataset store and an ontology catalog
// directory. scenario, when non-empty, activates the named what-if overlay
// for every run.
func NewGraph(store *dataset.Store, ontologyDir, scenario string) *Graph {
	return &Graph{
		engine:   engine.New(store),
		ontology: ontology.NewCatalog(ontologyDir),
		scenario: scenario,
		log:      logging.Get(logging.CategoryOrchestrator),
	}
}

// Execute routes the state and runs the intent's node sequence. Composite
// commands are routed but not executed here; the session executor unrolls
// them. Contract violations from any node abort the run.
func (g *Graph) Execute(ctx context.Context, st *state.State) (*state.State, error) {
	st, err := router.Run(st)
	if err != nil {
		return nil, err
	}
	if st.Deferred {
		return st, nil
	}
	if g.scenario != "" {
		st.ActiveScenario = g.scenario
	}

	intent := st.Intent()
	g.log.Info("executing graph for intent %s", intent)

	switch intent {
	case command.IntentGreeting, command.IntentSystem:
		// no data nodes; the narrative scaffold carries what to say

	case command.IntentOntology:
		st, err = g.ontology.Run(st)
		if err != nil {
			return nil, err
		}

	case command.IntentOperational:
		st, err = g.engine.Run(ctx, st)
		if err != nil {
			return nil, err
		}
		st = operational.Run(st)
		st = metrics.Run(st)

	case command.IntentAnalytical, command.IntentComparative, command.IntentTemporalRelation:
		st, err = g.engine.Run(ctx, st)
		if err != nil {
			return nil, err
		}
		st = operational.Run(st)
		st = analyst.Run(st)
		st = proactive.Run(st)
		st = metrics.Run(st)

	default:
		return nil, fmt.Errorf("no graph for intent %q", intent)
	}

	return narrative.Run(st), nil
}
