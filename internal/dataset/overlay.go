package dataset

import "fmt"

// Scenario names accepted by the engine.
const ScenarioCriticalMonday = "critical_monday"

// Overlay holds per-week per-risk criticality overrides for a hypothetical
// scenario. Source data is never mutated; the engine merges these values
// into the trajectory series before any trend or signal computation.
type Overlay struct {
	Scenario  string
	Overrides map[string]map[string]float64 // week -> riskID -> value
}

// OverlayFromTable builds an overlay from a loaded scenario table.
func OverlayFromTable(scenario string, t *Table) (*Overlay, error) {
	overlay := &Overlay{
		Scenario:  scenario,
		Overrides: make(map[string]map[string]float64),
	}
	for i, row := range t.Rows {
		week := row[ColWeek]
		riskID := row[ColRiskID]
		value, ok := row.Float(ColCriticidadMedia)
		if week == "" || riskID == "" || !ok {
			return nil, fmt.Errorf("scenario row %d of %s is incomplete", i, t.Name)
		}
		if overlay.Overrides[week] == nil {
			overlay.Overrides[week] = make(map[string]float64)
		}
		overlay.Overrides[week][riskID] = value
	}
	return overlay, nil
}

// Value returns the override for (week, riskID) when one exists, otherwise
// the base value unchanged.
func (o *Overlay) Value(week, riskID string, base float64) float64 {
	if o == nil {
		return base
	}
	if byRisk, ok := o.Overrides[week]; ok {
		if v, ok := byRisk[riskID]; ok {
			return v
		}
	}
	return base
}

// ScenarioTable maps an active-scenario marker to its catalog table.
func ScenarioTable(scenario string) (string, error) {
	switch scenario {
	case ScenarioCriticalMonday:
		return TableScenarioMonday, nil
	default:
		return "", fmt.Errorf("unknown scenario %q", scenario)
	}
}
