// Package dataset loads the fixed set of named tabular files the engine
// consumes. Tables are read-only and loaded fresh per invocation; a missing
// required column is a fatal schema error at load time, never skipped.
package dataset

import "fmt"

// Canonical table names.
const (
	TableTrajectories    = "trajectories"
	TableWeeklySignals   = "weekly_signals"
	TableObservations    = "observations"
	TableObservations12s = "observations_12s"
	TableAudits          = "audits"
	TableAudits12s       = "audits_12s"
	TableProactivo       = "proactivo"
	TableScenarioMonday  = "scenario_critical_monday"
)

// Column names shared across tables.
const (
	ColWeek            = "semana"
	ColRiskID          = "riesgo_id"
	ColCriticidadMedia = "criticidad_media"
	ColRankPos         = "rank_pos"
	ColIsTop3          = "is_top3"
	ColTipoObservacion = "tipo_observacion"
	ColTipoAuditoria   = "tipo_auditoria"
	ColOrigen          = "origen"
)

// Per-risk trajectory columns follow the criticidad_<riskID>_media naming
// convention; the global aggregate column is excluded from per-risk series.
const (
	RiskColPrefix = "criticidad_"
	RiskColSuffix = "_media"
	GlobalRiskCol = "criticidad_global_media"
)

// Descriptor names one dataset file and the columns it must carry.
type Descriptor struct {
	Name     string
	File     string
	Required []string
}

// Catalog is the closed set of tables this system knows about.
var Catalog = []Descriptor{
	{
		Name:     TableTrajectories,
		File:     "stde_trayectorias_semanales.csv",
		Required: []string{ColWeek},
	},
	{
		Name:     TableWeeklySignals,
		File:     "k9_weekly_signals.csv",
		Required: []string{ColWeek, ColRiskID, ColCriticidadMedia, ColRankPos, ColIsTop3},
	},
	{
		Name:     TableObservations,
		File:     "stde_observaciones.csv",
		Required: []string{ColWeek, ColTipoObservacion},
	},
	{
		Name:     TableObservations12s,
		File:     "stde_observaciones_12s.csv",
		Required: []string{ColWeek, ColTipoObservacion},
	},
	{
		Name:     TableAudits,
		File:     "stde_auditorias.csv",
		Required: []string{ColWeek, ColTipoAuditoria, ColOrigen},
	},
	{
		Name:     TableAudits12s,
		File:     "stde_auditorias_12s.csv",
		Required: []string{ColWeek, ColTipoAuditoria},
	},
	{
		Name:     TableProactivo,
		File:     "stde_proactivo_semanal_v4_4.csv",
		Required: []string{ColWeek, ColRiskID, ColRankPos},
	},
	{
		Name:     TableScenarioMonday,
		File:     "stde_riesgos_evento_lunes_critico.csv",
		Required: []string{ColWeek, ColRiskID, ColCriticidadMedia},
	},
}

// Lookup returns the descriptor for a table name.
func Lookup(name string) (Descriptor, error) {
	for _, d := range Catalog {
		if d.Name == name {
			return d, nil
		}
	}
	return Descriptor{}, fmt.Errorf("unknown dataset %q", name)
}

// DescribeSources returns "name (file)" strings for the trace.
func DescribeSources(names ...string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		d, err := Lookup(name)
		if err != nil {
			out = append(out, name)
			continue
		}
		out = append(out, fmt.Sprintf("%s (%s)", d.Name, d.File))
	}
	return out
}
