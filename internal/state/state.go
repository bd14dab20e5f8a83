// Package state defines the immutable value threaded through every pipeline
// node. A node never mutates the state it receives: it clones, writes the one
// analysis field it owns, appends its reasoning lines, and returns the clone.
// When a node's preconditions are unmet it returns the clone changed only by
// a single skip line.
package state

import (
	"k9/internal/command"
	"k9/internal/temporal"
)

// Trend directions computed by the data engine.
const (
	TrendUp   = "up"
	TrendDown = "down"
	TrendFlat = "flat"
)

// Cognitive trajectory labels derived by the analyst.
const (
	TrajectoryDegrading = "degrading"
	TrajectoryImproving = "improving"
	TrajectoryStable    = "stable"
)

// Analysis modes.
const (
	ModeEvidenceBased = "evidence_based"
	ModeStructural    = "structural"
)

// Alignment statuses for the proactive-model comparison.
const (
	AlignmentAligned        = "aligned"
	AlignmentUnderestimated = "underestimated_by_proactive"
	AlignmentOverestimated  = "overestimated_by_proactive"
	AlignmentInconclusive   = "inconclusive"
)

// Preventive-decision scenarios.
const (
	ScenarioProactiveUnderestimation = "proactive_underestimation"
	ScenarioPreventiveWatch          = "preventive_watch"
)

// ============================================================================
// ENGINE FACTS
// ============================================================================

// Period summarizes the sliced week range.
type Period struct {
	MinWeek string   `json:"min_week"`
	MaxWeek string   `json:"max_week"`
	Weeks   []string `json:"weeks"`
}

// RiskTrend is one risk's weekly criticality series plus its edge-to-edge
// trend direction.
type RiskTrend struct {
	Weeks  []string  `json:"weeks"`
	Values []float64 `json:"values"`
	Trend  string    `json:"trend"`
}

// WeeklySignal aggregates one risk's signals over the sliced weeks.
type WeeklySignal struct {
	AvgCriticidad float64 `json:"avg_criticidad"`
	AvgRank       float64 `json:"avg_rank"`
	HasRank       bool    `json:"has_rank"`
	Top3Weeks     int     `json:"top3_weeks"`
}

// ObservationSummary counts sliced observations by type.
type ObservationSummary struct {
	Total  int            `json:"total"`
	ByType map[string]int `json:"by_type"`
}

// AuditWeekCount is one point of the 12-week accumulated audit series.
type AuditWeekCount struct {
	Week  string `json:"week"`
	Count int    `json:"count"`
}

// AuditSummary counts audits by type and origin.
type AuditSummary struct {
	Total          int              `json:"total"`
	ByTipo         map[string]int   `json:"by_tipo"`
	ByOrigen       map[string]int   `json:"by_origen"`
	Accumulated12w []AuditWeekCount `json:"accumulated_12w"`
}

// ProactiveRank is the externally supplied per-risk ranking. Never
// recomputed here, only compared.
type ProactiveRank struct {
	AvgRank float64 `json:"avg_rank"`
	Weeks   int     `json:"weeks"`
}

// EngineFacts is the fact table produced once per invocation by the data
// engine. Read-only to every downstream node.
type EngineFacts struct {
	Period        Period                   `json:"period"`
	RiskTrends    map[string]RiskTrend     `json:"risk_trends"`
	WeeklySignals map[string]WeeklySignal  `json:"weekly_signals"`
	Observations  ObservationSummary       `json:"observations"`
	Audits        AuditSummary             `json:"audits"`
	Proactivo     map[string]ProactiveRank `json:"proactivo"`
	Sources       []string                 `json:"sources"`
}

// ============================================================================
// OPERATIONAL EVIDENCE
// ============================================================================

// ObservationRecord is the one normalized shape every historical enrichment
// record variant is flattened into before counting.
type ObservationRecord struct {
	ID              string `json:"id"`
	RiskID          string `json:"risk_id"`
	ControlID       string `json:"control_id"`
	AuditID         string `json:"audit_id"`
	Type            string `json:"type"`
	CriticalControl bool   `json:"critical_control"`
}

// RiskEvidence is the per-risk additive evidence bucket. Counts only; no
// judgment, no priority.
type RiskEvidence struct {
	OCCCount                 int                 `json:"occ_count"`
	OPGCount                 int                 `json:"opg_count"`
	OCCRecords               []ObservationRecord `json:"occ_records"`
	OPGRecords               []ObservationRecord `json:"opg_records"`
	ControlsAffected         []string            `json:"controls_affected"`
	CriticalControlsAffected []string            `json:"critical_controls_affected"`
}

// TraceLink ties one input record to its risk, control and audit for
// downstream drill-down.
type TraceLink struct {
	ObservationID string `json:"observation_id"`
	RiskID        string `json:"risk_id"`
	ControlID     string `json:"control_id"`
	AuditID       string `json:"audit_id"`
}

// OperationalEvidence is the operational-analysis node's contribution.
type OperationalEvidence struct {
	EvidenceByRisk map[string]*RiskEvidence `json:"evidence_by_risk"`
	Traceability   []TraceLink              `json:"traceability"`
	TotalRecords   int                      `json:"total_records"`
	RisksWithOCC   int                      `json:"risks_with_occ"`
}

// ============================================================================
// ANALYST FINDINGS
// ============================================================================

// RiskSummary names the risks the analyst singles out.
type RiskSummary struct {
	DominantRisk     string  `json:"dominant_risk"`
	DominantAvg      float64 `json:"dominant_avg"`
	RelevantRisk     string  `json:"relevant_risk"`
	RelevantAvg      float64 `json:"relevant_avg"`
	DegradingCount   int     `json:"degrading_count"`
	RisksConsidered  int     `json:"risks_considered"`
}

// EvidenceSummary condenses operational evidence for the analyst.
type EvidenceSummary struct {
	HasCriticalControlFailures bool     `json:"has_critical_control_failures"`
	SupportedRisks             []string `json:"supported_risks"`
}

// RankComparison compares the internal criticality rank against the
// proactive model's rank for one risk.
type RankComparison struct {
	K9Rank          int     `json:"k9_rank"`
	ProactiveRank   float64 `json:"proactive_rank"`
	RankDelta       float64 `json:"rank_delta"`
	AlignmentStatus string  `json:"alignment_status"`
}

// PrioritizedRisk is one entry of the preventive decision's ordered list.
type PrioritizedRisk struct {
	RiskID              string `json:"risk_id"`
	OCCCount            int    `json:"occ_count"`
	HasCriticalControls bool   `json:"has_critical_controls"`
	Underestimated      bool   `json:"underestimated_by_proactive"`
}

// DecisionBasis documents what the preventive decision was built from.
type DecisionBasis struct {
	Sources            []string `json:"sources"`
	Criteria           []string `json:"criteria"`
	UniverseConsidered []string `json:"universe_considered"`
}

// PreventiveDecision is the analyst's single decisional artifact. Its
// prioritized list stays empty unless operational evidence with at least one
// positive OCC count exists.
type PreventiveDecision struct {
	Scenario         string            `json:"scenario,omitempty"`
	PrioritizedRisks []PrioritizedRisk `json:"prioritized_risks"`
	DecisionBasis    DecisionBasis     `json:"decision_basis"`
	Recommendation   string            `json:"recommendation,omitempty"`
}

// AnalystFindings is the analyst node's contribution.
type AnalystFindings struct {
	AnalysisMode        string                     `json:"analysis_mode"`
	RiskTrajectories    map[string]string          `json:"risk_trajectories"`
	RiskSummary         *RiskSummary               `json:"risk_summary,omitempty"`
	EvidenceSummary     *EvidenceSummary           `json:"evidence_summary,omitempty"`
	ProactiveComparison map[string]*RankComparison `json:"proactive_comparison,omitempty"`
	PreventiveDecision  *PreventiveDecision        `json:"preventive_decision,omitempty"`
}

// ============================================================================
// PROACTIVE EXPLANATION, METRICS, ONTOLOGY
// ============================================================================

// ModelComparison is one structured alignment record of the proactive
// explanation branch. Codes, never prose.
type ModelComparison struct {
	RiskID          string  `json:"risk_id"`
	Role            string  `json:"role"`
	AlignmentStatus string  `json:"alignment_status"`
	RankDelta       float64 `json:"rank_delta"`
	Code            string  `json:"code"`
}

// ProactiveExplanation is the proactive-model node's contribution.
type ProactiveExplanation struct {
	Comparisons      []ModelComparison `json:"comparisons"`
	OverallAlignment string            `json:"overall_alignment"`
}

// VisualSuggestion proposes one chart or table. Rendering belongs elsewhere.
type VisualSuggestion struct {
	Kind  string   `json:"kind"`
	Name  string   `json:"name"`
	Risks []string `json:"risks,omitempty"`
}

// TimeSeries is one materialized label/value series.
type TimeSeries struct {
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
}

// Table is one materialized tabular block.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// MetricsOutput is the metrics node's contribution.
type MetricsOutput struct {
	Suggestions []VisualSuggestion    `json:"suggestions"`
	TimeSeries  map[string]TimeSeries `json:"time_series,omitempty"`
	Tables      map[string]Table      `json:"tables,omitempty"`
}

// OntologyTraceability names exactly which sources and filters produced an
// ontology result.
type OntologyTraceability struct {
	SourceFiles    []string          `json:"source_files"`
	FiltersApplied map[string]string `json:"filters_applied"`
	ResolutionPath []string          `json:"resolution_path"`
}

// OntologyResult is the ontology branch's contribution.
type OntologyResult struct {
	Entity       string               `json:"entity"`
	Operation    string               `json:"operation"`
	Data         any                  `json:"data"`
	Traceability OntologyTraceability `json:"traceability"`
}

// ============================================================================
// NARRATIVE SCAFFOLD
// ============================================================================

// Scaffold is the structured description of what should be said. It never
// contains natural-language sentences; NotesForLLM carries instructions for
// the external text generator, not content.
type Scaffold struct {
	NarrativeType   string   `json:"narrative_type"`
	NarrativeIntent string   `json:"narrative_intent"`
	ConceptualAxes  []string `json:"conceptual_axes"`
	SemanticFocus   []string `json:"semantic_focus"`
	KeyRisks        []string `json:"key_risks"`
	TemporalMarkers []string `json:"temporal_markers"`
	Comparisons     []string `json:"comparisons"`
	NotesForLLM     []string `json:"notes_for_llm"`
}

// ============================================================================
// STATE
// ============================================================================

// Analysis composes the per-node contributions. Each node writes only its
// own field; sub-records are immutable once written.
type Analysis struct {
	Engine      *EngineFacts          `json:"engine,omitempty"`
	Operational *OperationalEvidence  `json:"operational_analysis,omitempty"`
	Analyst     *AnalystFindings      `json:"analyst,omitempty"`
	Proactive   *ProactiveExplanation `json:"proactive_model,omitempty"`
	Metrics     *MetricsOutput        `json:"metrics,omitempty"`
	Ontology    *OntologyResult       `json:"ontology,omitempty"`
}

// Empty reports whether no node has contributed yet.
func (a Analysis) Empty() bool {
	return a.Engine == nil && a.Operational == nil && a.Analyst == nil &&
		a.Proactive == nil && a.Metrics == nil && a.Ontology == nil
}

// State is the value threaded through the pipeline.
type State struct {
	Question       string                `json:"question"`
	Command        *command.Command      `json:"command,omitempty"`
	Enrichment     map[string]any        `json:"enrichment,omitempty"`
	Analysis       Analysis              `json:"analysis"`
	Reasoning      []string              `json:"reasoning"`
	Narrative      *Scaffold             `json:"narrative,omitempty"`
	TimeContext    *temporal.TimeContext `json:"time_context,omitempty"`
	DataSlice      *temporal.DataSlice   `json:"data_slice,omitempty"`
	ActiveScenario string                `json:"active_scenario,omitempty"`
	Deferred       bool                  `json:"deferred,omitempty"`
	FinalAnswer    string                `json:"final_answer,omitempty"`
}

// New builds a fresh state for one request.
func New(question string, cmd *command.Command) *State {
	return &State{Question: question, Command: cmd}
}

// Clone returns a copy safe to extend. The reasoning slice gets its own
// backing array; analysis sub-records are shared because they are never
// mutated after being written.
func (s *State) Clone() *State {
	next := *s
	next.Reasoning = make([]string, len(s.Reasoning), len(s.Reasoning)+4)
	copy(next.Reasoning, s.Reasoning)
	return &next
}

// Trace appends one reasoning line.
func (s *State) Trace(line string) {
	s.Reasoning = append(s.Reasoning, line)
}

// Intent returns the command intent, or "" when no command is set.
func (s *State) Intent() command.Intent {
	if s.Command == nil {
		return ""
	}
	return s.Command.Intent
}
