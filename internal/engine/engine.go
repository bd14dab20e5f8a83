// Package engine converts on-disk tabular datasets into the engine facts
// structure, honoring the data-slice contract. No judgment, no thresholds,
// no narrative: facts in, facts out.
package engine

import (
	"context"
	"fmt"
	"sort"

	"k9/internal/dataset"
	"k9/internal/state"
	"k9/internal/temporal"
)

// Engine loads datasets fresh per invocation. Datasets are read-only; the
// engine never writes anything back.
type Engine struct {
	store *dataset.Store
}

// New returns an engine over the given dataset store.
func New(store *dataset.Store) *Engine {
	return &Engine{store: store}
}

// Run produces the engine facts for one request. This is the only place in
// the normal flow where a TimeContext is converted into a DataSlice; every
// downstream node treats the slice as already resolved.
func (e *Engine) Run(ctx context.Context, st *state.State) (*state.State, error) {
	next := st.Clone()

	names := []string{
		dataset.TableTrajectories,
		dataset.TableWeeklySignals,
		dataset.TableObservations,
		dataset.TableAudits,
		dataset.TableAudits12s,
		dataset.TableProactivo,
	}
	var scenarioTable string
	if next.ActiveScenario != "" {
		name, err := dataset.ScenarioTable(next.ActiveScenario)
		if err != nil {
			return nil, fmt.Errorf("engine: %w", err)
		}
		scenarioTable = name
		names = append(names, name)
	}

	tables, err := e.store.LoadAll(ctx, names...)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	trajectories := tables[dataset.TableTrajectories]

	periods := trajectories.DistinctSorted(dataset.ColWeek)
	total := len(periods)
	if total == 0 {
		return nil, fmt.Errorf("engine: trajectories dataset has no periods")
	}
	meta := temporal.DatasetTimeMetadata{
		MinPeriod:    periods[0],
		MaxPeriod:    periods[total-1],
		Granularity:  "weekly",
		TotalPeriods: total,
	}

	slice := next.DataSlice
	if slice == nil {
		slice, err = temporal.Resolve(next.TimeContext, meta)
		if err != nil {
			return nil, fmt.Errorf("engine: resolving time context: %w", err)
		}
		next.DataSlice = slice
		next.Trace(fmt.Sprintf("engine: resolved %s over %d periods to %s", next.TimeContext, total, slice))
	}
	if err := slice.Check(total); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	weeks := periods
	if slice.Resolution == temporal.ResolutionIndex {
		weeks = periods[slice.Start:slice.End]
	}
	weekSet := make(map[string]bool, len(weeks))
	for _, w := range weeks {
		weekSet[w] = true
	}

	var overlay *dataset.Overlay
	if scenarioTable != "" {
		overlay, err = dataset.OverlayFromTable(next.ActiveScenario, tables[scenarioTable])
		if err != nil {
			return nil, fmt.Errorf("engine: %w", err)
		}
		next.Trace(fmt.Sprintf("engine: scenario %q overlay active, signals recomputed from overlaid series", next.ActiveScenario))
	}

	facts := &state.EngineFacts{
		Period: state.Period{
			MinWeek: weeks[0],
			MaxWeek: weeks[len(weeks)-1],
			Weeks:   weeks,
		},
		RiskTrends:   buildRiskTrends(trajectories, weeks, overlay),
		Observations: buildObservations(tables[dataset.TableObservations], weekSet),
		Audits:       buildAudits(tables[dataset.TableAudits], tables[dataset.TableAudits12s], weekSet),
		Proactivo:    buildProactivo(tables[dataset.TableProactivo], weekSet),
		Sources:      dataset.DescribeSources(names...),
	}
	if overlay != nil {
		facts.WeeklySignals = signalsFromSeries(facts.RiskTrends)
	} else {
		facts.WeeklySignals = buildWeeklySignals(tables[dataset.TableWeeklySignals], weekSet)
	}

	next.Analysis.Engine = facts
	next.Trace(fmt.Sprintf("engine: facts built for weeks %s..%s (%d risks, %d observations, %d audits)",
		facts.Period.MinWeek, facts.Period.MaxWeek, len(facts.RiskTrends), facts.Observations.Total, facts.Audits.Total))
	return next, nil
}

// ============================================================================
// FACT BLOCK BUILDERS
// ============================================================================

// buildRiskTrends assembles per-risk weekly value series over the sliced
// weeks, applying scenario overrides before the trend is computed.
func buildRiskTrends(trajectories *dataset.Table, weeks []string, overlay *dataset.Overlay) map[string]state.RiskTrend {
	byWeek := make(map[string]dataset.Row, len(trajectories.Rows))
	for _, row := range trajectories.Rows {
		week := row[dataset.ColWeek]
		if _, seen := byWeek[week]; !seen {
			byWeek[week] = row
		}
	}

	out := make(map[string]state.RiskTrend)
	for riskID, col := range trajectories.RiskColumns() {
		var seriesWeeks []string
		var values []float64
		for _, week := range weeks {
			row, ok := byWeek[week]
			if !ok {
				continue
			}
			v, ok := row.Float(col)
			if !ok {
				continue
			}
			seriesWeeks = append(seriesWeeks, week)
			values = append(values, overlay.Value(week, riskID, v))
		}
		out[riskID] = state.RiskTrend{
			Weeks:  seriesWeeks,
			Values: values,
			Trend:  trendDirection(values),
		}
	}
	return out
}

// trendDirection compares the first and last value of a series. Edge to
// edge, not a regression: intermediate points are ignored on purpose.
func trendDirection(values []float64) string {
	if len(values) < 2 {
		return state.TrendFlat
	}
	first, last := values[0], values[len(values)-1]
	switch {
	case last > first:
		return state.TrendUp
	case last < first:
		return state.TrendDown
	default:
		return state.TrendFlat
	}
}

// buildWeeklySignals aggregates the pre-computed signals table over the
// sliced weeks.
func buildWeeklySignals(signals *dataset.Table, weekSet map[string]bool) map[string]state.WeeklySignal {
	type acc struct {
		critSum float64
		critN   int
		rankSum float64
		rankN   int
		top3    int
	}
	accs := make(map[string]*acc)
	for _, row := range signals.FilterByValues(dataset.ColWeek, weekSet) {
		riskID := row[dataset.ColRiskID]
		if riskID == "" {
			continue
		}
		a := accs[riskID]
		if a == nil {
			a = &acc{}
			accs[riskID] = a
		}
		if v, ok := row.Float(dataset.ColCriticidadMedia); ok {
			a.critSum += v
			a.critN++
		}
		if v, ok := row.Float(dataset.ColRankPos); ok {
			a.rankSum += v
			a.rankN++
		}
		if row.Bool(dataset.ColIsTop3) {
			a.top3++
		}
	}

	out := make(map[string]state.WeeklySignal, len(accs))
	for riskID, a := range accs {
		sig := state.WeeklySignal{Top3Weeks: a.top3}
		if a.critN > 0 {
			sig.AvgCriticidad = a.critSum / float64(a.critN)
		}
		if a.rankN > 0 {
			sig.AvgRank = a.rankSum / float64(a.rankN)
			sig.HasRank = true
		}
		out[riskID] = sig
	}
	return out
}

// signalsFromSeries recomputes weekly signals from the (overlaid) trajectory
// series instead of the static signals table: per-week ranks by descending
// criticality, then averaged.
func signalsFromSeries(trends map[string]state.RiskTrend) map[string]state.WeeklySignal {
	type point struct {
		riskID string
		value  float64
	}
	perWeek := make(map[string][]point)
	for riskID, trend := range trends {
		for i, week := range trend.Weeks {
			perWeek[week] = append(perWeek[week], point{riskID: riskID, value: trend.Values[i]})
		}
	}

	rankSum := make(map[string]float64)
	rankN := make(map[string]int)
	top3 := make(map[string]int)
	for _, points := range perWeek {
		sort.Slice(points, func(i, j int) bool {
			if points[i].value != points[j].value {
				return points[i].value > points[j].value
			}
			return points[i].riskID < points[j].riskID
		})
		for i, p := range points {
			rank := i + 1
			rankSum[p.riskID] += float64(rank)
			rankN[p.riskID]++
			if rank <= 3 {
				top3[p.riskID]++
			}
		}
	}

	out := make(map[string]state.WeeklySignal, len(trends))
	for riskID, trend := range trends {
		sig := state.WeeklySignal{Top3Weeks: top3[riskID]}
		if len(trend.Values) > 0 {
			var sum float64
			for _, v := range trend.Values {
				sum += v
			}
			sig.AvgCriticidad = sum / float64(len(trend.Values))
		}
		if rankN[riskID] > 0 {
			sig.AvgRank = rankSum[riskID] / float64(rankN[riskID])
			sig.HasRank = true
		}
		out[riskID] = sig
	}
	return out
}

func buildObservations(observations *dataset.Table, weekSet map[string]bool) state.ObservationSummary {
	summary := state.ObservationSummary{ByType: make(map[string]int)}
	for _, row := range observations.FilterByValues(dataset.ColWeek, weekSet) {
		summary.Total++
		if tipo := row[dataset.ColTipoObservacion]; tipo != "" {
			summary.ByType[tipo]++
		}
	}
	return summary
}

func buildAudits(audits, audits12s *dataset.Table, weekSet map[string]bool) state.AuditSummary {
	summary := state.AuditSummary{
		ByTipo:   make(map[string]int),
		ByOrigen: make(map[string]int),
	}
	for _, row := range audits.FilterByValues(dataset.ColWeek, weekSet) {
		summary.Total++
		if tipo := row[dataset.ColTipoAuditoria]; tipo != "" {
			summary.ByTipo[tipo]++
		}
		if origen := row[dataset.ColOrigen]; origen != "" {
			summary.ByOrigen[origen]++
		}
	}

	// The accumulated series always spans the trailing 12-week table,
	// independent of the slice.
	counts := make(map[string]int)
	for _, row := range audits12s.Rows {
		if week := row[dataset.ColWeek]; week != "" {
			counts[week]++
		}
	}
	running := 0
	for _, week := range audits12s.DistinctSorted(dataset.ColWeek) {
		running += counts[week]
		summary.Accumulated12w = append(summary.Accumulated12w, state.AuditWeekCount{Week: week, Count: running})
	}
	return summary
}

func buildProactivo(proactivo *dataset.Table, weekSet map[string]bool) map[string]state.ProactiveRank {
	rankSum := make(map[string]float64)
	weeksN := make(map[string]int)
	for _, row := range proactivo.FilterByValues(dataset.ColWeek, weekSet) {
		riskID := row[dataset.ColRiskID]
		rank, ok := row.Float(dataset.ColRankPos)
		if riskID == "" || !ok {
			continue
		}
		rankSum[riskID] += rank
		weeksN[riskID]++
	}
	out := make(map[string]state.ProactiveRank, len(rankSum))
	for riskID, sum := range rankSum {
		out[riskID] = state.ProactiveRank{
			AvgRank: sum / float64(weeksN[riskID]),
			Weeks:   weeksN[riskID],
		}
	}
	return out
}
