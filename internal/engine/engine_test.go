package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"k9/internal/dataset"
	"k9/internal/state"
	"k9/internal/temporal"
)

func fixtureDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"stde_trayectorias_semanales.csv": `semana,criticidad_R01_media,criticidad_R02_media,criticidad_global_media
2025-S09,0.30,0.50,0.40
2025-S10,0.40,0.45,0.42
2025-S11,0.55,0.40,0.47
2025-S12,0.80,0.40,0.60
`,
		"k9_weekly_signals.csv": `semana,riesgo_id,criticidad_media,rank_pos,is_top3
2025-S11,R01,0.55,2,1
2025-S11,R02,0.40,3,1
2025-S12,R01,0.80,1,1
2025-S12,R02,0.40,4,0
`,
		"stde_observaciones.csv": `semana,tipo_observacion
2025-S11,OCC
2025-S12,OCC
2025-S12,OPG
2025-S09,OPG
`,
		"stde_auditorias.csv": `semana,tipo_auditoria,origen
2025-S11,interna,planificada
2025-S12,externa,reactiva
2025-S12,interna,planificada
`,
		"stde_auditorias_12s.csv": `semana,tipo_auditoria
2025-S11,interna
2025-S12,externa
2025-S12,interna
`,
		"stde_proactivo_semanal_v4_4.csv": `semana,riesgo_id,rank_pos
2025-S11,R01,3
2025-S12,R01,3
2025-S11,R02,1
2025-S12,R02,2
`,
		"stde_riesgos_evento_lunes_critico.csv": `semana,riesgo_id,criticidad_media
2025-S12,R02,0.95
`,
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func analyticalState(tc *temporal.TimeContext) *state.State {
	st := state.New("como evolucionan los riesgos", nil)
	st.TimeContext = tc
	return st
}

func TestRunResolvesSliceAndBuildsFacts(t *testing.T) {
	eng := New(dataset.Open(fixtureDir(t)))
	st := analyticalState(&temporal.TimeContext{
		Type: temporal.TypeRelative, Value: temporal.Last2Weeks, Confidence: temporal.ConfidenceExplicit,
	})

	out, err := eng.Run(context.Background(), st)
	require.NoError(t, err)

	require.NotNil(t, out.DataSlice)
	assert.Equal(t, 2, out.DataSlice.Start)
	assert.Equal(t, 4, out.DataSlice.End)

	facts := out.Analysis.Engine
	require.NotNil(t, facts)
	assert.Equal(t, "2025-S11", facts.Period.MinWeek)
	assert.Equal(t, "2025-S12", facts.Period.MaxWeek)
	assert.Equal(t, []string{"2025-S11", "2025-S12"}, facts.Period.Weeks)

	// trends are edge-to-edge over the sliced series
	assert.Equal(t, state.TrendUp, facts.RiskTrends["R01"].Trend)
	assert.Equal(t, []float64{0.55, 0.80}, facts.RiskTrends["R01"].Values)
	assert.Equal(t, state.TrendFlat, facts.RiskTrends["R02"].Trend)

	r01 := facts.WeeklySignals["R01"]
	assert.InDelta(t, 0.675, r01.AvgCriticidad, 1e-9)
	assert.InDelta(t, 1.5, r01.AvgRank, 1e-9)
	assert.Equal(t, 2, r01.Top3Weeks)
	assert.True(t, r01.HasRank)

	assert.Equal(t, 3, facts.Observations.Total)
	assert.Equal(t, 2, facts.Observations.ByType["OCC"])
	assert.Equal(t, 1, facts.Observations.ByType["OPG"])

	assert.Equal(t, 3, facts.Audits.Total)
	assert.Equal(t, 2, facts.Audits.ByTipo["interna"])
	assert.Equal(t, 2, facts.Audits.ByOrigen["planificada"])
	require.Len(t, facts.Audits.Accumulated12w, 2)
	assert.Equal(t, state.AuditWeekCount{Week: "2025-S12", Count: 3}, facts.Audits.Accumulated12w[1])

	assert.InDelta(t, 3.0, facts.Proactivo["R01"].AvgRank, 1e-9)
	assert.Equal(t, 2, facts.Proactivo["R01"].Weeks)

	assert.NotEmpty(t, facts.Sources)
	// input state untouched
	assert.Nil(t, st.Analysis.Engine)
	assert.Nil(t, st.DataSlice)
}

func TestRunCurrentWeekSingleton(t *testing.T) {
	eng := New(dataset.Open(fixtureDir(t)))
	st := analyticalState(&temporal.TimeContext{
		Type: temporal.TypeRelative, Value: temporal.CurrentWeek, Confidence: temporal.ConfidenceInferred,
	})

	out, err := eng.Run(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, 3, out.DataSlice.Start)
	assert.Equal(t, 4, out.DataSlice.End)
	// single-point series is always flat
	assert.Equal(t, state.TrendFlat, out.Analysis.Engine.RiskTrends["R01"].Trend)
}

func TestRunNilTimeContextIsFullSlice(t *testing.T) {
	eng := New(dataset.Open(fixtureDir(t)))
	out, err := eng.Run(context.Background(), analyticalState(nil))
	require.NoError(t, err)
	assert.Equal(t, temporal.ResolutionFull, out.DataSlice.Resolution)
	assert.Len(t, out.Analysis.Engine.Period.Weeks, 4)
	assert.Equal(t, 4, out.Analysis.Engine.Observations.Total)
}

func TestRunRejectsOutOfRangeSlice(t *testing.T) {
	eng := New(dataset.Open(fixtureDir(t)))
	for _, slice := range []*temporal.DataSlice{
		temporal.IndexSlice(2, 9),
		temporal.IndexSlice(3, 3),
		temporal.IndexSlice(-1, 2),
	} {
		st := analyticalState(nil)
		st.DataSlice = slice
		_, err := eng.Run(context.Background(), st)
		assert.Error(t, err, "slice %s must be rejected, never clamped", slice)
	}
}

func TestRunUnresolvableContextIsFatal(t *testing.T) {
	eng := New(dataset.Open(fixtureDir(t)))
	st := analyticalState(&temporal.TimeContext{Type: temporal.TypeAnchor, Value: temporal.AnchorCriticalMonday})
	_, err := eng.Run(context.Background(), st)
	require.Error(t, err)
	assert.ErrorIs(t, err, temporal.ErrUnresolvable)
}

func TestScenarioOverlayRecomputesSignals(t *testing.T) {
	eng := New(dataset.Open(fixtureDir(t)))
	st := analyticalState(&temporal.TimeContext{
		Type: temporal.TypeRelative, Value: temporal.Last2Weeks, Confidence: temporal.ConfidenceExplicit,
	})
	st.ActiveScenario = dataset.ScenarioCriticalMonday

	out, err := eng.Run(context.Background(), st)
	require.NoError(t, err)
	facts := out.Analysis.Engine

	// R02's S12 value overridden 0.40 -> 0.95: trend flips to up
	assert.Equal(t, []float64{0.40, 0.95}, facts.RiskTrends["R02"].Values)
	assert.Equal(t, state.TrendUp, facts.RiskTrends["R02"].Trend)

	// ranks recomputed from the overlaid series: R02 outranks R01 in S12
	r02 := facts.WeeklySignals["R02"]
	assert.InDelta(t, 1.5, r02.AvgRank, 1e-9)
	assert.InDelta(t, 0.675, r02.AvgCriticidad, 1e-9)
	r01 := facts.WeeklySignals["R01"]
	assert.InDelta(t, 1.5, r01.AvgRank, 1e-9)
}

func TestRunMissingRequiredColumnIsFatal(t *testing.T) {
	dir := fixtureDir(t)
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "k9_weekly_signals.csv"),
		[]byte("semana,riesgo_id\n2025-S12,R01\n"), 0o644))

	_, err := New(dataset.Open(dir)).Run(context.Background(), analyticalState(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required column")
}

func TestTrendDirection(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   string
	}{
		{"rising", []float64{0.1, 0.5, 0.3}, state.TrendUp},
		{"falling", []float64{0.5, 0.9, 0.1}, state.TrendDown},
		{"flat endpoints", []float64{0.4, 0.9, 0.4}, state.TrendFlat},
		{"two points up", []float64{0.1, 0.2}, state.TrendUp},
		{"two points down", []float64{0.2, 0.1}, state.TrendDown},
		{"single point", []float64{0.7}, state.TrendFlat},
		{"empty", nil, state.TrendFlat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, trendDirection(tt.values))
		})
	}
}
