package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equity-screener/internal/strategy/engine"
	"equity-screener/pkg/types"
)

// Test_PerformanceMonitor tests cumulative run statistics
func Test_PerformanceMonitor(t *testing.T) {
	pm := NewPerformanceMonitor()

	pm.Record(&engine.RunReport{
		RunID:    "a",
		Strategy: types.StrategyBullishZone,
		Results: []*types.SignalResult{
			{Symbol: "X", Strength: 2},
			{Symbol: "Y", Strength: 4},
		},
		Stats:    engine.Stats{Total: 10, Signals: 2, NoSignal: 6, Failed: 2},
		Duration: 2 * time.Second,
	})
	pm.Record(&engine.RunReport{
		RunID:    "b",
		Strategy: types.StrategyBullishZone,
		Results:  []*types.SignalResult{{Symbol: "Z", Strength: 6}},
		Stats:    engine.Stats{Total: 5, Signals: 1, Insufficient: 3, Skipped: 1},
		Duration: 4 * time.Second,
	})
	pm.Record(&engine.RunReport{RunID: "c", Strategy: types.StrategyMultiFactor, Stats: engine.Stats{Total: 1, NoSignal: 1}})
	pm.Record(nil)

	m := pm.GetMetrics()
	assert.Equal(t, int64(3), m.TotalRuns)
	assert.Equal(t, int64(3), m.TotalSignals)

	zone := m.StrategyStats[types.StrategyBullishZone]
	require.NotNil(t, zone)
	assert.Equal(t, int64(2), zone.Runs)
	assert.Equal(t, int64(15), zone.Symbols)
	assert.Equal(t, int64(3), zone.Signals)
	assert.Equal(t, int64(2), zone.Failures)
	assert.Equal(t, int64(3), zone.Insufficient)
	assert.Equal(t, int64(1), zone.Skipped)
	assert.InDelta(t, 4.0, zone.AvgSignalStrength, 1e-9)
	assert.Equal(t, 3*time.Second, zone.AvgDuration)
	assert.Equal(t, "b", zone.LastRunID)

	multi := m.StrategyStats[types.StrategyMultiFactor]
	require.NotNil(t, multi)
	assert.Equal(t, 0.0, multi.AvgSignalStrength)

	// 快照与内部状态隔离
	zone.Runs = 100
	assert.Equal(t, int64(2), pm.GetMetrics().StrategyStats[types.StrategyBullishZone].Runs)

	js, err := pm.GetMetricsJSON()
	require.NoError(t, err)
	assert.Contains(t, js, `"total_runs": 3`)
}
