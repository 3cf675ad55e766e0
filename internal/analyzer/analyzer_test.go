package analyzer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equity-screener/internal/storage"
	"equity-screener/internal/strategy/engine"
	"equity-screener/internal/strategy/monitor"
	"equity-screener/pkg/types"
)

// risingSource returns 40 daily bars climbing 1% per bar, token "bad" fails
type risingSource struct {
	calls int64
}

func (s *risingSource) FetchHistory(_ context.Context, _, token string, _, _ time.Time, _ string) (types.Instrument, []types.Bar, error) {
	atomic.AddInt64(&s.calls, 1)
	if token == "bad" {
		return types.Instrument{}, nil, errors.New("boom")
	}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]types.Bar, 40)
	price := 100.0
	for i := range bars {
		bars[i] = types.Bar{Timestamp: start.AddDate(0, 0, i), Open: price, High: price * 1.01, Low: price * 0.99, Close: price, Volume: 1000}
		price *= 1.01
	}
	return types.Instrument{Symbol: "SYM" + token, Exchange: types.ExchangeNSE, Token: token}, bars, nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	reports []*engine.RunReport
}

func (r *recordingNotifier) SendReport(report *engine.RunReport, _ int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report)
	return nil
}

func newTestEngine(t *testing.T, src *risingSource, notify *recordingNotifier) (*AnalysisEngine, *monitor.PerformanceMonitor) {
	t.Helper()
	screen, err := engine.NewScreenEngine(src, engine.Config{MaxConcurrency: 4})
	require.NoError(t, err)
	perf := monitor.NewPerformanceMonitor()
	ae := NewAnalysisEngine(screen, types.DefaultStrategyConfig(), Options{
		Cache:    storage.NewResultCache(types.RedisConfig{}, time.Minute),
		Monitor:  perf,
		Notifier: notify,
		TopN:     10,
	})
	return ae, perf
}

func movementRequest(symbols ...string) types.AnalysisRequest {
	return types.AnalysisRequest{
		Strategy: "Custom Price Movement",
		Exchange: "nse",
		Symbols:  symbols,
		PriceMovement: &types.PriceMovementParams{
			DurationDays:     20,
			TargetPercentage: 10,
			Direction:        types.DirectionUp,
		},
	}
}

// Test_Normalize tests request validation
func Test_Normalize(t *testing.T) {
	req, err := Normalize(movementRequest(" 1 ", "", "2"))
	require.NoError(t, err)
	assert.Equal(t, types.StrategyPriceMovement, req.Strategy)
	assert.Equal(t, types.ExchangeNSE, req.Exchange)
	assert.Equal(t, []string{"1", "2"}, req.Symbols)

	tests := []struct {
		name string
		req  types.AnalysisRequest
	}{
		{"unknown strategy", types.AnalysisRequest{Strategy: "momentum", Exchange: "NSE", Symbols: []string{"1"}}},
		{"unknown exchange", types.AnalysisRequest{Strategy: "bullish_zone", Exchange: "MCX", Symbols: []string{"1"}}},
		{"empty symbols", types.AnalysisRequest{Strategy: "bullish_zone", Exchange: "NSE", Symbols: []string{" "}}},
		{"missing params", types.AnalysisRequest{Strategy: "price_movement", Exchange: "NSE", Symbols: []string{"1"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.req)
			assert.True(t, types.IsConfigError(err), "got %v", err)
		})
	}

	// 非涨跌幅策略忽略多余参数
	zone := movementRequest("1")
	zone.Strategy = types.StrategyBullishZone
	req, err = Normalize(zone)
	require.NoError(t, err)
	assert.Nil(t, req.PriceMovement)
}

// Test_AnalysisEngine_Screen tests the full screening flow
func Test_AnalysisEngine_Screen(t *testing.T) {
	src := &risingSource{}
	notify := &recordingNotifier{}
	ae, perf := newTestEngine(t, src, notify)
	ctx := context.Background()

	report, err := ae.Screen(ctx, movementRequest("1", "2", "bad"))
	require.NoError(t, err)
	assert.Equal(t, 3, report.Stats.Total)
	assert.Equal(t, 2, report.Stats.Signals)
	assert.Equal(t, 1, report.Stats.Failed)
	require.Len(t, report.Results, 2)
	for _, r := range report.Results {
		assert.Equal(t, types.StrategyPriceMovement, r.Strategy)
		assert.Greater(t, r.PercentageChange, 10.0)
	}
	assert.Equal(t, int64(3), atomic.LoadInt64(&src.calls))

	// 相同请求（顺序不同）命中缓存
	again, err := ae.Screen(ctx, movementRequest("bad", "2", "1"))
	require.NoError(t, err)
	assert.Equal(t, report.RunID, again.RunID)
	assert.Equal(t, int64(3), atomic.LoadInt64(&src.calls))

	assert.Len(t, notify.reports, 2)
	m := perf.GetMetrics()
	assert.Equal(t, int64(1), m.TotalRuns)
	assert.Equal(t, int64(2), m.TotalSignals)

	// 参数不同则重新筛选
	other := movementRequest("1", "2", "bad")
	other.PriceMovement.TargetPercentage = 50
	report, err = ae.Screen(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Stats.Signals)
	assert.Equal(t, int64(6), atomic.LoadInt64(&src.calls))
}

// Test_AnalysisEngine_ConfigErrors tests invalid requests
func Test_AnalysisEngine_ConfigErrors(t *testing.T) {
	src := &risingSource{}
	ae, _ := newTestEngine(t, src, &recordingNotifier{})

	_, err := ae.Screen(context.Background(), types.AnalysisRequest{Strategy: "price_movement", Exchange: "NSE", Symbols: []string{"1"}})
	assert.True(t, types.IsConfigError(err))
	assert.Equal(t, int64(0), atomic.LoadInt64(&src.calls))
}

// Test_AnalysisEngine_Cancelled tests that cancelled runs are not cached
func Test_AnalysisEngine_Cancelled(t *testing.T) {
	src := &risingSource{}
	ae, _ := newTestEngine(t, src, &recordingNotifier{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := ae.Screen(ctx, movementRequest("1", "2"))
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Equal(t, 2, report.Stats.Skipped)

	report, err = ae.Screen(context.Background(), movementRequest("1", "2"))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Stats.Signals)
}
