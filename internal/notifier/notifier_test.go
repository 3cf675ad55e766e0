package notifier

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equity-screener/internal/strategy/engine"
	"equity-screener/pkg/types"
)

func symbols(results []*types.SignalResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Symbol
	}
	return out
}

// Test_Rank tests result ordering per strategy
func Test_Rank(t *testing.T) {
	t.Run("zone strategy uses distance as tie-break", func(t *testing.T) {
		results := []*types.SignalResult{
			{Symbol: "A", Strength: 2, DistancePct: 12},
			{Symbol: "B", Strength: 3, DistancePct: 18},
			{Symbol: "C", Strength: 2, DistancePct: 6},
			nil,
		}
		ranked := Rank(results, types.StrategyBullishZone)
		assert.Equal(t, []string{"B", "C", "A"}, symbols(ranked))
		assert.Equal(t, "A", results[0].Symbol)
	})

	t.Run("other strategies by strength", func(t *testing.T) {
		results := []*types.SignalResult{
			{Symbol: "B", Strength: 5, DistancePct: 1},
			{Symbol: "A", Strength: 5, DistancePct: 9},
			{Symbol: "C", Strength: 8},
		}
		ranked := Rank(results, types.StrategyMultiFactor)
		assert.Equal(t, []string{"C", "A", "B"}, symbols(ranked))
	})

	t.Run("top", func(t *testing.T) {
		results := []*types.SignalResult{{Symbol: "A"}, {Symbol: "B"}, {Symbol: "C"}}
		assert.Len(t, Top(results, 2), 2)
		assert.Len(t, Top(results, 0), 3)
		assert.Len(t, Top(results, 10), 3)
	})
}

func sampleReport() *engine.RunReport {
	return &engine.RunReport{
		RunID:    "run-1",
		Strategy: types.StrategyBullishZone,
		Exchange: types.ExchangeNSE,
		Results: []*types.SignalResult{
			{Symbol: "TCS", Strategy: types.StrategyBullishZone, ClosePrice: 110, Support: 100, DistancePct: 10, RSI: 50, Touches: 1, Strength: 1, Trend: types.ZoneTrendBullish},
			{Symbol: "INFY", Strategy: types.StrategyBullishZone, ClosePrice: 220, Support: 200, DistancePct: 10, RSI: 55, Touches: 3, Strength: 3, Trend: types.ZoneTrendBullish},
		},
		Stats:     engine.Stats{Total: 5, Signals: 2, NoSignal: 3},
		StartedAt: time.Date(2024, 1, 2, 9, 15, 0, 0, time.UTC),
		Duration:  1500 * time.Millisecond,
	}
}

// Test_ConsoleNotifier tests the console table
func Test_ConsoleNotifier(t *testing.T) {
	var buf bytes.Buffer
	cn := NewWriterNotifier(&buf)

	require.NoError(t, cn.SendReport(sampleReport(), 1))
	out := buf.String()
	assert.Contains(t, out, "Support")
	assert.Contains(t, out, "INFY")
	assert.NotContains(t, out, "TCS")
	assert.Contains(t, out, "信号2")

	buf.Reset()
	empty := sampleReport()
	empty.Results = nil
	require.NoError(t, cn.SendReport(empty, 10))
	assert.Contains(t, buf.String(), "未发现符合条件的标的")

	buf.Reset()
	pm := &engine.RunReport{
		Strategy: types.StrategyPriceMovement,
		Results: []*types.SignalResult{
			{Symbol: "SBIN", StartPrice: 100, ClosePrice: 112, PercentageChange: 12, VolumeTrend: types.VolumeTrendIncreasing},
		},
	}
	require.NoError(t, cn.SendReport(pm, 0))
	assert.Contains(t, buf.String(), "+12.00")
	assert.Contains(t, buf.String(), "Increasing")
}

// Test_DingTalkNotifier tests webhook delivery and fallback
func Test_DingTalkNotifier(t *testing.T) {
	t.Run("signed delivery", func(t *testing.T) {
		var got DingTalkMessage
		var query string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			query = r.URL.RawQuery
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			_, _ = w.Write([]byte(`{"errcode":0,"errmsg":"ok"}`))
		}))
		defer srv.Close()

		var console bytes.Buffer
		dtn := NewDingTalkNotifier(srv.URL+"/robot/send?access_token=x", "secret")
		dtn.fallback = NewWriterNotifier(&console)
		dtn.now = func() time.Time { return time.UnixMilli(1700000000000) }

		require.NoError(t, dtn.SendReport(sampleReport(), 10))
		assert.Equal(t, "markdown", got.MsgType)
		require.NotNil(t, got.Markdown)
		assert.Contains(t, got.Markdown.Text, "1. INFY")
		assert.Contains(t, got.Markdown.Text, "2. TCS")
		assert.Contains(t, query, "timestamp=1700000000000")
		assert.Contains(t, query, "sign=")
		assert.Empty(t, console.String())
	})

	t.Run("api error falls back to console", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"errcode":310000,"errmsg":"sign not match"}`))
		}))
		defer srv.Close()

		var console bytes.Buffer
		dtn := NewDingTalkNotifier(srv.URL, "")
		dtn.fallback = NewWriterNotifier(&console)

		require.NoError(t, dtn.SendReport(sampleReport(), 1))
		assert.True(t, strings.Contains(console.String(), "INFY"))
	})

	t.Run("factory", func(t *testing.T) {
		_, ok := New(types.NotifierConfig{}).(*ConsoleNotifier)
		assert.True(t, ok)
		_, ok = New(types.NotifierConfig{DingTalkWebhook: "http://example.invalid"}).(*DingTalkNotifier)
		assert.True(t, ok)
	})
}
