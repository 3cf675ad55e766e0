package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equity-screener/internal/strategy/engine"
	"equity-screener/pkg/types"
)

func sampleReport() *engine.RunReport {
	return &engine.RunReport{
		RunID:    "run-1",
		Strategy: types.StrategyBullishZone,
		Exchange: types.ExchangeNSE,
		Results: []*types.SignalResult{
			{Symbol: "TCS", ClosePrice: 3500, Strength: 2, Support: 3200, DistancePct: 9.4},
		},
		Stats: engine.Stats{Total: 3, Signals: 1, NoSignal: 2},
	}
}

// Test_ResultCache tests expiry and copy semantics of the memory tier
func Test_ResultCache(t *testing.T) {
	cache := NewResultCache(types.RedisConfig{}, time.Minute)
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }
	ctx := context.Background()

	_, ok := cache.Get(ctx, "missing")
	assert.False(t, ok)

	require.NoError(t, cache.Put(ctx, "k", sampleReport()))

	got, ok := cache.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "run-1", got.RunID)
	require.Len(t, got.Results, 1)
	assert.Equal(t, "TCS", got.Results[0].Symbol)
	assert.Equal(t, 2, got.Stats.NoSignal)

	got.Results[0].Symbol = "MUTATED"
	again, _ := cache.Get(ctx, "k")
	assert.Equal(t, "TCS", again.Results[0].Symbol)

	now = now.Add(2 * time.Minute)
	_, ok = cache.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, 1, cache.Sweep())
	assert.Equal(t, 0, cache.Stats()["memory_entries"])
}

// Test_ResultCache_RedisUnavailable tests fallback to memory mode
func Test_ResultCache_RedisUnavailable(t *testing.T) {
	cache := NewResultCache(types.RedisConfig{URL: "127.0.0.1:1"}, 0)
	defer cache.Close()

	assert.False(t, cache.useRedis)
	assert.Equal(t, DefaultResultTTL, cache.ttl)
	require.NoError(t, cache.Put(context.Background(), "k", sampleReport()))
	_, ok := cache.Get(context.Background(), "k")
	assert.True(t, ok)
}

// Test_ResultKey tests that keys ignore symbol order
func Test_ResultKey(t *testing.T) {
	a := types.AnalysisRequest{Strategy: types.StrategyVolumeProfile, Exchange: types.ExchangeNSE, Symbols: []string{"1", "2", "3"}}
	b := types.AnalysisRequest{Strategy: types.StrategyVolumeProfile, Exchange: types.ExchangeNSE, Symbols: []string{"3", " 1", "2"}}
	assert.Equal(t, ResultKey(a), ResultKey(b))

	c := a
	c.Exchange = types.ExchangeBSE
	assert.NotEqual(t, ResultKey(a), ResultKey(c))

	d := types.AnalysisRequest{Strategy: types.StrategyPriceMovement, Exchange: types.ExchangeNSE, Symbols: a.Symbols,
		PriceMovement: &types.PriceMovementParams{DurationDays: 30, TargetPercentage: 10, Direction: types.DirectionUp}}
	e := d
	e.PriceMovement = &types.PriceMovementParams{DurationDays: 30, TargetPercentage: 15, Direction: types.DirectionUp}
	assert.NotEqual(t, ResultKey(d), ResultKey(e))
	assert.Contains(t, ResultKey(d), "screener:result:price_movement:NSE:30:10:up:")
}
