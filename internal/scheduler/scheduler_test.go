package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equity-screener/internal/strategy/database"
	"equity-screener/internal/strategy/engine"
	"equity-screener/pkg/types"
)

type fakeScreener struct {
	mu       sync.Mutex
	requests []types.AnalysisRequest
}

func (f *fakeScreener) Screen(_ context.Context, req types.AnalysisRequest) (*engine.RunReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return &engine.RunReport{Strategy: req.Strategy, Exchange: req.Exchange}, nil
}

func newTestScheduler() (*Scheduler, *fakeScreener) {
	screener := &fakeScreener{}
	universe := database.NewStaticUniverse(map[string]map[string][]string{
		"nse": {"nifty 50": {"2885", "11536"}},
	})
	defaults := types.PriceMovementParams{DurationDays: 30, TargetPercentage: 10, Direction: types.DirectionUp}
	return NewScheduler(screener, universe, defaults), screener
}

// Test_Scheduler_Register tests job validation
func Test_Scheduler_Register(t *testing.T) {
	tests := []struct {
		name    string
		job     types.ScheduledJob
		wantErr bool
	}{
		{"valid", types.ScheduledJob{Cron: "30 16 * * 1-5", Exchange: "NSE", List: "NIFTY 50", Strategy: "bullish"}, false},
		{"bad cron", types.ScheduledJob{Cron: "every day", Exchange: "NSE", List: "NIFTY 50", Strategy: "bullish"}, true},
		{"bad strategy", types.ScheduledJob{Cron: "0 16 * * *", Exchange: "NSE", List: "NIFTY 50", Strategy: "momentum"}, true},
		{"bad exchange", types.ScheduledJob{Cron: "0 16 * * *", Exchange: "LSE", List: "NIFTY 50", Strategy: "bullish"}, true},
		{"no list", types.ScheduledJob{Cron: "0 16 * * *", Exchange: "NSE", Strategy: "bullish"}, true},
		{"bad params", types.ScheduledJob{Cron: "0 16 * * *", Exchange: "NSE", List: "x", Strategy: "price_movement",
			Params: &types.PriceMovementParams{DurationDays: 0, TargetPercentage: 5, Direction: types.DirectionUp}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestScheduler()
			err := s.Register([]types.ScheduledJob{tt.job})
			if tt.wantErr {
				assert.True(t, types.IsConfigError(err), "got %v", err)
				return
			}
			assert.NoError(t, err)
			assert.Len(t, s.cron.Entries(), 1)
		})
	}
}

// Test_Scheduler_RunJob tests list resolution and request building
func Test_Scheduler_RunJob(t *testing.T) {
	s, screener := newTestScheduler()
	ctx := context.Background()

	_, err := s.RunJob(ctx, types.ScheduledJob{Exchange: "nse", List: "Nifty 50", Strategy: "price_movement"})
	require.NoError(t, err)

	_, err = s.RunJob(ctx, types.ScheduledJob{Exchange: "nse", List: "nifty 50", Strategy: "price_movement",
		Params: &types.PriceMovementParams{DurationDays: 5, TargetPercentage: 3, Direction: types.DirectionDown}})
	require.NoError(t, err)

	_, err = s.RunJob(ctx, types.ScheduledJob{Exchange: "nse", List: "missing", Strategy: "bullish"})
	assert.ErrorIs(t, err, database.ErrNotFound)

	require.Len(t, screener.requests, 2)
	first := screener.requests[0]
	assert.Equal(t, types.StrategyPriceMovement, first.Strategy)
	assert.Equal(t, []string{"2885", "11536"}, first.Symbols)
	require.NotNil(t, first.PriceMovement)
	assert.Equal(t, 30, first.PriceMovement.DurationDays)
	assert.Equal(t, types.DirectionDown, screener.requests[1].PriceMovement.Direction)
}

// Test_Scheduler_RunNow tests immediate execution and shutdown
func Test_Scheduler_RunNow(t *testing.T) {
	s, screener := newTestScheduler()
	require.NoError(t, s.Register([]types.ScheduledJob{
		{Name: "close", Cron: "30 16 * * 1-5", Exchange: "NSE", List: "nifty 50", Strategy: "multi_factor"},
		{Cron: "0 9 * * 1", Exchange: "NSE", List: "nifty 50", Strategy: "bearish"},
	}))

	s.RunNow(context.Background())
	require.Len(t, screener.requests, 2)
	assert.Equal(t, types.StrategyMultiFactor, screener.requests[0].Strategy)
	assert.Equal(t, types.StrategyBearishZone, screener.requests[1].Strategy)
	assert.Equal(t, "job-2", s.jobs[1].config.Name)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
