package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equity-screener/internal/strategy/signals"
	"equity-screener/pkg/types"
)

// fakeSource returns a short series per token and tracks concurrency
type fakeSource struct {
	delay    time.Duration
	failures map[string]error
	series   map[string][]types.Bar

	inFlight int64
	peak     int64
	calls    int64

	mu     sync.Mutex
	labels []string
	from   time.Time
	to     time.Time
}

func (f *fakeSource) FetchHistory(ctx context.Context, exchangeLabel, token string, from, to time.Time, _ string) (types.Instrument, []types.Bar, error) {
	atomic.AddInt64(&f.calls, 1)
	cur := atomic.AddInt64(&f.inFlight, 1)
	defer atomic.AddInt64(&f.inFlight, -1)
	for {
		peak := atomic.LoadInt64(&f.peak)
		if cur <= peak || atomic.CompareAndSwapInt64(&f.peak, peak, cur) {
			break
		}
	}

	f.mu.Lock()
	f.labels = append(f.labels, exchangeLabel)
	f.from, f.to = from, to
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return types.Instrument{}, nil, ctx.Err()
		}
	}
	if err, ok := f.failures[token]; ok {
		return types.Instrument{}, nil, err
	}
	if bars, ok := f.series[token]; ok {
		return types.Instrument{Symbol: "SYM" + token, Token: token}, bars, nil
	}
	return types.Instrument{Symbol: "SYM" + token, Token: token},
		[]types.Bar{{Timestamp: from, Close: 100, Volume: 1}}, nil
}

// stubEvaluator signals for every symbol unless told otherwise
type stubEvaluator struct {
	outcomes map[string]signals.Outcome
	panicOn  string
}

func (s *stubEvaluator) Strategy() types.Strategy { return types.StrategyMultiFactor }
func (s *stubEvaluator) HistoryDays() int         { return 365 }
func (s *stubEvaluator) MinBars() int             { return 1 }

func (s *stubEvaluator) Evaluate(inst types.Instrument, bars []types.Bar) signals.Outcome {
	if inst.Symbol == s.panicOn {
		panic("evaluator bug")
	}
	if out, ok := s.outcomes[inst.Symbol]; ok {
		return out
	}
	return signals.Outcome{
		Kind:   signals.OutcomeSignal,
		Result: &types.SignalResult{Symbol: inst.Symbol, Exchange: inst.Exchange, ClosePrice: bars[len(bars)-1].Close, Strength: 1},
	}
}

func tokens(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%d", i+1)
	}
	return out
}

func newEngine(t *testing.T, src *fakeSource, cfg Config) *ScreenEngine {
	t.Helper()
	se, err := NewScreenEngine(src, cfg)
	require.NoError(t, err)
	return se
}

// Test_ScreenEngine_PartialFailure tests failure isolation
func Test_ScreenEngine_PartialFailure(t *testing.T) {
	src := &fakeSource{failures: map[string]error{"5": errors.New("invalid token")}}
	se := newEngine(t, src, Config{})

	report, err := se.Run(context.Background(), types.ExchangeNSE, tokens(10), &stubEvaluator{})
	require.NoError(t, err)
	assert.Len(t, report.Results, 9)
	assert.Equal(t, 10, report.Stats.Total)
	assert.Equal(t, 9, report.Stats.Signals)
	assert.Equal(t, 1, report.Stats.Failed)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "5", report.Failures[0].Token)
	assert.Contains(t, report.Failures[0].Error, "invalid token")
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, types.StrategyMultiFactor, report.Strategy)

	for _, r := range report.Results {
		assert.NotEqual(t, "SYM5", r.Symbol)
		assert.Equal(t, types.ExchangeNSE, r.Exchange)
	}
}

// Test_ScreenEngine_Outcomes tests the per-outcome accounting
func Test_ScreenEngine_Outcomes(t *testing.T) {
	src := &fakeSource{}
	se := newEngine(t, src, Config{MaxConcurrency: 4})
	ev := &stubEvaluator{
		outcomes: map[string]signals.Outcome{
			"SYM1": {Kind: signals.OutcomeNoSignal, Reason: "zero strength"},
			"SYM2": {Kind: signals.OutcomeInsufficientData, Err: types.ErrInsufficientData},
			"SYM3": {Kind: signals.OutcomeFailed, Err: errors.New("bad data")},
		},
		panicOn: "SYM4",
	}

	report, err := se.Run(context.Background(), types.ExchangeBSE, tokens(6), ev)
	require.NoError(t, err)
	assert.Equal(t, Stats{Total: 6, Signals: 2, NoSignal: 1, Insufficient: 1, Failed: 2}, report.Stats)
	assert.Len(t, report.Results, 2)
	assert.Len(t, report.Failures, 2)

	for _, label := range src.labels {
		assert.Equal(t, "BSE (1)", label)
	}
}

// Test_ScreenEngine_ExchangeNormalized tests that lowercase exchanges are parsed before use
func Test_ScreenEngine_ExchangeNormalized(t *testing.T) {
	src := &fakeSource{}
	se := newEngine(t, src, Config{})

	report, err := se.Run(context.Background(), types.Exchange("bse"), []string{"1", "2"}, &stubEvaluator{})
	require.NoError(t, err)
	assert.Equal(t, types.ExchangeBSE, report.Exchange)
	require.Len(t, src.labels, 2)
	for _, label := range src.labels {
		assert.Equal(t, "BSE (1)", label)
	}
	for _, r := range report.Results {
		assert.Equal(t, types.ExchangeBSE, r.Exchange)
	}

	_, err = se.Run(context.Background(), types.Exchange("mcx"), []string{"1"}, &stubEvaluator{})
	assert.True(t, types.IsConfigError(err))
}

// Test_ScreenEngine_InvalidSeries tests that malformed series fail before evaluation
func Test_ScreenEngine_InvalidSeries(t *testing.T) {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	src := &fakeSource{series: map[string][]types.Bar{
		"1": {{Timestamp: day.AddDate(0, 0, 1), Close: 100, Volume: 1}, {Timestamp: day, Close: 101, Volume: 1}},
		"2": {{Timestamp: day, Close: 100, Volume: -5}},
		"3": {{Timestamp: day, Close: 100, Volume: 1}, {Timestamp: day.AddDate(0, 0, 1), Close: 101, Volume: 1}},
	}}
	se := newEngine(t, src, Config{})

	report, err := se.Run(context.Background(), types.ExchangeNSE, []string{"1", "2", "3"}, &stubEvaluator{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Stats.Signals)
	assert.Equal(t, 2, report.Stats.Failed)
	require.Len(t, report.Results, 1)
	assert.Equal(t, "SYM3", report.Results[0].Symbol)
	for _, f := range report.Failures {
		assert.Contains(t, f.Error, "invalid series")
	}
}

// Test_ScreenEngine_ConcurrencyBound tests the worker pool size
func Test_ScreenEngine_ConcurrencyBound(t *testing.T) {
	src := &fakeSource{delay: 20 * time.Millisecond}
	se := newEngine(t, src, Config{MaxConcurrency: 3})

	report, err := se.Run(context.Background(), types.ExchangeNSE, tokens(15), &stubEvaluator{})
	require.NoError(t, err)
	assert.Len(t, report.Results, 15)
	assert.LessOrEqual(t, atomic.LoadInt64(&src.peak), int64(3))
	assert.Greater(t, atomic.LoadInt64(&src.peak), int64(1))
}

// Test_ScreenEngine_Batches tests batch partitioning
func Test_ScreenEngine_Batches(t *testing.T) {
	src := &fakeSource{delay: 10 * time.Millisecond}
	se := newEngine(t, src, Config{MaxConcurrency: 50, BatchSize: 4})

	report, err := se.Run(context.Background(), types.ExchangeNSE, tokens(10), &stubEvaluator{})
	require.NoError(t, err)
	assert.Len(t, report.Results, 10)
	assert.LessOrEqual(t, atomic.LoadInt64(&src.peak), int64(4))

	assert.Equal(t, [][]string{{"1", "2", "3", "4"}, {"5", "6", "7", "8"}, {"9", "10"}}, partition(tokens(10), 4))
	assert.Equal(t, [][]string{tokens(3)}, partition(tokens(3), 0))
}

// Test_ScreenEngine_HistoryWindow tests the requested date range
func Test_ScreenEngine_HistoryWindow(t *testing.T) {
	src := &fakeSource{}
	se := newEngine(t, src, Config{})
	fixed := time.Date(2024, 6, 30, 18, 0, 0, 0, time.UTC)
	se.now = func() time.Time { return fixed }

	_, err := se.Run(context.Background(), types.ExchangeNSE, []string{"1"}, &stubEvaluator{})
	require.NoError(t, err)
	assert.True(t, src.to.Equal(fixed))
	assert.True(t, src.from.Equal(fixed.AddDate(0, 0, -365)))
}

// Test_ScreenEngine_Dedupe tests duplicate and blank symbols
func Test_ScreenEngine_Dedupe(t *testing.T) {
	src := &fakeSource{}
	se := newEngine(t, src, Config{})

	report, err := se.Run(context.Background(), types.ExchangeNSE, []string{"1", " 1", "2", "", "2"}, &stubEvaluator{})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Stats.Total)
	assert.Equal(t, int64(2), atomic.LoadInt64(&src.calls))
}

// Test_ScreenEngine_Cancellation tests partial reports on cancellation
func Test_ScreenEngine_Cancellation(t *testing.T) {
	t.Run("Cancelled before start", func(t *testing.T) {
		src := &fakeSource{}
		se := newEngine(t, src, Config{BatchSize: 3})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		report, err := se.Run(ctx, types.ExchangeNSE, tokens(7), &stubEvaluator{})
		assert.ErrorIs(t, err, context.Canceled)
		require.NotNil(t, report)
		assert.Equal(t, 7, report.Stats.Skipped)
		assert.Empty(t, report.Results)
		assert.Equal(t, int64(0), atomic.LoadInt64(&src.calls))
	})

	t.Run("Cancelled mid-run", func(t *testing.T) {
		src := &fakeSource{delay: 200 * time.Millisecond}
		se := newEngine(t, src, Config{MaxConcurrency: 2})
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		report, err := se.Run(ctx, types.ExchangeNSE, tokens(10), &stubEvaluator{})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		require.NotNil(t, report)
		assert.Equal(t, 10, report.Stats.Skipped+report.Stats.Signals+report.Stats.Failed)
		assert.Equal(t, 10, report.Stats.Skipped)
	})
}

// Test_ScreenEngine_Config tests configuration errors
func Test_ScreenEngine_Config(t *testing.T) {
	_, err := NewScreenEngine(nil, Config{})
	assert.True(t, types.IsConfigError(err))

	_, err = NewScreenEngine(&fakeSource{}, Config{MaxConcurrency: -1})
	assert.True(t, types.IsConfigError(err))

	se := newEngine(t, &fakeSource{}, Config{})
	assert.Equal(t, DefaultMaxConcurrency, se.config.MaxConcurrency)
	assert.Equal(t, "D", se.config.Interval)

	_, err = se.Run(context.Background(), types.ExchangeNSE, nil, &stubEvaluator{})
	assert.True(t, types.IsConfigError(err))

	_, err = se.Run(context.Background(), "LSE", tokens(1), &stubEvaluator{})
	assert.True(t, types.IsConfigError(err))

	_, err = se.Run(context.Background(), types.ExchangeNSE, tokens(1), nil)
	assert.True(t, types.IsConfigError(err))
}
