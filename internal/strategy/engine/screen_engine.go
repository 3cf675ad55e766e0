package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"equity-screener/internal/strategy/fetcher"
	"equity-screener/internal/strategy/signals"
	"equity-screener/pkg/types"
)

// DefaultMaxConcurrency 默认并发上限
const DefaultMaxConcurrency = 50

// Config 引擎配置
type Config struct {
	MaxConcurrency int    // 同时进行的 获取+评估 任务上限
	BatchSize      int    // 每批标的数量，0 表示不分批
	Interval       string // K线周期
}

// Stats 单次运行统计
type Stats struct {
	Total        int `json:"total"`
	Signals      int `json:"signals"`
	NoSignal     int `json:"no_signal"`
	Insufficient int `json:"insufficient"`
	Failed       int `json:"failed"`
	Skipped      int `json:"skipped"` // 取消后未处理的标的
}

// Failure 单个标的失败记录
type Failure struct {
	Token  string `json:"token"`
	Symbol string `json:"symbol"`
	Error  string `json:"error"`
}

// RunReport 单次运行结果，Results 按完成顺序排列
type RunReport struct {
	RunID     string                `json:"run_id"`
	Strategy  types.Strategy        `json:"strategy"`
	Exchange  types.Exchange        `json:"exchange"`
	Results   []*types.SignalResult `json:"results"`
	Stats     Stats                 `json:"stats"`
	Failures  []Failure             `json:"failures,omitempty"`
	StartedAt time.Time             `json:"started_at"`
	Duration  time.Duration         `json:"duration"`
}

// ScreenEngine 有界并发的批量筛选引擎
type ScreenEngine struct {
	source fetcher.HistorySource
	config Config
	now    func() time.Time
}

// taskResult 单个标的的处理结果
type taskResult struct {
	token   string
	symbol  string
	outcome signals.Outcome
	skipped bool
}

// NewScreenEngine 创建筛选引擎
func NewScreenEngine(source fetcher.HistorySource, config Config) (*ScreenEngine, error) {
	if source == nil {
		return nil, &types.ConfigError{Field: "source", Reason: "history source is required"}
	}
	if config.MaxConcurrency < 0 {
		return nil, &types.ConfigError{Field: "max_concurrency", Reason: "must not be negative"}
	}
	if config.BatchSize < 0 {
		return nil, &types.ConfigError{Field: "batch_size", Reason: "must not be negative"}
	}
	if config.MaxConcurrency == 0 {
		config.MaxConcurrency = DefaultMaxConcurrency
	}
	if config.Interval == "" {
		config.Interval = "D"
	}

	return &ScreenEngine{
		source: source,
		config: config,
		now:    time.Now,
	}, nil
}

// Run 对所有标的执行 获取历史数据 -> 评估
// 单个标的失败只计入统计；ctx 取消后未开始的标的计为跳过，并返回部分结果和 ctx.Err()
func (se *ScreenEngine) Run(ctx context.Context, exchange types.Exchange, tokens []string, evaluator signals.Evaluator) (*RunReport, error) {
	if evaluator == nil {
		return nil, &types.ConfigError{Field: "evaluator", Reason: "evaluator is required"}
	}
	exchange, err := types.ParseExchange(string(exchange))
	if err != nil {
		return nil, err
	}
	tokens = dedupe(tokens)
	if len(tokens) == 0 {
		return nil, &types.ConfigError{Field: "symbols", Reason: "symbol list is empty"}
	}

	report := &RunReport{
		RunID:     uuid.NewString(),
		Strategy:  evaluator.Strategy(),
		Exchange:  exchange,
		Results:   make([]*types.SignalResult, 0),
		StartedAt: se.now(),
	}
	report.Stats.Total = len(tokens)

	to := report.StartedAt
	from := to.AddDate(0, 0, -evaluator.HistoryDays())

	zap.L().Info("🚀 开始批量筛选",
		zap.String("run_id", report.RunID),
		zap.String("strategy", string(report.Strategy)),
		zap.String("exchange", string(exchange)),
		zap.Int("symbols", len(tokens)),
		zap.Int("max_concurrency", se.config.MaxConcurrency),
		zap.Int("batch_size", se.config.BatchSize))

	batches := partition(tokens, se.config.BatchSize)
	for i, batch := range batches {
		if ctx.Err() != nil {
			report.Stats.Skipped += len(batch)
			continue
		}
		if len(batches) > 1 {
			zap.L().Info("📦 处理批次",
				zap.String("run_id", report.RunID),
				zap.Int("batch", i+1),
				zap.Int("batches", len(batches)),
				zap.Int("size", len(batch)))
		}
		se.runBatch(ctx, exchange, batch, from, to, evaluator, report)
	}

	report.Duration = se.now().Sub(report.StartedAt)

	zap.L().Info("✅ 批量筛选完成",
		zap.String("run_id", report.RunID),
		zap.Int("total", report.Stats.Total),
		zap.Int("signals", report.Stats.Signals),
		zap.Int("no_signal", report.Stats.NoSignal),
		zap.Int("insufficient", report.Stats.Insufficient),
		zap.Int("failed", report.Stats.Failed),
		zap.Int("skipped", report.Stats.Skipped),
		zap.Duration("duration", report.Duration))

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// runBatch 固定大小的worker池处理一批标的，结果由当前goroutine统一收集
func (se *ScreenEngine) runBatch(ctx context.Context, exchange types.Exchange, batch []string, from, to time.Time, evaluator signals.Evaluator, report *RunReport) {
	workers := se.config.MaxConcurrency
	if workers > len(batch) {
		workers = len(batch)
	}

	tasks := make(chan string, len(batch))
	for _, token := range batch {
		tasks <- token
	}
	close(tasks)

	results := make(chan taskResult, len(batch))
	for w := 0; w < workers; w++ {
		go func() {
			for token := range tasks {
				if ctx.Err() != nil {
					results <- taskResult{token: token, skipped: true}
					continue
				}
				results <- se.process(ctx, exchange, token, from, to, evaluator)
			}
		}()
	}

	for range batch {
		se.collect(report, <-results)
	}
}

// process 处理单个标的，panic 和获取失败都在这里转换为失败结果
func (se *ScreenEngine) process(ctx context.Context, exchange types.Exchange, token string, from, to time.Time, evaluator signals.Evaluator) (res taskResult) {
	res = taskResult{token: token, symbol: token}
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("❌ 处理标的发生panic",
				zap.String("token", token),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			res.outcome = signals.Outcome{Kind: signals.OutcomeFailed, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	inst, bars, err := se.source.FetchHistory(ctx, exchange.VendorLabel(), token, from, to, se.config.Interval)
	if err != nil {
		if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			res.skipped = true
			return res
		}
		res.outcome = signals.Outcome{Kind: signals.OutcomeFailed, Err: err}
		return res
	}
	if inst.Symbol == "" {
		inst.Symbol = token
	}
	if inst.Exchange == "" {
		inst.Exchange = exchange
	}
	if inst.Token == "" {
		inst.Token = token
	}
	res.symbol = inst.Symbol
	if err := types.ValidateSeries(bars); err != nil {
		res.outcome = signals.Outcome{Kind: signals.OutcomeFailed, Err: fmt.Errorf("invalid series: %w", err)}
		return res
	}
	res.outcome = evaluator.Evaluate(inst, bars)
	return res
}

func (se *ScreenEngine) collect(report *RunReport, res taskResult) {
	if res.skipped {
		report.Stats.Skipped++
		return
	}

	switch res.outcome.Kind {
	case signals.OutcomeSignal:
		if res.outcome.Result == nil {
			report.Stats.NoSignal++
			return
		}
		report.Stats.Signals++
		report.Results = append(report.Results, res.outcome.Result)
	case signals.OutcomeInsufficientData:
		report.Stats.Insufficient++
		zap.L().Debug("历史数据不足，跳过分析",
			zap.String("symbol", res.symbol),
			zap.String("reason", res.outcome.Reason))
	case signals.OutcomeFailed:
		report.Stats.Failed++
		msg := "unknown error"
		if res.outcome.Err != nil {
			msg = res.outcome.Err.Error()
		}
		report.Failures = append(report.Failures, Failure{Token: res.token, Symbol: res.symbol, Error: msg})
		zap.L().Warn("⚠️ 标的处理失败",
			zap.String("token", res.token),
			zap.String("symbol", res.symbol),
			zap.String("error", msg))
	default:
		report.Stats.NoSignal++
	}
}

func dedupe(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func partition(tokens []string, size int) [][]string {
	if size <= 0 || size >= len(tokens) {
		return [][]string{tokens}
	}
	batches := make([][]string, 0, (len(tokens)+size-1)/size)
	for start := 0; start < len(tokens); start += size {
		end := start + size
		if end > len(tokens) {
			end = len(tokens)
		}
		batches = append(batches, tokens[start:end])
	}
	return batches
}
