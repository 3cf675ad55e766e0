package analyzer

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"equity-screener/internal/notifier"
	"equity-screener/internal/storage"
	"equity-screener/internal/strategy/engine"
	"equity-screener/internal/strategy/monitor"
	"equity-screener/internal/strategy/signals"
	"equity-screener/pkg/types"
)

// AnalysisEngine 筛选入口：校验请求 -> 查结果缓存 -> 批量筛选 -> 统计 -> 通知
type AnalysisEngine struct {
	screener   *engine.ScreenEngine
	cache      *storage.ResultCache
	monitor    *monitor.PerformanceMonitor
	notifier   notifier.Interface
	strategies types.StrategyConfig
	topN       int
}

// Options 可选组件，为空时跳过对应步骤
type Options struct {
	Cache    *storage.ResultCache
	Monitor  *monitor.PerformanceMonitor
	Notifier notifier.Interface
	TopN     int
}

func NewAnalysisEngine(screener *engine.ScreenEngine, strategies types.StrategyConfig, opts Options) *AnalysisEngine {
	return &AnalysisEngine{
		screener:   screener,
		cache:      opts.Cache,
		monitor:    opts.Monitor,
		notifier:   opts.Notifier,
		strategies: strategies,
		topN:       opts.TopN,
	}
}

// Normalize 校验并规范化请求，错误为 *types.ConfigError
func Normalize(req types.AnalysisRequest) (types.AnalysisRequest, error) {
	strategy, err := types.ParseStrategy(string(req.Strategy))
	if err != nil {
		return req, err
	}
	exchange, err := types.ParseExchange(string(req.Exchange))
	if err != nil {
		return req, err
	}

	symbols := make([]string, 0, len(req.Symbols))
	for _, s := range req.Symbols {
		if s = strings.TrimSpace(s); s != "" {
			symbols = append(symbols, s)
		}
	}
	if len(symbols) == 0 {
		return req, &types.ConfigError{Field: "symbols", Reason: "symbol list is empty"}
	}

	out := types.AnalysisRequest{
		Strategy: strategy,
		Exchange: exchange,
		Symbols:  symbols,
	}
	if strategy == types.StrategyPriceMovement {
		if err := req.PriceMovement.Validate(); err != nil {
			return req, err
		}
		params := *req.PriceMovement
		out.PriceMovement = &params
	}
	return out, nil
}

// Screen 执行一次筛选
// 相同请求在结果缓存有效期内直接返回缓存；ctx 取消时返回部分结果和 ctx.Err()，不写缓存
func (ae *AnalysisEngine) Screen(ctx context.Context, req types.AnalysisRequest) (*engine.RunReport, error) {
	req, err := Normalize(req)
	if err != nil {
		return nil, err
	}

	key := storage.ResultKey(req)
	if ae.cache != nil {
		if report, ok := ae.cache.Get(ctx, key); ok {
			zap.L().Info("♻️ 命中结果缓存",
				zap.String("strategy", string(req.Strategy)),
				zap.String("exchange", string(req.Exchange)),
				zap.String("run_id", report.RunID))
			ae.notify(report)
			return report, nil
		}
	}

	evaluator, err := signals.NewEvaluator(req.Strategy, req.PriceMovement, ae.strategies)
	if err != nil {
		return nil, err
	}

	report, err := ae.screener.Run(ctx, req.Exchange, req.Symbols, evaluator)
	if err != nil {
		if report != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			zap.L().Warn("⚠️ 筛选被取消，返回部分结果",
				zap.String("run_id", report.RunID),
				zap.Int("skipped", report.Stats.Skipped))
			ae.record(report)
		}
		return report, err
	}

	if ae.cache != nil {
		if err := ae.cache.Put(ctx, key, report); err != nil {
			zap.L().Warn("结果缓存写入失败", zap.Error(err))
		}
	}
	ae.record(report)
	ae.notify(report)
	return report, nil
}

func (ae *AnalysisEngine) record(report *engine.RunReport) {
	if ae.monitor != nil {
		ae.monitor.Record(report)
	}
}

func (ae *AnalysisEngine) notify(report *engine.RunReport) {
	if ae.notifier == nil {
		return
	}
	if err := ae.notifier.SendReport(report, ae.topN); err != nil {
		zap.L().Error("❌ 发送筛选结果失败", zap.String("run_id", report.RunID), zap.Error(err))
	}
}
