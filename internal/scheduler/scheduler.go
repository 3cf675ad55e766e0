package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"equity-screener/internal/strategy/database"
	"equity-screener/internal/strategy/engine"
	"equity-screener/pkg/types"
)

// Screener 筛选入口
type Screener interface {
	Screen(ctx context.Context, req types.AnalysisRequest) (*engine.RunReport, error)
}

// Scheduler 定时筛选调度器
type Scheduler struct {
	cron     *cron.Cron
	screener Screener
	universe database.Universe
	defaults types.PriceMovementParams

	mu   sync.Mutex
	ctx  context.Context
	jobs []job
}

type job struct {
	id     cron.EntryID
	config types.ScheduledJob
}

func NewScheduler(screener Screener, universe database.Universe, defaults types.PriceMovementParams) *Scheduler {
	logger := cronLogger{}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		screener: screener,
		universe: universe,
		defaults: defaults,
		ctx:      context.Background(),
	}
}

// Register 注册定时任务，表达式或任务配置不合法时返回 *types.ConfigError
func (s *Scheduler) Register(jobs []types.ScheduledJob) error {
	for i, cfg := range jobs {
		if cfg.Name == "" {
			cfg.Name = fmt.Sprintf("job-%d", i+1)
		}
		if _, err := s.buildRequest(cfg, nil); err != nil {
			return fmt.Errorf("register %s: %w", cfg.Name, err)
		}

		cfg := cfg
		id, err := s.cron.AddFunc(cfg.Cron, func() { s.runScheduled(cfg) })
		if err != nil {
			return fmt.Errorf("register %s: %w", cfg.Name,
				&types.ConfigError{Field: "schedule.jobs.cron", Reason: err.Error()})
		}

		s.mu.Lock()
		s.jobs = append(s.jobs, job{id: id, config: cfg})
		s.mu.Unlock()

		zap.L().Info("⏰ 已注册定时筛选任务",
			zap.String("name", cfg.Name),
			zap.String("cron", cfg.Cron),
			zap.String("exchange", cfg.Exchange),
			zap.String("list", cfg.List),
			zap.String("strategy", cfg.Strategy))
	}
	return nil
}

// Start 启动调度，ctx 结束后停止并等待运行中的任务完成
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	count := len(s.jobs)
	s.mu.Unlock()

	s.cron.Start()
	zap.L().Info("🚀 调度器已启动", zap.Int("jobs", count))

	for _, e := range s.cron.Entries() {
		zap.L().Info("⏳ 下次执行时间", zap.Int("entry", int(e.ID)), zap.Time("next", e.Next))
	}

	<-ctx.Done()
	s.Stop()
}

// Stop 停止调度并等待运行中的任务
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	zap.L().Info("📴 调度器已停止")
}

// RunNow 立即执行所有任务
func (s *Scheduler) RunNow(ctx context.Context) {
	s.mu.Lock()
	jobs := make([]job, len(s.jobs))
	copy(jobs, s.jobs)
	s.mu.Unlock()

	for _, j := range jobs {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.RunJob(ctx, j.config); err != nil {
			zap.L().Error("❌ 定时筛选失败", zap.String("name", j.config.Name), zap.Error(err))
		}
	}
}

func (s *Scheduler) runScheduled(cfg types.ScheduledJob) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	if _, err := s.RunJob(ctx, cfg); err != nil {
		zap.L().Error("❌ 定时筛选失败", zap.String("name", cfg.Name), zap.Error(err))
	}
}

// RunJob 解析股票池并执行一次筛选
func (s *Scheduler) RunJob(ctx context.Context, cfg types.ScheduledJob) (*engine.RunReport, error) {
	zap.L().Info("🔄 开始定时筛选", zap.String("name", cfg.Name))

	exchange, err := types.ParseExchange(cfg.Exchange)
	if err != nil {
		return nil, err
	}
	tokens, err := s.universe.Tokens(ctx, exchange, cfg.List)
	if err != nil {
		return nil, fmt.Errorf("load list %s: %w", cfg.List, err)
	}

	req, err := s.buildRequest(cfg, tokens)
	if err != nil {
		return nil, err
	}
	return s.screener.Screen(ctx, req)
}

// buildRequest 由任务配置构造筛选请求，未配置参数时使用默认涨跌幅参数
func (s *Scheduler) buildRequest(cfg types.ScheduledJob, tokens []string) (types.AnalysisRequest, error) {
	strategy, err := types.ParseStrategy(cfg.Strategy)
	if err != nil {
		return types.AnalysisRequest{}, err
	}
	exchange, err := types.ParseExchange(cfg.Exchange)
	if err != nil {
		return types.AnalysisRequest{}, err
	}
	if cfg.List == "" {
		return types.AnalysisRequest{}, &types.ConfigError{Field: "schedule.jobs.list", Reason: "is empty"}
	}

	req := types.AnalysisRequest{
		Strategy: strategy,
		Exchange: exchange,
		Symbols:  tokens,
	}
	if strategy == types.StrategyPriceMovement {
		params := s.defaults
		if cfg.Params != nil {
			params = *cfg.Params
		}
		if err := params.Validate(); err != nil {
			return types.AnalysisRequest{}, err
		}
		req.PriceMovement = &params
	}
	return req, nil
}

// cronLogger 把cron日志接到zap
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	zap.L().Sugar().Debugw(msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	zap.L().Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
