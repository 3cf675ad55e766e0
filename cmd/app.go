package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"equity-screener/internal/analyzer"
	"equity-screener/internal/fetcher"
	"equity-screener/internal/notifier"
	"equity-screener/internal/scheduler"
	"equity-screener/internal/storage"
	"equity-screener/internal/strategy/database"
	"equity-screener/internal/strategy/engine"
	stratfetcher "equity-screener/internal/strategy/fetcher"
	"equity-screener/internal/strategy/monitor"
	"equity-screener/pkg/types"
)

// App 应用程序管理器
type App struct {
	config *types.Config
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	db           *database.Manager
	universe     database.Universe
	resultCache  *storage.ResultCache
	historyCache *stratfetcher.CachedSource
	monitor      *monitor.PerformanceMonitor
	analysis     *analyzer.AnalysisEngine
}

// NewApp 创建应用程序实例
func NewApp(config *types.Config) *App {
	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		config: config,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Init 初始化各模块，notify 为空时不输出筛选结果
func (app *App) Init(notify notifier.Interface) error {
	// 股票池：优先MySQL，否则使用配置文件
	if app.config.Database.MySQL.Host != "" {
		db, err := database.NewManager(app.config.Database.MySQL)
		if err != nil {
			return err
		}
		app.db = db
		app.universe = db
	} else {
		zap.L().Info("🔧 未配置MySQL，使用配置文件中的股票池")
		app.universe = database.NewStaticUniverse(app.config.Universe)
	}

	var resolver stratfetcher.InstrumentResolver
	if app.db != nil {
		resolver = app.db
	}
	var source stratfetcher.HistorySource = stratfetcher.NewBrokerHistoryFetcher(app.config.Broker, resolver)
	if app.config.Screener.CacheHistory {
		app.historyCache = stratfetcher.NewCachedSource(source)
		source = app.historyCache
	}

	screen, err := engine.NewScreenEngine(source, engine.Config{
		MaxConcurrency: app.config.Screener.MaxConcurrency,
		BatchSize:      app.config.Screener.BatchSize,
		Interval:       app.config.Screener.Interval,
	})
	if err != nil {
		return err
	}

	app.resultCache = storage.NewResultCache(app.config.Redis, app.config.Screener.ResultTTL)
	app.monitor = monitor.NewPerformanceMonitor()
	app.analysis = analyzer.NewAnalysisEngine(screen, app.config.Strategy, analyzer.Options{
		Cache:    app.resultCache,
		Monitor:  app.monitor,
		Notifier: notify,
		TopN:     app.config.Screener.TopN,
	})
	return nil
}

// Context 应用上下文，收到停止信号后取消
func (app *App) Context() context.Context {
	return app.ctx
}

// Screen 执行一次筛选
func (app *App) Screen(req types.AnalysisRequest) (*engine.RunReport, error) {
	return app.analysis.Screen(app.ctx, req)
}

// ListTokens 读取股票池
func (app *App) ListTokens(exchange types.Exchange, list string) ([]string, error) {
	return app.universe.Tokens(app.ctx, exchange, list)
}

// Lists 某交易所的股票池名称
func (app *App) Lists(exchange types.Exchange) ([]string, error) {
	return app.universe.Lists(app.ctx, exchange)
}

// SyncInstruments 下载合约主数据写入MySQL
func (app *App) SyncInstruments(exchanges []types.Exchange) error {
	if app.db == nil {
		return &types.ConfigError{Field: "database.mysql.host", Reason: "instrument sync requires MySQL"}
	}
	loader := fetcher.NewContractLoader(app.config.Broker, app.db)
	for _, ex := range exchanges {
		if _, err := loader.Sync(app.ctx, ex); err != nil {
			return fmt.Errorf("sync %s: %w", ex, err)
		}
	}
	return nil
}

// SaveWatchlist 保存股票池到MySQL
func (app *App) SaveWatchlist(exchange types.Exchange, list string, tokens []string) error {
	if app.db == nil {
		return &types.ConfigError{Field: "database.mysql.host", Reason: "saving lists requires MySQL"}
	}
	return app.db.SaveWatchlist(app.ctx, exchange, list, tokens)
}

// StartScheduler 启动定时筛选
func (app *App) StartScheduler(runNow bool) error {
	if !app.config.Schedule.Enabled || len(app.config.Schedule.Jobs) == 0 {
		return &types.ConfigError{Field: "schedule", Reason: "no scheduled jobs enabled"}
	}

	taskScheduler := scheduler.NewScheduler(app.analysis, app.universe, app.config.Strategy.PriceMovement)
	if err := taskScheduler.Register(app.config.Schedule.Jobs); err != nil {
		return err
	}

	app.wg.Add(2)
	go func() {
		defer app.wg.Done()
		if runNow {
			taskScheduler.RunNow(app.ctx)
		}
		taskScheduler.Start(app.ctx)
	}()
	go func() {
		defer app.wg.Done()
		app.maintain()
	}()

	zap.L().Info("✅ 定时筛选已启动", zap.Int("jobs", len(app.config.Schedule.Jobs)))
	return nil
}

// maintain 定期清理过期结果，跨日时清空历史K线缓存
func (app *App) maintain() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	day := time.Now().Format("2006-01-02")
	for {
		select {
		case <-app.ctx.Done():
			return
		case <-ticker.C:
			if n := app.resultCache.Sweep(); n > 0 {
				zap.L().Debug("🧹 清理过期筛选结果", zap.Int("count", n))
			}
			today := time.Now().Format("2006-01-02")
			if today != day && app.historyCache != nil {
				app.historyCache.Purge()
				day = today
				zap.L().Info("🧹 已清空历史K线缓存")
			}
		}
	}
}

// Stop 停止应用程序
func (app *App) Stop() {
	zap.L().Info("🛑 收到停止信号，正在优雅关闭...")
	app.cancel()

	// 等待所有goroutine结束，最多等待30秒
	done := make(chan struct{})
	go func() {
		app.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		zap.L().Warn("⚠️ 强制关闭超时")
	}

	if app.monitor != nil && app.monitor.GetMetrics().TotalRuns > 0 {
		app.monitor.PrintFormattedReport()
	}
	if app.resultCache != nil {
		if err := app.resultCache.Close(); err != nil {
			zap.L().Warn("关闭Redis连接失败", zap.Error(err))
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			zap.L().Warn("关闭数据库连接失败", zap.Error(err))
		}
	}
	zap.L().Info("✅ 已安全关闭")
}

// WaitForShutdown 等待关闭信号
func (app *App) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-sigCh:
	case <-app.ctx.Done():
	}
}

// CancelOnSignal 收到停止信号时取消当前任务
func (app *App) CancelOnSignal() {
	go func() {
		app.WaitForShutdown()
		app.cancel()
	}()
}
