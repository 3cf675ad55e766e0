package monitor

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"equity-screener/internal/strategy/engine"
	"equity-screener/pkg/types"
)

// PerformanceMonitor 筛选运行统计
type PerformanceMonitor struct {
	mu      sync.Mutex
	metrics *PerformanceMetrics
	now     func() time.Time
}

// PerformanceMetrics 累计统计
type PerformanceMetrics struct {
	StartTime      time.Time                           `json:"start_time"`
	TotalRuns      int64                               `json:"total_runs"`
	TotalSignals   int64                               `json:"total_signals"`
	StrategyStats  map[types.Strategy]*StrategyMetrics `json:"strategy_stats"`
	LastUpdateTime time.Time                           `json:"last_update_time"`
}

// StrategyMetrics 单个策略的累计统计
type StrategyMetrics struct {
	Strategy          types.Strategy `json:"strategy"`
	Runs              int64          `json:"runs"`
	Symbols           int64          `json:"symbols"`
	Signals           int64          `json:"signals"`
	Insufficient      int64          `json:"insufficient"`
	Failures          int64          `json:"failures"`
	Skipped           int64          `json:"skipped"`
	AvgSignalStrength float64        `json:"avg_signal_strength"`
	AvgDuration       time.Duration  `json:"avg_duration"`
	LastRunID         string         `json:"last_run_id"`
	LastRunTime       time.Time      `json:"last_run_time"`

	strengthSum   float64
	totalDuration time.Duration
}

// NewPerformanceMonitor 创建运行统计
func NewPerformanceMonitor() *PerformanceMonitor {
	pm := &PerformanceMonitor{now: time.Now}
	pm.metrics = &PerformanceMetrics{
		StartTime:     pm.now(),
		StrategyStats: make(map[types.Strategy]*StrategyMetrics),
	}
	return pm
}

// Record 记录一次筛选结果
func (pm *PerformanceMonitor) Record(report *engine.RunReport) {
	if report == nil {
		return
	}

	pm.mu.Lock()
	sm := pm.metrics.StrategyStats[report.Strategy]
	if sm == nil {
		sm = &StrategyMetrics{Strategy: report.Strategy}
		pm.metrics.StrategyStats[report.Strategy] = sm
	}

	sm.Runs++
	sm.Symbols += int64(report.Stats.Total)
	sm.Signals += int64(report.Stats.Signals)
	sm.Insufficient += int64(report.Stats.Insufficient)
	sm.Failures += int64(report.Stats.Failed)
	sm.Skipped += int64(report.Stats.Skipped)
	for _, r := range report.Results {
		sm.strengthSum += r.Strength
	}
	if sm.Signals > 0 {
		sm.AvgSignalStrength = sm.strengthSum / float64(sm.Signals)
	}
	sm.totalDuration += report.Duration
	sm.AvgDuration = sm.totalDuration / time.Duration(sm.Runs)
	sm.LastRunID = report.RunID
	sm.LastRunTime = report.StartedAt

	pm.metrics.TotalRuns++
	pm.metrics.TotalSignals += int64(report.Stats.Signals)
	pm.metrics.LastUpdateTime = pm.now()
	snapshot := *sm
	pm.mu.Unlock()

	zap.L().Info("📈 策略运行统计",
		zap.String("strategy", string(snapshot.Strategy)),
		zap.String("run_id", report.RunID),
		zap.Int64("runs", snapshot.Runs),
		zap.Int64("signals", snapshot.Signals),
		zap.Int64("failures", snapshot.Failures),
		zap.Float64("avg_signal_strength", snapshot.AvgSignalStrength),
		zap.Duration("avg_duration", snapshot.AvgDuration))
}

// GetMetrics 获取统计快照
func (pm *PerformanceMonitor) GetMetrics() PerformanceMetrics {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	out := *pm.metrics
	out.StrategyStats = make(map[types.Strategy]*StrategyMetrics, len(pm.metrics.StrategyStats))
	for k, v := range pm.metrics.StrategyStats {
		cp := *v
		out.StrategyStats[k] = &cp
	}
	return out
}

// GetMetricsJSON 获取JSON格式的统计
func (pm *PerformanceMonitor) GetMetricsJSON() (string, error) {
	metrics := pm.GetMetrics()
	data, err := json.MarshalIndent(metrics, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// PrintFormattedReport 打印格式化报告
func (pm *PerformanceMonitor) PrintFormattedReport() {
	metrics := pm.GetMetrics()
	runTime := pm.now().Sub(metrics.StartTime)

	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("📈 筛选运行统计")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("🕐 运行时间: %s\n", runTime.Truncate(time.Second))
	fmt.Printf("🔄 筛选次数: %d\n", metrics.TotalRuns)
	fmt.Printf("🎯 总信号数: %d\n", metrics.TotalSignals)
	fmt.Println(strings.Repeat("-", 80))

	names := make([]string, 0, len(metrics.StrategyStats))
	for s := range metrics.StrategyStats {
		names = append(names, string(s))
	}
	sort.Strings(names)
	for _, name := range names {
		sm := metrics.StrategyStats[types.Strategy(name)]
		fmt.Printf("💹 %s: %d次 %d信号 (%.2f强度) 失败%d 平均耗时%s\n",
			name, sm.Runs, sm.Signals, sm.AvgSignalStrength, sm.Failures,
			sm.AvgDuration.Truncate(time.Millisecond))
	}

	fmt.Println(strings.Repeat("=", 80) + "\n")
}
