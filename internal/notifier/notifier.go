package notifier

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"equity-screener/internal/strategy/engine"
	"equity-screener/pkg/types"
)

// Interface 通知接口
type Interface interface {
	SendReport(report *engine.RunReport, topN int) error
}

// Rank 按策略排序结果，返回新切片
// 支撑/阻力策略：强度降序，距离升序；其余策略：强度降序
func Rank(results []*types.SignalResult, strategy types.Strategy) []*types.SignalResult {
	ranked := make([]*types.SignalResult, 0, len(results))
	for _, r := range results {
		if r != nil {
			ranked = append(ranked, r)
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Strength != b.Strength {
			return a.Strength > b.Strength
		}
		if strategy.IsZoneStrategy() && a.DistancePct != b.DistancePct {
			return a.DistancePct < b.DistancePct
		}
		return a.Symbol < b.Symbol
	})
	return ranked
}

// Top 取前N条，n<=0表示全部
func Top(results []*types.SignalResult, n int) []*types.SignalResult {
	if n <= 0 || n >= len(results) {
		return results
	}
	return results[:n]
}

// safePadding 安全地计算填充空格数量，避免负数
func safePadding(content string, totalWidth int) int {
	// 使用utf8.RuneCountInString计算实际显示字符数，而不是字节数
	runeCount := utf8.RuneCountInString(content)
	padding := totalWidth - runeCount - 4 // 4是边框字符数
	if padding < 0 {
		padding = 0
	}
	return padding
}

// formatDuration 格式化耗时为中文描述
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1f秒", d.Seconds())
	} else if d < time.Hour {
		return fmt.Sprintf("%.0f分钟", d.Minutes())
	}
	return fmt.Sprintf("%.1f小时", d.Hours())
}

// strategyTitle 策略显示名
func strategyTitle(s types.Strategy) string {
	switch s {
	case types.StrategyBullishZone:
		return "看多支撑区间"
	case types.StrategyBearishZone:
		return "看空阻力区间"
	case types.StrategyPriceActionBreakout:
		return "价格行为突破"
	case types.StrategyVolumeProfile:
		return "成交量分布"
	case types.StrategyMarketStructure:
		return "市场结构"
	case types.StrategyMultiFactor:
		return "多因子"
	case types.StrategyPriceMovement:
		return "自定义涨跌幅"
	}
	return string(s)
}

// summaryLine 单条结果的摘要
func summaryLine(r *types.SignalResult) string {
	switch {
	case r.Strategy == types.StrategyBullishZone:
		return fmt.Sprintf("%s 收盘 %.2f 支撑 %.2f 距离 %.2f%% RSI %.1f 触及 %d次",
			r.Symbol, r.ClosePrice, r.Support, r.DistancePct, r.RSI, r.Touches)
	case r.Strategy == types.StrategyBearishZone:
		return fmt.Sprintf("%s 收盘 %.2f 阻力 %.2f 距离 %.2f%% RSI %.1f 触及 %d次",
			r.Symbol, r.ClosePrice, r.Resistance, r.DistancePct, r.RSI, r.Touches)
	case r.Strategy == types.StrategyPriceMovement:
		return fmt.Sprintf("%s %d天 %.2f -> %.2f (%+.2f%%) 成交量%s 波动率 %.2f%%",
			r.Symbol, r.DurationDays, r.StartPrice, r.ClosePrice, r.PercentageChange,
			volumeTrendText(r.VolumeTrend), r.Volatility)
	}

	parts := []string{fmt.Sprintf("%s 收盘 %.2f 评分 %.1f", r.Symbol, r.ClosePrice, r.Strength)}
	if len(r.Patterns) > 0 {
		parts = append(parts, "形态 "+strings.Join(r.Patterns, "/"))
	}
	if r.MarketStructure != "" {
		parts = append(parts, "结构 "+string(r.MarketStructure))
	}
	if len(r.VolumeNodes) > 0 {
		parts = append(parts, fmt.Sprintf("放量区间 %d个", len(r.VolumeNodes)))
	}
	return strings.Join(parts, " ")
}

func volumeTrendText(trend string) string {
	if trend == types.VolumeTrendIncreasing {
		return "放大"
	}
	return "萎缩"
}
