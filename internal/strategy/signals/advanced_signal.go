package signals

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"equity-screener/internal/strategy/indicators"
	"equity-screener/pkg/types"
)

// AdvancedSnapshot 形态/结构/成交量分布的综合快照
type AdvancedSnapshot struct {
	Close     float64
	VolumeNow float64
	VolumeAvg float64 // 最近N根K线的平均成交量，数据不足时为NaN
	Patterns  []string
	Structure types.Trend
	Nodes     []types.VolumeNode // 高成交量区间
}

// AdvancedEvaluator 价格行为突破、成交量分布、市场结构、多因子四种策略共用的评估器
type AdvancedEvaluator struct {
	strategy  types.Strategy
	config    types.AdvancedConfig
	patterns  *indicators.PatternDetector
	profile   *indicators.VolumeProfileCalculator
	structure *indicators.MarketStructureAnalyzer
}

// NewAdvancedEvaluator 创建评估器，strategy 必须是上述四种之一
func NewAdvancedEvaluator(strategy types.Strategy, config types.AdvancedConfig, ms types.MarketStructureConfig) (*AdvancedEvaluator, error) {
	switch strategy {
	case types.StrategyPriceActionBreakout, types.StrategyVolumeProfile,
		types.StrategyMarketStructure, types.StrategyMultiFactor:
	default:
		return nil, &types.ConfigError{Field: "strategy", Reason: fmt.Sprintf("%s is not an advanced strategy", strategy)}
	}

	config = advancedDefaults(config)
	return &AdvancedEvaluator{
		strategy:  strategy,
		config:    config,
		patterns:  indicators.NewPatternDetector(config.DojiBodyRatio, config.HammerShadowRatio),
		profile:   indicators.NewVolumeProfileCalculator(config.VolumeBins),
		structure: indicators.NewMarketStructureAnalyzer(ms.SwingWindow, ms.SwingCount),
	}, nil
}

func advancedDefaults(c types.AdvancedConfig) types.AdvancedConfig {
	d := types.DefaultStrategyConfig().Advanced
	if c.HistoryDays <= 0 {
		c.HistoryDays = d.HistoryDays
	}
	if c.MinBars <= 0 {
		c.MinBars = d.MinBars
	}
	if c.VolumeBins <= 0 {
		c.VolumeBins = d.VolumeBins
	}
	if c.VolumeAvgPeriod <= 0 {
		c.VolumeAvgPeriod = d.VolumeAvgPeriod
	}
	if c.VolumeMultiplier <= 0 {
		c.VolumeMultiplier = d.VolumeMultiplier
	}
	if c.NodeProximity <= 0 {
		c.NodeProximity = d.NodeProximity
	}
	if c.PatternWeight <= 0 {
		c.PatternWeight = d.PatternWeight
	}
	if c.NodeWeight <= 0 {
		c.NodeWeight = d.NodeWeight
	}
	if c.TrendScore <= 0 {
		c.TrendScore = d.TrendScore
	}
	return c
}

func (ae *AdvancedEvaluator) Strategy() types.Strategy { return ae.strategy }

func (ae *AdvancedEvaluator) HistoryDays() int { return ae.config.HistoryDays }

func (ae *AdvancedEvaluator) MinBars() int { return ae.config.MinBars }

// Snapshot 计算形态、市场结构和高成交量区间
func (ae *AdvancedEvaluator) Snapshot(bars []types.Bar) AdvancedSnapshot {
	snap := AdvancedSnapshot{VolumeAvg: math.NaN()}
	if len(bars) == 0 {
		snap.Structure = types.TrendUndefined
		return snap
	}

	last := bars[len(bars)-1]
	snap.Close = last.Close
	snap.VolumeNow = last.Volume
	if len(bars) >= ae.config.VolumeAvgPeriod {
		snap.VolumeAvg = indicators.TailMean(types.Volumes(bars), ae.config.VolumeAvgPeriod)
	}

	snap.Patterns = ae.patterns.Detect(bars)
	snap.Structure = ae.structure.Analyze(bars)
	snap.Nodes = ae.profile.Calculate(bars).HighVolumeNodes()
	return snap
}

// Score 按策略计算信号强度
func (ae *AdvancedEvaluator) Score(snap AdvancedSnapshot) float64 {
	trendScore := 0.0
	if snap.Structure.IsTrending() {
		trendScore = ae.config.TrendScore
	}

	switch ae.strategy {
	case types.StrategyPriceActionBreakout:
		// 成交量放大确认的形态
		if len(snap.Patterns) > 0 && snap.VolumeNow > snap.VolumeAvg*ae.config.VolumeMultiplier {
			return float64(len(snap.Patterns)) * ae.config.PatternWeight
		}
		return 0
	case types.StrategyVolumeProfile:
		return float64(nearbyNodes(snap.Nodes, snap.Close, ae.config.NodeProximity)) * ae.config.NodeWeight
	case types.StrategyMarketStructure:
		return trendScore
	case types.StrategyMultiFactor:
		return float64(len(snap.Patterns))*ae.config.PatternWeight + float64(len(snap.Nodes)) + trendScore
	}
	return 0
}

func nearbyNodes(nodes []types.VolumeNode, price, proximity float64) int {
	if price == 0 {
		return 0
	}
	count := 0
	for _, node := range nodes {
		if math.Abs(node.PriceLevel-price)/price < proximity {
			count++
		}
	}
	return count
}

// Evaluate 评估单个标的
func (ae *AdvancedEvaluator) Evaluate(inst types.Instrument, bars []types.Bar) (out Outcome) {
	defer guard(inst, &out)

	if len(bars) < ae.config.MinBars {
		return insufficient(len(bars), ae.config.MinBars)
	}

	snap := ae.Snapshot(bars)
	strength := ae.Score(snap)
	if strength <= 0 {
		return noSignal("zero strength")
	}

	zap.L().Debug("🎯 检测到信号",
		zap.String("symbol", inst.Symbol),
		zap.String("strategy", string(ae.strategy)),
		zap.Float64("strength", strength),
		zap.Strings("patterns", snap.Patterns),
		zap.String("structure", string(snap.Structure)))

	nodes := make([]types.VolumeNode, len(snap.Nodes))
	copy(nodes, snap.Nodes)
	patterns := make([]string, len(snap.Patterns))
	copy(patterns, snap.Patterns)

	return signal(&types.SignalResult{
		Symbol:          inst.Symbol,
		Exchange:        inst.Exchange,
		Strategy:        ae.strategy,
		ClosePrice:      snap.Close,
		Strength:        strength,
		Patterns:        patterns,
		MarketStructure: snap.Structure,
		VolumeNodes:     nodes,
	})
}
