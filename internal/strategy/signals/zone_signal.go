package signals

import (
	"math"

	"go.uber.org/zap"

	"equity-screener/internal/strategy/indicators"
	"equity-screener/pkg/types"
)

// ZoneEvaluator 支撑/阻力区间策略
// 看多：近期摆动低点作为支撑，现价高于支撑5%-20%，EMA50 > EMA200，RSI处于区间内
// 看空：近期摆动高点作为阻力，现价低于阻力5%-20%，EMA50 < EMA200，RSI处于区间内
type ZoneEvaluator struct {
	bullish   bool
	config    types.ZoneConfig
	detector  *indicators.SwingDetector
	clusterer *indicators.ZoneClusterer
	fastEMA   *indicators.EMACalculator
	slowEMA   *indicators.EMACalculator
	rsiCalc   *indicators.RSICalculator
}

// NewBullishZoneEvaluator 创建支撑区间评估器
func NewBullishZoneEvaluator(config types.ZoneConfig) *ZoneEvaluator {
	return newZoneEvaluator(true, config)
}

// NewBearishZoneEvaluator 创建阻力区间评估器
func NewBearishZoneEvaluator(config types.ZoneConfig) *ZoneEvaluator {
	return newZoneEvaluator(false, config)
}

func newZoneEvaluator(bullish bool, config types.ZoneConfig) *ZoneEvaluator {
	config = zoneDefaults(config)
	return &ZoneEvaluator{
		bullish:   bullish,
		config:    config,
		detector:  indicators.NewSwingDetector(config.SwingWindow),
		clusterer: indicators.NewZoneClusterer(config.ClusterThreshold),
		fastEMA:   indicators.NewEMACalculator(config.FastEMA),
		slowEMA:   indicators.NewEMACalculator(config.SlowEMA),
		rsiCalc:   indicators.NewRSICalculator(config.RSIPeriod),
	}
}

func zoneDefaults(c types.ZoneConfig) types.ZoneConfig {
	d := types.DefaultStrategyConfig().Zone
	if c.HistoryDays <= 0 {
		c.HistoryDays = d.HistoryDays
	}
	if c.MinBars <= 0 {
		c.MinBars = d.MinBars
	}
	if c.RecentBars <= 0 {
		c.RecentBars = d.RecentBars
	}
	if c.ClusterThreshold <= 0 {
		c.ClusterThreshold = d.ClusterThreshold
	}
	if c.SupportMinRatio <= 0 || c.SupportMaxRatio <= 0 {
		c.SupportMinRatio, c.SupportMaxRatio = d.SupportMinRatio, d.SupportMaxRatio
	}
	if c.ResistMinRatio <= 0 || c.ResistMaxRatio <= 0 {
		c.ResistMinRatio, c.ResistMaxRatio = d.ResistMinRatio, d.ResistMaxRatio
	}
	if c.VolumeRatio <= 0 {
		c.VolumeRatio = d.VolumeRatio
	}
	if c.FastEMA <= 0 {
		c.FastEMA = d.FastEMA
	}
	if c.SlowEMA <= 0 {
		c.SlowEMA = d.SlowEMA
	}
	if c.RSIPeriod <= 0 {
		c.RSIPeriod = d.RSIPeriod
	}
	if c.RSILower <= 0 && c.RSIUpper <= 0 {
		c.RSILower, c.RSIUpper = d.RSILower, d.RSIUpper
	}
	return c
}

func (ze *ZoneEvaluator) Strategy() types.Strategy {
	if ze.bullish {
		return types.StrategyBullishZone
	}
	return types.StrategyBearishZone
}

func (ze *ZoneEvaluator) HistoryDays() int { return ze.config.HistoryDays }

func (ze *ZoneEvaluator) MinBars() int { return ze.config.MinBars }

// Evaluate 评估单个标的
func (ze *ZoneEvaluator) Evaluate(inst types.Instrument, bars []types.Bar) (out Outcome) {
	defer guard(inst, &out)

	n := len(bars)
	if n < ze.config.MinBars {
		return insufficient(n, ze.config.MinBars)
	}

	closes := types.Closes(bars)
	current := closes[n-1]
	volumeNow := bars[n-1].Volume

	// 1. 近期摆动点作为候选支撑/阻力
	var points []types.SwingPoint
	if ze.bullish {
		points = ze.detector.Minima(closes)
	} else {
		points = ze.detector.Maxima(closes)
	}

	recentStart := n - ze.config.RecentBars
	zones := make([]types.Zone, 0, len(points))
	for _, p := range points {
		if p.Index < recentStart || p.Price <= 0 {
			continue
		}
		if !ze.inBand(current / p.Price) {
			continue
		}
		if volumeNow < ze.config.VolumeRatio*bars[p.Index].Volume {
			continue
		}
		zones = append(zones, types.Zone{Price: p.Price, Index: p.Index, Touches: 1})
	}
	if len(zones) == 0 {
		return noSignal("no zone in range")
	}

	// 2. 聚类并取最强区间
	best, ok := indicators.Strongest(ze.clusterer.Cluster(zones), current)
	if !ok {
		return noSignal("no zone cluster")
	}

	// 3. 均线与RSI过滤
	fast := ze.fastEMA.Last(closes)
	slow := ze.slowEMA.Last(closes)
	aligned := fast > slow
	if !ze.bullish {
		aligned = fast < slow
	}
	if !aligned {
		zap.L().Debug("均线排列不符合",
			zap.String("symbol", inst.Symbol),
			zap.Float64("fast_ema", fast),
			zap.Float64("slow_ema", slow))
		return noSignal("ema filter")
	}

	rsi := ze.rsiCalc.Last(closes)
	if math.IsNaN(rsi) || rsi < ze.config.RSILower || rsi > ze.config.RSIUpper {
		zap.L().Debug("RSI不在区间内",
			zap.String("symbol", inst.Symbol),
			zap.Float64("rsi", rsi))
		return noSignal("rsi filter")
	}

	result := &types.SignalResult{
		Symbol:     inst.Symbol,
		Exchange:   inst.Exchange,
		Strategy:   ze.Strategy(),
		ClosePrice: current,
		Strength:   float64(best.Touches),
		RSI:        rsi,
		Touches:    best.Touches,
	}
	if ze.bullish {
		result.Support = best.Price
		result.DistancePct = (current - best.Price) / best.Price * 100
		result.Trend = types.ZoneTrendBullish
	} else {
		result.Resistance = best.Price
		result.DistancePct = (best.Price - current) / current * 100
		result.Trend = types.ZoneTrendBearish
	}

	return signal(result)
}

func (ze *ZoneEvaluator) inBand(ratio float64) bool {
	if ze.bullish {
		return ratio >= ze.config.SupportMinRatio && ratio <= ze.config.SupportMaxRatio
	}
	return ratio >= ze.config.ResistMinRatio && ratio <= ze.config.ResistMaxRatio
}
