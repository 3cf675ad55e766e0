package indicators

import (
	"equity-screener/pkg/types"
)

// MarketStructureAnalyzer 通过高点/低点的抬升或下移判断市场结构
type MarketStructureAnalyzer struct {
	detector *SwingDetector
	count    int
}

// NewMarketStructureAnalyzer 创建市场结构分析器
// window<=0 时使用5，count<2 时取最近3个摆动点
func NewMarketStructureAnalyzer(window, count int) *MarketStructureAnalyzer {
	if window <= 0 {
		window = 5
	}
	if count < 2 {
		count = 3
	}
	return &MarketStructureAnalyzer{
		detector: NewSwingDetector(window),
		count:    count,
	}
}

// Analyze 在最高价上找摆动高点、在最低价上找摆动低点后分类
func (ma *MarketStructureAnalyzer) Analyze(bars []types.Bar) types.Trend {
	highs := ma.detector.Maxima(types.Highs(bars))
	lows := ma.detector.Minima(types.Lows(bars))
	return ClassifySwings(tailPrices(highs, ma.count), tailPrices(lows, ma.count))
}

// ClassifySwings 根据按时间排列的摆动高点和低点判断趋势
// 高点和低点都严格抬升为上升趋势，都严格下移为下降趋势，其余为震荡，不足两个为未定义
func ClassifySwings(highs, lows []float64) types.Trend {
	if len(highs) < 2 || len(lows) < 2 {
		return types.TrendUndefined
	}

	lastHigh, prevHigh := highs[len(highs)-1], highs[len(highs)-2]
	lastLow, prevLow := lows[len(lows)-1], lows[len(lows)-2]

	switch {
	case lastHigh > prevHigh && lastLow > prevLow:
		return types.TrendUp
	case lastHigh < prevHigh && lastLow < prevLow:
		return types.TrendDown
	default:
		return types.TrendSideways
	}
}

func tailPrices(points []types.SwingPoint, k int) []float64 {
	if len(points) > k {
		points = points[len(points)-k:]
	}
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Price
	}
	return out
}
