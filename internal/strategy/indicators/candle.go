package indicators

import (
	"equity-screener/pkg/types"
)

// 支持的K线形态
const (
	PatternDoji             = "Doji"
	PatternHammer           = "Hammer"
	PatternBullishEngulfing = "Bullish Engulfing"
)

// CandleMetrics 单根K线的实体与影线
type CandleMetrics struct {
	Body        float64 // close - open
	UpperShadow float64
	LowerShadow float64
	BodySize    float64
	TotalSize   float64 // high - low
}

// Measure 计算单根K线的实体与影线
func Measure(bar types.Bar) CandleMetrics {
	top := bar.Open
	bottom := bar.Close
	if bar.Close > bar.Open {
		top, bottom = bar.Close, bar.Open
	}
	body := bar.Close - bar.Open
	size := body
	if size < 0 {
		size = -size
	}
	return CandleMetrics{
		Body:        body,
		UpperShadow: bar.High - top,
		LowerShadow: bottom - bar.Low,
		BodySize:    size,
		TotalSize:   bar.High - bar.Low,
	}
}

// PatternDetector K线形态识别
type PatternDetector struct {
	dojiBodyRatio     float64
	hammerShadowRatio float64
}

// NewPatternDetector 创建形态识别器，参数<=0时使用默认值 0.1 和 2
func NewPatternDetector(dojiBodyRatio, hammerShadowRatio float64) *PatternDetector {
	if dojiBodyRatio <= 0 {
		dojiBodyRatio = 0.1
	}
	if hammerShadowRatio <= 0 {
		hammerShadowRatio = 2
	}
	return &PatternDetector{
		dojiBodyRatio:     dojiBodyRatio,
		hammerShadowRatio: hammerShadowRatio,
	}
}

// Detect 识别最后一根（或最后两根）K线上的形态
func (pd *PatternDetector) Detect(bars []types.Bar) []string {
	patterns := make([]string, 0)
	if len(bars) == 0 {
		return patterns
	}

	last := bars[len(bars)-1]
	m := Measure(last)

	if m.BodySize <= pd.dojiBodyRatio*m.TotalSize {
		patterns = append(patterns, PatternDoji)
	}

	if m.LowerShadow > pd.hammerShadowRatio*m.BodySize && m.UpperShadow < m.BodySize {
		patterns = append(patterns, PatternHammer)
	}

	if len(bars) >= 2 {
		prev := bars[len(bars)-2]
		if prev.Close < prev.Open && last.Close > last.Open &&
			last.Open < prev.Close && last.Close > prev.Open {
			patterns = append(patterns, PatternBullishEngulfing)
		}
	}

	return patterns
}
