package indicators

import "math"

// RSICalculator 相对强弱指标计算器
// 使用最近 period 个涨跌幅的简单平均，而非Wilder平滑
type RSICalculator struct {
	period int
}

// NewRSICalculator 创建RSI计算器，period<=0 时使用14
func NewRSICalculator(period int) *RSICalculator {
	if period <= 0 {
		period = 14
	}
	return &RSICalculator{
		period: period,
	}
}

// Calculate 计算RSI序列，前 period 个值为NaN
func (rc *RSICalculator) Calculate(closes []float64) []float64 {
	out := make([]float64, len(closes))
	for i := range out {
		out[i] = math.NaN()
	}
	if len(closes) <= rc.period {
		return out
	}

	gains := make([]float64, len(closes))
	losses := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gains[i] = delta
		} else if delta < 0 {
			losses[i] = -delta
		}
	}

	// 每个窗口单独求和，避免滑动累加的浮点残差把零亏损变成极小值
	for i := rc.period; i < len(closes); i++ {
		var sumGain, sumLoss float64
		for j := i - rc.period + 1; j <= i; j++ {
			sumGain += gains[j]
			sumLoss += losses[j]
		}
		out[i] = rsiValue(sumGain/float64(rc.period), sumLoss/float64(rc.period))
	}
	return out
}

// Last 最新的RSI值，数据不足时返回NaN
func (rc *RSICalculator) Last(closes []float64) float64 {
	if len(closes) == 0 {
		return math.NaN()
	}
	series := rc.Calculate(closes)
	return series[len(series)-1]
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			// 窗口内价格完全不动
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}
