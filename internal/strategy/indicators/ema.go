package indicators

import "math"

// EMACalculator 指数移动平均计算器
type EMACalculator struct {
	span int
}

// NewEMACalculator 创建EMA计算器，平滑系数 α = 2/(span+1)
func NewEMACalculator(span int) *EMACalculator {
	if span < 1 {
		span = 1
	}
	return &EMACalculator{
		span: span,
	}
}

// Calculate 计算EMA序列，以首个值为种子，不做偏差修正
func (ec *EMACalculator) Calculate(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}

	alpha := 2.0 / float64(ec.span+1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// Last 最新的EMA值，空序列返回NaN
func (ec *EMACalculator) Last(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	series := ec.Calculate(values)
	return series[len(series)-1]
}
