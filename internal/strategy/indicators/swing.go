package indicators

import (
	"math"

	"equity-screener/pkg/types"
)

// DefaultSwingWindow 默认窗口 max(round(0.05*n), 5)
func DefaultSwingWindow(n int) int {
	w := int(math.Round(0.05 * float64(n)))
	if w < 5 {
		w = 5
	}
	return w
}

// SwingDetector 摆动点检测器
// 下标 i 的值不大于（不小于）窗口 [i-w, i+w] 内所有值即为局部极小（极大），相等也算
type SwingDetector struct {
	window int
}

// NewSwingDetector 创建摆动点检测器，window<=0 表示按序列长度自适应
func NewSwingDetector(window int) *SwingDetector {
	return &SwingDetector{
		window: window,
	}
}

// Minima 局部极小点，下标升序
func (sd *SwingDetector) Minima(values []float64) []types.SwingPoint {
	return sd.detect(values, types.SwingMin)
}

// Maxima 局部极大点，下标升序
func (sd *SwingDetector) Maxima(values []float64) []types.SwingPoint {
	return sd.detect(values, types.SwingMax)
}

func (sd *SwingDetector) detect(values []float64, kind types.SwingKind) []types.SwingPoint {
	points := make([]types.SwingPoint, 0)
	n := len(values)
	if n == 0 {
		return points
	}

	w := sd.window
	if w <= 0 {
		w = DefaultSwingWindow(n)
	}

	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		lo, hi := i-w, i+w
		if lo < 0 {
			lo = 0
		}
		if hi > n-1 {
			hi = n - 1
		}

		extreme := true
		for j := lo; j <= hi && extreme; j++ {
			if kind == types.SwingMin {
				extreme = v <= values[j]
			} else {
				extreme = v >= values[j]
			}
		}
		if extreme {
			points = append(points, types.SwingPoint{Index: i, Price: v, Kind: kind})
		}
	}

	return points
}
