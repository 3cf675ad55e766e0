package indicators

import "math"

// Mean 算术平均，空序列返回0
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// SampleStdDev 样本标准差（n-1），少于两个值返回0
func SampleStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := Mean(values)
	sq := 0.0
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(values)-1))
}

// PctChanges 逐期涨跌幅（小数），前值为0时跳过
func PctChanges(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			continue
		}
		out = append(out, (values[i]-values[i-1])/values[i-1])
	}
	return out
}

// RollingMean 滚动均值，前 window-1 个值为NaN
func RollingMean(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}
	if window <= 0 {
		return out
	}
	for i := window - 1; i < len(values); i++ {
		out[i] = Mean(values[i-window+1 : i+1])
	}
	return out
}

// TailMean 最后 k 个值的均值，不足 k 个时取全部
func TailMean(values []float64, k int) float64 {
	if k <= 0 || len(values) == 0 {
		return 0
	}
	if k > len(values) {
		k = len(values)
	}
	return Mean(values[len(values)-k:])
}
