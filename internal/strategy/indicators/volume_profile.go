package indicators

import (
	"equity-screener/pkg/types"
)

// VolumeProfileCalculator 成交量分布计算器
type VolumeProfileCalculator struct {
	bins int
}

// NewVolumeProfileCalculator 创建成交量分布计算器，bins<=0 时使用50
func NewVolumeProfileCalculator(bins int) *VolumeProfileCalculator {
	if bins <= 0 {
		bins = 50
	}
	return &VolumeProfileCalculator{
		bins: bins,
	}
}

// Calculate 把 [最低价, 最高价] 等分为 bins 个区间，按收盘价归集成交量
// 价格区间为零（或没有数据）时返回空分布
func (vc *VolumeProfileCalculator) Calculate(bars []types.Bar) types.VolumeProfile {
	if len(bars) == 0 {
		return types.VolumeProfile{}
	}

	low, high := bars[0].Low, bars[0].High
	for _, b := range bars[1:] {
		if b.Low < low {
			low = b.Low
		}
		if b.High > high {
			high = b.High
		}
	}

	profile := types.VolumeProfile{Low: low, High: high}
	priceRange := high - low
	if priceRange <= 0 {
		return profile
	}

	binSize := priceRange / float64(vc.bins)
	profile.BinSize = binSize
	profile.Bins = make([]types.VolumeNode, vc.bins)
	for i := range profile.Bins {
		profile.Bins[i].PriceLevel = low + float64(i)*binSize
	}

	for _, b := range bars {
		idx := int((b.Close - low) / binSize)
		if idx < 0 {
			continue
		}
		// 收盘价等于最高价时落在最后一个区间
		if idx >= vc.bins {
			idx = vc.bins - 1
		}
		profile.Bins[idx].Volume += b.Volume
	}

	volumes := make([]float64, len(profile.Bins))
	for i, bin := range profile.Bins {
		volumes[i] = bin.Volume
	}
	profile.Mean = Mean(volumes)
	profile.StdDev = SampleStdDev(volumes)

	return profile
}
