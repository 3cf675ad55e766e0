package types

// SwingKind 摆动点类型
type SwingKind string

const (
	SwingMin SwingKind = "min"
	SwingMax SwingKind = "max"
)

// SwingPoint 局部极值点
type SwingPoint struct {
	Index int       `json:"index"`
	Price float64   `json:"price"`
	Kind  SwingKind `json:"kind"`
}

// Zone 候选支撑/阻力位
type Zone struct {
	Price   float64 `json:"price"`
	Index   int     `json:"index"`   // 对应K线下标
	Touches int     `json:"touches"` // 触及次数
}

// ZoneCluster 聚类后的支撑/阻力区间
type ZoneCluster struct {
	Price   float64 `json:"price"`   // 成员价格均值
	Touches int     `json:"touches"` // 成员数量
}

// VolumeNode 成交量分布中的一个价格区间
type VolumeNode struct {
	PriceLevel float64 `json:"price_level"` // 区间下沿
	Volume     float64 `json:"volume"`
}

// VolumeProfile 成交量分布
type VolumeProfile struct {
	Low     float64      `json:"low"`
	High    float64      `json:"high"`
	BinSize float64      `json:"bin_size"`
	Bins    []VolumeNode `json:"bins"`
	Mean    float64      `json:"mean"`
	StdDev  float64      `json:"std_dev"` // 样本标准差
}

// HighVolumeNodes 成交量高于 均值+1倍标准差 的区间
func (vp VolumeProfile) HighVolumeNodes() []VolumeNode {
	nodes := make([]VolumeNode, 0)
	threshold := vp.Mean + vp.StdDev
	for _, bin := range vp.Bins {
		if bin.Volume > threshold {
			nodes = append(nodes, bin)
		}
	}
	return nodes
}

// Trend 市场结构
type Trend string

const (
	TrendUp        Trend = "Uptrend"
	TrendDown      Trend = "Downtrend"
	TrendSideways  Trend = "Sideways"
	TrendUndefined Trend = "Undefined"
)

// IsTrending 是否处于单边趋势
func (t Trend) IsTrending() bool {
	return t == TrendUp || t == TrendDown
}
