package types

// SignalResult 单个标的的筛选结果
// 由策略一次性构造，之后不再修改；切片字段归该记录所有
type SignalResult struct {
	Symbol     string   `json:"symbol"`
	Exchange   Exchange `json:"exchange"`
	Strategy   Strategy `json:"strategy"`
	ClosePrice float64  `json:"close_price"`
	Strength   float64  `json:"strength"`

	// 支撑/阻力策略
	Support     float64 `json:"support,omitempty"`
	Resistance  float64 `json:"resistance,omitempty"`
	DistancePct float64 `json:"distance_pct,omitempty"`
	RSI         float64 `json:"rsi,omitempty"`
	Trend       string  `json:"trend,omitempty"`
	Touches     int     `json:"touches,omitempty"`

	// K线形态/市场结构/成交量分布
	Patterns        []string     `json:"patterns,omitempty"`
	MarketStructure Trend        `json:"market_structure,omitempty"`
	VolumeNodes     []VolumeNode `json:"volume_nodes,omitempty"`

	// 自定义涨跌幅
	StartPrice       float64   `json:"start_price,omitempty"`
	PercentageChange float64   `json:"percentage_change,omitempty"`
	VolumeTrend      string    `json:"volume_trend,omitempty"`
	Volatility       float64   `json:"volatility,omitempty"`
	DurationDays     int       `json:"duration_days,omitempty"`
	Direction        Direction `json:"direction,omitempty"`
}

// 支撑/阻力策略的趋势标签
const (
	ZoneTrendBullish = "Bullish"
	ZoneTrendBearish = "Bearish"
)

// 成交量趋势标签
const (
	VolumeTrendIncreasing = "Increasing"
	VolumeTrendDecreasing = "Decreasing"
)

// AnalysisRequest 一次筛选请求
type AnalysisRequest struct {
	Strategy      Strategy             `json:"strategy"`
	Exchange      Exchange             `json:"exchange"`
	Symbols       []string             `json:"symbols"`
	PriceMovement *PriceMovementParams `json:"price_movement,omitempty"`
}
