package types

import (
	"fmt"
	"strings"
)

// Strategy 筛选策略
type Strategy string

const (
	StrategyBullishZone         Strategy = "bullish_zone"
	StrategyBearishZone         Strategy = "bearish_zone"
	StrategyPriceActionBreakout Strategy = "price_action_breakout"
	StrategyVolumeProfile       Strategy = "volume_profile"
	StrategyMarketStructure     Strategy = "market_structure"
	StrategyMultiFactor         Strategy = "multi_factor"
	StrategyPriceMovement       Strategy = "price_movement"
)

// Strategies 所有支持的策略
var Strategies = []Strategy{
	StrategyBullishZone,
	StrategyBearishZone,
	StrategyPriceActionBreakout,
	StrategyVolumeProfile,
	StrategyMarketStructure,
	StrategyMultiFactor,
	StrategyPriceMovement,
}

// 页面上使用的策略显示名
var strategyAliases = map[string]Strategy{
	"bullish":                   StrategyBullishZone,
	"bearish":                   StrategyBearishZone,
	"price action breakout":     StrategyPriceActionBreakout,
	"volume profile analysis":   StrategyVolumeProfile,
	"market structure analysis": StrategyMarketStructure,
	"multi-factor analysis":     StrategyMultiFactor,
	"custom price movement":     StrategyPriceMovement,
}

// ParseStrategy 解析策略名，支持内部名和显示名
func ParseStrategy(s string) (Strategy, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, st := range Strategies {
		if string(st) == name {
			return st, nil
		}
	}
	if st, ok := strategyAliases[name]; ok {
		return st, nil
	}
	return "", &ConfigError{Field: "strategy", Reason: fmt.Sprintf("unknown strategy %q", s)}
}

// IsZoneStrategy 支撑/阻力类策略（排序时参考距离）
func (s Strategy) IsZoneStrategy() bool {
	return s == StrategyBullishZone || s == StrategyBearishZone
}

// Direction 涨跌方向
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// PriceMovementParams 自定义涨跌幅策略参数
type PriceMovementParams struct {
	DurationDays     int       `mapstructure:"duration_days" json:"duration_days"`
	TargetPercentage float64   `mapstructure:"target_percentage" json:"target_percentage"`
	Direction        Direction `mapstructure:"direction" json:"direction"`
}

// Validate 校验参数
func (p *PriceMovementParams) Validate() error {
	if p == nil {
		return &ConfigError{Field: "price_movement", Reason: "parameters are required"}
	}
	if p.DurationDays <= 0 {
		return &ConfigError{Field: "price_movement.duration_days", Reason: "must be positive"}
	}
	if p.TargetPercentage <= 0 {
		return &ConfigError{Field: "price_movement.target_percentage", Reason: "must be positive"}
	}
	if p.Direction != DirectionUp && p.Direction != DirectionDown {
		return &ConfigError{Field: "price_movement.direction", Reason: fmt.Sprintf("must be up or down, got %q", p.Direction)}
	}
	return nil
}

// StrategyConfig 策略配置总入口
type StrategyConfig struct {
	Zone            ZoneConfig            `mapstructure:"zone"`
	Advanced        AdvancedConfig        `mapstructure:"advanced"`
	PriceMovement   PriceMovementParams   `mapstructure:"price_movement"` // 命令行未指定时的默认参数
	MarketStructure MarketStructureConfig `mapstructure:"market_structure"`
}

// ZoneConfig 支撑/阻力策略配置
type ZoneConfig struct {
	HistoryDays      int     `mapstructure:"history_days"`      // 默认730天
	MinBars          int     `mapstructure:"min_bars"`          // 默认100
	RecentBars       int     `mapstructure:"recent_bars"`       // 只看最近N根K线内的摆动点，默认126（约6个月）
	SwingWindow      int     `mapstructure:"swing_window"`      // 0表示按序列长度自适应
	ClusterThreshold float64 `mapstructure:"cluster_threshold"` // 默认0.02
	SupportMinRatio  float64 `mapstructure:"support_min_ratio"` // 默认1.05
	SupportMaxRatio  float64 `mapstructure:"support_max_ratio"` // 默认1.20
	ResistMinRatio   float64 `mapstructure:"resist_min_ratio"`  // 默认0.80
	ResistMaxRatio   float64 `mapstructure:"resist_max_ratio"`  // 默认0.95
	VolumeRatio      float64 `mapstructure:"volume_ratio"`      // 默认0.8
	FastEMA          int     `mapstructure:"fast_ema"`          // 默认50
	SlowEMA          int     `mapstructure:"slow_ema"`          // 默认200
	RSIPeriod        int     `mapstructure:"rsi_period"`        // 默认14
	RSILower         float64 `mapstructure:"rsi_lower"`         // 默认30
	RSIUpper         float64 `mapstructure:"rsi_upper"`         // 默认70
}

// AdvancedConfig K线形态/成交量分布/多因子策略配置
type AdvancedConfig struct {
	HistoryDays       int     `mapstructure:"history_days"`        // 默认365天
	MinBars           int     `mapstructure:"min_bars"`            // 默认100
	VolumeBins        int     `mapstructure:"volume_bins"`         // 默认50
	VolumeAvgPeriod   int     `mapstructure:"volume_avg_period"`   // 默认20
	VolumeMultiplier  float64 `mapstructure:"volume_multiplier"`   // 默认1.5
	NodeProximity     float64 `mapstructure:"node_proximity"`      // 默认0.02
	PatternWeight     float64 `mapstructure:"pattern_weight"`      // 默认2
	NodeWeight        float64 `mapstructure:"node_weight"`         // 默认3
	TrendScore        float64 `mapstructure:"trend_score"`         // 默认5
	DojiBodyRatio     float64 `mapstructure:"doji_body_ratio"`     // 默认0.1
	HammerShadowRatio float64 `mapstructure:"hammer_shadow_ratio"` // 默认2
}

// MarketStructureConfig 市场结构配置
type MarketStructureConfig struct {
	SwingWindow int `mapstructure:"swing_window"` // 默认5
	SwingCount  int `mapstructure:"swing_count"`  // 默认取最近3个摆动点
}

// DefaultStrategyConfig 默认策略配置
func DefaultStrategyConfig() StrategyConfig {
	return StrategyConfig{
		Zone: ZoneConfig{
			HistoryDays:      730,
			MinBars:          100,
			RecentBars:       126,
			ClusterThreshold: 0.02,
			SupportMinRatio:  1.05,
			SupportMaxRatio:  1.20,
			ResistMinRatio:   0.80,
			ResistMaxRatio:   0.95,
			VolumeRatio:      0.8,
			FastEMA:          50,
			SlowEMA:          200,
			RSIPeriod:        14,
			RSILower:         30,
			RSIUpper:         70,
		},
		Advanced: AdvancedConfig{
			HistoryDays:       365,
			MinBars:           100,
			VolumeBins:        50,
			VolumeAvgPeriod:   20,
			VolumeMultiplier:  1.5,
			NodeProximity:     0.02,
			PatternWeight:     2,
			NodeWeight:        3,
			TrendScore:        5,
			DojiBodyRatio:     0.1,
			HammerShadowRatio: 2,
		},
		PriceMovement: PriceMovementParams{
			DurationDays:     30,
			TargetPercentage: 10,
			Direction:        DirectionUp,
		},
		MarketStructure: MarketStructureConfig{
			SwingWindow: 5,
			SwingCount:  3,
		},
	}
}
