package signals

import (
	"math"

	"equity-screener/internal/strategy/indicators"
	"equity-screener/pkg/types"
)

// PriceMovementEvaluator 自定义涨跌幅策略
// 比较最近 duration 根K线前的收盘价与最新收盘价
type PriceMovementEvaluator struct {
	params types.PriceMovementParams
}

// NewPriceMovementEvaluator 创建评估器，参数不合法时返回 *types.ConfigError
func NewPriceMovementEvaluator(params *types.PriceMovementParams) (*PriceMovementEvaluator, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &PriceMovementEvaluator{params: *params}, nil
}

func (pe *PriceMovementEvaluator) Strategy() types.Strategy { return types.StrategyPriceMovement }

// HistoryDays 至少两倍周期，且不少于一年
func (pe *PriceMovementEvaluator) HistoryDays() int {
	days := 2 * pe.params.DurationDays
	if days < 365 {
		days = 365
	}
	return days
}

func (pe *PriceMovementEvaluator) MinBars() int { return pe.params.DurationDays }

// Evaluate 评估单个标的
func (pe *PriceMovementEvaluator) Evaluate(inst types.Instrument, bars []types.Bar) (out Outcome) {
	defer guard(inst, &out)

	n := len(bars)
	if n < pe.params.DurationDays {
		return insufficient(n, pe.params.DurationDays)
	}

	closes := types.Closes(bars)
	start := closes[n-pe.params.DurationDays]
	current := closes[n-1]
	if start == 0 {
		return noSignal("zero start price")
	}

	change := (current - start) / start * 100
	met := change >= pe.params.TargetPercentage
	if pe.params.Direction == types.DirectionDown {
		met = change <= -pe.params.TargetPercentage
	}
	if !met {
		return noSignal("target not reached")
	}

	volumes := types.Volumes(bars)
	volumeTrend := types.VolumeTrendDecreasing
	if indicators.TailMean(volumes, 5) > indicators.TailMean(volumes, 20) {
		volumeTrend = types.VolumeTrendIncreasing
	}

	return signal(&types.SignalResult{
		Symbol:           inst.Symbol,
		Exchange:         inst.Exchange,
		Strategy:         types.StrategyPriceMovement,
		ClosePrice:       current,
		Strength:         math.Abs(change) / pe.params.TargetPercentage,
		StartPrice:       start,
		PercentageChange: change,
		VolumeTrend:      volumeTrend,
		Volatility:       indicators.SampleStdDev(indicators.PctChanges(closes)) * 100,
		DurationDays:     pe.params.DurationDays,
		Direction:        pe.params.Direction,
	})
}
