package signals

import (
	"fmt"

	"equity-screener/pkg/types"
)

// NewEvaluator 按策略创建评估器
// 未知策略或自定义涨跌幅缺少参数时返回 *types.ConfigError
func NewEvaluator(strategy types.Strategy, params *types.PriceMovementParams, config types.StrategyConfig) (Evaluator, error) {
	switch strategy {
	case types.StrategyBullishZone:
		return NewBullishZoneEvaluator(config.Zone), nil
	case types.StrategyBearishZone:
		return NewBearishZoneEvaluator(config.Zone), nil
	case types.StrategyPriceActionBreakout, types.StrategyVolumeProfile,
		types.StrategyMarketStructure, types.StrategyMultiFactor:
		ev, err := NewAdvancedEvaluator(strategy, config.Advanced, config.MarketStructure)
		if err != nil {
			return nil, err
		}
		return ev, nil
	case types.StrategyPriceMovement:
		ev, err := NewPriceMovementEvaluator(params)
		if err != nil {
			return nil, err
		}
		return ev, nil
	}
	return nil, &types.ConfigError{Field: "strategy", Reason: fmt.Sprintf("unknown strategy %q", strategy)}
}
