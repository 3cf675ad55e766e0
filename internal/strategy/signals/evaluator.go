package signals

import (
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"

	"equity-screener/pkg/types"
)

// OutcomeKind 单个标的的评估结果类型
type OutcomeKind int

const (
	OutcomeNoSignal OutcomeKind = iota
	OutcomeSignal
	OutcomeInsufficientData
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSignal:
		return "signal"
	case OutcomeNoSignal:
		return "no_signal"
	case OutcomeInsufficientData:
		return "insufficient_data"
	case OutcomeFailed:
		return "failed"
	}
	return fmt.Sprintf("outcome(%d)", int(k))
}

// Outcome 评估结果，Kind 为 OutcomeSignal 时 Result 非空，为 OutcomeFailed 时 Err 非空
type Outcome struct {
	Kind   OutcomeKind
	Result *types.SignalResult
	Reason string
	Err    error
}

// Evaluator 单一策略的信号评估器
// Evaluate 只读取传入的K线，不保留任何调用间状态
type Evaluator interface {
	Strategy() types.Strategy
	HistoryDays() int // 需要请求的历史天数（自然日）
	MinBars() int
	Evaluate(inst types.Instrument, bars []types.Bar) Outcome
}

func signal(result *types.SignalResult) Outcome {
	return Outcome{Kind: OutcomeSignal, Result: result}
}

func noSignal(reason string) Outcome {
	return Outcome{Kind: OutcomeNoSignal, Reason: reason}
}

func insufficient(have, need int) Outcome {
	return Outcome{
		Kind:   OutcomeInsufficientData,
		Reason: fmt.Sprintf("%d bars, need %d", have, need),
		Err:    types.ErrInsufficientData,
	}
}

func failed(err error) Outcome {
	return Outcome{Kind: OutcomeFailed, Reason: err.Error(), Err: err}
}

// guard 把评估过程中的panic转换为失败结果
func guard(inst types.Instrument, out *Outcome) {
	if r := recover(); r != nil {
		zap.L().Error("❌ 策略评估发生panic",
			zap.String("symbol", inst.Symbol),
			zap.Any("panic", r),
			zap.ByteString("stack", debug.Stack()))
		*out = failed(fmt.Errorf("evaluator panic: %v", r))
	}
}
