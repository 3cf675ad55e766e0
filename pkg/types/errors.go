package types

import (
	"errors"
	"fmt"
)

// ErrInsufficientData K线数量不足，按"无信号"处理
var ErrInsufficientData = errors.New("insufficient data")

// ConfigError 调用方配置错误（未知策略、缺少参数等），必须向上返回
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Reason)
}

// FetchError 单个标的的历史数据获取失败
type FetchError struct {
	Symbol   string
	Exchange Exchange
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s:%s: %v", e.Exchange, e.Symbol, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsConfigError 判断是否为配置错误
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
