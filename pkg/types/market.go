package types

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Exchange 交易所
type Exchange string

const (
	ExchangeNSE Exchange = "NSE"
	ExchangeBSE Exchange = "BSE"
)

// ParseExchange 解析交易所名称（不区分大小写）
func ParseExchange(s string) (Exchange, error) {
	switch Exchange(strings.ToUpper(strings.TrimSpace(s))) {
	case ExchangeNSE:
		return ExchangeNSE, nil
	case ExchangeBSE:
		return ExchangeBSE, nil
	}
	return "", &ConfigError{Field: "exchange", Reason: fmt.Sprintf("unknown exchange %q", s)}
}

// VendorLabel 券商接口使用的交易所标签
func (e Exchange) VendorLabel() string {
	if e == ExchangeBSE {
		return "BSE (1)"
	}
	return string(ExchangeNSE)
}

// Instrument 交易标的
type Instrument struct {
	Symbol   string   `json:"symbol"`
	Exchange Exchange `json:"exchange"`
	Token    string   `json:"token"`
}

// Bar 日线K线
type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// IsFinite 所有价格和成交量字段均为有限值
func (b Bar) IsFinite() bool {
	for _, v := range []float64{b.Open, b.High, b.Low, b.Close, b.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// ValidateSeries 校验K线序列：时间严格递增、成交量非负
func ValidateSeries(bars []Bar) error {
	for i, b := range bars {
		if b.Volume < 0 {
			return fmt.Errorf("bar %d: negative volume %.2f", i, b.Volume)
		}
		if i > 0 && !b.Timestamp.After(bars[i-1].Timestamp) {
			return fmt.Errorf("bar %d: timestamp %s not after %s", i,
				b.Timestamp.Format(time.RFC3339), bars[i-1].Timestamp.Format(time.RFC3339))
		}
	}
	return nil
}

// CloneBars 复制K线序列
func CloneBars(bars []Bar) []Bar {
	if bars == nil {
		return nil
	}
	out := make([]Bar, len(bars))
	copy(out, bars)
	return out
}

// Closes 提取收盘价
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// Highs 提取最高价
func Highs(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.High
	}
	return out
}

// Lows 提取最低价
func Lows(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Low
	}
	return out
}

// Volumes 提取成交量
func Volumes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Volume
	}
	return out
}
