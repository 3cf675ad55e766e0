package fetcher

import (
	"context"
	"strings"
	"time"

	"equity-screener/pkg/types"
)

// HistorySource 历史K线数据源
// exchangeLabel 为券商接口使用的交易所标签（见 types.Exchange.VendorLabel）
type HistorySource interface {
	FetchHistory(ctx context.Context, exchangeLabel, token string, from, to time.Time, interval string) (types.Instrument, []types.Bar, error)
}

// InstrumentResolver 根据交易所和token查找标的
type InstrumentResolver interface {
	ResolveInstrument(ctx context.Context, exchange types.Exchange, token string) (types.Instrument, error)
}

// ExchangeFromLabel 把券商交易所标签还原为交易所
func ExchangeFromLabel(label string) (types.Exchange, error) {
	if i := strings.Index(label, " ("); i > 0 {
		label = label[:i]
	}
	return types.ParseExchange(label)
}
