package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"equity-screener/pkg/types"
)

// BrokerHistoryFetcher 券商历史K线获取器
type BrokerHistoryFetcher struct {
	baseURL    string
	userID     string
	sessionID  string
	resolver   InstrumentResolver
	httpClient *http.Client
}

// historyRequest 历史K线请求体
type historyRequest struct {
	Token      string `json:"token"`
	Exchange   string `json:"exchange"`
	Resolution string `json:"resolution"`
	From       string `json:"from"` // 毫秒时间戳
	To         string `json:"to"`
}

// historyResponse 历史K线响应
type historyResponse struct {
	Stat   string       `json:"stat"`
	Emsg   string       `json:"emsg"`
	Result []historyBar `json:"result"`
}

type historyBar struct {
	Time   string  `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// NewBrokerHistoryFetcher 创建历史K线获取器，resolver 可为空
func NewBrokerHistoryFetcher(config types.BrokerConfig, resolver InstrumentResolver) *BrokerHistoryFetcher {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := &http.Client{
		Timeout: timeout,
	}

	// 设置代理
	if config.Proxy != "" {
		proxyURL, err := url.Parse(config.Proxy)
		if err == nil {
			client.Transport = &http.Transport{
				Proxy: http.ProxyURL(proxyURL),
			}
		} else {
			zap.L().Warn("⚠️ 代理地址无效，忽略", zap.String("proxy", config.Proxy), zap.Error(err))
		}
	}

	return &BrokerHistoryFetcher{
		baseURL:    config.BaseURL,
		userID:     config.UserID,
		sessionID:  config.SessionID,
		resolver:   resolver,
		httpClient: client,
	}
}

// FetchHistory 获取 [from, to] 区间的历史K线，按时间升序返回
func (h *BrokerHistoryFetcher) FetchHistory(ctx context.Context, exchangeLabel, token string, from, to time.Time, interval string) (types.Instrument, []types.Bar, error) {
	exchange, err := ExchangeFromLabel(exchangeLabel)
	if err != nil {
		return types.Instrument{}, nil, &types.FetchError{Symbol: token, Exchange: types.Exchange(exchangeLabel), Err: err}
	}

	inst := types.Instrument{Symbol: token, Exchange: exchange, Token: token}
	if h.resolver != nil {
		resolved, err := h.resolver.ResolveInstrument(ctx, exchange, token)
		if err != nil {
			return inst, nil, &types.FetchError{Symbol: token, Exchange: exchange, Err: fmt.Errorf("resolve instrument: %w", err)}
		}
		inst = resolved
	}

	bars, err := h.fetchBars(ctx, exchangeLabel, inst.Token, from, to, interval)
	if err != nil {
		return inst, nil, &types.FetchError{Symbol: inst.Symbol, Exchange: exchange, Err: err}
	}

	zap.L().Debug("✅ 历史K线数据获取完成",
		zap.String("symbol", inst.Symbol),
		zap.String("exchange", exchangeLabel),
		zap.Int("bars", len(bars)))

	return inst, bars, nil
}

func (h *BrokerHistoryFetcher) fetchBars(ctx context.Context, exchangeLabel, token string, from, to time.Time, interval string) ([]types.Bar, error) {
	payload, err := json.Marshal(historyRequest{
		Token:      token,
		Exchange:   exchangeLabel,
		Resolution: interval,
		From:       strconv.FormatInt(from.UnixMilli(), 10),
		To:         strconv.FormatInt(to.UnixMilli(), 10),
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s %s", h.userID, h.sessionID))

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var hr historyResponse
	if err := json.Unmarshal(body, &hr); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if !strings.EqualFold(hr.Stat, "ok") {
		return nil, fmt.Errorf("broker error: stat=%s, emsg=%s", hr.Stat, hr.Emsg)
	}

	return normalizeBars(hr.Result), nil
}

// normalizeBars 转换为内部格式：按时间升序，丢弃无法解析、非有限值、负成交量和重复时间戳的行
func normalizeBars(rows []historyBar) []types.Bar {
	bars := make([]types.Bar, 0, len(rows))
	for _, row := range rows {
		ts, err := parseBarTime(row.Time)
		if err != nil {
			zap.L().Warn("解析K线时间失败", zap.String("time", row.Time), zap.Error(err))
			continue
		}
		bar := types.Bar{
			Timestamp: ts,
			Open:      row.Open,
			High:      row.High,
			Low:       row.Low,
			Close:     row.Close,
			Volume:    row.Volume,
		}
		if !bar.IsFinite() || bar.Volume < 0 {
			continue
		}
		bars = append(bars, bar)
	}

	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Timestamp.Before(bars[j].Timestamp)
	})

	out := bars[:0]
	for i, bar := range bars {
		if i > 0 && bar.Timestamp.Equal(out[len(out)-1].Timestamp) {
			continue
		}
		out = append(out, bar)
	}
	return out
}

var barTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02",
}

// parseBarTime 支持日期字符串和秒级时间戳
func parseBarTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(sec, 0).UTC(), nil
	}
	for _, layout := range barTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported time format %q", s)
}
