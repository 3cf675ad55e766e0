package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"equity-screener/internal/strategy/database"
	"equity-screener/pkg/types"
)

// InstrumentStore 合约主数据存储
type InstrumentStore interface {
	UpsertInstruments(ctx context.Context, instruments []database.Instrument) error
}

// ContractLoader 合约主数据下载器
type ContractLoader struct {
	contractURL string
	store       InstrumentStore
	httpClient  *http.Client
	attempts    int
	backoff     time.Duration
}

// Contract 合约主数据中的一条记录
type Contract struct {
	Exchange      string `json:"exch"`
	Token         string `json:"token"`
	Symbol        string `json:"symbol"`
	TradingSymbol string `json:"trading_symbol"`
	Name          string `json:"formatted_ins_name"`
}

func NewContractLoader(config types.BrokerConfig, store InstrumentStore) *ContractLoader {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	httpClient := &http.Client{
		Timeout:   timeout,
		Transport: &http.Transport{},
	}

	// 如果配置了代理，则使用代理
	if config.Proxy != "" {
		proxyURL, err := url.Parse(config.Proxy)
		if err == nil {
			httpClient.Transport.(*http.Transport).Proxy = http.ProxyURL(proxyURL)
			zap.L().Info("✅ 已配置HTTP代理", zap.String("proxy", config.Proxy))
		} else {
			zap.L().Warn("⚠️ 代理地址格式错误", zap.Error(err))
		}
	}

	return &ContractLoader{
		contractURL: config.ContractURL,
		store:       store,
		httpClient:  httpClient,
		attempts:    3,
		backoff:     time.Second,
	}
}

// Sync 下载某交易所的合约主数据并写入数据库，返回写入条数
func (c *ContractLoader) Sync(ctx context.Context, exchange types.Exchange) (int, error) {
	zap.L().Info("🔄 正在下载合约主数据...", zap.String("exchange", string(exchange)))

	contracts, err := c.Download(ctx, exchange)
	if err != nil {
		zap.L().Error("❌ 下载合约主数据失败", zap.String("exchange", string(exchange)), zap.Error(err))
		return 0, err
	}

	rows := ToInstruments(exchange, contracts)
	if err := c.store.UpsertInstruments(ctx, rows); err != nil {
		return 0, err
	}

	zap.L().Info("✅ 合约主数据同步完成",
		zap.String("exchange", string(exchange)),
		zap.Int("downloaded", len(contracts)),
		zap.Int("saved", len(rows)))
	return len(rows), nil
}

// Download 下载合约主数据，失败最多重试3次
func (c *ContractLoader) Download(ctx context.Context, exchange types.Exchange) ([]Contract, error) {
	if c.contractURL == "" {
		return nil, &types.ConfigError{Field: "broker.contract_url", Reason: "is empty"}
	}
	apiURL := c.contractURL
	if strings.Contains(apiURL, "%s") {
		apiURL = fmt.Sprintf(apiURL, string(exchange))
	}

	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if attempt > 1 {
			zap.L().Info("🔄 重试下载合约数据", zap.Int("attempt", attempt))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * c.backoff):
			}
		}

		contracts, err := c.download(ctx, apiURL, exchange)
		if err == nil {
			return contracts, nil
		}
		lastErr = fmt.Errorf("第%d次尝试: %w", attempt, err)
	}

	return nil, lastErr
}

func (c *ContractLoader) download(ctx context.Context, apiURL string, exchange types.Exchange) ([]Contract, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP状态码错误: %d", resp.StatusCode)
	}

	var body bytes.Buffer
	if _, err := body.ReadFrom(resp.Body); err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}

	// 响应格式: {"NSE": [ {...}, ... ]}
	var payload map[string][]Contract
	if err := json.Unmarshal(body.Bytes(), &payload); err != nil {
		return nil, fmt.Errorf("解析合约数据失败: %w", err)
	}

	for key, contracts := range payload {
		if ex, err := ExchangeKey(key); err == nil && ex == exchange {
			return contracts, nil
		}
	}
	return nil, fmt.Errorf("响应中没有 %s 合约数据", exchange)
}

// ExchangeKey 解析合约数据中的交易所键
func ExchangeKey(key string) (types.Exchange, error) {
	if i := strings.Index(key, " ("); i > 0 {
		key = key[:i]
	}
	return types.ParseExchange(key)
}

// ToInstruments 转换为数据库模型，跳过缺少token或代码的记录，同一token保留最后一条
func ToInstruments(exchange types.Exchange, contracts []Contract) []database.Instrument {
	index := make(map[string]int, len(contracts))
	rows := make([]database.Instrument, 0, len(contracts))
	for _, ct := range contracts {
		token := strings.TrimSpace(ct.Token)
		symbol := strings.TrimSpace(ct.Symbol)
		if symbol == "" {
			symbol = strings.TrimSpace(ct.TradingSymbol)
		}
		if token == "" || symbol == "" {
			continue
		}
		row := database.Instrument{
			Exchange: string(exchange),
			Token:    token,
			Symbol:   strings.ToUpper(symbol),
			Name:     strings.TrimSpace(ct.Name),
		}
		if i, ok := index[token]; ok {
			rows[i] = row
			continue
		}
		index[token] = len(rows)
		rows = append(rows, row)
	}
	return rows
}
