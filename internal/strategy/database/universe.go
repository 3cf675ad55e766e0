package database

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"equity-screener/pkg/types"
)

// Universe 股票池来源
type Universe interface {
	Lists(ctx context.Context, exchange types.Exchange) ([]string, error)
	Tokens(ctx context.Context, exchange types.Exchange, list string) ([]string, error)
}

// StaticUniverse 配置文件中的静态股票池，未配置MySQL时使用
type StaticUniverse struct {
	lists map[types.Exchange]map[string][]string
}

// NewStaticUniverse 由配置创建，交易所和股票池名称不区分大小写
func NewStaticUniverse(config map[string]map[string][]string) *StaticUniverse {
	su := &StaticUniverse{lists: make(map[types.Exchange]map[string][]string)}
	for ex, lists := range config {
		exchange, err := types.ParseExchange(ex)
		if err != nil {
			continue
		}
		if su.lists[exchange] == nil {
			su.lists[exchange] = make(map[string][]string)
		}
		for name, tokens := range lists {
			su.lists[exchange][normalizeListName(name)] = tokens
		}
	}
	return su
}

// Lists 某交易所的股票池名称
func (su *StaticUniverse) Lists(_ context.Context, exchange types.Exchange) ([]string, error) {
	names := make([]string, 0, len(su.lists[exchange]))
	for name := range su.lists[exchange] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Tokens 股票池成员token
func (su *StaticUniverse) Tokens(_ context.Context, exchange types.Exchange, list string) ([]string, error) {
	tokens, ok := su.lists[exchange][normalizeListName(list)]
	if !ok || len(tokens) == 0 {
		return nil, fmt.Errorf("list %s:%s: %w", exchange, list, ErrNotFound)
	}
	out := make([]string, len(tokens))
	copy(out, tokens)
	return out, nil
}

// 配置经viper读取后键名为小写，这里统一成小写比较
func normalizeListName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
