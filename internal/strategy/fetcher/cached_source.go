package fetcher

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"equity-screener/pkg/types"
)

// CachedSource 进程内历史K线缓存
// 键为 (交易所标签, token, 起始日, 结束日, 周期)，无过期，失败结果不缓存
// 同一键的并发请求只会访问一次底层数据源，调用方取消只影响自身的等待
type CachedSource struct {
	source HistorySource

	entries map[string]cachedHistory
	mutex   sync.RWMutex
	group   singleflight.Group

	hits   int64
	misses int64
}

type cachedHistory struct {
	instrument types.Instrument
	bars       []types.Bar
}

// NewCachedSource 包装数据源
func NewCachedSource(source HistorySource) *CachedSource {
	return &CachedSource{
		source:  source,
		entries: make(map[string]cachedHistory),
	}
}

// CacheKey 缓存键，时间按自然日取整
func CacheKey(exchangeLabel, token string, from, to time.Time, interval string) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s", exchangeLabel, token,
		from.Format("2006-01-02"), to.Format("2006-01-02"), interval)
}

// FetchHistory 命中缓存时返回副本，否则访问底层数据源
func (cs *CachedSource) FetchHistory(ctx context.Context, exchangeLabel, token string, from, to time.Time, interval string) (types.Instrument, []types.Bar, error) {
	key := CacheKey(exchangeLabel, token, from, to, interval)

	if entry, ok := cs.lookup(key); ok {
		atomic.AddInt64(&cs.hits, 1)
		return entry.instrument, types.CloneBars(entry.bars), nil
	}

	// 共享的请求不随首个调用方取消，每个调用方只按自己的 ctx 放弃等待
	ch := cs.group.DoChan(key, func() (interface{}, error) {
		if entry, ok := cs.lookup(key); ok {
			return entry, nil
		}
		atomic.AddInt64(&cs.misses, 1)

		inst, bars, err := cs.source.FetchHistory(context.WithoutCancel(ctx), exchangeLabel, token, from, to, interval)
		if err != nil {
			return nil, err
		}

		entry := cachedHistory{instrument: inst, bars: types.CloneBars(bars)}
		cs.mutex.Lock()
		cs.entries[key] = entry
		cs.mutex.Unlock()
		return entry, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return types.Instrument{}, nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return types.Instrument{}, nil, res.Err
	}
	if res.Shared {
		zap.L().Debug("合并重复的历史数据请求", zap.String("key", key))
	}

	entry := res.Val.(cachedHistory)
	return entry.instrument, types.CloneBars(entry.bars), nil
}

func (cs *CachedSource) lookup(key string) (cachedHistory, bool) {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()
	entry, ok := cs.entries[key]
	return entry, ok
}

// Len 缓存条目数
func (cs *CachedSource) Len() int {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()
	return len(cs.entries)
}

// Purge 清空缓存
func (cs *CachedSource) Purge() {
	cs.mutex.Lock()
	cs.entries = make(map[string]cachedHistory)
	cs.mutex.Unlock()
}

// Stats 命中与未命中次数
func (cs *CachedSource) Stats() (hits, misses int64) {
	return atomic.LoadInt64(&cs.hits), atomic.LoadInt64(&cs.misses)
}
