package storage

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"equity-screener/internal/strategy/engine"
	"equity-screener/pkg/types"
)

// DefaultResultTTL 筛选结果默认缓存时间
const DefaultResultTTL = 5 * time.Minute

const keyPrefix = "screener:result:"

// memoryEntry 内存缓存条目，保存序列化后的结果以便每次返回独立副本
type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// ResultCache 筛选结果的TTL缓存：内存 + 可选Redis
type ResultCache struct {
	entries     map[string]memoryEntry
	mutex       sync.RWMutex
	ttl         time.Duration
	redisClient *redis.Client
	useRedis    bool
	now         func() time.Time
}

// NewResultCache 创建结果缓存，Redis不可用时使用纯内存模式
func NewResultCache(redisConfig types.RedisConfig, ttl time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = DefaultResultTTL
	}
	rc := &ResultCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}

	// 尝试连接Redis
	if redisConfig.URL != "" {
		rc.redisClient = redis.NewClient(&redis.Options{
			Addr:     redisConfig.URL,
			Password: redisConfig.Password,
			DB:       redisConfig.DB,
		})

		// 测试连接
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := rc.redisClient.Ping(ctx).Err(); err != nil {
			zap.L().Warn("⚠️ Redis连接失败，使用纯内存模式", zap.Error(err))
			_ = rc.redisClient.Close()
			rc.redisClient = nil
		} else {
			zap.L().Info("✅ Redis连接成功", zap.String("addr", redisConfig.URL))
			rc.useRedis = true
		}
	} else {
		zap.L().Info("🔧 未配置Redis，使用纯内存模式")
	}

	return rc
}

// ResultKey 由策略、交易所、参数和排序后的标的集合生成缓存键
func ResultKey(req types.AnalysisRequest) string {
	symbols := make([]string, 0, len(req.Symbols))
	for _, s := range req.Symbols {
		if s = strings.TrimSpace(s); s != "" {
			symbols = append(symbols, s)
		}
	}
	sort.Strings(symbols)

	params := ""
	if req.PriceMovement != nil {
		p := req.PriceMovement
		params = fmt.Sprintf("%d:%g:%s", p.DurationDays, p.TargetPercentage, p.Direction)
	}

	sum := sha1.Sum([]byte(strings.Join(symbols, ",")))
	return fmt.Sprintf("%s%s:%s:%s:%s", keyPrefix, req.Strategy, req.Exchange, params, hex.EncodeToString(sum[:]))
}

// Get 读取未过期的结果，先查内存再查Redis
func (rc *ResultCache) Get(ctx context.Context, key string) (*engine.RunReport, bool) {
	rc.mutex.RLock()
	entry, ok := rc.entries[key]
	rc.mutex.RUnlock()

	if ok && rc.now().Before(entry.expiresAt) {
		return decodeReport(key, entry.data)
	}

	if !rc.useRedis {
		return nil, false
	}

	data, err := rc.redisClient.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			zap.L().Warn("Redis读取失败", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	// 回填内存，过期时间以Redis剩余TTL为准
	ttl, err := rc.redisClient.TTL(ctx, key).Result()
	if err == nil && ttl > 0 {
		rc.mutex.Lock()
		rc.entries[key] = memoryEntry{data: data, expiresAt: rc.now().Add(ttl)}
		rc.mutex.Unlock()
	}

	return decodeReport(key, data)
}

// Put 写入结果
func (rc *ResultCache) Put(ctx context.Context, key string, report *engine.RunReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	rc.mutex.Lock()
	rc.entries[key] = memoryEntry{data: data, expiresAt: rc.now().Add(rc.ttl)}
	rc.mutex.Unlock()

	if rc.useRedis {
		if err := rc.redisClient.Set(ctx, key, data, rc.ttl).Err(); err != nil {
			zap.L().Warn("Redis写入失败", zap.String("key", key), zap.Error(err))
		}
	}
	return nil
}

// Sweep 清理已过期的内存条目，返回清理数量
func (rc *ResultCache) Sweep() int {
	now := rc.now()
	rc.mutex.Lock()
	defer rc.mutex.Unlock()

	removed := 0
	for key, entry := range rc.entries {
		if !now.Before(entry.expiresAt) {
			delete(rc.entries, key)
			removed++
		}
	}
	return removed
}

// Stats 缓存统计信息
func (rc *ResultCache) Stats() map[string]interface{} {
	rc.mutex.RLock()
	stats := map[string]interface{}{
		"redis_enabled":  rc.useRedis,
		"memory_entries": len(rc.entries),
		"ttl":            rc.ttl.String(),
	}
	rc.mutex.RUnlock()

	if rc.useRedis {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		keys, err := rc.redisClient.Keys(ctx, keyPrefix+"*").Result()
		if err == nil {
			stats["redis_keys"] = len(keys)
		} else {
			stats["redis_error"] = err.Error()
		}
	}

	return stats
}

// Close 关闭Redis连接
func (rc *ResultCache) Close() error {
	if rc.redisClient != nil {
		return rc.redisClient.Close()
	}
	return nil
}

func decodeReport(key string, data []byte) (*engine.RunReport, bool) {
	var report engine.RunReport
	if err := json.Unmarshal(data, &report); err != nil {
		zap.L().Warn("缓存数据解析失败", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return &report, true
}
