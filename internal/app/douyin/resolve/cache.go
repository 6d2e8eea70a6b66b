package resolve

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"dydl.local/internal/platform/metrics"
	"github.com/dgraph-io/ristretto"
	"github.com/redis/go-redis/v9"
)

// LocalCache 基于 ristretto 的本地内存缓存（L1）。
type LocalCache struct {
	cache *ristretto.Cache
	ttl   time.Duration
}

// NewLocalCache 创建本地缓存
// maxItems: 最大缓存条目数
func NewLocalCache(maxItems int64, ttl time.Duration) (*LocalCache, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxItems * 10, // 计数器数量，建议为 maxItems 的 10 倍
		MaxCost:     maxItems,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &LocalCache{cache: cache, ttl: ttl}, nil
}

func (l *LocalCache) Get(link string) (Outcome, bool) {
	if v, ok := l.cache.Get(link); ok {
		return v.(Outcome), true
	}
	return Outcome{}, false
}

func (l *LocalCache) Set(link string, out Outcome) {
	// cost=1 表示按条目数限制
	l.cache.SetWithTTL(link, out, 1, l.ttl)
}

func (l *LocalCache) Close() {
	l.cache.Close()
}

// Cache 是解析结果的两级缓存：L1 本地 ristretto，L2 Redis。
//
// 同一条短链对应的落地页基本不会变，但源站签名有有效期，
// 所以 TTL 不能太长（默认 1h）。只缓存成功结果，失败大多是
// 瞬时网络问题，缓存失败会把坏结果放大。
type Cache struct {
	client *redis.Client
	local  *LocalCache
	ttl    time.Duration
}

func NewCache(client *redis.Client, local *LocalCache, ttl time.Duration) *Cache {
	return &Cache{client: client, local: local, ttl: ttl}
}

func (c *Cache) Get(ctx context.Context, link string) (Outcome, bool) {
	// L1: 本地缓存
	if c.local != nil {
		if out, ok := c.local.Get(link); ok {
			metrics.CacheOperations.WithLabelValues("l1", "hit").Inc()
			return out, true
		}
	}

	if c.client == nil {
		return Outcome{}, false
	}

	// L2: Redis
	res, err := c.client.Get(ctx, "rl:"+link).Result()
	if err == redis.Nil {
		metrics.CacheOperations.WithLabelValues("l2", "miss").Inc()
		return Outcome{}, false
	}
	if err != nil {
		slog.Warn("resolve cache get failed", "err", err)
		return Outcome{}, false
	}

	var out Outcome
	if err := json.Unmarshal([]byte(res), &out); err != nil {
		// 脏数据当未命中处理
		return Outcome{}, false
	}
	metrics.CacheOperations.WithLabelValues("l2", "hit").Inc()

	// 回填本地缓存
	if c.local != nil {
		c.local.Set(link, out)
	}
	return out, true
}

func (c *Cache) Set(ctx context.Context, link string, out Outcome) {
	if c.local != nil {
		c.local.Set(link, out)
	}
	if c.client == nil {
		return
	}
	buf, err := json.Marshal(out)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, "rl:"+link, buf, c.ttl).Err(); err != nil {
		slog.Warn("resolve cache set failed", "err", err)
	}
}

func (c *Cache) Close() {
	if c.local != nil {
		c.local.Close()
	}
}
