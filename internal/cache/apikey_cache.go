package cache

import (
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/utrading/utrading-signal-gateway/internal/monitor"
)

const cacheTypeAPIKey = "api_key"

// APIKeyCache API Key 到策略 ID 的缓存
// 只缓存查找成功的结果，新建的 Key 立即可用，撤销的 Key 最多在一个 TTL 内仍可用
type APIKeyCache struct {
	cache *cache.Cache
	ttl   time.Duration
}

// NewAPIKeyCache ttl<=0 时不缓存
func NewAPIKeyCache(ttl time.Duration) *APIKeyCache {
	return &APIKeyCache{
		cache: cache.New(ttl, ttl*2),
		ttl:   ttl,
	}
}

func (c *APIKeyCache) Get(apiKey string) (string, bool) {
	if c.ttl <= 0 {
		return "", false
	}

	v, ok := c.cache.Get(apiKey)
	if !ok {
		monitor.IncCacheMiss(cacheTypeAPIKey)
		return "", false
	}
	monitor.IncCacheHit(cacheTypeAPIKey)
	return v.(string), true
}

func (c *APIKeyCache) Set(apiKey, strategyID string) {
	if c.ttl <= 0 {
		return
	}
	c.cache.Set(apiKey, strategyID, cache.DefaultExpiration)
}

// Stats 获取统计信息
func (c *APIKeyCache) Stats() map[string]any {
	return map[string]any{
		"item_count":  c.cache.ItemCount(),
		"ttl_seconds": c.ttl.Seconds(),
	}
}
