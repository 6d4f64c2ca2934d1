package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"parsely-go/internal/constants"
	"parsely-go/internal/storage"
	"parsely-go/internal/types"

	"github.com/rs/zerolog"
)

// CacheKey 解析结果缓存键：内容 MD5 + NLP 模型
func CacheKey(contentMD5 string, model types.NLPModel) string {
	if model == "" {
		model = types.NLPModelFast
	}
	return fmt.Sprintf(constants.KeyParseResult, contentMD5, model)
}

// MemoryCache 进程内缓存，不淘汰
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]*ParseResult
}

// NewMemoryCache 创建进程内缓存
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string]*ParseResult)}
}

// Get 实现 ResultCache
func (c *MemoryCache) Get(_ context.Context, key string) (*ParseResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.items[key]
	return r, ok
}

// Set 实现 ResultCache
func (c *MemoryCache) Set(_ context.Context, key string, result *ParseResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = result
}

// Len 缓存条目数
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// KeyValueStore RedisCache 依赖的最小键值接口，storage.Redis 满足该接口
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, expiration time.Duration) error
}

// RedisCache 跨进程共享的缓存层，条目带 TTL。Redis 出错时按未命中处理
type RedisCache struct {
	kv     KeyValueStore
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedisCache 创建 Redis 缓存
func NewRedisCache(kv KeyValueStore, ttl time.Duration, logger zerolog.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = constants.DefaultCacheTTL
	}
	return &RedisCache{kv: kv, ttl: ttl, logger: logger}
}

// Get 实现 ResultCache
func (c *RedisCache) Get(ctx context.Context, key string) (*ParseResult, bool) {
	val, err := c.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			c.logger.Warn().Err(err).Str("key", key).Msg("读取解析结果缓存失败")
		}
		return nil, false
	}
	var res ParseResult
	if err := json.Unmarshal([]byte(val), &res); err != nil || res.Schema == nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("解析结果缓存内容损坏，忽略")
		return nil, false
	}
	return &res, true
}

// Set 实现 ResultCache
func (c *RedisCache) Set(ctx context.Context, key string, result *ParseResult) {
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("序列化解析结果失败")
		return
	}
	if err := c.kv.Set(ctx, key, string(data), c.ttl); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("写入解析结果缓存失败")
	}
}

// TieredCache 先查本地再查共享层，共享层命中时回填本地
type TieredCache struct {
	local  ResultCache
	shared ResultCache
}

// NewTieredCache 创建两级缓存
func NewTieredCache(local, shared ResultCache) *TieredCache {
	return &TieredCache{local: local, shared: shared}
}

// Get 实现 ResultCache
func (c *TieredCache) Get(ctx context.Context, key string) (*ParseResult, bool) {
	if r, ok := c.local.Get(ctx, key); ok {
		return r, true
	}
	r, ok := c.shared.Get(ctx, key)
	if ok {
		c.local.Set(ctx, key, r)
	}
	return r, ok
}

// Set 实现 ResultCache
func (c *TieredCache) Set(ctx context.Context, key string, result *ParseResult) {
	c.local.Set(ctx, key, result)
	c.shared.Set(ctx, key, result)
}
