package processor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"parsely-go/internal/storage"
	"parsely-go/internal/types"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryKV struct {
	mu   sync.Mutex
	data map[string]string
	ttl  map[string]time.Duration
	err  error
}

func newMemoryKV() *memoryKV {
	return &memoryKV{data: map[string]string{}, ttl: map[string]time.Duration{}}
}

func (m *memoryKV) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	v, ok := m.data[key]
	if !ok {
		return "", storage.ErrNotFound
	}
	return v, nil
}

func (m *memoryKV) Set(_ context.Context, key, value string, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.data[key] = value
	m.ttl[key] = expiration
	return nil
}

func sampleResult() *ParseResult {
	schema := types.NewEmptySchema()
	schema.Name = "Jane Roe"
	schema.ResumeQualityScore = 42.5
	return &ParseResult{Schema: schema}
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, CacheKey("abc", ""), CacheKey("abc", types.NLPModelFast))
	assert.NotEqual(t, CacheKey("abc", types.NLPModelFast), CacheKey("abc", types.NLPModelAccurate))
	assert.Contains(t, CacheKey("abc", types.NLPModelFast), "abc")
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache()
	_, ok := c.Get(context.Background(), "k")
	assert.False(t, ok)

	c.Set(context.Background(), "k", sampleResult())
	got, ok := c.Get(context.Background(), "k")
	require.True(t, ok)
	assert.Equal(t, "Jane Roe", got.Schema.Name)
	assert.Equal(t, 1, c.Len())
}

func TestRedisCacheRoundTrip(t *testing.T) {
	kv := newMemoryKV()
	c := NewRedisCache(kv, time.Hour, zerolog.Nop())

	_, ok := c.Get(context.Background(), "k")
	assert.False(t, ok)

	c.Set(context.Background(), "k", sampleResult())
	got, ok := c.Get(context.Background(), "k")
	require.True(t, ok)
	assert.Equal(t, "Jane Roe", got.Schema.Name)
	assert.Equal(t, 42.5, got.Schema.ResumeQualityScore)
	assert.Equal(t, time.Hour, kv.ttl["k"])
}

func TestRedisCacheTreatsFailuresAsMiss(t *testing.T) {
	kv := newMemoryKV()
	c := NewRedisCache(kv, 0, zerolog.Nop())

	kv.data["broken"] = "{not json"
	_, ok := c.Get(context.Background(), "broken")
	assert.False(t, ok)

	kv.data["null"] = `{"parsed":null}`
	_, ok = c.Get(context.Background(), "null")
	assert.False(t, ok)

	kv.err = errors.New("connection refused")
	_, ok = c.Get(context.Background(), "k")
	assert.False(t, ok)
	assert.NotPanics(t, func() { c.Set(context.Background(), "k", sampleResult()) })
}

func TestTieredCacheBackfillsLocal(t *testing.T) {
	local := NewMemoryCache()
	shared := NewRedisCache(newMemoryKV(), time.Minute, zerolog.Nop())
	shared.Set(context.Background(), "k", sampleResult())

	c := NewTieredCache(local, shared)
	got, ok := c.Get(context.Background(), "k")
	require.True(t, ok)
	assert.Equal(t, "Jane Roe", got.Schema.Name)
	assert.Equal(t, 1, local.Len())

	c.Set(context.Background(), "k2", sampleResult())
	_, ok = shared.Get(context.Background(), "k2")
	assert.True(t, ok)
}
