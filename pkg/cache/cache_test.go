package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type point struct {
	Symbol string  `json:"symbol"`
	Close  float64 `json:"close"`
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisCacheFromClient(client, "autotrader")
}

func TestMemoryCacheRoundTripAndExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700000000, 0)
	mc := NewMemoryCache(WithMemoryCleanup(0), WithMemoryClock(func() time.Time { return now }))
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "p", point{"BTCUSDT", 101.5}, time.Minute))
	var got point
	require.NoError(t, mc.Get(ctx, "p", &got))
	assert.Equal(t, point{"BTCUSDT", 101.5}, got)

	require.NoError(t, mc.Set(ctx, "s", "plain", time.Minute))
	var s string
	require.NoError(t, mc.Get(ctx, "s", &s))
	assert.Equal(t, "plain", s)

	now = now.Add(2 * time.Minute)
	assert.ErrorIs(t, mc.Get(ctx, "p", &got), ErrCacheMiss)
	ok, err := mc.Exists(ctx, "s")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700000000, 0)
	mc := NewMemoryCache(WithMemoryCleanup(0), WithMemoryMaxSize(2), WithMemoryClock(func() time.Time { return now }))
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "a", 1, 0))
	now = now.Add(time.Second)
	require.NoError(t, mc.Set(ctx, "b", 2, 0))
	now = now.Add(time.Second)
	var v int
	require.NoError(t, mc.Get(ctx, "a", &v))
	now = now.Add(time.Second)
	require.NoError(t, mc.Set(ctx, "c", 3, 0))

	assert.Equal(t, 2, mc.Len())
	assert.ErrorIs(t, mc.Get(ctx, "b", &v), ErrCacheMiss)
	require.NoError(t, mc.Get(ctx, "a", &v))
	assert.Equal(t, 1, v)
}

func TestRedisCachePrefixesKeys(t *testing.T) {
	ctx := context.Background()
	mr, rc := newRedis(t)

	require.NoError(t, rc.Set(ctx, "signal:latest:BTCUSDT", point{"BTCUSDT", 1}, time.Hour))
	assert.True(t, mr.Exists("autotrader:signal:latest:BTCUSDT"))
	assert.Equal(t, time.Hour, mr.TTL("autotrader:signal:latest:BTCUSDT"))

	var got point
	require.NoError(t, rc.Get(ctx, "signal:latest:BTCUSDT", &got))
	assert.Equal(t, "BTCUSDT", got.Symbol)

	ok, err := rc.Exists(ctx, "signal:latest:BTCUSDT")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, rc.Delete(ctx, "signal:latest:BTCUSDT"))
	assert.ErrorIs(t, rc.Get(ctx, "signal:latest:BTCUSDT", &got), ErrCacheMiss)
	require.NoError(t, rc.Health(ctx))
}

func TestLayeredCacheFallsBackToRedis(t *testing.T) {
	ctx := context.Background()
	mr, rc := newRedis(t)
	lc := NewLayeredCache(rc)
	defer lc.Close()

	require.NoError(t, mr.Set("autotrader:k", `{"symbol":"ETHUSDT","close":2}`))
	var got point
	require.NoError(t, lc.Get(ctx, "k", &got))
	assert.Equal(t, point{"ETHUSDT", 2}, got)

	// served from L1 after Redis loses the key
	mr.Del("autotrader:k")
	got = point{}
	require.NoError(t, lc.Get(ctx, "k", &got))
	assert.Equal(t, "ETHUSDT", got.Symbol)

	require.NoError(t, lc.Delete(ctx, "k"))
	assert.ErrorIs(t, lc.Get(ctx, "k", &got), ErrCacheMiss)
}

func TestGenerateKey(t *testing.T) {
	assert.Equal(t, "signal:latest:BTCUSDT", GenerateKey("signal", "latest", "BTCUSDT"))
	assert.Equal(t, "candles", GenerateKey("candles"))
}
