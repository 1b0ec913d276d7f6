package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Symbol string `json:"symbol"`
	N      int    `json:"n"`
}

func newQueue(t *testing.T, opts ...RedisQueueOption) (*miniredis.Miniredis, *RedisQueue) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisQueue(client, "candles", opts...)
}

func TestRedisQueueFIFO(t *testing.T) {
	ctx := context.Background()
	mr, q := newQueue(t, WithKeyPrefix("test:queue"))

	require.NoError(t, q.Push(ctx, "candle_batch", payload{Symbol: "BTCUSDT", N: 1}))
	require.NoError(t, q.Push(ctx, "candle_batch", payload{Symbol: "ETHUSD", N: 2}))
	assert.True(t, mr.Exists("test:queue:candles"))

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	msg, err := q.Pop(ctx)
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, "candle_batch", msg.Type)
	assert.NotEmpty(t, msg.ID)

	p, err := ParsePayload[payload](msg)
	require.NoError(t, err)
	assert.Equal(t, payload{Symbol: "BTCUSDT", N: 1}, *p)

	msg, err = q.Pop(ctx)
	require.NoError(t, err)
	p, err = ParsePayload[payload](msg)
	require.NoError(t, err)
	assert.Equal(t, "ETHUSD", p.Symbol)

	msg, err = q.Pop(ctx)
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestRedisQueueMaxLenAndRequeue(t *testing.T) {
	ctx := context.Background()
	_, q := newQueue(t, WithMaxLen(1))

	require.NoError(t, q.Push(ctx, "t", payload{N: 1}))
	assert.ErrorIs(t, q.Push(ctx, "t", payload{N: 2}), ErrQueueFull)

	msg, err := q.Pop(ctx)
	require.NoError(t, err)
	require.NoError(t, q.Requeue(ctx, msg))

	again, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, msg.ID, again.ID)
	assert.Equal(t, 1, again.Attempts)
}

func TestRedisQueueDeadLetter(t *testing.T) {
	ctx := context.Background()
	mr, q := newQueue(t)

	require.NoError(t, q.Push(ctx, "t", payload{N: 1}))
	msg, err := q.Pop(ctx)
	require.NoError(t, err)
	require.NoError(t, q.DeadLetter(ctx, msg, errors.New("unknown symbol")))

	items, err := mr.List("autotrader:queue:candles:dead")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Contains(t, items[0], `"error":"unknown symbol"`)
}

func TestRedisQueuePopError(t *testing.T) {
	client, mock := redismock.NewClientMock()
	q := NewRedisQueue(client, "candles")

	mock.ExpectRPop("autotrader:queue:candles").SetErr(errors.New("connection reset"))
	_, err := q.Pop(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rpop")
	require.NoError(t, mock.ExpectationsWereMet())
}
