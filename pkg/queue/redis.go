package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisQueue is a FIFO of Messages kept in a Redis list, plus a dead letter
// list for messages that can never be processed. It survives restarts, which
// is what callers use it for.
type RedisQueue struct {
	client    *redis.Client
	name      string
	keyPrefix string
	maxLen    int64
	now       func() time.Time
}

// RedisQueueOption configures RedisQueue.
type RedisQueueOption func(*RedisQueue)

// WithKeyPrefix sets custom key prefix.
func WithKeyPrefix(prefix string) RedisQueueOption {
	return func(r *RedisQueue) {
		r.keyPrefix = prefix
	}
}

// WithMaxLen bounds the queue; zero means unbounded.
func WithMaxLen(n int64) RedisQueueOption {
	return func(r *RedisQueue) {
		r.maxLen = n
	}
}

// NewRedisQueue creates a queue named name on client.
func NewRedisQueue(client *redis.Client, name string, opts ...RedisQueueOption) *RedisQueue {
	rq := &RedisQueue{
		client:    client,
		name:      name,
		keyPrefix: "autotrader:queue",
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(rq)
	}
	return rq
}

// Push appends payload as a new message of msgType.
func (r *RedisQueue) Push(ctx context.Context, msgType string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return r.push(ctx, &Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		Payload:   raw,
		Timestamp: r.now().UTC(),
	})
}

// Requeue puts msg back at the tail with its attempt count bumped.
func (r *RedisQueue) Requeue(ctx context.Context, msg *Message) error {
	msg.Attempts++
	return r.push(ctx, msg)
}

func (r *RedisQueue) push(ctx context.Context, msg *Message) error {
	if r.maxLen > 0 {
		n, err := r.client.LLen(ctx, r.getQueueKey()).Result()
		if err != nil {
			return fmt.Errorf("llen: %w", err)
		}
		if n >= r.maxLen {
			return ErrQueueFull
		}
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := r.client.LPush(ctx, r.getQueueKey(), data).Err(); err != nil {
		return fmt.Errorf("lpush: %w", err)
	}
	return nil
}

// Pop removes the oldest message. It returns nil, nil when the queue is empty.
func (r *RedisQueue) Pop(ctx context.Context) (*Message, error) {
	data, err := r.client.RPop(ctx, r.getQueueKey()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("rpop: %w", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal message: %w", err)
	}
	return &msg, nil
}

// Len returns the number of queued messages.
func (r *RedisQueue) Len(ctx context.Context) (int64, error) {
	return r.client.LLen(ctx, r.getQueueKey()).Result()
}

// DeadLetter parks msg with the reason it failed.
func (r *RedisQueue) DeadLetter(ctx context.Context, msg *Message, cause error) error {
	if cause != nil {
		msg.Error = cause.Error()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := r.client.LPush(ctx, r.getDeadLetterKey(), data).Err(); err != nil {
		return fmt.Errorf("lpush dead letter: %w", err)
	}
	return nil
}

func (r *RedisQueue) getQueueKey() string {
	return fmt.Sprintf("%s:%s", r.keyPrefix, r.name)
}

func (r *RedisQueue) getDeadLetterKey() string {
	return fmt.Sprintf("%s:%s:dead", r.keyPrefix, r.name)
}
