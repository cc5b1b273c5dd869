package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/pricewatch/internal/common"
	"github.com/redis/go-redis/v9"
)

// RedisQueue keeps messages in a Redis list so they survive restarts and
// can be drained by workers in another process. Producers LPUSH, consumers
// BRPOP.
type RedisQueue struct {
	client *redis.Client
	key    string
	poll   time.Duration
	closed atomic.Bool
}

func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	return &RedisQueue{client: client, key: key, poll: time.Second}
}

func (q *RedisQueue) Enqueue(ctx context.Context, m *Message) error {
	if q.closed.Load() {
		return common.ErrQueueClosed
	}

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("redis lpush: %w", err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context) (*Message, error) {
	for {
		if q.closed.Load() {
			return nil, common.ErrQueueClosed
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := q.client.BRPop(ctx, q.poll, q.key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("redis brpop: %w", err)
		}

		// res is [key, value]
		m := &Message{}
		if err := json.Unmarshal([]byte(res[1]), m); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		return m, nil
	}
}

// Len reports the number of queued messages.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

// Close stops Dequeue from waiting for new messages. The Redis client is
// owned by the caller and stays open.
func (q *RedisQueue) Close() error {
	q.closed.Store(true)
	return nil
}
