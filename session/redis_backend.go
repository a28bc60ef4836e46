package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
)

const redisKeyPrefix = "session:"

// RedisBackend stores sessions as JSON values with a TTL. Calls go through
// a circuit breaker so an unreachable redis fails fast instead of stalling
// every request for the full dial timeout.
type RedisBackend struct {
	client  *redis.Client
	breaker *gobreaker.CircuitBreaker
	timeout time.Duration
}

// NewRedisBackend wraps client. timeout bounds each redis call.
func NewRedisBackend(client *redis.Client, timeout time.Duration) *RedisBackend {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "SessionRedis",
		Timeout: 5 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, redis.Nil)
		},
	})
	return &RedisBackend{client: client, breaker: cb, timeout: timeout}
}

func (b *RedisBackend) Save(ctx context.Context, id string, data Data, ttl time.Duration) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = b.breaker.Execute(func() (interface{}, error) {
		cctx, cancel := context.WithTimeout(ctx, b.timeout)
		defer cancel()
		return nil, b.client.Set(cctx, redisKeyPrefix+id, payload, ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (b *RedisBackend) Load(ctx context.Context, id string) (*Data, error) {
	v, err := b.breaker.Execute(func() (interface{}, error) {
		cctx, cancel := context.WithTimeout(ctx, b.timeout)
		defer cancel()
		return b.client.Get(cctx, redisKeyPrefix+id).Bytes()
	})
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var data Data
	if err := json.Unmarshal(v.([]byte), &data); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &data, nil
}

func (b *RedisBackend) Delete(ctx context.Context, id string) error {
	_, err := b.breaker.Execute(func() (interface{}, error) {
		cctx, cancel := context.WithTimeout(ctx, b.timeout)
		defer cancel()
		return nil, b.client.Del(cctx, redisKeyPrefix+id).Err()
	})
	if err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
