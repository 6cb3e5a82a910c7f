// Package cartstore keeps guest carts in Redis. Each guest cart is a hash
// of variant id to quantity that expires after a period of inactivity.
package cartstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long an untouched guest cart survives.
const DefaultTTL = 72 * time.Hour

type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{
		client: client,
		ttl:    ttl,
	}
}

// Lines returns the guest's variant quantities. A missing or expired cart
// yields an empty map.
func (s *RedisStore) Lines(ctx context.Context, guestID string) (map[string]int, error) {
	raw, err := s.client.HGetAll(ctx, cartKey(guestID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall failed: %w", err)
	}
	return parseLines(raw)
}

// Take reads and deletes the guest cart in one MULTI/EXEC, so an add that
// races with it lands either in the returned lines or in a fresh cart.
func (s *RedisStore) Take(ctx context.Context, guestID string) (map[string]int, error) {
	key := cartKey(guestID)

	var all *redis.MapStringStringCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		all = pipe.HGetAll(ctx, key)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis take failed: %w", err)
	}
	return parseLines(all.Val())
}

func parseLines(raw map[string]string) (map[string]int, error) {
	lines := make(map[string]int, len(raw))
	for variantID, v := range raw {
		qty, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("corrupt quantity for variant %s: %w", variantID, err)
		}
		if qty > 0 {
			lines[variantID] = qty
		}
	}
	return lines, nil
}

// Add atomically increments the quantity for a variant and refreshes the
// cart's expiry. It returns the new quantity.
func (s *RedisStore) Add(ctx context.Context, guestID, variantID string, qty int) (int, error) {
	key := cartKey(guestID)

	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.HIncrBy(ctx, key, variantID, int64(qty))
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redis hincrby failed: %w", err)
	}
	return int(incr.Val()), nil
}

// Set overwrites the quantity for a variant.
func (s *RedisStore) Set(ctx context.Context, guestID, variantID string, qty int) error {
	key := cartKey(guestID)

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, variantID, qty)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis hset failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, guestID, variantID string) error {
	if err := s.client.HDel(ctx, cartKey(guestID), variantID).Err(); err != nil {
		return fmt.Errorf("redis hdel failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, guestID string) error {
	if err := s.client.Del(ctx, cartKey(guestID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cartKey(guestID string) string {
	return fmt.Sprintf("cart:guest:%s", guestID)
}
