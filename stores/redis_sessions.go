package stores

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oarkflow/permit"
)

// RedisSessionStore keeps session expiries in a Redis sorted set
// (member: user ID, score: expiry unix seconds), so validity is one
// ZSCORE away and sweeping expired sessions is a single
// ZREMRANGEBYSCORE. Satisfies permit.SessionValidator.
type RedisSessionStore struct {
	client *redis.Client
	key    string
	clock  permit.Clock
}

func NewRedisSessionStore(client *redis.Client, clock permit.Clock) *RedisSessionStore {
	if clock == nil {
		clock = permit.SystemClock{}
	}
	return &RedisSessionStore{client: client, key: "permit:sessions", clock: clock}
}

func (r *RedisSessionStore) StartSession(ctx context.Context, userID string, ttl time.Duration) error {
	if userID == "" {
		return fmt.Errorf("user ID is required")
	}
	if ttl <= 0 {
		return fmt.Errorf("session ttl must be positive")
	}
	expiry := r.clock.Now().Add(ttl).Unix()
	return r.client.ZAdd(ctx, r.key, redis.Z{Score: float64(expiry), Member: userID}).Err()
}

func (r *RedisSessionStore) EndSession(ctx context.Context, userID string) error {
	return r.client.ZRem(ctx, r.key, userID).Err()
}

func (r *RedisSessionStore) IsSessionValid(ctx context.Context, userID string) (bool, error) {
	score, err := r.client.ZScore(ctx, r.key, userID).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return int64(score) > r.clock.Now().Unix(), nil
}

func (r *RedisSessionStore) CleanupExpiredSessions(ctx context.Context) (int, error) {
	max := strconv.FormatInt(r.clock.Now().Unix(), 10)
	n, err := r.client.ZRemRangeByScore(ctx, r.key, "-inf", max).Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
