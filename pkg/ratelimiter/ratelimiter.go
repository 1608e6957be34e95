package ratelimiter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	ScopeRegister = "register"
	ScopeLogin    = "login"
)

func key(subject, action string) string {
	return fmt.Sprintf("rate_limit:%s:%s", action, subject)
}

// CheckAndSetRateLimit reports whether subject may perform action now and, if
// so, locks the action for limit.
func CheckAndSetRateLimit(ctx context.Context, rdb *redis.Client, subject, action string, limit time.Duration) (bool, error) {
	if rdb == nil || limit <= 0 {
		return true, nil
	}

	wasSet, err := rdb.SetNX(ctx, key(subject, action), "locked", limit).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit in redis: %w", err)
	}

	return wasSet, nil
}

func GetRateLimitTTL(ctx context.Context, rdb *redis.Client, subject, action string) (time.Duration, error) {
	if rdb == nil {
		return 0, nil
	}
	return rdb.TTL(ctx, key(subject, action)).Result()
}

// RecordFailure counts one failed attempt for subject inside window and
// returns the running total. The window starts at the first failure.
func RecordFailure(ctx context.Context, rdb *redis.Client, subject, action string, window time.Duration) (int64, error) {
	if rdb == nil {
		return 0, nil
	}

	k := key(subject, action) + ":failures"
	n, err := rdb.Incr(ctx, k).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to record attempt in redis: %w", err)
	}
	if n == 1 {
		if err := rdb.Expire(ctx, k, window).Err(); err != nil {
			return 0, fmt.Errorf("failed to set attempt window in redis: %w", err)
		}
	}

	return n, nil
}

// Failures returns the failed attempts currently counted for subject.
func Failures(ctx context.Context, rdb *redis.Client, subject, action string) (int64, error) {
	if rdb == nil {
		return 0, nil
	}

	n, err := rdb.Get(ctx, key(subject, action)+":failures").Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read attempts from redis: %w", err)
	}
	return n, nil
}

func ClearFailures(ctx context.Context, rdb *redis.Client, subject, action string) error {
	if rdb == nil {
		return nil
	}
	return rdb.Del(ctx, key(subject, action)+":failures").Err()
}
