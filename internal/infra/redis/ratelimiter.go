package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/payslip-dispatch/internal/ratelimit"
	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultLimitPerSec int64 = 5
	keyPrefix                = "payslip:ratelimit"
	minWait                  = 10 * time.Millisecond
	windowSeconds            = 1
)

// allowScript counts calls in a one-second window shared by every process
// talking to the same destination.
var allowScript = goredis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[2])
end
if current > tonumber(ARGV[1]) then
  return 0
end
return 1
`)

var _ ratelimit.Limiter = (*RedisLimiter)(nil)

// RedisLimiter caps outbound webhook calls per destination and second.
type RedisLimiter struct {
	client      *goredis.Client
	limitPerSec int64
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
}

func NewRedisLimiter(client *goredis.Client, limitPerSec int) (*RedisLimiter, error) {
	return newRedisLimiter(client, int64(limitPerSec), time.Now, sleepWithContext)
}

func newRedisLimiter(
	client *goredis.Client,
	limitPerSec int64,
	nowFn func() time.Time,
	sleepFn func(ctx context.Context, d time.Duration) error,
) (*RedisLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if limitPerSec <= 0 {
		limitPerSec = defaultLimitPerSec
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if sleepFn == nil {
		sleepFn = sleepWithContext
	}

	return &RedisLimiter{
		client:      client,
		limitPerSec: limitPerSec,
		now:         nowFn,
		sleep:       sleepFn,
	}, nil
}

func (r *RedisLimiter) windowKey(destination string, at time.Time) string {
	return fmt.Sprintf("%s:%s:%d", keyPrefix, destination, at.UTC().Unix())
}

func (r *RedisLimiter) Allow(ctx context.Context, destination string) (bool, error) {
	if r == nil || r.client == nil {
		return false, fmt.Errorf("rate limiter is not initialized")
	}

	destination = strings.ToLower(strings.TrimSpace(destination))
	if destination == "" {
		return false, fmt.Errorf("destination is required")
	}

	key := r.windowKey(destination, r.now())
	result, err := allowScript.Run(ctx, r.client, []string{key}, r.limitPerSec, windowSeconds).Int()
	if err != nil {
		return false, fmt.Errorf("failed to evaluate rate limit: %w", err)
	}

	return result == 1, nil
}

// Wait blocks until destination has capacity in the current window,
// sleeping until the next window boundary after each rejection.
func (r *RedisLimiter) Wait(ctx context.Context, destination string) error {
	for {
		allowed, err := r.Allow(ctx, destination)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		if err := r.sleep(ctx, r.untilNextWindow()); err != nil {
			return err
		}
	}
}

func (r *RedisLimiter) untilNextWindow() time.Duration {
	now := r.now()
	next := now.Truncate(time.Second).Add(time.Second)
	if d := next.Sub(now); d > minWait {
		return d
	}
	return minWait
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
