package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultLeaseTTL   = 2 * time.Minute
	redisRetryBackoff = 50 * time.Millisecond
	redisKeyPrefix    = "signals:sigmax:lock:"
)

// releaseScript deletes the key only if it still holds our token, so an
// expired lease taken over by another instance is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a lease lock shared between instances. The lease must outlive the
// longest critical section, which includes two outbound sends.
type Redis struct {
	client  redis.UniversalClient
	ttl     time.Duration
	timeout time.Duration
}

// RedisOption configures a Redis locker.
type RedisOption func(*Redis)

// WithLeaseTTL sets how long a lease survives a crashed holder.
func WithLeaseTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithWaitTimeout bounds acquisition when the caller's context has no deadline.
func WithWaitTimeout(timeout time.Duration) RedisOption {
	return func(r *Redis) {
		r.timeout = timeout
	}
}

func NewRedis(client redis.UniversalClient, opts ...RedisOption) *Redis {
	r := &Redis{client: client, ttl: defaultLeaseTTL}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Redis) WithLock(ctx context.Context, signalID int64, fn func(ctx context.Context) error) error {
	if held(ctx, r, signalID) {
		return fn(ctx)
	}

	key := redisKey(signalID)
	token := uuid.NewString()
	if err := r.acquire(ctx, key, token); err != nil {
		return err
	}
	defer func() {
		// Release on a fresh context so a cancelled caller still frees the lease.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, r.client, []string{key}, token).Err()
	}()

	return fn(withHeld(ctx, r, signalID))
}

func (r *Redis) acquire(ctx context.Context, key, token string) error {
	waitCtx, cancel := waitContext(ctx, r.timeout)
	defer cancel()

	ticker := time.NewTicker(redisRetryBackoff)
	defer ticker.Stop()
	for {
		ok, err := r.client.SetNX(waitCtx, key, token, r.ttl).Result()
		if err != nil {
			if waitCtx.Err() != nil {
				return notAcquired(waitCtx.Err())
			}
			return notAcquired(fmt.Errorf("redis SETNX %s: %w", key, err))
		}
		if ok {
			return nil
		}
		select {
		case <-waitCtx.Done():
			return notAcquired(waitCtx.Err())
		case <-ticker.C:
		}
	}
}

func redisKey(signalID int64) string {
	return fmt.Sprintf("%s%d", redisKeyPrefix, signalID)
}
