package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	pkgApp "github.com/mateusmacedo/parkit/pkg/application"
)

const (
	redisLockPrefix      = "parkit:lock:"
	defaultRedisLockTTL  = 10 * time.Second
	defaultRedisLockPoll = 50 * time.Millisecond
)

// releaseScript deletes the key only while it still holds our token, so an expired lock
// taken over by another process is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends the lease only while the key still holds our token.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker is a Locker shared by every process using the same Redis. The lease is renewed
// every ttl/3 while the lock is held, so it only expires after ttl if its holder dies.
type RedisLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
	poll   time.Duration
	logger pkgApp.AppLogger
}

func NewRedisLocker(client redis.UniversalClient, ttl time.Duration, logger pkgApp.AppLogger) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultRedisLockTTL
	}
	return &RedisLocker{client: client, ttl: ttl, poll: defaultRedisLockPoll, logger: logger}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := redisLockPrefix + key
	token := uuid.NewString()

	for {
		acquired, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if acquired {
			break
		}

		timer := time.NewTimer(l.poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	stop := make(chan struct{})
	go l.keepAlive(ctx, key, redisKey, token, stop)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			l.release(ctx, key, redisKey, token)
		})
	}, nil
}

func (l *RedisLocker) keepAlive(ctx context.Context, key, redisKey, token string, stop <-chan struct{}) {
	interval := l.ttl / 3
	if interval <= 0 {
		interval = l.ttl
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		renewed, err := renewScript.Run(ctx, l.client, []string{redisKey}, token, l.ttl.Milliseconds()).Int()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			pkgApp.LogWarn(ctx, l.logger, "redis lock renewal failed", err, map[string]interface{}{"key": key})
			continue
		}
		if renewed == 0 {
			pkgApp.LogWarn(ctx, l.logger, "redis lock lost", errors.New("lease expired"), map[string]interface{}{"key": key})
			return
		}
	}
}

func (l *RedisLocker) release(ctx context.Context, key, redisKey, token string) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		pkgApp.LogWarn(ctx, l.logger, "redis lock release failed", err, map[string]interface{}{"key": key})
	}
}
