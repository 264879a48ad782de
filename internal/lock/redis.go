package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	defaultRedisTTL   = 10 * time.Second
	defaultRetryDelay = 25 * time.Millisecond
	maxRetryDelay     = 250 * time.Millisecond
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisClient is the subset of *redis.Client used by RedisLocker.
type RedisClient interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// RedisLocker is a Locker shared by every process talking to the same Redis.
// Keys expire after TTL so a crashed holder cannot block a resource forever.
type RedisLocker struct {
	client RedisClient
	prefix string
	ttl    time.Duration
	logger *slog.Logger
	token  func() (string, error)
}

// RedisOptions configures a RedisLocker.
type RedisOptions struct {
	Prefix string
	TTL    time.Duration
	Logger *slog.Logger
}

// NewRedisLocker builds a RedisLocker on top of client.
func NewRedisLocker(client RedisClient, opts RedisOptions) *RedisLocker {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultRedisTTL
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "clubflow:lock:"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisLocker{client: client, prefix: prefix, ttl: ttl, logger: logger, token: randomToken}
}

// Acquire retries SET NX with backoff until it wins or ctx is done.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	if l == nil || l.client == nil {
		return nil, errors.New("lock: redis client not configured")
	}

	token, err := l.token()
	if err != nil {
		return nil, fmt.Errorf("lock: generate token: %w", err)
	}
	redisKey := l.prefix + key

	delay := defaultRetryDelay
	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("lock: acquire %s: %w", key, err)
		}
		if ok {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		if delay *= 2; delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			l.logger.Error("failed to release redis lock", "key", key, "error", err)
		}
	}, nil
}

func randomToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
