package repository

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// redisRateLimit implements a fixed-window counter on Redis so the
// limit holds across replicas.
type redisRateLimit struct {
	client *redis.Client
}

func NewRedisRateLimit(client *redis.Client) RateLimitRepository {
	return &redisRateLimit{client: client}
}

func (r *redisRateLimit) Check(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	// Hash the key for privacy; it usually carries an email or IP.
	hashed := fmt.Sprintf("ratelimit:%x", sha256.Sum256([]byte(key)))

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, hashed)
	pipe.Expire(ctx, hashed, window)
	if _, err := pipe.Exec(ctx); err != nil {
		// Fail open on backend errors.
		return true, err
	}

	return incr.Val() <= int64(limit), nil
}

// localRateLimit is the in-process fallback when Redis is not
// configured. Good enough for a single replica.
type localRateLimit struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewLocalRateLimit() RateLimitRepository {
	return &localRateLimit{limiters: make(map[string]*rate.Limiter)}
}

func (l *localRateLimit) Check(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit)
		l.limiters[key] = lim
	}
	return lim.Allow(), nil
}
