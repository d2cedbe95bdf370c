package redisad

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"legal_reporting/internal/domain"
)

const LockKey = "legal_reporting:pipeline:lock"

// Deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0`)

// Lock serializes pipeline runs across processes with a leased key.
type Lock struct {
	c   *redis.Client
	key string
	ttl time.Duration
}

func New(addr, pass string, db int, ttl time.Duration) *Lock {
	return NewWithClient(redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db}), ttl)
}

func NewWithClient(c *redis.Client, ttl time.Duration) *Lock {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Lock{c: c, key: LockKey, ttl: ttl}
}

// Acquire returns domain.ErrLocked when another run holds the lease.
func (l *Lock) Acquire(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	ok, err := l.c.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire pipeline lock: %w", err)
	}
	if !ok {
		return nil, domain.ErrLocked
	}
	log.Debug().Str("key", l.key).Dur("ttl", l.ttl).Msg("pipeline lock acquired")

	return func() {
		// the caller's ctx may already be cancelled
		if err := releaseScript.Run(context.Background(), l.c, []string{l.key}, token).Err(); err != nil {
			log.Warn().Err(err).Str("key", l.key).Msg("pipeline lock release failed")
		}
	}, nil
}

func (l *Lock) Close() error { return l.c.Close() }
