package calls

import (
	"context"
	"time"

	"voice-relay/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// DialGuard serializes placements per destination.
type DialGuard interface {
	// Acquire returns ErrDestinationBusy when a placement to destination is in flight.
	Acquire(ctx context.Context, destination string) (release func(), err error)
}

// RedisGuard holds one slot per destination in Redis, so the limit is shared
// by every API instance.
type RedisGuard struct {
	rdb redis.Scripter
	ttl time.Duration
}

func NewRedisGuard(rdb redis.Scripter, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisGuard{rdb: rdb, ttl: ttl}
}

func (g *RedisGuard) Acquire(ctx context.Context, destination string) (func(), error) {
	key := "dial:inflight:" + destination
	ok, err := utils.AcquireSlot(ctx, g.rdb, key, 1, g.ttl)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrDestinationBusy
	}
	return func() {
		// Detached from the request so a cancelled request still frees the slot.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = utils.ReleaseSlot(ctx, g.rdb, key)
	}, nil
}
