package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const defaultExpiry = 10 * time.Second

// Redis is a SlotLocker shared between replicas through redsync.
type Redis struct {
	rs     *redsync.Redsync
	prefix string
	expiry time.Duration
	log    zerolog.Logger
}

// NewRedis builds a distributed lock on an existing client.
func NewRedis(client redis.UniversalClient, log zerolog.Logger) *Redis {
	return &Redis{
		rs:     redsync.New(goredis.NewPool(client)),
		prefix: "portal:lock:",
		expiry: defaultExpiry,
		log:    log.With().Str("component", "slot-lock").Logger(),
	}
}

func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	mutex := r.rs.NewMutex(r.prefix+key, redsync.WithExpiry(r.expiry), redsync.WithTries(64))
	if err := mutex.LockContext(ctx); err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	return func() {
		if _, err := mutex.UnlockContext(context.WithoutCancel(ctx)); err != nil {
			r.log.Error().Err(err).Str("key", key).Msg("failed to unlock mutex")
		}
	}, nil
}
