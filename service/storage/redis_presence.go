package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func DialRedis(ctx context.Context, c RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: c.Addr, Password: c.Password, DB: c.DB})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "redis ping")
	}
	return rdb, nil
}

// presence key: im:presence:<user>
// Value: gateway_id, TTL controls the online validity period
func presenceKey(user string) string { return "im:presence:" + user }

// Presence tracks which gateway a user is connected to. A key that expires
// without renewal means the gateway died without a clean disconnect.
type Presence struct {
	rdb       *redis.Client
	gatewayID string
	ttl       time.Duration
}

func NewPresence(rdb *redis.Client, gatewayID string, ttl time.Duration) *Presence {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &Presence{rdb: rdb, gatewayID: gatewayID, ttl: ttl}
}

// Online marks the user as connected to this gateway and renews the TTL.
func (p *Presence) Online(ctx context.Context, user string) error {
	return p.rdb.Set(ctx, presenceKey(user), p.gatewayID, p.ttl).Err()
}

// Offline deletes the presence key.
func (p *Presence) Offline(ctx context.Context, user string) error {
	return p.rdb.Del(ctx, presenceKey(user)).Err()
}

// Lookup reports which gateway currently holds the user, if any.
func (p *Presence) Lookup(ctx context.Context, user string) (gatewayID string, online bool, err error) {
	val, err := p.rdb.Get(ctx, presenceKey(user)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}
