package storage

import (
	"context"
	"time"

	redisx "Chatty/service/storage/redis"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// presence key: chatty:presence:<user>
// Value is the gateway id owning the user's sessions; TTL bounds staleness
// when a node dies without cleaning up.
func presenceKey(user string) string { return "chatty:presence:" + user }

// PresenceOnline marks the user online on the given gateway and renews TTL.
func PresenceOnline(ctx context.Context, user, gatewayID string, ttl time.Duration) error {
	if !redisx.Ready() {
		return nil
	}
	return redisx.Get().Set(ctx, presenceKey(user), gatewayID, ttl).Err()
}

// PresenceOffline removes the mirror entry (idempotent).
func PresenceOffline(ctx context.Context, user string) error {
	if !redisx.Ready() {
		return nil
	}
	return redisx.Get().Del(ctx, presenceKey(user)).Err()
}

// PresenceLookup reports which gateway, if any, the user is homed on.
func PresenceLookup(ctx context.Context, user string) (gatewayID string, online bool, err error) {
	if !redisx.Ready() {
		return "", false, nil
	}
	val, err := redisx.Get().Get(ctx, presenceKey(user)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}
