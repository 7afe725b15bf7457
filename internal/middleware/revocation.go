package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRevocations is a denylist of logged-out session ids.  Each entry
// expires together with the token it revokes.
type RedisRevocations struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisRevocations returns nil when rdb is nil so callers can pass the
// result straight to JWTAuth.
func NewRedisRevocations(rdb *redis.Client, prefix string) *RedisRevocations {
	if rdb == nil {
		return nil
	}
	if prefix == "" {
		prefix = "revoked"
	}
	return &RedisRevocations{rdb: rdb, prefix: prefix}
}

func (r *RedisRevocations) key(jti string) string { return r.prefix + ":" + jti }

// Revoke records jti until expires.  Tokens that already expired are
// ignored.
func (r *RedisRevocations) Revoke(ctx context.Context, jti string, expires time.Time) error {
	if r == nil {
		return errors.New("revocation store not configured")
	}
	ttl := time.Until(expires)
	if ttl <= 0 {
		return nil
	}
	return r.rdb.Set(ctx, r.key(jti), 1, ttl).Err()
}

// IsRevoked implements RevocationChecker.
func (r *RedisRevocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if r == nil || jti == "" {
		return false, nil
	}
	n, err := r.rdb.Exists(ctx, r.key(jti)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
