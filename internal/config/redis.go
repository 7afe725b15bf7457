package config

// Redis backs the auth rate limiter and the session revocation list.  Both
// degrade to no-ops when the server is unreachable at startup.

import (
	"context"
	"crypto/tls"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds connection settings read from REDIS_* variables.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TLS      bool
	// RevocationPrefix namespaces revoked session ids.
	RevocationPrefix string
}

// LoadRedisConfig reads REDIS_ADDR, or REDIS_HOST and REDIS_PORT together,
// plus REDIS_PASSWORD, REDIS_DB and REDIS_TLS.
func LoadRedisConfig() RedisConfig {
	addr := envStr("REDIS_ADDR", "localhost:6379")
	if host, port := envStr("REDIS_HOST", ""), envStr("REDIS_PORT", ""); host != "" && port != "" {
		addr = host + ":" + port
	}
	return RedisConfig{
		Addr:             addr,
		Password:         envStr("REDIS_PASSWORD", ""),
		DB:               envInt("REDIS_DB", 0),
		TLS:              envBool("REDIS_TLS", false),
		RevocationPrefix: envStr("REDIS_REVOCATION_PREFIX", "cfp:revoked"),
	}
}

// NewRedisClient connects and pings with a short timeout.  It returns nil
// when the server cannot be reached; callers treat a nil client as
// "feature disabled".
func NewRedisClient(cfg RedisConfig, logger *slog.Logger) *redis.Client {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		if logger != nil {
			logger.Warn("redis unavailable; rate limiting and logout revocation disabled", "addr", cfg.Addr, "error", err)
		}
		_ = client.Close()
		return nil
	}
	return client
}
