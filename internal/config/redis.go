package config

import (
    "context"
    "crypto/tls"
    "time"

    "github.com/redis/go-redis/v9"
    "github.com/rs/zerolog/log"
)

// RedisConfig holds connection parameters for the cache/rate-limit Redis.
type RedisConfig struct {
    Addr     string
    Password string
    DB       int
    TLS      bool
}

// LoadRedisConfig reads REDIS_ADDR or REDIS_HOST/REDIS_PORT (the pair wins),
// REDIS_PASSWORD, REDIS_DB and REDIS_TLS.
func LoadRedisConfig() RedisConfig {
    addr := envStr("REDIS_ADDR", "localhost:6379")
    if host, port := envStr("REDIS_HOST", ""), envStr("REDIS_PORT", ""); host != "" && port != "" {
        addr = host + ":" + port
    }
    return RedisConfig{
        Addr:     addr,
        Password: envStr("REDIS_PASSWORD", ""),
        DB:       envInt("REDIS_DB", 0),
        TLS:      envBool("REDIS_TLS", false),
    }
}

// NewRedisClient connects to Redis and pings it.  It returns nil when the
// server is unreachable; callers then run without caching and rate limiting.
func NewRedisClient(rc RedisConfig) *redis.Client {
    opts := &redis.Options{Addr: rc.Addr, Password: rc.Password, DB: rc.DB}
    if rc.TLS {
        opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
    }
    client := redis.NewClient(opts)
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    if err := client.Ping(ctx).Err(); err != nil {
        log.Warn().Err(err).Str("addr", rc.Addr).Msg("redis unavailable; cache and rate limiting disabled")
        _ = client.Close()
        return nil
    }
    return client
}
